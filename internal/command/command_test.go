package command

import (
	"errors"
	"testing"
	"time"
)

func TestNewDirective(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
		wantErr error
	}{
		{name: "light on", payload: "*1*1*21##", want: "*1*1*21##"},
		{name: "trims whitespace", payload: "  *2*1*41##\n", want: "*2*1*41##"},
		{name: "empty", payload: "", wantErr: ErrEmptyDirective},
		{name: "blank", payload: "   ", wantErr: ErrEmptyDirective},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDirective(tt.payload)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewDirective(%q) error = %v, want %v", tt.payload, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewDirective(%q) unexpected error: %v", tt.payload, err)
			}
			if d.Payload() != tt.want {
				t.Errorf("Payload() = %q, want %q", d.Payload(), tt.want)
			}
		})
	}
}

func TestOpenDirective(t *testing.T) {
	d := OpenDirective("2", "2", "41")
	if got := d.String(); got != "*2*2*41##" {
		t.Errorf("OpenDirective() = %q, want %q", got, "*2*2*41##")
	}
}

func TestNewDelay(t *testing.T) {
	d, err := NewDelay(500 * time.Millisecond)
	if err != nil {
		t.Fatalf("NewDelay() unexpected error: %v", err)
	}
	if d.Duration() != 500*time.Millisecond {
		t.Errorf("Duration() = %v, want 500ms", d.Duration())
	}
	if !IsDelay(d) {
		t.Error("IsDelay(delay) = false, want true")
	}
	if IsDelay(OpenDirective("1", "0", "21")) {
		t.Error("IsDelay(directive) = true, want false")
	}

	for _, bad := range []time.Duration{0, -time.Second} {
		if _, err := NewDelay(bad); !errors.Is(err, ErrInvalidDelay) {
			t.Errorf("NewDelay(%v) error = %v, want ErrInvalidDelay", bad, err)
		}
	}
}

func TestOpenEncoder_Encode(t *testing.T) {
	enc := OpenEncoder{}
	delay, _ := NewDelay(time.Second)

	frame, err := enc.Encode(OpenDirective("1", "1", "21"))
	if err != nil {
		t.Fatalf("Encode(directive) error: %v", err)
	}
	if frame.Payload != "*1*1*21##" || frame.IsHold() {
		t.Errorf("Encode(directive) = %+v, want payload frame", frame)
	}

	frame, err = enc.Encode(delay)
	if err != nil {
		t.Fatalf("Encode(delay) error: %v", err)
	}
	if !frame.IsHold() || frame.Hold != time.Second {
		t.Errorf("Encode(delay) = %+v, want 1s hold", frame)
	}

	if _, err := enc.Encode(Directive{}); !errors.Is(err, ErrEmptyDirective) {
		t.Errorf("Encode(zero directive) error = %v, want ErrEmptyDirective", err)
	}
	if _, err := enc.Encode(Delay{}); !errors.Is(err, ErrInvalidDelay) {
		t.Errorf("Encode(zero delay) error = %v, want ErrInvalidDelay", err)
	}
	if _, err := enc.Encode(nil); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Encode(nil) error = %v, want ErrUnknownCommand", err)
	}
}
