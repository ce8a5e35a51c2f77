package gateway

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeGateway is a minimal OpenWebNet command-session server.
type fakeGateway struct {
	ln net.Listener

	// grant is the reply to the session request.
	grant string
	// reply is the answer to every frame; empty means no reply.
	reply string

	mu     sync.Mutex
	frames []string
	wg     sync.WaitGroup
}

func newFakeGateway(t *testing.T, grant, reply string) *fakeGateway {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	g := &fakeGateway{ln: ln, grant: grant, reply: reply}
	g.wg.Add(1)
	go g.serve()
	t.Cleanup(func() {
		ln.Close()
		g.wg.Wait()
	})
	return g
}

func (g *fakeGateway) serve() {
	defer g.wg.Done()
	for {
		conn, err := g.ln.Accept()
		if err != nil {
			return
		}
		g.wg.Add(1)
		go g.handle(conn)
	}
}

func (g *fakeGateway) handle(conn net.Conn) {
	defer g.wg.Done()
	defer conn.Close()

	r := bufio.NewReader(conn)
	if _, err := conn.Write([]byte(frameACK)); err != nil {
		return
	}
	req, err := readFrame(r)
	if err != nil || req != frameCommandSession {
		return
	}
	if _, err := conn.Write([]byte(g.grant)); err != nil {
		return
	}
	for {
		frame, err := readFrame(r)
		if err != nil {
			return
		}
		g.mu.Lock()
		g.frames = append(g.frames, frame)
		g.mu.Unlock()
		if g.reply != "" {
			if _, err := conn.Write([]byte(g.reply)); err != nil {
				return
			}
		}
	}
}

func (g *fakeGateway) received() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.frames...)
}

func (g *fakeGateway) dialer(awaitAck bool) *Dialer {
	host, portStr, _ := net.SplitHostPort(g.ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return &Dialer{
		Host:           host,
		Port:           port,
		ConnectTimeout: time.Second,
		WriteTimeout:   time.Second,
		ReadTimeout:    time.Second,
		AwaitAck:       awaitAck,
	}
}

func TestDialer_Address(t *testing.T) {
	tests := []struct {
		name   string
		dialer Dialer
		want   string
	}{
		{"default port", Dialer{Host: "192.168.1.35"}, "192.168.1.35:20000"},
		{"custom port", Dialer{Host: "gw.local", Port: 20001}, "gw.local:20001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialer.Address(); got != tt.want {
				t.Errorf("Address() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSession_SendWithAck(t *testing.T) {
	g := newFakeGateway(t, frameACK, frameACK)

	s, err := g.dialer(true).Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer s.Close()

	for _, p := range []string{"*1*1*21##", "*1*0*22##"} {
		if err := s.Send(context.Background(), p); err != nil {
			t.Fatalf("Send(%q) error = %v", p, err)
		}
	}

	got := g.received()
	want := []string{"*1*1*21##", "*1*0*22##"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("received = %v, want %v", got, want)
	}
}

func TestSession_SendWithoutAck(t *testing.T) {
	g := newFakeGateway(t, frameACK, "")

	s, err := g.dialer(false).Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if err := s.Send(context.Background(), "*2*1*41##"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(g.received()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := g.received(); len(got) != 1 || got[0] != "*2*1*41##" {
		t.Errorf("received = %v, want [*2*1*41##]", got)
	}
}

func TestSession_FrameNack(t *testing.T) {
	g := newFakeGateway(t, frameACK, frameNACK)

	s, err := g.dialer(true).Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer s.Close()

	err = s.Send(context.Background(), "*1*1*99##")
	if !errors.Is(err, ErrNack) {
		t.Errorf("Send() error = %v, want ErrNack", err)
	}
}

func TestDial_SessionRefused(t *testing.T) {
	g := newFakeGateway(t, frameNACK, "")

	_, err := g.dialer(false).Dial(context.Background())
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Dial() error = %v, want ErrConnectionFailed", err)
	}
	if !errors.Is(err, ErrNack) {
		t.Errorf("Dial() error = %v, want wrapped ErrNack", err)
	}
}

func TestDial_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	d := &Dialer{Host: "127.0.0.1", Port: addr.Port, ConnectTimeout: 500 * time.Millisecond}
	if _, err := d.Open(context.Background()); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Open() error = %v, want ErrConnectionFailed", err)
	}
}

func TestSession_CloseIdempotent(t *testing.T) {
	g := newFakeGateway(t, frameACK, "")

	s, err := g.dialer(false).Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := s.Send(context.Background(), "*1*1*21##"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Send() after Close error = %v, want ErrSessionClosed", err)
	}
}

func TestReadFrame(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"single", "*#*1##", []string{"*#*1##"}, false},
		{"back to back", "*#*1##*#*0##", []string{"*#*1##", "*#*0##"}, false},
		{"truncated", "*#*1#", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bufio.NewReader(strings.NewReader(tt.input))
			var got []string
			for range tt.want {
				f, err := readFrame(r)
				if err != nil {
					t.Fatalf("readFrame() error = %v", err)
				}
				got = append(got, f)
			}
			if tt.wantErr {
				if _, err := readFrame(r); err == nil {
					t.Error("readFrame() expected error")
				}
				return
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("frames = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReadFrame_TooLong(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(strings.Repeat("*", maxFrameSize+10)))
	if _, err := readFrame(r); !errors.Is(err, ErrFrameTooLong) {
		t.Errorf("readFrame() error = %v, want ErrFrameTooLong", err)
	}
}
