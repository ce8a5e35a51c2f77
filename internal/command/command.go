package command

import (
	"fmt"
	"strings"
	"time"
)

// openTerminator ends every OpenWebNet frame.
const openTerminator = "##"

// Command is one unit of plant work. The interface is sealed: the only
// implementations are Directive and Delay.
type Command interface {
	fmt.Stringer
	isCommand()
}

// Directive is an actuator instruction carried as an opaque OpenWebNet payload.
type Directive struct {
	payload string
}

// NewDirective wraps a raw OpenWebNet payload such as "*1*1*21##".
// Surrounding whitespace is trimmed; an empty payload is rejected.
func NewDirective(payload string) (Directive, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return Directive{}, ErrEmptyDirective
	}
	return Directive{payload: payload}, nil
}

// OpenDirective builds the common "*WHO*WHAT*WHERE##" form.
//
// Example: OpenDirective("1", "1", "21") switches on light 21.
func OpenDirective(who, what, where string) Directive {
	return Directive{payload: "*" + who + "*" + what + "*" + where + openTerminator}
}

// Payload returns the OpenWebNet string.
func (d Directive) Payload() string {
	return d.payload
}

func (d Directive) String() string {
	return d.payload
}

func (Directive) isCommand() {}

// Delay asks the dispatcher to pause before the next command of the action.
type Delay struct {
	d time.Duration
}

// NewDelay returns a Delay of the given duration.
func NewDelay(d time.Duration) (Delay, error) {
	if d <= 0 {
		return Delay{}, fmt.Errorf("%w: %v", ErrInvalidDelay, d)
	}
	return Delay{d: d}, nil
}

// Duration returns how long the pause lasts.
func (d Delay) Duration() time.Duration {
	return d.d
}

func (d Delay) String() string {
	return "delay(" + d.d.String() + ")"
}

func (Delay) isCommand() {}

// IsDelay reports whether c is a Delay.
func IsDelay(c Command) bool {
	_, ok := c.(Delay)
	return ok
}
