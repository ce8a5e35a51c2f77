package command

import "time"

// Frame is an encoded command as stored in the dispatch queue.
//
// Exactly one of Payload and Hold is set: Payload for directives that are
// written to the plant, Hold for delays that only pause the dispatcher.
type Frame struct {
	// Payload is the protocol string written to the session.
	Payload string

	// Hold is the pause requested by a Delay command.
	Hold time.Duration

	// ActionID correlates the frame with the action it came from.
	ActionID string

	// Attempts counts failed delivery attempts so far.
	Attempts int
}

// IsHold reports whether the frame is a pause rather than a send.
func (f Frame) IsHold() bool {
	return f.Payload == "" && f.Hold > 0
}

// Encoder converts commands to frames. Implementations must be
// deterministic and free of side effects.
type Encoder interface {
	Encode(c Command) (Frame, error)
}

// OpenEncoder encodes commands for an OpenWebNet gateway.
type OpenEncoder struct{}

// Encode implements Encoder.
func (OpenEncoder) Encode(c Command) (Frame, error) {
	switch v := c.(type) {
	case Directive:
		if v.payload == "" {
			return Frame{}, ErrEmptyDirective
		}
		return Frame{Payload: v.payload}, nil
	case Delay:
		if v.d <= 0 {
			return Frame{}, ErrInvalidDelay
		}
		return Frame{Hold: v.d}, nil
	default:
		return Frame{}, ErrUnknownCommand
	}
}
