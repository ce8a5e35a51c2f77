package command

import "errors"

// Domain errors for the command package.
var (
	// ErrEmptyDirective is returned when a directive has no payload.
	ErrEmptyDirective = errors.New("command: directive payload is empty")

	// ErrInvalidDelay is returned when a delay is zero or negative.
	ErrInvalidDelay = errors.New("command: delay must be positive")

	// ErrUnknownCommand is returned when an encoder meets a Command
	// implementation it does not know how to encode.
	ErrUnknownCommand = errors.New("command: unknown command variant")
)
