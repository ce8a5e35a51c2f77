package dispatcher

import "errors"

// Failure kinds seen by the dispatch loop. All of them are logged and
// recovered from; none terminates Run.
var (
	// ErrConnect wraps failures opening a plant session.
	ErrConnect = errors.New("dispatcher: session open failed")

	// ErrWrite wraps failures writing a frame to an open session.
	ErrWrite = errors.New("dispatcher: frame write failed")

	// ErrClose wraps failures closing a session.
	ErrClose = errors.New("dispatcher: session close failed")

	// ErrSuspended is reported when pacing or a hold is cut short by shutdown.
	ErrSuspended = errors.New("dispatcher: pause interrupted")

	// ErrUnclassified wraps any other failure inside a dispatch iteration,
	// including recovered panics.
	ErrUnclassified = errors.New("dispatcher: unclassified failure")

	// ErrInvalidOptions is returned by New when a required dependency is missing.
	ErrInvalidOptions = errors.New("dispatcher: invalid options")

	// ErrInvalidPolicy is returned when a retry policy name is unknown.
	ErrInvalidPolicy = errors.New("dispatcher: invalid retry policy")
)
