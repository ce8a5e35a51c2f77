package plant

import "errors"

// Domain errors for the plant package.
var (
	// ErrNilAction is returned when SubmitAction is given nil.
	ErrNilAction = errors.New("plant: action is nil")

	// ErrEmptyAction is returned when an action holds no commands.
	ErrEmptyAction = errors.New("plant: action has no commands")

	// ErrEncode is returned when a command cannot be encoded.
	ErrEncode = errors.New("plant: encoding command")

	// ErrAlreadyStarted is returned when Start is called on a running controller.
	ErrAlreadyStarted = errors.New("plant: controller already started")

	// ErrStopped is returned when Start is called after Stop.
	ErrStopped = errors.New("plant: controller stopped")

	// ErrInvalidMessage is returned when an MQTT action message cannot be decoded.
	ErrInvalidMessage = errors.New("plant: invalid action message")
)
