package gateway

import "errors"

// Domain errors for the gateway package.
var (
	// ErrConnectionFailed is returned when the TCP dial or handshake fails.
	ErrConnectionFailed = errors.New("gateway: connection failed")

	// ErrNack is returned when the gateway rejects a frame or the session request.
	ErrNack = errors.New("gateway: frame rejected (NACK)")

	// ErrUnexpectedReply is returned when the gateway answers with something
	// other than ACK or NACK.
	ErrUnexpectedReply = errors.New("gateway: unexpected reply")

	// ErrSessionClosed is returned when sending on a closed session.
	ErrSessionClosed = errors.New("gateway: session closed")

	// ErrFrameTooLong is returned when a reply exceeds maxFrameSize without a terminator.
	ErrFrameTooLong = errors.New("gateway: reply frame too long")
)
