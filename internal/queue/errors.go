package queue

import "errors"

// ErrInvalidPriority is returned when a priority value or name is not one
// of high, medium or low.
var ErrInvalidPriority = errors.New("queue: invalid priority")
