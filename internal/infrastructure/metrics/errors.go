package metrics

import "errors"

// Domain errors for the metrics package.
var (
	// ErrServerStarted is returned when Start is called twice.
	ErrServerStarted = errors.New("metrics: server already started")

	// ErrInvalidPath is returned when the scrape path does not start with "/".
	ErrInvalidPath = errors.New("metrics: path must start with /")
)
