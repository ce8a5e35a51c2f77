package dispatcher

import (
	"fmt"
	"strings"
	"time"
)

// Policy decides what happens to a frame whose delivery failed.
type Policy int

const (
	// PolicyDrop discards the frame and moves on.
	PolicyDrop Policy = iota

	// PolicyRequeue returns the frame to the head of its priority level
	// and backs off before the next attempt.
	PolicyRequeue
)

func (p Policy) String() string {
	switch p {
	case PolicyDrop:
		return "drop"
	case PolicyRequeue:
		return "requeue"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy accepts "drop" or "requeue". An empty string means drop.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop":
		return PolicyDrop, nil
	case "requeue":
		return PolicyRequeue, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// Defaults for Config.
const (
	// DefaultPacing is the minimum gap the plant needs between commands.
	DefaultPacing = 300 * time.Millisecond

	// DefaultMaxAttempts bounds delivery tries under PolicyRequeue.
	DefaultMaxAttempts = 3

	// DefaultInitialBackoff is the first wait after a failed delivery under PolicyRequeue.
	DefaultInitialBackoff = time.Second

	// DefaultMaxBackoff caps the exponential backoff.
	DefaultMaxBackoff = 30 * time.Second

	// backoffFactor grows the backoff after each consecutive failure.
	backoffFactor = 1.5
)

// Config tunes the dispatch loop. Zero values take the defaults above.
type Config struct {
	// Pacing is the wait after every successful send.
	Pacing time.Duration

	// Policy is applied to frames that fail to connect or write.
	Policy Policy

	// MaxAttempts is the total number of tries per frame under PolicyRequeue.
	MaxAttempts int

	// InitialBackoff and MaxBackoff bound the wait between retries.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.Pacing <= 0 {
		c.Pacing = DefaultPacing
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	return c
}

// nextBackoff grows d by backoffFactor, capped at limit.
func nextBackoff(d, limit time.Duration) time.Duration {
	next := time.Duration(float64(d) * backoffFactor)
	if next > limit {
		next = limit
	}
	return next
}
