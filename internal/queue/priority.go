package queue

import (
	"fmt"
	"strconv"
	"strings"
)

// Priority orders queued work. Lower values are served first.
type Priority int

// Priority levels.
const (
	High   Priority = 1
	Medium Priority = 2
	Low    Priority = 3
)

// levelCount is the number of priority levels.
const levelCount = 3

// DefaultPriority is used when a producer does not choose one.
const DefaultPriority = Low

// Valid reports whether p is one of the defined levels.
func (p Priority) Valid() bool {
	return p >= High && p <= Low
}

func (p Priority) String() string {
	switch p {
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	default:
		return "priority(" + strconv.Itoa(int(p)) + ")"
	}
}

// index maps a priority to its level slot.
func (p Priority) index() int {
	return int(p) - 1
}

// ParsePriority accepts "high", "medium", "low" (any case) or "1", "2", "3".
// An empty string yields DefaultPriority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultPriority, nil
	case "high", "1":
		return High, nil
	case "medium", "2":
		return Medium, nil
	case "low", "3":
		return Low, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
}
