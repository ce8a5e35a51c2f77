package action

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-myhome/internal/command"
	"github.com/nerrad567/gray-logic-myhome/internal/queue"
)

// Action is an ordered bundle of commands plus its dispatch metadata.
type Action struct {
	id          string
	description string
	priority    queue.Priority
	sensorIDs   []int
	commands    []command.Command
	hasDelay    bool
}

// Option configures an Action at construction time.
type Option func(*Action)

// WithPriority sets the queue priority. Invalid values are ignored and the
// default (LOW) is kept.
func WithPriority(p queue.Priority) Option {
	return func(a *Action) {
		if p.Valid() {
			a.priority = p
		}
	}
}

// WithID sets a caller-supplied id, e.g. one received over MQTT. Empty ids
// are ignored and a generated one is kept.
func WithID(id string) Option {
	return func(a *Action) {
		if id != "" {
			a.id = id
		}
	}
}

// New creates an empty Action. Sensor ids are kept in first-seen order
// with duplicates removed.
func New(description string, sensorIDs []int, opts ...Option) *Action {
	a := &Action{
		id:          uuid.NewString(),
		description: description,
		priority:    queue.DefaultPriority,
		sensorIDs:   dedupe(sensorIDs),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// dedupe returns ids without repeats, preserving order.
func dedupe(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// AppendCommand adds c to the end of the command list. Appending a Delay
// marks the action as timing-sensitive. Nil commands are ignored.
func (a *Action) AppendCommand(c command.Command) {
	if c == nil {
		return
	}
	if command.IsDelay(c) {
		a.hasDelay = true
	}
	a.commands = append(a.commands, c)
}

// PrependResetCommands splices a reset procedure in front of the existing
// commands. Reset procedures are always treated as timing-sensitive, so the
// action is marked as having a delay even when the batch holds none.
func (a *Action) PrependResetCommands(reset []command.Command) {
	a.hasDelay = true
	batch := make([]command.Command, 0, len(reset))
	for _, c := range reset {
		if c != nil {
			batch = append(batch, c)
		}
	}
	a.commands = append(batch, a.commands...)
}

// ID returns the action's correlation id.
func (a *Action) ID() string {
	return a.id
}

// Description returns the free-text label.
func (a *Action) Description() string {
	return a.description
}

// Priority returns the queue priority of every command in the action.
func (a *Action) Priority() queue.Priority {
	return a.priority
}

// InhibitingSensorIDs returns a copy of the sensor ids.
func (a *Action) InhibitingSensorIDs() []int {
	return slices.Clone(a.sensorIDs)
}

// Commands returns a copy of the command list in execution order.
func (a *Action) Commands() []command.Command {
	return slices.Clone(a.commands)
}

// Len returns the number of commands.
func (a *Action) Len() int {
	return len(a.commands)
}

// HasDelay reports whether the action contains a Delay or a reset procedure.
func (a *Action) HasDelay() bool {
	return a.hasDelay
}

func (a *Action) String() string {
	parts := make([]string, len(a.commands))
	for i, c := range a.commands {
		parts[i] = c.String()
	}
	return fmt.Sprintf("Action: %s [%s]", a.description, strings.Join(parts, ", "))
}
