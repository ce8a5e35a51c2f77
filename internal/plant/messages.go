package plant

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/nerrad567/gray-logic-myhome/internal/action"
	"github.com/nerrad567/gray-logic-myhome/internal/command"
	"github.com/nerrad567/gray-logic-myhome/internal/queue"
)

// ActionMessage is published by producers to submit an action.
// Topic: myhome/action/submit
type ActionMessage struct {
	// ID is optional; one is generated when empty. It becomes an MQTT
	// topic level, so it is limited to letters, digits and ._:-
	ID string `json:"id,omitempty"`

	// Description is a human label, e.g. "Goodnight scene".
	Description string `json:"description"`

	// Priority is high, medium or low (or 1, 2, 3). Default: low.
	Priority string `json:"priority,omitempty"`

	// Sensors lists inhibiting sensor ids. Carried as data only.
	Sensors []int `json:"sensors,omitempty"`

	// Reset is a procedure spliced in front of Commands.
	Reset []CommandMessage `json:"reset,omitempty"`

	// Commands are executed in order.
	Commands []CommandMessage `json:"commands"`
}

// CommandMessage is one command inside an ActionMessage. Exactly one form
// must be used:
//
//	{"directive": "*1*1*21##"}
//	{"who": "1", "what": "1", "where": "21"}
//	{"delay_ms": 500}
type CommandMessage struct {
	Directive string `json:"directive,omitempty"`
	Who       string `json:"who,omitempty"`
	What      string `json:"what,omitempty"`
	Where     string `json:"where,omitempty"`
	DelayMS   int    `json:"delay_ms,omitempty"`
}

// AckStatus is the outcome of a submission.
type AckStatus string

const (
	// AckAccepted means every command was queued.
	AckAccepted AckStatus = "accepted"

	// AckRejected means nothing was queued.
	AckRejected AckStatus = "rejected"
)

// AckMessage answers an ActionMessage. It reports queueing only; delivery
// to the plant is not acknowledged.
// Topic: myhome/action/ack/{action_id}
type AckMessage struct {
	ActionID  string    `json:"action_id"`
	Status    AckStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// maxActionIDLen bounds producer-supplied ids.
const maxActionIDLen = 64

// ValidateActionID reports whether id is usable as a single topic level
// and audit key. Empty ids are valid and replaced by a generated one.
func ValidateActionID(id string) error {
	if utf8.RuneCountInString(id) > maxActionIDLen {
		return fmt.Errorf("%w: id longer than %d characters", ErrInvalidMessage, maxActionIDLen)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return fmt.Errorf("%w: id contains %q", ErrInvalidMessage, r)
		}
	}
	return nil
}

// ToAction builds an Action from the message.
func (m ActionMessage) ToAction() (*action.Action, error) {
	if err := ValidateActionID(m.ID); err != nil {
		return nil, err
	}

	opts := []action.Option{action.WithID(m.ID)}
	if m.Priority != "" {
		p, err := queue.ParsePriority(m.Priority)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
		}
		opts = append(opts, action.WithPriority(p))
	}

	a := action.New(m.Description, m.Sensors, opts...)

	for i, cm := range m.Commands {
		cmd, err := cm.ToCommand()
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		a.AppendCommand(cmd)
	}

	if len(m.Reset) > 0 {
		reset := make([]command.Command, 0, len(m.Reset))
		for i, cm := range m.Reset {
			cmd, err := cm.ToCommand()
			if err != nil {
				return nil, fmt.Errorf("reset %d: %w", i, err)
			}
			reset = append(reset, cmd)
		}
		a.PrependResetCommands(reset)
	}

	return a, nil
}

// ToCommand converts the message to a Directive or Delay.
func (cm CommandMessage) ToCommand() (command.Command, error) {
	addressed := cm.Who != "" || cm.What != "" || cm.Where != ""

	forms := 0
	if cm.Directive != "" {
		forms++
	}
	if addressed {
		forms++
	}
	if cm.DelayMS != 0 {
		forms++
	}
	if forms != 1 {
		return nil, fmt.Errorf("%w: exactly one of directive, who/what/where or delay_ms is required", ErrInvalidMessage)
	}

	switch {
	case cm.Directive != "":
		d, err := command.NewDirective(cm.Directive)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
		}
		return d, nil

	case addressed:
		if cm.Who == "" || cm.What == "" || cm.Where == "" {
			return nil, fmt.Errorf("%w: who, what and where are all required", ErrInvalidMessage)
		}
		return command.OpenDirective(cm.Who, cm.What, cm.Where), nil

	default:
		d, err := command.NewDelay(time.Duration(cm.DelayMS) * time.Millisecond)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
		}
		return d, nil
	}
}
