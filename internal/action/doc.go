// Package action models the bundle of commands a producer submits to the
// plant as one unit.
//
// An Action carries a description, a priority, the ids of the sensors that
// may inhibit it, and an ordered list of commands. The producer builds the
// Action, optionally prepends a reset procedure that forces actuators into
// a known state, and hands it to the plant controller. From that point the
// Action is treated as read-only.
//
// Usage:
//
//	a := action.New("evening lights", []int{4, 7}, action.WithPriority(queue.Medium))
//	a.AppendCommand(command.OpenDirective("1", "1", "21"))
//	a.AppendCommand(delay)
//	a.AppendCommand(command.OpenDirective("1", "0", "21"))
//
// Inhibition sensors are stored for the caller; this package never
// evaluates them.
//
// An Action is not safe for concurrent mutation.
package action
