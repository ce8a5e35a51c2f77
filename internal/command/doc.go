// Package command defines the units of work sent to a MyHome plant.
//
// A Command is either a Directive, an OpenWebNet instruction for one
// actuator, or a Delay, a pause the dispatcher must honour between
// directives. Commands are immutable once constructed.
//
// Before a command is queued it is encoded into a Frame, the ready-to-send
// unit the dispatcher consumes:
//
//	frame, err := command.OpenEncoder{}.Encode(command.OpenDirective("1", "1", "21"))
//	// frame.Payload == "*1*1*21##"
package command
