package mqtt

import "fmt"

// Topic prefixes for the myhome hierarchy.
//
//	myhome/action/submit          producers → myhomed
//	myhome/action/ack/{id}        myhomed → producers
//	myhome/health/{component}     retained health reports
//	myhome/system/status          online/offline (LWT)
const (
	// TopicPrefix is the base for all myhome topics.
	TopicPrefix = "myhome"

	// TopicPrefixAction is the base for action intake topics.
	TopicPrefixAction = "myhome/action"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "myhome/system"
)

// Topics provides builders for myhome MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	ack := topics.ActionAck("0b9e...")
//	// Returns: "myhome/action/ack/0b9e..."
type Topics struct{}

// ActionSubmit returns the topic producers publish actions on.
//
// Example: myhome/action/submit
func (Topics) ActionSubmit() string {
	return fmt.Sprintf("%s/submit", TopicPrefixAction)
}

// ActionAck returns the topic an action's acceptance or rejection is published on.
//
// Example: myhome/action/ack/3f1c2a9e-...
func (Topics) ActionAck(actionID string) string {
	return fmt.Sprintf("%s/ack/%s", TopicPrefixAction, actionID)
}

// Health returns the retained health topic for a component.
//
// Example: myhome/health/dispatcher
func (Topics) Health(component string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, component)
}

// SystemStatus returns the system status topic.
//
// Example: myhome/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
