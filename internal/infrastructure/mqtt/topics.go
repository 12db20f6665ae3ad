package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every BenchLink topic.
const TopicPrefix = "benchlink"

// Topics provides builders for BenchLink MQTT topics.
//
// Component topics use the flat scheme benchlink/{category}/{device}/{component}:
//
//	topics := mqtt.Topics{}
//	topics.State("hplc", "inject") // "benchlink/state/hplc/inject"
type Topics struct{}

// State returns the retained topic carrying a component's rotor state.
//
// Example: benchlink/state/hplc/inject
func (Topics) State(deviceID, component string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, deviceID, component)
}

// Event returns the topic carrying a component's position events.
//
// Example: benchlink/event/hplc/inject
func (Topics) Event(deviceID, component string) string {
	return fmt.Sprintf("%s/event/%s/%s", TopicPrefix, deviceID, component)
}

// Command returns the topic a component accepts move commands on.
//
// Example: benchlink/command/hplc/inject
func (Topics) Command(deviceID, component string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, deviceID, component)
}

// Ack returns the topic command results are published on.
//
// Example: benchlink/ack/hplc/inject
func (Topics) Ack(deviceID, component string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, deviceID, component)
}

// SystemStatus returns the retained online/offline status topic (also the
// Last Will topic).
//
// Example: benchlink/system/status
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// AllStates returns a pattern matching every component state topic.
//
// Pattern: benchlink/state/+/+
func (Topics) AllStates() string {
	return TopicPrefix + "/state/+/+"
}

// AllCommands returns a pattern matching every component command topic.
//
// Pattern: benchlink/command/+/+
func (Topics) AllCommands() string {
	return TopicPrefix + "/command/+/+"
}

// AllTopics returns a pattern matching all BenchLink topics.
//
// Pattern: benchlink/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// ParseComponentTopic splits benchlink/{category}/{device}/{component}.
func ParseComponentTopic(topic string) (category, deviceID, component string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix {
		return "", "", "", fmt.Errorf("%w: %q is not a component topic", ErrInvalidTopic, topic)
	}
	for _, p := range parts[1:] {
		if p == "" || p == "+" || p == "#" {
			return "", "", "", fmt.Errorf("%w: %q has an empty or wildcard level", ErrInvalidTopic, topic)
		}
	}
	return parts[1], parts[2], parts[3], nil
}
