package mqtt

import "fmt"

// Protocol is the protocol segment used in every topic this bridge owns.
const Protocol = "bluesound"

// TopicPrefix is the root of the Gray Logic topic tree.
// Bridge topics use the flat scheme graylogic/{category}/{protocol}/{device_id}.
const TopicPrefix = "graylogic"

// Topics builds the MQTT topics used by the Bluesound bridge.
//
//	topics := mqtt.Topics{}
//	topics.State("kitchen") // "graylogic/state/bluesound/kitchen"
type Topics struct{}

// State is the retained capability/availability topic for a speaker.
func (Topics) State(deviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, Protocol, deviceID)
}

// Command is where capability writes for a speaker arrive.
func (Topics) Command(deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, Protocol, deviceID)
}

// Ack carries the result of each command.
func (Topics) Ack(deviceID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, Protocol, deviceID)
}

// Event carries trigger notifications such as start_playing.
func (Topics) Event(deviceID string) string {
	return fmt.Sprintf("%s/event/%s/%s", TopicPrefix, Protocol, deviceID)
}

// Health is the retained bridge health topic. It doubles as the LWT topic.
func (Topics) Health() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, Protocol)
}

// Discovery is where mDNS discovery results are announced.
func (Topics) Discovery() string {
	return fmt.Sprintf("%s/discovery/%s", TopicPrefix, Protocol)
}

// AllCommands matches commands for every speaker on this bridge.
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, Protocol)
}

// DeviceIDFromTopic returns the last topic segment, or "" if the topic has none.
func DeviceIDFromTopic(topic string) string {
	for i := len(topic) - 1; i >= 0; i-- {
		if topic[i] == '/' {
			return topic[i+1:]
		}
	}
	return ""
}
