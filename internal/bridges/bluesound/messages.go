package bluesound

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-bluesound/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-bluesound/internal/speaker"
)

// MQTT message types exchanged between Gray Logic Core and the Bluesound bridge.

// CommandMessage is sent from Core to the bridge to write a capability.
// Topic: graylogic/command/bluesound/{device_id}
type CommandMessage struct {
	// ID correlates the command with its acknowledgment. Generated when absent.
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp"`

	// DeviceID defaults to the last topic segment when absent.
	DeviceID string `json:"device_id"`

	// Command is the capability name, e.g. "volume_set".
	Command string `json:"command"`

	// Parameters carries {"value": ...} for capabilities that take one.
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated ("api", "automation", ...).
	Source string `json:"source,omitempty"`
}

// Value returns the "value" parameter, or nil.
func (m CommandMessage) Value() any {
	if m.Parameters == nil {
		return nil
	}
	return m.Parameters["value"]
}

// MarshalJSON writes the timestamp as RFC3339.
func (m *CommandMessage) MarshalJSON() ([]byte, error) {
	type Alias CommandMessage
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(m),
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
	})
}

// UnmarshalJSON accepts an RFC3339 timestamp or none.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// AckStatus is the outcome of a command.
type AckStatus string

const (
	// AckAccepted indicates the player accepted every command sent for the write.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the write was rejected or could not be delivered.
	AckFailed AckStatus = "failed"
)

// AckMessage acknowledges a command.
// Topic: graylogic/ack/bluesound/{device_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Command   string    `json:"command"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// NewAckMessage creates an accepted acknowledgment.
func NewAckMessage(cmd CommandMessage) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Command:   cmd.Command,
		Status:    AckAccepted,
		Protocol:  mqtt.Protocol,
	}
}

// NewAckError creates a failed acknowledgment.
func NewAckError(cmd CommandMessage, code, message string) AckMessage {
	ack := NewAckMessage(cmd)
	ack.Status = AckFailed
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// StateMessage is the retained view of one speaker.
// Topic: graylogic/state/bluesound/{device_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`

	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`

	// Capabilities holds speaker_playing, volume_set and volume_mute.
	Capabilities map[string]any `json:"capabilities"`

	// NowPlaying is the last observed transport and metadata.
	NowPlaying NowPlaying `json:"now_playing"`

	Protocol string `json:"protocol"`
	Address  string `json:"address"`
}

// NowPlaying mirrors the non-capability parts of the observed state.
type NowPlaying struct {
	State   string `json:"state"`
	Service string `json:"service"`
	Shuffle bool   `json:"shuffle"`
	Repeat  int    `json:"repeat"`
	Artist  string `json:"artist"`
	Track   string `json:"track"`
	Album   string `json:"album"`
}

// NewStateMessage builds a state message from a driver snapshot.
func NewStateMessage(deviceID, address string, st speaker.State, reason string) StateMessage {
	msg := StateMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		Available: st.Available,
		Capabilities: map[string]any{
			speaker.CapabilityPlaying: st.Playing,
			speaker.CapabilityVolume:  st.Volume,
			speaker.CapabilityMute:    st.Muted,
		},
		NowPlaying: NowPlaying{
			State:   string(st.Transport),
			Service: st.Service,
			Shuffle: st.Shuffle,
			Repeat:  st.Repeat,
			Artist:  st.Artist,
			Track:   st.Track,
			Album:   st.Album,
		},
		Protocol: mqtt.Protocol,
		Address:  address,
	}
	if !st.Available {
		msg.Reason = reason
	}
	return msg
}

// EventMessage carries one trigger.
// Topic: graylogic/event/bluesound/{device_id}
// QoS: 1, Retained: No
type EventMessage struct {
	DeviceID  string            `json:"device_id"`
	Timestamp time.Time         `json:"timestamp"`
	Event     string            `json:"event"`
	Tokens    map[string]string `json:"tokens"`
	Protocol  string            `json:"protocol"`
}

// NewEventMessage creates an event message for a trigger.
func NewEventMessage(deviceID, event string, tokens speaker.Tokens) EventMessage {
	t := make(map[string]string, len(tokens))
	for k, v := range tokens {
		t[k] = v
	}
	return EventMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		Event:     event,
		Tokens:    t,
		Protocol:  mqtt.Protocol,
	}
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthOffline  HealthStatus = "offline"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// DeviceCounts summarises speaker reachability.
type DeviceCounts struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	Unreachable int `json:"unreachable"`
}

// HealthMessage reports bridge status.
// Topic: graylogic/health/bluesound
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string       `json:"bridge"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Devices       DeviceCounts `json:"devices"`
	Reason        string       `json:"reason,omitempty"`
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(bridgeID, version string, status HealthStatus, counts DeviceCounts, startTime time.Time) HealthMessage {
	return HealthMessage{
		Bridge:        bridgeID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       version,
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		Devices:       counts,
	}
}

// DiscoveryMessage announces speakers found on the network.
// Topic: graylogic/discovery/bluesound
type DiscoveryMessage struct {
	Timestamp time.Time           `json:"timestamp"`
	Bridge    string              `json:"bridge"`
	Devices   []DiscoveredSpeaker `json:"devices"`
}

// DiscoveredSpeaker is one mDNS result.
type DiscoveredSpeaker struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Port    int    `json:"port"`

	// DeviceID is set when the speaker is already registered.
	DeviceID string `json:"device_id,omitempty"`
}
