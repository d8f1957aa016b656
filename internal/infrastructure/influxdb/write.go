package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the bridge.
const (
	MeasurementSpeakerState = "speaker_state"
	MeasurementSpeakerEvent = "speaker_event"
	MeasurementAvailability = "speaker_availability"
)

// WriteSpeakerState records the reconciled playback state of a speaker.
//
// Example:
//
//	client.WriteSpeakerState("kitchen", true, 0.45, false)
func (c *Client) WriteSpeakerState(deviceID string, playing bool, volume float64, muted bool) {
	c.WritePoint(MeasurementSpeakerState,
		map[string]string{"device_id": deviceID},
		map[string]any{
			"playing": playing,
			"volume":  volume,
			"muted":   muted,
		})
}

// WriteSpeakerEvent records a trigger such as start_playing or track_changed.
// Empty artist or track fields are omitted.
func (c *Client) WriteSpeakerEvent(deviceID, event, artist, track string) {
	fields := map[string]any{"count": 1}
	if artist != "" {
		fields["artist"] = artist
	}
	if track != "" {
		fields["track"] = track
	}
	c.WritePoint(MeasurementSpeakerEvent,
		map[string]string{"device_id": deviceID, "event": event},
		fields)
}

// WriteAvailability records a reachability transition.
func (c *Client) WriteAvailability(deviceID string, available bool, reason string) {
	fields := map[string]any{"available": available}
	if reason != "" {
		fields["reason"] = reason
	}
	c.WritePoint(MeasurementAvailability, map[string]string{"device_id": deviceID}, fields)
}

// WritePoint writes a point stamped with the current time.
// Tags should be low-cardinality; use fields for values.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
