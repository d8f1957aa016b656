// Package influxdb records speaker telemetry in InfluxDB.
//
// It wraps influxdb-client-go v2 with a ping-verified Connect, batched
// non-blocking writes and an error callback for failed batches.
//
// Measurements:
//   - speaker_state: playing, volume, muted per device
//   - speaker_event: start_playing, stop_playing, artist_changed, track_changed
//   - speaker_availability: reachability transitions with the reason
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry is optional
//	}
//	defer client.Close()
//
//	client.WriteSpeakerState("kitchen", true, 0.45, false)
//
// Batch size and flush interval come from the influxdb config section.
package influxdb
