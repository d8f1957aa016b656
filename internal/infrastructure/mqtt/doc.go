// Package mqtt connects the Bluesound bridge to the Gray Logic MQTT bus.
//
// This package manages:
//   - Connection to the broker with auto-reconnect and subscription restore
//   - Publishing with QoS and size validation
//   - Command subscriptions with panic-safe handlers
//   - A retained offline LWT on the bridge health topic
//
// Topics follow the flat scheme graylogic/{category}/bluesound/{device_id}:
//
//	graylogic/state/bluesound/kitchen    retained capability state
//	graylogic/command/bluesound/kitchen  capability writes from Core
//	graylogic/ack/bluesound/kitchen      command results
//	graylogic/event/bluesound/kitchen    start_playing, track_changed, ...
//	graylogic/health/bluesound           bridge health (and LWT)
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
package mqtt
