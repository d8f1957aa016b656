// Package bluesound is the Gray Logic bridge for BluOS speakers.
//
// The bridge owns one speaker driver per registered device and acts as the
// host platform for each of them:
//
//	           MQTT command ──▶ Bridge ──▶ speaker.Device ──▶ BluOS HTTP API
//	                              │              │
//	  state / event / ack ◀───────┤◀── OnChange ─┘
//	  SQLite store + history ◀────┤
//	  InfluxDB + WebSocket  ◀─────┘
//
// Capability values and store values are kept in memory per device and
// written through to SQLite, so a restarted bridge resumes from the last
// observed state. A retained StateMessage is published on every observed
// change, triggers become EventMessages, and every command is acknowledged
// on the ack topic. The HealthReporter publishes device counts on the
// retained health topic.
//
// # Topics
//
//	graylogic/command/bluesound/{device_id}   Core → bridge
//	graylogic/ack/bluesound/{device_id}       bridge → Core
//	graylogic/state/bluesound/{device_id}     bridge → Core (retained)
//	graylogic/event/bluesound/{device_id}     bridge → Core
//	graylogic/health/bluesound                bridge → Core (retained, LWT)
//	graylogic/discovery/bluesound             bridge → Core
package bluesound
