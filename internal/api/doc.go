// Package api implements the HTTP REST API and WebSocket server for the
// Bluesound bridge.
//
// This package provides:
//   - REST endpoints to register, update and remove speakers
//   - Capability writes (play/pause, skip, volume, mute) forwarded to the driver
//   - State history queries backed by SQLite
//   - On-demand mDNS discovery
//   - WebSocket hub broadcasting "state" and "event" messages from the bridge
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Error mapping
//
// Unknown devices return 404, validation failures 400, duplicate endpoints
// 409, and a command the speaker rejected or never answered returns 502 with
// the dispatcher error in the message.
package api
