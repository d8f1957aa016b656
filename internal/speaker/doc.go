// Package speaker implements the driver for a single BluOS speaker.
//
// A Device owns an explicit State and runs a two-state availability poller:
//
//	Polling ──fetch fails──▶ Unreachable
//	   ▲                          │
//	   └──────ping succeeds───────┘
//
// In Polling the player's /Status is fetched every poll interval (user
// configured) and reconciled into State. Changes are written to the host
// through the Capabilities and Store interfaces, and notifications are raised
// through Triggers. In Unreachable the player is probed every 63 seconds
// until it answers. Exactly one ticker is alive at a time and ticks never
// overlap: a slow fetch delays the next tick instead of running beside it.
//
// Capability writes (play/pause, previous, next, volume, mute) are forwarded
// to the player and their errors returned to the caller wrapped in
// ErrCommandDispatch.
//
// Artist, track and album are only updated while the transport is active
// (neither stopped nor paused), so a stopped player never raises
// artist_changed or track_changed for stale metadata.
package speaker
