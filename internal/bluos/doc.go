// Package bluos is a small client for the local HTTP API of BluOS players
// (Bluesound, NAD and friends).
//
// Players listen on port 11000 and answer plain GET requests:
//
//	GET /Status           XML status document (state, volume, metadata)
//	GET /SyncStatus       player identity (name, model, brand)
//	GET /Play, /Pause     transport control
//	GET /Back, /Skip      track navigation
//	GET /Volume?level=N   absolute volume, 0-100
//
// Every status fetch failure wraps ErrFetchFailed and every command failure
// wraps ErrCommandFailed.
package bluos
