// Package device holds the registered speakers and everything persisted
// about them.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────┐
//	│                       Registry                            │
//	│  • CRUD with validation    • in-memory cache              │
//	└──────────────┬───────────────────────────────────────────┘
//	               │
//	   ┌───────────┼──────────────────┬──────────────────────┐
//	   ▼           ▼                  ▼                      ▼
//	Repository   StoreRepository   StateHistoryRepository  Validation
//	(devices)    (device_store)    (state_history)         (validation.go)
//
// A Device is one speaker's connection settings. The store is the driver's
// persisted key/value state (mute-restore volume and the last observed
// transport fields). State history keeps JSON snapshots of the observed
// state for the REST API.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	dev := &device.Device{Name: "Kitchen", Address: "192.168.1.40"}
//	if err := registry.CreateDevice(ctx, dev); err != nil {
//	    return err
//	}
//
// The Registry is safe for concurrent use.
package device
