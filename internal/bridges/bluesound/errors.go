package bluesound

import "errors"

var (
	// ErrNotRunning is returned for device operations after Stop.
	ErrNotRunning = errors.New("bluesound: bridge not running")

	// ErrDeviceActive is returned when a device ID already has a running driver.
	ErrDeviceActive = errors.New("bluesound: device already active")
)
