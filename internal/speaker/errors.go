package speaker

import "errors"

var (
	// ErrCommandDispatch wraps failures returned by the player for a capability write.
	ErrCommandDispatch = errors.New("speaker: command dispatch failed")

	// ErrInvalidValue is returned when a capability write carries a value of
	// the wrong type or outside its range.
	ErrInvalidValue = errors.New("speaker: invalid capability value")

	// ErrUnknownCapability is returned for writes to capabilities the driver does not expose.
	ErrUnknownCapability = errors.New("speaker: unknown capability")

	// ErrNoRestoreVolume is returned when unmuting without a remembered volume.
	ErrNoRestoreVolume = errors.New("speaker: no mute-restore volume stored")

	// ErrStopped is returned for operations on a device that has been removed.
	ErrStopped = errors.New("speaker: device stopped")

	// ErrInvalidSettings is returned by New for unusable connection settings.
	ErrInvalidSettings = errors.New("speaker: invalid settings")
)
