package bluos

import "errors"

var (
	// ErrFetchFailed covers network errors, timeouts, non-2xx replies and
	// malformed status documents.
	ErrFetchFailed = errors.New("bluos: status fetch failed")

	// ErrCommandFailed is returned when a control request is not accepted.
	ErrCommandFailed = errors.New("bluos: command failed")

	// ErrInvalidLevel is returned by VolumeCommand for levels outside 0-100.
	ErrInvalidLevel = errors.New("bluos: volume level out of range")
)
