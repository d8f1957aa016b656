package device

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-bluesound/internal/speaker"
)

// State history source values.
const (
	StateHistorySourcePoll         = "poll"
	StateHistorySourceCommand      = "command"
	StateHistorySourceAvailability = "availability"
)

// SourceForCause maps a driver change cause to a history source.
func SourceForCause(cause speaker.Cause) string {
	switch cause {
	case speaker.CauseCommand:
		return StateHistorySourceCommand
	case speaker.CauseAvailability:
		return StateHistorySourceAvailability
	default:
		return StateHistorySourcePoll
	}
}

// StateHistoryEntry is one observed-state snapshot.
type StateHistoryEntry struct {
	ID        int64         `json:"id"`
	DeviceID  string        `json:"device_id"`
	State     speaker.State `json:"state"`
	Source    string        `json:"source"`
	CreatedAt time.Time     `json:"created_at"`
}

// StateHistoryRepository stores and retrieves observed-state snapshots.
//
// Implementations must be thread-safe and use UTC timestamps.
type StateHistoryRepository interface {
	// RecordStateChange records one snapshot.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - deviceID: Unique device identifier
	//   - state: Observed state to persist
	//   - source: Origin of the change (poll, command, availability)
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	RecordStateChange(ctx context.Context, deviceID string, state speaker.State, source string) error

	// GetHistory returns up to limit entries, newest first.
	GetHistory(ctx context.Context, deviceID string, limit int) ([]StateHistoryEntry, error)
}
