package speaker

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-bluesound/internal/bluos"
)

// Capability names exposed to the host.
const (
	CapabilityPlaying = "speaker_playing"
	CapabilityPrev    = "speaker_prev"
	CapabilityNext    = "speaker_next"
	CapabilityVolume  = "volume_set"
	CapabilityMute    = "volume_mute"
)

// Capabilities lists every capability a speaker registers.
var Capabilities = []string{
	CapabilityPlaying,
	CapabilityPrev,
	CapabilityNext,
	CapabilityVolume,
	CapabilityMute,
}

// Trigger names raised on reconcile.
const (
	TriggerStartPlaying  = "start_playing"
	TriggerStopPlaying   = "stop_playing"
	TriggerArtistChanged = "artist_changed"
	TriggerTrackChanged  = "track_changed"
)

// Persisted store keys.
const (
	StoreMuteVolume = "mutevol"
	StoreState      = "state"
	StoreService    = "service"
	StoreShuffle    = "shuffle"
	StoreRepeat     = "repeat"
	StoreArtist     = "artist"
	StoreTrack      = "track"
	StoreAlbum      = "album"
)

// UnreachableReason is reported with the unavailable flag.
const UnreachableReason = "Device is unreachable"

// DefaultPingInterval is the probe cadence while a player is unreachable.
const DefaultPingInterval = 63 * time.Second

const defaultFetchTimeout = 5 * time.Second

// Settings are the per-device connection settings.
type Settings struct {
	Address string
	Port    int
	// Polling is the normal poll cadence.
	Polling time.Duration
}

// Tokens is the payload attached to a trigger. Empty for stop_playing.
type Tokens map[string]string

// metadataTokens builds the {artist, track, album} payload.
func metadataTokens(s bluos.Status) Tokens {
	return Tokens{"artist": s.Artist, "track": s.Track, "album": s.Album}
}

// StatusClient fetches status from and sends commands to a player.
// *bluos.Client satisfies it.
type StatusClient interface {
	FetchStatus(ctx context.Context, address string, port int) (bluos.Status, error)
	SendCommand(ctx context.Context, commandPath, address string, port int) error
}

// CapabilityStore is the host's named capability surface for one device.
type CapabilityStore interface {
	Capability(name string) (any, bool)
	SetCapability(name string, value any) error
}

// Store is the host's persisted key/value store for one device.
type Store interface {
	StoreValue(key string) (string, bool)
	SetStoreValue(key, value string) error
}

// Triggers raises named notifications for downstream automations.
type Triggers interface {
	Trigger(name string, tokens Tokens) error
}

// Availability flags the device as reachable or not.
type Availability interface {
	SetAvailable() error
	SetUnavailable(reason string) error
}

// Host bundles the collaborators the host platform provides for one device.
type Host interface {
	CapabilityStore
	Store
	Triggers
	Availability
}

// Logger is the structured logger used by the driver.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Mode is the poller state.
type Mode int

const (
	// ModePolling fetches status at the configured poll interval.
	ModePolling Mode = iota

	// ModeUnreachable probes at the ping interval until the player answers.
	ModeUnreachable

	// ModeStopped is terminal; the device has been removed.
	ModeStopped
)

func (m Mode) String() string {
	switch m {
	case ModePolling:
		return "polling"
	case ModeUnreachable:
		return "unreachable"
	case ModeStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Cause says what altered the observed state.
type Cause string

// Causes passed to Options.OnChange.
const (
	CausePoll         Cause = "poll"
	CauseAvailability Cause = "availability"
	CauseCommand      Cause = "command"
)

// State is the driver's last reconciled view of a player.
type State struct {
	Available bool    `json:"available"`
	Playing   bool    `json:"playing"`
	Volume    float64 `json:"volume"`
	Muted     bool    `json:"muted"`

	// MuteVolume is the volume restored on unmute; zero means none stored.
	MuteVolume float64 `json:"mute_volume"`

	Transport bluos.PlayState `json:"state"`
	Service   string          `json:"service"`
	Shuffle   bool            `json:"shuffle"`
	Repeat    int             `json:"repeat"`
	Artist    string          `json:"artist"`
	Track     string          `json:"track"`
	Album     string          `json:"album"`
}
