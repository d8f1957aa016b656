package speaker

import (
	"strconv"

	"github.com/nerrad567/gray-logic-bluesound/internal/bluos"
)

// CapabilityChange is one capability value to publish to the host.
type CapabilityChange struct {
	Name  string
	Value any
}

// StoreChange is one persisted store value to write.
type StoreChange struct {
	Key   string
	Value string
}

// TriggerEvent is one notification to raise.
type TriggerEvent struct {
	Name   string
	Tokens Tokens
}

// Changes is the ordered set of side effects produced by one reconcile.
type Changes struct {
	Capabilities []CapabilityChange
	Store        []StoreChange
	Triggers     []TriggerEvent
}

// Empty reports whether the reconcile produced no side effects.
func (c Changes) Empty() bool {
	return len(c.Capabilities) == 0 && len(c.Store) == 0 && len(c.Triggers) == 0
}

func (c *Changes) capability(name string, value any) {
	c.Capabilities = append(c.Capabilities, CapabilityChange{Name: name, Value: value})
}

func (c *Changes) store(key, value string) {
	c.Store = append(c.Store, StoreChange{Key: key, Value: value})
}

func (c *Changes) trigger(name string, tokens Tokens) {
	c.Triggers = append(c.Triggers, TriggerEvent{Name: name, Tokens: tokens})
}

// Reconcile folds a status snapshot into the previous observed state.
// It is pure: the returned Changes describe what the caller must write to
// the host, in the order the writes should happen.
//
// Parameters:
//   - prev: Last observed state
//   - s: Snapshot just fetched from the player
//
// Returns:
//   - State: New observed state
//   - Changes: Capability, store and trigger side effects
func Reconcile(prev State, s bluos.Status) (State, Changes) {
	next := prev
	var ch Changes

	playing := s.State.IsPlaying()
	if playing != prev.Playing {
		next.Playing = playing
		ch.capability(CapabilityPlaying, playing)
		if playing {
			ch.trigger(TriggerStartPlaying, metadataTokens(s))
		} else {
			ch.trigger(TriggerStopPlaying, Tokens{})
		}
	}

	volume := normalizeVolume(s.Volume)
	if volume != prev.Volume {
		next.Volume = volume
		ch.capability(CapabilityVolume, volume)
	}

	switch {
	case volume == 0 && !prev.Muted:
		next.Muted = true
		ch.capability(CapabilityMute, true)
		if prev.Volume > 0 {
			next.MuteVolume = prev.Volume
			ch.store(StoreMuteVolume, formatVolume(prev.Volume))
		}
	case volume != 0 && prev.Muted:
		next.Muted = false
		ch.capability(CapabilityMute, false)
	}

	if s.State != prev.Transport {
		next.Transport = s.State
		ch.store(StoreState, string(s.State))
	}
	if s.Service != prev.Service {
		next.Service = s.Service
		ch.store(StoreService, s.Service)
	}
	if s.Shuffle != prev.Shuffle {
		next.Shuffle = s.Shuffle
		ch.store(StoreShuffle, formatBool(s.Shuffle))
	}
	if s.Repeat != prev.Repeat {
		next.Repeat = s.Repeat
		ch.store(StoreRepeat, strconv.Itoa(s.Repeat))
	}

	// Metadata from a stopped or paused player is stale.
	if s.State.IsActive() {
		if s.Artist != prev.Artist {
			next.Artist = s.Artist
			ch.store(StoreArtist, s.Artist)
			if s.Artist != bluos.NotAvailable {
				ch.trigger(TriggerArtistChanged, metadataTokens(s))
			}
		}
		if s.Track != prev.Track {
			next.Track = s.Track
			ch.store(StoreTrack, s.Track)
			if s.Track != bluos.NotAvailable {
				ch.trigger(TriggerTrackChanged, metadataTokens(s))
			}
		}
		if s.Album != prev.Album {
			next.Album = s.Album
			ch.store(StoreAlbum, s.Album)
		}
	}

	return next, ch
}

// normalizeVolume converts a 0-100 percentage to a 0.0-1.0 fraction.
func normalizeVolume(percent int) float64 {
	v := float64(percent) / 100
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func formatVolume(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// StateFromStore rebuilds the observed state persisted by a previous run.
// Unparseable values are ignored.
func StateFromStore(caps CapabilityStore, store Store) State {
	var st State

	if v, ok := caps.Capability(CapabilityPlaying); ok {
		st.Playing, _ = v.(bool)
	}
	if v, ok := caps.Capability(CapabilityVolume); ok {
		if f, err := toFloat(v); err == nil {
			st.Volume = f
		}
	}
	if v, ok := caps.Capability(CapabilityMute); ok {
		st.Muted, _ = v.(bool)
	}

	if v, ok := store.StoreValue(StoreMuteVolume); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			st.MuteVolume = f
		}
	}
	if v, ok := store.StoreValue(StoreState); ok {
		st.Transport = bluos.PlayState(v)
	}
	if v, ok := store.StoreValue(StoreService); ok {
		st.Service = v
	}
	if v, ok := store.StoreValue(StoreShuffle); ok {
		st.Shuffle = v == "1"
	}
	if v, ok := store.StoreValue(StoreRepeat); ok {
		if n, err := strconv.Atoi(v); err == nil {
			st.Repeat = n
		}
	}
	if v, ok := store.StoreValue(StoreArtist); ok {
		st.Artist = v
	}
	if v, ok := store.StoreValue(StoreTrack); ok {
		st.Track = v
	}
	if v, ok := store.StoreValue(StoreAlbum); ok {
		st.Album = v
	}
	return st
}
