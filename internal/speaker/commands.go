package speaker

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/nerrad567/gray-logic-bluesound/internal/bluos"
)

// SetCapability executes a host write to a named capability.
//
// Parameters:
//   - ctx: Bounds the command round trips
//   - name: One of the Capability* constants
//   - value: bool for speaker_playing and volume_mute, a number in [0, 1]
//     for volume_set, ignored for speaker_prev and speaker_next
//
// Returns:
//   - error: ErrUnknownCapability, ErrInvalidValue, ErrNoRestoreVolume,
//     ErrStopped, or ErrCommandDispatch wrapping the player's error
func (d *Device) SetCapability(ctx context.Context, name string, value any) error {
	switch name {
	case CapabilityPlaying:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%w: %s expects a bool, got %T", ErrInvalidValue, name, value)
		}
		return d.SetPlaying(ctx, b)

	case CapabilityPrev:
		return d.Previous(ctx)

	case CapabilityNext:
		return d.Next(ctx)

	case CapabilityVolume:
		v, err := toFloat(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidValue, name, err)
		}
		return d.SetVolume(ctx, v)

	case CapabilityMute:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%w: %s expects a bool, got %T", ErrInvalidValue, name, value)
		}
		return d.SetMute(ctx, b)

	default:
		return fmt.Errorf("%w: %s", ErrUnknownCapability, name)
	}
}

// SetPlaying sends Play or Pause.
func (d *Device) SetPlaying(ctx context.Context, playing bool) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	cmd := bluos.CommandPause
	if playing {
		cmd = bluos.CommandPlay
	}
	if err := d.send(ctx, cmd); err != nil {
		return err
	}

	d.mu.Lock()
	d.state.Playing = playing
	d.mu.Unlock()
	d.recordCapability(CapabilityPlaying, playing)
	return nil
}

// Previous goes to the previous track. A single Back restarts the current
// track, so two are sent in sequence.
func (d *Device) Previous(ctx context.Context) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	for n := 0; n < 2; n++ {
		if err := d.send(ctx, bluos.CommandBack); err != nil {
			return err
		}
	}
	return nil
}

// Next skips to the next track.
func (d *Device) Next(ctx context.Context) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	return d.send(ctx, bluos.CommandSkip)
}

// SetVolume sets the volume to a fraction in [0, 1], rounded to two
// decimals. A non-zero level is remembered as the mute-restore volume.
func (d *Device) SetVolume(ctx context.Context, volume float64) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	return d.setVolume(ctx, volume)
}

// SetMute mutes by sending volume 0 after remembering the current volume,
// or unmutes by restoring the remembered volume.
func (d *Device) SetMute(ctx context.Context, muted bool) error {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()

	if !muted {
		restore := d.State().MuteVolume
		if restore <= 0 {
			return ErrNoRestoreVolume
		}
		if err := d.setVolume(ctx, restore); err != nil {
			return err
		}
		d.mu.Lock()
		d.state.Muted = false
		d.mu.Unlock()
		d.recordCapability(CapabilityMute, false)
		return nil
	}

	if current := d.State().Volume; current > 0 {
		d.rememberVolume(current)
	}

	cmd, err := bluos.VolumeCommand(0)
	if err != nil {
		return err
	}
	if err := d.send(ctx, cmd); err != nil {
		return err
	}

	d.mu.Lock()
	d.state.Muted = true
	d.mu.Unlock()
	d.recordCapability(CapabilityMute, true)
	return nil
}

// setVolume is SetVolume without the command lock.
func (d *Device) setVolume(ctx context.Context, volume float64) error {
	if math.IsNaN(volume) || volume < 0 || volume > 1 {
		return fmt.Errorf("%w: volume %v outside [0, 1]", ErrInvalidValue, volume)
	}
	volume = math.Round(volume*100) / 100

	switch current := d.State().Volume; {
	case volume > 0:
		d.rememberVolume(volume)
	case current > 0:
		// Setting zero mutes; keep the level to restore.
		d.rememberVolume(current)
	}

	cmd, err := bluos.VolumeCommand(int(math.Round(volume * 100)))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	if err := d.send(ctx, cmd); err != nil {
		return err
	}

	d.mu.Lock()
	d.state.Volume = volume
	d.mu.Unlock()
	d.recordCapability(CapabilityVolume, volume)
	return nil
}

func (d *Device) rememberVolume(volume float64) {
	d.mu.Lock()
	d.state.MuteVolume = volume
	d.mu.Unlock()

	if err := d.host.SetStoreValue(StoreMuteVolume, formatVolume(volume)); err != nil {
		d.logError("writing store value "+StoreMuteVolume, err)
	}
}

func (d *Device) recordCapability(name string, value any) {
	if err := d.host.SetCapability(name, value); err != nil {
		d.logError("setting capability "+name, err)
	}
	d.notify(CauseCommand)
}

// send forwards one command path to the player.
func (d *Device) send(ctx context.Context, cmd string) error {
	if d.Mode() == ModeStopped {
		return ErrStopped
	}

	settings := d.Settings()
	if err := d.client.SendCommand(ctx, cmd, settings.Address, settings.Port); err != nil {
		d.logWarn("command failed", "command", cmd, "error", err.Error())
		return fmt.Errorf("%w: %s: %w", ErrCommandDispatch, cmd, err)
	}
	d.logDebug("command sent", "command", cmd)
	return nil
}

// toFloat accepts the numeric types JSON and MQTT payloads decode into.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
