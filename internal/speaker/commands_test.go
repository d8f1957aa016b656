package speaker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-bluesound/internal/bluos"
)

var errRejected = errors.New("bluos: command failed: HTTP 500")

// newCommandDevice returns a device that is never started, so only
// commands reach the client.
func newCommandDevice(t *testing.T) (*Device, *mockClient, *fakeHost) {
	t.Helper()
	client := &mockClient{}
	host := newFakeHost()
	d := newTestDevice(t, client, host, func(o *Options) {
		o.Settings.Polling = time.Hour
	})
	return d, client, host
}

func sentCommands(client *mockClient) []string {
	var cmds []string
	for _, call := range client.Calls {
		if call.Method == "SendCommand" {
			cmds = append(cmds, call.Arguments.String(1))
		}
	}
	return cmds
}

func TestSetPlaying(t *testing.T) {
	tests := []struct {
		playing bool
		want    string
	}{
		{true, bluos.CommandPlay},
		{false, bluos.CommandPause},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			d, client, host := newCommandDevice(t)
			client.On("SendCommand", mock.Anything, tt.want, testAddress, testPort).Return(nil)

			require.NoError(t, d.SetCapability(context.Background(), CapabilityPlaying, tt.playing))
			client.AssertExpectations(t)

			v, ok := host.Capability(CapabilityPlaying)
			require.True(t, ok)
			assert.Equal(t, tt.playing, v)
			assert.Equal(t, tt.playing, d.State().Playing)
		})
	}
}

func TestSetPlaying_DispatchFailure(t *testing.T) {
	d, client, host := newCommandDevice(t)
	client.On("SendCommand", mock.Anything, bluos.CommandPlay, testAddress, testPort).Return(errRejected)

	err := d.SetCapability(context.Background(), CapabilityPlaying, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommandDispatch)
	assert.ErrorIs(t, err, errRejected)

	_, ok := host.Capability(CapabilityPlaying)
	assert.False(t, ok, "failed write must not be recorded")
}

func TestPrevious_SendsTwoBacks(t *testing.T) {
	d, client, _ := newCommandDevice(t)
	client.On("SendCommand", mock.Anything, bluos.CommandBack, testAddress, testPort).Return(nil).Twice()

	require.NoError(t, d.SetCapability(context.Background(), CapabilityPrev, true))
	assert.Equal(t, []string{bluos.CommandBack, bluos.CommandBack}, sentCommands(client))
	client.AssertExpectations(t)
}

func TestPrevious_StopsOnFirstFailure(t *testing.T) {
	d, client, _ := newCommandDevice(t)
	client.On("SendCommand", mock.Anything, bluos.CommandBack, testAddress, testPort).Return(errRejected)

	err := d.Previous(context.Background())
	assert.ErrorIs(t, err, ErrCommandDispatch)
	assert.Equal(t, []string{bluos.CommandBack}, sentCommands(client))
}

func TestNext(t *testing.T) {
	d, client, _ := newCommandDevice(t)
	client.On("SendCommand", mock.Anything, bluos.CommandSkip, testAddress, testPort).Return(nil).Once()

	require.NoError(t, d.SetCapability(context.Background(), CapabilityNext, nil))
	client.AssertExpectations(t)
}

func TestSetVolume(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		wantCmd   string
		wantStore string
		wantLevel float64
	}{
		{"float", 0.65, "Volume?level=65", "0.65", 0.65},
		{"rounded", 0.333, "Volume?level=33", "0.33", 0.33},
		{"json number", json.Number("0.5"), "Volume?level=50", "0.50", 0.5},
		{"int one", 1, "Volume?level=100", "1.00", 1},
		{"zero", 0.0, "Volume?level=0", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, client, host := newCommandDevice(t)
			client.On("SendCommand", mock.Anything, tt.wantCmd, testAddress, testPort).Return(nil).Once()

			require.NoError(t, d.SetCapability(context.Background(), CapabilityVolume, tt.value))
			client.AssertExpectations(t)

			assert.Equal(t, tt.wantStore, host.storeValue(StoreMuteVolume))
			v, _ := host.Capability(CapabilityVolume)
			assert.InDelta(t, tt.wantLevel, v, 1e-9)
			assert.InDelta(t, tt.wantLevel, d.State().Volume, 1e-9)
		})
	}
}

func TestSetVolume_Invalid(t *testing.T) {
	for _, value := range []any{-0.1, 1.01, "half", true} {
		d, client, _ := newCommandDevice(t)

		err := d.SetCapability(context.Background(), CapabilityVolume, value)
		assert.ErrorIs(t, err, ErrInvalidValue, "value %v", value)
		client.AssertNotCalled(t, "SendCommand", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestMuteThenUnmute(t *testing.T) {
	d, client, host := newCommandDevice(t)
	d.state.Volume = 0.65

	client.On("SendCommand", mock.Anything, "Volume?level=0", testAddress, testPort).Return(nil).Once()
	client.On("SendCommand", mock.Anything, "Volume?level=65", testAddress, testPort).Return(nil).Once()

	require.NoError(t, d.SetCapability(context.Background(), CapabilityMute, true))
	assert.Equal(t, "0.65", host.storeValue(StoreMuteVolume))
	assert.True(t, d.State().Muted)
	muted, _ := host.Capability(CapabilityMute)
	assert.Equal(t, true, muted)

	require.NoError(t, d.SetCapability(context.Background(), CapabilityMute, false))
	assert.False(t, d.State().Muted)
	muted, _ = host.Capability(CapabilityMute)
	assert.Equal(t, false, muted)

	assert.Equal(t, []string{"Volume?level=0", "Volume?level=65"}, sentCommands(client))
	client.AssertExpectations(t)
}

func TestMute_AtZeroKeepsRestoreVolume(t *testing.T) {
	d, client, host := newCommandDevice(t)
	d.state.MuteVolume = 0.4
	host.store[StoreMuteVolume] = "0.40"

	client.On("SendCommand", mock.Anything, "Volume?level=0", testAddress, testPort).Return(nil).Once()
	client.On("SendCommand", mock.Anything, "Volume?level=40", testAddress, testPort).Return(nil).Once()

	require.NoError(t, d.SetMute(context.Background(), true))
	assert.Equal(t, "0.40", host.storeValue(StoreMuteVolume))

	require.NoError(t, d.SetMute(context.Background(), false))
	client.AssertExpectations(t)
}

func TestSetVolumeZero_UnmuteRestoresPriorLevel(t *testing.T) {
	d, client, host := newCommandDevice(t)
	d.state, _ = Reconcile(State{}, bluos.Status{State: bluos.StatePlay, Volume: 30})

	client.On("FetchStatus", mock.Anything, testAddress, testPort).Return(bluos.Status{State: bluos.StatePlay, Volume: 0}, nil)
	client.On("SendCommand", mock.Anything, "Volume?level=0", testAddress, testPort).Return(nil).Once()
	client.On("SendCommand", mock.Anything, "Volume?level=30", testAddress, testPort).Return(nil).Once()

	require.NoError(t, d.SetCapability(context.Background(), CapabilityVolume, 0.0))
	assert.Equal(t, "0.30", host.storeValue(StoreMuteVolume))

	// The next poll reports the player at zero.
	assert.Equal(t, ModePolling, d.tick(context.Background(), ModePolling))
	assert.True(t, d.State().Muted)
	assert.InDelta(t, 0.3, d.State().MuteVolume, 1e-9)

	require.NoError(t, d.SetCapability(context.Background(), CapabilityMute, false))
	assert.Equal(t, []string{"Volume?level=0", "Volume?level=30"}, sentCommands(client))
	assert.InDelta(t, 0.3, d.State().Volume, 1e-9)
	client.AssertExpectations(t)
}

func TestUnmute_NoRestoreVolume(t *testing.T) {
	d, client, _ := newCommandDevice(t)

	err := d.SetCapability(context.Background(), CapabilityMute, false)
	assert.ErrorIs(t, err, ErrNoRestoreVolume)
	client.AssertNotCalled(t, "SendCommand", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSetCapability_Errors(t *testing.T) {
	d, _, _ := newCommandDevice(t)
	ctx := context.Background()

	assert.ErrorIs(t, d.SetCapability(ctx, "speaker_shuffle", true), ErrUnknownCapability)
	assert.ErrorIs(t, d.SetCapability(ctx, CapabilityPlaying, "yes"), ErrInvalidValue)
	assert.ErrorIs(t, d.SetCapability(ctx, CapabilityMute, 1), ErrInvalidValue)
}

func TestCommandsAfterStop(t *testing.T) {
	d, client, _ := newCommandDevice(t)
	d.Stop()

	assert.ErrorIs(t, d.Next(context.Background()), ErrStopped)
	client.AssertNotCalled(t, "SendCommand", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
