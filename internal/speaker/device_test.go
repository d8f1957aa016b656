package speaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-bluesound/internal/bluos"
)

const (
	testAddress = "10.0.0.5"
	testPort    = 11000
	waitFor     = 2 * time.Second
	tickEvery   = 2 * time.Millisecond
)

var errUnreachable = errors.New("dial tcp 10.0.0.5:11000: connect: no route to host")

func newTestDevice(t *testing.T, client StatusClient, host Host, mutate func(*Options)) *Device {
	t.Helper()

	opts := Options{
		ID:           "speaker-1",
		Settings:     Settings{Address: testAddress, Port: testPort, Polling: 5 * time.Millisecond},
		Client:       client,
		Host:         host,
		PingInterval: 10 * time.Millisecond,
		FetchTimeout: time.Second,
	}
	if mutate != nil {
		mutate(&opts)
	}

	d, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(d.Stop)
	return d
}

func TestNew_Validation(t *testing.T) {
	client := &mockClient{}
	host := newFakeHost()
	valid := Settings{Address: testAddress, Port: testPort, Polling: time.Second}

	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{"missing id", Options{Settings: valid, Client: client, Host: host}, nil},
		{"missing client", Options{ID: "a", Settings: valid, Host: host}, nil},
		{"missing host", Options{ID: "a", Settings: valid, Client: client}, nil},
		{"no address", Options{ID: "a", Settings: Settings{Port: 1, Polling: time.Second}, Client: client, Host: host}, ErrInvalidSettings},
		{"bad port", Options{ID: "a", Settings: Settings{Address: "x", Port: 70000, Polling: time.Second}, Client: client, Host: host}, ErrInvalidSettings},
		{"zero polling", Options{ID: "a", Settings: Settings{Address: "x", Port: 1}, Client: client, Host: host}, ErrInvalidSettings},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	d, err := New(Options{ID: "a", Settings: valid, Client: client, Host: host})
	require.NoError(t, err)
	assert.Equal(t, ModePolling, d.Mode())
	assert.Equal(t, DefaultPingInterval, d.pingInterval)
	assert.Equal(t, "a", d.ID())
}

func TestDevice_PollReconcilesIntoHost(t *testing.T) {
	client := &mockClient{}
	client.On("FetchStatus", mock.Anything, testAddress, testPort).Return(bluos.Status{
		State: bluos.StatePlay, Volume: 45, Artist: "X", Track: "Y", Album: "Z", Service: "Qobuz",
	}, nil)

	host := newFakeHost()
	d := newTestDevice(t, client, host, nil)
	require.NoError(t, d.Start(context.Background()))

	require.Eventually(t, func() bool {
		return d.State().Playing
	}, waitFor, tickEvery)

	v, _ := host.Capability(CapabilityVolume)
	assert.InDelta(t, 0.45, v, 1e-9)
	assert.Equal(t, "Qobuz", host.storeValue(StoreService))
	assert.Equal(t, []string{TriggerStartPlaying, TriggerArtistChanged, TriggerTrackChanged}, host.triggerNames())

	available, _ := host.isAvailable()
	assert.True(t, available)
	assert.Equal(t, ModePolling, d.Mode())
}

func TestDevice_StartTwice(t *testing.T) {
	client := &mockClient{}
	client.On("FetchStatus", mock.Anything, mock.Anything, mock.Anything).Return(bluos.Status{State: bluos.StateStop}, nil)

	d := newTestDevice(t, client, newFakeHost(), nil)
	require.NoError(t, d.Start(context.Background()))
	assert.Error(t, d.Start(context.Background()))
}

func TestDevice_FetchFailureSwitchesToPing(t *testing.T) {
	client := &mockClient{}
	client.On("FetchStatus", mock.Anything, testAddress, testPort).Return(bluos.Status{}, errUnreachable)

	host := newFakeHost()
	d := newTestDevice(t, client, host, func(o *Options) {
		o.PingInterval = time.Hour
	})
	require.NoError(t, d.Start(context.Background()))

	require.Eventually(t, func() bool {
		return d.Mode() == ModeUnreachable
	}, waitFor, tickEvery)

	available, reason := host.isAvailable()
	assert.False(t, available)
	assert.Equal(t, UnreachableReason, reason)
	assert.False(t, d.State().Available)

	// The poll schedule is gone; the hour-long ping has not fired.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), client.fetches.Load())
}

func TestDevice_PingFailureStaysUnreachable(t *testing.T) {
	client := &mockClient{}
	client.On("FetchStatus", mock.Anything, testAddress, testPort).Return(bluos.Status{}, errUnreachable)

	host := newFakeHost()
	d := newTestDevice(t, client, host, nil)
	require.NoError(t, d.Start(context.Background()))

	require.Eventually(t, func() bool {
		return client.fetches.Load() >= 4
	}, waitFor, tickEvery)

	assert.Equal(t, ModeUnreachable, d.Mode())

	host.mu.Lock()
	transitions := append([]bool(nil), host.availability...)
	host.mu.Unlock()
	// Start marks available, the first failure marks unavailable, pings change nothing.
	assert.Equal(t, []bool{true, false}, transitions)
}

func TestDevice_PingSuccessResumesPolling(t *testing.T) {
	client := &mockClient{}
	client.On("FetchStatus", mock.Anything, testAddress, testPort).Return(bluos.Status{}, errUnreachable).Once()
	client.On("FetchStatus", mock.Anything, testAddress, testPort).Return(bluos.Status{State: bluos.StateStop, Volume: 20}, nil)

	host := newFakeHost()
	d := newTestDevice(t, client, host, nil)
	require.NoError(t, d.Start(context.Background()))

	require.Eventually(t, func() bool {
		available, _ := host.isAvailable()
		return d.Mode() == ModePolling && available && client.fetches.Load() >= 2
	}, waitFor, tickEvery)

	// Back on the poll cadence the next tick reconciles.
	require.Eventually(t, func() bool {
		return d.State().Volume == 0.2
	}, waitFor, tickEvery)
	assert.True(t, d.State().Available)
}

func TestDevice_StopCancelsSchedules(t *testing.T) {
	client := &mockClient{}
	client.On("FetchStatus", mock.Anything, testAddress, testPort).Return(bluos.Status{State: bluos.StateStop}, nil)

	d := newTestDevice(t, client, newFakeHost(), nil)
	require.NoError(t, d.Start(context.Background()))

	require.Eventually(t, func() bool {
		return client.fetches.Load() >= 2
	}, waitFor, tickEvery)

	d.Stop()
	d.Stop()
	assert.Equal(t, ModeStopped, d.Mode())

	calls := client.fetches.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, client.fetches.Load())

	assert.ErrorIs(t, d.Start(context.Background()), ErrStopped)
	assert.ErrorIs(t, d.UpdateSettings(Settings{Address: "x", Port: 1, Polling: time.Second}), ErrStopped)
}

// A fetch that is in flight when the device is removed must not mark it
// unavailable afterwards.
func TestDevice_StopDuringFetchHasNoSideEffects(t *testing.T) {
	entered := make(chan struct{})
	var once sync.Once

	client := &mockClient{}
	client.On("FetchStatus", mock.Anything, testAddress, testPort).
		Run(func(args mock.Arguments) {
			once.Do(func() { close(entered) })
			<-args.Get(0).(context.Context).Done()
		}).
		Return(bluos.Status{}, context.Canceled)

	host := newFakeHost()
	d := newTestDevice(t, client, host, nil)
	require.NoError(t, d.Start(context.Background()))

	select {
	case <-entered:
	case <-time.After(waitFor):
		t.Fatal("fetch never started")
	}
	d.Stop()

	available, _ := host.isAvailable()
	assert.True(t, available)
	assert.Equal(t, ModeStopped, d.Mode())
}

func TestDevice_ParentContextCancel(t *testing.T) {
	client := &mockClient{}
	client.On("FetchStatus", mock.Anything, testAddress, testPort).Return(bluos.Status{State: bluos.StateStop}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	d := newTestDevice(t, client, newFakeHost(), nil)
	require.NoError(t, d.Start(ctx))

	require.Eventually(t, func() bool { return client.fetches.Load() >= 1 }, waitFor, tickEvery)
	cancel()

	// Let the loop observe cancellation, then no further fetches.
	time.Sleep(20 * time.Millisecond)
	calls := client.fetches.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, client.fetches.Load())
}

func TestDevice_UpdateSettings(t *testing.T) {
	client := &mockClient{}
	client.On("FetchStatus", mock.Anything, testAddress, testPort).Return(bluos.Status{State: bluos.StateStop}, nil)
	client.On("FetchStatus", mock.Anything, "10.0.0.9", 11001).Return(bluos.Status{State: bluos.StatePlay, Volume: 10}, nil)

	d := newTestDevice(t, client, newFakeHost(), nil)
	require.NoError(t, d.Start(context.Background()))

	assert.ErrorIs(t, d.UpdateSettings(Settings{}), ErrInvalidSettings)

	next := Settings{Address: "10.0.0.9", Port: 11001, Polling: 3 * time.Millisecond}
	require.NoError(t, d.UpdateSettings(next))
	assert.Equal(t, next, d.Settings())

	require.Eventually(t, func() bool {
		return d.State().Playing
	}, waitFor, tickEvery)
}

func TestDevice_UpdateSettingsConcurrentAfterCancel(t *testing.T) {
	client := &mockClient{}
	client.On("FetchStatus", mock.Anything, testAddress, testPort).Return(bluos.Status{State: bluos.StateStop}, nil)

	d := newTestDevice(t, client, newFakeHost(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Start(ctx))
	cancel()
	time.Sleep(20 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, d.UpdateSettings(Settings{Address: testAddress, Port: testPort, Polling: time.Duration(i+1) * time.Millisecond}))
		}()
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(waitFor):
		t.Fatal("UpdateSettings blocked after the poll loop exited")
	}
}

func TestDevice_StartSeedsFromHost(t *testing.T) {
	client := &mockClient{}
	client.On("FetchStatus", mock.Anything, testAddress, testPort).Return(bluos.Status{
		State: bluos.StatePlay, Volume: 40, Artist: "A", Track: "T", Album: "L",
	}, nil)

	host := newFakeHost()
	host.capabilities[CapabilityPlaying] = true
	host.capabilities[CapabilityVolume] = 0.4
	host.store[StoreState] = "play"
	host.store[StoreArtist] = "A"
	host.store[StoreTrack] = "T"
	host.store[StoreAlbum] = "L"

	d := newTestDevice(t, client, host, nil)
	require.NoError(t, d.Start(context.Background()))

	require.Eventually(t, func() bool { return client.fetches.Load() >= 3 }, waitFor, tickEvery)
	assert.Empty(t, host.triggerNames())
}

func TestDevice_OnChange(t *testing.T) {
	client := &mockClient{}
	client.On("FetchStatus", mock.Anything, testAddress, testPort).Return(bluos.Status{State: bluos.StatePlay, Volume: 50}, nil)

	var mu sync.Mutex
	var seen []State
	var causes []Cause
	d := newTestDevice(t, client, newFakeHost(), func(o *Options) {
		o.OnChange = func(s State, cause Cause) {
			mu.Lock()
			seen = append(seen, s)
			causes = append(causes, cause)
			mu.Unlock()
		}
	})
	require.NoError(t, d.Start(context.Background()))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0
	}, waitFor, tickEvery)

	// Unchanged snapshots do not notify again.
	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, []Cause{CausePoll}, causes)
	assert.True(t, seen[0].Playing)
	assert.InDelta(t, 0.5, seen[0].Volume, 1e-9)
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "polling", ModePolling.String())
	assert.Equal(t, "unreachable", ModeUnreachable.String())
	assert.Equal(t, "stopped", ModeStopped.String())
	assert.Equal(t, "unknown", Mode(9).String())
}
