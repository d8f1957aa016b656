package speaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Options configures a Device.
type Options struct {
	// ID identifies the device in logs and to the host.
	ID string

	Settings Settings
	Client   StatusClient
	Host     Host
	Logger   Logger

	// PingInterval overrides DefaultPingInterval.
	PingInterval time.Duration

	// FetchTimeout bounds each status fetch. Defaults to 5s.
	FetchTimeout time.Duration

	// OnChange, if set, receives the observed state after a reconcile,
	// availability change or successful command altered it. It may be
	// called from the poll goroutine and from command callers concurrently.
	OnChange func(State, Cause)
}

// Device is the driver for one speaker.
type Device struct {
	id           string
	client       StatusClient
	host         Host
	pingInterval time.Duration
	fetchTimeout time.Duration
	onChange     func(State, Cause)

	mu       sync.RWMutex
	state    State
	mode     Mode
	settings Settings
	started  bool

	cmdMu sync.Mutex

	settingsCh chan Settings

	ctx       context.Context
	ctxCancel context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// New validates opts and creates a Device. Call Start to begin polling.
//
// Parameters:
//   - opts: Device options; ID, Client and Host are required
//
// Returns:
//   - *Device: Driver in ModePolling, not yet running
//   - error: If required options are missing or settings are invalid
func New(opts Options) (*Device, error) {
	if opts.ID == "" {
		return nil, errors.New("device id is required")
	}
	if opts.Client == nil {
		return nil, errors.New("status client is required")
	}
	if opts.Host == nil {
		return nil, errors.New("host is required")
	}
	if err := opts.Settings.Validate(); err != nil {
		return nil, err
	}

	d := &Device{
		id:           opts.ID,
		client:       opts.Client,
		host:         opts.Host,
		pingInterval: opts.PingInterval,
		fetchTimeout: opts.FetchTimeout,
		onChange:     opts.OnChange,
		settings:     opts.Settings,
		mode:         ModePolling,
		settingsCh:   make(chan Settings, 1),
		logger:       opts.Logger,
	}
	if d.pingInterval <= 0 {
		d.pingInterval = DefaultPingInterval
	}
	if d.fetchTimeout <= 0 {
		d.fetchTimeout = defaultFetchTimeout
	}
	return d, nil
}

// Validate checks that the settings can be polled.
func (s Settings) Validate() error {
	var errs []error
	if s.Address == "" {
		errs = append(errs, errors.New("address is required"))
	}
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", s.Port))
	}
	if s.Polling <= 0 {
		errs = append(errs, fmt.Errorf("polling interval %s must be positive", s.Polling))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
	}
	return nil
}

// Start seeds the observed state from the host, marks the device available
// and starts the poll loop. The loop runs until ctx is cancelled or Stop is
// called.
func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return errors.New("device already started")
	}
	if d.mode == ModeStopped {
		d.mu.Unlock()
		return ErrStopped
	}
	d.started = true
	d.state = StateFromStore(d.host, d.host)
	d.state.Available = true
	d.ctx, d.ctxCancel = context.WithCancel(ctx)
	interval := d.settings.Polling
	d.mu.Unlock()

	if err := d.host.SetAvailable(); err != nil {
		d.logError("marking device available", err)
	}

	d.wg.Add(1)
	go d.run(d.ctx, interval)

	d.logInfo("speaker driver started", "poll_interval", interval.String())
	return nil
}

// Stop cancels the active schedule and any in-flight fetch. No state
// changes happen after Stop returns. Safe to call more than once.
func (d *Device) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		cancel := d.ctxCancel
		d.mode = ModeStopped
		d.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		d.wg.Wait()

		d.logInfo("speaker driver stopped")
	})
}

// UpdateSettings replaces the connection settings. The poll schedule is
// restarted with the new interval if the device is polling.
func (d *Device) UpdateSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode == ModeStopped {
		return ErrStopped
	}
	d.settings = s

	// Replace any update the loop has not picked up yet. Senders hold d.mu,
	// so the buffer is empty after the drain and the send never blocks.
	select {
	case <-d.settingsCh:
	default:
	}
	d.settingsCh <- s
	return nil
}

// ID returns the device identifier.
func (d *Device) ID() string {
	return d.id
}

// Mode returns the current poller state.
func (d *Device) Mode() Mode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mode
}

// State returns a copy of the observed state.
func (d *Device) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Settings returns the current connection settings.
func (d *Device) Settings() Settings {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.settings
}

// SetLogger replaces the logger.
func (d *Device) SetLogger(logger Logger) {
	d.loggerMu.Lock()
	d.logger = logger
	d.loggerMu.Unlock()
}

// run owns the single active ticker. Switching modes stops the old ticker
// before the new one is created, and each tick completes before the next is
// read, so fetches never overlap.
func (d *Device) run(ctx context.Context, pollInterval time.Duration) {
	defer d.wg.Done()

	mode := ModePolling
	ticker := time.NewTicker(pollInterval)
	defer func() { ticker.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return

		case s := <-d.settingsCh:
			pollInterval = s.Polling
			if mode == ModePolling {
				ticker.Reset(pollInterval)
			}

		case <-ticker.C:
			next := d.tick(ctx, mode)
			if next == mode {
				continue
			}

			ticker.Stop()
			interval := pollInterval
			if next == ModeUnreachable {
				interval = d.pingInterval
			}

			d.mu.Lock()
			if d.mode == ModeStopped {
				d.mu.Unlock()
				return
			}
			d.mode = next
			d.mu.Unlock()

			mode = next
			ticker = time.NewTicker(interval)
			d.logInfo("speaker mode changed", "mode", mode.String(), "interval", interval.String())
		}
	}
}

// tick performs one fetch and returns the mode for the next tick.
func (d *Device) tick(ctx context.Context, mode Mode) Mode {
	settings := d.Settings()

	fetchCtx, cancel := context.WithTimeout(ctx, d.fetchTimeout)
	status, err := d.client.FetchStatus(fetchCtx, settings.Address, settings.Port)
	cancel()

	// Removed while the fetch was in flight.
	if ctx.Err() != nil {
		return mode
	}

	switch mode {
	case ModeUnreachable:
		if err != nil {
			d.logDebug("ping failed", "error", err.Error())
			return ModeUnreachable
		}
		d.markAvailable()
		return ModePolling

	default:
		if err != nil {
			d.logWarn("status fetch failed", "address", settings.Address, "port", settings.Port, "error", err.Error())
			d.markUnavailable()
			return ModeUnreachable
		}

		d.mu.Lock()
		wasAvailable := d.state.Available
		d.mu.Unlock()
		if !wasAvailable {
			d.markAvailable()
		}

		d.mu.Lock()
		next, changes := Reconcile(d.state, status)
		d.state = next
		d.mu.Unlock()

		if !changes.Empty() {
			d.apply(changes)
			d.notify(CausePoll)
		}
		return ModePolling
	}
}

// apply writes reconcile side effects to the host. Capability and store
// writes happen before triggers so listeners observe the new values.
func (d *Device) apply(ch Changes) {
	for _, c := range ch.Capabilities {
		if err := d.host.SetCapability(c.Name, c.Value); err != nil {
			d.logError("setting capability "+c.Name, err)
		}
	}
	for _, s := range ch.Store {
		if err := d.host.SetStoreValue(s.Key, s.Value); err != nil {
			d.logError("writing store value "+s.Key, err)
		}
	}
	for _, t := range ch.Triggers {
		if err := d.host.Trigger(t.Name, t.Tokens); err != nil {
			d.logError("firing trigger "+t.Name, err)
		}
	}
}

func (d *Device) markAvailable() {
	d.mu.Lock()
	d.state.Available = true
	d.mu.Unlock()

	if err := d.host.SetAvailable(); err != nil {
		d.logError("marking device available", err)
	}
	d.logInfo("speaker reachable")
	d.notify(CauseAvailability)
}

func (d *Device) markUnavailable() {
	d.mu.Lock()
	d.state.Available = false
	d.mu.Unlock()

	if err := d.host.SetUnavailable(UnreachableReason); err != nil {
		d.logError("marking device unavailable", err)
	}
	d.notify(CauseAvailability)
}

func (d *Device) notify(cause Cause) {
	if d.onChange != nil {
		d.onChange(d.State(), cause)
	}
}

func (d *Device) currentLogger() Logger {
	d.loggerMu.RLock()
	defer d.loggerMu.RUnlock()
	return d.logger
}

func (d *Device) logInfo(msg string, keysAndValues ...any) {
	if logger := d.currentLogger(); logger != nil {
		logger.Info(msg, append([]any{"device_id", d.id}, keysAndValues...)...)
	}
}

func (d *Device) logWarn(msg string, keysAndValues ...any) {
	if logger := d.currentLogger(); logger != nil {
		logger.Warn(msg, append([]any{"device_id", d.id}, keysAndValues...)...)
	}
}

func (d *Device) logDebug(msg string, keysAndValues ...any) {
	if logger := d.currentLogger(); logger != nil {
		logger.Debug(msg, append([]any{"device_id", d.id}, keysAndValues...)...)
	}
}

func (d *Device) logError(msg string, err error) {
	if logger := d.currentLogger(); logger != nil {
		logger.Error(msg, "device_id", d.id, "error", err)
	}
}
