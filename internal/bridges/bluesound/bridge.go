package bluesound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-bluesound/internal/device"
	"github.com/nerrad567/gray-logic-bluesound/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-bluesound/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-bluesound/internal/speaker"
)

const (
	// commandTimeout bounds a single MQTT command against a speaker.
	commandTimeout = 10 * time.Second

	// persistTimeout bounds store, history and registry writes made from callbacks.
	persistTimeout = 5 * time.Second
)

// Broadcast channels used for WebSocket subscribers.
const (
	ChannelState = "state"
	ChannelEvent = "event"
)

// Bridge owns the speaker drivers and connects them to MQTT, SQLite,
// InfluxDB and WebSocket subscribers.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg       *config.Config
	version   string
	mqtt      MQTTClient
	status    speaker.StatusClient
	registry  DeviceRegistry
	store     device.StoreRepository
	history   device.StateHistoryRepository
	telemetry Telemetry
	broadcast Broadcaster
	health    *HealthReporter
	qos       byte

	devices   map[string]*managedDevice
	devicesMu sync.RWMutex

	running   bool
	runningMu sync.RWMutex

	// Shutdown coordination
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// managedDevice pairs a running driver with its host and registry record.
type managedDevice struct {
	info   device.Device
	driver *speaker.Device
	host   *deviceHost
}

// MQTTClient is the subset of *mqtt.Client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// DeviceRegistry persists speaker settings. *device.Registry satisfies it.
type DeviceRegistry interface {
	ListDevices() []device.Device
	GetDevice(ctx context.Context, id string) (*device.Device, error)
	FindByEndpoint(address string, port int) (device.Device, bool)
	CreateDevice(ctx context.Context, dev *device.Device) error
	UpdateDevice(ctx context.Context, dev *device.Device) error
	DeleteDevice(ctx context.Context, id string) error
}

// Telemetry receives time-series points. *influxdb.Client satisfies it.
type Telemetry interface {
	WriteSpeakerState(deviceID string, playing bool, volume float64, muted bool)
	WriteSpeakerEvent(deviceID, event, artist, track string)
	WriteAvailability(deviceID string, available bool, reason string)
}

// Broadcaster fans messages out to WebSocket subscribers.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Logger is the structured logger used by the bridge.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Config is required.
	Config *config.Config

	// MQTTClient is required.
	MQTTClient MQTTClient

	// StatusClient talks to the speakers. Required.
	StatusClient speaker.StatusClient

	// Registry is required; it is the source of devices to manage.
	Registry DeviceRegistry

	// Store persists capability and store values. Optional.
	Store device.StoreRepository

	// History records state snapshots. Optional.
	History device.StateHistoryRepository

	// Telemetry and Broadcaster are optional sinks.
	Telemetry   Telemetry
	Broadcaster Broadcaster

	Logger  Logger
	Version string
}

// DeviceStatus is a point-in-time view of one managed speaker.
type DeviceStatus struct {
	Device device.Device `json:"device"`
	State  speaker.State `json:"state"`
	Mode   string        `json:"mode"`
	Reason string        `json:"reason,omitempty"`
}

// NewBridge creates a bridge. Call Start to begin managing devices.
//
// Parameters:
//   - opts: Bridge options; Config, MQTTClient, StatusClient and Registry are required
//
// Returns:
//   - *Bridge: Bridge ready to start
//   - error: If a required option is missing
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.MQTTClient == nil {
		return nil, errors.New("MQTT client is required")
	}
	if opts.StatusClient == nil {
		return nil, errors.New("status client is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("device registry is required")
	}

	b := &Bridge{
		cfg:       opts.Config,
		version:   opts.Version,
		mqtt:      opts.MQTTClient,
		status:    opts.StatusClient,
		registry:  opts.Registry,
		store:     opts.Store,
		history:   opts.History,
		telemetry: opts.Telemetry,
		broadcast: opts.Broadcaster,
		qos:       byte(opts.Config.MQTT.QoS), //nolint:gosec // Validated to 0-2
		devices:   make(map[string]*managedDevice),
		logger:    opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.Config.Bridge.ID,
		Version:   opts.Version,
		Interval:  time.Duration(opts.Config.Bridge.HealthInterval) * time.Second,
		Publisher: opts.MQTTClient,
		Counter:   b,
	})
	b.health.SetLogger(opts.Logger)

	return b, nil
}

// Start subscribes to commands, starts a driver per registered device and
// begins health reporting.
//
// Parameters:
//   - ctx: Parent context; cancelling it stops the drivers
//
// Returns:
//   - error: If the command subscription fails
func (b *Bridge) Start(ctx context.Context) error {
	b.ctx, b.ctxCancel = context.WithCancel(ctx)

	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	if err := b.mqtt.Subscribe(mqtt.Topics{}.AllCommands(), b.qos, b.handleMQTTMessage); err != nil {
		b.ctxCancel()
		return fmt.Errorf("subscribing to commands: %w", err)
	}

	b.runningMu.Lock()
	b.running = true
	b.runningMu.Unlock()

	for _, info := range b.registry.ListDevices() {
		if err := b.startDevice(info); err != nil {
			b.logError("failed to start speaker "+info.ID, err)
		}
	}

	b.health.Start(b.ctx)

	b.logInfo("bluesound bridge started", "devices", b.DeviceCounts().Total)
	return nil
}

// Stop stops every driver and the health reporter. Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.runningMu.Lock()
		b.running = false
		b.runningMu.Unlock()

		b.devicesMu.Lock()
		managed := b.devices
		b.devices = make(map[string]*managedDevice)
		b.devicesMu.Unlock()

		for _, m := range managed {
			m.driver.Stop()
		}

		b.health.Stop()

		if b.ctxCancel != nil {
			b.ctxCancel()
		}
		b.wg.Wait()

		b.logInfo("bluesound bridge stopped")
	})
}

// Register persists a new speaker and starts its driver.
//
// Parameters:
//   - ctx: Context for the registry write
//   - dev: Speaker settings; ID is generated from Name when empty
//
// Returns:
//   - error: Validation or persistence error, or ErrNotRunning
func (b *Bridge) Register(ctx context.Context, dev *device.Device) error {
	if !b.isRunning() {
		return ErrNotRunning
	}
	if err := b.registry.CreateDevice(ctx, dev); err != nil {
		return err
	}
	if err := b.startDevice(*dev); err != nil {
		//nolint:errcheck // Roll back the registry entry for a driver that never ran
		b.registry.DeleteDevice(ctx, dev.ID)
		return err
	}
	return nil
}

// UpdateDevice persists changed settings and hands them to the running driver.
func (b *Bridge) UpdateDevice(ctx context.Context, dev *device.Device) error {
	m, err := b.managed(dev.ID)
	if err != nil {
		return err
	}
	if err := b.registry.UpdateDevice(ctx, dev); err != nil {
		return err
	}
	if err := m.driver.UpdateSettings(dev.Settings()); err != nil {
		return err
	}

	b.devicesMu.Lock()
	m.info = *dev
	b.devicesMu.Unlock()

	b.logInfo("speaker settings updated", "device_id", dev.ID, "address", dev.Address, "polling", dev.Polling)
	return nil
}

// Unregister stops the driver and removes the speaker and its stored data.
func (b *Bridge) Unregister(ctx context.Context, id string) error {
	b.devicesMu.Lock()
	m, ok := b.devices[id]
	delete(b.devices, id)
	b.devicesMu.Unlock()

	if ok {
		m.driver.Stop()
	}
	if err := b.registry.DeleteDevice(ctx, id); err != nil {
		return err
	}

	b.logInfo("speaker removed", "device_id", id)
	return nil
}

// SetCapability writes a capability on one speaker.
//
// Returns:
//   - error: device.ErrDeviceNotFound, or the driver's error (wrapping
//     speaker.ErrUnknownCapability, speaker.ErrInvalidValue,
//     speaker.ErrNoRestoreVolume or speaker.ErrCommandDispatch)
func (b *Bridge) SetCapability(ctx context.Context, id, name string, value any) error {
	m, err := b.managed(id)
	if err != nil {
		return err
	}
	return m.driver.SetCapability(ctx, name, value)
}

// Status returns the current view of one speaker.
func (b *Bridge) Status(id string) (DeviceStatus, error) {
	m, err := b.managed(id)
	if err != nil {
		return DeviceStatus{}, err
	}
	return b.statusOf(m), nil
}

// Statuses returns every managed speaker, ordered by name.
func (b *Bridge) Statuses() []DeviceStatus {
	b.devicesMu.RLock()
	out := make([]DeviceStatus, 0, len(b.devices))
	for _, m := range b.devices {
		out = append(out, b.statusOfLocked(m))
	}
	b.devicesMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Device.Name != out[j].Device.Name {
			return out[i].Device.Name < out[j].Device.Name
		}
		return out[i].Device.ID < out[j].Device.ID
	})
	return out
}

// DeviceCounts reports how many speakers are managed and reachable.
func (b *Bridge) DeviceCounts() DeviceCounts {
	b.devicesMu.RLock()
	defer b.devicesMu.RUnlock()

	counts := DeviceCounts{Total: len(b.devices)}
	for _, m := range b.devices {
		if m.driver.Mode() == speaker.ModeUnreachable {
			counts.Unreachable++
		} else {
			counts.Available++
		}
	}
	return counts
}

// Health returns the status the next health message would carry.
func (b *Bridge) Health() (HealthStatus, string) {
	return b.health.Status()
}

// AnnounceDiscovery publishes speakers found by mDNS, marking those already
// registered with their device ID.
func (b *Bridge) AnnounceDiscovery(found []DiscoveredSpeaker) error {
	for i := range found {
		if dev, ok := b.registry.FindByEndpoint(found[i].Address, found[i].Port); ok {
			found[i].DeviceID = dev.ID
		}
	}

	msg := DiscoveryMessage{
		Timestamp: time.Now().UTC(),
		Bridge:    b.cfg.Bridge.ID,
		Devices:   found,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal discovery message: %w", err)
	}
	return b.mqtt.Publish(mqtt.Topics{}.Discovery(), payload, b.qos, false)
}

// startDevice creates a driver for info and starts it on the bridge context.
func (b *Bridge) startDevice(info device.Device) error {
	b.devicesMu.RLock()
	_, exists := b.devices[info.ID]
	b.devicesMu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s", ErrDeviceActive, info.ID)
	}

	loadCtx, cancel := context.WithTimeout(b.ctx, persistTimeout)
	host := b.newDeviceHost(loadCtx, info.ID)
	cancel()

	id := info.ID
	driver, err := speaker.New(speaker.Options{
		ID:           id,
		Settings:     info.Settings(),
		Client:       b.status,
		Host:         host,
		Logger:       b.currentLogger(),
		PingInterval: b.cfg.GetPingInterval(),
		FetchTimeout: b.cfg.GetHTTPTimeout(),
		OnChange: func(st speaker.State, cause speaker.Cause) {
			b.handleChange(id, st, cause)
		},
	})
	if err != nil {
		return err
	}

	m := &managedDevice{info: info, driver: driver, host: host}

	b.devicesMu.Lock()
	if _, exists := b.devices[id]; exists {
		b.devicesMu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceActive, id)
	}
	b.devices[id] = m
	b.devicesMu.Unlock()

	if err := driver.Start(b.ctx); err != nil {
		b.devicesMu.Lock()
		delete(b.devices, id)
		b.devicesMu.Unlock()
		return err
	}

	b.publishState(m, driver.State())
	b.logInfo("speaker started", "device_id", id, "address", info.Address, "port", info.Port)
	return nil
}

// handleChange fans an observed change out to every sink.
func (b *Bridge) handleChange(id string, st speaker.State, cause speaker.Cause) {
	m, err := b.managed(id)
	if err != nil {
		return
	}

	b.publishState(m, st)

	if b.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := b.history.RecordStateChange(ctx, id, st, device.SourceForCause(cause)); err != nil {
			b.logError("recording state history", err)
		}
		cancel()
	}

	if b.telemetry != nil {
		if cause == speaker.CauseAvailability {
			b.telemetry.WriteAvailability(id, st.Available, m.host.unavailableReason())
		} else {
			b.telemetry.WriteSpeakerState(id, st.Playing, st.Volume, st.Muted)
		}
	}
}

// publishState publishes a retained state message and broadcasts it.
func (b *Bridge) publishState(m *managedDevice, st speaker.State) {
	b.devicesMu.RLock()
	info := m.info
	b.devicesMu.RUnlock()

	reason := ""
	if !st.Available {
		reason = m.host.unavailableReason()
	}
	msg := NewStateMessage(info.ID, info.Address, st, reason)

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("marshal state message", err)
		return
	}
	if err := b.mqtt.Publish(mqtt.Topics{}.State(info.ID), payload, b.qos, true); err != nil {
		b.logError("publish state", err)
	}

	if b.broadcast != nil {
		b.broadcast.Broadcast(ChannelState, msg)
	}
}

// publishEvent publishes a flow trigger as an event message.
func (b *Bridge) publishEvent(id, name string, tokens speaker.Tokens) error {
	msg := NewEventMessage(id, name, tokens)
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event message: %w", err)
	}

	if b.broadcast != nil {
		b.broadcast.Broadcast(ChannelEvent, msg)
	}
	if b.telemetry != nil {
		b.telemetry.WriteSpeakerEvent(id, name, tokens["artist"], tokens["track"])
	}

	return b.mqtt.Publish(mqtt.Topics{}.Event(id), payload, b.qos, false)
}

// persist writes one store value through to SQLite.
func (b *Bridge) persist(id, key, value string) error {
	if b.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return b.store.Set(ctx, id, key, value)
}

// handleMQTTMessage handles one command from Core.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) error {
	if !b.beginCommand() {
		return nil
	}
	defer b.wg.Done()

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logError("invalid command message", err)
		return nil
	}
	if cmd.DeviceID == "" {
		cmd.DeviceID = mqtt.DeviceIDFromTopic(topic)
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	b.logDebug("command received", "device_id", cmd.DeviceID, "command", cmd.Command, "id", cmd.ID)

	if cmd.DeviceID == "" || cmd.Command == "" {
		b.publishAck(NewAckError(cmd, ErrCodeInvalidCommand, "device_id and command are required"))
		return nil
	}

	ctx, cancel := context.WithTimeout(b.commandContext(), commandTimeout)
	defer cancel()

	if err := b.SetCapability(ctx, cmd.DeviceID, cmd.Command, cmd.Value()); err != nil {
		b.logInfo("command failed", "device_id", cmd.DeviceID, "command", cmd.Command, "error", err)
		b.publishAck(NewAckError(cmd, ackCode(err), err.Error()))
		return nil
	}

	b.publishAck(NewAckMessage(cmd))
	return nil
}

// ackCode maps a command error to an acknowledgment error code.
func ackCode(err error) string {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound), errors.Is(err, speaker.ErrStopped):
		return ErrCodeNotConfigured
	case errors.Is(err, speaker.ErrUnknownCapability):
		return ErrCodeInvalidCommand
	case errors.Is(err, speaker.ErrInvalidValue), errors.Is(err, speaker.ErrNoRestoreVolume):
		return ErrCodeInvalidParameters
	case errors.Is(err, speaker.ErrCommandDispatch):
		return ErrCodeDeviceUnreachable
	default:
		return ErrCodeBridgeError
	}
}

func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("marshal ack", err)
		return
	}
	if err := b.mqtt.Publish(mqtt.Topics{}.Ack(ack.DeviceID), payload, b.qos, false); err != nil {
		b.logError("publish ack", err)
	}
}

func (b *Bridge) commandContext() context.Context {
	if b.ctx != nil {
		return b.ctx
	}
	return context.Background()
}

func (b *Bridge) managed(id string) (*managedDevice, error) {
	b.devicesMu.RLock()
	defer b.devicesMu.RUnlock()

	m, ok := b.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", device.ErrDeviceNotFound, id)
	}
	return m, nil
}

func (b *Bridge) statusOf(m *managedDevice) DeviceStatus {
	b.devicesMu.RLock()
	defer b.devicesMu.RUnlock()
	return b.statusOfLocked(m)
}

func (b *Bridge) statusOfLocked(m *managedDevice) DeviceStatus {
	st := m.driver.State()
	ds := DeviceStatus{
		Device: m.info,
		State:  st,
		Mode:   m.driver.Mode().String(),
	}
	if !st.Available {
		ds.Reason = m.host.unavailableReason()
	}
	return ds
}

// beginCommand registers an in-flight command with the wait group. It
// reports false once Stop has begun, so Add never races Stop's Wait.
func (b *Bridge) beginCommand() bool {
	b.runningMu.RLock()
	defer b.runningMu.RUnlock()
	if !b.running {
		return false
	}
	b.wg.Add(1)
	return true
}

func (b *Bridge) isRunning() bool {
	b.runningMu.RLock()
	defer b.runningMu.RUnlock()
	return b.running
}

// SetLogger sets the logger for the bridge and its health reporter.
// Drivers started afterwards inherit it.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	b.health.SetLogger(logger)
}

func (b *Bridge) currentLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.currentLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if logger := b.currentLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.currentLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
