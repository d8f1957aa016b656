// Package main is the entry point for the Gray Logic Bluesound bridge.
//
// The bridge polls BluOS speakers on the local network, publishes their
// state to MQTT and accepts commands from Gray Logic Core. It also serves
// a small REST/WebSocket API for managing speaker registrations.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-bluesound/internal/api"
	"github.com/nerrad567/gray-logic-bluesound/internal/bluos"
	"github.com/nerrad567/gray-logic-bluesound/internal/bridges/bluesound"
	"github.com/nerrad567/gray-logic-bluesound/internal/device"
	"github.com/nerrad567/gray-logic-bluesound/internal/discovery"
	"github.com/nerrad567/gray-logic-bluesound/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-bluesound/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-bluesound/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-bluesound/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-bluesound/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-bluesound/migrations"
)

// Build information, set via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is the default location of the configuration file.
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// newRootCommand builds the CLI. With no subcommand it runs the bridge.
func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "bluesound-bridge",
		Short:         "Bluesound speaker bridge for Gray Logic",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(),
		"path to the YAML configuration file (env BLUESOUND_CONFIG)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the bridge until interrupted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), configPath)
			},
		},
		newDiscoverCommand(&configPath),
		newStatusCommand(&configPath),
		newVersionCommand(),
	)

	return root
}

// getConfigPath returns the configuration file path.
// Uses BLUESOUND_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BLUESOUND_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// run is the main application logic, separated from main() for testability.
// Returns an error if startup fails; otherwise blocks until ctx is cancelled.
//
//nolint:gocognit,gocyclo // Startup wiring is linear and reads top to bottom
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting Bluesound bridge", "version", version, "commit", commit, "build_date", date)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "bridge_id", cfg.Bridge.ID, "config", configPath)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database connection")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	registry.SetLogger(log.Component("registry"))
	if err := registry.RefreshCache(ctx); err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}
	seeded, err := seedDevices(ctx, registry, cfg.Devices)
	if err != nil {
		return fmt.Errorf("seeding devices: %w", err)
	}
	if seeded > 0 {
		log.Info("devices seeded from configuration", "count", seeded)
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("closing MQTT connection")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT connected", "broker", cfg.MQTT.Broker.Host)
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected", "broker", cfg.MQTT.Broker.Host, "port", cfg.MQTT.Broker.Port)

	var telemetry bluesound.Telemetry
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		telemetry = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	history := device.NewSQLiteStateHistoryRepository(db.DB)
	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))

	bridge, err := bluesound.NewBridge(bluesound.BridgeOptions{
		Config:       cfg,
		MQTTClient:   mqttClient,
		StatusClient: bluos.NewClient(bluos.WithTimeout(cfg.GetHTTPTimeout())),
		Registry:     registry,
		Store:        device.NewSQLiteStoreRepository(db.DB),
		History:      history,
		Telemetry:    telemetry,
		Broadcaster:  hub,
		Logger:       log.Component("bridge"),
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	// abort unwinds the group before returning a startup error.
	abort := func(err error) error {
		stop()
		return errors.Join(err, g.Wait())
	}

	if err := bridge.Start(gctx); err != nil {
		return abort(fmt.Errorf("starting bridge: %w", err))
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()
	log.Info("bridge started", "devices", registry.GetDeviceCount())

	var scanner *discovery.Scanner
	if cfg.Discovery.Enabled {
		scanner, err = discovery.NewScanner(discovery.Options{
			Timeout: time.Duration(cfg.Discovery.Timeout) * time.Second,
			Logger:  log.Component("discovery"),
		})
		if err != nil {
			log.Warn("mDNS discovery unavailable", "error", err)
			scanner = nil
		}
	}

	if cfg.API.Enabled {
		deps := api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log.Component("api"),
			Bridge:  bridge,
			History: history,
			DB:      db,
			Hub:     hub,
			Version: version,
		}
		if scanner != nil {
			deps.Scanner = scanner
		}
		server, apiErr := api.New(deps)
		if apiErr != nil {
			return abort(fmt.Errorf("creating API server: %w", apiErr))
		}
		if apiErr := server.Start(gctx); apiErr != nil {
			return abort(fmt.Errorf("starting API server: %w", apiErr))
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	if scanner != nil {
		watcher := &discoveryWatcher{
			bridge:   bridge,
			registry: registry,
			identity: bluos.NewClient(bluos.WithTimeout(cfg.GetHTTPTimeout())),
			autoAdd:  cfg.Discovery.AutoAdd,
			log:      log.Component("discovery"),
		}
		interval := time.Duration(cfg.Discovery.Interval) * time.Second
		g.Go(func() error {
			if watchErr := scanner.Watch(gctx, interval, watcher.handle); watchErr != nil && !errors.Is(watchErr, context.Canceled) {
				return fmt.Errorf("discovery: %w", watchErr)
			}
			return nil
		})
		log.Info("mDNS discovery started", "interval", interval, "auto_add", cfg.Discovery.AutoAdd)
	}

	if err := healthCheck(gctx, db, mqttClient); err != nil {
		return abort(fmt.Errorf("health check failed: %w", err))
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-gctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("Bluesound bridge stopped")
	return nil
}

// healthCheck verifies the infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	return nil
}

// seedDevices registers devices listed in the config file that the registry
// does not yet know about, by ID or by endpoint. Existing registrations win.
//
// Returns:
//   - int: Number of devices created
//   - error: First create failure
func seedDevices(ctx context.Context, registry *device.Registry, devices []config.DeviceConfig) (int, error) {
	created := 0
	for _, dc := range devices {
		if _, err := registry.GetDevice(ctx, dc.ID); err == nil {
			continue
		} else if !errors.Is(err, device.ErrDeviceNotFound) {
			return created, fmt.Errorf("looking up %s: %w", dc.ID, err)
		}
		if _, ok := registry.FindByEndpoint(dc.Address, dc.Port); ok {
			continue
		}

		dev := &device.Device{
			ID:      dc.ID,
			Name:    dc.Name,
			Address: dc.Address,
			Port:    dc.Port,
			Polling: dc.Polling,
		}
		if dev.Name == "" {
			dev.Name = dc.ID
		}
		if err := registry.CreateDevice(ctx, dev); err != nil {
			return created, fmt.Errorf("creating %s: %w", dc.ID, err)
		}
		created++
	}
	return created, nil
}
