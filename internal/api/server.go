package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/netutil"

	"github.com/nerrad567/gray-logic-bluesound/internal/bridges/bluesound"
	"github.com/nerrad567/gray-logic-bluesound/internal/device"
	"github.com/nerrad567/gray-logic-bluesound/internal/discovery"
	"github.com/nerrad567/gray-logic-bluesound/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-bluesound/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-bluesound/internal/infrastructure/logging"
)

const (
	// gracefulShutdownTimeout is the maximum time to wait for in-flight
	// requests to complete during shutdown.
	gracefulShutdownTimeout = 10 * time.Second

	// maxConnections caps concurrent HTTP connections.
	maxConnections = 64
)

// SpeakerBridge is the subset of *bluesound.Bridge the API drives.
type SpeakerBridge interface {
	Statuses() []bluesound.DeviceStatus
	Status(id string) (bluesound.DeviceStatus, error)
	Register(ctx context.Context, dev *device.Device) error
	UpdateDevice(ctx context.Context, dev *device.Device) error
	Unregister(ctx context.Context, id string) error
	SetCapability(ctx context.Context, id, name string, value any) error
	Health() (bluesound.HealthStatus, string)
	DeviceCounts() bluesound.DeviceCounts
}

// Scanner runs one mDNS browse. *discovery.Scanner satisfies it.
type Scanner interface {
	Scan(ctx context.Context) ([]discovery.Candidate, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Bridge  SpeakerBridge
	History device.StateHistoryRepository // Optional: history endpoint returns 503 without it
	Scanner Scanner                       // Optional: discovery endpoint returns 503 without it
	DB      *database.DB                  // Optional: connection pool stats in /metrics
	Hub     *Hub                          // If set, the server uses this hub instead of creating its own
	Version string
}

// Server is the HTTP API server for the bridge.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	bridge    SpeakerBridge
	history   device.StateHistoryRepository
	scanner   Scanner
	db        *database.DB
	version   string
	startTime time.Time

	server      *http.Server
	listener    net.Listener
	hub         *Hub
	externalHub bool
	cancel      context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Logger and Bridge are required
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Bridge == nil {
		return nil, errors.New("bridge is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		bridge:    deps.Bridge,
		history:   deps.History,
		scanner:   deps.Scanner,
		db:        deps.DB,
		version:   deps.Version,
		startTime: time.Now(),
	}
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	}
	return s, nil
}

// Start binds the listener and serves in a background goroutine until Close.
//
// Parameters:
//   - ctx: Parent context for the hub
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = netutil.LimitListener(ln, maxConnections)

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}
