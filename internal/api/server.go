package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/benchlink-core/internal/auth"
	"github.com/nerrad567/benchlink-core/internal/device"
	"github.com/nerrad567/benchlink-core/internal/infrastructure/config"
	"github.com/nerrad567/benchlink-core/internal/infrastructure/logging"
	"github.com/nerrad567/benchlink-core/internal/valve/models"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ConnectionChecker reports broker connectivity. *mqtt.Client satisfies it.
type ConnectionChecker interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Telemetry config.TelemetryConfig
	Logger    *logging.Logger
	Registry  *device.Registry

	// Optional.
	Catalog  *models.Catalog
	History  device.HistoryRepository
	MQTT     ConnectionChecker
	Gatherer prometheus.Gatherer
	DB       *sql.DB

	// Hub, if set, is used instead of creating one. The caller subscribes
	// it to the event bus before devices connect.
	Hub *Hub

	// Signer verifies bearer tokens. Built from Security.JWT when
	// Security.Enabled is set and Signer is nil.
	Signer *auth.Signer

	Version string
}

// Server is the HTTP API server for BenchLink Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	telemetry config.TelemetryConfig
	logger    *logging.Logger
	registry  *device.Registry
	catalog   *models.Catalog
	history   device.HistoryRepository
	mqtt      ConnectionChecker
	gatherer  prometheus.Gatherer
	db        *sql.DB
	signer    *auth.Signer
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc // cancels the hub loop on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Logger and Registry are required; everything else is optional
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing or the JWT secret is weak
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		telemetry: deps.Telemetry,
		logger:    deps.Logger,
		registry:  deps.Registry,
		catalog:   deps.Catalog,
		history:   deps.History,
		mqtt:      deps.MQTT,
		gatherer:  deps.Gatherer,
		db:        deps.DB,
		signer:    deps.Signer,
		version:   deps.Version,
		hub:       deps.Hub,
		startTime: time.Now(),
	}
	if s.wsCfg.Path == "" {
		s.wsCfg.Path = "/ws"
	}
	if s.telemetry.Path == "" {
		s.telemetry.Path = "/metrics"
	}

	if deps.Security.Enabled && s.signer == nil {
		jwtCfg := deps.Security.JWT
		signer, err := auth.NewSigner(jwtCfg.Secret, jwtCfg.Issuer, time.Duration(jwtCfg.AccessTokenTTL)*time.Minute)
		if err != nil {
			return nil, fmt.Errorf("configuring token verification: %w", err)
		}
		s.signer = signer
	}
	if s.signer == nil {
		s.logger.Warn("API authentication disabled; every caller may move valves")
	}

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}

	return s, nil
}

// Hub returns the WebSocket hub so it can be subscribed to the event bus.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler builds the full router. Start uses it; tests drive it through
// httptest.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It builds the router from the devices registered so far, starts the
// WebSocket hub, and launches the HTTP listener in a background goroutine.
// The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for the hub loop (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.Handler(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
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

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
