package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/sqlgate/internal/audit"
	"github.com/nerrad567/sqlgate/internal/infrastructure/config"
	"github.com/nerrad567/sqlgate/internal/infrastructure/database"
	"github.com/nerrad567/sqlgate/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ChangePublisher announces committed row changes. *mqtt.Client satisfies it.
type ChangePublisher interface {
	PublishChange(table, op string, id any) error
}

// RequestRecorder receives one sample per HTTP request.
// *influxdb.Client satisfies it.
type RequestRecorder interface {
	WriteRequest(method, route string, status int, duration time.Duration)
}

// connectionReporter is implemented by collaborators that hold a broker or
// server connection, for the metrics endpoint.
type connectionReporter interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Security config.SecurityConfig
	MCP      config.MCPConfig
	Database database.Config
	Logger   *logging.Logger

	// MCPHandler, when set and MCP is enabled, is mounted at MCP.Path.
	MCPHandler http.Handler
	// MCPToken guards the MCP mount. Empty falls back to Security.BearerToken.
	MCPToken string

	// Optional collaborators. Nil disables each one.
	Audit   *audit.Writer
	Changes ChangePublisher
	Metrics RequestRecorder

	Version string
}

// Server is the sqlgate HTTP API.
//
// Every request opens its own database.DB through database.Use, so handlers
// never share a connection. The server is created with New() and started
// with Start().
type Server struct {
	cfg        config.APIConfig
	secCfg     config.SecurityConfig
	mcpCfg     config.MCPConfig
	dbCfg      database.Config
	logger     *logging.Logger
	mcpHandler http.Handler
	mcpToken   string
	audit      *audit.Writer
	changes    ChangePublisher
	metrics    RequestRecorder
	version    string
	startTime  time.Time
	server     *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, database config)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Database.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	mcpToken := deps.MCPToken
	if mcpToken == "" {
		mcpToken = deps.Security.BearerToken
	}

	return &Server{
		cfg:        deps.Config,
		secCfg:     deps.Security,
		mcpCfg:     deps.MCP,
		dbCfg:      deps.Database,
		logger:     deps.Logger,
		mcpHandler: deps.MCPHandler,
		mcpToken:   mcpToken,
		audit:      deps.Audit,
		changes:    deps.Changes,
		metrics:    deps.Metrics,
		version:    deps.Version,
		startTime:  time.Now(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
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

// withDB runs fn against a fresh database.DB scoped to the request.
func (s *Server) withDB(r *http.Request, fn func(db *database.DB) error) error {
	return database.Use(r.Context(), s.dbCfg, fn)
}
