// Package server is the HTTP upload API: uploads, file management, profile
// lookup, the tool endpoint, metrics and the websocket event feed.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/raaihank/doc-sanitizer/internal/config"
	"github.com/raaihank/doc-sanitizer/internal/logger"
	"github.com/raaihank/doc-sanitizer/internal/metrics"
	"github.com/raaihank/doc-sanitizer/internal/sanitize"
	"github.com/raaihank/doc-sanitizer/internal/tools"
	"github.com/raaihank/doc-sanitizer/internal/web"
	"github.com/raaihank/doc-sanitizer/internal/websocket"
	"go.uber.org/zap"
)

// Version is reported by /info
var Version = "0.1.0"

const (
	maintenanceInterval = 30 * time.Second
	limiterIdleTimeout  = 10 * time.Minute
)

// Options carries the optional collaborators of a Server
type Options struct {
	Tools   *tools.Registry
	Metrics *metrics.Metrics
}

// Server represents the HTTP upload API
type Server struct {
	config  *config.Config
	logger  *logger.Logger
	app     *sanitize.App
	tools   *tools.Registry
	metrics *metrics.Metrics
	wsHub   *websocket.Hub
	limiter *clientLimiter
	page    http.HandlerFunc
	router  *mux.Router
	server  *http.Server
	started time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the server and wires the event hub to the file store and the pipeline
func New(cfg *config.Config, app *sanitize.App, opts Options, log *logger.Logger) (*Server, error) {
	if app.Files() == nil {
		return nil, errors.New("server requires a file store")
	}

	s := &Server{
		config:  cfg,
		logger:  log.WithComponent("server"),
		app:     app,
		tools:   opts.Tools,
		metrics: opts.Metrics,
		router:  mux.NewRouter(),
		started: time.Now(),
	}

	if cfg.RateLimit.Enabled {
		s.limiter = newClientLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	}

	if cfg.WebSocket.Enabled {
		ws := cfg.WebSocket
		s.wsHub = websocket.NewHub(websocket.HubConfig{
			BroadcastFiles:       ws.Events.BroadcastFiles,
			BroadcastSanitize:    ws.Events.BroadcastSanitize,
			BroadcastSystem:      ws.Events.BroadcastSystem,
			BroadcastConnections: ws.Events.BroadcastConnections,
			MaxConnections:       ws.MaxConnections,
			ReadBufferSize:       ws.ReadBufferSize,
			WriteBufferSize:      ws.WriteBufferSize,
			PingInterval:         ws.PingInterval,
			PongTimeout:          ws.PongTimeout,
			WriteTimeout:         ws.WriteTimeout,
			MaxMessageSize:       ws.MaxMessageSize,
			AllowedOrigins:       ws.AllowedOrigins,
		}, log)
		app.Files().OnEvent(s.wsHub.PublishFileEvent)
		app.OnReport(s.publishReport)

		page, err := web.Dashboard(web.DashboardData{
			Version:       Version,
			WebSocketPath: ws.Path,
			FileTTL:       app.Files().TTL().String(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to render dashboard: %w", err)
		}
		s.page = page
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	if s.metrics != nil {
		s.router.Use(s.metrics.Instrument)
	}
	s.router.Use(s.rateLimitMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)

	s.router.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	s.router.HandleFunc("/files", s.handleListFiles).Methods(http.MethodGet)
	s.router.HandleFunc("/files/{id}", s.handleGetFile).Methods(http.MethodGet)
	s.router.HandleFunc("/files/{id}", s.handleDeleteFile).Methods(http.MethodDelete)
	s.router.HandleFunc("/download/{id}", s.handleDownload).Methods(http.MethodGet)

	s.router.HandleFunc("/profiles", s.handleListProfiles).Methods(http.MethodGet)
	s.router.HandleFunc("/profiles/{ref}", s.handleGetProfile).Methods(http.MethodGet)

	if s.tools != nil {
		s.router.HandleFunc("/tools", s.tools.HandleList).Methods(http.MethodGet)
		s.router.HandleFunc("/tools/call", s.tools.HandleCall).Methods(http.MethodPost)
	}

	if s.metrics != nil && s.config.Metrics.Enabled {
		s.router.Handle(s.config.Metrics.Path, s.metrics.Handler()).Methods(http.MethodGet)
	}

	if s.wsHub != nil {
		s.router.HandleFunc(s.config.WebSocket.Path, s.wsHub.HandleWebSocket).Methods(http.MethodGet)
		s.router.HandleFunc("/", s.page).Methods(http.MethodGet)
	}
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub, nil when disabled
func (s *Server) Hub() *websocket.Hub {
	return s.wsHub
}

// Start blocks serving HTTP. It returns http.ErrServerClosed after Stop.
func (s *Server) Start() error {
	s.logger.Info("Starting doc-sanitizer upload API",
		zap.String("addr", s.server.Addr),
		zap.String("model", s.app.Model()),
		zap.Duration("file_ttl", s.app.Files().TTL()),
		zap.Bool("websocket", s.wsHub != nil),
		zap.Bool("rate_limit", s.limiter != nil),
	)

	return s.server.ListenAndServe()
}

func (s *Server) startBackground() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if s.wsHub != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.wsHub.Run(ctx)
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.maintain(ctx)
	}()
}

// maintain prunes idle rate limit buckets, refreshes gauges and broadcasts system status
func (s *Server) maintain(ctx context.Context) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if s.limiter != nil {
				if n := s.limiter.Cleanup(now.Add(-limiterIdleTimeout)); n > 0 {
					s.logger.Debug("Pruned idle rate limit buckets", zap.Int("count", n))
				}
			}
			status := s.systemStatus()
			if s.metrics != nil {
				s.metrics.SetFilesStored(status.FilesStored)
				s.metrics.SetProfiles(status.Profiles)
			}
			if s.wsHub != nil {
				s.wsHub.BroadcastEvent(websocket.Event{
					Type:      websocket.EventTypeSystemStatus,
					Timestamp: now,
					Data:      status,
				})
			}
		}
	}
}

// Stop gracefully stops the HTTP server, then the background loops
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping doc-sanitizer upload API")
	err := s.server.Shutdown(ctx)

	if s.cancel != nil {
		s.cancel()
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func (s *Server) systemStatus() websocket.SystemStatusEvent {
	status := websocket.SystemStatusEvent{
		Status:      "healthy",
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		FilesStored: len(s.app.Files().List()),
	}
	if profiles, err := s.app.Profiles().List(); err == nil {
		status.Profiles = len(profiles)
	} else {
		status.Status = "degraded"
	}
	if s.wsHub != nil {
		status.ConnectedClients = s.wsHub.ClientCount()
	}
	return status
}

func (s *Server) publishReport(r sanitize.Report) {
	ev := websocket.SanitizeEvent{
		FileID:       r.FileID,
		Filename:     r.Filename,
		Profile:      r.Profile,
		Model:        r.Model,
		SourceType:   r.SourceType,
		Cached:       r.Cached,
		Success:      r.Err == nil,
		ProcessingMS: float64(r.Duration.Microseconds()) / 1000,
	}
	if r.Err != nil {
		ev.Error = r.Err.Error()
	}
	s.wsHub.BroadcastEvent(websocket.Event{Type: websocket.EventTypeSanitize, Data: ev})
}

// Run starts the file reaper and the HTTP server and blocks until ctx is
// cancelled or the listener fails. Shutdown stops HTTP first, then the reaper.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	files := s.app.Files()
	files.Start()
	s.startBackground()

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- s.Start()
	}()

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	case <-ctx.Done():
		s.logger.Info("Shutdown requested")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.Stop(stopCtx); err != nil {
		s.logger.Error("Failed to shutdown server gracefully", zap.Error(err))
		runErr = errors.Join(runErr, err)
	}
	if err := files.Stop(stopCtx); err != nil {
		s.logger.Error("Failed to stop file reaper", zap.Error(err))
		runErr = errors.Join(runErr, err)
	}
	return runErr
}
