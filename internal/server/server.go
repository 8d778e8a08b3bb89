package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/pii-sentinel/internal/config"
	"github.com/raaihank/pii-sentinel/internal/logger"
	"github.com/raaihank/pii-sentinel/internal/metrics"
	"github.com/raaihank/pii-sentinel/internal/privacy"
	"github.com/raaihank/pii-sentinel/internal/web"
	"github.com/raaihank/pii-sentinel/internal/websocket"
)

const version = "0.1.0"

// Server exposes the redaction engine over HTTP
type Server struct {
	config    *config.Config
	logger    *logger.Logger
	detector  *privacy.Detector
	metrics   *metrics.Metrics
	limiter   *RateLimiter
	proxies   trustedProxies
	router    *mux.Router
	server    *http.Server
	wsHub     *websocket.Hub
	startedAt time.Time
}

// New creates a new server instance
func New(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (*Server, error) {
	detector, err := privacy.New(cfg.Privacy, log.WithComponent("privacy"))
	if err != nil {
		return nil, fmt.Errorf("failed to create privacy detector: %w", err)
	}

	proxies, err := parseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, err
	}

	wsHub := websocket.NewHub(&websocket.HubConfig{
		BroadcastDetections:  cfg.WebSocket.Enabled && cfg.WebSocket.Events.BroadcastDetections,
		BroadcastConnections: cfg.WebSocket.Enabled && cfg.WebSocket.Events.BroadcastConnections,
		Username:             cfg.WebSocket.Username,
		Password:             cfg.WebSocket.Password,
	}, log.WithComponent("websocket").Logger)

	s := &Server{
		config:    cfg,
		logger:    log.WithComponent("server"),
		detector:  detector,
		metrics:   m,
		limiter:   NewRateLimiter(cfg.Server.RateLimit.Enabled, cfg.Server.RateLimit.RequestsPerMin, cfg.Server.RateLimit.Burst),
		proxies:   proxies,
		router:    mux.NewRouter(),
		wsHub:     wsHub,
		startedAt: time.Now(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)

	if s.config.Metrics.Enabled && s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.wsHub.HandleWebSocket).Methods(http.MethodGet)
		s.router.HandleFunc("/dashboard", web.DashboardHandler(s.config.WebSocket.Path)).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/redact", s.handleRedact).Methods(http.MethodPost)
	api.HandleFunc("/redact/batch", s.handleRedactBatch).Methods(http.MethodPost)
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the hub and the HTTP server until the server stops
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting PII Sentinel server",
		zap.Int("port", s.config.Server.Port),
		zap.Strings("enabled_rules", s.detector.GetEnabledRules()),
	)

	go s.wsHub.Run(ctx)
	go s.limiter.StartCleanupRoutine(ctx)

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping PII Sentinel server")
	return s.server.Shutdown(ctx)
}

// GetWebSocketHub returns the WebSocket hub for broadcasting events
func (s *Server) GetWebSocketHub() *websocket.Hub {
	return s.wsHub
}
