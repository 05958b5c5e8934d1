// File: internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/activity-feed/internal/feed"
	"github.com/smartdevs17/activity-feed/internal/metrics"
	"github.com/smartdevs17/activity-feed/internal/storage"
	"github.com/smartdevs17/activity-feed/pkg/utils"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port          int           `json:"port"`
	Host          string        `json:"host"`
	ReadTimeout   time.Duration `json:"read_timeout"`
	WriteTimeout  time.Duration `json:"write_timeout"`
	EnableMetrics bool          `json:"enable_metrics"`
	EnableHealth  bool          `json:"enable_health"`
	CORSOrigins   []string      `json:"cors_origins"`
	JWTSecret     string        `json:"-"`
	JWTIssuer     string        `json:"jwt_issuer"`
	Version       string        `json:"version"`
}

// HTTPServer represents the HTTP server
type HTTPServer struct {
	config         *ServerConfig
	server         *http.Server
	router         *mux.Router
	feed           *feed.Service
	storage        storage.Storage
	metricsManager *metrics.Manager
	logger         *logrus.Entry
	stopUpdater    chan struct{}
}

// NewHTTPServer creates a new HTTP server. metricsManager may be nil.
func NewHTTPServer(
	config *ServerConfig,
	feedService *feed.Service,
	storage storage.Storage,
	metricsManager *metrics.Manager,
) *HTTPServer {
	server := &HTTPServer{
		config:         config,
		feed:           feedService,
		storage:        storage,
		metricsManager: metricsManager,
		logger:         utils.ComponentLogger("http"),
		stopUpdater:    make(chan struct{}),
	}

	// Setup router
	server.setupRouter()

	server.server = &http.Server{
		Addr:         net.JoinHostPort(config.Host, fmt.Sprint(config.Port)),
		Handler:      server.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return server
}

// setupRouter sets up the HTTP routes
func (s *HTTPServer) setupRouter() {
	s.router = mux.NewRouter()

	// Middleware
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
	if s.metricsManager != nil {
		s.router.Use(s.metricsMiddleware)
	}

	// Operational routes
	api := s.router.PathPrefix("/api/v1").Subrouter()
	if s.config.EnableHealth {
		api.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
		api.HandleFunc("/health/detailed", s.detailedHealthHandler).Methods(http.MethodGet)
	}
	if s.config.EnableMetrics && s.metricsManager != nil {
		s.router.Handle("/metrics", s.metricsManager.Handler()).Methods(http.MethodGet)
		api.HandleFunc("/stats", s.statsHandler).Methods(http.MethodGet)
	}

	// Activity log routes
	activity := s.router.PathPrefix("/api/projects/{team_id:[0-9]+}/activity_log").Subrouter()
	activity.Use(s.authMiddleware)
	activity.HandleFunc("", s.appendActivityHandler).Methods(http.MethodPost, http.MethodOptions)
	activity.HandleFunc("/important_changes", s.importantChangesHandler).Methods(http.MethodGet, http.MethodOptions)
	activity.HandleFunc("/bookmark_activity_notification", s.bookmarkHandler).Methods(http.MethodPost, http.MethodOptions)
	activity.HandleFunc("/unread_count", s.unreadCountHandler).Methods(http.MethodGet, http.MethodOptions)
	activity.HandleFunc("/tombstones", s.tombstoneHandler).Methods(http.MethodPost, http.MethodOptions)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, utils.ErrCodeNotFound, "Route not found", nil)
	})
}

// Handler exposes the router, mainly for tests
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.WithFields(logrus.Fields{
		"address":         s.server.Addr,
		"metrics_enabled": s.config.EnableMetrics,
		"jwt_auth":        s.config.JWTSecret != "",
	}).Info("Starting HTTP server")

	// Update metrics immediately so they appear on first scrape
	if s.metricsManager != nil {
		s.updateMetrics()
		go s.systemMetricsUpdater()
	}

	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("HTTP server error")
		}
	}()
	return nil
}

// systemMetricsUpdater updates system metrics periodically
func (s *HTTPServer) systemMetricsUpdater() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.updateMetrics()
		case <-s.stopUpdater:
			return
		}
	}
}

func (s *HTTPServer) updateMetrics() {
	s.metricsManager.UpdateSystemMetrics()
	if s.storage != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		health := s.storage.GetHealth(ctx)
		s.metricsManager.GetPrometheusMetrics().UpdateComponentHealth("storage", health.Healthy)
	}
}

// Stop stops the HTTP server
func (s *HTTPServer) Stop() error {
	s.logger.Info("Stopping HTTP server")
	close(s.stopUpdater)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}
