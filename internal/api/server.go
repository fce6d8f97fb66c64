// Package api exposes the registry over HTTP: project and credit lifecycle
// endpoints plus one route per report. All payloads are JSON.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"gorm.io/gorm"

	"bluecarbon.dev/registry/internal/registry"
	"bluecarbon.dev/registry/internal/report"
	"bluecarbon.dev/registry/pkg/metrics"
)

// Server represents the registry HTTP API server.
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	db         *gorm.DB
	service    *registry.Service
	engine     *report.Engine
	metrics    *metrics.APIMetrics
	config     *ServerConfig
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger
	DB     *gorm.DB

	// HTTP server configuration
	HTTPPort int

	// Optional metrics
	Metrics       *metrics.APIMetrics
	ReportMetrics *metrics.ReportMetrics
}

// NewServer creates a new API Server instance.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.DB == nil {
		return nil, errors.New("database cannot be nil")
	}

	if cfg.HTTPPort <= 0 {
		return nil, errors.New("HTTP port must be positive")
	}

	service, err := registry.NewService(cfg.Logger, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry service: %w", err)
	}

	engine, err := report.NewEngine(&report.Config{
		Logger:  cfg.Logger,
		DB:      cfg.DB,
		Metrics: cfg.ReportMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create reporting engine: %w", err)
	}

	return &Server{
		logger:  cfg.Logger,
		db:      cfg.DB,
		service: service,
		engine:  engine,
		metrics: cfg.Metrics,
		config:  cfg,
	}, nil
}

// Run starts the API server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting API server")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Create HTTP router
	mux := s.Handler()

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting HTTP server", "address", s.httpServer.Addr)

	// Start HTTP server in goroutine
	httpErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(httpErr)
	}()

	s.logger.Info("API server started successfully")

	// Wait for shutdown signal or HTTP error
	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-httpErr:
		if err != nil {
			s.logger.Error("HTTP server error", "error", err)
			return err
		}
	}

	return s.Shutdown()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down API server")

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown error", "error", err)
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		s.logger.Info("HTTP server stopped")
	}

	s.logger.Info("API server shutdown completed successfully")
	return nil
}

// Handler returns the fully routed HTTP handler. Useful for serving and for
// driving the API in-process.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.instrument("root", s.handleRoot))
	mux.HandleFunc("GET /health", s.instrument("health", s.handleHealth))

	mux.HandleFunc("GET /projects", s.instrument("projects_list", s.handleListProjects))
	mux.HandleFunc("GET /projects/{id}", s.instrument("project_get", s.handleGetProject))
	mux.HandleFunc("GET /projects/{id}/history", s.instrument("project_history", s.handleProjectHistory))
	mux.HandleFunc("POST /projects/register", s.instrument("project_register", s.handleRegisterProject))
	mux.HandleFunc("POST /credits/issue", s.instrument("credits_issue", s.handleIssueCredits))
	mux.HandleFunc("POST /credits/retire", s.instrument("credits_retire", s.handleRetireCredits))

	mux.HandleFunc("GET /reports/active-projects", s.instrument("report_active_projects", s.handleReportActiveProjects))
	mux.HandleFunc("GET /reports/total-issued", s.instrument("report_total_issued", s.handleReportTotalIssued))
	mux.HandleFunc("GET /reports/transactions/recent", s.instrument("report_recent_tx", s.handleReportRecentTransactions))
	mux.HandleFunc("GET /reports/users/by-role", s.instrument("report_users_by_role", s.handleReportUsersByRole))
	mux.HandleFunc("GET /reports/plots/count", s.instrument("report_plot_count", s.handleReportPlotCount))
	mux.HandleFunc("GET /reports/plots/by-type", s.instrument("report_plots_by_type", s.handleReportPlotsByType))
	mux.HandleFunc("GET /reports/plots/near", s.instrument("report_plots_near", s.handleReportPlotsNear))
	mux.HandleFunc("GET /reports/ndvi/by-type", s.instrument("report_ndvi_by_type", s.handleReportNDVIByType))
	mux.HandleFunc("GET /reports/ndvi/monthly", s.instrument("report_ndvi_monthly", s.handleReportNDVIMonthly))
	mux.HandleFunc("GET /reports/biomass/trend", s.instrument("report_biomass_trend", s.handleReportBiomassTrend))
	mux.HandleFunc("GET /reports/flux/co2", s.instrument("report_co2_trend", s.handleReportCO2Trend))
	mux.HandleFunc("GET /reports/flux/ch4", s.instrument("report_ch4_trend", s.handleReportCH4Trend))

	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument wraps a handler with request metrics.
func (s *Server) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			h(w, r)
			return
		}

		s.metrics.HTTPRequestsInFlight.Inc()
		defer s.metrics.HTTPRequestsInFlight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)

		s.metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		s.metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	}
}
