package ui

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"tpower/adapters/excel"
	"tpower/internal"
	"tpower/internal/config"
	"tpower/internal/errors"
	"tpower/internal/power"
)

// Server represents the HTTP API for sample-size searches
type Server struct {
	router     *gin.Engine
	config     *config.Config
	calculator *power.Calculator
	workbooks  *excel.CurveWriter
	limiter    *rate.Limiter
	metrics    *Metrics
	logger     *internal.Logger
}

// NewServer creates a new API server instance from the application configuration
func NewServer(cfg *config.Config) *Server {
	gin.SetMode(cfg.Server.GinMode)

	metrics := NewMetrics()
	logger := internal.DefaultLogger.With("ui")
	s := &Server{
		router:     gin.New(),
		config:     cfg,
		calculator: power.NewCalculator().WithObserver(metrics).WithLogger(logger.With("ui.power")),
		workbooks:  excel.NewCurveWriter(),
		limiter:    rate.NewLimiter(rate.Limit(cfg.Server.RateLimitRPS), cfg.Server.RateLimitBurst),
		metrics:    metrics,
		logger:     logger,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupRoutes registers the API, health and metrics endpoints
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := s.router.Group("/api/v1", s.rateLimit())
	{
		api.POST("/one-sample", s.handleOneSample)
		api.POST("/two-sample", s.handleTwoSample)
		api.POST("/curve", s.handleCurve)
		api.GET("/plot.png", s.handlePlot)
	}
}

// Handler returns the underlying http.Handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on the configured port until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.config.Server.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "graceful shutdown failed")
	}
	return nil
}
