// Package server hosts the filesystem worker behind gin: the websocket
// endpoint bridges dial, a health check and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/shared/paths"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/worker"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/ws"
)

// Server is the worker process: the websocket endpoint the bridge dials,
// plus health and metrics.
type Server struct {
	router  *gin.Engine
	http    *http.Server
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
	started time.Time
}

// NewServer creates a worker server instance.
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	base := logging.OrNop(logger)
	logger = base.Named("server")

	sandbox, err := paths.NewSandbox(cfg.Worker.Root)
	if err != nil {
		return nil, fmt.Errorf("invalid worker root: %w", err)
	}

	logger.Info("Initializing filesystem worker",
		zap.String("host", cfg.Worker.Host),
		zap.String("port", cfg.Worker.Port),
		zap.String("root", sandbox.Root),
	)

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	tracer := tracing.New(base)
	service := worker.NewService(sandbox, base)
	wsHandler := ws.NewHandler(service, cfg.Worker.CompressThreshold, base, metrics).WithTracer(tracer)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(tracing.Middleware(tracer))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
			zap.Bool("global", cfg.RateLimit.Global),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		if cfg.RateLimit.Global {
			router.Use(middleware.GlobalRateLimit(limits))
		} else {
			router.Use(middleware.RateLimit(limits))
		}
	}

	s := &Server{
		router:  router,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
		tracer:  tracer,
		started: time.Now(),
	}

	router.GET("/health", s.health)
	router.GET("/ws", wsHandler.HandleConnection)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Gatherer(), promhttp.HandlerOpts{})))

	s.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.Worker.Host, cfg.Worker.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Worker initialized successfully")
	return s, nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"root":   s.config.Worker.Root,
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// Metrics returns the worker's metrics.
func (s *Server) Metrics() *monitoring.Metrics { return s.metrics }

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
// Hijacked websocket connections are not tracked by net/http and end when
// the process exits.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	err := s.http.Shutdown(ctx)
	s.tracer.Close()
	_ = s.logger.Sync()
	return err
}
