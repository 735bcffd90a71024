package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/eazyy/fulfillment/config"
	"example.com/eazyy/fulfillment/internal/api/handlers"
	"example.com/eazyy/fulfillment/internal/api/middleware"
	"example.com/eazyy/fulfillment/internal/metrics"
	"example.com/eazyy/fulfillment/internal/tracing"
)

// Services are the backends the HTTP handlers call
type Services struct {
	Scans      handlers.ScanSubmitter
	Deliveries handlers.DeliveryRecorder
	Locations  handlers.LocationReporter
	Routes     handlers.RoutePlanner
	// Timeline is nil when search is disabled
	Timeline handlers.TimelineSearcher
}

// Server represents the HTTP server
type Server struct {
	config     config.ServerConfig
	router     *gin.Engine
	httpServer *http.Server
	services   Services
	tracer     tracing.Tracer
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, services Services, tracer tracing.Tracer) *Server {
	server := &Server{
		config:   cfg,
		services: services,
		tracer:   tracer,
	}

	server.router = server.setupRouter()
	server.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      server.router,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	}

	return server
}

// Router exposes the configured engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	if s.config.Mode != "" {
		gin.SetMode(s.config.Mode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics(metrics.GetCollector()))
	if app := s.tracer.Application(); app != nil {
		router.Use(middleware.NewRelicMiddleware(app))
	}
	if s.config.CorsEnabled {
		router.Use(cors.New(corsConfig(s.config.CorsOrigins)))
	}

	handlers.NewDriverHandler(s.services.Scans, s.services.Deliveries, s.services.Locations).RegisterRoutes(router)
	handlers.NewRouteHandler(s.services.Routes).RegisterRoutes(router)
	handlers.NewOrderHandler(s.services.Scans, s.services.Timeline).RegisterRoutes(router)
	handlers.NewMetricsHandler(metrics.GetCollector()).RegisterRoutes(router)

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.Address).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
