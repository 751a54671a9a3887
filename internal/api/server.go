package api

import (
	"context"
	"net/http"
	"time"

	"example.com/backstage/services/taxonomy/config"
	"example.com/backstage/services/taxonomy/internal/api/handlers"
	"example.com/backstage/services/taxonomy/internal/api/middleware"
	"example.com/backstage/services/taxonomy/internal/metrics"
	"example.com/backstage/services/taxonomy/internal/repositories"
	"example.com/backstage/services/taxonomy/internal/search"
	"example.com/backstage/services/taxonomy/internal/services"
	"example.com/backstage/services/taxonomy/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Server represents the HTTP server
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server

	store           repositories.Store
	registryService *services.RegistryService
	eventService    *services.EventService
	auditService    *services.AuditService
	elastic         *search.ElasticClient
	metrics         *metrics.Metrics
	tracer          tracing.Tracer
}

// NewServer creates a new HTTP server. The elastic client may be nil, in
// which case search falls back to the database.
func NewServer(
	cfg config.Config,
	store repositories.Store,
	registryService *services.RegistryService,
	eventService *services.EventService,
	auditService *services.AuditService,
	elastic *search.ElasticClient,
	m *metrics.Metrics,
	tracer tracing.Tracer,
) *Server {
	server := &Server{
		config:          cfg,
		store:           store,
		registryService: registryService,
		eventService:    eventService,
		auditService:    auditService,
		elastic:         elastic,
		metrics:         m,
		tracer:          tracer,
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := server.setupRouter()
	server.router = router

	httpServer := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  cfg.ServerTimeout,
		WriteTimeout: cfg.ServerTimeout,
	}
	server.httpServer = httpServer

	return server
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics(s.metrics))

	metricsHandler := handlers.NewMetricsHandler(s.metrics, s.store, s.tracer)
	metricsHandler.RegisterRoutes(router)

	v1 := router.Group("/api/v1")

	eventHandler := handlers.NewEventHandler(s.eventService, s.tracer)
	eventHandler.RegisterRoutes(v1)

	propertyHandler := handlers.NewPropertyHandler(s.registryService, s.tracer)
	propertyHandler.RegisterRoutes(v1)

	changelogHandler := handlers.NewChangelogHandler(s.auditService, s.tracer)
	changelogHandler.RegisterRoutes(v1)

	searchHandler := handlers.NewSearchHandler(s.elastic, s.eventService, s.registryService, s.tracer)
	searchHandler.RegisterRoutes(v1)

	transferHandler := handlers.NewTransferHandler(s.eventService, s.tracer)
	transferHandler.RegisterRoutes(v1)

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.ServerAddress).Msg("Starting HTTP server")

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
