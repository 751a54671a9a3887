package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/backstage/services/taxonomy/config"
	"example.com/backstage/services/taxonomy/internal/api"
	"example.com/backstage/services/taxonomy/internal/cache"
	"example.com/backstage/services/taxonomy/internal/database"
	"example.com/backstage/services/taxonomy/internal/metrics"
	"example.com/backstage/services/taxonomy/internal/repositories"
	"example.com/backstage/services/taxonomy/internal/search"
	"example.com/backstage/services/taxonomy/internal/services"
	"example.com/backstage/services/taxonomy/internal/tracing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server for the event catalog and property registry`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Initialize database connection and run migrations
	db, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	// Initialize cache
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
	}

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	}

	// Initialize Elasticsearch client
	var elasticClient *search.ElasticClient
	if cfg.Elastic.Enabled {
		elasticClient, err = search.NewElasticClient(cfg.Elastic)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
			elasticClient = nil
		}
	}

	// Initialize metrics
	metricsCollector := metrics.NewMetrics()

	// Initialize store and services
	store := repositories.NewGormStore(db)
	registryService := services.NewRegistryService(store, tracer)

	var indexer services.EventIndexer
	if elasticClient != nil {
		indexer = elasticClient
	}
	var featureCache services.FeatureCache
	if redisCache != nil {
		featureCache = redisCache
	}
	eventService := services.NewEventService(store, indexer, featureCache, tracer)
	auditService := services.NewAuditService(store, tracer)

	// Initialize and start the server
	server := api.NewServer(cfg, store, registryService, eventService, auditService,
		elasticClient, metricsCollector, tracer)

	// Start the server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	// Shutdown the server
	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}
