package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/backstage/services/taxonomy/config"
	"example.com/backstage/services/taxonomy/internal/database"
	"example.com/backstage/services/taxonomy/internal/repositories"
	"example.com/backstage/services/taxonomy/internal/search"
	"example.com/backstage/services/taxonomy/internal/services"
	"example.com/backstage/services/taxonomy/internal/tracing"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker that keeps the search index in sync with the catalog`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if !cfg.Elastic.Enabled {
		return errors.New("worker requires Elasticsearch to be enabled")
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

	// Initialize database connection
	db, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close(db)

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	}

	// Initialize Elasticsearch client
	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		return errors.Wrap(err, "failed to initialize Elasticsearch client")
	}

	store := repositories.NewGormStore(db)
	eventService := services.NewEventService(store, elasticClient, nil, tracer)

	// Writes index after commit on a best-effort basis, so a periodic full
	// reindex catches anything a failed write left behind.
	g.Go(func() error {
		log.Info().Dur("interval", cfg.Worker.ReindexInterval).Msg("Starting reindex job")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Worker.ReindexInterval),
			gocron.NewTask(func() {
				count, err := eventService.ReindexAll(ctx)
				if err != nil {
					log.Error().Err(err).Msg("Failed to reindex events")
					return
				}
				log.Info().Int("events", count).Msg("Reindex finished")
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		<-ctx.Done()

		return scheduler.Shutdown()
	})

	// Wait for any goroutine to exit
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
