// Package main provides the entry point for the caia-extract server
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Caia-Tech/caia-extract/internal/api"
	"github.com/Caia-Tech/caia-extract/internal/bootstrap"
	"github.com/Caia-Tech/caia-extract/internal/orchestrator"
	"github.com/Caia-Tech/caia-extract/internal/pipeline"
	"github.com/Caia-Tech/caia-extract/internal/temporal/activities"
	"github.com/Caia-Tech/caia-extract/internal/temporal/workflows"
	"github.com/Caia-Tech/caia-extract/pkg/logging"
	cfgpkg "github.com/Caia-Tech/caia-extract/pkg/pipeline"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

func main() {
	configPath := flag.String("config", getEnv("CAIA_CONFIG", ""), "path to a JSON configuration file")
	flag.Parse()

	cfg, err := cfgpkg.LoadPipelineConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logging.SetupLogger(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	defaultStrategy, err := orchestrator.ParseStrategy(cfg.Engines.DefaultStrategy)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid default strategy")
	}

	// Event bus for extraction lifecycle events
	bus := pipeline.NewEventBus(1000, 4)
	defer bus.Close()
	if _, err := bus.Subscribe([]pipeline.EventType{
		pipeline.EventExtractionFailed,
		pipeline.EventEngineFallback,
		pipeline.EventMemoryReset,
		pipeline.EventBatchCompleted,
	}, logEvent); err != nil {
		log.Fatal().Err(err).Msg("Failed to subscribe event logger")
	}

	ctx := context.Background()
	rt, err := bootstrap.Build(ctx, cfg, bus)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build extraction runtime")
	}
	defer rt.Close(ctx)

	// Temporal is optional; without it batches answer 503
	var temporalClient client.Client
	if cfg.Temporal.Enabled {
		temporalClient, err = client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			log.Fatal().Err(err).Str("host", cfg.Temporal.HostPort).Msg("Failed to create Temporal client")
		}
		defer temporalClient.Close()

		w := worker.New(temporalClient, cfg.Temporal.TaskQueue, worker.Options{
			MaxConcurrentActivityExecutionSize:     4,
			MaxConcurrentWorkflowTaskExecutionSize: 10,
		})
		w.RegisterWorkflow(workflows.BatchExtractionWorkflow)

		extractionActivities := activities.NewExtractionActivities(rt.Orchestrator, bus)
		w.RegisterActivity(extractionActivities.ExtractDocumentActivity)
		w.RegisterActivity(extractionActivities.RecordBatchActivity)

		// Start worker in background
		go func() {
			if err := w.Run(worker.InterruptCh()); err != nil {
				log.Fatal().Err(err).Msg("Failed to start worker")
			}
		}()
	}

	// Initialize Fiber app with configuration
	app := fiber.New(fiber.Config{
		AppName:      "caia-extract",
		BodyLimit:    int(cfg.Server.MaxRequestSize),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${error}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "UTC",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: getEnv("CORS_ORIGINS", "*"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))

	h := api.NewHandlers(rt.Orchestrator, rt.Memory, temporalClient, bus, api.Config{
		TaskQueue:       cfg.Temporal.TaskQueue,
		MaxFileSize:     cfg.Processing.MaxFileSize,
		DefaultStrategy: defaultStrategy,
	})
	api.SetupRoutes(app, h, api.NewMetricsHandler(rt.Metrics, bus))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("Shutting down server...")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info().
		Str("addr", addr).
		Bool("temporal", temporalClient != nil).
		Str("default_strategy", string(defaultStrategy)).
		Msg("Starting caia-extract server")
	if err := app.Listen(addr); err != nil {
		log.Error().Err(err).Msg("Server stopped")
	}
}

// logEvent writes the events worth an operator's attention to the log
func logEvent(_ context.Context, event *pipeline.Event) error {
	entry := log.Info()
	if event.Error != "" {
		entry = log.Warn().Str("error", event.Error)
	}
	entry.
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Interface("metadata", event.Metadata).
		Msg("Pipeline event")
	return nil
}

// getEnv retrieves an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
