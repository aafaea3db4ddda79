package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/cuongbtq/hotel-scout/internal/api/router"
	"github.com/cuongbtq/hotel-scout/internal/bootstrap"
	"github.com/cuongbtq/hotel-scout/internal/config"
	"github.com/cuongbtq/hotel-scout/internal/normalize"
	"github.com/cuongbtq/hotel-scout/internal/orchestrator"
	"github.com/cuongbtq/hotel-scout/internal/reconcile"
	"github.com/cuongbtq/hotel-scout/internal/worker"
	"github.com/cuongbtq/hotel-scout/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.Logger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appMetrics, registry := bootstrap.Metrics(&cfg.Metrics)

	jobStore, healthCheck, closeStore, err := bootstrap.Store(ctx, &cfg.Database, registry, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer closeStore()

	statusCache, closeCache := bootstrap.StatusCache(ctx, &cfg.Redis, appLogger.Logger)
	defer closeCache()

	sourceA, sourceB, err := bootstrap.Connectors(&cfg.Connectors, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize connectors: %w", err)
	}

	normalizer, err := normalize.New(cfg.Pipeline.SourceBRate)
	if err != nil {
		return fmt.Errorf("failed to initialize normalizer: %w", err)
	}

	engine, err := reconcile.NewEngine(cfg.Pipeline.MatchThreshold, reconcile.Policy(cfg.Pipeline.MatchPolicy))
	if err != nil {
		return fmt.Errorf("failed to initialize reconciliation engine: %w", err)
	}

	workspace, err := orchestrator.NewWorkspace(cfg.Connectors.WorkDir)
	if err != nil {
		return fmt.Errorf("failed to initialize workspace: %w", err)
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Store:            jobStore,
		SourceA:          sourceA,
		SourceB:          sourceB,
		Normalizer:       normalizer,
		Engine:           engine,
		Workspace:        workspace,
		Cache:            statusCache,
		Metrics:          appMetrics,
		Logger:           appLogger.Logger,
		ConnectorTimeout: cfg.Connectors.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	rabbitClient, err := rabbitmq.NewClient(ctx, bootstrap.RabbitMQConfig(&cfg.RabbitMQ), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	appLogger.Info("RabbitMQ connection established")

	prefetch := cfg.RabbitMQ.Consumer.PrefetchCount
	workerInstance, err := worker.NewWorker(&worker.Config{
		Logger:        appLogger.Logger,
		Broker:        rabbitClient,
		Processor:     orch,
		Metrics:       appMetrics,
		WorkerID:      cfg.Worker.ID,
		Concurrency:   cfg.Worker.Concurrency,
		PrefetchCount: prefetch,
		JobTimeout:    cfg.Worker.JobTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize worker: %w", err)
	}

	var metricsSrv *http.Server
	if appMetrics != nil {
		if cfg.App.Environment == "production" {
			gin.SetMode(gin.ReleaseMode)
		}
		metricsSrv = serveMetrics(router.Options{
			ServiceName: cfg.App.Name,
			Metrics:     appMetrics,
			MetricsPath: cfg.Metrics.Path,
			HealthCheck: healthCheck,
		}, cfg.Metrics.Port, appLogger.Logger)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- workerInstance.Start(ctx)
	}()

	appLogger.Info("Worker service started successfully",
		slog.String("work_dir", workspace.Dir()),
		slog.String("match_policy", string(engine.Policy())),
	)

	select {
	case <-ctx.Done():
		appLogger.Info("Received signal, shutting down gracefully")
	case err := <-errChan:
		if err != nil {
			appLogger.Error("Worker error", slog.Any("error", err))
		}
		return err
	}

	// In-flight jobs get the shutdown window to finish before they are aborted
	select {
	case err := <-errChan:
		if err != nil {
			appLogger.Error("Worker error", slog.Any("error", err))
		}
		appLogger.Info("Worker stopped gracefully")
	case <-time.After(cfg.Worker.ShutdownTimeout):
		appLogger.Warn("Worker shutdown timeout exceeded, aborting in-flight jobs")
		workerInstance.Abort()
		<-errChan
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Metrics server forced to shutdown", slog.Any("error", err))
		}
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// serveMetrics exposes health and the registry on the metrics port
func serveMetrics(opts router.Options, port int, logger *slog.Logger) *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router.SetupOpsRouter(opts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Serving metrics", slog.String("address", srv.Addr), slog.String("path", opts.MetricsPath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", slog.Any("error", err))
		}
	}()

	return srv
}
