package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/analysis"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/cache"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/config"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/database"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/inference"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/ingest"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/logging"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/metrics"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/monitoring"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/oauth"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/queue"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/quota"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/scheduler"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/storage"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/tracing"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/youtube"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.WithComponent("worker")

	_, closer, err := tracing.InitTracer(cfg.Tracing)
	if err != nil {
		logger.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer closer.Close()

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	var quotaStore quota.Store = repo
	if cfg.Quota.Store == "sqlite" {
		sqliteStore, err := database.NewSQLiteQuotaStore(cfg.Quota.SQLitePath)
		if err != nil {
			logger.Fatalf("Failed to open quota store: %v", err)
		}
		defer sqliteStore.Close()
		quotaStore = sqliteStore
	}

	ledger, err := quota.NewLedger(quotaStore, cfg.Quota, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize quota ledger: %v", err)
	}

	redisCache, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisCache.Close()

	// Initialize storage
	stor, err := storage.New(cfg.Storage, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize queue
	q, err := queue.New(cfg.Queue, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	coordinator := youtube.NewCoordinator(oauth.NewClient(cfg.Google), repo, logger)
	ytClient := youtube.NewClient(cfg.YouTube, logger)
	pager := youtube.NewPager(coordinator, cfg.YouTube, logger)
	facade := ingest.NewService(ytClient, coordinator, pager, redisCache, ledger, cfg.YouTube, logger)

	analyses := analysis.NewService(analysis.Deps{
		Repository: repo,
		Ledger:     ledger,
		Comments:   facade,
		Classifier: inference.NewClient(cfg.Inference, logger),
		Store:      stor,
		Locker:     redisCache,
	}, logger)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down worker gracefully...")
		cancel()
	}()

	metricsServer := metrics.NewServer(cfg.Metrics.Port, func(ctx context.Context) error {
		if err := db.Health(ctx); err != nil {
			return err
		}
		return redisCache.Ping(ctx)
	}, logger)
	go func() {
		if err := metricsServer.Start(); err != nil {
			logger.ErrorWithErr("Metrics server failed", err)
		}
	}()

	monitoring.NewMonitor(q, monitoring.DefaultInterval, logger).Start(ctx)

	retention := scheduler.NewRetentionJob(ledger, cfg.Quota.RetentionDays, cfg.Quota.CleanupInterval, logger)
	retention.Start(ctx)

	// Start consuming jobs
	logger.Info("Worker started, waiting for analyses...")
	if err := q.ConsumeAnalyses(ctx, analyses.Process); err != nil {
		logger.Fatalf("Failed to consume analyses: %v", err)
	}

	// Wait for shutdown
	<-ctx.Done()
	retention.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	metricsServer.Shutdown(shutdownCtx)

	logger.Info("Worker stopped")
}
