package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/analysis"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/cache"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/config"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/database"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/ingest"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/logging"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/middleware"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/moderation"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/oauth"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/queue"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/quota"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/storage"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/tracing"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/youtube"
	"github.com/gin-gonic/gin"
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
	logger = logger.WithComponent("api")

	_, closer, err := tracing.InitTracer(cfg.Tracing)
	if err != nil {
		logger.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer closer.Close()

	middleware.SetJWTSecret(cfg.Auth.JWTSecret)
	gin.SetMode(gin.ReleaseMode)

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	repo := database.NewRepository(db)

	quotaStore, closeStore, err := openQuotaStore(cfg.Quota, repo)
	if err != nil {
		logger.Fatalf("Failed to open quota store: %v", err)
	}
	defer closeStore()

	ledger, err := quota.NewLedger(quotaStore, cfg.Quota, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize quota ledger: %v", err)
	}

	// Initialize cache
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

	// YouTube access
	coordinator := youtube.NewCoordinator(oauth.NewClient(cfg.Google), repo, logger)
	ytClient := youtube.NewClient(cfg.YouTube, logger)
	pager := youtube.NewPager(coordinator, cfg.YouTube, logger)

	videos := ingest.NewService(ytClient, coordinator, pager, redisCache, ledger, cfg.YouTube, logger)
	analyses := analysis.NewService(analysis.Deps{
		Repository: repo,
		Ledger:     ledger,
		Publisher:  q,
		Store:      stor,
	}, logger)

	api := &API{
		users:        repo,
		videos:       videos,
		analyses:     analyses,
		moderation:   moderation.NewService(ytClient, coordinator, ledger, logger),
		quota:        ledger,
		limiter:      redisCache,
		refreshLimit: cfg.YouTube.ForceRefreshPerHour,
		health: map[string]HealthChecker{
			"database": db.Health,
			"redis":    redisCache.Ping,
		},
		logger: logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	go rl.Cleanup(ctx)

	router := setupRouter(api, rl, logger)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server stopped")
}

// openQuotaStore selects the ledger backend from quota.store
func openQuotaStore(cfg config.QuotaConfig, repo *database.Repository) (quota.Store, func(), error) {
	switch cfg.Store {
	case "", "postgres":
		return repo, func() {}, nil
	case "sqlite":
		store, err := database.NewSQLiteQuotaStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown quota store %q", cfg.Store)
	}
}
