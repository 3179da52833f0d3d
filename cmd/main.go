package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/povelc/portfolio/internal/adapters/http/api"
	"github.com/povelc/portfolio/internal/adapters/http/site"
	"github.com/povelc/portfolio/internal/adapters/http/swagger"
	"github.com/povelc/portfolio/internal/adapters/objectstore"
	"github.com/povelc/portfolio/internal/adapters/ratelimit"
	"github.com/povelc/portfolio/internal/adapters/repository"
	service "github.com/povelc/portfolio/internal/app"
	"github.com/povelc/portfolio/internal/config"
	"github.com/povelc/portfolio/pkg/logger"
	"github.com/povelc/portfolio/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 60 * time.Second // game files stream for a while
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	connectTimeout            = 10 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "failed to read .env:", err)
	}
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(
		logger.WithLevel(cfg.LogLevel),
		logger.WithFormat(cfg.LogFormat),
		logger.WithFile(cfg.LogFile, cfg.LogMaxSizeMB),
	); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Named("main")

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	limiter, closeLimiter, err := openLimiter(ctx, cfg, log)
	if err != nil {
		_ = store.Close(context.Background())
		return err
	}
	defer closeLimiter()
	assets, err := openAssets(cfg, log)
	if err != nil {
		_ = store.Close(context.Background())
		return err
	}

	svc := service.New(
		service.WithStore(store),
		service.WithMaxScores(cfg.MaxScores),
		service.WithDisplayScores(cfg.DisplayScores),
		service.WithQueueSize(cfg.SubmitQueueSize),
		service.WithLogger(logger.Named("leaderboard")),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	deps := api.Dependencies{Leaderboard: svc, Limiter: limiter, Assets: assets, Stats: svc}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, deps),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down server...")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "service stop failed", logger.Error(err))
	}
	log.Info(shutdownCtx, "server stopped")
	return serveErr
}

// newHandler builds the full route table behind the request id middleware.
func newHandler(ctx context.Context, cfg *config.Config, deps api.Dependencies) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)
	api.NewServer(deps,
		api.WithAPIKey(cfg.APIKey),
		api.WithAllowedOrigins(cfg.AllowedOrigins...),
		api.WithRequestTimeout(cfg.RequestTimeout),
		api.WithRetryAfter(cfg.RateLimitWindow),
		api.WithExposeErrorDetails(cfg.ExposeErrorDetails),
		api.WithAssetsPrefix(cfg.AssetsPrefix),
		api.WithAssetCacheMaxAge(cfg.AssetCacheMaxAge),
		api.WithLogger(logger.Named("api")),
	).Register(mux)
	return api.RequestID(mux)
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		cctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		store, err := repository.OpenMongo(cctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
		if err != nil {
			return nil, fmt.Errorf("failed to open mongo store: %w", err)
		}
		log.Info(ctx, "using mongo store",
			logger.String("database", cfg.MongoDatabase), logger.String("collection", cfg.MongoCollection))
		return store, nil
	default:
		log.Info(ctx, "using in-memory store")
		return repository.NewTreapStore(), nil
	}
}

// openLimiter returns the configured limiter and a func releasing its resources.
func openLimiter(ctx context.Context, cfg *config.Config, log logger.Logger) (ratelimit.Limiter, func(), error) {
	opts := []ratelimit.Option{
		ratelimit.WithMaxRequests(cfg.RateLimitMaxRequests),
		ratelimit.WithWindow(cfg.RateLimitWindow),
	}
	if cfg.RateLimitBackend == config.BackendRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		cctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		if err := client.Ping(cctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		log.Info(ctx, "using redis rate limiter", logger.String("addr", cfg.RedisAddr))
		opts = append(opts, ratelimit.WithKeyPrefix(cfg.RedisKeyPrefix))
		return ratelimit.NewRedis(client, logger.Named("ratelimit"), opts...), func() { _ = client.Close() }, nil
	}

	limiter := ratelimit.NewMemory(opts...)
	runCtx, cancel := context.WithCancel(ctx)
	go limiter.Run(runCtx)
	log.Info(ctx, "using in-memory rate limiter")
	return limiter, cancel, nil
}

// openAssets returns nil when object storage is not configured; the game
// file routes then answer with a configuration error.
func openAssets(cfg *config.Config, log logger.Logger) (objectstore.Reader, error) {
	if !cfg.StorageConfigured() {
		log.Warn(context.Background(), "object storage not configured, game files disabled")
		return nil, nil
	}
	reader, err := objectstore.NewMinio(objectstore.Config{
		Endpoint:        cfg.ResolvedStorageEndpoint(),
		AccessKeyID:     cfg.StorageAccessKeyID,
		SecretAccessKey: cfg.StorageSecretAccessKey,
		Bucket:          cfg.StorageBucket,
		UseSSL:          cfg.StorageUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open object storage: %w", err)
	}
	return reader, nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes gauges from the service stats.
// GetStats also refreshes the entry gauge.
func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if capacity, ok := stats["queueCapacity"].(int); ok {
		metrics.UpdateQueueCapacity(capacity)
	}
}
