// Package main provides the API server entry point for the Babylon explorer backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/babylon-scanner/internal/adapter"
	"github.com/babylon-scanner/internal/api"
	"github.com/babylon-scanner/internal/config"
	"github.com/babylon-scanner/internal/job"
	"github.com/babylon-scanner/internal/logging"
	"github.com/babylon-scanner/internal/service"
	"github.com/babylon-scanner/internal/storage"
	"github.com/babylon-scanner/internal/worker"
)

const (
	connectTimeout  = 10 * time.Second
	shutdownTimeout = 15 * time.Second
)

func main() {
	fmt.Println("Babylon Scanner API Server")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	defer logger.Sync()

	logger.WithFields(map[string]interface{}{
		"level":    cfg.Logging.Level,
		"format":   cfg.Logging.Format,
		"lcd":      cfg.Node.LCDURL,
		"chain_id": cfg.Node.ChainID,
	}).Info("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, closeStores := openStores(ctx, cfg, logger)
	defer closeStores()

	// Optional shared snapshot cache
	var snapshots service.SnapshotCache
	if cfg.Database.Redis.Enabled {
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		redisCache, err := storage.NewRedisCache(connectCtx, &cfg.Database.Redis)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, continuing without the shared snapshot cache")
		} else {
			defer redisCache.Close()
			snapshots = storage.NewCacheService(redisCache, cfg.Database.Redis.StatsTTL)
			logger.Info("Redis snapshot cache enabled")
		}
	}

	// Node API client and chain reader
	nodeClient := adapter.NewNodeClient(adapter.NodeClientConfig{
		BaseURL:        cfg.Node.LCDURL,
		Timeout:        cfg.Node.RequestTimeout,
		CacheTTL:       cfg.Node.CacheTTL,
		RequestsPerSec: cfg.Node.RequestsPerSec,
		Burst:          cfg.Node.Burst,
	}, logger)
	reader := adapter.NewNodeReader(nodeClient, adapter.NodeReaderConfig{
		ChainID: cfg.Node.ChainID,
		Workers: cfg.Node.FanoutWorkers,
	}, logger)
	defer reader.Close()

	// Services
	params := service.ChainParamsFromConfig(cfg)
	pool := worker.NewPool(cfg.Node.FanoutWorkers)
	defer pool.StopAndWait()

	labeler := service.NewLabelingService(reader, stores.labels, stores.addresses, pool, params, cfg.Labeling.WhaleThreshold, logger)
	explorer := service.NewExplorerService(
		reader,
		service.NewTxClassifier(params.NativeDenom),
		stores.labels,
		stores.watchlist,
		snapshots,
		pool,
		params,
		logger,
	)
	risk := service.NewRiskAnalyzer(reader, stores.labels, labeler, params, cfg.Labeling.LabelOnAnalysis, logger)

	server := api.NewServer(&api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: shutdownTimeout,
		RateLimitRPS:    float64(cfg.Server.RateLimitRPS),
		RateBurst:       cfg.Server.RateBurst,
	}, api.Services{
		Explorer:   explorer,
		Watchlist:  explorer,
		Risk:       risk,
		Labeling:   labeler,
		NodeHealth: nodeClient.Health,
	}, logger)

	// Background labeling plus cache housekeeping
	scheduler, err := job.NewLabelingScheduler(job.LabelingJobConfig{
		Schedule:     cfg.Labeling.Schedule,
		StartupDelay: cfg.Labeling.StartupDelay,
		RunOnStartup: cfg.Labeling.RunOnStartup,
	}, labeler, job.Purgers{nodeClient.Cache(), server.RateLimiter()}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Invalid labeling schedule")
	}
	scheduler.Start(ctx)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for a signal or a listener failure
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.WithError(err).Error("Server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Labeling run did not finish before shutdown")
	}

	logger.Info("Server exited")
}

type storeSet struct {
	labels    service.LabelStore
	addresses service.AddressStore
	watchlist service.WatchlistStore
}

// openStores connects to Postgres and runs migrations. When Postgres is unreachable the
// server keeps running on an in-memory store that does not survive a restart.
func openStores(ctx context.Context, cfg *config.Config, logger *logging.Logger) (storeSet, func()) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	postgres, err := storage.NewPostgresDB(connectCtx, &cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Warn("Postgres unavailable, labels and watchlist are kept in memory")
		memory := storage.NewMemoryStore()
		return storeSet{labels: memory, addresses: memory, watchlist: memory}, func() {}
	}

	if cfg.Database.Postgres.AutoMigrate {
		if err := storage.RunMigrations(cfg.Database.Postgres.PostgresURL(), ""); err != nil {
			postgres.Close()
			logger.WithError(err).Fatal("Failed to run migrations")
		}
		logger.Info("Postgres migrations applied")
	}

	return storeSet{
		labels:    storage.NewLabelRepository(postgres),
		addresses: storage.NewAddressRepository(postgres),
		watchlist: storage.NewWatchlistRepository(postgres),
	}, postgres.Close
}
