// Package main runs one automatic labeling pass and prints its report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/babylon-scanner/internal/adapter"
	"github.com/babylon-scanner/internal/config"
	"github.com/babylon-scanner/internal/logging"
	"github.com/babylon-scanner/internal/service"
	"github.com/babylon-scanner/internal/storage"
	"github.com/babylon-scanner/internal/worker"
)

func main() {
	var (
		asJSON  = flag.Bool("json", false, "Print the report as JSON")
		timeout = flag.Duration("timeout", 10*time.Minute, "Upper bound for the whole run")
		verbose = flag.Bool("v", false, "Log at debug level")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	if *asJSON {
		// stdout carries the report
		logger.SetOutput(os.Stderr)
	}
	if *verbose {
		logger.SetLevel(logging.LevelDebug)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	// Labels only matter when they are persisted, so there is no in-memory fallback here
	postgres, err := storage.NewPostgresDB(ctx, &cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	if cfg.Database.Postgres.AutoMigrate {
		if err := storage.RunMigrations(cfg.Database.Postgres.PostgresURL(), ""); err != nil {
			logger.WithError(err).Fatal("Failed to run migrations")
		}
	}

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

	pool := worker.NewPool(cfg.Node.FanoutWorkers)
	defer pool.StopAndWait()

	labeler := service.NewLabelingService(
		reader,
		storage.NewLabelRepository(postgres),
		storage.NewAddressRepository(postgres),
		pool,
		service.ChainParamsFromConfig(cfg),
		cfg.Labeling.WhaleThreshold,
		logger,
	)

	report := labeler.RunAutoLabeling(ctx)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			logger.WithError(err).Fatal("Failed to encode report")
		}
	} else {
		printReport(report)
	}

	if len(report.Errors) > 0 {
		os.Exit(1)
	}
}

func printReport(report *service.LabelingReport) {
	fmt.Printf("Auto-labeling run %s\n", report.RunID)
	fmt.Printf("  started:            %s\n", report.StartedAt.Format(time.RFC3339))
	fmt.Printf("  duration:           %dms\n", report.DurationMs)
	fmt.Printf("  validators:         %d\n", report.Validators)
	fmt.Printf("  finality providers: %d\n", report.FinalityProviders)
	fmt.Printf("  whales:             %d\n", report.Whales)
	fmt.Printf("  total:              %d\n", report.Total())

	if len(report.Errors) == 0 {
		return
	}
	jobs := make([]string, 0, len(report.Errors))
	for job := range report.Errors {
		jobs = append(jobs, job)
	}
	sort.Strings(jobs)
	fmt.Println("  errors:")
	for _, job := range jobs {
		fmt.Printf("    %s: %s\n", job, report.Errors[job])
	}
}
