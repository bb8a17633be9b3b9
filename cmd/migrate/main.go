// Package main applies, rolls back or inspects the Postgres schema for labels, addresses
// and the watchlist.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/babylon-scanner/internal/config"
	"github.com/babylon-scanner/internal/logging"
	"github.com/babylon-scanner/internal/storage"
)

func main() {
	var (
		action  = flag.String("action", "up", "Migration action: up, down, version, force")
		path    = flag.String("path", "", "Migrations directory (default: migrations embedded in the binary)")
		version = flag.Int("version", -1, "Version recorded by -action force")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger().WithFields(map[string]interface{}{
		"action":   *action,
		"database": cfg.Database.Postgres.Database,
	})
	defer logger.Sync()

	if err := migrate(cfg.Database.Postgres.PostgresURL(), *path, *action, *version, logger); err != nil {
		logger.WithError(err).Fatal("Postgres migration failed")
	}
}

func migrate(databaseURL, migrationsPath, action string, version int, logger *logging.Logger) error {
	switch action {
	case "up":
		if err := storage.RunMigrations(databaseURL, migrationsPath); err != nil {
			return err
		}
		logger.Info("Postgres schema is up to date")

	case "down":
		if err := storage.RollbackMigrations(databaseURL, migrationsPath); err != nil {
			return err
		}
		logger.Info("Rolled back one Postgres migration")

	case "version":
		current, dirty, err := storage.MigrationVersion(databaseURL, migrationsPath)
		if err != nil {
			return err
		}
		logger.WithFields(map[string]interface{}{
			"version": current,
			"dirty":   dirty,
		}).Info("Current Postgres migration version")

	case "force":
		if version < 0 {
			return fmt.Errorf("-action force needs -version")
		}
		if err := storage.ForceMigrationVersion(databaseURL, migrationsPath, version); err != nil {
			return err
		}
		logger.WithField("version", version).Warn("Forced Postgres migration version")

	default:
		return fmt.Errorf("unknown action: %s", action)
	}

	return nil
}
