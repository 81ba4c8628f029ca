package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"orgfolio/internal/config"
	"orgfolio/internal/database"
	"orgfolio/internal/logger"

	"github.com/golang-migrate/migrate/v4"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Migration error: %v", err)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return fmt.Errorf("usage: migrate <up|down [N]|goto V|force V|version>")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.DBDriver != "postgres" {
		return fmt.Errorf("migrate only manages postgres schemas; %s is migrated on startup", cfg.DBDriver)
	}

	m, err := database.NewMigrator(database.NewConfig(cfg))
	if err != nil {
		return err
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Get().Warnf("migrate source close error: %v", srcErr)
		}
		if dbErr != nil {
			logger.Get().Warnf("migrate database close error: %v", dbErr)
		}
	}()

	command := os.Args[1]

	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration up failed: %w", err)
		}
		logger.Get().Info("Migrations applied successfully")

	case "down":
		steps := 1
		if len(os.Args) > 2 {
			steps, err = strconv.Atoi(os.Args[2])
			if err != nil || steps < 1 {
				return fmt.Errorf("invalid step count %q", os.Args[2])
			}
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration down failed: %w", err)
		}
		logger.Get().Infof("Rolled back %d migration(s)", steps)

	case "goto", "force":
		if len(os.Args) < 3 {
			return fmt.Errorf("%s needs a target version", command)
		}
		target, err := strconv.ParseUint(os.Args[2], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q", os.Args[2])
		}
		if command == "force" {
			// clears the dirty flag after a failed migration was repaired by hand
			if err := m.Force(int(target)); err != nil {
				return fmt.Errorf("migration force failed: %w", err)
			}
			logger.Get().Infof("Forced version %d", target)
			break
		}
		if err := m.Migrate(uint(target)); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration goto failed: %w", err)
		}
		logger.Get().Infof("Migrated to version %d", target)

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				logger.Get().Info("No migration applied yet")
				return nil
			}
			return fmt.Errorf("failed to get version: %w", err)
		}
		logger.Get().Infof("Version: %d, Dirty: %v", version, dirty)

	default:
		return fmt.Errorf("unknown command: %s (use up, down, goto, force or version)", command)
	}

	return nil
}
