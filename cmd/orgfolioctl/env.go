package main

import (
	"fmt"
	"time"

	"orgfolio/internal/config"
	"orgfolio/internal/database"
	"orgfolio/internal/logger"
	"orgfolio/internal/pricesource"
	"orgfolio/internal/services"
)

// env is the set of services a command works with.
type env struct {
	cfg    *config.Config
	db     *database.Manager
	source pricesource.Source
	loc    *time.Location
	prices services.PriceHistoryServicer
}

// openEnv loads the configuration and opens the database the same way the
// API server does, migrations included.
func openEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	db, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.RunMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	source, err := pricesource.New(cfg.Market)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create price source: %w", err)
	}

	loc, err := cfg.Market.Location()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to load market timezone: %w", err)
	}

	return &env{
		cfg:    cfg,
		db:     db,
		source: source,
		loc:    loc,
		prices: services.NewPriceHistoryService(db.DB()),
	}, nil
}

func (e *env) valuation() services.ValuationServicer {
	var source pricesource.Source
	if e.cfg.Market.LiveFetch {
		source = e.source
	}
	return services.NewValuationService(e.db.DB(), e.prices, source, services.ValuationOptions{
		LiveFetch:        e.cfg.Market.LiveFetch,
		LiveFetchTimeout: e.cfg.Market.LiveFetchTimeout,
		Location:         e.loc,
	})
}

func (e *env) Close() {
	if err := e.db.Close(); err != nil {
		logger.Get().Warnf("failed to close database: %v", err)
	}
}
