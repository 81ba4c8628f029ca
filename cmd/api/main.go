package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"orgfolio/internal/config"
	"orgfolio/internal/database"
	"orgfolio/internal/logger"
	"orgfolio/internal/pricesource"
	"orgfolio/internal/scheduler"
	"orgfolio/internal/server"
	"orgfolio/internal/services"
	"orgfolio/internal/validator"
)

// @title           Orgfolio API
// @version         1.0
// @description     Orgfolio values investment portfolios against a daily price history captured from a published spreadsheet.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description Pipeline API key.

const shutdownTimeout = 10 * time.Second

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.SetLevel(appConfig.LogLevel); err != nil {
		return err
	}

	// Prices and quantities go out as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
	validator.Register()

	// Create database manager
	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("failed to close database: %v", err)
		}
	}()

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	source, err := pricesource.New(appConfig.Market)
	if err != nil {
		return fmt.Errorf("failed to create price source: %w", err)
	}
	marketLoc, err := appConfig.Market.Location()
	if err != nil {
		return fmt.Errorf("failed to load market timezone: %w", err)
	}

	// Initialize services
	db := dbManager.DB()
	auditService := services.NewAuditService(db)
	priceService := services.NewPriceHistoryService(db)
	portfolioService := services.NewPortfolioService(db)
	snapshotService := services.NewSnapshotService(source, priceService, marketLoc)

	var liveSource pricesource.Source
	if appConfig.Market.LiveFetch {
		liveSource = source
	}
	valuationService := services.NewValuationService(db, priceService, liveSource, services.ValuationOptions{
		LiveFetch:        appConfig.Market.LiveFetch,
		LiveFetchTimeout: appConfig.Market.LiveFetchTimeout,
		Location:         marketLoc,
	})

	sched, err := scheduler.New(snapshotService, appConfig.Market)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if appConfig.Market.SchedulerEnabled {
		sched.Start()
		defer sched.Stop()
	} else {
		log.Info("Snapshot scheduler disabled")
	}

	if appConfig.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := server.NewRouter(server.Deps{
		Portfolios: portfolioService,
		Valuations: valuationService,
		Prices:     priceService,
		Audit:      auditService,
		Source:     source,
		Runner:     sched,
		Ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		JWTSecret:      appConfig.JWTSecret,
		PipelineAPIKey: appConfig.PipelineAPIKey,
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting Orgfolio backend server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
