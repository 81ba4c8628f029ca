// Package server assembles the HTTP routes of the API.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"orgfolio/internal/handlers"
	"orgfolio/internal/middleware"
	"orgfolio/internal/pricesource"
	"orgfolio/internal/services"

	_ "orgfolio/internal/docs" // Import swagger docs
)

// Deps holds everything the routes are served from.
type Deps struct {
	Portfolios services.PortfolioServicer
	Valuations services.ValuationServicer
	Prices     services.PriceHistoryServicer
	Audit      services.AuditServicer
	Source     pricesource.Source
	Runner     handlers.SnapshotRunner

	// Ping checks the database for the health endpoint. Optional.
	Ping func(ctx context.Context) error

	JWTSecret      string
	PipelineAPIKey string
}

// NewRouter returns the gin engine with middleware, swagger and all API routes.
func NewRouter(d Deps) *gin.Engine {
	portfolioHandler := handlers.NewPortfolioHandler(d.Portfolios, d.Valuations, d.Audit)
	marketDataHandler := handlers.NewMarketDataHandler(d.Prices, d.Source, d.Runner, d.Audit)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		if d.Ping != nil {
			if err := d.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "scheduler": d.Runner.Status()})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Pipeline routes
	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(d.PipelineAPIKey))
	pipeline.POST("/market-data/snapshot", marketDataHandler.TriggerSnapshot)
	pipeline.GET("/market-data/scheduler-status", marketDataHandler.GetSchedulerStatus)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(d.JWTSecret))

	protected.POST("/organisms/:organism_id/portfolios", portfolioHandler.CreatePortfolio)
	protected.GET("/organisms/:organism_id/portfolios", portfolioHandler.GetOrganismPortfolios)
	protected.GET("/organisms/:organism_id/activity", portfolioHandler.GetOrganismActivity)

	portfolios := protected.Group("/portfolios")
	portfolios.GET("/:id", portfolioHandler.GetPortfolio)
	portfolios.PUT("/:id", portfolioHandler.UpdatePortfolio)
	portfolios.DELETE("/:id", portfolioHandler.DeletePortfolio)
	portfolios.GET("/:id/positions", portfolioHandler.GetPositions)
	portfolios.POST("/:id/positions", portfolioHandler.AddPosition)
	portfolios.PUT("/:id/positions/:symbol", portfolioHandler.UpdatePosition)
	portfolios.DELETE("/:id/positions/:symbol", portfolioHandler.RemovePosition)
	portfolios.GET("/:id/value", portfolioHandler.GetPortfolioValue)
	portfolios.GET("/:id/stats", portfolioHandler.GetPortfolioStats)

	marketData := protected.Group("/market-data")
	marketData.GET("", marketDataHandler.GetMarketData)
	marketData.GET("/history", marketDataHandler.GetMarketHistory)
	marketData.GET("/latest", marketDataHandler.GetLatestPrices)
	marketData.GET("/symbols/:symbol", marketDataHandler.GetSymbolHistory)

	return router
}
