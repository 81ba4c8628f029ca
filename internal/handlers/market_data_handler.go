package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "orgfolio/internal/errors"
	"orgfolio/internal/middleware"
	"orgfolio/internal/models"
	"orgfolio/internal/pagination"
	"orgfolio/internal/pricesource"
	"orgfolio/internal/scheduler"
	"orgfolio/internal/services"
)

const defaultSymbolHistoryDays = 30

// SnapshotRunner runs the ingestion job on demand and reports the schedule.
// *scheduler.Scheduler satisfies it.
type SnapshotRunner interface {
	RunNow(ctx context.Context) (*services.SnapshotResult, error)
	Status() scheduler.Status
}

// MarketDataHandler handles market data and ingestion requests.
type MarketDataHandler struct {
	priceService services.PriceHistoryServicer
	source       pricesource.Source
	runner       SnapshotRunner
	auditService services.AuditServicer
}

// NewMarketDataHandler creates a new MarketDataHandler.
func NewMarketDataHandler(priceService services.PriceHistoryServicer, source pricesource.Source, runner SnapshotRunner, auditService services.AuditServicer) *MarketDataHandler {
	return &MarketDataHandler{
		priceService: priceService,
		source:       source,
		runner:       runner,
		auditService: auditService,
	}
}

// MarketHistoryQuery holds the filters accepted by the history endpoint.
type MarketHistoryQuery struct {
	Symbol    string `form:"symbol" binding:"omitempty,symbol"`
	StartDate string `form:"start_date" binding:"omitempty,iso_date"`
	EndDate   string `form:"end_date" binding:"omitempty,iso_date"`
	pagination.PageRequest
}

// MarketDataResponse is the envelope for live quotes.
type MarketDataResponse struct {
	Success   bool                `json:"success"`
	Data      []pricesource.Quote `json:"data"`
	Count     int                 `json:"count"`
	Source    string              `json:"source"`
	Timestamp time.Time           `json:"timestamp"`
}

// SnapshotResponse is returned by the manual snapshot endpoint.
type SnapshotResponse struct {
	Success bool                     `json:"success"`
	Result  *services.SnapshotResult `json:"result,omitempty"`
}

// GetMarketData handles fetching the current quotes straight from the source.
// @Summary     Live market data
// @Description Fetch the current quotes from the configured price source without storing them
// @Tags        market-data
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} MarketDataResponse "Current quotes"
// @Failure     502 {object} ErrorResponse "Price source unavailable"
// @Router      /market-data [get]
func (h *MarketDataHandler) GetMarketData(c *gin.Context) {
	payload, err := h.source.Fetch(c.Request.Context())
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrSourceUnavailable, err))
		return
	}

	quotes := payload.Quotes
	if quotes == nil {
		quotes = []pricesource.Quote{}
	}
	c.JSON(http.StatusOK, MarketDataResponse{
		Success:   true,
		Data:      quotes,
		Count:     len(quotes),
		Source:    h.source.Name(),
		Timestamp: time.Now().UTC(),
	})
}

// GetMarketHistory handles listing stored prices, newest first.
// @Summary     Price history
// @Tags        market-data
// @Produce     json
// @Security    BearerAuth
// @Param       symbol query string false "Symbol"
// @Param       start_date query string false "First day (YYYY-MM-DD)"
// @Param       end_date query string false "Last day (YYYY-MM-DD)"
// @Param       page query int false "Page number"
// @Param       page_size query int false "Page size (default 100, max 1000)"
// @Param       limit query int false "Alias of page_size"
// @Success     200 {object} pagination.PageResponse[models.PricePoint] "Price history"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /market-data/history [get]
func (h *MarketDataHandler) GetMarketHistory(c *gin.Context) {
	var q MarketHistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	from, err := parseDateQuery(c, "start_date")
	if err != nil {
		respondWithError(c, err)
		return
	}
	to, err := parseDateQuery(c, "end_date")
	if err != nil {
		respondWithError(c, err)
		return
	}
	if from != nil && to != nil && to.Before(*from) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "end_date must not be before start_date"))
		return
	}

	page := q.PageRequest
	page.Normalize()

	filter := services.MarketHistoryFilter{
		Symbol: models.NormalizeSymbol(q.Symbol),
		From:   from,
		To:     to,
	}
	result, err := h.priceService.GetMarketHistory(c.Request.Context(), filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetLatestPrices handles listing the most recent price of every symbol.
// @Summary     Latest prices
// @Tags        market-data
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]interface{} "Latest price per symbol"
// @Router      /market-data/latest [get]
func (h *MarketDataHandler) GetLatestPrices(c *gin.Context) {
	prices, err := h.priceService.GetLatestPrices(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"prices": prices, "count": len(prices)})
}

// GetSymbolHistory handles listing the recent prices of one symbol.
// @Summary     Symbol history
// @Tags        market-data
// @Produce     json
// @Security    BearerAuth
// @Param       symbol path string true "Symbol"
// @Param       days query int false "Days to look back (default 30, max 3650)"
// @Success     200 {object} map[string]interface{} "Price history for the symbol"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /market-data/symbols/{symbol} [get]
func (h *MarketDataHandler) GetSymbolHistory(c *gin.Context) {
	symbol := models.NormalizeSymbol(c.Param("symbol"))
	if !models.ValidSymbol(symbol) {
		respondWithError(c, apperrors.ErrInvalidSymbol)
		return
	}

	days := defaultSymbolHistoryDays
	if s := c.Query("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > services.MaxSymbolHistoryDays {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("days must be an integer between 1 and %d", services.MaxSymbolHistoryDays)))
			return
		}
		days = n
	}

	prices, err := h.priceService.GetSymbolHistory(c.Request.Context(), symbol, days)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "days": days, "prices": prices})
}

// TriggerSnapshot handles running the ingestion job on demand.
// @Summary     Run snapshot
// @Description Fetch the price source and store today's prices (pipeline endpoint)
// @Tags        pipeline
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200 {object} SnapshotResponse "Snapshot stored"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     500 {object} ErrorResponse "Nothing could be stored"
// @Failure     502 {object} ErrorResponse "Price source unavailable"
// @Failure     503 {object} ErrorResponse "Pipeline not configured"
// @Router      /pipeline/market-data/snapshot [post]
func (h *MarketDataHandler) TriggerSnapshot(c *gin.Context) {
	result, err := h.runner.RunNow(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	recordAudit(c, h.auditService, services.AuditEntry{
		UserID:       middleware.PipelineCaller,
		Action:       services.AuditManualSnapshot,
		ResourceType: "price_history",
		ResourceID:   result.Date.String(),
		Changes:      map[string]interface{}{"saved": result.Saved, "failed": result.Failed, "skipped": result.Skipped},
	})

	c.JSON(http.StatusOK, SnapshotResponse{Success: result.Success(), Result: result})
}

// GetSchedulerStatus handles reporting the ingestion schedule.
// @Summary     Scheduler status
// @Tags        pipeline
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200 {object} scheduler.Status "Scheduler status"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Router      /pipeline/market-data/scheduler-status [get]
func (h *MarketDataHandler) GetSchedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.runner.Status())
}
