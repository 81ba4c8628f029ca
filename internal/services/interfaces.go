package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"orgfolio/internal/date"
	"orgfolio/internal/models"
	"orgfolio/internal/pagination"
)

// PortfolioServicer defines the contract for portfolio and position management.
// Callers are expected to have checked that the portfolio belongs to them.
type PortfolioServicer interface {
	CreatePortfolio(ctx context.Context, organismID, name, description string) (*models.Portfolio, error)
	GetPortfoliosByOrganism(ctx context.Context, organismID string) ([]models.Portfolio, error)
	GetPortfolioByID(ctx context.Context, portfolioID string) (*models.Portfolio, error)
	UpdatePortfolio(ctx context.Context, portfolioID string, name, description *string) (*models.Portfolio, error)
	DeletePortfolio(ctx context.Context, portfolioID string) error
	GetPortfolioPositions(ctx context.Context, portfolioID string) ([]models.Position, error)
	AddPosition(ctx context.Context, portfolioID, symbol string, quantity decimal.Decimal, notes string) (*models.Position, error)
	UpdatePosition(ctx context.Context, portfolioID, symbol string, quantity *decimal.Decimal, notes *string) (*models.Position, error)
	RemovePosition(ctx context.Context, portfolioID, symbol string) error
}

// MarketHistoryFilter holds optional filters for listing price history.
type MarketHistoryFilter struct {
	Symbol string
	From   *date.Date
	To     *date.Date
}

// PricePointWriter stores captured prices.
type PricePointWriter interface {
	UpsertPricePoint(ctx context.Context, point *models.PricePoint) error
}

// PriceHistoryServicer defines the contract for the daily price time series.
// Lookups only consider rows with a price; rows kept for a "no data" cell
// are visible in history listings only.
type PriceHistoryServicer interface {
	PricePointWriter
	GetPriceAsOf(ctx context.Context, symbol string, on date.Date) (*models.PricePoint, error)
	GetLatestPrice(ctx context.Context, symbol string) (*models.PricePoint, error)
	GetMarketHistory(ctx context.Context, filter MarketHistoryFilter, page pagination.PageRequest) (*pagination.PageResponse[models.PricePoint], error)
	GetLatestPrices(ctx context.Context) ([]models.PricePoint, error)
	GetSymbolHistory(ctx context.Context, symbol string, days int) ([]models.PricePoint, error)
}

// SnapshotResult reports the outcome of one ingestion run.
type SnapshotResult struct {
	Date      date.Date     `json:"date"`
	Source    string        `json:"source"`
	Received  int           `json:"received"`
	Saved     int           `json:"saved"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"-"`
	TookMS    int64         `json:"took_ms"`
}

// Success reports whether at least one price was written.
func (r *SnapshotResult) Success() bool {
	return r != nil && r.Saved > 0
}

// SnapshotServicer defines the contract for the fetch-and-persist ingestion job.
type SnapshotServicer interface {
	RunSnapshot(ctx context.Context) (*SnapshotResult, error)
}

// Price sources reported in a valuation.
const (
	PriceSourceExact  = "exact"
	PriceSourcePrior  = "prior"
	PriceSourceLatest = "latest"
	PriceSourceLive   = "live"
	PriceSourceNone   = "none"
)

// PositionValuation is the valuation of one position.
type PositionValuation struct {
	Symbol           string     `json:"symbol"`
	Quantity         float64    `json:"quantity"`
	CurrentPrice     float64    `json:"current_price"`
	PositionValue    float64    `json:"position_value"`
	WeightPercentage float64    `json:"weight_percentage"`
	Notes            string     `json:"notes"`
	UpdatedAt        time.Time  `json:"updated_at"`
	PriceSource      string     `json:"price_source"`
	PriceDate        *date.Date `json:"price_date,omitempty"`
}

// ValuationResult is the value of a portfolio on a given day.
type ValuationResult struct {
	PortfolioID     string              `json:"portfolio_id"`
	TotalValue      float64             `json:"total_value"`
	CalculationDate date.Date           `json:"calculation_date"`
	PositionsDetail []PositionValuation `json:"positions_detail"`
	SymbolsNotFound []string            `json:"symbols_not_found"`
}

// PortfolioStats summarizes a single valuation.
type PortfolioStats struct {
	PortfolioID     string    `json:"portfolio_id"`
	TotalPositions  int       `json:"total_positions"`
	TotalValue      float64   `json:"total_value"`
	CalculationDate date.Date `json:"calculation_date"`
	SymbolsCount    int       `json:"symbols_count"`
	SymbolsNotFound int       `json:"symbols_not_found"`
}

// ValuationServicer defines the contract for portfolio valuation.
type ValuationServicer interface {
	GetPortfolioValue(ctx context.Context, portfolioID string, on *date.Date) (*ValuationResult, error)
	GetPortfolioStats(ctx context.Context, portfolioID string) (*PortfolioStats, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(ctx context.Context, entry AuditEntry)
	List(ctx context.Context, filter AuditFilter) ([]models.AuditLog, error)
}
