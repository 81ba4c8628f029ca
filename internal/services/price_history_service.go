package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"orgfolio/internal/date"
	apperrors "orgfolio/internal/errors"
	"orgfolio/internal/models"
	"orgfolio/internal/pagination"
)

// MaxSymbolHistoryDays bounds the look-back window of GetSymbolHistory.
const MaxSymbolHistoryDays = 3650

// priceHistoryService reads and writes the daily price time series.
type priceHistoryService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPriceHistoryService creates a new PriceHistoryServicer.
func NewPriceHistoryService(db *gorm.DB) PriceHistoryServicer {
	return &priceHistoryService{db: db, now: time.Now}
}

// UpsertPricePoint inserts the point or overwrites the row already stored for
// the same (symbol, date). The stored row keeps its original id, which is
// copied back into point.
func (s *priceHistoryService) UpsertPricePoint(ctx context.Context, point *models.PricePoint) error {
	point.Symbol = models.NormalizeSymbol(point.Symbol)
	if point.Symbol == "" {
		return apperrors.ErrInvalidSymbol
	}
	if point.Date.IsZero() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Price date is required")
	}
	if point.CapturedAt.IsZero() {
		point.CapturedAt = s.now()
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"price", "raw_price", "captured_at", "source"}),
	}).Create(point).Error
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	// On conflict BeforeCreate has already assigned an id that was never stored.
	var stored models.PricePoint
	err = s.db.WithContext(ctx).
		Select("id").
		Where("symbol = ? AND date = ?", point.Symbol, point.Date).
		Take(&stored).Error
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	point.ID = stored.ID
	return nil
}

// GetPriceAsOf returns the priced row with the greatest date on or before on.
func (s *priceHistoryService) GetPriceAsOf(ctx context.Context, symbol string, on date.Date) (*models.PricePoint, error) {
	var point models.PricePoint
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND date <= ? AND price IS NOT NULL", models.NormalizeSymbol(symbol), on).
		Order("date DESC").
		First(&point).Error
	return pointOrNotFound(&point, err)
}

// GetLatestPrice returns the most recent priced row regardless of date.
func (s *priceHistoryService) GetLatestPrice(ctx context.Context, symbol string) (*models.PricePoint, error) {
	var point models.PricePoint
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND price IS NOT NULL", models.NormalizeSymbol(symbol)).
		Order("date DESC").
		First(&point).Error
	return pointOrNotFound(&point, err)
}

// GetMarketHistory lists stored rows newest first, then by symbol.
func (s *priceHistoryService) GetMarketHistory(ctx context.Context, filter MarketHistoryFilter, page pagination.PageRequest) (*pagination.PageResponse[models.PricePoint], error) {
	page.Normalize()

	base := s.db.WithContext(ctx).Model(&models.PricePoint{})
	if filter.Symbol != "" {
		base = base.Where("symbol = ?", models.NormalizeSymbol(filter.Symbol))
	}
	if filter.From != nil {
		base = base.Where("date >= ?", *filter.From)
	}
	if filter.To != nil {
		base = base.Where("date <= ?", *filter.To)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var points []models.PricePoint
	if err := base.Order("date DESC").Order("symbol ASC").Scopes(pagination.Paginate(page)).Find(&points).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(points, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetLatestPrices returns, for every symbol, the row with its latest date.
func (s *priceHistoryService) GetLatestPrices(ctx context.Context) ([]models.PricePoint, error) {
	latest := s.db.Model(&models.PricePoint{}).
		Select("symbol, MAX(date) AS max_date").
		Group("symbol")

	var points []models.PricePoint
	err := s.db.WithContext(ctx).
		Joins("JOIN (?) AS latest ON latest.symbol = price_history.symbol AND latest.max_date = price_history.date", latest).
		Order("price_history.symbol ASC").
		Find(&points).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return points, nil
}

// GetSymbolHistory returns the rows of one symbol captured in the last days days.
func (s *priceHistoryService) GetSymbolHistory(ctx context.Context, symbol string, days int) ([]models.PricePoint, error) {
	symbol = models.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, apperrors.ErrInvalidSymbol
	}
	if days <= 0 || days > MaxSymbolHistoryDays {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("Days must be between 1 and %d", MaxSymbolHistoryDays))
	}

	since := date.Of(s.now()).AddDays(-days)

	var points []models.PricePoint
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND date >= ?", symbol, since).
		Order("date DESC").
		Find(&points).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return points, nil
}

func pointOrNotFound(point *models.PricePoint, err error) (*models.PricePoint, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPriceNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return point, nil
}
