package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"orgfolio/internal/date"
	apperrors "orgfolio/internal/errors"
	"orgfolio/internal/logger"
	"orgfolio/internal/models"
	"orgfolio/internal/pricesource"
)

// ValuationOptions controls the live-fetch fallback used when no stored price exists.
type ValuationOptions struct {
	LiveFetch        bool
	LiveFetchTimeout time.Duration

	// Location decides which calendar day "today" is; nil means the host timezone.
	Location *time.Location
}

// valuationService values portfolios against the stored price history.
type valuationService struct {
	db     *gorm.DB
	prices PriceHistoryServicer
	source pricesource.Source
	opts   ValuationOptions
	now    func() time.Time
}

// NewValuationService creates a new ValuationServicer. source may be nil, in
// which case the live-fetch fallback is skipped.
func NewValuationService(db *gorm.DB, prices PriceHistoryServicer, source pricesource.Source, opts ValuationOptions) ValuationServicer {
	if opts.LiveFetchTimeout <= 0 {
		opts.LiveFetchTimeout = 5 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &valuationService{db: db, prices: prices, source: source, opts: opts, now: time.Now}
}

// resolvedPrice is the price picked for one symbol and where it came from.
type resolvedPrice struct {
	price  decimal.Decimal
	source string
	day    *date.Date
}

// GetPortfolioValue values every position of the portfolio on the given day
// (today when on is nil). Prices are resolved per symbol in order: the
// stored price for that day, the closest earlier stored price, the latest
// stored price, a live quote from the source. Symbols left without a price
// are valued at 0 and listed in SymbolsNotFound.
func (s *valuationService) GetPortfolioValue(ctx context.Context, portfolioID string, on *date.Date) (*ValuationResult, error) {
	target := date.Of(s.now().In(s.opts.Location))
	if on != nil {
		target = *on
	}

	if _, err := loadPortfolio(s.db.WithContext(ctx), portfolioID); err != nil {
		return nil, err
	}

	var positions []models.Position
	err := s.db.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("symbol ASC").
		Find(&positions).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := &ValuationResult{
		PortfolioID:     portfolioID,
		CalculationDate: target,
		PositionsDetail: []PositionValuation{},
		SymbolsNotFound: []string{},
	}
	if len(positions) == 0 {
		return result, nil
	}

	resolved := make(map[string]resolvedPrice, len(positions))
	var unresolved []string
	for _, p := range positions {
		symbol := models.NormalizeSymbol(p.Symbol)
		if _, seen := resolved[symbol]; seen {
			continue
		}
		if rp, ok := s.resolveStored(ctx, symbol, target); ok {
			resolved[symbol] = rp
			continue
		}
		resolved[symbol] = resolvedPrice{source: PriceSourceNone}
		unresolved = append(unresolved, symbol)
	}

	if len(unresolved) > 0 {
		for symbol, price := range s.fetchLive(ctx, unresolved) {
			resolved[symbol] = resolvedPrice{price: price, source: PriceSourceLive}
		}
	}

	values := make([]decimal.Decimal, len(positions))
	total := decimal.Zero
	for i, p := range positions {
		values[i] = p.Quantity.Mul(resolved[models.NormalizeSymbol(p.Symbol)].price)
		total = total.Add(values[i])
	}

	hundred := decimal.NewFromInt(100)
	for i, p := range positions {
		symbol := models.NormalizeSymbol(p.Symbol)
		rp := resolved[symbol]
		if rp.source == PriceSourceNone {
			result.SymbolsNotFound = append(result.SymbolsNotFound, symbol)
		}

		weight := decimal.Zero
		if !total.IsZero() {
			weight = values[i].Div(total).Mul(hundred)
		}

		result.PositionsDetail = append(result.PositionsDetail, PositionValuation{
			Symbol:           symbol,
			Quantity:         p.Quantity.InexactFloat64(),
			CurrentPrice:     rp.price.InexactFloat64(),
			PositionValue:    values[i].InexactFloat64(),
			WeightPercentage: weight.InexactFloat64(),
			Notes:            p.Notes,
			UpdatedAt:        p.UpdatedAt,
			PriceSource:      rp.source,
			PriceDate:        rp.day,
		})
	}
	result.TotalValue = total.InexactFloat64()

	return result, nil
}

// GetPortfolioStats summarizes a single valuation as of today.
func (s *valuationService) GetPortfolioStats(ctx context.Context, portfolioID string) (*PortfolioStats, error) {
	valuation, err := s.GetPortfolioValue(ctx, portfolioID, nil)
	if err != nil {
		return nil, err
	}

	priced := 0
	for _, d := range valuation.PositionsDetail {
		if d.CurrentPrice > 0 {
			priced++
		}
	}

	return &PortfolioStats{
		PortfolioID:     portfolioID,
		TotalPositions:  len(valuation.PositionsDetail),
		TotalValue:      valuation.TotalValue,
		CalculationDate: valuation.CalculationDate,
		SymbolsCount:    priced,
		SymbolsNotFound: len(valuation.SymbolsNotFound),
	}, nil
}

// resolveStored walks the stored part of the chain. Store errors are logged
// and treated as a missing price.
func (s *valuationService) resolveStored(ctx context.Context, symbol string, target date.Date) (resolvedPrice, bool) {
	log := logger.Named("valuation")

	point, err := s.prices.GetPriceAsOf(ctx, symbol, target)
	if err == nil {
		day := point.Date
		source := PriceSourcePrior
		if day == target {
			source = PriceSourceExact
		}
		return resolvedPrice{price: point.Price.Decimal, source: source, day: &day}, true
	}
	if !errors.Is(err, apperrors.ErrPriceNotFound) {
		log.Warnw("price lookup failed", "operation", "price_as_of", "symbol", symbol, "date", target.String(), "error", err)
	}

	point, err = s.prices.GetLatestPrice(ctx, symbol)
	if err == nil {
		day := point.Date
		return resolvedPrice{price: point.Price.Decimal, source: PriceSourceLatest, day: &day}, true
	}
	if !errors.Is(err, apperrors.ErrPriceNotFound) {
		log.Warnw("price lookup failed", "operation", "latest_price", "symbol", symbol, "error", err)
	}

	return resolvedPrice{}, false
}

// fetchLive asks the source once for the given symbols, bounded by the live
// fetch timeout. Quotes without a numeric price are ignored.
func (s *valuationService) fetchLive(ctx context.Context, symbols []string) map[string]decimal.Decimal {
	if !s.opts.LiveFetch || s.source == nil {
		return nil
	}
	log := logger.Named("valuation")

	ctx, cancel := context.WithTimeout(ctx, s.opts.LiveFetchTimeout)
	defer cancel()

	payload, err := s.source.Fetch(ctx)
	if err != nil {
		log.Warnw("live price fetch failed", "operation", "live_fetch", "symbols", symbols, "error", err)
		return nil
	}

	wanted := make(map[string]struct{}, len(symbols))
	for _, symbol := range symbols {
		wanted[symbol] = struct{}{}
	}

	prices := make(map[string]decimal.Decimal)
	for _, q := range payload.Quotes {
		symbol := models.NormalizeSymbol(q.Symbol)
		if _, ok := wanted[symbol]; !ok {
			continue
		}
		if !q.Price.Valid || pricesource.IsNoData(q.RawPrice) {
			continue
		}
		prices[symbol] = q.Price.Decimal
	}

	log.Debugw("live price fetch", "requested", len(symbols), "found", len(prices))
	return prices
}
