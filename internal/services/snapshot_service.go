package services

import (
	"context"
	"time"

	"orgfolio/internal/date"
	apperrors "orgfolio/internal/errors"
	"orgfolio/internal/logger"
	"orgfolio/internal/models"
	"orgfolio/internal/pricesource"

	"github.com/shopspring/decimal"
)

// snapshotService runs one fetch-and-persist ingestion cycle.
type snapshotService struct {
	source pricesource.Source
	store  PricePointWriter
	loc    *time.Location
	now    func() time.Time
}

// NewSnapshotService creates a new SnapshotServicer writing to store. Rows
// are keyed by the calendar day in loc, the market timezone; nil means the
// host timezone.
func NewSnapshotService(source pricesource.Source, store PricePointWriter, loc *time.Location) SnapshotServicer {
	if loc == nil {
		loc = time.Local
	}
	return &snapshotService{source: source, store: store, loc: loc, now: time.Now}
}

// RunSnapshot fetches the current quotes and upserts one price point per
// symbol for today. Individual write failures are counted and skipped; the
// run fails only when nothing could be fetched or nothing was written.
func (s *snapshotService) RunSnapshot(ctx context.Context) (*SnapshotResult, error) {
	log := logger.Named("snapshot")
	started := s.now()
	result := &SnapshotResult{
		Date:      date.Of(started.In(s.loc)),
		Source:    s.source.Name(),
		StartedAt: started,
	}
	defer func() {
		result.Duration = time.Since(started)
		result.TookMS = result.Duration.Milliseconds()
	}()

	payload, err := s.source.Fetch(ctx)
	if err != nil {
		log.Errorw("market data fetch failed", "source", result.Source, "error", err)
		return result, apperrors.Wrap(apperrors.ErrSourceUnavailable, err)
	}
	if payload.Len() == 0 {
		log.Warnw("market data source returned no quotes", "source", result.Source)
		return result, apperrors.WithMessage(apperrors.ErrSnapshotFailed, "Market data source returned no quotes")
	}

	result.Received = payload.Len()
	log.Infow("saving market snapshot", "symbols", result.Received, "date", result.Date.String())

	for _, q := range payload.Quotes {
		if err := ctx.Err(); err != nil {
			log.Warnw("snapshot interrupted", "error", err, "saved", result.Saved)
			break
		}

		point, ok := s.toPricePoint(q, result.Date, started)
		if !ok {
			result.Skipped++
			log.Warnw("skipping quote without a usable symbol", "raw_symbol", q.Symbol)
			continue
		}
		if !point.Price.Valid {
			log.Debugw("storing quote without price", "symbol", point.Symbol, "raw_price", point.RawPrice)
		}

		if err := s.store.UpsertPricePoint(ctx, point); err != nil {
			result.Failed++
			log.Errorw("failed to upsert price point",
				"operation", "upsert_price_point",
				"symbol", point.Symbol,
				"date", result.Date.String(),
				"error", err,
			)
			continue
		}
		result.Saved++
	}

	log.Infow("market snapshot finished",
		"date", result.Date.String(),
		"received", result.Received,
		"saved", result.Saved,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)

	if !result.Success() {
		return result, apperrors.WithMessage(apperrors.ErrSnapshotFailed, "No price could be saved")
	}
	return result, nil
}

// toPricePoint normalizes a quote. The price is null for "no data" markers
// and for values that do not parse as a number.
func (s *snapshotService) toPricePoint(q pricesource.Quote, day date.Date, capturedAt time.Time) (*models.PricePoint, bool) {
	symbol := models.NormalizeSymbol(q.Symbol)
	if symbol == "" {
		return nil, false
	}

	raw := q.RawPrice
	price := q.Price
	if !price.Valid && raw != "" {
		price = pricesource.ParsePrice(raw)
	}
	if pricesource.IsNoData(raw) {
		price = decimal.NullDecimal{}
	}
	if raw == "" && price.Valid {
		raw = price.Decimal.String()
	}

	return &models.PricePoint{
		Symbol:     symbol,
		Date:       day,
		Price:      price,
		RawPrice:   raw,
		CapturedAt: capturedAt,
		Source:     s.source.Name(),
	}, true
}
