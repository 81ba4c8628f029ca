package services

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"orgfolio/internal/date"
	"orgfolio/internal/models"
	"orgfolio/internal/pagination"
	"orgfolio/internal/testutil"

	"github.com/shopspring/decimal"
)

func pricePoint(symbol, day, price string) *models.PricePoint {
	return &models.PricePoint{
		Symbol:   symbol,
		Date:     date.MustParse(day),
		Price:    decimal.NewNullDecimal(decimal.RequireFromString(price)),
		RawPrice: price,
		Source:   "test",
	}
}

func TestUpsertPricePoint(t *testing.T) {
	t.Run("overwrites_same_day", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewPriceHistoryService(db)
		ctx := context.Background()

		testutil.AssertNoError(t, svc.UpsertPricePoint(ctx, pricePoint("aapl", "2024-01-05", "10")))
		testutil.AssertNoError(t, svc.UpsertPricePoint(ctx, pricePoint("AAPL", "2024-01-05", "11.5")))

		var rows []models.PricePoint
		db.Where("symbol = ?", "AAPL").Find(&rows)
		if len(rows) != 1 {
			t.Fatalf("expected 1 row, got %d", len(rows))
		}
		testutil.AssertNullDecimal(t, "11.5", rows[0].Price)
	})

	t.Run("different_days_append", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewPriceHistoryService(db)
		ctx := context.Background()

		testutil.AssertNoError(t, svc.UpsertPricePoint(ctx, pricePoint("AAPL", "2024-01-05", "10")))
		testutil.AssertNoError(t, svc.UpsertPricePoint(ctx, pricePoint("AAPL", "2024-01-06", "10")))

		var count int64
		db.Model(&models.PricePoint{}).Count(&count)
		if count != 2 {
			t.Errorf("expected 2 rows, got %d", count)
		}
	})

	t.Run("missing_symbol", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewPriceHistoryService(db)

		err := svc.UpsertPricePoint(context.Background(), pricePoint("  ", "2024-01-05", "10"))
		testutil.AssertAppError(t, err, "INVALID_SYMBOL")
	})

	t.Run("keeps_stored_id_on_conflict", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewPriceHistoryService(db)
		ctx := context.Background()

		first := pricePoint("AAPL", "2024-01-05", "10")
		testutil.AssertNoError(t, svc.UpsertPricePoint(ctx, first))
		second := pricePoint("AAPL", "2024-01-05", "11")
		testutil.AssertNoError(t, svc.UpsertPricePoint(ctx, second))

		var stored models.PricePoint
		if err := db.Where("symbol = ?", "AAPL").First(&stored).Error; err != nil {
			t.Fatalf("failed to load stored row: %v", err)
		}
		if second.ID != stored.ID || first.ID != stored.ID {
			t.Errorf("expected both writes to report id %s, got %s and %s", stored.ID, first.ID, second.ID)
		}
	})

	t.Run("concurrent_writers_same_day", func(t *testing.T) {
		db := testutil.SetupFileTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewPriceHistoryService(db)
		ctx := context.Background()

		sqlDB, err := db.DB()
		if err != nil {
			t.Fatalf("failed to get underlying DB: %v", err)
		}
		if open := sqlDB.Stats().MaxOpenConnections; open < 2 {
			t.Fatalf("expected a pool with several connections, got %d", open)
		}

		symbols := []string{"AAPL", "MSFT", "GGAL", "YPF"}
		const writers = 8
		var wg sync.WaitGroup
		start := make(chan struct{})
		errs := make(chan error, writers*len(symbols))
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				<-start
				for _, symbol := range symbols {
					// price and raw_price carry the same writer-specific value.
					errs <- svc.UpsertPricePoint(ctx, pricePoint(symbol, "2024-01-05", fmt.Sprintf("%d", 100+w)))
				}
			}(w)
		}
		close(start)
		wg.Wait()
		close(errs)
		for err := range errs {
			testutil.AssertNoError(t, err)
		}

		for _, symbol := range symbols {
			var rows []models.PricePoint
			db.Where("symbol = ?", symbol).Find(&rows)
			if len(rows) != 1 {
				t.Errorf("expected exactly 1 row for %s, got %d", symbol, len(rows))
				continue
			}
			row := rows[0]
			if !row.Price.Valid || row.Price.Decimal.String() != row.RawPrice {
				t.Errorf("%s: price %s and raw_price %q come from different writes", symbol, row.Price.Decimal, row.RawPrice)
			}
			written := row.Price.Decimal.IntPart()
			if written < 100 || written >= 100+writers {
				t.Errorf("%s: unexpected price %s", symbol, row.Price.Decimal)
			}
		}
	})
}

func TestGetPriceAsOf(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewPriceHistoryService(db)
	ctx := context.Background()

	testutil.CreateTestPricePoint(t, db, "X", "2024-01-01", 10)
	testutil.CreateTestPricePoint(t, db, "X", "2024-01-05", 12)
	testutil.CreateTestNullPricePoint(t, db, "X", "2024-01-04", "#N/A")

	cases := map[string]string{
		"2024-01-01": "10",
		"2024-01-03": "10",
		"2024-01-04": "10", // the null row is ignored
		"2024-01-05": "12",
		"2024-01-10": "12",
	}
	for day, want := range cases {
		t.Run(day, func(t *testing.T) {
			point, err := svc.GetPriceAsOf(ctx, "x", date.MustParse(day))
			testutil.AssertNoError(t, err)
			if point.Price.Decimal.String() != want {
				t.Errorf("expected %s, got %s", want, point.Price.Decimal)
			}
		})
	}

	t.Run("before_first_point", func(t *testing.T) {
		_, err := svc.GetPriceAsOf(ctx, "X", date.MustParse("2023-12-31"))
		testutil.AssertAppError(t, err, "PRICE_NOT_FOUND")
	})
}

func TestGetLatestPrice(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewPriceHistoryService(db)
	ctx := context.Background()

	testutil.CreateTestPricePoint(t, db, "X", "2024-01-01", 10)
	testutil.CreateTestPricePoint(t, db, "X", "2024-01-05", 12)
	testutil.CreateTestNullPricePoint(t, db, "X", "2024-01-09", "Cargando...")

	point, err := svc.GetLatestPrice(ctx, "X")
	testutil.AssertNoError(t, err)
	if point.Date.String() != "2024-01-05" {
		t.Errorf("expected latest priced row 2024-01-05, got %s", point.Date)
	}

	_, err = svc.GetLatestPrice(ctx, "Z")
	testutil.AssertAppError(t, err, "PRICE_NOT_FOUND")
}

func TestGetMarketHistory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewPriceHistoryService(db)
	ctx := context.Background()

	testutil.CreateTestPricePoint(t, db, "MSFT", "2024-01-02", 400)
	testutil.CreateTestPricePoint(t, db, "AAPL", "2024-01-02", 190)
	testutil.CreateTestPricePoint(t, db, "AAPL", "2024-01-03", 191)
	testutil.CreateTestPricePoint(t, db, "AAPL", "2024-01-04", 192)

	t.Run("ordered_date_desc_then_symbol", func(t *testing.T) {
		resp, err := svc.GetMarketHistory(ctx, MarketHistoryFilter{}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)

		if resp.TotalItems != 4 || resp.PageSize != pagination.DefaultPageSize {
			t.Fatalf("unexpected page meta %+v", resp)
		}
		got := make([]string, len(resp.Data))
		for i, p := range resp.Data {
			got[i] = p.Date.String() + "/" + p.Symbol
		}
		want := []string{"2024-01-04/AAPL", "2024-01-03/AAPL", "2024-01-02/AAPL", "2024-01-02/MSFT"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("expected order %v, got %v", want, got)
			}
		}
	})

	t.Run("filters", func(t *testing.T) {
		from := date.MustParse("2024-01-03")
		to := date.MustParse("2024-01-03")
		resp, err := svc.GetMarketHistory(ctx, MarketHistoryFilter{Symbol: "aapl", From: &from, To: &to}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if len(resp.Data) != 1 || resp.Data[0].Price.Decimal.String() != "191" {
			t.Errorf("expected only 2024-01-03 AAPL, got %+v", resp.Data)
		}
	})

	t.Run("pagination", func(t *testing.T) {
		resp, err := svc.GetMarketHistory(ctx, MarketHistoryFilter{}, pagination.PageRequest{Page: 2, PageSize: 3})
		testutil.AssertNoError(t, err)
		if len(resp.Data) != 1 || resp.TotalPages != 2 {
			t.Errorf("expected 1 row on page 2 of 2, got %d rows, %d pages", len(resp.Data), resp.TotalPages)
		}
	})
}

func TestGetLatestPrices(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewPriceHistoryService(db)

	testutil.CreateTestPricePoint(t, db, "MSFT", "2024-01-02", 400)
	testutil.CreateTestPricePoint(t, db, "AAPL", "2024-01-02", 190)
	testutil.CreateTestPricePoint(t, db, "AAPL", "2024-01-04", 192)

	points, err := svc.GetLatestPrices(context.Background())
	testutil.AssertNoError(t, err)
	if len(points) != 2 {
		t.Fatalf("expected one row per symbol, got %d", len(points))
	}
	if points[0].Symbol != "AAPL" || points[0].Date.String() != "2024-01-04" {
		t.Errorf("expected AAPL 2024-01-04 first, got %s %s", points[0].Symbol, points[0].Date)
	}
	if points[1].Symbol != "MSFT" {
		t.Errorf("expected MSFT second, got %s", points[1].Symbol)
	}
}

func TestGetSymbolHistory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewPriceHistoryService(db).(*priceHistoryService)
	svc.now = func() time.Time { return time.Date(2024, 3, 31, 12, 0, 0, 0, time.Local) }
	ctx := context.Background()

	testutil.CreateTestPricePoint(t, db, "AAPL", "2024-01-15", 180)
	testutil.CreateTestPricePoint(t, db, "AAPL", "2024-03-10", 190)
	testutil.CreateTestPricePoint(t, db, "AAPL", "2024-03-30", 195)
	testutil.CreateTestPricePoint(t, db, "MSFT", "2024-03-30", 400)

	points, err := svc.GetSymbolHistory(ctx, "aapl", 30)
	testutil.AssertNoError(t, err)
	if len(points) != 2 {
		t.Fatalf("expected 2 rows in the last 30 days, got %d", len(points))
	}
	if points[0].Date.String() != "2024-03-30" {
		t.Errorf("expected newest first, got %s", points[0].Date)
	}

	_, err = svc.GetSymbolHistory(ctx, "AAPL", 0)
	testutil.AssertAppError(t, err, "INVALID_INPUT")

	_, err = svc.GetSymbolHistory(ctx, "AAPL", MaxSymbolHistoryDays+1)
	testutil.AssertAppError(t, err, "INVALID_INPUT")

	// A window far larger than any calendar must not wrap around.
	_, err = svc.GetSymbolHistory(ctx, "AAPL", math.MaxInt)
	testutil.AssertAppError(t, err, "INVALID_INPUT")

	points, err = svc.GetSymbolHistory(ctx, "AAPL", MaxSymbolHistoryDays)
	testutil.AssertNoError(t, err)
	if len(points) != 3 {
		t.Errorf("expected all 3 rows with the widest window, got %d", len(points))
	}
}
