package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"orgfolio/internal/date"
	"orgfolio/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// TestOrganismID is the organism used by fixtures unless a test picks another.
const TestOrganismID = "org-test"

// CreateTestPortfolio creates an empty portfolio for the given organism.
func CreateTestPortfolio(t *testing.T, db *gorm.DB, organismID string) *models.Portfolio {
	t.Helper()

	portfolio := &models.Portfolio{
		OrganismID:  organismID,
		Name:        fmt.Sprintf("Portfolio %d", nextID()),
		Description: "test portfolio",
	}
	if err := db.Create(portfolio).Error; err != nil {
		t.Fatalf("failed to create test portfolio: %v", err)
	}
	return portfolio
}

// CreateTestPosition adds a position to a portfolio.
func CreateTestPosition(t *testing.T, db *gorm.DB, portfolioID, symbol string, quantity float64) *models.Position {
	t.Helper()

	position := &models.Position{
		PortfolioID: portfolioID,
		Symbol:      symbol,
		Quantity:    decimal.NewFromFloat(quantity),
	}
	if err := db.Create(position).Error; err != nil {
		t.Fatalf("failed to create test position: %v", err)
	}
	return position
}

// CreateTestPricePoint records a price for symbol on day (YYYY-MM-DD).
func CreateTestPricePoint(t *testing.T, db *gorm.DB, symbol, day string, price float64) *models.PricePoint {
	t.Helper()

	point := &models.PricePoint{
		Symbol:     symbol,
		Date:       date.MustParse(day),
		Price:      decimal.NewNullDecimal(decimal.NewFromFloat(price)),
		RawPrice:   decimal.NewFromFloat(price).String(),
		CapturedAt: time.Now(),
		Source:     "test",
	}
	if err := db.Create(point).Error; err != nil {
		t.Fatalf("failed to create test price point: %v", err)
	}
	return point
}

// CreateTestNullPricePoint records a captured row whose price was unavailable.
func CreateTestNullPricePoint(t *testing.T, db *gorm.DB, symbol, day, raw string) *models.PricePoint {
	t.Helper()

	point := &models.PricePoint{
		Symbol:     symbol,
		Date:       date.MustParse(day),
		RawPrice:   raw,
		CapturedAt: time.Now(),
		Source:     "test",
	}
	if err := db.Create(point).Error; err != nil {
		t.Fatalf("failed to create test price point: %v", err)
	}
	return point
}
