package models

import (
	"time"

	"orgfolio/internal/date"
	"orgfolio/internal/uuid"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PricePoint is the price of a symbol for one calendar day.
// This is append-only time-series data: one row per (symbol, date), rewritten
// in place by later captures of the same day and never deleted.
type PricePoint struct {
	ID         string              `gorm:"type:uuid;primaryKey" json:"id"`
	Symbol     string              `gorm:"not null;uniqueIndex:uq_price_history_symbol_date" json:"symbol"`
	Date       date.Date           `gorm:"not null;uniqueIndex:uq_price_history_symbol_date;index" json:"date"`
	Price      decimal.NullDecimal `gorm:"type:numeric" json:"price"`
	RawPrice   string              `json:"raw_price"`
	CapturedAt time.Time           `gorm:"not null" json:"captured_at"`
	Source     string              `gorm:"not null" json:"source"`
}

// TableName keeps the historical table name.
func (PricePoint) TableName() string { return "price_history" }

// BeforeCreate hook generates a UUIDv7 for new records
func (p *PricePoint) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New()
	}
	return nil
}
