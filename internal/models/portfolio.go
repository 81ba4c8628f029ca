package models

import (
	"time"

	"orgfolio/internal/uuid"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Portfolio is a named set of positions owned by one organism.
// Deleting a portfolio deletes its positions.
type Portfolio struct {
	Base
	OrganismID  string     `gorm:"not null;index" json:"organism_id"`
	Name        string     `gorm:"not null" json:"name"`
	Description string     `json:"description"`
	Positions   []Position `gorm:"foreignKey:PortfolioID;constraint:OnDelete:CASCADE" json:"positions,omitempty"`
}

// Position holds a quantity of one symbol inside a portfolio. There is at
// most one position per (portfolio, symbol); writing it again replaces the
// quantity instead of adding to it.
type Position struct {
	ID          string          `gorm:"type:uuid;primaryKey" json:"id"`
	PortfolioID string          `gorm:"type:uuid;not null;uniqueIndex:uq_positions_portfolio_symbol" json:"portfolio_id"`
	Symbol      string          `gorm:"not null;uniqueIndex:uq_positions_portfolio_symbol" json:"symbol"`
	Quantity    decimal.Decimal `gorm:"type:numeric;not null" json:"quantity"`
	Notes       string          `json:"notes"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (p *Position) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New()
	}
	return nil
}
