package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "orgfolio/internal/errors"
	"orgfolio/internal/models"
	"orgfolio/internal/uuid"
)

// portfolioService handles portfolio and position business logic.
type portfolioService struct {
	db *gorm.DB
}

// NewPortfolioService creates a new PortfolioServicer.
func NewPortfolioService(db *gorm.DB) PortfolioServicer {
	return &portfolioService{db: db}
}

// CreatePortfolio creates an empty portfolio for an organism.
func (s *portfolioService) CreatePortfolio(ctx context.Context, organismID, name, description string) (*models.Portfolio, error) {
	if strings.TrimSpace(organismID) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Organism is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Name is required")
	}

	portfolio := &models.Portfolio{
		OrganismID:  organismID,
		Name:        strings.TrimSpace(name),
		Description: description,
	}
	if err := s.db.WithContext(ctx).Create(portfolio).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return portfolio, nil
}

// GetPortfoliosByOrganism lists an organism's portfolios, newest first.
func (s *portfolioService) GetPortfoliosByOrganism(ctx context.Context, organismID string) ([]models.Portfolio, error) {
	var portfolios []models.Portfolio
	err := s.db.WithContext(ctx).
		Where("organism_id = ?", organismID).
		Order("created_at DESC").
		Find(&portfolios).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return portfolios, nil
}

// GetPortfolioByID returns a portfolio without its positions.
func (s *portfolioService) GetPortfolioByID(ctx context.Context, portfolioID string) (*models.Portfolio, error) {
	return loadPortfolio(s.db.WithContext(ctx), portfolioID)
}

// loadPortfolio fetches a portfolio by id. Ids that are not UUIDs never reach
// the database, where postgres would reject them as a type error.
func loadPortfolio(db *gorm.DB, portfolioID string) (*models.Portfolio, error) {
	if !uuid.IsValid(portfolioID) {
		return nil, apperrors.ErrPortfolioNotFound
	}
	var portfolio models.Portfolio
	if err := db.Where("id = ?", portfolioID).First(&portfolio).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPortfolioNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &portfolio, nil
}

// UpdatePortfolio changes name and description. A nil or blank name keeps the
// current one; an empty description clears it.
func (s *portfolioService) UpdatePortfolio(ctx context.Context, portfolioID string, name, description *string) (*models.Portfolio, error) {
	portfolio, err := s.GetPortfolioByID(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if name != nil && strings.TrimSpace(*name) != "" {
		updates["name"] = strings.TrimSpace(*name)
	}
	if description != nil {
		updates["description"] = *description
	}
	if len(updates) == 0 {
		return portfolio, nil
	}

	if err := s.db.WithContext(ctx).Model(portfolio).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetPortfolioByID(ctx, portfolioID)
}

// DeletePortfolio removes a portfolio together with its positions.
func (s *portfolioService) DeletePortfolio(ctx context.Context, portfolioID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		portfolio, err := loadPortfolio(tx, portfolioID)
		if err != nil {
			return err
		}
		// sqlite runs without foreign keys, so positions are removed explicitly
		if err := tx.Where("portfolio_id = ?", portfolioID).Delete(&models.Position{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(portfolio).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// GetPortfolioPositions lists positions ordered by symbol.
func (s *portfolioService) GetPortfolioPositions(ctx context.Context, portfolioID string) ([]models.Position, error) {
	if _, err := s.GetPortfolioByID(ctx, portfolioID); err != nil {
		return nil, err
	}
	return s.positions(ctx, portfolioID)
}

func (s *portfolioService) positions(ctx context.Context, portfolioID string) ([]models.Position, error) {
	var positions []models.Position
	err := s.db.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("symbol ASC").
		Find(&positions).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return positions, nil
}

// AddPosition writes the position for symbol. An existing position for the
// same symbol is overwritten, not added to.
func (s *portfolioService) AddPosition(ctx context.Context, portfolioID, symbol string, quantity decimal.Decimal, notes string) (*models.Position, error) {
	symbol = models.NormalizeSymbol(symbol)
	if !models.ValidSymbol(symbol) {
		return nil, apperrors.ErrInvalidSymbol
	}
	if quantity.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Quantity cannot be negative")
	}
	if _, err := s.GetPortfolioByID(ctx, portfolioID); err != nil {
		return nil, err
	}

	position := &models.Position{
		PortfolioID: portfolioID,
		Symbol:      symbol,
		Quantity:    quantity,
		Notes:       notes,
		UpdatedAt:   time.Now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "portfolio_id"}, {Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "notes", "updated_at"}),
	}).Create(position).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return s.findPosition(ctx, portfolioID, symbol)
}

// UpdatePosition changes quantity and/or notes of an existing position.
func (s *portfolioService) UpdatePosition(ctx context.Context, portfolioID, symbol string, quantity *decimal.Decimal, notes *string) (*models.Position, error) {
	if quantity != nil && quantity.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Quantity cannot be negative")
	}

	position, err := s.findPosition(ctx, portfolioID, models.NormalizeSymbol(symbol))
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	if quantity != nil {
		updates["quantity"] = *quantity
	}
	if notes != nil {
		updates["notes"] = *notes
	}

	if err := s.db.WithContext(ctx).Model(position).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.findPosition(ctx, portfolioID, position.Symbol)
}

// RemovePosition deletes the position for symbol.
func (s *portfolioService) RemovePosition(ctx context.Context, portfolioID, symbol string) error {
	result := s.db.WithContext(ctx).
		Where("portfolio_id = ? AND symbol = ?", portfolioID, models.NormalizeSymbol(symbol)).
		Delete(&models.Position{})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrPositionNotFound
	}
	return nil
}

func (s *portfolioService) findPosition(ctx context.Context, portfolioID, symbol string) (*models.Position, error) {
	var position models.Position
	err := s.db.WithContext(ctx).
		Where("portfolio_id = ? AND symbol = ?", portfolioID, symbol).
		First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPositionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &position, nil
}
