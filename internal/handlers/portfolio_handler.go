package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "orgfolio/internal/errors"
	"orgfolio/internal/middleware"
	"orgfolio/internal/models"
	"orgfolio/internal/services"
)

// PortfolioHandler handles portfolio, position and valuation requests.
type PortfolioHandler struct {
	portfolioService services.PortfolioServicer
	valuationService services.ValuationServicer
	auditService     services.AuditServicer
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioService services.PortfolioServicer, valuationService services.ValuationServicer, auditService services.AuditServicer) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService: portfolioService,
		valuationService: valuationService,
		auditService:     auditService,
	}
}

// CreatePortfolioRequest represents the request payload for creating a portfolio.
type CreatePortfolioRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	Description string `json:"description" binding:"max=500"`
}

// UpdatePortfolioRequest represents the request payload for updating a portfolio.
// An empty name is ignored; an empty description clears it.
type UpdatePortfolioRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
}

// AddPositionRequest represents the request payload for adding or replacing a position.
type AddPositionRequest struct {
	Symbol   string           `json:"symbol" binding:"required,symbol"`
	Quantity *decimal.Decimal `json:"quantity" binding:"required" swaggertype:"number"`
	Notes    string           `json:"notes" binding:"max=500"`
}

// UpdatePositionRequest represents the request payload for updating a position.
type UpdatePositionRequest struct {
	Quantity *decimal.Decimal `json:"quantity" swaggertype:"number"`
	Notes    *string          `json:"notes" binding:"omitempty,max=500"`
}

// authorizePortfolio loads the portfolio in the :id path parameter and checks
// that it belongs to one of the caller's organisms. A portfolio owned by
// someone else is reported as not found.
func (h *PortfolioHandler) authorizePortfolio(c *gin.Context) (*models.Portfolio, error) {
	portfolio, err := h.portfolioService.GetPortfolioByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if !middleware.CanAccessOrganism(c, portfolio.OrganismID) {
		return nil, apperrors.ErrPortfolioNotFound
	}
	return portfolio, nil
}

// CreatePortfolio handles creating a portfolio for an organism.
// @Summary     Create portfolio
// @Description Create a new portfolio owned by an organism
// @Tags        portfolios
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       organism_id path string true "Organism ID"
// @Param       request body CreatePortfolioRequest true "Portfolio details"
// @Success     201 {object} models.Portfolio "Portfolio created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not a member of the organism"
// @Router      /organisms/{organism_id}/portfolios [post]
func (h *PortfolioHandler) CreatePortfolio(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	organismID := c.Param("organism_id")
	if !middleware.CanAccessOrganism(c, organismID) {
		respondWithError(c, apperrors.ErrForbidden)
		return
	}

	var req CreatePortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	portfolio, err := h.portfolioService.CreatePortfolio(c.Request.Context(), organismID, req.Name, req.Description)
	if err != nil {
		respondWithError(c, err)
		return
	}

	recordAudit(c, h.auditService, services.AuditEntry{
		UserID:       userID,
		OrganismID:   organismID,
		Action:       services.AuditCreatePortfolio,
		ResourceType: "portfolio",
		ResourceID:   portfolio.ID,
		Changes:      map[string]interface{}{"name": req.Name},
	})

	c.JSON(http.StatusCreated, gin.H{"portfolio": portfolio})
}

// GetOrganismPortfolios handles listing the portfolios of an organism.
// @Summary     List portfolios
// @Description List the portfolios owned by an organism
// @Tags        portfolios
// @Produce     json
// @Security    BearerAuth
// @Param       organism_id path string true "Organism ID"
// @Success     200 {object} map[string]interface{} "Portfolios"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not a member of the organism"
// @Router      /organisms/{organism_id}/portfolios [get]
func (h *PortfolioHandler) GetOrganismPortfolios(c *gin.Context) {
	organismID := c.Param("organism_id")
	if !middleware.CanAccessOrganism(c, organismID) {
		respondWithError(c, apperrors.ErrForbidden)
		return
	}

	portfolios, err := h.portfolioService.GetPortfoliosByOrganism(c.Request.Context(), organismID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"portfolios": portfolios})
}

// GetPortfolio handles retrieving a single portfolio.
// @Summary     Get portfolio
// @Tags        portfolios
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Portfolio ID"
// @Success     200 {object} models.Portfolio "Portfolio"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Portfolio not found"
// @Router      /portfolios/{id} [get]
func (h *PortfolioHandler) GetPortfolio(c *gin.Context) {
	portfolio, err := h.authorizePortfolio(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"portfolio": portfolio})
}

// UpdatePortfolio handles renaming or re-describing a portfolio.
// @Summary     Update portfolio
// @Tags        portfolios
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Portfolio ID"
// @Param       request body UpdatePortfolioRequest true "Fields to update"
// @Success     200 {object} models.Portfolio "Updated portfolio"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Portfolio not found"
// @Router      /portfolios/{id} [put]
func (h *PortfolioHandler) UpdatePortfolio(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if _, err := h.authorizePortfolio(c); err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdatePortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	portfolio, err := h.portfolioService.UpdatePortfolio(c.Request.Context(), c.Param("id"), req.Name, req.Description)
	if err != nil {
		respondWithError(c, err)
		return
	}

	recordAudit(c, h.auditService, services.AuditEntry{
		UserID:       userID,
		OrganismID:   portfolio.OrganismID,
		Action:       services.AuditUpdatePortfolio,
		ResourceType: "portfolio",
		ResourceID:   portfolio.ID,
	})

	c.JSON(http.StatusOK, gin.H{"portfolio": portfolio})
}

// DeletePortfolio handles deleting a portfolio and its positions.
// @Summary     Delete portfolio
// @Tags        portfolios
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Portfolio ID"
// @Success     200 {object} map[string]string "Portfolio deleted"
// @Failure     404 {object} ErrorResponse "Portfolio not found"
// @Router      /portfolios/{id} [delete]
func (h *PortfolioHandler) DeletePortfolio(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	portfolio, err := h.authorizePortfolio(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.portfolioService.DeletePortfolio(c.Request.Context(), portfolio.ID); err != nil {
		respondWithError(c, err)
		return
	}

	recordAudit(c, h.auditService, services.AuditEntry{
		UserID:       userID,
		OrganismID:   portfolio.OrganismID,
		Action:       services.AuditDeletePortfolio,
		ResourceType: "portfolio",
		ResourceID:   portfolio.ID,
		Changes:      map[string]interface{}{"name": portfolio.Name},
	})

	c.JSON(http.StatusOK, gin.H{"message": "Portfolio deleted successfully"})
}

// GetPositions handles listing the positions of a portfolio.
// @Summary     List positions
// @Tags        positions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Portfolio ID"
// @Success     200 {object} map[string]interface{} "Positions ordered by symbol"
// @Failure     404 {object} ErrorResponse "Portfolio not found"
// @Router      /portfolios/{id}/positions [get]
func (h *PortfolioHandler) GetPositions(c *gin.Context) {
	portfolio, err := h.authorizePortfolio(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	positions, err := h.portfolioService.GetPortfolioPositions(c.Request.Context(), portfolio.ID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

// AddPosition handles adding a position, replacing the quantity if the symbol is already held.
// @Summary     Add or replace position
// @Tags        positions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Portfolio ID"
// @Param       request body AddPositionRequest true "Position details"
// @Success     201 {object} models.Position "Position stored"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Portfolio not found"
// @Router      /portfolios/{id}/positions [post]
func (h *PortfolioHandler) AddPosition(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	portfolio, err := h.authorizePortfolio(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AddPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	position, err := h.portfolioService.AddPosition(c.Request.Context(), portfolio.ID, req.Symbol, *req.Quantity, req.Notes)
	if err != nil {
		respondWithError(c, err)
		return
	}

	recordAudit(c, h.auditService, services.AuditEntry{
		UserID:       userID,
		OrganismID:   portfolio.OrganismID,
		Action:       services.AuditUpsertPosition,
		ResourceType: "position",
		ResourceID:   position.ID,
		Changes:      map[string]interface{}{"portfolio_id": portfolio.ID, "symbol": position.Symbol, "quantity": position.Quantity.String()},
	})

	c.JSON(http.StatusCreated, gin.H{"position": position})
}

// UpdatePosition handles changing the quantity or notes of a held symbol.
// @Summary     Update position
// @Tags        positions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Portfolio ID"
// @Param       symbol path string true "Symbol"
// @Param       request body UpdatePositionRequest true "Fields to update"
// @Success     200 {object} models.Position "Updated position"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Portfolio or position not found"
// @Router      /portfolios/{id}/positions/{symbol} [put]
func (h *PortfolioHandler) UpdatePosition(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	portfolio, err := h.authorizePortfolio(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdatePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	position, err := h.portfolioService.UpdatePosition(c.Request.Context(), portfolio.ID, c.Param("symbol"), req.Quantity, req.Notes)
	if err != nil {
		respondWithError(c, err)
		return
	}

	recordAudit(c, h.auditService, services.AuditEntry{
		UserID:       userID,
		OrganismID:   portfolio.OrganismID,
		Action:       services.AuditUpdatePosition,
		ResourceType: "position",
		ResourceID:   position.ID,
		Changes:      map[string]interface{}{"portfolio_id": portfolio.ID, "symbol": position.Symbol},
	})

	c.JSON(http.StatusOK, gin.H{"position": position})
}

// RemovePosition handles removing a symbol from a portfolio.
// @Summary     Remove position
// @Tags        positions
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Portfolio ID"
// @Param       symbol path string true "Symbol"
// @Success     200 {object} map[string]string "Position removed"
// @Failure     404 {object} ErrorResponse "Portfolio or position not found"
// @Router      /portfolios/{id}/positions/{symbol} [delete]
func (h *PortfolioHandler) RemovePosition(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	portfolio, err := h.authorizePortfolio(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	symbol := models.NormalizeSymbol(c.Param("symbol"))
	if err := h.portfolioService.RemovePosition(c.Request.Context(), portfolio.ID, symbol); err != nil {
		respondWithError(c, err)
		return
	}

	recordAudit(c, h.auditService, services.AuditEntry{
		UserID:       userID,
		OrganismID:   portfolio.OrganismID,
		Action:       services.AuditRemovePosition,
		ResourceType: "portfolio",
		ResourceID:   portfolio.ID,
		Changes:      map[string]interface{}{"symbol": symbol},
	})

	c.JSON(http.StatusOK, gin.H{"message": "Position removed successfully"})
}

// GetPortfolioValue handles valuing a portfolio on a given day.
// @Summary     Value portfolio
// @Description Value every position at the price recorded on the given day, or the nearest earlier one
// @Tags        valuation
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Portfolio ID"
// @Param       date query string false "Valuation day (YYYY-MM-DD), defaults to today"
// @Success     200 {object} services.ValuationResult "Valuation"
// @Failure     400 {object} ErrorResponse "Invalid date"
// @Failure     404 {object} ErrorResponse "Portfolio not found"
// @Router      /portfolios/{id}/value [get]
func (h *PortfolioHandler) GetPortfolioValue(c *gin.Context) {
	on, err := parseDateQuery(c, "date")
	if err != nil {
		respondWithError(c, err)
		return
	}

	portfolio, err := h.authorizePortfolio(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.valuationService.GetPortfolioValue(c.Request.Context(), portfolio.ID, on)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPortfolioStats handles summarizing today's valuation of a portfolio.
// @Summary     Portfolio stats
// @Tags        valuation
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Portfolio ID"
// @Success     200 {object} services.PortfolioStats "Stats"
// @Failure     404 {object} ErrorResponse "Portfolio not found"
// @Router      /portfolios/{id}/stats [get]
func (h *PortfolioHandler) GetPortfolioStats(c *gin.Context) {
	portfolio, err := h.authorizePortfolio(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	stats, err := h.valuationService.GetPortfolioStats(c.Request.Context(), portfolio.ID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ActivityQuery holds the filters of the activity endpoint.
type ActivityQuery struct {
	ResourceType string `form:"resource_type" binding:"omitempty,oneof=portfolio position"`
	Limit        int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

// GetOrganismActivity handles listing the recorded changes of an organism.
// @Summary     Organism activity
// @Description Most recent portfolio and position changes, newest first
// @Tags        portfolios
// @Produce     json
// @Security    BearerAuth
// @Param       organism_id path string true "Organism ID"
// @Param       resource_type query string false "portfolio or position"
// @Param       limit query int false "Maximum entries (default 50)"
// @Success     200 {object} map[string]interface{} "Activity"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Not a member of the organism"
// @Router      /organisms/{organism_id}/activity [get]
func (h *PortfolioHandler) GetOrganismActivity(c *gin.Context) {
	organismID := c.Param("organism_id")
	if !middleware.CanAccessOrganism(c, organismID) {
		respondWithError(c, apperrors.ErrForbidden)
		return
	}

	var q ActivityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	entries, err := h.auditService.List(c.Request.Context(), services.AuditFilter{
		OrganismID:   organismID,
		ResourceType: q.ResourceType,
		Limit:        q.Limit,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"activity": entries, "count": len(entries)})
}
