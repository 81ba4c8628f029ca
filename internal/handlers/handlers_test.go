package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"orgfolio/internal/date"
	"orgfolio/internal/middleware"
	"orgfolio/internal/models"
	"orgfolio/internal/pagination"
	"orgfolio/internal/pricesource"
	"orgfolio/internal/scheduler"
	"orgfolio/internal/services"
	"orgfolio/internal/validator"
)

const (
	testUserID     = "user-1"
	testOrganismID = "org-1"
	otherOrganism  = "org-2"
)

// --- mock services ---

type mockPortfolioService struct {
	createPortfolioFn         func(organismID, name, description string) (*models.Portfolio, error)
	getPortfoliosByOrganismFn func(organismID string) ([]models.Portfolio, error)
	getPortfolioByIDFn        func(portfolioID string) (*models.Portfolio, error)
	updatePortfolioFn         func(portfolioID string, name, description *string) (*models.Portfolio, error)
	deletePortfolioFn         func(portfolioID string) error
	getPortfolioPositionsFn   func(portfolioID string) ([]models.Position, error)
	addPositionFn             func(portfolioID, symbol string, quantity decimal.Decimal, notes string) (*models.Position, error)
	updatePositionFn          func(portfolioID, symbol string, quantity *decimal.Decimal, notes *string) (*models.Position, error)
	removePositionFn          func(portfolioID, symbol string) error
}

var _ services.PortfolioServicer = (*mockPortfolioService)(nil)

func (m *mockPortfolioService) CreatePortfolio(_ context.Context, organismID, name, description string) (*models.Portfolio, error) {
	if m.createPortfolioFn != nil {
		return m.createPortfolioFn(organismID, name, description)
	}
	return &models.Portfolio{OrganismID: organismID, Name: name, Description: description}, nil
}

func (m *mockPortfolioService) GetPortfoliosByOrganism(_ context.Context, organismID string) ([]models.Portfolio, error) {
	if m.getPortfoliosByOrganismFn != nil {
		return m.getPortfoliosByOrganismFn(organismID)
	}
	return []models.Portfolio{}, nil
}

// GetPortfolioByID defaults to a portfolio owned by testOrganismID.
func (m *mockPortfolioService) GetPortfolioByID(_ context.Context, portfolioID string) (*models.Portfolio, error) {
	if m.getPortfolioByIDFn != nil {
		return m.getPortfolioByIDFn(portfolioID)
	}
	return &models.Portfolio{Base: models.Base{ID: portfolioID}, OrganismID: testOrganismID, Name: "Main"}, nil
}

func (m *mockPortfolioService) UpdatePortfolio(_ context.Context, portfolioID string, name, description *string) (*models.Portfolio, error) {
	if m.updatePortfolioFn != nil {
		return m.updatePortfolioFn(portfolioID, name, description)
	}
	return &models.Portfolio{Base: models.Base{ID: portfolioID}}, nil
}

func (m *mockPortfolioService) DeletePortfolio(_ context.Context, portfolioID string) error {
	if m.deletePortfolioFn != nil {
		return m.deletePortfolioFn(portfolioID)
	}
	return nil
}

func (m *mockPortfolioService) GetPortfolioPositions(_ context.Context, portfolioID string) ([]models.Position, error) {
	if m.getPortfolioPositionsFn != nil {
		return m.getPortfolioPositionsFn(portfolioID)
	}
	return []models.Position{}, nil
}

func (m *mockPortfolioService) AddPosition(_ context.Context, portfolioID, symbol string, quantity decimal.Decimal, notes string) (*models.Position, error) {
	if m.addPositionFn != nil {
		return m.addPositionFn(portfolioID, symbol, quantity, notes)
	}
	return &models.Position{PortfolioID: portfolioID, Symbol: symbol, Quantity: quantity, Notes: notes}, nil
}

func (m *mockPortfolioService) UpdatePosition(_ context.Context, portfolioID, symbol string, quantity *decimal.Decimal, notes *string) (*models.Position, error) {
	if m.updatePositionFn != nil {
		return m.updatePositionFn(portfolioID, symbol, quantity, notes)
	}
	return &models.Position{PortfolioID: portfolioID, Symbol: symbol}, nil
}

func (m *mockPortfolioService) RemovePosition(_ context.Context, portfolioID, symbol string) error {
	if m.removePositionFn != nil {
		return m.removePositionFn(portfolioID, symbol)
	}
	return nil
}

type mockValuationService struct {
	getPortfolioValueFn func(portfolioID string, on *date.Date) (*services.ValuationResult, error)
	getPortfolioStatsFn func(portfolioID string) (*services.PortfolioStats, error)
}

var _ services.ValuationServicer = (*mockValuationService)(nil)

func (m *mockValuationService) GetPortfolioValue(_ context.Context, portfolioID string, on *date.Date) (*services.ValuationResult, error) {
	if m.getPortfolioValueFn != nil {
		return m.getPortfolioValueFn(portfolioID, on)
	}
	return &services.ValuationResult{PortfolioID: portfolioID}, nil
}

func (m *mockValuationService) GetPortfolioStats(_ context.Context, portfolioID string) (*services.PortfolioStats, error) {
	if m.getPortfolioStatsFn != nil {
		return m.getPortfolioStatsFn(portfolioID)
	}
	return &services.PortfolioStats{PortfolioID: portfolioID}, nil
}

type mockPriceService struct {
	getMarketHistoryFn func(filter services.MarketHistoryFilter, page pagination.PageRequest) (*pagination.PageResponse[models.PricePoint], error)
	getLatestPricesFn  func() ([]models.PricePoint, error)
	getSymbolHistoryFn func(symbol string, days int) ([]models.PricePoint, error)
}

var _ services.PriceHistoryServicer = (*mockPriceService)(nil)

func (m *mockPriceService) UpsertPricePoint(_ context.Context, _ *models.PricePoint) error {
	return nil
}

func (m *mockPriceService) GetPriceAsOf(_ context.Context, _ string, _ date.Date) (*models.PricePoint, error) {
	return &models.PricePoint{}, nil
}

func (m *mockPriceService) GetLatestPrice(_ context.Context, _ string) (*models.PricePoint, error) {
	return &models.PricePoint{}, nil
}

func (m *mockPriceService) GetMarketHistory(_ context.Context, filter services.MarketHistoryFilter, page pagination.PageRequest) (*pagination.PageResponse[models.PricePoint], error) {
	if m.getMarketHistoryFn != nil {
		return m.getMarketHistoryFn(filter, page)
	}
	resp := pagination.NewPageResponse[models.PricePoint](nil, 1, 100, 0)
	return &resp, nil
}

func (m *mockPriceService) GetLatestPrices(_ context.Context) ([]models.PricePoint, error) {
	if m.getLatestPricesFn != nil {
		return m.getLatestPricesFn()
	}
	return []models.PricePoint{}, nil
}

func (m *mockPriceService) GetSymbolHistory(_ context.Context, symbol string, days int) ([]models.PricePoint, error) {
	if m.getSymbolHistoryFn != nil {
		return m.getSymbolHistoryFn(symbol, days)
	}
	return []models.PricePoint{}, nil
}

type mockSnapshotRunner struct {
	runNowFn func() (*services.SnapshotResult, error)
	status   scheduler.Status
}

var _ SnapshotRunner = (*mockSnapshotRunner)(nil)

func (m *mockSnapshotRunner) RunNow(_ context.Context) (*services.SnapshotResult, error) {
	if m.runNowFn != nil {
		return m.runNowFn()
	}
	return &services.SnapshotResult{}, nil
}

func (m *mockSnapshotRunner) Status() scheduler.Status { return m.status }

type stubSource struct {
	payload *pricesource.Payload
	err     error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(_ context.Context) (*pricesource.Payload, error) {
	return s.payload, s.err
}

type mockAuditService struct {
	mu      sync.Mutex
	entries []services.AuditEntry
}

func (m *mockAuditService) Log(_ context.Context, entry services.AuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
}

func (m *mockAuditService) List(_ context.Context, filter services.AuditFilter) ([]models.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AuditLog
	for _, e := range m.entries {
		if e.OrganismID != filter.OrganismID {
			continue
		}
		if filter.ResourceType != "" && e.ResourceType != filter.ResourceType {
			continue
		}
		out = append(out, models.AuditLog{UserID: e.UserID, OrganismID: e.OrganismID, Action: e.Action, ResourceType: e.ResourceType, ResourceID: e.ResourceID})
	}
	return out, nil
}

func (m *mockAuditService) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	validator.Register()
}

// injectCaller stands in for AuthMiddleware.
func injectCaller(userID string, organismIDs ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Set(middleware.OrganismIDsKey, organismIDs)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}
