package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"orgfolio/internal/config"
	"orgfolio/internal/logger"
	"orgfolio/internal/middleware"
	"orgfolio/internal/pricesource"
	"orgfolio/internal/scheduler"
	"orgfolio/internal/services"
	"orgfolio/internal/testutil"
	"orgfolio/internal/validator"
)

const (
	testSecret = "integration-secret"
	testAPIKey = "integration-key"
)

const sheetCSV = "Symbol,Name,Price\n" +
	"AAPL,Apple,\"$150.00\"\n" +
	"MSFT,Microsoft,250\n" +
	"GGAL,Galicia,#N/A\n"

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupApp wires real services over an isolated in-memory SQLite and a
// published sheet served by httptest.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)

	sheet := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(sheetCSV))
	}))
	t.Cleanup(sheet.Close)

	market := config.DefaultMarketConfig()
	market.SourceURL = sheet.URL
	market.LiveFetch = false

	source, err := pricesource.New(market)
	if err != nil {
		t.Fatalf("failed to create price source: %v", err)
	}

	prices := services.NewPriceHistoryService(db)
	sched, err := scheduler.New(services.NewSnapshotService(source, prices, nil), market)
	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}

	router := NewRouter(Deps{
		Portfolios:     services.NewPortfolioService(db),
		Valuations:     services.NewValuationService(db, prices, nil, services.ValuationOptions{}),
		Prices:         prices,
		Audit:          services.NewAuditService(db),
		Source:         source,
		Runner:         sched,
		JWTSecret:      testSecret,
		PipelineAPIKey: testAPIKey,
	})

	return &testApp{DB: db, Router: router}
}

// token issues an access token for a caller belonging to organismIDs.
func token(t *testing.T, userID string, organismIDs ...string) string {
	t.Helper()
	tok, err := middleware.GenerateAccessToken(testSecret, userID, organismIDs)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return tok
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// pipelineRequest makes an HTTP request authenticated with the pipeline key.
func (app *testApp) pipelineRequest(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// createPortfolio creates a portfolio and returns its id.
func (app *testApp) createPortfolio(t *testing.T, tok, organismID, name string) string {
	t.Helper()
	rec := app.request("POST", "/api/v1/organisms/"+organismID+"/portfolios", fmt.Sprintf(`{"name":%q}`, name), tok)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create portfolio failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["portfolio"].(map[string]interface{})["id"].(string)
}

func (app *testApp) addPosition(t *testing.T, tok, portfolioID, symbol, quantity string) {
	t.Helper()
	rec := app.request("POST", "/api/v1/portfolios/"+portfolioID+"/positions",
		fmt.Sprintf(`{"symbol":%q,"quantity":%s}`, symbol, quantity), tok)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add position %s failed: %d %s", symbol, rec.Code, rec.Body.String())
	}
}

func TestSnapshotAndValuationFlow(t *testing.T) {
	app := setupApp(t)
	tok := token(t, "user-1", "org-a")

	// Step 1: ingest today's prices through the pipeline endpoint
	rec := app.pipelineRequest("POST", "/api/v1/pipeline/market-data/snapshot")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 running snapshot, got %d: %s", rec.Code, rec.Body.String())
	}
	snapshot := parseJSON(t, rec)
	if snapshot["success"] != true {
		t.Fatalf("expected successful snapshot, got %v", snapshot)
	}
	result := snapshot["result"].(map[string]interface{})
	if result["received"].(float64) != 3 || result["saved"].(float64) != 3 {
		t.Errorf("expected 3 received and saved, got %v", result)
	}

	// Step 2: the null row is stored but has no price
	rec = app.request("GET", "/api/v1/market-data/latest", "", tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing latest prices, got %d", rec.Code)
	}
	if parseJSON(t, rec)["count"].(float64) != 3 {
		t.Errorf("expected 3 latest rows, got %s", rec.Body.String())
	}

	// Step 3: build a portfolio, including a symbol the sheet does not carry
	portfolioID := app.createPortfolio(t, tok, "org-a", "Main")
	app.addPosition(t, tok, portfolioID, "aapl", "10")
	app.addPosition(t, tok, portfolioID, "MSFT", "4")
	app.addPosition(t, tok, portfolioID, "ZZZZ", "1")

	// Step 4: value it
	rec = app.request("GET", "/api/v1/portfolios/"+portfolioID+"/value", "", tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 valuing portfolio, got %d: %s", rec.Code, rec.Body.String())
	}
	valuation := parseJSON(t, rec)
	if valuation["total_value"].(float64) != 2500 {
		t.Errorf("expected total 2500, got %v", valuation["total_value"])
	}
	notFound := valuation["symbols_not_found"].([]interface{})
	if len(notFound) != 1 || notFound[0] != "ZZZZ" {
		t.Errorf("expected ZZZZ not found, got %v", notFound)
	}
	for _, raw := range valuation["positions_detail"].([]interface{}) {
		p := raw.(map[string]interface{})
		switch p["symbol"] {
		case "AAPL":
			if p["weight_percentage"].(float64) != 60 {
				t.Errorf("expected AAPL weight 60, got %v", p["weight_percentage"])
			}
		case "MSFT":
			if p["weight_percentage"].(float64) != 40 {
				t.Errorf("expected MSFT weight 40, got %v", p["weight_percentage"])
			}
		case "ZZZZ":
			if p["position_value"].(float64) != 0 || p["price_source"] != services.PriceSourceNone {
				t.Errorf("expected unpriced ZZZZ, got %v", p)
			}
		}
	}

	// Step 5: stats agree with the valuation
	rec = app.request("GET", "/api/v1/portfolios/"+portfolioID+"/stats", "", tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for stats, got %d", rec.Code)
	}
	stats := parseJSON(t, rec)
	if stats["total_positions"].(float64) != 3 || stats["symbols_not_found"].(float64) != 1 {
		t.Errorf("unexpected stats %v", stats)
	}

	// Step 6: a second snapshot on the same day rewrites instead of duplicating
	rec = app.pipelineRequest("POST", "/api/v1/pipeline/market-data/snapshot")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on repeated snapshot, got %d", rec.Code)
	}
	rec = app.request("GET", "/api/v1/market-data/history", "", tok)
	if parseJSON(t, rec)["total_items"].(float64) != 3 {
		t.Errorf("expected 3 history rows after two snapshots, got %s", rec.Body.String())
	}
}

func TestOrganismIsolation(t *testing.T) {
	app := setupApp(t)
	owner := token(t, "user-a", "org-a")
	stranger := token(t, "user-b", "org-b")

	portfolioID := app.createPortfolio(t, owner, "org-a", "Private")

	rec := app.request("GET", "/api/v1/portfolios/"+portfolioID, "", stranger)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 reading a foreign portfolio, got %d", rec.Code)
	}

	rec = app.request("POST", "/api/v1/portfolios/"+portfolioID+"/positions", `{"symbol":"AAPL","quantity":1}`, stranger)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 writing a foreign portfolio, got %d", rec.Code)
	}

	rec = app.request("POST", "/api/v1/organisms/org-a/portfolios", `{"name":"Intruder"}`, stranger)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 creating in a foreign organism, got %d", rec.Code)
	}

	rec = app.request("GET", "/api/v1/organisms/org-b/portfolios", "", stranger)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing own organism, got %d", rec.Code)
	}
	if n := len(parseJSON(t, rec)["portfolios"].([]interface{})); n != 0 {
		t.Errorf("expected no portfolios for org-b, got %d", n)
	}
}

func TestDeletePortfolioCascades(t *testing.T) {
	app := setupApp(t)
	tok := token(t, "user-1", "org-a")

	portfolioID := app.createPortfolio(t, tok, "org-a", "Short lived")
	app.addPosition(t, tok, portfolioID, "AAPL", "1")

	rec := app.request("DELETE", "/api/v1/portfolios/"+portfolioID, "", tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 deleting, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/api/v1/portfolios/"+portfolioID+"/positions", "", tok)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}

	var remaining int64
	app.DB.Table("positions").Where("portfolio_id = ?", portfolioID).Count(&remaining)
	if remaining != 0 {
		t.Errorf("expected positions removed, %d left", remaining)
	}
	rec = app.request("GET", "/api/v1/organisms/org-a/activity", "", tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing activity, got %d", rec.Code)
	}
	activity := parseJSON(t, rec)["activity"].([]interface{})
	if len(activity) != 3 {
		t.Fatalf("expected create, position and delete entries, got %d", len(activity))
	}
	if newest := activity[0].(map[string]interface{}); newest["action"] != "DELETE_PORTFOLIO" {
		t.Errorf("expected the delete to be listed first, got %v", newest["action"])
	}
}

func TestPipelineRoutes(t *testing.T) {
	app := setupApp(t)

	t.Run("rejects a missing key", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/pipeline/market-data/scheduler-status", "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("reports the configured schedule", func(t *testing.T) {
		rec := app.pipelineRequest("GET", "/api/v1/pipeline/market-data/scheduler-status")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		status := parseJSON(t, rec)
		if status["running"] != false || status["jobs_count"].(float64) != 5 {
			t.Errorf("unexpected status %v", status)
		}
	})

	t.Run("rejects user tokens on market routes without auth", func(t *testing.T) {
		rec := app.request("GET", "/api/v1/market-data/latest", "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestHealth(t *testing.T) {
	app := setupApp(t)

	rec := app.request("GET", "/api/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if parseJSON(t, rec)["status"] != "ok" {
		t.Errorf("unexpected health body %s", rec.Body.String())
	}
}
