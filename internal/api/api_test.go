package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/fraud"
	"github.com/opensource-finance/kestrel/internal/portfolio"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/scoring"
	"github.com/opensource-finance/kestrel/internal/velocity"
)

// createTestServer wires a full server against a temp SQLite repository.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("repository.New failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	lru := cache.NewLRUCache(100)
	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	engine, err := scoring.NewEngine(scoring.DefaultWeights())
	if err != nil {
		t.Fatalf("scoring.NewEngine failed: %v", err)
	}

	vel := velocity.NewService(repo, lru)
	fraudEngine, err := fraud.NewEngine(vel.GetVelocityGetter(), 5)
	if err != nil {
		t.Fatalf("fraud.NewEngine failed: %v", err)
	}
	if err := fraudEngine.LoadRules(fraud.BuiltinRules()); err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}

	policy := decision.DefaultPolicy()
	analyzer := portfolio.NewAnalyzer(engine, policy.ApproveThreshold, 5, 5)

	return NewServer(cfg, repo, lru, eventBus, engine, fraudEngine, policy, analyzer, vel, "test-v1", domain.ModeAutomated)
}

func strongApplicationBody(id string) map[string]interface{} {
	return map[string]interface{}{
		"id":              id,
		"businessName":    "Harbor Machining",
		"industry":        "manufacturing",
		"yearsInBusiness": 9,
		"annualRevenue":   960000,
		"monthlyRevenue":  80000,
		"monthlyExpenses": 52000,
		"existingDebt":    120000,
		"requestedAmount": 40000,
		"credit": map[string]interface{}{
			"onTimePayments":         96,
			"latePayments":           2,
			"missedPayments":         0,
			"avgDaysLate":            1.5,
			"utilizationPercentage":  18,
			"avgAccountAgeYears":     8,
			"oldestAccountYears":     12,
			"totalAccounts":          11,
			"activeAccounts":         7,
			"accountTypes":           []string{"credit_card", "term_loan", "line_of_credit", "equipment"},
			"recentInquiries":        1,
			"newAccounts":            0,
			"monthsSinceLastInquiry": 14,
		},
		"alternativeData": map[string]interface{}{
			"employmentYears":         12,
			"jobStability":            0.9,
			"incomeGrowthTrend":       "increasing",
			"savingsRate":             0.25,
			"expenseVariability":      0.1,
			"discretionarySpending":   0.2,
			"socialMediaActivity":     0.5,
			"onlineShoppingFrequency": 0.8,
			"digitalPaymentUsage":     0.9,
			"appUsageConsistency":     0.85,
			"industryStability":       0.8,
			"industryVolatility":      0.2,
			"regulatoryRisk":          0.1,
		},
		"behavioralData": map[string]interface{}{
			"loginFrequency":           0.9,
			"paymentMethodConsistency": 0.85,
			"goalSetting":              0.8,
			"riskTolerance":            0.5,
		},
		"economicFactors": map[string]interface{}{
			"unemploymentRate": 3.8,
			"inflationRate":    2.1,
			"gdpGrowth":        2.5,
		},
	}
}

func doRequest(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "tenant-001")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestScoreEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("SuccessfulScore", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodPost, "/score", strongApplicationBody("app-001"))

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp ScoreResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.ApplicationID != "app-001" {
			t.Errorf("expected applicationId 'app-001', got '%s'", resp.ApplicationID)
		}
		if resp.Score == nil {
			t.Fatal("expected score in response")
		}
		if resp.Score.OverallScore < 300 || resp.Score.OverallScore > 850 {
			t.Errorf("score %d outside display scale", resp.Score.OverallScore)
		}
		if resp.Score.RiskLevel != domain.RiskLow {
			t.Errorf("expected low risk for strong profile, got '%s'", resp.Score.RiskLevel)
		}
		if resp.Metadata.Version != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp.Metadata.Version)
		}
		if resp.Metadata.TraceID == "" {
			t.Error("expected traceId in metadata")
		}
	})

	t.Run("GeneratesIDWhenAbsent", func(t *testing.T) {
		body := strongApplicationBody("")
		delete(body, "id")
		rr := doRequest(t, server, http.MethodPost, "/score", body)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp ScoreResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.ApplicationID == "" {
			t.Error("expected generated applicationId")
		}
	})

	t.Run("MissingTenantID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/score", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")
		// No X-Tenant-ID header

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/score", bytes.NewBufferString("not-json"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingBusinessName", func(t *testing.T) {
		body := strongApplicationBody("app-bad")
		delete(body, "businessName")
		rr := doRequest(t, server, http.MethodPost, "/score", body)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("NonPositiveAmount", func(t *testing.T) {
		body := strongApplicationBody("app-bad")
		body["requestedAmount"] = -100
		rr := doRequest(t, server, http.MethodPost, "/score", body)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodPost, "/score", strongApplicationBody("app-headers"))

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header in response")
		}
		if rr.Header().Get("X-Trace-ID") == "" {
			t.Error("expected X-Trace-ID header in response")
		}
		if rr.Header().Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type: application/json")
		}
	})
}

func TestApplicationLifecycle(t *testing.T) {
	server := createTestServer(t)

	rr := doRequest(t, server, http.MethodPost, "/score", strongApplicationBody("app-life"))
	if rr.Code != http.StatusOK {
		t.Fatalf("score failed: %d: %s", rr.Code, rr.Body.String())
	}

	t.Run("GetApplication", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodGet, "/applications/app-life", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var app domain.CreditApplication
		if err := json.Unmarshal(rr.Body.Bytes(), &app); err != nil {
			t.Fatalf("failed to parse application: %v", err)
		}
		if app.BusinessName != "Harbor Machining" {
			t.Errorf("unexpected businessName '%s'", app.BusinessName)
		}
	})

	t.Run("GetApplicationNotFound", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodGet, "/applications/missing", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("GetScore", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodGet, "/scores/app-life", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var score domain.ScoreResult
		if err := json.Unmarshal(rr.Body.Bytes(), &score); err != nil {
			t.Fatalf("failed to parse score: %v", err)
		}
		if score.ApplicationID != "app-life" {
			t.Errorf("unexpected applicationId '%s'", score.ApplicationID)
		}
	})

	t.Run("Decide", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodPost, "/applications/app-life/decision", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var dec domain.Decision
		if err := json.Unmarshal(rr.Body.Bytes(), &dec); err != nil {
			t.Fatalf("failed to parse decision: %v", err)
		}
		if dec.Outcome != domain.OutcomeApprove {
			t.Errorf("expected approval, got '%s'", dec.Outcome)
		}
		if dec.ApprovedAmount <= 0 {
			t.Error("expected approved amount")
		}
	})

	t.Run("GetDecision", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodGet, "/decisions/app-life", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("AssessFraud", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodPost, "/applications/app-life/fraud", FraudRequest{VelocityWindow: 3600})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var assessment domain.FraudAssessment
		if err := json.Unmarshal(rr.Body.Bytes(), &assessment); err != nil {
			t.Fatalf("failed to parse assessment: %v", err)
		}
		if assessment.IsFraudulent {
			t.Error("expected clean application to pass fraud checks")
		}
	})

	t.Run("GetReport", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodGet, "/reports/app-life", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/plain") {
			t.Errorf("expected text/plain content type, got '%s'", rr.Header().Get("Content-Type"))
		}

		text := rr.Body.String()
		if !strings.Contains(text, "Credit Score Report") {
			t.Error("expected score section in report")
		}
		if !strings.Contains(text, "Instant Decision") {
			t.Error("expected decision section in report")
		}
		if !strings.Contains(text, "Fraud Assessment") {
			t.Error("expected fraud section in report")
		}
	})

	t.Run("GetReportNotFound", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodGet, "/reports/missing", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestPortfolioEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("InlineApplications", func(t *testing.T) {
		req := PortfolioRequest{}
		for _, id := range []string{"p-1", "p-2"} {
			body, _ := json.Marshal(strongApplicationBody(id))
			var app domain.CreditApplication
			json.Unmarshal(body, &app)
			app.SubmittedAt = time.Now()
			req.Applications = append(req.Applications, &app)
		}

		rr := doRequest(t, server, http.MethodPost, "/portfolio", req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var result domain.PortfolioReport
		if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
			t.Fatalf("failed to parse portfolio report: %v", err)
		}
		if result.TotalApplications != 2 {
			t.Errorf("expected 2 applications, got %d", result.TotalApplications)
		}
	})

	t.Run("ByApplicationID", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodPost, "/score", strongApplicationBody("p-stored"))
		if rr.Code != http.StatusOK {
			t.Fatalf("score failed: %d", rr.Code)
		}

		rr = doRequest(t, server, http.MethodPost, "/portfolio", PortfolioRequest{
			ApplicationIDs: []string{"p-stored"},
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("UnknownApplicationID", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodPost, "/portfolio", PortfolioRequest{
			ApplicationIDs: []string{"missing"},
		})
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("EmptyRequest", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodPost, "/portfolio", PortfolioRequest{})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestMonitorEndpoint(t *testing.T) {
	server := createTestServer(t)

	rr := doRequest(t, server, http.MethodPost, "/score", strongApplicationBody("app-mon"))
	if rr.Code != http.StatusOK {
		t.Fatalf("score failed: %d", rr.Code)
	}

	t.Run("StablePosition", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodPost, "/applications/app-mon/monitor", strongApplicationBody("app-mon"))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var mon domain.MonitoringReport
		if err := json.Unmarshal(rr.Body.Bytes(), &mon); err != nil {
			t.Fatalf("failed to parse monitoring report: %v", err)
		}
		if mon.Action != domain.ActionNone {
			t.Errorf("expected no action for unchanged profile, got '%s'", mon.Action)
		}
	})

	t.Run("Deterioration", func(t *testing.T) {
		body := strongApplicationBody("app-mon")
		credit := body["credit"].(map[string]interface{})
		credit["missedPayments"] = 6
		credit["latePayments"] = 12
		credit["utilizationPercentage"] = 95
		delete(body, "alternativeData")
		delete(body, "behavioralData")

		rr := doRequest(t, server, http.MethodPost, "/applications/app-mon/monitor", body)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var mon domain.MonitoringReport
		if err := json.Unmarshal(rr.Body.Bytes(), &mon); err != nil {
			t.Fatalf("failed to parse monitoring report: %v", err)
		}
		if mon.Delta >= 0 {
			t.Errorf("expected negative delta, got %d", mon.Delta)
		}
		if mon.Action == domain.ActionNone {
			t.Error("expected an action for sharp deterioration")
		}
	})

	t.Run("NoRecordedScore", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodPost, "/applications/never-scored/monitor", strongApplicationBody("never-scored"))
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestFraudRuleEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("ListRules", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodGet, "/fraud-rules", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != len(fraud.BuiltinRules()) {
			t.Errorf("expected %d rules, got %d", len(fraud.BuiltinRules()), resp.Count)
		}
	})

	t.Run("GetRule", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodGet, "/fraud-rules/revenue-mismatch", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("GetUnknownRule", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodGet, "/fraud-rules/no-such-rule", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("CreateRule", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodPost, "/fraud-rules", CreateFraudRuleRequest{
			ID:         "custom-revenue-floor",
			Name:       "Custom Revenue Floor",
			Expression: "annual_revenue < 1000.0 ? 1.0 : 0.0",
			Weight:     10,
			Enabled:    true,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("CreateRuleInvalidExpression", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodPost, "/fraud-rules", CreateFraudRuleRequest{
			ID:         "broken-rule",
			Name:       "Broken Rule",
			Expression: "this is not CEL (((",
			Weight:     10,
			Enabled:    true,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("CreateRuleMissingFields", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodPost, "/fraud-rules", CreateFraudRuleRequest{
			ID: "half-rule",
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ReloadRules", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodPost, "/fraud-rules/reload", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Errorf("expected 1 persisted rule after reload, got %d", resp.Count)
		}
	})

	t.Run("DeleteRule", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodDelete, "/fraud-rules/custom-revenue-floor", nil)
		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("DeleteUnknownRule", func(t *testing.T) {
		rr := doRequest(t, server, http.MethodDelete, "/fraud-rules/no-such-rule", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("HealthCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp["status"] != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version 'test-v1', got '%s'", resp["version"])
		}
	})

	t.Run("ReadyCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("TenantMiddlewareExtractsID", func(t *testing.T) {
		var capturedTenantID string

		handler := TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedTenantID = GetTenantID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Tenant-ID", "my-tenant-123")

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedTenantID != "my-tenant-123" {
			t.Errorf("expected tenant ID 'my-tenant-123', got '%s'", capturedTenantID)
		}
	})

	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var capturedRequestID string

		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v, ok := r.Context().Value(RequestIDKey).(string); ok {
				capturedRequestID = v
			}
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedRequestID == "" {
			t.Error("expected request ID to be set")
		}

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		// Should not panic
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})
}
