//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Kestrel credit
// scoring engine.
//
// These tests verify the COMPLETE scoring pipeline:
//
//	Application → Factors → Weighted Score → Decision / Fraud / Monitoring
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. APPLICATION: A small-business credit application, with traditional
//    bureau data plus optional alternative/behavioral/economic sections
//
// 2. SCORE: Weighted factor aggregation mapped to the 300-850 display
//    scale, with a risk level (low/medium/high/very_high) and a range
//    label (Poor through Exceptional)
//
// 3. DECISION: approve (score >= 680), manual_review (580-679), or
//    decline (< 580), with loan terms derived for approvals
//
// 4. FRAUD: CEL rules accumulate weighted risk points; >= 60 flags the
//    application as fraudulent
//
// 5. MONITORING: re-scoring against the original recorded score, with
//    actions escalating as the drop grows
//
// NOTE: The builtin fraud rule set is loaded automatically at startup
// when the database holds no custom rules.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL  string
	TenantID string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("KESTREL_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{
		BaseURL:  baseURL,
		TenantID: "test-tenant",
	}
}

// ============================================================================
// API Request/Response Types (matching Kestrel's API contract)
// ============================================================================

// ScoreResult mirrors the score object inside the POST /score response.
type ScoreResult struct {
	ApplicationID string  `json:"applicationId"`
	OverallScore  int     `json:"overallScore"`
	RawScore      float64 `json:"rawScore"`
	ScoreRange    string  `json:"scoreRange"`
	RiskLevel     string  `json:"riskLevel"`
	Confidence    float64 `json:"confidence"`
	ModelVersion  string  `json:"modelVersion"`
}

// ScoreResponse is what POST /score returns
type ScoreResponse struct {
	ApplicationID string      `json:"applicationId"`
	Score         ScoreResult `json:"score"`
	Metadata      struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Decision is what POST /applications/{id}/decision returns
type Decision struct {
	ApplicationID  string  `json:"applicationId"`
	Outcome        string  `json:"outcome"`
	ApprovedAmount float64 `json:"approvedAmount"`
	InterestRate   float64 `json:"interestRate"`
	TermMonths     int     `json:"termMonths"`
	MonthlyPayment float64 `json:"monthlyPayment"`
	ReviewPriority string  `json:"reviewPriority"`
}

// FraudAssessment is what POST /applications/{id}/fraud returns
type FraudAssessment struct {
	ApplicationID  string   `json:"applicationId"`
	RiskScore      int      `json:"riskScore"`
	IsFraudulent   bool     `json:"isFraudulent"`
	Flags          []string `json:"flags"`
	Recommendation string   `json:"recommendation"`
}

// MonitoringReport is what POST /applications/{id}/monitor returns
type MonitoringReport struct {
	OriginalScore int    `json:"originalScore"`
	CurrentScore  int    `json:"currentScore"`
	Delta         int    `json:"delta"`
	Action        string `json:"action"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func strongApplication(id string) map[string]any {
	return map[string]any{
		"id":              id,
		"businessName":    "Integration Test Hardware " + id,
		"industry":        "retail",
		"yearsInBusiness": 9,
		"annualRevenue":   960000,
		"monthlyRevenue":  80000,
		"monthlyExpenses": 52000,
		"existingDebt":    120000,
		"requestedAmount": 40000,
		"credit": map[string]any{
			"onTimePayments":         96,
			"latePayments":           2,
			"avgDaysLate":            1.5,
			"utilizationPercentage":  18,
			"avgAccountAgeYears":     8,
			"oldestAccountYears":     12,
			"totalAccounts":          11,
			"activeAccounts":         7,
			"accountTypes":           []string{"credit_card", "term_loan", "line_of_credit", "equipment"},
			"recentInquiries":        1,
			"monthsSinceLastInquiry": 14,
		},
		"alternativeData": map[string]any{
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
		"behavioralData": map[string]any{
			"loginFrequency":           0.9,
			"paymentMethodConsistency": 0.85,
			"goalSetting":              0.8,
			"riskTolerance":            0.5,
		},
		"economicFactors": map[string]any{
			"unemploymentRate": 3.8,
			"inflationRate":    2.1,
			"gdpGrowth":        2.5,
		},
	}
}

func weakApplication(id string) map[string]any {
	return map[string]any{
		"id":              id,
		"businessName":    "Integration Test Kiosk " + id,
		"industry":        "hospitality",
		"yearsInBusiness": 0.5,
		"annualRevenue":   90000,
		"monthlyRevenue":  7500,
		"monthlyExpenses": 7200,
		"existingDebt":    110000,
		"requestedAmount": 30000,
		"credit": map[string]any{
			"onTimePayments":        8,
			"latePayments":          9,
			"missedPayments":        4,
			"avgDaysLate":           18,
			"utilizationPercentage": 92,
			"avgAccountAgeYears":    0.8,
			"oldestAccountYears":    1.2,
			"totalAccounts":         2,
			"activeAccounts":        2,
			"accountTypes":          []string{"credit_card"},
			"recentInquiries":       6,
			"newAccounts":           3,
		},
	}
}

func doJSON(t *testing.T, config TestConfig, method, path string, payload any, out any) int {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("Failed to marshal request: %v", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequest(method, config.BaseURL+path, body)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", config.TenantID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(respBody, out); err != nil {
			t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
		}
	}

	return resp.StatusCode
}

func score(t *testing.T, config TestConfig, app map[string]any) ScoreResponse {
	t.Helper()

	var result ScoreResponse
	status := doJSON(t, config, http.MethodPost, "/score", app, &result)
	if status != http.StatusOK {
		t.Fatalf("Expected status 200 from /score, got %d", status)
	}
	return result
}

// ============================================================================
// SCENARIO 1: Strong Profile (High Score, Approval)
// ============================================================================

func TestStrongProfile_Approved(t *testing.T) {
	/*
	   SCENARIO: An established retailer with clean payment history, low
	   utilization, and strong alternative signals.

	   EXPECTED BEHAVIOR:
	   - Score well above 680 → low risk
	   - Instant decision approves with derived loan terms
	*/
	config := getTestConfig()
	appID := fmt.Sprintf("it-strong-%d", time.Now().UnixNano())

	result := score(t, config, strongApplication(appID))

	if result.Score.OverallScore < 680 {
		t.Errorf("Expected score >= 680 for strong profile, got %d", result.Score.OverallScore)
	}
	if result.Score.RiskLevel != "low" {
		t.Errorf("Expected low risk, got %s", result.Score.RiskLevel)
	}

	var dec Decision
	status := doJSON(t, config, http.MethodPost, "/applications/"+appID+"/decision", nil, &dec)
	if status != http.StatusOK {
		t.Fatalf("Expected status 200 from decision, got %d", status)
	}

	if dec.Outcome != "approve" {
		t.Errorf("Expected approval, got %s", dec.Outcome)
	}
	if dec.ApprovedAmount <= 0 || dec.MonthlyPayment <= 0 {
		t.Errorf("Expected loan terms, got amount=%.2f payment=%.2f", dec.ApprovedAmount, dec.MonthlyPayment)
	}

	t.Logf("✓ Strong profile: score=%d (%s), outcome=%s, terms=$%.2f @ %.2f%% x %d months",
		result.Score.OverallScore, result.Score.ScoreRange, dec.Outcome,
		dec.ApprovedAmount, dec.InterestRate, dec.TermMonths)
}

// ============================================================================
// SCENARIO 2: Weak Profile (Low Score, Decline)
// ============================================================================

func TestWeakProfile_Declined(t *testing.T) {
	/*
	   SCENARIO: A young business with missed payments, maxed utilization,
	   and no alternative data sections.

	   EXPECTED BEHAVIOR:
	   - Score below 580 → decline with improvement suggestions
	*/
	config := getTestConfig()
	appID := fmt.Sprintf("it-weak-%d", time.Now().UnixNano())

	result := score(t, config, weakApplication(appID))

	if result.Score.OverallScore >= 580 {
		t.Errorf("Expected score < 580 for weak profile, got %d", result.Score.OverallScore)
	}

	var dec Decision
	status := doJSON(t, config, http.MethodPost, "/applications/"+appID+"/decision", nil, &dec)
	if status != http.StatusOK {
		t.Fatalf("Expected status 200 from decision, got %d", status)
	}

	if dec.Outcome != "decline" {
		t.Errorf("Expected decline, got %s", dec.Outcome)
	}

	t.Logf("✓ Weak profile: score=%d (%s), outcome=%s",
		result.Score.OverallScore, result.Score.ScoreRange, dec.Outcome)
}

// ============================================================================
// SCENARIO 3: Fraud Screening
// ============================================================================

func TestCleanApplication_PassesFraudChecks(t *testing.T) {
	/*
	   SCENARIO: Consistent financials (annualized monthly revenue matches
	   annual revenue, expenses below revenue, moderate debt).

	   EXPECTED: risk score near 0, recommendation "proceed"
	*/
	config := getTestConfig()
	appID := fmt.Sprintf("it-clean-%d", time.Now().UnixNano())

	score(t, config, strongApplication(appID))

	var assessment FraudAssessment
	status := doJSON(t, config, http.MethodPost, "/applications/"+appID+"/fraud", nil, &assessment)
	if status != http.StatusOK {
		t.Fatalf("Expected status 200 from fraud endpoint, got %d", status)
	}

	if assessment.IsFraudulent {
		t.Errorf("Expected clean application, got fraudulent with flags %v", assessment.Flags)
	}

	t.Logf("✓ Clean application: riskScore=%d, recommendation=%s",
		assessment.RiskScore, assessment.Recommendation)
}

func TestInconsistentFinancials_Flagged(t *testing.T) {
	/*
	   SCENARIO: Claimed annual revenue wildly above annualized monthly
	   revenue, expenses exceeding revenue, and implausible debt load.

	   EXPECTED: multiple rules fire; risk score reaches the fraud band
	*/
	config := getTestConfig()
	appID := fmt.Sprintf("it-fraud-%d", time.Now().UnixNano())

	app := strongApplication(appID)
	app["annualRevenue"] = 5000000.0 // Annualized monthly is 960k
	app["monthlyExpenses"] = 200000.0
	app["existingDebt"] = 15000000.0

	score(t, config, app)

	var assessment FraudAssessment
	status := doJSON(t, config, http.MethodPost, "/applications/"+appID+"/fraud", nil, &assessment)
	if status != http.StatusOK {
		t.Fatalf("Expected status 200 from fraud endpoint, got %d", status)
	}

	if !assessment.IsFraudulent {
		t.Errorf("Expected fraudulent classification, got riskScore=%d", assessment.RiskScore)
	}
	if len(assessment.Flags) == 0 {
		t.Error("Expected triggered rule flags")
	}

	t.Logf("✓ Inconsistent financials flagged: riskScore=%d, flags=%v",
		assessment.RiskScore, assessment.Flags)
}

// ============================================================================
// SCENARIO 4: Loan Monitoring
// ============================================================================

func TestMonitoring_DetectsDeterioration(t *testing.T) {
	/*
	   SCENARIO: Score a strong application, then monitor with badly
	   deteriorated payment data.

	   EXPECTED: large negative delta and a non-trivial action
	*/
	config := getTestConfig()
	appID := fmt.Sprintf("it-monitor-%d", time.Now().UnixNano())

	score(t, config, strongApplication(appID))

	deteriorated := strongApplication(appID)
	credit := deteriorated["credit"].(map[string]any)
	credit["missedPayments"] = 6
	credit["latePayments"] = 12
	credit["utilizationPercentage"] = 95
	delete(deteriorated, "alternativeData")
	delete(deteriorated, "behavioralData")

	var mon MonitoringReport
	status := doJSON(t, config, http.MethodPost, "/applications/"+appID+"/monitor", deteriorated, &mon)
	if status != http.StatusOK {
		t.Fatalf("Expected status 200 from monitor endpoint, got %d", status)
	}

	if mon.Delta >= 0 {
		t.Errorf("Expected negative delta, got %d", mon.Delta)
	}
	if mon.Action == "none" || mon.Action == "" {
		t.Errorf("Expected an action for sharp deterioration, got '%s'", mon.Action)
	}

	t.Logf("✓ Deterioration detected: %d → %d (delta %d), action=%s",
		mon.OriginalScore, mon.CurrentScore, mon.Delta, mon.Action)
}

// ============================================================================
// SCENARIO 5: Input Validation
// ============================================================================

func TestMissingBusinessName_Error(t *testing.T) {
	config := getTestConfig()

	app := strongApplication("it-invalid")
	delete(app, "businessName")

	status := doJSON(t, config, http.MethodPost, "/score", app, nil)
	if status != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing businessName, got %d", status)
	}

	t.Logf("✓ Validation test passed: missing businessName → HTTP %d", status)
}

func TestZeroAmount_Error(t *testing.T) {
	config := getTestConfig()

	app := strongApplication("it-zero")
	app["requestedAmount"] = 0

	status := doJSON(t, config, http.MethodPost, "/score", app, nil)
	if status != http.StatusBadRequest {
		t.Errorf("Expected 400 for zero requestedAmount, got %d", status)
	}

	t.Logf("✓ Validation test passed: zero amount → HTTP %d", status)
}

func TestMissingTenantHeader_Error(t *testing.T) {
	/*
	   ACTUAL BEHAVIOR: Returns HTTP 400 Bad Request (not 401).
	   Tenant ID is validated as a required field, not as auth.
	*/
	config := getTestConfig()

	data, _ := json.Marshal(strongApplication("it-notenant"))
	httpReq, _ := http.NewRequest(http.MethodPost, config.BaseURL+"/score", bytes.NewReader(data))
	httpReq.Header.Set("Content-Type", "application/json")
	// NO X-Tenant-ID header!

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 400 or 401 for missing tenant, got %d", resp.StatusCode)
	}

	t.Logf("✓ Validation test passed: missing tenant → HTTP %d", resp.StatusCode)
}

// ============================================================================
// SCENARIO 6: Response Metadata Verification
// ============================================================================

func TestResponseMetadata(t *testing.T) {
	/*
	   SCENARIO: Verify response includes all required metadata.
	   This ensures the API contract is stable for clients.
	*/
	config := getTestConfig()
	appID := fmt.Sprintf("it-meta-%d", time.Now().UnixNano())

	result := score(t, config, strongApplication(appID))

	if result.ApplicationID == "" {
		t.Error("Missing applicationId")
	}
	if result.Score.OverallScore < 300 || result.Score.OverallScore > 850 {
		t.Errorf("Score out of display range: %d", result.Score.OverallScore)
	}
	if result.Score.Confidence < 0 || result.Score.Confidence > 0.95 {
		t.Errorf("Confidence out of range: %.2f", result.Score.Confidence)
	}
	if result.Score.ModelVersion == "" {
		t.Error("Missing modelVersion")
	}
	if result.Metadata.TraceID == "" {
		t.Error("Missing metadata.traceId")
	}
	// Note: TotalMs can be 0 for very fast operations (sub-millisecond)
	if result.Metadata.TotalMs < 0 {
		t.Error("Invalid metadata.totalMs (negative)")
	}

	t.Logf("✓ Metadata complete: appId=%s, traceId=%s, totalMs=%d",
		result.ApplicationID, result.Metadata.TraceID, result.Metadata.TotalMs)
}
