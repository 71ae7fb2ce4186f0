package scoring

import (
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(DefaultWeights())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func strongApplication() *domain.CreditApplication {
	return &domain.CreditApplication{
		ID:              "app-001",
		TenantID:        "tenant-1",
		BusinessName:    "Acme Bakery",
		Industry:        "food_service",
		YearsInBusiness: 8,
		AnnualRevenue:   950000,
		MonthlyRevenue:  79000,
		MonthlyExpenses: 61000,
		RequestedAmount: 50000,
		Credit: domain.CreditData{
			OnTimePayments:         100,
			LatePayments:           0,
			MissedPayments:         0,
			UtilizationPct:         10,
			AvgAccountAgeYears:     6,
			OldestAccountYears:     9,
			TotalAccounts:          8,
			ActiveAccounts:         6,
			AccountTypes:           []string{"revolving", "installment", "mortgage", "auto"},
			RecentInquiries:        0,
			NewAccounts:            0,
			MonthsSinceLastInquiry: 14,
		},
	}
}

func moderateAlternative() *domain.AlternativeData {
	return &domain.AlternativeData{
		EmploymentYears:         6,
		JobStability:            0.7,
		IncomeGrowthTrend:       domain.TrendStable,
		SavingsRate:             0.12,
		ExpenseVariability:      0.3,
		DiscretionarySpending:   0.4,
		SocialMediaActivity:     0.5,
		OnlineShoppingFrequency: 0.5,
		DigitalPaymentUsage:     0.6,
		AppUsageConsistency:     0.6,
		IndustryStability:       0.6,
		IndustryVolatility:      0.3,
		RegulatoryRisk:          0.2,
	}
}

func moderateBehavioral() *domain.BehavioralData {
	return &domain.BehavioralData{
		LoginFrequency:           0.6,
		PaymentMethodConsistency: 0.7,
		GoalSetting:              0.5,
		RiskTolerance:            0.5,
	}
}

func neutralEconomic() *domain.EconomicContext {
	return &domain.EconomicContext{
		UnemploymentRate: 4.5,
		InflationRate:    2.2,
		GDPGrowth:        2.0,
	}
}

func TestPerfectPaymentAndNewCredit(t *testing.T) {
	engine := newTestEngine(t)

	app := strongApplication()
	result := engine.Score(app, nil, nil, nil)

	if result.Factors.PaymentHistory != 100 {
		t.Errorf("paymentHistory = %v, want 100", result.Factors.PaymentHistory)
	}
	if result.Factors.NewCredit != 100 {
		t.Errorf("newCredit = %v, want 100", result.Factors.NewCredit)
	}
	if result.Factors.CreditMix != 100 {
		t.Errorf("creditMix = %v, want 100 for 4 account types", result.Factors.CreditMix)
	}
	if result.Factors.CreditUtilization != 100 {
		t.Errorf("creditUtilization = %v, want 100 at 10%%", result.Factors.CreditUtilization)
	}
}

func TestUtilizationStepFunction(t *testing.T) {
	cases := []struct {
		pct  float64
		want float64
	}{
		{5, 100},
		{10, 100},
		{15, 90},
		{25, 80},
		{45, 60},
		{65, 40},
		{85, 20},
		{95, 0},
	}
	for _, tc := range cases {
		if got := utilizationScore(tc.pct); got != tc.want {
			t.Errorf("utilizationScore(%v) = %v, want %v", tc.pct, got, tc.want)
		}
	}

	// Monotonically non-increasing across the whole range
	prev := utilizationScore(0)
	for pct := 1.0; pct <= 100; pct++ {
		cur := utilizationScore(pct)
		if cur > prev {
			t.Fatalf("utilizationScore not monotonic at %v%%: %v > %v", pct, cur, prev)
		}
		prev = cur
	}
}

func TestScoreDeterminism(t *testing.T) {
	engine := newTestEngine(t)

	app := strongApplication()
	alt := moderateAlternative()
	beh := moderateBehavioral()
	econ := neutralEconomic()

	a := engine.Score(app, alt, beh, econ)
	b := engine.Score(app, alt, beh, econ)

	if a.OverallScore != b.OverallScore || a.RawScore != b.RawScore {
		t.Errorf("scores differ for identical input: %d/%v vs %d/%v",
			a.OverallScore, a.RawScore, b.OverallScore, b.RawScore)
	}
	if a.Factors != b.Factors {
		t.Errorf("factors differ for identical input: %+v vs %+v", a.Factors, b.Factors)
	}
	if a.Confidence != b.Confidence {
		t.Errorf("confidence differs: %v vs %v", a.Confidence, b.Confidence)
	}
	if a.RiskLevel != b.RiskLevel || a.ScoreRange != b.ScoreRange {
		t.Errorf("classification differs: %s/%s vs %s/%s",
			a.RiskLevel, a.ScoreRange, b.RiskLevel, b.ScoreRange)
	}
}

func TestConfidenceBounds(t *testing.T) {
	engine := newTestEngine(t)

	cases := []struct {
		name string
		app  *domain.CreditApplication
		alt  *domain.AlternativeData
		beh  *domain.BehavioralData
		econ *domain.EconomicContext
	}{
		{"empty", &domain.CreditApplication{}, nil, nil, nil},
		{"full", strongApplication(), moderateAlternative(), moderateBehavioral(), neutralEconomic()},
		{"credit only", strongApplication(), nil, nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := engine.Score(tc.app, tc.alt, tc.beh, tc.econ)
			if result.Confidence < 0 || result.Confidence > 0.95 {
				t.Errorf("confidence = %v, want within [0, 0.95]", result.Confidence)
			}
		})
	}
}

func TestRiskLevelThresholds(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{760, domain.RiskLow},
		{750, domain.RiskLow},
		{749, domain.RiskMedium},
		{650, domain.RiskMedium},
		{649, domain.RiskHigh},
		{551, domain.RiskHigh},
		{550, domain.RiskHigh},
		{549, domain.RiskVeryHigh},
	}
	for _, tc := range cases {
		if got := RiskLevelFor(tc.score); got != tc.want {
			t.Errorf("RiskLevelFor(%d) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestScoreRangeLabels(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{850, domain.RangeExceptional},
		{800, domain.RangeExceptional},
		{799, domain.RangeVeryGood},
		{740, domain.RangeVeryGood},
		{700, domain.RangeGood},
		{600, domain.RangeFair},
		{400, domain.RangePoor},
	}
	for _, tc := range cases {
		if got := ScoreRangeFor(tc.score); got != tc.want {
			t.Errorf("ScoreRangeFor(%d) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestDisplayScoreClamping(t *testing.T) {
	if got := DisplayScore(0); got != 300 {
		t.Errorf("DisplayScore(0) = %d, want 300", got)
	}
	if got := DisplayScore(100); got != 850 {
		t.Errorf("DisplayScore(100) = %d, want 850", got)
	}
	if got := DisplayScore(120); got != 850 {
		t.Errorf("DisplayScore(120) = %d, want clamped 850", got)
	}
}

func TestStrongProfileEndToEnd(t *testing.T) {
	engine := newTestEngine(t)

	result := engine.Score(strongApplication(), moderateAlternative(), moderateBehavioral(), neutralEconomic())

	if result.RiskLevel != domain.RiskLow {
		t.Errorf("riskLevel = %q, want %q (score %d)", result.RiskLevel, domain.RiskLow, result.OverallScore)
	}
	if result.ScoreRange != domain.RangeVeryGood && result.ScoreRange != domain.RangeExceptional {
		t.Errorf("scoreRange = %q, want Very Good or Exceptional (score %d)", result.ScoreRange, result.OverallScore)
	}
}

func TestWeakProfileEndToEnd(t *testing.T) {
	engine := newTestEngine(t)

	app := &domain.CreditApplication{
		ID:              "app-weak",
		TenantID:        "tenant-1",
		BusinessName:    "Struggling LLC",
		Industry:        "retail",
		YearsInBusiness: 1,
		RequestedAmount: 75000,
		Credit: domain.CreditData{
			OnTimePayments: 10,
			LatePayments:   8,
			MissedPayments: 5,
			AvgDaysLate:    20,
			UtilizationPct: 95,
			TotalAccounts:  1,
			ActiveAccounts: 1,
		},
	}

	result := engine.Score(app, nil, nil, nil)

	if result.Factors.PaymentHistory > 25 {
		t.Errorf("paymentHistory = %v, want near floor", result.Factors.PaymentHistory)
	}
	if result.Factors.CreditUtilization != 0 {
		t.Errorf("creditUtilization = %v, want 0 at 95%%", result.Factors.CreditUtilization)
	}
	if result.Factors.CreditMix != 0 {
		t.Errorf("creditMix = %v, want 0 with no account types", result.Factors.CreditMix)
	}
	if result.OverallScore >= 550 {
		t.Errorf("overallScore = %d, want below 550", result.OverallScore)
	}
	if result.RiskLevel != domain.RiskVeryHigh {
		t.Errorf("riskLevel = %q, want %q", result.RiskLevel, domain.RiskVeryHigh)
	}
	if len(result.Recommendations) == 0 {
		t.Error("expected recommendations for a weak profile")
	}
}

func TestScoreIgnoresFraudOnlyFields(t *testing.T) {
	engine := newTestEngine(t)

	a := strongApplication()
	b := strongApplication()
	b.BusinessName = "Totally Different Name"
	b.RequestedAmount = 99999
	b.MonthlyExpenses = 500000

	ra := engine.Score(a, nil, nil, nil)
	rb := engine.Score(b, nil, nil, nil)

	if ra.OverallScore != rb.OverallScore {
		t.Errorf("fraud-relevant fields changed overallScore: %d vs %d", ra.OverallScore, rb.OverallScore)
	}
}

func TestMissingSectionsDegradeGracefully(t *testing.T) {
	engine := newTestEngine(t)

	result := engine.Score(&domain.CreditApplication{ID: "empty", TenantID: "t"}, nil, nil, nil)

	if result.Factors.AlternativeData != 0 {
		t.Errorf("alternativeData = %v, want 0 when absent", result.Factors.AlternativeData)
	}
	if result.Factors.BehavioralData != 0 {
		t.Errorf("behavioralData = %v, want 0 when absent", result.Factors.BehavioralData)
	}
	if result.Factors.EconomicFactors != 50 {
		t.Errorf("economicFactors = %v, want neutral 50 when absent", result.Factors.EconomicFactors)
	}
	if result.OverallScore < 300 || result.OverallScore > 850 {
		t.Errorf("overallScore = %d outside display band", result.OverallScore)
	}
}

func TestWeightsValidate(t *testing.T) {
	bad := DefaultWeights()
	bad.PaymentHistory = 0.50
	if err := bad.Validate(); err == nil {
		t.Error("expected validation error for over-allocated traditional weights")
	}

	if err := DefaultWeights().Validate(); err != nil {
		t.Errorf("DefaultWeights should validate: %v", err)
	}

	if _, err := NewEngine(bad); err == nil {
		t.Error("NewEngine should reject invalid weights")
	}
}
