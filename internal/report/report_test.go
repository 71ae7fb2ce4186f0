package report

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestRenderScore(t *testing.T) {
	result := &domain.ScoreResult{
		OverallScore: 745,
		ScoreRange:   domain.RangeVeryGood,
		RiskLevel:    domain.RiskMedium,
		Confidence:   0.85,
		ModelVersion: "kestrel-v2.1",
		Factors: domain.ScoringFactors{
			PaymentHistory:    95,
			CreditUtilization: 90,
		},
		Recommendations: []string{"Keep utilization under 30%"},
		NextSteps:       []string{"Review pre-qualified offers"},
	}

	out := RenderScore(result)

	for _, want := range []string{"745", "Very Good", "medium", "85%", "Payment history: 95/100", "Keep utilization"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered score report missing %q:\n%s", want, out)
		}
	}
}

func TestRenderDecisionApprove(t *testing.T) {
	d := &domain.Decision{
		Outcome:        domain.OutcomeApprove,
		Score:          760,
		RiskLevel:      domain.RiskLow,
		ApprovedAmount: 40000,
		InterestRate:   6.75,
		TermMonths:     48,
		MonthlyPayment: 953.12,
	}

	out := RenderDecision(d)

	for _, want := range []string{"approve", "$40000.00", "6.75%", "48 months", "$953.12"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered decision missing %q:\n%s", want, out)
		}
	}
}

func TestRenderDecisionDecline(t *testing.T) {
	d := &domain.Decision{
		Outcome:                domain.OutcomeDecline,
		Score:                  480,
		RiskLevel:              domain.RiskVeryHigh,
		Reason:                 "score 480 below minimum threshold 580",
		ImprovementSuggestions: []string{"Build on-time payment history"},
	}

	out := RenderDecision(d)

	if !strings.Contains(out, "decline") || !strings.Contains(out, "How to Improve") {
		t.Errorf("rendered decline missing sections:\n%s", out)
	}
}

func TestRenderFraud(t *testing.T) {
	a := &domain.FraudAssessment{
		RiskScore:      75,
		IsFraudulent:   true,
		Flags:          []string{"Revenue Consistency Check"},
		Recommendation: domain.FraudRecommendEscalate,
	}

	out := RenderFraud(a)

	for _, want := range []string{"75/100", "FRAUDULENT", "escalate", "Revenue Consistency Check"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered fraud report missing %q:\n%s", want, out)
		}
	}
}

func TestRenderPortfolio(t *testing.T) {
	r := &domain.PortfolioReport{
		TotalApplications: 3,
		AverageScore:      690,
		ApprovalRate:      0.67,
		RiskDistribution:  map[string]int{domain.RiskLow: 1, domain.RiskMedium: 1, domain.RiskVeryHigh: 1},
		TotalExposure:     decimal.NewFromInt(100000),
		ExpectedLoss:      decimal.NewFromInt(9500),
		ExpectedLossRate:  0.095,
		Concentration: domain.ConcentrationRisk{
			TopIndustry:      "retail",
			TopIndustryShare: 0.6,
			Level:            domain.ConcentrationHigh,
		},
		TopRisks: []domain.PortfolioEntry{
			{BusinessName: "Risky LLC", Industry: "retail", Score: 410, RiskLevel: domain.RiskVeryHigh, RequestedAmount: 30000},
		},
	}

	out := RenderPortfolio(r)

	for _, want := range []string{"Applications:** 3", "690", "$100000.00", "retail", "Risky LLC", "very_high: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered portfolio report missing %q:\n%s", want, out)
		}
	}
}

func TestRenderPortfolioEmpty(t *testing.T) {
	out := RenderPortfolio(&domain.PortfolioReport{RiskDistribution: map[string]int{}, TotalExposure: decimal.Zero, ExpectedLoss: decimal.Zero})
	if !strings.Contains(out, "No applications") {
		t.Errorf("empty portfolio render missing placeholder:\n%s", out)
	}
}

func TestRenderMonitoring(t *testing.T) {
	m := &domain.MonitoringReport{
		OriginalScore: 760,
		CurrentScore:  640,
		Delta:         -120,
		OriginalRisk:  domain.RiskLow,
		CurrentRisk:   domain.RiskHigh,
		Action:        domain.ActionRestructure,
		Notes:         []string{"risk level moved from low to high"},
	}

	out := RenderMonitoring(m)

	for _, want := range []string{"760", "640", "-120", "restructure", "risk level moved"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered monitoring report missing %q:\n%s", want, out)
		}
	}
}
