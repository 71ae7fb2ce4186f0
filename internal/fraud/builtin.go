package fraud

import "github.com/opensource-finance/kestrel/internal/domain"

func f(v float64) *float64 { return &v }

// BuiltinRules returns the default fraud rule set. Tenants can replace or
// extend these through the fraud-rules API; the set here is loaded at
// startup when the repository holds no rules for the tenant.
func BuiltinRules() []*domain.FraudRuleConfig {
	return []*domain.FraudRuleConfig{
		{
			ID:          "revenue-mismatch",
			Name:        "Revenue Consistency Check",
			Description: "Reported monthly and annual revenue figures disagree beyond tolerance",
			Version:     "1.0.0",
			Expression: "annual_revenue > 0.0 && (monthly_revenue * 12.0 > annual_revenue * 1.5 || " +
				"monthly_revenue * 12.0 < annual_revenue * 0.5) ? 1.0 : 0.0",
			Bands: []domain.FraudRuleBand{
				{LowerLimit: f(0), UpperLimit: f(1), Outcome: domain.FraudOutcomePass, Reason: "revenue figures consistent"},
				{LowerLimit: f(1), Outcome: domain.FraudOutcomeFlag, Reason: "monthly and annual revenue disagree"},
			},
			Weight:  25,
			Enabled: true,
		},
		{
			ID:          "implausible-age",
			Name:        "Implausible Business Age",
			Description: "Years in business outside a plausible range",
			Version:     "1.0.0",
			Expression:  "years_in_business < 0.0 || years_in_business > 100.0 ? 1.0 : 0.0",
			Bands: []domain.FraudRuleBand{
				{LowerLimit: f(0), UpperLimit: f(1), Outcome: domain.FraudOutcomePass, Reason: "plausible business age"},
				{LowerLimit: f(1), Outcome: domain.FraudOutcomeFlag, Reason: "implausible years in business"},
			},
			Weight:  30,
			Enabled: true,
		},
		{
			ID:          "round-amount-probe",
			Name:        "Ceiling Probe Check",
			Description: "Requested amount sits exactly at or just under the instant-decision ceiling",
			Version:     "1.0.0",
			Expression: "requested_amount >= 99999.0 && requested_amount <= 100000.0 ? 1.0 : " +
				"(requested_amount >= 95000.0 ? 0.5 : 0.0)",
			Bands: []domain.FraudRuleBand{
				{LowerLimit: f(0), UpperLimit: f(0.5), Outcome: domain.FraudOutcomePass, Reason: "amount not near ceiling"},
				{LowerLimit: f(0.5), UpperLimit: f(1), Outcome: domain.FraudOutcomeReview, Reason: "amount close to instant ceiling"},
				{LowerLimit: f(1), Outcome: domain.FraudOutcomeFlag, Reason: "amount probes the instant ceiling"},
			},
			Weight:  15,
			Enabled: true,
		},
		{
			ID:          "application-velocity",
			Name:        "Application Velocity Check",
			Description: "Repeated submissions from the same business within the window",
			Version:     "1.0.0",
			Expression:  "velocity_count > 3 ? 1.0 : (velocity_count > 1 ? 0.5 : 0.0)",
			Bands: []domain.FraudRuleBand{
				{LowerLimit: f(0), UpperLimit: f(0.5), Outcome: domain.FraudOutcomePass, Reason: "normal submission rate"},
				{LowerLimit: f(0.5), UpperLimit: f(1), Outcome: domain.FraudOutcomeReview, Reason: "repeated submissions"},
				{LowerLimit: f(1), Outcome: domain.FraudOutcomeFlag, Reason: "rapid repeated submissions"},
			},
			Weight:  30,
			Enabled: true,
		},
		{
			ID:          "expense-exceeds-revenue",
			Name:        "Expense Plausibility Check",
			Description: "Reported expenses exceed revenue by a wide margin",
			Version:     "1.0.0",
			Expression:  "monthly_revenue > 0.0 && monthly_expenses > monthly_revenue * 1.2 ? 1.0 : 0.0",
			Bands: []domain.FraudRuleBand{
				{LowerLimit: f(0), UpperLimit: f(1), Outcome: domain.FraudOutcomePass, Reason: "expenses plausible"},
				{LowerLimit: f(1), Outcome: domain.FraudOutcomeFlag, Reason: "expenses far exceed revenue"},
			},
			Weight:  20,
			Enabled: true,
		},
		{
			ID:          "debt-load",
			Name:        "Debt Load Check",
			Description: "Existing debt disproportionate to annual revenue",
			Version:     "1.0.0",
			Expression: "annual_revenue > 0.0 && existing_debt > annual_revenue * 2.0 ? 1.0 : " +
				"(annual_revenue > 0.0 && existing_debt > annual_revenue ? 0.5 : 0.0)",
			Bands: []domain.FraudRuleBand{
				{LowerLimit: f(0), UpperLimit: f(0.5), Outcome: domain.FraudOutcomePass, Reason: "debt load sustainable"},
				{LowerLimit: f(0.5), UpperLimit: f(1), Outcome: domain.FraudOutcomeReview, Reason: "debt exceeds annual revenue"},
				{LowerLimit: f(1), Outcome: domain.FraudOutcomeFlag, Reason: "debt more than twice annual revenue"},
			},
			Weight:  20,
			Enabled: true,
		},
	}
}
