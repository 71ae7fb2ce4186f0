// Package report renders human-readable text from structured results.
// The structured objects remain the real contract; these presenters hold
// no business logic.
package report

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// RenderScore formats a score result as a Markdown-style report.
func RenderScore(result *domain.ScoreResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Credit Score Report\n\n")
	fmt.Fprintf(&b, "**Score:** %d (%s)\n", result.OverallScore, result.ScoreRange)
	fmt.Fprintf(&b, "**Risk level:** %s\n", result.RiskLevel)
	fmt.Fprintf(&b, "**Confidence:** %.0f%%\n", result.Confidence*100)
	fmt.Fprintf(&b, "**Model:** %s\n\n", result.ModelVersion)

	b.WriteString("## Factor Breakdown\n\n")
	fmt.Fprintf(&b, "- Payment history: %.0f/100\n", result.Factors.PaymentHistory)
	fmt.Fprintf(&b, "- Credit utilization: %.0f/100\n", result.Factors.CreditUtilization)
	fmt.Fprintf(&b, "- Credit history: %.0f/100\n", result.Factors.CreditHistory)
	fmt.Fprintf(&b, "- Credit mix: %.0f/100\n", result.Factors.CreditMix)
	fmt.Fprintf(&b, "- New credit: %.0f/100\n", result.Factors.NewCredit)
	fmt.Fprintf(&b, "- Alternative data: %.0f/100\n", result.Factors.AlternativeData)
	fmt.Fprintf(&b, "- Behavioral signals: %.0f/100\n", result.Factors.BehavioralData)
	fmt.Fprintf(&b, "- Economic context: %.0f/100\n", result.Factors.EconomicFactors)

	writeList(&b, "Recommendations", result.Recommendations)
	writeList(&b, "Next Steps", result.NextSteps)

	return b.String()
}

// RenderDecision formats an instant decision.
func RenderDecision(d *domain.Decision) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Instant Decision\n\n")
	fmt.Fprintf(&b, "**Outcome:** %s\n", d.Outcome)
	fmt.Fprintf(&b, "**Score:** %d (%s risk)\n", d.Score, d.RiskLevel)

	switch d.Outcome {
	case domain.OutcomeApprove:
		b.WriteString("\n## Approved Terms\n\n")
		fmt.Fprintf(&b, "- Amount: $%.2f\n", d.ApprovedAmount)
		fmt.Fprintf(&b, "- APR: %.2f%%\n", d.InterestRate)
		fmt.Fprintf(&b, "- Term: %d months\n", d.TermMonths)
		fmt.Fprintf(&b, "- Monthly payment: $%.2f\n", d.MonthlyPayment)
		if d.Reason != "" {
			fmt.Fprintf(&b, "\n_%s_\n", d.Reason)
		}
	case domain.OutcomeManualReview:
		fmt.Fprintf(&b, "**Review priority:** %s\n", d.ReviewPriority)
		if d.Reason != "" {
			fmt.Fprintf(&b, "\n%s\n", d.Reason)
		}
	case domain.OutcomeDecline:
		if d.Reason != "" {
			fmt.Fprintf(&b, "**Reason:** %s\n", d.Reason)
		}
		writeList(&b, "How to Improve", d.ImprovementSuggestions)
	}

	return b.String()
}

// RenderFraud formats a fraud assessment.
func RenderFraud(a *domain.FraudAssessment) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Fraud Assessment\n\n")
	fmt.Fprintf(&b, "**Risk score:** %d/100\n", a.RiskScore)
	fmt.Fprintf(&b, "**Classification:** ")
	if a.IsFraudulent {
		b.WriteString("FRAUDULENT\n")
	} else {
		b.WriteString("not fraudulent\n")
	}
	fmt.Fprintf(&b, "**Recommendation:** %s\n", a.Recommendation)

	writeList(&b, "Triggered Checks", a.Flags)

	return b.String()
}

// RenderPortfolio formats a portfolio report.
func RenderPortfolio(r *domain.PortfolioReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Portfolio Analysis\n\n")
	fmt.Fprintf(&b, "**Applications:** %d\n", r.TotalApplications)
	if r.TotalApplications == 0 {
		b.WriteString("\nNo applications to analyze.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "**Average score:** %d\n", r.AverageScore)
	fmt.Fprintf(&b, "**Approval rate:** %.0f%%\n", r.ApprovalRate*100)
	fmt.Fprintf(&b, "**Total exposure:** $%s\n", r.TotalExposure.StringFixed(2))
	fmt.Fprintf(&b, "**Expected loss:** $%s (%.1f%%)\n", r.ExpectedLoss.StringFixed(2), r.ExpectedLossRate*100)
	fmt.Fprintf(&b, "**Concentration:** %s", r.Concentration.Level)
	if r.Concentration.TopIndustry != "" {
		fmt.Fprintf(&b, " (top industry %s at %.0f%%)", r.Concentration.TopIndustry, r.Concentration.TopIndustryShare*100)
	}
	b.WriteString("\n\n## Risk Distribution\n\n")
	for _, level := range []string{domain.RiskLow, domain.RiskMedium, domain.RiskHigh, domain.RiskVeryHigh} {
		if count, ok := r.RiskDistribution[level]; ok {
			fmt.Fprintf(&b, "- %s: %d\n", level, count)
		}
	}

	if len(r.TopRisks) > 0 {
		b.WriteString("\n## Top Risks\n\n")
		for i, e := range r.TopRisks {
			fmt.Fprintf(&b, "%d. %s (%s) — score %d, %s risk, $%.0f requested\n",
				i+1, e.BusinessName, e.Industry, e.Score, e.RiskLevel, e.RequestedAmount)
		}
	}

	writeList(&b, "Recommendations", r.Recommendations)

	return b.String()
}

// RenderMonitoring formats a loan monitoring report.
func RenderMonitoring(m *domain.MonitoringReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Loan Monitoring Report\n\n")
	fmt.Fprintf(&b, "**Original score:** %d (%s risk)\n", m.OriginalScore, m.OriginalRisk)
	fmt.Fprintf(&b, "**Current score:** %d (%s risk)\n", m.CurrentScore, m.CurrentRisk)
	fmt.Fprintf(&b, "**Delta:** %+d\n", m.Delta)
	fmt.Fprintf(&b, "**Action:** %s\n", m.Action)

	writeList(&b, "Notes", m.Notes)

	return b.String()
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n", heading)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
