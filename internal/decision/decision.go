// Package decision implements the instant decisioning policy: it maps a
// score result plus policy thresholds to an approve/decline/manual-review
// outcome with derived loan terms.
package decision

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Policy holds the decisioning thresholds and term tables. Immutable once
// constructed; safe for concurrent use.
type Policy struct {
	// Display-scale score thresholds
	ApproveThreshold int
	ReviewThreshold  int

	// MaxInstantAmount is the ceiling for instant decisioning. Amounts above
	// it are not hard-rejected here; callers gate before invoking.
	MaxInstantAmount float64

	// Approval caps per score range
	CapExceptional float64
	CapVeryGood    float64
	CapGood        float64

	// Annual rates keyed to risk level, in percent
	RateLow    float64
	RateMedium float64
	RateHigh   float64
}

// DefaultPolicy returns the standard instant-decisioning policy.
func DefaultPolicy() *Policy {
	return &Policy{
		ApproveThreshold: 680,
		ReviewThreshold:  580,
		MaxInstantAmount: 100000,
		CapExceptional:   100000,
		CapVeryGood:      75000,
		CapGood:          50000,
		RateLow:          6.75,
		RateMedium:       9.25,
		RateHigh:         12.50,
	}
}

// Decide maps a score result to an instant decision. Pure apart from the
// DecidedAt timestamp.
func (p *Policy) Decide(app *domain.CreditApplication, score *domain.ScoreResult) *domain.Decision {
	d := &domain.Decision{
		ApplicationID: app.ID,
		TenantID:      app.TenantID,
		Score:         score.OverallScore,
		RiskLevel:     score.RiskLevel,
		DecidedAt:     time.Now().UTC(),
	}

	switch {
	case score.OverallScore >= p.ApproveThreshold:
		p.approve(d, app, score)
	case score.OverallScore >= p.ReviewThreshold:
		p.review(d, app, score)
	default:
		p.decline(d, score)
	}

	return d
}

func (p *Policy) approve(d *domain.Decision, app *domain.CreditApplication, score *domain.ScoreResult) {
	d.Outcome = domain.OutcomeApprove

	limit := p.amountCap(score.ScoreRange)
	amount := app.RequestedAmount
	if amount > limit {
		amount = limit
	}
	d.ApprovedAmount = amount
	d.InterestRate = p.rateFor(score.RiskLevel)
	d.TermMonths = termMonths(amount)
	d.MonthlyPayment = monthlyPayment(amount, d.InterestRate, d.TermMonths)

	if amount < app.RequestedAmount {
		d.Reason = fmt.Sprintf("approved at the %s tier cap of $%.0f", score.ScoreRange, limit)
	}
}

func (p *Policy) review(d *domain.Decision, app *domain.CreditApplication, score *domain.ScoreResult) {
	d.Outcome = domain.OutcomeManualReview
	d.Reason = "score within manual underwriting band"

	// High priority when close to approval or the exposure is large;
	// low when barely above decline.
	distance := p.ApproveThreshold - score.OverallScore
	switch {
	case distance <= 30 || app.RequestedAmount >= 50000:
		d.ReviewPriority = domain.PriorityHigh
	case distance <= 60:
		d.ReviewPriority = domain.PriorityMedium
	default:
		d.ReviewPriority = domain.PriorityLow
	}
}

func (p *Policy) decline(d *domain.Decision, score *domain.ScoreResult) {
	d.Outcome = domain.OutcomeDecline
	d.Reason = fmt.Sprintf("score %d below minimum threshold %d", score.OverallScore, p.ReviewThreshold)

	suggestions := score.Recommendations
	if len(suggestions) == 0 {
		suggestions = []string{"Build 6+ months of on-time payment history before reapplying"}
	}
	d.ImprovementSuggestions = suggestions
}

func (p *Policy) amountCap(scoreRange string) float64 {
	switch scoreRange {
	case domain.RangeExceptional:
		return p.CapExceptional
	case domain.RangeVeryGood:
		return p.CapVeryGood
	default:
		return p.CapGood
	}
}

func (p *Policy) rateFor(riskLevel string) float64 {
	switch riskLevel {
	case domain.RiskLow:
		return p.RateLow
	case domain.RiskMedium:
		return p.RateMedium
	default:
		return p.RateHigh
	}
}

// termMonths picks the loan term from the approved amount.
func termMonths(amount float64) int {
	switch {
	case amount <= 10000:
		return 24
	case amount <= 50000:
		return 48
	default:
		return 60
	}
}

// monthlyPayment computes the standard amortized payment
// P*r*(1+r)^n / ((1+r)^n - 1) with decimal money math, rounded to cents.
func monthlyPayment(principal, annualRatePct float64, months int) float64 {
	if principal <= 0 || months <= 0 {
		return 0
	}

	p := decimal.NewFromFloat(principal)
	if annualRatePct == 0 {
		out, _ := p.Div(decimal.NewFromInt(int64(months))).Round(2).Float64()
		return out
	}

	// Monthly rate as a fraction
	r := decimal.NewFromFloat(annualRatePct).
		Div(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(12))

	one := decimal.NewFromInt(1)
	compound := one.Add(r).Pow(decimal.NewFromInt(int64(months)))

	payment := p.Mul(r).Mul(compound).Div(compound.Sub(one))
	out, _ := payment.Round(2).Float64()
	return out
}

// Monitor diffs a fresh score against the originally recorded one and
// classifies the deterioration into an action tier. A risk-level downgrade
// forces at least a review regardless of the raw delta.
func Monitor(original *domain.ScoreResult, current *domain.ScoreResult) *domain.MonitoringReport {
	report := &domain.MonitoringReport{
		ApplicationID: original.ApplicationID,
		TenantID:      original.TenantID,
		OriginalScore: original.OverallScore,
		CurrentScore:  current.OverallScore,
		Delta:         current.OverallScore - original.OverallScore,
		OriginalRisk:  original.RiskLevel,
		CurrentRisk:   current.RiskLevel,
		EvaluatedAt:   time.Now().UTC(),
	}

	drop := original.OverallScore - current.OverallScore
	switch {
	case drop >= 150:
		report.Action = domain.ActionEscalate
	case drop >= 100:
		report.Action = domain.ActionRestructure
	case drop >= 50:
		report.Action = domain.ActionReview
	case drop >= 20:
		report.Action = domain.ActionMonitor
	default:
		report.Action = domain.ActionNone
	}

	if riskRank(current.RiskLevel) > riskRank(original.RiskLevel) {
		if actionRank(report.Action) < actionRank(domain.ActionReview) {
			report.Action = domain.ActionReview
		}
		report.Notes = append(report.Notes,
			fmt.Sprintf("risk level moved from %s to %s", original.RiskLevel, current.RiskLevel))
	}

	switch report.Action {
	case domain.ActionEscalate:
		report.Notes = append(report.Notes, "severe deterioration: escalate to workout team")
	case domain.ActionRestructure:
		report.Notes = append(report.Notes, "significant deterioration: propose restructured terms")
	case domain.ActionReview:
		report.Notes = append(report.Notes, "schedule an underwriter review of current financials")
	case domain.ActionMonitor:
		report.Notes = append(report.Notes, "add to the watch list and re-score next cycle")
	}

	return report
}

func riskRank(level string) int {
	switch level {
	case domain.RiskLow:
		return 0
	case domain.RiskMedium:
		return 1
	case domain.RiskHigh:
		return 2
	default:
		return 3
	}
}

func actionRank(action string) int {
	switch action {
	case domain.ActionNone:
		return 0
	case domain.ActionMonitor:
		return 1
	case domain.ActionReview:
		return 2
	case domain.ActionRestructure:
		return 3
	default:
		return 4
	}
}
