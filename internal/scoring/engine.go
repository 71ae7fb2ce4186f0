// Package scoring implements the weighted credit scoring engine.
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ModelVersion identifies the scoring model revision carried on every result.
const ModelVersion = "kestrel-v2.1"

// Weights is the immutable weight configuration for the scoring model.
// The five traditional weights sum to 1.0 within the traditional block;
// the four block weights sum to 1.0 overall.
type Weights struct {
	// Traditional factor weights (within the traditional block)
	PaymentHistory    float64
	CreditUtilization float64
	CreditHistory     float64
	CreditMix         float64
	NewCredit         float64

	// Block weights
	Traditional float64
	Alternative float64
	Behavioral  float64
	Economic    float64
}

// DefaultWeights returns the standard model weights.
func DefaultWeights() Weights {
	return Weights{
		PaymentHistory:    0.35,
		CreditUtilization: 0.30,
		CreditHistory:     0.15,
		CreditMix:         0.10,
		NewCredit:         0.10,
		Traditional:       0.70,
		Alternative:       0.15,
		Behavioral:        0.10,
		Economic:          0.05,
	}
}

// Validate checks that the weight configuration is internally consistent.
func (w Weights) Validate() error {
	trad := w.PaymentHistory + w.CreditUtilization + w.CreditHistory + w.CreditMix + w.NewCredit
	if math.Abs(trad-1.0) > 1e-9 {
		return fmt.Errorf("traditional weights sum to %.4f, want 1.0", trad)
	}
	blocks := w.Traditional + w.Alternative + w.Behavioral + w.Economic
	if math.Abs(blocks-1.0) > 1e-9 {
		return fmt.Errorf("block weights sum to %.4f, want 1.0", blocks)
	}
	return nil
}

// Engine computes credit scores. It is stateless apart from its immutable
// weight configuration and is safe for concurrent use.
type Engine struct {
	weights Weights
}

// NewEngine creates a scoring engine with the given weights.
func NewEngine(weights Weights) (*Engine, error) {
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weights: %w", err)
	}
	return &Engine{weights: weights}, nil
}

// Score computes the full score result for one application. It never fails
// for well-formed input; absent data sections degrade to low sub-scores.
// Deterministic for identical input except the LastUpdated timestamp.
func (e *Engine) Score(app *domain.CreditApplication, alt *domain.AlternativeData, beh *domain.BehavioralData, econ *domain.EconomicContext) *domain.ScoreResult {
	factors := domain.ScoringFactors{
		PaymentHistory:    paymentHistoryScore(&app.Credit),
		CreditUtilization: utilizationScore(app.Credit.UtilizationPct),
		CreditHistory:     creditHistoryScore(&app.Credit),
		CreditMix:         creditMixScore(app.Credit.AccountTypes),
		NewCredit:         newCreditScore(&app.Credit),
		AlternativeData:   alternativeScore(alt),
		BehavioralData:    behavioralScore(beh),
		EconomicFactors:   economicScore(econ),
	}

	traditional := factors.PaymentHistory*e.weights.PaymentHistory +
		factors.CreditUtilization*e.weights.CreditUtilization +
		factors.CreditHistory*e.weights.CreditHistory +
		factors.CreditMix*e.weights.CreditMix +
		factors.NewCredit*e.weights.NewCredit

	raw := traditional*e.weights.Traditional +
		factors.AlternativeData*e.weights.Alternative +
		factors.BehavioralData*e.weights.Behavioral +
		factors.EconomicFactors*e.weights.Economic

	display := DisplayScore(raw)
	risk := RiskLevelFor(display)

	result := &domain.ScoreResult{
		ApplicationID:   app.ID,
		TenantID:        app.TenantID,
		OverallScore:    display,
		RawScore:        raw,
		ScoreRange:      ScoreRangeFor(display),
		RiskLevel:       risk,
		Confidence:      confidence(app, alt, beh, econ),
		Factors:         factors,
		Recommendations: recommendations(&factors, risk),
		NextSteps:       nextSteps(display, risk),
		ModelVersion:    ModelVersion,
		LastUpdated:     time.Now().UTC(),
	}
	return result
}

// DisplayScore rescales an internal [0,100] score to the 300-850 band.
func DisplayScore(raw float64) int {
	score := 300 + int(math.Round(raw*5.5))
	if score < 300 {
		return 300
	}
	if score > 850 {
		return 850
	}
	return score
}

// RiskLevelFor classifies a display-scale score into a risk level.
func RiskLevelFor(displayScore int) string {
	switch {
	case displayScore >= 750:
		return domain.RiskLow
	case displayScore >= 650:
		return domain.RiskMedium
	case displayScore >= 550:
		return domain.RiskHigh
	default:
		return domain.RiskVeryHigh
	}
}

// ScoreRangeFor labels a display-scale score.
func ScoreRangeFor(displayScore int) string {
	switch {
	case displayScore >= 800:
		return domain.RangeExceptional
	case displayScore >= 740:
		return domain.RangeVeryGood
	case displayScore >= 670:
		return domain.RangeGood
	case displayScore >= 580:
		return domain.RangeFair
	default:
		return domain.RangePoor
	}
}

// paymentHistoryScore: on-time ratio scaled to 100, with capped penalties
// for late payments, missed payments, and average days late.
func paymentHistoryScore(c *domain.CreditData) float64 {
	total := c.OnTimePayments + c.LatePayments + c.MissedPayments
	if total == 0 {
		return 0
	}

	score := float64(c.OnTimePayments) / float64(total) * 100
	score -= math.Min(float64(c.LatePayments)*10, 50)
	score -= math.Min(float64(c.MissedPayments)*25, 75)
	score -= math.Min(c.AvgDaysLate*2, 30)
	return clamp(score)
}

// utilizationScore is a monotonic step function mirroring common
// underwriting rules of thumb rather than a smooth curve.
func utilizationScore(pct float64) float64 {
	switch {
	case pct <= 10:
		return 100
	case pct <= 20:
		return 90
	case pct <= 30:
		return 80
	case pct <= 50:
		return 60
	case pct <= 70:
		return 40
	case pct <= 90:
		return 20
	default:
		return 0
	}
}

func creditHistoryScore(c *domain.CreditData) float64 {
	var score float64

	// Average account age: up to 40 points
	switch {
	case c.AvgAccountAgeYears >= 7:
		score += 40
	case c.AvgAccountAgeYears >= 5:
		score += 30
	case c.AvgAccountAgeYears >= 3:
		score += 20
	case c.AvgAccountAgeYears >= 1:
		score += 10
	}

	// Oldest account age: up to 30 points
	switch {
	case c.OldestAccountYears >= 10:
		score += 30
	case c.OldestAccountYears >= 7:
		score += 22
	case c.OldestAccountYears >= 4:
		score += 15
	case c.OldestAccountYears >= 2:
		score += 8
	}

	// Account depth: up to 20 points
	switch {
	case c.TotalAccounts >= 10:
		score += 20
	case c.TotalAccounts >= 6:
		score += 15
	case c.TotalAccounts >= 3:
		score += 10
	case c.TotalAccounts >= 1:
		score += 5
	}

	// Active ratio: up to 10 points
	if c.TotalAccounts > 0 {
		score += float64(c.ActiveAccounts) / float64(c.TotalAccounts) * 10
	}

	return clamp(score)
}

func creditMixScore(accountTypes []string) float64 {
	distinct := make(map[string]struct{}, len(accountTypes))
	for _, t := range accountTypes {
		distinct[t] = struct{}{}
	}
	switch n := len(distinct); {
	case n >= 4:
		return 100
	case n == 3:
		return 80
	case n == 2:
		return 60
	case n == 1:
		return 40
	default:
		return 0
	}
}

func newCreditScore(c *domain.CreditData) float64 {
	score := 100.0
	score -= math.Min(float64(c.RecentInquiries)*5, 30)
	score -= math.Min(float64(c.NewAccounts)*10, 40)

	if c.MonthsSinceLastInquiry >= 12 {
		score += 10
	} else if c.MonthsSinceLastInquiry >= 6 {
		score += 5
	}

	return clamp(score)
}

// alternativeScore blends income stability (40%), spending patterns (30%),
// digital footprint (20%), and industry risk (10%).
func alternativeScore(alt *domain.AlternativeData) float64 {
	if alt == nil {
		return 0
	}
	income := incomeStabilityScore(alt)
	spending := spendingPatternScore(alt)
	digital := digitalFootprintScore(alt)
	industry := industryRiskScore(alt)

	return clamp(income*0.40 + spending*0.30 + digital*0.20 + industry*0.10)
}

func incomeStabilityScore(alt *domain.AlternativeData) float64 {
	var score float64

	switch {
	case alt.EmploymentYears >= 10:
		score += 40
	case alt.EmploymentYears >= 5:
		score += 30
	case alt.EmploymentYears >= 2:
		score += 20
	case alt.EmploymentYears >= 1:
		score += 10
	}

	score += alt.JobStability * 30

	switch alt.IncomeGrowthTrend {
	case domain.TrendIncreasing:
		score += 30
	case domain.TrendStable:
		score += 15
	}

	return clamp(score)
}

func spendingPatternScore(alt *domain.AlternativeData) float64 {
	var score float64

	switch {
	case alt.SavingsRate >= 0.20:
		score += 40
	case alt.SavingsRate >= 0.10:
		score += 30
	case alt.SavingsRate >= 0.05:
		score += 20
	case alt.SavingsRate > 0:
		score += 10
	}

	score += (1 - clampFrac(alt.ExpenseVariability)) * 30
	score += (1 - clampFrac(alt.DiscretionarySpending)) * 30

	return clamp(score)
}

func digitalFootprintScore(alt *domain.AlternativeData) float64 {
	// Moderate social media activity is the sweet spot; both silence and
	// hyperactivity read as weaker signals.
	var social float64
	switch a := alt.SocialMediaActivity; {
	case a >= 0.3 && a <= 0.7:
		social = 25
	case a >= 0.1 && a <= 0.9:
		social = 15
	default:
		social = 5
	}

	score := social +
		clampFrac(alt.OnlineShoppingFrequency)*25 +
		clampFrac(alt.DigitalPaymentUsage)*25 +
		clampFrac(alt.AppUsageConsistency)*25

	return clamp(score)
}

func industryRiskScore(alt *domain.AlternativeData) float64 {
	score := clampFrac(alt.IndustryStability)*40 +
		(1-clampFrac(alt.IndustryVolatility))*30 +
		(1-clampFrac(alt.RegulatoryRisk))*30
	return clamp(score)
}

// behavioralScore: four signals contributing up to 25 points each.
// Risk tolerance has a sweet spot at 0.3-0.7.
func behavioralScore(beh *domain.BehavioralData) float64 {
	if beh == nil {
		return 0
	}

	var tolerance float64
	switch r := beh.RiskTolerance; {
	case r >= 0.3 && r <= 0.7:
		tolerance = 25
	case r >= 0.15 && r <= 0.85:
		tolerance = 15
	default:
		tolerance = 5
	}

	score := clampFrac(beh.LoginFrequency)*25 +
		clampFrac(beh.PaymentMethodConsistency)*25 +
		clampFrac(beh.GoalSetting)*25 +
		tolerance

	return clamp(score)
}

// economicScore: base 50, adjusted by unemployment, inflation, and GDP
// growth tiers. A missing economic section is treated as neutral.
func economicScore(econ *domain.EconomicContext) float64 {
	if econ == nil {
		return 50
	}

	score := 50.0

	switch u := econ.UnemploymentRate; {
	case u <= 4:
		score += 15
	case u <= 6:
		score += 5
	case u <= 8:
		score -= 5
	default:
		score -= 15
	}

	// Mild inflation is healthy; deflation and high inflation both penalize.
	switch i := econ.InflationRate; {
	case i >= 1 && i <= 3:
		score += 15
	case i >= 0 && i <= 5:
		score += 5
	default:
		score -= 10
	}

	switch g := econ.GDPGrowth; {
	case g >= 3:
		score += 20
	case g > 0:
		score += 10
	case g >= -1:
		score -= 5
	default:
		score -= 20
	}

	return clamp(score)
}

// confidence estimates how much to trust the score: 0.5 base plus data
// completeness (0.3 max) plus pattern consistency (0.2 max), capped at 0.95.
func confidence(app *domain.CreditApplication, alt *domain.AlternativeData, beh *domain.BehavioralData, econ *domain.EconomicContext) float64 {
	present := 0
	const expected = 8

	if app.Credit.OnTimePayments+app.Credit.LatePayments+app.Credit.MissedPayments > 0 {
		present++
	}
	if app.Credit.TotalAccounts > 0 {
		present++
	}
	if len(app.Credit.AccountTypes) > 0 {
		present++
	}
	if app.AnnualRevenue > 0 {
		present++
	}
	if app.YearsInBusiness > 0 {
		present++
	}
	if alt != nil {
		present++
	}
	if beh != nil {
		present++
	}
	if econ != nil {
		present++
	}
	completeness := float64(present) / float64(expected)

	checks := 0
	passed := 0

	checks++
	if total := app.Credit.OnTimePayments + app.Credit.LatePayments + app.Credit.MissedPayments; total > 0 &&
		float64(app.Credit.OnTimePayments)/float64(total) >= 0.8 {
		passed++
	}
	if alt != nil {
		checks += 2
		if alt.JobStability >= 0.6 {
			passed++
		}
		if alt.ExpenseVariability <= 0.4 {
			passed++
		}
	}
	if beh != nil {
		checks++
		if beh.PaymentMethodConsistency >= 0.6 {
			passed++
		}
	}
	consistency := float64(passed) / float64(checks)

	conf := 0.5 + 0.3*completeness + 0.2*consistency
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}

func recommendations(f *domain.ScoringFactors, riskLevel string) []string {
	var recs []string

	if f.PaymentHistory < 70 {
		recs = append(recs, "Establish a consistent on-time payment record; payment history is the heaviest-weighted factor")
	}
	if f.CreditUtilization < 80 {
		recs = append(recs, "Pay down revolving balances to bring utilization under 30%")
	}
	if f.CreditHistory < 50 {
		recs = append(recs, "Keep older accounts open to lengthen average account age")
	}
	if f.CreditMix < 60 {
		recs = append(recs, "Diversify credit types (e.g., add an installment account to revolving credit)")
	}
	if f.NewCredit < 70 {
		recs = append(recs, "Avoid new credit inquiries for the next 6-12 months")
	}
	if f.AlternativeData < 50 {
		recs = append(recs, "Link bank and payroll accounts to strengthen alternative data signals")
	}
	if riskLevel == domain.RiskVeryHigh {
		recs = append(recs, "Consider a secured credit product to rebuild before applying for unsecured credit")
	}

	return recs
}

func nextSteps(displayScore int, riskLevel string) []string {
	switch {
	case displayScore >= 740:
		return []string{
			"Eligible for instant decisioning at preferred rates",
			"Review pre-qualified offers",
		}
	case displayScore >= 670:
		return []string{
			"Eligible for instant decisioning at standard rates",
			"Provide additional revenue documentation to improve terms",
		}
	case displayScore >= 580:
		return []string{
			"Application routed to manual underwriting review",
			"Prepare recent bank statements and financial records",
		}
	default:
		if riskLevel == domain.RiskVeryHigh {
			return []string{
				"Work through the recommendations before reapplying",
				"Reapply after 3-6 months of improved payment behavior",
			}
		}
		return []string{
			"Work through the recommendations before reapplying",
		}
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// clampFrac clamps a normalized signal to [0,1].
func clampFrac(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
