// Package portfolio aggregates scoring results across many applications.
package portfolio

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// Default probability of default per risk level.
var defaultProbabilities = map[string]float64{
	domain.RiskLow:      0.02,
	domain.RiskMedium:   0.07,
	domain.RiskHigh:     0.15,
	domain.RiskVeryHigh: 0.30,
}

// Concentration thresholds on the top industry's share of total exposure.
const (
	industryShareHigh     = 0.40
	industryShareElevated = 0.25
)

// Analyzer scores portfolios of applications. Applications are scored
// independently; the only cross-application work is the final aggregation.
type Analyzer struct {
	engine     *scoring.Engine
	threshold  int // display-scale approval threshold
	topN       int
	maxWorkers int
}

// NewAnalyzer creates a portfolio analyzer on top of a scoring engine.
func NewAnalyzer(engine *scoring.Engine, approveThreshold, topN, maxWorkers int) *Analyzer {
	if topN <= 0 {
		topN = 5
	}
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	return &Analyzer{
		engine:     engine,
		threshold:  approveThreshold,
		topN:       topN,
		maxWorkers: maxWorkers,
	}
}

// Analyze scores every application and aggregates the results.
// Empty input returns a zero report, never an error.
func (a *Analyzer) Analyze(ctx context.Context, tenantID string, apps []*domain.CreditApplication) *domain.PortfolioReport {
	report := &domain.PortfolioReport{
		TenantID:          tenantID,
		TotalApplications: len(apps),
		RiskDistribution:  map[string]int{},
		TotalExposure:     decimal.Zero,
		ExpectedLoss:      decimal.Zero,
		GeneratedAt:       time.Now().UTC(),
	}
	if len(apps) == 0 {
		return report
	}

	// Score each application independently with a bounded fan-out.
	entries := make([]domain.PortfolioEntry, len(apps))
	var wg sync.WaitGroup
	sem := make(chan struct{}, a.maxWorkers)

	for i, app := range apps {
		wg.Add(1)
		go func(idx int, app *domain.CreditApplication) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			result := a.engine.Score(app, app.Alternative, app.Behavioral, app.Economic)
			entries[idx] = domain.PortfolioEntry{
				ApplicationID:      app.ID,
				BusinessName:       app.BusinessName,
				Industry:           app.Industry,
				Score:              result.OverallScore,
				RiskLevel:          result.RiskLevel,
				RequestedAmount:    app.RequestedAmount,
				DefaultProbability: defaultProbabilities[result.RiskLevel],
			}
		}(i, app)
	}
	wg.Wait()

	report.Entries = entries
	a.aggregate(report, entries)

	return report
}

func (a *Analyzer) aggregate(report *domain.PortfolioReport, entries []domain.PortfolioEntry) {
	var scoreSum, approvals int
	industryExposure := map[string]decimal.Decimal{}
	largest := decimal.Zero

	for _, e := range entries {
		scoreSum += e.Score
		if e.Score >= a.threshold {
			approvals++
		}
		report.RiskDistribution[e.RiskLevel]++

		amount := decimal.NewFromFloat(e.RequestedAmount)
		report.TotalExposure = report.TotalExposure.Add(amount)
		report.ExpectedLoss = report.ExpectedLoss.Add(
			amount.Mul(decimal.NewFromFloat(e.DefaultProbability)))

		industryExposure[e.Industry] = industryExposure[e.Industry].Add(amount)
		if amount.GreaterThan(largest) {
			largest = amount
		}
	}

	n := len(entries)
	report.AverageScore = scoreSum / n
	report.ApprovalRate = float64(approvals) / float64(n)

	if report.TotalExposure.IsPositive() {
		rate, _ := report.ExpectedLoss.Div(report.TotalExposure).Float64()
		report.ExpectedLossRate = rate
	}

	report.Concentration = concentration(industryExposure, largest, report.TotalExposure)
	report.TopRisks = topRisks(entries, a.topN)
	report.Recommendations = recommendations(report)
}

func concentration(byIndustry map[string]decimal.Decimal, largest, total decimal.Decimal) domain.ConcentrationRisk {
	risk := domain.ConcentrationRisk{Level: domain.ConcentrationNormal}
	if !total.IsPositive() {
		return risk
	}

	for industry, exposure := range byIndustry {
		share, _ := exposure.Div(total).Float64()
		if share > risk.TopIndustryShare {
			risk.TopIndustry = industry
			risk.TopIndustryShare = share
		}
	}
	risk.LargestExposureShare, _ = largest.Div(total).Float64()

	switch {
	case risk.TopIndustryShare > industryShareHigh || risk.LargestExposureShare > industryShareHigh:
		risk.Level = domain.ConcentrationHigh
	case risk.TopIndustryShare > industryShareElevated || risk.LargestExposureShare > industryShareElevated:
		risk.Level = domain.ConcentrationElevated
	}

	return risk
}

// topRisks returns the n worst-scored entries, sorted ascending by score.
func topRisks(entries []domain.PortfolioEntry, n int) []domain.PortfolioEntry {
	sorted := make([]domain.PortfolioEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score < sorted[j].Score
		}
		return sorted[i].ApplicationID < sorted[j].ApplicationID
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func recommendations(report *domain.PortfolioReport) []string {
	var recs []string

	if report.ExpectedLossRate > 0.10 {
		recs = append(recs, fmt.Sprintf("Expected loss rate %.1f%% exceeds the 10%% appetite; tighten approval thresholds", report.ExpectedLossRate*100))
	}
	if report.Concentration.Level == domain.ConcentrationHigh {
		recs = append(recs, fmt.Sprintf("High concentration in %s; diversify originations", report.Concentration.TopIndustry))
	} else if report.Concentration.Level == domain.ConcentrationElevated {
		recs = append(recs, "Concentration trending up; monitor industry mix")
	}
	if highShare := float64(report.RiskDistribution[domain.RiskHigh]+report.RiskDistribution[domain.RiskVeryHigh]) /
		float64(report.TotalApplications); highShare > 0.3 {
		recs = append(recs, fmt.Sprintf("%.0f%% of the book is high or very high risk; schedule portfolio review", highShare*100))
	}

	return recs
}
