package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioEntry is one application's contribution to a portfolio report.
type PortfolioEntry struct {
	ApplicationID      string  `json:"applicationId"`
	BusinessName       string  `json:"businessName"`
	Industry           string  `json:"industry"`
	Score              int     `json:"score"`
	RiskLevel          string  `json:"riskLevel"`
	RequestedAmount    float64 `json:"requestedAmount"`
	DefaultProbability float64 `json:"defaultProbability"`
}

// ConcentrationRisk summarizes portfolio concentration exposure.
type ConcentrationRisk struct {
	TopIndustry          string  `json:"topIndustry,omitempty"`
	TopIndustryShare     float64 `json:"topIndustryShare"`     // share of total exposure
	LargestExposureShare float64 `json:"largestExposureShare"` // single application share
	Level                string  `json:"level"`                // normal, elevated, high
}

// Concentration risk levels.
const (
	ConcentrationNormal   = "normal"
	ConcentrationElevated = "elevated"
	ConcentrationHigh     = "high"
)

// PortfolioReport aggregates scoring results over N applications.
// Built fresh on each portfolio-analysis call; no incremental update model.
type PortfolioReport struct {
	TenantID          string `json:"tenantId"`
	TotalApplications int    `json:"totalApplications"`

	AverageScore int     `json:"averageScore"` // display scale
	ApprovalRate float64 `json:"approvalRate"` // fraction of would-approve outcomes

	// RiskDistribution counts per risk bucket; counts sum to TotalApplications.
	RiskDistribution map[string]int `json:"riskDistribution"`

	TotalExposure    decimal.Decimal `json:"totalExposure"`
	ExpectedLoss     decimal.Decimal `json:"expectedLoss"`
	ExpectedLossRate float64         `json:"expectedLossRate"`

	Concentration ConcentrationRisk `json:"concentrationRisk"`

	// Entries holds every scored application; TopRisks the N worst, sorted
	// ascending by score.
	Entries  []PortfolioEntry `json:"entries,omitempty"`
	TopRisks []PortfolioEntry `json:"topRisks,omitempty"`

	Recommendations []string `json:"recommendations,omitempty"`

	GeneratedAt time.Time `json:"generatedAt"`
}
