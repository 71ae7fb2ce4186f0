package domain

import (
	"time"
)

// ScoringFactors holds the named sub-scores, each in [0,100].
// Derived per request, never persisted independently.
type ScoringFactors struct {
	// Traditional factors
	PaymentHistory    float64 `json:"paymentHistory"`
	CreditUtilization float64 `json:"creditUtilization"`
	CreditHistory     float64 `json:"creditHistory"`
	CreditMix         float64 `json:"creditMix"`
	NewCredit         float64 `json:"newCredit"`

	// AI-enhanced factors
	AlternativeData float64 `json:"alternativeData"`
	BehavioralData  float64 `json:"behavioralData"`
	EconomicFactors float64 `json:"economicFactors"`
}

// ScoreResult is the complete scoring output for one application.
// Fully derived from one factors evaluation; recreated on every call.
type ScoreResult struct {
	ApplicationID string `json:"applicationId"`
	TenantID      string `json:"tenantId"`

	// OverallScore is on the 850-point display scale (300-850).
	OverallScore int `json:"overallScore"`

	// RawScore is the internal weighted sum in [0,100].
	RawScore float64 `json:"rawScore"`

	ScoreRange string  `json:"scoreRange"` // Poor, Fair, Good, Very Good, Exceptional
	RiskLevel  string  `json:"riskLevel"`  // low, medium, high, very_high
	Confidence float64 `json:"confidence"` // [0, 0.95]

	Factors ScoringFactors `json:"factors"`

	Recommendations []string `json:"recommendations,omitempty"`
	NextSteps       []string `json:"nextSteps,omitempty"`

	ModelVersion string    `json:"modelVersion"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// Risk level values, classified on the display scale.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskVeryHigh = "very_high"
)

// Score range labels on the 850-point display scale.
const (
	RangeExceptional = "Exceptional"
	RangeVeryGood    = "Very Good"
	RangeGood        = "Good"
	RangeFair        = "Fair"
	RangePoor        = "Poor"
)
