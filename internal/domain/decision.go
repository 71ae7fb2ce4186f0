package domain

import (
	"time"
)

// Decision is the outcome of instant decisioning for one application.
// Computed synchronously from a ScoreResult plus policy thresholds.
type Decision struct {
	ApplicationID string `json:"applicationId"`
	TenantID      string `json:"tenantId"`

	Outcome string `json:"outcome"` // approve, decline, manual_review

	// Populated for approvals
	ApprovedAmount float64 `json:"approvedAmount,omitempty"`
	InterestRate   float64 `json:"interestRate,omitempty"` // annual percentage rate
	TermMonths     int     `json:"termMonths,omitempty"`
	MonthlyPayment float64 `json:"monthlyPayment,omitempty"`

	// Populated for declines
	Reason                 string   `json:"reason,omitempty"`
	ImprovementSuggestions []string `json:"improvementSuggestions,omitempty"`

	// Populated for manual review
	ReviewPriority string `json:"reviewPriority,omitempty"` // high, medium, low

	// Score snapshot at decision time
	Score     int    `json:"score"`
	RiskLevel string `json:"riskLevel"`

	DecidedAt time.Time `json:"decidedAt"`
}

// Decision outcome values.
const (
	OutcomeApprove      = "approve"
	OutcomeDecline      = "decline"
	OutcomeManualReview = "manual_review"
)

// Review priority values.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// MonitoringReport is the result of re-scoring a loan against its
// originally recorded score.
type MonitoringReport struct {
	ApplicationID string `json:"applicationId"`
	TenantID      string `json:"tenantId"`

	OriginalScore int    `json:"originalScore"`
	CurrentScore  int    `json:"currentScore"`
	Delta         int    `json:"delta"` // current - original; negative means deterioration
	OriginalRisk  string `json:"originalRisk"`
	CurrentRisk   string `json:"currentRisk"`

	Action string   `json:"action"` // escalate, restructure, review, monitor, none
	Notes  []string `json:"notes,omitempty"`

	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// Monitoring action tiers, ordered by severity.
const (
	ActionEscalate    = "escalate"
	ActionRestructure = "restructure"
	ActionReview      = "review"
	ActionMonitor     = "monitor"
	ActionNone        = "none"
)
