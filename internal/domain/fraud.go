package domain

import (
	"time"
)

// FraudRuleConfig defines a fraud detection rule configuration.
type FraudRuleConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression to evaluate against application data
	Expression string `json:"expression"`

	// Outcome bands for score-to-outcome mapping
	Bands []FraudRuleBand `json:"bands"`

	// Rule weight in the fraud risk aggregation
	Weight float64 `json:"weight"`

	// Whether rule is active
	Enabled bool `json:"enabled"`
}

// FraudRuleBand maps a score range to an outcome.
type FraudRuleBand struct {
	LowerLimit *float64 `json:"lowerLimit,omitempty"`
	UpperLimit *float64 `json:"upperLimit,omitempty"`
	Outcome    string   `json:"outcome"` // ".pass", ".review", ".flag"
	Reason     string   `json:"reason"`
}

// FraudRuleResult is the output of a single fraud rule evaluation.
type FraudRuleResult struct {
	RuleID        string  `json:"ruleId"`
	RuleName      string  `json:"ruleName"`
	TenantID      string  `json:"tenantId"`
	ApplicationID string  `json:"applicationId"`
	Outcome       string  `json:"outcome"`
	Score         float64 `json:"score"` // computed value in [0,1]
	Reason        string  `json:"reason"`
	Weight        float64 `json:"weight"`
	ProcessMs     int64   `json:"processMs"`
}

// Predefined fraud rule outcomes.
const (
	FraudOutcomePass   = ".pass"
	FraudOutcomeReview = ".review"
	FraudOutcomeFlag   = ".flag"
	FraudOutcomeError  = ".err"
)

// FraudAssessment aggregates fraud rule results for one application.
// Computed independently of the credit score from the same application data.
type FraudAssessment struct {
	ApplicationID string `json:"applicationId"`
	TenantID      string `json:"tenantId"`

	RiskScore    int      `json:"riskScore"` // 0-100
	IsFraudulent bool     `json:"isFraudulent"`
	Flags        []string `json:"flags,omitempty"` // names of triggered rules

	Recommendation string `json:"recommendation"` // escalate, manual_verification, proceed

	RuleResults []FraudRuleResult `json:"ruleResults,omitempty"`
	AssessedAt  time.Time         `json:"assessedAt"`
}

// Fraud recommendation tiers.
const (
	FraudRecommendEscalate = "escalate"
	FraudRecommendVerify   = "manual_verification"
	FraudRecommendProceed  = "proceed"
)
