package domain

import (
	"time"
)

// CreditApplication represents an incoming credit application to be scored.
// Immutable once submitted; the engine never mutates it.
type CreditApplication struct {
	// Core identifiers
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	// Business identity
	BusinessName    string  `json:"businessName"`
	Industry        string  `json:"industry"`
	YearsInBusiness float64 `json:"yearsInBusiness"`

	// Financial figures
	AnnualRevenue   float64 `json:"annualRevenue"`
	MonthlyRevenue  float64 `json:"monthlyRevenue"`
	MonthlyExpenses float64 `json:"monthlyExpenses"`
	ExistingDebt    float64 `json:"existingDebt"`

	// Requested loan
	RequestedAmount float64 `json:"requestedAmount"`
	Purpose         string  `json:"purpose,omitempty"`

	// Traditional credit bureau data
	Credit CreditData `json:"credit"`

	// AI-enhanced data sections (optional; absent sections degrade to low sub-scores)
	Alternative *AlternativeData `json:"alternativeData,omitempty"`
	Behavioral  *BehavioralData  `json:"behavioralData,omitempty"`
	Economic    *EconomicContext `json:"economicFactors,omitempty"`

	// Temporal
	SubmittedAt time.Time `json:"submittedAt"`
	CreatedAt   time.Time `json:"createdAt"`

	// Optional metadata
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// CreditData holds traditional credit-bureau style inputs.
type CreditData struct {
	// Payment history
	OnTimePayments int     `json:"onTimePayments"`
	LatePayments   int     `json:"latePayments"`
	MissedPayments int     `json:"missedPayments"`
	AvgDaysLate    float64 `json:"avgDaysLate"`

	// Utilization
	UtilizationPct float64 `json:"utilizationPercentage"`

	// Account history
	AvgAccountAgeYears float64  `json:"avgAccountAgeYears"`
	OldestAccountYears float64  `json:"oldestAccountYears"`
	TotalAccounts      int      `json:"totalAccounts"`
	ActiveAccounts     int      `json:"activeAccounts"`
	AccountTypes       []string `json:"accountTypes,omitempty"`

	// New credit
	RecentInquiries        int `json:"recentInquiries"`
	NewAccounts            int `json:"newAccounts"`
	MonthsSinceLastInquiry int `json:"monthsSinceLastInquiry"`
}

// AlternativeData holds non-traditional signals used to augment bureau factors.
// Fraction fields are normalized to [0,1].
type AlternativeData struct {
	// Income stability
	EmploymentYears   float64 `json:"employmentYears"`
	JobStability      float64 `json:"jobStability"`
	IncomeGrowthTrend string  `json:"incomeGrowthTrend,omitempty"` // "increasing", "stable", "decreasing"

	// Spending patterns
	SavingsRate           float64 `json:"savingsRate"`
	ExpenseVariability    float64 `json:"expenseVariability"`
	DiscretionarySpending float64 `json:"discretionarySpending"`

	// Digital footprint
	SocialMediaActivity     float64 `json:"socialMediaActivity"`
	OnlineShoppingFrequency float64 `json:"onlineShoppingFrequency"`
	DigitalPaymentUsage     float64 `json:"digitalPaymentUsage"`
	AppUsageConsistency     float64 `json:"appUsageConsistency"`

	// Industry risk
	IndustryStability  float64 `json:"industryStability"`
	IndustryVolatility float64 `json:"industryVolatility"`
	RegulatoryRisk     float64 `json:"regulatoryRisk"`
}

// BehavioralData holds platform-behavior signals, normalized to [0,1].
type BehavioralData struct {
	LoginFrequency           float64 `json:"loginFrequency"`
	PaymentMethodConsistency float64 `json:"paymentMethodConsistency"`
	GoalSetting              float64 `json:"goalSetting"`
	RiskTolerance            float64 `json:"riskTolerance"`
}

// EconomicContext holds macro-economic inputs, in percent.
type EconomicContext struct {
	UnemploymentRate float64 `json:"unemploymentRate"`
	InflationRate    float64 `json:"inflationRate"`
	GDPGrowth        float64 `json:"gdpGrowth"`
}

// Income growth trend values.
const (
	TrendIncreasing = "increasing"
	TrendStable     = "stable"
	TrendDecreasing = "decreasing"
)
