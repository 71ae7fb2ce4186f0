// Package fraud provides the CEL-based fraud rule engine. Fraud detection
// runs as a separate pass over application data, independent of credit
// scoring.
package fraud

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// FraudThreshold is the risk score at or above which an application is
// classified as fraudulent.
const FraudThreshold = 60

// VerifyThreshold is the risk score above which manual verification is
// recommended.
const VerifyThreshold = 30

// Engine is the CEL-based fraud rule engine.
type Engine struct {
	mu             sync.RWMutex
	env            *cel.Env
	compiledRules  map[string]*CompiledRule
	velocityGetter VelocityGetter
	maxWorkers     int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.FraudRuleConfig
	Program cel.Program
}

// VelocityGetter returns the number of applications submitted by a business
// within a time window.
type VelocityGetter func(ctx context.Context, tenantID, businessName string, windowSecs int) (int64, error)

// NewEngine creates a fraud rule engine.
func NewEngine(velocityGetter VelocityGetter, maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// CEL environment exposing application variables
	env, err := cel.NewEnv(
		cel.Variable("app", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("business_name", cel.StringType),
		cel.Variable("industry", cel.StringType),
		cel.Variable("years_in_business", cel.DoubleType),
		cel.Variable("annual_revenue", cel.DoubleType),
		cel.Variable("monthly_revenue", cel.DoubleType),
		cel.Variable("monthly_expenses", cel.DoubleType),
		cel.Variable("existing_debt", cel.DoubleType),
		cel.Variable("requested_amount", cel.DoubleType),
		cel.Variable("velocity_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:            env,
		compiledRules:  make(map[string]*CompiledRule),
		velocityGetter: velocityGetter,
		maxWorkers:     maxWorkers,
	}, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.FraudRuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.FraudRuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules, skipping disabled ones.
func (e *Engine) LoadRules(configs []*domain.FraudRuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// EvaluateInput holds the application data for rule evaluation.
type EvaluateInput struct {
	TenantID        string
	ApplicationID   string
	BusinessName    string
	Industry        string
	YearsInBusiness float64
	AnnualRevenue   float64
	MonthlyRevenue  float64
	MonthlyExpenses float64
	ExistingDebt    float64
	RequestedAmount float64
	VelocityWindow  int // seconds
	AdditionalData  map[string]any
}

// InputFromApplication builds an EvaluateInput from an application record.
func InputFromApplication(app *domain.CreditApplication, velocityWindow int) *EvaluateInput {
	return &EvaluateInput{
		TenantID:        app.TenantID,
		ApplicationID:   app.ID,
		BusinessName:    app.BusinessName,
		Industry:        app.Industry,
		YearsInBusiness: app.YearsInBusiness,
		AnnualRevenue:   app.AnnualRevenue,
		MonthlyRevenue:  app.MonthlyRevenue,
		MonthlyExpenses: app.MonthlyExpenses,
		ExistingDebt:    app.ExistingDebt,
		RequestedAmount: app.RequestedAmount,
		VelocityWindow:  velocityWindow,
	}
}

// EvaluateAll evaluates all loaded rules in parallel.
func (e *Engine) EvaluateAll(ctx context.Context, input *EvaluateInput) ([]domain.FraudRuleResult, error) {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}

	// Get velocity count if getter is available
	var velocityCount int64
	if e.velocityGetter != nil && input.VelocityWindow > 0 {
		count, err := e.velocityGetter(ctx, input.TenantID, input.BusinessName, input.VelocityWindow)
		if err == nil {
			velocityCount = count
		}
	}

	// Prepare CEL activation variables
	activation := map[string]any{
		"app": map[string]any{
			"id":               input.ApplicationID,
			"business_name":    input.BusinessName,
			"industry":         input.Industry,
			"requested_amount": input.RequestedAmount,
		},
		"business_name":     input.BusinessName,
		"industry":          input.Industry,
		"years_in_business": input.YearsInBusiness,
		"annual_revenue":    input.AnnualRevenue,
		"monthly_revenue":   input.MonthlyRevenue,
		"monthly_expenses":  input.MonthlyExpenses,
		"existing_debt":     input.ExistingDebt,
		"requested_amount":  input.RequestedAmount,
		"velocity_count":    velocityCount,
	}

	// Merge additional data
	for k, v := range input.AdditionalData {
		activation[k] = v
	}

	// Parallel evaluation using worker pool pattern
	results := make([]domain.FraudRuleResult, len(rules))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			results[idx] = e.evaluateRule(r, activation, input)
		}(i, rule)
	}

	wg.Wait()

	return results, nil
}

// Assess runs every loaded rule against one application and aggregates the
// results into a fraud assessment. Rule weights are points toward a 0-100
// risk score, capped at 100.
func (e *Engine) Assess(ctx context.Context, app *domain.CreditApplication, velocityWindow int) (*domain.FraudAssessment, error) {
	input := InputFromApplication(app, velocityWindow)

	results, err := e.EvaluateAll(ctx, input)
	if err != nil {
		return nil, err
	}

	assessment := &domain.FraudAssessment{
		ApplicationID: app.ID,
		TenantID:      app.TenantID,
		RuleResults:   results,
		AssessedAt:    time.Now().UTC(),
	}

	var accumulated float64
	for _, r := range results {
		if r.Outcome == domain.FraudOutcomeError {
			continue
		}
		accumulated += r.Score * r.Weight
		if r.Outcome == domain.FraudOutcomeFlag || r.Outcome == domain.FraudOutcomeReview {
			assessment.Flags = append(assessment.Flags, r.RuleName)
		}
	}

	risk := int(math.Round(accumulated))
	if risk > 100 {
		risk = 100
	}
	assessment.RiskScore = risk
	assessment.IsFraudulent = risk >= FraudThreshold

	switch {
	case assessment.IsFraudulent:
		assessment.Recommendation = domain.FraudRecommendEscalate
	case risk > VerifyThreshold:
		assessment.Recommendation = domain.FraudRecommendVerify
	default:
		assessment.Recommendation = domain.FraudRecommendProceed
	}

	return assessment, nil
}

// evaluateRule evaluates a single rule and returns the result.
func (e *Engine) evaluateRule(rule *CompiledRule, activation map[string]any, input *EvaluateInput) domain.FraudRuleResult {
	start := time.Now()

	result := domain.FraudRuleResult{
		RuleID:        rule.Config.ID,
		RuleName:      rule.Config.Name,
		TenantID:      input.TenantID,
		ApplicationID: input.ApplicationID,
		Weight:        rule.Config.Weight,
	}

	// Evaluate CEL expression
	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		result.Outcome = domain.FraudOutcomeError
		result.Reason = fmt.Sprintf("evaluation error: %v", err)
		result.ProcessMs = time.Since(start).Milliseconds()
		return result
	}

	// Convert result to score
	score := toScore(out)
	result.Score = score

	// Determine outcome based on bands
	result.Outcome, result.Reason = matchBand(score, rule.Config.Bands)
	result.ProcessMs = time.Since(start).Milliseconds()

	return result
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// matchBand finds the matching band for a score.
// Bands are evaluated in order. Lower is inclusive, upper exclusive,
// except when upper is nil (meaning infinity).
func matchBand(score float64, bands []domain.FraudRuleBand) (string, string) {
	for _, band := range bands {
		lower := 0.0
		hasUpper := band.UpperLimit != nil
		upper := float64(1e9) // effectively infinity

		if band.LowerLimit != nil {
			lower = *band.LowerLimit
		}
		if hasUpper {
			upper = *band.UpperLimit
		}

		if score >= lower {
			if !hasUpper || score < upper {
				return band.Outcome, band.Reason
			}
		}
	}

	// Default to pass if no band matches
	return domain.FraudOutcomePass, "no matching band"
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(configs []*domain.FraudRuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.FraudRuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.FraudRuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.FraudRuleConfig) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
