// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveApplication stores an application with tenant isolation.
func (r *SQLRepository) SaveApplication(ctx context.Context, tenantID string, app *domain.CreditApplication) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	credit, _ := json.Marshal(app.Credit)
	alternative := marshalOptional(app.Alternative)
	behavioral := marshalOptional(app.Behavioral)
	economic := marshalOptional(app.Economic)
	metadata, _ := json.Marshal(app.Metadata)

	query := `
		INSERT INTO applications (
			id, tenant_id, business_name, industry, years_in_business,
			annual_revenue, monthly_revenue, monthly_expenses, existing_debt,
			requested_amount, purpose, credit, alternative, behavioral,
			economic, submitted_at, created_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		app.ID, tenantID, app.BusinessName, app.Industry, app.YearsInBusiness,
		app.AnnualRevenue, app.MonthlyRevenue, app.MonthlyExpenses, app.ExistingDebt,
		app.RequestedAmount, app.Purpose, string(credit), alternative, behavioral,
		economic, app.SubmittedAt, app.CreatedAt, string(metadata),
	)
	return err
}

const applicationColumns = `id, tenant_id, business_name, industry, years_in_business,
		   annual_revenue, monthly_revenue, monthly_expenses, existing_debt,
		   requested_amount, purpose, credit, alternative, behavioral,
		   economic, submitted_at, created_at, metadata`

// GetApplication retrieves an application by ID with tenant isolation.
func (r *SQLRepository) GetApplication(ctx context.Context, tenantID string, appID string) (*domain.CreditApplication, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT ` + applicationColumns + `
		FROM applications
		WHERE tenant_id = ? AND id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, appID)
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return app, nil
}

// ListApplications retrieves the most recent applications for a tenant.
func (r *SQLRepository) ListApplications(ctx context.Context, tenantID string, limit int) ([]*domain.CreditApplication, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + applicationColumns + `
		FROM applications
		WHERE tenant_id = ?
		ORDER BY submitted_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectApplications(rows)
}

// ListApplicationsByBusiness retrieves applications submitted by a business
// since the given time. Used for velocity checks.
func (r *SQLRepository) ListApplicationsByBusiness(ctx context.Context, tenantID string, businessName string, since time.Time) ([]*domain.CreditApplication, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT ` + applicationColumns + `
		FROM applications
		WHERE tenant_id = ?
		  AND business_name = ?
		  AND submitted_at >= ?
		ORDER BY submitted_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, businessName, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectApplications(rows)
}

// SaveScore stores a score result, replacing any previous score for the
// application.
func (r *SQLRepository) SaveScore(ctx context.Context, tenantID string, score *domain.ScoreResult) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	factors, _ := json.Marshal(score.Factors)
	recommendations, _ := json.Marshal(score.Recommendations)
	nextSteps, _ := json.Marshal(score.NextSteps)

	query := `
		INSERT INTO score_results (
			application_id, tenant_id, overall_score, raw_score, score_range,
			risk_level, confidence, factors, recommendations, next_steps,
			model_version, last_updated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(application_id, tenant_id) DO UPDATE SET
			overall_score = excluded.overall_score,
			raw_score = excluded.raw_score,
			score_range = excluded.score_range,
			risk_level = excluded.risk_level,
			confidence = excluded.confidence,
			factors = excluded.factors,
			recommendations = excluded.recommendations,
			next_steps = excluded.next_steps,
			model_version = excluded.model_version,
			last_updated = excluded.last_updated
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		score.ApplicationID, tenantID, score.OverallScore, score.RawScore, score.ScoreRange,
		score.RiskLevel, score.Confidence, string(factors), string(recommendations), string(nextSteps),
		score.ModelVersion, score.LastUpdated,
	)
	return err
}

// GetScore retrieves the stored score for an application.
func (r *SQLRepository) GetScore(ctx context.Context, tenantID string, appID string) (*domain.ScoreResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT application_id, tenant_id, overall_score, raw_score, score_range,
			   risk_level, confidence, factors, recommendations, next_steps,
			   model_version, last_updated
		FROM score_results
		WHERE tenant_id = ? AND application_id = ?
	`

	var score domain.ScoreResult
	var factors, recommendations, nextSteps string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, appID).Scan(
		&score.ApplicationID, &score.TenantID, &score.OverallScore, &score.RawScore, &score.ScoreRange,
		&score.RiskLevel, &score.Confidence, &factors, &recommendations, &nextSteps,
		&score.ModelVersion, &score.LastUpdated,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(factors), &score.Factors)
	json.Unmarshal([]byte(recommendations), &score.Recommendations)
	json.Unmarshal([]byte(nextSteps), &score.NextSteps)

	return &score, nil
}

// SaveDecision stores a decision, replacing any previous decision for the
// application.
func (r *SQLRepository) SaveDecision(ctx context.Context, tenantID string, decision *domain.Decision) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	suggestions, _ := json.Marshal(decision.ImprovementSuggestions)

	query := `
		INSERT INTO decisions (
			application_id, tenant_id, outcome, approved_amount, interest_rate,
			term_months, monthly_payment, reason, improvement_suggestions,
			review_priority, score, risk_level, decided_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(application_id, tenant_id) DO UPDATE SET
			outcome = excluded.outcome,
			approved_amount = excluded.approved_amount,
			interest_rate = excluded.interest_rate,
			term_months = excluded.term_months,
			monthly_payment = excluded.monthly_payment,
			reason = excluded.reason,
			improvement_suggestions = excluded.improvement_suggestions,
			review_priority = excluded.review_priority,
			score = excluded.score,
			risk_level = excluded.risk_level,
			decided_at = excluded.decided_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		decision.ApplicationID, tenantID, decision.Outcome, decision.ApprovedAmount, decision.InterestRate,
		decision.TermMonths, decision.MonthlyPayment, decision.Reason, string(suggestions),
		decision.ReviewPriority, decision.Score, decision.RiskLevel, decision.DecidedAt,
	)
	return err
}

// GetDecision retrieves the stored decision for an application.
func (r *SQLRepository) GetDecision(ctx context.Context, tenantID string, appID string) (*domain.Decision, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT application_id, tenant_id, outcome, approved_amount, interest_rate,
			   term_months, monthly_payment, reason, improvement_suggestions,
			   review_priority, score, risk_level, decided_at
		FROM decisions
		WHERE tenant_id = ? AND application_id = ?
	`

	var d domain.Decision
	var suggestions string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, appID).Scan(
		&d.ApplicationID, &d.TenantID, &d.Outcome, &d.ApprovedAmount, &d.InterestRate,
		&d.TermMonths, &d.MonthlyPayment, &d.Reason, &suggestions,
		&d.ReviewPriority, &d.Score, &d.RiskLevel, &d.DecidedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(suggestions), &d.ImprovementSuggestions)

	return &d, nil
}

// SaveFraudAssessment stores a fraud assessment, replacing any previous one
// for the application.
func (r *SQLRepository) SaveFraudAssessment(ctx context.Context, tenantID string, assessment *domain.FraudAssessment) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	flags, _ := json.Marshal(assessment.Flags)
	ruleResults, _ := json.Marshal(assessment.RuleResults)

	fraudulent := 0
	if assessment.IsFraudulent {
		fraudulent = 1
	}

	query := `
		INSERT INTO fraud_assessments (
			application_id, tenant_id, risk_score, is_fraudulent, flags,
			recommendation, rule_results, assessed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(application_id, tenant_id) DO UPDATE SET
			risk_score = excluded.risk_score,
			is_fraudulent = excluded.is_fraudulent,
			flags = excluded.flags,
			recommendation = excluded.recommendation,
			rule_results = excluded.rule_results,
			assessed_at = excluded.assessed_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		assessment.ApplicationID, tenantID, assessment.RiskScore, fraudulent, string(flags),
		assessment.Recommendation, string(ruleResults), assessment.AssessedAt,
	)
	return err
}

// GetFraudAssessment retrieves the stored fraud assessment for an application.
func (r *SQLRepository) GetFraudAssessment(ctx context.Context, tenantID string, appID string) (*domain.FraudAssessment, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT application_id, tenant_id, risk_score, is_fraudulent, flags,
			   recommendation, rule_results, assessed_at
		FROM fraud_assessments
		WHERE tenant_id = ? AND application_id = ?
	`

	var a domain.FraudAssessment
	var flags, ruleResults string
	var fraudulent int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, appID).Scan(
		&a.ApplicationID, &a.TenantID, &a.RiskScore, &fraudulent, &flags,
		&a.Recommendation, &ruleResults, &a.AssessedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.IsFraudulent = fraudulent == 1
	json.Unmarshal([]byte(flags), &a.Flags)
	json.Unmarshal([]byte(ruleResults), &a.RuleResults)

	return &a, nil
}

// SaveFraudRule stores a fraud rule configuration with tenant isolation.
func (r *SQLRepository) SaveFraudRule(ctx context.Context, tenantID string, rule *domain.FraudRuleConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	bands, _ := json.Marshal(rule.Bands)

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO fraud_rules (
			id, tenant_id, name, description, version, expression, bands, weight, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			bands = excluded.bands,
			weight = excluded.weight,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression, string(bands), rule.Weight, enabled,
		now, now,
	)
	return err
}

// GetFraudRule retrieves a fraud rule configuration with tenant isolation.
func (r *SQLRepository) GetFraudRule(ctx context.Context, tenantID string, ruleID string) (*domain.FraudRuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, bands, weight, enabled
		FROM fraud_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var cfg domain.FraudRuleConfig
	var bands string
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(
		&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
		&cfg.Version, &cfg.Expression, &bands, &cfg.Weight, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled == 1
	json.Unmarshal([]byte(bands), &cfg.Bands)

	return &cfg, nil
}

// ListFraudRules retrieves all active fraud rule configurations for a tenant.
func (r *SQLRepository) ListFraudRules(ctx context.Context, tenantID string) ([]*domain.FraudRuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, bands, weight, enabled
		FROM fraud_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.FraudRuleConfig
	for rows.Next() {
		var cfg domain.FraudRuleConfig
		var bands string
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
			&cfg.Version, &cfg.Expression, &bands, &cfg.Weight, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		json.Unmarshal([]byte(bands), &cfg.Bands)
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// DeleteFraudRule soft-deletes a fraud rule by setting enabled = 0.
func (r *SQLRepository) DeleteFraudRule(ctx context.Context, tenantID string, ruleID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE fraud_rules
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

// scanner abstracts sql.Row and sql.Rows for shared scan code.
type scanner interface {
	Scan(dest ...any) error
}

func scanApplication(s scanner) (*domain.CreditApplication, error) {
	var app domain.CreditApplication
	var credit string
	var alternative, behavioral, economic, metadata sql.NullString

	if err := s.Scan(
		&app.ID, &app.TenantID, &app.BusinessName, &app.Industry, &app.YearsInBusiness,
		&app.AnnualRevenue, &app.MonthlyRevenue, &app.MonthlyExpenses, &app.ExistingDebt,
		&app.RequestedAmount, &app.Purpose, &credit, &alternative, &behavioral,
		&economic, &app.SubmittedAt, &app.CreatedAt, &metadata,
	); err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(credit), &app.Credit)
	if alternative.Valid && alternative.String != "" {
		app.Alternative = &domain.AlternativeData{}
		json.Unmarshal([]byte(alternative.String), app.Alternative)
	}
	if behavioral.Valid && behavioral.String != "" {
		app.Behavioral = &domain.BehavioralData{}
		json.Unmarshal([]byte(behavioral.String), app.Behavioral)
	}
	if economic.Valid && economic.String != "" {
		app.Economic = &domain.EconomicContext{}
		json.Unmarshal([]byte(economic.String), app.Economic)
	}
	if metadata.Valid && metadata.String != "" {
		json.Unmarshal([]byte(metadata.String), &app.Metadata)
	}

	return &app, nil
}

func collectApplications(rows *sql.Rows) ([]*domain.CreditApplication, error) {
	var apps []*domain.CreditApplication
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// marshalOptional serializes a pointer section, returning nil for SQL NULL
// when the section is absent.
func marshalOptional(v any) any {
	switch t := v.(type) {
	case *domain.AlternativeData:
		if t == nil {
			return nil
		}
	case *domain.BehavioralData:
		if t == nil {
			return nil
		}
	case *domain.EconomicContext:
		if t == nil {
			return nil
		}
	}
	data, _ := json.Marshal(v)
	return string(data)
}
