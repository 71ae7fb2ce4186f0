package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaApplications = `
CREATE TABLE IF NOT EXISTS applications (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    business_name TEXT NOT NULL,
    industry TEXT NOT NULL,
    years_in_business REAL NOT NULL DEFAULT 0,
    annual_revenue REAL NOT NULL DEFAULT 0,
    monthly_revenue REAL NOT NULL DEFAULT 0,
    monthly_expenses REAL NOT NULL DEFAULT 0,
    existing_debt REAL NOT NULL DEFAULT 0,
    requested_amount REAL NOT NULL DEFAULT 0,
    purpose TEXT,
    credit TEXT NOT NULL,
    alternative TEXT,
    behavioral TEXT,
    economic TEXT,
    submitted_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL,
    metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_applications_tenant ON applications(tenant_id);
CREATE INDEX IF NOT EXISTS idx_applications_business ON applications(tenant_id, business_name);
CREATE INDEX IF NOT EXISTS idx_applications_submitted ON applications(tenant_id, submitted_at);
`

const schemaScoreResults = `
CREATE TABLE IF NOT EXISTS score_results (
    application_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    overall_score INTEGER NOT NULL,
    raw_score REAL NOT NULL,
    score_range TEXT NOT NULL,
    risk_level TEXT NOT NULL,
    confidence REAL NOT NULL,
    factors TEXT NOT NULL,
    recommendations TEXT,
    next_steps TEXT,
    model_version TEXT NOT NULL,
    last_updated TIMESTAMP NOT NULL,
    PRIMARY KEY (application_id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_score_results_tenant ON score_results(tenant_id);
CREATE INDEX IF NOT EXISTS idx_score_results_risk ON score_results(tenant_id, risk_level);
`

const schemaDecisions = `
CREATE TABLE IF NOT EXISTS decisions (
    application_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    outcome TEXT NOT NULL,
    approved_amount REAL NOT NULL DEFAULT 0,
    interest_rate REAL NOT NULL DEFAULT 0,
    term_months INTEGER NOT NULL DEFAULT 0,
    monthly_payment REAL NOT NULL DEFAULT 0,
    reason TEXT,
    improvement_suggestions TEXT,
    review_priority TEXT,
    score INTEGER NOT NULL,
    risk_level TEXT NOT NULL,
    decided_at TIMESTAMP NOT NULL,
    PRIMARY KEY (application_id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_decisions_tenant ON decisions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_decisions_outcome ON decisions(tenant_id, outcome);
`

const schemaFraudAssessments = `
CREATE TABLE IF NOT EXISTS fraud_assessments (
    application_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    risk_score INTEGER NOT NULL,
    is_fraudulent INTEGER NOT NULL DEFAULT 0,
    flags TEXT,
    recommendation TEXT NOT NULL,
    rule_results TEXT,
    assessed_at TIMESTAMP NOT NULL,
    PRIMARY KEY (application_id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_fraud_assessments_tenant ON fraud_assessments(tenant_id);
CREATE INDEX IF NOT EXISTS idx_fraud_assessments_flagged ON fraud_assessments(tenant_id, is_fraudulent);
`

const schemaFraudRules = `
CREATE TABLE IF NOT EXISTS fraud_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    bands TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 1.0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_fraud_rules_tenant ON fraud_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_fraud_rules_enabled ON fraud_rules(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaApplications,
		schemaScoreResults,
		schemaDecisions,
		schemaFraudAssessments,
		schemaFraudRules,
	}
}
