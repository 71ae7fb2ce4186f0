package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/fraud"
	"github.com/opensource-finance/kestrel/internal/portfolio"
	"github.com/opensource-finance/kestrel/internal/report"
	"github.com/opensource-finance/kestrel/internal/scoring"
	"github.com/opensource-finance/kestrel/internal/velocity"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo        domain.Repository
	cache       domain.Cache
	bus         domain.EventBus
	engine      *scoring.Engine
	fraudEngine *fraud.Engine
	policy      *decision.Policy
	analyzer    *portfolio.Analyzer
	velocity    *velocity.Service
	version     string
	mode        domain.DecisionMode
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *scoring.Engine, fraudEngine *fraud.Engine, policy *decision.Policy, analyzer *portfolio.Analyzer, vel *velocity.Service, version string, mode domain.DecisionMode) *Handler {
	if policy == nil {
		policy = decision.DefaultPolicy()
	}
	return &Handler{
		repo:        repo,
		cache:       cache,
		bus:         bus,
		engine:      engine,
		fraudEngine: fraudEngine,
		policy:      policy,
		analyzer:    analyzer,
		velocity:    vel,
		version:     version,
		mode:        mode,
	}
}

// ScoreResponse is the response for POST /score.
type ScoreResponse struct {
	ApplicationID string              `json:"applicationId"`
	Score         *domain.ScoreResult `json:"score"`
	Metadata      struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
		Mode    string `json:"mode"`
	} `json:"metadata"`
}

// Score handles POST /score requests: validates the application, persists
// it, and scores it synchronously.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var app domain.CreditApplication
	if err := json.NewDecoder(r.Body).Decode(&app); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if app.BusinessName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "businessName is required",
		})
		return
	}
	if app.RequestedAmount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "requestedAmount must be positive",
		})
		return
	}
	if app.AnnualRevenue < 0 || app.MonthlyRevenue < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "revenue figures must not be negative",
		})
		return
	}

	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	app.TenantID = tenantID
	now := time.Now().UTC()
	if app.SubmittedAt.IsZero() {
		app.SubmittedAt = now
	}
	app.CreatedAt = now

	if h.repo != nil {
		if err := h.repo.SaveApplication(ctx, tenantID, &app); err != nil {
			slog.Error("failed to save application", "error", err)
		}
	}
	if h.velocity != nil {
		h.velocity.RecordSubmission(ctx, tenantID, app.BusinessName, time.Hour)
	}

	score := h.engine.Score(&app, app.Alternative, app.Behavioral, app.Economic)
	score.TenantID = tenantID

	if h.repo != nil {
		if err := h.repo.SaveScore(ctx, tenantID, score); err != nil {
			slog.Error("failed to save score", "application_id", app.ID, "error", err)
		}
	}
	if h.cache != nil {
		summary := &domain.ScoreCache{
			ApplicationID: app.ID,
			BusinessName:  app.BusinessName,
			OverallScore:  score.OverallScore,
			RawScore:      score.RawScore,
			RiskLevel:     score.RiskLevel,
			Confidence:    score.Confidence,
			ScoredAt:      score.LastUpdated.UTC().Format(time.RFC3339),
		}
		_ = h.cache.SetScore(ctx, tenantID, app.ID, summary, time.Hour)
	}

	resp := ScoreResponse{
		ApplicationID: app.ID,
		Score:         score,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version
	resp.Metadata.Mode = string(h.mode)

	writeJSON(w, http.StatusOK, resp)
}

// GetApplication retrieves an application by ID.
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	appID := chi.URLParam(r, "id")

	if appID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "application id is required",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	app, err := h.repo.GetApplication(ctx, tenantID, appID)
	if err != nil {
		slog.Error("failed to get application", "id", appID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "application not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, app)
}

// GetScore retrieves a score result by application ID.
func (h *Handler) GetScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	appID := chi.URLParam(r, "applicationId")

	if appID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "application id is required",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	score, err := h.repo.GetScore(ctx, tenantID, appID)
	if err != nil {
		slog.Error("failed to get score", "application_id", appID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "score not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, score)
}

// Decide handles POST /applications/{id}/decision: loads the stored
// application and score and runs instant decisioning. The score is
// recomputed if it has not been persisted yet.
func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	appID := chi.URLParam(r, "id")

	if appID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "application id is required",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	app, err := h.repo.GetApplication(ctx, tenantID, appID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "application not found",
		})
		return
	}

	score, err := h.repo.GetScore(ctx, tenantID, appID)
	if err != nil {
		score = h.engine.Score(app, app.Alternative, app.Behavioral, app.Economic)
		score.TenantID = tenantID
		if err := h.repo.SaveScore(ctx, tenantID, score); err != nil {
			slog.Error("failed to save score", "application_id", appID, "error", err)
		}
	}

	dec := h.policy.Decide(app, score)
	if err := h.repo.SaveDecision(ctx, tenantID, dec); err != nil {
		slog.Error("failed to save decision", "application_id", appID, "error", err)
	}

	writeJSON(w, http.StatusOK, dec)
}

// GetDecision retrieves a decision by application ID.
func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	appID := chi.URLParam(r, "applicationId")

	if appID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "application id is required",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dec, err := h.repo.GetDecision(ctx, tenantID, appID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "decision not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, dec)
}

// FraudRequest is the optional request body for POST /applications/{id}/fraud.
type FraudRequest struct {
	VelocityWindow int `json:"velocityWindow,omitempty"`
}

// AssessFraud handles POST /applications/{id}/fraud: runs the fraud rule
// engine against the stored application.
func (h *Handler) AssessFraud(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	appID := chi.URLParam(r, "id")

	if appID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "application id is required",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}
	if h.fraudEngine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "fraud engine not available",
		})
		return
	}

	var req FraudRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid JSON request body",
			})
			return
		}
	}
	if req.VelocityWindow <= 0 {
		req.VelocityWindow = 3600
	}

	app, err := h.repo.GetApplication(ctx, tenantID, appID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "application not found",
		})
		return
	}

	assessment, err := h.fraudEngine.Assess(ctx, app, req.VelocityWindow)
	if err != nil {
		slog.Error("fraud assessment failed", "application_id", appID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "fraud assessment failed",
		})
		return
	}

	if err := h.repo.SaveFraudAssessment(ctx, tenantID, assessment); err != nil {
		slog.Error("failed to save fraud assessment", "application_id", appID, "error", err)
	}

	if assessment.IsFraudulent && h.bus != nil {
		payload, _ := json.Marshal(assessment)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicFraudAlert, payload); err != nil {
			slog.Error("failed to publish fraud alert", "application_id", appID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, assessment)
}

// PortfolioRequest is the request body for POST /portfolio. Applications
// may be supplied inline, referenced by ID, or both.
type PortfolioRequest struct {
	Applications   []*domain.CreditApplication `json:"applications,omitempty"`
	ApplicationIDs []string                    `json:"applicationIds,omitempty"`
}

// AnalyzePortfolio handles POST /portfolio requests.
func (h *Handler) AnalyzePortfolio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req PortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	apps := req.Applications
	if len(req.ApplicationIDs) > 0 {
		if h.repo == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "repository not available",
			})
			return
		}
		for _, id := range req.ApplicationIDs {
			app, err := h.repo.GetApplication(ctx, tenantID, id)
			if err != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{
					"error": "application not found: " + id,
				})
				return
			}
			apps = append(apps, app)
		}
	}

	if len(apps) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "applications or applicationIds is required",
		})
		return
	}

	result := h.analyzer.Analyze(ctx, tenantID, apps)
	writeJSON(w, http.StatusOK, result)
}

// Monitor handles POST /applications/{id}/monitor: re-scores the
// application from the posted updated data and compares it against the
// originally recorded score.
func (h *Handler) Monitor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	appID := chi.URLParam(r, "id")

	if appID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "application id is required",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	var current domain.CreditApplication
	if err := json.NewDecoder(r.Body).Decode(&current); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	current.ID = appID
	current.TenantID = tenantID

	original, err := h.repo.GetScore(ctx, tenantID, appID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no recorded score for application",
		})
		return
	}

	currentScore := h.engine.Score(&current, current.Alternative, current.Behavioral, current.Economic)
	currentScore.TenantID = tenantID

	monitorReport := decision.Monitor(original, currentScore)

	if monitorReport.Action != domain.ActionNone && h.bus != nil {
		payload, _ := json.Marshal(monitorReport)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicMonitorReview, payload); err != nil {
			slog.Error("failed to publish monitoring notice", "application_id", appID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, monitorReport)
}

// GetReport handles GET /reports/{applicationId}: renders a plain-text
// report from whatever results have been recorded for the application.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	appID := chi.URLParam(r, "applicationId")

	if appID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "application id is required",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	var rendered string
	if score, err := h.repo.GetScore(ctx, tenantID, appID); err == nil {
		rendered += report.RenderScore(score)
	}
	if dec, err := h.repo.GetDecision(ctx, tenantID, appID); err == nil {
		rendered += "\n" + report.RenderDecision(dec)
	}
	if assessment, err := h.repo.GetFraudAssessment(ctx, tenantID, appID); err == nil {
		rendered += "\n" + report.RenderFraud(assessment)
	}

	if rendered == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no results recorded for application",
		})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(rendered))
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListFraudRules returns all loaded fraud rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via
// POST /fraud-rules/reload.
func (h *Handler) ListFraudRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.fraudEngine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": loadedRules,
		"count": len(loadedRules),
	})
}

// GetFraudRule retrieves a fraud rule by ID from the loaded engine rules.
func (h *Handler) GetFraudRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.fraudEngine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateFraudRuleRequest is the request body for creating a fraud rule.
type CreateFraudRuleRequest struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Expression  string                 `json:"expression"`
	Bands       []domain.FraudRuleBand `json:"bands"`
	Weight      float64                `json:"weight"`
	Enabled     bool                   `json:"enabled"`
}

// GlobalTenantID is used for fraud rules that apply to all tenants.
const GlobalTenantID = "*"

// CreateFraudRule creates a new fraud rule and saves it to the database.
// Rules are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /fraud-rules/reload to hot-reload into the engine.
func (h *Handler) CreateFraudRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateFraudRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	ruleConfig := &domain.FraudRuleConfig{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Bands:       req.Bands,
		Weight:      req.Weight,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.fraudEngine.LoadRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveFraudRule(ctx, GlobalTenantID, ruleConfig); err != nil {
			slog.Error("failed to save fraud rule", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("fraud rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /fraud-rules/reload to apply changes.",
	})
}

// DeleteFraudRule soft-deletes a fraud rule and auto-reloads the engine.
func (h *Handler) DeleteFraudRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteFraudRule(ctx, GlobalTenantID, ruleID); err != nil {
		slog.Error("failed to delete fraud rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "rule not found",
		})
		return
	}

	dbRules, err := h.repo.ListFraudRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to reload fraud rules after delete", "error", err)
	} else if err := h.fraudEngine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload fraud rules into engine", "error", err)
	}

	slog.Info("fraud rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Rule deleted and engine reloaded.",
	})
}

// ReloadFraudRules reloads all fraud rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadFraudRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListFraudRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list fraud rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.fraudEngine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload fraud rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("fraud rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
