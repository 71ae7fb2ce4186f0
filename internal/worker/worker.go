// Package worker provides async application processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/fraud"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// Worker processes credit applications asynchronously from the EventBus.
type Worker struct {
	bus         domain.EventBus
	repo        domain.Repository
	cache       domain.Cache
	engine      *scoring.Engine
	fraudEngine *fraud.Engine
	policy      *decision.Policy
	mode        domain.DecisionMode

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, engine *scoring.Engine, fraudEngine *fraud.Engine, policy *decision.Policy, mode domain.DecisionMode) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	if policy == nil {
		policy = decision.DefaultPolicy()
	}
	if mode == "" {
		mode = domain.ModeAdvisory
	}
	return &Worker{
		bus:         bus,
		repo:        repo,
		cache:       cache,
		engine:      engine,
		fraudEngine: fraudEngine,
		policy:      policy,
		mode:        mode,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicApplicationSubmitted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicApplicationSubmitted, func(ctx context.Context, msg *domain.Message) error {
		return w.processApplication(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicApplicationSubmitted,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processApplication(ctx, msg.TenantID, msg)
}

// ApplicationMessage is the message payload for async application processing.
type ApplicationMessage struct {
	TenantID       string                    `json:"tenantId"`
	TraceID        string                    `json:"traceId,omitempty"`
	VelocityWindow int                       `json:"velocityWindow,omitempty"`
	Application    *domain.CreditApplication `json:"application"`
}

// processApplication runs the full pipeline: score, fraud assessment,
// decision, persistence, and result publication.
func (w *Worker) processApplication(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var appMsg ApplicationMessage
	if err := json.Unmarshal(msg.Payload, &appMsg); err != nil {
		slog.Error("failed to parse application message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if appMsg.Application == nil {
		slog.Error("application message missing application body",
			"message_id", msg.ID,
		)
		return errors.New("application message missing application body")
	}

	// Use message tenant if provided
	if appMsg.TenantID != "" {
		tenantID = appMsg.TenantID
	}

	app := appMsg.Application
	app.TenantID = tenantID

	traceID := appMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing application",
		"application_id", app.ID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	if w.repo != nil {
		if err := w.repo.SaveApplication(ctx, tenantID, app); err != nil {
			slog.Error("failed to save application",
				"application_id", app.ID,
				"error", err,
			)
		}
	}

	// 1. Score
	score := w.engine.Score(app, app.Alternative, app.Behavioral, app.Economic)
	score.TenantID = tenantID
	if w.repo != nil {
		if err := w.repo.SaveScore(ctx, tenantID, score); err != nil {
			slog.Error("failed to save score",
				"application_id", app.ID,
				"error", err,
			)
		}
	}
	if w.cache != nil {
		summary := &domain.ScoreCache{
			ApplicationID: app.ID,
			BusinessName:  app.BusinessName,
			OverallScore:  score.OverallScore,
			RawScore:      score.RawScore,
			RiskLevel:     score.RiskLevel,
			Confidence:    score.Confidence,
			ScoredAt:      score.LastUpdated.UTC().Format(time.RFC3339),
		}
		_ = w.cache.SetScore(ctx, tenantID, app.ID, summary, time.Hour)
	}

	scorePayload, _ := json.Marshal(score)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicScoreResult, scorePayload); err != nil {
		slog.Error("failed to publish score result",
			"application_id", app.ID,
			"error", err,
		)
	}

	// 2. Fraud assessment
	var assessment *domain.FraudAssessment
	if w.fraudEngine != nil {
		var err error
		assessment, err = w.fraudEngine.Assess(ctx, app, appMsg.VelocityWindow)
		if err != nil {
			slog.Error("fraud assessment failed",
				"application_id", app.ID,
				"error", err,
			)
		} else {
			if w.repo != nil {
				if err := w.repo.SaveFraudAssessment(ctx, tenantID, assessment); err != nil {
					slog.Error("failed to save fraud assessment",
						"application_id", app.ID,
						"error", err,
					)
				}
			}
			if assessment.IsFraudulent {
				alertPayload, _ := json.Marshal(assessment)
				if err := w.bus.Publish(ctx, tenantID, domain.TopicFraudAlert, alertPayload); err != nil {
					slog.Error("failed to publish fraud alert",
						"application_id", app.ID,
						"error", err,
					)
				}
			}
		}
	}

	// 3. Decision. In advisory mode the decision is computed and published
	// but flagged for human confirmation via manual review routing upstream.
	dec := w.policy.Decide(app, score)
	if assessment != nil && assessment.Recommendation == domain.FraudRecommendEscalate {
		dec.Outcome = domain.OutcomeManualReview
		dec.ReviewPriority = domain.PriorityHigh
		dec.Reason = "fraud assessment escalated"
		dec.ApprovedAmount = 0
		dec.InterestRate = 0
		dec.TermMonths = 0
		dec.MonthlyPayment = 0
	}
	if w.repo != nil {
		if err := w.repo.SaveDecision(ctx, tenantID, dec); err != nil {
			slog.Error("failed to save decision",
				"application_id", app.ID,
				"error", err,
			)
		}
	}

	decPayload, _ := json.Marshal(dec)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicDecision, decPayload); err != nil {
		slog.Error("failed to publish decision",
			"application_id", app.ID,
			"error", err,
		)
	}

	if dec.Outcome == domain.OutcomeManualReview {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicMonitorReview, decPayload); err != nil {
			slog.Error("failed to publish review notice",
				"application_id", app.ID,
				"error", err,
			)
		}
	}

	slog.Info("application processed",
		"application_id", app.ID,
		"tenant_id", tenantID,
		"mode", w.mode,
		"outcome", dec.Outcome,
		"score", score.OverallScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
