// Package worker provides async claim processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-health/heron/internal/domain"
	"github.com/opensource-health/heron/internal/engine"
)

// Worker processes submitted claims asynchronously from the EventBus.
type Worker struct {
	bus       domain.EventBus
	repo      domain.Repository
	processor *engine.Processor

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
func NewWorker(bus domain.EventBus, repo domain.Repository, processor *engine.Processor) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		repo:      repo,
		processor: processor,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins processing claims for the given tenants.
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
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicClaimSubmitted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicClaimSubmitted, func(ctx context.Context, msg *domain.Message) error {
		return w.processClaim(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicClaimSubmitted,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processClaim(ctx, msg.TenantID, msg)
}

// ClaimMessage is the message payload for claim processing.
type ClaimMessage struct {
	ClaimID       string                 `json:"claimId"`
	TenantID      string                 `json:"tenantId"`
	TraceID       string                 `json:"traceId"`
	BeneficiaryID string                 `json:"beneficiaryId"`
	HospitalID    string                 `json:"hospitalId"`
	ClinicalText  string                 `json:"clinicalText,omitempty"`
	BillText      string                 `json:"billText,omitempty"`
	Facts         *domain.ExtractedFacts `json:"facts,omitempty"`
	Documents     map[string]bool        `json:"documents"`
}

// processClaim adjudicates a claim through the pipeline.
func (w *Worker) processClaim(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	// Parse message
	var claimMsg ClaimMessage
	if err := json.Unmarshal(msg.Payload, &claimMsg); err != nil {
		slog.Error("failed to parse claim message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if claimMsg.TenantID != "" {
		tenantID = claimMsg.TenantID
	}

	traceID := claimMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing claim",
		"claim_id", claimMsg.ClaimID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	// 1. Run the adjudication pipeline
	adj := w.processor.Process(ctx, &engine.ProcessInput{
		TenantID:      tenantID,
		ClaimID:       claimMsg.ClaimID,
		TraceID:       traceID,
		BeneficiaryID: claimMsg.BeneficiaryID,
		HospitalID:    claimMsg.HospitalID,
		ClinicalText:  claimMsg.ClinicalText,
		BillText:      claimMsg.BillText,
		Facts:         claimMsg.Facts,
		Documents:     domain.DocumentChecklist(claimMsg.Documents),
		StartTime:     start,
	})

	// 2. Save adjudication
	if w.repo != nil {
		if err := w.repo.SaveAdjudication(ctx, tenantID, adj); err != nil {
			slog.Error("failed to save adjudication",
				"claim_id", claimMsg.ClaimID,
				"error", err,
			)
		}
	}

	// 3. Publish verdict
	resultPayload, _ := json.Marshal(adj)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicVerdict, resultPayload); err != nil {
		slog.Error("failed to publish verdict",
			"claim_id", claimMsg.ClaimID,
			"error", err,
		)
	}

	// 4. If manual review is needed, publish to the review alert topic
	if engine.NeedsReview(adj) {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicReviewAlert, resultPayload); err != nil {
			slog.Error("failed to publish review alert",
				"claim_id", claimMsg.ClaimID,
				"error", err,
			)
		}
	}

	slog.Info("claim processed",
		"claim_id", claimMsg.ClaimID,
		"tenant_id", tenantID,
		"status", adj.Verdict.Status,
		"approved_amount", adj.Verdict.ApprovedAmount,
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
