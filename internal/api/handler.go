package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-health/heron/internal/domain"
	"github.com/opensource-health/heron/internal/engine"
	"github.com/opensource-health/heron/internal/flagrules"
	"github.com/opensource-health/heron/internal/policy"
	"github.com/opensource-health/heron/internal/worker"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	table      *policy.Table
	flags      *flagrules.Engine
	processor  *engine.Processor
	policyPath string
	version    string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, table *policy.Table, flags *flagrules.Engine, processor *engine.Processor, policyPath string, version string) *Handler {
	return &Handler{
		repo:       repo,
		cache:      cache,
		bus:        bus,
		table:      table,
		flags:      flags,
		processor:  processor,
		policyPath: policyPath,
		version:    version,
	}
}

// adjudicationCacheTTL bounds how long verdicts are served from cache.
const adjudicationCacheTTL = 5 * time.Minute

// validateClaimRequest checks the fields every claim submission needs.
// Returns an error message suitable for the client, or "" if valid.
func validateClaimRequest(req *domain.ClaimRequest) string {
	if req.Beneficiary.ID == "" || req.Hospital.ID == "" {
		return "beneficiary.id and hospital.id are required"
	}
	if req.Facts == nil && req.ClinicalNotes == "" && req.HospitalBill == "" {
		return "facts or document text (clinicalNotes/hospitalBill) is required"
	}
	return ""
}

// Adjudicate handles POST /claims/adjudicate: synchronous adjudication.
func (h *Handler) Adjudicate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	// Parse request
	var req domain.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if msg := validateClaimRequest(&req); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": msg,
		})
		return
	}

	// Create claim record
	claimID := uuid.New().String()
	claim := req.ToClaim()
	claim.ID = claimID
	claim.TenantID = tenantID

	// Save claim if repository is available
	if h.repo != nil {
		if err := h.repo.SaveClaim(ctx, tenantID, claim); err != nil {
			slog.Error("failed to save claim", "error", err)
			// Continue: the verdict matters more than the audit trail here.
		}
	}

	// Run the adjudication pipeline
	adj := h.processor.Process(ctx, &engine.ProcessInput{
		TenantID:      tenantID,
		ClaimID:       claimID,
		TraceID:       traceID,
		BeneficiaryID: claim.BeneficiaryID,
		HospitalID:    claim.HospitalID,
		ClinicalText:  claim.ClinicalText,
		BillText:      claim.BillText,
		Facts:         req.Facts,
		Documents:     claim.Documents,
		StartTime:     start,
	})

	// Save adjudication
	if h.repo != nil {
		if err := h.repo.SaveAdjudication(ctx, tenantID, adj); err != nil {
			slog.Error("failed to save adjudication", "error", err)
		}
	}

	// Cache for fast verdict reads
	if h.cache != nil {
		if err := h.cache.SetAdjudication(ctx, tenantID, adj.ID, adj, adjudicationCacheTTL); err != nil {
			slog.Warn("failed to cache adjudication", "error", err)
		}
	}

	// Manual review verdicts go out on the alert topic even on the sync path
	if h.bus != nil && engine.NeedsReview(adj) {
		payload, _ := json.Marshal(adj)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicReviewAlert, payload); err != nil {
			slog.Error("failed to publish review alert", "claim_id", claimID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, adj.ToResponse())
}

// SubmitResponse is the response for POST /claims/submit.
type SubmitResponse struct {
	ClaimID string `json:"claimId"`
	Status  string `json:"status"`
	TraceID string `json:"traceId"`
}

// Submit handles POST /claims/submit: async adjudication via the event bus.
// The verdict is published on the verdict topic once a worker processes it.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	var req domain.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if msg := validateClaimRequest(&req); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": msg,
		})
		return
	}

	claimID := uuid.New().String()
	claim := req.ToClaim()
	claim.ID = claimID
	claim.TenantID = tenantID

	if h.repo != nil {
		if err := h.repo.SaveClaim(ctx, tenantID, claim); err != nil {
			slog.Error("failed to save claim", "error", err)
		}
	}

	claimMsg := worker.ClaimMessage{
		ClaimID:       claimID,
		TenantID:      tenantID,
		TraceID:       traceID,
		BeneficiaryID: claim.BeneficiaryID,
		HospitalID:    claim.HospitalID,
		ClinicalText:  claim.ClinicalText,
		BillText:      claim.BillText,
		Facts:         req.Facts,
		Documents:     req.Documents,
	}

	payload, err := json.Marshal(claimMsg)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode claim message",
		})
		return
	}

	if err := h.bus.Publish(ctx, tenantID, domain.TopicClaimSubmitted, payload); err != nil {
		slog.Error("failed to publish claim", "claim_id", claimID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to submit claim",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitResponse{
		ClaimID: claimID,
		Status:  "SUBMITTED",
		TraceID: traceID,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
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

// GetClaim retrieves a claim by ID.
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	claimID := chi.URLParam(r, "id")

	if claimID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "claim id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	claim, err := h.repo.GetClaim(ctx, tenantID, claimID)
	if err != nil {
		slog.Error("failed to get claim", "id", claimID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "claim not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, claim)
}

// GetAdjudication retrieves an adjudication by ID, cache first.
func (h *Handler) GetAdjudication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	adjID := chi.URLParam(r, "id")

	if adjID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "adjudication id is required",
		})
		return
	}

	if h.cache != nil {
		if adj, err := h.cache.GetAdjudication(ctx, tenantID, adjID); err == nil && adj != nil {
			writeJSON(w, http.StatusOK, adj)
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	adj, err := h.repo.GetAdjudication(ctx, tenantID, adjID)
	if err != nil {
		slog.Error("failed to get adjudication", "id", adjID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "adjudication not found",
		})
		return
	}

	if h.cache != nil {
		if err := h.cache.SetAdjudication(ctx, tenantID, adj.ID, adj, adjudicationCacheTTL); err != nil {
			slog.Warn("failed to cache adjudication", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, adj)
}

// ListClaimAdjudications returns all adjudication runs for a claim,
// newest first.
func (h *Handler) ListClaimAdjudications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	claimID := chi.URLParam(r, "id")

	if claimID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "claim id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	adjs, err := h.repo.ListAdjudicationsByClaim(ctx, tenantID, claimID)
	if err != nil {
		slog.Error("failed to list adjudications", "claim_id", claimID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list adjudications",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"adjudications": adjs,
		"count":         len(adjs),
	})
}

// ListPackages returns the loaded coverage package table.
func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	rules := h.table.Rules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"packages": rules,
		"count":    len(rules),
	})
}

// ReloadPolicy re-reads the policy source file and swaps the table.
// Band layout warnings are returned to the caller but never block the swap.
func (h *Handler) ReloadPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.policyPath == "" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "no policy source configured",
		})
		return
	}

	if err := h.table.ReloadFile(h.policyPath); err != nil {
		slog.Error("failed to reload policy table", "path", h.policyPath, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload policy table: " + err.Error(),
		})
		return
	}

	// Notify workers and other nodes
	if h.bus != nil {
		payload, _ := json.Marshal(map[string]interface{}{
			"path":  h.policyPath,
			"count": h.table.Count(),
		})
		if err := h.bus.Publish(ctx, tenantID, domain.TopicPolicyReload, payload); err != nil {
			slog.Error("failed to publish policy reload event", "error", err)
		}
	}

	slog.Info("policy table reloaded", "path", h.policyPath, "count", h.table.Count())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "policy table reloaded successfully",
		"count":    h.table.Count(),
		"warnings": h.table.Validate(),
	})
}

// ListRules returns all loaded flag rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	if h.flags == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "flag rule engine not available",
		})
		return
	}

	loadedRules := h.flags.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a flag rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.flags == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "flag rule engine not available",
		})
		return
	}

	for _, rule := range h.flags.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a flag rule.
type CreateRuleRequest struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	Expression     string            `json:"expression"`
	Bands          []domain.FlagBand `json:"bands"`
	Recommendation string            `json:"recommendation,omitempty"`
	Enabled        bool              `json:"enabled"`
}

// GlobalTenantID is used for flag rules that apply to all tenants.
const GlobalTenantID = "*"

// CreateRule creates a new flag rule and saves it to the database.
// Rules are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.flags == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "flag rule engine not available",
		})
		return
	}

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate
	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	// Create rule config (global tenant)
	ruleConfig := &domain.FlagRuleConfig{
		ID:             req.ID,
		TenantID:       GlobalTenantID,
		Name:           req.Name,
		Description:    req.Description,
		Version:        "1.0.0",
		Expression:     req.Expression,
		Bands:          req.Bands,
		Recommendation: req.Recommendation,
		Enabled:        req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.flags.LoadRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	// Persist to repository (global tenant ID)
	if h.repo != nil {
		if err := h.repo.SaveFlagRule(ctx, GlobalTenantID, ruleConfig); err != nil {
			slog.Error("failed to save flag rule", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("flag rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all flag rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.flags == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "flag rule engine not available",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	// Load rules from database (global rules)
	dbRules, err := h.repo.ListFlagRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list flag rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	// Reload into engine
	if err := h.flags.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload flag rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("flag rules reloaded from database", "count", len(dbRules))
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
