package approvals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"approvalhub/internal/logging"
	"approvalhub/internal/metrics"
)

const (
	DefaultDimension     = 1024
	DefaultEnrichTimeout = 30 * time.Second
)

type Store interface {
	CreateApprovalRequest(ctx context.Context, req *Request) error
	GetApprovalRequest(ctx context.Context, id int64) (Request, error)
	// UpdateApprovalStatus moves a Pending request to status and returns the
	// new updated_at. It returns ErrAlreadyDecided when the row is no longer Pending.
	UpdateApprovalStatus(ctx context.Context, id int64, status Status) (time.Time, error)
	ListApprovalRequests(ctx context.Context, filter Filter) ([]Request, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, text string) (Analysis, error)
}

// Notifier pushes state changes to the approver's chat surface.
type Notifier interface {
	Refresh(ctx context.Context, approverID string) error
	Notify(ctx context.Context, userID, text string) error
}

type Service struct {
	Store    Store
	Embedder Embedder
	Analyzer Analyzer
	Notifier Notifier

	Dimension     int
	EnrichTimeout time.Duration
}

func (s *Service) dimension() int {
	if s.Dimension > 0 {
		return s.Dimension
	}
	return DefaultDimension
}

func (s *Service) enrichTimeout() time.Duration {
	if s.EnrichTimeout > 0 {
		return s.EnrichTimeout
	}
	return DefaultEnrichTimeout
}

// Create validates, enriches and persists a new Pending request, then
// refreshes the approver's home view.
func (s *Service) Create(ctx context.Context, in NewRequest) (Request, error) {
	if err := in.Validate(); err != nil {
		return Request{}, err
	}
	logger := logging.FromContext(ctx)

	meta := make(map[string]any, len(in.Metadata)+2)
	for k, v := range in.Metadata {
		meta[k] = v
	}

	req := Request{
		Source:            strings.TrimSpace(in.Source),
		RequesterName:     strings.TrimSpace(in.RequesterName),
		ApproverID:        strings.TrimSpace(in.ApproverID),
		Status:            StatusPending,
		JustificationText: in.JustificationText,
		Metadata:          meta,
	}

	req.Embedding = s.embed(ctx, in.JustificationText)
	analysis := s.analyze(ctx, in.JustificationText)
	if analysis.Summary != "" {
		meta[MetaSummary] = analysis.Summary
	}
	meta[MetaRiskScore] = analysis.RiskScore

	if s.Store == nil {
		return Request{}, &DependencyError{Op: "create approval request", Err: fmt.Errorf("store not configured")}
	}
	if err := s.Store.CreateApprovalRequest(ctx, &req); err != nil {
		return Request{}, &DependencyError{Op: "create approval request", Err: err}
	}
	metrics.ApprovalsCreatedTotal.WithLabelValues(req.Source).Inc()
	logger.Info("approval request created",
		"id", req.ID,
		"source", req.Source,
		"approver_id", req.ApproverID,
		"embedded", len(req.Embedding) > 0,
	)

	s.refresh(ctx, req.ApproverID)
	return req, nil
}

func (s *Service) embed(ctx context.Context, text string) []float32 {
	if s.Embedder == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.enrichTimeout())
	defer cancel()

	vec, err := s.Embedder.Embed(ctx, text)
	metrics.EnrichmentCallsTotal.WithLabelValues("embedding", metrics.Outcome(err)).Inc()
	if err != nil {
		logging.FromContext(ctx).Warn("embedding failed", "error", err)
		return nil
	}
	if len(vec) != s.dimension() {
		logging.FromContext(ctx).Warn("embedding dimension mismatch, discarding",
			"got", len(vec), "want", s.dimension())
		return nil
	}
	return vec
}

func (s *Service) analyze(ctx context.Context, text string) Analysis {
	if s.Analyzer == nil || strings.TrimSpace(text) == "" {
		return Analysis{}
	}
	ctx, cancel := context.WithTimeout(ctx, s.enrichTimeout())
	defer cancel()

	a, err := s.Analyzer.Analyze(ctx, text)
	metrics.EnrichmentCallsTotal.WithLabelValues("analysis", metrics.Outcome(err)).Inc()
	if err != nil {
		logging.FromContext(ctx).Warn("analysis failed", "error", err)
		return Analysis{}
	}
	return a
}

// Decide applies an approve/reject action from actor to request id.
// Checks run in order: existence, approver match, pending status.
func (s *Service) Decide(ctx context.Context, id int64, actor string, action Action) (Request, error) {
	target, ok := action.Status()
	if !ok {
		return Request{}, &ValidationError{Field: "action", Reason: fmt.Sprintf("unsupported action %q", action)}
	}
	if s.Store == nil {
		return Request{}, &DependencyError{Op: "decide approval request", Err: fmt.Errorf("store not configured")}
	}
	logger := logging.FromContext(ctx)

	req, err := s.Store.GetApprovalRequest(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Request{}, ErrNotFound
		}
		return Request{}, &DependencyError{Op: "get approval request", Err: err}
	}
	if req.ApproverID != actor {
		metrics.ApprovalDecisionsTotal.WithLabelValues("forbidden").Inc()
		logger.Warn("decision by non-approver rejected", "id", id, "actor", actor)
		return Request{}, ErrForbidden
	}
	if req.Status.Terminal() {
		metrics.ApprovalDecisionsTotal.WithLabelValues("conflict").Inc()
		return Request{}, ErrAlreadyDecided
	}

	updatedAt, err := s.Store.UpdateApprovalStatus(ctx, id, target)
	if err != nil {
		if errors.Is(err, ErrAlreadyDecided) {
			metrics.ApprovalDecisionsTotal.WithLabelValues("conflict").Inc()
			return Request{}, ErrAlreadyDecided
		}
		return Request{}, &DependencyError{Op: "update approval status", Err: err}
	}
	req.Status = target
	req.UpdatedAt = updatedAt
	metrics.ApprovalDecisionsTotal.WithLabelValues(string(target)).Inc()
	logger.Info("approval request decided", "id", id, "status", target, "actor", actor)

	s.refresh(ctx, actor)
	if s.Notifier != nil {
		if err := s.Notifier.Notify(ctx, actor, ConfirmationText(req)); err != nil {
			logger.Warn("confirmation message failed", "id", id, "error", err)
		}
	}
	return req, nil
}

// ConfirmationText is the direct message sent to the approver after a decision.
func ConfirmationText(req Request) string {
	return fmt.Sprintf("You %s the request from %s", strings.ToLower(string(req.Status)), req.RequesterName)
}

func (s *Service) List(ctx context.Context, filter Filter) ([]Request, error) {
	if s.Store == nil {
		return nil, &DependencyError{Op: "list approval requests", Err: fmt.Errorf("store not configured")}
	}
	reqs, err := s.Store.ListApprovalRequests(ctx, filter)
	if err != nil {
		return nil, &DependencyError{Op: "list approval requests", Err: err}
	}
	return reqs, nil
}

func (s *Service) refresh(ctx context.Context, approverID string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Refresh(ctx, approverID); err != nil {
		logging.FromContext(ctx).Warn("home view refresh failed", "approver_id", approverID, "error", err)
	}
}
