package chatops

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"approvalhub/internal/logging"
)

const DefaultRefreshCron = "*/15 * * * *"

type ApproverLister interface {
	ListPendingApprovers(ctx context.Context) ([]string, error)
}

type Refresher interface {
	Refresh(ctx context.Context, approverID string) error
}

// RefreshScheduler periodically re-publishes the home view of every
// approver with pending work.
type RefreshScheduler struct {
	Store        ApproverLister
	Publisher    Refresher
	Cron         string
	PollInterval time.Duration
	Now          func() time.Time
	Parser       *cron.Parser

	schedule cron.Schedule
	last     time.Time
}

func NewRefreshScheduler(store ApproverLister, pub Refresher, spec string) *RefreshScheduler {
	return &RefreshScheduler{Store: store, Publisher: pub, Cron: spec}
}

// ParseCron validates a standard five-field cron expression.
func ParseCron(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(strings.TrimSpace(spec))
}

func (s *RefreshScheduler) init() error {
	if s.Store == nil || s.Publisher == nil {
		return errors.New("store and publisher required")
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	if s.Parser == nil {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		s.Parser = &parser
	}
	if s.PollInterval <= 0 {
		s.PollInterval = 30 * time.Second
	}
	if s.schedule == nil {
		spec := strings.TrimSpace(s.Cron)
		if spec == "" {
			spec = DefaultRefreshCron
		}
		sched, err := s.Parser.Parse(spec)
		if err != nil {
			return err
		}
		s.schedule = sched
	}
	if s.last.IsZero() {
		s.last = s.Now().UTC()
	}
	return nil
}

func (s *RefreshScheduler) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.init(); err != nil {
		return err
	}
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
				logging.FromContext(ctx).Error("scheduled home refresh failed", "error", err)
			}
		}
	}
}

// Tick runs a sweep if the schedule is due and reports how many views were
// refreshed.
func (s *RefreshScheduler) Tick(ctx context.Context) (int, error) {
	if err := s.init(); err != nil {
		return 0, err
	}
	now := s.Now().UTC()
	if s.schedule.Next(s.last).After(now) {
		return 0, nil
	}
	s.last = now
	return s.RunOnce(ctx)
}

// RunOnce refreshes every approver with pending requests. Per-approver
// failures are logged and skipped.
func (s *RefreshScheduler) RunOnce(ctx context.Context) (int, error) {
	if s.Store == nil || s.Publisher == nil {
		return 0, errors.New("store and publisher required")
	}
	logger := logging.FromContext(ctx)
	approvers, err := s.Store.ListPendingApprovers(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, id := range approvers {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if err := s.Publisher.Refresh(ctx, id); err != nil {
			logger.Warn("scheduled home refresh failed", "approver_id", id, "error", err)
			continue
		}
		count++
	}
	logger.Info("scheduled home refresh", "approvers", len(approvers), "refreshed", count)
	return count, nil
}
