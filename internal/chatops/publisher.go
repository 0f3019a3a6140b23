package chatops

import (
	"context"
	"errors"

	"approvalhub/internal/logging"
)

type SlackAPI interface {
	PublishView(ctx context.Context, userID string, view View) error
	PostMessage(ctx context.Context, channel, text string) error
}

type ViewBuilder interface {
	Build(ctx context.Context, q HomeQuery) (View, error)
}

// Publisher pushes home views and direct messages to Slack. A nil Slack
// makes every call a logged no-op.
type Publisher struct {
	Builder ViewBuilder
	Slack   SlackAPI
}

func (p *Publisher) Refresh(ctx context.Context, approverID string) error {
	return p.RefreshWith(ctx, HomeQuery{ApproverID: approverID})
}

func (p *Publisher) RefreshWith(ctx context.Context, q HomeQuery) error {
	if p == nil || p.Slack == nil {
		logging.FromContext(ctx).Debug("slack bot token not configured, skipping home refresh", "approver_id", q.ApproverID)
		return nil
	}
	if q.ApproverID == "" {
		return errors.New("approver id required")
	}
	if p.Builder == nil {
		return errors.New("view builder not configured")
	}
	view, err := p.Builder.Build(ctx, q)
	if err != nil {
		return err
	}
	return p.Slack.PublishView(ctx, q.ApproverID, view)
}

func (p *Publisher) Notify(ctx context.Context, userID, text string) error {
	if p == nil || p.Slack == nil {
		logging.FromContext(ctx).Debug("slack bot token not configured, skipping message", "user_id", userID)
		return nil
	}
	return p.Slack.PostMessage(ctx, userID, text)
}
