package chatops

import (
	"context"
	"errors"
	"strings"

	"approvalhub/internal/approvals"
	"approvalhub/internal/logging"
	"approvalhub/internal/search"
)

type PendingStore interface {
	ListPendingRequests(ctx context.Context, q approvals.PendingQuery) ([]approvals.Request, error)
}

// HomeBuilder assembles an approver's home view from the record store and,
// when a search phrase is given, the semantic search index.
type HomeBuilder struct {
	Store    PendingStore
	Embedder approvals.Embedder
	Searcher *search.Searcher
}

func (b *HomeBuilder) Build(ctx context.Context, q HomeQuery) (View, error) {
	if b == nil || b.Store == nil {
		return View{}, errors.New("home builder not configured")
	}
	q.Source = normalizeSource(q.Source)
	q.Search = strings.TrimSpace(q.Search)

	pq := approvals.PendingQuery{
		ApproverID: q.ApproverID,
		Source:     q.Source,
		Limit:      MaxHomeCards,
	}
	if ids, ok := b.searchIDs(ctx, q); ok {
		pq.IDs = ids
	}
	reqs, err := b.Store.ListPendingRequests(ctx, pq)
	if err != nil {
		return View{}, err
	}
	return RenderHomeView(reqs, q), nil
}

// searchIDs returns the ids matching q.Search. ok is false when no search
// narrowing applies.
func (b *HomeBuilder) searchIDs(ctx context.Context, q HomeQuery) ([]int64, bool) {
	if q.Search == "" || b.Embedder == nil || b.Searcher == nil {
		return nil, false
	}
	vec, err := b.Embedder.Embed(ctx, q.Search)
	if err != nil || len(vec) == 0 {
		logging.FromContext(ctx).Warn("search embedding failed, showing unfiltered view",
			"approver_id", q.ApproverID, "error", err)
		return nil, false
	}
	return search.IDs(b.Searcher.Search(ctx, q.ApproverID, vec)), true
}
