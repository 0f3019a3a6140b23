package search

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"approvalhub/internal/logging"
	"approvalhub/internal/metrics"
)

const (
	DefaultThreshold = 0.7
	DefaultLimit     = 10
)

// Hit is a single nearest-neighbour match. Distance is the cosine distance
// between the query and the stored vector (0 means identical direction).
type Hit struct {
	ID       int64
	Distance float64
}

type Store interface {
	SearchByVector(ctx context.Context, approverID string, vector []float32, maxDistance float64, limit int) ([]Hit, error)
}

// Searcher ranks an approver's pending requests by similarity to a query vector.
type Searcher struct {
	Store     Store
	Threshold float64
	Limit     int
}

func (s *Searcher) threshold() float64 {
	if s.Threshold > 0 && s.Threshold <= 1 {
		return s.Threshold
	}
	return DefaultThreshold
}

func (s *Searcher) limit() int {
	if s.Limit > 0 {
		return s.Limit
	}
	return DefaultLimit
}

// MaxDistance is the largest cosine distance a hit may have.
func (s *Searcher) MaxDistance() float64 {
	return 1 - s.threshold()
}

// Search returns hits ordered by ascending distance. Store failures are
// logged and produce an empty result.
func (s *Searcher) Search(ctx context.Context, approverID string, vector []float32) []Hit {
	if len(vector) == 0 || s.Store == nil {
		return nil
	}
	maxDistance := s.MaxDistance()
	hits, err := s.Store.SearchByVector(ctx, approverID, vector, maxDistance, s.limit())
	metrics.SemanticSearchTotal.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		logging.FromContext(ctx).Warn("semantic search failed", "approver_id", approverID, "error", err)
		return nil
	}

	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if h.Distance <= maxDistance {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance == out[j].Distance {
			return out[i].ID < out[j].ID
		}
		return out[i].Distance < out[j].Distance
	})
	if len(out) > s.limit() {
		out = out[:s.limit()]
	}
	return out
}

func IDs(hits []Hit) []int64 {
	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	return ids
}

// VectorLiteral renders v in pgvector text form, e.g. [0.1,0.2,0.3].
func VectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v)*10 + 2)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
