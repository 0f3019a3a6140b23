package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"approvalhub/internal/approvals"
	"approvalhub/internal/logging"
	"approvalhub/internal/metrics"
)

const (
	DefaultCacheTTL = 24 * time.Hour
	cacheKeyPrefix  = "approvalhub:embedding:"
)

// CacheBackend is the subset of redis.Cmdable used by CachedEmbedder.
type CacheBackend interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// CachedEmbedder memoises embeddings in Redis keyed by model and text hash.
// Cache failures fall through to the wrapped embedder.
type CachedEmbedder struct {
	Embedder approvals.Embedder
	Cache    CacheBackend
	Model    string
	TTL      time.Duration
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.Cache == nil {
		return c.Embedder.Embed(ctx, text)
	}
	logger := logging.FromContext(ctx)
	key := c.key(text)

	raw, err := c.Cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var vec []float32
		if jerr := json.Unmarshal(raw, &vec); jerr == nil && len(vec) > 0 {
			metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
			return vec, nil
		}
		metrics.EmbeddingCacheTotal.WithLabelValues("error").Inc()
	case errors.Is(err, redis.Nil):
		metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()
	default:
		metrics.EmbeddingCacheTotal.WithLabelValues("error").Inc()
		logger.Warn("embedding cache get failed", "error", err)
	}

	vec, err := c.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(vec)
	if err == nil {
		err = c.Cache.Set(ctx, key, payload, c.ttl()).Err()
	}
	if err != nil {
		logger.Warn("embedding cache set failed", "error", err)
	}
	return vec, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return cacheKeyPrefix + c.Model + ":" + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return DefaultCacheTTL
}
