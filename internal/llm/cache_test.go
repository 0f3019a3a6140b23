package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeCache struct {
	values map[string]string
	getErr error
	setErr error
	sets   int
	ttl    time.Duration
}

func (f *fakeCache) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCache) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.sets++
	f.ttl = expiration
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

type countingEmbedder struct {
	calls int
	vec   []float32
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.vec, c.err
}

func TestCachedEmbedderMissThenHit(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{0.5, 0.25}}
	cache := &fakeCache{values: map[string]string{}}
	c := &CachedEmbedder{Embedder: inner, Cache: cache, Model: "m"}

	for i := 0; i < 2; i++ {
		vec, err := c.Embed(context.Background(), "trip")
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if len(vec) != 2 || vec[0] != 0.5 {
			t.Fatalf("vec: %v", vec)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", inner.calls)
	}
	if cache.ttl != DefaultCacheTTL {
		t.Fatalf("ttl: %v", cache.ttl)
	}
}

func TestCachedEmbedderGetErrorFallsThrough(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{1}}
	cache := &fakeCache{values: map[string]string{}, getErr: errors.New("conn refused"), setErr: errors.New("conn refused")}
	c := &CachedEmbedder{Embedder: inner, Cache: cache}

	vec, err := c.Embed(context.Background(), "trip")
	if err != nil || len(vec) != 1 {
		t.Fatalf("got %v %v", vec, err)
	}
}

func TestCachedEmbedderUpstreamError(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("down")}
	cache := &fakeCache{values: map[string]string{}}
	c := &CachedEmbedder{Embedder: inner, Cache: cache}
	if _, err := c.Embed(context.Background(), "trip"); err == nil {
		t.Fatalf("expected error")
	}
	if cache.sets != 0 {
		t.Fatalf("failed embedding must not be cached")
	}
}

func TestCachedEmbedderCorruptEntry(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{1}}
	c := &CachedEmbedder{Embedder: inner, Cache: &fakeCache{values: map[string]string{}}, Model: "m"}
	c.Cache.(*fakeCache).values[c.key("trip")] = "garbage"
	if _, err := c.Embed(context.Background(), "trip"); err != nil {
		t.Fatalf("err: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected upstream call on corrupt entry")
	}
}

func TestCachedEmbedderNoCache(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{1}}
	c := &CachedEmbedder{Embedder: inner}
	if _, err := c.Embed(context.Background(), "trip"); err != nil || inner.calls != 1 {
		t.Fatalf("expected passthrough")
	}
}

func TestCacheKeyStable(t *testing.T) {
	c := &CachedEmbedder{Model: "m"}
	if c.key("a") != c.key("a") || c.key("a") == c.key("b") {
		t.Fatalf("unstable key")
	}
	other := &CachedEmbedder{Model: "n"}
	if c.key("a") == other.key("a") {
		t.Fatalf("key must include model")
	}
}
