package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/viant/sqlite-vec/vector"

	errx "github.com/chative-sales/server/internal/core/error"
	logx "github.com/chative-sales/server/pkg/logger"
)

// CachedEmbedder is a read-through Redis cache in front of another Embedder.
// Transcript texts are re-embedded on every search, so hits here save most
// embedding calls. Redis failures are logged and bypassed.
type CachedEmbedder struct {
	inner Embedder
	rdb   redis.Cmdable
	ttl   time.Duration
}

func NewCachedEmbedder(inner Embedder, rdb redis.Cmdable, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, rdb: rdb, ttl: ttl}
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embedding:" + c.inner.Name() + ":" + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	b, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		vec, derr := vector.DecodeEmbedding(b)
		if derr == nil && len(vec) == c.inner.Dimensions() {
			return vec, nil
		}
		logx.Warn().Str("key", key).Int("len", len(vec)).Msg("discarding malformed cached embedding")
	case !errors.Is(err, redis.Nil):
		logx.Warn().Err(errx.WrapRedis(err)).Str("key", key).Msg("embedding cache read failed")
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	blob, err := vector.EncodeEmbedding(vec)
	if err != nil {
		logx.Warn().Err(err).Str("key", key).Msg("embedding not cached")
		return vec, nil
	}
	if err := c.rdb.Set(ctx, key, blob, c.ttl).Err(); err != nil {
		logx.Warn().Err(errx.WrapRedis(err)).Str("key", key).Msg("embedding cache write failed")
	}
	return vec, nil
}

func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

func (c *CachedEmbedder) Name() string { return c.inner.Name() }

var _ Embedder = (*CachedEmbedder)(nil)
var _ Embedder = (*GenAIEmbedder)(nil)
