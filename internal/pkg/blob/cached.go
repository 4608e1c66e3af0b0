package blob

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mx-space/press/internal/pkg/redis"
	"go.uber.org/zap"
)

const (
	cacheKeyPrefix = "blob:signed:"
	// cached URLs are dropped this long before they expire
	cacheMargin = 5 * time.Minute
)

// Cached keeps signed URLs in Redis so a page of images costs one signing call per
// object per TTL window. Cache failures fall through to the wrapped store.
type Cached struct {
	Store
	rdb    *redis.Client
	logger *zap.Logger
}

func NewCached(store Store, rdb *redis.Client, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{Store: store, rdb: rdb, logger: logger}
}

type cachedEntry struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (c *Cached) Sign(ctx context.Context, key string) (Signed, error) {
	cacheKey := cacheKeyPrefix + key
	if raw, err := c.rdb.Get(ctx, cacheKey); err != nil {
		c.logger.Warn("signed url cache read failed", zap.String("key", key), zap.Error(err))
	} else if raw != "" {
		var entry cachedEntry
		if err := json.Unmarshal([]byte(raw), &entry); err == nil && time.Until(entry.ExpiresAt) > cacheMargin {
			return Signed{URL: entry.URL, ExpiresAt: entry.ExpiresAt}, nil
		}
	}

	signed, err := c.Store.Sign(ctx, key)
	if err != nil {
		return Signed{}, err
	}
	ttl := time.Until(signed.ExpiresAt) - cacheMargin
	if ttl > 0 {
		payload, _ := json.Marshal(cachedEntry{URL: signed.URL, ExpiresAt: signed.ExpiresAt})
		if err := c.rdb.Set(ctx, cacheKey, payload, ttl); err != nil {
			c.logger.Warn("signed url cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return signed, nil
}

func (c *Cached) Delete(ctx context.Context, key string) error {
	if err := c.Store.Delete(ctx, key); err != nil {
		return err
	}
	if err := c.rdb.Del(ctx, cacheKeyPrefix+key); err != nil {
		c.logger.Warn("signed url cache evict failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}
