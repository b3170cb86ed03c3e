package wellness

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "aiplanner:wellness:"

func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// CachedAnalyzer memoizes successful results per schedule in Redis. Cache
// failures are logged and the call goes straight to the wrapped analyzer.
type CachedAnalyzer struct {
	next   Analyzer
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedAnalyzer(next Analyzer, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedAnalyzer {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedAnalyzer{next: next, client: client, ttl: ttl, logger: logger}
}

func (c *CachedAnalyzer) Mode() string { return c.next.Mode() + "+redis" }

func (c *CachedAnalyzer) Analyze(ctx context.Context, entries []Entry) (Result, error) {
	key, err := cacheKey(c.next.Mode(), entries)
	if err != nil {
		return c.next.Analyze(ctx, entries)
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached Result
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("wellness cache read failed", zap.Error(err))
	}

	res, err := c.next.Analyze(ctx, entries)
	if err != nil || res.Status != StatusSuccess {
		return res, err
	}
	if data, err := json.Marshal(res); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("wellness cache write failed", zap.Error(err))
		}
	}
	return res, nil
}

func (c *CachedAnalyzer) Close() error {
	return c.client.Close()
}

func cacheKey(mode string, entries []Entry) (string, error) {
	data, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append([]byte(mode+"\n"), data...))
	return cacheKeyPrefix + hex.EncodeToString(sum[:]), nil
}
