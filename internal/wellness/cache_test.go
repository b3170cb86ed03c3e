package wellness

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingAnalyzer struct {
	calls  int
	result Result
}

func (c *countingAnalyzer) Mode() string { return "counting" }

func (c *countingAnalyzer) Analyze(context.Context, []Entry) (Result, error) {
	c.calls++
	return c.result, nil
}

func TestCacheKeyIsStable(t *testing.T) {
	a, err := cacheKey("http", sampleEntries)
	require.NoError(t, err)
	b, err := cacheKey("http", append([]Entry(nil), sampleEntries...))
	require.NoError(t, err)
	c, err := cacheKey("http", sampleEntries[:1])
	require.NoError(t, err)
	d, err := cacheKey("mock", sampleEntries)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.True(t, strings.HasPrefix(a, cacheKeyPrefix))
}

func TestCachedAnalyzerFallsThroughWhenRedisIsDown(t *testing.T) {
	next := &countingAnalyzer{result: Result{Status: StatusSuccess, Message: "ok"}}
	c := NewCachedAnalyzer(next, NewRedisClient("127.0.0.1:1"), time.Minute, zap.NewNop())
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := c.Analyze(ctx, sampleEntries)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Message)
	assert.Equal(t, 1, next.calls)
}

func TestCachedAnalyzerWithRedis(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := NewRedisClient(addr)
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	entries := []Entry{{Name: "cache-test " + time.Now().Format(time.RFC3339Nano), StartTime: "a", EndTime: "b"}}
	key, err := cacheKey("counting", entries)
	require.NoError(t, err)
	defer client.Del(ctx, key)

	next := &countingAnalyzer{result: Result{Status: StatusSuccess, Message: "cached"}}
	c := NewCachedAnalyzer(next, client, time.Minute, zap.NewNop())
	defer c.Close()

	for i := 0; i < 3; i++ {
		res, err := c.Analyze(ctx, entries)
		require.NoError(t, err)
		assert.Equal(t, "cached", res.Message)
	}
	assert.Equal(t, 1, next.calls)
}

func TestCachedAnalyzerSkipsNonSuccess(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := NewRedisClient(addr)
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	next := &countingAnalyzer{result: Result{Status: StatusMock, Message: "demo"}}
	c := NewCachedAnalyzer(next, client, time.Minute, zap.NewNop())
	defer c.Close()

	entries := []Entry{{Name: "mock-test " + time.Now().Format(time.RFC3339Nano)}}
	for i := 0; i < 2; i++ {
		_, err := c.Analyze(context.Background(), entries)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, next.calls)
}
