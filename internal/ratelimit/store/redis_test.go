package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(addr string) *RedisConfig {
	cfg := DefaultRedisConfig()
	cfg.Address = addr
	cfg.MaxRetries = -1
	cfg.ConnectionRetries = 2
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

func TestConnect_Success(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(mr.Addr())

	client := NewClient(cfg)
	defer client.Close()

	assert.NoError(t, Connect(context.Background(), client, cfg, nil))
}

func TestConnect_FailsAfterRetries(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(mr.Addr())
	mr.Close()

	client := NewClient(cfg)
	defer client.Close()

	err := Connect(context.Background(), client, cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestConnect_Cancelled(t *testing.T) {
	cfg := testConfig("127.0.0.1:1")
	client := NewClient(cfg)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Connect(ctx, client, cfg, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecorrelatedJitterBackoff(t *testing.T) {
	b := newDecorrelatedJitterBackoff(10*time.Millisecond, 50*time.Millisecond)

	assert.Equal(t, 10*time.Millisecond, b.next(0))
	for attempt := 1; attempt < 20; attempt++ {
		d := b.next(attempt)
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 50*time.Millisecond)
	}
}

func TestTokenBucketScript_DenyReset(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(testConfig(mr.Addr()))
	defer client.Close()
	ctx := context.Background()

	// 2 tokens, one token per second
	for i := 0; i < 2; i++ {
		res, err := TokenBucketScript.Run(ctx, client, []string{"k"}, 1000, 2, 1.0, 4).Int64Slice()
		require.NoError(t, err)
		assert.Equal(t, int64(1), res[0])
	}

	res, err := TokenBucketScript.Run(ctx, client, []string{"k"}, 1000, 2, 1.0, 4).Int64Slice()
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0, 1}, res)

	// Half a second later half a token has accrued.
	res, err = TokenBucketScript.Run(ctx, client, []string{"k"}, 1500, 2, 1.0, 4).Int64Slice()
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0, 1}, res)
	assert.Equal(t, "0.5", mr.HGet("k", "tokens"))
	assert.Equal(t, 4*time.Second, mr.TTL("k"))
}
