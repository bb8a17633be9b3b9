package storage

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babylon-scanner/internal/config"
)

func TestNewRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := &config.RedisConfig{
		Host:           mr.Host(),
		Port:           mr.Port(),
		MaxConnections: 4,
	}

	cache, err := NewRedisCache(testContext(t), cfg)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, cache.Close())
	}()

	assert.NoError(t, cache.Ping(testContext(t)))
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	host, port := mr.Host(), mr.Port()
	mr.Close()

	_, err = NewRedisCache(testContext(t), &config.RedisConfig{Host: host, Port: port, MaxConnections: 1})
	assert.Error(t, err)
}

func TestRedisOptions(t *testing.T) {
	opts := redisOptions(&config.RedisConfig{Host: "cache", Port: "6380", DB: 2})
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 1, opts.PoolSize)
}

func TestRedisCache_SetGetDel(t *testing.T) {
	cache, mr := newTestRedis(t)
	ctx := testContext(t)

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
	assert.Equal(t, time.Minute, mr.TTL("k"))

	require.NoError(t, cache.Del(ctx, "k"))
	_, err = cache.Get(ctx, "k")
	assert.ErrorIs(t, err, redis.Nil)
}
