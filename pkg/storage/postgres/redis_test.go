package postgres

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/fieldops/pkg/storage"
)

func TestRedisOptions(t *testing.T) {
	t.Run("config overrides url", func(t *testing.T) {
		cfg := storage.DefaultConfig()
		cfg.RedisURL = "redis://:urlpass@cache:6379/1"
		cfg.RedisPassword = "secret"
		cfg.RedisDB = 4
		cfg.RedisPoolSize = 25

		opts, err := RedisOptions(cfg)
		require.NoError(t, err)
		assert.Equal(t, "cache:6379", opts.Addr)
		assert.Equal(t, "secret", opts.Password)
		assert.Equal(t, 4, opts.DB)
		assert.Equal(t, 25, opts.PoolSize)
		assert.Equal(t, 3, opts.MaxRetries)
	})

	t.Run("url db kept when config db is zero", func(t *testing.T) {
		cfg := storage.DefaultConfig()
		cfg.RedisURL = "redis://cache:6379/2"

		opts, err := RedisOptions(cfg)
		require.NoError(t, err)
		assert.Equal(t, 2, opts.DB)
	})

	t.Run("invalid url", func(t *testing.T) {
		cfg := storage.DefaultConfig()
		cfg.RedisURL = "http://cache"

		_, err := RedisOptions(cfg)
		assert.ErrorContains(t, err, "invalid redis URL")
	})
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := storage.DefaultConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	client, err := NewRedisClient(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := storage.DefaultConfig()
	cfg.RedisURL = "redis://" + addr
	_, err := NewRedisClient(context.Background(), cfg)
	assert.ErrorContains(t, err, "failed to connect to redis")
}
