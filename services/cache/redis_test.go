package cachesvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umoorsehhat/sehhat/core"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Hour))
	data, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), data)

	// expired
	now := core.NowFunc
	defer func() { core.NowFunc = now }()
	core.NowFunc = func() time.Time { return now().Add(2 * time.Hour) }
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRedisCache_InvalidURL(t *testing.T) {
	_, err := NewRedisCache(&core.Config{Redis: core.RedisConfig{URL: "http://localhost"}})
	assert.Error(t, err)
}
