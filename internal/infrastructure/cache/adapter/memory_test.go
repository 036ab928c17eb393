package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/takurajunia/agrivus-mobile-sub002/internal/infrastructure/cache/port"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	require.ErrorIs(t, err, port.ErrMiss)

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", got)

	n, err := c.Del(ctx, "k", "missing")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = c.Get(ctx, "k")
	require.ErrorIs(t, err, port.ErrMiss)
}

func TestMemoryCacheTTL(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 20*time.Millisecond))
	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := c.Get(ctx, "k")
		return err == port.ErrMiss
	}, time.Second, 5*time.Millisecond)
}
