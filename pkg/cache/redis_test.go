package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/market-research/pkg/scrape"
)

func TestPageCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewPageCache(client)
	defer c.Close()
	ctx := context.Background()

	t.Run("Miss", func(t *testing.T) {
		_, ok, err := c.Get(ctx, "https://unknown")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Round trip", func(t *testing.T) {
		page := scrape.Page{URL: "https://acme", RawContent: "<html></html>", ScreenshotSegments: []string{"data:image/png;base64,AA=="}}
		require.NoError(t, c.Put(ctx, "https://acme", page))

		got, ok, err := c.Get(ctx, "https://acme")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, page, got)
	})

	t.Run("Expiry", func(t *testing.T) {
		c.TTL = time.Minute
		require.NoError(t, c.Put(ctx, "https://short", scrape.Page{URL: "https://short"}))
		mr.FastForward(2 * time.Minute)

		_, ok, err := c.Get(ctx, "https://short")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Corrupt entry", func(t *testing.T) {
		require.NoError(t, mr.Set(c.key("https://corrupt"), "{not json"))
		_, _, err := c.Get(ctx, "https://corrupt")
		assert.Error(t, err)
	})
}

func TestConnectRejectsBadURL(t *testing.T) {
	_, err := Connect(context.Background(), "not-a-url")
	assert.Error(t, err)
}
