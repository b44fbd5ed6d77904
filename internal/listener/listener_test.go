package listener

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/albapepper/understat-wrangler/internal/api/handler"
	"github.com/albapepper/understat-wrangler/internal/cache"
)

func TestInvalidateLatest(t *testing.T) {
	c := cache.New(true)
	defer c.Close()

	latest := handler.LatestCachePrefix + "Teams - 2020-21 - EPL:json"
	pinned := handler.RunsCachePrefix + "20210101T000000Z:Teams - 2020-21 - EPL:json"
	c.Set(latest, "application/json", []byte("[]"), time.Hour)
	c.Set(pinned, "application/json", []byte("[]"), time.Hour)

	InvalidateLatest(c, slog.New(slog.NewTextHandler(io.Discard, nil)))("20210102T000000Z")

	_, ok := c.Get(latest)
	require.False(t, ok)
	_, ok = c.Get(pinned)
	require.True(t, ok)
}

func TestNextBackoff(t *testing.T) {
	require.Equal(t, 10*time.Second, nextBackoff(reconnectBackoff))
	require.Equal(t, maxReconnect, nextBackoff(20*time.Second))
	require.Equal(t, maxReconnect, nextBackoff(maxReconnect))
}
