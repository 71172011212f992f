package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (RefreshCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	c, err := NewRedisCache("redis://"+mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c, mr
}

func TestCache_SetGet(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)
	ctx := context.Background()

	entry := &RefreshEntry{
		UserID:    uuid.New(),
		Revoked:   false,
		ExpiresAt: time.Now().Add(time.Hour).Truncate(time.Second).UTC(),
	}

	require.NoError(t, c.Set(ctx, "some-refresh-token", entry, time.Hour))

	got, ok, err := c.Get(ctx, "some-refresh-token")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entry.UserID, got.UserID)
	require.False(t, got.Revoked)
	require.Equal(t, entry.ExpiresAt.Unix(), got.ExpiresAt.Unix())
}

func TestCache_Miss(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)

	got, ok, err := c.Get(context.Background(), "never-stored")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, got)
}

func TestCache_MarkRevoked(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(t)
	ctx := context.Background()

	entry := &RefreshEntry{
		UserID:    uuid.New(),
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
	}
	require.NoError(t, c.Set(ctx, "rotated-away", entry, time.Hour))

	require.NoError(t, c.MarkRevoked(ctx, "rotated-away"))

	got, ok, err := c.Get(ctx, "rotated-away")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Revoked)
	require.Equal(t, entry.UserID, got.UserID)
}

// Сырой токен в Redis не попадает: ключ — хэш токена.
func TestCache_KeyIsHashed(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	ctx := context.Background()

	const token = "raw-jwt-refresh-token"
	entry := &RefreshEntry{UserID: uuid.New(), ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, c.Set(ctx, token, entry, time.Hour))

	for _, key := range mr.Keys() {
		require.NotContains(t, key, token)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	ctx := context.Background()

	entry := &RefreshEntry{UserID: uuid.New(), ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, c.Set(ctx, "short-lived", entry, time.Minute))

	// miniredis позволяет промотать время вперёд.
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "short-lived")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNewRedisCache_BadURL(t *testing.T) {
	t.Parallel()

	_, err := NewRedisCache("not-a-redis-url", "")
	require.Error(t, err)
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	t.Parallel()

	// Ping на старте должен провалиться быстро.
	_, err := NewRedisCache("redis://127.0.0.1:1", "")
	require.Error(t, err)
}
