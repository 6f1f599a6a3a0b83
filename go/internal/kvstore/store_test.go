package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniRedis(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *Redis) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewRedisFromClient(client, "mockdrive:", ttl, zerolog.Nop())
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "timer:a:0")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "timer:a:0", []byte(`{"anchorEpochSeconds":10}`)))
	v, err := s.Get(ctx, "timer:a:0")
	require.NoError(t, err)
	assert.JSONEq(t, `{"anchorEpochSeconds":10}`, string(v))

	require.NoError(t, s.Put(ctx, "timer:a:0", []byte(`{"anchorEpochSeconds":20}`)))
	v, err = s.Get(ctx, "timer:a:0")
	require.NoError(t, err)
	assert.JSONEq(t, `{"anchorEpochSeconds":20}`, string(v))

	require.NoError(t, s.Delete(ctx, "timer:a:0"))
	_, err = s.Get(ctx, "timer:a:0")
	require.ErrorIs(t, err, ErrNotFound)

	// deleting a missing key is not an error
	require.NoError(t, s.Delete(ctx, "timer:a:0"))
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Put(ctx, "k", []byte("abc")))

	v, err := m.Get(ctx, "k")
	require.NoError(t, err)
	v[0] = 'x'

	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestRedis(t *testing.T) {
	_, s := setupMiniRedis(t, 0)
	exerciseStore(t, s)
}

func TestRedis_PrefixAndTTL(t *testing.T) {
	mr, s := setupMiniRedis(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "timer:b:1", []byte("1")))
	assert.True(t, mr.Exists("mockdrive:timer:b:1"))
	assert.Equal(t, time.Hour, mr.TTL("mockdrive:timer:b:1"))

	mr.FastForward(2 * time.Hour)
	_, err := s.Get(ctx, "timer:b:1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBadger(t *testing.T) {
	b, err := OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	exerciseStore(t, b)
}

func TestBadger_AnchorSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := OpenBadger(dir)
	require.NoError(t, err)
	require.NoError(t, b.Put(ctx, "timer:s1:0", []byte("1767225600000")))
	require.NoError(t, b.Close())

	b, err = OpenBadger(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	got, err := b.Get(ctx, "timer:s1:0")
	require.NoError(t, err)
	assert.Equal(t, "1767225600000", string(got))
}
