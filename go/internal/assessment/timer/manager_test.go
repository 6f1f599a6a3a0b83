package timer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/mockdrive/go/internal/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("down") }
func (failingStore) Put(context.Context, string, []byte) error   { return errors.New("down") }
func (failingStore) Delete(context.Context, string) error        { return errors.New("down") }

func TestKey(t *testing.T) {
	id := uuid.MustParse("6f1c3b1e-58e8-4f55-9a35-0a1c1b7e2d10")
	assert.Equal(t, "timer:6f1c3b1e-58e8-4f55-9a35-0a1c1b7e2d10:2", Key(id, 2))
}

func TestStart_FreshAnchor(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	store := kvstore.NewMemory()

	m := NewManager(clock, store)
	remaining, expired := m.Start(ctx, "timer:s:0", 60)

	assert.Equal(t, 60, remaining)
	assert.False(t, expired)
	raw, err := store.Get(ctx, "timer:s:0")
	require.NoError(t, err)
	assert.JSONEq(t, `{"round_key":"timer:s:0","anchorEpochSeconds":1700000000,"durationSeconds":60}`, string(raw))
}

func TestStart_ResumesFromAnchorAfterReload(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	store := kvstore.NewMemory()

	first := NewManager(clock, store)
	first.Start(ctx, "timer:s:1", 600)

	clock.Advance(125*time.Second + 400*time.Millisecond)

	reloaded := NewManager(clock, store)
	remaining, expired := reloaded.Start(ctx, "timer:s:1", 600)
	assert.False(t, expired)
	assert.InDelta(t, 600-125.4, float64(remaining), 1.0)
	assert.Less(t, remaining, 600)
}

func TestStart_ExpiredWhileAway(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	store := kvstore.NewMemory()

	NewManager(clock, store).Start(ctx, "timer:s:0", 30)
	clock.Advance(time.Minute)

	m := NewManager(clock, store)
	remaining, expired := m.Start(ctx, "timer:s:0", 30)
	assert.Equal(t, 0, remaining)
	assert.True(t, expired)

	_, fired := m.Tick()
	assert.False(t, fired, "expiry already reported by Start")
}

func TestTick_NonIncreasingAndFiresOnce(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	m := NewManager(clock, kvstore.NewMemory())
	m.Start(ctx, "timer:s:0", 5)

	prev := m.Remaining()
	fires := 0
	zeros := 0
	for i := 0; i < 12; i++ {
		clock.Advance(time.Second)
		remaining, fired := m.Tick()
		assert.LessOrEqual(t, remaining, prev)
		prev = remaining
		if fired {
			fires++
		}
		if remaining == 0 {
			zeros++
		}
	}
	assert.Equal(t, 1, fires)
	assert.Equal(t, 0, prev)
	assert.False(t, m.Active())
	assert.True(t, m.Expired())
	assert.Positive(t, zeros)
}

func TestTick_CatchesUpWithAnchorAfterStall(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	m := NewManager(clock, kvstore.NewMemory())
	m.Start(ctx, "timer:s:0", 60)

	clock.Advance(30 * time.Second)
	remaining, fired := m.Tick()
	assert.False(t, fired)
	assert.Equal(t, 30, remaining)
}

func TestStop_IgnoresTicks(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	m := NewManager(clock, kvstore.NewMemory())
	m.Start(ctx, "timer:s:0", 3)
	m.Stop()

	for i := 0; i < 5; i++ {
		_, fired := m.Tick()
		assert.False(t, fired)
	}
	assert.Equal(t, 3, m.Remaining())
}

func TestClear_RemovesAnchorSoKeyStartsFresh(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	store := kvstore.NewMemory()
	m := NewManager(clock, store)

	m.Start(ctx, "timer:s:0", 60)
	clock.Advance(45 * time.Second)
	m.Clear(ctx, "timer:s:0")

	_, err := store.Get(ctx, "timer:s:0")
	require.ErrorIs(t, err, kvstore.ErrNotFound)

	remaining, _ := m.Start(ctx, "timer:s:0", 60)
	assert.Equal(t, 60, remaining)
}

func TestStart_MalformedAnchorStartsFresh(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	store := kvstore.NewMemory()
	require.NoError(t, store.Put(ctx, "timer:s:0", []byte("not json")))

	remaining, expired := NewManager(clock, store).Start(ctx, "timer:s:0", 90)
	assert.Equal(t, 90, remaining)
	assert.False(t, expired)
}

func TestStart_StoreFailureKeepsCounting(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	m := NewManager(clock, failingStore{})

	remaining, expired := m.Start(ctx, "timer:s:0", 2)
	assert.Equal(t, 2, remaining)
	assert.False(t, expired)

	clock.Advance(time.Second)
	_, fired := m.Tick()
	assert.False(t, fired)
	clock.Advance(time.Second)
	_, fired = m.Tick()
	assert.True(t, fired)

	m.Clear(ctx, "timer:s:0")
}

func TestStartTicker(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var ticks atomic.Int32

	stop := StartTicker(clock, time.Second, func() { ticks.Add(1) })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return ticks.Load() == 1 }, time.Second, 5*time.Millisecond)

	stop()
	stop()
	clock.Advance(3 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), ticks.Load())
}
