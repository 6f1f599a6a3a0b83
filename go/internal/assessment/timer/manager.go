// Package timer implements the reload-resilient per-round countdown. The
// authoritative start of a round is an anchor persisted in a keyed store;
// remaining time is always derived from it.
package timer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/mockdrive/go/internal/kvstore"
	"github.com/mcdev12/mockdrive/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Key returns the persisted key of a round countdown.
func Key(sessionID uuid.UUID, roundIndex int) string {
	return fmt.Sprintf("timer:%s:%d", sessionID, roundIndex)
}

// Manager owns the countdown of the round currently being played.
// It is not safe for concurrent use; the session event loop owns it.
type Manager struct {
	clock clockwork.Clock
	store kvstore.Store

	key       string
	duration  int
	anchor    int64
	remaining int
	active    bool
	expired   bool
}

func NewManager(clock clockwork.Clock, store kvstore.Store) *Manager {
	return &Manager{clock: clock, store: store}
}

// Start begins (or resumes) the countdown for key. A missing anchor is
// created from the current time; an existing one is reused so a reload
// continues where it left off. It reports expired when no time is left.
func (m *Manager) Start(ctx context.Context, key string, durationSeconds int) (remaining int, expired bool) {
	now := m.clock.Now().Unix()

	m.key = key
	m.duration = durationSeconds
	m.active = true
	m.expired = false

	anchor, found := m.loadAnchor(ctx, key)
	if !found {
		anchor = now
		m.saveAnchor(ctx, key, anchor, durationSeconds)
	}
	m.anchor = anchor
	m.remaining = m.fromAnchor(now)

	log.Debug().
		Str("round_key", key).
		Int("duration_seconds", durationSeconds).
		Int("remaining_seconds", m.remaining).
		Bool("resumed", found).
		Msg("round timer started")

	if m.remaining == 0 {
		m.active = false
		m.expired = true
		return 0, true
	}
	return m.remaining, false
}

// Tick advances the countdown by one second. fired is true exactly once,
// on the tick that reaches zero.
func (m *Manager) Tick() (remaining int, fired bool) {
	if !m.active || m.expired {
		return m.remaining, false
	}

	next := m.remaining - 1
	if a := m.fromAnchor(m.clock.Now().Unix()); a < next {
		next = a
	}
	if next <= 0 {
		m.remaining = 0
		m.active = false
		m.expired = true
		return 0, true
	}
	m.remaining = next
	return next, false
}

// Stop halts ticking without touching the persisted anchor.
func (m *Manager) Stop() {
	m.active = false
}

// Clear removes the persisted anchor of key. Called on deliberate round exit.
func (m *Manager) Clear(ctx context.Context, key string) {
	if err := m.store.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("round_key", key).Msg("failed to clear timer anchor")
	}
	if key == m.key {
		m.active = false
		m.key = ""
	}
}

func (m *Manager) Remaining() int { return m.remaining }
func (m *Manager) Active() bool   { return m.active }
func (m *Manager) Expired() bool  { return m.expired }

func (m *Manager) fromAnchor(now int64) int {
	left := int64(m.duration) - (now - m.anchor)
	if left < 0 {
		return 0
	}
	if left > int64(m.duration) {
		// anchor in the future (clock skew); never grant extra time
		return m.duration
	}
	return int(left)
}

func (m *Manager) loadAnchor(ctx context.Context, key string) (int64, bool) {
	raw, err := m.store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return 0, false
	}
	if err != nil {
		log.Warn().Err(err).Str("round_key", key).Msg("failed to load timer anchor, starting fresh")
		return 0, false
	}

	var st models.TimerState
	if err := json.Unmarshal(raw, &st); err != nil || st.AnchorEpochSeconds <= 0 {
		log.Warn().Err(err).Str("round_key", key).Msg("malformed timer anchor, starting fresh")
		return 0, false
	}
	return st.AnchorEpochSeconds, true
}

func (m *Manager) saveAnchor(ctx context.Context, key string, anchor int64, duration int) {
	raw, err := json.Marshal(models.TimerState{RoundKey: key, AnchorEpochSeconds: anchor, DurationSeconds: duration})
	if err != nil {
		log.Warn().Err(err).Str("round_key", key).Msg("failed to encode timer anchor")
		return
	}
	if err := m.store.Put(ctx, key, raw); err != nil {
		log.Warn().Err(err).Str("round_key", key).Msg("failed to persist timer anchor, continuing in memory")
	}
}

// StartTicker calls onTick every interval until the returned stop func runs.
// onTick must only enqueue work.
func StartTicker(clock clockwork.Clock, interval time.Duration, onTick func()) (stop func()) {
	t := clock.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-t.Chan():
				onTick()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.Stop()
			close(done)
		})
	}
}
