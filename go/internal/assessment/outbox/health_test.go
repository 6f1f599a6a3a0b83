package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRelay struct {
	processed uint64
	last      time.Time
	running   bool
}

func (f fakeRelay) Stats() (uint64, time.Time) { return f.processed, f.last }
func (f fakeRelay) Running() bool              { return f.running }

type fakeDB struct {
	pingErr  error
	pending  int
	countErr error
}

func (f fakeDB) PingContext(context.Context) error { return f.pingErr }
func (f fakeDB) CountPending(context.Context) (int, error) {
	return f.pending, f.countErr
}

type fakeNATS bool

func (f fakeNATS) IsConnected() bool { return bool(f) }

func newTestChecker(relay fakeRelay, db fakeDB, nats natsStatus, clock clockwork.Clock) *HealthChecker {
	h := NewHealthChecker(relay, db, db, nats, time.Minute)
	h.clock = clock
	return h
}

func TestHealthChecker_Healthy(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := newTestChecker(fakeRelay{processed: 4, last: clock.Now(), running: true}, fakeDB{pending: 2}, fakeNATS(true), clock)

	status := h.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Empty(t, status.Errors)
	assert.Equal(t, uint64(4), status.EventsProcessed)
	assert.Equal(t, 2, status.PendingEvents)
	assert.True(t, status.DatabaseConnected)
	assert.True(t, status.NATSConnected)
}

func TestHealthChecker_Unhealthy(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tests := []struct {
		name  string
		relay fakeRelay
		db    fakeDB
		nats  natsStatus
	}{
		{"database down", fakeRelay{running: true}, fakeDB{pingErr: errors.New("refused")}, nil},
		{"nats down", fakeRelay{running: true}, fakeDB{}, fakeNATS(false)},
		{"listener stopped", fakeRelay{}, fakeDB{}, nil},
		{"stale backlog", fakeRelay{running: true, last: clock.Now().Add(-2 * time.Minute)}, fakeDB{pending: 3}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := newTestChecker(tt.relay, tt.db, tt.nats, clock).Check(context.Background())
			assert.False(t, status.Healthy)
			assert.NotEmpty(t, status.Errors)
		})
	}
}

func TestHealthChecker_IdleRelayWithoutBacklogIsHealthy(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := newTestChecker(fakeRelay{running: true, last: clock.Now().Add(-time.Hour)}, fakeDB{}, nil, clock)
	assert.True(t, h.Check(context.Background()).Healthy)
}

func TestHealthChecker_ServeHTTP(t *testing.T) {
	clock := clockwork.NewFakeClock()

	rec := httptest.NewRecorder()
	newTestChecker(fakeRelay{running: true}, fakeDB{}, nil, clock).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Healthy)

	rec = httptest.NewRecorder()
	newTestChecker(fakeRelay{}, fakeDB{}, nil, clock).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
