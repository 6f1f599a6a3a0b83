package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/mockdrive/go/internal/assessment/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	events  []OutboxEvent
	sent    map[uuid.UUID]bool
	markErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{sent: make(map[uuid.UUID]bool)}
}

func (r *memoryRepo) InsertOutboxEvent(_ context.Context, sessionID uuid.UUID, eventType string, payload []byte) error {
	r.events = append(r.events, OutboxEvent{ID: uuid.New(), SessionID: sessionID, EventType: eventType, Payload: payload})
	return nil
}

func (r *memoryRepo) FetchUnsentOutbox(_ context.Context, limit int32) ([]OutboxEvent, error) {
	var out []OutboxEvent
	for _, e := range r.events {
		if !r.sent[e.ID] && int32(len(out)) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryRepo) MarkOutboxSent(_ context.Context, id uuid.UUID) error {
	if r.markErr != nil {
		return r.markErr
	}
	r.sent[id] = true
	return nil
}

func (r *memoryRepo) FetchOutboxByID(_ context.Context, id uuid.UUID) (*OutboxEvent, error) {
	for _, e := range r.events {
		if e.ID == id && !r.sent[id] {
			e := e
			return &e, nil
		}
	}
	return nil, ErrEventNotFound
}

func (r *memoryRepo) PublishPending(ctx context.Context, limit int32, publish func(OutboxEvent) error) (int, error) {
	pending, _ := r.FetchUnsentOutbox(ctx, limit)
	sent := 0
	for _, e := range pending {
		if err := publish(e); err != nil {
			return sent, err
		}
		r.sent[e.ID] = true
		sent++
	}
	return sent, nil
}

func TestApp_InsertEventsTagsType(t *testing.T) {
	repo := newMemoryRepo()
	app := NewApp(repo)
	ctx := context.Background()
	sessionID := uuid.New()
	payload := []byte(`{"session_id":"x"}`)

	require.NoError(t, app.InsertSessionStartedEvent(ctx, sessionID, payload))
	require.NoError(t, app.InsertRoundStartedEvent(ctx, sessionID, payload))
	require.NoError(t, app.InsertRoundCompletedEvent(ctx, sessionID, payload))
	require.NoError(t, app.InsertViolationRecordedEvent(ctx, sessionID, payload))
	require.NoError(t, app.InsertSessionCompletedEvent(ctx, sessionID, payload))
	require.NoError(t, app.InsertSessionTerminatedEvent(ctx, sessionID, payload))

	var types []string
	for _, e := range repo.events {
		assert.Equal(t, sessionID, e.SessionID)
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{
		events.TypeSessionStarted,
		events.TypeRoundStarted,
		events.TypeRoundCompleted,
		events.TypeViolationRecorded,
		events.TypeSessionCompleted,
		events.TypeSessionTerminated,
	}, types)
}

func TestApp_RejectsEmptyPayload(t *testing.T) {
	repo := newMemoryRepo()
	app := NewApp(repo)

	err := app.InsertRoundCompletedEvent(context.Background(), uuid.New(), nil)
	assert.ErrorIs(t, err, errEmptyPayload)
	assert.Empty(t, repo.events)
}

func TestApp_FetchUnsentEventsNeedsPositiveLimit(t *testing.T) {
	app := NewApp(newMemoryRepo())
	_, err := app.FetchUnsentEvents(context.Background(), 0)
	assert.Error(t, err)
}

func TestApp_ProcessUnsentEvents(t *testing.T) {
	repo := newMemoryRepo()
	app := NewApp(repo)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, app.InsertRoundStartedEvent(ctx, uuid.New(), []byte(`{}`)))
	}
	failing := repo.events[1].ID

	processed, err := app.ProcessUnsentEvents(ctx, 10, func(e OutboxEvent) error {
		if e.ID == failing {
			return errors.New("bus down")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, processed)
	assert.False(t, repo.sent[failing])

	remaining, err := app.FetchUnsentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, failing, remaining[0].ID)
}

func TestApp_GetEventByID(t *testing.T) {
	repo := newMemoryRepo()
	app := NewApp(repo)
	ctx := context.Background()
	require.NoError(t, app.InsertSessionCompletedEvent(ctx, uuid.New(), []byte(`{}`)))

	got, err := app.GetEventByID(ctx, repo.events[0].ID)
	require.NoError(t, err)
	assert.Equal(t, events.TypeSessionCompleted, got.EventType)

	require.NoError(t, app.MarkEventSent(ctx, got.ID))
	_, err = app.GetEventByID(ctx, got.ID)
	assert.ErrorIs(t, err, ErrEventNotFound)
}
