package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/mockdrive/go/internal/assessment/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJetStreamPublisher_Message(t *testing.T) {
	p := &JetStreamPublisher{config: DefaultJetStreamConfig()}
	event := OutboxEvent{
		ID:        uuid.New(),
		SessionID: uuid.New(),
		EventType: events.TypeSessionTerminated,
		Payload:   json.RawMessage(`{"reason":"maximum warnings reached"}`),
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	msg, err := p.message(event, now)
	require.NoError(t, err)
	assert.Equal(t, "assessment.events.SessionTerminated", msg.Subject)
	assert.Equal(t, event.ID.String(), msg.Header.Get("Event-ID"))
	assert.Equal(t, event.SessionID.String(), msg.Header.Get("Session-ID"))
	assert.Equal(t, events.TypeSessionTerminated, msg.Header.Get("Event-Type"))

	var env struct {
		EventID   string          `json:"eventId"`
		EventType string          `json:"eventType"`
		SessionID string          `json:"sessionId"`
		Timestamp time.Time       `json:"timestamp"`
		Payload   json.RawMessage `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	assert.Equal(t, event.ID.String(), env.EventID)
	assert.True(t, now.Equal(env.Timestamp))
	assert.JSONEq(t, `{"reason":"maximum warnings reached"}`, string(env.Payload))
}

func TestIsStreamConfigEqual(t *testing.T) {
	p := &JetStreamPublisher{config: DefaultJetStreamConfig()}
	a := p.streamConfig()
	b := p.streamConfig()
	assert.True(t, isStreamConfigEqual(a, b))
	assert.Equal(t, []string{"assessment.events.>"}, a.Subjects)

	b.MaxAge = time.Hour
	assert.False(t, isStreamConfigEqual(a, b))
}
