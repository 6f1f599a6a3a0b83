package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/mockdrive/go/internal/assessment/orchestrator"
	"github.com/mcdev12/mockdrive/go/internal/assessment/proctor"
	"github.com/mcdev12/mockdrive/go/internal/assessment/repository"
	"github.com/mcdev12/mockdrive/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClientMessage(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    orchestrator.Event
		wantErr bool
	}{
		{
			name:  "env report",
			frame: `{"type":"env_report","env":{"camera":true,"microphone":false,"fullscreen":true}}`,
			want: orchestrator.Event{
				Type: orchestrator.EventEnvReport,
				Env:  &orchestrator.EnvReport{Camera: true, Fullscreen: true},
			},
		},
		{
			name:  "answer",
			frame: `{"type":"answer","answer":{"question_id":"q1","response":"b"}}`,
			want: orchestrator.Event{
				Type:   orchestrator.EventAnswer,
				Answer: &orchestrator.AnswerInput{QuestionID: "q1", Response: "b"},
			},
		},
		{
			name:  "code answer language is normalized",
			frame: `{"type":"answer","answer":{"question_id":"sum","response":"print(3)","language":" Python "}}`,
			want: orchestrator.Event{
				Type:   orchestrator.EventAnswer,
				Answer: &orchestrator.AnswerInput{QuestionID: "sum", Response: "print(3)", Language: "python"},
			},
		},
		{
			name:  "sensor",
			frame: `{"type":"sensor","sensor":{"sensor":"fullscreen","name":"fullscreen_exit"}}`,
			want: orchestrator.Event{
				Type: orchestrator.EventSensor,
				Raw:  &proctor.RawEvent{Sensor: proctor.SensorFullscreen, Name: proctor.EventFullscreenExit},
			},
		},
		{
			name:  "interview reply",
			frame: `{"type":"interview_reply","text":"I built a queue"}`,
			want:  orchestrator.Event{Type: orchestrator.EventInterviewReply, Text: "I built a queue"},
		},
		{
			name:  "retry submit keeps epoch",
			frame: `{"type":"retry_submit","epoch":3}`,
			want:  orchestrator.Event{Type: orchestrator.EventRetrySubmit, Epoch: 3},
		},
		{
			name:  "proceed",
			frame: `{"type":"proceed"}`,
			want:  orchestrator.Event{Type: orchestrator.EventProceed},
		},
		{name: "internal tick rejected", frame: `{"type":"tick"}`, wantErr: true},
		{name: "auto submit rejected", frame: `{"type":"auto_submit","epoch":1}`, wantErr: true},
		{name: "result rejected", frame: `{"type":"submitted"}`, wantErr: true},
		{name: "answer without body", frame: `{"type":"answer"}`, wantErr: true},
		{name: "answer without question", frame: `{"type":"answer","answer":{"response":"x"}}`, wantErr: true},
		{name: "client typed violation rejected", frame: `{"type":"violation","violation":{"type":"tab_switch"}}`, wantErr: true},
		{name: "unsupported language rejected", frame: `{"type":"answer","answer":{"question_id":"sum","response":"x","language":"javascript"}}`, wantErr: true},
		{name: "not json", frame: `hello`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeClientMessage([]byte(tt.frame))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeUnsupportedLanguage(t *testing.T) {
	_, err := DecodeClientMessage([]byte(`{"type":"answer","answer":{"question_id":"sum","response":"x","language":"cobol"}}`))
	assert.ErrorIs(t, err, models.ErrUnsupportedLanguage)
}

func TestDecodeVoiceViolationDropsClientIdentity(t *testing.T) {
	frame := `{"type":"violation","violation":{"id":"` + uuid.NewString() + `","round_index":7,"type":"voice_detected"}}`
	ev, err := DecodeClientMessage([]byte(frame))
	require.NoError(t, err)
	require.NotNil(t, ev.Violation)
	assert.Equal(t, models.ViolationVoiceDetected, ev.Violation.Type)
	assert.Equal(t, uuid.Nil, ev.Violation.ID)
	assert.Zero(t, ev.Violation.RoundIndex)
}

type fakeSessions struct {
	sessionID uuid.UUID
	posted    chan orchestrator.Event
}

func (f *fakeSessions) Open(_ context.Context, id uuid.UUID) (orchestrator.Snapshot, error) {
	if id != f.sessionID {
		return orchestrator.Snapshot{}, repository.ErrNotFound
	}
	return orchestrator.Snapshot{SessionID: id, State: orchestrator.StateEnvCheck, TotalRounds: 2}, nil
}

func (f *fakeSessions) Post(id uuid.UUID, ev orchestrator.Event) error {
	if id != f.sessionID {
		return orchestrator.ErrSessionNotRunning
	}
	f.posted <- ev
	return nil
}

func newTestServer(t *testing.T) (*fakeSessions, *ConnectionManager, *httptest.Server) {
	t.Helper()
	sessions := &fakeSessions{sessionID: uuid.New(), posted: make(chan orchestrator.Event, 8)}
	cm := NewConnectionManager(sessions, DefaultConnectionConfig())

	ctx, cancel := context.WithCancel(context.Background())
	go cm.Start(ctx)

	mux := http.NewServeMux()
	NewWebSocketHandler(cm).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return sessions, cm, srv
}

func dial(t *testing.T, srv *httptest.Server, sessionID uuid.UUID) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session?session_id=" + sessionID.String()
	return websocket.DefaultDialer.Dial(url, nil)
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestSessionConnectionRoundTrip(t *testing.T) {
	sessions, cm, srv := newTestServer(t)

	conn, _, err := dial(t, srv, sessions.sessionID)
	require.NoError(t, err)
	defer conn.Close()

	var snap snapshotMessage
	readJSON(t, conn, &snap)
	assert.Equal(t, "snapshot", snap.Type)
	assert.Equal(t, sessions.sessionID, snap.Snapshot.SessionID)
	assert.Equal(t, orchestrator.StateEnvCheck, snap.Snapshot.State)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"answer","answer":{"question_id":"q1","response":"a"}}`)))
	select {
	case ev := <-sessions.posted:
		assert.Equal(t, orchestrator.EventAnswer, ev.Type)
		assert.Equal(t, "q1", ev.Answer.QuestionID)
	case <-time.After(2 * time.Second):
		t.Fatal("answer never reached the session")
	}

	cm.Notify(sessions.sessionID, orchestrator.Notice{Type: orchestrator.NoticeTick, SessionID: sessions.sessionID, Remaining: 42})
	var tick orchestrator.Notice
	readJSON(t, conn, &tick)
	assert.Equal(t, orchestrator.NoticeTick, tick.Type)
	assert.Equal(t, 42, tick.Remaining)

	assert.Equal(t, 1, cm.GetConnectionStats().TotalConnections)
}

func TestBadFrameGetsErrorNotice(t *testing.T) {
	sessions, _, srv := newTestServer(t)

	conn, _, err := dial(t, srv, sessions.sessionID)
	require.NoError(t, err)
	defer conn.Close()

	var snap snapshotMessage
	readJSON(t, conn, &snap)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"auto_submit"}`)))
	var notice orchestrator.Notice
	readJSON(t, conn, &notice)
	assert.Equal(t, orchestrator.NoticeError, notice.Type)
	assert.Contains(t, notice.Message, "unknown message type")
	assert.Empty(t, sessions.posted)
}

func TestUnknownSessionIsRejected(t *testing.T) {
	_, _, srv := newTestServer(t)

	_, resp, err := dial(t, srv, uuid.New())
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMissingSessionID(t *testing.T) {
	_, _, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/ws/session")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
