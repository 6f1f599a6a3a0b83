package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/mockdrive/go/internal/assessment/orchestrator"
	"github.com/mcdev12/mockdrive/go/internal/assessment/repository"
	"github.com/mcdev12/mockdrive/go/internal/assessment/submission"
	"github.com/mcdev12/mockdrive/go/internal/kvstore"
	"github.com/mcdev12/mockdrive/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store  *repository.Memory
	mgr    *orchestrator.Manager
	client *SessionServiceClient
	drive  models.Drive
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	store := repository.NewMemory()
	drive := models.Drive{ID: uuid.New(), Title: "Backend Drive", DefaultDuration: 15 * time.Minute}
	store.PutDrive(drive, []models.SectionDef{{
		ID:         uuid.New(),
		RoundTitle: "Aptitude",
		Name:       "Logic",
		Kind:       models.RoundKindObjective,
		Questions: []models.Question{{
			ID:      "q1",
			Text:    "Pick one",
			Type:    models.QuestionTypeMCQ,
			Options: []models.Option{{ID: "a", Text: "right", IsCorrect: true}, {ID: "b", Text: "wrong"}},
		}},
	}})

	coord := submission.NewCoordinator(store, nil, nil, store, nil, clock, submission.Config{LenientVerdict: true})
	mgr := orchestrator.NewManager(store, store, coord, nil, kvstore.NewMemory(), orchestrator.NopNotifier{}, clock, orchestrator.ManagerConfig{})

	mux := http.NewServeMux()
	mux.Handle(NewSessionServiceHandler(NewService(mgr, store, store)))
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		mgr.Shutdown()
	})

	return &fixture{
		store:  store,
		mgr:    mgr,
		client: NewSessionServiceClient(srv.Client(), srv.URL),
		drive:  drive,
	}
}

func TestService_StartSessionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	candidateID := uuid.New()

	req := &StartSessionRequest{CandidateID: candidateID.String(), DriveID: f.drive.ID.String()}
	first, err := f.client.StartSession(ctx, connect.NewRequest(req))
	require.NoError(t, err)
	require.NotNil(t, first.Msg.Session)
	require.NotNil(t, first.Msg.Snapshot)
	assert.Equal(t, 1, first.Msg.Snapshot.TotalRounds)
	assert.Equal(t, models.SessionStatusInProgress, first.Msg.Session.Status)

	second, err := f.client.StartSession(ctx, connect.NewRequest(req))
	require.NoError(t, err)
	assert.Equal(t, first.Msg.Session.ID, second.Msg.Session.ID)

	state, err := f.client.GetSessionState(ctx, connect.NewRequest(&GetSessionStateRequest{SessionID: first.Msg.Session.ID.String()}))
	require.NoError(t, err)
	assert.True(t, state.Msg.Live)
	require.NotNil(t, state.Msg.Snapshot)
	assert.Equal(t, first.Msg.Session.ID, state.Msg.Snapshot.SessionID)
}

func TestService_StartSessionErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.client.StartSession(ctx, connect.NewRequest(&StartSessionRequest{CandidateID: "nope", DriveID: f.drive.ID.String()}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = f.client.StartSession(ctx, connect.NewRequest(&StartSessionRequest{CandidateID: uuid.NewString(), DriveID: uuid.NewString()}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}

func TestService_GetSessionStateOfDetachedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.store.CreateSession(ctx, uuid.New(), f.drive.ID)
	require.NoError(t, err)

	state, err := f.client.GetSessionState(ctx, connect.NewRequest(&GetSessionStateRequest{SessionID: session.ID.String()}))
	require.NoError(t, err)
	assert.False(t, state.Msg.Live)
	assert.Nil(t, state.Msg.Snapshot)
	assert.Equal(t, session.ID, state.Msg.Session.ID)

	_, err = f.client.GetSessionState(ctx, connect.NewRequest(&GetSessionStateRequest{SessionID: uuid.NewString()}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}

func TestService_ListViolations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sessionID := uuid.New()

	empty, err := f.client.ListViolations(ctx, connect.NewRequest(&ListViolationsRequest{SessionID: sessionID.String()}))
	require.NoError(t, err)
	assert.NotNil(t, empty.Msg.Violations)
	assert.Empty(t, empty.Msg.Violations)

	require.NoError(t, f.store.Append(ctx, models.Violation{
		ID:        uuid.New(),
		SessionID: sessionID,
		Type:      models.ViolationTabSwitch,
		Timestamp: time.Now().UTC(),
	}))

	resp, err := f.client.ListViolations(ctx, connect.NewRequest(&ListViolationsRequest{SessionID: sessionID.String()}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Violations, 1)
	assert.Equal(t, models.ViolationTabSwitch, resp.Msg.Violations[0].Type)
}

func TestService_ListRoundResults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.store.CreateSession(ctx, uuid.New(), f.drive.ID)
	require.NoError(t, err)
	require.NoError(t, f.store.StartRoundProgress(ctx, session.ID, 0, time.Now().UTC()))

	resp, err := f.client.ListRoundResults(ctx, connect.NewRequest(&ListRoundResultsRequest{SessionID: session.ID.String()}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Results, 1)
	assert.Equal(t, 0, resp.Msg.Results[0].RoundIndex)
	assert.Equal(t, models.RoundStatusInProgress, resp.Msg.Results[0].Status)
	assert.Empty(t, resp.Msg.Results[0].Feedback)
}

func TestService_EndSessionStopsLoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	started, err := f.client.StartSession(ctx, connect.NewRequest(&StartSessionRequest{
		CandidateID: uuid.NewString(),
		DriveID:     f.drive.ID.String(),
	}))
	require.NoError(t, err)
	id := started.Msg.Session.ID

	_, err = f.client.EndSession(ctx, connect.NewRequest(&EndSessionRequest{SessionID: id.String()}))
	require.NoError(t, err)

	_, live := f.mgr.Snapshot(id)
	assert.False(t, live)

	stored, err := f.store.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusInProgress, stored.Status)
}

func TestToConnectError(t *testing.T) {
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(toConnectError(repository.ErrNotFound)))
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(toConnectError(orchestrator.ErrSessionNotRunning)))
	assert.Equal(t, connect.CodeCanceled, connect.CodeOf(toConnectError(context.Canceled)))
	assert.Equal(t, connect.CodeInternal, connect.CodeOf(toConnectError(assert.AnError)))
}
