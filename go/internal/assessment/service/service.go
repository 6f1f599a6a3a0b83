// Package service exposes session lifecycle and results over connect.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/mockdrive/go/internal/assessment/orchestrator"
	"github.com/mcdev12/mockdrive/go/internal/assessment/repository"
	"github.com/mcdev12/mockdrive/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Sessions is what the service needs from the session manager.
type Sessions interface {
	StartSession(ctx context.Context, candidateID, driveID uuid.UUID) (*models.Session, error)
	Snapshot(sessionID uuid.UUID) (orchestrator.Snapshot, bool)
	Detach(sessionID uuid.UUID)
}

// Store reads persisted session data.
type Store interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	ListRoundProgress(ctx context.Context, sessionID uuid.UUID) ([]models.RoundProgress, error)
}

type ViolationStore interface {
	ListViolations(ctx context.Context, sessionID uuid.UUID) ([]models.Violation, error)
}

// Service implements the SessionService RPCs.
type Service struct {
	sessions   Sessions
	store      Store
	violations ViolationStore
}

func NewService(sessions Sessions, store Store, violations ViolationStore) *Service {
	return &Service{
		sessions:   sessions,
		store:      store,
		violations: violations,
	}
}

// StartSession resumes the candidate's open session for the drive or creates one.
func (s *Service) StartSession(ctx context.Context, req *connect.Request[StartSessionRequest]) (*connect.Response[StartSessionResponse], error) {
	candidateID, err := parseID("candidate_id", req.Msg.CandidateID)
	if err != nil {
		return nil, err
	}
	driveID, err := parseID("drive_id", req.Msg.DriveID)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.StartSession(ctx, candidateID, driveID)
	if err != nil {
		return nil, toConnectError(err)
	}

	resp := &StartSessionResponse{Session: session}
	if snap, ok := s.sessions.Snapshot(session.ID); ok {
		resp.Snapshot = &snap
	}
	return connect.NewResponse(resp), nil
}

// GetSessionState returns the stored session plus the live view if its loop runs.
func (s *Service) GetSessionState(ctx context.Context, req *connect.Request[GetSessionStateRequest]) (*connect.Response[GetSessionStateResponse], error) {
	id, err := parseID("session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, toConnectError(err)
	}

	resp := &GetSessionStateResponse{Session: session}
	if snap, ok := s.sessions.Snapshot(id); ok {
		resp.Live = true
		resp.Snapshot = &snap
	}
	return connect.NewResponse(resp), nil
}

func (s *Service) ListViolations(ctx context.Context, req *connect.Request[ListViolationsRequest]) (*connect.Response[ListViolationsResponse], error) {
	id, err := parseID("session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	violations, err := s.violations.ListViolations(ctx, id)
	if err != nil {
		return nil, toConnectError(err)
	}
	if violations == nil {
		violations = []models.Violation{}
	}
	return connect.NewResponse(&ListViolationsResponse{Violations: violations}), nil
}

// ListRoundResults returns every progress row of the session in round order.
func (s *Service) ListRoundResults(ctx context.Context, req *connect.Request[ListRoundResultsRequest]) (*connect.Response[ListRoundResultsResponse], error) {
	id, err := parseID("session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetSession(ctx, id); err != nil {
		return nil, toConnectError(err)
	}

	progress, err := s.store.ListRoundProgress(ctx, id)
	if err != nil {
		return nil, toConnectError(err)
	}

	results := make([]RoundResult, 0, len(progress))
	for _, p := range progress {
		r := RoundResult{
			RoundIndex:  p.RoundIndex,
			Status:      p.Status,
			Score:       p.Score,
			StartedAt:   p.StartedAt,
			CompletedAt: p.CompletedAt,
		}
		if json.Valid(p.RawFeedback) {
			r.Feedback = json.RawMessage(p.RawFeedback)
		} else if len(p.RawFeedback) > 0 {
			log.Warn().
				Str("session_id", id.String()).
				Int("round_index", p.RoundIndex).
				Msg("stored feedback is not valid JSON, omitting")
		}
		results = append(results, r)
	}
	return connect.NewResponse(&ListRoundResultsResponse{Results: results}), nil
}

// EndSession stops the session's loop. Stored state is kept so the candidate can resume.
func (s *Service) EndSession(_ context.Context, req *connect.Request[EndSessionRequest]) (*connect.Response[EndSessionResponse], error) {
	id, err := parseID("session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	s.sessions.Detach(id)
	return connect.NewResponse(&EndSessionResponse{}), nil
}

func parseID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid %s: %w", field, err))
	}
	return id, nil
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, orchestrator.ErrSessionNotRunning):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
