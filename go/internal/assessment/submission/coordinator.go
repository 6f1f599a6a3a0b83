// Package submission finalizes rounds and sessions exactly once.
package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/mockdrive/go/internal/assessment/events"
	"github.com/mcdev12/mockdrive/go/internal/assessment/repository"
	"github.com/mcdev12/mockdrive/go/internal/metrics"
	"github.com/mcdev12/mockdrive/go/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrSessionClosed is returned when a finished session receives a new round submission.
	ErrSessionClosed = errors.New("session is closed")
	// ErrRoundOutOfRange is returned for a round index the session never reached.
	ErrRoundOutOfRange = errors.New("round index out of range")
)

// Store is the durable state the coordinator owns.
type Store interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetRoundProgress(ctx context.Context, sessionID uuid.UUID, roundIndex int) (*models.RoundProgress, error)
	ListRoundProgress(ctx context.Context, sessionID uuid.UUID) ([]models.RoundProgress, error)
	// StartRoundProgress moves a missing or PENDING row to IN_PROGRESS.
	StartRoundProgress(ctx context.Context, sessionID uuid.UUID, roundIndex int, startedAt time.Time) error
	// CompleteRound writes a COMPLETED row and advances CurrentRoundIndex past
	// it in one transaction. applied is false when the row was already COMPLETED.
	CompleteRound(ctx context.Context, progress models.RoundProgress) (session *models.Session, applied bool, err error)
	FinalizeSession(ctx context.Context, sessionID uuid.UUID, status models.SessionStatus, overallScore float64) (*models.Session, error)
}

// Judge runs candidate code remotely.
type Judge interface {
	Execute(ctx context.Context, req models.ExecutionRequest) (*models.ExecutionResult, error)
}

// Evaluator grades an interview transcript.
type Evaluator interface {
	Evaluate(ctx context.Context, roundTitle string, transcript []models.InterviewTurn) (*models.InterviewRubric, error)
}

// ViolationLog is the append-only violation record.
type ViolationLog interface {
	Append(ctx context.Context, v models.Violation) error
}

// OutboxApp defines what the coordinator needs from the outbox app
type OutboxApp interface {
	InsertSessionStartedEvent(ctx context.Context, sessionID uuid.UUID, payload []byte) error
	InsertRoundStartedEvent(ctx context.Context, sessionID uuid.UUID, payload []byte) error
	InsertRoundCompletedEvent(ctx context.Context, sessionID uuid.UUID, payload []byte) error
	InsertViolationRecordedEvent(ctx context.Context, sessionID uuid.UUID, payload []byte) error
	InsertSessionCompletedEvent(ctx context.Context, sessionID uuid.UUID, payload []byte) error
	InsertSessionTerminatedEvent(ctx context.Context, sessionID uuid.UUID, payload []byte) error
}

// Reason says why a round was closed.
type Reason string

const (
	ReasonManual            Reason = "manual"
	ReasonTimeout           Reason = "timeout"
	ReasonTerminated        Reason = "terminated"
	ReasonInterviewComplete Reason = "interview_complete"
)

// Payload is the frozen content of a round at submission time.
type Payload struct {
	Round           models.Round
	Answers         map[string]string
	Languages       map[string]string // coding question id -> language
	DefaultLanguage string
	Transcript      []models.InterviewTurn
	Reason          Reason
}

// Result is the accepted outcome of a round.
type Result struct {
	Progress  models.RoundProgress
	Session   models.Session
	Duplicate bool
}

type Config struct {
	JudgeParallelism int
	LenientVerdict   bool
}

// Coordinator scores rounds and persists their results. Scoring runs
// before anything is written; a failure leaves the store untouched and the
// caller retries.
type Coordinator struct {
	store      Store
	judge      Judge
	evaluator  Evaluator
	violations ViolationLog
	outboxApp  OutboxApp
	clock      clockwork.Clock
	cfg        Config

	inflight singleflight.Group
}

func NewCoordinator(store Store, judge Judge, evaluator Evaluator, violations ViolationLog, outboxApp OutboxApp, clock clockwork.Clock, cfg Config) *Coordinator {
	if cfg.JudgeParallelism <= 0 {
		cfg.JudgeParallelism = 4
	}
	return &Coordinator{
		store:      store,
		judge:      judge,
		evaluator:  evaluator,
		violations: violations,
		outboxApp:  outboxApp,
		clock:      clock,
		cfg:        cfg,
	}
}

// SessionStarted announces a newly created session.
func (c *Coordinator) SessionStarted(ctx context.Context, session models.Session) {
	c.emit(ctx, session.ID, events.TypeSessionStarted, events.SessionStartedPayload{
		SessionID:   session.ID.String(),
		CandidateID: session.CandidateID.String(),
		DriveID:     session.DriveID.String(),
		StartedAt:   session.CreatedAt,
	})
}

// BeginRound marks the round IN_PROGRESS.
func (c *Coordinator) BeginRound(ctx context.Context, sessionID uuid.UUID, roundIndex int) error {
	now := c.clock.Now()
	if err := c.store.StartRoundProgress(ctx, sessionID, roundIndex, now); err != nil {
		return fmt.Errorf("failed to start round progress: %w", err)
	}
	c.emit(ctx, sessionID, events.TypeRoundStarted, events.RoundStartedPayload{
		SessionID:  sessionID.String(),
		RoundIndex: roundIndex,
		StartedAt:  now,
	})
	return nil
}

// SubmitRound scores and persists one round. Calls for an already
// completed round return the stored result unchanged.
func (c *Coordinator) SubmitRound(ctx context.Context, sessionID uuid.UUID, roundIndex int, payload Payload) (*Result, error) {
	key := fmt.Sprintf("%s:%d", sessionID, roundIndex)
	v, err, shared := c.inflight.Do(key, func() (interface{}, error) {
		return c.submitRound(ctx, sessionID, roundIndex, payload)
	})
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(string(payload.Round.Kind), "error").Inc()
		return nil, err
	}
	res := *v.(*Result)
	if shared {
		res.Duplicate = true
	}
	return &res, nil
}

func (c *Coordinator) submitRound(ctx context.Context, sessionID uuid.UUID, roundIndex int, payload Payload) (*Result, error) {
	session, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if roundIndex < 0 || roundIndex > session.CurrentRoundIndex {
		return nil, fmt.Errorf("round %d with current %d: %w", roundIndex, session.CurrentRoundIndex, ErrRoundOutOfRange)
	}

	existing, err := c.store.GetRoundProgress(ctx, sessionID, roundIndex)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get round progress: %w", err)
	}
	if existing != nil && existing.Status == models.RoundStatusCompleted {
		log.Info().
			Str("session_id", sessionID.String()).
			Int("round_index", roundIndex).
			Msg("round already submitted, returning stored result")
		return &Result{Progress: *existing, Session: *session, Duplicate: true}, nil
	}
	if session.Status.IsFinal() {
		return nil, ErrSessionClosed
	}

	start := c.clock.Now()
	score, feedback, err := c.score(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to score round %d: %w", roundIndex, err)
	}
	metrics.ScoringDuration.WithLabelValues(string(payload.Round.Kind)).Observe(c.clock.Since(start).Seconds())

	raw, err := json.Marshal(feedback)
	if err != nil {
		return nil, fmt.Errorf("failed to encode feedback: %w", err)
	}

	now := c.clock.Now()
	progress := models.RoundProgress{
		SessionID:   sessionID,
		RoundIndex:  roundIndex,
		Status:      models.RoundStatusCompleted,
		Score:       score,
		RawFeedback: raw,
		StartedAt:   &now,
		CompletedAt: &now,
	}
	if existing != nil && existing.StartedAt != nil {
		progress.StartedAt = existing.StartedAt
	}

	updated, applied, err := c.store.CompleteRound(ctx, progress)
	if err != nil {
		return nil, fmt.Errorf("failed to persist round %d: %w", roundIndex, err)
	}
	if !applied {
		stored, err := c.store.GetRoundProgress(ctx, sessionID, roundIndex)
		if err != nil {
			return nil, fmt.Errorf("failed to reload round progress: %w", err)
		}
		return &Result{Progress: *stored, Session: *updated, Duplicate: true}, nil
	}

	metrics.SubmissionsTotal.WithLabelValues(string(payload.Round.Kind), "accepted").Inc()
	log.Info().
		Str("session_id", sessionID.String()).
		Int("round_index", roundIndex).
		Str("kind", string(payload.Round.Kind)).
		Str("reason", string(payload.Reason)).
		Float64("score", score).
		Int("current_round_index", updated.CurrentRoundIndex).
		Msg("round submitted")

	c.emit(ctx, sessionID, events.TypeRoundCompleted, events.RoundCompletedPayload{
		SessionID:   sessionID.String(),
		RoundIndex:  roundIndex,
		RoundTitle:  payload.Round.Title,
		Kind:        string(payload.Round.Kind),
		Score:       score,
		Reason:      string(payload.Reason),
		CompletedAt: now,
	})

	return &Result{Progress: progress, Session: *updated}, nil
}

// SubmitFinal aggregates round scores and completes the session. A round
// that was never started counts as zero.
func (c *Coordinator) SubmitFinal(ctx context.Context, sessionID uuid.UUID, totalRounds int) (*models.Session, error) {
	return c.finalize(ctx, sessionID, totalRounds, models.SessionStatusCompleted, "")
}

// Terminate aggregates whatever was scored and closes the session as TERMINATED.
func (c *Coordinator) Terminate(ctx context.Context, sessionID uuid.UUID, totalRounds int, reason string) (*models.Session, error) {
	return c.finalize(ctx, sessionID, totalRounds, models.SessionStatusTerminated, reason)
}

func (c *Coordinator) finalize(ctx context.Context, sessionID uuid.UUID, totalRounds int, status models.SessionStatus, reason string) (*models.Session, error) {
	session, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session.Status.IsFinal() {
		return session, nil
	}

	progress, err := c.store.ListRoundProgress(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list round progress: %w", err)
	}
	overall := OverallScore(progress, totalRounds)

	updated, err := c.store.FinalizeSession(ctx, sessionID, status, overall)
	if err != nil {
		return nil, fmt.Errorf("failed to finalize session: %w", err)
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Str("status", string(status)).
		Float64("overall_score", overall).
		Msg("session finalized")

	payload := events.SessionFinishedPayload{
		SessionID:    sessionID.String(),
		Status:       string(status),
		OverallScore: overall,
		Reason:       reason,
		FinishedAt:   c.clock.Now(),
	}
	if status == models.SessionStatusTerminated {
		metrics.TerminationsTotal.Inc()
		c.emit(ctx, sessionID, events.TypeSessionTerminated, payload)
	} else {
		c.emit(ctx, sessionID, events.TypeSessionCompleted, payload)
	}
	return updated, nil
}

// RecordViolation appends v to the violation log.
func (c *Coordinator) RecordViolation(ctx context.Context, v models.Violation) error {
	metrics.ViolationsTotal.WithLabelValues(string(v.Type)).Inc()
	if c.violations != nil {
		if err := c.violations.Append(ctx, v); err != nil {
			return fmt.Errorf("failed to append violation: %w", err)
		}
	}
	c.emit(ctx, v.SessionID, events.TypeViolationRecorded, events.ViolationRecordedPayload{
		SessionID:  v.SessionID.String(),
		RoundIndex: v.RoundIndex,
		Type:       string(v.Type),
		Timestamp:  v.Timestamp,
		Metadata:   v.Metadata,
	})
	return nil
}

// OverallScore is the mean over totalRounds; missing rounds contribute zero.
func OverallScore(progress []models.RoundProgress, totalRounds int) float64 {
	if totalRounds <= 0 {
		totalRounds = len(progress)
	}
	if totalRounds == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range progress {
		if p.RoundIndex < 0 || p.RoundIndex >= totalRounds {
			continue
		}
		if p.Status == models.RoundStatusCompleted {
			sum += p.Score
		}
	}
	return sum / float64(totalRounds)
}

func (c *Coordinator) emit(ctx context.Context, sessionID uuid.UUID, eventType string, payload any) {
	if c.outboxApp == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal outbox payload")
		return
	}

	switch eventType {
	case events.TypeSessionStarted:
		err = c.outboxApp.InsertSessionStartedEvent(ctx, sessionID, raw)
	case events.TypeRoundStarted:
		err = c.outboxApp.InsertRoundStartedEvent(ctx, sessionID, raw)
	case events.TypeRoundCompleted:
		err = c.outboxApp.InsertRoundCompletedEvent(ctx, sessionID, raw)
	case events.TypeViolationRecorded:
		err = c.outboxApp.InsertViolationRecordedEvent(ctx, sessionID, raw)
	case events.TypeSessionCompleted:
		err = c.outboxApp.InsertSessionCompletedEvent(ctx, sessionID, raw)
	case events.TypeSessionTerminated:
		err = c.outboxApp.InsertSessionTerminatedEvent(ctx, sessionID, raw)
	}
	if err != nil {
		// Don't fail the operation, just log the error
		log.Error().Err(err).Str("session_id", sessionID.String()).Str("event_type", eventType).Msg("failed to emit outbox event")
	}
}
