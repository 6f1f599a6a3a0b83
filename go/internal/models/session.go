package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus defines the status of a candidate attempt.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusTerminated SessionStatus = "TERMINATED"
)

// IsFinal reports whether no further rounds may be played.
func (s SessionStatus) IsFinal() bool {
	return s == SessionStatusCompleted || s == SessionStatusTerminated
}

// Session is one candidate's attempt at one drive.
type Session struct {
	ID                uuid.UUID     `json:"id"`
	CandidateID       uuid.UUID     `json:"candidate_id"`
	DriveID           uuid.UUID     `json:"drive_id"`
	CurrentRoundIndex int           `json:"current_round_index"`
	Status            SessionStatus `json:"status"`
	OverallScore      float64       `json:"overall_score"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Drive is the assessment definition a session is taken against.
type Drive struct {
	ID              uuid.UUID     `json:"id"`
	Title           string        `json:"title"`
	DefaultDuration time.Duration `json:"default_duration"`
	CreatedAt       time.Time     `json:"created_at"`
}

// RoundStatus is the lifecycle of a RoundProgress row.
type RoundStatus string

const (
	RoundStatusPending    RoundStatus = "PENDING"
	RoundStatusInProgress RoundStatus = "IN_PROGRESS"
	RoundStatusCompleted  RoundStatus = "COMPLETED"
)

func (s RoundStatus) rank() int {
	switch s {
	case RoundStatusPending:
		return 0
	case RoundStatusInProgress:
		return 1
	case RoundStatusCompleted:
		return 2
	}
	return -1
}

// CanAdvanceTo reports whether moving from s to next keeps the status forward-only.
func (s RoundStatus) CanAdvanceTo(next RoundStatus) bool {
	return s.rank() >= 0 && next.rank() > s.rank()
}

// RoundProgress is the mutable record of one round within one session.
type RoundProgress struct {
	SessionID   uuid.UUID   `json:"session_id"`
	RoundIndex  int         `json:"round_index"`
	Status      RoundStatus `json:"status"`
	Score       float64     `json:"score"`
	RawFeedback []byte      `json:"raw_feedback,omitempty"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// TimerState is the persisted anchor of a round countdown.
type TimerState struct {
	RoundKey           string `json:"round_key"`
	AnchorEpochSeconds int64  `json:"anchorEpochSeconds"`
	DurationSeconds    int    `json:"durationSeconds"`
}
