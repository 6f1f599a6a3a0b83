package events

import (
	"time"
)

// Event types published through the outbox.
const (
	TypeSessionStarted    = "SessionStarted"
	TypeRoundStarted      = "RoundStarted"
	TypeRoundCompleted    = "RoundCompleted"
	TypeViolationRecorded = "ViolationRecorded"
	TypeSessionCompleted  = "SessionCompleted"
	TypeSessionTerminated = "SessionTerminated"
)

// SessionStartedPayload is the payload for a SessionStarted event
type SessionStartedPayload struct {
	SessionID   string    `json:"session_id"`
	CandidateID string    `json:"candidate_id"`
	DriveID     string    `json:"drive_id"`
	StartedAt   time.Time `json:"started_at"`
}

// RoundStartedPayload is the payload for a RoundStarted event
type RoundStartedPayload struct {
	SessionID  string    `json:"session_id"`
	RoundIndex int       `json:"round_index"`
	StartedAt  time.Time `json:"started_at"`
}

// RoundCompletedPayload is the payload for a RoundCompleted event
type RoundCompletedPayload struct {
	SessionID   string    `json:"session_id"`
	RoundIndex  int       `json:"round_index"`
	RoundTitle  string    `json:"round_title"`
	Kind        string    `json:"kind"`
	Score       float64   `json:"score"`
	Reason      string    `json:"reason"`
	CompletedAt time.Time `json:"completed_at"`
}

// ViolationRecordedPayload is the payload for a ViolationRecorded event
type ViolationRecordedPayload struct {
	SessionID  string         `json:"session_id"`
	RoundIndex int            `json:"round_index"`
	Type       string         `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SessionFinishedPayload is the payload for SessionCompleted and SessionTerminated events
type SessionFinishedPayload struct {
	SessionID    string    `json:"session_id"`
	Status       string    `json:"status"`
	OverallScore float64   `json:"overall_score"`
	Reason       string    `json:"reason,omitempty"`
	FinishedAt   time.Time `json:"finished_at"`
}
