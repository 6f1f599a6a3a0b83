package service

import (
	"encoding/json"
	"time"

	"github.com/mcdev12/mockdrive/go/internal/assessment/orchestrator"
	"github.com/mcdev12/mockdrive/go/internal/models"
)

type StartSessionRequest struct {
	CandidateID string `json:"candidate_id"`
	DriveID     string `json:"drive_id"`
}

type StartSessionResponse struct {
	Session  *models.Session        `json:"session"`
	Snapshot *orchestrator.Snapshot `json:"snapshot,omitempty"`
}

type GetSessionStateRequest struct {
	SessionID string `json:"session_id"`
}

// GetSessionStateResponse carries the stored session and, when its loop is
// running, the live view.
type GetSessionStateResponse struct {
	Session  *models.Session        `json:"session"`
	Live     bool                   `json:"live"`
	Snapshot *orchestrator.Snapshot `json:"snapshot,omitempty"`
}

type ListViolationsRequest struct {
	SessionID string `json:"session_id"`
}

type ListViolationsResponse struct {
	Violations []models.Violation `json:"violations"`
}

type ListRoundResultsRequest struct {
	SessionID string `json:"session_id"`
}

// RoundResult is one progress row with its feedback left as JSON.
type RoundResult struct {
	RoundIndex  int                `json:"round_index"`
	Status      models.RoundStatus `json:"status"`
	Score       float64            `json:"score"`
	Feedback    json.RawMessage    `json:"feedback,omitempty"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

type ListRoundResultsResponse struct {
	Results []RoundResult `json:"results"`
}

type EndSessionRequest struct {
	SessionID string `json:"session_id"`
}

type EndSessionResponse struct{}
