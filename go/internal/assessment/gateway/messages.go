package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mcdev12/mockdrive/go/clients/judge0_client"
	"github.com/mcdev12/mockdrive/go/internal/assessment/orchestrator"
	"github.com/mcdev12/mockdrive/go/internal/assessment/proctor"
	"github.com/mcdev12/mockdrive/go/internal/models"
)

var (
	ErrUnknownMessage = errors.New("unknown message type")
	ErrMissingBody    = errors.New("message body missing")
)

// ClientMessage is one inbound frame from the candidate's browser.
type ClientMessage struct {
	Type      orchestrator.EventType    `json:"type"`
	Epoch     int                       `json:"epoch,omitempty"`
	Env       *orchestrator.EnvReport   `json:"env,omitempty"`
	Answer    *orchestrator.AnswerInput `json:"answer,omitempty"`
	Sensor    *proctor.RawEvent         `json:"sensor,omitempty"`
	Violation *models.Violation         `json:"violation,omitempty"`
	Text      string                    `json:"text,omitempty"`
}

// snapshotMessage is sent once when a connection is registered.
type snapshotMessage struct {
	Type     string                `json:"type"`
	Snapshot orchestrator.Snapshot `json:"snapshot"`
}

// DecodeClientMessage parses a frame into a state machine event. Events the
// machine generates for itself (ticks, auto-submits, results) are rejected.
func DecodeClientMessage(data []byte) (orchestrator.Event, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return orchestrator.Event{}, fmt.Errorf("invalid message: %w", err)
	}

	ev := orchestrator.Event{Type: msg.Type}
	switch msg.Type {
	case orchestrator.EventEnvReport:
		if msg.Env == nil {
			return ev, ErrMissingBody
		}
		ev.Env = msg.Env
	case orchestrator.EventAnswer:
		if msg.Answer == nil || msg.Answer.QuestionID == "" {
			return ev, ErrMissingBody
		}
		if lang := strings.ToLower(strings.TrimSpace(msg.Answer.Language)); lang != "" {
			if _, ok := judge0_client.LanguageID(lang); !ok {
				return ev, fmt.Errorf("%w: %q", models.ErrUnsupportedLanguage, msg.Answer.Language)
			}
			msg.Answer.Language = lang
		}
		ev.Answer = msg.Answer
	case orchestrator.EventSensor:
		if msg.Sensor == nil {
			return ev, ErrMissingBody
		}
		ev.Raw = msg.Sensor
	case orchestrator.EventViolation:
		// Only audio analysis reports typed violations directly.
		if msg.Violation == nil || msg.Violation.Type != models.ViolationVoiceDetected {
			return ev, ErrMissingBody
		}
		v := models.Violation{Type: msg.Violation.Type, Timestamp: msg.Violation.Timestamp, Metadata: msg.Violation.Metadata}
		ev.Violation = &v
	case orchestrator.EventInterviewReply:
		ev.Text = msg.Text
	case orchestrator.EventRetrySubmit:
		ev.Epoch = msg.Epoch
	case orchestrator.EventNextQuestion, orchestrator.EventNextSection,
		orchestrator.EventFinishRound, orchestrator.EventProceed:
	default:
		return ev, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
	return ev, nil
}
