package orchestrator

import (
	"context"

	"github.com/mcdev12/mockdrive/go/internal/assessment/proctor"
	"github.com/mcdev12/mockdrive/go/internal/assessment/submission"
	"github.com/mcdev12/mockdrive/go/internal/models"
)

// State is a round state machine state.
type State string

const (
	StateEnvCheck        State = "ENV_CHECK"
	StateRoundActive     State = "ROUND_ACTIVE"
	StateRoundTransition State = "ROUND_TRANSITION"
	StateSessionComplete State = "SESSION_COMPLETE"
	StateTerminated      State = "TERMINATED"
)

// IsFinal reports whether the session can no longer change rounds.
func (s State) IsFinal() bool {
	return s == StateSessionComplete || s == StateTerminated
}

// allowedTransitions lists every legal state change. TERMINATED is reached
// from ROUND_ACTIVE through the auto-submit path, which passes through
// ROUND_TRANSITION while the frozen answers are submitted.
var allowedTransitions = map[State][]State{
	StateEnvCheck:        {StateRoundActive, StateSessionComplete, StateTerminated},
	StateRoundActive:     {StateRoundTransition},
	StateRoundTransition: {StateRoundActive, StateSessionComplete, StateTerminated},
}

func canTransition(from, to State) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// EventType names an input of the state machine.
type EventType string

const (
	EventEnvReport        EventType = "env_report"
	EventAnswer           EventType = "answer"
	EventNextQuestion     EventType = "next_question"
	EventNextSection      EventType = "next_section"
	EventFinishRound      EventType = "finish_round"
	EventTick             EventType = "tick"
	EventSensor           EventType = "sensor"
	EventViolation        EventType = "violation"
	EventAutoSubmit       EventType = "auto_submit"
	EventInterviewReply   EventType = "interview_reply"
	EventQuestionReady    EventType = "question_ready"
	EventGenerationFailed EventType = "generation_failed"
	EventSubmitted        EventType = "submitted"
	EventSubmitFailed     EventType = "submit_failed"
	EventRetrySubmit      EventType = "retry_submit"
	EventProceed          EventType = "proceed"
	EventFinalized        EventType = "finalized"
	EventFinalizeFailed   EventType = "finalize_failed"
	EventRetryFinalize    EventType = "retry_finalize"
)

// EnvReport is the candidate's environment check result.
type EnvReport struct {
	Camera     bool   `json:"camera"`
	Microphone bool   `json:"microphone"`
	Fullscreen bool   `json:"fullscreen"`
	Error      string `json:"error,omitempty"`
}

// AnswerInput records a response to one question.
type AnswerInput struct {
	QuestionID string `json:"question_id"`
	Response   string `json:"response"`
	Language   string `json:"language,omitempty"`
}

// Event is one input to the state machine. Only the field matching Type is set.
// Epoch ties internally generated events to the round that produced them.
type Event struct {
	Type       EventType
	Epoch      int
	Env        *EnvReport
	Answer     *AnswerInput
	Raw        *proctor.RawEvent
	Violation  *models.Violation
	Text       string
	Generation *models.GenerationResponse
	Result     *submission.Result
	Session    *models.Session
	Err        error
}

type handler func(m *Machine, ctx context.Context, ev Event)

// transitionTable maps each state to the events it accepts. Events not
// listed for the current state are dropped, which is how late timer ticks
// and racing submissions become no-ops.
func transitionTable() map[State]map[EventType]handler {
	return map[State]map[EventType]handler{
		StateEnvCheck: {
			EventEnvReport: (*Machine).onEnvReport,
		},
		StateRoundActive: {
			EventAnswer:           (*Machine).onAnswer,
			EventNextQuestion:     (*Machine).onNextQuestion,
			EventNextSection:      (*Machine).onNextSection,
			EventFinishRound:      (*Machine).onFinishRound,
			EventTick:             (*Machine).onTick,
			EventSensor:           (*Machine).onSensor,
			EventViolation:        (*Machine).onViolationReport,
			EventAutoSubmit:       (*Machine).onAutoSubmit,
			EventInterviewReply:   (*Machine).onInterviewReply,
			EventQuestionReady:    (*Machine).onQuestionReady,
			EventGenerationFailed: (*Machine).onGenerationFailed,
		},
		StateRoundTransition: {
			EventSubmitted:    (*Machine).onSubmitted,
			EventSubmitFailed: (*Machine).onSubmitFailed,
			EventRetrySubmit:  (*Machine).onRetrySubmit,
			EventProceed:      (*Machine).onProceed,
		},
		StateSessionComplete: {
			EventFinalized:      (*Machine).onFinalized,
			EventFinalizeFailed: (*Machine).onFinalizeFailed,
			EventRetryFinalize:  (*Machine).onRetryFinalize,
		},
		StateTerminated: {
			EventFinalized:      (*Machine).onFinalized,
			EventFinalizeFailed: (*Machine).onFinalizeFailed,
			EventRetryFinalize:  (*Machine).onRetryFinalize,
		},
	}
}
