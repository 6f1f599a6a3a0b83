package orchestrator

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/mcdev12/mockdrive/go/internal/models"
)

// NoticeType names a message pushed to the candidate's client.
type NoticeType string

const (
	NoticeEnvCheck        NoticeType = "env_check"
	NoticeEnvBlocked      NoticeType = "env_blocked"
	NoticeState           NoticeType = "state"
	NoticeRoundStarted    NoticeType = "round_started"
	NoticeCursor          NoticeType = "cursor"
	NoticeTick            NoticeType = "tick"
	NoticeWarning         NoticeType = "warning"
	NoticeQuestion        NoticeType = "question"
	NoticeRoundCompleted  NoticeType = "round_completed"
	NoticeSubmitted       NoticeType = "submitted"
	NoticeSubmitFailed    NoticeType = "submit_failed"
	NoticeSessionFinished NoticeType = "session_finished"
	NoticeMediaRelease    NoticeType = "media_release"
	NoticeError           NoticeType = "error"
)

// Notice is one outbound message. SessionID, State and RoundIndex are
// always set; the rest depends on Type.
type Notice struct {
	Type       NoticeType           `json:"type"`
	SessionID  uuid.UUID            `json:"session_id"`
	State      State                `json:"state"`
	RoundIndex int                  `json:"round_index"`
	Section    int                  `json:"section_index"`
	Question   string               `json:"question,omitempty"`
	QuestionNo int                  `json:"question_index"`
	Remaining  int                  `json:"remaining_seconds,omitempty"`
	Warning    *models.WarningState `json:"warning,omitempty"`
	Missing    []string             `json:"missing,omitempty"`
	Verdict    string               `json:"verdict,omitempty"`
	Reason     string               `json:"reason,omitempty"`
	Message    string               `json:"message,omitempty"`
}

// Notifier delivers notices to whoever is watching a session.
type Notifier interface {
	Notify(sessionID uuid.UUID, n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(sessionID uuid.UUID, n Notice)

func (f NotifierFunc) Notify(sessionID uuid.UUID, n Notice) { f(sessionID, n) }

// NopNotifier drops every notice.
type NopNotifier struct{}

func (NopNotifier) Notify(uuid.UUID, Notice) {}

func (m *Machine) notify(n Notice) {
	n.SessionID = m.session.ID
	n.State = m.state
	n.RoundIndex = m.roundIndex
	n.Section = m.sectionIdx
	n.QuestionNo = m.questionIdx
	m.deps.Notifier.Notify(m.session.ID, n)
}

// Snapshot is a point-in-time view of a session for status queries.
type Snapshot struct {
	SessionID     uuid.UUID            `json:"session_id"`
	Status        models.SessionStatus `json:"status"`
	State         State                `json:"state"`
	RoundIndex    int                  `json:"round_index"`
	TotalRounds   int                  `json:"total_rounds"`
	RoundTitle    string               `json:"round_title,omitempty"`
	RoundKind     models.RoundKind     `json:"round_kind,omitempty"`
	SectionIndex  int                  `json:"section_index"`
	QuestionIndex int                  `json:"question_index"`
	Answered      int                  `json:"answered"`
	Remaining     int                  `json:"remaining_seconds"`
	Warnings      models.WarningState  `json:"warnings"`
	Terminating   bool                 `json:"terminating"`
	Verdict       string               `json:"verdict,omitempty"`
	Submitted     bool                 `json:"submitted"`
	LastScore     float64              `json:"last_score,omitempty"`
	OverallScore  float64              `json:"overall_score,omitempty"`
	Question      string               `json:"question,omitempty"`
}

// Snapshot captures the machine's current view.
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{
		SessionID:     m.session.ID,
		Status:        m.session.Status,
		State:         m.state,
		RoundIndex:    m.roundIndex,
		TotalRounds:   len(m.rounds),
		SectionIndex:  m.sectionIdx,
		QuestionIndex: m.questionIdx,
		Answered:      len(m.answers),
		Remaining:     m.deps.Timer.Remaining(),
		Warnings:      m.deps.Policy.State(),
		Terminating:   m.terminating,
		Verdict:       m.verdict,
		Submitted:     m.submitted,
		LastScore:     m.lastScore,
		OverallScore:  m.session.OverallScore,
	}
	if m.roundIndex < len(m.rounds) {
		s.RoundTitle = m.rounds[m.roundIndex].Title
		s.RoundKind = m.rounds[m.roundIndex].Kind
	}
	if n := len(m.turns); n > 0 && m.turns[n-1].Answer == "" {
		s.Question = m.turns[n-1].Question
	}
	return s
}

func feedbackVerdict(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var fb struct {
		Verdict string `json:"verdict"`
	}
	if err := json.Unmarshal(raw, &fb); err != nil {
		return ""
	}
	return fb.Verdict
}
