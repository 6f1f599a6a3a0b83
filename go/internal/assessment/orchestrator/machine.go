// Package orchestrator drives one candidate session through its rounds.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/mockdrive/go/internal/assessment/escalation"
	"github.com/mcdev12/mockdrive/go/internal/assessment/proctor"
	"github.com/mcdev12/mockdrive/go/internal/assessment/submission"
	"github.com/mcdev12/mockdrive/go/internal/assessment/timer"
	"github.com/mcdev12/mockdrive/go/internal/metrics"
	"github.com/mcdev12/mockdrive/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	fallbackInterviewQuestion = "Could you tell me more about a recent project you worked on and the challenges you faced?"
	terminationReason         = "maximum warnings reached"
)

// Coordinator persists round and session outcomes.
type Coordinator interface {
	SessionStarted(ctx context.Context, session models.Session)
	BeginRound(ctx context.Context, sessionID uuid.UUID, roundIndex int) error
	SubmitRound(ctx context.Context, sessionID uuid.UUID, roundIndex int, payload submission.Payload) (*submission.Result, error)
	SubmitFinal(ctx context.Context, sessionID uuid.UUID, totalRounds int) (*models.Session, error)
	Terminate(ctx context.Context, sessionID uuid.UUID, totalRounds int, reason string) (*models.Session, error)
	RecordViolation(ctx context.Context, v models.Violation) error
}

// Generator produces the next interview question.
type Generator interface {
	NextQuestion(ctx context.Context, req models.GenerationRequest) (*models.GenerationResponse, error)
}

// Config tunes round timing and retries.
type Config struct {
	DefaultDuration       time.Duration `yaml:"default_duration"`
	InterviewDuration     time.Duration `yaml:"interview_duration"`
	TickInterval          time.Duration `yaml:"tick_interval"`
	GraceDelay            time.Duration `yaml:"grace_delay"`
	RetryDelay            time.Duration `yaml:"retry_delay"`
	MaxRetryDelay         time.Duration `yaml:"max_retry_delay"`
	MaxInterviewQuestions int           `yaml:"max_interview_questions"`
	InterviewDifficulty   string        `yaml:"interview_difficulty"`
	DefaultLanguage       string        `yaml:"default_language"`
	LenientVerdict        bool          `yaml:"lenient_verdict"`
	RequireCamera         bool          `yaml:"require_camera"`
	RequireFullscreen     bool          `yaml:"require_fullscreen"`
}

func DefaultConfig() Config {
	return Config{
		DefaultDuration:       60 * time.Minute,
		InterviewDuration:     30 * time.Minute,
		TickInterval:          time.Second,
		GraceDelay:            escalation.DefaultGraceDelay,
		RetryDelay:            3 * time.Second,
		MaxRetryDelay:         30 * time.Second,
		MaxInterviewQuestions: 20,
		InterviewDifficulty:   "medium",
		DefaultLanguage:       "python",
		LenientVerdict:        true,
		RequireCamera:         true,
		RequireFullscreen:     true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DefaultDuration <= 0 {
		c.DefaultDuration = d.DefaultDuration
	}
	if c.InterviewDuration <= 0 {
		c.InterviewDuration = d.InterviewDuration
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.GraceDelay <= 0 {
		c.GraceDelay = d.GraceDelay
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = d.MaxRetryDelay
	}
	if c.MaxInterviewQuestions <= 0 {
		c.MaxInterviewQuestions = d.MaxInterviewQuestions
	}
	if c.InterviewDifficulty == "" {
		c.InterviewDifficulty = d.InterviewDifficulty
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = d.DefaultLanguage
	}
	return c
}

// Deps are the collaborators of one machine. Timer, Detector and Policy are
// per-session and owned by the machine.
type Deps struct {
	Coordinator Coordinator
	Generator   Generator
	Timer       *timer.Manager
	Detector    *proctor.Detector
	Policy      *escalation.Policy
	Notifier    Notifier
	Clock       clockwork.Clock
}

// Machine is the round state machine of one session. It is not safe for
// concurrent use; Session serializes every call onto one goroutine.
type Machine struct {
	session models.Session
	rounds  []models.Round
	deps    Deps
	cfg     Config
	table   map[State]map[EventType]handler

	// post enqueues an event for later dispatch; async runs blocking work off
	// the event loop.
	post        func(Event)
	async       func(func(ctx context.Context))
	startTicker func(onTick func()) (stop func())

	state       State
	env         EnvReport
	roundIndex  int
	sectionIdx  int
	questionIdx int
	answers     map[string]string
	languages   map[string]string
	epoch       int
	stopTicker  func()
	autoSubmit  clockwork.Timer
	terminating bool

	// interview rounds
	turns             []models.InterviewTurn
	awaitingQuestion  bool
	interviewComplete bool

	// round transition
	frozen     submission.Payload
	verdict    string
	submitting bool
	submitted  bool
	lastScore  float64
	retries    int
	retryTimer clockwork.Timer

	finalizing bool
	finalized  bool
}

// NewMachine builds a machine positioned at the session's stored round.
func NewMachine(session models.Session, rounds []models.Round, deps Deps, cfg Config, post func(Event), async func(func(ctx context.Context))) *Machine {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}
	cfg = cfg.withDefaults()
	m := &Machine{
		session:    session,
		rounds:     rounds,
		deps:       deps,
		cfg:        cfg,
		table:      transitionTable(),
		post:       post,
		async:      async,
		state:      StateEnvCheck,
		roundIndex: session.CurrentRoundIndex,
		answers:    make(map[string]string),
		languages:  make(map[string]string),
	}
	m.startTicker = func(onTick func()) func() {
		return timer.StartTicker(deps.Clock, cfg.TickInterval, onTick)
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Start restores a persisted session. Finished sessions jump straight to
// their final state; everything else waits for an environment report.
func (m *Machine) Start(ctx context.Context) {
	switch {
	case m.session.Status == models.SessionStatusCompleted:
		m.finalized = true
		m.setState(StateSessionComplete)
	case m.session.Status == models.SessionStatusTerminated:
		m.finalized = true
		m.setState(StateTerminated)
	case m.session.CurrentRoundIndex >= len(m.rounds):
		// Every round was submitted but the session was never closed.
		m.setState(StateSessionComplete)
		m.finalize()
	default:
		m.notify(Notice{Type: NoticeEnvCheck, Missing: m.requirements()})
	}
}

// Dispatch applies one event. Events the current state does not accept are dropped.
func (m *Machine) Dispatch(ctx context.Context, ev Event) {
	h, ok := m.table[m.state][ev.Type]
	if !ok {
		log.Debug().
			Str("session_id", m.session.ID.String()).
			Str("state", string(m.state)).
			Str("event", string(ev.Type)).
			Msg("event ignored in current state")
		return
	}
	h(m, ctx, ev)
}

// Close stops every timer and releases media. The state is left as is so a
// reconnect resumes from the persisted anchor.
func (m *Machine) Close() {
	m.stopRound()
	if m.retryTimer != nil {
		m.retryTimer.Stop()
	}
	m.releaseMedia()
}

func (m *Machine) setState(to State) bool {
	from := m.state
	if !canTransition(from, to) {
		log.Error().
			Str("session_id", m.session.ID.String()).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("illegal state transition")
		return false
	}
	m.state = to
	metrics.StateTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	log.Info().
		Str("session_id", m.session.ID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Int("round_index", m.roundIndex).
		Msg("state transition")
	m.notify(Notice{Type: NoticeState})
	return true
}

// requirements lists the environment checks still needed for the remaining rounds.
func (m *Machine) requirements() []string {
	var req []string
	if m.cfg.RequireCamera {
		req = append(req, "camera")
	}
	for i := m.session.CurrentRoundIndex; i < len(m.rounds); i++ {
		if m.rounds[i].NeedsMicrophone() {
			req = append(req, "microphone")
			break
		}
	}
	if m.cfg.RequireFullscreen {
		req = append(req, "fullscreen")
	}
	return req
}

func (m *Machine) missing(r EnvReport) []string {
	var out []string
	for _, req := range m.requirements() {
		switch {
		case req == "camera" && !r.Camera,
			req == "microphone" && !r.Microphone,
			req == "fullscreen" && !r.Fullscreen:
			out = append(out, req)
		}
	}
	return out
}

func (m *Machine) onEnvReport(ctx context.Context, ev Event) {
	if ev.Env == nil {
		return
	}
	m.env = *ev.Env
	if missing := m.missing(m.env); len(missing) > 0 {
		msg := "Camera, microphone and fullscreen access are required to start"
		if m.env.Error != "" {
			msg = m.env.Error
		}
		m.notify(Notice{Type: NoticeEnvBlocked, Missing: missing, Message: msg})
		return
	}
	m.enter(ctx, m.session.CurrentRoundIndex)
}

// enter starts round i: resets per-round state, restores or creates the
// timer anchor and arms the detectors.
func (m *Machine) enter(ctx context.Context, i int) {
	m.roundIndex = i
	m.sectionIdx, m.questionIdx = 0, 0
	m.answers = make(map[string]string)
	m.languages = make(map[string]string)
	m.turns = nil
	m.awaitingQuestion = false
	m.interviewComplete = false
	m.terminating = false
	m.frozen = submission.Payload{}
	m.verdict = ""
	m.submitting, m.submitted = false, false
	m.retries = 0
	m.epoch++

	if !m.setState(StateRoundActive) {
		return
	}
	round := m.rounds[i]

	sid := m.session.ID
	m.async(func(ctx context.Context) {
		if err := m.deps.Coordinator.BeginRound(ctx, sid, i); err != nil {
			log.Warn().Err(err).Str("session_id", sid.String()).Int("round_index", i).Msg("failed to mark round in progress")
		}
	})

	remaining, expired := m.deps.Timer.Start(ctx, timer.Key(sid, i), int(m.durationFor(round)/time.Second))
	m.deps.Detector.Arm(m.onDetected)
	m.notify(Notice{Type: NoticeRoundStarted, Remaining: remaining})

	if warnings := m.deps.Policy.State(); warnings.Terminated {
		// The warning limit was reached before the session was reloaded.
		log.Warn().
			Str("session_id", sid.String()).
			Int("round_index", i).
			Int("warnings", warnings.Count).
			Msg("restored session already at the warning limit, scheduling auto-submit")
		m.notify(Notice{Type: NoticeWarning, Warning: &warnings, Message: "Maximum warnings reached, your test is being submitted."})
		m.beginTermination()
		return
	}

	if expired {
		// The round ran out while the candidate was away.
		metrics.TimerExpiriesTotal.Inc()
		m.completeRound(submission.ReasonTimeout)
		return
	}

	epoch := m.epoch
	m.stopTicker = m.startTicker(func() {
		m.post(Event{Type: EventTick, Epoch: epoch})
	})

	if round.Kind == models.RoundKindInterview {
		m.requestQuestion()
	}
}

func (m *Machine) durationFor(r models.Round) time.Duration {
	if r.Duration > 0 {
		return r.Duration
	}
	if r.Kind == models.RoundKindInterview {
		return m.cfg.InterviewDuration
	}
	return m.cfg.DefaultDuration
}

func (m *Machine) onAnswer(_ context.Context, ev Event) {
	if m.terminating || ev.Answer == nil || ev.Answer.QuestionID == "" {
		return
	}
	a := ev.Answer
	if a.Response == "" {
		delete(m.answers, a.QuestionID)
	} else {
		m.answers[a.QuestionID] = a.Response
	}
	if a.Language != "" {
		m.languages[a.QuestionID] = a.Language
	}
}

func (m *Machine) onNextQuestion(_ context.Context, _ Event) {
	if m.terminating {
		return
	}
	round := m.rounds[m.roundIndex]
	if m.sectionIdx < len(round.Sections) && m.questionIdx < len(round.Sections[m.sectionIdx].Questions)-1 {
		m.questionIdx++
		m.notify(Notice{Type: NoticeCursor})
		return
	}
	m.advanceSection()
}

func (m *Machine) onNextSection(_ context.Context, _ Event) {
	if m.terminating {
		return
	}
	m.advanceSection()
}

// advanceSection moves to the next section; past the last one the round is finished.
func (m *Machine) advanceSection() {
	round := m.rounds[m.roundIndex]
	if m.sectionIdx < len(round.Sections)-1 {
		m.sectionIdx++
		m.questionIdx = 0
		m.notify(Notice{Type: NoticeCursor})
		return
	}
	m.completeRound(submission.ReasonManual)
}

func (m *Machine) onFinishRound(_ context.Context, _ Event) {
	m.completeRound(submission.ReasonManual)
}

func (m *Machine) onTick(_ context.Context, ev Event) {
	if ev.Epoch != m.epoch || m.terminating {
		return
	}
	remaining, fired := m.deps.Timer.Tick()
	m.notify(Notice{Type: NoticeTick, Remaining: remaining})
	if fired {
		metrics.TimerExpiriesTotal.Inc()
		log.Info().Str("session_id", m.session.ID.String()).Int("round_index", m.roundIndex).Msg("round timer expired")
		m.completeRound(submission.ReasonTimeout)
	}
}

func (m *Machine) onSensor(_ context.Context, ev Event) {
	if m.terminating || ev.Raw == nil {
		return
	}
	m.deps.Detector.Observe(*ev.Raw)
}

func (m *Machine) onViolationReport(_ context.Context, ev Event) {
	if m.terminating || ev.Violation == nil {
		return
	}
	m.deps.Detector.Report(*ev.Violation)
}

// onDetected receives debounced violations from the armed detector.
func (m *Machine) onDetected(v models.Violation) {
	v.ID = uuid.New()
	v.SessionID = m.session.ID
	v.RoundIndex = m.roundIndex

	m.async(func(ctx context.Context) {
		if err := m.deps.Coordinator.RecordViolation(ctx, v); err != nil {
			log.Warn().Err(err).Str("session_id", v.SessionID.String()).Str("type", string(v.Type)).Msg("failed to record violation")
		}
	})

	d := m.deps.Policy.Record(v)
	if !d.Warning {
		return
	}
	state := m.deps.Policy.State()
	m.notify(Notice{Type: NoticeWarning, Warning: &state, Message: d.Message})

	if !d.Terminate {
		return
	}
	log.Warn().
		Str("session_id", m.session.ID.String()).
		Int("round_index", m.roundIndex).
		Int("warnings", d.Count).
		Msg("maximum warnings reached, scheduling auto-submit")

	m.beginTermination()
}

// beginTermination stops counting and schedules the auto-submit after the grace delay.
func (m *Machine) beginTermination() {
	m.terminating = true
	m.deps.Detector.Disarm()
	m.stopClock()
	epoch := m.epoch
	m.autoSubmit = m.deps.Clock.AfterFunc(m.cfg.GraceDelay, func() {
		m.post(Event{Type: EventAutoSubmit, Epoch: epoch})
	})
}

func (m *Machine) onAutoSubmit(_ context.Context, ev Event) {
	if ev.Epoch != m.epoch {
		return
	}
	m.completeRound(submission.ReasonTerminated)
}

func (m *Machine) requestQuestion() {
	if len(m.turns) >= m.cfg.MaxInterviewQuestions {
		m.interviewComplete = true
		m.completeRound(submission.ReasonInterviewComplete)
		return
	}
	m.awaitingQuestion = true
	round := m.rounds[m.roundIndex]
	req := models.GenerationRequest{
		RoundTitle: round.Title,
		Difficulty: m.cfg.InterviewDifficulty,
	}
	for _, t := range m.turns {
		req.PriorQuestions = append(req.PriorQuestions, t.Question)
		req.PriorAnswers = append(req.PriorAnswers, t.Answer)
	}

	epoch := m.epoch
	gen := m.deps.Generator
	m.async(func(ctx context.Context) {
		if gen == nil {
			m.post(Event{Type: EventGenerationFailed, Epoch: epoch, Err: errors.New("no question generator configured")})
			return
		}
		resp, err := gen.NextQuestion(ctx, req)
		if err != nil {
			m.post(Event{Type: EventGenerationFailed, Epoch: epoch, Err: err})
			return
		}
		m.post(Event{Type: EventQuestionReady, Epoch: epoch, Generation: resp})
	})
}

func (m *Machine) onQuestionReady(_ context.Context, ev Event) {
	if ev.Epoch != m.epoch || !m.awaitingQuestion || ev.Generation == nil {
		return
	}
	m.awaitingQuestion = false
	if ev.Generation.IsComplete || ev.Generation.NextQuestion == "" {
		m.interviewComplete = true
		m.completeRound(submission.ReasonInterviewComplete)
		return
	}
	m.askQuestion(ev.Generation.NextQuestion)
}

func (m *Machine) onGenerationFailed(_ context.Context, ev Event) {
	if ev.Epoch != m.epoch || !m.awaitingQuestion {
		return
	}
	log.Warn().Err(ev.Err).Str("session_id", m.session.ID.String()).Msg("question generation failed, using fallback question")
	m.awaitingQuestion = false
	m.askQuestion(fallbackInterviewQuestion)
}

func (m *Machine) askQuestion(q string) {
	m.turns = append(m.turns, models.InterviewTurn{Question: q})
	m.notify(Notice{Type: NoticeQuestion, Question: q})
}

func (m *Machine) onInterviewReply(_ context.Context, ev Event) {
	if m.terminating || m.awaitingQuestion || len(m.turns) == 0 {
		return
	}
	last := &m.turns[len(m.turns)-1]
	if last.Answer != "" || ev.Text == "" {
		return
	}
	last.Answer = ev.Text
	m.answers[fmt.Sprintf("turn-%d", len(m.turns))] = ev.Text
	m.requestQuestion()
}

// completeRound freezes the answers, stops the round and hands the payload
// to the coordinator. Only the first caller in ROUND_ACTIVE gets here.
func (m *Machine) completeRound(reason submission.Reason) {
	if m.state != StateRoundActive {
		return
	}
	if m.terminating {
		reason = submission.ReasonTerminated
	}
	m.stopRound()
	m.releaseMedia()

	round := m.rounds[m.roundIndex]
	m.frozen = submission.Payload{
		Round:           round,
		Answers:         copyMap(m.answers),
		Languages:       copyMap(m.languages),
		DefaultLanguage: m.cfg.DefaultLanguage,
		Transcript:      append([]models.InterviewTurn(nil), m.turns...),
		Reason:          reason,
	}
	m.verdict = submission.Verdict(round.Kind, submission.CountAnswered(m.answers), 0, m.interviewComplete, m.cfg.LenientVerdict)
	// Late ticks and auto-submits of this round are now stale.
	m.epoch++

	if !m.setState(StateRoundTransition) {
		return
	}
	m.notify(Notice{Type: NoticeRoundCompleted, Reason: string(reason), Verdict: m.verdict})
	m.submit()
}

func (m *Machine) submit() {
	m.submitting = true
	sid, idx, payload, epoch := m.session.ID, m.roundIndex, m.frozen, m.epoch
	m.async(func(ctx context.Context) {
		res, err := m.deps.Coordinator.SubmitRound(ctx, sid, idx, payload)
		if err != nil {
			m.post(Event{Type: EventSubmitFailed, Epoch: epoch, Err: err})
			return
		}
		m.post(Event{Type: EventSubmitted, Epoch: epoch, Result: res})
	})
}

func (m *Machine) onSubmitted(ctx context.Context, ev Event) {
	if ev.Epoch != m.epoch || ev.Result == nil || m.submitted {
		return
	}
	m.submitting = false
	m.submitted = true
	m.retries = 0
	m.lastScore = ev.Result.Progress.Score
	m.adopt(ev.Result.Session)
	if v := feedbackVerdict(ev.Result.Progress.RawFeedback); v != "" {
		m.verdict = v
	}
	m.notify(Notice{Type: NoticeSubmitted, Verdict: m.verdict, Reason: string(m.frozen.Reason)})

	if m.frozen.Reason == submission.ReasonTerminated {
		m.deps.Timer.Clear(ctx, timer.Key(m.session.ID, m.roundIndex))
		if m.setState(StateTerminated) {
			m.finalize()
		}
	}
}

func (m *Machine) onSubmitFailed(_ context.Context, ev Event) {
	if ev.Epoch != m.epoch || m.submitted {
		return
	}
	m.submitting = false
	m.retries++
	log.Error().Err(ev.Err).
		Str("session_id", m.session.ID.String()).
		Int("round_index", m.roundIndex).
		Int("attempt", m.retries).
		Msg("round submission failed")

	if errors.Is(ev.Err, submission.ErrSessionClosed) || errors.Is(ev.Err, submission.ErrRoundOutOfRange) {
		m.notify(Notice{Type: NoticeError, Message: "This session is no longer accepting submissions"})
		return
	}

	switch m.frozen.Reason {
	case submission.ReasonTimeout, submission.ReasonTerminated:
		m.notify(Notice{Type: NoticeSubmitFailed, Message: "Submission failed, retrying"})
		epoch := m.epoch
		m.retryTimer = m.deps.Clock.AfterFunc(m.backoff(), func() {
			m.post(Event{Type: EventRetrySubmit, Epoch: epoch})
		})
	default:
		m.notify(Notice{Type: NoticeSubmitFailed, Message: "Submission failed, please retry"})
	}
}

func (m *Machine) onRetrySubmit(_ context.Context, ev Event) {
	if ev.Epoch != 0 && ev.Epoch != m.epoch {
		return
	}
	if m.submitted || m.submitting {
		return
	}
	m.submit()
}

// backoff grows linearly with the attempt count.
func (m *Machine) backoff() time.Duration {
	d := time.Duration(m.retries) * m.cfg.RetryDelay
	if d > m.cfg.MaxRetryDelay {
		d = m.cfg.MaxRetryDelay
	}
	return d
}

func (m *Machine) onProceed(ctx context.Context, _ Event) {
	if !m.submitted {
		m.notify(Notice{Type: NoticeError, Message: "Your answers are still being submitted"})
		return
	}
	m.deps.Timer.Clear(ctx, timer.Key(m.session.ID, m.roundIndex))
	m.deps.Policy.Reset()

	next := max(m.session.CurrentRoundIndex, m.roundIndex+1)
	m.session.CurrentRoundIndex = next
	if next < len(m.rounds) {
		m.enter(ctx, next)
		return
	}
	if m.setState(StateSessionComplete) {
		m.finalize()
	}
}

// adopt takes the coordinator's view of the session; the round index only moves forward.
func (m *Machine) adopt(s models.Session) {
	if s.ID != m.session.ID {
		return
	}
	idx := max(m.session.CurrentRoundIndex, s.CurrentRoundIndex)
	m.session = s
	m.session.CurrentRoundIndex = idx
}

func (m *Machine) finalize() {
	if m.finalized || m.finalizing {
		return
	}
	m.finalizing = true
	sid, total, state := m.session.ID, len(m.rounds), m.state
	m.async(func(ctx context.Context) {
		var (
			s   *models.Session
			err error
		)
		if state == StateTerminated {
			s, err = m.deps.Coordinator.Terminate(ctx, sid, total, terminationReason)
		} else {
			s, err = m.deps.Coordinator.SubmitFinal(ctx, sid, total)
		}
		if err != nil {
			m.post(Event{Type: EventFinalizeFailed, Err: err})
			return
		}
		m.post(Event{Type: EventFinalized, Session: s})
	})
}

func (m *Machine) onFinalized(_ context.Context, ev Event) {
	if ev.Session == nil || m.finalized {
		return
	}
	m.finalizing = false
	m.finalized = true
	m.retries = 0
	m.session = *ev.Session
	m.notify(Notice{Type: NoticeSessionFinished, Message: string(m.session.Status)})
}

func (m *Machine) onFinalizeFailed(_ context.Context, ev Event) {
	if m.finalized {
		return
	}
	m.finalizing = false
	m.retries++
	log.Error().Err(ev.Err).Str("session_id", m.session.ID.String()).Int("attempt", m.retries).Msg("failed to finalize session")
	m.retryTimer = m.deps.Clock.AfterFunc(m.backoff(), func() {
		m.post(Event{Type: EventRetryFinalize})
	})
}

func (m *Machine) onRetryFinalize(_ context.Context, _ Event) {
	m.finalize()
}

// stopClock halts the countdown without clearing its anchor.
func (m *Machine) stopClock() {
	if m.stopTicker != nil {
		m.stopTicker()
		m.stopTicker = nil
	}
	m.deps.Timer.Stop()
}

func (m *Machine) stopRound() {
	m.stopClock()
	m.deps.Detector.Disarm()
	if m.autoSubmit != nil {
		m.autoSubmit.Stop()
		m.autoSubmit = nil
	}
}

func (m *Machine) releaseMedia() {
	m.notify(Notice{Type: NoticeMediaRelease})
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
