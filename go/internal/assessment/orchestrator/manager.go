package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/mockdrive/go/internal/assessment/escalation"
	"github.com/mcdev12/mockdrive/go/internal/assessment/proctor"
	"github.com/mcdev12/mockdrive/go/internal/assessment/repository"
	"github.com/mcdev12/mockdrive/go/internal/assessment/timer"
	"github.com/mcdev12/mockdrive/go/internal/kvstore"
	"github.com/mcdev12/mockdrive/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrSessionNotRunning is returned when an event targets a session with no live loop.
var ErrSessionNotRunning = errors.New("session is not running")

// Store is what the manager reads to (re)build a session.
type Store interface {
	GetDrive(ctx context.Context, id uuid.UUID) (*models.Drive, error)
	ListSectionDefs(ctx context.Context, driveID uuid.UUID) ([]models.SectionDef, error)
	CreateSession(ctx context.Context, candidateID, driveID uuid.UUID) (*models.Session, error)
	FindOpenSession(ctx context.Context, candidateID, driveID uuid.UUID) (*models.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// ViolationHistory reads the violations already recorded for a session.
type ViolationHistory interface {
	ListViolations(ctx context.Context, sessionID uuid.UUID) ([]models.Violation, error)
}

// ManagerConfig bundles the per-session policies.
type ManagerConfig struct {
	Machine     Config         `yaml:"machine"`
	Proctor     proctor.Config `yaml:"proctor"`
	MaxWarnings int            `yaml:"max_warnings"`
}

// Manager keeps one live Session per session id.
type Manager struct {
	store       Store
	violations  ViolationHistory
	coordinator Coordinator
	generator   Generator
	timers      kvstore.Store
	notifier    Notifier
	clock       clockwork.Clock
	cfg         ManagerConfig

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewManager(store Store, violations ViolationHistory, coordinator Coordinator, generator Generator, timers kvstore.Store, notifier Notifier, clock clockwork.Clock, cfg ManagerConfig) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Manager{
		store:       store,
		violations:  violations,
		coordinator: coordinator,
		generator:   generator,
		timers:      timers,
		notifier:    notifier,
		clock:       clock,
		cfg:         cfg,
		sessions:    make(map[uuid.UUID]*Session),
	}
}

// StartSession resumes the candidate's open session for the drive, or
// creates one, and makes sure its loop is running.
func (m *Manager) StartSession(ctx context.Context, candidateID, driveID uuid.UUID) (*models.Session, error) {
	session, err := m.store.FindOpenSession(ctx, candidateID, driveID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if _, err := m.store.GetDrive(ctx, driveID); err != nil {
			return nil, fmt.Errorf("failed to get drive: %w", err)
		}
		session, err = m.store.CreateSession(ctx, candidateID, driveID)
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		m.coordinator.SessionStarted(ctx, *session)
		log.Info().
			Str("session_id", session.ID.String()).
			Str("candidate_id", candidateID.String()).
			Str("drive_id", driveID.String()).
			Msg("session created")
	case err != nil:
		return nil, fmt.Errorf("failed to find open session: %w", err)
	default:
		log.Info().Str("session_id", session.ID.String()).Int("round_index", session.CurrentRoundIndex).Msg("resuming session")
	}

	if _, err := m.Attach(ctx, session.ID); err != nil {
		return nil, err
	}
	return session, nil
}

// Attach returns the live session, starting its loop from storage if needed.
func (m *Manager) Attach(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[sessionID]; ok {
		return s, nil
	}

	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	drive, err := m.store.GetDrive(ctx, session.DriveID)
	if err != nil {
		return nil, fmt.Errorf("failed to get drive: %w", err)
	}
	defs, err := m.store.ListSectionDefs(ctx, session.DriveID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	rounds := LoadRounds(defs)

	cfg := m.cfg.Machine
	if drive.DefaultDuration > 0 {
		cfg.DefaultDuration = drive.DefaultDuration
	}
	proctorCfg := m.cfg.Proctor
	if proctorCfg == (proctor.Config{}) {
		proctorCfg = proctor.DefaultConfig()
	}
	policy := escalation.NewPolicy(m.cfg.MaxWarnings)
	if err := m.restoreWarnings(ctx, policy, *session); err != nil {
		return nil, err
	}
	deps := Deps{
		Coordinator: m.coordinator,
		Generator:   m.generator,
		Timer:       timer.NewManager(m.clock, m.timers),
		Detector:    proctor.NewDetector(m.clock, proctorCfg),
		Policy:      policy,
		Notifier:    m.notifier,
		Clock:       m.clock,
	}

	s := NewSession(*session, rounds, deps, cfg)
	m.sessions[sessionID] = s
	go func() {
		s.Run(context.Background())
		m.remove(sessionID, s)
	}()

	log.Info().
		Str("session_id", sessionID.String()).
		Str("drive", drive.Title).
		Int("rounds", len(rounds)).
		Msg("session attached")
	return s, nil
}

// restoreWarnings replays the violations of the session's current round so a
// reattach or restart continues from the same warning count.
func (m *Manager) restoreWarnings(ctx context.Context, policy *escalation.Policy, session models.Session) error {
	if m.violations == nil || session.Status != models.SessionStatusInProgress {
		return nil
	}
	recorded, err := m.violations.ListViolations(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("failed to list violations: %w", err)
	}

	var (
		count    int
		lastType models.ViolationType
	)
	for _, v := range recorded {
		if v.RoundIndex != session.CurrentRoundIndex {
			continue
		}
		count++
		lastType = v.Type
	}
	if count == 0 {
		return nil
	}
	policy.Restore(count, lastType)

	log.Info().
		Str("session_id", session.ID.String()).
		Int("round_index", session.CurrentRoundIndex).
		Int("warnings", policy.State().Count).
		Msg("restored warning count")
	return nil
}

// Get returns the live session, if any.
func (m *Manager) Get(sessionID uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// Snapshot returns the live view of a running session.
func (m *Manager) Snapshot(sessionID uuid.UUID) (Snapshot, bool) {
	s, ok := m.Get(sessionID)
	if !ok {
		return Snapshot{}, false
	}
	return s.Snapshot(), true
}

// Post routes ev to the session's loop.
func (m *Manager) Post(sessionID uuid.UUID, ev Event) error {
	s, ok := m.Get(sessionID)
	if !ok || !s.Post(ev) {
		return ErrSessionNotRunning
	}
	return nil
}

// Detach stops the session loop. Persisted state is kept so a later Attach resumes it.
func (m *Manager) Detach(sessionID uuid.UUID) {
	s, ok := m.Get(sessionID)
	if !ok {
		return
	}
	s.Close()
	m.remove(sessionID, s)
}

// Shutdown stops every live session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.Unlock()

	for _, s := range live {
		s.Close()
		m.remove(s.ID(), s)
	}
	log.Info().Int("sessions", len(live)).Msg("all sessions stopped")
}

func (m *Manager) remove(sessionID uuid.UUID, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[sessionID]; ok && cur == s {
		delete(m.sessions, sessionID)
	}
}
