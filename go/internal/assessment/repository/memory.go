package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/mockdrive/go/internal/models"
)

type progressKey struct {
	sessionID  uuid.UUID
	roundIndex int
}

// Memory is an in-process store used by tests and local runs.
type Memory struct {
	mu         sync.RWMutex
	now        func() time.Time
	drives     map[uuid.UUID]models.Drive
	sections   map[uuid.UUID][]models.SectionDef
	sessions   map[uuid.UUID]models.Session
	progress   map[progressKey]models.RoundProgress
	violations []models.Violation
}

func NewMemory() *Memory {
	return &Memory{
		now:      time.Now,
		drives:   make(map[uuid.UUID]models.Drive),
		sections: make(map[uuid.UUID][]models.SectionDef),
		sessions: make(map[uuid.UUID]models.Session),
		progress: make(map[progressKey]models.RoundProgress),
	}
}

// PutDrive stores a drive and its section definitions.
func (m *Memory) PutDrive(d models.Drive, sections []models.SectionDef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drives[d.ID] = d
	m.sections[d.ID] = append([]models.SectionDef(nil), sections...)
}

func (m *Memory) GetDrive(_ context.Context, id uuid.UUID) (*models.Drive, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drives[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (m *Memory) ListSectionDefs(_ context.Context, driveID uuid.UUID) ([]models.SectionDef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.SectionDef(nil), m.sections[driveID]...), nil
}

func (m *Memory) CreateSession(_ context.Context, candidateID, driveID uuid.UUID) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	s := models.Session{
		ID:          uuid.New(),
		CandidateID: candidateID,
		DriveID:     driveID,
		Status:      models.SessionStatusInProgress,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.sessions[s.ID] = s
	return &s, nil
}

func (m *Memory) FindOpenSession(_ context.Context, candidateID, driveID uuid.UUID) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.CandidateID == candidateID && s.DriveID == driveID && s.Status == models.SessionStatusInProgress {
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetSession(_ context.Context, id uuid.UUID) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *Memory) GetRoundProgress(_ context.Context, sessionID uuid.UUID, roundIndex int) (*models.RoundProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.progress[progressKey{sessionID, roundIndex}]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) ListRoundProgress(_ context.Context, sessionID uuid.UUID) ([]models.RoundProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.RoundProgress
	for k, p := range m.progress {
		if k.sessionID == sessionID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundIndex < out[j].RoundIndex })
	return out, nil
}

func (m *Memory) StartRoundProgress(_ context.Context, sessionID uuid.UUID, roundIndex int, startedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	k := progressKey{sessionID, roundIndex}
	p, ok := m.progress[k]
	if ok && !p.Status.CanAdvanceTo(models.RoundStatusInProgress) {
		return nil
	}
	m.progress[k] = models.RoundProgress{
		SessionID:  sessionID,
		RoundIndex: roundIndex,
		Status:     models.RoundStatusInProgress,
		StartedAt:  &startedAt,
	}
	return nil
}

func (m *Memory) CompleteRound(_ context.Context, progress models.RoundProgress) (*models.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[progress.SessionID]
	if !ok {
		return nil, false, ErrNotFound
	}
	k := progressKey{progress.SessionID, progress.RoundIndex}
	if p, ok := m.progress[k]; ok && p.Status == models.RoundStatusCompleted {
		return &s, false, nil
	}
	m.progress[k] = progress
	if s.CurrentRoundIndex <= progress.RoundIndex {
		s.CurrentRoundIndex = progress.RoundIndex + 1
	}
	s.UpdatedAt = m.now()
	m.sessions[s.ID] = s
	return &s, true, nil
}

func (m *Memory) FinalizeSession(_ context.Context, sessionID uuid.UUID, status models.SessionStatus, overallScore float64) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if s.Status.IsFinal() {
		return &s, nil
	}
	s.Status = status
	s.OverallScore = overallScore
	s.UpdatedAt = m.now()
	m.sessions[sessionID] = s
	return &s, nil
}

func (m *Memory) Append(_ context.Context, v models.Violation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations = append(m.violations, v)
	return nil
}

func (m *Memory) ListViolations(_ context.Context, sessionID uuid.UUID) ([]models.Violation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Violation
	for _, v := range m.violations {
		if v.SessionID == sessionID {
			out = append(out, v)
		}
	}
	return out, nil
}
