package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mcdev12/mockdrive/go/internal/metrics"
	"github.com/mcdev12/mockdrive/go/internal/models"
	"github.com/rs/zerolog/log"
)

const eventChannelBufferSize = 64

// Session owns one Machine and feeds it from a single event loop. Timer
// ticks, sensor events, user actions and collaborator results all arrive as
// events on the same channel, so the machine never runs concurrently.
type Session struct {
	id      uuid.UUID
	machine *Machine
	events  chan Event

	snapshot atomic.Pointer[Snapshot]

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup // async collaborator calls
	once   sync.Once
}

// NewSession builds the actor and its machine. Call Run to start it.
func NewSession(session models.Session, rounds []models.Round, deps Deps, cfg Config) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:     session.ID,
		events: make(chan Event, eventChannelBufferSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.machine = NewMachine(session, rounds, deps, cfg, func(ev Event) { s.Post(ev) }, s.spawn)
	snap := s.machine.Snapshot()
	s.snapshot.Store(&snap)
	return s
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// Run drains events until ctx is cancelled or Close is called.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)
	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	log.Info().Str("session_id", s.id.String()).Msg("session loop started")

	s.machine.Start(ctx)
	s.publish()

	for {
		select {
		case <-ctx.Done():
			s.cancel()
			s.shutdown()
			return
		case <-s.ctx.Done():
			s.shutdown()
			return
		case ev := <-s.events:
			s.machine.Dispatch(ctx, ev)
			s.publish()
		}
	}
}

func (s *Session) shutdown() {
	s.machine.Close()
	s.publish()
	log.Info().Str("session_id", s.id.String()).Msg("session loop stopped")
}

// Post enqueues ev. It returns false once the session has stopped.
func (s *Session) Post(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.ctx.Done():
		return false
	case <-s.done:
		return false
	}
}

// Snapshot returns the view published after the last processed event.
func (s *Session) Snapshot() Snapshot {
	return *s.snapshot.Load()
}

// Done is closed when the event loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close stops the loop and waits for in-flight collaborator calls.
func (s *Session) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		s.wg.Wait()
	})
}

func (s *Session) publish() {
	snap := s.machine.Snapshot()
	s.snapshot.Store(&snap)
}

func (s *Session) spawn(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}
