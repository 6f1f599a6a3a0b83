package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/mockdrive/go/internal/assessment/events"
	"github.com/rs/zerolog/log"
)

// OutboxRepository defines what the app layer needs from the repository
type OutboxRepository interface {
	InsertOutboxEvent(ctx context.Context, sessionID uuid.UUID, eventType string, payload []byte) error
	FetchUnsentOutbox(ctx context.Context, limit int32) ([]OutboxEvent, error)
	MarkOutboxSent(ctx context.Context, id uuid.UUID) error
	FetchOutboxByID(ctx context.Context, id uuid.UUID) (*OutboxEvent, error)
}

// App handles outbox business logic
type App struct {
	repo OutboxRepository
}

// NewApp creates a new outbox App
func NewApp(repo OutboxRepository) *App {
	return &App{
		repo: repo,
	}
}

// InsertRoundStartedEvent inserts a RoundStarted event into the outbox
func (a *App) InsertRoundStartedEvent(ctx context.Context, sessionID uuid.UUID, payload []byte) error {
	return a.insert(ctx, sessionID, events.TypeRoundStarted, payload)
}

// InsertRoundCompletedEvent inserts a RoundCompleted event into the outbox
func (a *App) InsertRoundCompletedEvent(ctx context.Context, sessionID uuid.UUID, payload []byte) error {
	return a.insert(ctx, sessionID, events.TypeRoundCompleted, payload)
}

// InsertViolationRecordedEvent inserts a ViolationRecorded event into the outbox
func (a *App) InsertViolationRecordedEvent(ctx context.Context, sessionID uuid.UUID, payload []byte) error {
	return a.insert(ctx, sessionID, events.TypeViolationRecorded, payload)
}

// InsertSessionStartedEvent inserts a SessionStarted event into the outbox
func (a *App) InsertSessionStartedEvent(ctx context.Context, sessionID uuid.UUID, payload []byte) error {
	return a.insert(ctx, sessionID, events.TypeSessionStarted, payload)
}

// InsertSessionCompletedEvent inserts a SessionCompleted event into the outbox
func (a *App) InsertSessionCompletedEvent(ctx context.Context, sessionID uuid.UUID, payload []byte) error {
	return a.insert(ctx, sessionID, events.TypeSessionCompleted, payload)
}

// InsertSessionTerminatedEvent inserts a SessionTerminated event into the outbox
func (a *App) InsertSessionTerminatedEvent(ctx context.Context, sessionID uuid.UUID, payload []byte) error {
	return a.insert(ctx, sessionID, events.TypeSessionTerminated, payload)
}

func (a *App) insert(ctx context.Context, sessionID uuid.UUID, eventType string, payload []byte) error {
	if err := a.validateEventPayload(payload); err != nil {
		return fmt.Errorf("invalid %s payload: %w", eventType, err)
	}

	if err := a.repo.InsertOutboxEvent(ctx, sessionID, eventType, payload); err != nil {
		return fmt.Errorf("failed to insert %s event: %w", eventType, err)
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Str("event_type", eventType).
		Msg("outbox event inserted")

	return nil
}

// FetchUnsentEvents fetches unsent outbox events
func (a *App) FetchUnsentEvents(ctx context.Context, limit int32) ([]OutboxEvent, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0")
	}

	events, err := a.repo.FetchUnsentOutbox(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent events: %w", err)
	}

	if len(events) > 0 {
		log.Debug().
			Int("count", len(events)).
			Msg("fetched unsent outbox events")
	}

	return events, nil
}

// MarkEventSent marks an outbox event as sent
func (a *App) MarkEventSent(ctx context.Context, eventID uuid.UUID) error {
	if err := a.repo.MarkOutboxSent(ctx, eventID); err != nil {
		return fmt.Errorf("failed to mark event as sent: %w", err)
	}

	log.Debug().
		Str("event_id", eventID.String()).
		Msg("marked outbox event as sent")

	return nil
}

// GetEventByID fetches a specific outbox event by ID
func (a *App) GetEventByID(ctx context.Context, eventID uuid.UUID) (*OutboxEvent, error) {
	event, err := a.repo.FetchOutboxByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch event by ID: %w", err)
	}

	return event, nil
}

// ProcessUnsentEvents runs processor over one batch of unsent events and
// marks each one sent after it succeeds. It returns the number processed.
func (a *App) ProcessUnsentEvents(ctx context.Context, batchSize int32, processor func(event OutboxEvent) error) (int, error) {
	events, err := a.FetchUnsentEvents(ctx, batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch unsent events: %w", err)
	}

	processedCount := 0
	errorCount := 0

	for _, event := range events {
		if err := processor(event); err != nil {
			log.Error().
				Err(err).
				Str("event_id", event.ID.String()).
				Str("event_type", event.EventType).
				Msg("failed to process event")
			errorCount++
			continue
		}

		if err := a.MarkEventSent(ctx, event.ID); err != nil {
			log.Error().
				Err(err).
				Str("event_id", event.ID.String()).
				Msg("failed to mark event as sent after processing")
			errorCount++
			continue
		}

		processedCount++
	}

	if processedCount > 0 || errorCount > 0 {
		log.Info().
			Int("processed", processedCount).
			Int("errors", errorCount).
			Int("total", len(events)).
			Msg("processed unsent events batch")
	}

	return processedCount, nil
}

var errEmptyPayload = errors.New("event payload cannot be empty")

// validateEventPayload validates that the event payload is not empty
func (a *App) validateEventPayload(payload []byte) error {
	if len(payload) == 0 {
		return errEmptyPayload
	}
	return nil
}
