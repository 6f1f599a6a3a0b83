package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/mockdrive/go/internal/sqlutil"
)

// ErrEventNotFound is returned when an event is missing or already sent.
var ErrEventNotFound = errors.New("outbox event not found or already sent")

// Repository stores outbox rows in the assessment_outbox table.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) InsertOutboxEvent(ctx context.Context, sessionID uuid.UUID, eventType string, payload []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO assessment_outbox (id, session_id, event_type, payload) VALUES ($1, $2, $3, $4)`,
		uuid.New(), sessionID, eventType, payload)
	if err != nil {
		return fmt.Errorf("failed to insert %s outbox event: %w", eventType, err)
	}
	return nil
}

func scanEvent(row interface{ Scan(dest ...any) error }) (*OutboxEvent, error) {
	var (
		e       OutboxEvent
		payload []byte
		sentAt  sql.NullTime
	)
	if err := row.Scan(&e.ID, &e.SessionID, &e.EventType, &payload, &e.CreatedAt, &sentAt); err != nil {
		return nil, err
	}
	e.Payload = payload
	e.SentAt = sqlutil.FromNullTime(sentAt)
	return &e, nil
}

const selectEvent = `SELECT id, session_id, event_type, payload, created_at, sent_at FROM assessment_outbox`

func (r *Repository) FetchUnsentOutbox(ctx context.Context, limit int32) ([]OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, selectEvent+` WHERE sent_at IS NULL ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var out []OutboxEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *Repository) MarkOutboxSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE assessment_outbox SET sent_at = now() WHERE id = $1 AND sent_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event as sent: %w", err)
	}
	return nil
}

func (r *Repository) FetchOutboxByID(ctx context.Context, id uuid.UUID) (*OutboxEvent, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx, selectEvent+` WHERE id = $1 AND sent_at IS NULL`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to fetch outbox event by ID: %w", err)
	}
	return e, nil
}

// CountPending returns the number of rows not yet relayed.
func (r *Repository) CountPending(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assessment_outbox WHERE sent_at IS NULL`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending outbox events: %w", err)
	}
	return count, nil
}

// PublishPending locks up to limit unsent rows, hands each to publish and
// marks the ones that succeeded, all in one transaction. Rows locked by
// another relay are skipped.
func (r *Repository) PublishPending(ctx context.Context, limit int32, publish func(OutboxEvent) error) (int, error) {
	sent := 0
	err := sqlutil.RunTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			selectEvent+` WHERE sent_at IS NULL ORDER BY created_at LIMIT $1 FOR UPDATE SKIP LOCKED`, limit)
		if err != nil {
			return fmt.Errorf("failed to claim outbox events: %w", err)
		}
		var pending []OutboxEvent
		for rows.Next() {
			e, err := scanEvent(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan outbox event: %w", err)
			}
			pending = append(pending, *e)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, e := range pending {
			if err := publish(e); err != nil {
				continue
			}
			if _, err := tx.ExecContext(ctx, `UPDATE assessment_outbox SET sent_at = now() WHERE id = $1`, e.ID); err != nil {
				return fmt.Errorf("failed to mark outbox event as sent: %w", err)
			}
			sent++
		}
		return nil
	})
	return sent, err
}
