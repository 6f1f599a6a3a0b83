package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/mockdrive/go/internal/models"
	"github.com/mcdev12/mockdrive/go/internal/sqlutil"
	"github.com/sqlc-dev/pqtype"
)

// ViolationLog is the append-only violation table, written over database/sql
// so it shares the connection the outbox relay uses.
type ViolationLog struct {
	db *sql.DB
}

func NewViolationLog(db *sql.DB) *ViolationLog {
	return &ViolationLog{db: db}
}

func (l *ViolationLog) Append(ctx context.Context, v models.Violation) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	meta, err := sqlutil.ToNullRawMessage(v.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode violation metadata: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO violations (id, session_id, round_index, type, occurred_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		v.ID, v.SessionID, v.RoundIndex, string(v.Type), v.Timestamp, meta)
	if err != nil {
		return fmt.Errorf("failed to insert violation: %w", err)
	}
	return nil
}

func (l *ViolationLog) ListViolations(ctx context.Context, sessionID uuid.UUID) ([]models.Violation, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, session_id, round_index, type, occurred_at, metadata
		FROM violations WHERE session_id = $1 ORDER BY occurred_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list violations: %w", err)
	}
	defer rows.Close()

	var out []models.Violation
	for rows.Next() {
		var v models.Violation
		var typ string
		var meta pqtype.NullRawMessage
		if err := rows.Scan(&v.ID, &v.SessionID, &v.RoundIndex, &typ, &v.Timestamp, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		v.Type = models.ViolationType(typ)
		v.Metadata = sqlutil.FromNullRawMessage(meta)
		out = append(out, v)
	}
	return out, rows.Err()
}
