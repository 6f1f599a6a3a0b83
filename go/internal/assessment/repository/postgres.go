package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/mockdrive/go/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// PostgresConfig holds PostgreSQL pool configuration
type PostgresConfig struct {
	DSN         string
	MaxConns    int32
	MinConns    int32
	MaxLifetime time.Duration
}

// Postgres stores drives, sessions and round progress.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens and pings a pgx pool.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	poolConfig.MaxConns = 25
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MinConns = 2
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	poolConfig.MaxConnLifetime = 30 * time.Minute
	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Migrate applies the idempotent schema.
func (r *Postgres) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (r *Postgres) Ping(ctx context.Context) error { return r.pool.Ping(ctx) }

func (r *Postgres) Close() { r.pool.Close() }

// UpsertDrive writes a drive and replaces its sections.
func (r *Postgres) UpsertDrive(ctx context.Context, d models.Drive, sections []models.SectionDef) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO drives (id, title, default_duration_seconds)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, default_duration_seconds = EXCLUDED.default_duration_seconds`,
			d.ID, d.Title, int(d.DefaultDuration/time.Second))
		if err != nil {
			return fmt.Errorf("failed to upsert drive: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM drive_sections WHERE drive_id = $1`, d.ID); err != nil {
			return fmt.Errorf("failed to clear sections: %w", err)
		}
		for _, s := range sections {
			questions, err := json.Marshal(s.Questions)
			if err != nil {
				return fmt.Errorf("failed to marshal questions: %w", err)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO drive_sections (id, drive_id, round_title, name, kind, order_index, duration_seconds, questions)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				s.ID, d.ID, s.RoundTitle, s.Name, string(s.Kind), s.Order, int(s.Duration/time.Second), questions)
			if err != nil {
				return fmt.Errorf("failed to insert section %s: %w", s.Name, err)
			}
		}
		return nil
	})
}

func (r *Postgres) GetDrive(ctx context.Context, id uuid.UUID) (*models.Drive, error) {
	var d models.Drive
	var secs int
	err := r.pool.QueryRow(ctx, `SELECT id, title, default_duration_seconds, created_at FROM drives WHERE id = $1`, id).
		Scan(&d.ID, &d.Title, &secs, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get drive: %w", err)
	}
	d.DefaultDuration = time.Duration(secs) * time.Second
	return &d, nil
}

func (r *Postgres) ListSectionDefs(ctx context.Context, driveID uuid.UUID) ([]models.SectionDef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, drive_id, round_title, name, kind, order_index, duration_seconds, questions
		FROM drive_sections WHERE drive_id = $1 ORDER BY order_index, name`, driveID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	defer rows.Close()

	var out []models.SectionDef
	for rows.Next() {
		var s models.SectionDef
		var kind string
		var secs int
		var questions []byte
		if err := rows.Scan(&s.ID, &s.DriveID, &s.RoundTitle, &s.Name, &kind, &s.Order, &secs, &questions); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		s.Kind = models.RoundKind(kind)
		s.Duration = time.Duration(secs) * time.Second
		s.Questions = decodeSectionQuestions(s.ID, questions)
		out = append(out, s)
	}
	return out, rows.Err()
}

// decodeSectionQuestions keeps a section with malformed questions so round
// grouping stays stable, but loads it empty.
func decodeSectionQuestions(sectionID uuid.UUID, raw []byte) []models.Question {
	var qs []models.Question
	if err := json.Unmarshal(raw, &qs); err != nil {
		log.Warn().Err(err).Str("section_id", sectionID.String()).Msg("malformed section questions, loading section without questions")
		return nil
	}
	return qs
}

const sessionColumns = `id, candidate_id, drive_id, current_round_index, status, overall_score, created_at, updated_at`

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	var status string
	err := row.Scan(&s.ID, &s.CandidateID, &s.DriveID, &s.CurrentRoundIndex, &status, &s.OverallScore, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Status = models.SessionStatus(status)
	return &s, nil
}

func (r *Postgres) CreateSession(ctx context.Context, candidateID, driveID uuid.UUID) (*models.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, `
		INSERT INTO sessions (id, candidate_id, drive_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING `+sessionColumns,
		uuid.New(), candidateID, driveID, string(models.SessionStatusInProgress)))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

func (r *Postgres) FindOpenSession(ctx context.Context, candidateID, driveID uuid.UUID) (*models.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE candidate_id = $1 AND drive_id = $2 AND status = $3
		ORDER BY created_at DESC LIMIT 1`,
		candidateID, driveID, string(models.SessionStatusInProgress)))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to find open session: %w", err)
	}
	return s, err
}

func (r *Postgres) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, err
}

const progressColumns = `session_id, round_index, status, score, raw_feedback, started_at, completed_at`

func scanProgress(row pgx.Row) (*models.RoundProgress, error) {
	var p models.RoundProgress
	var status string
	err := row.Scan(&p.SessionID, &p.RoundIndex, &status, &p.Score, &p.RawFeedback, &p.StartedAt, &p.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Status = models.RoundStatus(status)
	return &p, nil
}

func (r *Postgres) GetRoundProgress(ctx context.Context, sessionID uuid.UUID, roundIndex int) (*models.RoundProgress, error) {
	p, err := scanProgress(r.pool.QueryRow(ctx,
		`SELECT `+progressColumns+` FROM round_progress WHERE session_id = $1 AND round_index = $2`,
		sessionID, roundIndex))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get round progress: %w", err)
	}
	return p, err
}

func (r *Postgres) ListRoundProgress(ctx context.Context, sessionID uuid.UUID) ([]models.RoundProgress, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+progressColumns+` FROM round_progress WHERE session_id = $1 ORDER BY round_index`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list round progress: %w", err)
	}
	defer rows.Close()

	var out []models.RoundProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round progress: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *Postgres) StartRoundProgress(ctx context.Context, sessionID uuid.UUID, roundIndex int, startedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO round_progress (session_id, round_index, status, started_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, round_index) DO UPDATE
		SET status = EXCLUDED.status, started_at = EXCLUDED.started_at
		WHERE round_progress.status = $5`,
		sessionID, roundIndex, string(models.RoundStatusInProgress), startedAt, string(models.RoundStatusPending))
	if err != nil {
		return fmt.Errorf("failed to start round progress: %w", err)
	}
	return nil
}

// CompleteRound writes the COMPLETED row and advances the session index in
// one transaction. The conditional upsert makes a second completion a no-op.
func (r *Postgres) CompleteRound(ctx context.Context, p models.RoundProgress) (*models.Session, bool, error) {
	var session *models.Session
	applied := false

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO round_progress (session_id, round_index, status, score, raw_feedback, started_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (session_id, round_index) DO UPDATE
			SET status = EXCLUDED.status, score = EXCLUDED.score, raw_feedback = EXCLUDED.raw_feedback,
			    started_at = COALESCE(round_progress.started_at, EXCLUDED.started_at), completed_at = EXCLUDED.completed_at
			WHERE round_progress.status <> $3`,
			p.SessionID, p.RoundIndex, string(models.RoundStatusCompleted), p.Score, p.RawFeedback, p.StartedAt, p.CompletedAt)
		if err != nil {
			return fmt.Errorf("failed to write round progress: %w", err)
		}
		applied = tag.RowsAffected() == 1

		if applied {
			if _, err := tx.Exec(ctx, `
				UPDATE sessions SET current_round_index = GREATEST(current_round_index, $2), updated_at = now()
				WHERE id = $1`, p.SessionID, p.RoundIndex+1); err != nil {
				return fmt.Errorf("failed to advance session: %w", err)
			}
		}

		session, err = scanSession(tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, p.SessionID))
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return session, applied, nil
}

func (r *Postgres) FinalizeSession(ctx context.Context, sessionID uuid.UUID, status models.SessionStatus, overallScore float64) (*models.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, `
		UPDATE sessions SET status = $2, overall_score = $3, updated_at = now()
		WHERE id = $1 AND status = $4
		RETURNING `+sessionColumns,
		sessionID, string(status), overallScore, string(models.SessionStatusInProgress)))
	if errors.Is(err, ErrNotFound) {
		// already final, return it unchanged
		return r.GetSession(ctx, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to finalize session: %w", err)
	}
	return s, nil
}
