package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `id, mentor_id, scheduled_at, duration_minutes, status, session_type, time_zone,
	is_recurring, allow_rescheduling, require_confirmation, title, description, special_instructions,
	mentee_name, mentee_email, mentee_phone, pending_expires_at, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	var timeZone, title, description, instructions *string

	err := row.Scan(
		&s.ID,
		&s.MentorID,
		&s.ScheduledAt,
		&s.DurationMinutes,
		&s.Status,
		&s.SessionType,
		&timeZone,
		&s.IsRecurring,
		&s.AllowRescheduling,
		&s.RequireConfirmation,
		&title,
		&description,
		&instructions,
		&s.MenteeName,
		&s.MenteeEmail,
		&s.MenteePhone,
		&s.PendingExpiresAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	s.TimeZone = deref(timeZone)
	s.Title = deref(title)
	s.Description = deref(description)
	s.SpecialInstructions = deref(instructions)
	return &s, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func collectSessions(rows pgx.Rows) ([]Session, error) {
	defer rows.Close()

	var result []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) ListByMentor(ctx context.Context, mentorID uuid.UUID) ([]Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM trial_sessions
		WHERE mentor_id = $1
		ORDER BY scheduled_at, id
	`, mentorID)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM trial_sessions
		WHERE id = $1
	`, id)
	return scanSession(row)
}

func (r *PgRepository) Reserve(ctx context.Context, req BookingRequest, to Status, pendingExpiresAt *time.Time) (*Session, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE trial_sessions
		SET status = $2,
		    mentee_name = $3,
		    mentee_email = $4,
		    mentee_phone = $5,
		    pending_expires_at = $6,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'AVAILABLE'
		RETURNING `+sessionColumns,
		req.SessionID, to, req.MenteeName, req.MenteeEmail, nullableString(req.MenteePhone), pendingExpiresAt)

	return scanSession(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Session, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE trial_sessions
		SET status = $2,
		    pending_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+sessionColumns, id, to, from)

	return scanSession(row)
}

func (r *PgRepository) Release(ctx context.Context, id uuid.UUID) (*Session, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE trial_sessions
		SET status = 'AVAILABLE',
		    mentee_name = NULL,
		    mentee_email = NULL,
		    mentee_phone = NULL,
		    pending_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'PENDING_CONFIRMATION'
		RETURNING `+sessionColumns, id)

	return scanSession(row)
}

func (r *PgRepository) FindExpiredPending(ctx context.Context, now time.Time) ([]Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM trial_sessions
		WHERE status = 'PENDING_CONFIRMATION'
		  AND pending_expires_at IS NOT NULL
		  AND pending_expires_at < $1
	`, now)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO session_events (event_type, session_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.SessionID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
