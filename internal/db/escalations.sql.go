package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const escalationColumns = `id, analysis_id, session_ref, risk_level, crisis_score, concerns, status, attempts, last_error, created_at, updated_at, notified_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEscalation(row rowScanner) (Escalation, error) {
	var i Escalation
	err := row.Scan(
		&i.ID,
		&i.AnalysisID,
		&i.SessionRef,
		&i.RiskLevel,
		&i.CrisisScore,
		&i.Concerns,
		&i.Status,
		&i.Attempts,
		&i.LastError,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.NotifiedAt,
	)
	return i, err
}

const createEscalation = `-- name: CreateEscalation :one
INSERT INTO escalations (id, analysis_id, session_ref, risk_level, crisis_score, concerns)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + escalationColumns

type CreateEscalationParams struct {
	ID          uuid.UUID             `json:"id"`
	AnalysisID  uuid.UUID             `json:"analysis_id"`
	SessionRef  string                `json:"session_ref"`
	RiskLevel   string                `json:"risk_level"`
	CrisisScore float64               `json:"crisis_score"`
	Concerns    pqtype.NullRawMessage `json:"concerns"`
}

func (q *Queries) CreateEscalation(ctx context.Context, arg CreateEscalationParams) (Escalation, error) {
	row := q.db.QueryRowContext(ctx, createEscalation,
		arg.ID,
		arg.AnalysisID,
		arg.SessionRef,
		arg.RiskLevel,
		arg.CrisisScore,
		arg.Concerns,
	)
	return scanEscalation(row)
}

const getEscalationByID = `-- name: GetEscalationByID :one
SELECT ` + escalationColumns + ` FROM escalations WHERE id = $1`

func (q *Queries) GetEscalationByID(ctx context.Context, id uuid.UUID) (Escalation, error) {
	row := q.db.QueryRowContext(ctx, getEscalationByID, id)
	return scanEscalation(row)
}

const getEscalationForUpdate = `-- name: GetEscalationForUpdate :one
SELECT ` + escalationColumns + ` FROM escalations WHERE id = $1 FOR UPDATE`

func (q *Queries) GetEscalationForUpdate(ctx context.Context, id uuid.UUID) (Escalation, error) {
	row := q.db.QueryRowContext(ctx, getEscalationForUpdate, id)
	return scanEscalation(row)
}

const setEscalationSending = `-- name: SetEscalationSending :one
UPDATE escalations
SET status = 'sending', updated_at = now()
WHERE id = $1
RETURNING ` + escalationColumns

func (q *Queries) SetEscalationSending(ctx context.Context, id uuid.UUID) (Escalation, error) {
	row := q.db.QueryRowContext(ctx, setEscalationSending, id)
	return scanEscalation(row)
}

const releaseEscalation = `-- name: ReleaseEscalation :one
UPDATE escalations
SET status = 'pending', attempts = attempts + 1, last_error = $2, updated_at = now()
WHERE id = $1 AND status = 'sending'
RETURNING ` + escalationColumns

type ReleaseEscalationParams struct {
	ID        uuid.UUID      `json:"id"`
	LastError sql.NullString `json:"last_error"`
}

func (q *Queries) ReleaseEscalation(ctx context.Context, arg ReleaseEscalationParams) (Escalation, error) {
	row := q.db.QueryRowContext(ctx, releaseEscalation, arg.ID, arg.LastError)
	return scanEscalation(row)
}

const markEscalationNotified = `-- name: MarkEscalationNotified :one
UPDATE escalations
SET status = 'notified', notified_at = now(), updated_at = now(), last_error = NULL
WHERE id = $1 AND status = 'sending'
RETURNING ` + escalationColumns

func (q *Queries) MarkEscalationNotified(ctx context.Context, id uuid.UUID) (Escalation, error) {
	row := q.db.QueryRowContext(ctx, markEscalationNotified, id)
	return scanEscalation(row)
}

const markEscalationFailed = `-- name: MarkEscalationFailed :one
UPDATE escalations
SET status = 'failed', last_error = $2, updated_at = now()
WHERE id = $1 AND status IN ('pending', 'sending')
RETURNING ` + escalationColumns

type MarkEscalationFailedParams struct {
	ID        uuid.UUID      `json:"id"`
	LastError sql.NullString `json:"last_error"`
}

func (q *Queries) MarkEscalationFailed(ctx context.Context, arg MarkEscalationFailedParams) (Escalation, error) {
	row := q.db.QueryRowContext(ctx, markEscalationFailed, arg.ID, arg.LastError)
	return scanEscalation(row)
}

const listPendingEscalations = `-- name: ListPendingEscalations :many
SELECT ` + escalationColumns + ` FROM escalations
WHERE (status = 'pending' AND attempts < $1::int)
   OR (status = 'sending' AND updated_at < $2::timestamptz)
ORDER BY created_at
LIMIT 100`

type ListPendingEscalationsParams struct {
	MaxAttempts int32     `json:"max_attempts"`
	StaleBefore time.Time `json:"stale_before"`
}

func (q *Queries) ListPendingEscalations(ctx context.Context, arg ListPendingEscalationsParams) ([]Escalation, error) {
	rows, err := q.db.QueryContext(ctx, listPendingEscalations, arg.MaxAttempts, arg.StaleBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Escalation
	for rows.Next() {
		i, err := scanEscalation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
