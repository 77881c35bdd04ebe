package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/nyashahama/mshauri-counselor-backend/internal/db"
)

// ─── INPUT TYPES ─────────────────────────────────────────────────────────────

// RecordEscalationParams is the anonymised analysis summary written when a
// message is classified critical. There is deliberately no field for the
// message itself.
type RecordEscalationParams struct {
	AnalysisID  uuid.UUID
	SessionRef  string // session_id, else user_id, else the analysis ID
	RiskLevel   string
	CrisisScore float64
	Concerns    []string
}

// ─── ERRORS ──────────────────────────────────────────────────────────────────

var (
	// ErrNotFound is returned when no escalation has the given ID.
	ErrNotFound = errors.New("store: escalation not found")

	// ErrEscalationNotPending is returned when a state transition finds the row
	// in a state that does not allow it, usually because another worker
	// already claimed or finished it. Workers treat it as "nothing to do".
	ErrEscalationNotPending = errors.New("store: escalation is not pending")
)

// ─── LEDGER ──────────────────────────────────────────────────────────────────

// Ledger is the escalation lifecycle the api and worker packages depend on:
//
//	pending ──claim──▶ sending ──notified──▶ notified
//	   ▲                  │
//	   └────release───────┤
//	                      └──failed──▶ failed
type Ledger interface {
	RecordEscalation(ctx context.Context, p RecordEscalationParams) (db.Escalation, error)
	GetEscalation(ctx context.Context, id uuid.UUID) (db.Escalation, error)

	// ClaimEscalation moves a pending row to sending. A row stuck in sending
	// since before staleBefore is also claimable, which recovers work from a
	// crashed process.
	ClaimEscalation(ctx context.Context, id uuid.UUID, staleBefore time.Time) (db.Escalation, error)
	ReleaseEscalation(ctx context.Context, id uuid.UUID, reason string) (db.Escalation, error)
	MarkEscalationNotified(ctx context.Context, id uuid.UUID) (db.Escalation, error)
	MarkEscalationFailed(ctx context.Context, id uuid.UUID, reason string) (db.Escalation, error)

	// ListPendingEscalations returns claimable rows: pending with fewer than
	// maxAttempts attempts, or stale in sending.
	ListPendingEscalations(ctx context.Context, maxAttempts int, staleBefore time.Time) ([]db.Escalation, error)
}

var (
	_ Ledger = (*Store)(nil)
	_ Ledger = (*Memory)(nil)
)

// claimable reports whether e may move to sending.
func claimable(e db.Escalation, staleBefore time.Time) bool {
	switch e.Status {
	case db.EscalationStatusPending:
		return true
	case db.EscalationStatusSending:
		return e.UpdatedAt.Before(staleBefore)
	}
	return false
}

func concernsJSON(concerns []string) (pqtype.NullRawMessage, error) {
	if concerns == nil {
		concerns = []string{}
	}
	raw, err := json.Marshal(concerns)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// ─── POSTGRES ────────────────────────────────────────────────────────────────

// RecordEscalation inserts a new pending escalation.
func (s *Store) RecordEscalation(ctx context.Context, p RecordEscalationParams) (db.Escalation, error) {
	concerns, err := concernsJSON(p.Concerns)
	if err != nil {
		return db.Escalation{}, fmt.Errorf("RecordEscalation: marshal concerns: %w", err)
	}

	e, err := s.q.CreateEscalation(ctx, db.CreateEscalationParams{
		ID:          uuid.New(),
		AnalysisID:  p.AnalysisID,
		SessionRef:  p.SessionRef,
		RiskLevel:   p.RiskLevel,
		CrisisScore: p.CrisisScore,
		Concerns:    concerns,
	})
	if err != nil {
		return db.Escalation{}, fmt.Errorf("RecordEscalation: %w", err)
	}
	return e, nil
}

// GetEscalation reads one row.
func (s *Store) GetEscalation(ctx context.Context, id uuid.UUID) (db.Escalation, error) {
	e, err := s.q.GetEscalationByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return db.Escalation{}, ErrNotFound
	}
	if err != nil {
		return db.Escalation{}, fmt.Errorf("GetEscalation: %w", err)
	}
	return e, nil
}

// ClaimEscalation locks the row, checks it is claimable and moves it to
// sending, all in one serializable transaction. Two workers racing for the
// same row cannot both succeed: the loser sees ErrEscalationNotPending.
func (s *Store) ClaimEscalation(ctx context.Context, id uuid.UUID, staleBefore time.Time) (db.Escalation, error) {
	var claimed db.Escalation

	err := s.withTx(ctx, func(ctx context.Context, q db.Querier) error {
		existing, err := q.GetEscalationForUpdate(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("ClaimEscalation: lock row: %w", err)
		}

		if !claimable(existing, staleBefore) {
			return ErrEscalationNotPending
		}

		updated, err := q.SetEscalationSending(ctx, id)
		if err != nil {
			return fmt.Errorf("ClaimEscalation: set sending: %w", err)
		}
		claimed = updated
		return nil
	})

	if err != nil {
		return db.Escalation{}, err
	}
	return claimed, nil
}

// ReleaseEscalation hands a sending row back to pending after a failed
// delivery attempt and records why.
func (s *Store) ReleaseEscalation(ctx context.Context, id uuid.UUID, reason string) (db.Escalation, error) {
	e, err := s.q.ReleaseEscalation(ctx, db.ReleaseEscalationParams{ID: id, LastError: nullString(reason)})
	return guardedResult("ReleaseEscalation", e, err)
}

// MarkEscalationNotified records a successful delivery.
func (s *Store) MarkEscalationNotified(ctx context.Context, id uuid.UUID) (db.Escalation, error) {
	e, err := s.q.MarkEscalationNotified(ctx, id)
	return guardedResult("MarkEscalationNotified", e, err)
}

// MarkEscalationFailed gives up on a row after the worker exhausted its
// retries. Rows already notified are left alone.
func (s *Store) MarkEscalationFailed(ctx context.Context, id uuid.UUID, reason string) (db.Escalation, error) {
	e, err := s.q.MarkEscalationFailed(ctx, db.MarkEscalationFailedParams{ID: id, LastError: nullString(reason)})
	return guardedResult("MarkEscalationFailed", e, err)
}

// ListPendingEscalations feeds the worker's recovery poller.
func (s *Store) ListPendingEscalations(ctx context.Context, maxAttempts int, staleBefore time.Time) ([]db.Escalation, error) {
	rows, err := s.q.ListPendingEscalations(ctx, db.ListPendingEscalationsParams{
		MaxAttempts: int32(maxAttempts),
		StaleBefore: staleBefore,
	})
	if err != nil {
		return nil, fmt.Errorf("ListPendingEscalations: %w", err)
	}
	return rows, nil
}

// guardedResult maps sql.ErrNoRows from a status-guarded UPDATE to
// ErrEscalationNotPending.
func guardedResult(op string, e db.Escalation, err error) (db.Escalation, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return db.Escalation{}, ErrEscalationNotPending
	}
	if err != nil {
		return db.Escalation{}, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}
