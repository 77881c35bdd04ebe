package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/mshauri-counselor-backend/internal/db"
)

// Memory is an in-process Ledger with the same state machine as the Postgres
// store. Rows do not survive a restart.
type Memory struct {
	mu   sync.Mutex
	rows map[uuid.UUID]db.Escalation
	now  func() time.Time
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{rows: make(map[uuid.UUID]db.Escalation), now: time.Now}
}

// WithClock overrides the time source. Intended for tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) RecordEscalation(_ context.Context, p RecordEscalationParams) (db.Escalation, error) {
	concerns, err := concernsJSON(p.Concerns)
	if err != nil {
		return db.Escalation{}, fmt.Errorf("RecordEscalation: marshal concerns: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	e := db.Escalation{
		ID:          uuid.New(),
		AnalysisID:  p.AnalysisID,
		SessionRef:  p.SessionRef,
		RiskLevel:   p.RiskLevel,
		CrisisScore: p.CrisisScore,
		Concerns:    concerns,
		Status:      db.EscalationStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.rows[e.ID] = e
	return e, nil
}

func (m *Memory) GetEscalation(_ context.Context, id uuid.UUID) (db.Escalation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.rows[id]
	if !ok {
		return db.Escalation{}, ErrNotFound
	}
	return e, nil
}

func (m *Memory) ClaimEscalation(_ context.Context, id uuid.UUID, staleBefore time.Time) (db.Escalation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.rows[id]
	if !ok {
		return db.Escalation{}, ErrNotFound
	}
	if !claimable(e, staleBefore) {
		return db.Escalation{}, ErrEscalationNotPending
	}
	e.Status = db.EscalationStatusSending
	e.UpdatedAt = m.now().UTC()
	m.rows[id] = e
	return e, nil
}

func (m *Memory) ReleaseEscalation(_ context.Context, id uuid.UUID, reason string) (db.Escalation, error) {
	return m.transition(id, []db.EscalationStatus{db.EscalationStatusSending}, func(e *db.Escalation) {
		e.Status = db.EscalationStatusPending
		e.Attempts++
		e.LastError = nullString(reason)
	})
}

func (m *Memory) MarkEscalationNotified(_ context.Context, id uuid.UUID) (db.Escalation, error) {
	return m.transition(id, []db.EscalationStatus{db.EscalationStatusSending}, func(e *db.Escalation) {
		e.Status = db.EscalationStatusNotified
		e.LastError = sql.NullString{}
		e.NotifiedAt = sql.NullTime{Time: e.UpdatedAt, Valid: true}
	})
}

func (m *Memory) MarkEscalationFailed(_ context.Context, id uuid.UUID, reason string) (db.Escalation, error) {
	from := []db.EscalationStatus{db.EscalationStatusPending, db.EscalationStatusSending}
	return m.transition(id, from, func(e *db.Escalation) {
		e.Status = db.EscalationStatusFailed
		e.LastError = nullString(reason)
	})
}

func (m *Memory) ListPendingEscalations(_ context.Context, maxAttempts int, staleBefore time.Time) ([]db.Escalation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []db.Escalation
	for _, e := range m.rows {
		switch {
		case e.Status == db.EscalationStatusPending && int(e.Attempts) < maxAttempts:
			out = append(out, e)
		case e.Status == db.EscalationStatusSending && e.UpdatedAt.Before(staleBefore):
			out = append(out, e)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

// transition applies fn when the row's status is one of from, mirroring the
// status-guarded UPDATEs of the Postgres store.
func (m *Memory) transition(id uuid.UUID, from []db.EscalationStatus, fn func(*db.Escalation)) (db.Escalation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.rows[id]
	if !ok {
		return db.Escalation{}, ErrEscalationNotPending
	}
	if !slices.Contains(from, e.Status) {
		return db.Escalation{}, ErrEscalationNotPending
	}

	e.UpdatedAt = m.now().UTC()
	fn(&e)
	m.rows[id] = e
	return e, nil
}
