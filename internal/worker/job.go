package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/mshauri-counselor-backend/internal/db"
	"github.com/nyashahama/mshauri-counselor-backend/internal/notify"
	"github.com/nyashahama/mshauri-counselor-backend/internal/store"
)

// Job delivers a single escalation alert.
type Job struct {
	ledger store.Ledger
	sender notify.Sender
	logger *slog.Logger

	// staleAfter is how long a row may sit in sending before another worker
	// is allowed to take it over.
	staleAfter time.Duration
	now        func() time.Time
}

// NewJob constructs a Job. staleAfter should comfortably exceed the job
// timeout.
func NewJob(ledger store.Ledger, sender notify.Sender, staleAfter time.Duration, logger *slog.Logger) *Job {
	return &Job{
		ledger:     ledger,
		sender:     sender,
		logger:     logger,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Run executes the delivery for one escalation:
//
//  1. Claim the row (pending → sending).
//  2. Send the supervisor alert.
//  3. Mark it notified, or release it back to pending on send failure.
//
// A claim that fails with store.ErrEscalationNotPending means another worker
// owns or finished the row. The returned error wraps it so the Runner stops
// without retrying.
func (j *Job) Run(ctx context.Context, id uuid.UUID) error {
	log := j.logger.With("escalation_id", id)

	// ── 1. Claim ──────────────────────────────────────────────────────────────
	e, err := j.ledger.ClaimEscalation(ctx, id, j.now().Add(-j.staleAfter))
	if err != nil {
		return fmt.Errorf("job: claim: %w", err)
	}

	// ── 2. Send ───────────────────────────────────────────────────────────────
	if err := j.sender.SendEscalationAlert(ctx, alertFrom(e)); err != nil {
		// Release with a fresh context: ctx may be the reason the send failed.
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, relErr := j.ledger.ReleaseEscalation(relCtx, id, err.Error()); relErr != nil {
			log.Error("job: release after send failure", "error", relErr)
		}
		return fmt.Errorf("job: send alert: %w", err)
	}

	// ── 3. Record delivery ────────────────────────────────────────────────────
	if _, err := j.ledger.MarkEscalationNotified(ctx, id); err != nil {
		// The alert went out. Reporting this as a job error would retry and
		// page the supervisor twice, so log and finish.
		log.Error("job: alert sent but not recorded", "error", err)
		return nil
	}

	log.Info("job: alert delivered", "session_ref", e.SessionRef)
	return nil
}

func alertFrom(e db.Escalation) notify.AlertParams {
	var concerns []string
	if e.Concerns.Valid {
		_ = json.Unmarshal(e.Concerns.RawMessage, &concerns)
	}
	return notify.AlertParams{
		EscalationID: e.ID,
		AnalysisID:   e.AnalysisID,
		SessionRef:   e.SessionRef,
		RiskLevel:    e.RiskLevel,
		CrisisScore:  e.CrisisScore,
		Concerns:     concerns,
		RaisedAt:     e.CreatedAt,
	}
}

// isNotPending reports whether err means there is nothing left to do.
func isNotPending(err error) bool {
	return errors.Is(err, store.ErrEscalationNotPending) || errors.Is(err, store.ErrNotFound)
}
