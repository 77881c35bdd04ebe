// Package escalation raises supervisor alerts for critical analyses. Both
// transports call Raise after a successful analyze or chat; the engine itself
// never escalates.
package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nyashahama/mshauri-counselor-backend/internal/analysis"
	"github.com/nyashahama/mshauri-counselor-backend/internal/cache"
	"github.com/nyashahama/mshauri-counselor-backend/internal/metrics"
	"github.com/nyashahama/mshauri-counselor-backend/internal/store"
	"github.com/nyashahama/mshauri-counselor-backend/internal/worker"
)

// DefaultWindow is used when NewRaiser is given a non-positive window.
const DefaultWindow = 15 * time.Minute

// raiseTimeout bounds the dedupe, record and enqueue steps together.
const raiseTimeout = 5 * time.Second

// Escalator is what the transports depend on. *Raiser satisfies it.
type Escalator interface {
	Raise(ctx context.Context, res analysis.Result, sessionRef string) string
}

// Raiser de-duplicates, records and enqueues escalations.
type Raiser struct {
	ledger   store.Ledger
	deduper  cache.Deduper
	enqueuer worker.Enqueuer
	observer worker.Observer
	window   time.Duration
	logger   *slog.Logger
}

// NewRaiser wires a Raiser. observer may be nil.
func NewRaiser(
	ledger store.Ledger,
	deduper cache.Deduper,
	enqueuer worker.Enqueuer,
	observer worker.Observer,
	window time.Duration,
	logger *slog.Logger,
) *Raiser {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Raiser{
		ledger:   ledger,
		deduper:  deduper,
		enqueuer: enqueuer,
		observer: observer,
		window:   window,
		logger:   logger,
	}
}

// Raise escalates res when it is critical and returns the outcome recorded on
// the escalations metric, or "" when nothing was escalated. It never returns
// an error: an escalation problem must not fail the user's request.
func (r *Raiser) Raise(ctx context.Context, res analysis.Result, sessionRef string) string {
	if res.RiskLevel != analysis.RiskCritical {
		return ""
	}
	if sessionRef == "" {
		sessionRef = res.ID.String()
	}

	// Detach from the request so a client hang-up does not drop the alert.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), raiseTimeout)
	defer cancel()

	log := r.logger.With("analysis_id", res.ID, "session_ref", sessionRef)

	acquired, err := r.deduper.Acquire(ctx, cache.EscalationKey(sessionRef), r.window)
	if err != nil {
		// Fail open: a duplicate page is better than a missed one.
		log.Warn("escalation: dedupe unavailable, raising anyway", "error", err)
		acquired = true
	}
	if !acquired {
		log.Info("escalation: suppressed duplicate")
		return r.observe(metrics.OutcomeDeduplicated)
	}

	esc, err := r.ledger.RecordEscalation(ctx, store.RecordEscalationParams{
		AnalysisID:  res.ID,
		SessionRef:  sessionRef,
		RiskLevel:   string(res.RiskLevel),
		CrisisScore: res.CrisisScore,
		Concerns:    res.Concerns,
	})
	if err != nil {
		log.Error("escalation: record failed", "error", err)
		return r.observe(metrics.OutcomeError)
	}

	if err := r.enqueuer.Enqueue(ctx, esc.ID); err != nil {
		// The row is pending; the poller will deliver it.
		log.Warn("escalation: enqueue failed", "escalation_id", esc.ID, "error", err)
	}

	log.Warn("escalation raised", "escalation_id", esc.ID, "crisis_score", res.CrisisScore)
	return r.observe(metrics.OutcomeRaised)
}

func (r *Raiser) observe(outcome string) string {
	if r.observer != nil {
		r.observer.ObserveEscalation(outcome)
	}
	return outcome
}

// SessionRef picks the de-duplication key for a request: the session ID, else
// the user ID, else "" (Raise then falls back to the analysis ID). JSON strings
// are unquoted; any other JSON value is used in its compact encoding.
func SessionRef(sessionID, userID json.RawMessage) string {
	for _, raw := range []json.RawMessage{sessionID, userID} {
		if ref := refFromJSON(raw); ref != "" {
			return ref
		}
	}
	return ""
}

func refFromJSON(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
