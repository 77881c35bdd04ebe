package escalation_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/mshauri-counselor-backend/internal/analysis"
	"github.com/nyashahama/mshauri-counselor-backend/internal/cache"
	"github.com/nyashahama/mshauri-counselor-backend/internal/db"
	"github.com/nyashahama/mshauri-counselor-backend/internal/escalation"
	"github.com/nyashahama/mshauri-counselor-backend/internal/metrics"
	"github.com/nyashahama/mshauri-counselor-backend/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubEnqueuer struct {
	ids []uuid.UUID
	err error
}

func (e *stubEnqueuer) Enqueue(_ context.Context, id uuid.UUID) error {
	e.ids = append(e.ids, id)
	return e.err
}

type failingDeduper struct{}

func (failingDeduper) Acquire(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis: connection refused")
}

// brokenLedger fails every write.
type brokenLedger struct{ store.Ledger }

func (brokenLedger) RecordEscalation(context.Context, store.RecordEscalationParams) (db.Escalation, error) {
	return db.Escalation{}, errors.New("postgres down")
}

type recordingObserver struct{ outcomes []string }

func (o *recordingObserver) ObserveEscalation(outcome string) {
	o.outcomes = append(o.outcomes, outcome)
}

func critical() analysis.Result {
	return analysis.Result{
		ID:          uuid.New(),
		CrisisScore: 0.5,
		Concerns:    []string{"depression"},
		RiskLevel:   analysis.RiskCritical,
	}
}

type fixture struct {
	ledger   *store.Memory
	enqueuer *stubEnqueuer
	observer *recordingObserver
	raiser   *escalation.Raiser
}

func newFixture(deduper cache.Deduper) *fixture {
	f := &fixture{
		ledger:   store.NewMemory(),
		enqueuer: &stubEnqueuer{},
		observer: &recordingObserver{},
	}
	f.raiser = escalation.NewRaiser(f.ledger, deduper, f.enqueuer, f.observer, time.Minute, discardLogger())
	return f
}

// ─── Raise ───────────────────────────────────────────────────────────────────

func TestRaise_CriticalRecordsAndEnqueues(t *testing.T) {
	f := newFixture(cache.NewMemoryDeduper())
	res := critical()

	if got := f.raiser.Raise(context.Background(), res, "session-1"); got != metrics.OutcomeRaised {
		t.Fatalf("outcome = %q, want %q", got, metrics.OutcomeRaised)
	}
	if len(f.enqueuer.ids) != 1 {
		t.Fatalf("expected 1 enqueued id, got %d", len(f.enqueuer.ids))
	}

	esc, err := f.ledger.GetEscalation(context.Background(), f.enqueuer.ids[0])
	if err != nil {
		t.Fatalf("GetEscalation: %v", err)
	}
	if esc.AnalysisID != res.ID || esc.SessionRef != "session-1" || esc.Status != db.EscalationStatusPending {
		t.Errorf("unexpected escalation: %+v", esc)
	}
}

func TestRaise_NonCriticalIsIgnored(t *testing.T) {
	for _, level := range []analysis.RiskLevel{analysis.RiskLow, analysis.RiskModerate, analysis.RiskHigh} {
		f := newFixture(cache.NewMemoryDeduper())
		res := critical()
		res.RiskLevel = level
		if got := f.raiser.Raise(context.Background(), res, "s"); got != "" {
			t.Errorf("%s: outcome = %q, want empty", level, got)
		}
		if len(f.enqueuer.ids) != 0 || len(f.observer.outcomes) != 0 {
			t.Errorf("%s: expected no side effects", level)
		}
	}
}

func TestRaise_DeduplicatesWithinWindow(t *testing.T) {
	f := newFixture(cache.NewMemoryDeduper())

	first := f.raiser.Raise(context.Background(), critical(), "session-1")
	second := f.raiser.Raise(context.Background(), critical(), "session-1")
	other := f.raiser.Raise(context.Background(), critical(), "session-2")

	if first != metrics.OutcomeRaised || second != metrics.OutcomeDeduplicated || other != metrics.OutcomeRaised {
		t.Errorf("outcomes = %q, %q, %q", first, second, other)
	}
	if len(f.enqueuer.ids) != 2 {
		t.Errorf("expected 2 enqueued, got %d", len(f.enqueuer.ids))
	}
}

func TestRaise_EmptyRefUsesAnalysisID(t *testing.T) {
	f := newFixture(cache.NewMemoryDeduper())
	res := critical()

	f.raiser.Raise(context.Background(), res, "")

	esc, err := f.ledger.GetEscalation(context.Background(), f.enqueuer.ids[0])
	if err != nil {
		t.Fatalf("GetEscalation: %v", err)
	}
	if esc.SessionRef != res.ID.String() {
		t.Errorf("session ref = %q, want analysis id", esc.SessionRef)
	}
}

func TestRaise_DedupeErrorFailsOpen(t *testing.T) {
	f := newFixture(failingDeduper{})
	if got := f.raiser.Raise(context.Background(), critical(), "s"); got != metrics.OutcomeRaised {
		t.Errorf("outcome = %q, want raised", got)
	}
}

func TestRaise_LedgerErrorReportsError(t *testing.T) {
	enq := &stubEnqueuer{}
	obs := &recordingObserver{}
	r := escalation.NewRaiser(brokenLedger{}, cache.NewMemoryDeduper(), enq, obs, time.Minute, discardLogger())

	if got := r.Raise(context.Background(), critical(), "s"); got != metrics.OutcomeError {
		t.Errorf("outcome = %q, want error", got)
	}
	if len(enq.ids) != 0 {
		t.Error("nothing should be enqueued when the record fails")
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != metrics.OutcomeError {
		t.Errorf("observed %v", obs.outcomes)
	}
}

func TestRaise_EnqueueErrorStillRaised(t *testing.T) {
	f := newFixture(cache.NewMemoryDeduper())
	f.enqueuer.err = errors.New("queue full")

	if got := f.raiser.Raise(context.Background(), critical(), "s"); got != metrics.OutcomeRaised {
		t.Errorf("outcome = %q, want raised", got)
	}
	pending, err := f.ledger.ListPendingEscalations(context.Background(), 3, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListPendingEscalations: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("expected row left pending for the poller, got %d", len(pending))
	}
}

func TestRaise_SurvivesCancelledRequest(t *testing.T) {
	f := newFixture(cache.NewMemoryDeduper())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if got := f.raiser.Raise(ctx, critical(), "s"); got != metrics.OutcomeRaised {
		t.Errorf("outcome = %q, want raised", got)
	}
}

// ─── SessionRef ──────────────────────────────────────────────────────────────

func TestSessionRef(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		userID    string
		want      string
	}{
		{"session string", `"abc"`, `"u1"`, "abc"},
		{"falls back to user", ``, `"u1"`, "u1"},
		{"null session", `null`, `"u1"`, "u1"},
		{"numeric user", `null`, `42`, "42"},
		{"object compacted", `{ "a" : 1 }`, ``, `{"a":1}`},
		{"nothing", ``, `null`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := escalation.SessionRef(raw(tt.sessionID), raw(tt.userID))
			if got != tt.want {
				t.Errorf("SessionRef = %q, want %q", got, tt.want)
			}
		})
	}
}

func raw(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}
