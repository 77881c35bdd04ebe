// Package notify delivers crisis escalation alerts to the on-call supervisor
// and provides a Resend-backed implementation.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// AlertParams is everything a supervisor alert may contain. It carries the
// analysis summary only; the user's message is never part of an alert.
type AlertParams struct {
	EscalationID uuid.UUID
	AnalysisID   uuid.UUID
	SessionRef   string
	RiskLevel    string
	CrisisScore  float64
	Concerns     []string
	RaisedAt     time.Time
}

// Sender is the interface the worker uses to deliver alerts. Tests inject a
// stub that records calls without hitting the network.
type Sender interface {
	SendEscalationAlert(ctx context.Context, p AlertParams) error
}

// ─── LOG SENDER ───────────────────────────────────────────────────────────────

type logSender struct {
	logger *slog.Logger
}

// NewLogSender returns a Sender that writes alerts to the log. Used when no
// Resend API key is configured.
func NewLogSender(logger *slog.Logger) Sender {
	return &logSender{logger: logger}
}

func (s *logSender) SendEscalationAlert(_ context.Context, p AlertParams) error {
	s.logger.Warn("crisis escalation",
		"escalation_id", p.EscalationID,
		"analysis_id", p.AnalysisID,
		"session_ref", p.SessionRef,
		"risk_level", p.RiskLevel,
		"crisis_score", p.CrisisScore,
		"concerns", p.Concerns,
		"raised_at", p.RaisedAt,
	)
	return nil
}
