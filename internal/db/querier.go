package db

import (
	"context"

	"github.com/google/uuid"
)

type Querier interface {
	CreateEscalation(ctx context.Context, arg CreateEscalationParams) (Escalation, error)
	GetEscalationByID(ctx context.Context, id uuid.UUID) (Escalation, error)
	GetEscalationForUpdate(ctx context.Context, id uuid.UUID) (Escalation, error)
	ListPendingEscalations(ctx context.Context, arg ListPendingEscalationsParams) ([]Escalation, error)
	MarkEscalationFailed(ctx context.Context, arg MarkEscalationFailedParams) (Escalation, error)
	MarkEscalationNotified(ctx context.Context, id uuid.UUID) (Escalation, error)
	ReleaseEscalation(ctx context.Context, arg ReleaseEscalationParams) (Escalation, error)
	SetEscalationSending(ctx context.Context, id uuid.UUID) (Escalation, error)
}

var _ Querier = (*Queries)(nil)
