package db

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type EscalationStatus string

const (
	EscalationStatusPending  EscalationStatus = "pending"
	EscalationStatusSending  EscalationStatus = "sending"
	EscalationStatusNotified EscalationStatus = "notified"
	EscalationStatusFailed   EscalationStatus = "failed"
)

func (e *EscalationStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = EscalationStatus(s)
	case string:
		*e = EscalationStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for EscalationStatus: %T", src)
	}
	return nil
}

type NullEscalationStatus struct {
	EscalationStatus EscalationStatus `json:"escalation_status"`
	Valid            bool             `json:"valid"` // Valid is true if EscalationStatus is not NULL
}

// Scan implements the Scanner interface.
func (ns *NullEscalationStatus) Scan(value interface{}) error {
	if value == nil {
		ns.EscalationStatus, ns.Valid = "", false
		return nil
	}
	ns.Valid = true
	return ns.EscalationStatus.Scan(value)
}

// Value implements the driver Valuer interface.
func (ns NullEscalationStatus) Value() (driver.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	return string(ns.EscalationStatus), nil
}

type Escalation struct {
	ID          uuid.UUID             `json:"id"`
	AnalysisID  uuid.UUID             `json:"analysis_id"`
	SessionRef  string                `json:"session_ref"`
	RiskLevel   string                `json:"risk_level"`
	CrisisScore float64               `json:"crisis_score"`
	Concerns    pqtype.NullRawMessage `json:"concerns"`
	Status      EscalationStatus      `json:"status"`
	Attempts    int32                 `json:"attempts"`
	LastError   sql.NullString        `json:"last_error"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	NotifiedAt  sql.NullTime          `json:"notified_at"`
}
