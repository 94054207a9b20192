package model

import (
	"time"

	"github.com/google/uuid"
)

type ConnectionStatus string

const (
	ConnectionStatusPending  ConnectionStatus = "pending"
	ConnectionStatusActive   ConnectionStatus = "active"
	ConnectionStatusInactive ConnectionStatus = "inactive"
)

// Connection is a confirmed relationship between a patient and a relative.
// Only active connections receive escalation alerts.
type Connection struct {
	ID         uuid.UUID        `json:"id" db:"id"`
	PatientID  uuid.UUID        `json:"patient_id" db:"patient_id"`
	RelativeID uuid.UUID        `json:"relative_id" db:"relative_id"`
	Status     ConnectionStatus `json:"status" db:"status"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at" db:"updated_at"`
}
