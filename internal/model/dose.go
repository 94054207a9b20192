package model

import (
	"time"

	"github.com/google/uuid"
)

type DoseStatus string

const (
	DoseStatusTaken   DoseStatus = "taken"
	DoseStatusMissed  DoseStatus = "missed"
	DoseStatusPending DoseStatus = "pending"
)

// Terminal reports whether the status is authoritative. A terminal status
// is never overwritten; only a pending placeholder may be upgraded.
func (s DoseStatus) Terminal() bool {
	return s == DoseStatusTaken || s == DoseStatusMissed
}

type SyncStatus string

const (
	SyncStatusSynced        SyncStatus = "synced"
	SyncStatusPendingClient SyncStatus = "pending_client"
	SyncStatusReconciled    SyncStatus = "reconciled"
)

// DoseEvent records the outcome of one dose occurrence. At most one event
// with a terminal status exists per (medication_id, scheduled_at); the
// database enforces that, not the application.
type DoseEvent struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	MedicationID uuid.UUID  `json:"medication_id" db:"medication_id"`
	PatientID    uuid.UUID  `json:"patient_id" db:"patient_id"`
	ScheduledAt  time.Time  `json:"scheduled_at" db:"scheduled_at"`
	ActualAt     *time.Time `json:"actual_at,omitempty" db:"actual_at"`
	Status       DoseStatus `json:"status" db:"status"`
	SyncStatus   SyncStatus `json:"sync_status" db:"sync_status"`
	ClientID     *string    `json:"client_id,omitempty" db:"client_id"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// DelayMinutes returns how late the dose was taken, in minutes.
func (e *DoseEvent) DelayMinutes() float64 {
	if e.ActualAt == nil {
		return 0
	}
	return e.ActualAt.Sub(e.ScheduledAt).Minutes()
}

type AcknowledgeDoseRequest struct {
	MedicationID uuid.UUID  `json:"medication_id" binding:"required"`
	ScheduledAt  time.Time  `json:"scheduled_at" binding:"required"`
	ActualAt     *time.Time `json:"actual_at,omitempty"`
}
