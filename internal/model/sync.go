package model

import (
	"time"

	"github.com/google/uuid"
)

// MaxSyncBatchSize bounds worst-case reconciliation time per call.
const MaxSyncBatchSize = 100

// SyncItem is one dose event recorded offline on the patient's device.
// LocalID is the client-assigned idempotency key the device uses to mark
// its local copy synced or failed.
type SyncItem struct {
	LocalID      string     `json:"local_id" binding:"required"`
	MedicationID uuid.UUID  `json:"medication_id" binding:"required"`
	ScheduledAt  time.Time  `json:"scheduled_at" binding:"required"`
	ActualAt     *time.Time `json:"actual_at,omitempty"`
	Status       DoseStatus `json:"status" binding:"required,oneof=taken missed pending"`
}

type SyncRequest struct {
	Items []SyncItem `json:"items" binding:"required"`
}

// SyncResponse lists which client entries were merged and which were
// rejected, so the device retries only the failed ones.
type SyncResponse struct {
	Synced []string `json:"synced"`
	Failed []string `json:"failed"`
}
