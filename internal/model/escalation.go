package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EscalationTiers are the reminder delay offsets in minutes from the
// scheduled instant. The final tier records a missed dose and alerts
// relatives.
var EscalationTiers = []int{0, 10, 20, 30}

// FinalTier is the tier that gives up on the patient and escalates.
const FinalTier = 30

// EscalationJob is one scheduled reminder check for one dose occurrence
// at one tier. Its key is also the queue idempotency key.
type EscalationJob struct {
	MedicationID uuid.UUID `json:"medication_id"`
	PatientID    uuid.UUID `json:"patient_id"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	TierMinutes  int       `json:"tier_minutes"`
	Name         string    `json:"name"`
	Dosage       string    `json:"dosage"`
}

// Key returns the idempotency key (medicationId, scheduledAt, tier).
func (j *EscalationJob) Key() string {
	return EscalationKey(j.MedicationID, j.ScheduledAt, j.TierMinutes)
}

// FireAt returns the instant the job should be delivered.
func (j *EscalationJob) FireAt() time.Time {
	return j.ScheduledAt.Add(time.Duration(j.TierMinutes) * time.Minute)
}

// EscalationKey builds the queue key for one occurrence tier. ScheduledAt
// is normalized to UTC unix seconds so the same instant always produces
// the same key regardless of the zone it arrived in.
func EscalationKey(medicationID uuid.UUID, scheduledAt time.Time, tierMinutes int) string {
	return fmt.Sprintf("%s:%d:%d", medicationID, scheduledAt.UTC().Unix(), tierMinutes)
}
