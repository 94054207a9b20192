package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dosewatch/adherence-api/internal/model"
)

type MedicationRepository interface {
	Create(ctx context.Context, medication *model.Medication) error
	Get(ctx context.Context, id uuid.UUID) (*model.Medication, error)
	Update(ctx context.Context, medication *model.Medication) error
	Archive(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*model.Medication, error)
	ListActive(ctx context.Context) ([]*model.Medication, error)
}

type DoseEventRepository interface {
	// Find returns the event for one occurrence, or nil when none exists.
	Find(ctx context.Context, medicationID uuid.UUID, scheduledAt time.Time) (*model.DoseEvent, error)

	// Upsert writes the event, honoring the uniqueness constraint on
	// (medication_id, scheduled_at): an insert lands, a conflicting write
	// only lands when the existing row is still pending. It reports
	// whether the write was applied.
	Upsert(ctx context.Context, event *model.DoseEvent) (bool, error)

	ListByPatientSince(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*model.DoseEvent, error)
}

type ConnectionRepository interface {
	// ListActiveRelatives resolves the tier-30 fan-out set.
	ListActiveRelatives(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error)
}

type EndpointRepository interface {
	Create(ctx context.Context, endpoint *model.NotificationEndpoint) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.NotificationEndpoint, error)

	// Delete removes the endpoint only when it belongs to userID and
	// reports whether a row was removed.
	Delete(ctx context.Context, id, userID uuid.UUID) (bool, error)
}
