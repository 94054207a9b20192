package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dosewatch/adherence-api/internal/model"
	"github.com/dosewatch/adherence-api/internal/repository"
)

type doseEventRepository struct {
	db *sqlx.DB
}

func NewDoseEventRepository(db *sqlx.DB) repository.DoseEventRepository {
	return &doseEventRepository{db: db}
}

func (r *doseEventRepository) Find(ctx context.Context, medicationID uuid.UUID, scheduledAt time.Time) (*model.DoseEvent, error) {
	query := `SELECT * FROM dose_events WHERE medication_id = $1 AND scheduled_at = $2`
	var event model.DoseEvent
	err := r.db.GetContext(ctx, &event, query, medicationID, scheduledAt.UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find dose event: %w", err)
	}
	return &event, nil
}

// Upsert relies on the unique index on (medication_id, scheduled_at). The
// conflict branch only replaces a pending placeholder, so a terminal
// status can never be overwritten no matter how many concurrent writers
// race. The RETURNING clause tells us whether this write landed.
func (r *doseEventRepository) Upsert(ctx context.Context, event *model.DoseEvent) (bool, error) {
	query := `
		INSERT INTO dose_events (id, medication_id, patient_id, scheduled_at, actual_at, status, sync_status, client_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (medication_id, scheduled_at) DO UPDATE
		SET status = EXCLUDED.status,
		    actual_at = EXCLUDED.actual_at,
		    sync_status = EXCLUDED.sync_status,
		    client_id = COALESCE(dose_events.client_id, EXCLUDED.client_id)
		WHERE dose_events.status = 'pending'
		RETURNING id
	`
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var id uuid.UUID
	err := r.db.QueryRowxContext(ctx, query,
		event.ID,
		event.MedicationID,
		event.PatientID,
		event.ScheduledAt.UTC(),
		event.ActualAt,
		event.Status,
		event.SyncStatus,
		event.ClientID,
		event.CreatedAt,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		// A terminal row already holds this occurrence.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to upsert dose event: %w", err)
	}
	event.ID = id
	return true, nil
}

func (r *doseEventRepository) ListByPatientSince(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*model.DoseEvent, error) {
	query := `
		SELECT * FROM dose_events
		WHERE patient_id = $1 AND scheduled_at >= $2
		ORDER BY scheduled_at
	`
	var events []*model.DoseEvent
	err := r.db.SelectContext(ctx, &events, query, patientID, since.UTC())
	return events, err
}
