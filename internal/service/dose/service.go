package dose

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dosewatch/adherence-api/internal/model"
	"github.com/dosewatch/adherence-api/internal/repository"
	"github.com/dosewatch/adherence-api/pkg/errors"
	"github.com/dosewatch/adherence-api/pkg/logger"
	"github.com/dosewatch/adherence-api/pkg/metrics"
)

// OccurrenceCanceller withdraws pending escalation jobs for one dose
// occurrence.
type OccurrenceCanceller interface {
	CancelOccurrence(ctx context.Context, medicationID uuid.UUID, scheduledAt time.Time) error
}

// Service owns the acknowledgment path and the offline-log reconciler.
type Service struct {
	medications repository.MedicationRepository
	doses       repository.DoseEventRepository
	canceller   OccurrenceCanceller
	logger      *logger.Logger
	metrics     *metrics.Metrics
}

func NewService(
	medications repository.MedicationRepository,
	doses repository.DoseEventRepository,
	canceller OccurrenceCanceller,
	logger *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		medications: medications,
		doses:       doses,
		canceller:   canceller,
		logger:      logger,
		metrics:     m,
	}
}

// Acknowledge marks a dose taken. The store write happens before job
// cancellation: a tier job already in flight that loses the cancellation
// race still observes status=taken on its own check and no-ops.
// Cancellation is an optimization, not the correctness mechanism.
func (s *Service) Acknowledge(ctx context.Context, patientID uuid.UUID, req *model.AcknowledgeDoseRequest) (*model.DoseEvent, error) {
	medication, err := s.medications.Get(ctx, req.MedicationID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if medication == nil {
		return nil, errors.NotFound("medication", nil)
	}
	if medication.PatientID != patientID {
		return nil, errors.Ownership("medication")
	}

	actualAt := time.Now()
	if req.ActualAt != nil {
		actualAt = *req.ActualAt
	}

	event := &model.DoseEvent{
		ID:           uuid.New(),
		MedicationID: req.MedicationID,
		PatientID:    patientID,
		ScheduledAt:  req.ScheduledAt,
		ActualAt:     &actualAt,
		Status:       model.DoseStatusTaken,
		SyncStatus:   model.SyncStatusSynced,
	}

	applied, err := s.doses.Upsert(ctx, event)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if !applied {
		existing, findErr := s.doses.Find(ctx, req.MedicationID, req.ScheduledAt)
		if findErr != nil {
			return nil, errors.Internal(findErr)
		}
		if existing == nil || existing.Status != model.DoseStatusTaken {
			return nil, errors.Conflict("dose already recorded with a different outcome")
		}
		// Duplicate acknowledgment; return the authoritative record.
		event = existing
	}

	s.cancelOccurrence(ctx, req.MedicationID, req.ScheduledAt)
	return event, nil
}

// Reconcile merges a batch of device-recorded dose events into the
// server log. Items succeed or fail individually so a flaky connection
// converges without reprocessing accepted entries.
func (s *Service) Reconcile(ctx context.Context, patientID uuid.UUID, req *model.SyncRequest) (*model.SyncResponse, error) {
	if len(req.Items) > model.MaxSyncBatchSize {
		return nil, errors.Validation(
			fmt.Sprintf("batch exceeds %d items", model.MaxSyncBatchSize), nil)
	}

	if s.metrics != nil {
		s.metrics.SyncBatchSize.Observe(float64(len(req.Items)))
	}

	resp := &model.SyncResponse{
		Synced: make([]string, 0, len(req.Items)),
		Failed: make([]string, 0),
	}

	for i := range req.Items {
		item := &req.Items[i]
		if s.reconcileItem(ctx, patientID, item) {
			resp.Synced = append(resp.Synced, item.LocalID)
			if s.metrics != nil {
				s.metrics.SyncItemsAccepted.Inc()
			}
		} else {
			resp.Failed = append(resp.Failed, item.LocalID)
			if s.metrics != nil {
				s.metrics.SyncItemsRejected.Inc()
			}
		}
	}

	return resp, nil
}

func (s *Service) reconcileItem(ctx context.Context, patientID uuid.UUID, item *model.SyncItem) bool {
	medication, err := s.medications.Get(ctx, item.MedicationID)
	if err != nil {
		s.logger.Error(err, "Failed to look up medication for sync item", "local_id", item.LocalID)
		return false
	}
	if medication == nil || medication.PatientID != patientID {
		s.logger.Warn("Sync item references a medication the requester does not own",
			"local_id", item.LocalID, "medication_id", item.MedicationID.String())
		return false
	}

	event := &model.DoseEvent{
		ID:           uuid.New(),
		MedicationID: item.MedicationID,
		PatientID:    patientID,
		ScheduledAt:  item.ScheduledAt,
		ActualAt:     item.ActualAt,
		Status:       item.Status,
		SyncStatus:   model.SyncStatusReconciled,
		ClientID:     &item.LocalID,
	}

	applied, err := s.doses.Upsert(ctx, event)
	if err != nil {
		s.logger.Error(err, "Failed to write sync item", "local_id", item.LocalID)
		return false
	}

	if !applied {
		existing, findErr := s.doses.Find(ctx, item.MedicationID, item.ScheduledAt)
		if findErr != nil {
			s.logger.Error(findErr, "Failed to read conflicting record", "local_id", item.LocalID)
			return false
		}
		switch {
		case existing == nil:
			return false
		case item.Status == existing.Status || item.Status == model.DoseStatusPending:
			// Duplicate submission or a placeholder the server already
			// resolved; the client can mark its copy synced.
		default:
			// Conflicting terminal statuses: the server record stands,
			// the item is flagged for manual review rather than silently
			// overwritten.
			s.logger.Warn("Sync item conflicts with authoritative record",
				"local_id", item.LocalID,
				"client_status", string(item.Status),
				"server_status", string(existing.Status))
			return false
		}
	}

	if item.Status == model.DoseStatusTaken {
		s.cancelOccurrence(ctx, item.MedicationID, item.ScheduledAt)
	}
	return true
}

func (s *Service) cancelOccurrence(ctx context.Context, medicationID uuid.UUID, scheduledAt time.Time) {
	if err := s.canceller.CancelOccurrence(ctx, medicationID, scheduledAt); err != nil {
		// The escalation worker's own acknowledgment check covers a
		// missed cancellation.
		s.logger.Error(err, "Failed to cancel escalation jobs",
			"medication_id", medicationID.String())
	}
}
