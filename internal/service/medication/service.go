package medication

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dosewatch/adherence-api/internal/model"
	"github.com/dosewatch/adherence-api/internal/repository"
	"github.com/dosewatch/adherence-api/pkg/errors"
)

type Service struct {
	medications repository.MedicationRepository
}

func NewService(medications repository.MedicationRepository) *Service {
	return &Service{medications: medications}
}

func (s *Service) Create(ctx context.Context, patientID uuid.UUID, req *model.CreateMedicationRequest) (*model.Medication, error) {
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			return nil, errors.Validation("invalid timezone", err)
		}
	}

	medication := &model.Medication{
		ID:             uuid.New(),
		PatientID:      patientID,
		Name:           req.Name,
		Dosage:         req.Dosage,
		ScheduleHour:   req.ScheduleHour,
		ScheduleMinute: req.ScheduleMinute,
		Timezone:       req.Timezone,
		Active:         true,
	}

	if err := s.medications.Create(ctx, medication); err != nil {
		return nil, errors.Internal(err)
	}
	return medication, nil
}

func (s *Service) Get(ctx context.Context, patientID, id uuid.UUID) (*model.Medication, error) {
	medication, err := s.owned(ctx, patientID, id)
	if err != nil {
		return nil, err
	}
	return medication, nil
}

func (s *Service) List(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*model.Medication, error) {
	medications, err := s.medications.ListByPatient(ctx, patientID, activeOnly)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return medications, nil
}

func (s *Service) Update(ctx context.Context, patientID, id uuid.UUID, req *model.UpdateMedicationRequest) (*model.Medication, error) {
	medication, err := s.owned(ctx, patientID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		medication.Name = *req.Name
	}
	if req.Dosage != nil {
		medication.Dosage = *req.Dosage
	}
	if req.ScheduleHour != nil {
		medication.ScheduleHour = *req.ScheduleHour
	}
	if req.ScheduleMinute != nil {
		medication.ScheduleMinute = *req.ScheduleMinute
	}
	if req.Timezone != nil {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			return nil, errors.Validation("invalid timezone", err)
		}
		medication.Timezone = *req.Timezone
	}
	if req.Active != nil {
		medication.Active = *req.Active
	}

	if err := s.medications.Update(ctx, medication); err != nil {
		return nil, errors.Internal(err)
	}
	return medication, nil
}

// Archive soft-deletes the medication. Historical dose events must stay
// valid, so nothing is destroyed.
func (s *Service) Archive(ctx context.Context, patientID, id uuid.UUID) error {
	if _, err := s.owned(ctx, patientID, id); err != nil {
		return err
	}
	if err := s.medications.Archive(ctx, id); err != nil {
		return errors.Internal(err)
	}
	return nil
}

func (s *Service) owned(ctx context.Context, patientID, id uuid.UUID) (*model.Medication, error) {
	medication, err := s.medications.Get(ctx, id)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if medication == nil {
		return nil, errors.NotFound("medication", nil)
	}
	if medication.PatientID != patientID {
		return nil, errors.Ownership("medication")
	}
	return medication, nil
}
