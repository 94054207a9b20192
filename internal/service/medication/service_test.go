package medication

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosewatch/adherence-api/internal/model"
	"github.com/dosewatch/adherence-api/pkg/errors"
)

type fakeMedicationRepo struct {
	medications map[uuid.UUID]*model.Medication
	archived    []uuid.UUID
}

func newFakeMedicationRepo() *fakeMedicationRepo {
	return &fakeMedicationRepo{medications: make(map[uuid.UUID]*model.Medication)}
}

func (r *fakeMedicationRepo) Create(_ context.Context, m *model.Medication) error {
	r.medications[m.ID] = m
	return nil
}

func (r *fakeMedicationRepo) Get(_ context.Context, id uuid.UUID) (*model.Medication, error) {
	return r.medications[id], nil
}

func (r *fakeMedicationRepo) Update(_ context.Context, m *model.Medication) error {
	r.medications[m.ID] = m
	return nil
}

func (r *fakeMedicationRepo) Archive(_ context.Context, id uuid.UUID) error {
	r.archived = append(r.archived, id)
	return nil
}

func (r *fakeMedicationRepo) ListByPatient(_ context.Context, patientID uuid.UUID, activeOnly bool) ([]*model.Medication, error) {
	var out []*model.Medication
	for _, m := range r.medications {
		if m.PatientID != patientID {
			continue
		}
		if activeOnly && !m.Active {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *fakeMedicationRepo) ListActive(context.Context) ([]*model.Medication, error) {
	return nil, nil
}

func TestCreateValidatesTimezone(t *testing.T) {
	svc := NewService(newFakeMedicationRepo())

	_, err := svc.Create(context.Background(), uuid.New(), &model.CreateMedicationRequest{
		Name:         "Metformin",
		Dosage:       "500mg",
		ScheduleHour: 8,
		Timezone:     "Mars/Olympus_Mons",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
}

func TestCreateDefaultsActive(t *testing.T) {
	svc := NewService(newFakeMedicationRepo())

	medication, err := svc.Create(context.Background(), uuid.New(), &model.CreateMedicationRequest{
		Name:           "Metformin",
		Dosage:         "500mg",
		ScheduleHour:   8,
		ScheduleMinute: 30,
		Timezone:       "Europe/Berlin",
	})
	require.NoError(t, err)
	assert.True(t, medication.Active)
	assert.Equal(t, 8, medication.ScheduleHour)
	assert.Equal(t, 30, medication.ScheduleMinute)
}

func TestGetEnforcesOwnership(t *testing.T) {
	repo := newFakeMedicationRepo()
	svc := NewService(repo)

	owner := uuid.New()
	medication, err := svc.Create(context.Background(), owner, &model.CreateMedicationRequest{
		Name: "Metformin", Dosage: "500mg", ScheduleHour: 8,
	})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), uuid.New(), medication.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrOwnership))

	got, err := svc.Get(context.Background(), owner, medication.ID)
	require.NoError(t, err)
	assert.Equal(t, medication.ID, got.ID)
}

func TestGetUnknownMedication(t *testing.T) {
	svc := NewService(newFakeMedicationRepo())

	_, err := svc.Get(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrNotFound))
}

func TestUpdateAppliesPartialChanges(t *testing.T) {
	svc := NewService(newFakeMedicationRepo())

	owner := uuid.New()
	medication, err := svc.Create(context.Background(), owner, &model.CreateMedicationRequest{
		Name: "Metformin", Dosage: "500mg", ScheduleHour: 8,
	})
	require.NoError(t, err)

	hour := 20
	updated, err := svc.Update(context.Background(), owner, medication.ID, &model.UpdateMedicationRequest{
		ScheduleHour: &hour,
	})
	require.NoError(t, err)
	assert.Equal(t, 20, updated.ScheduleHour)
	// Untouched fields survive.
	assert.Equal(t, "Metformin", updated.Name)
	assert.Equal(t, "500mg", updated.Dosage)
}

func TestUpdateRejectsInvalidTimezone(t *testing.T) {
	svc := NewService(newFakeMedicationRepo())

	owner := uuid.New()
	medication, err := svc.Create(context.Background(), owner, &model.CreateMedicationRequest{
		Name: "Metformin", Dosage: "500mg", ScheduleHour: 8,
	})
	require.NoError(t, err)

	bad := "Not/AZone"
	_, err = svc.Update(context.Background(), owner, medication.ID, &model.UpdateMedicationRequest{
		Timezone: &bad,
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
}

func TestArchiveEnforcesOwnership(t *testing.T) {
	repo := newFakeMedicationRepo()
	svc := NewService(repo)

	owner := uuid.New()
	medication, err := svc.Create(context.Background(), owner, &model.CreateMedicationRequest{
		Name: "Metformin", Dosage: "500mg", ScheduleHour: 8,
	})
	require.NoError(t, err)

	err = svc.Archive(context.Background(), uuid.New(), medication.ID)
	require.Error(t, err)
	assert.Empty(t, repo.archived)

	require.NoError(t, svc.Archive(context.Background(), owner, medication.ID))
	assert.Equal(t, []uuid.UUID{medication.ID}, repo.archived)
}

func TestListFiltersActiveOnly(t *testing.T) {
	repo := newFakeMedicationRepo()
	svc := NewService(repo)

	owner := uuid.New()
	active, err := svc.Create(context.Background(), owner, &model.CreateMedicationRequest{
		Name: "Metformin", Dosage: "500mg", ScheduleHour: 8,
	})
	require.NoError(t, err)

	inactive, err := svc.Create(context.Background(), owner, &model.CreateMedicationRequest{
		Name: "Lisinopril", Dosage: "10mg", ScheduleHour: 20,
	})
	require.NoError(t, err)
	off := false
	_, err = svc.Update(context.Background(), owner, inactive.ID, &model.UpdateMedicationRequest{Active: &off})
	require.NoError(t, err)

	onlyActive, err := svc.List(context.Background(), owner, true)
	require.NoError(t, err)
	require.Len(t, onlyActive, 1)
	assert.Equal(t, active.ID, onlyActive[0].ID)

	all, err := svc.List(context.Background(), owner, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
