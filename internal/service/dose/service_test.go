package dose

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosewatch/adherence-api/internal/model"
	"github.com/dosewatch/adherence-api/pkg/errors"
	"github.com/dosewatch/adherence-api/pkg/logger"
)

type fakeMedicationRepo struct {
	medications map[uuid.UUID]*model.Medication
}

func newFakeMedicationRepo(medications ...*model.Medication) *fakeMedicationRepo {
	repo := &fakeMedicationRepo{medications: make(map[uuid.UUID]*model.Medication)}
	for _, m := range medications {
		repo.medications[m.ID] = m
	}
	return repo
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

func (r *fakeMedicationRepo) Archive(context.Context, uuid.UUID) error { return nil }

func (r *fakeMedicationRepo) ListByPatient(context.Context, uuid.UUID, bool) ([]*model.Medication, error) {
	return nil, nil
}

func (r *fakeMedicationRepo) ListActive(context.Context) ([]*model.Medication, error) {
	return nil, nil
}

type fakeDoseRepo struct {
	events map[string]*model.DoseEvent
}

func newFakeDoseRepo() *fakeDoseRepo {
	return &fakeDoseRepo{events: make(map[string]*model.DoseEvent)}
}

func occurrenceKey(medicationID uuid.UUID, scheduledAt time.Time) string {
	return medicationID.String() + ":" + scheduledAt.UTC().Format(time.RFC3339)
}

func (r *fakeDoseRepo) Find(_ context.Context, medicationID uuid.UUID, scheduledAt time.Time) (*model.DoseEvent, error) {
	if event, ok := r.events[occurrenceKey(medicationID, scheduledAt)]; ok {
		copied := *event
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeDoseRepo) Upsert(_ context.Context, event *model.DoseEvent) (bool, error) {
	key := occurrenceKey(event.MedicationID, event.ScheduledAt)
	if existing, ok := r.events[key]; ok && existing.Status.Terminal() {
		return false, nil
	}
	copied := *event
	r.events[key] = &copied
	return true, nil
}

func (r *fakeDoseRepo) ListByPatientSince(context.Context, uuid.UUID, time.Time) ([]*model.DoseEvent, error) {
	return nil, nil
}

type cancelCall struct {
	medicationID uuid.UUID
	scheduledAt  time.Time
}

type fakeCanceller struct {
	calls []cancelCall
	err   error

	// set true once the cancel happens, to assert write-before-cancel
	// ordering against the dose repo
	observed func()
}

func (c *fakeCanceller) CancelOccurrence(_ context.Context, medicationID uuid.UUID, scheduledAt time.Time) error {
	c.calls = append(c.calls, cancelCall{medicationID: medicationID, scheduledAt: scheduledAt})
	if c.observed != nil {
		c.observed()
	}
	return c.err
}

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func testMedication(patientID uuid.UUID) *model.Medication {
	return &model.Medication{
		ID:             uuid.New(),
		PatientID:      patientID,
		Name:           "Lisinopril",
		Dosage:         "10mg",
		ScheduleHour:   8,
		ScheduleMinute: 0,
		Timezone:       "UTC",
		Active:         true,
	}
}

func newTestService(medications *fakeMedicationRepo, doses *fakeDoseRepo, canceller *fakeCanceller) *Service {
	return NewService(medications, doses, canceller, testLogger(), nil)
}

func TestAcknowledgeRecordsTakenAndCancelsJobs(t *testing.T) {
	patientID := uuid.New()
	medication := testMedication(patientID)
	doses := newFakeDoseRepo()
	canceller := &fakeCanceller{}
	svc := newTestService(newFakeMedicationRepo(medication), doses, canceller)

	scheduledAt := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	actualAt := scheduledAt.Add(4 * time.Minute)

	event, err := svc.Acknowledge(context.Background(), patientID, &model.AcknowledgeDoseRequest{
		MedicationID: medication.ID,
		ScheduledAt:  scheduledAt,
		ActualAt:     &actualAt,
	})
	require.NoError(t, err)
	assert.Equal(t, model.DoseStatusTaken, event.Status)
	assert.Equal(t, actualAt, *event.ActualAt)

	require.Len(t, canceller.calls, 1)
	assert.Equal(t, medication.ID, canceller.calls[0].medicationID)
	assert.True(t, scheduledAt.Equal(canceller.calls[0].scheduledAt))
}

func TestAcknowledgeWritesBeforeCancelling(t *testing.T) {
	patientID := uuid.New()
	medication := testMedication(patientID)
	doses := newFakeDoseRepo()

	scheduledAt := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	var statusAtCancel model.DoseStatus
	canceller := &fakeCanceller{}
	canceller.observed = func() {
		event, _ := doses.Find(context.Background(), medication.ID, scheduledAt)
		if event != nil {
			statusAtCancel = event.Status
		}
	}
	svc := newTestService(newFakeMedicationRepo(medication), doses, canceller)

	_, err := svc.Acknowledge(context.Background(), patientID, &model.AcknowledgeDoseRequest{
		MedicationID: medication.ID,
		ScheduledAt:  scheduledAt,
	})
	require.NoError(t, err)
	assert.Equal(t, model.DoseStatusTaken, statusAtCancel)
}

func TestAcknowledgeIsIdempotent(t *testing.T) {
	patientID := uuid.New()
	medication := testMedication(patientID)
	doses := newFakeDoseRepo()
	svc := newTestService(newFakeMedicationRepo(medication), doses, &fakeCanceller{})

	req := &model.AcknowledgeDoseRequest{
		MedicationID: medication.ID,
		ScheduledAt:  time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
	}

	first, err := svc.Acknowledge(context.Background(), patientID, req)
	require.NoError(t, err)
	second, err := svc.Acknowledge(context.Background(), patientID, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, model.DoseStatusTaken, second.Status)
}

func TestAcknowledgeConflictsWithMissedRecord(t *testing.T) {
	patientID := uuid.New()
	medication := testMedication(patientID)
	doses := newFakeDoseRepo()
	svc := newTestService(newFakeMedicationRepo(medication), doses, &fakeCanceller{})

	scheduledAt := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	_, err := doses.Upsert(context.Background(), &model.DoseEvent{
		ID:           uuid.New(),
		MedicationID: medication.ID,
		PatientID:    patientID,
		ScheduledAt:  scheduledAt,
		Status:       model.DoseStatusMissed,
		SyncStatus:   model.SyncStatusSynced,
	})
	require.NoError(t, err)

	_, err = svc.Acknowledge(context.Background(), patientID, &model.AcknowledgeDoseRequest{
		MedicationID: medication.ID,
		ScheduledAt:  scheduledAt,
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConflict))
}

func TestAcknowledgeRejectsForeignMedication(t *testing.T) {
	medication := testMedication(uuid.New())
	svc := newTestService(newFakeMedicationRepo(medication), newFakeDoseRepo(), &fakeCanceller{})

	_, err := svc.Acknowledge(context.Background(), uuid.New(), &model.AcknowledgeDoseRequest{
		MedicationID: medication.ID,
		ScheduledAt:  time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrOwnership))
}

func TestAcknowledgeUnknownMedication(t *testing.T) {
	svc := newTestService(newFakeMedicationRepo(), newFakeDoseRepo(), &fakeCanceller{})

	_, err := svc.Acknowledge(context.Background(), uuid.New(), &model.AcknowledgeDoseRequest{
		MedicationID: uuid.New(),
		ScheduledAt:  time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrNotFound))
}

func TestReconcileRejectsOversizedBatch(t *testing.T) {
	patientID := uuid.New()
	medication := testMedication(patientID)
	svc := newTestService(newFakeMedicationRepo(medication), newFakeDoseRepo(), &fakeCanceller{})

	items := make([]model.SyncItem, model.MaxSyncBatchSize+1)
	for i := range items {
		items[i] = model.SyncItem{
			LocalID:      fmt.Sprintf("local-%d", i),
			MedicationID: medication.ID,
			ScheduledAt:  time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Status:       model.DoseStatusTaken,
		}
	}

	_, err := svc.Reconcile(context.Background(), patientID, &model.SyncRequest{Items: items})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
}

func TestReconcileFullBatch(t *testing.T) {
	patientID := uuid.New()
	medication := testMedication(patientID)
	doses := newFakeDoseRepo()
	svc := newTestService(newFakeMedicationRepo(medication), doses, &fakeCanceller{})

	items := make([]model.SyncItem, model.MaxSyncBatchSize)
	for i := range items {
		items[i] = model.SyncItem{
			LocalID:      fmt.Sprintf("local-%d", i),
			MedicationID: medication.ID,
			ScheduledAt:  time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Status:       model.DoseStatusTaken,
		}
	}

	resp, err := svc.Reconcile(context.Background(), patientID, &model.SyncRequest{Items: items})
	require.NoError(t, err)
	assert.Len(t, resp.Synced, model.MaxSyncBatchSize)
	assert.Empty(t, resp.Failed)
}

func TestReconcilePartialSuccess(t *testing.T) {
	patientID := uuid.New()
	medication := testMedication(patientID)
	foreign := testMedication(uuid.New())
	doses := newFakeDoseRepo()
	svc := newTestService(newFakeMedicationRepo(medication, foreign), doses, &fakeCanceller{})

	scheduledAt := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	resp, err := svc.Reconcile(context.Background(), patientID, &model.SyncRequest{
		Items: []model.SyncItem{
			{LocalID: "a", MedicationID: medication.ID, ScheduledAt: scheduledAt, Status: model.DoseStatusTaken},
			{LocalID: "b", MedicationID: foreign.ID, ScheduledAt: scheduledAt, Status: model.DoseStatusTaken},
			{LocalID: "c", MedicationID: uuid.New(), ScheduledAt: scheduledAt, Status: model.DoseStatusMissed},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, resp.Synced)
	assert.ElementsMatch(t, []string{"b", "c"}, resp.Failed)

	event, err := doses.Find(context.Background(), medication.ID, scheduledAt)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, model.SyncStatusReconciled, event.SyncStatus)
	require.NotNil(t, event.ClientID)
	assert.Equal(t, "a", *event.ClientID)
}

func TestReconcileUpgradesPendingPlaceholder(t *testing.T) {
	patientID := uuid.New()
	medication := testMedication(patientID)
	doses := newFakeDoseRepo()
	svc := newTestService(newFakeMedicationRepo(medication), doses, &fakeCanceller{})

	scheduledAt := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	_, err := doses.Upsert(context.Background(), &model.DoseEvent{
		ID:           uuid.New(),
		MedicationID: medication.ID,
		PatientID:    patientID,
		ScheduledAt:  scheduledAt,
		Status:       model.DoseStatusPending,
		SyncStatus:   model.SyncStatusSynced,
	})
	require.NoError(t, err)

	actualAt := scheduledAt.Add(2 * time.Minute)
	resp, err := svc.Reconcile(context.Background(), patientID, &model.SyncRequest{
		Items: []model.SyncItem{{
			LocalID:      "x",
			MedicationID: medication.ID,
			ScheduledAt:  scheduledAt,
			ActualAt:     &actualAt,
			Status:       model.DoseStatusTaken,
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, resp.Synced)

	event, err := doses.Find(context.Background(), medication.ID, scheduledAt)
	require.NoError(t, err)
	assert.Equal(t, model.DoseStatusTaken, event.Status)
}

func TestReconcileDuplicateStatusIsSynced(t *testing.T) {
	patientID := uuid.New()
	medication := testMedication(patientID)
	doses := newFakeDoseRepo()
	svc := newTestService(newFakeMedicationRepo(medication), doses, &fakeCanceller{})

	scheduledAt := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	_, err := doses.Upsert(context.Background(), &model.DoseEvent{
		ID:           uuid.New(),
		MedicationID: medication.ID,
		PatientID:    patientID,
		ScheduledAt:  scheduledAt,
		Status:       model.DoseStatusTaken,
		SyncStatus:   model.SyncStatusSynced,
	})
	require.NoError(t, err)

	resp, err := svc.Reconcile(context.Background(), patientID, &model.SyncRequest{
		Items: []model.SyncItem{{
			LocalID:      "dup",
			MedicationID: medication.ID,
			ScheduledAt:  scheduledAt,
			Status:       model.DoseStatusTaken,
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"dup"}, resp.Synced)
}

func TestReconcileRejectsConflictingTerminal(t *testing.T) {
	patientID := uuid.New()
	medication := testMedication(patientID)
	doses := newFakeDoseRepo()
	svc := newTestService(newFakeMedicationRepo(medication), doses, &fakeCanceller{})

	scheduledAt := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	_, err := doses.Upsert(context.Background(), &model.DoseEvent{
		ID:           uuid.New(),
		MedicationID: medication.ID,
		PatientID:    patientID,
		ScheduledAt:  scheduledAt,
		Status:       model.DoseStatusMissed,
		SyncStatus:   model.SyncStatusSynced,
	})
	require.NoError(t, err)

	resp, err := svc.Reconcile(context.Background(), patientID, &model.SyncRequest{
		Items: []model.SyncItem{{
			LocalID:      "conflict",
			MedicationID: medication.ID,
			ScheduledAt:  scheduledAt,
			Status:       model.DoseStatusTaken,
		}},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Synced)
	assert.Equal(t, []string{"conflict"}, resp.Failed)

	// The server record stands.
	event, err := doses.Find(context.Background(), medication.ID, scheduledAt)
	require.NoError(t, err)
	assert.Equal(t, model.DoseStatusMissed, event.Status)
}

func TestReconcileCancelsJobsForAcceptedTaken(t *testing.T) {
	patientID := uuid.New()
	medication := testMedication(patientID)
	canceller := &fakeCanceller{}
	svc := newTestService(newFakeMedicationRepo(medication), newFakeDoseRepo(), canceller)

	scheduledAt := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	_, err := svc.Reconcile(context.Background(), patientID, &model.SyncRequest{
		Items: []model.SyncItem{
			{LocalID: "t", MedicationID: medication.ID, ScheduledAt: scheduledAt, Status: model.DoseStatusTaken},
			{LocalID: "m", MedicationID: medication.ID, ScheduledAt: scheduledAt.AddDate(0, 0, -1), Status: model.DoseStatusMissed},
		},
	})
	require.NoError(t, err)

	// Only the taken item withdraws pending jobs.
	require.Len(t, canceller.calls, 1)
	assert.Equal(t, medication.ID, canceller.calls[0].medicationID)
	assert.True(t, scheduledAt.Equal(canceller.calls[0].scheduledAt))
}

func TestCancellationFailureDoesNotFailAcknowledge(t *testing.T) {
	patientID := uuid.New()
	medication := testMedication(patientID)
	canceller := &fakeCanceller{err: fmt.Errorf("redis unavailable")}
	svc := newTestService(newFakeMedicationRepo(medication), newFakeDoseRepo(), canceller)

	event, err := svc.Acknowledge(context.Background(), patientID, &model.AcknowledgeDoseRequest{
		MedicationID: medication.ID,
		ScheduledAt:  time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, model.DoseStatusTaken, event.Status)
}
