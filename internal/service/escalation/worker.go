package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/dosewatch/adherence-api/internal/model"
	"github.com/dosewatch/adherence-api/internal/repository"
	"github.com/dosewatch/adherence-api/internal/service/notification"
	"github.com/dosewatch/adherence-api/pkg/logger"
	"github.com/dosewatch/adherence-api/pkg/metrics"
	"github.com/dosewatch/adherence-api/pkg/queue"
)

type Config struct {
	Concurrency  int
	PollInterval time.Duration
	BatchSize    int
}

// Worker consumes due escalation jobs and decides per tier whether to
// remind, escalate to relatives, or do nothing because the dose is
// already acknowledged. Safe under at-least-once delivery: the missed
// record is guarded by the dose store's uniqueness constraint, not by
// any in-process state.
type Worker struct {
	queue       queue.DelayedQueue
	doses       repository.DoseEventRepository
	connections repository.ConnectionRepository
	notifier    notification.Service
	logger      *logger.Logger
	metrics     *metrics.Metrics
	config      Config

	// Tier-30 fan-out for one patient can repeat across medications
	// within minutes; cache the connection lookup briefly.
	relativeCache *gocache.Cache
}

func NewWorker(
	q queue.DelayedQueue,
	doses repository.DoseEventRepository,
	connections repository.ConnectionRepository,
	notifier notification.Service,
	logger *logger.Logger,
	m *metrics.Metrics,
	config Config,
) *Worker {
	if config.Concurrency <= 0 {
		config.Concurrency = 5
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}

	return &Worker{
		queue:         q,
		doses:         doses,
		connections:   connections,
		notifier:      notifier,
		logger:        logger,
		metrics:       m,
		config:        config,
		relativeCache: gocache.New(2*time.Minute, 5*time.Minute),
	}
}

// Run polls the queue for due jobs and processes them on a bounded pool
// until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	jobs := make(chan queue.Job)

	var wg sync.WaitGroup
	for i := 0; i < w.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				w.process(ctx, job)
			}
		}()
	}

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.logger.Info("Starting escalation worker", "concurrency", w.config.Concurrency)

	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			w.logger.Info("Shutting down escalation worker")
			return
		case now := <-ticker.C:
			due, err := w.queue.Due(ctx, now, w.config.BatchSize)
			if err != nil {
				w.logger.Error(err, "Failed to claim due jobs")
				continue
			}
			for _, job := range due {
				select {
				case jobs <- job:
				case <-ctx.Done():
					close(jobs)
					wg.Wait()
					return
				}
			}
		}
	}
}

func (w *Worker) process(ctx context.Context, raw queue.Job) {
	var job model.EscalationJob
	if err := json.Unmarshal(raw.Payload, &job); err != nil {
		w.logger.Error(err, "Discarding malformed escalation job", "job_key", raw.Key)
		return
	}

	if err := w.HandleJob(ctx, &job); err != nil {
		w.logger.Error(err, "Failed to handle escalation job",
			"job_key", raw.Key, "tier", job.TierMinutes)
	}
}

// HandleJob runs one tier's check-then-act sequence.
func (w *Worker) HandleJob(ctx context.Context, job *model.EscalationJob) error {
	if w.metrics != nil {
		w.metrics.JobsFired.WithLabelValues(strconv.Itoa(job.TierMinutes)).Inc()
	}

	event, err := w.doses.Find(ctx, job.MedicationID, job.ScheduledAt)
	if err != nil {
		return fmt.Errorf("acknowledgment check failed: %w", err)
	}
	if event != nil && event.Status == model.DoseStatusTaken {
		// Already acknowledged; the job lost the cancellation race and
		// that is fine.
		return nil
	}

	if job.TierMinutes < model.FinalTier {
		w.remindPatient(ctx, job)
		return nil
	}

	return w.escalate(ctx, job)
}

func (w *Worker) remindPatient(ctx context.Context, job *model.EscalationJob) {
	payload := &model.NotificationPayload{
		Title: reminderTitle(job.TierMinutes),
		Body:  fmt.Sprintf("%s (%s) was scheduled for %s.", job.Name, job.Dosage, job.ScheduledAt.Format("15:04")),
		Tag:   "dose-reminder:" + job.Key(),
		Data: model.JSONMap{
			"medication_id": job.MedicationID.String(),
			"scheduled_at":  job.ScheduledAt.UTC().Format(time.RFC3339),
			"tier":          job.TierMinutes,
		},
	}

	if err := w.notifier.Notify(ctx, job.PatientID, payload); err != nil {
		// Notification failure never fails the job; the next tier still
		// fires on schedule.
		w.logger.Error(err, "Failed to dispatch patient reminder",
			"patient_id", job.PatientID.String(), "tier", job.TierMinutes)
	}
}

// escalate records a missed dose and alerts active relatives. The upsert
// is what makes duplicate tier-30 deliveries harmless: only the delivery
// whose write lands performs the fan-out.
func (w *Worker) escalate(ctx context.Context, job *model.EscalationJob) error {
	missed := &model.DoseEvent{
		ID:           uuid.New(),
		MedicationID: job.MedicationID,
		PatientID:    job.PatientID,
		ScheduledAt:  job.ScheduledAt,
		Status:       model.DoseStatusMissed,
		SyncStatus:   model.SyncStatusSynced,
	}

	applied, err := w.doses.Upsert(ctx, missed)
	if err != nil {
		return fmt.Errorf("failed to record missed dose: %w", err)
	}
	if !applied {
		// A terminal record already exists for this occurrence, written
		// either by an acknowledgment or by a duplicate delivery of this
		// job.
		return nil
	}

	if w.metrics != nil {
		w.metrics.MissedRecorded.Inc()
	}

	relatives, err := w.activeRelatives(ctx, job.PatientID)
	if err != nil {
		w.logger.Error(err, "Failed to resolve relatives", "patient_id", job.PatientID.String())
		return nil
	}

	payload := &model.NotificationPayload{
		Title: "Missed dose alert",
		Body:  fmt.Sprintf("A dose of %s (%s) scheduled for %s was not taken.", job.Name, job.Dosage, job.ScheduledAt.Format("15:04")),
		Tag:   "missed-dose:" + job.Key(),
		Data: model.JSONMap{
			"medication_id": job.MedicationID.String(),
			"patient_id":    job.PatientID.String(),
			"scheduled_at":  job.ScheduledAt.UTC().Format(time.RFC3339),
		},
	}

	for _, relative := range relatives {
		if err := w.notifier.Notify(ctx, relative, payload); err != nil {
			w.logger.Error(err, "Failed to alert relative", "relative_id", relative.String())
			continue
		}
		if w.metrics != nil {
			w.metrics.RelativeAlerts.Inc()
		}
	}

	return nil
}

func (w *Worker) activeRelatives(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error) {
	if cached, ok := w.relativeCache.Get(patientID.String()); ok {
		return cached.([]uuid.UUID), nil
	}

	relatives, err := w.connections.ListActiveRelatives(ctx, patientID)
	if err != nil {
		return nil, err
	}
	w.relativeCache.Set(patientID.String(), relatives, gocache.DefaultExpiration)
	return relatives, nil
}

func reminderTitle(tier int) string {
	switch tier {
	case 0:
		return "Time for your medication"
	case 10:
		return "Reminder: medication still due"
	default:
		return "Did you forget your medication?"
	}
}
