package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dosewatch/adherence-api/internal/model"
	"github.com/dosewatch/adherence-api/internal/repository"
	"github.com/dosewatch/adherence-api/pkg/logger"
	"github.com/dosewatch/adherence-api/pkg/metrics"
	"github.com/dosewatch/adherence-api/pkg/queue"
)

const defaultSweepInterval = time.Minute

// Service materializes per-dose escalation jobs from medication schedules
// and withdraws them on acknowledgment. Sweeps are idempotent: the queue
// deduplicates on the occurrence-tier key, so observing the same minute
// twice under restart or clock skew is harmless.
type Service struct {
	medications repository.MedicationRepository
	queue       queue.DelayedQueue
	logger      *logger.Logger
	metrics     *metrics.Metrics
	interval    time.Duration
}

func NewService(medications repository.MedicationRepository, q queue.DelayedQueue, logger *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		medications: medications,
		queue:       q,
		logger:      logger,
		metrics:     m,
		interval:    defaultSweepInterval,
	}
}

// Run sweeps on a fixed period until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Starting reminder scheduler")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Shutting down reminder scheduler")
			return
		case now := <-ticker.C:
			if err := s.Sweep(ctx, now); err != nil {
				s.logger.Error(err, "Sweep failed")
			}
		}
	}
}

// Sweep enqueues today's escalation jobs for every active medication
// whose scheduled time-of-day matches the current minute in the
// patient's local time. Per-medication failures are isolated so one bad
// schedule cannot starve the rest.
func (s *Service) Sweep(ctx context.Context, now time.Time) error {
	var timer *prometheus.Timer
	if s.metrics != nil {
		timer = prometheus.NewTimer(s.metrics.SweepDuration)
		defer timer.ObserveDuration()
	}

	medications, err := s.medications.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active medications: %w", err)
	}

	for _, medication := range medications {
		local := now.In(medication.Location())
		if local.Hour() != medication.ScheduleHour || local.Minute() != medication.ScheduleMinute {
			continue
		}

		scheduledAt := medication.ScheduledFor(now)
		if err := s.EnqueueOccurrence(ctx, medication, scheduledAt, now); err != nil {
			if s.metrics != nil {
				s.metrics.SweepErrors.Inc()
			}
			s.logger.Error(err, "Failed to enqueue occurrence",
				"medication_id", medication.ID.String())
			continue
		}
	}

	return nil
}

// EnqueueOccurrence submits one escalation job per tier. Tiers from
// earlier minutes are skipped rather than fired retroactively; the
// cutoff is the minute boundary, not the instant, because the sweep
// ticker observes the scheduled minute at an arbitrary second and the
// tier-0 job must still go out.
func (s *Service) EnqueueOccurrence(ctx context.Context, medication *model.Medication, scheduledAt, now time.Time) error {
	cutoff := now.Truncate(time.Minute)
	for _, tier := range model.EscalationTiers {
		job := model.EscalationJob{
			MedicationID: medication.ID,
			PatientID:    medication.PatientID,
			ScheduledAt:  scheduledAt,
			TierMinutes:  tier,
			Name:         medication.Name,
			Dosage:       medication.Dosage,
		}

		fireAt := job.FireAt()
		if fireAt.Before(cutoff) {
			continue
		}

		payload, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal escalation job: %w", err)
		}

		added, err := s.queue.Enqueue(ctx, queue.Job{
			Key:     job.Key(),
			Payload: payload,
			FireAt:  fireAt,
		})
		if err != nil {
			return fmt.Errorf("failed to enqueue tier %d: %w", tier, err)
		}

		if s.metrics != nil {
			if added {
				s.metrics.JobsEnqueued.Inc()
			} else {
				s.metrics.JobsDeduped.Inc()
			}
		}
	}

	return nil
}

// CancelOccurrence withdraws all remaining tiers for one occurrence.
// Jobs that already fired or were never scheduled are not an error.
func (s *Service) CancelOccurrence(ctx context.Context, medicationID uuid.UUID, scheduledAt time.Time) error {
	for _, tier := range model.EscalationTiers {
		key := model.EscalationKey(medicationID, scheduledAt, tier)
		if err := s.queue.Remove(ctx, key); err != nil {
			return fmt.Errorf("failed to cancel tier %d: %w", tier, err)
		}
	}

	if s.metrics != nil {
		s.metrics.JobsCancelled.Inc()
	}
	return nil
}
