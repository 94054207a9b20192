package adherence

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/dosewatch/adherence-api/internal/model"
	"github.com/dosewatch/adherence-api/internal/repository"
)

// Service derives adherence metrics from dose event history. All
// computations here are pure; the repository is touched only by Report.
type Service struct {
	events repository.DoseEventRepository
}

func NewService(events repository.DoseEventRepository) *Service {
	return &Service{events: events}
}

// Report assembles the dashboard read contract for one patient over the
// trailing window of days, bucketed in loc.
func (s *Service) Report(ctx context.Context, patientID uuid.UUID, days int, loc *time.Location) (*model.AdherenceReport, error) {
	if days <= 0 {
		days = 7
	}
	now := time.Now()
	since := startOfDay(now.In(loc)).AddDate(0, 0, -(days - 1))

	events, err := s.events.ListByPatientSince(ctx, patientID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load dose history: %w", err)
	}

	trend := DailyTrend(events, days, now, loc)
	current, longest := Streaks(trend)
	taken, missed := countOutcomes(events)

	return &model.AdherenceReport{
		DisciplinePercent: Overall(events),
		CurrentStreak:     current,
		LongestStreak:     longest,
		AvgDelayMinutes:   AvgDelayMinutes(events),
		TakenCount:        taken,
		MissedCount:       missed,
		DailyTrend:        trend,
	}, nil
}

// DailyTrend buckets events by patient-local calendar day, producing one
// record per day in the window ending today, including days with no
// recorded doses.
func DailyTrend(events []*model.DoseEvent, days int, now time.Time, loc *time.Location) []model.DailyDisciplineRecord {
	type bucket struct {
		taken, missed, pending int
	}

	buckets := make(map[string]*bucket, days)
	for _, event := range events {
		day := event.ScheduledAt.In(loc).Format("2006-01-02")
		b, ok := buckets[day]
		if !ok {
			b = &bucket{}
			buckets[day] = b
		}
		switch event.Status {
		case model.DoseStatusTaken:
			b.taken++
		case model.DoseStatusMissed:
			b.missed++
		case model.DoseStatusPending:
			b.pending++
		}
	}

	start := startOfDay(now.In(loc)).AddDate(0, 0, -(days - 1))
	records := make([]model.DailyDisciplineRecord, 0, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i).Format("2006-01-02")
		record := model.DailyDisciplineRecord{Date: day}
		if b, ok := buckets[day]; ok {
			record.Taken = b.taken
			record.Missed = b.missed
			record.Pending = b.pending
		}
		record.Percentage = percentage(record.Taken, record.Missed)
		records = append(records, record)
	}
	return records
}

// Streaks walks the daily records chronologically. A day qualifies when
// it has at least one recorded outcome and zero missed doses. Days with
// no outcomes are skipped outright: they neither extend nor break a run.
func Streaks(records []model.DailyDisciplineRecord) (current, longest int) {
	run := 0
	for _, record := range records {
		if record.Total() == 0 {
			continue
		}
		if record.Missed == 0 {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	// The running counter ends at the most recent day with data, which is
	// exactly the trailing streak.
	return run, longest
}

// AvgDelayMinutes averages (actualAt - scheduledAt) over taken events
// that record an actual time. Returns 0 when none qualify.
func AvgDelayMinutes(events []*model.DoseEvent) float64 {
	var sum float64
	var count int
	for _, event := range events {
		if event.Status != model.DoseStatusTaken || event.ActualAt == nil {
			continue
		}
		sum += event.DelayMinutes()
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// Overall computes the aggregate discipline percentage over the window.
func Overall(events []*model.DoseEvent) int {
	taken, missed := countOutcomes(events)
	return percentage(taken, missed)
}

func countOutcomes(events []*model.DoseEvent) (taken, missed int) {
	for _, event := range events {
		switch event.Status {
		case model.DoseStatusTaken:
			taken++
		case model.DoseStatusMissed:
			missed++
		}
	}
	return taken, missed
}

func percentage(taken, missed int) int {
	total := taken + missed
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(taken) / float64(total) * 100))
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
