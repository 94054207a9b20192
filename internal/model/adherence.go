package model

// DailyDisciplineRecord is the derived per-day adherence bucket. It is
// computed on read and never persisted.
type DailyDisciplineRecord struct {
	Date       string `json:"date"` // YYYY-MM-DD, patient-local
	Taken      int    `json:"taken"`
	Missed     int    `json:"missed"`
	Pending    int    `json:"pending"`
	Percentage int    `json:"percentage"`
}

// Total returns the number of doses with a recorded outcome that day.
func (r DailyDisciplineRecord) Total() int {
	return r.Taken + r.Missed
}

// AdherenceReport is the dashboard read contract.
type AdherenceReport struct {
	DisciplinePercent int                     `json:"discipline_percent"`
	CurrentStreak     int                     `json:"current_streak"`
	LongestStreak     int                     `json:"longest_streak"`
	AvgDelayMinutes   float64                 `json:"avg_delay_minutes"`
	TakenCount        int                     `json:"taken_count"`
	MissedCount       int                     `json:"missed_count"`
	DailyTrend        []DailyDisciplineRecord `json:"daily_trend"`
}
