package model

import (
	"time"

	"github.com/google/uuid"
)

// Medication is one recurring prescription owned by a patient. Archived
// medications stop producing reminders but their dose history stays valid,
// so they are never destroyed.
type Medication struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	PatientID      uuid.UUID  `json:"patient_id" db:"patient_id"`
	Name           string     `json:"name" db:"name"`
	Dosage         string     `json:"dosage" db:"dosage"`
	ScheduleHour   int        `json:"schedule_hour" db:"schedule_hour"`
	ScheduleMinute int        `json:"schedule_minute" db:"schedule_minute"`
	Timezone       string     `json:"timezone" db:"timezone"`
	Active         bool       `json:"active" db:"active"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	ArchivedAt     *time.Time `json:"archived_at,omitempty" db:"archived_at"`
}

// Location resolves the patient-local timezone, falling back to UTC when
// the stored name is missing or invalid.
func (m *Medication) Location() *time.Location {
	if m.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ScheduledFor computes the scheduled instant of the medication's dose on
// the calendar day containing now, in the patient's local time.
func (m *Medication) ScheduledFor(now time.Time) time.Time {
	local := now.In(m.Location())
	return time.Date(local.Year(), local.Month(), local.Day(),
		m.ScheduleHour, m.ScheduleMinute, 0, 0, m.Location())
}

type CreateMedicationRequest struct {
	Name           string `json:"name" binding:"required,max=200"`
	Dosage         string `json:"dosage" binding:"required,max=200"`
	ScheduleHour   int    `json:"schedule_hour" binding:"min=0,max=23"`
	ScheduleMinute int    `json:"schedule_minute" binding:"min=0,max=59"`
	Timezone       string `json:"timezone"`
}

type UpdateMedicationRequest struct {
	Name           *string `json:"name,omitempty"`
	Dosage         *string `json:"dosage,omitempty"`
	ScheduleHour   *int    `json:"schedule_hour,omitempty" binding:"omitempty,min=0,max=23"`
	ScheduleMinute *int    `json:"schedule_minute,omitempty" binding:"omitempty,min=0,max=59"`
	Timezone       *string `json:"timezone,omitempty"`
	Active         *bool   `json:"active,omitempty"`
}
