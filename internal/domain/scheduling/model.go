package scheduling

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// MinuteOfDay is a clock time expressed as minutes after midnight (0..1439).
// It marshals as "HH:MM".
type MinuteOfDay int

// ParseClock parses a strict "HH:MM" string into a MinuteOfDay.
func ParseClock(s string) (MinuteOfDay, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, errH := strconv.Atoi(s[:2])
	m, errM := strconv.Atoi(s[3:])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return MinuteOfDay(h*60 + m), nil
}

func (m MinuteOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

func (m MinuteOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *MinuteOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseClock(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Valid reports whether m falls inside a single day.
func (m MinuteOfDay) Valid() bool { return m >= 0 && m < 24*60 }

// WeekdayIndex maps a date to the scheduling weekday convention: 0=Monday .. 6=Sunday.
func WeekdayIndex(d time.Time) int {
	return (int(d.Weekday()) + 6) % 7
}

// DateOnly truncates t to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WeeklyWindow is one recurring attendance window of a specialist for a
// specialty on a given weekday. A specialist may hold several windows on the
// same weekday (e.g. morning and afternoon) as long as they do not overlap.
type WeeklyWindow struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	SpecialistID uuid.UUID   `db:"specialist_id" json:"specialist_id"`
	SpecialtyID  uuid.UUID   `db:"specialty_id" json:"specialty_id"`
	Weekday      int         `db:"weekday" json:"weekday"` // 0=Monday .. 6=Sunday
	StartTime    MinuteOfDay `db:"start_min" json:"start_time"`
	EndTime      MinuteOfDay `db:"end_min" json:"end_time"`
	SlotMinutes  *int        `db:"slot_minutes" json:"slot_minutes,omitempty"` // overrides config when set
	Active       bool        `db:"active" json:"active"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// Overlaps reports whether two windows share any time on the same weekday.
func (w *WeeklyWindow) Overlaps(other *WeeklyWindow) bool {
	if w.Weekday != other.Weekday {
		return false
	}
	return w.StartTime < other.EndTime && w.EndTime > other.StartTime
}

// Contains reports whether t falls inside [StartTime, EndTime).
func (w *WeeklyWindow) Contains(t MinuteOfDay) bool {
	return t >= w.StartTime && t < w.EndTime
}

// Default values applied when a specialist has no stored configuration yet.
const (
	DefaultSlotMinutes       = 30
	DefaultMaxPatientsPerDay = 20
)

// SpecialistConfig holds per-specialist scheduling parameters. Exactly one
// active row per specialist; created lazily with defaults on first
// administrative access.
type SpecialistConfig struct {
	ID                uuid.UUID `db:"id" json:"id"`
	SpecialistID      uuid.UUID `db:"specialist_id" json:"specialist_id"`
	SlotMinutes       int       `db:"slot_minutes" json:"slot_minutes"`
	MaxPatientsPerDay int       `db:"max_patients_per_day" json:"max_patients_per_day"`
	BufferMinutes     int       `db:"buffer_minutes" json:"buffer_minutes"`
	AllowOverflow     bool      `db:"allow_overflow" json:"allow_overflow"`
	OverflowMax       int       `db:"overflow_max" json:"overflow_max"`
	Active            bool      `db:"active" json:"active"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultConfig returns the configuration used when a specialist has none.
func DefaultConfig(specialistID uuid.UUID) *SpecialistConfig {
	return &SpecialistConfig{
		SpecialistID:      specialistID,
		SlotMinutes:       DefaultSlotMinutes,
		MaxPatientsPerDay: DefaultMaxPatientsPerDay,
		Active:            true,
	}
}

// EffectiveSlotMinutes resolves the slot duration for a window: the window
// override wins, then the specialist configuration, then the global default.
func (w *WeeklyWindow) EffectiveSlotMinutes(cfg *SpecialistConfig) int {
	if w.SlotMinutes != nil && *w.SlotMinutes > 0 {
		return *w.SlotMinutes
	}
	if cfg != nil && cfg.SlotMinutes > 0 {
		return cfg.SlotMinutes
	}
	return DefaultSlotMinutes
}

// Block removes otherwise-available time from a specialist's schedule
// (vacation, absence, maintenance). When TimeStart/TimeEnd are nil the block
// covers the whole of each date in [DateStart, DateEnd]; when both are set it
// covers only that time-of-day sub-range on each date. Setting only one bound
// is invalid input.
type Block struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	SpecialistID uuid.UUID    `db:"specialist_id" json:"specialist_id"`
	DateStart    time.Time    `db:"date_start" json:"date_start"`
	DateEnd      time.Time    `db:"date_end" json:"date_end"`
	TimeStart    *MinuteOfDay `db:"time_start" json:"time_start,omitempty"`
	TimeEnd      *MinuteOfDay `db:"time_end" json:"time_end,omitempty"`
	Reason       string       `db:"reason" json:"reason"`
	Active       bool         `db:"active" json:"active"`
	CreatedBy    *uuid.UUID   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// FullDay reports whether the block covers entire days.
func (b *Block) FullDay() bool { return b.TimeStart == nil && b.TimeEnd == nil }

// Excludes reports whether a slot starting at t is removed by this block.
// Full-day blocks exclude everything; timed blocks exclude slots whose start
// falls inside [TimeStart, TimeEnd).
func (b *Block) Excludes(t MinuteOfDay) bool {
	if b.FullDay() {
		return true
	}
	return t >= *b.TimeStart && t < *b.TimeEnd
}

// AppointmentStatus is the lifecycle state of a booking.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusDone      AppointmentStatus = "done"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Occupying reports whether an appointment in this status consumes a slot and
// counts toward daily capacity.
func (s AppointmentStatus) Occupying() bool {
	return s == StatusPending || s == StatusConfirmed
}

// CanTransitionTo encodes the appointment state machine:
// pending -> confirmed -> done; pending|confirmed -> cancelled.
// Done and cancelled are terminal.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusDone || next == StatusCancelled
	}
	return false
}

// Appointment is one booking in the ledger. Rows are never deleted; a
// cancellation is a status change and the row remains as history.
type Appointment struct {
	ID             uuid.UUID         `db:"id" json:"id"`
	SpecialistID   uuid.UUID         `db:"specialist_id" json:"specialist_id"`
	SpecialtyID    uuid.UUID         `db:"specialty_id" json:"specialty_id"`
	PatientID      uuid.UUID         `db:"patient_id" json:"patient_id"`
	FamilyMemberID *uuid.UUID        `db:"family_member_id" json:"family_member_id,omitempty"`
	Date           time.Time         `db:"date" json:"date"`
	Time           MinuteOfDay       `db:"start_min" json:"time"`
	Status         AppointmentStatus `db:"status" json:"status"`
	Reason         *string           `db:"reason" json:"reason,omitempty"`
	Notes          *string           `db:"notes" json:"notes,omitempty"`
	CancelReason   *string           `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

// Slot is a derived, never-persisted bookable interval for one concrete date.
// It is recomputed on every query because the ledger can change underneath it.
type Slot struct {
	Start         MinuteOfDay `json:"start_time"`
	End           MinuteOfDay `json:"end_time"`
	Available     bool        `json:"available"`
	AppointmentID *uuid.UUID  `json:"appointment_id,omitempty"`
}

// DayAvailability summarizes one date in a horizon scan.
type DayAvailability struct {
	Date           time.Time `json:"date"`
	Weekday        int       `json:"weekday"`
	AvailableCount int       `json:"available_count"`
	TotalCount     int       `json:"total_count"`
}
