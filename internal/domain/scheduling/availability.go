package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// SlotsForDate computes the full bookable timeline for a specialist and
// specialty on one concrete date. Out-of-schedule days and unconfigured
// specialists yield an empty list, not an error.
//
// A slot touched by an active block is dropped entirely (treated as
// nonexistent, not shown as unavailable). Once the day's occupying bookings
// reach the daily cap and overflow is disallowed, no slots are offered at all.
func (s *Service) SlotsForDate(ctx context.Context, specialistID, specialtyID uuid.UUID, date time.Time) ([]Slot, error) {
	day := DateOnly(date)
	weekday := WeekdayIndex(day)

	windows, err := s.windows.ListForDay(ctx, specialistID, specialtyID, weekday)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	if len(windows) == 0 {
		return []Slot{}, nil
	}

	cfg, err := s.configs.GetBySpecialist(ctx, specialistID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// No configuration means fully unavailable, deliberately not
			// defaulted.
			return []Slot{}, nil
		}
		return nil, fmt.Errorf("load config: %w", err)
	}

	blocks, err := s.blocks.ListActiveOn(ctx, specialistID, day)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}

	// Capacity is per specialist per day across all specialties.
	occupied, err := s.appointments.CountOccupying(ctx, specialistID, day)
	if err != nil {
		return nil, fmt.Errorf("count occupying: %w", err)
	}
	if occupied >= cfg.MaxPatientsPerDay && !cfg.AllowOverflow {
		return []Slot{}, nil
	}

	sort.Slice(windows, func(i, j int) bool {
		return windows[i].StartTime < windows[j].StartTime
	})

	var out []Slot
	for _, w := range windows {
		for _, slot := range ExpandWindow(w, w.EffectiveSlotMinutes(cfg), cfg.BufferMinutes) {
			if blockedAt(blocks, slot.Start) {
				continue
			}
			existing, err := s.appointments.FindOccupying(ctx, specialistID, day, slot.Start)
			switch {
			case err == nil:
				slot.Available = false
				id := existing.ID
				slot.AppointmentID = &id
			case errors.Is(err, ErrNotFound):
				slot.Available = true
			default:
				return nil, fmt.Errorf("find occupying: %w", err)
			}
			out = append(out, slot)
		}
	}
	if out == nil {
		out = []Slot{}
	}
	return out, nil
}

func blockedAt(blocks []*Block, t MinuteOfDay) bool {
	for _, b := range blocks {
		if b.Excludes(t) {
			return true
		}
	}
	return false
}

// NextAvailableDates scans the next horizonDays starting today and returns the
// dates holding at least one free slot, with counts. The scan is sequential and
// uncached: each day reflects live ledger state.
func (s *Service) NextAvailableDates(ctx context.Context, specialistID, specialtyID uuid.UUID, horizonDays int) ([]DayAvailability, error) {
	if horizonDays <= 0 {
		horizonDays = s.horizonDays
	}

	today := DateOnly(s.now())
	var out []DayAvailability
	for i := 0; i < horizonDays; i++ {
		date := today.AddDate(0, 0, i)
		slots, err := s.SlotsForDate(ctx, specialistID, specialtyID, date)
		if err != nil {
			return nil, err
		}
		available := 0
		for _, sl := range slots {
			if sl.Available {
				available++
			}
		}
		if available > 0 {
			out = append(out, DayAvailability{
				Date:           date,
				Weekday:        WeekdayIndex(date),
				AvailableCount: available,
				TotalCount:     len(slots),
			})
		}
	}
	if out == nil {
		out = []DayAvailability{}
	}
	return out, nil
}
