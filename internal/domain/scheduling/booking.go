package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BookingRequest carries everything needed to create one appointment. Identity
// and payment decisions arrive as opaque inputs; the validator never consults
// ambient session state.
type BookingRequest struct {
	SpecialistID   uuid.UUID   `json:"specialist_id"`
	SpecialtyID    uuid.UUID   `json:"specialty_id"`
	PatientID      uuid.UUID   `json:"patient_id"`
	FamilyMemberID *uuid.UUID  `json:"family_member_id,omitempty"`
	Date           time.Time   `json:"date"`
	Time           MinuteOfDay `json:"time"`
	Reason         *string     `json:"reason,omitempty"`
	// AutoConfirm is supplied by the caller when an external prepaid plan
	// covers the booking; the appointment then starts confirmed instead of
	// pending. Plan bookkeeping happens elsewhere.
	AutoConfirm bool `json:"auto_confirm"`
}

func (r *BookingRequest) validate() error {
	if r.SpecialistID == uuid.Nil {
		return fmt.Errorf("%w: specialist_id is required", ErrInvalidInput)
	}
	if r.SpecialtyID == uuid.Nil {
		return fmt.Errorf("%w: specialty_id is required", ErrInvalidInput)
	}
	if r.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrInvalidInput)
	}
	if r.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if !r.Time.Valid() {
		return fmt.Errorf("%w: time is out of range", ErrInvalidInput)
	}
	return nil
}

// Validate re-derives every booking invariant for the requested slot,
// independently of any slot list the caller may have seen. It returns nil when
// the booking is admissible and a *RejectionError describing the first failed
// check otherwise.
func (s *Service) Validate(ctx context.Context, req BookingRequest) error {
	day := DateOnly(req.Date)

	// 1. The specialist must attend at that weekday and time.
	windows, err := s.windows.ListForDay(ctx, req.SpecialistID, req.SpecialtyID, WeekdayIndex(day))
	if err != nil {
		return fmt.Errorf("list windows: %w", err)
	}
	attended := false
	for _, w := range windows {
		if w.Contains(req.Time) {
			attended = true
			break
		}
	}
	if !attended {
		return reject(RejectNoSchedule, "specialist does not attend at that time")
	}

	// 2. No active block may cover the slot.
	blocks, err := s.blocks.ListActiveOn(ctx, req.SpecialistID, day)
	if err != nil {
		return fmt.Errorf("list blocks: %w", err)
	}
	for _, b := range blocks {
		if b.Excludes(req.Time) {
			return reject(RejectBlocked, fmt.Sprintf("schedule blocked: %s", b.Reason))
		}
	}

	// 3. The exact slot must be free.
	if _, err := s.appointments.FindOccupying(ctx, req.SpecialistID, day, req.Time); err == nil {
		return reject(RejectSlotTaken, "slot already taken")
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("find occupying: %w", err)
	}

	// 4. Daily capacity, counted across all specialties, with the overflow
	// allowance on top when enabled.
	cfg, err := s.configs.GetBySpecialist(ctx, req.SpecialistID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// A windowed time with no configuration never books; the
			// availability side treats this specialist as closed too.
			return reject(RejectCapacity, "specialist is not configured for booking")
		}
		return fmt.Errorf("load config: %w", err)
	}
	occupied, err := s.appointments.CountOccupying(ctx, req.SpecialistID, day)
	if err != nil {
		return fmt.Errorf("count occupying: %w", err)
	}
	if occupied >= cfg.MaxPatientsPerDay {
		if !cfg.AllowOverflow {
			return reject(RejectCapacity, "daily capacity reached")
		}
		if occupied >= cfg.MaxPatientsPerDay+cfg.OverflowMax {
			return reject(RejectOverflowCapacity, "overflow capacity reached")
		}
	}

	return nil
}

// Book validates the request and inserts the appointment atomically. The whole
// read-validate-insert sequence runs inside one transaction with a
// per-(specialist, day) lock, so two concurrent requests for the same slot
// cannot both pass validation; if an insert still loses a race the unique
// index surfaces ErrSlotConflict and the caller re-validates.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	status := StatusPending
	if req.AutoConfirm {
		status = StatusConfirmed
	}

	var appt *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		day := DateOnly(req.Date)
		if err := s.appointments.LockDay(ctx, req.SpecialistID, day); err != nil {
			return fmt.Errorf("lock day: %w", err)
		}
		if err := s.Validate(ctx, req); err != nil {
			return err
		}
		appt = &Appointment{
			SpecialistID:   req.SpecialistID,
			SpecialtyID:    req.SpecialtyID,
			PatientID:      req.PatientID,
			FamilyMemberID: req.FamilyMemberID,
			Date:           day,
			Time:           req.Time,
			Status:         status,
			Reason:         req.Reason,
		}
		return s.appointments.Create(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("specialist_id", req.SpecialistID.String()).
		Str("date", appt.Date.Format("2006-01-02")).
		Str("time", appt.Time.String()).
		Str("status", string(appt.Status)).
		Msg("appointment booked")
	return appt, nil
}

// Confirm moves a pending appointment to confirmed (payment approved or an
// administrative override).
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusConfirmed, nil)
}

// Cancel releases the slot. The row stays in the ledger as history.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	var cancelReason *string
	if reason != "" {
		cancelReason = &reason
	}
	return s.transition(ctx, id, StatusCancelled, cancelReason)
}

// MarkDone records that the patient was attended.
func (s *Service) MarkDone(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusDone, nil)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, next AppointmentStatus, cancelReason *string) (*Appointment, error) {
	var appt *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !a.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: cannot move appointment from %s to %s", ErrInvalidTransition, a.Status, next)
		}
		a.Status = next
		if cancelReason != nil {
			a.CancelReason = cancelReason
		}
		if err := s.appointments.UpdateStatus(ctx, a); err != nil {
			return err
		}
		appt = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return appt, nil
}
