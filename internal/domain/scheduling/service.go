package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service implements the scheduling core: slot generation, availability and
// booking validation over the repositories. All date handling is UTC,
// truncated to midnight.
type Service struct {
	windows      WindowRepository
	configs      ConfigRepository
	blocks       BlockRepository
	appointments AppointmentRepository
	tx           TxRunner
	horizonDays  int
	now          func() time.Time
	logger       zerolog.Logger
}

// DefaultHorizonDays bounds the forward scan of NextAvailableDates.
const DefaultHorizonDays = 30

func NewService(windows WindowRepository, configs ConfigRepository, blocks BlockRepository, appointments AppointmentRepository, tx TxRunner, logger zerolog.Logger) *Service {
	return &Service{
		windows:      windows,
		configs:      configs,
		blocks:       blocks,
		appointments: appointments,
		tx:           tx,
		horizonDays:  DefaultHorizonDays,
		now:          time.Now,
		logger:       logger.With().Str("component", "scheduling").Logger(),
	}
}

// WithHorizon overrides the availability scan horizon. Zero or negative values
// are ignored.
func (s *Service) WithHorizon(days int) *Service {
	if days > 0 {
		s.horizonDays = days
	}
	return s
}

// WithClock replaces the wall clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// CreateWindow registers a weekly attention window after checking its bounds
// and that it does not overlap an existing active window for the same
// specialist, specialty and weekday.
func (s *Service) CreateWindow(ctx context.Context, w *WeeklyWindow) error {
	if w.SpecialistID == uuid.Nil || w.SpecialtyID == uuid.Nil {
		return fmt.Errorf("%w: specialist_id and specialty_id are required", ErrInvalidInput)
	}
	if w.Weekday < 0 || w.Weekday > 6 {
		return fmt.Errorf("%w: weekday is out of range", ErrInvalidInput)
	}
	if !w.StartTime.Valid() || !w.EndTime.Valid() {
		return fmt.Errorf("%w: window times are out of range", ErrInvalidInput)
	}
	if w.EndTime <= w.StartTime {
		return fmt.Errorf("%w: end_time must be after start_time", ErrInvalidInput)
	}
	if w.SlotMinutes != nil && *w.SlotMinutes <= 0 {
		return fmt.Errorf("%w: slot_minutes must be positive", ErrInvalidInput)
	}

	existing, err := s.windows.ListForDay(ctx, w.SpecialistID, w.SpecialtyID, w.Weekday)
	if err != nil {
		return fmt.Errorf("list windows: %w", err)
	}
	for _, other := range existing {
		if w.Overlaps(other) {
			return fmt.Errorf("%w: window %s-%s overlaps existing window %s-%s",
				ErrInvalidInput, w.StartTime, w.EndTime, other.StartTime, other.EndTime)
		}
	}

	w.Active = true
	return s.windows.Create(ctx, w)
}

func (s *Service) UpdateWindow(ctx context.Context, w *WeeklyWindow) error {
	if !w.StartTime.Valid() || !w.EndTime.Valid() || w.EndTime <= w.StartTime {
		return fmt.Errorf("%w: invalid window times", ErrInvalidInput)
	}
	return s.windows.Update(ctx, w)
}

func (s *Service) DeactivateWindow(ctx context.Context, id uuid.UUID) error {
	return s.windows.Deactivate(ctx, id)
}

func (s *Service) GetWindow(ctx context.Context, id uuid.UUID) (*WeeklyWindow, error) {
	return s.windows.GetByID(ctx, id)
}

func (s *Service) ListWindows(ctx context.Context, specialistID uuid.UUID, limit, offset int) ([]*WeeklyWindow, int, error) {
	return s.windows.ListBySpecialist(ctx, specialistID, limit, offset)
}

// GetConfig returns the specialist's capacity configuration, lazily creating
// the defaults on first access so admin screens always have a row to edit.
func (s *Service) GetConfig(ctx context.Context, specialistID uuid.UUID) (*SpecialistConfig, error) {
	cfg, err := s.configs.GetBySpecialist(ctx, specialistID)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	cfg = DefaultConfig(specialistID)
	if err := s.configs.Create(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UpdateConfig replaces the specialist's capacity configuration. A zero
// max_patients_per_day is legal and closes the calendar: no slots are offered
// and every booking is rejected for capacity.
func (s *Service) UpdateConfig(ctx context.Context, cfg *SpecialistConfig) error {
	if cfg.SlotMinutes <= 0 {
		return fmt.Errorf("%w: slot_minutes must be positive", ErrInvalidInput)
	}
	if cfg.MaxPatientsPerDay < 0 {
		return fmt.Errorf("%w: max_patients_per_day cannot be negative", ErrInvalidInput)
	}
	if cfg.BufferMinutes < 0 {
		return fmt.Errorf("%w: buffer_minutes cannot be negative", ErrInvalidInput)
	}
	if cfg.OverflowMax < 0 {
		return fmt.Errorf("%w: overflow_max cannot be negative", ErrInvalidInput)
	}
	return s.configs.Update(ctx, cfg)
}

// CreateBlock registers an exclusion. Time bounds come in pairs: a block with
// neither bound covers the whole day, a block with both covers the interval.
func (s *Service) CreateBlock(ctx context.Context, b *Block) error {
	if b.SpecialistID == uuid.Nil {
		return fmt.Errorf("%w: specialist_id is required", ErrInvalidInput)
	}
	if b.DateStart.IsZero() || b.DateEnd.IsZero() {
		return fmt.Errorf("%w: date_start and date_end are required", ErrInvalidInput)
	}
	b.DateStart = DateOnly(b.DateStart)
	b.DateEnd = DateOnly(b.DateEnd)
	if b.DateEnd.Before(b.DateStart) {
		return fmt.Errorf("%w: date_end must not precede date_start", ErrInvalidInput)
	}
	if (b.TimeStart == nil) != (b.TimeEnd == nil) {
		return fmt.Errorf("%w: time_start and time_end must be set together", ErrInvalidInput)
	}
	if b.TimeStart != nil {
		if !b.TimeStart.Valid() || !b.TimeEnd.Valid() || *b.TimeEnd <= *b.TimeStart {
			return fmt.Errorf("%w: invalid block time bounds", ErrInvalidInput)
		}
	}
	if b.Reason == "" {
		return fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}
	b.Active = true
	return s.blocks.Create(ctx, b)
}

func (s *Service) DeactivateBlock(ctx context.Context, id uuid.UUID) error {
	return s.blocks.Deactivate(ctx, id)
}

func (s *Service) ListBlocks(ctx context.Context, specialistID uuid.UUID, limit, offset int) ([]*Block, int, error) {
	return s.blocks.ListBySpecialist(ctx, specialistID, limit, offset)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) ListPatientAppointments(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListDayAppointments(ctx context.Context, specialistID uuid.UUID, date time.Time, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.ListBySpecialistDate(ctx, specialistID, DateOnly(date), limit, offset)
}
