package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// WindowRepository stores recurring weekly attendance windows.
type WindowRepository interface {
	Create(ctx context.Context, w *WeeklyWindow) error
	GetByID(ctx context.Context, id uuid.UUID) (*WeeklyWindow, error)
	Update(ctx context.Context, w *WeeklyWindow) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	// ListForDay returns the active windows for (specialist, specialty, weekday)
	// ordered by start time.
	ListForDay(ctx context.Context, specialistID, specialtyID uuid.UUID, weekday int) ([]*WeeklyWindow, error)
	ListBySpecialist(ctx context.Context, specialistID uuid.UUID, limit, offset int) ([]*WeeklyWindow, int, error)
}

// ConfigRepository stores per-specialist scheduling configuration.
type ConfigRepository interface {
	// GetBySpecialist returns ErrNotFound when the specialist has no config.
	GetBySpecialist(ctx context.Context, specialistID uuid.UUID) (*SpecialistConfig, error)
	Create(ctx context.Context, cfg *SpecialistConfig) error
	Update(ctx context.Context, cfg *SpecialistConfig) error
}

// BlockRepository stores schedule block-out periods.
type BlockRepository interface {
	Create(ctx context.Context, b *Block) error
	GetByID(ctx context.Context, id uuid.UUID) (*Block, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	// ListActiveOn returns the active blocks whose date range covers date.
	ListActiveOn(ctx context.Context, specialistID uuid.UUID, date time.Time) ([]*Block, error)
	ListBySpecialist(ctx context.Context, specialistID uuid.UUID, limit, offset int) ([]*Block, int, error)
}

// AppointmentRepository is the booking ledger.
type AppointmentRepository interface {
	// Create inserts a new appointment. A unique-violation on the occupying
	// slot index is mapped to ErrSlotConflict.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, a *Appointment) error
	// FindOccupying returns the pending/confirmed appointment at exactly
	// (specialist, date, t), or ErrNotFound.
	FindOccupying(ctx context.Context, specialistID uuid.UUID, date time.Time, t MinuteOfDay) (*Appointment, error)
	// CountOccupying counts pending/confirmed appointments for the specialist
	// on date across all specialties.
	CountOccupying(ctx context.Context, specialistID uuid.UUID, date time.Time) (int, error)
	// LockDay serializes concurrent bookings for (specialist, date) within the
	// surrounding transaction. Outside a transaction it is a no-op.
	LockDay(ctx context.Context, specialistID uuid.UUID, date time.Time) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListBySpecialistDate(ctx context.Context, specialistID uuid.UUID, date time.Time, limit, offset int) ([]*Appointment, int, error)
}

// TxRunner executes fn inside a storage transaction. Repositories invoked with
// the context passed to fn observe and join that transaction, so the whole
// read-validate-insert sequence commits or rolls back as a unit.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
