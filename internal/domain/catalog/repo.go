package catalog

import (
	"context"

	"github.com/google/uuid"
)

// SpecialtyRepository stores the clinic's specialty catalog.
type SpecialtyRepository interface {
	Create(ctx context.Context, s *Specialty) error
	GetByID(ctx context.Context, id uuid.UUID) (*Specialty, error)
	Update(ctx context.Context, s *Specialty) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Specialty, int, error)
}

// AssignmentRepository stores which specialist offers which specialty.
type AssignmentRepository interface {
	// Create inserts an assignment; the (specialist, specialty) pair is unique.
	Create(ctx context.Context, a *SpecialistSpecialty) error
	Get(ctx context.Context, specialistID, specialtyID uuid.UUID) (*SpecialistSpecialty, error)
	Update(ctx context.Context, a *SpecialistSpecialty) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	ListBySpecialist(ctx context.Context, specialistID uuid.UUID) ([]*SpecialistSpecialty, error)
	ListBySpecialty(ctx context.Context, specialtyID uuid.UUID) ([]*SpecialistSpecialty, error)
}
