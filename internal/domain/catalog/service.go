package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	specialties SpecialtyRepository
	assignments AssignmentRepository
	logger      zerolog.Logger
}

func NewService(specialties SpecialtyRepository, assignments AssignmentRepository, logger zerolog.Logger) *Service {
	return &Service{
		specialties: specialties,
		assignments: assignments,
		logger:      logger.With().Str("component", "catalog").Logger(),
	}
}

func (s *Service) CreateSpecialty(ctx context.Context, sp *Specialty) error {
	if sp.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if sp.FeeCents < 0 {
		return fmt.Errorf("%w: fee_cents cannot be negative", ErrInvalidInput)
	}
	sp.Active = true
	if err := s.specialties.Create(ctx, sp); err != nil {
		return err
	}
	s.logger.Info().Str("specialty_id", sp.ID.String()).Str("name", sp.Name).Msg("specialty created")
	return nil
}

func (s *Service) GetSpecialty(ctx context.Context, id uuid.UUID) (*Specialty, error) {
	return s.specialties.GetByID(ctx, id)
}

func (s *Service) UpdateSpecialty(ctx context.Context, sp *Specialty) error {
	if sp.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if sp.FeeCents < 0 {
		return fmt.Errorf("%w: fee_cents cannot be negative", ErrInvalidInput)
	}
	return s.specialties.Update(ctx, sp)
}

func (s *Service) DeactivateSpecialty(ctx context.Context, id uuid.UUID) error {
	return s.specialties.Deactivate(ctx, id)
}

func (s *Service) ListSpecialties(ctx context.Context, limit, offset int) ([]*Specialty, int, error) {
	return s.specialties.List(ctx, limit, offset)
}

// Assign links a specialist to a specialty. The specialty must exist and be
// active; the pair must not already be assigned.
func (s *Service) Assign(ctx context.Context, a *SpecialistSpecialty) error {
	if a.SpecialistID == uuid.Nil || a.SpecialtyID == uuid.Nil {
		return fmt.Errorf("%w: specialist_id and specialty_id are required", ErrInvalidInput)
	}
	if a.FeeCentsOverride != nil && *a.FeeCentsOverride < 0 {
		return fmt.Errorf("%w: fee_cents_override cannot be negative", ErrInvalidInput)
	}
	sp, err := s.specialties.GetByID(ctx, a.SpecialtyID)
	if err != nil {
		return err
	}
	if !sp.Active {
		return fmt.Errorf("%w: specialty %s is inactive", ErrInvalidInput, sp.Name)
	}
	a.Active = true
	return s.assignments.Create(ctx, a)
}

func (s *Service) Unassign(ctx context.Context, id uuid.UUID) error {
	return s.assignments.Deactivate(ctx, id)
}

func (s *Service) ListSpecialistSpecialties(ctx context.Context, specialistID uuid.UUID) ([]*SpecialistSpecialty, error) {
	return s.assignments.ListBySpecialist(ctx, specialistID)
}

func (s *Service) ListSpecialtyProviders(ctx context.Context, specialtyID uuid.UUID) ([]*SpecialistSpecialty, error) {
	return s.assignments.ListBySpecialty(ctx, specialtyID)
}

// QuoteFee resolves the fee a patient pays for an appointment with the given
// specialist and specialty, applying the family discount for the given family
// member position.
func (s *Service) QuoteFee(ctx context.Context, specialistID, specialtyID uuid.UUID, familyMemberIndex int) (int64, error) {
	sp, err := s.specialties.GetByID(ctx, specialtyID)
	if err != nil {
		return 0, err
	}
	assignment, err := s.assignments.Get(ctx, specialistID, specialtyID)
	if err != nil {
		return 0, err
	}
	return DiscountedFeeCents(assignment.EffectiveFeeCents(sp), familyMemberIndex), nil
}
