package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Specialty is a medical service offered by the clinic, with its standard
// consultation fee. Money is handled as integer cents.
type Specialty struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	FeeCents    int64     `db:"fee_cents" json:"fee_cents"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SpecialistSpecialty assigns a specialty to a specialist, optionally with a
// fee different from the specialty's standard one.
type SpecialistSpecialty struct {
	ID              uuid.UUID `db:"id" json:"id"`
	SpecialistID    uuid.UUID `db:"specialist_id" json:"specialist_id"`
	SpecialtyID     uuid.UUID `db:"specialty_id" json:"specialty_id"`
	FeeCentsOverride *int64   `db:"fee_cents_override" json:"fee_cents_override,omitempty"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// EffectiveFeeCents resolves the fee for this assignment: the specialist's
// override when present, the specialty's standard fee otherwise.
func (a *SpecialistSpecialty) EffectiveFeeCents(s *Specialty) int64 {
	if a.FeeCentsOverride != nil {
		return *a.FeeCentsOverride
	}
	return s.FeeCents
}
