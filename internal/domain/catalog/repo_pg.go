package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agenda/agenda/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Specialty Repository ===========

type specialtyRepoPG struct{ pool *pgxpool.Pool }

func NewSpecialtyRepoPG(pool *pgxpool.Pool) SpecialtyRepository { return &specialtyRepoPG{pool: pool} }

func (r *specialtyRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const specialtyCols = `id, name, description, fee_cents, active, created_at, updated_at`

func scanSpecialty(row pgx.Row) (*Specialty, error) {
	var s Specialty
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.FeeCents, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &s, err
}

func (r *specialtyRepoPG) Create(ctx context.Context, s *Specialty) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO specialty (id, name, description, fee_cents, active)
		VALUES ($1,$2,$3,$4,$5)`,
		s.ID, s.Name, s.Description, s.FeeCents, s.Active)
	return err
}

func (r *specialtyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Specialty, error) {
	return scanSpecialty(r.conn(ctx).QueryRow(ctx, `SELECT `+specialtyCols+` FROM specialty WHERE id = $1`, id))
}

func (r *specialtyRepoPG) Update(ctx context.Context, s *Specialty) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE specialty SET name=$2, description=$3, fee_cents=$4, active=$5, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Name, s.Description, s.FeeCents, s.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *specialtyRepoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE specialty SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *specialtyRepoPG) List(ctx context.Context, limit, offset int) ([]*Specialty, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM specialty WHERE active = TRUE`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+specialtyCols+` FROM specialty WHERE active = TRUE
		ORDER BY name
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Specialty
	for rows.Next() {
		s, err := scanSpecialty(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// =========== Assignment Repository ===========

type assignmentRepoPG struct{ pool *pgxpool.Pool }

func NewAssignmentRepoPG(pool *pgxpool.Pool) AssignmentRepository { return &assignmentRepoPG{pool: pool} }

func (r *assignmentRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const assignmentCols = `id, specialist_id, specialty_id, fee_cents_override, active, created_at`

func scanAssignment(row pgx.Row) (*SpecialistSpecialty, error) {
	var a SpecialistSpecialty
	err := row.Scan(&a.ID, &a.SpecialistID, &a.SpecialtyID, &a.FeeCentsOverride, &a.Active, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (r *assignmentRepoPG) Create(ctx context.Context, a *SpecialistSpecialty) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO specialist_specialty (id, specialist_id, specialty_id, fee_cents_override, active)
		VALUES ($1,$2,$3,$4,$5)`,
		a.ID, a.SpecialistID, a.SpecialtyID, a.FeeCentsOverride, a.Active)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func (r *assignmentRepoPG) Get(ctx context.Context, specialistID, specialtyID uuid.UUID) (*SpecialistSpecialty, error) {
	return scanAssignment(r.conn(ctx).QueryRow(ctx, `
		SELECT `+assignmentCols+` FROM specialist_specialty
		WHERE specialist_id = $1 AND specialty_id = $2 AND active = TRUE`,
		specialistID, specialtyID))
}

func (r *assignmentRepoPG) Update(ctx context.Context, a *SpecialistSpecialty) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE specialist_specialty SET fee_cents_override=$2, active=$3
		WHERE id = $1`,
		a.ID, a.FeeCentsOverride, a.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *assignmentRepoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE specialist_specialty SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *assignmentRepoPG) ListBySpecialist(ctx context.Context, specialistID uuid.UUID) ([]*SpecialistSpecialty, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+assignmentCols+` FROM specialist_specialty
		WHERE specialist_id = $1 AND active = TRUE`, specialistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAssignments(rows)
}

func (r *assignmentRepoPG) ListBySpecialty(ctx context.Context, specialtyID uuid.UUID) ([]*SpecialistSpecialty, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+assignmentCols+` FROM specialist_specialty
		WHERE specialty_id = $1 AND active = TRUE`, specialtyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAssignments(rows)
}

func collectAssignments(rows pgx.Rows) ([]*SpecialistSpecialty, error) {
	var out []*SpecialistSpecialty
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
