package scheduling

import (
	"context"
	"errors"
	"hash/fnv"
	"time"

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

// =========== Weekly Window Repository ===========

type windowRepoPG struct{ pool *pgxpool.Pool }

func NewWindowRepoPG(pool *pgxpool.Pool) WindowRepository { return &windowRepoPG{pool: pool} }

func (r *windowRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const windowCols = `id, specialist_id, specialty_id, weekday, start_min, end_min,
	slot_minutes, active, created_at, updated_at`

func scanWindow(row pgx.Row) (*WeeklyWindow, error) {
	var w WeeklyWindow
	err := row.Scan(&w.ID, &w.SpecialistID, &w.SpecialtyID, &w.Weekday, &w.StartTime, &w.EndTime,
		&w.SlotMinutes, &w.Active, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &w, err
}

func (r *windowRepoPG) Create(ctx context.Context, w *WeeklyWindow) error {
	w.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO weekly_window (id, specialist_id, specialty_id, weekday, start_min, end_min, slot_minutes, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		w.ID, w.SpecialistID, w.SpecialtyID, w.Weekday, w.StartTime, w.EndTime, w.SlotMinutes, w.Active)
	return err
}

func (r *windowRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*WeeklyWindow, error) {
	return scanWindow(r.conn(ctx).QueryRow(ctx, `SELECT `+windowCols+` FROM weekly_window WHERE id = $1`, id))
}

func (r *windowRepoPG) Update(ctx context.Context, w *WeeklyWindow) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE weekly_window SET weekday=$2, start_min=$3, end_min=$4, slot_minutes=$5, active=$6, updated_at=NOW()
		WHERE id = $1`,
		w.ID, w.Weekday, w.StartTime, w.EndTime, w.SlotMinutes, w.Active)
	return err
}

func (r *windowRepoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE weekly_window SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *windowRepoPG) ListForDay(ctx context.Context, specialistID, specialtyID uuid.UUID, weekday int) ([]*WeeklyWindow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+windowCols+` FROM weekly_window
		WHERE specialist_id = $1 AND specialty_id = $2 AND weekday = $3 AND active = TRUE
		ORDER BY start_min`,
		specialistID, specialtyID, weekday)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWindows(rows)
}

func (r *windowRepoPG) ListBySpecialist(ctx context.Context, specialistID uuid.UUID, limit, offset int) ([]*WeeklyWindow, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM weekly_window WHERE specialist_id = $1 AND active = TRUE`,
		specialistID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+windowCols+` FROM weekly_window
		WHERE specialist_id = $1 AND active = TRUE
		ORDER BY weekday, start_min
		LIMIT $2 OFFSET $3`,
		specialistID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	windows, err := collectWindows(rows)
	return windows, total, err
}

func collectWindows(rows pgx.Rows) ([]*WeeklyWindow, error) {
	var out []*WeeklyWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// =========== Specialist Config Repository ===========

type configRepoPG struct{ pool *pgxpool.Pool }

func NewConfigRepoPG(pool *pgxpool.Pool) ConfigRepository { return &configRepoPG{pool: pool} }

func (r *configRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const configCols = `id, specialist_id, slot_minutes, max_patients_per_day,
	buffer_minutes, allow_overflow, overflow_max, active, created_at, updated_at`

func (r *configRepoPG) GetBySpecialist(ctx context.Context, specialistID uuid.UUID) (*SpecialistConfig, error) {
	var cfg SpecialistConfig
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+configCols+` FROM specialist_config WHERE specialist_id = $1 AND active = TRUE`,
		specialistID).Scan(
		&cfg.ID, &cfg.SpecialistID, &cfg.SlotMinutes, &cfg.MaxPatientsPerDay,
		&cfg.BufferMinutes, &cfg.AllowOverflow, &cfg.OverflowMax, &cfg.Active, &cfg.CreatedAt, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *configRepoPG) Create(ctx context.Context, cfg *SpecialistConfig) error {
	cfg.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO specialist_config (id, specialist_id, slot_minutes, max_patients_per_day,
			buffer_minutes, allow_overflow, overflow_max, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		cfg.ID, cfg.SpecialistID, cfg.SlotMinutes, cfg.MaxPatientsPerDay,
		cfg.BufferMinutes, cfg.AllowOverflow, cfg.OverflowMax, cfg.Active)
	return err
}

func (r *configRepoPG) Update(ctx context.Context, cfg *SpecialistConfig) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE specialist_config SET slot_minutes=$2, max_patients_per_day=$3, buffer_minutes=$4,
			allow_overflow=$5, overflow_max=$6, active=$7, updated_at=NOW()
		WHERE specialist_id = $1`,
		cfg.SpecialistID, cfg.SlotMinutes, cfg.MaxPatientsPerDay, cfg.BufferMinutes,
		cfg.AllowOverflow, cfg.OverflowMax, cfg.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// =========== Block Repository ===========

type blockRepoPG struct{ pool *pgxpool.Pool }

func NewBlockRepoPG(pool *pgxpool.Pool) BlockRepository { return &blockRepoPG{pool: pool} }

func (r *blockRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const blockCols = `id, specialist_id, date_start, date_end, time_start, time_end,
	reason, active, created_by, created_at`

func scanBlock(row pgx.Row) (*Block, error) {
	var b Block
	err := row.Scan(&b.ID, &b.SpecialistID, &b.DateStart, &b.DateEnd, &b.TimeStart, &b.TimeEnd,
		&b.Reason, &b.Active, &b.CreatedBy, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &b, err
}

func (r *blockRepoPG) Create(ctx context.Context, b *Block) error {
	b.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO block (id, specialist_id, date_start, date_end, time_start, time_end, reason, active, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		b.ID, b.SpecialistID, b.DateStart, b.DateEnd, b.TimeStart, b.TimeEnd, b.Reason, b.Active, b.CreatedBy)
	return err
}

func (r *blockRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Block, error) {
	return scanBlock(r.conn(ctx).QueryRow(ctx, `SELECT `+blockCols+` FROM block WHERE id = $1`, id))
}

func (r *blockRepoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE block SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *blockRepoPG) ListActiveOn(ctx context.Context, specialistID uuid.UUID, date time.Time) ([]*Block, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+blockCols+` FROM block
		WHERE specialist_id = $1 AND active = TRUE AND date_start <= $2 AND date_end >= $2
		ORDER BY date_start`,
		specialistID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBlocks(rows)
}

func (r *blockRepoPG) ListBySpecialist(ctx context.Context, specialistID uuid.UUID, limit, offset int) ([]*Block, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM block WHERE specialist_id = $1 AND active = TRUE`,
		specialistID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+blockCols+` FROM block
		WHERE specialist_id = $1 AND active = TRUE
		ORDER BY date_start DESC
		LIMIT $2 OFFSET $3`,
		specialistID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	blocks, err := collectBlocks(rows)
	return blocks, total, err
}

func collectBlocks(rows pgx.Rows) ([]*Block, error) {
	var out []*Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const apptCols = `id, specialist_id, specialty_id, patient_id, family_member_id,
	date, start_min, status, reason, notes, cancel_reason, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.SpecialistID, &a.SpecialtyID, &a.PatientID, &a.FamilyMemberID,
		&a.Date, &a.Time, &a.Status, &a.Reason, &a.Notes, &a.CancelReason, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment (id, specialist_id, specialty_id, patient_id, family_member_id,
			date, start_min, status, reason, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.SpecialistID, a.SpecialtyID, a.PatientID, a.FamilyMemberID,
		a.Date, a.Time, a.Status, a.Reason, a.Notes)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrSlotConflict
	}
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET status=$2, cancel_reason=$3, notes=$4, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.Status, a.CancelReason, a.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) FindOccupying(ctx context.Context, specialistID uuid.UUID, date time.Time, t MinuteOfDay) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE specialist_id = $1 AND date = $2 AND start_min = $3 AND status IN ('pending','confirmed')`,
		specialistID, date, t))
}

func (r *appointmentRepoPG) CountOccupying(ctx context.Context, specialistID uuid.UUID, date time.Time) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM appointment
		WHERE specialist_id = $1 AND date = $2 AND status IN ('pending','confirmed')`,
		specialistID, date).Scan(&n)
	return n, err
}

// LockDay takes a transaction-scoped advisory lock keyed by (specialist, date),
// serializing all bookings for that specialist's day. Released automatically at
// commit or rollback. Outside a transaction the lock is pointless, so it is
// skipped.
func (r *appointmentRepoPG) LockDay(ctx context.Context, specialistID uuid.UUID, date time.Time) error {
	if db.ConnFromContext(ctx) == nil {
		return nil
	}
	_, err := r.conn(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, dayLockKey(specialistID, date))
	return err
}

func dayLockKey(specialistID uuid.UUID, date time.Time) int64 {
	h := fnv.New64a()
	h.Write(specialistID[:])
	h.Write([]byte(date.Format("2006-01-02")))
	return int64(h.Sum64())
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE patient_id = $1
		ORDER BY date DESC, start_min DESC
		LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	appts, err := collectAppointments(rows)
	return appts, total, err
}

func (r *appointmentRepoPG) ListBySpecialistDate(ctx context.Context, specialistID uuid.UUID, date time.Time, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment WHERE specialist_id = $1 AND date = $2`,
		specialistID, date).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE specialist_id = $1 AND date = $2
		ORDER BY start_min
		LIMIT $3 OFFSET $4`,
		specialistID, date, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	appts, err := collectAppointments(rows)
	return appts, total, err
}

func collectAppointments(rows pgx.Rows) ([]*Appointment, error) {
	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
