package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// -- Mock Repositories --

type mockWindowRepo struct {
	windows map[uuid.UUID]*WeeklyWindow
}

func newMockWindowRepo() *mockWindowRepo {
	return &mockWindowRepo{windows: make(map[uuid.UUID]*WeeklyWindow)}
}

func (m *mockWindowRepo) Create(_ context.Context, w *WeeklyWindow) error {
	w.ID = uuid.New()
	w.CreatedAt = time.Now()
	w.UpdatedAt = time.Now()
	m.windows[w.ID] = w
	return nil
}

func (m *mockWindowRepo) GetByID(_ context.Context, id uuid.UUID) (*WeeklyWindow, error) {
	w, ok := m.windows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return w, nil
}

func (m *mockWindowRepo) Update(_ context.Context, w *WeeklyWindow) error {
	if _, ok := m.windows[w.ID]; !ok {
		return ErrNotFound
	}
	m.windows[w.ID] = w
	return nil
}

func (m *mockWindowRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	w, ok := m.windows[id]
	if !ok {
		return ErrNotFound
	}
	w.Active = false
	return nil
}

func (m *mockWindowRepo) ListForDay(_ context.Context, specialistID, specialtyID uuid.UUID, weekday int) ([]*WeeklyWindow, error) {
	var result []*WeeklyWindow
	for _, w := range m.windows {
		if w.Active && w.SpecialistID == specialistID && w.SpecialtyID == specialtyID && w.Weekday == weekday {
			result = append(result, w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime < result[j].StartTime })
	return result, nil
}

func (m *mockWindowRepo) ListBySpecialist(_ context.Context, specialistID uuid.UUID, limit, offset int) ([]*WeeklyWindow, int, error) {
	var result []*WeeklyWindow
	for _, w := range m.windows {
		if w.Active && w.SpecialistID == specialistID {
			result = append(result, w)
		}
	}
	return result, len(result), nil
}

type mockConfigRepo struct {
	configs map[uuid.UUID]*SpecialistConfig // keyed by specialist
}

func newMockConfigRepo() *mockConfigRepo {
	return &mockConfigRepo{configs: make(map[uuid.UUID]*SpecialistConfig)}
}

func (m *mockConfigRepo) GetBySpecialist(_ context.Context, specialistID uuid.UUID) (*SpecialistConfig, error) {
	cfg, ok := m.configs[specialistID]
	if !ok {
		return nil, ErrNotFound
	}
	return cfg, nil
}

func (m *mockConfigRepo) Create(_ context.Context, cfg *SpecialistConfig) error {
	cfg.ID = uuid.New()
	m.configs[cfg.SpecialistID] = cfg
	return nil
}

func (m *mockConfigRepo) Update(_ context.Context, cfg *SpecialistConfig) error {
	if _, ok := m.configs[cfg.SpecialistID]; !ok {
		return ErrNotFound
	}
	m.configs[cfg.SpecialistID] = cfg
	return nil
}

type mockBlockRepo struct {
	blocks map[uuid.UUID]*Block
}

func newMockBlockRepo() *mockBlockRepo {
	return &mockBlockRepo{blocks: make(map[uuid.UUID]*Block)}
}

func (m *mockBlockRepo) Create(_ context.Context, b *Block) error {
	b.ID = uuid.New()
	b.CreatedAt = time.Now()
	m.blocks[b.ID] = b
	return nil
}

func (m *mockBlockRepo) GetByID(_ context.Context, id uuid.UUID) (*Block, error) {
	b, ok := m.blocks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

func (m *mockBlockRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	b, ok := m.blocks[id]
	if !ok {
		return ErrNotFound
	}
	b.Active = false
	return nil
}

func (m *mockBlockRepo) ListActiveOn(_ context.Context, specialistID uuid.UUID, date time.Time) ([]*Block, error) {
	var result []*Block
	for _, b := range m.blocks {
		if b.Active && b.SpecialistID == specialistID && !date.Before(b.DateStart) && !date.After(b.DateEnd) {
			result = append(result, b)
		}
	}
	return result, nil
}

func (m *mockBlockRepo) ListBySpecialist(_ context.Context, specialistID uuid.UUID, limit, offset int) ([]*Block, int, error) {
	var result []*Block
	for _, b := range m.blocks {
		if b.Active && b.SpecialistID == specialistID {
			result = append(result, b)
		}
	}
	return result, len(result), nil
}

type mockAppointmentRepo struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*Appointment
}

func newMockAppointmentRepo() *mockAppointmentRepo {
	return &mockAppointmentRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.Status.Occupying() {
		for _, other := range m.appts {
			if other.Status.Occupying() && other.SpecialistID == a.SpecialistID &&
				other.Date.Equal(a.Date) && other.Time == a.Time {
				return ErrSlotConflict
			}
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = time.Now()
	m.appts[a.ID] = a
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (m *mockAppointmentRepo) UpdateStatus(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appts[a.ID]; !ok {
		return ErrNotFound
	}
	m.appts[a.ID] = a
	return nil
}

func (m *mockAppointmentRepo) FindOccupying(_ context.Context, specialistID uuid.UUID, date time.Time, t MinuteOfDay) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appts {
		if a.Status.Occupying() && a.SpecialistID == specialistID && a.Date.Equal(date) && a.Time == t {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockAppointmentRepo) CountOccupying(_ context.Context, specialistID uuid.UUID, date time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.appts {
		if a.Status.Occupying() && a.SpecialistID == specialistID && a.Date.Equal(date) {
			n++
		}
	}
	return n, nil
}

func (m *mockAppointmentRepo) LockDay(_ context.Context, _ uuid.UUID, _ time.Time) error {
	return nil
}

func (m *mockAppointmentRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Appointment
	for _, a := range m.appts {
		if a.PatientID == patientID {
			result = append(result, a)
		}
	}
	return result, len(result), nil
}

func (m *mockAppointmentRepo) ListBySpecialistDate(_ context.Context, specialistID uuid.UUID, date time.Time, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Appointment
	for _, a := range m.appts {
		if a.SpecialistID == specialistID && a.Date.Equal(date) {
			result = append(result, a)
		}
	}
	return result, len(result), nil
}

// mockTxRunner serializes transactions with a mutex, emulating the
// per-day lock the real runner takes.
type mockTxRunner struct {
	mu sync.Mutex
}

func (m *mockTxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx)
}

// -- Fixtures --

type testEnv struct {
	svc     *Service
	windows *mockWindowRepo
	configs *mockConfigRepo
	blocks  *mockBlockRepo
	appts   *mockAppointmentRepo
}

func newTestEnv() *testEnv {
	windows := newMockWindowRepo()
	configs := newMockConfigRepo()
	blocks := newMockBlockRepo()
	appts := newMockAppointmentRepo()
	svc := NewService(windows, configs, blocks, appts, &mockTxRunner{}, zerolog.Nop())
	return &testEnv{svc: svc, windows: windows, configs: configs, blocks: blocks, appts: appts}
}

func clock(s string) MinuteOfDay {
	m, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return m
}

// monday is a fixed reference date falling on weekday 0.
var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func (e *testEnv) addWindow(specialistID, specialtyID uuid.UUID, weekday int, start, end string, slotMinutes *int) *WeeklyWindow {
	w := &WeeklyWindow{
		ID:           uuid.New(),
		SpecialistID: specialistID,
		SpecialtyID:  specialtyID,
		Weekday:      weekday,
		StartTime:    clock(start),
		EndTime:      clock(end),
		SlotMinutes:  slotMinutes,
		Active:       true,
	}
	e.windows.windows[w.ID] = w
	return w
}

func (e *testEnv) addConfig(specialistID uuid.UUID, slotMinutes, maxPerDay, buffer int) *SpecialistConfig {
	cfg := &SpecialistConfig{
		ID:                uuid.New(),
		SpecialistID:      specialistID,
		SlotMinutes:       slotMinutes,
		MaxPatientsPerDay: maxPerDay,
		BufferMinutes:     buffer,
		Active:            true,
	}
	e.configs.configs[specialistID] = cfg
	return cfg
}
