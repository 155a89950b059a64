package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestHandler() (*Handler, *testEnv, *echo.Echo) {
	env := newTestEnv()
	return NewHandler(env.svc), env, echo.New()
}

func jsonRequest(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_ListSlots(t *testing.T) {
	h, env, e := newTestHandler()
	specialist := uuid.New()
	specialty := uuid.New()
	env.addConfig(specialist, 30, 10, 0)
	env.addWindow(specialist, specialty, 0, "08:00", "10:00", nil)

	q := url.Values{}
	q.Set("specialty_id", specialty.String())
	q.Set("date", monday.Format("2006-01-02"))
	c, rec := jsonRequest(e, http.MethodGet, "/?"+q.Encode(), "")
	c.SetParamNames("id")
	c.SetParamValues(specialist.String())

	if err := h.ListSlots(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Date  string `json:"date"`
		Slots []Slot `json:"slots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Date != "2025-06-02" {
		t.Errorf("expected date 2025-06-02, got %s", resp.Date)
	}
	if len(resp.Slots) != 4 {
		t.Errorf("expected 4 slots, got %d", len(resp.Slots))
	}
}

func TestHandler_ListSlots_BadParams(t *testing.T) {
	h, _, e := newTestHandler()

	tests := []struct {
		name   string
		id     string
		query  string
	}{
		{"invalid specialist id", "not-a-uuid", "specialty_id=" + uuid.New().String() + "&date=2025-06-02"},
		{"missing specialty", uuid.New().String(), "date=2025-06-02"},
		{"bad date", uuid.New().String(), "specialty_id=" + uuid.New().String() + "&date=02-06-2025"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := jsonRequest(e, http.MethodGet, "/?"+tt.query, "")
			c.SetParamNames("id")
			c.SetParamValues(tt.id)
			err := h.ListSlots(c)
			he, ok := err.(*echo.HTTPError)
			if !ok || he.Code != http.StatusBadRequest {
				t.Errorf("expected 400 error, got %v", err)
			}
		})
	}
}

func TestHandler_NextDates_BadDays(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := jsonRequest(e, http.MethodGet, "/?specialty_id="+uuid.New().String()+"&days=zero", "")
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.NextDates(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400 error, got %v", err)
	}
}

func TestHandler_BookAppointment(t *testing.T) {
	h, env, e := newTestHandler()
	specialist := uuid.New()
	specialty := uuid.New()
	env.addConfig(specialist, 30, 10, 0)
	env.addWindow(specialist, specialty, 0, "08:00", "12:00", nil)

	body := `{"specialist_id":"` + specialist.String() + `","specialty_id":"` + specialty.String() +
		`","patient_id":"` + uuid.New().String() + `","date":"2025-06-02T00:00:00Z","time":"08:30"}`
	c, rec := jsonRequest(e, http.MethodPost, "/", body)

	if err := h.BookAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var appt Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &appt); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if appt.Status != StatusPending {
		t.Errorf("expected pending status, got %s", appt.Status)
	}
}

func TestHandler_BookAppointment_Rejected(t *testing.T) {
	h, env, e := newTestHandler()
	specialist := uuid.New()
	specialty := uuid.New()
	env.addConfig(specialist, 30, 10, 0)
	env.addWindow(specialist, specialty, 0, "08:00", "12:00", nil)

	// Tuesday: the specialist only attends Mondays.
	body := `{"specialist_id":"` + specialist.String() + `","specialty_id":"` + specialty.String() +
		`","patient_id":"` + uuid.New().String() + `","date":"2025-06-03T00:00:00Z","time":"08:30"}`
	c, rec := jsonRequest(e, http.MethodPost, "/", body)

	if err := h.BookAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var resp struct {
		Code   string `json:"code"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != RejectNoSchedule {
		t.Errorf("expected code %s, got %s", RejectNoSchedule, resp.Code)
	}
	if resp.Reason != "specialist does not attend at that time" {
		t.Errorf("unexpected reason: %s", resp.Reason)
	}
}

func TestHandler_BookAppointment_BadBody(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := jsonRequest(e, http.MethodPost, "/", `{"time":"25:00"}`)

	err := h.BookAppointment(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400 error, got %v", err)
	}
}

func TestHandler_GetAppointment_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := jsonRequest(e, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetAppointment(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404 error, got %v", err)
	}
}

func TestHandler_CancelAppointment(t *testing.T) {
	h, env, e := newTestHandler()
	specialist := uuid.New()
	specialty := uuid.New()
	env.addConfig(specialist, 30, 10, 0)
	env.addWindow(specialist, specialty, 0, "08:00", "12:00", nil)

	appt, err := env.svc.Book(nil, BookingRequest{
		SpecialistID: specialist,
		SpecialtyID:  specialty,
		PatientID:    uuid.New(),
		Date:         monday,
		Time:         clock("09:00"),
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	c, rec := jsonRequest(e, http.MethodPost, "/", `{"reason":"patient called"}`)
	c.SetParamNames("id")
	c.SetParamValues(appt.ID.String())

	if err := h.CancelAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", out.Status)
	}
	if out.CancelReason == nil || *out.CancelReason != "patient called" {
		t.Errorf("cancel reason not recorded: %v", out.CancelReason)
	}
}

func TestHandler_CreateWindow(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"specialist_id":"` + uuid.New().String() + `","specialty_id":"` + uuid.New().String() +
		`","weekday":0,"start_time":"08:00","end_time":"12:00"}`
	c, rec := jsonRequest(e, http.MethodPost, "/", body)

	if err := h.CreateWindow(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_CreateWindow_Invalid(t *testing.T) {
	h, _, e := newTestHandler()
	// End before start.
	body := `{"specialist_id":"` + uuid.New().String() + `","specialty_id":"` + uuid.New().String() +
		`","weekday":0,"start_time":"12:00","end_time":"08:00"}`
	c, _ := jsonRequest(e, http.MethodPost, "/", body)

	err := h.CreateWindow(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400 error, got %v", err)
	}
}

func TestHandler_GetConfig_CreatesDefaults(t *testing.T) {
	h, _, e := newTestHandler()
	c, rec := jsonRequest(e, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	if err := h.GetConfig(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var cfg SpecialistConfig
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if cfg.SlotMinutes != DefaultSlotMinutes {
		t.Errorf("expected default slot minutes %d, got %d", DefaultSlotMinutes, cfg.SlotMinutes)
	}
}

func TestHandler_UpdateConfig(t *testing.T) {
	h, env, e := newTestHandler()
	specialist := uuid.New()
	env.addConfig(specialist, 30, 10, 0)

	body := `{"slot_minutes":20,"max_patients_per_day":12,"buffer_minutes":5}`
	c, rec := jsonRequest(e, http.MethodPut, "/", body)
	c.SetParamNames("id")
	c.SetParamValues(specialist.String())

	if err := h.UpdateConfig(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	stored, _ := env.configs.GetBySpecialist(nil, specialist)
	if stored.SlotMinutes != 20 || stored.BufferMinutes != 5 {
		t.Errorf("config not updated: %+v", stored)
	}
}

// brokenAppointmentRepo simulates storage failures during validation.
type brokenAppointmentRepo struct {
	*mockAppointmentRepo
	err error
}

func (r *brokenAppointmentRepo) CountOccupying(context.Context, uuid.UUID, time.Time) (int, error) {
	return 0, r.err
}

func TestHandler_BookAppointment_StorageFault(t *testing.T) {
	env := newTestEnv()
	specialist := uuid.New()
	specialty := uuid.New()
	env.addConfig(specialist, 30, 10, 0)
	env.addWindow(specialist, specialty, 0, "08:00", "12:00", nil)

	broken := &brokenAppointmentRepo{mockAppointmentRepo: env.appts, err: errors.New("connection reset")}
	h := NewHandler(NewService(env.windows, env.configs, env.blocks, broken, &mockTxRunner{}, zerolog.Nop()))
	e := echo.New()

	body := `{"specialist_id":"` + specialist.String() + `","specialty_id":"` + specialty.String() +
		`","patient_id":"` + uuid.New().String() + `","date":"2025-06-02T00:00:00Z","time":"08:30"}`
	c, _ := jsonRequest(e, http.MethodPost, "/", body)

	err := h.BookAppointment(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError {
		t.Errorf("storage fault must surface as 500, got %v", err)
	}
}

func TestHandler_ConfirmAppointment_InvalidTransition(t *testing.T) {
	h, env, e := newTestHandler()
	specialist := uuid.New()
	specialty := uuid.New()
	env.addConfig(specialist, 30, 10, 0)
	env.addWindow(specialist, specialty, 0, "08:00", "12:00", nil)

	appt, err := env.svc.Book(nil, BookingRequest{
		SpecialistID: specialist,
		SpecialtyID:  specialty,
		PatientID:    uuid.New(),
		Date:         monday,
		Time:         clock("09:00"),
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := env.svc.Confirm(nil, appt.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := env.svc.MarkDone(nil, appt.ID); err != nil {
		t.Fatalf("done: %v", err)
	}

	c, _ := jsonRequest(e, http.MethodPost, "/", "")
	c.SetParamNames("id")
	c.SetParamValues(appt.ID.String())

	err = h.ConfirmAppointment(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Errorf("done appointment cannot be confirmed, expected 409, got %v", err)
	}
}
