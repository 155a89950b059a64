package scheduling

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func bookingFixture(env *testEnv) (specialist, specialty uuid.UUID) {
	specialist, specialty = uuid.New(), uuid.New()
	env.addWindow(specialist, specialty, 0, "08:00", "12:00", nil)
	env.addConfig(specialist, 30, 20, 0)
	return specialist, specialty
}

func baseRequest(specialist, specialty uuid.UUID, at string) BookingRequest {
	return BookingRequest{
		SpecialistID: specialist,
		SpecialtyID:  specialty,
		PatientID:    uuid.New(),
		Date:         monday,
		Time:         clock(at),
	}
}

func TestBookSuccess(t *testing.T) {
	env := newTestEnv()
	specialist, specialty := bookingFixture(env)

	appt, err := env.svc.Book(context.Background(), baseRequest(specialist, specialty, "08:30"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.Status != StatusPending {
		t.Errorf("status = %s, want pending", appt.Status)
	}
	if appt.ID == uuid.Nil {
		t.Error("appointment was not assigned an id")
	}
}

func TestBookAutoConfirm(t *testing.T) {
	env := newTestEnv()
	specialist, specialty := bookingFixture(env)

	req := baseRequest(specialist, specialty, "09:00")
	req.AutoConfirm = true
	appt, err := env.svc.Book(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.Status != StatusConfirmed {
		t.Errorf("status = %s, want confirmed", appt.Status)
	}
}

func TestBookMissingFields(t *testing.T) {
	env := newTestEnv()
	specialist, specialty := bookingFixture(env)

	req := baseRequest(specialist, specialty, "08:00")
	req.PatientID = uuid.Nil
	if _, err := env.svc.Book(context.Background(), req); err == nil {
		t.Error("expected validation error for missing patient_id")
	} else if _, ok := AsRejection(err); ok {
		t.Error("malformed input must not be reported as a rejection")
	} else if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestBookOutsideSchedule(t *testing.T) {
	env := newTestEnv()
	specialist, specialty := bookingFixture(env)

	cases := []struct {
		name string
		req  BookingRequest
	}{
		{"before window", baseRequest(specialist, specialty, "07:30")},
		{"at window end", baseRequest(specialist, specialty, "12:00")},
		{"wrong weekday", func() BookingRequest {
			r := baseRequest(specialist, specialty, "08:00")
			r.Date = monday.AddDate(0, 0, 1)
			return r
		}()},
		{"wrong specialty", baseRequest(specialist, uuid.New(), "08:00")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.Book(context.Background(), tc.req)
			rej, ok := AsRejection(err)
			if !ok {
				t.Fatalf("expected rejection, got %v", err)
			}
			if rej.Code != RejectNoSchedule {
				t.Errorf("code = %s, want %s", rej.Code, RejectNoSchedule)
			}
			if rej.Reason != "specialist does not attend at that time" {
				t.Errorf("unexpected reason %q", rej.Reason)
			}
		})
	}
}

func TestBookBlockedSlot(t *testing.T) {
	env := newTestEnv()
	specialist, specialty := bookingFixture(env)
	env.blocks.blocks[uuid.New()] = &Block{
		ID: uuid.New(), SpecialistID: specialist,
		DateStart: monday, DateEnd: monday,
		Reason: "personal leave", Active: true,
	}

	_, err := env.svc.Book(context.Background(), baseRequest(specialist, specialty, "08:00"))
	rej, ok := AsRejection(err)
	if !ok {
		t.Fatalf("expected rejection, got %v", err)
	}
	if rej.Code != RejectBlocked {
		t.Errorf("code = %s, want %s", rej.Code, RejectBlocked)
	}
	if !strings.Contains(rej.Reason, "personal leave") {
		t.Errorf("reason %q should carry the block reason", rej.Reason)
	}
}

func TestBookSlotTaken(t *testing.T) {
	env := newTestEnv()
	specialist, specialty := bookingFixture(env)

	if _, err := env.svc.Book(context.Background(), baseRequest(specialist, specialty, "08:30")); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	_, err := env.svc.Book(context.Background(), baseRequest(specialist, specialty, "08:30"))
	rej, ok := AsRejection(err)
	if !ok {
		t.Fatalf("expected rejection, got %v", err)
	}
	if rej.Code != RejectSlotTaken || rej.Reason != "slot already taken" {
		t.Errorf("got %s/%q", rej.Code, rej.Reason)
	}
}

func TestBookAfterCancellationSucceeds(t *testing.T) {
	env := newTestEnv()
	specialist, specialty := bookingFixture(env)

	first, err := env.svc.Book(context.Background(), baseRequest(specialist, specialty, "08:30"))
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := env.svc.Cancel(context.Background(), first.ID, "cannot make it"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := env.svc.Book(context.Background(), baseRequest(specialist, specialty, "08:30")); err != nil {
		t.Errorf("rebooking a cancelled slot failed: %v", err)
	}
}

func TestBookCapacityReached(t *testing.T) {
	env := newTestEnv()
	specialist, specialty := uuid.New(), uuid.New()
	env.addWindow(specialist, specialty, 0, "08:00", "12:00", nil)
	env.addConfig(specialist, 30, 2, 0)

	for _, at := range []string{"08:00", "08:30"} {
		if _, err := env.svc.Book(context.Background(), baseRequest(specialist, specialty, at)); err != nil {
			t.Fatalf("seed booking at %s: %v", at, err)
		}
	}

	_, err := env.svc.Book(context.Background(), baseRequest(specialist, specialty, "09:00"))
	rej, ok := AsRejection(err)
	if !ok {
		t.Fatalf("expected rejection, got %v", err)
	}
	if rej.Code != RejectCapacity || rej.Reason != "daily capacity reached" {
		t.Errorf("got %s/%q", rej.Code, rej.Reason)
	}
}

func TestBookOverflow(t *testing.T) {
	env := newTestEnv()
	specialist, specialty := uuid.New(), uuid.New()
	env.addWindow(specialist, specialty, 0, "08:00", "12:00", nil)
	cfg := env.addConfig(specialist, 30, 2, 0)
	cfg.AllowOverflow = true
	cfg.OverflowMax = 1

	// Two regular bookings, then one overflow booking.
	for _, at := range []string{"08:00", "08:30", "09:00"} {
		if _, err := env.svc.Book(context.Background(), baseRequest(specialist, specialty, at)); err != nil {
			t.Fatalf("booking at %s: %v", at, err)
		}
	}

	// The fourth exceeds max + overflow.
	_, err := env.svc.Book(context.Background(), baseRequest(specialist, specialty, "09:30"))
	rej, ok := AsRejection(err)
	if !ok {
		t.Fatalf("expected rejection, got %v", err)
	}
	if rej.Code != RejectOverflowCapacity || rej.Reason != "overflow capacity reached" {
		t.Errorf("got %s/%q", rej.Code, rej.Reason)
	}
}

func TestBookConcurrentSameSlot(t *testing.T) {
	env := newTestEnv()
	specialist, specialty := bookingFixture(env)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.Book(context.Background(), baseRequest(specialist, specialty, "10:00"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrSlotConflict):
		default:
			if rej, ok := AsRejection(err); !ok || rej.Code != RejectSlotTaken {
				t.Errorf("unexpected failure mode: %v", err)
			}
		}
	}
	if succeeded != 1 {
		t.Errorf("exactly one concurrent booking must win, got %d", succeeded)
	}
}

func TestTransitions(t *testing.T) {
	env := newTestEnv()
	specialist, specialty := bookingFixture(env)

	appt, err := env.svc.Book(context.Background(), baseRequest(specialist, specialty, "08:00"))
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	confirmed, err := env.svc.Confirm(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != StatusConfirmed {
		t.Errorf("status = %s, want confirmed", confirmed.Status)
	}

	done, err := env.svc.MarkDone(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if done.Status != StatusDone {
		t.Errorf("status = %s, want done", done.Status)
	}

	// Done is terminal.
	if _, err := env.svc.Cancel(context.Background(), appt.ID, ""); err == nil {
		t.Error("cancelling a completed appointment should fail")
	} else if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancelRecordsReason(t *testing.T) {
	env := newTestEnv()
	specialist, specialty := bookingFixture(env)

	appt, err := env.svc.Book(context.Background(), baseRequest(specialist, specialty, "08:00"))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	cancelled, err := env.svc.Cancel(context.Background(), appt.ID, "patient request")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}
	if cancelled.CancelReason == nil || *cancelled.CancelReason != "patient request" {
		t.Error("cancel reason was not recorded")
	}
}
