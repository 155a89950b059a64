package scheduling

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput marks malformed or incomplete caller input, detected
	// before any storage access. Handlers translate it to a client error;
	// anything else that is not a rejection or a conflict is a server fault.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition is returned when an appointment cannot move from
	// its current status to the requested one.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrSlotConflict is returned when an insert loses the race for a slot to
	// a concurrent booking. The caller should re-check availability and retry;
	// the earlier validation result no longer holds.
	ErrSlotConflict = errors.New("appointment slot conflict")
)

// Rejection codes identify the validation step that refused a booking.
const (
	RejectNoSchedule       = "no_schedule"
	RejectBlocked          = "blocked"
	RejectSlotTaken        = "slot_taken"
	RejectCapacity         = "capacity"
	RejectOverflowCapacity = "overflow_capacity"
)

// RejectionError is a structured booking refusal. It is a normal, user-facing
// outcome rather than a fault: handlers translate it to 422, never 500.
type RejectionError struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

func (e *RejectionError) Error() string { return e.Reason }

func reject(code, reason string) *RejectionError {
	return &RejectionError{Code: code, Reason: reason}
}

// AsRejection unwraps err into a RejectionError if it is one.
func AsRejection(err error) (*RejectionError, bool) {
	var r *RejectionError
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
