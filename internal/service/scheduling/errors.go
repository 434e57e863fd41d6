package scheduling

import "errors"

// ValidationError covers malformed or self-contradictory requests. These are
// deterministic and never retried.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{msg: msg}
}

func validationError(msg string) error {
	return NewValidationError(msg)
}

var (
	// ErrDoctorUnavailable: unknown doctor, deactivated doctor, or one not
	// currently accepting appointments.
	ErrDoctorUnavailable = errors.New("doctor is not accepting appointments")

	// ErrSlotOutsideSchedule: the requested time is not an exact slot start
	// under any active rule for that weekday. Off-grid times inside the
	// working window are rejected too.
	ErrSlotOutsideSchedule = errors.New("requested slot is outside the doctor's schedule")

	ErrInvalidDate = errors.New("date is in the past")
)
