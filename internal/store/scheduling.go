package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"medsched/internal/domain"
)

// SchedulingRepository is the engine's single coordination point. All
// cross-request state lives behind it; write operations run inside
// transactions that hold the doctor's calendar lock, and the appointments
// table's partial unique index on (doctor_id, date, time_minutes) over
// non-cancelled rows is the authoritative double-booking guard.
type SchedulingRepository interface {
	GetDoctor(ctx context.Context, doctorID uuid.UUID) (domain.Doctor, error)

	// ActiveRulesFor returns the doctor's active rules for one weekday.
	// An empty slice means the doctor is closed that day, not an error.
	ActiveRulesFor(ctx context.Context, doctorID uuid.UUID, day time.Weekday) ([]domain.AvailabilityRule, error)

	// BookedTimes returns the time_minutes of every non-cancelled
	// appointment for (doctorID, date).
	BookedTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]int, error)

	// CreateAppointment persists a new appointment. A unique-index
	// violation on the slot surfaces as ErrConflict.
	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)

	GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)

	// Transition moves an appointment to a new status after re-checking
	// the current status inside the transaction. Disallowed moves return
	// ErrInvalidTransition and leave the row untouched. cancellationReason
	// is persisted only when moving to cancelled.
	Transition(ctx context.Context, appointmentID uuid.UUID, to domain.AppointmentStatus, cancellationReason string) (domain.Appointment, error)

	// Reschedule atomically moves an appointment to a new slot: status is
	// re-validated and the new (date, time) claimed under the same unique
	// index, all in one transaction. On ErrConflict the original row is
	// completely untouched.
	Reschedule(ctx context.Context, appointmentID uuid.UUID, newDate time.Time, newTimeMinutes int) (domain.Appointment, error)
}
