// Package notify hands booking events to the external notification
// dispatcher. Delivery is best-effort by contract: a failed publish is the
// caller's to log, never a reason to roll back a committed booking.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventBookingConfirmed = "BookingConfirmed"
	EventBookingCancelled = "BookingCancelled"
)

type Event struct {
	Type          string    `json:"type"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	Date          string    `json:"date"`
	TimeMinutes   int       `json:"time_minutes"`
	Reason        string    `json:"reason,omitempty"`
	At            time.Time `json:"at"`
}

type Dispatcher interface {
	BookingConfirmed(ctx context.Context, ev Event) error
	BookingCancelled(ctx context.Context, ev Event) error
}

// Nop discards all events. Used in tests and redis-less runs.
type Nop struct{}

func (Nop) BookingConfirmed(ctx context.Context, ev Event) error { return nil }
func (Nop) BookingCancelled(ctx context.Context, ev Event) error { return nil }
