package scheduling

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"medsched/internal/domain"
	"medsched/internal/metrics"
	"medsched/internal/notify"
	"medsched/internal/store"
)

type Service struct {
	repo       store.SchedulingRepository
	dispatcher notify.Dispatcher
	metrics    *metrics.Metrics
	log        *slog.Logger

	now func() time.Time
}

func NewService(repo store.SchedulingRepository, dispatcher notify.Dispatcher, m *metrics.Metrics, log *slog.Logger) *Service {
	if dispatcher == nil {
		dispatcher = notify.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:       repo,
		dispatcher: dispatcher,
		metrics:    m,
		log:        log.With(slog.String("component", "scheduling")),
		now:        time.Now,
	}
}

// DayAvailability is one doctor's bookable slots for one calendar date.
type DayAvailability struct {
	Date  time.Time
	Slots []int
	Rules []domain.AvailabilityRule
}

// AvailableSlots derives the open slots for (doctorID, date): the union of
// all active rules for that weekday, minus the times already held by
// non-cancelled appointments. Recomputed fresh on every call; a slot can be
// gone by the time it is booked, which surfaces as a conflict then.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) (DayAvailability, error) {
	if doctorID == uuid.Nil {
		return DayAvailability{}, validationError("doctor_id is required")
	}

	day := domain.DateOnly(date)
	out := DayAvailability{Date: day, Slots: []int{}}

	rules, err := s.repo.ActiveRulesFor(ctx, doctorID, day.Weekday())
	if err != nil {
		return DayAvailability{}, err
	}
	out.Rules = rules

	starts := domain.MergeSlotStarts(rules)
	if len(starts) == 0 {
		return out, nil
	}

	booked, err := s.repo.BookedTimes(ctx, doctorID, day)
	if err != nil {
		return DayAvailability{}, err
	}
	held := make(map[int]struct{}, len(booked))
	for _, t := range booked {
		held[t] = struct{}{}
	}

	out.Slots = domain.FilterHeld(starts, held)
	return out, nil
}

type BookInput struct {
	DoctorID       uuid.UUID
	PatientID      uuid.UUID
	Date           time.Time
	TimeMinutes    int
	ReasonForVisit string
}

// Book validates the request and claims the slot. The precondition checks
// are advisory; the storage layer's unique index decides the winner under
// concurrency, and losing that race comes back as store.ErrConflict.
func (s *Service) Book(ctx context.Context, in BookInput) (domain.Appointment, error) {
	if in.DoctorID == uuid.Nil {
		return domain.Appointment{}, validationError("doctor_id is required")
	}
	if in.PatientID == uuid.Nil {
		return domain.Appointment{}, validationError("patient_id is required")
	}
	if in.TimeMinutes < 0 || in.TimeMinutes >= 24*60 {
		return domain.Appointment{}, validationError("time_minutes must be within a single day")
	}

	doctor, err := s.repo.GetDoctor(ctx, in.DoctorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Appointment{}, ErrDoctorUnavailable
		}
		return domain.Appointment{}, err
	}
	if !doctor.Active || !doctor.IsAvailable {
		return domain.Appointment{}, ErrDoctorUnavailable
	}

	date := domain.DateOnly(in.Date)
	if err := s.checkOnSchedule(ctx, in.DoctorID, date, in.TimeMinutes); err != nil {
		return domain.Appointment{}, err
	}
	if date.Before(domain.DateOnly(s.now())) {
		return domain.Appointment{}, ErrInvalidDate
	}

	started := s.now()
	appt, err := s.repo.CreateAppointment(ctx, domain.Appointment{
		DoctorID:       in.DoctorID,
		PatientID:      in.PatientID,
		Date:           date,
		TimeMinutes:    in.TimeMinutes,
		Status:         domain.StatusScheduled,
		ReasonForVisit: strings.TrimSpace(in.ReasonForVisit),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) && s.metrics != nil {
			s.metrics.BookingConflicts.Inc()
		}
		return domain.Appointment{}, err
	}

	if s.metrics != nil {
		s.metrics.BookingsCreated.Inc()
		s.metrics.BookingDuration.Observe(time.Since(started).Seconds())
	}
	s.dispatch(ctx, notify.EventBookingConfirmed, appt, "")

	return appt, nil
}

// Confirm moves a scheduled appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	if appointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	return s.repo.Transition(ctx, appointmentID, domain.StatusConfirmed, "")
}

type CancelInput struct {
	AppointmentID uuid.UUID
	RequesterID   uuid.UUID
	Reason        string
}

// Cancel releases the slot by marking the row cancelled. The row is never
// deleted; the unique index only binds non-cancelled rows, so the slot is
// immediately rebookable.
func (s *Service) Cancel(ctx context.Context, in CancelInput) (domain.Appointment, error) {
	if in.AppointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	if in.RequesterID == uuid.Nil {
		return domain.Appointment{}, validationError("requester_id is required")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return domain.Appointment{}, validationError("cancellation reason is required")
	}

	appt, err := s.repo.Transition(ctx, in.AppointmentID, domain.StatusCancelled, reason)
	if err != nil {
		return domain.Appointment{}, err
	}

	if s.metrics != nil {
		s.metrics.Cancellations.Inc()
	}
	s.dispatch(ctx, notify.EventBookingCancelled, appt, reason)

	return appt, nil
}

type RescheduleInput struct {
	AppointmentID  uuid.UUID
	NewDate        time.Time
	NewTimeMinutes int
}

// Reschedule moves an appointment to a new slot as one atomic unit. The new
// slot is validated against the doctor's schedule here; the claim itself,
// and the status re-check, happen inside the repository transaction. On any
// failure the original appointment is left untouched.
func (s *Service) Reschedule(ctx context.Context, in RescheduleInput) (domain.Appointment, error) {
	if in.AppointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	if in.NewTimeMinutes < 0 || in.NewTimeMinutes >= 24*60 {
		return domain.Appointment{}, validationError("time_minutes must be within a single day")
	}

	current, err := s.repo.GetAppointment(ctx, in.AppointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}

	newDate := domain.DateOnly(in.NewDate)
	if err := s.checkOnSchedule(ctx, current.DoctorID, newDate, in.NewTimeMinutes); err != nil {
		return domain.Appointment{}, err
	}
	if newDate.Before(domain.DateOnly(s.now())) {
		return domain.Appointment{}, ErrInvalidDate
	}

	appt, err := s.repo.Reschedule(ctx, in.AppointmentID, newDate, in.NewTimeMinutes)
	if err != nil {
		if errors.Is(err, store.ErrConflict) && s.metrics != nil {
			s.metrics.BookingConflicts.Inc()
		}
		return domain.Appointment{}, err
	}

	if s.metrics != nil {
		s.metrics.Reschedules.Inc()
	}
	return appt, nil
}

// MarkCompleted records that the visit happened. Restricted to the
// appointment's doctor.
func (s *Service) MarkCompleted(ctx context.Context, appointmentID, doctorID uuid.UUID) (domain.Appointment, error) {
	return s.doctorTransition(ctx, appointmentID, doctorID, domain.StatusCompleted)
}

// MarkNoShow records that the patient did not show up. Restricted to the
// appointment's doctor.
func (s *Service) MarkNoShow(ctx context.Context, appointmentID, doctorID uuid.UUID) (domain.Appointment, error) {
	return s.doctorTransition(ctx, appointmentID, doctorID, domain.StatusNoShow)
}

func (s *Service) doctorTransition(ctx context.Context, appointmentID, doctorID uuid.UUID, to domain.AppointmentStatus) (domain.Appointment, error) {
	if appointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	if doctorID == uuid.Nil {
		return domain.Appointment{}, validationError("requester_id is required")
	}

	appt, err := s.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if appt.DoctorID != doctorID {
		return domain.Appointment{}, validationError("appointment belongs to a different doctor")
	}

	return s.repo.Transition(ctx, appointmentID, to, "")
}

// checkOnSchedule verifies (date, minutes) is an exact slot start under some
// active rule for that weekday.
func (s *Service) checkOnSchedule(ctx context.Context, doctorID uuid.UUID, date time.Time, minutes int) error {
	rules, err := s.repo.ActiveRulesFor(ctx, doctorID, date.Weekday())
	if err != nil {
		return err
	}
	for _, r := range rules {
		if r.Covers(minutes) {
			return nil
		}
	}
	return ErrSlotOutsideSchedule
}

// dispatch emits a booking event after the transaction has committed.
// Failures are logged and swallowed: the booking already happened.
func (s *Service) dispatch(ctx context.Context, eventType string, appt domain.Appointment, reason string) {
	ev := notify.Event{
		AppointmentID: appt.ID,
		DoctorID:      appt.DoctorID,
		PatientID:     appt.PatientID,
		Date:          appt.Date.Format("2006-01-02"),
		TimeMinutes:   appt.TimeMinutes,
		Reason:        reason,
		At:            s.now().UTC(),
	}

	var err error
	switch eventType {
	case notify.EventBookingConfirmed:
		err = s.dispatcher.BookingConfirmed(ctx, ev)
	case notify.EventBookingCancelled:
		err = s.dispatcher.BookingCancelled(ctx, ev)
	}
	if err != nil {
		s.log.Warn("event dispatch failed",
			slog.String("event", eventType),
			slog.String("appointment_id", appt.ID.String()),
			slog.Any("err", err),
		)
	}
}
