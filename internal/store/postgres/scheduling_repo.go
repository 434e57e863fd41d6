package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"medsched/internal/domain"
	"medsched/internal/store"
)

// activeSlotConstraint is the partial unique index on
// (doctor_id, date, time_minutes) WHERE status <> 'cancelled'. A violation
// at commit time is the authoritative "slot just taken" signal.
const activeSlotConstraint = "appointments_active_slot_key"

// writeAttempts bounds retries of transient storage failures. Conflicts and
// lifecycle violations are deterministic and never retried.
const writeAttempts = 3

type SchedulingRepo struct {
	db *bun.DB
}

func NewSchedulingRepo(db *bun.DB) *SchedulingRepo {
	return &SchedulingRepo{db: db}
}

func (r *SchedulingRepo) GetDoctor(ctx context.Context, doctorID uuid.UUID) (domain.Doctor, error) {
	var d domain.Doctor
	err := r.db.NewSelect().
		Model(&d).
		Where("id = ?", doctorID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Doctor{}, store.ErrNotFound
		}
		return domain.Doctor{}, err
	}
	return d, nil
}

func (r *SchedulingRepo) ActiveRulesFor(ctx context.Context, doctorID uuid.UUID, day time.Weekday) ([]domain.AvailabilityRule, error) {
	var rows []domain.AvailabilityRule
	err := r.db.NewSelect().
		Model(&rows).
		Where("doctor_id = ?", doctorID).
		Where("day_of_week = ?", int(day)).
		Where("active").
		OrderExpr("start_minutes ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SchedulingRepo) BookedTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]int, error) {
	var times []int
	err := r.db.NewSelect().
		Model((*domain.Appointment)(nil)).
		Column("time_minutes").
		Where("doctor_id = ?", doctorID).
		Where("date = ?", domain.DateOnly(date)).
		Where("status <> ?", domain.StatusCancelled).
		OrderExpr("time_minutes ASC").
		Scan(ctx, &times)
	if err != nil {
		return nil, err
	}
	return times, nil
}

func (r *SchedulingRepo) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.inCalendarTx(ctx, appt.DoctorID, func(ctx context.Context, tx bun.Tx) error {
		m := appt
		m.Date = domain.DateOnly(appt.Date)
		if _, err := tx.NewInsert().Model(&m).Exec(ctx); err != nil {
			return translateWriteErr(err)
		}
		out = m
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r *SchedulingRepo) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.db.NewSelect().
		Model(&a).
		Where("id = ?", appointmentID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return a, nil
}

func (r *SchedulingRepo) Transition(ctx context.Context, appointmentID uuid.UUID, to domain.AppointmentStatus, cancellationReason string) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.runTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		appt, err := lockAppointment(ctx, tx, appointmentID)
		if err != nil {
			return err
		}
		if !domain.CanTransition(appt.Status, to) {
			return store.ErrInvalidTransition
		}

		appt.Status = to
		if to == domain.StatusCancelled {
			appt.CancellationReason = cancellationReason
		}

		_, err = tx.NewUpdate().
			Model(&appt).
			Column("status", "cancellation_reason", "updated_at").
			Where("id = ?", appt.ID).
			Exec(ctx)
		if err != nil {
			return translateWriteErr(err)
		}
		out = appt
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r *SchedulingRepo) Reschedule(ctx context.Context, appointmentID uuid.UUID, newDate time.Time, newTimeMinutes int) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.runTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		appt, err := lockAppointment(ctx, tx, appointmentID)
		if err != nil {
			return err
		}
		// Only live appointments move; the old slot is released implicitly
		// because the claim updates the same row.
		if appt.Status != domain.StatusScheduled && appt.Status != domain.StatusConfirmed {
			return store.ErrInvalidTransition
		}
		if err := lockDoctorCalendar(ctx, tx, appt.DoctorID); err != nil {
			return err
		}

		appt.Date = domain.DateOnly(newDate)
		appt.TimeMinutes = newTimeMinutes

		_, err = tx.NewUpdate().
			Model(&appt).
			Column("date", "time_minutes", "updated_at").
			Where("id = ?", appt.ID).
			Exec(ctx)
		if err != nil {
			return translateWriteErr(err)
		}
		out = appt
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

// inCalendarTx serializes writers on one doctor's calendar with an advisory
// transaction lock. The partial unique index stays the authoritative guard;
// the lock just keeps concurrent claims from churning on conflicts.
func (r *SchedulingRepo) inCalendarTx(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context, tx bun.Tx) error) error {
	return r.runTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := lockDoctorCalendar(ctx, tx, doctorID); err != nil {
			return err
		}
		return fn(ctx, tx)
	})
}

func (r *SchedulingRepo) runTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < writeAttempts; attempt++ {
		err := r.db.RunInTx(ctx, nil, fn)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", store.ErrUnavailable, lastErr)
}

func lockDoctorCalendar(ctx context.Context, tx bun.Tx, doctorID uuid.UUID) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", doctorID.String()).Exec(ctx)
	return err
}

func lockAppointment(ctx context.Context, tx bun.Tx, appointmentID uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := tx.NewSelect().
		Model(&appt).
		Where("id = ?", appointmentID).
		For("UPDATE").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return appt, nil
}

func translateWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" && pgErr.ConstraintName == activeSlotConstraint {
			return store.ErrConflict
		}
	}
	return err
}

// retryable matches only genuinely transient failures: serialization and
// deadlock SQLSTATEs, and connections dropped mid-statement.
func retryable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return true
		}
	}
	return false
}
