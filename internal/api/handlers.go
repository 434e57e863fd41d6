package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"medsched/internal/domain"
	"medsched/internal/service/scheduling"
	"medsched/internal/store"
)

const dateLayout = "2006-01-02"

// SchedulingService is the slice of the scheduling service the handlers use.
type SchedulingService interface {
	AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) (scheduling.DayAvailability, error)
	Book(ctx context.Context, in scheduling.BookInput) (domain.Appointment, error)
	Confirm(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	Cancel(ctx context.Context, in scheduling.CancelInput) (domain.Appointment, error)
	Reschedule(ctx context.Context, in scheduling.RescheduleInput) (domain.Appointment, error)
	MarkCompleted(ctx context.Context, appointmentID, doctorID uuid.UUID) (domain.Appointment, error)
	MarkNoShow(ctx context.Context, appointmentID, doctorID uuid.UUID) (domain.Appointment, error)
}

func availabilityHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
			return
		}

		date, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted YYYY-MM-DD")
			return
		}

		day, err := svc.AvailableSlots(r.Context(), doctorID, date)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := AvailabilityResponse{
			Date:           day.Date.Format(dateLayout),
			AvailableSlots: day.Slots,
			Rules:          make([]RulePayload, 0, len(day.Rules)),
		}
		for _, rule := range day.Rules {
			resp.Rules = append(resp.Rules, RulePayload{
				StartMinutes: rule.StartMinutes,
				EndMinutes:   rule.EndMinutes,
				SlotMinutes:  rule.SlotMinutes,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func bookHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted YYYY-MM-DD")
			return
		}

		appt, err := svc.Book(r.Context(), scheduling.BookInput{
			DoctorID:       doctorID,
			PatientID:      patientID,
			Date:           date,
			TimeMinutes:    req.TimeMinutes,
			ReasonForVisit: req.ReasonForVisit,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

// patchAppointmentHandler routes a PATCH to cancel, reschedule, confirm,
// complete or no-show based on which fields are present.
func patchAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appointmentID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req PatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		hasStatus := req.Status != nil
		hasSlot := req.Date != nil || req.TimeMinutes != nil

		switch {
		case hasStatus && hasSlot:
			writeError(w, http.StatusBadRequest, "invalid_request", "a status change and a reschedule cannot be combined")
		case hasSlot:
			rescheduleFromPatch(w, r, svc, appointmentID, req)
		case hasStatus:
			statusFromPatch(w, r, svc, appointmentID, req)
		default:
			writeError(w, http.StatusBadRequest, "invalid_request", "nothing to update")
		}
	}
}

func rescheduleFromPatch(w http.ResponseWriter, r *http.Request, svc SchedulingService, appointmentID uuid.UUID, req PatchRequest) {
	if req.Date == nil || req.TimeMinutes == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "a reschedule needs both date and time_minutes")
		return
	}
	date, err := time.Parse(dateLayout, *req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted YYYY-MM-DD")
		return
	}

	appt, err := svc.Reschedule(r.Context(), scheduling.RescheduleInput{
		AppointmentID:  appointmentID,
		NewDate:        date,
		NewTimeMinutes: *req.TimeMinutes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func statusFromPatch(w http.ResponseWriter, r *http.Request, svc SchedulingService, appointmentID uuid.UUID, req PatchRequest) {
	var (
		appt domain.Appointment
		err  error
	)

	switch domain.AppointmentStatus(*req.Status) {
	case domain.StatusConfirmed:
		appt, err = svc.Confirm(r.Context(), appointmentID)
	case domain.StatusCancelled:
		requesterID, perr := uuid.Parse(req.RequesterID)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "invalid_requester_id", "requester_id must be a valid UUID")
			return
		}
		reason := ""
		if req.CancellationReason != nil {
			reason = *req.CancellationReason
		}
		appt, err = svc.Cancel(r.Context(), scheduling.CancelInput{
			AppointmentID: appointmentID,
			RequesterID:   requesterID,
			Reason:        reason,
		})
	case domain.StatusCompleted:
		requesterID, perr := uuid.Parse(req.RequesterID)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "invalid_requester_id", "requester_id must be a valid UUID")
			return
		}
		appt, err = svc.MarkCompleted(r.Context(), appointmentID, requesterID)
	case domain.StatusNoShow:
		requesterID, perr := uuid.Parse(req.RequesterID)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "invalid_requester_id", "requester_id must be a valid UUID")
			return
		}
		appt, err = svc.MarkNoShow(r.Context(), appointmentID, requesterID)
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "unsupported target status")
		return
	}

	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func writeServiceError(w http.ResponseWriter, err error) {
	var vErr *scheduling.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "invalid_request", vErr.Error())
	case errors.Is(err, scheduling.ErrDoctorUnavailable):
		writeError(w, http.StatusUnprocessableEntity, "doctor_unavailable", err.Error())
	case errors.Is(err, scheduling.ErrSlotOutsideSchedule):
		writeError(w, http.StatusUnprocessableEntity, "slot_outside_schedule", err.Error())
	case errors.Is(err, scheduling.ErrInvalidDate):
		writeError(w, http.StatusUnprocessableEntity, "invalid_date", err.Error())
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "slot_conflict", "slot is no longer available")
	case errors.Is(err, store.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, store.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
