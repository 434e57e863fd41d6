package api

import (
	"time"

	"github.com/google/uuid"

	"medsched/internal/domain"
)

type RulePayload struct {
	StartMinutes int `json:"start_minutes"`
	EndMinutes   int `json:"end_minutes"`
	SlotMinutes  int `json:"slot_minutes"`
}

type AvailabilityResponse struct {
	Date           string        `json:"date"`
	AvailableSlots []int         `json:"available_slots"`
	Rules          []RulePayload `json:"rules"`
}

type BookRequest struct {
	DoctorID       string `json:"doctor_id"`
	PatientID      string `json:"patient_id"`
	Date           string `json:"date"`
	TimeMinutes    int    `json:"time_minutes"`
	ReasonForVisit string `json:"reason_for_visit,omitempty"`
}

// PatchRequest mutates one appointment. A status change and a reschedule
// cannot be combined in one call.
type PatchRequest struct {
	Status             *string `json:"status,omitempty"`
	Date               *string `json:"date,omitempty"`
	TimeMinutes        *int    `json:"time_minutes,omitempty"`
	CancellationReason *string `json:"cancellation_reason,omitempty"`
	RequesterID        string  `json:"requester_id,omitempty"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID `json:"id"`
	DoctorID           uuid.UUID `json:"doctor_id"`
	PatientID          uuid.UUID `json:"patient_id"`
	Date               string    `json:"date"`
	TimeMinutes        int       `json:"time_minutes"`
	Status             string    `json:"status"`
	ReasonForVisit     string    `json:"reason_for_visit,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	CancellationReason string    `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(appt domain.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 appt.ID,
		DoctorID:           appt.DoctorID,
		PatientID:          appt.PatientID,
		Date:               appt.Date.Format(dateLayout),
		TimeMinutes:        appt.TimeMinutes,
		Status:             string(appt.Status),
		ReasonForVisit:     appt.ReasonForVisit,
		Notes:              appt.Notes,
		CancellationReason: appt.CancellationReason,
		CreatedAt:          appt.CreatedAt,
		UpdatedAt:          appt.UpdatedAt,
	}
}
