package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"medsched/internal/domain"
	"medsched/internal/service/scheduling"
	"medsched/internal/store"
)

type fakeService struct {
	availableSlots func(ctx context.Context, doctorID uuid.UUID, date time.Time) (scheduling.DayAvailability, error)
	book           func(ctx context.Context, in scheduling.BookInput) (domain.Appointment, error)
	confirm        func(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	cancel         func(ctx context.Context, in scheduling.CancelInput) (domain.Appointment, error)
	reschedule     func(ctx context.Context, in scheduling.RescheduleInput) (domain.Appointment, error)
	markCompleted  func(ctx context.Context, appointmentID, doctorID uuid.UUID) (domain.Appointment, error)
	markNoShow     func(ctx context.Context, appointmentID, doctorID uuid.UUID) (domain.Appointment, error)
}

func (f *fakeService) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) (scheduling.DayAvailability, error) {
	if f.availableSlots == nil {
		panic("unexpected AvailableSlots call")
	}
	return f.availableSlots(ctx, doctorID, date)
}

func (f *fakeService) Book(ctx context.Context, in scheduling.BookInput) (domain.Appointment, error) {
	if f.book == nil {
		panic("unexpected Book call")
	}
	return f.book(ctx, in)
}

func (f *fakeService) Confirm(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	if f.confirm == nil {
		panic("unexpected Confirm call")
	}
	return f.confirm(ctx, appointmentID)
}

func (f *fakeService) Cancel(ctx context.Context, in scheduling.CancelInput) (domain.Appointment, error) {
	if f.cancel == nil {
		panic("unexpected Cancel call")
	}
	return f.cancel(ctx, in)
}

func (f *fakeService) Reschedule(ctx context.Context, in scheduling.RescheduleInput) (domain.Appointment, error) {
	if f.reschedule == nil {
		panic("unexpected Reschedule call")
	}
	return f.reschedule(ctx, in)
}

func (f *fakeService) MarkCompleted(ctx context.Context, appointmentID, doctorID uuid.UUID) (domain.Appointment, error) {
	if f.markCompleted == nil {
		panic("unexpected MarkCompleted call")
	}
	return f.markCompleted(ctx, appointmentID, doctorID)
}

func (f *fakeService) MarkNoShow(ctx context.Context, appointmentID, doctorID uuid.UUID) (domain.Appointment, error) {
	if f.markNoShow == nil {
		panic("unexpected MarkNoShow call")
	}
	return f.markNoShow(ctx, appointmentID, doctorID)
}

var (
	testDoctorID  = uuid.MustParse("0193b4a0-0000-7000-8000-000000000001")
	testPatientID = uuid.MustParse("0193b4a0-0000-7000-8000-000000000002")
	testApptID    = uuid.MustParse("0193b4a0-0000-7000-8000-000000000003")
)

func testAppointment() domain.Appointment {
	return domain.Appointment{
		ID:          testApptID,
		DoctorID:    testDoctorID,
		PatientID:   testPatientID,
		Date:        time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC),
		TimeMinutes: 540,
		Status:      domain.StatusScheduled,
	}
}

func serve(t *testing.T, svc SchedulingService, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	router := NewRouter(RouterConfig{Service: svc})

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var out ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return out
}

func TestAvailabilityHandler(t *testing.T) {
	t.Run("returns slots and rules", func(t *testing.T) {
		svc := &fakeService{
			availableSlots: func(ctx context.Context, doctorID uuid.UUID, date time.Time) (scheduling.DayAvailability, error) {
				if doctorID != testDoctorID {
					t.Fatalf("doctorID = %v, want %v", doctorID, testDoctorID)
				}
				return scheduling.DayAvailability{
					Date:  date,
					Slots: []int{540, 570},
					Rules: []domain.AvailabilityRule{
						{StartMinutes: 540, EndMinutes: 600, SlotMinutes: 30},
					},
				}, nil
			},
		}

		rec := serve(t, svc, http.MethodGet, "/doctors/"+testDoctorID.String()+"/availability?date=2026-01-05", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}

		var resp AvailabilityResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if resp.Date != "2026-01-05" {
			t.Fatalf("date = %q, want %q", resp.Date, "2026-01-05")
		}
		if !reflect.DeepEqual(resp.AvailableSlots, []int{540, 570}) {
			t.Fatalf("available_slots = %v, want [540 570]", resp.AvailableSlots)
		}
		if len(resp.Rules) != 1 || resp.Rules[0].SlotMinutes != 30 {
			t.Fatalf("rules = %+v, want one 30-minute rule", resp.Rules)
		}
	})

	t.Run("rejects a malformed doctor id", func(t *testing.T) {
		rec := serve(t, &fakeService{}, http.MethodGet, "/doctors/not-a-uuid/availability?date=2026-01-05", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("rejects a missing date", func(t *testing.T) {
		rec := serve(t, &fakeService{}, http.MethodGet, "/doctors/"+testDoctorID.String()+"/availability", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
		if got := decodeError(t, rec).Error; got != "invalid_date" {
			t.Fatalf("error = %q, want %q", got, "invalid_date")
		}
	})
}

func TestBookHandler(t *testing.T) {
	body := `{"doctor_id":"` + testDoctorID.String() + `","patient_id":"` + testPatientID.String() + `","date":"2026-01-05","time_minutes":540}`

	t.Run("creates an appointment", func(t *testing.T) {
		svc := &fakeService{
			book: func(ctx context.Context, in scheduling.BookInput) (domain.Appointment, error) {
				if in.TimeMinutes != 540 {
					t.Fatalf("TimeMinutes = %d, want 540", in.TimeMinutes)
				}
				return testAppointment(), nil
			},
		}

		rec := serve(t, svc, http.MethodPost, "/appointments", body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
		}

		var resp AppointmentResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if resp.ID != testApptID || resp.Date != "2026-01-05" || resp.Status != "scheduled" {
			t.Fatalf("response = %+v", resp)
		}
	})

	t.Run("maps a slot conflict to 409", func(t *testing.T) {
		svc := &fakeService{
			book: func(ctx context.Context, in scheduling.BookInput) (domain.Appointment, error) {
				return domain.Appointment{}, store.ErrConflict
			},
		}

		rec := serve(t, svc, http.MethodPost, "/appointments", body)
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
		}
		if got := decodeError(t, rec).Error; got != "slot_conflict" {
			t.Fatalf("error = %q, want %q", got, "slot_conflict")
		}
	})

	t.Run("maps an unavailable doctor to 422", func(t *testing.T) {
		svc := &fakeService{
			book: func(ctx context.Context, in scheduling.BookInput) (domain.Appointment, error) {
				return domain.Appointment{}, scheduling.ErrDoctorUnavailable
			},
		}

		rec := serve(t, svc, http.MethodPost, "/appointments", body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
		}
		if got := decodeError(t, rec).Error; got != "doctor_unavailable" {
			t.Fatalf("error = %q, want %q", got, "doctor_unavailable")
		}
	})

	t.Run("maps an off-schedule slot to 422", func(t *testing.T) {
		svc := &fakeService{
			book: func(ctx context.Context, in scheduling.BookInput) (domain.Appointment, error) {
				return domain.Appointment{}, scheduling.ErrSlotOutsideSchedule
			},
		}

		rec := serve(t, svc, http.MethodPost, "/appointments", body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
		}
	})

	t.Run("maps storage unavailability to 503", func(t *testing.T) {
		svc := &fakeService{
			book: func(ctx context.Context, in scheduling.BookInput) (domain.Appointment, error) {
				return domain.Appointment{}, store.ErrUnavailable
			},
		}

		rec := serve(t, svc, http.MethodPost, "/appointments", body)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
		}
	})

	t.Run("rejects a malformed body", func(t *testing.T) {
		rec := serve(t, &fakeService{}, http.MethodPost, "/appointments", "{not json")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}

func TestPatchAppointmentHandler(t *testing.T) {
	patchURL := "/appointments/" + testApptID.String()

	t.Run("rejects combining a status change with a reschedule", func(t *testing.T) {
		body := `{"status":"cancelled","date":"2026-01-06","time_minutes":600}`
		rec := serve(t, &fakeService{}, http.MethodPatch, patchURL, body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
		if got := decodeError(t, rec).Error; got != "invalid_request" {
			t.Fatalf("error = %q, want %q", got, "invalid_request")
		}
	})

	t.Run("rejects an empty patch", func(t *testing.T) {
		rec := serve(t, &fakeService{}, http.MethodPatch, patchURL, "{}")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("reschedules with both fields", func(t *testing.T) {
		svc := &fakeService{
			reschedule: func(ctx context.Context, in scheduling.RescheduleInput) (domain.Appointment, error) {
				if in.AppointmentID != testApptID {
					t.Fatalf("AppointmentID = %v, want %v", in.AppointmentID, testApptID)
				}
				if in.NewTimeMinutes != 600 {
					t.Fatalf("NewTimeMinutes = %d, want 600", in.NewTimeMinutes)
				}
				appt := testAppointment()
				appt.Date = time.Date(2026, time.January, 6, 0, 0, 0, 0, time.UTC)
				appt.TimeMinutes = 600
				return appt, nil
			},
		}

		rec := serve(t, svc, http.MethodPatch, patchURL, `{"date":"2026-01-06","time_minutes":600}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}

		var resp AppointmentResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if resp.Date != "2026-01-06" || resp.TimeMinutes != 600 {
			t.Fatalf("response = %+v", resp)
		}
	})

	t.Run("rejects a reschedule missing time_minutes", func(t *testing.T) {
		rec := serve(t, &fakeService{}, http.MethodPatch, patchURL, `{"date":"2026-01-06"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("maps a reschedule conflict to 409", func(t *testing.T) {
		svc := &fakeService{
			reschedule: func(ctx context.Context, in scheduling.RescheduleInput) (domain.Appointment, error) {
				return domain.Appointment{}, store.ErrConflict
			},
		}

		rec := serve(t, svc, http.MethodPatch, patchURL, `{"date":"2026-01-06","time_minutes":600}`)
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
		}
	})

	t.Run("confirms", func(t *testing.T) {
		svc := &fakeService{
			confirm: func(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
				appt := testAppointment()
				appt.Status = domain.StatusConfirmed
				return appt, nil
			},
		}

		rec := serve(t, svc, http.MethodPatch, patchURL, `{"status":"confirmed"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("cancels with a reason and requester", func(t *testing.T) {
		svc := &fakeService{
			cancel: func(ctx context.Context, in scheduling.CancelInput) (domain.Appointment, error) {
				if in.RequesterID != testPatientID {
					t.Fatalf("RequesterID = %v, want %v", in.RequesterID, testPatientID)
				}
				if in.Reason != "feeling better" {
					t.Fatalf("Reason = %q, want %q", in.Reason, "feeling better")
				}
				appt := testAppointment()
				appt.Status = domain.StatusCancelled
				appt.CancellationReason = in.Reason
				return appt, nil
			},
		}

		body := `{"status":"cancelled","cancellation_reason":"feeling better","requester_id":"` + testPatientID.String() + `"}`
		rec := serve(t, svc, http.MethodPatch, patchURL, body)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("cancel without a reason surfaces the validation error", func(t *testing.T) {
		svc := &fakeService{
			cancel: func(ctx context.Context, in scheduling.CancelInput) (domain.Appointment, error) {
				return domain.Appointment{}, scheduling.NewValidationError("cancellation reason is required")
			},
		}

		body := `{"status":"cancelled","requester_id":"` + testPatientID.String() + `"}`
		rec := serve(t, svc, http.MethodPatch, patchURL, body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
		if got := decodeError(t, rec).Error; got != "invalid_request" {
			t.Fatalf("error = %q, want %q", got, "invalid_request")
		}
	})

	t.Run("marks completed with the doctor as requester", func(t *testing.T) {
		svc := &fakeService{
			markCompleted: func(ctx context.Context, appointmentID, doctorID uuid.UUID) (domain.Appointment, error) {
				if doctorID != testDoctorID {
					t.Fatalf("doctorID = %v, want %v", doctorID, testDoctorID)
				}
				appt := testAppointment()
				appt.Status = domain.StatusCompleted
				return appt, nil
			},
		}

		body := `{"status":"completed","requester_id":"` + testDoctorID.String() + `"}`
		rec := serve(t, svc, http.MethodPatch, patchURL, body)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("marks no-show", func(t *testing.T) {
		svc := &fakeService{
			markNoShow: func(ctx context.Context, appointmentID, doctorID uuid.UUID) (domain.Appointment, error) {
				appt := testAppointment()
				appt.Status = domain.StatusNoShow
				return appt, nil
			},
		}

		body := `{"status":"no_show","requester_id":"` + testDoctorID.String() + `"}`
		rec := serve(t, svc, http.MethodPatch, patchURL, body)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("rejects a missing requester id", func(t *testing.T) {
		rec := serve(t, &fakeService{}, http.MethodPatch, patchURL, `{"status":"completed"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("rejects an unsupported target status", func(t *testing.T) {
		rec := serve(t, &fakeService{}, http.MethodPatch, patchURL, `{"status":"archived"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("maps an illegal transition to 409", func(t *testing.T) {
		svc := &fakeService{
			confirm: func(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
				return domain.Appointment{}, store.ErrInvalidTransition
			},
		}

		rec := serve(t, svc, http.MethodPatch, patchURL, `{"status":"confirmed"}`)
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
		}
	})

	t.Run("maps an unknown appointment to 404", func(t *testing.T) {
		svc := &fakeService{
			confirm: func(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
				return domain.Appointment{}, store.ErrNotFound
			},
		}

		rec := serve(t, svc, http.MethodPatch, patchURL, `{"status":"confirmed"}`)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})
}
