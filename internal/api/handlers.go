package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/caredesk/clinic-scheduling/internal/scheduling"
)

func listSlotsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "practitioner id must be a valid UUID")
			return
		}

		dateStr := r.URL.Query().Get("date")
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "date must be YYYY-MM-DD")
			return
		}

		var slotDuration time.Duration
		if raw := r.URL.Query().Get("duration"); raw != "" {
			slotDuration, err = time.ParseDuration(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "ValidationError", "duration must be a Go duration, e.g. 30m")
				return
			}
		}

		slots, err := svc.ListSlots(r.Context(), practitionerID, date.Year(), date.Month(), date.Day(), slotDuration)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, SlotListResponse{
			PractitionerID: practitionerID,
			Date:           dateStr,
			Slots:          slots,
		})
	}
}

func bookAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "could not parse JSON body")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "patient_id must be a valid UUID")
			return
		}
		practitionerID, err := uuid.Parse(req.PractitionerID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "practitioner_id must be a valid UUID")
			return
		}
		start, err := time.Parse(time.RFC3339, req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "start must be RFC 3339")
			return
		}
		duration, err := time.ParseDuration(req.Duration)
		if err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "duration must be a Go duration, e.g. 30m")
			return
		}

		appt, err := svc.BookAppointment(r.Context(), getActor(r.Context()), scheduling.BookingInput{
			PatientID:      patientID,
			PractitionerID: practitionerID,
			Start:          start,
			Duration:       duration,
			Reason:         req.Reason,
			Notes:          req.Notes,
			Channel:        scheduling.Channel(req.Channel),
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func transitionHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "appointment id must be a valid UUID")
			return
		}

		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "could not parse JSON body")
			return
		}

		appt, err := svc.Transition(r.Context(), getActor(r.Context()), id, scheduling.Status(req.TargetStatus))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "appointment id must be a valid UUID")
			return
		}

		appt, err := svc.GetAppointment(r.Context(), getScope(r.Context()), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var f scheduling.Filter
		var err error

		if raw := q.Get("practitioner_id"); raw != "" {
			f.PractitionerID, err = uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "ValidationError", "practitioner_id must be a valid UUID")
				return
			}
		}
		if raw := q.Get("patient_id"); raw != "" {
			f.PatientID, err = uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "ValidationError", "patient_id must be a valid UUID")
				return
			}
		}
		if raw := q.Get("from"); raw != "" {
			f.From, err = time.Parse(time.RFC3339, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "ValidationError", "from must be RFC 3339")
				return
			}
		}
		if raw := q.Get("to"); raw != "" {
			f.To, err = time.Parse(time.RFC3339, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "ValidationError", "to must be RFC 3339")
				return
			}
		}
		f.Status = scheduling.Status(q.Get("status"))
		f.Channel = scheduling.Channel(q.Get("channel"))

		appts, err := svc.ListAppointments(r.Context(), getScope(r.Context()), f)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		out := make([]AppointmentResponse, len(appts))
		for i := range appts {
			out[i] = toAppointmentResponse(&appts[i])
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func createCalendarHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "practitioner id must be a valid UUID")
			return
		}

		var req CreateCalendarRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "could not parse JSON body")
			return
		}

		cal, err := svc.CreateCalendar(r.Context(), getActor(r.Context()), practitionerID, req.Timezone)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toCalendarResponse(cal, nil))
	}
}

func getCalendarHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "practitioner id must be a valid UUID")
			return
		}

		cal, err := svc.GetCalendar(r.Context(), practitionerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toCalendarResponse(cal, nil))
	}
}

func setWindowHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "practitioner id must be a valid UUID")
			return
		}

		day, ok := parseWeekday(chi.URLParam(r, "weekday"))
		if !ok {
			writeError(w, http.StatusBadRequest, "ValidationError", "weekday must be monday..sunday")
			return
		}

		var req SetWindowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "could not parse JSON body")
			return
		}

		var win *scheduling.WorkingWindow
		if req.Start != "" || req.End != "" {
			win = &scheduling.WorkingWindow{Start: req.Start, End: req.End}
		}

		update, err := svc.SetWorkingWindow(r.Context(), getActor(r.Context()), practitionerID, day, win)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toCalendarResponse(update.Calendar, update.RequiresReview))
	}
}

func setVacationHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "practitioner id must be a valid UUID")
			return
		}

		var req SetVacationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "could not parse JSON body")
			return
		}

		update, err := svc.SetVacationMode(r.Context(), getActor(r.Context()), practitionerID, req.Vacation)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toCalendarResponse(update.Calendar, update.RequiresReview))
	}
}

func setExceptionHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "practitioner id must be a valid UUID")
			return
		}

		date := chi.URLParam(r, "date")

		var req SetExceptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "could not parse JSON body")
			return
		}

		exc := scheduling.DateException{Closed: req.Closed}
		if !req.Closed {
			exc.Window = &scheduling.WorkingWindow{Start: req.Start, End: req.End}
		}

		update, err := svc.SetDateException(r.Context(), getActor(r.Context()), practitionerID, date, exc)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toCalendarResponse(update.Calendar, update.RequiresReview))
	}
}

func clearExceptionHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "practitioner id must be a valid UUID")
			return
		}

		update, err := svc.ClearDateException(r.Context(), getActor(r.Context()), practitionerID, chi.URLParam(r, "date"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toCalendarResponse(update.Calendar, update.RequiresReview))
	}
}

func parseWeekday(s string) (time.Weekday, bool) {
	switch strings.ToLower(s) {
	case "sunday":
		return time.Sunday, true
	case "monday":
		return time.Monday, true
	case "tuesday":
		return time.Tuesday, true
	case "wednesday":
		return time.Wednesday, true
	case "thursday":
		return time.Thursday, true
	case "friday":
		return time.Friday, true
	case "saturday":
		return time.Saturday, true
	}
	return 0, false
}
