package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/caredesk/clinic-scheduling/internal/scheduling"
)

type BookAppointmentRequest struct {
	PatientID      string `json:"patient_id"`
	PractitionerID string `json:"practitioner_id"`
	Start          string `json:"start"`    // RFC 3339
	Duration       string `json:"duration"` // Go duration, e.g. "30m"
	Reason         string `json:"reason"`
	Notes          string `json:"notes,omitempty"`
	Channel        string `json:"channel,omitempty"`
}

type TransitionRequest struct {
	TargetStatus string `json:"target_status"`
}

type CreateCalendarRequest struct {
	Timezone string `json:"timezone"`
}

type SetWindowRequest struct {
	Start string `json:"start"` // "HH:MM", empty start+end clears the day
	End   string `json:"end"`
}

type SetVacationRequest struct {
	Vacation bool `json:"vacation"`
}

type SetExceptionRequest struct {
	Closed bool   `json:"closed"`
	Start  string `json:"start,omitempty"`
	End    string `json:"end,omitempty"`
}

type AppointmentResponse struct {
	ID             uuid.UUID `json:"id"`
	PatientID      uuid.UUID `json:"patient_id"`
	PractitionerID uuid.UUID `json:"practitioner_id"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Duration       string    `json:"duration"`
	Reason         string    `json:"reason"`
	Notes          string    `json:"notes,omitempty"`
	Channel        string    `json:"channel"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID,
		PatientID:      a.PatientID,
		PractitionerID: a.PractitionerID,
		Start:          a.StartTime,
		End:            a.End(),
		Duration:       a.Duration.String(),
		Reason:         a.Reason,
		Notes:          a.Notes,
		Channel:        string(a.Channel),
		Status:         string(a.Status),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

type SlotListResponse struct {
	PractitionerID uuid.UUID         `json:"practitioner_id"`
	Date           string            `json:"date"`
	Slots          []scheduling.Slot `json:"slots"`
}

type CalendarResponse struct {
	PractitionerID uuid.UUID                             `json:"practitioner_id"`
	Timezone       string                                `json:"timezone"`
	Windows        map[string]scheduling.WorkingWindow   `json:"windows"`
	Exceptions     map[string]scheduling.DateException   `json:"exceptions,omitempty"`
	Vacation       bool                                  `json:"vacation"`
	Version        int64                                 `json:"version"`
	RequiresReview []uuid.UUID                           `json:"requires_review,omitempty"`
}

func toCalendarResponse(cal *scheduling.Calendar, review []uuid.UUID) CalendarResponse {
	windows := make(map[string]scheduling.WorkingWindow, len(cal.Windows))
	for day, win := range cal.Windows {
		windows[day.String()] = win
	}
	return CalendarResponse{
		PractitionerID: cal.PractitionerID,
		Timezone:       cal.Timezone,
		Windows:        windows,
		Exceptions:     cal.Exceptions,
		Vacation:       cal.Vacation,
		Version:        cal.Version,
		RequiresReview: review,
	}
}

// ErrorResponse mirrors the typed error shape of the scheduling package.
type ErrorResponse struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}
