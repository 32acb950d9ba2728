package scheduling

import (
	"context"
	"log"
)

// Notification describes a dispatch to the external notification
// collaborator (email/SMS reminders live outside this core).
type Notification struct {
	Event          string
	AppointmentID  string
	PatientID      string
	PractitionerID string
}

// Notifier delivers notifications. Dispatch is fire-and-forget from the
// core's perspective; at-least-once delivery is the collaborator's problem.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// LogNotifier is the default sink when no real dispatcher is wired.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) {
	log.Printf("notify event=%s appointment=%s patient=%s practitioner=%s",
		n.Event, n.AppointmentID, n.PatientID, n.PractitionerID)
}
