package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows an appointment listing. Zero-valued fields are ignored.
// Results are always ordered ascending by start time.
type Filter struct {
	PractitionerID uuid.UUID
	PatientID      uuid.UUID
	From           time.Time
	To             time.Time
	Status         Status
	Channel        Channel
}

// Repository contains all store interactions needed by the service. The
// store must provide conditional writes: CreateAppointmentIfFree only
// inserts when the interval is free, UpdateAppointmentStatus only updates
// when the current status matches, and UpdateCalendar only writes when the
// stored version matches the one read.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)

	GetCalendar(ctx context.Context, practitionerID uuid.UUID) (*Calendar, error)
	CreateCalendar(ctx context.Context, cal *Calendar) error
	// UpdateCalendar persists cal and bumps its version iff the stored
	// version equals fromVersion; otherwise it fails with ConflictError.
	UpdateCalendar(ctx context.Context, cal *Calendar, fromVersion int64) error

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// ListBlockingBetween returns the practitioner's appointments that still
	// occupy their interval (not cancelled, not no-show) and overlap
	// [from, to).
	ListBlockingBetween(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Appointment, error)
	// CreateAppointmentIfFree atomically inserts appt unless a blocking
	// appointment for the same practitioner overlaps its interval, in which
	// case it fails with ConflictError.
	CreateAppointmentIfFree(ctx context.Context, appt *Appointment) error
	// UpdateAppointmentStatus is the conditional write serializing
	// transitions per appointment: it moves id from -> to only when the
	// current status is from, and fails with ConflictError when it is not.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	ListAppointments(ctx context.Context, f Filter) ([]Appointment, error)

	// FindOverdueScheduled returns scheduled appointments whose interval
	// ended before cutoff, for the no-show sweep.
	FindOverdueScheduled(ctx context.Context, cutoff time.Time) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
