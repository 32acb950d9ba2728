package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusRequested  Status = "requested"
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// BlocksInterval reports whether an appointment in status s still occupies
// its interval for conflict checks. Cancelled and no-show appointments free
// the interval for future slot generation.
func (s Status) BlocksInterval() bool {
	return s != StatusCancelled && s != StatusNoShow
}

type Channel string

const (
	ChannelInPerson Channel = "in_person"
	ChannelVideo    Channel = "video"
)

type Role string

const (
	RolePatient      Role = "patient"
	RolePractitioner Role = "practitioner"
	RoleAssistant    Role = "assistant"
	RoleAdmin        Role = "admin"
)

// CanOverrideWindow reports whether the role may book outside a
// practitioner's active window (emergency override).
func (r Role) CanOverrideWindow() bool {
	return r == RoleAdmin || r == RoleAssistant
}

// Actor identifies the caller of an operation. Identity resolution happens
// upstream; the core only ever sees the resolved id and role.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Practitioner struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	PractitionerID uuid.UUID
	StartTime      time.Time
	Duration       time.Duration
	Reason         string
	Notes          string
	Channel        Channel
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// End returns the exclusive end of the appointment interval.
func (a *Appointment) End() time.Time {
	return a.StartTime.Add(a.Duration)
}

// Overlaps reports whether [start, end) intersects the appointment interval.
// Both intervals are half-open, so back-to-back appointments do not collide.
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return a.StartTime.Before(end) && start.Before(a.End())
}

// Slot is a derived bookable interval. Slots are recomputed on every query
// and never persisted; a listed slot confers no reservation.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
	Reason    string    `json:"reason,omitempty"`
}

// Slot unavailability reasons.
const (
	SlotReasonBooked   = "booked"
	SlotReasonLeadTime = "insufficient lead time"
)

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
