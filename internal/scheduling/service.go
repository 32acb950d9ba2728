package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/caredesk/clinic-scheduling/internal/clock"
	"github.com/caredesk/clinic-scheduling/internal/config"
	redisclient "github.com/caredesk/clinic-scheduling/internal/redis"
)

const (
	EventAppointmentBooked     = "APPOINTMENT_BOOKED"
	EventAppointmentTransition = "APPOINTMENT_TRANSITION"
	EventRecordLinkageReady    = "RECORD_LINKAGE_READY"
	EventCalendarReviewNeeded  = "CALENDAR_REVIEW_NEEDED"
)

const maxReasonLength = 500

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier Notifier
	clk      clock.Clock
	cfg      config.Config
}

func NewService(repo Repository, locker redisclient.Locker, notifier Notifier, clk clock.Clock, cfg config.Config) *Service {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		clk:      clk,
		cfg:      cfg,
	}
}

// ListSlots returns the advisory slot snapshot for one practitioner and one
// date. slotDuration <= 0 selects the configured default.
func (s *Service) ListSlots(ctx context.Context, practitionerID uuid.UUID, year int, month time.Month, day int, slotDuration time.Duration) ([]Slot, error) {
	if slotDuration <= 0 {
		slotDuration = s.cfg.DefaultSlotDuration
	}
	if slotDuration < s.cfg.MinSlotDuration {
		return nil, ErrValidation("slot duration below minimum",
			"duration", slotDuration.String(), "min", s.cfg.MinSlotDuration.String())
	}

	cal, err := s.repo.GetCalendar(ctx, practitionerID)
	if err != nil {
		return nil, err
	}

	loc, err := cal.Location()
	if err != nil {
		return nil, err
	}
	dayStart := time.Date(year, month, day, 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	appts, err := s.repo.ListBlockingBetween(ctx, practitionerID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	return GenerateSlots(cal, appts, s.clk.Now(), year, month, day, slotDuration, s.cfg.LeadTime)
}

// BookingInput is the validated payload for one booking attempt.
type BookingInput struct {
	PatientID      uuid.UUID
	PractitionerID uuid.UUID
	Start          time.Time
	Duration       time.Duration
	Reason         string
	Notes          string
	Channel        Channel
}

func (s *Service) validateBooking(actor Actor, in *BookingInput, now time.Time) error {
	if in.Duration <= 0 {
		return ErrValidation("duration must be positive", "duration", in.Duration.String())
	}
	if in.Duration > s.cfg.MaxAppointmentDuration {
		return ErrValidation("duration exceeds maximum",
			"duration", in.Duration.String(), "max", s.cfg.MaxAppointmentDuration.String())
	}
	if in.Duration%time.Minute != 0 {
		return ErrValidation("duration must be whole minutes", "duration", in.Duration.String())
	}
	in.Reason = strings.TrimSpace(in.Reason)
	if in.Reason == "" {
		return ErrValidation("reason is required")
	}
	if len(in.Reason) > maxReasonLength {
		return ErrValidation("reason too long", "max_length", maxReasonLength)
	}
	switch in.Channel {
	case ChannelInPerson, ChannelVideo:
	case "":
		in.Channel = ChannelInPerson
	default:
		return ErrValidation("unknown channel", "channel", string(in.Channel))
	}
	if in.Start.Before(now) {
		return ErrValidation("start time is in the past", "start", in.Start.Format(time.RFC3339))
	}
	if actor.Role == RolePatient && actor.ID != in.PatientID {
		return ErrAuthorization("patients may only book for themselves")
	}
	return nil
}

// BookAppointment validates the request, re-checks the interval against live
// state inside the per-practitioner critical section, and commits. The slot
// list a caller saw earlier is advisory only; this check is authoritative.
func (s *Service) BookAppointment(ctx context.Context, actor Actor, in BookingInput) (*Appointment, error) {
	now := s.clk.Now()
	if err := s.validateBooking(actor, &in, now); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPatientByID(ctx, in.PatientID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetPractitionerByID(ctx, in.PractitionerID); err != nil {
		return nil, err
	}

	if !actor.Role.CanOverrideWindow() {
		cal, err := s.repo.GetCalendar(ctx, in.PractitionerID)
		if err != nil {
			return nil, err
		}
		inside, err := cal.Contains(in.Start, in.Duration)
		if err != nil {
			return nil, err
		}
		if !inside {
			return nil, ErrOutOfWindow("requested interval is outside the practitioner's working window",
				"start", in.Start.Format(time.RFC3339), "duration", in.Duration.String())
		}
	}

	status := StatusRequested
	if s.cfg.AutoConfirmBookings {
		status = StatusScheduled
	}

	appt := &Appointment{
		ID:             uuid.New(),
		PatientID:      in.PatientID,
		PractitionerID: in.PractitionerID,
		StartTime:      in.Start.UTC(),
		Duration:       in.Duration,
		Reason:         in.Reason,
		Notes:          in.Notes,
		Channel:        in.Channel,
		Status:         status,
	}

	err := s.withBookingLock(ctx, in.PractitionerID, func(lockCtx context.Context) error {
		blocking, err := s.repo.ListBlockingBetween(lockCtx, in.PractitionerID, appt.StartTime, appt.End())
		if err != nil {
			return err
		}
		for i := range blocking {
			if blocking[i].Overlaps(appt.StartTime, appt.End()) {
				return ErrConflict("interval overlaps an existing appointment",
					"conflicting_id", blocking[i].ID.String())
			}
		}
		return s.repo.CreateAppointmentIfFree(lockCtx, appt)
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, appt.ID, EventAppointmentBooked, map[string]any{
		"patient_id":      appt.PatientID.String(),
		"practitioner_id": appt.PractitionerID.String(),
		"start":           appt.StartTime,
		"duration":        appt.Duration.String(),
		"status":          string(appt.Status),
	})
	s.dispatch(ctx, EventAppointmentBooked, appt)

	return appt, nil
}

// withBookingLock serializes the booking critical section per practitioner.
// Lock contention is retried a bounded number of times, then surfaced as
// ConflictError so the caller refreshes the slot list instead of spinning.
func (s *Service) withBookingLock(ctx context.Context, practitionerID uuid.UUID, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= s.cfg.BookingLockRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.BookingRetryBackoff * time.Duration(attempt)):
			}
		}
		err = s.locker.WithPractitionerLock(ctx, practitionerID, fn)
		if !errors.Is(err, redisclient.ErrLockNotAcquired) {
			return err
		}
	}
	return ErrConflict("practitioner is being booked concurrently, retry",
		"practitioner_id", practitionerID.String())
}

// Transition moves an appointment along the state machine. The conditional
// status write serializes racing transitions on the same appointment; the
// loser sees ConflictError, never a double-applied side effect.
func (s *Service) Transition(ctx context.Context, actor Actor, id uuid.UUID, target Status) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanTransition(appt.Status, target) {
		return nil, ErrInvalidTransition("transition not permitted",
			"from", string(appt.Status), "to", string(target))
	}
	if err := authorizeTransition(actor, appt, target); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, target)
	if err != nil {
		if IsKind(err, KindConflict) {
			return nil, ErrConflict("appointment was modified concurrently",
				"appointment_id", id.String())
		}
		return nil, err
	}

	s.logEvent(ctx, updated.ID, EventAppointmentTransition, map[string]any{
		"from":     string(appt.Status),
		"to":       string(target),
		"actor_id": actor.ID.String(),
		"role":     string(actor.Role),
	})

	switch target {
	case StatusCancelled, StatusNoShow:
		// The interval is freed implicitly: conflict and slot queries skip
		// these statuses from now on.
		s.dispatch(ctx, EventAppointmentTransition, updated)
	case StatusCompleted:
		s.logEvent(ctx, updated.ID, EventRecordLinkageReady, map[string]any{
			"patient_id": updated.PatientID.String(),
		})
		s.dispatch(ctx, EventAppointmentTransition, updated)
	default:
		s.dispatch(ctx, EventAppointmentTransition, updated)
	}

	return updated, nil
}

// Scope is the role-derived visibility constraint a caller supplies with a
// query. The service enforces it on top of explicit filters; deciding what a
// role may see happens upstream.
type Scope struct {
	Actor Actor
	// PractitionerIDs restricts assistants to their assigned practitioners.
	// Empty means unrestricted (admin, or an assistant covering everyone).
	PractitionerIDs []uuid.UUID
}

// ListAppointments runs a filtered, scope-constrained listing ordered
// ascending by start time.
func (s *Service) ListAppointments(ctx context.Context, scope Scope, f Filter) ([]Appointment, error) {
	switch scope.Actor.Role {
	case RolePatient:
		if f.PatientID != uuid.Nil && f.PatientID != scope.Actor.ID {
			return nil, ErrAuthorization("patients may only list their own appointments")
		}
		f.PatientID = scope.Actor.ID
	case RolePractitioner:
		if f.PractitionerID != uuid.Nil && f.PractitionerID != scope.Actor.ID {
			return nil, ErrAuthorization("practitioners may only list their own appointments")
		}
		f.PractitionerID = scope.Actor.ID
	case RoleAssistant, RoleAdmin:
		if len(scope.PractitionerIDs) > 0 {
			return s.listForPractitioners(ctx, scope.PractitionerIDs, f)
		}
	default:
		return nil, ErrAuthorization("unknown role", "role", string(scope.Actor.Role))
	}

	return s.repo.ListAppointments(ctx, f)
}

func (s *Service) listForPractitioners(ctx context.Context, ids []uuid.UUID, f Filter) ([]Appointment, error) {
	if f.PractitionerID != uuid.Nil {
		for _, id := range ids {
			if id == f.PractitionerID {
				return s.repo.ListAppointments(ctx, f)
			}
		}
		return nil, ErrAuthorization("practitioner outside assigned scope",
			"practitioner_id", f.PractitionerID.String())
	}

	var merged []Appointment
	for _, id := range ids {
		perID := f
		perID.PractitionerID = id
		appts, err := s.repo.ListAppointments(ctx, perID)
		if err != nil {
			return nil, err
		}
		merged = append(merged, appts...)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].StartTime.Before(merged[j].StartTime)
	})
	return merged, nil
}

// GetAppointment loads one appointment, constrained by the same scope rules
// as listing.
func (s *Service) GetAppointment(ctx context.Context, scope Scope, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch scope.Actor.Role {
	case RolePatient:
		if appt.PatientID != scope.Actor.ID {
			return nil, ErrAuthorization("appointment belongs to another patient")
		}
	case RolePractitioner:
		if appt.PractitionerID != scope.Actor.ID {
			return nil, ErrAuthorization("appointment belongs to another practitioner")
		}
	case RoleAssistant:
		if len(scope.PractitionerIDs) > 0 {
			allowed := false
			for _, pid := range scope.PractitionerIDs {
				if pid == appt.PractitionerID {
					allowed = true
					break
				}
			}
			if !allowed {
				return nil, ErrAuthorization("practitioner outside assigned scope")
			}
		}
	case RoleAdmin:
	default:
		return nil, ErrAuthorization("unknown role", "role", string(scope.Actor.Role))
	}
	return appt, nil
}

// MarkOverdueNoShows sweeps scheduled appointments whose interval ended more
// than the configured grace period ago. Intended for the periodic worker.
func (s *Service) MarkOverdueNoShows(ctx context.Context) (int, error) {
	cutoff := s.clk.Now().Add(-s.cfg.NoShowGrace)
	overdue, err := s.repo.FindOverdueScheduled(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	marked := 0
	for i := range overdue {
		updated, err := s.repo.UpdateAppointmentStatus(ctx, overdue[i].ID, StatusScheduled, StatusNoShow)
		if err != nil {
			// A concurrent transition won; leave it alone.
			if IsKind(err, KindConflict) || IsKind(err, KindNotFound) {
				continue
			}
			log.Printf("no-show sweep: appointment %s: %v", overdue[i].ID, err)
			continue
		}
		marked++
		s.logEvent(ctx, updated.ID, EventAppointmentTransition, map[string]any{
			"from":   string(StatusScheduled),
			"to":     string(StatusNoShow),
			"reason": "sweep",
		})
		s.dispatch(ctx, EventAppointmentTransition, updated)
	}
	return marked, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.clk.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}

// dispatch hands the notification to the collaborator without blocking the
// request. Delivery guarantees live on that side, not here.
func (s *Service) dispatch(ctx context.Context, event string, appt *Appointment) {
	n := Notification{
		Event:          event,
		AppointmentID:  appt.ID.String(),
		PatientID:      appt.PatientID.String(),
		PractitionerID: appt.PractitionerID.String(),
	}
	go s.notifier.Notify(context.WithoutCancel(ctx), n)
}
