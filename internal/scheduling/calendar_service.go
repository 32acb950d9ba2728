package scheduling

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

// CalendarUpdate is the result of a calendar mutation. RequiresReview lists
// future appointments that no longer fit the resolved windows. They are
// never auto-cancelled; staff decide what happens to them.
type CalendarUpdate struct {
	Calendar       *Calendar
	RequiresReview []uuid.UUID
}

func authorizeCalendarEdit(actor Actor, practitionerID uuid.UUID) error {
	switch actor.Role {
	case RoleAdmin, RoleAssistant:
		return nil
	case RolePractitioner:
		if actor.ID != practitionerID {
			return ErrAuthorization("calendar belongs to another practitioner",
				"practitioner_id", practitionerID.String())
		}
		return nil
	default:
		return ErrAuthorization("role may not edit calendars", "role", string(actor.Role))
	}
}

// CreateCalendar installs an empty calendar for a practitioner, capturing
// the time zone all future window math runs in.
func (s *Service) CreateCalendar(ctx context.Context, actor Actor, practitionerID uuid.UUID, timezone string) (*Calendar, error) {
	if err := authorizeCalendarEdit(actor, practitionerID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetPractitionerByID(ctx, practitionerID); err != nil {
		return nil, err
	}
	cal, err := NewCalendar(practitionerID, timezone)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateCalendar(ctx, cal); err != nil {
		return nil, err
	}
	return cal, nil
}

func (s *Service) GetCalendar(ctx context.Context, practitionerID uuid.UUID) (*Calendar, error) {
	return s.repo.GetCalendar(ctx, practitionerID)
}

// SetWorkingWindow replaces the weekday default. A nil window clears the day.
func (s *Service) SetWorkingWindow(ctx context.Context, actor Actor, practitionerID uuid.UUID, day time.Weekday, win *WorkingWindow) (*CalendarUpdate, error) {
	return s.mutateCalendar(ctx, actor, practitionerID, func(cal *Calendar) error {
		if win == nil {
			cal.ClearWorkingWindow(day)
			return nil
		}
		return cal.SetWorkingWindow(day, *win, s.cfg.MinSlotDuration)
	})
}

func (s *Service) SetVacationMode(ctx context.Context, actor Actor, practitionerID uuid.UUID, on bool) (*CalendarUpdate, error) {
	return s.mutateCalendar(ctx, actor, practitionerID, func(cal *Calendar) error {
		cal.SetVacationMode(on)
		return nil
	})
}

func (s *Service) SetDateException(ctx context.Context, actor Actor, practitionerID uuid.UUID, date string, exc DateException) (*CalendarUpdate, error) {
	return s.mutateCalendar(ctx, actor, practitionerID, func(cal *Calendar) error {
		return cal.SetDateException(date, exc, s.cfg.MinSlotDuration)
	})
}

func (s *Service) ClearDateException(ctx context.Context, actor Actor, practitionerID uuid.UUID, date string) (*CalendarUpdate, error) {
	return s.mutateCalendar(ctx, actor, practitionerID, func(cal *Calendar) error {
		cal.ClearDateException(date)
		return nil
	})
}

// mutateCalendar runs the read-mutate-conditional-write loop. The version
// check serializes concurrent edits; after the configured attempts the edit
// surfaces ConflictError instead of spinning.
func (s *Service) mutateCalendar(ctx context.Context, actor Actor, practitionerID uuid.UUID, mutate func(cal *Calendar) error) (*CalendarUpdate, error) {
	if err := authorizeCalendarEdit(actor, practitionerID); err != nil {
		return nil, err
	}

	for attempt := 0; attempt <= s.cfg.CalendarUpdateRetries; attempt++ {
		cal, err := s.repo.GetCalendar(ctx, practitionerID)
		if err != nil {
			return nil, err
		}

		if err := mutate(cal); err != nil {
			return nil, err
		}

		err = s.repo.UpdateCalendar(ctx, cal, cal.Version)
		if IsKind(err, KindConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		review := s.findReviewConflicts(ctx, cal)
		return &CalendarUpdate{Calendar: cal, RequiresReview: review}, nil
	}

	return nil, ErrConflict("calendar was modified concurrently, retry",
		"practitioner_id", practitionerID.String())
}

// findReviewConflicts flags future appointments the edited calendar no
// longer accommodates. Surfacing beats silently cancelling a patient's
// appointment; failures here only lose the hint, not the edit.
func (s *Service) findReviewConflicts(ctx context.Context, cal *Calendar) []uuid.UUID {
	now := s.clk.Now()
	appts, err := s.repo.ListBlockingBetween(ctx, cal.PractitionerID, now, now.Add(s.cfg.ReviewHorizon))
	if err != nil {
		log.Printf("calendar review scan for practitioner %s: %v", cal.PractitionerID, err)
		return nil
	}

	var flagged []uuid.UUID
	for i := range appts {
		inside, err := cal.Contains(appts[i].StartTime, appts[i].Duration)
		if err != nil {
			log.Printf("calendar review check for appointment %s: %v", appts[i].ID, err)
			continue
		}
		if !inside {
			flagged = append(flagged, appts[i].ID)
		}
	}

	if len(flagged) > 0 {
		ids := make([]string, len(flagged))
		for i, id := range flagged {
			ids[i] = id.String()
		}
		payload, err := json.Marshal(map[string]any{
			"practitioner_id": cal.PractitionerID.String(),
			"appointment_ids": ids,
		})
		if err == nil {
			ev := EventLog{
				EventType: EventCalendarReviewNeeded,
				Payload:   payload,
				CreatedAt: now,
			}
			if err := s.repo.InsertEvent(ctx, ev); err != nil {
				log.Printf("insert calendar review event: %v", err)
			}
		}
	}

	return flagged
}
