package scheduling

// transitionTable lists every legal outgoing edge of the appointment state
// machine. Terminal states have no entry.
var transitionTable = map[Status][]Status{
	StatusRequested:  {StatusScheduled, StatusCancelled},
	StatusScheduled:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from -> to is a legal edge. A same-status
// "transition" is never legal, so side effects cannot be applied twice.
func CanTransition(from, to Status) bool {
	for _, next := range transitionTable[from] {
		if next == to {
			return true
		}
	}
	return false
}

// authorizeTransition checks role gates for a legal edge. Ownership matters
// for patients: they may only act on their own appointments, and only to
// cancel. Clinical progression is the practitioner's alone.
func authorizeTransition(actor Actor, appt *Appointment, to Status) error {
	switch actor.Role {
	case RoleAdmin, RoleAssistant:
		// Front-desk staff confirm, cancel, and mark no-shows, but do not
		// drive the in-room flow.
		if to == StatusInProgress || to == StatusCompleted {
			return ErrAuthorization("only the practitioner may progress a visit",
				"role", string(actor.Role), "target", string(to))
		}
		return nil
	case RolePractitioner:
		if actor.ID != appt.PractitionerID {
			return ErrAuthorization("appointment belongs to another practitioner",
				"appointment_id", appt.ID.String())
		}
		return nil
	case RolePatient:
		if actor.ID != appt.PatientID {
			return ErrAuthorization("appointment belongs to another patient",
				"appointment_id", appt.ID.String())
		}
		if to != StatusCancelled {
			return ErrAuthorization("patients may only cancel",
				"target", string(to))
		}
		return nil
	default:
		return ErrAuthorization("unknown role", "role", string(actor.Role))
	}
}
