package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepo is an in-process Repository with the same conditional-write
// semantics as the Postgres implementation.
type memRepo struct {
	mu            sync.Mutex
	patients      map[uuid.UUID]Patient
	practitioners map[uuid.UUID]Practitioner
	calendars     map[uuid.UUID]*Calendar
	appointments  map[uuid.UUID]*Appointment
	events        []EventLog
}

func newMemRepo() *memRepo {
	return &memRepo{
		patients:      make(map[uuid.UUID]Patient),
		practitioners: make(map[uuid.UUID]Practitioner),
		calendars:     make(map[uuid.UUID]*Calendar),
		appointments:  make(map[uuid.UUID]*Appointment),
	}
}

func (r *memRepo) addPatient(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[id] = Patient{ID: id, Name: "patient"}
}

func (r *memRepo) addPractitioner(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.practitioners[id] = Practitioner{ID: id, Name: "practitioner"}
}

func (r *memRepo) putAppointment(a *Appointment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.appointments[a.ID] = &cp
}

func (r *memRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrNotFound("patient not found")
	}
	return &p, nil
}

func (r *memRepo) GetPractitionerByID(_ context.Context, id uuid.UUID) (*Practitioner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.practitioners[id]
	if !ok {
		return nil, ErrNotFound("practitioner not found")
	}
	return &p, nil
}

func copyCalendar(cal *Calendar) *Calendar {
	cp := *cal
	cp.Windows = make(map[time.Weekday]WorkingWindow, len(cal.Windows))
	for k, v := range cal.Windows {
		cp.Windows[k] = v
	}
	cp.Exceptions = make(map[string]DateException, len(cal.Exceptions))
	for k, v := range cal.Exceptions {
		cp.Exceptions[k] = v
	}
	return &cp
}

func (r *memRepo) GetCalendar(_ context.Context, practitionerID uuid.UUID) (*Calendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cal, ok := r.calendars[practitionerID]
	if !ok {
		return nil, ErrNotFound("calendar not found")
	}
	return copyCalendar(cal), nil
}

func (r *memRepo) CreateCalendar(_ context.Context, cal *Calendar) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.calendars[cal.PractitionerID]; exists {
		return ErrConflict("calendar already exists")
	}
	cal.Version = 1
	r.calendars[cal.PractitionerID] = copyCalendar(cal)
	return nil
}

func (r *memRepo) UpdateCalendar(_ context.Context, cal *Calendar, fromVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.calendars[cal.PractitionerID]
	if !ok {
		return ErrNotFound("calendar not found")
	}
	if stored.Version != fromVersion {
		return ErrConflict("calendar version mismatch")
	}
	cal.Version = fromVersion + 1
	r.calendars[cal.PractitionerID] = copyCalendar(cal)
	return nil
}

func (r *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrNotFound("appointment not found")
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) ListBlockingBetween(_ context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.PractitionerID != practitionerID || !a.Status.BlocksInterval() {
			continue
		}
		if a.Overlaps(from, to) {
			out = append(out, *a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (r *memRepo) CreateAppointmentIfFree(_ context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.appointments {
		if existing.PractitionerID != appt.PractitionerID || !existing.Status.BlocksInterval() {
			continue
		}
		if existing.Overlaps(appt.StartTime, appt.End()) {
			return ErrConflict("interval overlaps an existing appointment")
		}
	}
	now := time.Now()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	cp := *appt
	r.appointments[appt.ID] = &cp
	return nil
}

func (r *memRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrNotFound("appointment not found")
	}
	if a.Status != from {
		return nil, ErrConflict("appointment status changed concurrently")
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (r *memRepo) ListAppointments(_ context.Context, f Filter) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if f.PractitionerID != uuid.Nil && a.PractitionerID != f.PractitionerID {
			continue
		}
		if f.PatientID != uuid.Nil && a.PatientID != f.PatientID {
			continue
		}
		if !f.From.IsZero() && a.StartTime.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !a.StartTime.Before(f.To) {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Channel != "" && a.Channel != f.Channel {
			continue
		}
		out = append(out, *a)
	}
	sortByStart(out)
	return out, nil
}

func (r *memRepo) FindOverdueScheduled(_ context.Context, cutoff time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.Status == StatusScheduled && a.End().Before(cutoff) {
			out = append(out, *a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (r *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *memRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.EventType
	}
	return out
}

func sortByStart(appts []Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		return appts[i].StartTime.Before(appts[j].StartTime)
	})
}

// memLocker serializes per practitioner with plain mutexes. Unlike the
// Redis locker it blocks instead of failing fast, which is fine for tests:
// the critical section stays exclusive either way.
type memLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newMemLocker() *memLocker {
	return &memLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *memLocker) WithPractitionerLock(ctx context.Context, practitionerID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[practitionerID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[practitionerID] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}
