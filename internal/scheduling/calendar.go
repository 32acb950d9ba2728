package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const dateKeyLayout = "2006-01-02"

// WorkingWindow is a weekday-scoped interval during which a practitioner
// accepts bookings. Times are wall-clock "HH:MM" in the calendar's zone.
type WorkingWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (w WorkingWindow) validate(minSlot time.Duration) error {
	startMin, err := parseClock(w.Start)
	if err != nil {
		return ErrValidation("invalid window start", "start", w.Start)
	}
	endMin, err := parseClock(w.End)
	if err != nil {
		return ErrValidation("invalid window end", "end", w.End)
	}
	if startMin >= endMin {
		return ErrValidation("window start must precede end", "start", w.Start, "end", w.End)
	}
	if time.Duration(endMin-startMin)*time.Minute < minSlot {
		return ErrValidation("window shorter than minimum slot duration",
			"start", w.Start, "end", w.End, "min_slot", minSlot.String())
	}
	return nil
}

// parseClock turns "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%2d:%2d", &h, &m); err != nil {
		return 0, err
	}
	if len(s) != 5 || s[2] != ':' || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("malformed clock value %q", s)
	}
	return h*60 + m, nil
}

// DateException overrides the weekday default for a single date. A closed
// exception blanks the day; an open one replaces the window.
type DateException struct {
	Closed bool           `json:"closed"`
	Window *WorkingWindow `json:"window,omitempty"`
}

// Calendar holds one practitioner's availability template. All window math
// runs in the captured Timezone so that daylight-saving shifts resolve the
// same way the practitioner's wall clock does.
type Calendar struct {
	PractitionerID uuid.UUID
	Timezone       string
	Windows        map[time.Weekday]WorkingWindow
	Exceptions     map[string]DateException
	Vacation       bool
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewCalendar(practitionerID uuid.UUID, timezone string) (*Calendar, error) {
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, ErrValidation("unknown timezone", "timezone", timezone)
	}
	return &Calendar{
		PractitionerID: practitionerID,
		Timezone:       timezone,
		Windows:        make(map[time.Weekday]WorkingWindow),
		Exceptions:     make(map[string]DateException),
	}, nil
}

func (c *Calendar) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load calendar timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SetWorkingWindow installs the default window for a weekday.
func (c *Calendar) SetWorkingWindow(day time.Weekday, w WorkingWindow, minSlot time.Duration) error {
	if err := w.validate(minSlot); err != nil {
		return err
	}
	if c.Windows == nil {
		c.Windows = make(map[time.Weekday]WorkingWindow)
	}
	c.Windows[day] = w
	return nil
}

// ClearWorkingWindow removes the weekday default, leaving the day closed.
func (c *Calendar) ClearWorkingWindow(day time.Weekday) {
	delete(c.Windows, day)
}

// SetVacationMode blanks every window while on. Existing appointments are
// untouched; only future slot generation is affected.
func (c *Calendar) SetVacationMode(on bool) {
	c.Vacation = on
}

// SetDateException overrides one date. A nil window with closed=false is
// rejected; an open exception must carry a valid window.
func (c *Calendar) SetDateException(date string, exc DateException, minSlot time.Duration) error {
	if _, err := time.Parse(dateKeyLayout, date); err != nil {
		return ErrValidation("invalid exception date", "date", date)
	}
	if !exc.Closed {
		if exc.Window == nil {
			return ErrValidation("open exception requires a window", "date", date)
		}
		if err := exc.Window.validate(minSlot); err != nil {
			return err
		}
	}
	if c.Exceptions == nil {
		c.Exceptions = make(map[string]DateException)
	}
	c.Exceptions[date] = exc
	return nil
}

func (c *Calendar) ClearDateException(date string) {
	delete(c.Exceptions, date)
}

// ResolveWindow returns the active window for a date in the calendar's zone.
// Priority: date exception, then vacation override, then weekday default.
// ok is false when the day has no bookable window.
func (c *Calendar) ResolveWindow(year int, month time.Month, day int) (start, end time.Time, ok bool, err error) {
	loc, err := c.Location()
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}

	midnight := time.Date(year, month, day, 0, 0, 0, 0, loc)
	key := midnight.Format(dateKeyLayout)

	var win WorkingWindow
	if exc, found := c.Exceptions[key]; found {
		if exc.Closed {
			return time.Time{}, time.Time{}, false, nil
		}
		win = *exc.Window
	} else if c.Vacation {
		return time.Time{}, time.Time{}, false, nil
	} else {
		def, found := c.Windows[midnight.Weekday()]
		if !found {
			return time.Time{}, time.Time{}, false, nil
		}
		win = def
	}

	startMin, perr := parseClock(win.Start)
	if perr != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("stored window start: %w", perr)
	}
	endMin, perr := parseClock(win.End)
	if perr != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("stored window end: %w", perr)
	}

	start = time.Date(year, month, day, startMin/60, startMin%60, 0, 0, loc)
	end = time.Date(year, month, day, endMin/60, endMin%60, 0, 0, loc)
	return start, end, true, nil
}

// Contains reports whether [at, at+d) fits inside the resolved window for
// the day at falls on, evaluated in the calendar's zone.
func (c *Calendar) Contains(at time.Time, d time.Duration) (bool, error) {
	loc, err := c.Location()
	if err != nil {
		return false, err
	}
	local := at.In(loc)
	start, end, ok, err := c.ResolveWindow(local.Year(), local.Month(), local.Day())
	if err != nil || !ok {
		return false, err
	}
	return !at.Before(start) && !at.Add(d).After(end), nil
}
