package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minSlot = 10 * time.Minute

func newTestCalendar(t *testing.T) *Calendar {
	t.Helper()
	cal, err := NewCalendar(uuid.New(), "Europe/Paris")
	require.NoError(t, err)
	return cal
}

func TestNewCalendarRejectsUnknownTimezone(t *testing.T) {
	_, err := NewCalendar(uuid.New(), "Mars/Olympus_Mons")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestSetWorkingWindowValidation(t *testing.T) {
	cal := newTestCalendar(t)

	tests := []struct {
		name   string
		window WorkingWindow
	}{
		{"start after end", WorkingWindow{Start: "12:00", End: "08:00"}},
		{"start equals end", WorkingWindow{Start: "08:00", End: "08:00"}},
		{"shorter than min slot", WorkingWindow{Start: "08:00", End: "08:05"}},
		{"malformed start", WorkingWindow{Start: "8am", End: "12:00"}},
		{"malformed end", WorkingWindow{Start: "08:00", End: "25:00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cal.SetWorkingWindow(time.Monday, tt.window, minSlot)
			require.Error(t, err)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
}

func TestResolveWindowWeekdayDefault(t *testing.T) {
	cal := newTestCalendar(t)
	require.NoError(t, cal.SetWorkingWindow(time.Monday, WorkingWindow{Start: "08:00", End: "12:00"}, minSlot))

	// 2025-03-10 is a Monday.
	start, end, ok, err := cal.ResolveWindow(2025, time.March, 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 8, start.Hour())
	assert.Equal(t, 12, end.Hour())

	// Tuesday has no window.
	_, _, ok, err = cal.ResolveWindow(2025, time.March, 11)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveWindowVacationBlanksDefaults(t *testing.T) {
	cal := newTestCalendar(t)
	require.NoError(t, cal.SetWorkingWindow(time.Monday, WorkingWindow{Start: "08:00", End: "12:00"}, minSlot))

	cal.SetVacationMode(true)
	_, _, ok, err := cal.ResolveWindow(2025, time.March, 10)
	require.NoError(t, err)
	assert.False(t, ok)

	cal.SetVacationMode(false)
	_, _, ok, err = cal.ResolveWindow(2025, time.March, 10)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResolveWindowExceptionBeatsVacationAndDefault(t *testing.T) {
	cal := newTestCalendar(t)
	require.NoError(t, cal.SetWorkingWindow(time.Monday, WorkingWindow{Start: "08:00", End: "12:00"}, minSlot))
	cal.SetVacationMode(true)

	// Open exception wins over vacation.
	require.NoError(t, cal.SetDateException("2025-03-10",
		DateException{Window: &WorkingWindow{Start: "14:00", End: "16:00"}}, minSlot))

	start, end, ok, err := cal.ResolveWindow(2025, time.March, 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 14, start.Hour())
	assert.Equal(t, 16, end.Hour())

	// Closed exception wins over an active default.
	cal.SetVacationMode(false)
	require.NoError(t, cal.SetDateException("2025-03-17", DateException{Closed: true}, minSlot))
	_, _, ok, err = cal.ResolveWindow(2025, time.March, 17)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetDateExceptionValidation(t *testing.T) {
	cal := newTestCalendar(t)

	err := cal.SetDateException("next monday", DateException{Closed: true}, minSlot)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	err = cal.SetDateException("2025-03-10", DateException{}, minSlot)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestResolveWindowAcrossDSTChange(t *testing.T) {
	cal := newTestCalendar(t)
	require.NoError(t, cal.SetWorkingWindow(time.Sunday, WorkingWindow{Start: "08:00", End: "12:00"}, minSlot))

	// Paris springs forward on 2025-03-30; the window must still open at
	// 08:00 wall clock.
	start, end, ok, err := cal.ResolveWindow(2025, time.March, 30)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 8, start.Hour())
	assert.Equal(t, 12, end.Hour())
	assert.Equal(t, 3*time.Hour, end.Sub(start),
		"the 08:00-12:00 wall window is only 3 real hours on spring-forward day")
}

func TestContainsUsesHalfOpenInterval(t *testing.T) {
	cal := newTestCalendar(t)
	require.NoError(t, cal.SetWorkingWindow(time.Monday, WorkingWindow{Start: "08:00", End: "12:00"}, minSlot))

	loc, err := cal.Location()
	require.NoError(t, err)

	at := time.Date(2025, time.March, 10, 11, 30, 0, 0, loc)
	inside, err := cal.Contains(at, 30*time.Minute)
	require.NoError(t, err)
	assert.True(t, inside, "appointment ending exactly at window end fits")

	inside, err = cal.Contains(at, 31*time.Minute)
	require.NoError(t, err)
	assert.False(t, inside)

	before := time.Date(2025, time.March, 10, 7, 45, 0, 0, loc)
	inside, err = cal.Contains(before, 30*time.Minute)
	require.NoError(t, err)
	assert.False(t, inside)
}
