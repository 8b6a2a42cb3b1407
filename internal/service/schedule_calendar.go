package service

import (
	"time"

	"github.com/editaliza/editaliza-api/internal/models"
	appErrors "github.com/editaliza/editaliza-api/pkg/errors"
)

// calendarDay is one eligible study date with its slot budget. Slot counts
// derive from the weekday hours of the plan; a weekday configured with zero
// hours stays in the sequence with zero slots.
type calendarDay struct {
	Date       time.Time
	TotalSlots int
	UsedSlots  int
}

func (d *calendarDay) Free() int {
	return d.TotalSlots - d.UsedSlots
}

// scheduleCalendar is the ordered sequence of study dates between the start
// boundary and the exam date, exclusive. All date arithmetic happens on civil
// dates in the plan's timezone so that DST shifts never move a calendar day.
type scheduleCalendar struct {
	days   []calendarDay
	cursor int
}

// buildScheduleCalendar computes the calendar for one generation pass.
// The start boundary is "today" in the given location; the exam date itself
// is reserved and never receives sessions.
func buildScheduleCalendar(plan *models.StudyPlan, now time.Time, loc *time.Location) (*scheduleCalendar, error) {
	start := civilDate(now.In(loc))
	exam := civilDateIn(plan.ExamDate, loc)
	if !exam.After(start) {
		return nil, appErrors.ErrInvalidExamDate
	}
	if plan.StudyHoursPerDay.Total() <= 0 {
		return nil, appErrors.ErrNoAvailability
	}

	duration := plan.SessionDurationMinutes
	if duration <= 0 {
		duration = 50
	}

	cal := &scheduleCalendar{}
	for date := start; date.Before(exam); date = date.AddDate(0, 0, 1) {
		hours := plan.StudyHoursPerDay[int(date.Weekday())]
		slots := int(hours * 60 / float64(duration))
		if slots < 0 {
			slots = 0
		}
		cal.days = append(cal.days, calendarDay{Date: date, TotalSlots: slots})
	}
	if cal.TotalCapacity() == 0 {
		return nil, appErrors.ErrNoAvailability
	}
	return cal, nil
}

// TotalCapacity returns the number of session slots across the window.
func (c *scheduleCalendar) TotalCapacity() int {
	total := 0
	for i := range c.days {
		total += c.days[i].TotalSlots
	}
	return total
}

// FreeCapacity returns the number of unallocated slots across the window.
func (c *scheduleCalendar) FreeCapacity() int {
	free := 0
	for i := range c.days {
		free += c.days[i].Free()
	}
	return free
}

// Next allocates one slot at or after the cursor and returns its date.
// The cursor only moves forward, preserving insertion order across calls.
func (c *scheduleCalendar) Next() (time.Time, bool) {
	for c.cursor < len(c.days) {
		day := &c.days[c.cursor]
		if day.Free() > 0 {
			day.UsedSlots++
			return day.Date, true
		}
		c.cursor++
	}
	return time.Time{}, false
}

// PlaceOnOrAfter allocates one slot on the first day with free capacity at or
// after the target date. It never places before the target, so derived review
// sessions only move forward.
func (c *scheduleCalendar) PlaceOnOrAfter(target time.Time) (time.Time, bool) {
	for i := range c.days {
		day := &c.days[i]
		if day.Date.Before(target) {
			continue
		}
		if day.Free() > 0 {
			day.UsedSlots++
			return day.Date, true
		}
	}
	return time.Time{}, false
}

// Days exposes the computed window for cadence walks.
func (c *scheduleCalendar) Days() []calendarDay {
	return c.days
}

// civilDate truncates an in-location instant to its civil date, keeping the
// location so weekday math stays in local time.
func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// civilDateIn reinterprets a stored date column as a civil date in loc.
// DATE columns scan as midnight UTC; using the UTC fields directly avoids
// shifting the day when converting into the plan's timezone.
func civilDateIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
