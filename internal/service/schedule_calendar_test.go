package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/editaliza/editaliza-api/internal/models"
	appErrors "github.com/editaliza/editaliza-api/pkg/errors"
)

func calendarPlan(examDate time.Time, hours models.WeeklyHours, duration int) *models.StudyPlan {
	return &models.StudyPlan{
		ID:                     "plan-1",
		UserID:                 "user-1",
		PlanName:               "TJ-PE 2026",
		ExamDate:               examDate,
		StudyHoursPerDay:       hours,
		SessionDurationMinutes: duration,
	}
}

func TestBuildScheduleCalendarWindowExcludesExamDay(t *testing.T) {
	// Tuesday through the following Monday, exam on Tuesday the 8th.
	now := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)
	exam := time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)
	plan := calendarPlan(exam, models.WeeklyHours{1: 2, 2: 2, 3: 2, 4: 2, 5: 2}, 60)

	cal, err := buildScheduleCalendar(plan, now, time.UTC)
	require.NoError(t, err)

	days := cal.Days()
	require.Len(t, days, 7)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), days[0].Date)
	assert.Equal(t, time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC), days[len(days)-1].Date)
	// Weekdays get 2 slots of 60 minutes, the weekend stays at zero.
	assert.Equal(t, 2, days[0].TotalSlots)
	assert.Equal(t, 0, days[4].TotalSlots) // Saturday the 5th
	assert.Equal(t, 0, days[5].TotalSlots) // Sunday the 6th
	assert.Equal(t, 10, cal.TotalCapacity())
}

func TestBuildScheduleCalendarDiscardsFractionalSlots(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	exam := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	// 2.5h at 60-minute sessions is 2 whole slots; the remainder is dropped.
	plan := calendarPlan(exam, models.WeeklyHours{0: 2.5, 1: 2.5, 2: 2.5, 3: 2.5, 4: 2.5, 5: 2.5, 6: 2.5}, 60)

	cal, err := buildScheduleCalendar(plan, now, time.UTC)
	require.NoError(t, err)
	for _, day := range cal.Days() {
		assert.Equal(t, 2, day.TotalSlots)
	}
}

func TestBuildScheduleCalendarRejectsPastExamDate(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	plan := calendarPlan(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), models.WeeklyHours{1: 4}, 50)

	_, err := buildScheduleCalendar(plan, now, time.UTC)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidExamDate))
}

func TestBuildScheduleCalendarRejectsEmptyAvailability(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	plan := calendarPlan(time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), models.WeeklyHours{}, 50)

	_, err := buildScheduleCalendar(plan, now, time.UTC)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNoAvailability))
}

func TestScheduleCalendarCursorNeverOverbooks(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	exam := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)
	plan := calendarPlan(exam, models.WeeklyHours{0: 1, 1: 1, 2: 1, 3: 1, 4: 1, 5: 1, 6: 1}, 60)

	cal, err := buildScheduleCalendar(plan, now, time.UTC)
	require.NoError(t, err)
	require.Equal(t, 3, cal.TotalCapacity())

	var dates []time.Time
	for {
		date, ok := cal.Next()
		if !ok {
			break
		}
		dates = append(dates, date)
	}
	require.Len(t, dates, 3)
	for i := 1; i < len(dates); i++ {
		assert.True(t, dates[i].After(dates[i-1]))
	}
	assert.Equal(t, 0, cal.FreeCapacity())
}

func TestScheduleCalendarPlaceOnOrAfterOnlyMovesForward(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	exam := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	plan := calendarPlan(exam, models.WeeklyHours{0: 1, 1: 1, 2: 1, 3: 1, 4: 1, 5: 1, 6: 1}, 60)

	cal, err := buildScheduleCalendar(plan, now, time.UTC)
	require.NoError(t, err)

	target := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)
	first, ok := cal.PlaceOnOrAfter(target)
	require.True(t, ok)
	assert.Equal(t, target, first)

	// The target day is now full, so the next placement bumps forward.
	second, ok := cal.PlaceOnOrAfter(target)
	require.True(t, ok)
	assert.Equal(t, target.AddDate(0, 0, 1), second)

	// Past the window there is nowhere to go.
	_, ok = cal.PlaceOnOrAfter(time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

func TestBuildScheduleCalendarUsesCivilDatesAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	// 22:30 local is already the next day in UTC; the window must start on
	// the local calendar day.
	now := time.Date(2026, 9, 1, 22, 30, 0, 0, loc)
	exam := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	plan := calendarPlan(exam, models.WeeklyHours{0: 1, 1: 1, 2: 1, 3: 1, 4: 1, 5: 1, 6: 1}, 60)

	cal, err := buildScheduleCalendar(plan, now, loc)
	require.NoError(t, err)
	first := cal.Days()[0].Date
	assert.Equal(t, 2026, first.Year())
	assert.Equal(t, time.September, first.Month())
	assert.Equal(t, 1, first.Day())
}
