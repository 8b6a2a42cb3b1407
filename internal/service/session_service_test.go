package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/editaliza/editaliza-api/internal/dto"
	"github.com/editaliza/editaliza-api/internal/models"
	appErrors "github.com/editaliza/editaliza-api/pkg/errors"
)

type mockSessionRepo struct {
	sessions  map[string]*models.StudySession
	counts    map[string]int
	created   []*models.StudySession
	postponed map[string]time.Time
	completed map[string]time.Time
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{
		sessions:  map[string]*models.StudySession{},
		counts:    map[string]int{},
		postponed: map[string]time.Time{},
		completed: map[string]time.Time{},
	}
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*models.StudySession, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *session
	return &clone, nil
}

func (m *mockSessionRepo) ListByPlan(ctx context.Context, planID string, filter models.SessionFilter) ([]models.StudySession, int, error) {
	var out []models.StudySession
	for _, session := range m.sessions {
		if session.StudyPlanID == planID {
			out = append(out, *session)
		}
	}
	return out, len(out), nil
}

func (m *mockSessionRepo) ListOverdue(ctx context.Context, planID string, before time.Time) ([]models.StudySession, error) {
	var out []models.StudySession
	for _, id := range []string{"s-old-1", "s-old-2", "s-old-3"} {
		session, ok := m.sessions[id]
		if !ok {
			continue
		}
		if session.Status == models.SessionStatusPending && session.SessionDate.Before(before) {
			out = append(out, *session)
		}
	}
	return out, nil
}

func (m *mockSessionRepo) Complete(ctx context.Context, id string, questionsSolved, timeStudiedSecs *int, completedAt time.Time) error {
	m.completed[id] = completedAt
	if session, ok := m.sessions[id]; ok {
		session.Status = models.SessionStatusCompleted
	}
	return nil
}

func (m *mockSessionRepo) Postpone(ctx context.Context, id string, newDate time.Time) error {
	m.postponed[id] = newDate
	if session, ok := m.sessions[id]; ok {
		session.Status = models.SessionStatusPostponed
		session.SessionDate = newDate
	}
	return nil
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.StudySession) error {
	session.ID = "sess-new"
	m.created = append(m.created, session)
	return nil
}

func (m *mockSessionRepo) CountByDate(ctx context.Context, planID string, from time.Time) (map[string]int, error) {
	counts := make(map[string]int, len(m.counts))
	for key, n := range m.counts {
		counts[key] = n
	}
	return counts, nil
}

type topicStatusSpy struct {
	statuses map[string]models.TopicStatus
}

func (t *topicStatusSpy) UpdateStatus(ctx context.Context, id string, status models.TopicStatus, completionDate *time.Time) error {
	if t.statuses == nil {
		t.statuses = map[string]models.TopicStatus{}
	}
	t.statuses[id] = status
	return nil
}

var sessionFixtureNow = time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

// everyDayPlan studies one hour per weekday with hour-long sessions, so every
// calendar day has exactly one slot.
func everyDayPlan() *models.StudyPlan {
	hours := models.WeeklyHours{}
	for day := 0; day <= 6; day++ {
		hours[day] = 1
	}
	return &models.StudyPlan{
		ID:                     "plan-1",
		UserID:                 "user-1",
		PlanName:               "Plano diário",
		ExamDate:               time.Date(2026, 9, 11, 0, 0, 0, 0, time.UTC),
		StudyHoursPerDay:       hours,
		SessionDurationMinutes: 60,
	}
}

func sessionServiceFixture(plan *models.StudyPlan) (*SessionService, *mockSessionRepo, *topicStatusSpy) {
	repo := newMockSessionRepo()
	topics := &topicStatusSpy{}
	plans := &mockPlanRepo{plans: map[string]*models.StudyPlan{plan.ID: plan}}
	svc := NewSessionService(repo, plans, topics, nil, 0, nil, nil, time.UTC)
	svc.clock = func() time.Time { return sessionFixtureNow }
	return svc, repo, topics
}

func pendingSession(id string, date time.Time, sessionType models.SessionType) *models.StudySession {
	topicID := "topic-" + id
	subjectID := "subj-1"
	return &models.StudySession{
		ID:               id,
		StudyPlanID:      "plan-1",
		SubjectID:        &subjectID,
		TopicID:          &topicID,
		SubjectName:      "Matemática",
		TopicDescription: "Tópico " + id,
		SessionDate:      date,
		SessionType:      sessionType,
		Status:           models.SessionStatusPending,
		DurationMinutes:  60,
	}
}

func TestSessionServiceCompleteMarksTopicDone(t *testing.T) {
	svc, repo, topics := sessionServiceFixture(everyDayPlan())
	repo.sessions["s-1"] = pendingSession("s-1", sessionFixtureNow, models.SessionTypeNewTopic)

	questions := 20
	session, err := svc.Complete(context.Background(), "s-1", "user-1", dto.CompleteSessionRequest{QuestionsSolved: &questions})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, session.Status)
	require.NotNil(t, session.CompletedAt)
	assert.Equal(t, models.TopicStatusCompleted, topics.statuses["topic-s-1"])
}

func TestSessionServiceCompleteReviewLeavesTopicAlone(t *testing.T) {
	svc, repo, topics := sessionServiceFixture(everyDayPlan())
	repo.sessions["s-1"] = pendingSession("s-1", sessionFixtureNow, models.SessionTypeReview7D)

	_, err := svc.Complete(context.Background(), "s-1", "user-1", dto.CompleteSessionRequest{})
	require.NoError(t, err)
	assert.Empty(t, topics.statuses)
}

func TestSessionServiceCompleteTwiceConflicts(t *testing.T) {
	svc, repo, _ := sessionServiceFixture(everyDayPlan())
	done := pendingSession("s-1", sessionFixtureNow, models.SessionTypeNewTopic)
	done.Status = models.SessionStatusCompleted
	repo.sessions["s-1"] = done

	_, err := svc.Complete(context.Background(), "s-1", "user-1", dto.CompleteSessionRequest{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestSessionServicePostponeDefaultsToOneDay(t *testing.T) {
	svc, repo, _ := sessionServiceFixture(everyDayPlan())
	date := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	repo.sessions["s-1"] = pendingSession("s-1", date, models.SessionTypeNewTopic)

	session, err := svc.Postpone(context.Background(), "s-1", "user-1", dto.PostponeSessionRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusPostponed, session.Status)
	assert.Equal(t, date.AddDate(0, 0, 1), session.SessionDate)
}

func TestSessionServicePostponeNeverCrossesExam(t *testing.T) {
	svc, repo, _ := sessionServiceFixture(everyDayPlan())
	date := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	repo.sessions["s-1"] = pendingSession("s-1", date, models.SessionTypeNewTopic)

	_, err := svc.Postpone(context.Background(), "s-1", "user-1", dto.PostponeSessionRequest{Days: 5})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidExamDate))
}

func TestSessionServiceReinforceCreatesExtraSession(t *testing.T) {
	svc, repo, _ := sessionServiceFixture(everyDayPlan())
	repo.sessions["s-1"] = pendingSession("s-1", sessionFixtureNow, models.SessionTypeNewTopic)
	repo.counts["2026-09-02"] = 1

	extra, err := svc.Reinforce(context.Background(), "s-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionTypeReinforce, extra.SessionType)
	assert.Equal(t, "Tópico s-1", extra.TopicDescription)
	// Sep 2 is full, so the extra session lands on the 3rd.
	assert.Equal(t, time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC), extra.SessionDate)
	require.Len(t, repo.created, 1)
}

func TestSessionServiceReplanShiftsOverdueInOrder(t *testing.T) {
	svc, repo, _ := sessionServiceFixture(everyDayPlan())
	repo.sessions["s-old-1"] = pendingSession("s-old-1", time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), models.SessionTypeNewTopic)
	repo.sessions["s-old-2"] = pendingSession("s-old-2", time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), models.SessionTypeNewTopic)
	repo.counts["2026-09-01"] = 1

	result, err := svc.Replan(context.Background(), "plan-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rescheduled)
	assert.Equal(t, 0, result.Failed)
	// Today is full, so the overdue pair fills the next two free days in order.
	assert.Equal(t, time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC), repo.postponed["s-old-1"])
	assert.Equal(t, time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC), repo.postponed["s-old-2"])
}

func TestSessionServiceReplanReportsUnplaceable(t *testing.T) {
	plan := everyDayPlan()
	plan.ExamDate = time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	svc, repo, _ := sessionServiceFixture(plan)
	repo.sessions["s-old-1"] = pendingSession("s-old-1", time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), models.SessionTypeNewTopic)
	repo.sessions["s-old-2"] = pendingSession("s-old-2", time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), models.SessionTypeNewTopic)
	repo.sessions["s-old-3"] = pendingSession("s-old-3", time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), models.SessionTypeNewTopic)

	result, err := svc.Replan(context.Background(), "plan-1", "user-1")
	require.NoError(t, err)
	// Only Sep 1 and Sep 2 remain before the exam.
	assert.Equal(t, 2, result.Rescheduled)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "CAPACITY_EXCEEDED", result.Warnings[0].Code)
}

func TestSessionServiceListGroupsByDate(t *testing.T) {
	svc, repo, _ := sessionServiceFixture(everyDayPlan())
	day1 := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	repo.sessions["s-1"] = pendingSession("s-1", day1, models.SessionTypeNewTopic)

	days, total, err := svc.ListByPlan(context.Background(), "plan-1", "user-1", dto.SessionQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, days, 1)
	assert.Equal(t, "2026-09-02", days[0].Date)
	require.Len(t, days[0].Sessions, 1)
}

func TestSessionServiceForeignSessionLooksMissing(t *testing.T) {
	svc, repo, _ := sessionServiceFixture(everyDayPlan())
	repo.sessions["s-1"] = pendingSession("s-1", sessionFixtureNow, models.SessionTypeNewTopic)

	_, err := svc.Complete(context.Background(), "s-1", "intruder", dto.CompleteSessionRequest{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
