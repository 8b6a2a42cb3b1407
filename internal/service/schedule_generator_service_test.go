package service

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/editaliza/editaliza-api/internal/models"
	appErrors "github.com/editaliza/editaliza-api/pkg/errors"
)

// --- Fixtures ---

type planReaderStub struct {
	plans map[string]*models.StudyPlan
}

func (s planReaderStub) FindByID(ctx context.Context, id string) (*models.StudyPlan, error) {
	if plan, ok := s.plans[id]; ok {
		clone := *plan
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

type topicListerStub struct {
	topics []models.ScheduleTopic
}

func (s topicListerStub) ListScheduleTopics(ctx context.Context, planID string) ([]models.ScheduleTopic, error) {
	return s.topics, nil
}

type sessionStoreStub struct {
	completed   []models.StudySession
	deletedFrom *time.Time
	inserted    []models.StudySession
}

func (s *sessionStoreStub) ListCompletedByPlan(ctx context.Context, exec sqlx.ExtContext, planID string) ([]models.StudySession, error) {
	return s.completed, nil
}

func (s *sessionStoreStub) DeleteReplaceable(ctx context.Context, exec sqlx.ExtContext, planID string, from time.Time) (int64, error) {
	s.deletedFrom = &from
	return int64(len(s.inserted)), nil
}

func (s *sessionStoreStub) InsertBatch(ctx context.Context, exec sqlx.ExtContext, sessions []models.StudySession) error {
	s.inserted = append([]models.StudySession(nil), sessions...)
	return nil
}

type exclusionStoreStub struct {
	replaced []models.ExcludedTopic
}

func (s *exclusionStoreStub) ReplaceForPlan(ctx context.Context, exec sqlx.ExtContext, planID string, exclusions []models.ExcludedTopic) error {
	s.replaced = append([]models.ExcludedTopic(nil), exclusions...)
	return nil
}

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (*txProviderMock, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

func (p *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return p.db.BeginTxx(ctx, opts)
}

type generatorFixture struct {
	service    *ScheduleGeneratorService
	sessions   *sessionStoreStub
	exclusions *exclusionStoreStub
	mock       sqlmock.Sqlmock
}

var fixtureNow = time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

func newGeneratorFixture(t *testing.T, plan *models.StudyPlan, topics []models.ScheduleTopic, completed []models.StudySession) *generatorFixture {
	t.Helper()
	tx, mock := newTxProviderMock(t)
	sessions := &sessionStoreStub{completed: completed}
	exclusions := &exclusionStoreStub{}

	service := NewScheduleGeneratorService(
		planReaderStub{plans: map[string]*models.StudyPlan{plan.ID: plan}},
		topicListerStub{topics: topics},
		sessions,
		exclusions,
		tx,
		nil,
		nil,
		zap.NewNop(),
		ScheduleGeneratorConfig{
			Location: time.UTC,
			Clock:    func() time.Time { return fixtureNow },
		},
	)
	return &generatorFixture{service: service, sessions: sessions, exclusions: exclusions, mock: mock}
}

func (f *generatorFixture) expectHappyTx() {
	f.mock.ExpectBegin()
	f.mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectCommit()
}

func examplePlan() *models.StudyPlan {
	return &models.StudyPlan{
		ID:                     "plan-1",
		UserID:                 "user-1",
		PlanName:               "TJ-PE 2026",
		ExamDate:               fixtureNow.AddDate(0, 0, 90),
		StudyHoursPerDay:       models.WeeklyHours{1: 4, 2: 4, 3: 4, 4: 4, 5: 4},
		SessionDurationMinutes: 50,
	}
}

func exampleBacklog() []models.ScheduleTopic {
	var topics []models.ScheduleTopic
	topics = append(topics, scheduleTopic("t-mat-1", "s-mat", "Matemática", 5, 5, 1))
	topics = append(topics, scheduleTopic("t-mat-2", "s-mat", "Matemática", 5, 3, 1))
	topics = append(topics, scheduleTopic("t-mat-3", "s-mat", "Matemática", 5, 2, 1))
	topics = append(topics, scheduleTopic("t-port-1", "s-port", "Português", 3, 5, 1))
	topics = append(topics, scheduleTopic("t-port-2", "s-port", "Português", 3, 3, 1))
	topics = append(topics, scheduleTopic("t-port-3", "s-port", "Português", 3, 2, 1))
	return topics
}

// --- Tests ---

func TestScheduleGeneratorServiceGenerateBasicScenario(t *testing.T) {
	fixture := newGeneratorFixture(t, examplePlan(), exampleBacklog(), nil)
	fixture.expectHappyTx()

	result, err := fixture.service.Generate(context.Background(), "plan-1", "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, result.Sessions)
	assert.LessOrEqual(t, result.Stats.TotalSessions, result.Stats.AvailableSlots)
	assert.Equal(t, 6, result.Stats.NewTopicSessions)
	assert.Empty(t, result.ExcludedTopics)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, result.Sessions, fixture.sessions.inserted)

	exam := fixtureNow.AddDate(0, 0, 90)
	for _, session := range result.Sessions {
		assert.True(t, session.SessionDate.Before(exam))
		assert.Equal(t, models.SessionStatusPending, session.Status)
	}
	require.NotNil(t, fixture.sessions.deletedFrom)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), *fixture.sessions.deletedFrom)
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestScheduleGeneratorServiceGenerateIsDeterministic(t *testing.T) {
	run := func() []models.StudySession {
		fixture := newGeneratorFixture(t, examplePlan(), exampleBacklog(), nil)
		fixture.expectHappyTx()
		result, err := fixture.service.Generate(context.Background(), "plan-1", "user-1")
		require.NoError(t, err)
		return result.Sessions
	}

	first := run()
	second := run()
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].SessionDate, second[i].SessionDate)
		assert.Equal(t, first[i].SessionType, second[i].SessionType)
		assert.Equal(t, first[i].TopicDescription, second[i].TopicDescription)
	}
}

func TestScheduleGeneratorServiceRegeneratePreservesCompleted(t *testing.T) {
	topicID := "t-mat-1"
	subjectID := "s-mat"
	completed := []models.StudySession{{
		ID:               "sess-done",
		StudyPlanID:      "plan-1",
		SubjectID:        &subjectID,
		TopicID:          &topicID,
		SubjectName:      "Matemática",
		TopicDescription: "Tópico t-mat-1",
		SessionDate:      fixtureNow.AddDate(0, 0, -10),
		SessionType:      models.SessionTypeNewTopic,
		Status:           models.SessionStatusCompleted,
	}}

	fixture := newGeneratorFixture(t, examplePlan(), exampleBacklog(), completed)
	fixture.expectHappyTx()

	result, err := fixture.service.Regenerate(context.Background(), "plan-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stats.PreservedSessions)

	// The completed row is never re-inserted; only its forward-looking
	// reviews are derived from it.
	for _, session := range fixture.sessions.inserted {
		assert.NotEqual(t, "sess-done", session.ID)
		assert.NotEqual(t, models.SessionStatusCompleted, session.Status)
	}
	var derivedReviews int
	for _, session := range fixture.sessions.inserted {
		if session.TopicID != nil && *session.TopicID == topicID && session.SessionType != models.SessionTypeNewTopic {
			derivedReviews++
		}
	}
	assert.Greater(t, derivedReviews, 0)
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestScheduleGeneratorServiceRetaFinalReportsExclusions(t *testing.T) {
	plan := examplePlan()
	plan.RetaFinalMode = true
	plan.ExamDate = fixtureNow.AddDate(0, 0, 3)
	plan.StudyHoursPerDay = models.WeeklyHours{0: 1, 1: 1, 2: 1, 3: 1, 4: 1, 5: 1, 6: 1}
	plan.SessionDurationMinutes = 60

	var topics []models.ScheduleTopic
	topics = append(topics, scheduleTopic("t-1", "s-mat", "Matemática", 5, 5, 1))
	topics = append(topics, scheduleTopic("t-2", "s-mat", "Matemática", 5, 4, 1))
	topics = append(topics, scheduleTopic("t-3", "s-port", "Português", 3, 3, 1))
	topics = append(topics, scheduleTopic("t-4", "s-port", "Português", 3, 2, 1))
	topics = append(topics, scheduleTopic("t-5", "s-port", "Português", 3, 1, 1))

	fixture := newGeneratorFixture(t, plan, topics, nil)
	fixture.expectHappyTx()

	result, err := fixture.service.Generate(context.Background(), "plan-1", "user-1")
	require.NoError(t, err)

	// 3 slots fit 3 topics; the two lowest-priority ones are cut.
	require.Len(t, result.ExcludedTopics, 2)
	assert.Equal(t, "t-4", result.ExcludedTopics[0].TopicID)
	assert.Equal(t, "t-5", result.ExcludedTopics[1].TopicID)
	require.Len(t, fixture.exclusions.replaced, 2)
	assert.Equal(t, "Sem tempo hábil antes da prova", fixture.exclusions.replaced[0].Reason)
	assert.Equal(t, 3, result.Stats.NewTopicSessions)
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestScheduleGeneratorServiceCapacityExceededIsAWarning(t *testing.T) {
	plan := examplePlan()
	plan.ExamDate = fixtureNow.AddDate(0, 0, 2)
	plan.StudyHoursPerDay = models.WeeklyHours{0: 1, 1: 1, 2: 1, 3: 1, 4: 1, 5: 1, 6: 1}
	plan.SessionDurationMinutes = 60

	fixture := newGeneratorFixture(t, plan, exampleBacklog(), nil)
	fixture.expectHappyTx()

	result, err := fixture.service.Generate(context.Background(), "plan-1", "user-1")
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "CAPACITY_EXCEEDED", result.Warnings[0].Code)
	assert.Len(t, result.Warnings[0].UnscheduledTopics, 4)
	assert.Equal(t, 2, result.Stats.NewTopicSessions)
}

func TestScheduleGeneratorServiceErrorTaxonomy(t *testing.T) {
	t.Run("unknown plan", func(t *testing.T) {
		fixture := newGeneratorFixture(t, examplePlan(), exampleBacklog(), nil)
		_, err := fixture.service.Generate(context.Background(), "plan-missing", "user-1")
		require.Error(t, err)
		assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	})

	t.Run("foreign plan looks missing", func(t *testing.T) {
		fixture := newGeneratorFixture(t, examplePlan(), exampleBacklog(), nil)
		_, err := fixture.service.Generate(context.Background(), "plan-1", "user-2")
		require.Error(t, err)
		assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	})

	t.Run("exam date in the past", func(t *testing.T) {
		plan := examplePlan()
		plan.ExamDate = fixtureNow.AddDate(0, 0, -1)
		fixture := newGeneratorFixture(t, plan, exampleBacklog(), nil)
		_, err := fixture.service.Generate(context.Background(), "plan-1", "user-1")
		require.Error(t, err)
		assert.True(t, appErrors.Is(err, appErrors.ErrInvalidExamDate))
	})

	t.Run("no topics", func(t *testing.T) {
		fixture := newGeneratorFixture(t, examplePlan(), nil, nil)
		_, err := fixture.service.Generate(context.Background(), "plan-1", "user-1")
		require.Error(t, err)
		assert.True(t, appErrors.Is(err, appErrors.ErrNoTopics))
	})

	t.Run("no availability", func(t *testing.T) {
		plan := examplePlan()
		plan.StudyHoursPerDay = models.WeeklyHours{}
		fixture := newGeneratorFixture(t, plan, exampleBacklog(), nil)
		_, err := fixture.service.Generate(context.Background(), "plan-1", "user-1")
		require.Error(t, err)
		assert.True(t, appErrors.Is(err, appErrors.ErrNoAvailability))
	})

	t.Run("corrupt weight", func(t *testing.T) {
		topics := []models.ScheduleTopic{scheduleTopic("t-1", "s-x", "Xadrez", 9, 3, 1)}
		fixture := newGeneratorFixture(t, examplePlan(), topics, nil)
		_, err := fixture.service.Generate(context.Background(), "plan-1", "user-1")
		require.Error(t, err)
		assert.True(t, appErrors.Is(err, appErrors.ErrInvalidWeight))
	})
}

func TestScheduleGeneratorServiceRollsBackOnInsertFailure(t *testing.T) {
	tx, mock := newTxProviderMock(t)
	sessions := &failingSessionStore{}
	service := NewScheduleGeneratorService(
		planReaderStub{plans: map[string]*models.StudyPlan{"plan-1": examplePlan()}},
		topicListerStub{topics: exampleBacklog()},
		sessions,
		&exclusionStoreStub{},
		tx,
		nil,
		nil,
		zap.NewNop(),
		ScheduleGeneratorConfig{Location: time.UTC, Clock: func() time.Time { return fixtureNow }},
	)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := service.Generate(context.Background(), "plan-1", "user-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

type failingSessionStore struct{}

func (failingSessionStore) ListCompletedByPlan(ctx context.Context, exec sqlx.ExtContext, planID string) ([]models.StudySession, error) {
	return nil, nil
}

func (failingSessionStore) DeleteReplaceable(ctx context.Context, exec sqlx.ExtContext, planID string, from time.Time) (int64, error) {
	return 0, nil
}

func (failingSessionStore) InsertBatch(ctx context.Context, exec sqlx.ExtContext, sessions []models.StudySession) error {
	return sql.ErrConnDone
}
