package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/editaliza/editaliza-api/internal/models"
	"github.com/editaliza/editaliza-api/internal/repository"
	appErrors "github.com/editaliza/editaliza-api/pkg/errors"
)

type mockStatsRepo struct {
	totals          repository.SessionTotals
	subjects        []repository.SubjectTopicCount
	daily           []repository.DailyCompletion
	completionDates []time.Time
}

func (m *mockStatsRepo) SessionTotals(ctx context.Context, planID string) (*repository.SessionTotals, error) {
	totals := m.totals
	return &totals, nil
}

func (m *mockStatsRepo) SubjectTopicCounts(ctx context.Context, planID string) ([]repository.SubjectTopicCount, error) {
	return m.subjects, nil
}

func (m *mockStatsRepo) DailyCompletions(ctx context.Context, planID string, since time.Time) ([]repository.DailyCompletion, error) {
	return m.daily, nil
}

func (m *mockStatsRepo) CompletionDates(ctx context.Context, planID string, limit int) ([]time.Time, error) {
	return m.completionDates, nil
}

type memoryCache struct {
	values map[string][]byte
	hits   int
	writes int
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	c.hits++
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c.values == nil {
		c.values = map[string][]byte{}
	}
	c.values[key] = raw
	c.writes++
	return nil
}

var statsNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func statsFixture(repo *mockStatsRepo, cache *memoryCache) *StatisticsService {
	plan := ownedPlan()
	plan.ExamDate = time.Date(2026, 9, 21, 0, 0, 0, 0, time.UTC)
	plans := &mockPlanRepo{plans: map[string]*models.StudyPlan{"plan-1": plan}}
	var svcCache statisticsCache
	if cache != nil {
		svcCache = cache
	}
	svc := NewStatisticsService(repo, plans, svcCache, 0, nil, time.UTC)
	svc.clock = func() time.Time { return statsNow }
	return svc
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStatisticsServiceAggregates(t *testing.T) {
	repo := &mockStatsRepo{
		totals: repository.SessionTotals{Total: 40, Completed: 10, Pending: 28, Postponed: 2, QuestionsSolved: 180, TotalStudySeconds: 36000},
		subjects: []repository.SubjectTopicCount{
			{SubjectID: "subj-1", SubjectName: "Matemática", PriorityWeight: 5, TotalTopics: 10, CompletedTopics: 5},
			{SubjectID: "subj-2", SubjectName: "Português", PriorityWeight: 3, TotalTopics: 10, CompletedTopics: 0},
		},
		daily: []repository.DailyCompletion{
			{Day: day(2026, 8, 31), Completed: 3, StudySeconds: 9000},
			{Day: day(2026, 9, 1), Completed: 2, StudySeconds: 6000},
		},
		completionDates: []time.Time{day(2026, 9, 1), day(2026, 8, 31), day(2026, 8, 30)},
	}
	svc := statsFixture(repo, nil)

	stats, err := svc.PlanStatistics(context.Background(), "plan-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 40, stats.TotalSessions)
	assert.InDelta(t, 25.0, stats.CompletionRate, 0.001)
	assert.Equal(t, 20, stats.TotalTopics)
	assert.Equal(t, 5, stats.CompletedTopics)
	assert.InDelta(t, 25.0, stats.TopicCoverage, 0.001)
	assert.Equal(t, 3, stats.StudyStreakDays)
	assert.Equal(t, 20, stats.DaysUntilExam)
	require.Len(t, stats.SubjectBreakdown, 2)
	assert.InDelta(t, 50.0, stats.SubjectBreakdown[0].Progress, 0.001)
	require.Len(t, stats.DailyActivity, 2)
	assert.Equal(t, "2026-08-31", stats.DailyActivity[0].Date)
}

func TestStatisticsServiceStreak(t *testing.T) {
	today := day(2026, 9, 1)
	cases := []struct {
		name  string
		dates []time.Time
		want  int
	}{
		{"no completions", nil, 0},
		{"only today", []time.Time{today}, 1},
		{"ends yesterday", []time.Time{day(2026, 8, 31), day(2026, 8, 30)}, 2},
		{"broken by gap", []time.Time{today, day(2026, 8, 30)}, 1},
		{"stale history", []time.Time{day(2026, 8, 20)}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, studyStreak(tc.dates, today))
		})
	}
}

func TestStatisticsServiceUsesCache(t *testing.T) {
	repo := &mockStatsRepo{totals: repository.SessionTotals{Total: 4, Completed: 1, Pending: 3}}
	cache := &memoryCache{}
	svc := statsFixture(repo, cache)

	first, err := svc.PlanStatistics(context.Background(), "plan-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.writes)

	repo.totals.Completed = 4
	second, err := svc.PlanStatistics(context.Background(), "plan-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first.CompletedSessions, second.CompletedSessions)
}

func TestStatisticsServiceForeignPlan(t *testing.T) {
	svc := statsFixture(&mockStatsRepo{}, nil)

	_, err := svc.PlanStatistics(context.Background(), "plan-1", "intruder")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
