package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/editaliza/editaliza-api/internal/dto"
	"github.com/editaliza/editaliza-api/internal/models"
	"github.com/editaliza/editaliza-api/internal/repository"
	appErrors "github.com/editaliza/editaliza-api/pkg/errors"
)

const (
	statisticsCacheTTL = 5 * time.Minute
	activityWindowDays = 30
)

type statisticsRepository interface {
	SessionTotals(ctx context.Context, planID string) (*repository.SessionTotals, error)
	SubjectTopicCounts(ctx context.Context, planID string) ([]repository.SubjectTopicCount, error)
	DailyCompletions(ctx context.Context, planID string, since time.Time) ([]repository.DailyCompletion, error)
	CompletionDates(ctx context.Context, planID string, limit int) ([]time.Time, error)
}

type statisticsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// StatisticsService computes per-plan progress aggregates.
type StatisticsService struct {
	repo     statisticsRepository
	plans    subjectPlanReader
	cache    statisticsCache
	cacheTTL time.Duration
	logger   *zap.Logger
	location *time.Location
	clock    func() time.Time
}

// NewStatisticsService constructs a StatisticsService instance. A
// non-positive cacheTTL falls back to the default.
func NewStatisticsService(repo statisticsRepository, plans subjectPlanReader, cache statisticsCache, cacheTTL time.Duration, logger *zap.Logger, location *time.Location) *StatisticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	if cacheTTL <= 0 {
		cacheTTL = statisticsCacheTTL
	}
	return &StatisticsService{
		repo:     repo,
		plans:    plans,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
		location: location,
		clock:    time.Now,
	}
}

// PlanStatistics returns progress aggregates for a plan owned by the user.
// Results are cached per plan and invalidated on any schedule mutation.
func (s *StatisticsService) PlanStatistics(ctx context.Context, planID, userID string) (*dto.PlanStatistics, error) {
	plan, err := s.ownedPlan(ctx, planID, userID)
	if err != nil {
		return nil, err
	}

	cacheKey := repository.StatisticsKey(planID)
	if s.cache != nil {
		var cached dto.PlanStatistics
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		} else if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("statistics cache read failed", zap.String("plan_id", planID), zap.Error(err))
		}
	}

	totals, err := s.repo.SessionTotals(ctx, planID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session totals")
	}
	subjectCounts, err := s.repo.SubjectTopicCounts(ctx, planID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject progress")
	}

	now := s.clock().In(s.location)
	since := civilDate(now).AddDate(0, 0, -activityWindowDays)
	daily, err := s.repo.DailyCompletions(ctx, planID, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load daily activity")
	}
	completionDates, err := s.repo.CompletionDates(ctx, planID, 0)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completion dates")
	}

	stats := &dto.PlanStatistics{
		TotalSessions:     totals.Total,
		CompletedSessions: totals.Completed,
		PendingSessions:   totals.Pending,
		PostponedSessions: totals.Postponed,
		TotalStudySeconds: totals.TotalStudySeconds,
		QuestionsSolved:   totals.QuestionsSolved,
		StudyStreakDays:   studyStreak(completionDates, civilDate(now)),
		DaysUntilExam:     daysUntil(civilDateIn(plan.ExamDate, s.location), civilDate(now)),
		SubjectBreakdown:  make([]dto.SubjectProgress, 0, len(subjectCounts)),
		DailyActivity:     make([]dto.DailyActivity, 0, len(daily)),
	}
	if totals.Total > 0 {
		stats.CompletionRate = round2(float64(totals.Completed) / float64(totals.Total) * 100)
	}

	for _, subject := range subjectCounts {
		progress := dto.SubjectProgress{
			SubjectID:       subject.SubjectID,
			SubjectName:     subject.SubjectName,
			PriorityWeight:  subject.PriorityWeight,
			TotalTopics:     subject.TotalTopics,
			CompletedTopics: subject.CompletedTopics,
		}
		if subject.TotalTopics > 0 {
			progress.Progress = round2(float64(subject.CompletedTopics) / float64(subject.TotalTopics) * 100)
		}
		stats.TotalTopics += subject.TotalTopics
		stats.CompletedTopics += subject.CompletedTopics
		stats.SubjectBreakdown = append(stats.SubjectBreakdown, progress)
	}
	if stats.TotalTopics > 0 {
		stats.TopicCoverage = round2(float64(stats.CompletedTopics) / float64(stats.TotalTopics) * 100)
	}

	for _, day := range daily {
		stats.DailyActivity = append(stats.DailyActivity, dto.DailyActivity{
			Date:              day.Day.Format(examDateLayout),
			CompletedSessions: day.Completed,
			StudySeconds:      day.StudySeconds,
		})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, stats, s.cacheTTL); err != nil {
			s.logger.Warn("statistics cache write failed", zap.String("plan_id", planID), zap.Error(err))
		}
	}
	return stats, nil
}

func (s *StatisticsService) ownedPlan(ctx context.Context, planID, userID string) (*models.StudyPlan, error) {
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "study plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
	}
	if plan.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "study plan not found")
	}
	return plan, nil
}

// studyStreak counts consecutive days with completed sessions ending today or
// yesterday. Dates arrive newest first.
func studyStreak(dates []time.Time, today time.Time) int {
	if len(dates) == 0 {
		return 0
	}

	expected := today
	first := civilDateIn(dates[0], time.UTC)
	if !first.Equal(today) {
		// A streak survives until one full day is skipped.
		if !first.Equal(today.AddDate(0, 0, -1)) {
			return 0
		}
		expected = first
	}

	streak := 0
	for _, date := range dates {
		day := civilDateIn(date, time.UTC)
		if !day.Equal(expected) {
			break
		}
		streak++
		expected = expected.AddDate(0, 0, -1)
	}
	return streak
}

func daysUntil(examDay, today time.Time) int {
	days := int(examDay.Sub(today).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
