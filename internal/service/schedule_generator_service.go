package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/editaliza/editaliza-api/internal/dto"
	"github.com/editaliza/editaliza-api/internal/models"
	appErrors "github.com/editaliza/editaliza-api/pkg/errors"
)

type schedulePlanReader interface {
	FindByID(ctx context.Context, id string) (*models.StudyPlan, error)
}

type scheduleTopicLister interface {
	ListScheduleTopics(ctx context.Context, planID string) ([]models.ScheduleTopic, error)
}

type scheduleSessionStore interface {
	ListCompletedByPlan(ctx context.Context, exec sqlx.ExtContext, planID string) ([]models.StudySession, error)
	DeleteReplaceable(ctx context.Context, exec sqlx.ExtContext, planID string, from time.Time) (int64, error)
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, sessions []models.StudySession) error
}

type scheduleExclusionStore interface {
	ReplaceForPlan(ctx context.Context, exec sqlx.ExtContext, planID string, exclusions []models.ExcludedTopic) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type planCacheInvalidator interface {
	InvalidatePlan(ctx context.Context, planID string) error
}

type generationObserver interface {
	ObserveGeneration(duration time.Duration, sessions int)
}

// ScheduleGeneratorConfig governs generator behaviour.
type ScheduleGeneratorConfig struct {
	Location        *time.Location
	SessionDuration int
	MockCadenceDays int
	FullMockWindow  int
	Timeout         time.Duration
	Clock           func() time.Time
}

// ScheduleGeneratorService builds and persists study schedules. One
// generation is a single pass: calendar window, ordered backlog, weighted
// round-robin distribution, transactional replace of the forward-looking
// session set. Completed sessions are immutable history.
type ScheduleGeneratorService struct {
	plans      schedulePlanReader
	topics     scheduleTopicLister
	sessions   scheduleSessionStore
	exclusions scheduleExclusionStore
	tx         txProvider
	cache      planCacheInvalidator
	metrics    generationObserver
	logger     *zap.Logger
	cfg        ScheduleGeneratorConfig
}

// NewScheduleGeneratorService wires generator dependencies.
func NewScheduleGeneratorService(
	plans schedulePlanReader,
	topics scheduleTopicLister,
	sessions scheduleSessionStore,
	exclusions scheduleExclusionStore,
	tx txProvider,
	cache planCacheInvalidator,
	metrics generationObserver,
	logger *zap.Logger,
	cfg ScheduleGeneratorConfig,
) *ScheduleGeneratorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SessionDuration <= 0 {
		cfg.SessionDuration = 50
	}
	if cfg.MockCadenceDays <= 0 {
		cfg.MockCadenceDays = 7
	}
	if cfg.FullMockWindow <= 0 {
		cfg.FullMockWindow = 14
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &ScheduleGeneratorService{
		plans:      plans,
		topics:     topics,
		sessions:   sessions,
		exclusions: exclusions,
		tx:         tx,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// Generate computes and persists the schedule for a plan. Repeated calls on
// identical plan state produce identical assignments.
func (s *ScheduleGeneratorService) Generate(ctx context.Context, planID, userID string) (*dto.GenerateScheduleResult, error) {
	started := time.Now()

	plan, err := s.loadOwnedPlan(ctx, planID, userID)
	if err != nil {
		return nil, err
	}

	now := s.cfg.Clock().In(s.cfg.Location)
	duration := plan.SessionDurationMinutes
	if duration <= 0 {
		duration = s.cfg.SessionDuration
	}

	cal, err := buildScheduleCalendar(plan, now, s.cfg.Location)
	if err != nil {
		return nil, err
	}

	topics, err := s.topics.ListScheduleTopics(ctx, planID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan topics")
	}

	selection, err := selectTopics(topics, plan.RetaFinalMode, cal.TotalCapacity(), duration)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Serialize concurrent regenerations of the same plan. The lock is
	// released with the transaction.
	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, planID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire plan lock")
		return nil, err
	}

	completed, err := s.sessions.ListCompletedByPlan(ctx, tx, planID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completed sessions")
		return nil, err
	}

	today := civilDate(now)
	if _, err = s.sessions.DeleteReplaceable(ctx, tx, planID, today); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear replaceable sessions")
		return nil, err
	}

	dist := distributeTopics(plan, selection.Backlog, completed, cal, distributorConfig{
		SessionDuration: duration,
		MockCadenceDays: s.cfg.MockCadenceDays,
		FullMockWindow:  s.cfg.FullMockWindow,
		HasEssay:        plan.HasEssay,
		Location:        s.cfg.Location,
	})

	if err = s.sessions.InsertBatch(ctx, tx, dist.Sessions); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist schedule")
		return nil, err
	}

	exclusionRows := make([]models.ExcludedTopic, 0, len(selection.Excluded))
	for _, topic := range selection.Excluded {
		subjectID := topic.SubjectID
		exclusionRows = append(exclusionRows, models.ExcludedTopic{
			StudyPlanID: planID,
			SubjectID:   &subjectID,
			TopicID:     topic.ID,
			Reason:      "Sem tempo hábil antes da prova",
		})
	}
	if err = s.exclusions.ReplaceForPlan(ctx, tx, planID, exclusionRows); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist excluded topics")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit schedule transaction")
		return nil, err
	}

	if s.cache != nil {
		if cacheErr := s.cache.InvalidatePlan(ctx, planID); cacheErr != nil {
			s.logger.Warn("schedule cache invalidation failed", zap.String("planId", planID), zap.Error(cacheErr))
		}
	}

	elapsed := time.Since(started)
	if s.metrics != nil {
		s.metrics.ObserveGeneration(elapsed, len(dist.Sessions))
	}
	s.logger.Info("schedule generated",
		zap.String("planId", planID),
		zap.Int("sessions", len(dist.Sessions)),
		zap.Int("preserved", len(completed)),
		zap.Int("excluded", len(selection.Excluded)),
		zap.Duration("elapsed", elapsed),
	)

	return s.buildResult(dist, selection, completed, cal, elapsed), nil
}

// Regenerate recomputes the forward-looking schedule while keeping completed
// sessions untouched. It is the idempotent retry path for Generate.
func (s *ScheduleGeneratorService) Regenerate(ctx context.Context, planID, userID string) (*dto.GenerateScheduleResult, error) {
	return s.Generate(ctx, planID, userID)
}

func (s *ScheduleGeneratorService) loadOwnedPlan(ctx context.Context, planID, userID string) (*models.StudyPlan, error) {
	if planID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "plan id is required")
	}
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "study plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load study plan")
	}
	// Ownership failures look identical to missing plans so that the
	// existence of other users' data never leaks.
	if plan.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "study plan not found")
	}
	return plan, nil
}

func (s *ScheduleGeneratorService) buildResult(
	dist *distributionResult,
	selection *topicSelection,
	completed []models.StudySession,
	cal *scheduleCalendar,
	elapsed time.Duration,
) *dto.GenerateScheduleResult {
	result := &dto.GenerateScheduleResult{
		Sessions:       dist.Sessions,
		ExcludedTopics: make([]dto.ExcludedTopicInfo, 0, len(selection.Excluded)),
	}
	for _, topic := range selection.Excluded {
		weight, _ := combinedWeight(topic.SubjectWeight, topic.PriorityWeight)
		result.ExcludedTopics = append(result.ExcludedTopics, dto.ExcludedTopicInfo{
			TopicID:        topic.ID,
			SubjectID:      topic.SubjectID,
			SubjectName:    topic.SubjectName,
			Description:    topic.Description,
			CombinedWeight: weight,
			Reason:         "Sem tempo hábil antes da prova",
		})
	}

	if len(dist.UnscheduledTopics) > 0 {
		ids := make([]string, 0, len(dist.UnscheduledTopics))
		for _, topic := range dist.UnscheduledTopics {
			ids = append(ids, topic.ID)
		}
		result.Warnings = append(result.Warnings, dto.ScheduleWarning{
			Code:              "CAPACITY_EXCEEDED",
			Message:           "not every topic fits before the exam date; consider enabling reta final mode",
			UnscheduledTopics: ids,
		})
	}

	stats := dto.GenerationStats{
		TotalSessions:     len(dist.Sessions),
		PreservedSessions: len(completed),
		ExcludedTopics:    len(selection.Excluded),
		AvailableSlots:    cal.TotalCapacity(),
		GenerationMillis:  elapsed.Milliseconds(),
	}
	for _, session := range dist.Sessions {
		switch session.SessionType {
		case models.SessionTypeNewTopic, models.SessionTypeReinforce:
			stats.NewTopicSessions++
		case models.SessionTypeReview7D, models.SessionTypeReview14D, models.SessionTypeReview28D:
			stats.ReviewSessions++
		case models.SessionTypeDirectedMock, models.SessionTypeFullMock:
			stats.MockSessions++
		case models.SessionTypeEssay:
			stats.EssaySessions++
		}
	}
	result.Stats = stats
	return result
}
