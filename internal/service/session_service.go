package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/editaliza/editaliza-api/internal/dto"
	"github.com/editaliza/editaliza-api/internal/models"
	"github.com/editaliza/editaliza-api/internal/repository"
	appErrors "github.com/editaliza/editaliza-api/pkg/errors"
)

type sessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudySession, error)
	ListByPlan(ctx context.Context, planID string, filter models.SessionFilter) ([]models.StudySession, int, error)
	ListOverdue(ctx context.Context, planID string, before time.Time) ([]models.StudySession, error)
	Complete(ctx context.Context, id string, questionsSolved, timeStudiedSecs *int, completedAt time.Time) error
	Postpone(ctx context.Context, id string, newDate time.Time) error
	Create(ctx context.Context, session *models.StudySession) error
	CountByDate(ctx context.Context, planID string, from time.Time) (map[string]int, error)
}

type sessionTopicUpdater interface {
	UpdateStatus(ctx context.Context, id string, status models.TopicStatus, completionDate *time.Time) error
}

type sessionCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidatePlan(ctx context.Context, planID string) error
}

const scheduleCacheTTL = 5 * time.Minute

// SessionService provides session lifecycle use cases.
type SessionService struct {
	repo      sessionRepository
	plans     subjectPlanReader
	topics    sessionTopicUpdater
	cache     sessionCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
	clock     func() time.Time
}

// NewSessionService constructs a SessionService instance. A non-positive
// cacheTTL falls back to the default.
func NewSessionService(repo sessionRepository, plans subjectPlanReader, topics sessionTopicUpdater, cache sessionCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger, location *time.Location) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if location == nil {
		location = time.UTC
	}
	if cacheTTL <= 0 {
		cacheTTL = scheduleCacheTTL
	}
	return &SessionService{
		repo:      repo,
		plans:     plans,
		topics:    topics,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger,
		location:  location,
		clock:     time.Now,
	}
}

type cachedSchedule struct {
	Days  []dto.ScheduleDay `json:"days"`
	Total int               `json:"total"`
}

// ListByPlan returns the plan's sessions grouped by calendar date. Unfiltered
// first-page listings are served from the plan cache when available.
func (s *SessionService) ListByPlan(ctx context.Context, planID, userID string, query dto.SessionQuery) ([]dto.ScheduleDay, int, error) {
	if _, err := s.ownedPlan(ctx, planID, userID); err != nil {
		return nil, 0, err
	}

	cacheable := s.cache != nil && query.From == "" && query.To == "" &&
		query.Status == "" && query.Type == "" && query.Page <= 1
	cacheKey := fmt.Sprintf("%s:%d", repository.ScheduleKey(planID), query.PageSize)
	if cacheable {
		var cached cachedSchedule
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached.Days, cached.Total, nil
		} else if !appErrors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("schedule cache read failed", zap.String("plan_id", planID), zap.Error(err))
		}
	}

	filter := models.SessionFilter{
		Status:   query.Status,
		Type:     query.Type,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if query.From != "" {
		from, err := time.ParseInLocation(examDateLayout, query.From, time.UTC)
		if err != nil {
			return nil, 0, appErrors.Clone(appErrors.ErrValidation, "from date must use the YYYY-MM-DD format")
		}
		filter.FromDate = &from
	}
	if query.To != "" {
		to, err := time.ParseInLocation(examDateLayout, query.To, time.UTC)
		if err != nil {
			return nil, 0, appErrors.Clone(appErrors.ErrValidation, "to date must use the YYYY-MM-DD format")
		}
		filter.ToDate = &to
	}

	sessions, total, err := s.repo.ListByPlan(ctx, planID, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}

	days := groupByDate(sessions)
	if cacheable {
		if err := s.cache.Set(ctx, cacheKey, cachedSchedule{Days: days, Total: total}, s.cacheTTL); err != nil {
			s.logger.Warn("schedule cache write failed", zap.String("plan_id", planID), zap.Error(err))
		}
	}
	return days, total, nil
}

// Complete marks a session done. Completing a new-topic session also marks
// the underlying topic completed.
func (s *SessionService) Complete(ctx context.Context, sessionID, userID string, req dto.CompleteSessionRequest) (*models.StudySession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid completion payload")
	}

	session, err := s.ownedSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "session is already completed")
	}

	completedAt := s.clock().UTC()
	if err := s.repo.Complete(ctx, session.ID, req.QuestionsSolved, req.TimeStudiedSeconds, completedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete session")
	}

	session.Status = models.SessionStatusCompleted
	session.QuestionsSolved = req.QuestionsSolved
	session.TimeStudiedSecs = req.TimeStudiedSeconds
	session.CompletedAt = &completedAt

	if session.SessionType == models.SessionTypeNewTopic && session.TopicID != nil {
		if err := s.topics.UpdateStatus(ctx, *session.TopicID, models.TopicStatusCompleted, &completedAt); err != nil {
			s.logger.Warn("failed to mark topic completed",
				zap.String("topic_id", *session.TopicID),
				zap.Error(err))
		}
	}

	s.invalidate(ctx, session.StudyPlanID)
	return session, nil
}

// Postpone moves a pending session forward by the requested number of days,
// defaulting to one. The new date must still fall before the exam.
func (s *SessionService) Postpone(ctx context.Context, sessionID, userID string, req dto.PostponeSessionRequest) (*models.StudySession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid postpone payload")
	}

	session, err := s.ownedSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "completed sessions cannot be postponed")
	}

	plan, err := s.ownedPlan(ctx, session.StudyPlanID, userID)
	if err != nil {
		return nil, err
	}

	days := req.Days
	if days == 0 {
		days = 1
	}
	newDate := civilDateIn(session.SessionDate, s.location).AddDate(0, 0, days)
	examDay := civilDateIn(plan.ExamDate, s.location)
	if !newDate.Before(examDay) {
		return nil, appErrors.Clone(appErrors.ErrInvalidExamDate, "session cannot be moved past the exam date")
	}

	if err := s.repo.Postpone(ctx, session.ID, newDate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to postpone session")
	}

	session.Status = models.SessionStatusPostponed
	session.SessionDate = newDate
	s.invalidate(ctx, session.StudyPlanID)
	return session, nil
}

// Reinforce schedules an extra reinforcement session for the same topic on
// the next day with free capacity.
func (s *SessionService) Reinforce(ctx context.Context, sessionID, userID string) (*models.StudySession, error) {
	session, err := s.ownedSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.TopicID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only topic sessions can be reinforced")
	}

	plan, err := s.ownedPlan(ctx, session.StudyPlanID, userID)
	if err != nil {
		return nil, err
	}

	today := civilDate(s.clock().In(s.location))
	target, err := s.nextFreeDay(ctx, plan, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	extra := &models.StudySession{
		StudyPlanID:      session.StudyPlanID,
		SubjectID:        session.SubjectID,
		TopicID:          session.TopicID,
		SubjectName:      session.SubjectName,
		TopicDescription: session.TopicDescription,
		SessionDate:      target,
		SessionType:      models.SessionTypeReinforce,
		Status:           models.SessionStatusPending,
		DurationMinutes:  plan.SessionDurationMinutes,
	}
	if err := s.repo.Create(ctx, extra); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reinforcement session")
	}

	s.invalidate(ctx, session.StudyPlanID)
	return extra, nil
}

// Replan shifts every overdue pending session forward into the earliest days
// with free capacity, preserving relative order. Sessions that cannot fit
// before the exam are left in place and counted as failed.
func (s *SessionService) Replan(ctx context.Context, planID, userID string) (*dto.ReplanResult, error) {
	plan, err := s.ownedPlan(ctx, planID, userID)
	if err != nil {
		return nil, err
	}

	today := civilDate(s.clock().In(s.location))
	overdue, err := s.repo.ListOverdue(ctx, planID, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list overdue sessions")
	}
	result := &dto.ReplanResult{}
	if len(overdue) == 0 {
		return result, nil
	}

	counts, err := s.repo.CountByDate(ctx, planID, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load daily session counts")
	}

	examDay := civilDateIn(plan.ExamDate, s.location)
	cursor := today
	var unplaced []string
	for _, session := range overdue {
		target, ok := s.findFreeDay(plan, counts, cursor, examDay)
		if !ok {
			result.Failed++
			unplaced = append(unplaced, session.TopicDescription)
			continue
		}
		if err := s.repo.Postpone(ctx, session.ID, target); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule session")
		}
		counts[target.Format(examDateLayout)]++
		cursor = target
		result.Rescheduled++
	}

	if result.Failed > 0 {
		result.Warnings = append(result.Warnings, dto.ScheduleWarning{
			Code:              "CAPACITY_EXCEEDED",
			Message:           fmt.Sprintf("%d overdue sessions do not fit before the exam", result.Failed),
			UnscheduledTopics: unplaced,
		})
	}

	s.invalidate(ctx, planID)
	s.logger.Info("overdue sessions replanned",
		zap.String("plan_id", planID),
		zap.Int("rescheduled", result.Rescheduled),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (s *SessionService) findFreeDay(plan *models.StudyPlan, counts map[string]int, from, examDay time.Time) (time.Time, bool) {
	for day := from; day.Before(examDay); day = day.AddDate(0, 0, 1) {
		hours := plan.StudyHoursPerDay[int(day.Weekday())]
		slots := int(hours * 60 / float64(plan.SessionDurationMinutes))
		if slots <= 0 {
			continue
		}
		if counts[day.Format(examDateLayout)] < slots {
			return day, true
		}
	}
	return time.Time{}, false
}

func (s *SessionService) nextFreeDay(ctx context.Context, plan *models.StudyPlan, from time.Time) (time.Time, error) {
	counts, err := s.repo.CountByDate(ctx, plan.ID, from)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load daily session counts")
	}
	examDay := civilDateIn(plan.ExamDate, s.location)
	target, ok := s.findFreeDay(plan, counts, from, examDay)
	if !ok {
		return time.Time{}, appErrors.Clone(appErrors.ErrNoAvailability, "no free day remains before the exam")
	}
	return target, nil
}

func (s *SessionService) ownedSession(ctx context.Context, sessionID, userID string) (*models.StudySession, error) {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if _, err := s.ownedPlan(ctx, session.StudyPlanID, userID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	return session, nil
}

func (s *SessionService) ownedPlan(ctx context.Context, planID, userID string) (*models.StudyPlan, error) {
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

func (s *SessionService) invalidate(ctx context.Context, planID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePlan(ctx, planID); err != nil {
		s.logger.Warn("failed to invalidate plan cache", zap.String("plan_id", planID), zap.Error(err))
	}
}

func groupByDate(sessions []models.StudySession) []dto.ScheduleDay {
	days := make([]dto.ScheduleDay, 0)
	index := make(map[string]int)
	for _, session := range sessions {
		key := session.SessionDate.Format(examDateLayout)
		i, ok := index[key]
		if !ok {
			i = len(days)
			index[key] = i
			days = append(days, dto.ScheduleDay{Date: key})
		}
		days[i].Sessions = append(days[i].Sessions, session)
	}
	return days
}
