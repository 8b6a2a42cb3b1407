package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/editaliza/editaliza-api/internal/dto"
	"github.com/editaliza/editaliza-api/internal/models"
	appErrors "github.com/editaliza/editaliza-api/pkg/errors"
)

const (
	examDateLayout         = "2006-01-02"
	defaultSessionDuration = 50
)

type planRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudyPlan, error)
	ListByUser(ctx context.Context, userID string) ([]models.StudyPlan, error)
	Create(ctx context.Context, plan *models.StudyPlan) error
	Update(ctx context.Context, plan *models.StudyPlan) error
	Delete(ctx context.Context, id string) error
}

// PlanService provides study plan use cases.
type PlanService struct {
	repo      planRepository
	cache     planCacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
}

// NewPlanService constructs a PlanService instance.
func NewPlanService(repo planRepository, cache planCacheInvalidator, validate *validator.Validate, logger *zap.Logger, location *time.Location) *PlanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if location == nil {
		location = time.UTC
	}
	return &PlanService{repo: repo, cache: cache, validator: validate, logger: logger, location: location}
}

// Create validates and persists a new study plan for the user.
func (s *PlanService) Create(ctx context.Context, userID string, req dto.CreatePlanRequest) (*models.StudyPlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan payload")
	}

	examDate, err := time.ParseInLocation(examDateLayout, req.ExamDate, s.location)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exam date must use the YYYY-MM-DD format")
	}
	today := civilDate(time.Now().In(s.location))
	if !examDate.After(today) {
		return nil, appErrors.Clone(appErrors.ErrInvalidExamDate, "exam date must be in the future")
	}

	hours, err := normalizeWeeklyHours(req.StudyHoursPerDay)
	if err != nil {
		return nil, err
	}

	duration := req.SessionDurationMinutes
	if duration == 0 {
		duration = defaultSessionDuration
	}

	plan := &models.StudyPlan{
		UserID:                 userID,
		PlanName:               req.PlanName,
		ExamDate:               examDate,
		StudyHoursPerDay:       hours,
		SessionDurationMinutes: duration,
		HasEssay:               req.HasEssay,
		RetaFinalMode:          req.RetaFinalMode,
	}
	if err := s.repo.Create(ctx, plan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create plan")
	}

	s.logger.Info("study plan created", zap.String("plan_id", plan.ID), zap.String("user_id", userID))
	return plan, nil
}

// Get returns a plan owned by the user.
func (s *PlanService) Get(ctx context.Context, planID, userID string) (*models.StudyPlan, error) {
	return s.loadOwned(ctx, planID, userID)
}

// List returns every plan owned by the user.
func (s *PlanService) List(ctx context.Context, userID string) ([]models.StudyPlan, error) {
	plans, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list plans")
	}
	return plans, nil
}

// Update applies a partial update to a plan owned by the user.
func (s *PlanService) Update(ctx context.Context, planID, userID string, req dto.UpdatePlanRequest) (*models.StudyPlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan payload")
	}

	plan, err := s.loadOwned(ctx, planID, userID)
	if err != nil {
		return nil, err
	}

	if req.PlanName != nil {
		plan.PlanName = *req.PlanName
	}
	if req.ExamDate != nil {
		examDate, err := time.ParseInLocation(examDateLayout, *req.ExamDate, s.location)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "exam date must use the YYYY-MM-DD format")
		}
		today := civilDate(time.Now().In(s.location))
		if !examDate.After(today) {
			return nil, appErrors.Clone(appErrors.ErrInvalidExamDate, "exam date must be in the future")
		}
		plan.ExamDate = examDate
	}
	if req.StudyHoursPerDay != nil {
		hours, err := normalizeWeeklyHours(*req.StudyHoursPerDay)
		if err != nil {
			return nil, err
		}
		plan.StudyHoursPerDay = hours
	}
	if req.SessionDurationMinutes != nil {
		plan.SessionDurationMinutes = *req.SessionDurationMinutes
	}
	if req.HasEssay != nil {
		plan.HasEssay = *req.HasEssay
	}
	if req.RetaFinalMode != nil {
		plan.RetaFinalMode = *req.RetaFinalMode
	}

	if err := s.repo.Update(ctx, plan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update plan")
	}

	s.invalidateCache(ctx, plan.ID)
	return plan, nil
}

// Delete removes a plan owned by the user along with its cascade.
func (s *PlanService) Delete(ctx context.Context, planID, userID string) error {
	plan, err := s.loadOwned(ctx, planID, userID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, plan.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete plan")
	}
	s.invalidateCache(ctx, plan.ID)
	s.logger.Info("study plan deleted", zap.String("plan_id", plan.ID), zap.String("user_id", userID))
	return nil
}

func (s *PlanService) loadOwned(ctx context.Context, planID, userID string) (*models.StudyPlan, error) {
	plan, err := s.repo.FindByID(ctx, planID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "study plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
	}
	if plan.UserID != userID {
		// Ownership failures look identical to missing plans so that the
		// existence of other users' data never leaks.
		return nil, appErrors.Clone(appErrors.ErrNotFound, "study plan not found")
	}
	return plan, nil
}

func (s *PlanService) invalidateCache(ctx context.Context, planID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePlan(ctx, planID); err != nil {
		s.logger.Warn("failed to invalidate plan cache", zap.String("plan_id", planID), zap.Error(err))
	}
}

func normalizeWeeklyHours(raw map[int]float64) (models.WeeklyHours, error) {
	if len(raw) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoAvailability, "at least one weekday must have study hours")
	}
	hours := make(models.WeeklyHours, len(raw))
	var total float64
	for day, value := range raw {
		if day < 0 || day > 6 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "weekdays must range from 0 (Sunday) to 6 (Saturday)")
		}
		if value < 0 || value > 24 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "daily hours must range from 0 to 24")
		}
		hours[day] = value
		total += value
	}
	if total <= 0 {
		return nil, appErrors.Clone(appErrors.ErrNoAvailability, "weekly study hours must be greater than zero")
	}
	return hours, nil
}
