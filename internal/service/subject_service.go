package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/editaliza/editaliza-api/internal/dto"
	"github.com/editaliza/editaliza-api/internal/models"
	appErrors "github.com/editaliza/editaliza-api/pkg/errors"
)

const (
	defaultTopicWeight = 3
	defaultTopicHours  = 2.0
)

type subjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	ListByPlan(ctx context.Context, planID string) ([]models.Subject, error)
	CreateWithTopics(ctx context.Context, subject *models.Subject, topics []models.Topic) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
}

type subjectPlanReader interface {
	FindByID(ctx context.Context, id string) (*models.StudyPlan, error)
}

// SubjectService provides subject use cases scoped to a plan owner.
type SubjectService struct {
	repo      subjectRepository
	plans     subjectPlanReader
	cache     planCacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs a SubjectService instance.
func NewSubjectService(repo subjectRepository, plans subjectPlanReader, cache planCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SubjectService{repo: repo, plans: plans, cache: cache, validator: validate, logger: logger}
}

// Create adds a subject to a plan, optionally seeding its topic list.
func (s *SubjectService) Create(ctx context.Context, planID, userID string, req dto.CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	if _, err := s.ownedPlan(ctx, planID, userID); err != nil {
		return nil, err
	}

	subject := &models.Subject{
		StudyPlanID:    planID,
		SubjectName:    req.SubjectName,
		PriorityWeight: req.PriorityWeight,
	}
	topics := make([]models.Topic, 0, len(req.TopicList))
	for _, description := range req.TopicList {
		topics = append(topics, models.Topic{
			Description:    description,
			PriorityWeight: defaultTopicWeight,
			EstimatedHours: defaultTopicHours,
			Status:         models.TopicStatusPending,
		})
	}

	if err := s.repo.CreateWithTopics(ctx, subject, topics); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}

	s.invalidate(ctx, planID)
	s.logger.Info("subject created",
		zap.String("plan_id", planID),
		zap.String("subject_id", subject.ID),
		zap.Int("topics", len(topics)))
	return subject, nil
}

// List returns every subject of a plan owned by the user.
func (s *SubjectService) List(ctx context.Context, planID, userID string) ([]models.Subject, error) {
	if _, err := s.ownedPlan(ctx, planID, userID); err != nil {
		return nil, err
	}
	subjects, err := s.repo.ListByPlan(ctx, planID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}

// Update applies a partial update to a subject owned by the user.
func (s *SubjectService) Update(ctx context.Context, subjectID, userID string, req dto.UpdateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	subject, err := s.ownedSubject(ctx, subjectID, userID)
	if err != nil {
		return nil, err
	}

	if req.SubjectName != nil {
		subject.SubjectName = *req.SubjectName
	}
	if req.PriorityWeight != nil {
		subject.PriorityWeight = *req.PriorityWeight
	}

	if err := s.repo.Update(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}

	s.invalidate(ctx, subject.StudyPlanID)
	return subject, nil
}

// Delete removes a subject owned by the user along with its topics.
func (s *SubjectService) Delete(ctx context.Context, subjectID, userID string) error {
	subject, err := s.ownedSubject(ctx, subjectID, userID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, subject.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	s.invalidate(ctx, subject.StudyPlanID)
	return nil
}

func (s *SubjectService) ownedPlan(ctx context.Context, planID, userID string) (*models.StudyPlan, error) {
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

func (s *SubjectService) ownedSubject(ctx context.Context, subjectID, userID string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if _, err := s.ownedPlan(ctx, subject.StudyPlanID, userID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
	}
	return subject, nil
}

func (s *SubjectService) invalidate(ctx context.Context, planID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePlan(ctx, planID); err != nil {
		s.logger.Warn("failed to invalidate plan cache", zap.String("plan_id", planID), zap.Error(err))
	}
}
