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

type topicRepository interface {
	FindByID(ctx context.Context, id string) (*models.Topic, error)
	ListBySubject(ctx context.Context, subjectID string) ([]models.Topic, error)
	Create(ctx context.Context, topic *models.Topic) error
	Update(ctx context.Context, topic *models.Topic) error
	Delete(ctx context.Context, id string) error
}

type topicSubjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// TopicService provides topic use cases scoped to a plan owner. Ownership is
// resolved through the subject and plan chain.
type TopicService struct {
	repo      topicRepository
	subjects  topicSubjectReader
	plans     subjectPlanReader
	cache     planCacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	clock     func() time.Time
}

// NewTopicService constructs a TopicService instance.
func NewTopicService(repo topicRepository, subjects topicSubjectReader, plans subjectPlanReader, cache planCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *TopicService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TopicService{
		repo:      repo,
		subjects:  subjects,
		plans:     plans,
		cache:     cache,
		validator: validate,
		logger:    logger,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// Create adds a topic to a subject owned by the user.
func (s *TopicService) Create(ctx context.Context, subjectID, userID string, req dto.CreateTopicRequest) (*models.Topic, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid topic payload")
	}

	subject, err := s.ownedSubject(ctx, subjectID, userID)
	if err != nil {
		return nil, err
	}

	topic := &models.Topic{
		SubjectID:      subject.ID,
		Description:    req.Description,
		PriorityWeight: req.PriorityWeight,
		EstimatedHours: req.EstimatedHours,
		Status:         models.TopicStatusPending,
	}
	if topic.PriorityWeight == 0 {
		topic.PriorityWeight = defaultTopicWeight
	}
	if topic.EstimatedHours == 0 {
		topic.EstimatedHours = defaultTopicHours
	}

	if err := s.repo.Create(ctx, topic); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create topic")
	}

	s.invalidate(ctx, subject.StudyPlanID)
	return topic, nil
}

// List returns every topic of a subject owned by the user.
func (s *TopicService) List(ctx context.Context, subjectID, userID string) ([]models.Topic, error) {
	if _, err := s.ownedSubject(ctx, subjectID, userID); err != nil {
		return nil, err
	}
	topics, err := s.repo.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list topics")
	}
	return topics, nil
}

// Update applies a partial update to a topic owned by the user. Marking a
// topic completed stamps the completion date; reverting clears it.
func (s *TopicService) Update(ctx context.Context, topicID, userID string, req dto.UpdateTopicRequest) (*models.Topic, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid topic payload")
	}

	topic, planID, err := s.ownedTopic(ctx, topicID, userID)
	if err != nil {
		return nil, err
	}

	applyTopicUpdate(topic, req.Description, req.PriorityWeight, req.EstimatedHours, req.Status, s.clock)

	if err := s.repo.Update(ctx, topic); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update topic")
	}

	s.invalidate(ctx, planID)
	return topic, nil
}

// BatchUpdate applies several topic updates in one call. Every topic must
// belong to the user; the whole batch is rejected otherwise.
func (s *TopicService) BatchUpdate(ctx context.Context, userID string, req dto.BatchUpdateTopicsRequest) ([]models.Topic, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}

	updated := make([]models.Topic, 0, len(req.Topics))
	planIDs := make(map[string]struct{})
	for _, entry := range req.Topics {
		topic, planID, err := s.ownedTopic(ctx, entry.ID, userID)
		if err != nil {
			return nil, err
		}

		applyTopicUpdate(topic, entry.Description, entry.PriorityWeight, entry.EstimatedHours, entry.Status, s.clock)

		if err := s.repo.Update(ctx, topic); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update topic")
		}
		updated = append(updated, *topic)
		planIDs[planID] = struct{}{}
	}

	for planID := range planIDs {
		s.invalidate(ctx, planID)
	}
	return updated, nil
}

// Delete removes a topic owned by the user.
func (s *TopicService) Delete(ctx context.Context, topicID, userID string) error {
	topic, planID, err := s.ownedTopic(ctx, topicID, userID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, topic.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete topic")
	}
	s.invalidate(ctx, planID)
	return nil
}

func (s *TopicService) ownedSubject(ctx context.Context, subjectID, userID string) (*models.Subject, error) {
	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	plan, err := s.plans.FindByID(ctx, subject.StudyPlanID)
	if err != nil || plan.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
	}
	return subject, nil
}

func (s *TopicService) ownedTopic(ctx context.Context, topicID, userID string) (*models.Topic, string, error) {
	topic, err := s.repo.FindByID(ctx, topicID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load topic")
	}
	subject, err := s.ownedSubject(ctx, topic.SubjectID, userID)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "topic not found")
	}
	return topic, subject.StudyPlanID, nil
}

func (s *TopicService) invalidate(ctx context.Context, planID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePlan(ctx, planID); err != nil {
		s.logger.Warn("failed to invalidate plan cache", zap.String("plan_id", planID), zap.Error(err))
	}
}

func applyTopicUpdate(topic *models.Topic, description *string, weight *int, hours *float64, status *string, clock func() time.Time) {
	if description != nil {
		topic.Description = *description
	}
	if weight != nil {
		topic.PriorityWeight = *weight
	}
	if hours != nil {
		topic.EstimatedHours = *hours
	}
	if status == nil {
		return
	}
	next := models.TopicStatus(*status)
	if next == topic.Status {
		return
	}
	topic.Status = next
	if next == models.TopicStatusCompleted {
		now := clock()
		topic.CompletionDate = &now
	} else {
		topic.CompletionDate = nil
	}
}
