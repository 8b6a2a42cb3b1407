package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/editaliza/editaliza-api/internal/models"
)

// TopicRepository provides database access for topics.
type TopicRepository struct {
	db *sqlx.DB
}

// NewTopicRepository creates a new instance of TopicRepository.
func NewTopicRepository(db *sqlx.DB) *TopicRepository {
	return &TopicRepository{db: db}
}

// FindByID returns a topic by identifier.
func (r *TopicRepository) FindByID(ctx context.Context, id string) (*models.Topic, error) {
	const query = `SELECT id, subject_id, description, priority_weight, estimated_hours, status, completion_date, created_at, updated_at FROM topics WHERE id = $1 LIMIT 1`
	var topic models.Topic
	if err := r.db.GetContext(ctx, &topic, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find topic by id: %w", err)
	}
	return &topic, nil
}

// ListBySubject returns all topics of a subject in insertion order.
func (r *TopicRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.Topic, error) {
	const query = `SELECT id, subject_id, description, priority_weight, estimated_hours, status, completion_date, created_at, updated_at FROM topics WHERE subject_id = $1 ORDER BY created_at ASC, id ASC`
	var topics []models.Topic
	if err := r.db.SelectContext(ctx, &topics, query, subjectID); err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return topics, nil
}

// ListScheduleTopics returns every topic of a plan joined with its subject,
// the working shape of the schedule generator. Ordering is deterministic:
// subject weight desc, subject name asc, topic insertion order.
func (r *TopicRepository) ListScheduleTopics(ctx context.Context, planID string) ([]models.ScheduleTopic, error) {
	const query = `SELECT t.id, t.subject_id, t.description, t.priority_weight, t.estimated_hours, t.status, t.completion_date, t.created_at, t.updated_at,
		s.study_plan_id, s.subject_name, s.priority_weight AS subject_weight
		FROM topics t
		JOIN subjects s ON s.id = t.subject_id
		WHERE s.study_plan_id = $1
		ORDER BY s.priority_weight DESC, s.subject_name ASC, t.created_at ASC, t.id ASC`
	var topics []models.ScheduleTopic
	if err := r.db.SelectContext(ctx, &topics, query, planID); err != nil {
		return nil, fmt.Errorf("list schedule topics: %w", err)
	}
	return topics, nil
}

// Create inserts a new topic.
func (r *TopicRepository) Create(ctx context.Context, topic *models.Topic) error {
	if topic.ID == "" {
		topic.ID = uuid.NewString()
	}
	if topic.Status == "" {
		topic.Status = models.TopicStatusPending
	}
	now := time.Now().UTC()
	if topic.CreatedAt.IsZero() {
		topic.CreatedAt = now
	}
	topic.UpdatedAt = now

	const query = `INSERT INTO topics (id, subject_id, description, priority_weight, estimated_hours, status, created_at, updated_at) VALUES (:id, :subject_id, :description, :priority_weight, :estimated_hours, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, topic); err != nil {
		return fmt.Errorf("create topic: %w", err)
	}
	return nil
}

// Update updates mutable fields of a topic.
func (r *TopicRepository) Update(ctx context.Context, topic *models.Topic) error {
	topic.UpdatedAt = time.Now().UTC()
	const query = `UPDATE topics SET description = :description, priority_weight = :priority_weight, estimated_hours = :estimated_hours, status = :status, completion_date = :completion_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, topic); err != nil {
		return fmt.Errorf("update topic: %w", err)
	}
	return nil
}

// UpdateStatus sets the lifecycle status of a topic, stamping or clearing
// the completion date accordingly.
func (r *TopicRepository) UpdateStatus(ctx context.Context, id string, status models.TopicStatus, completionDate *time.Time) error {
	const query = `UPDATE topics SET status = $2, completion_date = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, completionDate, time.Now().UTC()); err != nil {
		return fmt.Errorf("update topic status: %w", err)
	}
	return nil
}

// Delete removes a topic.
func (r *TopicRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM topics WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}
	return nil
}
