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

// SubjectRepository provides database access for subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new instance of SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// FindByID returns a subject by identifier.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	const query = `SELECT id, study_plan_id, subject_name, priority_weight, created_at, updated_at FROM subjects WHERE id = $1 LIMIT 1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find subject by id: %w", err)
	}
	return &subject, nil
}

// ListByPlan returns all subjects of a plan ordered by weight desc, name asc.
func (r *SubjectRepository) ListByPlan(ctx context.Context, planID string) ([]models.Subject, error) {
	const query = `SELECT id, study_plan_id, subject_name, priority_weight, created_at, updated_at FROM subjects WHERE study_plan_id = $1 ORDER BY priority_weight DESC, subject_name ASC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, planID); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// Create inserts a new subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now

	const query = `INSERT INTO subjects (id, study_plan_id, subject_name, priority_weight, created_at, updated_at) VALUES (:id, :study_plan_id, :subject_name, :priority_weight, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// CreateWithTopics inserts a subject and its topic rows in one transaction.
func (r *SubjectRepository) CreateWithTopics(ctx context.Context, subject *models.Subject, topics []models.Topic) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	subject.CreatedAt = now
	subject.UpdatedAt = now

	const subjectQuery = `INSERT INTO subjects (id, study_plan_id, subject_name, priority_weight, created_at, updated_at) VALUES (:id, :study_plan_id, :subject_name, :priority_weight, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, subjectQuery, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}

	const topicQuery = `INSERT INTO topics (id, subject_id, description, priority_weight, estimated_hours, status, created_at, updated_at) VALUES (:id, :subject_id, :description, :priority_weight, :estimated_hours, :status, :created_at, :updated_at)`
	for i := range topics {
		topics[i].SubjectID = subject.ID
		if topics[i].ID == "" {
			topics[i].ID = uuid.NewString()
		}
		if topics[i].Status == "" {
			topics[i].Status = models.TopicStatusPending
		}
		topics[i].CreatedAt = now
		topics[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, topicQuery, topics[i]); err != nil {
			return fmt.Errorf("create topic: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Update updates mutable fields of a subject.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET subject_name = :subject_name, priority_weight = :priority_weight, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return nil
}

// Delete removes a subject and, via cascade, its topics.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM subjects WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	return nil
}
