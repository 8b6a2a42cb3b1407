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

// PlanRepository provides database access for study plans.
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository creates a new instance of PlanRepository.
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `id, user_id, plan_name, exam_date, study_hours_per_day, session_duration_minutes, has_essay, reta_final_mode, created_at, updated_at`

// FindByID returns a study plan by identifier.
func (r *PlanRepository) FindByID(ctx context.Context, id string) (*models.StudyPlan, error) {
	query := fmt.Sprintf(`SELECT %s FROM study_plans WHERE id = $1 LIMIT 1`, planColumns)
	var plan models.StudyPlan
	if err := r.db.GetContext(ctx, &plan, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find plan by id: %w", err)
	}
	return &plan, nil
}

// ListByUser returns every study plan owned by a user, newest first.
func (r *PlanRepository) ListByUser(ctx context.Context, userID string) ([]models.StudyPlan, error) {
	query := fmt.Sprintf(`SELECT %s FROM study_plans WHERE user_id = $1 ORDER BY created_at DESC`, planColumns)
	var plans []models.StudyPlan
	if err := r.db.SelectContext(ctx, &plans, query, userID); err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

// Create inserts a new study plan.
func (r *PlanRepository) Create(ctx context.Context, plan *models.StudyPlan) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now

	const query = `INSERT INTO study_plans (id, user_id, plan_name, exam_date, study_hours_per_day, session_duration_minutes, has_essay, reta_final_mode, created_at, updated_at) VALUES (:id, :user_id, :plan_name, :exam_date, :study_hours_per_day, :session_duration_minutes, :has_essay, :reta_final_mode, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("create plan: %w", err)
	}
	return nil
}

// Update updates mutable fields of a study plan.
func (r *PlanRepository) Update(ctx context.Context, plan *models.StudyPlan) error {
	plan.UpdatedAt = time.Now().UTC()
	const query = `UPDATE study_plans SET plan_name = :plan_name, exam_date = :exam_date, study_hours_per_day = :study_hours_per_day, session_duration_minutes = :session_duration_minutes, has_essay = :has_essay, reta_final_mode = :reta_final_mode, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	return nil
}

// Delete removes a study plan and, via cascade, its subjects, topics and sessions.
func (r *PlanRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM study_plans WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	return nil
}
