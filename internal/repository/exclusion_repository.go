package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/editaliza/editaliza-api/internal/models"
)

// ExclusionRepository stores topics left out of a final-sprint schedule.
type ExclusionRepository struct {
	db *sqlx.DB
}

// NewExclusionRepository creates a new instance of ExclusionRepository.
func NewExclusionRepository(db *sqlx.DB) *ExclusionRepository {
	return &ExclusionRepository{db: db}
}

func (r *ExclusionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ReplaceForPlan clears previous exclusions of a plan and stores the new set.
func (r *ExclusionRepository) ReplaceForPlan(ctx context.Context, exec sqlx.ExtContext, planID string, exclusions []models.ExcludedTopic) error {
	target := r.exec(exec)

	const deleteQuery = `DELETE FROM reta_final_exclusions WHERE study_plan_id = $1`
	if _, err := target.ExecContext(ctx, deleteQuery, planID); err != nil {
		return fmt.Errorf("clear exclusions: %w", err)
	}

	now := time.Now().UTC()
	const insertQuery = `INSERT INTO reta_final_exclusions (id, study_plan_id, subject_id, topic_id, reason, created_at) VALUES (:id, :study_plan_id, :subject_id, :topic_id, :reason, :created_at)`
	for i := range exclusions {
		exclusion := &exclusions[i]
		exclusion.StudyPlanID = planID
		if exclusion.ID == "" {
			exclusion.ID = uuid.NewString()
		}
		if exclusion.CreatedAt.IsZero() {
			exclusion.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, exclusion); err != nil {
			return fmt.Errorf("insert exclusion: %w", err)
		}
	}
	return nil
}

// ListByPlan returns the stored exclusions of a plan.
func (r *ExclusionRepository) ListByPlan(ctx context.Context, planID string) ([]models.ExcludedTopic, error) {
	const query = `SELECT id, study_plan_id, subject_id, topic_id, reason, created_at FROM reta_final_exclusions WHERE study_plan_id = $1 ORDER BY created_at ASC, id ASC`
	var exclusions []models.ExcludedTopic
	if err := r.db.SelectContext(ctx, &exclusions, query, planID); err != nil {
		return nil, fmt.Errorf("list exclusions: %w", err)
	}
	return exclusions, nil
}
