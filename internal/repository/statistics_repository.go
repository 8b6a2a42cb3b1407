package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SessionTotals aggregates session counts and study volume of a plan.
type SessionTotals struct {
	Total             int   `db:"total"`
	Completed         int   `db:"completed"`
	Pending           int   `db:"pending"`
	Postponed         int   `db:"postponed"`
	QuestionsSolved   int   `db:"questions_solved"`
	TotalStudySeconds int64 `db:"study_seconds"`
}

// SubjectTopicCount aggregates topic completion per subject.
type SubjectTopicCount struct {
	SubjectID       string `db:"subject_id"`
	SubjectName     string `db:"subject_name"`
	PriorityWeight  int    `db:"priority_weight"`
	TotalTopics     int    `db:"total_topics"`
	CompletedTopics int    `db:"completed_topics"`
}

// DailyCompletion is one day of completed-session activity.
type DailyCompletion struct {
	Day          time.Time `db:"day"`
	Completed    int       `db:"completed"`
	StudySeconds int64     `db:"study_seconds"`
}

// StatisticsRepository runs the aggregate queries behind plan statistics.
type StatisticsRepository struct {
	db *sqlx.DB
}

// NewStatisticsRepository creates a new instance of StatisticsRepository.
func NewStatisticsRepository(db *sqlx.DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

// SessionTotals returns session counts and study volume for a plan.
func (r *StatisticsRepository) SessionTotals(ctx context.Context, planID string) (*SessionTotals, error) {
	const query = `SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'Concluído') AS completed,
		COUNT(*) FILTER (WHERE status = 'Pendente') AS pending,
		COUNT(*) FILTER (WHERE status = 'Adiado') AS postponed,
		COALESCE(SUM(questions_solved), 0) AS questions_solved,
		COALESCE(SUM(time_studied_seconds), 0) AS study_seconds
		FROM study_sessions WHERE study_plan_id = $1`
	var totals SessionTotals
	if err := r.db.GetContext(ctx, &totals, query, planID); err != nil {
		return nil, fmt.Errorf("session totals: %w", err)
	}
	return &totals, nil
}

// SubjectTopicCounts returns per-subject topic completion for a plan.
func (r *StatisticsRepository) SubjectTopicCounts(ctx context.Context, planID string) ([]SubjectTopicCount, error) {
	const query = `SELECT
		s.id AS subject_id,
		s.subject_name,
		s.priority_weight,
		COUNT(t.id) AS total_topics,
		COUNT(t.id) FILTER (WHERE t.status = 'Concluído') AS completed_topics
		FROM subjects s
		LEFT JOIN topics t ON t.subject_id = s.id
		WHERE s.study_plan_id = $1
		GROUP BY s.id, s.subject_name, s.priority_weight
		ORDER BY s.priority_weight DESC, s.subject_name ASC`
	var counts []SubjectTopicCount
	if err := r.db.SelectContext(ctx, &counts, query, planID); err != nil {
		return nil, fmt.Errorf("subject topic counts: %w", err)
	}
	return counts, nil
}

// DailyCompletions returns completed-session activity per day since the
// given date, most recent last.
func (r *StatisticsRepository) DailyCompletions(ctx context.Context, planID string, since time.Time) ([]DailyCompletion, error) {
	const query = `SELECT
		DATE(completed_at) AS day,
		COUNT(*) AS completed,
		COALESCE(SUM(time_studied_seconds), 0) AS study_seconds
		FROM study_sessions
		WHERE study_plan_id = $1 AND status = 'Concluído' AND completed_at >= $2
		GROUP BY DATE(completed_at)
		ORDER BY day ASC`
	var days []DailyCompletion
	if err := r.db.SelectContext(ctx, &days, query, planID, since); err != nil {
		return nil, fmt.Errorf("daily completions: %w", err)
	}
	return days, nil
}

// CompletionDates returns the distinct dates with at least one completed
// session, newest first. Input for the study streak calculation.
func (r *StatisticsRepository) CompletionDates(ctx context.Context, planID string, limit int) ([]time.Time, error) {
	if limit <= 0 {
		limit = 365
	}
	query := fmt.Sprintf(`SELECT DISTINCT DATE(completed_at) AS day FROM study_sessions WHERE study_plan_id = $1 AND status = 'Concluído' AND completed_at IS NOT NULL ORDER BY day DESC LIMIT %d`, limit)
	var days []time.Time
	if err := r.db.SelectContext(ctx, &days, query, planID); err != nil {
		return nil, fmt.Errorf("completion dates: %w", err)
	}
	return days, nil
}
