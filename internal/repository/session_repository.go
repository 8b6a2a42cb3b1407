package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/editaliza/editaliza-api/internal/models"
)

// SessionRepository provides database access for study sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new instance of SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const sessionColumns = `id, study_plan_id, subject_id, topic_id, subject_name, topic_description, session_date, session_type, status, duration_minutes, questions_solved, time_studied_seconds, completed_at, created_at, updated_at`

// FindByID returns a session by identifier.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.StudySession, error) {
	query := fmt.Sprintf(`SELECT %s FROM study_sessions WHERE id = $1 LIMIT 1`, sessionColumns)
	var session models.StudySession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	return &session, nil
}

// ListByPlan returns sessions of a plan matching the filter, with total count.
func (r *SessionRepository) ListByPlan(ctx context.Context, planID string, filter models.SessionFilter) ([]models.StudySession, int, error) {
	baseQuery := `FROM study_sessions WHERE study_plan_id = $1`
	args := []interface{}{planID}
	var conditions []string

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("session_type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.FromDate != nil {
		conditions = append(conditions, fmt.Sprintf("session_date >= $%d", len(args)+1))
		args = append(args, *filter.FromDate)
	}
	if filter.ToDate != nil {
		conditions = append(conditions, fmt.Sprintf("session_date <= $%d", len(args)+1))
		args = append(args, *filter.ToDate)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY session_date ASC, created_at ASC, id ASC LIMIT %d OFFSET %d", sessionColumns, baseQuery, pageSize, offset)
	var sessions []models.StudySession
	if err := r.db.SelectContext(ctx, &sessions, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return sessions, total, nil
}

// ListCompletedByPlan returns completed sessions of a plan, the rows a
// regeneration must preserve.
func (r *SessionRepository) ListCompletedByPlan(ctx context.Context, exec sqlx.ExtContext, planID string) ([]models.StudySession, error) {
	query := fmt.Sprintf(`SELECT %s FROM study_sessions WHERE study_plan_id = $1 AND status = $2 ORDER BY session_date ASC, id ASC`, sessionColumns)
	var sessions []models.StudySession
	if err := sqlx.SelectContext(ctx, r.exec(exec), &sessions, query, planID, models.SessionStatusCompleted); err != nil {
		return nil, fmt.Errorf("list completed sessions: %w", err)
	}
	return sessions, nil
}

// ListOverdue returns pending sessions dated strictly before the given day.
func (r *SessionRepository) ListOverdue(ctx context.Context, planID string, before time.Time) ([]models.StudySession, error) {
	query := fmt.Sprintf(`SELECT %s FROM study_sessions WHERE study_plan_id = $1 AND status = $2 AND session_date < $3 ORDER BY session_date ASC, id ASC`, sessionColumns)
	var sessions []models.StudySession
	if err := r.db.SelectContext(ctx, &sessions, query, planID, models.SessionStatusPending, before); err != nil {
		return nil, fmt.Errorf("list overdue sessions: %w", err)
	}
	return sessions, nil
}

// SweepOverdue flags every pending session dated strictly before the given day
// as postponed, across all plans. Dates are left untouched so a later replan
// can still place the sessions in order.
func (r *SessionRepository) SweepOverdue(ctx context.Context, before time.Time) (int64, error) {
	const query = `UPDATE study_sessions SET status = $1, updated_at = $2 WHERE status = $3 AND session_date < $4`
	res, err := r.db.ExecContext(ctx, query, models.SessionStatusPostponed, time.Now().UTC(), models.SessionStatusPending, before)
	if err != nil {
		return 0, fmt.Errorf("sweep overdue sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep overdue sessions: %w", err)
	}
	return affected, nil
}

// DeleteReplaceable removes pending and postponed sessions dated on or after
// the given day. Completed rows are never touched.
func (r *SessionRepository) DeleteReplaceable(ctx context.Context, exec sqlx.ExtContext, planID string, from time.Time) (int64, error) {
	const query = `DELETE FROM study_sessions WHERE study_plan_id = $1 AND status IN ($2, $3) AND session_date >= $4`
	res, err := r.exec(exec).ExecContext(ctx, query, planID, models.SessionStatusPending, models.SessionStatusPostponed, from)
	if err != nil {
		return 0, fmt.Errorf("delete replaceable sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete replaceable sessions: %w", err)
	}
	return affected, nil
}

// InsertBatch inserts generated sessions, preserving slice order.
func (r *SessionRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, sessions []models.StudySession) error {
	if len(sessions) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `INSERT INTO study_sessions (id, study_plan_id, subject_id, topic_id, subject_name, topic_description, session_date, session_type, status, duration_minutes, created_at, updated_at) VALUES (:id, :study_plan_id, :subject_id, :topic_id, :subject_name, :topic_description, :session_date, :session_type, :status, :duration_minutes, :created_at, :updated_at)`
	for i := range sessions {
		session := &sessions[i]
		if session.ID == "" {
			session.ID = uuid.NewString()
		}
		if session.Status == "" {
			session.Status = models.SessionStatusPending
		}
		if session.CreatedAt.IsZero() {
			session.CreatedAt = now
		}
		session.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, query, session); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
	}
	return nil
}

// Complete marks a session done and stores the study metrics.
func (r *SessionRepository) Complete(ctx context.Context, id string, questionsSolved, timeStudiedSecs *int, completedAt time.Time) error {
	const query = `UPDATE study_sessions SET status = $2, questions_solved = $3, time_studied_seconds = $4, completed_at = $5, updated_at = $6 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.SessionStatusCompleted, questionsSolved, timeStudiedSecs, completedAt, completedAt); err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	return nil
}

// Postpone moves a session to a new date and flags it postponed.
func (r *SessionRepository) Postpone(ctx context.Context, id string, newDate time.Time) error {
	const query = `UPDATE study_sessions SET status = $2, session_date = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.SessionStatusPostponed, newDate, time.Now().UTC()); err != nil {
		return fmt.Errorf("postpone session: %w", err)
	}
	return nil
}

// Create inserts one session outside the generation path.
func (r *SessionRepository) Create(ctx context.Context, session *models.StudySession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Status == "" {
		session.Status = models.SessionStatusPending
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	const query = `INSERT INTO study_sessions (id, study_plan_id, subject_id, topic_id, subject_name, topic_description, session_date, session_type, status, duration_minutes, created_at, updated_at) VALUES (:id, :study_plan_id, :subject_id, :topic_id, :subject_name, :topic_description, :session_date, :session_type, :status, :duration_minutes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// CountByDate returns, per date, how many sessions a plan already has from
// the given day on. Used when postponing into partially filled days.
func (r *SessionRepository) CountByDate(ctx context.Context, planID string, from time.Time) (map[string]int, error) {
	const query = `SELECT session_date, COUNT(*) AS n FROM study_sessions WHERE study_plan_id = $1 AND session_date >= $2 GROUP BY session_date`
	rows, err := r.db.QueryxContext(ctx, query, planID, from)
	if err != nil {
		return nil, fmt.Errorf("count sessions by date: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var date time.Time
		var n int
		if err := rows.Scan(&date, &n); err != nil {
			return nil, fmt.Errorf("count sessions by date: %w", err)
		}
		counts[date.Format("2006-01-02")] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count sessions by date: %w", err)
	}
	return counts, nil
}
