package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/editaliza/editaliza-api/internal/models"
)

func newSessionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSessionRepositoryListByPlanFilters(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	rows := sqlmock.NewRows([]string{"id", "study_plan_id", "subject_id", "topic_id", "subject_name", "topic_description", "session_date", "session_type", "status", "duration_minutes", "questions_solved", "time_studied_seconds", "completed_at", "created_at", "updated_at"}).
		AddRow("sess-1", "plan-1", nil, nil, "Direito Constitucional", "Controle de constitucionalidade", time.Now(), "Novo Tópico", "Pendente", 50, nil, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, study_plan_id")).
		WithArgs("plan-1", "Pendente").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("plan-1", "Pendente").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	sessions, total, err := repo.ListByPlan(context.Background(), "plan-1", models.SessionFilter{Status: models.SessionStatusPending})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, 1, total)
	require.Equal(t, models.SessionTypeNewTopic, sessions[0].SessionType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryDeleteReplaceableSparesCompleted(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM study_sessions WHERE study_plan_id = $1 AND status IN ($2, $3) AND session_date >= $4")).
		WithArgs("plan-1", "Pendente", "Adiado", from).
		WillReturnResult(sqlmock.NewResult(0, 12))

	affected, err := repo.DeleteReplaceable(context.Background(), nil, "plan-1", from)
	require.NoError(t, err)
	require.Equal(t, int64(12), affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryInsertBatchWithinTx(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO study_sessions")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO study_sessions")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	sessions := []models.StudySession{
		{StudyPlanID: "plan-1", SubjectName: "Português", TopicDescription: "Crase", SessionDate: time.Now(), SessionType: models.SessionTypeNewTopic, DurationMinutes: 50},
		{StudyPlanID: "plan-1", SubjectName: "Português", TopicDescription: "Crase", SessionDate: time.Now().AddDate(0, 0, 7), SessionType: models.SessionTypeReview7D, DurationMinutes: 50},
	}
	require.NoError(t, repo.InsertBatch(context.Background(), tx, sessions))
	require.NotEmpty(t, sessions[0].ID)
	require.Equal(t, models.SessionStatusPending, sessions[0].Status)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryComplete(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	questions := 30
	seconds := 3000
	completedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE study_sessions SET status = $2")).
		WithArgs("sess-1", "Concluído", &questions, &seconds, completedAt, completedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Complete(context.Background(), "sess-1", &questions, &seconds, completedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryListOverdue(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	today := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "study_plan_id", "subject_id", "topic_id", "subject_name", "topic_description", "session_date", "session_type", "status", "duration_minutes", "questions_solved", "time_studied_seconds", "completed_at", "created_at", "updated_at"}).
		AddRow("sess-9", "plan-1", nil, nil, "Matemática", "Juros compostos", today.AddDate(0, 0, -3), "Novo Tópico", "Pendente", 50, nil, nil, nil, today, today)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, study_plan_id")).
		WithArgs("plan-1", "Pendente", today).
		WillReturnRows(rows)

	sessions, err := repo.ListOverdue(context.Background(), "plan-1", today)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "sess-9", sessions[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
