package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/editaliza/editaliza-api/internal/models"
)

func newExclusionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestExclusionRepositoryReplaceForPlan(t *testing.T) {
	db, mock, cleanup := newExclusionRepoMock(t)
	defer cleanup()

	repo := NewExclusionRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM reta_final_exclusions WHERE study_plan_id = $1")).
		WithArgs("plan-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reta_final_exclusions")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	exclusions := []models.ExcludedTopic{
		{TopicID: "top-9", Reason: "Sem tempo hábil antes da prova"},
	}
	require.NoError(t, repo.ReplaceForPlan(context.Background(), tx, "plan-1", exclusions))
	require.Equal(t, "plan-1", exclusions[0].StudyPlanID)
	require.NotEmpty(t, exclusions[0].ID)
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}
