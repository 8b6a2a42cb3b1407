package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/editaliza/editaliza-api/internal/dto"
	"github.com/editaliza/editaliza-api/internal/models"
	appErrors "github.com/editaliza/editaliza-api/pkg/errors"
)

type mockPlanRepo struct {
	plans       map[string]*models.StudyPlan
	created     []*models.StudyPlan
	updated     []*models.StudyPlan
	deletedIDs  []string
	findByIDErr error
}

func (m *mockPlanRepo) FindByID(ctx context.Context, id string) (*models.StudyPlan, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	plan, ok := m.plans[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *plan
	return &clone, nil
}

func (m *mockPlanRepo) ListByUser(ctx context.Context, userID string) ([]models.StudyPlan, error) {
	var out []models.StudyPlan
	for _, plan := range m.plans {
		if plan.UserID == userID {
			out = append(out, *plan)
		}
	}
	return out, nil
}

func (m *mockPlanRepo) Create(ctx context.Context, plan *models.StudyPlan) error {
	plan.ID = "plan-new"
	m.created = append(m.created, plan)
	return nil
}

func (m *mockPlanRepo) Update(ctx context.Context, plan *models.StudyPlan) error {
	m.updated = append(m.updated, plan)
	return nil
}

func (m *mockPlanRepo) Delete(ctx context.Context, id string) error {
	m.deletedIDs = append(m.deletedIDs, id)
	return nil
}

type cacheInvalidatorSpy struct {
	invalidated []string
}

func (c *cacheInvalidatorSpy) InvalidatePlan(ctx context.Context, planID string) error {
	c.invalidated = append(c.invalidated, planID)
	return nil
}

func ownedPlan() *models.StudyPlan {
	return &models.StudyPlan{
		ID:                     "plan-1",
		UserID:                 "user-1",
		PlanName:               "TJ-SP Escrevente",
		ExamDate:               time.Now().UTC().AddDate(0, 3, 0),
		StudyHoursPerDay:       models.WeeklyHours{1: 4, 2: 4, 3: 4},
		SessionDurationMinutes: 50,
	}
}

func TestPlanServiceCreate(t *testing.T) {
	repo := &mockPlanRepo{plans: map[string]*models.StudyPlan{}}
	svc := NewPlanService(repo, nil, nil, nil, time.UTC)

	examDate := time.Now().UTC().AddDate(0, 2, 0).Format("2006-01-02")
	plan, err := svc.Create(context.Background(), "user-1", dto.CreatePlanRequest{
		PlanName:         "TRF Analista",
		ExamDate:         examDate,
		StudyHoursPerDay: map[int]float64{1: 3, 6: 5},
		HasEssay:         true,
	})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "user-1", plan.UserID)
	assert.Equal(t, defaultSessionDuration, plan.SessionDurationMinutes)
	assert.True(t, plan.HasEssay)
	assert.InDelta(t, 8.0, plan.StudyHoursPerDay.Total(), 0.001)
}

func TestPlanServiceCreateRejectsPastExam(t *testing.T) {
	repo := &mockPlanRepo{plans: map[string]*models.StudyPlan{}}
	svc := NewPlanService(repo, nil, nil, nil, time.UTC)

	_, err := svc.Create(context.Background(), "user-1", dto.CreatePlanRequest{
		PlanName:         "Prova antiga",
		ExamDate:         "2020-01-01",
		StudyHoursPerDay: map[int]float64{1: 3},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidExamDate))
	assert.Empty(t, repo.created)
}

func TestPlanServiceCreateRejectsEmptyAvailability(t *testing.T) {
	repo := &mockPlanRepo{plans: map[string]*models.StudyPlan{}}
	svc := NewPlanService(repo, nil, nil, nil, time.UTC)

	examDate := time.Now().UTC().AddDate(0, 2, 0).Format("2006-01-02")
	_, err := svc.Create(context.Background(), "user-1", dto.CreatePlanRequest{
		PlanName:         "Sem horas",
		ExamDate:         examDate,
		StudyHoursPerDay: map[int]float64{1: 0, 2: 0},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNoAvailability))
}

func TestPlanServiceCreateRejectsInvalidWeekday(t *testing.T) {
	repo := &mockPlanRepo{plans: map[string]*models.StudyPlan{}}
	svc := NewPlanService(repo, nil, nil, nil, time.UTC)

	examDate := time.Now().UTC().AddDate(0, 2, 0).Format("2006-01-02")
	_, err := svc.Create(context.Background(), "user-1", dto.CreatePlanRequest{
		PlanName:         "Dia inválido",
		ExamDate:         examDate,
		StudyHoursPerDay: map[int]float64{7: 3},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestPlanServiceGetHidesForeignPlans(t *testing.T) {
	repo := &mockPlanRepo{plans: map[string]*models.StudyPlan{"plan-1": ownedPlan()}}
	svc := NewPlanService(repo, nil, nil, nil, time.UTC)

	_, err := svc.Get(context.Background(), "plan-1", "intruder")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	plan, err := svc.Get(context.Background(), "plan-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "plan-1", plan.ID)
}

func TestPlanServiceUpdateInvalidatesCache(t *testing.T) {
	repo := &mockPlanRepo{plans: map[string]*models.StudyPlan{"plan-1": ownedPlan()}}
	cache := &cacheInvalidatorSpy{}
	svc := NewPlanService(repo, cache, nil, nil, time.UTC)

	newName := "TJ-SP Escrevente 2026"
	retaFinal := true
	plan, err := svc.Update(context.Background(), "plan-1", "user-1", dto.UpdatePlanRequest{
		PlanName:      &newName,
		RetaFinalMode: &retaFinal,
	})
	require.NoError(t, err)
	assert.Equal(t, newName, plan.PlanName)
	assert.True(t, plan.RetaFinalMode)
	require.Len(t, repo.updated, 1)
	assert.Equal(t, []string{"plan-1"}, cache.invalidated)
}

func TestPlanServiceDelete(t *testing.T) {
	repo := &mockPlanRepo{plans: map[string]*models.StudyPlan{"plan-1": ownedPlan()}}
	cache := &cacheInvalidatorSpy{}
	svc := NewPlanService(repo, cache, nil, nil, time.UTC)

	require.NoError(t, svc.Delete(context.Background(), "plan-1", "user-1"))
	assert.Equal(t, []string{"plan-1"}, repo.deletedIDs)
	assert.Equal(t, []string{"plan-1"}, cache.invalidated)

	err := svc.Delete(context.Background(), "missing", "user-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
