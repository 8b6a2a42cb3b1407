package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/editaliza/editaliza-api/internal/models"
	appErrors "github.com/editaliza/editaliza-api/pkg/errors"
)

func scheduleTopic(id, subjectID, subjectName string, subjectWeight, topicWeight int, hours float64) models.ScheduleTopic {
	return models.ScheduleTopic{
		Topic: models.Topic{
			ID:             id,
			SubjectID:      subjectID,
			Description:    "Tópico " + id,
			PriorityWeight: topicWeight,
			EstimatedHours: hours,
			Status:         models.TopicStatusPending,
		},
		StudyPlanID:   "plan-1",
		SubjectName:   subjectName,
		SubjectWeight: subjectWeight,
	}
}

func TestCombinedWeightRange(t *testing.T) {
	w, err := combinedWeight(5, 5)
	require.NoError(t, err)
	assert.Equal(t, 55, w)

	w, err = combinedWeight(1, 1)
	require.NoError(t, err)
	assert.Equal(t, 11, w)

	for _, pair := range [][2]int{{0, 3}, {6, 3}, {3, 0}, {3, 6}, {-1, 1}} {
		_, err := combinedWeight(pair[0], pair[1])
		assert.True(t, appErrors.Is(err, appErrors.ErrInvalidWeight), "weights %v should be rejected", pair)
	}
}

func TestSelectTopicsOrdersByCombinedWeight(t *testing.T) {
	topics := []models.ScheduleTopic{
		scheduleTopic("t-port", "s-port", "Português", 3, 5, 1),
		scheduleTopic("t-mat", "s-mat", "Matemática", 5, 2, 1),
		scheduleTopic("t-dir", "s-dir", "Direito", 4, 4, 1),
	}

	selection, err := selectTopics(topics, false, 100, 50)
	require.NoError(t, err)
	require.Len(t, selection.Backlog, 3)
	// 52 (Matemática) > 44 (Direito) > 35 (Português).
	assert.Equal(t, "t-mat", selection.Backlog[0].ID)
	assert.Equal(t, "t-dir", selection.Backlog[1].ID)
	assert.Equal(t, "t-port", selection.Backlog[2].ID)
	assert.Empty(t, selection.Excluded)
}

func TestSelectTopicsTieBreaksDeterministically(t *testing.T) {
	topics := []models.ScheduleTopic{
		scheduleTopic("t-b", "s-b", "Informática", 3, 3, 1),
		scheduleTopic("t-a", "s-a", "Atualidades", 3, 3, 1),
		scheduleTopic("t-a2", "s-a", "Atualidades", 3, 3, 1),
	}

	selection, err := selectTopics(topics, false, 100, 50)
	require.NoError(t, err)
	assert.Equal(t, "t-a", selection.Backlog[0].ID)
	assert.Equal(t, "t-a2", selection.Backlog[1].ID)
	assert.Equal(t, "t-b", selection.Backlog[2].ID)
}

func TestSelectTopicsSkipsCompleted(t *testing.T) {
	done := scheduleTopic("t-done", "s-mat", "Matemática", 5, 5, 1)
	done.Status = models.TopicStatusCompleted
	topics := []models.ScheduleTopic{
		done,
		scheduleTopic("t-new", "s-mat", "Matemática", 5, 3, 1),
	}

	selection, err := selectTopics(topics, false, 100, 50)
	require.NoError(t, err)
	require.Len(t, selection.Backlog, 1)
	assert.Equal(t, "t-new", selection.Backlog[0].ID)
}

func TestSelectTopicsEmptyBacklogFails(t *testing.T) {
	done := scheduleTopic("t-done", "s-mat", "Matemática", 5, 5, 1)
	done.Status = models.TopicStatusCompleted

	_, err := selectTopics([]models.ScheduleTopic{done}, false, 100, 50)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNoTopics))

	_, err = selectTopics(nil, false, 100, 50)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNoTopics))
}

func TestSelectTopicsRejectsCorruptWeights(t *testing.T) {
	topics := []models.ScheduleTopic{
		scheduleTopic("t-bad", "s-x", "Xadrez", 7, 3, 1),
	}
	_, err := selectTopics(topics, false, 100, 50)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidWeight))
}

func TestSelectTopicsRetaFinalTruncatesLowestPriority(t *testing.T) {
	var topics []models.ScheduleTopic
	for i := 0; i < 10; i++ {
		weight := 5 - i/2 // weights 5,5,4,4,3,3,2,2,1,1
		topics = append(topics, scheduleTopic(fmt.Sprintf("t-%02d", i), "s-mat", "Matemática", 3, weight, 1))
	}

	// Each topic costs 2 slots (1h at 30-minute sessions); capacity of 8
	// fits exactly the top four.
	selection, err := selectTopics(topics, true, 8, 30)
	require.NoError(t, err)
	assert.Len(t, selection.Backlog, 4)
	assert.Len(t, selection.Excluded, 6)

	minScheduled := 100
	for _, topic := range selection.Backlog {
		w, _ := combinedWeight(topic.SubjectWeight, topic.PriorityWeight)
		if w < minScheduled {
			minScheduled = w
		}
	}
	for _, topic := range selection.Excluded {
		w, _ := combinedWeight(topic.SubjectWeight, topic.PriorityWeight)
		assert.LessOrEqual(t, w, minScheduled)
	}
}

func TestSlotCost(t *testing.T) {
	assert.Equal(t, 1, slotCost(0, 50))
	assert.Equal(t, 1, slotCost(0.5, 50))
	assert.Equal(t, 2, slotCost(1.5, 50))
	assert.Equal(t, 3, slotCost(2, 50))
	assert.Equal(t, 1, slotCost(1, 60))
}
