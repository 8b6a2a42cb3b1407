package service

import (
	"math"
	"sort"

	"github.com/editaliza/editaliza-api/internal/models"
	appErrors "github.com/editaliza/editaliza-api/pkg/errors"
)

// combinedWeight folds subject and topic priority into the single ordering
// key used everywhere topics are compared. Range 11 to 55.
func combinedWeight(subjectWeight, topicWeight int) (int, error) {
	if subjectWeight < 1 || subjectWeight > 5 || topicWeight < 1 || topicWeight > 5 {
		return 0, appErrors.ErrInvalidWeight
	}
	return subjectWeight*10 + topicWeight, nil
}

// topicSelection is the output of the backlog build: the ordered topics to
// schedule plus the ones dropped by final-sprint truncation.
type topicSelection struct {
	Backlog  []models.ScheduleTopic
	Excluded []models.ScheduleTopic
}

// selectTopics builds the ordered backlog for one generation pass.
//
// Pending topics are sorted by combined weight descending, ties broken by
// subject name then topic id so regeneration is reproducible. When the plan
// runs in reta-final mode the sorted list is cut to fit the remaining slot
// capacity, each topic consuming ceil(estimatedHours*60/duration) slots;
// whatever does not fit is reported back, not scheduled.
func selectTopics(topics []models.ScheduleTopic, retaFinal bool, capacity, sessionDuration int) (*topicSelection, error) {
	pending := make([]models.ScheduleTopic, 0, len(topics))
	for _, topic := range topics {
		if _, err := combinedWeight(topic.SubjectWeight, topic.PriorityWeight); err != nil {
			return nil, err
		}
		if topic.Status != models.TopicStatusCompleted {
			pending = append(pending, topic)
		}
	}
	if len(pending) == 0 {
		return nil, appErrors.ErrNoTopics
	}

	sort.SliceStable(pending, func(i, j int) bool {
		wi, _ := combinedWeight(pending[i].SubjectWeight, pending[i].PriorityWeight)
		wj, _ := combinedWeight(pending[j].SubjectWeight, pending[j].PriorityWeight)
		if wi != wj {
			return wi > wj
		}
		if pending[i].SubjectName != pending[j].SubjectName {
			return pending[i].SubjectName < pending[j].SubjectName
		}
		return pending[i].ID < pending[j].ID
	})

	if !retaFinal {
		return &topicSelection{Backlog: pending}, nil
	}

	if sessionDuration <= 0 {
		sessionDuration = 50
	}
	// The cut is a strict prefix of the sorted list: once a topic does not
	// fit, everything after it is dropped too, so no excluded topic ever
	// outranks a scheduled one.
	selection := &topicSelection{}
	remaining := capacity
	for i, topic := range pending {
		cost := slotCost(topic.EstimatedHours, sessionDuration)
		if cost > remaining {
			selection.Excluded = append(selection.Excluded, pending[i:]...)
			break
		}
		selection.Backlog = append(selection.Backlog, topic)
		remaining -= cost
	}
	if len(selection.Backlog) == 0 {
		return nil, appErrors.ErrNoAvailability
	}
	return selection, nil
}

// slotCost converts a topic's estimated hours into whole session slots.
func slotCost(estimatedHours float64, sessionDuration int) int {
	if estimatedHours <= 0 {
		return 1
	}
	cost := int(math.Ceil(estimatedHours * 60 / float64(sessionDuration)))
	if cost < 1 {
		return 1
	}
	return cost
}
