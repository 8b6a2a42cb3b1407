package service

import (
	"sort"
	"time"

	"github.com/editaliza/editaliza-api/internal/models"
)

// reviewOffsets are the spaced-repetition intervals, in days after the first
// contact with a topic.
var reviewOffsets = []struct {
	Days int
	Type models.SessionType
}{
	{7, models.SessionTypeReview7D},
	{14, models.SessionTypeReview14D},
	{28, models.SessionTypeReview28D},
}

// distributionResult carries the generated sessions plus the soft outcomes
// the caller reports instead of failing on.
type distributionResult struct {
	Sessions          []models.StudySession
	UnscheduledTopics []models.ScheduleTopic
}

// distributorConfig tunes the non-topic session cadence.
type distributorConfig struct {
	SessionDuration int
	MockCadenceDays int
	FullMockWindow  int
	HasEssay        bool
	Location        *time.Location
}

// subjectQueue is one subject's pending topic list inside the round-robin.
// Topics arrive already ordered by combined weight descending, which within
// one subject equals topic weight descending.
type subjectQueue struct {
	SubjectID   string
	SubjectName string
	Weight      int
	Topics      []models.ScheduleTopic
	credit      int
}

// distributeTopics interleaves the backlog across the calendar using smooth
// weighted round-robin with deficit counters: every iteration each subject
// earns its weight in credit, the richest subject emits one topic and pays
// the total weight back. Over a long window each subject's session share
// converges to weight/totalWeight.
//
// A second pass derives Review7D/14D/28D sessions for every new-topic date,
// including dates of completed sessions preserved from earlier generations,
// then the mock and essay cadence fills what capacity remains. Reviews that
// would land past the exam window are dropped silently.
func distributeTopics(
	plan *models.StudyPlan,
	backlog []models.ScheduleTopic,
	completed []models.StudySession,
	cal *scheduleCalendar,
	cfg distributorConfig,
) *distributionResult {
	result := &distributionResult{}

	queues := buildSubjectQueues(backlog)
	totalWeight := 0
	for _, q := range queues {
		totalWeight += q.Weight
	}

	var newTopicSessions []models.StudySession
	for remainingTopics(queues) > 0 {
		date, ok := cal.Next()
		if !ok {
			break
		}
		queue := nextQueue(queues, totalWeight)
		topic := queue.Topics[0]
		queue.Topics = queue.Topics[1:]
		newTopicSessions = append(newTopicSessions, newTopicSession(plan, topic, date, cfg.SessionDuration))
	}
	result.Sessions = append(result.Sessions, newTopicSessions...)

	for _, queue := range queues {
		result.UnscheduledTopics = append(result.UnscheduledTopics, queue.Topics...)
	}
	sortUnscheduled(result.UnscheduledTopics)

	result.Sessions = append(result.Sessions, deriveReviews(plan, newTopicSessions, completed, cal, cfg)...)
	result.Sessions = append(result.Sessions, fillCadence(plan, cal, cfg)...)

	sortSessions(result.Sessions)
	return result
}

func buildSubjectQueues(backlog []models.ScheduleTopic) []*subjectQueue {
	index := map[string]*subjectQueue{}
	var queues []*subjectQueue
	for _, topic := range backlog {
		queue, ok := index[topic.SubjectID]
		if !ok {
			queue = &subjectQueue{
				SubjectID:   topic.SubjectID,
				SubjectName: topic.SubjectName,
				Weight:      topic.SubjectWeight,
			}
			index[topic.SubjectID] = queue
			queues = append(queues, queue)
		}
		queue.Topics = append(queue.Topics, topic)
	}
	sort.SliceStable(queues, func(i, j int) bool {
		if queues[i].Weight != queues[j].Weight {
			return queues[i].Weight > queues[j].Weight
		}
		return queues[i].SubjectName < queues[j].SubjectName
	})
	return queues
}

func remainingTopics(queues []*subjectQueue) int {
	total := 0
	for _, q := range queues {
		total += len(q.Topics)
	}
	return total
}

// nextQueue advances the deficit counters one step and returns the queue to
// emit from. Ties resolve by queue order, which is weight desc then name asc.
func nextQueue(queues []*subjectQueue, totalWeight int) *subjectQueue {
	var chosen *subjectQueue
	for _, q := range queues {
		if len(q.Topics) == 0 {
			continue
		}
		q.credit += q.Weight
		if chosen == nil || q.credit > chosen.credit {
			chosen = q
		}
	}
	chosen.credit -= totalWeight
	return chosen
}

func newTopicSession(plan *models.StudyPlan, topic models.ScheduleTopic, date time.Time, duration int) models.StudySession {
	subjectID := topic.SubjectID
	topicID := topic.ID
	return models.StudySession{
		StudyPlanID:      plan.ID,
		SubjectID:        &subjectID,
		TopicID:          &topicID,
		SubjectName:      topic.SubjectName,
		TopicDescription: topic.Description,
		SessionDate:      date,
		SessionType:      models.SessionTypeNewTopic,
		Status:           models.SessionStatusPending,
		DurationMinutes:  duration,
	}
}

// deriveReviews schedules the spaced-repetition follow-ups for every first
// contact with a topic, whether scheduled this pass or preserved as completed
// history. Placement is a monotonic forward search from D+offset; a full day
// bumps the review to the next day with room, never earlier. Reviews whose
// window is already gone are dropped silently.
func deriveReviews(
	plan *models.StudyPlan,
	newTopicSessions []models.StudySession,
	completed []models.StudySession,
	cal *scheduleCalendar,
	cfg distributorConfig,
) []models.StudySession {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	anchors := make([]models.StudySession, 0, len(completed)+len(newTopicSessions))
	for _, session := range completed {
		if session.SessionType != models.SessionTypeNewTopic || session.TopicID == nil {
			continue
		}
		anchors = append(anchors, session)
	}
	// Preserved anchors come first so reviews of already-studied topics do
	// not get starved by this pass's fresh topics.
	anchors = append(anchors, newTopicSessions...)

	var sessions []models.StudySession
	for _, a := range anchors {
		anchorDate := civilDateIn(a.SessionDate, loc)
		for _, offset := range reviewOffsets {
			target := anchorDate.AddDate(0, 0, offset.Days)
			date, ok := cal.PlaceOnOrAfter(target)
			if !ok {
				continue
			}
			sessions = append(sessions, models.StudySession{
				StudyPlanID:      plan.ID,
				SubjectID:        a.SubjectID,
				TopicID:          a.TopicID,
				SubjectName:      a.SubjectName,
				TopicDescription: a.TopicDescription,
				SessionDate:      date,
				SessionType:      offset.Type,
				Status:           models.SessionStatusPending,
				DurationMinutes:  cfg.SessionDuration,
			})
		}
	}
	return sessions
}

// fillCadence reserves the fixed-cadence non-topic sessions: one directed
// mock per cadence window, switching to full mocks inside the final stretch,
// plus one essay day per week when the plan includes one.
func fillCadence(plan *models.StudyPlan, cal *scheduleCalendar, cfg distributorConfig) []models.StudySession {
	cadence := cfg.MockCadenceDays
	if cadence <= 0 {
		cadence = 7
	}
	fullWindow := cfg.FullMockWindow
	if fullWindow <= 0 {
		fullWindow = 14
	}

	days := cal.Days()
	if len(days) == 0 {
		return nil
	}
	examBoundary := days[len(days)-1].Date.AddDate(0, 0, 1)

	var sessions []models.StudySession
	place := func(target time.Time, sessionType models.SessionType) {
		date, ok := cal.PlaceOnOrAfter(target)
		if !ok {
			return
		}
		sessions = append(sessions, models.StudySession{
			StudyPlanID:     plan.ID,
			SubjectName:     "",
			SessionDate:     date,
			SessionType:     sessionType,
			Status:          models.SessionStatusPending,
			DurationMinutes: cfg.SessionDuration,
		})
	}

	start := days[0].Date
	for offset := cadence - 1; offset < len(days); offset += cadence {
		target := start.AddDate(0, 0, offset)
		daysToExam := int(examBoundary.Sub(target).Hours() / 24)
		if daysToExam <= fullWindow {
			place(target, models.SessionTypeFullMock)
		} else {
			place(target, models.SessionTypeDirectedMock)
		}
	}

	if cfg.HasEssay {
		for offset := 0; offset < len(days); offset += 7 {
			place(start.AddDate(0, 0, offset), models.SessionTypeEssay)
		}
	}
	return sessions
}

func sortSessions(sessions []models.StudySession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if !sessions[i].SessionDate.Equal(sessions[j].SessionDate) {
			return sessions[i].SessionDate.Before(sessions[j].SessionDate)
		}
		return false
	})
}

func sortUnscheduled(topics []models.ScheduleTopic) {
	sort.SliceStable(topics, func(i, j int) bool {
		wi, _ := combinedWeight(topics[i].SubjectWeight, topics[i].PriorityWeight)
		wj, _ := combinedWeight(topics[j].SubjectWeight, topics[j].PriorityWeight)
		if wi != wj {
			return wi > wj
		}
		return topics[i].ID < topics[j].ID
	})
}
