package dto

import (
	"github.com/editaliza/editaliza-api/internal/models"
)

// GenerateScheduleResult returns the outcome of a (re)generation run.
type GenerateScheduleResult struct {
	Sessions       []models.StudySession `json:"sessions"`
	ExcludedTopics []ExcludedTopicInfo   `json:"excludedTopics"`
	Warnings       []ScheduleWarning     `json:"warnings,omitempty"`
	Stats          GenerationStats       `json:"stats"`
}

// ExcludedTopicInfo reports a topic dropped by final-sprint truncation.
type ExcludedTopicInfo struct {
	TopicID        string `json:"topicId"`
	SubjectID      string `json:"subjectId"`
	SubjectName    string `json:"subjectName"`
	Description    string `json:"description"`
	CombinedWeight int    `json:"combinedWeight"`
	Reason         string `json:"reason"`
}

// ScheduleWarning is a non-fatal condition surfaced in the result payload.
type ScheduleWarning struct {
	Code              string   `json:"code"`
	Message           string   `json:"message"`
	UnscheduledTopics []string `json:"unscheduledTopics,omitempty"`
}

// GenerationStats summarises a generation run.
type GenerationStats struct {
	TotalSessions     int   `json:"totalSessions"`
	NewTopicSessions  int   `json:"newTopicSessions"`
	ReviewSessions    int   `json:"reviewSessions"`
	MockSessions      int   `json:"mockSessions"`
	EssaySessions     int   `json:"essaySessions"`
	PreservedSessions int   `json:"preservedSessions"`
	ExcludedTopics    int   `json:"excludedTopics"`
	AvailableSlots    int   `json:"availableSlots"`
	GenerationMillis  int64 `json:"generationMs"`
}

// ScheduleDay groups sessions under one calendar date.
type ScheduleDay struct {
	Date     string                `json:"date"`
	Sessions []models.StudySession `json:"sessions"`
}

// ReplanResult reports the outcome of rescheduling overdue sessions.
type ReplanResult struct {
	Rescheduled int               `json:"rescheduled"`
	Failed      int               `json:"failed"`
	Warnings    []ScheduleWarning `json:"warnings,omitempty"`
}
