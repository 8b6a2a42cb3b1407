package dto

// PlanStatistics aggregates progress for one study plan.
type PlanStatistics struct {
	TotalSessions     int               `json:"totalSessions"`
	CompletedSessions int               `json:"completedSessions"`
	PendingSessions   int               `json:"pendingSessions"`
	PostponedSessions int               `json:"postponedSessions"`
	CompletionRate    float64           `json:"completionRate"`
	TotalTopics       int               `json:"totalTopics"`
	CompletedTopics   int               `json:"completedTopics"`
	TopicCoverage     float64           `json:"topicCoverage"`
	StudyStreakDays   int               `json:"studyStreakDays"`
	TotalStudySeconds int64             `json:"totalStudySeconds"`
	QuestionsSolved   int               `json:"questionsSolved"`
	DaysUntilExam     int               `json:"daysUntilExam"`
	SubjectBreakdown  []SubjectProgress `json:"subjectBreakdown"`
	DailyActivity     []DailyActivity   `json:"dailyActivity"`
}

// SubjectProgress summarises one subject inside PlanStatistics.
type SubjectProgress struct {
	SubjectID       string  `json:"subjectId"`
	SubjectName     string  `json:"subjectName"`
	PriorityWeight  int     `json:"priorityWeight"`
	TotalTopics     int     `json:"totalTopics"`
	CompletedTopics int     `json:"completedTopics"`
	Progress        float64 `json:"progress"`
}

// DailyActivity is one point of the recent-activity series.
type DailyActivity struct {
	Date              string `json:"date"`
	CompletedSessions int    `json:"completedSessions"`
	StudySeconds      int64  `json:"studySeconds"`
}
