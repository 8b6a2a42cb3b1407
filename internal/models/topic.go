package models

import "time"

// TopicStatus enumerates the lifecycle states of a topic.
type TopicStatus string

const (
	TopicStatusPending   TopicStatus = "Pendente"
	TopicStatusCompleted TopicStatus = "Concluído"
)

// Topic is an individual study unit within a subject.
type Topic struct {
	ID             string      `db:"id" json:"id"`
	SubjectID      string      `db:"subject_id" json:"subject_id"`
	Description    string      `db:"description" json:"description"`
	PriorityWeight int         `db:"priority_weight" json:"priority_weight"`
	EstimatedHours float64     `db:"estimated_hours" json:"estimated_hours"`
	Status         TopicStatus `db:"status" json:"status"`
	CompletionDate *time.Time  `db:"completion_date" json:"completion_date,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// ScheduleTopic is a topic joined with its owning subject, the shape the
// schedule generator works with.
type ScheduleTopic struct {
	Topic
	StudyPlanID   string `db:"study_plan_id" json:"study_plan_id"`
	SubjectName   string `db:"subject_name" json:"subject_name"`
	SubjectWeight int    `db:"subject_weight" json:"subject_weight"`
}

// ExcludedTopic records a topic dropped by reta-final truncation.
type ExcludedTopic struct {
	ID          string    `db:"id" json:"id"`
	StudyPlanID string    `db:"study_plan_id" json:"study_plan_id"`
	SubjectID   *string   `db:"subject_id" json:"subject_id,omitempty"`
	TopicID     string    `db:"topic_id" json:"topic_id"`
	Reason      string    `db:"reason" json:"reason"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
