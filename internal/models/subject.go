package models

import "time"

// Subject is a discipline within a study plan, carrying a priority weight.
type Subject struct {
	ID             string    `db:"id" json:"id"`
	StudyPlanID    string    `db:"study_plan_id" json:"study_plan_id"`
	SubjectName    string    `db:"subject_name" json:"subject_name"`
	PriorityWeight int       `db:"priority_weight" json:"priority_weight"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
