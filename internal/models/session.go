package models

import "time"

// SessionType enumerates the schedule session kinds. The literal values are a
// wire contract with the front-end card renderer and must not change.
type SessionType string

const (
	SessionTypeNewTopic     SessionType = "Novo Tópico"
	SessionTypeReinforce    SessionType = "Reforço Extra"
	SessionTypeReview7D     SessionType = "Revisão 7D"
	SessionTypeReview14D    SessionType = "Revisão 14D"
	SessionTypeReview28D    SessionType = "Revisão 28D"
	SessionTypeDirectedMock SessionType = "Simulado Direcionado"
	SessionTypeFullMock     SessionType = "Simulado Completo"
	SessionTypeEssay        SessionType = "Redação"
)

// SessionStatus enumerates study session states.
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "Pendente"
	SessionStatusCompleted SessionStatus = "Concluído"
	SessionStatusPostponed SessionStatus = "Adiado"
)

// StudySession is one scheduled study unit on one calendar date.
type StudySession struct {
	ID               string        `db:"id" json:"id"`
	StudyPlanID      string        `db:"study_plan_id" json:"study_plan_id"`
	SubjectID        *string       `db:"subject_id" json:"subject_id,omitempty"`
	TopicID          *string       `db:"topic_id" json:"topic_id,omitempty"`
	SubjectName      string        `db:"subject_name" json:"subject_name"`
	TopicDescription string        `db:"topic_description" json:"topic_description"`
	SessionDate      time.Time     `db:"session_date" json:"session_date"`
	SessionType      SessionType   `db:"session_type" json:"session_type"`
	Status           SessionStatus `db:"status" json:"status"`
	DurationMinutes  int           `db:"duration_minutes" json:"duration_minutes"`
	QuestionsSolved  *int          `db:"questions_solved" json:"questions_solved,omitempty"`
	TimeStudiedSecs  *int          `db:"time_studied_seconds" json:"time_studied_seconds,omitempty"`
	CompletedAt      *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// SessionFilter captures query filters for listing sessions.
type SessionFilter struct {
	Status   SessionStatus
	Type     SessionType
	FromDate *time.Time
	ToDate   *time.Time
	Page     int
	PageSize int
}
