package dto

import "github.com/editaliza/editaliza-api/internal/models"

// SessionQuery mirrors supported session listing filters.
type SessionQuery struct {
	From     string
	To       string
	Status   models.SessionStatus
	Type     models.SessionType
	Page     int
	PageSize int
}

// CompleteSessionRequest marks a session as done with optional study metrics.
type CompleteSessionRequest struct {
	QuestionsSolved    *int `json:"questionsSolved" validate:"omitempty,min=0"`
	TimeStudiedSeconds *int `json:"timeStudiedSeconds" validate:"omitempty,min=0"`
}

// PostponeSessionRequest moves a session forward by a number of days.
type PostponeSessionRequest struct {
	Days int `json:"days" validate:"omitempty,min=1,max=30"`
}

// ReinforceSessionResponse describes the extra session created for a topic.
type ReinforceSessionResponse struct {
	Session models.StudySession `json:"session"`
}
