package dto

// CreatePlanRequest payload for creating a study plan.
type CreatePlanRequest struct {
	PlanName               string          `json:"planName" validate:"required,min=1,max=200"`
	ExamDate               string          `json:"examDate" validate:"required,datetime=2006-01-02"`
	StudyHoursPerDay       map[int]float64 `json:"studyHoursPerDay" validate:"required"`
	SessionDurationMinutes int             `json:"sessionDurationMinutes" validate:"omitempty,min=10,max=240"`
	HasEssay               bool            `json:"hasEssay"`
	RetaFinalMode          bool            `json:"retaFinalMode"`
}

// UpdatePlanRequest payload for partial plan updates.
type UpdatePlanRequest struct {
	PlanName               *string          `json:"planName" validate:"omitempty,min=1,max=200"`
	ExamDate               *string          `json:"examDate" validate:"omitempty,datetime=2006-01-02"`
	StudyHoursPerDay       *map[int]float64 `json:"studyHoursPerDay"`
	SessionDurationMinutes *int             `json:"sessionDurationMinutes" validate:"omitempty,min=10,max=240"`
	HasEssay               *bool            `json:"hasEssay"`
	RetaFinalMode          *bool            `json:"retaFinalMode"`
}

// PlanQuery mirrors supported listing filters.
type PlanQuery struct {
	Page     int
	PageSize int
}
