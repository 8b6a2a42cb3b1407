package dto

// CreateSubjectRequest payload for adding a subject with its topic list.
type CreateSubjectRequest struct {
	SubjectName    string   `json:"subjectName" validate:"required,min=1,max=200"`
	PriorityWeight int      `json:"priorityWeight" validate:"required,min=1,max=5"`
	TopicList      []string `json:"topicList" validate:"omitempty,dive,min=1"`
}

// UpdateSubjectRequest payload for partial subject updates.
type UpdateSubjectRequest struct {
	SubjectName    *string `json:"subjectName" validate:"omitempty,min=1,max=200"`
	PriorityWeight *int    `json:"priorityWeight" validate:"omitempty,min=1,max=5"`
}

// CreateTopicRequest payload for adding a topic to a subject.
type CreateTopicRequest struct {
	Description    string  `json:"description" validate:"required,min=1"`
	PriorityWeight int     `json:"priorityWeight" validate:"omitempty,min=1,max=5"`
	EstimatedHours float64 `json:"estimatedHours" validate:"omitempty,gt=0"`
}

// UpdateTopicRequest payload for partial topic updates.
type UpdateTopicRequest struct {
	Description    *string  `json:"description" validate:"omitempty,min=1"`
	PriorityWeight *int     `json:"priorityWeight" validate:"omitempty,min=1,max=5"`
	EstimatedHours *float64 `json:"estimatedHours" validate:"omitempty,gt=0"`
	Status         *string  `json:"status" validate:"omitempty,oneof=Pendente Concluído"`
}

// BatchUpdateTopicsRequest updates several topics in one call.
type BatchUpdateTopicsRequest struct {
	Topics []BatchTopicUpdate `json:"topics" validate:"required,min=1,dive"`
}

// BatchTopicUpdate is one entry of a batch topic update.
type BatchTopicUpdate struct {
	ID             string   `json:"id" validate:"required"`
	Status         *string  `json:"status" validate:"omitempty,oneof=Pendente Concluído"`
	PriorityWeight *int     `json:"priorityWeight" validate:"omitempty,min=1,max=5"`
	Description    *string  `json:"description" validate:"omitempty,min=1"`
	EstimatedHours *float64 `json:"estimatedHours" validate:"omitempty,gt=0"`
}
