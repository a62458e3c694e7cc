package model

// StartExamRequest is the payload for starting a new exam.
type StartExamRequest struct {
	Subject       string `json:"subject" binding:"required"`
	QuestionCount int    `json:"question_count" binding:"required,min=1,max=100"`
	Language      string `json:"language" binding:"required,oneof=en de fr"`
}

// AnswerRequest is the payload for answering a question.
type AnswerRequest struct {
	QuestionID  string `json:"question_id" binding:"required"`
	OptionIndex *int   `json:"option_index" binding:"required,min=0,max=3"`
}

// FlagRequest is the payload for toggling a question flag.
type FlagRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
}
