package model

// ExamHistoryItem is an immutable snapshot of one completed exam. Items are
// created once at submission and prepended to the history list.
type ExamHistoryItem struct {
	ID             string  `json:"id"`
	Date           int64   `json:"date"` // epoch milliseconds
	Subject        Subject `json:"subject"`
	Score          int     `json:"score"` // 0–100
	TotalQuestions int     `json:"total_questions"`
	Passed         bool    `json:"passed"`
}
