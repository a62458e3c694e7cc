package model

// AppState enumerates the lifecycle states of the application.
type AppState string

const (
	StateHome    AppState = "HOME"
	StateLoading AppState = "LOADING"
	StateActive  AppState = "ACTIVE"
	StateResults AppState = "RESULTS"
	StateInfo    AppState = "INFO"
)

// ExamConfig is the user-chosen configuration for a new exam.
type ExamConfig struct {
	Subject       Subject  `json:"subject"`
	QuestionCount int      `json:"question_count"`
	Language      Language `json:"language"`
}

// ExamSession is the mutable aggregate root of one exam attempt.
//
// Questions, StartTime, DurationSeconds, Subject and Language are fixed at
// creation. UserAnswers and FlaggedQuestions change on user action;
// SecondsRemaining is updated by the timer reconciler and is the resume point
// persisted across restarts.
type ExamSession struct {
	Questions        []Question
	UserAnswers      map[string]int
	FlaggedQuestions map[string]struct{}
	StartTime        int64 // epoch milliseconds
	DurationSeconds  int
	SecondsRemaining int
	Subject          Subject
	Language         Language
}

// QuestionByID returns the question with the given id, or false if the id is
// not part of this session.
func (s *ExamSession) QuestionByID(id string) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Flagged reports whether the question id is currently flagged.
func (s *ExamSession) Flagged(id string) bool {
	_, ok := s.FlaggedQuestions[id]
	return ok
}

// Clone returns a deep copy of the session. Snapshots handed to callers must
// not alias the canonical maps.
func (s *ExamSession) Clone() *ExamSession {
	if s == nil {
		return nil
	}
	out := &ExamSession{
		Questions:        make([]Question, len(s.Questions)),
		UserAnswers:      make(map[string]int, len(s.UserAnswers)),
		FlaggedQuestions: make(map[string]struct{}, len(s.FlaggedQuestions)),
		StartTime:        s.StartTime,
		DurationSeconds:  s.DurationSeconds,
		SecondsRemaining: s.SecondsRemaining,
		Subject:          s.Subject,
		Language:         s.Language,
	}
	copy(out.Questions, s.Questions)
	for id, idx := range s.UserAnswers {
		out.UserAnswers[id] = idx
	}
	for id := range s.FlaggedQuestions {
		out.FlaggedQuestions[id] = struct{}{}
	}
	return out
}

// DurationForCount maps a question count to the allotted exam time in
// seconds. Counts outside the standard presets get 90 seconds per question.
func DurationForCount(count int) int {
	switch count {
	case 5:
		return 5 * 60
	case 10:
		return 15 * 60
	case 20:
		return 30 * 60
	case 30:
		return 45 * 60
	default:
		return count * 90
	}
}
