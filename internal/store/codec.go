package store

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/aeroprep/examd/internal/model"
)

// ErrCorrupt marks a persisted value that failed structural validation.
// Callers treat it as absence and remove the stored copy.
var ErrCorrupt = errors.New("store: persisted session failed validation")

// persistedSession is the wire shape of an ExamSession. The in-memory flag
// set becomes an ordered id sequence at this boundary; only membership is
// guaranteed to survive a round trip, not order.
type persistedSession struct {
	Questions        []model.Question `json:"questions"`
	UserAnswers      map[string]int   `json:"user_answers"`
	FlaggedQuestions json.RawMessage  `json:"flagged_questions"`
	StartTime        int64            `json:"start_time"`
	DurationSeconds  int              `json:"duration_seconds"`
	SecondsRemaining int              `json:"seconds_remaining"`
	Subject          model.Subject    `json:"subject"`
	Language         model.Language   `json:"language"`
}

// encodeSession serializes a session for the active-session key.
func encodeSession(s *model.ExamSession) ([]byte, error) {
	flags := make([]string, 0, len(s.FlaggedQuestions))
	for id := range s.FlaggedQuestions {
		flags = append(flags, id)
	}
	sort.Strings(flags)

	raw, err := json.Marshal(flags)
	if err != nil {
		return nil, err
	}

	return json.Marshal(persistedSession{
		Questions:        s.Questions,
		UserAnswers:      s.UserAnswers,
		FlaggedQuestions: raw,
		StartTime:        s.StartTime,
		DurationSeconds:  s.DurationSeconds,
		SecondsRemaining: s.SecondsRemaining,
		Subject:          s.Subject,
		Language:         s.Language,
	})
}

// decodeSession deserializes and validates a persisted session.
//
// A missing or malformed flagged_questions field degrades to an empty set;
// anything structurally unsound beyond that (no questions, broken question
// records, non-positive duration) is ErrCorrupt. Answers and flags referring
// to unknown question ids are pruned, and the remaining time is clamped into
// [0, duration] so a tampered value can never extend an exam.
func decodeSession(data []byte) (*model.ExamSession, error) {
	var p persistedSession
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, ErrCorrupt
	}

	if len(p.Questions) == 0 || p.DurationSeconds <= 0 {
		return nil, ErrCorrupt
	}
	valid := make(map[string]int, len(p.Questions))
	for _, q := range p.Questions {
		if !q.Valid() {
			return nil, ErrCorrupt
		}
		valid[q.ID] = len(q.Options)
	}

	answers := make(map[string]int, len(p.UserAnswers))
	for id, idx := range p.UserAnswers {
		if optCount, ok := valid[id]; ok && idx >= 0 && idx < optCount {
			answers[id] = idx
		}
	}

	flagged := make(map[string]struct{})
	var flagIDs []string
	if len(p.FlaggedQuestions) > 0 && json.Unmarshal(p.FlaggedQuestions, &flagIDs) == nil {
		for _, id := range flagIDs {
			if _, ok := valid[id]; ok {
				flagged[id] = struct{}{}
			}
		}
	}

	remaining := p.SecondsRemaining
	if remaining < 0 {
		remaining = 0
	}
	if remaining > p.DurationSeconds {
		remaining = p.DurationSeconds
	}

	return &model.ExamSession{
		Questions:        p.Questions,
		UserAnswers:      answers,
		FlaggedQuestions: flagged,
		StartTime:        p.StartTime,
		DurationSeconds:  p.DurationSeconds,
		SecondsRemaining: remaining,
		Subject:          p.Subject,
		Language:         p.Language,
	}, nil
}
