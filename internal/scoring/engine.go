package scoring

import (
	"math"

	"github.com/aeroprep/examd/internal/model"
)

// PassThreshold is the minimum percentage required to pass an exam.
const PassThreshold = 75

// DefaultTopic labels questions the generator left without a sub-topic.
const DefaultTopic = "General Knowledge"

// TopicStats holds the per-topic correct/total tally.
type TopicStats struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Result is the outcome of scoring a completed session.
type Result struct {
	Correct        int                   `json:"correct"`
	Total          int                   `json:"total"`
	Percentage     int                   `json:"percentage"`
	Passed         bool                  `json:"passed"`
	TopicBreakdown map[string]TopicStats `json:"topic_breakdown"`
}

// Score grades a session. It is a pure function: no side effects, identical
// output for identical input.
//
// Percentage is rounded half away from zero (math.Round), so 74.5 rounds up
// to 75 and passes. Unanswered questions count against the score but still
// count toward their topic's total.
func Score(session *model.ExamSession) Result {
	res := Result{
		Total:          len(session.Questions),
		TopicBreakdown: make(map[string]TopicStats),
	}

	for _, q := range session.Questions {
		topic := q.Topic
		if topic == "" {
			topic = DefaultTopic
		}
		stats := res.TopicBreakdown[topic]
		stats.Total++

		if idx, answered := session.UserAnswers[q.ID]; answered && idx == q.CorrectOptionIndex {
			res.Correct++
			stats.Correct++
		}
		res.TopicBreakdown[topic] = stats
	}

	if res.Total > 0 {
		res.Percentage = int(math.Round(float64(res.Correct) / float64(res.Total) * 100))
	}
	res.Passed = res.Percentage >= PassThreshold

	return res
}
