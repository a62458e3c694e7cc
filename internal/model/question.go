package model

// OptionsPerQuestion is the fixed number of answer options per question.
const OptionsPerQuestion = 4

// Question represents a single multiple-choice exam question. Questions come
// from the external generator and are never mutated afterwards.
type Question struct {
	ID                 string   `json:"id"`
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correct_option_index"`
	Explanation        string   `json:"explanation,omitempty"`
	Topic              string   `json:"topic,omitempty"`
}

// Valid reports whether the question is structurally usable: four options and
// a correct index pointing at one of them.
func (q Question) Valid() bool {
	return q.ID != "" &&
		len(q.Options) == OptionsPerQuestion &&
		q.CorrectOptionIndex >= 0 &&
		q.CorrectOptionIndex < len(q.Options)
}
