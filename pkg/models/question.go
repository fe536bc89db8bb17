package models

// QuestionType discriminates the question variants. Every consumer must
// switch on it exhaustively rather than probing for populated fields.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	Matching       QuestionType = "matching"
	Translation    QuestionType = "translation"
	Recitation     QuestionType = "recitation"
)

// Question is one quiz question, either authored statically in the content
// catalogue or produced by the synthesizer. Generated questions are
// ephemeral; they are consumed by a session or a queued quiz and never
// persisted.
//
// Field usage by type:
//   - multiple_choice: Options holds the choices, Answer the correct one
//   - matching: Options holds the shuffled meanings, AnswerPairs the
//     ordered "word - meaning" pairs
//   - translation, recitation: Answer only
type Question struct {
	ID          string       `json:"id" db:"id"`
	Index       int          `json:"index" db:"idx"`
	Lesson      int          `json:"lesson" db:"lesson"`
	Type        QuestionType `json:"type" db:"type"`
	Prompt      string       `json:"prompt" db:"prompt"`
	Options     []string     `json:"options,omitempty"`
	Answer      string       `json:"answer" db:"answer"`
	AnswerPairs []string     `json:"answer_pairs,omitempty"`
	Explanation string       `json:"explanation" db:"explanation"`
	WordIDs     []string     `json:"word_ids,omitempty"` // vocabulary words this question exercises
}

// IsVocab reports whether the question was generated from vocabulary
// rather than authored statically.
func (q *Question) IsVocab() bool {
	return len(q.WordIDs) > 0
}
