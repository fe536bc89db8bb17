package models

import "time"

// ReviewState is the lifecycle state of a review item.
type ReviewState string

const (
	StateLearning  ReviewState = "learning"
	StateReview    ReviewState = "review"
	StateSuspended ReviewState = "suspended"
	StateRetired   ReviewState = "retired"
)

// ReviewResult is the outcome of a single review attempt.
type ReviewResult string

const (
	ResultCorrect   ReviewResult = "correct"
	ResultIncorrect ReviewResult = "incorrect"
	ResultSkipped   ReviewResult = "skipped"
)

// ReviewItem is one scheduled fact for one owner. Regular items point at a
// stable static question (e.g. "D01-Q02"); vocabulary items point at a word
// and carry only a placeholder question id.
type ReviewItem struct {
	ID             int64        `json:"id" db:"id"`
	OwnerID        string       `json:"owner_id" db:"owner_id"`
	Lesson         int          `json:"lesson" db:"lesson"`
	QuestionID     string       `json:"question_id" db:"question_id"`
	VocabWordID    string       `json:"vocab_word_id" db:"vocab_word_id"`
	QuestionType   QuestionType `json:"question_type" db:"question_type"`
	State          ReviewState  `json:"state" db:"state"`
	DueAt          time.Time    `json:"due_at" db:"due_at"`
	LastReviewedAt *time.Time   `json:"last_reviewed_at" db:"last_reviewed_at"`
	IntervalDays   int          `json:"interval_days" db:"interval_days"`
	Streak         int          `json:"streak" db:"streak"`   // consecutive correct answers
	Lapses         int          `json:"lapses" db:"lapses"`   // cumulative incorrect answers
	LastResult     ReviewResult `json:"last_result" db:"last_result"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// IsVocab reports whether the item tracks a vocabulary word rather than a
// static question.
func (i *ReviewItem) IsVocab() bool {
	return i.VocabWordID != ""
}
