package models

import "time"

// ReviewEvent is an immutable audit record of one submitted or skipped
// attempt. Events are append-only; they are never updated or deleted.
type ReviewEvent struct {
	ID           int64        `json:"id" db:"id"`
	OwnerID      string       `json:"owner_id" db:"owner_id"`
	Lesson       int          `json:"lesson" db:"lesson"`
	QuestionID   string       `json:"question_id" db:"question_id"`
	ReviewItemID int64        `json:"review_item_id" db:"review_item_id"`
	Result       ReviewResult `json:"result" db:"result"`
	Answer       string       `json:"answer" db:"answer"`
	OccurredAt   time.Time    `json:"occurred_at" db:"occurred_at"`
}
