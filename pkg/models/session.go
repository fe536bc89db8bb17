package models

import "time"

// SessionStats accumulates grading results over one practice session.
type SessionStats struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
	Skipped   int `json:"skipped"`
	Total     int `json:"total"`
}

// SessionSnapshot is the locally cached progress of an interrupted
// session, used to offer a resume on the next start. Snapshots older
// than 24 hours are discarded.
type SessionSnapshot struct {
	SessionID     string       `json:"session_id"`
	CurrentIndex  int          `json:"current_index"`
	UserAnswer    string       `json:"user_answer"`
	ShowAnswer    bool         `json:"show_answer"`
	QuestionCount int          `json:"question_count"`
	Stats         SessionStats `json:"session_stats"`
	Timestamp     time.Time    `json:"timestamp"`
}
