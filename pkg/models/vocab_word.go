package models

import "time"

// VocabWord is a vocabulary entry owned by the content catalogue. The
// engine treats it as immutable content.
type VocabWord struct {
	ID            string    `json:"id" db:"id"`
	Word          string    `json:"word" db:"word"`
	Meaning       string    `json:"meaning" db:"meaning"`
	Lesson        int       `json:"lesson" db:"lesson"`
	PartOfSpeech  string    `json:"part_of_speech" db:"part_of_speech"`
	Grammar       string    `json:"grammar" db:"grammar"` // case/conjugation notes, free-form
	FrequencyTier int       `json:"frequency_tier" db:"frequency_tier"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
