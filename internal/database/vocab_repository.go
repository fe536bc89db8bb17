package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/lingobot/pkg/models"
)

// VocabRepository reads vocabulary from the content catalogue tables.
// The catalogue itself is owned elsewhere; this adapter only fetches
// (and, for the importer, inserts) entries.
type VocabRepository struct {
	db *DB
}

// NewVocabRepository creates a new repository instance.
func NewVocabRepository(db *DB) *VocabRepository {
	return &VocabRepository{db: db}
}

// ByLesson returns a lesson's word pool.
func (r *VocabRepository) ByLesson(ctx context.Context, lesson int) ([]models.VocabWord, error) {
	var words []models.VocabWord
	err := r.db.SelectContext(ctx, &words,
		`SELECT * FROM vocab_words WHERE lesson = $1 ORDER BY word ASC`, lesson)
	if err != nil {
		return nil, fmt.Errorf("failed to get vocabulary for lesson %d: %w", lesson, err)
	}
	return words, nil
}

// ByID returns one word, or nil when it no longer exists.
func (r *VocabRepository) ByID(ctx context.Context, id string) (*models.VocabWord, error) {
	var word models.VocabWord
	err := r.db.GetContext(ctx, &word, `SELECT * FROM vocab_words WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get word %s: %w", id, err)
	}
	return &word, nil
}

// UpToLesson returns the cumulative vocabulary of lessons 1..ceiling, in
// lesson order. Used for distractor word banks, which must never draw
// from lessons the owner hasn't reached.
func (r *VocabRepository) UpToLesson(ctx context.Context, ceiling int) ([]models.VocabWord, error) {
	var words []models.VocabWord
	err := r.db.SelectContext(ctx, &words,
		`SELECT * FROM vocab_words WHERE lesson >= 1 AND lesson <= $1 ORDER BY lesson ASC, word ASC`, ceiling)
	if err != nil {
		return nil, fmt.Errorf("failed to get vocabulary up to lesson %d: %w", ceiling, err)
	}
	return words, nil
}

// Upsert inserts a word or updates its meaning and metadata when the
// (word, lesson) pair already exists. Used by the importer.
func (r *VocabRepository) Upsert(ctx context.Context, word *models.VocabWord) (created bool, err error) {
	var existingID string
	err = r.db.QueryRowContext(ctx,
		`SELECT id FROM vocab_words WHERE word = $1 AND lesson = $2`,
		word.Word, word.Lesson,
	).Scan(&existingID)

	if err == nil {
		word.ID = existingID
		_, err = r.db.ExecContext(ctx, `
			UPDATE vocab_words SET meaning = $1, part_of_speech = $2, grammar = $3, frequency_tier = $4
			WHERE id = $5`,
			word.Meaning, word.PartOfSpeech, word.Grammar, word.FrequencyTier, word.ID)
		if err != nil {
			return false, fmt.Errorf("failed to update word %s: %w", word.Word, err)
		}
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("failed to look up word %s: %w", word.Word, err)
	}

	if word.ID == "" {
		word.ID = uuid.NewString()
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO vocab_words (id, word, meaning, lesson, part_of_speech, grammar, frequency_tier)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		word.ID, word.Word, word.Meaning, word.Lesson, word.PartOfSpeech, word.Grammar, word.FrequencyTier)
	if err != nil {
		return false, fmt.Errorf("failed to insert word %s: %w", word.Word, err)
	}
	return true, nil
}
