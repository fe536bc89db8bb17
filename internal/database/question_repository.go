package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/lingobot/pkg/models"
)

// QuestionRepository reads pre-authored static questions from the content
// catalogue tables.
type QuestionRepository struct {
	db *DB
}

// NewQuestionRepository creates a new repository instance.
func NewQuestionRepository(db *DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// questionRow is the table shape; list-valued fields are stored as JSON.
type questionRow struct {
	ID          string `db:"id"`
	Lesson      int    `db:"lesson"`
	Type        string `db:"type"`
	Prompt      string `db:"prompt"`
	Options     string `db:"options"`
	Answer      string `db:"answer"`
	AnswerPairs string `db:"answer_pairs"`
	Explanation string `db:"explanation"`
}

func (row *questionRow) toModel() (models.Question, error) {
	q := models.Question{
		ID:          row.ID,
		Lesson:      row.Lesson,
		Type:        models.QuestionType(row.Type),
		Prompt:      row.Prompt,
		Answer:      row.Answer,
		Explanation: row.Explanation,
	}
	if row.Options != "" {
		if err := json.Unmarshal([]byte(row.Options), &q.Options); err != nil {
			return q, fmt.Errorf("malformed options for question %s: %w", row.ID, err)
		}
	}
	if row.AnswerPairs != "" {
		if err := json.Unmarshal([]byte(row.AnswerPairs), &q.AnswerPairs); err != nil {
			return q, fmt.Errorf("malformed answer pairs for question %s: %w", row.ID, err)
		}
	}
	return q, nil
}

// StaticByLesson returns the lesson's authored questions in catalogue order.
func (r *QuestionRepository) StaticByLesson(ctx context.Context, lesson int) ([]models.Question, error) {
	var rows []questionRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM static_questions WHERE lesson = $1 ORDER BY id ASC`, lesson)
	if err != nil {
		return nil, fmt.Errorf("failed to get static questions for lesson %d: %w", lesson, err)
	}

	questions := make([]models.Question, 0, len(rows))
	for i := range rows {
		q, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// ByID returns one static question, or nil when it no longer exists. A
// stale review item may reference a question that was removed from the
// catalogue; callers treat nil as skip-and-continue.
func (r *QuestionRepository) ByID(ctx context.Context, id string) (*models.Question, error) {
	var row questionRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM static_questions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question %s: %w", id, err)
	}
	q, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &q, nil
}
