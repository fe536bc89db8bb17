package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/example/lingobot/internal/spaced_repetition"
	"github.com/example/lingobot/pkg/models"
)

// transientRetryDelay is how long to wait before retrying a read that was
// spuriously canceled by the client library.
const transientRetryDelay = 200 * time.Millisecond

// ReviewRepository is the store adapter for review items and their audit
// events. It applies the scheduling policy on writes so callers never
// mutate item state themselves.
type ReviewRepository struct {
	db     *DB
	policy *spaced_repetition.Policy
	now    func() time.Time

	// selectFn is the raw read path wrapped by selectWithRetry.
	selectFn func(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// NewReviewRepository creates a repository with the default policy.
func NewReviewRepository(db *DB) *ReviewRepository {
	return &ReviewRepository{
		db:       db,
		policy:   spaced_repetition.NewPolicy(),
		now:      func() time.Time { return time.Now().UTC() },
		selectFn: db.SelectContext,
	}
}

// DueItems returns items due now for the owner, most overdue first.
// Retired items never come back.
func (r *ReviewRepository) DueItems(ctx context.Context, ownerID string, limit int) ([]models.ReviewItem, error) {
	query := `
		SELECT * FROM review_items
		WHERE owner_id = $1 AND due_at <= $2 AND state != 'retired'
		ORDER BY due_at ASC
		LIMIT $3
	`
	var items []models.ReviewItem
	if err := r.selectWithRetry(ctx, &items, query, ownerID, r.now(), limit); err != nil {
		return nil, fmt.Errorf("failed to get due items: %w", err)
	}
	return items, nil
}

// UpcomingItems returns items scheduled in the future, soonest first.
func (r *ReviewRepository) UpcomingItems(ctx context.Context, ownerID string, limit int) ([]models.ReviewItem, error) {
	query := `
		SELECT * FROM review_items
		WHERE owner_id = $1 AND due_at > $2 AND state NOT IN ('retired', 'suspended')
		ORDER BY due_at ASC
		LIMIT $3
	`
	var items []models.ReviewItem
	if err := r.selectWithRetry(ctx, &items, query, ownerID, r.now(), limit); err != nil {
		return nil, fmt.Errorf("failed to get upcoming items: %w", err)
	}
	return items, nil
}

// SuspendedItems returns the owner's suspended items.
func (r *ReviewRepository) SuspendedItems(ctx context.Context, ownerID string, limit int) ([]models.ReviewItem, error) {
	query := `
		SELECT * FROM review_items
		WHERE owner_id = $1 AND state = 'suspended'
		ORDER BY due_at ASC
		LIMIT $2
	`
	var items []models.ReviewItem
	if err := r.selectWithRetry(ctx, &items, query, ownerID, limit); err != nil {
		return nil, fmt.Errorf("failed to get suspended items: %w", err)
	}
	return items, nil
}

// DueOwnerCounts returns how many items are due per owner, for reminder
// delivery. Suspended items don't count toward a reminder.
func (r *ReviewRepository) DueOwnerCounts(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT owner_id, COUNT(*) AS due FROM review_items
		WHERE due_at <= $1 AND state NOT IN ('retired', 'suspended')
		GROUP BY owner_id
	`
	rows := []struct {
		OwnerID string `db:"owner_id"`
		Due     int    `db:"due"`
	}{}
	if err := r.selectWithRetry(ctx, &rows, query, r.now()); err != nil {
		return nil, fmt.Errorf("failed to count due items: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.OwnerID] = row.Due
	}
	return counts, nil
}

// RecordResult applies the scheduling policy to the item, persists the
// new state and appends an audit event. The event append is best-effort:
// a failure there is logged but never fails the review.
func (r *ReviewRepository) RecordResult(ctx context.Context, item *models.ReviewItem, result models.ReviewResult, answer string) error {
	now := r.now()
	update := r.policy.Next(item, result, now)
	update.Apply(item)

	if err := r.persist(ctx, item); err != nil {
		return fmt.Errorf("failed to record result: %w", err)
	}

	event := &models.ReviewEvent{
		OwnerID:      item.OwnerID,
		Lesson:       item.Lesson,
		QuestionID:   item.QuestionID,
		ReviewItemID: item.ID,
		Result:       result,
		Answer:       answer,
		OccurredAt:   now,
	}
	if err := r.AppendEvent(ctx, event); err != nil {
		log.Printf("Failed to append review event for item %d: %v", item.ID, err)
	}
	return nil
}

// SetSuspended suspends or un-suspends the item and persists the change.
func (r *ReviewRepository) SetSuspended(ctx context.Context, item *models.ReviewItem, suspended bool) error {
	update := r.policy.SetSuspended(item, suspended, r.now())
	update.Apply(item)
	if err := r.persist(ctx, item); err != nil {
		return fmt.Errorf("failed to update suspension: %w", err)
	}
	return nil
}

// RecordMiss upserts the review item for a missed question or word. The
// first miss creates the item in learning state due tomorrow; later
// misses reset the streak and count another lapse. Vocabulary misses are
// keyed by word, so different generated questions over the same word
// land on one item.
func (r *ReviewRepository) RecordMiss(ctx context.Context, ownerID string, lesson int, questionID, vocabWordID string, questionType models.QuestionType) (*models.ReviewItem, error) {
	now := r.now()

	existing, err := r.find(ctx, ownerID, lesson, questionID, vocabWordID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		update := r.policy.Next(existing, models.ResultIncorrect, now)
		update.Apply(existing)
		if err := r.persist(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to update missed item: %w", err)
		}
		return existing, nil
	}

	item := &models.ReviewItem{
		OwnerID:      ownerID,
		Lesson:       lesson,
		QuestionID:   questionID,
		VocabWordID:  vocabWordID,
		QuestionType: questionType,
		State:        models.StateLearning,
		DueAt:        now.AddDate(0, 0, 1),
		IntervalDays: 0,
		Streak:       0,
		Lapses:       1,
		LastResult:   models.ResultIncorrect,
	}
	if item.VocabWordID != "" && item.QuestionID == "" {
		// Vocabulary items carry only a placeholder question id.
		item.QuestionID = "vocab:" + item.VocabWordID
	}

	if err := r.insert(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create review item: %w", err)
	}
	return item, nil
}

// AppendEvent appends one immutable audit record.
func (r *ReviewRepository) AppendEvent(ctx context.Context, event *models.ReviewEvent) error {
	query := `
		INSERT INTO review_events (owner_id, lesson, question_id, review_item_id, result, answer, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.OwnerID,
		event.Lesson,
		event.QuestionID,
		event.ReviewItemID,
		event.Result,
		event.Answer,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append review event: %w", err)
	}
	return nil
}

// find looks an item up by its natural key: the word for vocabulary
// items, the question id otherwise.
func (r *ReviewRepository) find(ctx context.Context, ownerID string, lesson int, questionID, vocabWordID string) (*models.ReviewItem, error) {
	var query string
	var key string
	if vocabWordID != "" {
		query = `SELECT * FROM review_items WHERE owner_id = $1 AND lesson = $2 AND vocab_word_id = $3`
		key = vocabWordID
	} else {
		query = `SELECT * FROM review_items WHERE owner_id = $1 AND lesson = $2 AND question_id = $3 AND vocab_word_id = ''`
		key = questionID
	}

	var item models.ReviewItem
	err := r.db.GetContext(ctx, &item, query, ownerID, lesson, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find review item: %w", err)
	}
	return &item, nil
}

func (r *ReviewRepository) persist(ctx context.Context, item *models.ReviewItem) error {
	query := `
		UPDATE review_items SET
			state = $1,
			due_at = $2,
			last_reviewed_at = $3,
			interval_days = $4,
			streak = $5,
			lapses = $6,
			last_result = $7,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $8
	`
	result, err := r.db.ExecContext(ctx, query,
		item.State,
		item.DueAt,
		item.LastReviewedAt,
		item.IntervalDays,
		item.Streak,
		item.Lapses,
		item.LastResult,
		item.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("review item %d not found", item.ID)
	}
	return nil
}

func (r *ReviewRepository) insert(ctx context.Context, item *models.ReviewItem) error {
	query := `
		INSERT INTO review_items (
			owner_id, lesson, question_id, vocab_word_id, question_type,
			state, due_at, interval_days, streak, lapses, last_result
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	if r.db.Type == "postgres" {
		return r.db.QueryRowContext(ctx, query+" RETURNING id",
			item.OwnerID, item.Lesson, item.QuestionID, item.VocabWordID, item.QuestionType,
			item.State, item.DueAt, item.IntervalDays, item.Streak, item.Lapses, item.LastResult,
		).Scan(&item.ID)
	}

	// SQLite path: no RETURNING, read the rowid back instead.
	result, err := r.db.ExecContext(ctx, query,
		item.OwnerID, item.Lesson, item.QuestionID, item.VocabWordID, item.QuestionType,
		item.State, item.DueAt, item.IntervalDays, item.Streak, item.Lapses, item.LastResult,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	item.ID = id
	return nil
}

// selectWithRetry runs the query, retrying exactly once after a short
// delay when the failure looks like the spurious cancellation the client
// library produces under rapid overlapping reads. Anything else
// propagates unchanged.
func (r *ReviewRepository) selectWithRetry(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	err := r.selectFn(ctx, dest, query, args...)
	if err == nil || !isTransientCancel(err) || ctx.Err() != nil {
		return err
	}
	log.Printf("Transient cancellation on read, retrying once: %v", err)
	time.Sleep(transientRetryDelay)
	return r.selectFn(ctx, dest, query, args...)
}

// isTransientCancel reports whether the error is the overlapping-request
// cancellation class rather than a real failure.
func isTransientCancel(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	return strings.Contains(err.Error(), "operation was canceled")
}
