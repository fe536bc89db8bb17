package spaced_repetition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lingobot/pkg/models"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newItem(state models.ReviewState, streak, interval int) *models.ReviewItem {
	return &models.ReviewItem{
		ID:           1,
		OwnerID:      "owner-1",
		Lesson:       1,
		QuestionID:   "D01-Q01",
		State:        state,
		Streak:       streak,
		IntervalDays: interval,
		DueAt:        testNow,
	}
}

func TestIncorrectResetsStreakAndCountsLapse(t *testing.T) {
	p := NewPolicy()

	for _, state := range []models.ReviewState{models.StateLearning, models.StateReview} {
		item := newItem(state, 3, 20)
		item.Lapses = 2

		u := p.Next(item, models.ResultIncorrect, testNow)

		assert.Equal(t, models.StateLearning, u.State)
		assert.Equal(t, 0, u.Streak)
		assert.Equal(t, 3, u.Lapses)
		assert.Equal(t, 0, u.IntervalDays)
		assert.Equal(t, testNow.AddDate(0, 0, 1), u.DueAt)
		assert.Equal(t, models.ResultIncorrect, u.LastResult)
	}
}

func TestSkipDefersOnly(t *testing.T) {
	p := NewPolicy()
	item := newItem(models.StateReview, 3, 20)
	item.Lapses = 1

	u := p.Next(item, models.ResultSkipped, testNow)

	assert.Equal(t, models.StateReview, u.State)
	assert.Equal(t, 3, u.Streak)
	assert.Equal(t, 1, u.Lapses)
	assert.Equal(t, 20, u.IntervalDays)
	assert.Equal(t, testNow.AddDate(0, 0, 1), u.DueAt)
	assert.Nil(t, u.LastReviewedAt, "a skip is not a review")
}

func TestLearningLadder(t *testing.T) {
	p := NewPolicy()

	tests := []struct {
		streak       int
		wantInterval int
		wantState    models.ReviewState
	}{
		{streak: 0, wantInterval: 1, wantState: models.StateLearning},
		{streak: 1, wantInterval: 3, wantState: models.StateLearning},
		{streak: 2, wantInterval: 7, wantState: models.StateReview},
		{streak: 5, wantInterval: 7, wantState: models.StateReview},
	}
	for _, tt := range tests {
		item := newItem(models.StateLearning, tt.streak, 0)
		u := p.Next(item, models.ResultCorrect, testNow)

		assert.Equal(t, tt.streak+1, u.Streak)
		assert.Equal(t, tt.wantInterval, u.IntervalDays, "streak %d", tt.streak)
		assert.Equal(t, tt.wantState, u.State, "streak %d", tt.streak)
		assert.Equal(t, testNow.AddDate(0, 0, tt.wantInterval), u.DueAt)
	}
}

func TestReviewGrowthNeverShrinksAndIsCapped(t *testing.T) {
	p := NewPolicy()

	interval := 7
	for i := 0; i < 20; i++ {
		item := newItem(models.StateReview, 0, interval) // streak 0 avoids retirement
		u := p.Next(item, models.ResultCorrect, testNow)

		require.GreaterOrEqual(t, u.IntervalDays, interval)
		require.LessOrEqual(t, u.IntervalDays, p.MaxInterval)
		interval = u.IntervalDays
	}
	assert.Equal(t, p.MaxInterval, interval)
}

func TestRetirement(t *testing.T) {
	p := NewPolicy()
	item := newItem(models.StateReview, 3, 20)

	u := p.Next(item, models.ResultCorrect, testNow)

	assert.Equal(t, 4, u.Streak)
	assert.Equal(t, 30, u.IntervalDays)
	assert.Equal(t, models.StateRetired, u.State)
}

func TestRetiredIsTerminal(t *testing.T) {
	p := NewPolicy()

	for _, result := range []models.ReviewResult{models.ResultCorrect, models.ResultIncorrect, models.ResultSkipped} {
		item := newItem(models.StateRetired, 5, 40)
		due := item.DueAt

		u := p.Next(item, result, testNow)

		assert.Equal(t, models.StateRetired, u.State, "result %s", result)
		assert.Equal(t, due, u.DueAt, "result %s", result)
		assert.Equal(t, 5, u.Streak)
		assert.Equal(t, 40, u.IntervalDays)
	}
}

func TestNoRetirementBelowThresholds(t *testing.T) {
	p := NewPolicy()

	// Long interval but short streak.
	item := newItem(models.StateReview, 1, 100)
	u := p.Next(item, models.ResultCorrect, testNow)
	assert.Equal(t, models.StateReview, u.State)

	// Long streak but short interval: 10 * 1.5 = 15 < 30.
	item = newItem(models.StateReview, 7, 10)
	u = p.Next(item, models.ResultCorrect, testNow)
	assert.Equal(t, models.StateReview, u.State)
}

func TestNegativeCountersAreClamped(t *testing.T) {
	p := NewPolicy()
	item := newItem(models.StateLearning, -3, -5)
	item.Lapses = -1

	u := p.Next(item, models.ResultCorrect, testNow)

	assert.Equal(t, 1, u.Streak)
	assert.Equal(t, 0, u.Lapses)
	assert.Equal(t, 1, u.IntervalDays)
}

func TestSuspendToggle(t *testing.T) {
	p := NewPolicy()

	item := newItem(models.StateReview, 4, 30)
	u := p.SetSuspended(item, true, testNow)
	assert.Equal(t, models.StateSuspended, u.State)
	assert.Equal(t, item.DueAt, u.DueAt)

	// Un-suspending always lands in learning, even from review.
	u.Apply(item)
	u = p.SetSuspended(item, false, testNow)
	assert.Equal(t, models.StateLearning, u.State)
	assert.Equal(t, testNow, u.DueAt)
}

func TestApplySetsLastReviewFields(t *testing.T) {
	p := NewPolicy()
	item := newItem(models.StateLearning, 0, 0)

	u := p.Next(item, models.ResultCorrect, testNow)
	u.Apply(item)

	require.NotNil(t, item.LastReviewedAt)
	assert.Equal(t, testNow, *item.LastReviewedAt)
	assert.Equal(t, models.ResultCorrect, item.LastResult)
	assert.Equal(t, 1, item.Streak)
}
