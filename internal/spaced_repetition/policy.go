package spaced_repetition

import (
	"math"
	"time"

	"github.com/example/lingobot/pkg/models"
)

// Policy implements the review scheduling algorithm. It is deliberately
// simpler than full SM-2: fixed early intervals while learning, a 1.5x
// growth factor once an item graduates to review, and retirement once an
// item is both stable and long-interval.
type Policy struct {
	// Intervals in days for the first correct answers while learning.
	// Reaching the last entry promotes the item to review state.
	LearningIntervals []int
	// Multiplier applied to the interval on each correct review answer
	ReviewGrowth float64
	// Maximum interval in days
	MaxInterval int
	// Minimum streak required for retirement
	RetireStreak int
	// Minimum interval in days required for retirement
	RetireInterval int
}

// NewPolicy returns a policy with the default settings.
func NewPolicy() *Policy {
	return &Policy{
		LearningIntervals: []int{1, 3, 7},
		ReviewGrowth:      1.5,
		MaxInterval:       365,
		RetireStreak:      4,
		RetireInterval:    30,
	}
}

// Update is the partial state produced by a transition. LastReviewedAt is
// nil when the attempt does not count as a review (skips and suspension).
type Update struct {
	State          models.ReviewState
	Streak         int
	Lapses         int
	IntervalDays   int
	DueAt          time.Time
	LastReviewedAt *time.Time
	LastResult     models.ReviewResult
}

// Apply copies the update onto the item.
func (u Update) Apply(item *models.ReviewItem) {
	item.State = u.State
	item.Streak = u.Streak
	item.Lapses = u.Lapses
	item.IntervalDays = u.IntervalDays
	item.DueAt = u.DueAt
	if u.LastReviewedAt != nil {
		item.LastReviewedAt = u.LastReviewedAt
	}
	if u.LastResult != "" {
		item.LastResult = u.LastResult
	}
}

// Next computes the item's next scheduling state for a review result. It
// never errors: malformed counters are clamped to zero instead. All due
// dates are computed in UTC as now + interval.
func (p *Policy) Next(item *models.ReviewItem, result models.ReviewResult, now time.Time) Update {
	now = now.UTC()
	streak := clampNonNegative(item.Streak)
	lapses := clampNonNegative(item.Lapses)
	interval := clampNonNegative(item.IntervalDays)

	// Retired items are terminal: normal scheduling never revives them.
	if item.State == models.StateRetired {
		return Update{
			State:        models.StateRetired,
			Streak:       streak,
			Lapses:       lapses,
			IntervalDays: interval,
			DueAt:        item.DueAt,
			LastResult:   result,
		}
	}

	switch result {
	case models.ResultSkipped:
		// A skip is only a deferral: push the due date out one day and
		// leave the learning state untouched.
		return Update{
			State:        item.State,
			Streak:       streak,
			Lapses:       lapses,
			IntervalDays: interval,
			DueAt:        now.AddDate(0, 0, 1),
			LastResult:   models.ResultSkipped,
		}

	case models.ResultIncorrect:
		return Update{
			State:          models.StateLearning,
			Streak:         0,
			Lapses:         lapses + 1,
			IntervalDays:   0,
			DueAt:          now.AddDate(0, 0, 1),
			LastReviewedAt: &now,
			LastResult:     models.ResultIncorrect,
		}
	}

	// Correct answer.
	streak++
	state := item.State
	if state != models.StateReview {
		// Learning ladder: walk the fixed early intervals, promoting to
		// review once the last rung is reached.
		if streak >= len(p.LearningIntervals) {
			interval = p.LearningIntervals[len(p.LearningIntervals)-1]
			state = models.StateReview
		} else {
			interval = p.LearningIntervals[streak-1]
			state = models.StateLearning
		}
	} else {
		interval = int(math.Ceil(float64(interval) * p.ReviewGrowth))
		if interval > p.MaxInterval {
			interval = p.MaxInterval
		}
		if streak >= p.RetireStreak && interval >= p.RetireInterval {
			state = models.StateRetired
		}
	}

	return Update{
		State:          state,
		Streak:         streak,
		Lapses:         lapses,
		IntervalDays:   interval,
		DueAt:          now.AddDate(0, 0, interval),
		LastReviewedAt: &now,
		LastResult:     models.ResultCorrect,
	}
}

// SetSuspended toggles an item in or out of suspension. Un-suspending
// always lands in learning state with the item immediately due, even if
// the item was in review before suspension. That demotion is intentional
// and matches the shipped behavior.
func (p *Policy) SetSuspended(item *models.ReviewItem, suspended bool, now time.Time) Update {
	now = now.UTC()
	u := Update{
		Streak:       clampNonNegative(item.Streak),
		Lapses:       clampNonNegative(item.Lapses),
		IntervalDays: clampNonNegative(item.IntervalDays),
		DueAt:        item.DueAt,
	}
	if suspended {
		u.State = models.StateSuspended
	} else {
		u.State = models.StateLearning
		u.DueAt = now
	}
	return u
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
