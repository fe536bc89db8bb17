package pregen

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lingobot/pkg/models"
)

func testWords(n int) []models.VocabWord {
	words := make([]models.VocabWord, 0, n)
	for i := 0; i < n; i++ {
		words = append(words, models.VocabWord{
			ID:      fmt.Sprintf("w%02d", i),
			Word:    fmt.Sprintf("word%02d", i),
			Meaning: fmt.Sprintf("meaning%02d", i),
			Lesson:  1,
		})
	}
	return words
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

func TestPrepareFillsToTargetDepth(t *testing.T) {
	q := New(2)
	defer q.Stop()

	q.Prepare(1, testWords(10), nil)

	waitFor(t, func() bool { return q.Depth(1) == DefaultTargetDepth },
		"queue should refill to target depth")
}

func TestGetNextPopsAndRefills(t *testing.T) {
	q := New(2)
	defer q.Stop()

	q.Prepare(1, testWords(10), nil)
	waitFor(t, func() bool { return q.IsReady(1) }, "first quiz ready")

	entry, ok := q.GetNext(1)
	require.True(t, ok)
	require.NotNil(t, entry)
	assert.Equal(t, 1, entry.Lesson)
	assert.NotEmpty(t, entry.Questions)
	assert.NotEmpty(t, entry.ID)

	// Consumption keeps the refill loop going.
	waitFor(t, func() bool { return q.Depth(1) == DefaultTargetDepth },
		"queue should refill after consumption")
}

func TestGetNextNeverBlocksOnEmptyQueue(t *testing.T) {
	q := New(1)
	defer q.Stop()

	entry, ok := q.GetNext(99)
	assert.False(t, ok)
	assert.Nil(t, entry)
	assert.False(t, q.IsReady(99))
}

func TestLessonsAreIndependent(t *testing.T) {
	q := New(2)
	defer q.Stop()

	q.Prepare(1, testWords(6), nil)
	q.Prepare(2, testWords(4), nil)

	waitFor(t, func() bool { return q.IsReady(1) && q.IsReady(2) }, "both lessons ready")

	q.Clear(1)
	assert.False(t, q.IsReady(1))
	assert.True(t, q.IsReady(2))
}

func TestClearDiscardsQueue(t *testing.T) {
	q := New(2)
	defer q.Stop()

	q.Prepare(1, testWords(6), nil)
	waitFor(t, func() bool { return q.IsReady(1) }, "quiz ready")

	q.Clear(1)

	assert.False(t, q.IsReady(1))
	_, ok := q.GetNext(1)
	assert.False(t, ok)

	// In-flight results for a cleared lesson are dropped on arrival, so
	// the queue must stay empty.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, q.Depth(1))
}

func TestDisabledQueueIsNoOp(t *testing.T) {
	q := New(0)

	q.Prepare(1, testWords(6), nil)

	entry, ok := q.GetNext(1)
	assert.False(t, ok)
	assert.Nil(t, entry)
	assert.False(t, q.IsReady(1))
	assert.Equal(t, 0, q.Depth(1))

	q.Clear(1)
	q.Stop() // must not panic or block
}

func TestPreparedPayloadIsDetachedFromCaller(t *testing.T) {
	q := New(1)
	defer q.Stop()

	words := testWords(1)
	q.Prepare(1, words, nil)
	// Mutating the caller's slice after Prepare must not leak into
	// generated quizzes: the payload was copied by value.
	words[0].Meaning = "mutated"

	waitFor(t, func() bool { return q.IsReady(1) }, "quiz ready")
	entry, ok := q.GetNext(1)
	require.True(t, ok)
	for _, question := range entry.Questions {
		assert.NotEqual(t, "mutated", question.Answer)
	}
}
