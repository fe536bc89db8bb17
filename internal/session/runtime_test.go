package session

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lingobot/internal/identity"
	"github.com/example/lingobot/pkg/models"
)

var sessNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// --- fakes ---

type recordedResult struct {
	ItemID int64
	Result models.ReviewResult
	Answer string
}

type fakeReviewStore struct {
	due     []models.ReviewItem
	dueErr  error
	results []recordedResult
}

func (f *fakeReviewStore) DueItems(ctx context.Context, ownerID string, limit int) ([]models.ReviewItem, error) {
	if f.dueErr != nil {
		return nil, f.dueErr
	}
	if len(f.due) > limit {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeReviewStore) RecordResult(ctx context.Context, item *models.ReviewItem, result models.ReviewResult, answer string) error {
	f.results = append(f.results, recordedResult{ItemID: item.ID, Result: result, Answer: answer})
	return nil
}

func (f *fakeReviewStore) SetSuspended(ctx context.Context, item *models.ReviewItem, suspended bool) error {
	if suspended {
		item.State = models.StateSuspended
	} else {
		item.State = models.StateLearning
	}
	return nil
}

type fakeWordSource struct {
	words map[string]models.VocabWord
	all   []models.VocabWord
}

func (f *fakeWordSource) ByID(ctx context.Context, id string) (*models.VocabWord, error) {
	w, ok := f.words[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (f *fakeWordSource) UpToLesson(ctx context.Context, ceiling int) ([]models.VocabWord, error) {
	var out []models.VocabWord
	for _, w := range f.all {
		if w.Lesson <= ceiling {
			out = append(out, w)
		}
	}
	return out, nil
}

type fakeQuestionSource struct {
	questions map[string]models.Question
}

func (f *fakeQuestionSource) ByID(ctx context.Context, id string) (*models.Question, error) {
	q, ok := f.questions[id]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

type fakeCache struct {
	snapshots map[string]*models.SessionSnapshot
	deletes   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{snapshots: make(map[string]*models.SessionSnapshot)}
}

func (f *fakeCache) Get(ctx context.Context, key string) (*models.SessionSnapshot, error) {
	return f.snapshots[key], nil
}

func (f *fakeCache) Put(ctx context.Context, key string, snapshot *models.SessionSnapshot, ttl time.Duration) error {
	f.snapshots[key] = snapshot
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	delete(f.snapshots, key)
	f.deletes++
	return nil
}

// --- fixtures ---

func vocabItem(id int64, wordID string) models.ReviewItem {
	return models.ReviewItem{
		ID:           id,
		OwnerID:      "owner-1",
		Lesson:       1,
		QuestionID:   "vocab:" + wordID,
		VocabWordID:  wordID,
		QuestionType: models.Translation,
		State:        models.StateLearning,
		DueAt:        sessNow,
	}
}

func staticItem(id int64, questionID string, qt models.QuestionType) models.ReviewItem {
	return models.ReviewItem{
		ID:           id,
		OwnerID:      "owner-1",
		Lesson:       1,
		QuestionID:   questionID,
		QuestionType: qt,
		State:        models.StateLearning,
		DueAt:        sessNow,
	}
}

func fixtureWords(n int) *fakeWordSource {
	src := &fakeWordSource{words: make(map[string]models.VocabWord)}
	for i := 0; i < n; i++ {
		w := models.VocabWord{
			ID:      fmt.Sprintf("w%02d", i),
			Word:    fmt.Sprintf("word%02d", i),
			Meaning: fmt.Sprintf("meaning%02d", i),
			Lesson:  1,
		}
		src.words[w.ID] = w
		src.all = append(src.all, w)
	}
	return src
}

func newTestRuntime(reviews *fakeReviewStore, words *fakeWordSource, questions *fakeQuestionSource, cache Cache) *Runtime {
	if questions == nil {
		questions = &fakeQuestionSource{questions: map[string]models.Question{}}
	}
	r := NewRuntime(reviews, words, questions, cache, identity.Static("owner-1"))
	r.rng = rand.New(rand.NewSource(7))
	r.now = func() time.Time { return sessNow }
	return r
}

// --- tests ---

func TestStartResolvesDueItems(t *testing.T) {
	reviews := &fakeReviewStore{due: []models.ReviewItem{
		staticItem(1, "D01-Q01", models.MultipleChoice),
		vocabItem(2, "w00"),
	}}
	questions := &fakeQuestionSource{questions: map[string]models.Question{
		"D01-Q01": {ID: "D01-Q01", Type: models.MultipleChoice, Prompt: "pick", Options: []string{"a", "b"}, Answer: "a"},
	}}

	r := newTestRuntime(reviews, fixtureWords(6), questions, newFakeCache())
	sess, err := r.Start(context.Background(), 2, 1)
	require.NoError(t, err)

	assert.Equal(t, PhaseActive, sess.Phase)
	assert.Equal(t, 2, sess.Len())
	assert.Equal(t, 2, sess.Stats.Total)
	for i := 0; i < sess.Len(); i++ {
		assert.Equal(t, i, sess.entries[i].Question.Index)
	}
}

func TestStartSkipsMatchingItems(t *testing.T) {
	reviews := &fakeReviewStore{due: []models.ReviewItem{
		staticItem(1, "D01-Q01", models.Matching),
		staticItem(2, "D01-Q02", models.Translation),
	}}
	questions := &fakeQuestionSource{questions: map[string]models.Question{
		"D01-Q01": {ID: "D01-Q01", Type: models.Matching, AnswerPairs: []string{"a - b"}},
		"D01-Q02": {ID: "D01-Q02", Type: models.Translation, Answer: "yes"},
	}}

	r := newTestRuntime(reviews, fixtureWords(0), questions, newFakeCache())
	sess, err := r.Start(context.Background(), 10, 1)
	require.NoError(t, err)

	require.Equal(t, 1, sess.Len())
	q, ok := sess.Current()
	require.True(t, ok)
	assert.Equal(t, "D01-Q02", q.ID)
}

func TestStartSkipsMatchingShapedStatics(t *testing.T) {
	reviews := &fakeReviewStore{due: []models.ReviewItem{
		staticItem(1, "D01-Q01", models.MultipleChoice),
	}}
	// Mistyped question with no usable string answer.
	questions := &fakeQuestionSource{questions: map[string]models.Question{
		"D01-Q01": {ID: "D01-Q01", Type: models.MultipleChoice, AnswerPairs: []string{"a - b"}},
	}}

	r := newTestRuntime(reviews, fixtureWords(0), questions, newFakeCache())
	sess, err := r.Start(context.Background(), 10, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, sess.Len())
}

func TestStartSkipsStaleReferences(t *testing.T) {
	reviews := &fakeReviewStore{due: []models.ReviewItem{
		vocabItem(1, "gone"),
		staticItem(2, "missing", models.Translation),
		staticItem(3, "D01-Q01", models.Translation),
	}}
	questions := &fakeQuestionSource{questions: map[string]models.Question{
		"D01-Q01": {ID: "D01-Q01", Type: models.Translation, Answer: "yes"},
	}}

	r := newTestRuntime(reviews, fixtureWords(2), questions, newFakeCache())
	sess, err := r.Start(context.Background(), 10, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Len())
}

func TestStartDeduplicatesByItemID(t *testing.T) {
	item := staticItem(1, "D01-Q01", models.Translation)
	reviews := &fakeReviewStore{due: []models.ReviewItem{item, item, item}}
	questions := &fakeQuestionSource{questions: map[string]models.Question{
		"D01-Q01": {ID: "D01-Q01", Type: models.Translation, Answer: "yes"},
	}}

	r := newTestRuntime(reviews, fixtureWords(0), questions, newFakeCache())
	sess, err := r.Start(context.Background(), 10, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Len())
}

func TestStartPadsWithVocabularyTemplates(t *testing.T) {
	reviews := &fakeReviewStore{due: []models.ReviewItem{
		vocabItem(1, "w00"),
		vocabItem(2, "w01"),
		staticItem(3, "D01-Q01", models.Translation),
	}}
	questions := &fakeQuestionSource{questions: map[string]models.Question{
		"D01-Q01": {ID: "D01-Q01", Type: models.Translation, Answer: "yes"},
	}}

	r := newTestRuntime(reviews, fixtureWords(8), questions, newFakeCache())
	sess, err := r.Start(context.Background(), 10, 1)
	require.NoError(t, err)

	assert.Equal(t, 10, sess.Len(), "padding fills the session to target")

	// Padded repeats still grade into the word's single review item.
	itemIDs := make(map[int64]int)
	for _, e := range sess.entries {
		if e.Item != nil {
			itemIDs[e.Item.ID]++
		}
	}
	assert.Len(t, itemIDs, 3)
}

func TestStartShrinksWithoutPaddingSources(t *testing.T) {
	reviews := &fakeReviewStore{due: []models.ReviewItem{
		staticItem(1, "D01-Q01", models.Translation),
		staticItem(2, "D01-Q02", models.Translation),
		staticItem(3, "D01-Q03", models.Translation),
	}}
	questions := &fakeQuestionSource{questions: map[string]models.Question{
		"D01-Q01": {ID: "D01-Q01", Type: models.Translation, Answer: "a"},
		"D01-Q02": {ID: "D01-Q02", Type: models.Translation, Answer: "b"},
		"D01-Q03": {ID: "D01-Q03", Type: models.Translation, Answer: "c"},
	}}

	r := newTestRuntime(reviews, fixtureWords(0), questions, newFakeCache())
	sess, err := r.Start(context.Background(), 10, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, sess.Len())
}

func TestStartPropagatesLoadFailure(t *testing.T) {
	reviews := &fakeReviewStore{dueErr: assert.AnError}
	r := newTestRuntime(reviews, fixtureWords(0), nil, newFakeCache())

	_, err := r.Start(context.Background(), 10, 1)
	assert.Error(t, err)
}

func TestWordBankExcludesSeedAndDeduplicates(t *testing.T) {
	words := fixtureWords(4)
	// A later duplicate of word00 in a higher lesson, and one word beyond
	// the ceiling.
	words.all = append(words.all,
		models.VocabWord{ID: "dup", Word: "WORD00", Meaning: "other", Lesson: 2},
		models.VocabWord{ID: "far", Word: "faraway", Meaning: "x", Lesson: 9},
	)

	r := newTestRuntime(&fakeReviewStore{}, words, nil, newFakeCache())
	bank := r.wordBank(context.Background(), 2, words.words["w00"], 10)

	texts := make(map[string]bool)
	for _, w := range bank {
		texts[w.Word] = true
	}
	assert.NotContains(t, texts, "word00", "seed excluded case-insensitively")
	assert.NotContains(t, texts, "WORD00")
	assert.NotContains(t, texts, "faraway", "locked lessons never contribute")
	assert.Len(t, bank, 3, "w01..w03 remain")
}

func TestWordBankReturnsWhatExists(t *testing.T) {
	words := fixtureWords(2)
	r := newTestRuntime(&fakeReviewStore{}, words, nil, newFakeCache())

	bank := r.wordBank(context.Background(), 1, words.words["w00"], 10)
	assert.Len(t, bank, 1, "thin pool is not an error")
}

func TestSubmitAndSkipFlow(t *testing.T) {
	reviews := &fakeReviewStore{due: []models.ReviewItem{
		staticItem(1, "D01-Q01", models.Translation),
		staticItem(2, "D01-Q02", models.Translation),
	}}
	questions := &fakeQuestionSource{questions: map[string]models.Question{
		"D01-Q01": {ID: "D01-Q01", Type: models.Translation, Answer: "alpha"},
		"D01-Q02": {ID: "D01-Q02", Type: models.Translation, Answer: "beta"},
	}}
	cache := newFakeCache()
	r := newTestRuntime(reviews, fixtureWords(0), questions, cache)

	sess, err := r.Start(context.Background(), 10, 1)
	require.NoError(t, err)
	require.Equal(t, 2, sess.Len())

	ctx := context.Background()
	q, _ := sess.Current()
	correct, err := sess.SubmitAnswer(ctx, q.Answer)
	require.NoError(t, err)
	assert.True(t, correct)
	assert.Equal(t, 1, sess.Stats.Correct)
	require.NotNil(t, cache.snapshots["owner-1"], "progress cached after submit")

	sess.Advance(ctx)
	require.NoError(t, sess.Skip(ctx))
	assert.Equal(t, 1, sess.Stats.Skipped)

	assert.Equal(t, PhaseComplete, sess.Phase)
	_, ok := sess.Current()
	assert.False(t, ok)
	assert.Nil(t, cache.snapshots["owner-1"], "completion clears the cache")

	require.Len(t, reviews.results, 2)
	assert.Equal(t, models.ResultCorrect, reviews.results[0].Result)
	assert.Equal(t, models.ResultSkipped, reviews.results[1].Result)

	_, err = sess.SubmitAnswer(ctx, "late")
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestSuspendCurrentAdvances(t *testing.T) {
	reviews := &fakeReviewStore{due: []models.ReviewItem{
		staticItem(1, "D01-Q01", models.Translation),
	}}
	questions := &fakeQuestionSource{questions: map[string]models.Question{
		"D01-Q01": {ID: "D01-Q01", Type: models.Translation, Answer: "a"},
	}}
	r := newTestRuntime(reviews, fixtureWords(0), questions, newFakeCache())

	sess, err := r.Start(context.Background(), 10, 1)
	require.NoError(t, err)
	require.NoError(t, sess.SuspendCurrent(context.Background()))

	assert.Equal(t, PhaseComplete, sess.Phase)
	assert.Equal(t, models.StateSuspended, sess.entries[0].Item.State)
}

// --- resume ---

func resumeFixture(t *testing.T, cache *fakeCache) *Runtime {
	t.Helper()
	reviews := &fakeReviewStore{due: []models.ReviewItem{
		staticItem(1, "D01-Q01", models.Translation),
		staticItem(2, "D01-Q02", models.Translation),
	}}
	questions := &fakeQuestionSource{questions: map[string]models.Question{
		"D01-Q01": {ID: "D01-Q01", Type: models.Translation, Answer: "a"},
		"D01-Q02": {ID: "D01-Q02", Type: models.Translation, Answer: "b"},
	}}
	return newTestRuntime(reviews, fixtureWords(0), questions, cache)
}

func TestResumeOfferForRecentStartedSession(t *testing.T) {
	cache := newFakeCache()
	cache.snapshots["owner-1"] = &models.SessionSnapshot{
		SessionID:     "prev",
		CurrentIndex:  1,
		QuestionCount: 2,
		Stats:         models.SessionStats{Correct: 1, Total: 2},
		Timestamp:     sessNow.Add(-time.Hour),
	}

	sess, err := resumeFixture(t, cache).Start(context.Background(), 10, 1)
	require.NoError(t, err)
	require.NotNil(t, sess.ResumeOffer())

	require.True(t, sess.Resume())
	assert.Equal(t, 1, sess.Index)
	assert.Equal(t, 1, sess.Stats.Correct)
	assert.Equal(t, 2, sess.Stats.Total)
}

func TestStaleSnapshotDiscardedSilently(t *testing.T) {
	cache := newFakeCache()
	cache.snapshots["owner-1"] = &models.SessionSnapshot{
		SessionID:     "prev",
		CurrentIndex:  1,
		QuestionCount: 2,
		Timestamp:     sessNow.Add(-25 * time.Hour),
	}

	sess, err := resumeFixture(t, cache).Start(context.Background(), 10, 1)
	require.NoError(t, err)

	assert.Nil(t, sess.ResumeOffer(), "25h old snapshot starts fresh without prompting")
	assert.Equal(t, 1, cache.deletes)
}

func TestNeverStartedSnapshotDiscarded(t *testing.T) {
	cache := newFakeCache()
	cache.snapshots["owner-1"] = &models.SessionSnapshot{
		SessionID:     "prev",
		CurrentIndex:  0,
		QuestionCount: 2,
		Timestamp:     sessNow.Add(-time.Hour),
	}

	sess, err := resumeFixture(t, cache).Start(context.Background(), 10, 1)
	require.NoError(t, err)
	assert.Nil(t, sess.ResumeOffer())
}

func TestQuestionCountMismatchIgnoresSnapshot(t *testing.T) {
	cache := newFakeCache()
	cache.snapshots["owner-1"] = &models.SessionSnapshot{
		SessionID:     "prev",
		CurrentIndex:  3,
		QuestionCount: 9, // content changed since the snapshot
		Stats:         models.SessionStats{Correct: 3},
		Timestamp:     sessNow.Add(-time.Hour),
	}

	sess, err := resumeFixture(t, cache).Start(context.Background(), 10, 1)
	require.NoError(t, err)
	assert.Nil(t, sess.ResumeOffer())
	assert.Equal(t, 0, sess.Index)
}

func TestDiscardResumeClearsCache(t *testing.T) {
	cache := newFakeCache()
	cache.snapshots["owner-1"] = &models.SessionSnapshot{
		SessionID:     "prev",
		CurrentIndex:  1,
		QuestionCount: 2,
		Timestamp:     sessNow.Add(-time.Hour),
	}

	sess, err := resumeFixture(t, cache).Start(context.Background(), 10, 1)
	require.NoError(t, err)
	require.NotNil(t, sess.ResumeOffer())

	sess.DiscardResume(context.Background())
	assert.Nil(t, sess.ResumeOffer())
	assert.Nil(t, cache.snapshots["owner-1"])
	assert.False(t, sess.Resume())
}
