package session

import (
	"context"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/lingobot/internal/identity"
	"github.com/example/lingobot/pkg/models"
)

// Session sizing and resume defaults.
const (
	DefaultSessionSize = 10
	// Multiplier applied to the requested size when fetching due items,
	// so filtering and deduplication still leave enough material
	OverFetchFactor = 5
	// How long an interrupted session stays resumable
	ResumeTTL = 24 * time.Hour
	// Distractor words drawn for a definition question
	WordBankSize = 3
)

// ReviewStore is the slice of the store adapter the runtime needs.
type ReviewStore interface {
	DueItems(ctx context.Context, ownerID string, limit int) ([]models.ReviewItem, error)
	RecordResult(ctx context.Context, item *models.ReviewItem, result models.ReviewResult, answer string) error
	SetSuspended(ctx context.Context, item *models.ReviewItem, suspended bool) error
}

// WordSource reads vocabulary from the content catalogue.
type WordSource interface {
	ByID(ctx context.Context, id string) (*models.VocabWord, error)
	UpToLesson(ctx context.Context, ceiling int) ([]models.VocabWord, error)
}

// QuestionSource reads static questions from the content catalogue.
type QuestionSource interface {
	ByID(ctx context.Context, id string) (*models.Question, error)
}

// Cache persists interrupted-session snapshots with a TTL. The storage
// medium is up to the implementation.
type Cache interface {
	Get(ctx context.Context, key string) (*models.SessionSnapshot, error)
	Put(ctx context.Context, key string, snapshot *models.SessionSnapshot, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Runtime builds and runs bounded practice sessions over an owner's due
// review items.
type Runtime struct {
	reviews   ReviewStore
	words     WordSource
	questions QuestionSource
	cache     Cache
	owner     identity.Provider

	rng *rand.Rand
	now func() time.Time
}

// NewRuntime wires a runtime from its collaborators.
func NewRuntime(reviews ReviewStore, words WordSource, questions QuestionSource, cache Cache, owner identity.Provider) *Runtime {
	return &Runtime{
		reviews:   reviews,
		words:     words,
		questions: questions,
		cache:     cache,
		owner:     owner,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// vocab templates cycled when resolving and padding word questions.
const (
	templateTranslation = "translation"
	templateDefinition  = "definition"
)

var vocabTemplates = []string{templateTranslation, templateDefinition}

// sessionQuestion ties a question to the review item it grades into.
type sessionQuestion struct {
	Question models.Question
	Item     *models.ReviewItem
}

// Start builds a session of roughly the target size from the owner's due
// items. Matching-type items are skipped (review mode has no pairing UI),
// vocabulary items are resolved through rotating templates, stale
// references are dropped, and short sessions are padded with template
// variations when vocabulary material exists. If a recent interrupted
// session matches the freshly built one, the session carries a resume
// offer for the caller to surface.
func (r *Runtime) Start(ctx context.Context, size, lessonCeiling int) (*Session, error) {
	if size <= 0 {
		size = DefaultSessionSize
	}

	ownerID, err := r.owner.Await(ctx)
	if err != nil {
		return nil, err
	}

	due, err := r.reviews.DueItems(ctx, ownerID, size*OverFetchFactor)
	if err != nil {
		return nil, err
	}

	var resolved []sessionQuestion
	var vocab []vocabSource
	seen := make(map[int64]bool)
	templatesUsed := make(map[string]map[string]bool)

	for i := range due {
		item := &due[i]
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true

		// Matching items need a pairing UI that review mode doesn't have.
		if item.QuestionType == models.Matching {
			continue
		}

		if item.IsVocab() {
			word, err := r.words.ByID(ctx, item.VocabWordID)
			if err != nil || word == nil {
				log.Printf("Skipping review item %d: word %s unavailable: %v", item.ID, item.VocabWordID, err)
				continue
			}
			q, ok := r.vocabQuestion(ctx, *word, lessonCeiling, templatesUsed)
			if !ok {
				continue
			}
			resolved = append(resolved, sessionQuestion{Question: q, Item: item})
			vocab = append(vocab, vocabSource{word: *word, item: item})
			continue
		}

		static, err := r.questions.ByID(ctx, item.QuestionID)
		if err != nil || static == nil {
			log.Printf("Skipping review item %d: question %s unavailable: %v", item.ID, item.QuestionID, err)
			continue
		}
		if isMatchingShaped(static) {
			continue
		}
		resolved = append(resolved, sessionQuestion{Question: *static, Item: item})
	}

	// Over-fetching can leave more material than the target; keep the
	// most overdue items.
	if len(resolved) > size {
		resolved = resolved[:size]
	}
	if len(resolved) < size {
		if len(vocab) > 0 {
			resolved = r.pad(ctx, resolved, vocab, lessonCeiling, size, templatesUsed)
		}
		// Without vocabulary there is nothing to pad with; the session
		// simply shrinks to the due-item count.
	}

	r.shuffle(resolved)
	for i := range resolved {
		resolved[i].Question.Index = i
	}

	sess := &Session{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Phase:   PhaseActive,
		runtime: r,
		entries: resolved,
	}
	sess.Stats.Total = len(resolved)

	r.attachResumeOffer(ctx, sess)
	return sess, nil
}

// vocabSource is padding material: a word plus the item repeats grade into.
type vocabSource struct {
	word models.VocabWord
	item *models.ReviewItem
}

// pad extends a short session by cycling unused templates over the vocab
// words until the target is met. Once a word has exhausted its templates
// the used set resets, so long padding runs vary rather than repeat one
// shape.
func (r *Runtime) pad(ctx context.Context, resolved []sessionQuestion, vocab []vocabSource, lessonCeiling, target int, templatesUsed map[string]map[string]bool) []sessionQuestion {
	guard := 0
	for len(resolved) < target && len(vocab) > 0 {
		src := vocab[guard%len(vocab)]
		guard++
		if guard > target*len(vocabTemplates)*2 {
			break
		}

		if len(templatesUsed[src.word.ID]) >= len(vocabTemplates) {
			templatesUsed[src.word.ID] = nil
		}
		q, ok := r.vocabQuestion(ctx, src.word, lessonCeiling, templatesUsed)
		if !ok {
			continue
		}
		resolved = append(resolved, sessionQuestion{Question: q, Item: src.item})
	}
	return resolved
}

// vocabQuestion resolves a word into a concrete question using the next
// template not yet used for that word.
func (r *Runtime) vocabQuestion(ctx context.Context, word models.VocabWord, lessonCeiling int, templatesUsed map[string]map[string]bool) (models.Question, bool) {
	used := templatesUsed[word.ID]
	if used == nil {
		used = make(map[string]bool)
		templatesUsed[word.ID] = used
	}

	for _, template := range vocabTemplates {
		if used[template] {
			continue
		}
		used[template] = true

		switch template {
		case templateTranslation:
			return models.Question{
				ID:      uuid.NewString(),
				Lesson:  word.Lesson,
				Type:    models.Translation,
				Prompt:  "Translate: " + word.Word,
				Answer:  word.Meaning,
				WordIDs: []string{word.ID},
			}, true
		case templateDefinition:
			bank := r.wordBank(ctx, lessonCeiling, word, WordBankSize)
			options := []string{word.Word}
			for _, w := range bank {
				options = append(options, w.Word)
			}
			r.rng.Shuffle(len(options), func(i, j int) {
				options[i], options[j] = options[j], options[i]
			})
			return models.Question{
				ID:      uuid.NewString(),
				Lesson:  word.Lesson,
				Type:    models.MultipleChoice,
				Prompt:  "Which word means \"" + word.Meaning + "\"?",
				Options: options,
				Answer:  word.Word,
				WordIDs: []string{word.ID},
			}, true
		}
	}
	return models.Question{}, false
}

// wordBank draws distractor words from the cumulative vocabulary of
// lessons 1..ceiling. Duplicated word texts keep only their first
// occurrence, the seed word is excluded case-insensitively, and a thin
// pool returns whatever is available.
func (r *Runtime) wordBank(ctx context.Context, lessonCeiling int, seed models.VocabWord, n int) []models.VocabWord {
	all, err := r.words.UpToLesson(ctx, lessonCeiling)
	if err != nil {
		log.Printf("Word bank unavailable for lessons 1-%d: %v", lessonCeiling, err)
		return nil
	}

	seedText := strings.ToLower(seed.Word)
	seenText := make(map[string]bool, len(all))
	var bank []models.VocabWord
	for _, w := range all {
		text := strings.ToLower(w.Word)
		if text == seedText || seenText[text] {
			continue
		}
		seenText[text] = true
		bank = append(bank, w)
	}

	r.rng.Shuffle(len(bank), func(i, j int) {
		bank[i], bank[j] = bank[j], bank[i]
	})
	if len(bank) > n {
		bank = bank[:n]
	}
	return bank
}

// attachResumeOffer looks for a recent interrupted session worth
// resuming. Stale or never-started snapshots are discarded silently, and
// a snapshot whose question count no longer matches the fresh session is
// ignored because the underlying content has changed.
func (r *Runtime) attachResumeOffer(ctx context.Context, sess *Session) {
	if r.cache == nil {
		return
	}
	snapshot, err := r.cache.Get(ctx, sess.OwnerID)
	if err != nil {
		log.Printf("Failed to read session cache for %s: %v", sess.OwnerID, err)
		return
	}
	if snapshot == nil {
		return
	}

	started := snapshot.CurrentIndex > 0 || snapshot.Stats.Correct+snapshot.Stats.Incorrect+snapshot.Stats.Skipped > 0
	fresh := r.now().Sub(snapshot.Timestamp) < ResumeTTL
	if !started || !fresh {
		if err := r.cache.Delete(ctx, sess.OwnerID); err != nil {
			log.Printf("Failed to drop stale session cache for %s: %v", sess.OwnerID, err)
		}
		return
	}
	if snapshot.QuestionCount != len(sess.entries) {
		return
	}
	sess.resumeOffer = snapshot
}

// isMatchingShaped detects matching questions even when mistyped: a pair
// list, or no usable string answer at all, means the question needs the
// pairing UI that review mode lacks.
func isMatchingShaped(q *models.Question) bool {
	if q.Type == models.Matching {
		return true
	}
	return len(q.AnswerPairs) > 0 || q.Answer == ""
}

func (r *Runtime) shuffle(entries []sessionQuestion) {
	for i := len(entries) - 1; i > 0; i-- {
		j := r.rng.Intn(i + 1)
		entries[i], entries[j] = entries[j], entries[i]
	}
}
