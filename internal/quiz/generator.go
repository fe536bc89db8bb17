package quiz

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/example/lingobot/pkg/models"
)

// Default generation parameters.
const (
	// Fraction of the word pool that must appear across the generated questions
	DefaultCoverage = 0.5
	// Number of wrong meanings offered in a multiple choice question
	DistractorCount = 3
	// Number of word/meaning pairs in a matching question
	MatchingPairCount = 5
)

// kindRotation is the order generated question types cycle in.
var kindRotation = []models.QuestionType{
	models.Translation,
	models.MultipleChoice,
	models.Matching,
}

// Generator synthesizes practice questions from a lesson's word pool,
// guaranteeing that a minimum share of the pool is exercised.
type Generator struct {
	Coverage float64
	rng      *rand.Rand
}

// NewGenerator creates a generator with default settings.
func NewGenerator() *Generator {
	return NewGeneratorWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewGeneratorWithRand creates a generator with the given random source,
// which makes generation reproducible in tests.
func NewGeneratorWithRand(rng *rand.Rand) *Generator {
	return &Generator{
		Coverage: DefaultCoverage,
		rng:      rng,
	}
}

// Generate produces a shuffled, sequentially indexed quiz from the word
// pool merged with any pre-authored static questions. Generation cycles
// through translation, multiple choice and matching questions, drawing
// unused words at random, until enough distinct words have been covered
// or the pool runs out. A pool smaller than the coverage requirement is
// not an error; generation simply stops when the pool is exhausted.
func (g *Generator) Generate(lesson int, pool []models.VocabWord, statics []models.Question) []models.Question {
	required := int(math.Ceil(float64(len(pool)) * g.Coverage))

	used := make(map[string]bool, len(pool))
	var generated []models.Question

	for kind := 0; len(used) < required; kind++ {
		unused := unusedWords(pool, used)
		if len(unused) == 0 {
			break
		}

		var q models.Question
		switch kindRotation[kind%len(kindRotation)] {
		case models.Translation:
			q = g.translationQuestion(lesson, g.pickOne(unused))
		case models.MultipleChoice:
			q = g.multipleChoiceQuestion(lesson, g.pickOne(unused), pool)
		case models.Matching:
			q = g.matchingQuestion(lesson, g.sample(unused, MatchingPairCount))
		}

		for _, id := range q.WordIDs {
			used[id] = true
		}
		generated = append(generated, q)
	}

	combined := append(generated, statics...)
	g.shuffle(combined)
	for i := range combined {
		combined[i].Index = i
	}
	return combined
}

// translationQuestion asks for the meaning of a single word.
func (g *Generator) translationQuestion(lesson int, w models.VocabWord) models.Question {
	return models.Question{
		ID:          uuid.NewString(),
		Lesson:      lesson,
		Type:        models.Translation,
		Prompt:      fmt.Sprintf("Translate: %s", w.Word),
		Answer:      w.Meaning,
		Explanation: wordExplanation(w),
		WordIDs:     []string{w.ID},
	}
}

// multipleChoiceQuestion mixes the correct meaning with meanings of other
// pool words.
func (g *Generator) multipleChoiceQuestion(lesson int, w models.VocabWord, pool []models.VocabWord) models.Question {
	options := []string{w.Meaning}
	for _, other := range g.sample(pool, DistractorCount+1) {
		if other.ID == w.ID || len(options) == DistractorCount+1 {
			continue
		}
		options = append(options, other.Meaning)
	}
	g.rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return models.Question{
		ID:          uuid.NewString(),
		Lesson:      lesson,
		Type:        models.MultipleChoice,
		Prompt:      fmt.Sprintf("What does \"%s\" mean?", w.Word),
		Options:     options,
		Answer:      w.Meaning,
		Explanation: wordExplanation(w),
		WordIDs:     []string{w.ID},
	}
}

// matchingQuestion pairs up to five words with their shuffled meanings.
// The correct answer is the ordered list of "word - meaning" pairs.
func (g *Generator) matchingQuestion(lesson int, words []models.VocabWord) models.Question {
	meanings := make([]string, 0, len(words))
	pairs := make([]string, 0, len(words))
	wordIDs := make([]string, 0, len(words))
	var prompt string

	for i, w := range words {
		meanings = append(meanings, w.Meaning)
		pairs = append(pairs, fmt.Sprintf("%s - %s", w.Word, w.Meaning))
		wordIDs = append(wordIDs, w.ID)
		if i > 0 {
			prompt += ", "
		}
		prompt += w.Word
	}
	g.rng.Shuffle(len(meanings), func(i, j int) {
		meanings[i], meanings[j] = meanings[j], meanings[i]
	})

	return models.Question{
		ID:          uuid.NewString(),
		Lesson:      lesson,
		Type:        models.Matching,
		Prompt:      fmt.Sprintf("Match the words to their meanings: %s", prompt),
		Options:     meanings,
		AnswerPairs: pairs,
		WordIDs:     wordIDs,
	}
}

// pickOne returns one random word from the slice.
func (g *Generator) pickOne(words []models.VocabWord) models.VocabWord {
	return words[g.rng.Intn(len(words))]
}

// sample returns up to n distinct random elements of words.
func (g *Generator) sample(words []models.VocabWord, n int) []models.VocabWord {
	shuffled := make([]models.VocabWord, len(words))
	copy(shuffled, words)
	g.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if len(shuffled) > n {
		shuffled = shuffled[:n]
	}
	return shuffled
}

// shuffle performs a uniform Fisher-Yates shuffle.
func (g *Generator) shuffle(questions []models.Question) {
	for i := len(questions) - 1; i > 0; i-- {
		j := g.rng.Intn(i + 1)
		questions[i], questions[j] = questions[j], questions[i]
	}
}

func unusedWords(pool []models.VocabWord, used map[string]bool) []models.VocabWord {
	var unused []models.VocabWord
	for _, w := range pool {
		if !used[w.ID] {
			unused = append(unused, w)
		}
	}
	return unused
}

func wordExplanation(w models.VocabWord) string {
	s := fmt.Sprintf("%s means \"%s\"", w.Word, w.Meaning)
	if w.PartOfSpeech != "" {
		s += " (" + w.PartOfSpeech + ")"
	}
	return s
}
