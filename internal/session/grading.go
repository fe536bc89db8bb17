package session

import (
	"strings"

	"github.com/example/lingobot/pkg/models"
)

// MatchingPassRatio is the share of pairs that must be correct for a
// matching question to count as fully correct.
const MatchingPassRatio = 0.8

// translationVariants accepts common alternative spellings and short
// synonyms for translation answers, keyed by the normalized canonical
// answer.
var translationVariants = map[string][]string{
	"okay":     {"ok"},
	"gray":     {"grey"},
	"color":    {"colour"},
	"to go":    {"go"},
	"to be":    {"be"},
	"to have":  {"have"},
	"and":      {"also"},
	"because":  {"since"},
	"big":      {"large"},
	"small":    {"little"},
	"to speak": {"to talk", "speak", "talk"},
}

// Grade compares the user's answer to the question's canonical answer.
// Both sides are normalized first. Recitation tolerates partial answers
// via a prefix match, translation accepts listed variants, matching
// passes at 80% of pairs, and everything else needs exact equality.
func Grade(q models.Question, answer string) bool {
	switch q.Type {
	case models.Matching:
		return gradeMatching(q.AnswerPairs, answer)
	case models.Recitation:
		return gradeRecitation(q.Answer, answer)
	case models.Translation:
		return gradeTranslation(q.Answer, answer)
	case models.MultipleChoice:
		return Normalize(answer) == Normalize(q.Answer)
	default:
		return Normalize(answer) == Normalize(q.Answer)
	}
}

// Normalize trims, lowercases and collapses internal whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// gradeRecitation accepts an answer that starts with the canonical text,
// so a partial recitation with trailing commentary still counts.
func gradeRecitation(canonical, answer string) bool {
	want := Normalize(canonical)
	if want == "" {
		return false
	}
	return strings.HasPrefix(Normalize(answer), want)
}

// gradeTranslation accepts the exact meaning or any listed variant.
func gradeTranslation(canonical, answer string) bool {
	want := Normalize(canonical)
	got := Normalize(answer)
	if got == want {
		return true
	}
	for _, variant := range translationVariants[want] {
		if got == Normalize(variant) {
			return true
		}
	}
	return false
}

// gradeMatching parses the user's pairs (one per line, or separated by
// semicolons) and passes when at least 80% of the canonical pairs are
// present.
func gradeMatching(pairs []string, answer string) bool {
	if len(pairs) == 0 {
		return false
	}

	given := make(map[string]bool)
	for _, line := range splitPairs(answer) {
		given[Normalize(line)] = true
	}

	correct := 0
	for _, pair := range pairs {
		if given[Normalize(pair)] {
			correct++
		}
	}
	return float64(correct) >= MatchingPassRatio*float64(len(pairs))
}

func splitPairs(answer string) []string {
	return strings.FieldsFunc(answer, func(r rune) bool {
		return r == '\n' || r == ';'
	})
}
