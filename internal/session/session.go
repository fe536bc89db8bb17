package session

import (
	"context"
	"errors"
	"log"

	"github.com/example/lingobot/pkg/models"
)

// Phase is the session's lifecycle state.
type Phase string

const (
	PhaseActive   Phase = "active"
	PhaseComplete Phase = "complete"
)

// ErrNotActive is returned when answering a finished session.
var ErrNotActive = errors.New("session: not active")

// Session is one bounded practice run. It is not safe for concurrent use;
// a session belongs to a single interactive consumer.
type Session struct {
	ID      string
	OwnerID string
	Phase   Phase
	Index   int
	Stats   models.SessionStats

	entries     []sessionQuestion
	runtime     *Runtime
	resumeOffer *models.SessionSnapshot

	lastAnswer string
	showAnswer bool
}

// Len returns the number of questions in the session.
func (s *Session) Len() int {
	return len(s.entries)
}

// Current returns the question at the cursor, or false when the session
// is complete.
func (s *Session) Current() (models.Question, bool) {
	if s.Phase != PhaseActive || s.Index >= len(s.entries) {
		return models.Question{}, false
	}
	return s.entries[s.Index].Question, true
}

// ResumeOffer returns the cached progress of a recent interrupted session
// matching this one, or nil. The caller decides whether to prompt.
func (s *Session) ResumeOffer() *models.SessionSnapshot {
	return s.resumeOffer
}

// Resume restores index and stats from the offer. It reports whether
// anything was restored.
func (s *Session) Resume() bool {
	if s.resumeOffer == nil {
		return false
	}
	offer := s.resumeOffer
	s.resumeOffer = nil

	s.Index = offer.CurrentIndex
	s.Stats = offer.Stats
	s.Stats.Total = len(s.entries)
	s.lastAnswer = offer.UserAnswer
	s.showAnswer = offer.ShowAnswer
	if s.Index >= len(s.entries) {
		s.Phase = PhaseComplete
	}
	return true
}

// DiscardResume drops the offer and its cached snapshot; the session
// starts over from the beginning.
func (s *Session) DiscardResume(ctx context.Context) {
	s.resumeOffer = nil
	if s.runtime.cache != nil {
		if err := s.runtime.cache.Delete(ctx, s.OwnerID); err != nil {
			log.Printf("Failed to discard session cache for %s: %v", s.OwnerID, err)
		}
	}
}

// SubmitAnswer grades the answer against the current question, records
// the result on the underlying review item and updates the stats. The
// caller should Advance afterwards. Persistence failures are logged, not
// surfaced: a scheduling write must never abort the practice flow.
func (s *Session) SubmitAnswer(ctx context.Context, answer string) (bool, error) {
	entry, ok := s.currentEntry()
	if !ok {
		return false, ErrNotActive
	}

	correct := Grade(entry.Question, answer)
	result := models.ResultIncorrect
	if correct {
		s.Stats.Correct++
		result = models.ResultCorrect
	} else {
		s.Stats.Incorrect++
	}
	s.lastAnswer = answer
	s.showAnswer = true

	if entry.Item != nil {
		if err := s.runtime.reviews.RecordResult(ctx, entry.Item, result, answer); err != nil {
			log.Printf("Failed to record %s for item %d: %v", result, entry.Item.ID, err)
		}
	}
	s.saveSnapshot(ctx)
	return correct, nil
}

// Skip defers the current question and moves on.
func (s *Session) Skip(ctx context.Context) error {
	entry, ok := s.currentEntry()
	if !ok {
		return ErrNotActive
	}

	s.Stats.Skipped++
	if entry.Item != nil {
		if err := s.runtime.reviews.RecordResult(ctx, entry.Item, models.ResultSkipped, ""); err != nil {
			log.Printf("Failed to record skip for item %d: %v", entry.Item.ID, err)
		}
	}
	s.Advance(ctx)
	return nil
}

// SuspendCurrent suspends the review item behind the current question and
// moves past it without grading.
func (s *Session) SuspendCurrent(ctx context.Context) error {
	entry, ok := s.currentEntry()
	if !ok {
		return ErrNotActive
	}
	if entry.Item != nil {
		if err := s.runtime.reviews.SetSuspended(ctx, entry.Item, true); err != nil {
			return err
		}
	}
	s.Advance(ctx)
	return nil
}

// Advance moves the cursor to the next question, completing the session
// past the last one. Completion clears the resume cache.
func (s *Session) Advance(ctx context.Context) {
	if s.Phase != PhaseActive {
		return
	}
	s.Index++
	s.lastAnswer = ""
	s.showAnswer = false

	if s.Index >= len(s.entries) {
		s.Phase = PhaseComplete
		if s.runtime.cache != nil {
			if err := s.runtime.cache.Delete(ctx, s.OwnerID); err != nil {
				log.Printf("Failed to clear session cache for %s: %v", s.OwnerID, err)
			}
		}
		return
	}
	s.saveSnapshot(ctx)
}

func (s *Session) currentEntry() (sessionQuestion, bool) {
	if s.Phase != PhaseActive || s.Index >= len(s.entries) {
		return sessionQuestion{}, false
	}
	return s.entries[s.Index], true
}

// saveSnapshot caches the session's progress so an interrupted run can be
// resumed within the TTL.
func (s *Session) saveSnapshot(ctx context.Context) {
	if s.runtime.cache == nil {
		return
	}
	snapshot := &models.SessionSnapshot{
		SessionID:     s.ID,
		CurrentIndex:  s.Index,
		UserAnswer:    s.lastAnswer,
		ShowAnswer:    s.showAnswer,
		QuestionCount: len(s.entries),
		Stats:         s.Stats,
		Timestamp:     s.runtime.now(),
	}
	if err := s.runtime.cache.Put(ctx, s.OwnerID, snapshot, ResumeTTL); err != nil {
		log.Printf("Failed to cache session progress for %s: %v", s.OwnerID, err)
	}
}
