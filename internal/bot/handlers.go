package bot

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/lingobot/internal/excel"
	"github.com/example/lingobot/internal/identity"
	"github.com/example/lingobot/internal/session"
	"github.com/example/lingobot/pkg/models"
)

// activeQuiz is a chat's in-flight generated quiz.
type activeQuiz struct {
	Lesson    int
	Questions []models.Question
	Index     int
	Correct   int
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil {
		return
	}

	msg := update.Message
	chatID := msg.Chat.ID

	if msg.Document != nil {
		b.handleDocument(ctx, msg)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	b.handleText(ctx, chatID, msg.Text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start", "help":
		b.send(chatID, strings.Join([]string{
			"Commands:",
			"/review - practice your due items",
			"/quiz N - take a quiz for lesson N",
			"/due - items waiting for review",
			"/upcoming - items scheduled later",
			"/suspended - items you have paused",
			"/lesson N - set your current lesson",
			"/skip - skip the current question",
			"/suspend - suspend the current item",
			"/stop - abandon the current session",
		}, "\n"))
	case "lesson":
		b.handleSetLesson(chatID, msg.CommandArguments())
	case "due":
		b.handleDue(ctx, chatID)
	case "upcoming":
		b.handleUpcoming(ctx, chatID)
	case "suspended":
		b.handleSuspended(ctx, chatID)
	case "review":
		b.handleReview(ctx, chatID)
	case "quiz":
		b.handleQuiz(ctx, chatID, msg.CommandArguments())
	case "skip":
		b.handleSkip(ctx, chatID)
	case "suspend":
		b.handleSuspendCurrent(ctx, chatID)
	case "stop":
		b.handleStop(chatID)
	case "import":
		if !b.admins[msg.From.ID] {
			b.send(chatID, "Importing vocabulary is restricted to admins.")
			return
		}
		b.mu.Lock()
		b.awaitingUpload[chatID] = true
		b.mu.Unlock()
		b.send(chatID, "Send me an .xlsx or .csv file with columns: word, meaning, lesson, part of speech, grammar, frequency.")
	default:
		b.send(chatID, "Unknown command. Send /help for the list.")
	}
}

func (b *Bot) handleSetLesson(chatID int64, args string) {
	n, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil || n < 1 {
		b.send(chatID, "Usage: /lesson N (N starts at 1)")
		return
	}
	previous := b.setLessonCeiling(chatID, n)
	b.send(chatID, fmt.Sprintf("Current lesson set to %d.", n))

	if b.deps.Pregen != nil && previous != 0 {
		b.deps.Pregen.Clear(previous)
	}
	// Warm the quiz queue for the new lesson in the background.
	go b.warmQuizQueue(context.Background(), n)
}

func (b *Bot) handleDue(ctx context.Context, chatID int64) {
	items, err := b.deps.Reviews.DueItems(ctx, ownerID(chatID), 50)
	if err != nil {
		log.Printf("Failed to list due items for chat %d: %v", chatID, err)
		b.send(chatID, "Could not load your due items, try again later.")
		return
	}
	if len(items) == 0 {
		b.send(chatID, "Nothing is due. Well done!")
		return
	}
	b.send(chatID, fmt.Sprintf("%d items are due. Send /review to practice them.", len(items)))
}

func (b *Bot) handleUpcoming(ctx context.Context, chatID int64) {
	items, err := b.deps.Reviews.UpcomingItems(ctx, ownerID(chatID), 10)
	if err != nil {
		log.Printf("Failed to list upcoming items for chat %d: %v", chatID, err)
		b.send(chatID, "Could not load your schedule, try again later.")
		return
	}
	if len(items) == 0 {
		b.send(chatID, "Nothing scheduled yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Coming up:\n")
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("- lesson %d, %s, due %s\n",
			item.Lesson, item.QuestionType, item.DueAt.Format("Jan 2")))
	}
	b.send(chatID, sb.String())
}

func (b *Bot) handleSuspended(ctx context.Context, chatID int64) {
	items, err := b.deps.Reviews.SuspendedItems(ctx, ownerID(chatID), 20)
	if err != nil {
		log.Printf("Failed to list suspended items for chat %d: %v", chatID, err)
		b.send(chatID, "Could not load suspended items, try again later.")
		return
	}
	if len(items) == 0 {
		b.send(chatID, "No suspended items.")
		return
	}
	b.send(chatID, fmt.Sprintf("%d items are suspended. They stay out of your reviews until you resume them.", len(items)))
}

// handleReview builds a session over the chat's due items and starts
// asking questions. A resumable interrupted session is offered first.
func (b *Bot) handleReview(ctx context.Context, chatID int64) {
	runtime := session.NewRuntime(
		b.deps.Reviews, b.deps.Vocab, b.deps.Questions, b.deps.Cache,
		identity.Static(ownerID(chatID)),
	)

	sess, err := runtime.Start(ctx, session.DefaultSessionSize, b.lessonCeiling(chatID))
	if err != nil {
		log.Printf("Failed to start review session for chat %d: %v", chatID, err)
		b.send(chatID, "Could not start a review session, try again later.")
		return
	}
	if sess.Len() == 0 {
		b.send(chatID, "Nothing is due right now.")
		return
	}

	b.mu.Lock()
	b.sessions[chatID] = sess
	delete(b.quizzes, chatID)
	b.mu.Unlock()

	if offer := sess.ResumeOffer(); offer != nil {
		keyboard := createKeyboard([][]MenuButton{{
			{Text: "Resume", CallbackData: "resume:yes"},
			{Text: "Start over", CallbackData: "resume:no"},
		}})
		done := offer.Stats.Correct + offer.Stats.Incorrect + offer.Stats.Skipped
		b.sendWithKeyboard(chatID,
			fmt.Sprintf("You have an unfinished session (%d of %d answered). Resume it?", done, offer.QuestionCount),
			keyboard)
		return
	}

	b.askCurrent(chatID)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	b.api.Request(tgbotapi.NewCallback(cb.ID, ""))

	switch cb.Data {
	case "resume:yes":
		b.mu.Lock()
		sess := b.sessions[chatID]
		b.mu.Unlock()
		if sess != nil {
			sess.Resume()
		}
		b.askCurrent(chatID)
	case "resume:no":
		b.mu.Lock()
		sess := b.sessions[chatID]
		b.mu.Unlock()
		if sess != nil {
			sess.DiscardResume(ctx)
		}
		b.askCurrent(chatID)
	default:
		// Multiple-choice answers arrive as "answer:<option>".
		if strings.HasPrefix(cb.Data, "answer:") {
			b.handleText(ctx, chatID, strings.TrimPrefix(cb.Data, "answer:"))
		}
	}
}

// askCurrent shows the session's current question, or the final stats
// when the session is complete.
func (b *Bot) askCurrent(chatID int64) {
	b.mu.Lock()
	sess := b.sessions[chatID]
	b.mu.Unlock()
	if sess == nil {
		return
	}

	q, ok := sess.Current()
	if !ok {
		b.finishSession(chatID, sess)
		return
	}

	prompt := fmt.Sprintf("Question %d of %d\n%s", sess.Index+1, sess.Len(), q.Prompt)
	if len(q.Options) > 0 {
		var rows [][]MenuButton
		for _, opt := range q.Options {
			rows = append(rows, []MenuButton{{Text: opt, CallbackData: "answer:" + opt}})
		}
		b.sendWithKeyboard(chatID, prompt, createKeyboard(rows))
		return
	}
	b.send(chatID, prompt)
}

func (b *Bot) finishSession(chatID int64, sess *session.Session) {
	b.mu.Lock()
	delete(b.sessions, chatID)
	b.mu.Unlock()

	b.send(chatID, fmt.Sprintf(
		"Session complete. Correct: %d, incorrect: %d, skipped: %d.",
		sess.Stats.Correct, sess.Stats.Incorrect, sess.Stats.Skipped))
}

// handleText routes a free-form message to whichever flow is active.
func (b *Bot) handleText(ctx context.Context, chatID int64, text string) {
	b.mu.Lock()
	sess := b.sessions[chatID]
	qz := b.quizzes[chatID]
	b.mu.Unlock()

	switch {
	case sess != nil:
		b.answerSession(ctx, chatID, sess, text)
	case qz != nil:
		b.answerQuiz(ctx, chatID, qz, text)
	default:
		b.send(chatID, "Send /review to practice or /quiz N for a lesson quiz.")
	}
}

func (b *Bot) answerSession(ctx context.Context, chatID int64, sess *session.Session, text string) {
	q, ok := sess.Current()
	if !ok {
		b.finishSession(chatID, sess)
		return
	}

	correct, err := sess.SubmitAnswer(ctx, text)
	if err != nil {
		b.finishSession(chatID, sess)
		return
	}

	if correct {
		b.send(chatID, "Correct!")
	} else {
		b.send(chatID, fmt.Sprintf("Not quite. The answer was: %s", q.Answer))
		b.explainMistake(ctx, chatID, q, text)
	}
	sess.Advance(ctx)
	b.askCurrent(chatID)
}

func (b *Bot) handleSkip(ctx context.Context, chatID int64) {
	b.mu.Lock()
	sess := b.sessions[chatID]
	b.mu.Unlock()
	if sess == nil {
		b.send(chatID, "No active review session.")
		return
	}
	if err := sess.Skip(ctx); err != nil {
		b.finishSession(chatID, sess)
		return
	}
	b.send(chatID, "Skipped. It will come back tomorrow.")
	b.askCurrent(chatID)
}

func (b *Bot) handleSuspendCurrent(ctx context.Context, chatID int64) {
	b.mu.Lock()
	sess := b.sessions[chatID]
	b.mu.Unlock()
	if sess == nil {
		b.send(chatID, "No active review session.")
		return
	}
	if err := sess.SuspendCurrent(ctx); err != nil {
		log.Printf("Failed to suspend item for chat %d: %v", chatID, err)
		b.send(chatID, "Could not suspend that item.")
		return
	}
	b.send(chatID, "Suspended. It won't come up again until you resume it.")
	b.askCurrent(chatID)
}

func (b *Bot) handleStop(chatID int64) {
	b.mu.Lock()
	delete(b.sessions, chatID)
	delete(b.quizzes, chatID)
	b.mu.Unlock()
	b.send(chatID, "Session abandoned. Your progress is saved for a day; /review will offer to resume it.")
}

// handleQuiz serves a pre-generated quiz for a lesson, generating one
// synchronously when the queue has nothing ready yet.
func (b *Bot) handleQuiz(ctx context.Context, chatID int64, args string) {
	lesson := b.lessonCeiling(chatID)
	if trimmed := strings.TrimSpace(args); trimmed != "" {
		n, err := strconv.Atoi(trimmed)
		if err != nil || n < 1 {
			b.send(chatID, "Usage: /quiz N (N starts at 1)")
			return
		}
		lesson = n
	}

	questions, err := b.takeQuiz(ctx, lesson)
	if err != nil {
		log.Printf("Failed to build quiz for lesson %d: %v", lesson, err)
		b.send(chatID, "Could not build a quiz for that lesson, try again later.")
		return
	}
	if len(questions) == 0 {
		b.send(chatID, fmt.Sprintf("Lesson %d has no material yet.", lesson))
		return
	}

	qz := &activeQuiz{Lesson: lesson, Questions: questions}
	b.mu.Lock()
	b.quizzes[chatID] = qz
	delete(b.sessions, chatID)
	b.mu.Unlock()

	b.askQuiz(chatID, qz)
}

// takeQuiz pops a pre-generated quiz when one is ready, otherwise
// generates one inline and warms the queue for next time.
func (b *Bot) takeQuiz(ctx context.Context, lesson int) ([]models.Question, error) {
	if b.deps.Pregen != nil {
		if entry, ok := b.deps.Pregen.GetNext(lesson); ok {
			return entry.Questions, nil
		}
	}

	words, err := b.deps.Vocab.ByLesson(ctx, lesson)
	if err != nil {
		return nil, err
	}
	statics, err := b.deps.Questions.StaticByLesson(ctx, lesson)
	if err != nil {
		return nil, err
	}

	if b.deps.Pregen != nil {
		b.deps.Pregen.Prepare(lesson, words, statics)
	}
	return b.generator.Generate(lesson, words, statics), nil
}

// warmQuizQueue pre-generates quizzes for a lesson.
func (b *Bot) warmQuizQueue(ctx context.Context, lesson int) {
	if b.deps.Pregen == nil {
		return
	}
	words, err := b.deps.Vocab.ByLesson(ctx, lesson)
	if err != nil {
		log.Printf("Failed to load lesson %d words for pre-generation: %v", lesson, err)
		return
	}
	statics, err := b.deps.Questions.StaticByLesson(ctx, lesson)
	if err != nil {
		log.Printf("Failed to load lesson %d questions for pre-generation: %v", lesson, err)
		return
	}
	b.deps.Pregen.Prepare(lesson, words, statics)
}

func (b *Bot) askQuiz(chatID int64, qz *activeQuiz) {
	if qz.Index >= len(qz.Questions) {
		b.mu.Lock()
		delete(b.quizzes, chatID)
		b.mu.Unlock()
		b.send(chatID, fmt.Sprintf("Quiz complete: %d of %d correct.", qz.Correct, len(qz.Questions)))
		return
	}

	q := qz.Questions[qz.Index]
	prompt := fmt.Sprintf("Question %d of %d\n%s", qz.Index+1, len(qz.Questions), q.Prompt)
	if q.Type == models.Matching {
		prompt += "\nMatch the pairs, one per line, as: left - right"
	}
	if len(q.Options) > 0 {
		var rows [][]MenuButton
		for _, opt := range q.Options {
			rows = append(rows, []MenuButton{{Text: opt, CallbackData: "answer:" + opt}})
		}
		b.sendWithKeyboard(chatID, prompt, createKeyboard(rows))
		return
	}
	b.send(chatID, prompt)
}

// answerQuiz grades one quiz answer. Misses feed the review schedule so
// the weak words come back as due items.
func (b *Bot) answerQuiz(ctx context.Context, chatID int64, qz *activeQuiz, text string) {
	if qz.Index >= len(qz.Questions) {
		return
	}
	q := qz.Questions[qz.Index]

	if session.Grade(q, text) {
		qz.Correct++
		b.send(chatID, "Correct!")
	} else {
		answer := q.Answer
		if q.Type == models.Matching {
			answer = strings.Join(q.AnswerPairs, "\n")
		}
		b.send(chatID, fmt.Sprintf("Not quite. The answer was:\n%s", answer))
		b.recordQuizMiss(ctx, chatID, qz.Lesson, q)
		b.explainMistake(ctx, chatID, q, text)
	}

	qz.Index++
	b.askQuiz(chatID, qz)
}

// recordQuizMiss schedules a missed quiz question for review.
func (b *Bot) recordQuizMiss(ctx context.Context, chatID int64, lesson int, q models.Question) {
	wordID := ""
	if len(q.WordIDs) > 0 {
		wordID = q.WordIDs[0]
	}
	if _, err := b.deps.Reviews.RecordMiss(ctx, ownerID(chatID), lesson, q.ID, wordID, q.Type); err != nil {
		log.Printf("Failed to record quiz miss for chat %d: %v", chatID, err)
	}
}

// explainMistake asks the AI client for a short hint on a missed vocab
// question. Silent when no client is configured or the word is unknown.
func (b *Bot) explainMistake(ctx context.Context, chatID int64, q models.Question, answer string) {
	if b.deps.Explainer == nil || len(q.WordIDs) == 0 {
		return
	}
	word, err := b.deps.Vocab.ByID(ctx, q.WordIDs[0])
	if err != nil || word == nil {
		return
	}
	hint, err := b.deps.Explainer.ExplainMistake(ctx, *word, answer)
	if err != nil {
		log.Printf("Failed to generate hint for %s: %v", word.Word, err)
		return
	}
	b.send(chatID, "Hint: "+hint)
}

// handleDocument imports an uploaded vocabulary file (admins only).
func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	b.mu.Lock()
	awaiting := b.awaitingUpload[chatID]
	delete(b.awaitingUpload, chatID)
	b.mu.Unlock()
	if !awaiting {
		return
	}

	url, err := b.api.GetFileDirectURL(msg.Document.FileID)
	if err != nil {
		log.Printf("Failed to resolve uploaded file for chat %d: %v", chatID, err)
		b.send(chatID, "Could not download that file.")
		return
	}

	path, err := downloadToTemp(ctx, url, msg.Document.FileName)
	if err != nil {
		log.Printf("Failed to download uploaded file for chat %d: %v", chatID, err)
		b.send(chatID, "Could not download that file.")
		return
	}
	defer os.Remove(path)

	config := excel.DefaultImportConfig()
	config.FilePath = path
	result, err := b.importer.ImportWords(ctx, config)
	if err != nil {
		log.Printf("Import failed for chat %d: %v", chatID, err)
		b.send(chatID, "Import failed: "+err.Error())
		return
	}

	summary := fmt.Sprintf("Import finished: %d created, %d updated, %d skipped.",
		result.Created, result.Updated, result.Skipped)
	if len(result.Errors) > 0 {
		summary += fmt.Sprintf(" %d rows had errors.", len(result.Errors))
	}
	b.send(chatID, summary)
}

// ownerID maps a Telegram chat to the review store's owner key.
func ownerID(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// downloadToTemp fetches a Telegram file URL into a temp file, keeping
// the original extension so the importer can dispatch on it.
func downloadToTemp(ctx context.Context, url, fileName string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	f, err := os.CreateTemp("", "upload-*"+filepath.Ext(fileName))
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
