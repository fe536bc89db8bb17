package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/lingobot/internal/ai"
	"github.com/example/lingobot/internal/database"
	"github.com/example/lingobot/internal/excel"
	"github.com/example/lingobot/internal/pregen"
	"github.com/example/lingobot/internal/quiz"
	"github.com/example/lingobot/internal/session"
)

// MenuButton represents a button in an inline menu.
type MenuButton struct {
	Text         string
	CallbackData string
}

func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// Deps collects the collaborators the bot needs.
type Deps struct {
	Reviews   *database.ReviewRepository
	Vocab     *database.VocabRepository
	Questions *database.QuestionRepository
	Cache     *database.SessionCacheRepository
	Pregen    *pregen.Queue
	Explainer *ai.Client // nil when no API key is configured
}

// Bot serves the Telegram front end for reviews and quizzes.
type Bot struct {
	api  *tgbotapi.BotAPI
	deps Deps

	generator *quiz.Generator
	importer  *excel.Importer

	admins map[int64]bool

	mu             sync.Mutex
	sessions       map[int64]*session.Session
	quizzes        map[int64]*activeQuiz
	lessonCeilings map[int64]int
	awaitingUpload map[int64]bool
}

// New creates a bot from a token and its collaborators.
func New(token string, deps Deps) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram API client: %w", err)
	}

	b := &Bot{
		api:            api,
		deps:           deps,
		generator:      quiz.NewGenerator(),
		importer:       excel.NewImporter(deps.Vocab),
		admins:         make(map[int64]bool),
		sessions:       make(map[int64]*session.Session),
		quizzes:        make(map[int64]*activeQuiz),
		lessonCeilings: make(map[int64]int),
		awaitingUpload: make(map[int64]bool),
	}

	if adminIDs := os.Getenv("ADMIN_USER_IDS"); adminIDs != "" {
		for _, idStr := range strings.Split(adminIDs, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
			if err != nil {
				log.Printf("Warning: invalid admin user ID: %s", idStr)
				continue
			}
			b.admins[id] = true
		}
	}

	return b, nil
}

// Start runs the long-polling update loop until the context is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	log.Printf("Authorized as @%s", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// Stop shuts down the update channel.
func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
}

// SendReminder tells an owner how many items are waiting. Owner IDs are
// decimal Telegram chat IDs.
func (b *Bot) SendReminder(ownerID string, count int) error {
	chatID, err := strconv.ParseInt(ownerID, 10, 64)
	if err != nil {
		return fmt.Errorf("owner ID %q is not a chat ID: %w", ownerID, err)
	}

	text := fmt.Sprintf("You have %d items due for review. Send /review to start.", count)
	return b.send(chatID, text)
}

func (b *Bot) send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	_, err := b.api.Send(msg)
	return err
}

// lessonCeiling returns the chat's configured lesson ceiling, defaulting
// to the first lesson.
func (b *Bot) lessonCeiling(chatID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.lessonCeilings[chatID]; ok {
		return c
	}
	return 1
}

// setLessonCeiling records the chat's new lesson and returns the lesson
// whose pre-generated quizzes should be cleared, or 0 when nothing
// changed. A chat that never set a lesson was implicitly on lesson 1.
func (b *Bot) setLessonCeiling(chatID int64, n int) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	previous, ok := b.lessonCeilings[chatID]
	if !ok {
		previous = 1
	}
	b.lessonCeilings[chatID] = n
	if previous == n {
		return 0
	}
	return previous
}
