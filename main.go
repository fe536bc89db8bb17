package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/example/lingobot/internal/ai"
	"github.com/example/lingobot/internal/bot"
	"github.com/example/lingobot/internal/database"
	"github.com/example/lingobot/internal/excel"
	"github.com/example/lingobot/internal/pregen"
	"github.com/example/lingobot/internal/scheduler"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	reviews := database.NewReviewRepository(db)
	vocab := database.NewVocabRepository(db)
	questions := database.NewQuestionRepository(db)
	cache := database.NewSessionCacheRepository(db)

	queue := pregen.New(pregenWorkers())
	defer queue.Stop()

	// Optional one-shot vocabulary load at startup.
	if path := os.Getenv("IMPORT_FILE"); path != "" {
		config := excel.DefaultImportConfig()
		config.FilePath = path
		result, err := excel.NewImporter(vocab).ImportWords(ctx, config)
		if err != nil {
			log.Fatalf("Failed to import %s: %v", path, err)
		}
		log.Printf("Imported %s: %d created, %d updated, %d skipped, %d errors",
			path, result.Created, result.Updated, result.Skipped, len(result.Errors))
	}

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

	explainer, err := ai.New()
	if err != nil {
		log.Printf("AI explanations disabled: %v", err)
		explainer = nil
	}

	b, err := bot.New(token, bot.Deps{
		Reviews:   reviews,
		Vocab:     vocab,
		Questions: questions,
		Cache:     cache,
		Pregen:    queue,
		Explainer: explainer,
	})
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	reminders := scheduler.New(reviews, b)
	reminders.Start()
	defer reminders.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v", sig)
		b.Stop()
		cancel()
	}()

	log.Println("Bot started. Press Ctrl+C to stop.")
	if err := b.Start(ctx); err != nil && err != context.Canceled {
		log.Printf("Bot error: %v", err)
	}
	log.Println("Bot stopped")
}

func pregenWorkers() int {
	if v := os.Getenv("PREGEN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return pregen.DefaultWorkers
}
