package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the sqlx connection together with the backend type, which a
// few statements need to branch on (RETURNING support, time functions).
type DB struct {
	*sqlx.DB
	Type string // "sqlite" or "postgres"
}

// Connect opens the database selected by DB_TYPE. SQLite is the default
// and stores its file under data/; postgres expects DATABASE_URL.
func Connect() (*DB, error) {
	dbType := os.Getenv("DB_TYPE")
	if dbType == "" {
		dbType = "sqlite"
	}

	var conn *sqlx.DB
	var err error

	switch dbType {
	case "sqlite":
		dataDir := "data"
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		conn, err = sqlx.Connect("sqlite3", filepath.Join(dataDir, "lingobot.db"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
		}
		if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		// SQLite doesn't support multiple writers
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	case "postgres":
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			return nil, fmt.Errorf("DATABASE_URL is not set")
		}
		conn, err = sqlx.Connect("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE: %s", dbType)
	}

	db := &DB{DB: conn, Type: dbType}
	if err := db.initializeSchema(); err != nil {
		return nil, err
	}
	return db, nil
}

// initializeSchema creates the tables if they don't exist.
func (db *DB) initializeSchema() error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.Type == "postgres" {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS vocab_words (
			id TEXT PRIMARY KEY,
			word TEXT NOT NULL,
			meaning TEXT NOT NULL,
			lesson INTEGER NOT NULL,
			part_of_speech TEXT DEFAULT '',
			grammar TEXT DEFAULT '',
			frequency_tier INTEGER DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(word, lesson)
		)`,
		`CREATE TABLE IF NOT EXISTS static_questions (
			id TEXT PRIMARY KEY,
			lesson INTEGER NOT NULL,
			type TEXT NOT NULL,
			prompt TEXT NOT NULL,
			options TEXT DEFAULT '[]',
			answer TEXT DEFAULT '',
			answer_pairs TEXT DEFAULT '[]',
			explanation TEXT DEFAULT ''
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS review_items (
			id %s,
			owner_id TEXT NOT NULL,
			lesson INTEGER NOT NULL,
			question_id TEXT NOT NULL DEFAULT '',
			vocab_word_id TEXT NOT NULL DEFAULT '',
			question_type TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT 'learning',
			due_at TIMESTAMP NOT NULL,
			last_reviewed_at TIMESTAMP,
			interval_days INTEGER NOT NULL DEFAULT 0,
			streak INTEGER NOT NULL DEFAULT 0,
			lapses INTEGER NOT NULL DEFAULT 0,
			last_result TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`, serial),
		// A regular item is unique per question, a vocabulary item per
		// word. Two templates touching the same word share one item.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_review_items_question
			ON review_items(owner_id, lesson, question_id)
			WHERE vocab_word_id = ''`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_review_items_word
			ON review_items(owner_id, lesson, vocab_word_id)
			WHERE vocab_word_id != ''`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS review_events (
			id %s,
			owner_id TEXT NOT NULL,
			lesson INTEGER NOT NULL,
			question_id TEXT NOT NULL DEFAULT '',
			review_item_id INTEGER NOT NULL,
			result TEXT NOT NULL,
			answer TEXT NOT NULL DEFAULT '',
			occurred_at TIMESTAMP NOT NULL
		)`, serial),
		`CREATE TABLE IF NOT EXISTS session_cache (
			cache_key TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
