package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB is the sqlite store behind the schedule, member, wellness, incident, trainer
// and sync queue repositories.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serialises writers and keeps :memory: databases shared.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, logger: logger}
	if err := db.createTables(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := db.ensureMemberChatColumn(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return db, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
            id TEXT PRIMARY KEY,
            gym_id TEXT NOT NULL,
            date TEXT NOT NULL,
            title TEXT NOT NULL,
            instructor TEXT NOT NULL,
            time TEXT NOT NULL,
            duration TEXT NOT NULL,
            category TEXT NOT NULL,
            capacity INTEGER NOT NULL,
            booked INTEGER NOT NULL DEFAULT 0 CHECK (booked >= 0)
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            user_id TEXT NOT NULL,
            session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
            session_date TEXT NOT NULL,
            booked_by TEXT NOT NULL,
            created_at DATETIME NOT NULL,
            PRIMARY KEY (user_id, session_id)
        )`,
		`CREATE TABLE IF NOT EXISTS members (
            id TEXT PRIMARY KEY,
            gym_id TEXT NOT NULL,
            name TEXT NOT NULL,
            phone TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL,
            plan TEXT NOT NULL DEFAULT '',
            last_visit TEXT NOT NULL DEFAULT '',
            image TEXT NOT NULL DEFAULT '',
            expiry_date TEXT NOT NULL DEFAULT ''
        )`,
		`CREATE TABLE IF NOT EXISTS payments (
            member_id TEXT PRIMARY KEY REFERENCES members(id) ON DELETE CASCADE,
            balance REAL NOT NULL DEFAULT 0,
            payment_status TEXT NOT NULL,
            due_date TEXT NOT NULL DEFAULT '',
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS visits (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            member_id TEXT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
            visited_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS preferences (
            user_id TEXT NOT NULL,
            key TEXT NOT NULL,
            value TEXT NOT NULL,
            updated_at DATETIME NOT NULL,
            PRIMARY KEY (user_id, key)
        )`,
		`CREATE TABLE IF NOT EXISTS meal_logs (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            name TEXT NOT NULL,
            kcal INTEGER NOT NULL,
            logged_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            user_id TEXT NOT NULL,
            session_id TEXT NOT NULL,
            payload TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,
		`CREATE TABLE IF NOT EXISTS incidents (
            id TEXT PRIMARY KEY,
            gym_id TEXT NOT NULL,
            category TEXT NOT NULL,
            title TEXT NOT NULL,
            staff_id TEXT NOT NULL,
            staff_name TEXT NOT NULL,
            status TEXT NOT NULL,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS incident_notes (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            incident_id TEXT NOT NULL REFERENCES incidents(id) ON DELETE CASCADE,
            text TEXT NOT NULL,
            staff_id TEXT NOT NULL,
            staff_name TEXT NOT NULL,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS trainer_status (
            gym_id TEXT NOT NULL,
            date TEXT NOT NULL,
            name TEXT NOT NULL,
            status TEXT NOT NULL,
            updated_by TEXT NOT NULL,
            updated_at DATETIME NOT NULL,
            PRIMARY KEY (gym_id, date, name)
        )`,

		`CREATE INDEX IF NOT EXISTS idx_sessions_gym_date ON sessions(gym_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_session_id ON bookings(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_members_gym_id ON members(gym_id)`,
		`CREATE INDEX IF NOT EXISTS idx_meal_logs_user ON meal_logs(user_id, logged_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, next_retry_at)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_gym ON incidents(gym_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_incident_notes_incident ON incident_notes(incident_id, id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// ensureMemberChatColumn adds the telegram chat id to databases created before it existed.
func (db *DB) ensureMemberChatColumn() error {
	_, err := db.Exec(`ALTER TABLE members ADD COLUMN chat_id INTEGER NOT NULL DEFAULT 0`)
	if err != nil && !strings.Contains(err.Error(), "duplicate column") {
		return fmt.Errorf("failed to add members.chat_id: %w", err)
	}
	return nil
}
