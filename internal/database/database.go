package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"boothnik/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB is the SQLite-backed reservation ledger. SQLite serializes writers on
// its own; the keyed mutexes additionally pin the check-then-write sections
// to one goroutine per (booth, date) partition so the overlap re-check and
// the insert stay atomic within the process.
type DB struct {
	*sql.DB
	logger *zerolog.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Одно соединение: sqlite всё равно сериализует записи, а :memory: с
	// пулом дал бы отдельную базу на каждое соединение.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: db, logger: logger, locks: make(map[string]*sync.Mutex)}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS reservations (
            id TEXT PRIMARY KEY,
            email TEXT NOT NULL,
            student_id TEXT NOT NULL,
            booth_id INTEGER NOT NULL,
            booth_name TEXT NOT NULL,
            college TEXT NOT NULL,
            college_name TEXT,
            assigned_college TEXT NOT NULL,
            assigned_college_name TEXT,
            date TEXT NOT NULL,
            start_time TEXT NOT NULL,
            duration INTEGER NOT NULL,
            purpose TEXT,
            reminder BOOLEAN NOT NULL DEFAULT 0,
            cross_college BOOLEAN NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'confirmed',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS notify_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            reservation_id TEXT NOT NULL,
            payload TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_reservations_date ON reservations(date)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_booth_date ON reservations(booth_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_email ON reservations(email)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status)`,
		`CREATE INDEX IF NOT EXISTS idx_notify_queue_status ON notify_queue(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func partitionKey(boothID int64, date time.Time) string {
	return fmt.Sprintf("%d|%s", boothID, date.Format(models.DateLayout))
}

func (db *DB) partitionLock(key string) *sync.Mutex {
	db.locksMu.Lock()
	defer db.locksMu.Unlock()
	lock, ok := db.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		db.locks[key] = lock
	}
	return lock
}

func (db *DB) lockPartitions(keys ...string) func() {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			uniq = append(uniq, k)
		}
	}
	sort.Strings(uniq)

	locked := make([]*sync.Mutex, 0, len(uniq))
	for _, k := range uniq {
		lock := db.partitionLock(k)
		lock.Lock()
		locked = append(locked, lock)
	}
	return func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].Unlock()
		}
	}
}

func (db *DB) Close() error {
	return db.DB.Close()
}
