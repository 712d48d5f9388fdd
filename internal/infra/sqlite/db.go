// Package sqlite provides SQLite-based persistent storage for Stride.
// Uses WAL mode for concurrent reads and crash-safe writes. States are stored
// as JSON documents next to a revision column used for compare-and-swap saves.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/stridefit/stride/internal/domain"
)

// FileName is the database file created inside the data directory.
const FileName = "stride.db"

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

var _ domain.Store = (*DB)(nil)

// Open creates or opens the SQLite database at dir/stride.db.
// Enables WAL mode and a 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, FileName)
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS streak_states (
			user_id        TEXT PRIMARY KEY,
			revision       INTEGER NOT NULL,
			current_streak INTEGER NOT NULL DEFAULT 0,
			longest_streak INTEGER NOT NULL DEFAULT 0,
			state          TEXT NOT NULL,
			updated_at     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_streak_updated ON streak_states(updated_at)`,

		`CREATE TABLE IF NOT EXISTS activation_profiles (
			id         TEXT PRIMARY KEY,
			revision   INTEGER NOT NULL,
			anonymous  BOOLEAN NOT NULL DEFAULT 0,
			score      INTEGER NOT NULL DEFAULT 0,
			activated  BOOLEAN NOT NULL DEFAULT 0,
			profile    TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activation_activated ON activation_profiles(activated)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Stats ──────────────────────────────────────────────────────────────────

// Stats summarizes stored rows.
type Stats struct {
	StreakUsers       int `json:"streak_users"`
	ActiveStreaks     int `json:"active_streaks"`
	Profiles          int `json:"profiles"`
	AnonymousProfiles int `json:"anonymous_profiles"`
	ActivatedProfiles int `json:"activated_profiles"`
}

// Stats counts stored states and profiles.
func (d *DB) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(current_streak > 0), 0) FROM streak_states`,
	).Scan(&s.StreakUsers, &s.ActiveStreaks)
	if err != nil {
		return s, domain.NewStorageError("stats", err)
	}
	err = d.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(anonymous), 0), COALESCE(SUM(activated), 0) FROM activation_profiles`,
	).Scan(&s.Profiles, &s.AnonymousProfiles, &s.ActivatedProfiles)
	if err != nil {
		return s, domain.NewStorageError("stats", err)
	}
	return s, nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// casResult maps a compare-and-swap write to ErrConflict when nothing matched.
func casResult(op string, res sql.Result, err error) error {
	if err != nil {
		return domain.NewStorageError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.NewStorageError(op, err)
	}
	if n == 0 {
		return domain.ErrConflict
	}
	return nil
}

func loadErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return domain.NewStorageError(op, err)
}
