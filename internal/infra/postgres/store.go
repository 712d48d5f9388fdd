// Package postgres implements domain.Store on PostgreSQL with a pgx pool.
// The schema is managed by goose from migrations embedded in the binary.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/stridefit/stride/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PoolConfig tunes the connection pool.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultPoolConfig returns pool defaults suitable for a single API instance.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// Store is a PostgreSQL-backed domain.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ domain.Store = (*Store)(nil)

// Open connects, pings and migrates.
func Open(ctx context.Context, dsn string, cfg PoolConfig) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pcfg.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pcfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies pending goose migrations.
func (s *Store) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ─── Streak States ──────────────────────────────────────────────────────────

func (s *Store) LoadStreakState(ctx context.Context, userID string) (domain.StreakState, error) {
	var (
		st       domain.StreakState
		revision int64
		body     []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT revision, state FROM streak_states WHERE user_id = $1`, userID,
	).Scan(&revision, &body)
	if err != nil {
		return st, loadErr("load streak", err)
	}
	if err := json.Unmarshal(body, &st); err != nil {
		return st, domain.NewStorageError("decode streak", err)
	}
	st.Revision = revision
	return st, nil
}

func (s *Store) SaveStreakState(ctx context.Context, userID string, st domain.StreakState) error {
	expected := st.Revision
	st.Revision = expected + 1
	body, err := json.Marshal(st)
	if err != nil {
		return domain.NewStorageError("encode streak", err)
	}

	if expected == 0 {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO streak_states (user_id, revision, current_streak, longest_streak, state, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (user_id) DO NOTHING`,
			userID, st.Revision, st.CurrentStreak, st.LongestStreak, body, st.UpdatedAt,
		)
		return casResult("insert streak", tag, err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE streak_states
		 SET revision = $1, current_streak = $2, longest_streak = $3, state = $4, updated_at = $5
		 WHERE user_id = $6 AND revision = $7`,
		st.Revision, st.CurrentStreak, st.LongestStreak, body, st.UpdatedAt, userID, expected,
	)
	return casResult("update streak", tag, err)
}

// ─── Activation Profiles ────────────────────────────────────────────────────

func (s *Store) LoadActivationProfile(ctx context.Context, id string) (domain.ActivationProfile, error) {
	var (
		p        domain.ActivationProfile
		revision int64
		body     []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT revision, profile FROM activation_profiles WHERE id = $1`, id,
	).Scan(&revision, &body)
	if err != nil {
		return p, loadErr("load profile", err)
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return p, domain.NewStorageError("decode profile", err)
	}
	p.Revision = revision
	return p, nil
}

func (s *Store) SaveActivationProfile(ctx context.Context, id string, p domain.ActivationProfile) error {
	expected := p.Revision
	p.Revision = expected + 1
	body, err := json.Marshal(p)
	if err != nil {
		return domain.NewStorageError("encode profile", err)
	}

	if expected == 0 {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO activation_profiles (id, revision, anonymous, score, activated, profile, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (id) DO NOTHING`,
			id, p.Revision, p.Anonymous, p.ActivationScore, p.IsActivated, body, p.UpdatedAt,
		)
		return casResult("insert profile", tag, err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE activation_profiles
		 SET revision = $1, anonymous = $2, score = $3, activated = $4, profile = $5, updated_at = $6
		 WHERE id = $7 AND revision = $8`,
		p.Revision, p.Anonymous, p.ActivationScore, p.IsActivated, body, p.UpdatedAt, id, expected,
	)
	return casResult("update profile", tag, err)
}

func (s *Store) DeleteActivationProfile(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM activation_profiles WHERE id = $1`, id)
	if err != nil {
		return domain.NewStorageError("delete profile", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func casResult(op string, tag pgconn.CommandTag, err error) error {
	if err != nil {
		return domain.NewStorageError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func loadErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return domain.NewStorageError(op, err)
}
