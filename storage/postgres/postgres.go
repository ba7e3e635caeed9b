// Package postgres provides a PostgreSQL implementation of the
// entitlement.Storage interface. Records and preferences are upserted per
// session; history rows live in their own table with a per-session cap
// enforced at insert time.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scriptingcat/scriptingcat/pkg/entitlement"
)

// Storage implements entitlement.Storage using PostgreSQL
type Storage struct {
	pool   *pgxpool.Pool
	config Config
}

// Config holds PostgreSQL storage configuration
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// HistoryMax caps the number of history rows kept per session
	// (0 = unlimited)
	HistoryMax int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		HistoryMax:      100,
	}
}

// New creates a new PostgreSQL storage adapter
func New(ctx context.Context, config Config) (*Storage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Storage{pool: pool, config: config}, nil
}

// Close closes the PostgreSQL connection pool
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the storage tables when they do not exist yet
func (s *Storage) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS session_records (
			session_id      TEXT PRIMARY KEY,
			tier            TEXT NOT NULL,
			daily_usage     INTEGER NOT NULL DEFAULT 0,
			last_reset_date TEXT NOT NULL,
			status          TEXT NOT NULL,
			expires_at      TIMESTAMPTZ,
			subscription_id TEXT NOT NULL DEFAULT '',
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS session_preferences (
			session_id TEXT PRIMARY KEY,
			language   TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS session_history (
			id          TEXT PRIMARY KEY,
			session_id  TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			platform    TEXT NOT NULL DEFAULT '',
			url         TEXT NOT NULL DEFAULT '',
			manual_text TEXT NOT NULL DEFAULT '',
			transcript  TEXT NOT NULL DEFAULT '',
			analysis    JSONB,
			is_favorite BOOLEAN NOT NULL DEFAULT FALSE
		);

		CREATE INDEX IF NOT EXISTS session_history_session_idx
			ON session_history (session_id, created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// LoadRecord implements entitlement.Storage
func (s *Storage) LoadRecord(ctx context.Context, sessionID string) (*entitlement.Record, error) {
	var rec entitlement.Record
	var expiresAt *time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT tier, daily_usage, last_reset_date, status, expires_at, subscription_id
			FROM session_records WHERE session_id = $1`,
		sessionID).Scan(
		&rec.Tier,
		&rec.DailyUsage,
		&rec.LastResetDate,
		&rec.Status,
		&expiresAt,
		&rec.SubscriptionID,
	)

	if err == pgx.ErrNoRows {
		return nil, entitlement.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}

	rec.ExpiresAt = expiresAt
	return &rec, nil
}

// SaveRecord implements entitlement.Storage
func (s *Storage) SaveRecord(ctx context.Context, sessionID string, rec *entitlement.Record) error {
	if rec == nil || sessionID == "" {
		return fmt.Errorf("invalid record")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO session_records
				(session_id, tier, daily_usage, last_reset_date, status, expires_at, subscription_id, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (session_id) DO UPDATE SET
				tier = EXCLUDED.tier,
				daily_usage = EXCLUDED.daily_usage,
				last_reset_date = EXCLUDED.last_reset_date,
				status = EXCLUDED.status,
				expires_at = EXCLUDED.expires_at,
				subscription_id = EXCLUDED.subscription_id,
				updated_at = EXCLUDED.updated_at`,
		sessionID, rec.Tier, rec.DailyUsage, rec.LastResetDate,
		rec.Status, rec.ExpiresAt, rec.SubscriptionID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// LoadPreferences implements entitlement.Storage
func (s *Storage) LoadPreferences(ctx context.Context, sessionID string) (*entitlement.Preferences, error) {
	var prefs entitlement.Preferences

	err := s.pool.QueryRow(ctx,
		`SELECT language FROM session_preferences WHERE session_id = $1`,
		sessionID).Scan(&prefs.Language)

	if err == pgx.ErrNoRows {
		return nil, nil // No preferences yet is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	return &prefs, nil
}

// SavePreferences implements entitlement.Storage
func (s *Storage) SavePreferences(ctx context.Context, sessionID string, prefs *entitlement.Preferences) error {
	if prefs == nil || sessionID == "" {
		return fmt.Errorf("invalid preferences")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO session_preferences (session_id, language, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (session_id) DO UPDATE SET
				language = EXCLUDED.language,
				updated_at = EXCLUDED.updated_at`,
		sessionID, prefs.Language, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// ListHistory implements entitlement.Storage
func (s *Storage) ListHistory(ctx context.Context, sessionID string) ([]entitlement.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, created_at, platform, url, manual_text, transcript, analysis, is_favorite
			FROM session_history
			WHERE session_id = $1
			ORDER BY created_at DESC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := make([]entitlement.HistoryEntry, 0)
	for rows.Next() {
		var entry entitlement.HistoryEntry
		var analysis []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.Timestamp,
			&entry.Platform,
			&entry.URL,
			&entry.ManualText,
			&entry.Transcript,
			&analysis,
			&entry.Favorite,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entry.Analysis = json.RawMessage(analysis)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}
	return entries, nil
}

// AppendHistory implements entitlement.Storage. Rows beyond the configured
// cap are dropped oldest-first in the same transaction.
func (s *Storage) AppendHistory(ctx context.Context, sessionID string, entry *entitlement.HistoryEntry) error {
	if entry == nil || entry.ID == "" {
		return fmt.Errorf("invalid history entry")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO session_history
				(id, session_id, created_at, platform, url, manual_text, transcript, analysis, is_favorite)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, sessionID, entry.Timestamp, entry.Platform, entry.URL,
		entry.ManualText, entry.Transcript, []byte(entry.Analysis), entry.Favorite,
	)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	if s.config.HistoryMax > 0 {
		_, err = tx.Exec(ctx,
			`DELETE FROM session_history
				WHERE session_id = $1 AND id NOT IN (
					SELECT id FROM session_history
					WHERE session_id = $1
					ORDER BY created_at DESC
					LIMIT $2
				)`,
			sessionID, s.config.HistoryMax)
		if err != nil {
			return fmt.Errorf("failed to trim history: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// SetFavorite implements entitlement.Storage
func (s *Storage) SetFavorite(ctx context.Context, sessionID, entryID string, favorite bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE session_history SET is_favorite = $1
			WHERE session_id = $2 AND id = $3`,
		favorite, sessionID, entryID)
	if err != nil {
		return fmt.Errorf("failed to set favorite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entitlement.ErrHistoryNotFound
	}
	return nil
}

// DeleteHistory implements entitlement.Storage
func (s *Storage) DeleteHistory(ctx context.Context, sessionID, entryID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM session_history
			WHERE session_id = $1 AND id = $2`,
		sessionID, entryID)
	if err != nil {
		return fmt.Errorf("failed to delete history entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entitlement.ErrHistoryNotFound
	}
	return nil
}
