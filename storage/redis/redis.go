// Package redis provides a Redis implementation of the entitlement.Storage
// interface. Records and preferences are stored as JSON strings; history is a
// newest-first list per session, mutated atomically via Lua scripts.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scriptingcat/scriptingcat/pkg/entitlement"
)

// Storage implements entitlement.Storage using Redis
type Storage struct {
	client  redis.UniversalClient
	config  Config
	scripts map[string]*redis.Script
}

// Config holds Redis storage configuration
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "scriptingcat:")
	KeyPrefix string

	// RecordTTL is the TTL for usage record keys (0 = no expiration).
	// Session records are ephemeral by nature; expiring an idle session
	// just recreates the default free record on its next visit.
	RecordTTL time.Duration

	// HistoryMax caps the number of history entries kept per session
	// (0 = unlimited)
	HistoryMax int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		KeyPrefix:  "scriptingcat:",
		RecordTTL:  30 * 24 * time.Hour,
		HistoryMax: 100,
	}
}

// New creates a new Redis storage adapter
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring
func New(client redis.UniversalClient, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	if config.KeyPrefix == "" {
		config.KeyPrefix = "scriptingcat:"
	}

	s := &Storage{
		client:  client,
		config:  config,
		scripts: make(map[string]*redis.Script),
	}

	s.loadScripts()

	return s, nil
}

// loadScripts loads and compiles Lua scripts for atomic history mutations
func (s *Storage) loadScripts() {
	// Flip the favorite flag on one entry, in place
	s.scripts["setFavorite"] = redis.NewScript(`
		local key = KEYS[1]
		local entryID = ARGV[1]
		local favorite = ARGV[2] == "1"

		local entries = redis.call('LRANGE', key, 0, -1)
		for i, raw in ipairs(entries) do
			local ok, entry = pcall(cjson.decode, raw)
			if ok and entry and entry.id == entryID then
				entry.isFavorite = favorite
				redis.call('LSET', key, i - 1, cjson.encode(entry))
				return 'ok'
			end
		end

		return 'not_found'
	`)

	// Remove one entry by id. LREM needs the exact value, so the entry is
	// first overwritten with a sentinel and then removed.
	s.scripts["deleteEntry"] = redis.NewScript(`
		local key = KEYS[1]
		local entryID = ARGV[1]

		local entries = redis.call('LRANGE', key, 0, -1)
		for i, raw in ipairs(entries) do
			local ok, entry = pcall(cjson.decode, raw)
			if ok and entry and entry.id == entryID then
				redis.call('LSET', key, i - 1, '__deleted__')
				redis.call('LREM', key, 1, '__deleted__')
				return 'ok'
			end
		end

		return 'not_found'
	`)
}

// LoadRecord implements entitlement.Storage
func (s *Storage) LoadRecord(ctx context.Context, sessionID string) (*entitlement.Record, error) {
	data, err := s.client.Get(ctx, s.recordKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, entitlement.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}

	var rec entitlement.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &rec, nil
}

// SaveRecord implements entitlement.Storage
func (s *Storage) SaveRecord(ctx context.Context, sessionID string, rec *entitlement.Record) error {
	if rec == nil || sessionID == "" {
		return fmt.Errorf("invalid record")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	if err := s.client.Set(ctx, s.recordKey(sessionID), data, s.config.RecordTTL).Err(); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// LoadPreferences implements entitlement.Storage
func (s *Storage) LoadPreferences(ctx context.Context, sessionID string) (*entitlement.Preferences, error) {
	data, err := s.client.Get(ctx, s.prefsKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // No preferences yet is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	var prefs entitlement.Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return &prefs, nil
}

// SavePreferences implements entitlement.Storage
func (s *Storage) SavePreferences(ctx context.Context, sessionID string, prefs *entitlement.Preferences) error {
	if prefs == nil || sessionID == "" {
		return fmt.Errorf("invalid preferences")
	}

	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	if err := s.client.Set(ctx, s.prefsKey(sessionID), data, s.config.RecordTTL).Err(); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// ListHistory implements entitlement.Storage
func (s *Storage) ListHistory(ctx context.Context, sessionID string) ([]entitlement.HistoryEntry, error) {
	raw, err := s.client.LRange(ctx, s.historyKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	entries := make([]entitlement.HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var entry entitlement.HistoryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// AppendHistory implements entitlement.Storage. LPUSH keeps the list
// newest-first; LTRIM enforces the configured cap.
func (s *Storage) AppendHistory(ctx context.Context, sessionID string, entry *entitlement.HistoryEntry) error {
	if entry == nil || entry.ID == "" {
		return fmt.Errorf("invalid history entry")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode history entry: %w", err)
	}

	key := s.historyKey(sessionID)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	if s.config.HistoryMax > 0 {
		pipe.LTrim(ctx, key, 0, int64(s.config.HistoryMax-1))
	}
	if s.config.RecordTTL > 0 {
		pipe.Expire(ctx, key, s.config.RecordTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// SetFavorite implements entitlement.Storage
func (s *Storage) SetFavorite(ctx context.Context, sessionID, entryID string, favorite bool) error {
	flag := "0"
	if favorite {
		flag = "1"
	}

	result, err := s.scripts["setFavorite"].Run(ctx, s.client,
		[]string{s.historyKey(sessionID)}, entryID, flag).Text()
	if err != nil {
		return fmt.Errorf("failed to set favorite: %w", err)
	}
	if result == "not_found" {
		return entitlement.ErrHistoryNotFound
	}
	return nil
}

// DeleteHistory implements entitlement.Storage
func (s *Storage) DeleteHistory(ctx context.Context, sessionID, entryID string) error {
	result, err := s.scripts["deleteEntry"].Run(ctx, s.client,
		[]string{s.historyKey(sessionID)}, entryID).Text()
	if err != nil {
		return fmt.Errorf("failed to delete history entry: %w", err)
	}
	if result == "not_found" {
		return entitlement.ErrHistoryNotFound
	}
	return nil
}

func (s *Storage) recordKey(sessionID string) string {
	return s.config.KeyPrefix + "record:" + sessionID
}

func (s *Storage) prefsKey(sessionID string) string {
	return s.config.KeyPrefix + "prefs:" + sessionID
}

func (s *Storage) historyKey(sessionID string) string {
	return s.config.KeyPrefix + "history:" + sessionID
}
