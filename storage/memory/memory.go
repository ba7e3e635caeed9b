// Package memory provides an in-memory implementation of the
// entitlement.Storage interface. This implementation is primarily intended
// for testing and development.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/scriptingcat/scriptingcat/pkg/entitlement"
)

// Storage implements entitlement.Storage using in-memory maps
type Storage struct {
	mu      sync.RWMutex
	records map[string]*entitlement.Record
	prefs   map[string]*entitlement.Preferences
	history map[string][]entitlement.HistoryEntry
}

// New creates a new in-memory storage adapter
func New() *Storage {
	return &Storage{
		records: make(map[string]*entitlement.Record),
		prefs:   make(map[string]*entitlement.Preferences),
		history: make(map[string][]entitlement.HistoryEntry),
	}
}

// LoadRecord implements entitlement.Storage
func (s *Storage) LoadRecord(ctx context.Context, sessionID string) (*entitlement.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return nil, entitlement.ErrRecordNotFound
	}

	// Return a copy to prevent external mutations
	recCopy := *rec
	return &recCopy, nil
}

// SaveRecord implements entitlement.Storage
func (s *Storage) SaveRecord(ctx context.Context, sessionID string, rec *entitlement.Record) error {
	if rec == nil || sessionID == "" {
		return fmt.Errorf("invalid record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to prevent external mutations
	recCopy := *rec
	s.records[sessionID] = &recCopy
	return nil
}

// LoadPreferences implements entitlement.Storage
func (s *Storage) LoadPreferences(ctx context.Context, sessionID string) (*entitlement.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefs, ok := s.prefs[sessionID]
	if !ok {
		return nil, nil // No preferences yet is not an error
	}

	prefsCopy := *prefs
	return &prefsCopy, nil
}

// SavePreferences implements entitlement.Storage
func (s *Storage) SavePreferences(ctx context.Context, sessionID string, prefs *entitlement.Preferences) error {
	if prefs == nil || sessionID == "" {
		return fmt.Errorf("invalid preferences")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prefsCopy := *prefs
	s.prefs[sessionID] = &prefsCopy
	return nil
}

// ListHistory implements entitlement.Storage
func (s *Storage) ListHistory(ctx context.Context, sessionID string) ([]entitlement.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[sessionID]
	out := make([]entitlement.HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// AppendHistory implements entitlement.Storage. New entries go to the front
// so ListHistory stays newest-first without sorting.
func (s *Storage) AppendHistory(ctx context.Context, sessionID string, entry *entitlement.HistoryEntry) error {
	if entry == nil || entry.ID == "" {
		return fmt.Errorf("invalid history entry")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entryCopy := *entry
	s.history[sessionID] = append([]entitlement.HistoryEntry{entryCopy}, s.history[sessionID]...)
	return nil
}

// SetFavorite implements entitlement.Storage
func (s *Storage) SetFavorite(ctx context.Context, sessionID, entryID string, favorite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.history[sessionID]
	for i := range entries {
		if entries[i].ID == entryID {
			entries[i].Favorite = favorite
			return nil
		}
	}
	return entitlement.ErrHistoryNotFound
}

// DeleteHistory implements entitlement.Storage
func (s *Storage) DeleteHistory(ctx context.Context, sessionID, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.history[sessionID]
	for i := range entries {
		if entries[i].ID == entryID {
			s.history[sessionID] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return entitlement.ErrHistoryNotFound
}

// Clear removes all data (useful for testing)
func (s *Storage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*entitlement.Record)
	s.prefs = make(map[string]*entitlement.Preferences)
	s.history = make(map[string][]entitlement.HistoryEntry)
}
