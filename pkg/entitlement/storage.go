package entitlement

import "context"

// Storage is the persistence contract for session state: one usage record,
// one preferences blob and one history list per session. Implementations are
// pure storage; no entitlement logic lives behind this interface.
type Storage interface {
	// LoadRecord retrieves the session's usage record.
	// Returns ErrRecordNotFound when the session has no persisted state.
	LoadRecord(ctx context.Context, sessionID string) (*Record, error)

	// SaveRecord stores the session's usage record, replacing any
	// previous value. save(load()) must round-trip unchanged.
	SaveRecord(ctx context.Context, sessionID string, rec *Record) error

	// LoadPreferences retrieves the session's preferences, or nil when
	// none were saved.
	LoadPreferences(ctx context.Context, sessionID string) (*Preferences, error)

	// SavePreferences stores the session's preferences.
	SavePreferences(ctx context.Context, sessionID string, prefs *Preferences) error

	// ListHistory returns the session's analysis history, newest first.
	ListHistory(ctx context.Context, sessionID string) ([]HistoryEntry, error)

	// AppendHistory adds an entry to the session's history.
	AppendHistory(ctx context.Context, sessionID string, entry *HistoryEntry) error

	// SetFavorite flips the favorite flag on one history entry.
	// Returns ErrHistoryNotFound for an unknown id.
	SetFavorite(ctx context.Context, sessionID, entryID string, favorite bool) error

	// DeleteHistory removes one history entry.
	// Returns ErrHistoryNotFound for an unknown id.
	DeleteHistory(ctx context.Context, sessionID, entryID string) error
}
