package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Service owns the gate-then-commit protocol over a Storage backend: load the
// record, roll the daily counter over, evaluate entitlement, and commit usage
// after the gated action succeeded. Presentation code never touches Storage
// directly.
type Service struct {
	storage   Storage
	evaluator *Evaluator
	logger    Logger
	metrics   Metrics
}

// ServiceConfig holds optional Service collaborators.
type ServiceConfig struct {
	// Logger is used for structured logging (default: NoopLogger)
	Logger Logger

	// Metrics tracks entitlement operations (default: NoopMetrics)
	Metrics Metrics
}

// NewService creates a Service over the given storage and evaluator.
func NewService(storage Storage, evaluator *Evaluator, config ServiceConfig) (*Service, error) {
	if storage == nil {
		return nil, ErrStorageUnavailable
	}
	if evaluator == nil {
		return nil, errors.New("evaluator is required")
	}
	if config.Logger == nil {
		config.Logger = &NoopLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &NoopMetrics{}
	}
	return &Service{
		storage:   storage,
		evaluator: evaluator,
		logger:    config.Logger,
		metrics:   config.Metrics,
	}, nil
}

// Check loads the session's record, applies the daily rollover and evaluates
// entitlement. The rolled-over record is persisted only when the rollover
// actually changed it. The record is returned alongside the verdict so
// callers can report quota standing without a second load.
func (s *Service) Check(ctx context.Context, sessionID string) (*Record, error) {
	rec, err := s.loadOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	rolled, changed := s.evaluator.Rollover(*rec)
	if changed {
		if err := s.saveRecord(ctx, sessionID, &rolled); err != nil {
			return nil, err
		}
		s.logger.Debug("daily usage reset",
			Field{Key: "session", Value: sessionID},
			Field{Key: "reset_date", Value: rolled.LastResetDate})
	}

	if err := s.evaluator.Explain(rolled); err != nil {
		s.metrics.RecordCheck(rolled.Tier, false)
		s.metrics.RecordDenied(rolled.Tier, denialReason(err))
		s.logger.Info("entitlement denied",
			Field{Key: "session", Value: sessionID},
			Field{Key: "tier", Value: rolled.Tier},
			Field{Key: "reason", Value: denialReason(err)})
		return &rolled, err
	}

	s.metrics.RecordCheck(rolled.Tier, true)
	return &rolled, nil
}

// Commit records one unit of usage against the session. It assumes a prior
// successful Check in the same request; it does not re-verify entitlement.
func (s *Service) Commit(ctx context.Context, sessionID string) (*Record, error) {
	rec, err := s.loadOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	rolled, _ := s.evaluator.Rollover(*rec)
	updated := s.evaluator.RecordUsage(rolled)
	if err := s.saveRecord(ctx, sessionID, &updated); err != nil {
		return nil, err
	}

	s.metrics.RecordCommit(updated.Tier)
	s.logger.Debug("usage committed",
		Field{Key: "session", Value: sessionID},
		Field{Key: "tier", Value: updated.Tier},
		Field{Key: "daily_usage", Value: updated.DailyUsage})
	return &updated, nil
}

// Upgrade moves the session to a new tier for durationDays, recording the
// external subscription reference. Payment success is the caller's
// precondition (webhook-driven); nothing is validated here.
func (s *Service) Upgrade(ctx context.Context, sessionID, tierID string, durationDays int, subscriptionID string) (*Record, error) {
	rec, err := s.loadOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	previous := rec.Tier
	updated := s.evaluator.ApplyUpgrade(*rec, tierID, durationDays)
	if subscriptionID != "" {
		updated.SubscriptionID = subscriptionID
	}
	if err := s.saveRecord(ctx, sessionID, &updated); err != nil {
		return nil, err
	}

	s.metrics.RecordUpgrade(previous, tierID)
	s.logger.Info("tier changed",
		Field{Key: "session", Value: sessionID},
		Field{Key: "from", Value: previous},
		Field{Key: "to", Value: tierID})
	return &updated, nil
}

// Downgrade drops the session back to the default tier with no expiry,
// keeping the usage counter as-is. Used when the external subscription is
// deleted.
func (s *Service) Downgrade(ctx context.Context, sessionID string) (*Record, error) {
	rec, err := s.loadOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	previous := rec.Tier
	updated := *rec
	updated.Tier = s.evaluator.DefaultRecord().Tier
	updated.Status = StatusActive
	updated.ExpiresAt = nil
	updated.SubscriptionID = ""
	if err := s.saveRecord(ctx, sessionID, &updated); err != nil {
		return nil, err
	}

	s.metrics.RecordUpgrade(previous, updated.Tier)
	s.logger.Info("tier changed",
		Field{Key: "session", Value: sessionID},
		Field{Key: "from", Value: previous},
		Field{Key: "to", Value: updated.Tier})
	return &updated, nil
}

// Cancel marks the session's subscription as cancelled without touching the
// tier, so the record keeps its history until expiry.
func (s *Service) Cancel(ctx context.Context, sessionID string) (*Record, error) {
	rec, err := s.loadOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	updated := *rec
	updated.Status = StatusCancelled
	if err := s.saveRecord(ctx, sessionID, &updated); err != nil {
		return nil, err
	}
	s.logger.Info("subscription cancelled", Field{Key: "session", Value: sessionID})
	return &updated, nil
}

// Quota reports the session's current quota standing after rollover.
func (s *Service) Quota(ctx context.Context, sessionID string) (Quota, error) {
	rec, err := s.loadOrCreate(ctx, sessionID)
	if err != nil {
		return Quota{}, err
	}
	rolled, changed := s.evaluator.Rollover(*rec)
	if changed {
		if err := s.saveRecord(ctx, sessionID, &rolled); err != nil {
			return Quota{}, err
		}
	}
	return s.evaluator.Quota(rolled), nil
}

// Preferences returns the session's preferences, defaulting to English.
func (s *Service) Preferences(ctx context.Context, sessionID string) (*Preferences, error) {
	start := time.Now()
	prefs, err := s.storage.LoadPreferences(ctx, sessionID)
	s.metrics.RecordStorageOperation("load_preferences", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	if prefs == nil {
		return &Preferences{Language: "en"}, nil
	}
	return prefs, nil
}

// SetPreferences stores the session's preferences.
func (s *Service) SetPreferences(ctx context.Context, sessionID string, prefs *Preferences) error {
	start := time.Now()
	err := s.storage.SavePreferences(ctx, sessionID, prefs)
	s.metrics.RecordStorageOperation("save_preferences", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

// History returns the session's analysis history, newest first.
func (s *Service) History(ctx context.Context, sessionID string) ([]HistoryEntry, error) {
	start := time.Now()
	entries, err := s.storage.ListHistory(ctx, sessionID)
	s.metrics.RecordStorageOperation("list_history", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

// AppendHistory adds one analysis to the session's history.
func (s *Service) AppendHistory(ctx context.Context, sessionID string, entry *HistoryEntry) error {
	start := time.Now()
	err := s.storage.AppendHistory(ctx, sessionID, entry)
	s.metrics.RecordStorageOperation("append_history", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// SetFavorite flips the favorite flag on one history entry.
func (s *Service) SetFavorite(ctx context.Context, sessionID, entryID string, favorite bool) error {
	start := time.Now()
	err := s.storage.SetFavorite(ctx, sessionID, entryID, favorite)
	s.metrics.RecordStorageOperation("set_favorite", time.Since(start), err)
	return err
}

// DeleteHistory removes one history entry.
func (s *Service) DeleteHistory(ctx context.Context, sessionID, entryID string) error {
	start := time.Now()
	err := s.storage.DeleteHistory(ctx, sessionID, entryID)
	s.metrics.RecordStorageOperation("delete_history", time.Since(start), err)
	return err
}

// loadOrCreate loads the session's record, falling back to the default free
// record on first use. The default is persisted immediately so later loads
// observe the same reset date.
func (s *Service) loadOrCreate(ctx context.Context, sessionID string) (*Record, error) {
	start := time.Now()
	rec, err := s.storage.LoadRecord(ctx, sessionID)
	s.metrics.RecordStorageOperation("load_record", time.Since(start), err)

	if errors.Is(err, ErrRecordNotFound) {
		fresh := s.evaluator.DefaultRecord()
		if err := s.saveRecord(ctx, sessionID, &fresh); err != nil {
			return nil, err
		}
		return &fresh, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}
	return rec, nil
}

func (s *Service) saveRecord(ctx context.Context, sessionID string, rec *Record) error {
	start := time.Now()
	err := s.storage.SaveRecord(ctx, sessionID, rec)
	s.metrics.RecordStorageOperation("save_record", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

func denialReason(err error) string {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrSubscriptionInactive):
		return "inactive"
	case errors.Is(err, ErrUnknownTier):
		return "unknown_tier"
	default:
		return "unknown"
	}
}
