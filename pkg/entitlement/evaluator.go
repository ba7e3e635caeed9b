package entitlement

import (
	"time"

	"github.com/scriptingcat/scriptingcat/pkg/catalog"
)

// Evaluator decides permission and computes record transitions against a tier
// catalog. All methods are pure: they never touch storage and return new
// records instead of mutating their input.
type Evaluator struct {
	catalog *catalog.Catalog
	now     func() time.Time
}

// NewEvaluator creates an evaluator over the given catalog.
// The now function may be nil, in which case time.Now is used.
func NewEvaluator(c *catalog.Catalog, now func() time.Time) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{catalog: c, now: now}
}

// DefaultRecord returns the record a brand-new session starts with:
// free tier, zero usage, reset date of today, active.
func (e *Evaluator) DefaultRecord() Record {
	return Record{
		Tier:          e.catalog.DefaultTier().ID,
		DailyUsage:    0,
		LastResetDate: e.today(),
		Status:        StatusActive,
	}
}

// Rollover resets the daily counter when the record's reset date is not
// today. The second return value reports whether anything changed, so callers
// can skip a redundant persistence write. Applying it twice on the same day
// is a no-op after the first.
func (e *Evaluator) Rollover(rec Record) (Record, bool) {
	today := e.today()
	if rec.LastResetDate == today {
		return rec, false
	}
	rec.DailyUsage = 0
	rec.LastResetDate = today
	return rec, true
}

// IsEntitled reports whether the record currently permits a quota-gated
// action: known tier, usage below the tier's daily limit, active status, and
// no expiry in the past. An unknown tier id is never entitled; it is a
// verdict, not an error.
func (e *Evaluator) IsEntitled(rec Record) bool {
	tier, ok := e.catalog.Lookup(rec.Tier)
	if !ok {
		return false
	}
	if rec.DailyUsage >= tier.DailyLimit {
		return false
	}
	if rec.Status != StatusActive {
		return false
	}
	if rec.ExpiresAt != nil && !rec.ExpiresAt.After(e.now()) {
		return false
	}
	return true
}

// Explain returns the sentinel error describing why a record is not
// entitled, or nil when it is. Quota exhaustion is only reported when the
// subscription itself is usable, so callers can route the user to the right
// remedy (upgrade vs. reactivate).
func (e *Evaluator) Explain(rec Record) error {
	tier, ok := e.catalog.Lookup(rec.Tier)
	if !ok {
		return ErrUnknownTier
	}
	if rec.Status != StatusActive {
		return ErrSubscriptionInactive
	}
	if rec.ExpiresAt != nil && !rec.ExpiresAt.After(e.now()) {
		return ErrSubscriptionInactive
	}
	if rec.DailyUsage >= tier.DailyLimit {
		return ErrQuotaExceeded
	}
	return nil
}

// Remaining returns how many actions are left today: max(0, limit - used).
// An unknown tier has no quota, so remaining is 0. DailyUsage is never
// clamped; a downgrade below current usage simply floors remaining at zero.
func (e *Evaluator) Remaining(rec Record) int {
	tier, ok := e.catalog.Lookup(rec.Tier)
	if !ok {
		return 0
	}
	remaining := tier.DailyLimit - rec.DailyUsage
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RecordUsage returns a copy with the daily counter incremented by one.
// It does not check entitlement: callers gate first, then commit after the
// action succeeds. The two steps are deliberately not atomic (single
// client-side writer per session).
func (e *Evaluator) RecordUsage(rec Record) Record {
	rec.DailyUsage++
	return rec
}

// ApplyUpgrade returns a copy moved to the new tier: status active, expiry
// set durationDays from now. Payment success is the caller's precondition;
// nothing is validated here.
func (e *Evaluator) ApplyUpgrade(rec Record, tierID string, durationDays int) Record {
	expires := e.now().Add(time.Duration(durationDays) * 24 * time.Hour)
	rec.Tier = tierID
	rec.Status = StatusActive
	rec.ExpiresAt = &expires
	return rec
}

// Quota computes the reportable quota standing for a record.
func (e *Evaluator) Quota(rec Record) Quota {
	limit := 0
	if tier, ok := e.catalog.Lookup(rec.Tier); ok {
		limit = tier.DailyLimit
	}
	return Quota{
		Tier:      rec.Tier,
		Status:    rec.Status,
		Used:      rec.DailyUsage,
		Limit:     limit,
		Remaining: e.Remaining(rec),
		ResetDate: rec.LastResetDate,
	}
}

func (e *Evaluator) today() string {
	return e.now().Format(DateLayout)
}
