package entitlement

import (
	"encoding/json"
	"time"
)

// DateLayout is the calendar-date encoding used for daily rollover tracking.
const DateLayout = "2006-01-02"

// Status represents the lifecycle state of a subscription.
type Status string

const (
	// StatusActive means the subscription is in good standing
	StatusActive Status = "active"
	// StatusCancelled means the user cancelled but the record is retained
	StatusCancelled Status = "cancelled"
	// StatusExpired means the paid period ran out
	StatusExpired Status = "expired"
)

// Record is the per-session usage record: the user's tier, today's usage
// counter and the subscription state attached to it.
type Record struct {
	// Tier references a catalog.Tier by id
	Tier string `json:"tier"`

	// DailyUsage counts actions taken on LastResetDate
	DailyUsage int `json:"dailyUsage"`

	// LastResetDate is the local calendar date (YYYY-MM-DD) of the last
	// counter reset
	LastResetDate string `json:"lastResetDate"`

	// Status is the subscription lifecycle state
	Status Status `json:"status"`

	// ExpiresAt, when set and in the past, overrides Status
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`

	// SubscriptionID is the external billing reference. It is opaque and
	// never interpreted locally.
	SubscriptionID string `json:"subscriptionId,omitempty"`
}

// Quota is the computed quota standing for a record, as reported to clients.
type Quota struct {
	Tier      string `json:"tier"`
	Status    Status `json:"status"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	ResetDate string `json:"reset_date"`
}

// Preferences holds the per-session settings outside the usage record.
type Preferences struct {
	Language string `json:"language"`
}

// HistoryEntry is one saved analysis in the session's history list.
// The only invariant is a unique ID per session.
type HistoryEntry struct {
	ID         string          `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	Platform   string          `json:"platform"`
	URL        string          `json:"url,omitempty"`
	ManualText string          `json:"manualText,omitempty"`
	Transcript string          `json:"transcript"`
	Analysis   json.RawMessage `json:"analysis"`
	Favorite   bool            `json:"isFavorite"`
}
