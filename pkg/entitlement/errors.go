package entitlement

import "errors"

var (
	// ErrQuotaExceeded is returned when the daily limit is reached
	ErrQuotaExceeded = errors.New("daily quota exceeded")

	// ErrUnknownTier is returned when a record references a tier id that
	// is not in the catalog
	ErrUnknownTier = errors.New("unknown tier")

	// ErrSubscriptionInactive is returned when the subscription is
	// cancelled or expired
	ErrSubscriptionInactive = errors.New("subscription inactive")

	// ErrRecordNotFound is returned by storage when no record exists for
	// the session
	ErrRecordNotFound = errors.New("usage record not found")

	// ErrHistoryNotFound is returned when a history entry id does not exist
	ErrHistoryNotFound = errors.New("history entry not found")

	// ErrStorageUnavailable is returned when storage is unavailable
	ErrStorageUnavailable = errors.New("storage unavailable")
)
