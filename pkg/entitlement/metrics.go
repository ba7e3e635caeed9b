package entitlement

import "time"

// Metrics defines the interface for tracking entitlement operations.
type Metrics interface {
	// RecordCheck records an entitlement check and its verdict.
	RecordCheck(tier string, allowed bool)

	// RecordDenied records a denied check with the denial reason
	// ("quota_exceeded", "inactive", "unknown_tier").
	RecordDenied(tier, reason string)

	// RecordCommit records a committed usage increment.
	RecordCommit(tier string)

	// RecordUpgrade records an applied tier change.
	RecordUpgrade(fromTier, toTier string)

	// RecordStorageOperation records the duration and status of a storage
	// operation.
	RecordStorageOperation(operation string, duration time.Duration, err error)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordCheck(tier string, allowed bool)                                      {}
func (n *NoopMetrics) RecordDenied(tier, reason string)                                           {}
func (n *NoopMetrics) RecordCommit(tier string)                                                   {}
func (n *NoopMetrics) RecordUpgrade(fromTier, toTier string)                                      {}
func (n *NoopMetrics) RecordStorageOperation(operation string, duration time.Duration, err error) {}
