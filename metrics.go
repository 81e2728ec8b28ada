package authcore

import "sync/atomic"

// MetricID identifies a counter in the in-process metrics table.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful password authentications.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected password authentications.
	MetricLoginFailure
	// MetricAccountLocked counts lockout transitions.
	MetricAccountLocked
	// MetricLockedAttempt counts attempts rejected by an active lock.
	MetricLockedAttempt
	// MetricLockCleared counts lazy clears of expired locks.
	MetricLockCleared
	// MetricAPIKeyLogin counts API key authentications.
	MetricAPIKeyLogin
	// MetricTrustedHeaderLogin counts trusted header authentications.
	MetricTrustedHeaderLogin
	// MetricTokenValidated counts accepted bearer tokens.
	MetricTokenValidated
	// MetricTokenRejected counts expired or invalid bearer tokens.
	MetricTokenRejected
	// MetricPasswordChange counts successful password changes.
	MetricPasswordChange
	// MetricPasswordExpiredLogin counts logins with an expired password.
	MetricPasswordExpiredLogin
	// MetricHashUpgraded counts legacy hashes rewritten on login.
	MetricHashUpgraded
	// MetricAccessDenied counts gate predicate rejections.
	MetricAccessDenied
	// MetricStoreError counts backend failures surfaced to callers.
	MetricStoreError

	metricIDCount
)

// 64-byte padding keeps hot counters on separate cache lines.
type paddedCounter struct {
	value uint64
	_     [56]byte
}

// Metrics holds atomic counters. A nil or disabled Metrics is a no-op.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a Metrics instance. When cfg.Enabled is false all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || !m.enabled || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, metricIDCount),
	}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return snap
}
