package budget

import "sync/atomic"

// LimitsCache memoizes the model limits of one adapter instance.
//
// Lifecycle is populate-once with no expiry and no invalidation: limits are
// fetched lazily on the first call that needs them and reused for the
// process lifetime of the adapter. Concurrent first calls may each fetch;
// the last store wins, which is harmless because all fetches return the
// same values. Whether limits should ever be refreshed is an open design
// question; backends do not change a deployed model's limits in practice.
type LimitsCache struct {
	limits atomic.Pointer[ModelLimits]
}

// Get returns the cached limits, or false if not populated yet.
func (c *LimitsCache) Get() (ModelLimits, bool) {
	if l := c.limits.Load(); l != nil {
		return *l, true
	}
	return ModelLimits{}, false
}

// Set stores the limits. Safe to call concurrently; a duplicate store from
// a racing first fetch is acceptable.
func (c *LimitsCache) Set(limits ModelLimits) {
	c.limits.Store(&limits)
}
