package routing

import "sync"

// HealthState is a point-in-time view of one expert's failure record.
type HealthState struct {
	FailureCount int
	Quarantined  bool
}

// HealthTracker is a per-expert circuit breaker. An expert starts Available,
// moves to Quarantined after threshold consecutive recorded failures, and
// returns to Available only on an explicit recorded success. There is no
// time-based recovery: an expert nobody retries stays quarantined.
type HealthTracker struct {
	registry  *Registry
	threshold int

	mu     sync.Mutex
	states map[string]*HealthState
}

// NewHealthTracker builds a tracker over the expert catalog. threshold is the
// failure count at which an expert is quarantined (minimum 1).
func NewHealthTracker(registry *Registry, threshold int) *HealthTracker {
	if threshold < 1 {
		threshold = 1
	}
	return &HealthTracker{
		registry:  registry,
		threshold: threshold,
		states:    make(map[string]*HealthState),
	}
}

// RecordFailure increments the expert's failure count, quarantining it when
// the threshold is reached. Returns true when this call caused the
// Available-to-Quarantined transition.
func (h *HealthTracker) RecordFailure(expert string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.state(expert)
	st.FailureCount++
	if !st.Quarantined && st.FailureCount >= h.threshold {
		st.Quarantined = true
		return true
	}
	return false
}

// RecordSuccess resets the expert's failure count and lifts quarantine. This
// is the only recovery path.
func (h *HealthTracker) RecordSuccess(expert string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.state(expert)
	st.FailureCount = 0
	st.Quarantined = false
}

// IsQuarantined reports whether the expert is currently excluded. Unknown
// experts are never quarantined.
func (h *HealthTracker) IsQuarantined(expert string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.states[expert]
	return ok && st.Quarantined
}

// Resolve substitutes a healthy expert for the primary: the primary itself if
// available, else the first available expert in its backup chain, else the
// designated fallback regardless of its own quarantine state. It never
// returns an empty expert; routing to a known-bad fallback when the whole
// pool is degraded is an expected degraded-mode outcome.
func (h *HealthTracker) Resolve(primary string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if st, ok := h.states[primary]; !ok || !st.Quarantined {
		return primary
	}
	for _, backup := range h.registry.BackupsOf(primary) {
		if st, ok := h.states[backup]; !ok || !st.Quarantined {
			return backup
		}
	}
	return h.registry.Fallback()
}

// Snapshot returns a copy of every tracked expert's state, keyed by expert.
// Experts with no recorded activity are included as zero states.
func (h *HealthTracker) Snapshot() map[string]HealthState {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]HealthState, len(h.registry.AllExperts()))
	for _, expert := range h.registry.AllExperts() {
		if st, ok := h.states[expert]; ok {
			out[expert] = *st
		} else {
			out[expert] = HealthState{}
		}
	}
	return out
}

// state returns the mutable record for an expert, creating it on first use.
// Callers must hold h.mu.
func (h *HealthTracker) state(expert string) *HealthState {
	st, ok := h.states[expert]
	if !ok {
		st = &HealthState{}
		h.states[expert] = st
	}
	return st
}
