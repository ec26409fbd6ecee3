package proxy

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// quarantineThreshold is how many consecutive failures trip a quarantine.
	quarantineThreshold = 3

	quarantineUnit = 5 * time.Minute
	quarantineMax  = 30 * time.Minute
)

// QuarantineDuration returns how long an endpoint sits out after tripping the
// failure threshold. The duration scales with how late in the retry sequence
// the failure occurred, capped at quarantineMax.
func QuarantineDuration(attempt int) time.Duration {
	d := quarantineUnit * time.Duration(attempt+1)
	if d > quarantineMax {
		return quarantineMax
	}
	return d
}

// endpointState holds the mutable health of one endpoint. Each endpoint has its
// own lock so recording outcomes for unrelated endpoints never serializes.
type endpointState struct {
	mu               sync.Mutex
	endpoint         Endpoint
	failures         int
	quarantinedUntil time.Time
}

func (s *endpointState) available(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quarantinedUntil.IsZero() || !s.quarantinedUntil.After(now)
}

// Registry tracks per-endpoint failure history and quarantine state and hands
// out endpoints in round-robin order. Safe for concurrent use.
type Registry struct {
	states []*endpointState
	byAddr map[Endpoint]*endpointState
	cursor atomic.Uint64
	now    func() time.Time
}

func NewRegistry(endpoints []Endpoint) *Registry {
	r := &Registry{
		byAddr: make(map[Endpoint]*endpointState, len(endpoints)),
		now:    time.Now,
	}
	for _, ep := range endpoints {
		st := &endpointState{endpoint: ep}
		r.states = append(r.states, st)
		r.byAddr[ep] = st
	}
	return r
}

// Size returns the number of configured endpoints.
func (r *Registry) Size() int {
	return len(r.states)
}

// Pick returns the next endpoint in rotation whose quarantine has elapsed, or
// nil when the registry is empty or every endpoint is quarantined. The cursor
// advances past the returned endpoint so repeated calls distribute load.
func (r *Registry) Pick() *Endpoint {
	n := len(r.states)
	if n == 0 {
		return nil
	}

	now := r.now()
	for i := 0; i < n; i++ {
		idx := int((r.cursor.Add(1) - 1) % uint64(n))
		st := r.states[idx]
		if st.available(now) {
			ep := st.endpoint
			return &ep
		}
	}
	return nil
}

// RecordSuccess clears failure history and any quarantine for the endpoint.
func (r *Registry) RecordSuccess(ep Endpoint) {
	st, ok := r.byAddr[ep]
	if !ok {
		return
	}
	st.mu.Lock()
	st.failures = 0
	st.quarantinedUntil = time.Time{}
	st.mu.Unlock()
}

// RecordFailure bumps the endpoint's consecutive failure count. On the third
// consecutive failure the endpoint is quarantined for QuarantineDuration of the
// attempt index and the counter resets, so repeated quarantines do not compound.
func (r *Registry) RecordFailure(ep Endpoint, attempt int) {
	st, ok := r.byAddr[ep]
	if !ok {
		return
	}
	st.mu.Lock()
	st.failures++
	if st.failures >= quarantineThreshold {
		st.quarantinedUntil = r.now().Add(QuarantineDuration(attempt))
		st.failures = 0
	}
	st.mu.Unlock()
}
