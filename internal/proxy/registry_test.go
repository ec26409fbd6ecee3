package proxy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEndpoints(n int) []Endpoint {
	eps := make([]Endpoint, n)
	for i := range eps {
		eps[i] = Endpoint{Host: "10.0.0.1", Port: 8000 + i}
	}
	return eps
}

func TestQuarantineDuration(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 5 * time.Minute},
		{1, 10 * time.Minute},
		{4, 25 * time.Minute},
		{5, 30 * time.Minute},
		{9, 30 * time.Minute},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, QuarantineDuration(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestPickRoundRobin(t *testing.T) {
	r := NewRegistry(testEndpoints(3))

	seen := make([]int, 0, 6)
	for i := 0; i < 6; i++ {
		ep := r.Pick()
		require.NotNil(t, ep)
		seen = append(seen, ep.Port)
	}

	assert.Equal(t, []int{8000, 8001, 8002, 8000, 8001, 8002}, seen)
}

func TestPickEmptyRegistry(t *testing.T) {
	r := NewRegistry(nil)
	assert.Nil(t, r.Pick())
}

func TestQuarantineAfterThreeFailures(t *testing.T) {
	now := time.Now()
	r := NewRegistry(testEndpoints(1))
	r.now = func() time.Time { return now }

	ep := testEndpoints(1)[0]

	r.RecordFailure(ep, 0)
	r.RecordFailure(ep, 0)
	require.NotNil(t, r.Pick(), "two failures must not quarantine")

	r.RecordFailure(ep, 0)
	assert.Nil(t, r.Pick(), "third consecutive failure must quarantine")

	// Quarantine elapses and the endpoint rejoins rotation.
	now = now.Add(5*time.Minute + time.Second)
	assert.NotNil(t, r.Pick())
}

func TestQuarantineScalesWithAttempt(t *testing.T) {
	now := time.Now()
	r := NewRegistry(testEndpoints(1))
	r.now = func() time.Time { return now }

	ep := testEndpoints(1)[0]
	for i := 0; i < 3; i++ {
		r.RecordFailure(ep, 3)
	}

	now = now.Add(15 * time.Minute)
	assert.Nil(t, r.Pick(), "attempt 3 quarantine lasts 20 minutes")

	now = now.Add(5*time.Minute + time.Second)
	assert.NotNil(t, r.Pick())
}

func TestRecordSuccessResetsState(t *testing.T) {
	now := time.Now()
	r := NewRegistry(testEndpoints(1))
	r.now = func() time.Time { return now }

	ep := testEndpoints(1)[0]
	for i := 0; i < 3; i++ {
		r.RecordFailure(ep, 0)
	}
	require.Nil(t, r.Pick())

	r.RecordSuccess(ep)
	assert.NotNil(t, r.Pick(), "success must clear quarantine")

	// Failure count starts over after a success.
	r.RecordFailure(ep, 0)
	r.RecordFailure(ep, 0)
	assert.NotNil(t, r.Pick())
}

func TestFailureCounterResetsOnQuarantine(t *testing.T) {
	now := time.Now()
	r := NewRegistry(testEndpoints(1))
	r.now = func() time.Time { return now }

	ep := testEndpoints(1)[0]
	for i := 0; i < 3; i++ {
		r.RecordFailure(ep, 0)
	}

	// Let quarantine elapse; the next failure must not re-quarantine
	// immediately since the counter was reset.
	now = now.Add(6 * time.Minute)
	r.RecordFailure(ep, 0)
	assert.NotNil(t, r.Pick())
}

func TestPickSkipsQuarantined(t *testing.T) {
	now := time.Now()
	r := NewRegistry(testEndpoints(2))
	r.now = func() time.Time { return now }

	first := testEndpoints(2)[0]
	for i := 0; i < 3; i++ {
		r.RecordFailure(first, 0)
	}

	for i := 0; i < 4; i++ {
		ep := r.Pick()
		require.NotNil(t, ep)
		assert.Equal(t, 8001, ep.Port)
	}
}

func TestPickConcurrent(t *testing.T) {
	r := NewRegistry(testEndpoints(4))

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				if ep := r.Pick(); ep == nil {
					t.Error("Pick returned nil with healthy endpoints")
					return
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
