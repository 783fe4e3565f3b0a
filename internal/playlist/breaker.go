package playlist

import "sync"

// ErrorBreaker trips once a cumulative failure count reaches its ceiling.
// Unlike a classic reset-on-success circuit breaker, failures accumulate for
// the lifetime of one populate pass; in-flight work finishes, no new work
// starts after the trip.
type ErrorBreaker struct {
	ceiling  int
	failures int
	mu       sync.Mutex
}

// NewErrorBreaker creates a breaker that trips at the given failure ceiling
func NewErrorBreaker(ceiling int) *ErrorBreaker {
	return &ErrorBreaker{ceiling: ceiling}
}

// RecordFailure counts one failure
func (b *ErrorBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
}

// Failures returns the cumulative failure count
func (b *ErrorBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Tripped reports whether the failure ceiling has been reached
func (b *ErrorBreaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.ceiling
}
