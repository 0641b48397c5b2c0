// Package resilience provides retry and circuit breaker patterns for
// external lookups.
package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal operating state.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until the reset timeout elapses.
	CircuitOpen
	// CircuitHalfOpen lets a single trial call through.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreakerConfig controls circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive tripping failures that
	// opens the circuit. Zero disables the breaker.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before a trial call.
	ResetTimeout time.Duration

	// ShouldTrip selects which failures count. Nil counts every error.
	ShouldTrip func(err error) bool

	// OnStateChange is called when the circuit transitions between states.
	OnStateChange func(from, to CircuitState)
}

// CircuitBreaker stops calls to a service that keeps failing. It is safe for
// concurrent use.
type CircuitBreaker struct {
	cfg   CircuitBreakerConfig
	mu    sync.Mutex
	state CircuitState

	consecutiveFailures int
	openedAt            time.Time
	trialOut            bool

	nowFunc func() time.Time
}

// NewCircuitBreaker creates a circuit breaker with the given config.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		cfg:     cfg,
		state:   CircuitClosed,
		nowFunc: time.Now,
	}
}

// Allow returns ErrCircuitOpen if calls are currently rejected. An open
// circuit whose reset timeout has elapsed moves to half-open and admits the
// caller as the only trial call; other callers are rejected until its
// outcome is recorded.
func (cb *CircuitBreaker) Allow() error {
	if cb == nil || cb.cfg.FailureThreshold <= 0 {
		return nil
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.nowFunc().Sub(cb.openedAt) < cb.cfg.ResetTimeout {
			return ErrCircuitOpen
		}
		cb.transition(CircuitHalfOpen)
	case CircuitHalfOpen:
		if cb.trialOut {
			return ErrCircuitOpen
		}
	default:
		return nil
	}
	cb.trialOut = true
	return nil
}

// Abandon releases an admitted trial call that never completed, such as on
// cancellation, so the next caller may try instead.
func (cb *CircuitBreaker) Abandon() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	cb.trialOut = false
	cb.mu.Unlock()
}

// Record feeds the outcome of an admitted call back into the breaker.
func (cb *CircuitBreaker) Record(err error) {
	if cb == nil || cb.cfg.FailureThreshold <= 0 {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.trialOut = false

	trips := err != nil
	if trips && cb.cfg.ShouldTrip != nil {
		trips = cb.cfg.ShouldTrip(err)
	}

	if !trips {
		cb.consecutiveFailures = 0
		if cb.state != CircuitClosed {
			cb.transition(CircuitClosed)
		}
		return
	}

	cb.consecutiveFailures++
	if cb.state == CircuitHalfOpen || cb.consecutiveFailures >= cb.cfg.FailureThreshold {
		cb.openedAt = cb.nowFunc()
		if cb.state != CircuitOpen {
			cb.transition(CircuitOpen)
		}
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.nowFunc().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}
