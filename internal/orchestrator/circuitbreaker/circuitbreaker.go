// Package circuitbreaker tracks per-gateway health and short-circuits
// calls to a gateway that keeps failing.
package circuitbreaker

import (
	"sync"
	"time"
)

// State is the circuit state for one gateway.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	case StateHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

const (
	defaultFailureThreshold = 3
	defaultResetTimeout     = 30 * time.Second
)

// Config tunes the breaker. Zero values fall back to the defaults.
type Config struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

type gatewayState struct {
	state     State
	failures  int
	openUntil time.Time
}

// CircuitBreaker keeps an independent circuit per gateway name.
type CircuitBreaker struct {
	mu       sync.Mutex
	gateways map[string]*gatewayState
	cfg      Config
}

// NewCircuitBreaker creates a breaker with all circuits closed.
func NewCircuitBreaker(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaultResetTimeout
	}
	return &CircuitBreaker{
		gateways: make(map[string]*gatewayState),
		cfg:      cfg,
	}
}

// caller holds the lock
func (cb *CircuitBreaker) get(name string) *gatewayState {
	gs, ok := cb.gateways[name]
	if !ok {
		gs = &gatewayState{state: StateClosed}
		cb.gateways[name] = gs
	}
	return gs
}

// AllowRequest reports whether a call to the gateway may proceed. An open
// circuit whose reset timeout has elapsed moves to half-open and lets one
// probe through.
func (cb *CircuitBreaker) AllowRequest(name string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	gs := cb.get(name)
	switch gs.state {
	case StateOpen:
		if time.Now().After(gs.openUntil) {
			gs.state = StateHalfOpen
			gs.failures = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordFailure counts a failed gateway call. Reaching the threshold in
// closed state, or any failure in half-open, opens the circuit.
func (cb *CircuitBreaker) RecordFailure(name string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	gs := cb.get(name)
	switch gs.state {
	case StateClosed:
		gs.failures++
		if gs.failures >= cb.cfg.FailureThreshold {
			gs.state = StateOpen
			gs.openUntil = time.Now().Add(cb.cfg.ResetTimeout)
		}
	case StateHalfOpen:
		gs.state = StateOpen
		gs.failures = cb.cfg.FailureThreshold
		gs.openUntil = time.Now().Add(cb.cfg.ResetTimeout)
	case StateOpen:
	}
}

// RecordSuccess counts a successful gateway call. Success in half-open
// closes the circuit; in closed state it clears the failure streak.
func (cb *CircuitBreaker) RecordSuccess(name string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	gs := cb.get(name)
	switch gs.state {
	case StateClosed, StateHalfOpen:
		gs.state = StateClosed
		gs.failures = 0
	case StateOpen:
	}
}

// GetGatewayStatus returns the circuit state and failure streak for a
// gateway. Unseen gateways report a closed circuit.
func (cb *CircuitBreaker) GetGatewayStatus(name string) (State, int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	gs, ok := cb.gateways[name]
	if !ok {
		return StateClosed, 0
	}
	return gs.state, gs.failures
}
