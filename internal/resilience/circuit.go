// Package resilience provides retry and circuit breaker helpers for calls to
// the upstream search service and the result sink.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
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
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before a probe is allowed.
	ResetTimeout time.Duration

	// ShouldTrip decides whether an error counts as a failure. Nil counts every error.
	ShouldTrip func(err error) bool

	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// CircuitBreaker stops calling a failing dependency for a cool-down period.
// In half-open state a single successful probe closes it again.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu         sync.Mutex
	state      CircuitState
	failures   int
	openedAt   time.Time
	probeInUse bool
	nowFunc    func() time.Time
}

// NewCircuitBreaker creates a circuit breaker with the given config.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	return &CircuitBreaker{cfg: cfg, nowFunc: time.Now}
}

// Execute runs fn unless the circuit is open, in which case it returns
// ErrCircuitOpen without calling fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.acquire(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.cooledDown() {
		return CircuitHalfOpen
	}
	return cb.state
}

// Reset forces the circuit closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.probeInUse = false
	cb.setState(CircuitClosed)
}

func (cb *CircuitBreaker) cooledDown() bool {
	return cb.nowFunc().Sub(cb.openedAt) >= cb.cfg.ResetTimeout
}

func (cb *CircuitBreaker) acquire() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if !cb.cooledDown() {
			return ErrCircuitOpen
		}
		cb.setState(CircuitHalfOpen)
		cb.probeInUse = true
		return nil
	case CircuitHalfOpen:
		if cb.probeInUse {
			return ErrCircuitOpen
		}
		cb.probeInUse = true
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	tripped := err != nil
	if tripped && cb.cfg.ShouldTrip != nil {
		tripped = cb.cfg.ShouldTrip(err)
	}

	if cb.state == CircuitHalfOpen {
		cb.probeInUse = false
		if tripped {
			cb.openedAt = cb.nowFunc()
			cb.setState(CircuitOpen)
			return
		}
		cb.failures = 0
		cb.setState(CircuitClosed)
		return
	}

	if !tripped {
		cb.failures = 0
		return
	}
	cb.failures++
	if cb.state == CircuitClosed && cb.failures >= cb.cfg.FailureThreshold {
		cb.openedAt = cb.nowFunc()
		cb.setState(CircuitOpen)
	}
}

func (cb *CircuitBreaker) setState(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}

// StateLogger returns an OnStateChange callback that logs transitions.
func StateLogger(component string) func(from, to CircuitState) {
	return func(from, to CircuitState) {
		zap.L().Warn("circuit breaker state change",
			zap.String("component", component),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
}
