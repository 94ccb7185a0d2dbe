// Package resilience provides failover across transcription backends: a
// per-backend circuit breaker and a fallback group that tries backends in
// registration order.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a breaker rejects a call without invoking
// the wrapped function.
var ErrCircuitOpen = errors.New("resilience: circuit open")

const (
	// DefaultFailureThreshold opens the circuit after this many consecutive
	// failures.
	DefaultFailureThreshold = 3

	// DefaultCooldown is how long an open circuit rejects calls before
	// allowing a probe.
	DefaultCooldown = 30 * time.Second
)

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in log output.
	Name string

	// FailureThreshold is the consecutive-failure count that opens the
	// circuit. Zero selects DefaultFailureThreshold.
	FailureThreshold int

	// Cooldown is the open-state duration before a single probe call is let
	// through. Zero selects DefaultCooldown.
	Cooldown time.Duration
}

// CircuitBreaker is a consecutive-failure breaker. After the threshold is
// reached, calls fail fast with ErrCircuitOpen until the cooldown elapses;
// the next call then probes the backend, and one success closes the circuit
// again. Safe for concurrent use.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu        sync.Mutex
	failures  int
	openUntil time.Time
}

// NewCircuitBreaker creates a breaker from cfg, applying defaults to zero
// fields.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &CircuitBreaker{cfg: cfg}
}

// Execute runs fn unless the circuit is open. fn's error feeds the failure
// counter; success resets it.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	if cb.failures >= cb.cfg.FailureThreshold && time.Now().Before(cb.openUntil) {
		cb.mu.Unlock()
		return ErrCircuitOpen
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.failures++
		if cb.failures == cb.cfg.FailureThreshold {
			cb.openUntil = time.Now().Add(cb.cfg.Cooldown)
			slog.Warn("resilience: circuit opened",
				"name", cb.cfg.Name,
				"failures", cb.failures,
				"cooldown", cb.cfg.Cooldown,
			)
		} else if cb.failures > cb.cfg.FailureThreshold {
			// Failed probe; stay open for another cooldown.
			cb.openUntil = time.Now().Add(cb.cfg.Cooldown)
		}
		return err
	}
	if cb.failures >= cb.cfg.FailureThreshold {
		slog.Info("resilience: circuit closed after successful probe", "name", cb.cfg.Name)
	}
	cb.failures = 0
	return nil
}
