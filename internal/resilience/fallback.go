package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/vocalign/pkg/provider/stt"
)

// ErrAllFailed is returned when every registered backend fails or has an open
// circuit breaker.
var ErrAllFailed = errors.New("resilience: all providers failed")

// Compile-time assertion that STTFallback satisfies stt.Provider.
var _ stt.Provider = (*STTFallback)(nil)

type entry struct {
	name     string
	provider stt.Provider
	breaker  *CircuitBreaker
}

// STTFallback implements stt.Provider with automatic failover across multiple
// backends. Each backend gets its own circuit breaker, so a dead primary is
// skipped without paying its timeout on every clip.
//
// Register all backends before first use; STTFallback is then safe for
// concurrent Transcribe calls.
type STTFallback struct {
	entries []entry
	cbCfg   CircuitBreakerConfig
}

// NewSTTFallback creates a fallback provider with primary as the preferred
// backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cbCfg CircuitBreakerConfig) *STTFallback {
	f := &STTFallback{cbCfg: cbCfg}
	f.add(primaryName, primary)
	return f
}

// AddFallback registers an additional backend. Fallbacks are tried in the
// order they are added, after the primary.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.add(name, provider)
}

func (f *STTFallback) add(name string, provider stt.Provider) {
	cfg := f.cbCfg
	cfg.Name = name
	f.entries = append(f.entries, entry{
		name:     name,
		provider: provider,
		breaker:  NewCircuitBreaker(cfg),
	})
}

// Transcribe tries each backend in order until one succeeds. Backends with an
// open circuit are skipped. Context cancellation stops the chain immediately.
func (f *STTFallback) Transcribe(ctx context.Context, clip stt.Clip) (stt.Result, error) {
	var lastErr error
	for i := range f.entries {
		e := &f.entries[i]
		var result stt.Result
		err := e.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = e.provider.Transcribe(ctx, clip)
			return innerErr
		})
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return stt.Result{}, ctx.Err()
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("resilience: skipping provider (circuit open)", "provider", e.name)
		} else {
			slog.Warn("resilience: provider failed, trying next", "provider", e.name, "error", err)
		}
	}
	return stt.Result{}, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
