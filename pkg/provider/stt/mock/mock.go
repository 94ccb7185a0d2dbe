// Package mock provides a scriptable stt.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/vocalign/pkg/provider/stt"
)

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Provider is a test double for stt.Provider. Configure either Results (played
// back in call order) or TranscribeFunc (full control per call). All methods
// are safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// Results are returned in call order. When exhausted, Transcribe returns
	// a zero Result.
	Results []stt.Result

	// Errs are paired with Results by call order; a nil entry means success.
	Errs []error

	// TranscribeFunc, when non-nil, overrides the scripted Results entirely.
	TranscribeFunc func(ctx context.Context, clip stt.Clip) (stt.Result, error)

	// Calls records every clip passed to Transcribe, in call order.
	Calls []stt.Clip

	next int
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, clip stt.Clip) (stt.Result, error) {
	if err := ctx.Err(); err != nil {
		return stt.Result{}, err
	}

	if p.TranscribeFunc != nil {
		p.mu.Lock()
		p.Calls = append(p.Calls, clip)
		p.mu.Unlock()
		return p.TranscribeFunc(ctx, clip)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, clip)

	i := p.next
	p.next++
	var (
		res stt.Result
		err error
	)
	if i < len(p.Results) {
		res = p.Results[i]
	}
	if i < len(p.Errs) {
		err = p.Errs[i]
	}
	return res, err
}

// CallCount returns the number of Transcribe invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
