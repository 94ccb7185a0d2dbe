// Package transcribe dispatches candidate spans to an STT provider with
// bounded parallelism.
//
// Span transcriptions are independent, so they run concurrently up to a
// worker limit sized to the provider's rate limits. Each dispatch carries its
// own timeout and a single automatic retry on failure; a span whose retry
// also fails is recorded with an empty result rather than aborting the run.
// Only whole-run cancellation (the parent context) stops the batch.
package transcribe

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/vocalign/internal/observe"
	"github.com/MrWong99/vocalign/pkg/audio"
	"github.com/MrWong99/vocalign/pkg/provider/stt"
)

const (
	// DefaultWorkers bounds concurrent provider calls. Hosted providers
	// throttle well below this; local whisper contexts are memory-bound.
	DefaultWorkers = 4

	// DefaultTimeout is the per-dispatch deadline. Word clips are one or two
	// seconds of audio; anything slower than this is a stuck backend.
	DefaultTimeout = 30 * time.Second
)

// Config holds the pool parameters.
type Config struct {
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"`

	// Language is passed through to the provider on every clip.
	Language string `yaml:"language"`

	// Provider labels the backend on metrics. Set from the transcriber name;
	// not a user-facing knob.
	Provider string `yaml:"-"`
}

// WithDefaults returns c with zero fields replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Provider == "" {
		c.Provider = "stt"
	}
	return c
}

// Pool transcribes span batches. Safe for concurrent use.
type Pool struct {
	provider stt.Provider
	cfg      Config
	metrics  *observe.Metrics
}

// Option configures a Pool.
type Option func(*Pool)

// WithMetrics overrides the metrics instance. Mainly for tests, which should
// not share the global meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

// NewPool creates a Pool over the given provider.
func NewPool(provider stt.Provider, cfg Config, opts ...Option) *Pool {
	p := &Pool{provider: provider, cfg: cfg.WithDefaults()}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// TranscribeSpans transcribes every span of the waveform and returns results
// ordered like the input spans. Provider failures degrade to empty results;
// the only error returned is the parent context's cancellation.
func (p *Pool) TranscribeSpans(ctx context.Context, wave audio.Waveform, spans []audio.Span) ([]stt.Result, error) {
	results := make([]stt.Result, len(spans))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for i, span := range spans {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			clip := stt.Clip{
				Samples:    wave.Clip(span.Start, span.End),
				SampleRate: wave.SampleRate,
				Language:   p.cfg.Language,
			}
			results[i] = p.transcribeOne(gctx, i, clip)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// transcribeOne runs a single dispatch with timeout plus one retry. A clip
// that fails both attempts yields a zero Result; the failure is logged and
// surfaces downstream as a zero-similarity column, which the alignment
// checkpoint flags.
func (p *Pool) transcribeOne(ctx context.Context, index int, clip stt.Clip) stt.Result {
	for attempt := 0; attempt < 2; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		start := time.Now()
		res, err := p.provider.Transcribe(callCtx, clip)
		p.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(observe.Attr("provider", p.cfg.Provider)),
		)
		cancel()

		if err == nil {
			return res
		}
		p.metrics.RecordProviderError(ctx, p.cfg.Provider)
		if ctx.Err() != nil {
			// Whole-run cancellation; no point retrying.
			return stt.Result{}
		}
		if attempt == 0 {
			slog.Warn("transcribe: dispatch failed, retrying once", "span", index, "error", err)
			continue
		}
		slog.Warn("transcribe: retry failed, recording empty result", "span", index, "error", err)
	}
	return stt.Result{}
}
