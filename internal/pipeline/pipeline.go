// Package pipeline orchestrates the full alignment run: segmentation,
// transcription, similarity scoring, optimal assignment, boundary refinement,
// and the validation checkpoints between them.
//
// The pipeline distinguishes fatal errors (unusable input, whole-run
// cancellation, a strict-mode halt) from quality findings: the latter are
// collected in the validation report and never abort a run on their own.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/vocalign/internal/assign"
	"github.com/MrWong99/vocalign/internal/observe"
	"github.com/MrWong99/vocalign/internal/refine"
	"github.com/MrWong99/vocalign/internal/segment"
	"github.com/MrWong99/vocalign/internal/similarity"
	"github.com/MrWong99/vocalign/internal/transcribe"
	"github.com/MrWong99/vocalign/internal/validate"
	"github.com/MrWong99/vocalign/internal/vocab"
	"github.com/MrWong99/vocalign/pkg/audio"
	"github.com/MrWong99/vocalign/pkg/provider/stt"
)

// ErrNoTerms is returned when Run is called with an empty vocabulary list.
var ErrNoTerms = errors.New("pipeline: vocabulary list is empty")

// Config aggregates the per-stage configuration.
type Config struct {
	Segment    segment.Config    `yaml:"segment"`
	Transcribe transcribe.Config `yaml:"transcribe"`
	Similarity similarity.Config `yaml:"similarity"`
	Validation validate.Config   `yaml:"validation"`
}

// Output is the result of a completed (or strict-halted) run.
type Output struct {
	// Assignments holds one entry per term in ordinal order, with final
	// boundaries and confidences.
	Assignments []assign.Assignment

	// Spans are the segmenter's candidate spans, before refinement.
	Spans []audio.Span

	// Transcriptions are the per-span recognition results, ordered like Spans.
	Transcriptions []stt.Result

	// Report collects every validation checkpoint result.
	Report validate.Report
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics overrides the metrics instance. Mainly for tests, which should
// not share the global meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithRomanizer converts non-Latin transcriptions to romaji before similarity
// scoring. Required whenever the recogniser emits kana or kanji.
func WithRomanizer(r vocab.Romanizer) Option {
	return func(p *Pipeline) { p.romanizer = r }
}

// Pipeline runs alignment jobs. Safe for concurrent use; each run carries its
// own validation coordinator.
type Pipeline struct {
	provider  stt.Provider
	cfg       Config
	metrics   *observe.Metrics
	romanizer vocab.Romanizer

	segmenter *segment.Segmenter
	pool      *transcribe.Pool
	builder   *similarity.Builder
	refiner   *refine.Refiner
}

// New creates a Pipeline over the given transcription provider.
func New(provider stt.Provider, cfg Config, opts ...Option) *Pipeline {
	cfg.Segment = cfg.Segment.WithDefaults()
	cfg.Similarity = cfg.Similarity.WithDefaults()
	cfg.Validation.Segment = cfg.Segment
	if cfg.Validation.ConfidenceFloor <= 0 {
		// Validation judges assignments by the same floor the similarity
		// scoring accepts them with, unless configured apart.
		cfg.Validation.ConfidenceFloor = cfg.Similarity.AcceptanceFloor
	}

	p := &Pipeline{
		provider: provider,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}

	p.segmenter = segment.New(cfg.Segment)
	p.pool = transcribe.NewPool(provider, cfg.Transcribe, transcribe.WithMetrics(p.metrics))
	p.builder = similarity.NewBuilder(cfg.Similarity, similarity.WithRomanizer(p.romanizer))
	p.refiner = refine.New(refine.Config{Segment: cfg.Segment})
	return p
}

// Run aligns the vocabulary terms against the recording. A strict-mode halt
// returns the partial Output alongside an error wrapping
// [validate.ErrHalted]; the report then shows how far the run got.
func (p *Pipeline) Run(ctx context.Context, wave audio.Waveform, terms []vocab.Term) (*Output, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.Run")
	defer span.End()
	log := observe.Logger(ctx)

	if err := wave.Validate(); err != nil {
		p.metrics.PipelineRuns.Add(ctx, 1, runStatus("error"))
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if len(terms) == 0 {
		p.metrics.PipelineRuns.Add(ctx, 1, runStatus("error"))
		return nil, ErrNoTerms
	}
	if err := vocab.Validate(terms); err != nil {
		p.metrics.PipelineRuns.Add(ctx, 1, runStatus("error"))
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	coord := validate.New(p.cfg.Validation)
	out := &Output{}

	// Segmentation.
	start := time.Now()
	spans, err := p.segmenter.Segment(wave, len(terms))
	p.metrics.RecordStage(ctx, "segmentation", time.Since(start))
	if err != nil {
		p.metrics.PipelineRuns.Add(ctx, 1, runStatus("error"))
		return nil, fmt.Errorf("pipeline: segmentation: %w", err)
	}
	out.Spans = spans
	p.metrics.SpansSegmented.Add(ctx, int64(len(spans)))
	log.Debug("segmentation complete", "spans", len(spans), "terms", len(terms))

	if _, err := coord.PostSegmentation(terms, spans); err != nil {
		return p.halt(ctx, out, coord, err)
	}

	// Transcription.
	start = time.Now()
	results, err := p.pool.TranscribeSpans(ctx, wave, spans)
	p.metrics.RecordStage(ctx, "transcription", time.Since(start))
	if err != nil {
		p.metrics.PipelineRuns.Add(ctx, 1, runStatus("error"))
		return nil, fmt.Errorf("pipeline: transcription: %w", err)
	}
	out.Transcriptions = results

	// Similarity and assignment.
	start = time.Now()
	matrix := p.builder.Build(terms, results)
	assignments := assign.Assign(matrix, spans)
	p.metrics.RecordStage(ctx, "assignment", time.Since(start))
	log.Debug("assignment complete", "total_similarity", assign.TotalSimilarity(assignments))

	if _, err := coord.PostAssignment(terms, assignments); err != nil {
		out.Assignments = assignments
		return p.halt(ctx, out, coord, err)
	}

	// Refinement.
	start = time.Now()
	outcome := p.refiner.Refine(wave, assignments)
	p.metrics.RecordStage(ctx, "refinement", time.Since(start))
	out.Assignments = outcome.Assignments

	if _, err := coord.PostRefinement(wave, terms, outcome); err != nil {
		return p.halt(ctx, out, coord, err)
	}
	if _, err := coord.PreHandoff(outcome.Assignments); err != nil {
		return p.halt(ctx, out, coord, err)
	}

	out.Report = coord.Report()
	p.recordIssues(ctx, out.Report)
	p.metrics.PipelineRuns.Add(ctx, 1, runStatus("ok"))
	log.Info("alignment run complete",
		"terms", len(terms),
		"spans", len(spans),
		"passed", out.Report.Passed(),
		"issues", len(out.Report.Issues()),
	)
	return out, nil
}

// halt finalises a strict-mode stop: the partial output keeps the report so
// the caller can see which checkpoint tripped.
func (p *Pipeline) halt(ctx context.Context, out *Output, coord *validate.Coordinator, err error) (*Output, error) {
	out.Report = coord.Report()
	p.recordIssues(ctx, out.Report)
	p.metrics.PipelineRuns.Add(ctx, 1, runStatus("halted"))
	return out, err
}

func runStatus(status string) metric.AddOption {
	return metric.WithAttributes(observe.Attr("status", status))
}

func (p *Pipeline) recordIssues(ctx context.Context, report validate.Report) {
	for _, is := range report.Issues() {
		p.metrics.RecordValidationIssue(ctx, string(is.Kind), string(is.Severity))
	}
}
