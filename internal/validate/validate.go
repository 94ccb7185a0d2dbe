// Package validate runs the pipeline's checkpoint layer: count, alignment,
// content, and final cross-checks over intermediate and final outputs.
//
// A Coordinator is created per run and accumulates one Result per checkpoint
// call. Results are append-only; nothing is ever silently dropped. Strictness
// is configured once: strict halts on the first critical issue, normal and
// lenient continue and surface everything in the final report (lenient
// downgrades warnings to informational), and disabled turns every checkpoint
// into an immediate no-op.
package validate

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/MrWong99/vocalign/internal/assign"
	"github.com/MrWong99/vocalign/internal/refine"
	"github.com/MrWong99/vocalign/internal/segment"
	"github.com/MrWong99/vocalign/internal/vocab"
	"github.com/MrWong99/vocalign/pkg/audio"
)

// ErrHalted is returned (wrapped) by a checkpoint when strict mode stops the
// run on a critical issue.
var ErrHalted = errors.New("validate: halted on critical issue")

const (
	// DefaultConfidenceFloor is the minimum assignment confidence that goes
	// unflagged. Matches the similarity acceptance floor; see
	// similarity.DefaultAcceptanceFloor for provenance.
	DefaultConfidenceFloor = 0.3

	// DefaultDurationTolerance is the multiplicative band around the median
	// word duration: spans outside [median/t, median*t] are flagged.
	DefaultDurationTolerance = 2.5

	// DefaultDuplicateOverlapRatio marks two assigned spans as near-
	// duplicates when they share this fraction of the shorter span.
	DefaultDuplicateOverlapRatio = 0.5
)

// Config holds the coordinator parameters.
type Config struct {
	Mode              Mode    `yaml:"mode"`
	ConfidenceFloor   float64 `yaml:"confidence_floor"`
	DurationTolerance float64 `yaml:"duration_tolerance"`

	// Segment supplies the energy parameters for the voiced-content check;
	// must match the segmenter's configuration.
	Segment segment.Config `yaml:"-"`
}

// WithDefaults returns c with zero fields replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeNormal
	}
	if c.ConfidenceFloor <= 0 {
		c.ConfidenceFloor = DefaultConfidenceFloor
	}
	if c.DurationTolerance <= 1 {
		c.DurationTolerance = DefaultDurationTolerance
	}
	c.Segment = c.Segment.WithDefaults()
	return c
}

// Summary condenses assignment confidences for a checkpoint result.
type Summary struct {
	Min, Max, Mean float64
	BelowFloor     int
}

// Result is the outcome of one checkpoint invocation.
type Result struct {
	Stage      Stage
	Passed     bool
	Issues     []Issue
	Confidence Summary
}

// Report aggregates every checkpoint result of a run. Each issue generated by
// a checkpoint appears exactly once.
type Report struct {
	Results []Result
}

// Passed reports whether no checkpoint recorded a critical issue.
func (r Report) Passed() bool {
	for _, res := range r.Results {
		for _, is := range res.Issues {
			if is.Severity == SeverityCritical {
				return false
			}
		}
	}
	return true
}

// Issues flattens all checkpoint issues in checkpoint order.
func (r Report) Issues() []Issue {
	var out []Issue
	for _, res := range r.Results {
		out = append(out, res.Issues...)
	}
	return out
}

// ReadyOrdinals returns the term ordinals with no content or handoff issue
// attached — the assignments safe to hand to the packaging collaborator
// without human review. Flagged assignments stay in the report but are
// excluded here.
func (r Report) ReadyOrdinals(assignments []assign.Assignment) []int {
	excluded := make(map[int]bool)
	for _, is := range r.Issues() {
		if is.TermOrdinal < 0 {
			continue
		}
		if is.Kind == KindContent || is.Kind == KindHandoff || is.Severity == SeverityCritical {
			excluded[is.TermOrdinal] = true
		}
	}
	var out []int
	for _, a := range assignments {
		if a.Matched() && !excluded[a.TermOrdinal] {
			out = append(out, a.TermOrdinal)
		}
	}
	return out
}

// Coordinator runs checkpoints and accumulates their results. The results
// list is the run's only shared mutable state; it is appended to under a
// single mutex per checkpoint call. All checkpoint methods are safe for
// concurrent use.
type Coordinator struct {
	cfg Config

	mu      sync.Mutex
	results []Result
}

// New creates a Coordinator for a single run.
func New(cfg Config) *Coordinator {
	return &Coordinator{cfg: cfg.WithDefaults()}
}

// Disabled reports whether validation is switched off.
func (c *Coordinator) Disabled() bool { return c.cfg.Mode == ModeDisabled }

// Report returns the accumulated results so far.
func (c *Coordinator) Report() Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	results := make([]Result, len(c.results))
	copy(results, c.results)
	return Report{Results: results}
}

// commit applies the mode policy, appends the result, and enforces the
// strict halt. Every checkpoint funnels through here. Issues are never
// removed — lenient only lowers severity, so the aggregated report always
// contains every issue a checkpoint generated.
func (c *Coordinator) commit(stage Stage, issues []Issue, summary Summary) (Result, error) {
	if c.cfg.Mode == ModeLenient {
		for i := range issues {
			if issues[i].Severity == SeverityWarning {
				issues[i].Severity = SeverityInfo
			}
		}
	}

	res := Result{
		Stage:      stage,
		Passed:     true,
		Issues:     issues,
		Confidence: summary,
	}
	for _, is := range issues {
		if is.Severity == SeverityCritical {
			res.Passed = false
			break
		}
	}

	c.mu.Lock()
	c.results = append(c.results, res)
	c.mu.Unlock()

	if c.cfg.Mode == ModeStrict && !res.Passed {
		first := res.Issues[0]
		for _, is := range res.Issues {
			if is.Severity == SeverityCritical {
				first = is
				break
			}
		}
		return res, fmt.Errorf("%w: %s", ErrHalted, first)
	}
	return res, nil
}

// PostSegmentation checks that segmentation produced one span per term.
// A discrepancy lists which ordinals are presumed missing or which spans are
// extra, based on document order, rather than reporting a bare count.
func (c *Coordinator) PostSegmentation(terms []vocab.Term, spans []audio.Span) (Result, error) {
	if c.Disabled() {
		return Result{Stage: StagePostSegmentation, Passed: true}, nil
	}

	var issues []Issue
	switch {
	case len(spans) < len(terms):
		for i := len(spans); i < len(terms); i++ {
			issues = append(issues, Issue{
				Kind:        KindCount,
				Severity:    SeverityCritical,
				Stage:       StagePostSegmentation,
				TermOrdinal: terms[i].Ordinal,
				SpanIndex:   -1,
				Detail:      fmt.Sprintf("no candidate span for term %d (%q): %d spans for %d terms", terms[i].Ordinal, terms[i].Source, len(spans), len(terms)),
				Remedy:      "check recording completeness or lower the minimum silence duration",
			})
		}
	case len(spans) > len(terms):
		for j := len(terms); j < len(spans); j++ {
			issues = append(issues, Issue{
				Kind:        KindCount,
				Severity:    SeverityWarning,
				Stage:       StagePostSegmentation,
				TermOrdinal: -1,
				SpanIndex:   j,
				Detail:      fmt.Sprintf("extra candidate span %d at %.2fs: %d spans for %d terms", j, spans[j].Start, len(spans), len(terms)),
				Remedy:      "likely a cough or retry; the assigner will route it to a phantom term",
			})
		}
	}
	return c.commit(StagePostSegmentation, issues, Summary{})
}

// PostAssignment checks every assignment's confidence against the floor.
// Below-floor and unmatched pairs are flagged, never dropped, so a human or
// downstream stage can decide.
func (c *Coordinator) PostAssignment(terms []vocab.Term, assignments []assign.Assignment) (Result, error) {
	if c.Disabled() {
		return Result{Stage: StagePostAssignment, Passed: true}, nil
	}

	var issues []Issue
	for _, a := range assignments {
		switch {
		case !a.Matched():
			issues = append(issues, Issue{
				Kind:        KindAlignment,
				Severity:    SeverityCritical,
				Stage:       StagePostAssignment,
				TermOrdinal: a.TermOrdinal,
				SpanIndex:   -1,
				Detail:      fmt.Sprintf("term %d (%q) has no acceptable span", a.TermOrdinal, termSource(terms, a.TermOrdinal)),
				Remedy:      "re-record the term or review segmentation output",
			})
		case a.Confidence < c.cfg.ConfidenceFloor:
			issues = append(issues, Issue{
				Kind:        KindAlignment,
				Severity:    SeverityWarning,
				Stage:       StagePostAssignment,
				TermOrdinal: a.TermOrdinal,
				SpanIndex:   a.SpanIndex,
				Detail:      fmt.Sprintf("term %d (%q) confidence %.2f below floor %.2f", a.TermOrdinal, termSource(terms, a.TermOrdinal), a.Confidence, c.cfg.ConfidenceFloor),
				Remedy:      "treat as unreliable; queue for human review",
			})
		}
	}
	return c.commit(StagePostAssignment, issues, summarize(assignments, c.cfg.ConfidenceFloor))
}

// PostRefinement runs the content checks over the refined assignments: each
// assigned span must contain voiced signal, must not near-duplicate another
// assigned span, and must sit within the duration tolerance band around the
// median word duration. Ordering violations reported by the refiner are
// recorded here as well.
func (c *Coordinator) PostRefinement(wave audio.Waveform, terms []vocab.Term, outcome refine.Outcome) (Result, error) {
	if c.Disabled() {
		return Result{Stage: StagePostRefinement, Passed: true}, nil
	}

	var issues []Issue

	for _, v := range outcome.OrderingViolations {
		issues = append(issues, Issue{
			Kind:        KindOrdering,
			Severity:    SeverityWarning,
			Stage:       StagePostRefinement,
			TermOrdinal: v.TermOrdinal,
			SpanIndex:   -1,
			Detail:      fmt.Sprintf("term %d starts at %.2fs, before term %d at %.2fs", v.TermOrdinal, v.SpanStart, v.PrevTermOrdinal, v.PrevSpanStart),
			Remedy:      "speaker may have read terms out of order; verify against the recording",
		})
	}

	matched := matchedAssignments(outcome.Assignments)

	// Voiced-content check.
	for _, a := range matched {
		if conf := segment.SpanConfidence(wave, a.Span, c.cfg.Segment); conf == 0 {
			issues = append(issues, Issue{
				Kind:        KindContent,
				Severity:    SeverityCritical,
				Stage:       StagePostRefinement,
				TermOrdinal: a.TermOrdinal,
				SpanIndex:   a.SpanIndex,
				Detail:      fmt.Sprintf("term %d (%q) span [%.2f, %.2f] contains no voiced signal", a.TermOrdinal, termSource(terms, a.TermOrdinal), a.Span.Start, a.Span.End),
				Remedy:      "exclude from the ready set; likely a segmentation artifact",
			})
		}
	}

	// Near-duplicate check across all assigned span pairs.
	for x := 0; x < len(matched); x++ {
		for y := x + 1; y < len(matched); y++ {
			if matched[x].Span.OverlapRatio(matched[y].Span) >= DefaultDuplicateOverlapRatio {
				issues = append(issues, Issue{
					Kind:        KindContent,
					Severity:    SeverityCritical,
					Stage:       StagePostRefinement,
					TermOrdinal: matched[y].TermOrdinal,
					SpanIndex:   matched[y].SpanIndex,
					Detail:      fmt.Sprintf("terms %d and %d share overlapping audio ([%.2f, %.2f] vs [%.2f, %.2f])", matched[x].TermOrdinal, matched[y].TermOrdinal, matched[x].Span.Start, matched[x].Span.End, matched[y].Span.Start, matched[y].Span.End),
					Remedy:      "one of the clips is a duplicate; re-segment or review manually",
				})
			}
		}
	}

	// Duration band around the median word duration.
	if med := medianDuration(matched); med > 0 {
		lo, hi := med/c.cfg.DurationTolerance, med*c.cfg.DurationTolerance
		for _, a := range matched {
			if d := a.Span.Duration(); d < lo || d > hi {
				issues = append(issues, Issue{
					Kind:        KindContent,
					Severity:    SeverityWarning,
					Stage:       StagePostRefinement,
					TermOrdinal: a.TermOrdinal,
					SpanIndex:   a.SpanIndex,
					Detail:      fmt.Sprintf("term %d duration %.2fs outside [%.2f, %.2f] around median %.2fs", a.TermOrdinal, d, lo, hi, med),
					Remedy:      "clip may contain multiple words or a fragment; review boundaries",
				})
			}
		}
	}

	return c.commit(StagePostRefinement, issues, summarize(outcome.Assignments, c.cfg.ConfidenceFloor))
}

// PreHandoff is the final cross-check before assignments leave the pipeline:
// no two assignments may reference the same span.
func (c *Coordinator) PreHandoff(assignments []assign.Assignment) (Result, error) {
	if c.Disabled() {
		return Result{Stage: StagePreHandoff, Passed: true}, nil
	}

	var issues []Issue
	bySpan := make(map[int]int)
	for _, a := range assignments {
		if !a.Matched() {
			continue
		}
		if prev, dup := bySpan[a.SpanIndex]; dup {
			issues = append(issues, Issue{
				Kind:        KindHandoff,
				Severity:    SeverityCritical,
				Stage:       StagePreHandoff,
				TermOrdinal: a.TermOrdinal,
				SpanIndex:   a.SpanIndex,
				Detail:      fmt.Sprintf("span %d referenced by terms %d and %d", a.SpanIndex, prev, a.TermOrdinal),
				Remedy:      "assignment state is corrupt; this is a pipeline bug",
			})
			continue
		}
		bySpan[a.SpanIndex] = a.TermOrdinal
	}
	return c.commit(StagePreHandoff, issues, summarize(assignments, c.cfg.ConfidenceFloor))
}

func termSource(terms []vocab.Term, ordinal int) string {
	if ordinal >= 0 && ordinal < len(terms) {
		return terms[ordinal].Source
	}
	return "?"
}

func matchedAssignments(assignments []assign.Assignment) []assign.Assignment {
	out := make([]assign.Assignment, 0, len(assignments))
	for _, a := range assignments {
		if a.Matched() {
			out = append(out, a)
		}
	}
	return out
}

func medianDuration(assignments []assign.Assignment) float64 {
	if len(assignments) == 0 {
		return 0
	}
	durations := make([]float64, 0, len(assignments))
	for _, a := range assignments {
		durations = append(durations, a.Span.Duration())
	}
	sort.Float64s(durations)
	mid := len(durations) / 2
	if len(durations)%2 == 0 {
		return (durations[mid-1] + durations[mid]) / 2
	}
	return durations[mid]
}

func summarize(assignments []assign.Assignment, floor float64) Summary {
	s := Summary{Min: 1}
	var (
		sum   float64
		count int
	)
	for _, a := range assignments {
		if !a.Matched() {
			continue
		}
		count++
		sum += a.Confidence
		if a.Confidence < s.Min {
			s.Min = a.Confidence
		}
		if a.Confidence > s.Max {
			s.Max = a.Confidence
		}
		if a.Confidence < floor {
			s.BelowFloor++
		}
	}
	if count == 0 {
		return Summary{}
	}
	s.Mean = sum / float64(count)
	return s
}
