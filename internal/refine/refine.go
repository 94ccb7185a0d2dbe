// Package refine repairs assignment boundaries after the optimal matching
// and re-derives per-term confidence from the final span state.
//
// Two independent concerns live here. First, ordering: when the matcher has
// reassigned spans, the span-start order may no longer follow term ordinal
// order — that signals a structurally suspicious reassignment and is flagged,
// never silently accepted. Second, boundaries: every assigned span is
// re-scanned for leading/trailing silence and overlap with its temporal
// neighbour, because segmentation artifacts are independent of assignment
// correctness. Boundary repair runs even when the assigner changed nothing.
//
// A refined span is kept only when it is demonstrably no worse than the
// original (its recomputed score is greater or equal); otherwise the original
// boundaries are restored and the revert is logged with both scores.
package refine

import (
	"log/slog"
	"sort"

	"github.com/MrWong99/vocalign/internal/assign"
	"github.com/MrWong99/vocalign/internal/segment"
	"github.com/MrWong99/vocalign/pkg/audio"
)

// Config holds the refiner parameters. Energy settings must match the
// segmenter's so trim decisions agree with the original boundary detection.
type Config struct {
	Segment segment.Config `yaml:"segment"`
}

// OrderingViolation records one inversion between term order and span order.
type OrderingViolation struct {
	TermOrdinal     int
	SpanStart       float64
	PrevTermOrdinal int
	PrevSpanStart   float64
}

// Revert records a refined span that was rejected for scoring worse than the
// assignment it replaced.
type Revert struct {
	TermOrdinal   int
	RefinedScore  float64
	OriginalScore float64
}

// Outcome is the refiner's result: the same-length assignment list plus the
// structural findings the validation coordinator consumes.
type Outcome struct {
	Assignments        []assign.Assignment
	OrderingViolations []OrderingViolation
	Reverts            []Revert
}

// Refiner repairs span boundaries. Safe for concurrent use.
type Refiner struct {
	cfg Config
}

// New returns a Refiner with cfg's zero fields defaulted.
func New(cfg Config) *Refiner {
	cfg.Segment = cfg.Segment.WithDefaults()
	return &Refiner{cfg: cfg}
}

// Refine processes the assignment list against the recording. The input
// slice is not mutated; spans are replaced, never edited in place.
func (r *Refiner) Refine(wave audio.Waveform, assignments []assign.Assignment) Outcome {
	out := Outcome{
		Assignments: make([]assign.Assignment, len(assignments)),
	}
	copy(out.Assignments, assignments)

	out.OrderingViolations = detectOrderingViolations(out.Assignments)

	refined := r.refineBoundaries(wave, out.Assignments)

	// Accept or revert each boundary change on comparative score.
	for i := range out.Assignments {
		orig := &out.Assignments[i]
		if !orig.Matched() {
			continue
		}
		cand := refined[i]

		origScore := orig.Similarity * segment.SpanConfidence(wave, orig.Span, r.cfg.Segment)
		candScore := orig.Similarity * segment.SpanConfidence(wave, cand, r.cfg.Segment)

		if candScore >= origScore {
			orig.Span = cand
			orig.Confidence = candScore
			continue
		}

		out.Reverts = append(out.Reverts, Revert{
			TermOrdinal:   orig.TermOrdinal,
			RefinedScore:  candScore,
			OriginalScore: origScore,
		})
		slog.Info("refine: reverting boundary change, refined span scores worse",
			"term", orig.TermOrdinal,
			"refined_score", candScore,
			"original_score", origScore,
		)
		orig.Confidence = origScore
	}

	return out
}

// detectOrderingViolations walks matched assignments in ordinal order and
// reports every place where span start times fail to strictly increase.
func detectOrderingViolations(assignments []assign.Assignment) []OrderingViolation {
	var (
		violations []OrderingViolation
		havePrev   bool
		prev       assign.Assignment
	)
	for _, a := range assignments {
		if !a.Matched() {
			continue
		}
		if havePrev && a.Span.Start <= prev.Span.Start {
			violations = append(violations, OrderingViolation{
				TermOrdinal:     a.TermOrdinal,
				SpanStart:       a.Span.Start,
				PrevTermOrdinal: prev.TermOrdinal,
				PrevSpanStart:   prev.Span.Start,
			})
		}
		prev = a
		havePrev = true
	}
	return violations
}

// refineBoundaries produces a candidate span per assignment: silence trimmed
// from both edges, then overlap with the temporal neighbour split at the
// midpoint. Unmatched assignments keep their zero span.
func (r *Refiner) refineBoundaries(wave audio.Waveform, assignments []assign.Assignment) []audio.Span {
	spans := make([]audio.Span, len(assignments))

	// Trim pass.
	for i, a := range assignments {
		spans[i] = a.Span
		if !a.Matched() {
			continue
		}
		start, end, ok := segment.VoicedBounds(wave, a.Span, r.cfg.Segment)
		if !ok {
			// Pure silence inside the span; nothing to anchor a trim on.
			// The content checkpoint will flag it.
			continue
		}
		// VoicedBounds is frame-aligned and may poke past the span edge by a
		// fraction of a frame; a trim only ever shrinks.
		start = max(start, a.Span.Start)
		end = min(end, a.Span.End)
		if end <= start {
			continue
		}
		spans[i] = audio.Span{Start: start, End: end, Confidence: a.Span.Confidence}
	}

	// Overlap pass over the spans in temporal order.
	order := make([]int, 0, len(assignments))
	for i, a := range assignments {
		if a.Matched() {
			order = append(order, i)
		}
	}
	sort.Slice(order, func(x, y int) bool {
		return spans[order[x]].Start < spans[order[y]].Start
	})
	for k := 0; k+1 < len(order); k++ {
		cur, next := order[k], order[k+1]
		if spans[cur].End <= spans[next].Start {
			continue
		}
		mid := (spans[next].Start + spans[cur].End) / 2
		if mid > spans[cur].Start && mid < spans[next].End {
			spans[cur].End = mid
			spans[next].Start = mid
		}
		// Otherwise one span swallows the other entirely; leave it for the
		// duplicate content check rather than fabricating a boundary.
	}

	return spans
}
