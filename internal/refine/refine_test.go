package refine_test

import (
	"math"
	"testing"

	"github.com/MrWong99/vocalign/internal/assign"
	"github.com/MrWong99/vocalign/internal/refine"
	"github.com/MrWong99/vocalign/pkg/audio"
)

const testRate = 16000

func buildWave(parts ...[2]float64) audio.Waveform {
	var samples []float32
	for _, p := range parts {
		n := int(p[0] * testRate)
		for range n {
			samples = append(samples, float32(p[1]))
		}
	}
	return audio.Waveform{Samples: samples, SampleRate: testRate}
}

func matched(ordinal, spanIndex int, span audio.Span, sim float64) assign.Assignment {
	return assign.Assignment{
		TermOrdinal: ordinal,
		SpanIndex:   spanIndex,
		Span:        span,
		Similarity:  sim,
		Confidence:  sim,
		Source:      assign.SourceOriginal,
	}
}

func TestRefine_TrimsSilencePadding(t *testing.T) {
	t.Parallel()

	// Speech at 0.5–0.9; assignment sloppily spans 0.2–1.3.
	wave := buildWave([2]float64{0.5, 0}, [2]float64{0.4, 0.5}, [2]float64{0.5, 0})
	in := []assign.Assignment{matched(0, 0, audio.Span{Start: 0.2, End: 1.3}, 0.9)}

	out := refine.New(refine.Config{}).Refine(wave, in)
	got := out.Assignments[0].Span

	if math.Abs(got.Start-0.5) > 0.05 || math.Abs(got.End-0.9) > 0.05 {
		t.Errorf("refined span = [%f, %f], want ~[0.5, 0.9]", got.Start, got.End)
	}
	if len(out.Reverts) != 0 {
		t.Errorf("Reverts = %v, want none — trimming silence never scores worse", out.Reverts)
	}
	if out.Assignments[0].Confidence <= 0 {
		t.Errorf("confidence = %f, want > 0 after recompute", out.Assignments[0].Confidence)
	}
	// Input must not be mutated.
	if in[0].Span.Start != 0.2 {
		t.Error("input assignment mutated in place")
	}
}

func TestRefine_Idempotent(t *testing.T) {
	t.Parallel()

	wave := buildWave(
		[2]float64{0.4, 0}, [2]float64{0.4, 0.5},
		[2]float64{0.3, 0}, [2]float64{0.4, 0.6},
		[2]float64{0.3, 0},
	)
	in := []assign.Assignment{
		matched(0, 0, audio.Span{Start: 0.3, End: 0.9}, 0.9),
		matched(1, 1, audio.Span{Start: 1.0, End: 1.6}, 0.8),
	}

	r := refine.New(refine.Config{})
	first := r.Refine(wave, in)
	second := r.Refine(wave, first.Assignments)

	for i := range first.Assignments {
		a, b := first.Assignments[i], second.Assignments[i]
		if a.Span != b.Span {
			t.Errorf("term %d span changed on second pass: %+v -> %+v", i, a.Span, b.Span)
		}
		if math.Abs(a.Confidence-b.Confidence) > 1e-9 {
			t.Errorf("term %d confidence changed on second pass: %f -> %f", i, a.Confidence, b.Confidence)
		}
	}
}

func TestRefine_SplitsNeighbourOverlap(t *testing.T) {
	t.Parallel()

	// One continuous voiced burst 0.5–1.5; both assignments overlap in the
	// middle. Constant amplitude keeps scores equal, so the repaired
	// boundaries are kept (demonstrably no worse).
	wave := buildWave([2]float64{0.5, 0}, [2]float64{1.0, 0.5}, [2]float64{0.3, 0})
	in := []assign.Assignment{
		matched(0, 0, audio.Span{Start: 0.5, End: 1.1}, 0.9),
		matched(1, 1, audio.Span{Start: 0.9, End: 1.5}, 0.9),
	}

	out := refine.New(refine.Config{}).Refine(wave, in)
	a, b := out.Assignments[0].Span, out.Assignments[1].Span

	if a.End > b.Start+1e-9 {
		t.Errorf("overlap not repaired: a=[%f,%f] b=[%f,%f]", a.Start, a.End, b.Start, b.End)
	}
	if math.Abs(a.End-1.0) > 0.05 {
		t.Errorf("split point = %f, want ~1.0 (midpoint of overlap)", a.End)
	}
}

func TestRefine_RevertsWorseBoundaryChange(t *testing.T) {
	t.Parallel()

	// Span B's loud region sits inside the overlap with span A. The midpoint
	// split would cut B's loud part away and drop its score, so the split
	// must be reverted for B.
	wave := buildWave(
		[2]float64{1.0, 0},
		[2]float64{0.2, 0.3}, // 1.0–1.2 quiet (A only)
		[2]float64{0.3, 0.9}, // 1.2–1.5 loud (overlap)
		[2]float64{0.5, 0.3}, // 1.5–2.0 quiet (B tail)
		[2]float64{0.3, 0},
	)
	in := []assign.Assignment{
		matched(0, 0, audio.Span{Start: 1.0, End: 1.5}, 0.9),
		matched(1, 1, audio.Span{Start: 1.2, End: 2.0}, 0.9),
	}

	out := refine.New(refine.Config{}).Refine(wave, in)

	if len(out.Reverts) == 0 {
		t.Fatal("Reverts empty, want at least one reverted boundary change")
	}
	for _, rv := range out.Reverts {
		if rv.RefinedScore >= rv.OriginalScore {
			t.Errorf("revert recorded but refined %f >= original %f", rv.RefinedScore, rv.OriginalScore)
		}
		if got := out.Assignments[rv.TermOrdinal].Span; got != in[rv.TermOrdinal].Span {
			t.Errorf("term %d reverted but span = %+v, want original %+v", rv.TermOrdinal, got, in[rv.TermOrdinal].Span)
		}
	}
}

func TestRefine_FlagsOrderingViolation(t *testing.T) {
	t.Parallel()

	wave := buildWave(
		[2]float64{0.3, 0}, [2]float64{0.4, 0.5},
		[2]float64{0.3, 0}, [2]float64{0.4, 0.5},
		[2]float64{0.3, 0},
	)
	// Term 0 assigned the later span, term 1 the earlier one.
	in := []assign.Assignment{
		matched(0, 1, audio.Span{Start: 1.0, End: 1.4}, 0.9),
		matched(1, 0, audio.Span{Start: 0.3, End: 0.7}, 0.9),
	}

	out := refine.New(refine.Config{}).Refine(wave, in)
	if len(out.OrderingViolations) != 1 {
		t.Fatalf("OrderingViolations = %d, want 1", len(out.OrderingViolations))
	}
	v := out.OrderingViolations[0]
	if v.TermOrdinal != 1 || v.PrevTermOrdinal != 0 {
		t.Errorf("violation = %+v, want term 1 after term 0", v)
	}
	// Flagged, not reverted: the pairing itself is the assigner's call.
	if out.Assignments[0].SpanIndex != 1 || out.Assignments[1].SpanIndex != 0 {
		t.Error("ordering violation must not silently rewrite the pairing")
	}
}

func TestRefine_MonotonicAfterAcceptedRefinement(t *testing.T) {
	t.Parallel()

	wave := buildWave(
		[2]float64{0.3, 0}, [2]float64{0.4, 0.5},
		[2]float64{0.3, 0}, [2]float64{0.4, 0.5},
		[2]float64{0.3, 0}, [2]float64{0.4, 0.5},
		[2]float64{0.2, 0},
	)
	in := []assign.Assignment{
		matched(0, 0, audio.Span{Start: 0.2, End: 0.8}, 0.9),
		matched(1, 1, audio.Span{Start: 0.9, End: 1.5}, 0.9),
		matched(2, 2, audio.Span{Start: 1.6, End: 2.2}, 0.9),
	}

	out := refine.New(refine.Config{}).Refine(wave, in)
	if len(out.OrderingViolations) != 0 {
		t.Fatalf("unexpected ordering violations: %+v", out.OrderingViolations)
	}
	prev := -1.0
	for _, a := range out.Assignments {
		if a.Span.Start <= prev {
			t.Errorf("span starts not strictly increasing: %f after %f", a.Span.Start, prev)
		}
		prev = a.Span.Start
	}
}
