package audio

// Span is a contiguous time region of a recording believed to contain one
// spoken word. Offsets are seconds from the start of the recording.
//
// Spans are value types: the refiner replaces a span rather than mutating it
// in place, so earlier pipeline stages keep a consistent view of their output.
type Span struct {
	// Start is the span's begin offset in seconds. Always < End.
	Start float64

	// End is the span's end offset in seconds.
	End float64

	// Confidence is a locally-derived voiced-energy score in [0, 1] — the
	// mean frame energy inside the span relative to the recording's peak.
	// It says "this region contains speech", not "this region matches a term".
	Confidence float64
}

// Duration returns the span length in seconds.
func (s Span) Duration() float64 {
	return s.End - s.Start
}

// Overlap returns the duration in seconds shared by s and o, or 0 when the
// spans are disjoint.
func (s Span) Overlap(o Span) float64 {
	start := max(s.Start, o.Start)
	end := min(s.End, o.End)
	if end <= start {
		return 0
	}
	return end - start
}

// OverlapRatio returns the shared duration relative to the shorter of the two
// spans. 1 means one span fully contains the other.
func (s Span) OverlapRatio(o Span) float64 {
	shorter := min(s.Duration(), o.Duration())
	if shorter <= 0 {
		return 0
	}
	return s.Overlap(o) / shorter
}
