// Package assign resolves the term→span pairing by solving a minimum-cost
// bipartite assignment over the negated similarity matrix.
//
// A greedy left-to-right match would propagate one segmentation error into
// every subsequent term; the global optimum lets high-confidence evidence
// elsewhere in the recording override a single bad local guess. Ties between
// equal-similarity pairings are broken deterministically toward the span
// position implied by the term's ordinal.
package assign

import (
	"math"

	"github.com/MrWong99/vocalign/internal/similarity"
	"github.com/MrWong99/vocalign/pkg/audio"
)

// Source tags how an assignment came to pair its term with its span.
type Source string

const (
	// SourceOriginal means the term kept the span at its own ordinal
	// position.
	SourceOriginal Source = "original"

	// SourceReassigned means the optimal matching moved the term to a span
	// other than the position-order one.
	SourceReassigned Source = "reassigned"
)

// Assignment is one resolved term→span pairing.
type Assignment struct {
	// TermOrdinal is the term's document-order position.
	TermOrdinal int

	// SpanIndex is the index into the segmenter's span list, or -1 when the
	// matcher found no acceptable real span ("no acceptable match").
	SpanIndex int

	// Span is a copy of the resolved span boundaries. The refiner replaces
	// this value when boundaries change.
	Span audio.Span

	// Similarity is the matrix cell value for this pairing.
	Similarity float64

	// Confidence starts equal to Similarity and is recomputed by the refiner
	// from the final boundaries.
	Confidence float64

	// Source records whether the pairing was positional or reassigned.
	Source Source
}

// Matched reports whether the assignment references a real span.
func (a Assignment) Matched() bool { return a.SpanIndex >= 0 }

// tieEpsilon is the per-cell cost nudge toward the ordinal-implied span. It
// is orders of magnitude below any meaningful similarity difference, so it
// only ever decides exact ties.
const tieEpsilon = 1e-9

// Assign solves the matching and returns one Assignment per real term, in
// ordinal order. Terms matched to a phantom column come back with
// SpanIndex -1 and zero confidence; phantom rows are excluded entirely.
func Assign(m *similarity.Matrix, spans []audio.Span) []Assignment {
	n := m.Size()
	if n == 0 {
		return nil
	}

	cost := make([][]float64, n)
	for i := range cost {
		cost[i] = make([]float64, n)
		for j := range cost[i] {
			cost[i][j] = -m.At(i, j) + tieEpsilon*math.Abs(float64(i-j))
		}
	}

	cols := solveHungarian(cost)

	out := make([]Assignment, 0, m.TermCount)
	for i := 0; i < m.TermCount; i++ {
		j := cols[i]
		a := Assignment{
			TermOrdinal: i,
			SpanIndex:   -1,
			Source:      SourceOriginal,
		}
		if !m.PhantomCol(j) {
			a.SpanIndex = j
			a.Span = spans[j]
			a.Similarity = m.At(i, j)
			a.Confidence = a.Similarity
			if j != i {
				a.Source = SourceReassigned
			}
		}
		out = append(out, a)
	}
	return out
}

// TotalSimilarity sums the similarity of all matched assignments. Used by the
// optimality property tests and the refiner's comparative logging.
func TotalSimilarity(assignments []Assignment) float64 {
	var sum float64
	for _, a := range assignments {
		if a.Matched() {
			sum += a.Similarity
		}
	}
	return sum
}
