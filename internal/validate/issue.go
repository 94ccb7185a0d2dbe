package validate

import "fmt"

// Kind classifies a validation issue. New kinds are compile-time-checked
// additions: every consumer switches exhaustively over these constants.
type Kind string

const (
	// KindCount: span count does not match term count after segmentation.
	KindCount Kind = "count"

	// KindAlignment: an assignment's confidence fell below the floor, or a
	// term found no acceptable span at all.
	KindAlignment Kind = "alignment"

	// KindContent: an assigned span is silent, a near-duplicate of another
	// assigned span, or far off the median word duration.
	KindContent Kind = "content"

	// KindOrdering: the refined assignment order contradicts term order.
	KindOrdering Kind = "ordering"

	// KindHandoff: a final cross-check failed, e.g. two assignments
	// referencing the same span.
	KindHandoff Kind = "handoff"
)

// Severity grades an issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Issue is one detected problem, always attached to the checkpoint that
// produced it.
type Issue struct {
	Kind     Kind
	Severity Severity
	Stage    Stage

	// TermOrdinal and SpanIndex identify the affected pair; -1 means not
	// applicable.
	TermOrdinal int
	SpanIndex   int

	// Detail is the human-readable description.
	Detail string

	// Remedy suggests what a human or downstream stage could do about it.
	Remedy string
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s/%s] %s: %s", i.Stage, i.Severity, i.Kind, i.Detail)
}

// Stage names a validation checkpoint.
type Stage string

const (
	StagePostSegmentation Stage = "post-segmentation"
	StagePostAssignment   Stage = "post-assignment"
	StagePostRefinement   Stage = "post-refinement"
	StagePreHandoff       Stage = "pre-handoff"
)

// Mode selects checkpoint strictness.
type Mode string

const (
	// ModeStrict halts the pipeline on the first critical issue.
	ModeStrict Mode = "strict"

	// ModeNormal records every issue and lets the run continue.
	ModeNormal Mode = "normal"

	// ModeLenient records every issue like ModeNormal, but downgrades
	// warnings to informational so only criticals demand attention.
	ModeLenient Mode = "lenient"

	// ModeDisabled skips validation entirely. The only mode with zero
	// checkpoint overhead.
	ModeDisabled Mode = "disabled"
)

// IsValid reports whether m is a recognised mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeStrict, ModeNormal, ModeLenient, ModeDisabled:
		return true
	}
	return false
}
