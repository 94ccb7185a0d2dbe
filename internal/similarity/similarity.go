// Package similarity scores every (term, span) pair by comparing the term's
// expected romanization against the span's transcribed text.
//
// The score is a normalised edit-distance similarity over case- and
// diacritic-folded text, taken together with Jaro-Winkler as a secondary
// strategy (the higher of the two wins, mirroring how short romanization
// strings punish single-character edits too hard under pure Levenshtein).
// Pairs both metrics rate poorly get one more chance through Double
// Metaphone equality, which catches recogniser spelling variants that sound
// alike. The result is weighted by the transcription confidence so an
// uncertain recognition cannot produce a falsely strong match.
//
// Recognisers for Japanese return kana or kanji; when the Builder carries a
// Romanizer those transcriptions are converted to romaji before comparison,
// otherwise they would never edit-match a Hepburn romanization.
package similarity

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/vocalign/internal/vocab"
	"github.com/MrWong99/vocalign/pkg/provider/stt"
)

// DefaultAcceptanceFloor is the similarity below which an assignment is
// considered unreliable. Observed around 0.3 in practice; its derivation is
// undocumented upstream, so it is exposed as configuration and pinned by the
// property tests rather than hard-coded at call sites.
const DefaultAcceptanceFloor = 0.3

// Config holds the similarity parameters.
type Config struct {
	// AcceptanceFloor marks scores below it as unreliable. Zero selects
	// DefaultAcceptanceFloor.
	AcceptanceFloor float64 `yaml:"acceptance_floor"`
}

// WithDefaults returns c with zero fields replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.AcceptanceFloor <= 0 {
		c.AcceptanceFloor = DefaultAcceptanceFloor
	}
	return c
}

// Matrix is the pairwise term/span similarity matrix, padded with
// zero-similarity phantom rows or columns to stay square. Cell values are in
// [0, 1]; 1 means a certain match.
type Matrix struct {
	// TermCount and SpanCount are the real (pre-padding) dimensions.
	TermCount int
	SpanCount int

	scores [][]float64
}

// Size returns the padded square dimension.
func (m *Matrix) Size() int {
	return len(m.scores)
}

// At returns the score for (term row i, span column j). Phantom cells are 0.
func (m *Matrix) At(i, j int) float64 {
	return m.scores[i][j]
}

// PhantomRow reports whether row i is padding (no real term).
func (m *Matrix) PhantomRow(i int) bool { return i >= m.TermCount }

// PhantomCol reports whether column j is padding (no real span).
func (m *Matrix) PhantomCol(j int) bool { return j >= m.SpanCount }

// Builder computes similarity matrices.
type Builder struct {
	cfg       Config
	romanizer vocab.Romanizer
}

// Option customises a Builder.
type Option func(*Builder)

// WithRomanizer converts non-Latin transcriptions to romaji before scoring.
// Without it a Japanese recogniser's kana output never edit-matches the
// term's romanization, so every real cell collapses to zero.
func WithRomanizer(r vocab.Romanizer) Option {
	return func(b *Builder) { b.romanizer = r }
}

// NewBuilder returns a Builder with cfg's zero fields defaulted.
func NewBuilder(cfg Config, opts ...Option) *Builder {
	b := &Builder{cfg: cfg.WithDefaults()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Floor returns the configured acceptance floor.
func (b *Builder) Floor() float64 { return b.cfg.AcceptanceFloor }

// Build scores every (term, span) pair. results must be ordered like the
// spans they were transcribed from; a missing or empty result yields a zero
// column for that span, not an error.
func (b *Builder) Build(terms []vocab.Term, results []stt.Result) *Matrix {
	n := max(len(terms), len(results))
	scores := make([][]float64, n)
	for i := range scores {
		scores[i] = make([]float64, n)
	}

	for i, term := range terms {
		expected := Normalize(term.Romanization)
		if expected == "" {
			expected = Normalize(term.Source)
		}
		for j, res := range results {
			if res.Empty() || expected == "" {
				continue
			}
			scores[i][j] = Score(expected, Normalize(b.transcribed(res.Text))) * res.Confidence
		}
	}

	return &Matrix{
		TermCount: len(terms),
		SpanCount: len(results),
		scores:    scores,
	}
}

// transcribed returns text ready for Normalize, romanizing it first when the
// builder has a romanizer and the recogniser emitted non-ASCII script. A
// romanization failure falls back to the raw text rather than zeroing the
// column.
func (b *Builder) transcribed(text string) string {
	if b.romanizer == nil || isASCII(text) {
		return text
	}
	rom, err := b.romanizer.Romanize(text)
	if err != nil || rom == "" {
		return text
	}
	return rom
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return false
		}
	}
	return true
}

// Score returns the textual similarity of two normalised strings in [0, 1].
// Both inputs should already be folded with Normalize.
func Score(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	// Strategy 1: normalised Levenshtein over the full strings.
	dist := matchr.Levenshtein(a, b)
	longest := max(len([]rune(a)), len([]rune(b)))
	editSim := 1.0 - float64(dist)/float64(longest)
	if editSim < 0 {
		editSim = 0
	}

	// Strategy 2: Jaro-Winkler, which is kinder to shared prefixes.
	score := editSim
	if jw := matchr.JaroWinkler(a, b, false); jw > score {
		score = jw
	}

	// Strategy 3: Double Metaphone equality as a phonetic rescue. Short
	// vowel-heavy romanizations ("duu" vs a recogniser's "do") fail both
	// string metrics while encoding identically.
	if score < phoneticRescueScore {
		p1, s1 := matchr.DoubleMetaphone(a)
		p2, s2 := matchr.DoubleMetaphone(b)
		if p1 != "" && (p1 == p2 || (s1 != "" && s1 == s2)) {
			score = phoneticRescueScore
		}
	}
	return score
}

// phoneticRescueScore is the score granted to phonetically identical pairs
// the string metrics rejected. Kept below any direct textual match so a
// spelled-out match always wins the assignment.
const phoneticRescueScore = 0.7

// diacriticFold maps the long-vowel macrons common in Hepburn romanization
// (and a few other accents recognisers emit) to their base vowels.
var diacriticFold = strings.NewReplacer(
	"ā", "a", "ī", "i", "ū", "u", "ē", "e", "ō", "o",
	"â", "a", "î", "i", "û", "u", "ê", "e", "ô", "o",
	"á", "a", "í", "i", "ú", "u", "é", "e", "ó", "o",
	"à", "a", "ì", "i", "ù", "u", "è", "e", "ò", "o",
)

// Normalize lowercases, folds diacritics, and strips everything that is not
// a letter or digit, so "Gakkō." and "gakkou"-style variants compare fairly.
func Normalize(s string) string {
	s = diacriticFold.Replace(strings.ToLower(strings.TrimSpace(s)))
	var b strings.Builder
	for _, r := range s {
		if r == ' ' || r == '\t' {
			continue
		}
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r > 127:
			// Keep non-ASCII script runes: recognisers for Japanese return
			// kana/kanji, which still edit-compare against themselves.
			b.WriteRune(r)
		}
	}
	return b.String()
}
