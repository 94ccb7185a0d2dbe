// Package vocab defines the vocabulary term type and its YAML loader.
//
// Terms arrive from the document-parsing collaborator as an ordered list; the
// ordinal is the position in that list and must match the order the speaker
// reads the terms in the recording. Terms are loaded once and are read-only
// for the rest of the run.
package vocab

import (
	"errors"
	"fmt"
)

// Term is one vocabulary entry to align with a word clip.
type Term struct {
	// Ordinal is the zero-based document-order position. Unique per run.
	Ordinal int `yaml:"-"`

	// Source is the term in the source language (e.g., the kanji/kana form).
	Source string `yaml:"source"`

	// Target is the translation shown to the learner. Informational only for
	// alignment purposes.
	Target string `yaml:"target"`

	// Romanization is the expected pronunciation in latin script, used by the
	// similarity stage to compare against transcribed text. When empty it can
	// be derived from Source via a Romanizer.
	Romanization string `yaml:"romanization"`
}

// Romanizer derives a romanization from source-language text.
// *romaji.Converter satisfies this.
type Romanizer interface {
	Romanize(text string) (string, error)
}

// Validate checks a term list for the invariants the pipeline depends on.
//
// Rules:
//   - the list must not be empty
//   - every term needs a non-empty Source
//   - ordinals must equal the list position (assigned by the loader)
func Validate(terms []Term) error {
	if len(terms) == 0 {
		return errors.New("vocab: term list is empty")
	}

	var errs []error
	for i, term := range terms {
		if term.Source == "" {
			errs = append(errs, fmt.Errorf("terms[%d]: source must not be empty", i))
		}
		if term.Ordinal != i {
			errs = append(errs, fmt.Errorf("terms[%d]: ordinal %d does not match list position", i, term.Ordinal))
		}
	}
	return errors.Join(errs...)
}

// FillRomanizations derives a romanization for every term that lacks one.
// Terms that already carry a romanization are left untouched.
func FillRomanizations(terms []Term, r Romanizer) error {
	for i := range terms {
		if terms[i].Romanization != "" {
			continue
		}
		rom, err := r.Romanize(terms[i].Source)
		if err != nil {
			return fmt.Errorf("vocab: romanize terms[%d] %q: %w", i, terms[i].Source, err)
		}
		terms[i].Romanization = rom
	}
	return nil
}
