// Package romaji derives an expected romanization for Japanese vocabulary
// terms. Terms loaded from a document-parsing collaborator usually carry a
// romanization already; this package fills the gap for terms that do not.
//
// Kanji and mixed-script text is converted to katakana readings with the
// kagome morphological analyzer (IPA dictionary), then transliterated to
// Hepburn-style romaji with KanaToRomaji.
package romaji

import (
	"fmt"
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// readingFeature is the IPA dictionary feature index holding the katakana
// pronunciation of a token.
const readingFeature = 7

// Converter turns Japanese text into romaji. Safe for concurrent use — the
// underlying tokenizer is read-only after construction.
type Converter struct {
	t *tokenizer.Tokenizer
}

// New constructs a Converter backed by the IPA dictionary. Dictionary loading
// is memory-heavy; construct one Converter per process and share it.
func New() (*Converter, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, fmt.Errorf("romaji: init tokenizer: %w", err)
	}
	return &Converter{t: t}, nil
}

// Romanize converts text to romaji. Tokens without a dictionary reading
// (unknown words, latin text, numbers) contribute their surface form run
// through the kana transliterator, which passes non-kana runes unchanged.
func (c *Converter) Romanize(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	var parts []string
	for _, token := range c.t.Tokenize(text) {
		reading := token.Surface
		if features := token.Features(); len(features) > readingFeature && features[readingFeature] != "*" {
			reading = features[readingFeature]
		}
		if r := KanaToRomaji(reading); r != "" {
			parts = append(parts, r)
		}
	}
	return strings.Join(parts, ""), nil
}
