package vocab

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// termFile is the on-disk YAML schema: a document with a single "terms" list.
type termFile struct {
	Terms []Term `yaml:"terms"`
}

// Load reads the YAML term list at path and returns validated terms with
// ordinals assigned by list position.
func Load(path string) ([]Term, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: open %q: %w", path, err)
	}
	defer f.Close()

	terms, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("vocab: parse %q: %w", path, err)
	}
	return terms, nil
}

// LoadFromReader decodes a YAML term list from r and validates the result.
// Useful in tests where term lists are constructed from string literals.
func LoadFromReader(r io.Reader) ([]Term, error) {
	var file termFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("vocab: decode yaml: %w", err)
	}

	for i := range file.Terms {
		file.Terms[i].Ordinal = i
	}
	if err := Validate(file.Terms); err != nil {
		return nil, err
	}
	return file.Terms, nil
}
