package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidTranscriberNames lists the known speech-to-text backend names.
// Used by [Validate] to warn about unrecognised names.
var ValidTranscriberNames = []string{"whisper", "openai", "mock"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if err := validateTranscriber("transcriber", cfg.Transcriber.TranscriberEntry); err != nil {
		errs = append(errs, err)
	}
	for i, fb := range cfg.Transcriber.Fallbacks {
		if err := validateTranscriber(fmt.Sprintf("transcriber.fallbacks[%d]", i), fb); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.Transcriber.Workers < 0 {
		errs = append(errs, fmt.Errorf("transcriber.workers %d must not be negative", cfg.Transcriber.Workers))
	}
	if cfg.Transcriber.Timeout < 0 {
		errs = append(errs, fmt.Errorf("transcriber.timeout %s must not be negative", cfg.Transcriber.Timeout.Std()))
	}

	if cfg.Segmenter.SilenceThresholdRatio < 0 || cfg.Segmenter.SilenceThresholdRatio > 1 {
		errs = append(errs, fmt.Errorf("segmenter.silence_threshold_ratio %.3f is out of range [0, 1]", cfg.Segmenter.SilenceThresholdRatio))
	}
	if cfg.Segmenter.MinSilenceSec < 0 {
		errs = append(errs, fmt.Errorf("segmenter.min_silence_sec %.3f must not be negative", cfg.Segmenter.MinSilenceSec))
	}
	if cfg.Segmenter.MinSpanSec < 0 {
		errs = append(errs, fmt.Errorf("segmenter.min_span_sec %.3f must not be negative", cfg.Segmenter.MinSpanSec))
	}

	if cfg.Similarity.AcceptanceFloor < 0 || cfg.Similarity.AcceptanceFloor > 1 {
		errs = append(errs, fmt.Errorf("similarity.acceptance_floor %.3f is out of range [0, 1]", cfg.Similarity.AcceptanceFloor))
	}

	if cfg.Validation.Mode != "" && !cfg.Validation.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("validation.mode %q is invalid; valid values: strict, normal, lenient, disabled", cfg.Validation.Mode))
	}
	if cfg.Validation.ConfidenceFloor < 0 || cfg.Validation.ConfidenceFloor > 1 {
		errs = append(errs, fmt.Errorf("validation.confidence_floor %.3f is out of range [0, 1]", cfg.Validation.ConfidenceFloor))
	}
	if cfg.Validation.DurationTolerance != 0 && cfg.Validation.DurationTolerance <= 1 {
		errs = append(errs, fmt.Errorf("validation.duration_tolerance %.3f must be greater than 1", cfg.Validation.DurationTolerance))
	}

	return errors.Join(errs...)
}

// validateTranscriber checks one backend block. Unknown backend names are
// only warned about so that out-of-tree backends stay usable.
func validateTranscriber(prefix string, e TranscriberEntry) error {
	if e.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if !slices.Contains(ValidTranscriberNames, e.Name) {
		slog.Warn("unknown transcriber name — may be a typo or third-party backend",
			"field", prefix,
			"name", e.Name,
			"known", ValidTranscriberNames,
		)
		return nil
	}
	switch e.Name {
	case "whisper":
		if e.ModelPath == "" {
			return fmt.Errorf("%s.model_path is required for the whisper backend", prefix)
		}
	case "openai":
		if e.APIKey == "" {
			return fmt.Errorf("%s.api_key is required for the openai backend", prefix)
		}
	}
	return nil
}
