// Package config provides the configuration schema and loader for the
// Vocalign alignment pipeline.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/vocalign/internal/segment"
	"github.com/MrWong99/vocalign/internal/similarity"
	"github.com/MrWong99/vocalign/internal/validate"
)

// Duration is a time.Duration that decodes from YAML strings like "30s" or
// "2m", which plain time.Duration fields cannot.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q (want e.g. \"30s\"): %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Vocalign.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	Transcriber TranscriberConfig `yaml:"transcriber"`
	Segmenter   segment.Config    `yaml:"segmenter"`
	Similarity  similarity.Config `yaml:"similarity"`
	Validation  ValidationConfig  `yaml:"validation"`
}

// TranscriberConfig selects and configures the speech-to-text backend plus
// any ordered fallback backends.
type TranscriberConfig struct {
	TranscriberEntry `yaml:",inline"`

	// Workers bounds concurrent transcription calls.
	Workers int `yaml:"workers"`

	// Timeout caps a single transcription call, including its one retry.
	Timeout Duration `yaml:"timeout"`

	// Language is the expected speech language hint (e.g., "ja").
	Language string `yaml:"language"`

	// Fallbacks lists backends tried in order when the primary fails or its
	// circuit is open.
	Fallbacks []TranscriberEntry `yaml:"fallbacks"`
}

// TranscriberEntry is the common configuration block shared by all
// speech-to-text backends. The Name field selects the implementation.
type TranscriberEntry struct {
	// Name selects the backend implementation (e.g., "whisper", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for hosted backends.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the backend's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the backend (e.g., "whisper-1").
	Model string `yaml:"model"`

	// ModelPath is the local model file path for backends that run on-device.
	ModelPath string `yaml:"model_path"`
}

// ValidationConfig tunes the validation checkpoints.
type ValidationConfig struct {
	// Mode selects how validation findings are handled. Default: normal.
	Mode validate.Mode `yaml:"mode"`

	// ConfidenceFloor marks matches below it as unreliable.
	ConfidenceFloor float64 `yaml:"confidence_floor"`

	// DurationTolerance is the multiplicative band around the median span
	// duration outside of which spans are flagged.
	DurationTolerance float64 `yaml:"duration_tolerance"`
}
