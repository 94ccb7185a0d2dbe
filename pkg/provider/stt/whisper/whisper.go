// Package whisper implements stt.Provider using the whisper.cpp CGO bindings.
// The whisper.cpp static library (libwhisper.a) and headers (whisper.h) must
// be available at link time via LIBRARY_PATH and C_INCLUDE_PATH environment
// variables.
//
// The model is loaded once at construction and shared across all concurrent
// Transcribe calls; each call creates its own whisper context because contexts
// are not thread-safe.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/vocalign/pkg/provider/stt"
)

const defaultLanguage = "ja"

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Provider is a local whisper.cpp transcription backend.
type Provider struct {
	model    whisperlib.Model
	language string
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the recognition language code (e.g., "ja", "en").
// Defaults to "ja".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// New creates a Provider that loads the whisper.cpp model from the given file
// path. The caller must call Close when the provider is no longer needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &Provider{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe runs whisper.cpp inference over the clip and returns the
// concatenated segment text with a mean token probability as confidence.
func (p *Provider) Transcribe(ctx context.Context, clip stt.Clip) (stt.Result, error) {
	if err := ctx.Err(); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	if len(clip.Samples) == 0 {
		return stt.Result{}, nil
	}

	// Each context is NOT thread-safe, but the model can be shared across
	// goroutines.
	wctx, err := p.model.NewContext()
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: create context: %w", err)
	}

	lang := clip.Language
	if lang == "" {
		lang = p.language
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}

	if err := wctx.Process(clip.Samples, nil, nil, nil); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var (
		parts      []string
		probSum    float64
		tokenCount int
	)
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Result{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
		for _, tok := range segment.Tokens {
			probSum += float64(tok.P)
			tokenCount++
		}
	}

	res := stt.Result{Text: strings.Join(parts, " ")}
	if tokenCount > 0 {
		res.Confidence = probSum / float64(tokenCount)
	}
	return res, nil
}
