// Package openai implements stt.Provider using the OpenAI audio
// transcription API (whisper-1 and gpt-4o-transcribe model family).
//
// Clips are encoded as in-memory WAV files before upload; the API does not
// accept raw PCM. The API reports no confidence score, so results carry a
// fixed confidence documented on DefaultConfidence.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/vocalign/pkg/provider/stt"
)

// DefaultConfidence is assigned to every non-empty transcription because the
// OpenAI transcription endpoint does not expose per-result confidence. The
// value keeps hosted results usable by the similarity stage without letting
// them outrank a locally-measured high-confidence result.
const DefaultConfidence = 0.85

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Provider is a hosted OpenAI transcription backend.
type Provider struct {
	client oai.Client
	model  string
}

type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for configuring a Provider.
type Option func(*config)

// WithBaseURL overrides the API endpoint, e.g. for an OpenAI-compatible
// self-hosted gateway.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets the HTTP client timeout for each transcription request.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a new OpenAI transcription Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		model = string(oai.AudioModelWhisper1)
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model}, nil
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, clip stt.Clip) (stt.Result, error) {
	if len(clip.Samples) == 0 {
		return stt.Result{}, nil
	}

	wav := encodeWAV(clip.Samples, clip.SampleRate)

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "clip.wav", "audio/wav"),
		Model: oai.AudioModel(p.model),
	}
	if clip.Language != "" {
		params.Language = oai.String(clip.Language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return stt.Result{}, fmt.Errorf("openai: transcribe: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return stt.Result{}, nil
	}
	return stt.Result{Text: text, Confidence: DefaultConfidence}, nil
}
