// Command vocalign aligns a vocabulary list with a continuous recording of a
// speaker reading the terms, producing one timed word clip per term.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrWong99/vocalign/internal/config"
	"github.com/MrWong99/vocalign/internal/observe"
	"github.com/MrWong99/vocalign/internal/pipeline"
	"github.com/MrWong99/vocalign/internal/resilience"
	"github.com/MrWong99/vocalign/internal/transcribe"
	"github.com/MrWong99/vocalign/internal/validate"
	"github.com/MrWong99/vocalign/internal/vocab"
	"github.com/MrWong99/vocalign/pkg/audio"
	"github.com/MrWong99/vocalign/pkg/provider/stt"
	sttmock "github.com/MrWong99/vocalign/pkg/provider/stt/mock"
	sttopenai "github.com/MrWong99/vocalign/pkg/provider/stt/openai"
	sttwhisper "github.com/MrWong99/vocalign/pkg/provider/stt/whisper"
	"github.com/MrWong99/vocalign/pkg/romaji"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	audioPath := flag.String("audio", "", "path to the recording as raw signed 16-bit little-endian mono PCM")
	rate := flag.Int("rate", 16000, "sample rate of the recording in Hz")
	termsPath := flag.String("terms", "", "path to the YAML vocabulary list")
	flag.Parse()

	if *audioPath == "" || *termsPath == "" {
		fmt.Fprintln(os.Stderr, "vocalign: -audio and -terms are required")
		flag.Usage()
		return 1
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "vocalign: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "vocalign: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.LogLevel))

	slog.Info("vocalign starting",
		"config", *configPath,
		"audio", *audioPath,
		"terms", *termsPath,
		"transcriber", cfg.Transcriber.Name,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Inputs ────────────────────────────────────────────────────────────────
	// One converter serves both vocabulary romanization and the similarity
	// stage, which must romanize kana transcriptions before scoring.
	conv, err := romaji.New()
	if err != nil {
		slog.Error("failed to initialise romanizer", "err", err)
		return 1
	}

	terms, err := loadTerms(*termsPath, conv)
	if err != nil {
		slog.Error("failed to load vocabulary", "err", err)
		return 1
	}

	wave, err := loadWaveform(*audioPath, *rate)
	if err != nil {
		slog.Error("failed to load recording", "err", err)
		return 1
	}
	slog.Info("recording loaded", "duration_sec", fmt.Sprintf("%.1f", wave.Duration()), "terms", len(terms))

	// ── Transcription backend ─────────────────────────────────────────────────
	provider, err := buildTranscriber(cfg.Transcriber)
	if err != nil {
		slog.Error("failed to build transcriber", "err", err)
		return 1
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	p := pipeline.New(provider, pipeline.Config{
		Segment: cfg.Segmenter,
		Transcribe: transcribe.Config{
			Workers:  cfg.Transcriber.Workers,
			Timeout:  cfg.Transcriber.Timeout.Std(),
			Language: cfg.Transcriber.Language,
			Provider: cfg.Transcriber.Name,
		},
		Similarity: cfg.Similarity,
		Validation: validate.Config{
			Mode:              cfg.Validation.Mode,
			ConfidenceFloor:   cfg.Validation.ConfidenceFloor,
			DurationTolerance: cfg.Validation.DurationTolerance,
		},
	}, pipeline.WithRomanizer(conv))

	floor := cfg.Similarity.WithDefaults().AcceptanceFloor
	out, err := p.Run(ctx, wave, terms)
	switch {
	case errors.Is(err, validate.ErrHalted):
		slog.Error("run halted by validation", "err", err)
		printReport(out, terms, floor)
		return 2
	case err != nil:
		slog.Error("run failed", "err", err)
		return 1
	}

	printReport(out, terms, floor)
	if !out.Report.Passed() {
		return 2
	}
	return 0
}

// loadTerms reads the vocabulary list and derives missing romanizations.
func loadTerms(path string, r vocab.Romanizer) ([]vocab.Term, error) {
	terms, err := vocab.Load(path)
	if err != nil {
		return nil, err
	}
	if err := vocab.FillRomanizations(terms, r); err != nil {
		return nil, err
	}
	return terms, nil
}

// loadWaveform reads a raw s16le mono PCM file.
func loadWaveform(path string, rate int) (audio.Waveform, error) {
	pcm, err := os.ReadFile(path)
	if err != nil {
		return audio.Waveform{}, err
	}
	wave := audio.Waveform{
		Samples:    audio.PCM16ToFloat32(pcm),
		SampleRate: rate,
	}
	return wave, wave.Validate()
}

// buildTranscriber constructs the configured backend, wrapping it with the
// fallback chain when fallbacks are configured.
func buildTranscriber(cfg config.TranscriberConfig) (stt.Provider, error) {
	primary, err := buildBackend(cfg.TranscriberEntry, cfg.Language)
	if err != nil {
		return nil, err
	}
	if len(cfg.Fallbacks) == 0 {
		return primary, nil
	}

	chain := resilience.NewSTTFallback(primary, cfg.Name, resilience.CircuitBreakerConfig{})
	for _, entry := range cfg.Fallbacks {
		backend, err := buildBackend(entry, cfg.Language)
		if err != nil {
			return nil, fmt.Errorf("fallback %q: %w", entry.Name, err)
		}
		chain.AddFallback(entry.Name, backend)
	}
	return chain, nil
}

func buildBackend(entry config.TranscriberEntry, language string) (stt.Provider, error) {
	switch entry.Name {
	case "whisper":
		var opts []sttwhisper.Option
		if language != "" {
			opts = append(opts, sttwhisper.WithLanguage(language))
		}
		return sttwhisper.New(entry.ModelPath, opts...)
	case "openai":
		var opts []sttopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		return sttopenai.New(entry.APIKey, entry.Model, opts...)
	case "mock":
		return &sttmock.Provider{}, nil
	default:
		return nil, fmt.Errorf("unknown transcriber %q", entry.Name)
	}
}

// ── Output ────────────────────────────────────────────────────────────────────

func printReport(out *pipeline.Output, terms []vocab.Term, floor float64) {
	if out == nil {
		return
	}

	fmt.Println()
	fmt.Println("ordinal  span        start    end      conf   source")
	for _, a := range out.Assignments {
		source := terms[a.TermOrdinal].Source
		if !a.Matched() {
			fmt.Printf("%-8d %-11s %-8s %-8s %-6s %s\n", a.TermOrdinal, "(none)", "-", "-", "-", source)
			continue
		}
		marker := ""
		if a.Similarity < floor {
			marker = " ?"
		}
		fmt.Printf("%-8d %-11d %-8.2f %-8.2f %-6.2f %s%s\n",
			a.TermOrdinal, a.SpanIndex, a.Span.Start, a.Span.End, a.Confidence, source, marker)
	}

	issues := out.Report.Issues()
	if len(issues) > 0 {
		fmt.Printf("\n%d validation issue(s):\n", len(issues))
		for _, is := range issues {
			fmt.Printf("  [%s/%s] %s\n", is.Severity, is.Kind, is.Detail)
			if is.Remedy != "" {
				fmt.Printf("      remedy: %s\n", is.Remedy)
			}
		}
	}

	ready := out.Report.ReadyOrdinals(out.Assignments)
	fmt.Printf("\n%d/%d terms ready for packaging\n", len(ready), len(terms))
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
