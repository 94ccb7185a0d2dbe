package pipeline_test

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/vocalign/internal/assign"
	"github.com/MrWong99/vocalign/internal/observe"
	"github.com/MrWong99/vocalign/internal/pipeline"
	"github.com/MrWong99/vocalign/internal/transcribe"
	"github.com/MrWong99/vocalign/internal/validate"
	"github.com/MrWong99/vocalign/internal/vocab"
	"github.com/MrWong99/vocalign/pkg/audio"
	"github.com/MrWong99/vocalign/pkg/provider/stt"
	sttmock "github.com/MrWong99/vocalign/pkg/provider/stt/mock"
	"github.com/MrWong99/vocalign/pkg/romaji"
)

const testRate = 16000

// buildWave concatenates constant-amplitude sections into a waveform. Each
// pair is (duration in seconds, amplitude); durations are chosen as whole
// frame multiples so span boundaries land exactly where the layout says.
func buildWave(t *testing.T, sections ...float64) audio.Waveform {
	t.Helper()
	if len(sections)%2 != 0 {
		t.Fatal("sections must be (duration, amplitude) pairs")
	}
	var samples []float32
	for i := 0; i < len(sections); i += 2 {
		n := int(sections[i] * testRate)
		amp := float32(sections[i+1])
		for range n {
			samples = append(samples, amp)
		}
	}
	return audio.Waveform{Samples: samples, SampleRate: testRate}
}

// fiveWordWave lays out five 0.4s words separated by 0.3s of silence, with
// 0.5s of leading silence.
func fiveWordWave(t *testing.T) audio.Waveform {
	t.Helper()
	return buildWave(t,
		0.5, 0,
		0.4, 0.8, 0.3, 0,
		0.4, 0.8, 0.3, 0,
		0.4, 0.8, 0.3, 0,
		0.4, 0.8, 0.3, 0,
		0.4, 0.8, 0.3, 0,
	)
}

func animalTerms() []vocab.Term {
	return []vocab.Term{
		{Ordinal: 0, Source: "犬", Target: "dog", Romanization: "inu"},
		{Ordinal: 1, Source: "猫", Target: "cat", Romanization: "neko"},
		{Ordinal: 2, Source: "鳥", Target: "bird", Romanization: "tori"},
		{Ordinal: 3, Source: "魚", Target: "fish", Romanization: "sakana"},
		{Ordinal: 4, Source: "馬", Target: "horse", Romanization: "uma"},
	}
}

// scriptedProvider plays back one result per span. Workers is pinned to 1 in
// testConfig so call order equals span order.
func scriptedProvider(texts ...string) *sttmock.Provider {
	results := make([]stt.Result, len(texts))
	for i, txt := range texts {
		results[i] = stt.Result{Text: txt, Confidence: 0.9}
	}
	return &sttmock.Provider{Results: results}
}

func testConfig(mode validate.Mode) pipeline.Config {
	return pipeline.Config{
		Transcribe: transcribe.Config{Workers: 1},
		Validation: validate.Config{Mode: mode},
	}
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func TestRun_CleanRecording(t *testing.T) {
	t.Parallel()

	provider := scriptedProvider("inu", "neko", "tori", "sakana", "uma")
	p := pipeline.New(provider, testConfig(validate.ModeNormal), pipeline.WithMetrics(testMetrics(t)))

	out, err := p.Run(context.Background(), fiveWordWave(t), animalTerms())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Spans) != 5 {
		t.Fatalf("got %d spans, want 5", len(out.Spans))
	}
	if len(out.Assignments) != 5 {
		t.Fatalf("got %d assignments, want 5", len(out.Assignments))
	}
	for i, a := range out.Assignments {
		if a.SpanIndex != i {
			t.Errorf("term %d assigned span %d, want %d", i, a.SpanIndex, i)
		}
		if a.Source != assign.SourceOriginal {
			t.Errorf("term %d source = %q, want original", i, a.Source)
		}
		if a.Confidence < 0.8 {
			t.Errorf("term %d confidence = %.3f, want >= 0.8", i, a.Confidence)
		}
	}
	if !out.Report.Passed() {
		t.Errorf("report should pass, issues: %v", out.Report.Issues())
	}
	if got := len(out.Report.ReadyOrdinals(out.Assignments)); got != 5 {
		t.Errorf("ReadyOrdinals = %d terms, want 5", got)
	}
}

func TestRun_SwappedWordsReassigned(t *testing.T) {
	t.Parallel()

	// The speaker read terms 2 and 3 in reverse order.
	provider := scriptedProvider("inu", "neko", "sakana", "tori", "uma")
	p := pipeline.New(provider, testConfig(validate.ModeNormal), pipeline.WithMetrics(testMetrics(t)))

	out, err := p.Run(context.Background(), fiveWordWave(t), animalTerms())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantSpan := []int{0, 1, 3, 2, 4}
	for i, a := range out.Assignments {
		if a.SpanIndex != wantSpan[i] {
			t.Errorf("term %d assigned span %d, want %d", i, a.SpanIndex, wantSpan[i])
		}
		if a.Confidence < 0.8 {
			t.Errorf("term %d confidence = %.3f, want >= 0.8", i, a.Confidence)
		}
	}
	if out.Assignments[2].Source != assign.SourceReassigned {
		t.Error("term 2 should be marked reassigned")
	}
	if out.Assignments[3].Source != assign.SourceReassigned {
		t.Error("term 3 should be marked reassigned")
	}

	// The crossing shows up as an ordering warning, but the pairing is kept.
	var ordering int
	for _, is := range out.Report.Issues() {
		if is.Kind == validate.KindOrdering {
			ordering++
		}
	}
	if ordering == 0 {
		t.Error("expected an ordering warning for the swapped pair")
	}
	if !out.Report.Passed() {
		t.Errorf("warnings must not fail the report, issues: %v", out.Report.Issues())
	}
}

// kanaRomanizer romanizes recogniser output via the pure kana table.
type kanaRomanizer struct{}

func (kanaRomanizer) Romanize(text string) (string, error) {
	return romaji.KanaToRomaji(text), nil
}

func TestRun_KanaTranscriptionsRomanized(t *testing.T) {
	t.Parallel()

	// A Japanese recogniser returns katakana, not romaji. The pipeline's
	// romanizer must bridge the scripts or nothing matches.
	provider := scriptedProvider("イヌ", "ネコ", "トリ", "サカナ", "ウマ")
	p := pipeline.New(provider, testConfig(validate.ModeNormal),
		pipeline.WithMetrics(testMetrics(t)),
		pipeline.WithRomanizer(kanaRomanizer{}),
	)

	out, err := p.Run(context.Background(), fiveWordWave(t), animalTerms())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, a := range out.Assignments {
		if a.SpanIndex != i {
			t.Errorf("term %d assigned span %d, want %d", i, a.SpanIndex, i)
		}
		if a.Confidence < 0.8 {
			t.Errorf("term %d confidence = %.3f, want >= 0.8", i, a.Confidence)
		}
	}
	if !out.Report.Passed() {
		t.Errorf("report should pass, issues: %v", out.Report.Issues())
	}
}

func TestRun_AcceptanceFloorFlowsIntoValidation(t *testing.T) {
	t.Parallel()

	// Exact matches score 0.9 after confidence weighting; a configured floor
	// above that must surface every assignment as a below-floor warning.
	provider := scriptedProvider("inu", "neko", "tori", "sakana", "uma")
	cfg := testConfig(validate.ModeNormal)
	cfg.Similarity.AcceptanceFloor = 0.95
	p := pipeline.New(provider, cfg, pipeline.WithMetrics(testMetrics(t)))

	out, err := p.Run(context.Background(), fiveWordWave(t), animalTerms())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var belowFloor int
	for _, is := range out.Report.Issues() {
		if is.Kind == validate.KindAlignment && is.Severity == validate.SeverityWarning {
			belowFloor++
		}
	}
	if belowFloor == 0 {
		t.Error("expected below-floor warnings when the acceptance floor exceeds every confidence")
	}
}

func TestRun_StrictHaltsOnMissingSpan(t *testing.T) {
	t.Parallel()

	// Four words in the recording, five terms in the list.
	wave := buildWave(t,
		0.5, 0,
		0.4, 0.8, 0.3, 0,
		0.4, 0.8, 0.3, 0,
		0.4, 0.8, 0.3, 0,
		0.4, 0.8, 0.3, 0,
	)
	provider := scriptedProvider("inu", "neko", "tori", "sakana")
	p := pipeline.New(provider, testConfig(validate.ModeStrict), pipeline.WithMetrics(testMetrics(t)))

	out, err := p.Run(context.Background(), wave, animalTerms())
	if !errors.Is(err, validate.ErrHalted) {
		t.Fatalf("err = %v, want ErrHalted", err)
	}
	if out == nil {
		t.Fatal("strict halt should still return the partial output")
	}
	if len(out.Report.Results) == 0 {
		t.Error("halted output should carry the checkpoint report")
	}
	if provider.CallCount() != 0 {
		t.Errorf("transcription ran %d times after a halt at segmentation", provider.CallCount())
	}
}

func TestRun_NormalModeContinuesPastMissingSpan(t *testing.T) {
	t.Parallel()

	wave := buildWave(t,
		0.5, 0,
		0.4, 0.8, 0.3, 0,
		0.4, 0.8, 0.3, 0,
		0.4, 0.8, 0.3, 0,
		0.4, 0.8, 0.3, 0,
	)
	provider := scriptedProvider("inu", "neko", "tori", "sakana")
	p := pipeline.New(provider, testConfig(validate.ModeNormal), pipeline.WithMetrics(testMetrics(t)))

	out, err := p.Run(context.Background(), wave, animalTerms())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Report.Passed() {
		t.Error("report should fail: one term has no span")
	}

	var unmatched int
	for _, a := range out.Assignments {
		if !a.Matched() {
			unmatched++
		}
	}
	if unmatched != 1 {
		t.Errorf("got %d unmatched terms, want 1", unmatched)
	}
}

func TestRun_EmptyTerms(t *testing.T) {
	t.Parallel()

	p := pipeline.New(&sttmock.Provider{}, testConfig(validate.ModeNormal), pipeline.WithMetrics(testMetrics(t)))
	_, err := p.Run(context.Background(), fiveWordWave(t), nil)
	if !errors.Is(err, pipeline.ErrNoTerms) {
		t.Fatalf("err = %v, want ErrNoTerms", err)
	}
}

func TestRun_InvalidWaveform(t *testing.T) {
	t.Parallel()

	p := pipeline.New(&sttmock.Provider{}, testConfig(validate.ModeNormal), pipeline.WithMetrics(testMetrics(t)))
	_, err := p.Run(context.Background(), audio.Waveform{}, animalTerms())
	if err == nil {
		t.Fatal("expected error for empty waveform, got nil")
	}
}

func TestRun_DisabledValidationStillAligns(t *testing.T) {
	t.Parallel()

	provider := scriptedProvider("inu", "neko", "tori", "sakana", "uma")
	p := pipeline.New(provider, testConfig(validate.ModeDisabled), pipeline.WithMetrics(testMetrics(t)))

	out, err := p.Run(context.Background(), fiveWordWave(t), animalTerms())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Assignments) != 5 {
		t.Fatalf("got %d assignments, want 5", len(out.Assignments))
	}
	if got := len(out.Report.Issues()); got != 0 {
		t.Errorf("disabled validation recorded %d issues, want 0", got)
	}
}
