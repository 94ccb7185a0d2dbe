package transcribe_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/vocalign/internal/observe"
	"github.com/MrWong99/vocalign/internal/transcribe"
	"github.com/MrWong99/vocalign/pkg/audio"
	"github.com/MrWong99/vocalign/pkg/provider/stt"
	sttmock "github.com/MrWong99/vocalign/pkg/provider/stt/mock"
)

func testWave(seconds float64) audio.Waveform {
	return audio.Waveform{Samples: make([]float32, int(seconds*16000)), SampleRate: 16000}
}

func spansN(n int) []audio.Span {
	out := make([]audio.Span, n)
	for i := range out {
		out[i] = audio.Span{Start: float64(i), End: float64(i) + 0.5}
	}
	return out
}

func TestTranscribeSpans_ResultsKeepSpanOrder(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	byLen := map[int]string{}
	provider := &sttmock.Provider{
		TranscribeFunc: func(_ context.Context, clip stt.Clip) (stt.Result, error) {
			mu.Lock()
			defer mu.Unlock()
			// Derive a distinct text per clip so order is observable.
			text := "clip-" + strconv.Itoa(len(byLen))
			byLen[len(byLen)] = text
			return stt.Result{Text: text, Confidence: 1}, nil
		},
	}

	pool := transcribe.NewPool(provider, transcribe.Config{Workers: 1})
	results, err := pool.TranscribeSpans(context.Background(), testWave(8), spansN(4))
	if err != nil {
		t.Fatalf("TranscribeSpans: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("len(results) = %d, want 4", len(results))
	}
	// With one worker, dispatch order is span order.
	for i, res := range results {
		if want := "clip-" + strconv.Itoa(i); res.Text != want {
			t.Errorf("results[%d].Text = %q, want %q", i, res.Text, want)
		}
	}
}

func TestTranscribeSpans_RetriesOnceThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	provider := &sttmock.Provider{
		TranscribeFunc: func(_ context.Context, _ stt.Clip) (stt.Result, error) {
			if calls.Add(1) == 1 {
				return stt.Result{}, errors.New("transient")
			}
			return stt.Result{Text: "ok", Confidence: 0.9}, nil
		},
	}

	pool := transcribe.NewPool(provider, transcribe.Config{})
	results, err := pool.TranscribeSpans(context.Background(), testWave(2), spansN(1))
	if err != nil {
		t.Fatalf("TranscribeSpans: %v", err)
	}
	if results[0].Text != "ok" {
		t.Errorf("results[0].Text = %q, want %q after retry", results[0].Text, "ok")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("provider calls = %d, want 2", got)
	}
}

func TestTranscribeSpans_PersistentFailureYieldsEmptyResult(t *testing.T) {
	t.Parallel()

	provider := &sttmock.Provider{
		TranscribeFunc: func(_ context.Context, _ stt.Clip) (stt.Result, error) {
			return stt.Result{}, errors.New("backend down")
		},
	}

	pool := transcribe.NewPool(provider, transcribe.Config{})
	results, err := pool.TranscribeSpans(context.Background(), testWave(4), spansN(2))
	if err != nil {
		t.Fatalf("TranscribeSpans: %v, want nil — provider failure must not abort the run", err)
	}
	for i, res := range results {
		if !res.Empty() {
			t.Errorf("results[%d] = %+v, want empty", i, res)
		}
	}
}

func TestTranscribeSpans_BoundedParallelism(t *testing.T) {
	t.Parallel()

	const workers = 2
	var current, peak atomic.Int32
	provider := &sttmock.Provider{
		TranscribeFunc: func(_ context.Context, _ stt.Clip) (stt.Result, error) {
			cur := current.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			current.Add(-1)
			return stt.Result{Text: "x", Confidence: 1}, nil
		},
	}

	pool := transcribe.NewPool(provider, transcribe.Config{Workers: workers})
	if _, err := pool.TranscribeSpans(context.Background(), testWave(10), spansN(8)); err != nil {
		t.Fatalf("TranscribeSpans: %v", err)
	}
	if got := peak.Load(); got > workers {
		t.Errorf("peak concurrency = %d, want <= %d", got, workers)
	}
}

func TestTranscribeSpans_RecordsDurationAndErrors(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			t.Errorf("shutdown meter provider: %v", err)
		}
	})
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	provider := &sttmock.Provider{
		TranscribeFunc: func(_ context.Context, _ stt.Clip) (stt.Result, error) {
			return stt.Result{}, errors.New("backend down")
		},
	}
	pool := transcribe.NewPool(provider, transcribe.Config{Workers: 1, Provider: "mock"},
		transcribe.WithMetrics(metrics))
	if _, err := pool.TranscribeSpans(context.Background(), testWave(2), spansN(1)); err != nil {
		t.Fatalf("TranscribeSpans: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	// Two dispatches (initial plus retry): two duration samples, two errors.
	hist := findTestMetric(t, rm, "vocalign.transcription.duration")
	histData, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", hist.Data)
	}
	var samples uint64
	for _, dp := range histData.DataPoints {
		samples += dp.Count
	}
	if samples != 2 {
		t.Errorf("duration samples = %d, want 2", samples)
	}

	errs := findTestMetric(t, rm, "vocalign.provider.errors")
	sum, ok := errs.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", errs.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
		if got, ok := dp.Attributes.Value("provider"); !ok || got.AsString() != "mock" {
			t.Errorf("provider attribute = %v, want %q", got, "mock")
		}
	}
	if total != 2 {
		t.Errorf("provider errors = %d, want 2", total)
	}
}

func findTestMetric(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Metrics {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %q not found", name)
	return metricdata.Metrics{}
}

func TestTranscribeSpans_Cancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &sttmock.Provider{}
	pool := transcribe.NewPool(provider, transcribe.Config{})
	_, err := pool.TranscribeSpans(ctx, testWave(4), spansN(2))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("TranscribeSpans on cancelled ctx: err = %v, want context.Canceled", err)
	}
}
