// Package segment turns a raw waveform into an ordered sequence of candidate
// word spans using short-time energy voice activity detection.
//
// The detector computes the RMS energy of fixed-size frames, classifies each
// frame as voiced or silent against a threshold relative to the recording's
// peak energy, and cuts span boundaries at silent gaps longer than a minimum
// silence duration. Shorter gaps are treated as micro-pauses inside a single
// word, which is what makes the detector degrade toward wider, merged spans
// under background noise instead of fragmenting.
package segment

import (
	"errors"
	"log/slog"
	"math"

	"github.com/MrWong99/vocalign/pkg/audio"
)

// ErrNoSpeech is returned when no frame of the waveform rises above the
// silence threshold. An empty segmentation is an input error, never a valid
// zero-span result.
var ErrNoSpeech = errors.New("segment: no speech detected in waveform")

const (
	// DefaultSilenceThresholdRatio classifies a frame as voiced when its RMS
	// energy exceeds this fraction of the recording's peak frame energy.
	// The value was settled after recordings with laptop-fan background noise
	// produced hundreds of phantom spans at lower ratios; changing it is a
	// behavioural regression, not a tuning knob.
	DefaultSilenceThresholdRatio = 0.10

	// DefaultMinSilenceSec is the shortest silent gap that separates two
	// words. Gaps below this are micro-pauses (plosive closures, glottal
	// stops) inside a single word.
	DefaultMinSilenceSec = 0.12

	// DefaultMinSpanSec is the shortest span the segmenter will emit on its
	// own. Shorter detections are merged into a neighbour, or dropped when
	// isolated.
	DefaultMinSpanSec = 0.08

	// DefaultFrameSizeMs is the analysis frame length.
	DefaultFrameSizeMs = 20
)

// Config holds the segmentation parameters. The zero value selects the
// defaults documented on the constants above.
type Config struct {
	SilenceThresholdRatio float64 `yaml:"silence_threshold_ratio"`
	MinSilenceSec         float64 `yaml:"min_silence_sec"`
	MinSpanSec            float64 `yaml:"min_span_sec"`
	FrameSizeMs           int     `yaml:"frame_size_ms"`
}

// WithDefaults returns c with every zero field replaced by its default.
func (c Config) WithDefaults() Config {
	if c.SilenceThresholdRatio <= 0 {
		c.SilenceThresholdRatio = DefaultSilenceThresholdRatio
	}
	if c.MinSilenceSec <= 0 {
		c.MinSilenceSec = DefaultMinSilenceSec
	}
	if c.MinSpanSec <= 0 {
		c.MinSpanSec = DefaultMinSpanSec
	}
	if c.FrameSizeMs <= 0 {
		c.FrameSizeMs = DefaultFrameSizeMs
	}
	return c
}

// Segmenter detects candidate word spans. Safe for concurrent use; it holds
// only immutable configuration.
type Segmenter struct {
	cfg Config
}

// New returns a Segmenter with cfg's zero fields defaulted.
func New(cfg Config) *Segmenter {
	return &Segmenter{cfg: cfg.WithDefaults()}
}

// Segment returns ordered, non-overlapping candidate word spans.
//
// expectedCount is a hint only: it never changes the detection result, but a
// mismatch is logged because it usually means the recording and the term list
// do not belong together. Returns ErrNoSpeech when the waveform contains no
// voiced frame.
func (s *Segmenter) Segment(wave audio.Waveform, expectedCount int) ([]audio.Span, error) {
	if err := wave.Validate(); err != nil {
		return nil, err
	}

	frames := frameRMS(wave, s.cfg.FrameSizeMs)
	peak := peakEnergy(frames)
	if peak == 0 {
		return nil, ErrNoSpeech
	}

	frameSec := float64(s.cfg.FrameSizeMs) / 1000.0
	threshold := s.cfg.SilenceThresholdRatio * peak
	minSilenceFrames := int(math.Ceil(s.cfg.MinSilenceSec / frameSec))

	spans := cutSpans(frames, threshold, minSilenceFrames, frameSec)
	if len(spans) == 0 {
		return nil, ErrNoSpeech
	}

	// A voiced partial last frame rounds End up to a full frame, which can
	// poke past the recording; every span must lie within it.
	if last := &spans[len(spans)-1]; last.End > wave.Duration() {
		last.End = wave.Duration()
	}

	spans = mergeShortSpans(spans, s.cfg.MinSpanSec)

	for i := range spans {
		spans[i].Confidence = spanEnergyConfidence(frames, spans[i], frameSec, threshold, peak)
	}

	if expectedCount > 0 && len(spans) != expectedCount {
		slog.Debug("segment: span count differs from expected term count",
			"spans", len(spans), "expected", expectedCount)
	}
	return spans, nil
}

// cutSpans walks the frame energies and closes a span whenever a silent gap
// reaches minSilenceFrames. The first span starts at the first voiced frame,
// never at 0 unless speech truly starts immediately.
func cutSpans(frames []float64, threshold float64, minSilenceFrames int, frameSec float64) []audio.Span {
	var (
		spans     []audio.Span
		inSpan    bool
		start     int // first voiced frame of the open span
		lastVoice int // last voiced frame seen inside the open span
		gap       int // consecutive silent frames inside the open span
	)

	for i, rms := range frames {
		voiced := rms >= threshold
		switch {
		case voiced && !inSpan:
			inSpan = true
			start = i
			lastVoice = i
			gap = 0
		case voiced && inSpan:
			lastVoice = i
			gap = 0
		case !voiced && inSpan:
			gap++
			if gap >= minSilenceFrames {
				spans = append(spans, audio.Span{
					Start: float64(start) * frameSec,
					End:   float64(lastVoice+1) * frameSec,
				})
				inSpan = false
			}
		}
	}
	if inSpan {
		spans = append(spans, audio.Span{
			Start: float64(start) * frameSec,
			End:   float64(lastVoice+1) * frameSec,
		})
	}
	return spans
}

// mergeShortSpans folds spans shorter than minSpanSec into the adjacent
// span, bridging the gap between them. An isolated short span (no neighbour
// at all) is kept — it is the only speech the recording has.
func mergeShortSpans(spans []audio.Span, minSpanSec float64) []audio.Span {
	out := spans[:0:0]
	for _, sp := range spans {
		out = append(out, sp)
		for len(out) >= 2 {
			last := len(out) - 1
			if out[last].Duration() >= minSpanSec && out[last-1].Duration() >= minSpanSec {
				break
			}
			// One of the trailing pair is too short; absorb it.
			short := out[last]
			slog.Debug("segment: merging sub-minimum span into neighbour",
				"start", short.Start, "end", short.End, "duration", short.Duration())
			out[last-1].End = out[last].End
			out = out[:last]
		}
	}
	return out
}

// VoicedBounds scans inside span for the first and last voiced frame relative
// to the whole recording's peak energy, using the same threshold rule as
// Segment. ok is false when the span contains no voiced frame at all.
//
// The scan is stable: re-running it on its own output returns the same
// bounds, which the refiner's idempotence depends on.
func VoicedBounds(wave audio.Waveform, span audio.Span, cfg Config) (start, end float64, ok bool) {
	cfg = cfg.WithDefaults()
	frames := frameRMS(wave, cfg.FrameSizeMs)
	peak := peakEnergy(frames)
	if peak == 0 {
		return 0, 0, false
	}
	threshold := cfg.SilenceThresholdRatio * peak
	frameSec := float64(cfg.FrameSizeMs) / 1000.0

	first, last := -1, -1
	lo, hi := frameRange(span, frameSec, len(frames))
	for i := lo; i < hi; i++ {
		if frames[i] >= threshold {
			if first == -1 {
				first = i
			}
			last = i
		}
	}
	if first == -1 {
		return 0, 0, false
	}
	return float64(first) * frameSec, float64(last+1) * frameSec, true
}

// SpanConfidence recomputes the voiced-energy confidence of span against
// wave. Used by the refiner after boundary changes and by the content
// validation check.
func SpanConfidence(wave audio.Waveform, span audio.Span, cfg Config) float64 {
	cfg = cfg.WithDefaults()
	frames := frameRMS(wave, cfg.FrameSizeMs)
	peak := peakEnergy(frames)
	if peak == 0 {
		return 0
	}
	frameSec := float64(cfg.FrameSizeMs) / 1000.0
	threshold := cfg.SilenceThresholdRatio * peak
	return spanEnergyConfidence(frames, span, frameSec, threshold, peak)
}

// spanEnergyConfidence is the mean energy of the span's voiced frames
// relative to the recording peak, clamped to [0, 1].
func spanEnergyConfidence(frames []float64, span audio.Span, frameSec, threshold, peak float64) float64 {
	lo, hi := frameRange(span, frameSec, len(frames))
	var (
		sum    float64
		voiced int
	)
	for i := lo; i < hi; i++ {
		if frames[i] >= threshold {
			sum += frames[i]
			voiced++
		}
	}
	if voiced == 0 {
		return 0
	}
	return math.Min(sum/float64(voiced)/peak, 1.0)
}

func frameRange(span audio.Span, frameSec float64, frameCount int) (lo, hi int) {
	lo = int(span.Start / frameSec)
	hi = int(math.Ceil(span.End / frameSec))
	if lo < 0 {
		lo = 0
	}
	if hi > frameCount {
		hi = frameCount
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

// frameRMS computes the root-mean-square energy per analysis frame. The final
// partial frame, when any, is included with its actual sample count.
func frameRMS(wave audio.Waveform, frameSizeMs int) []float64 {
	frameLen := wave.SampleRate * frameSizeMs / 1000
	if frameLen <= 0 {
		return nil
	}
	n := (len(wave.Samples) + frameLen - 1) / frameLen
	frames := make([]float64, n)
	for i := 0; i < n; i++ {
		lo := i * frameLen
		hi := min(lo+frameLen, len(wave.Samples))
		var sum float64
		for _, s := range wave.Samples[lo:hi] {
			sum += float64(s) * float64(s)
		}
		frames[i] = math.Sqrt(sum / float64(hi-lo))
	}
	return frames
}

func peakEnergy(frames []float64) float64 {
	var peak float64
	for _, f := range frames {
		if f > peak {
			peak = f
		}
	}
	return peak
}
