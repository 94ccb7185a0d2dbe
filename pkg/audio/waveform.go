// Package audio provides the waveform and span value types shared by the
// alignment pipeline, plus PCM conversion helpers.
//
// A Waveform is an already-decoded, format-normalized recording: mono float32
// samples in [-1.0, 1.0] at a known sample rate. Decoding container formats
// (WAV, Opus, MP3) is the audio-loading collaborator's job, not this package's.
package audio

import "fmt"

// Waveform is a mono audio recording. Samples are normalised to [-1.0, 1.0].
// A Waveform is read-only once constructed; spans reference regions of it by
// time offset rather than holding sample copies.
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the recording length in seconds.
func (w Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Empty reports whether the waveform contains no samples.
func (w Waveform) Empty() bool {
	return len(w.Samples) == 0 || w.SampleRate <= 0
}

// Clip returns the samples between startSec and endSec. The requested region
// is clamped to the recording; out-of-range requests yield an empty slice.
// The returned slice aliases the waveform's backing array.
func (w Waveform) Clip(startSec, endSec float64) []float32 {
	if w.Empty() || endSec <= startSec {
		return nil
	}
	start := w.sampleIndex(startSec)
	end := w.sampleIndex(endSec)
	if start >= len(w.Samples) {
		return nil
	}
	if end > len(w.Samples) {
		end = len(w.Samples)
	}
	return w.Samples[start:end]
}

func (w Waveform) sampleIndex(sec float64) int {
	if sec < 0 {
		return 0
	}
	return int(sec * float64(w.SampleRate))
}

// Validate checks that the waveform is usable as pipeline input.
func (w Waveform) Validate() error {
	if w.SampleRate <= 0 {
		return fmt.Errorf("audio: invalid sample rate %d", w.SampleRate)
	}
	if len(w.Samples) == 0 {
		return fmt.Errorf("audio: waveform is empty")
	}
	return nil
}
