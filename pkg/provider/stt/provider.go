// Package stt defines the Provider interface for Speech-to-Text backends.
//
// The alignment pipeline transcribes one short word clip at a time, so the
// central abstraction is a batch call: Transcribe takes a clip and returns a
// single recognition result. Streaming, diarization, and partial hypotheses
// are deliberately out of scope — a word clip is a second or two of audio and
// the pipeline only cares about the final text and its confidence.
//
// Implementations must be safe for concurrent use: the transcription stage
// dispatches clips from a bounded worker pool, so Transcribe is called from
// multiple goroutines simultaneously.
package stt

import "context"

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe runs speech recognition over a single clip and returns the
	// recognised text with a confidence score. A clip that contains no
	// recognisable speech yields an empty Result and a nil error — only
	// transport and engine failures are reported as errors.
	//
	// Transcribe must respect ctx cancellation and deadlines.
	Transcribe(ctx context.Context, clip Clip) (Result, error)
}
