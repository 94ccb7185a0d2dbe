package stt

// Clip is a short mono audio excerpt handed to a Provider for recognition.
// Samples are float32 normalised to [-1.0, 1.0].
type Clip struct {
	Samples    []float32
	SampleRate int

	// Language is the BCP-47 language tag for recognition (e.g., "ja", "en").
	// Empty lets the provider auto-detect, if supported.
	Language string
}

// Result is a speech-to-text result for one clip.
//
// A zero Result (empty text, zero confidence) is a valid value meaning "the
// recogniser produced nothing usable for this clip". Downstream similarity
// scoring treats it as a zero-information column, not an error.
type Result struct {
	// Text is the transcribed speech content. May be empty.
	Text string

	// Confidence is the overall recognition confidence in [0, 1]. Zero when
	// the provider does not report confidence or the clip was empty.
	Confidence float64
}

// Empty reports whether the result carries no usable recognition.
func (r Result) Empty() bool {
	return r.Text == ""
}
