package openai

import (
	"encoding/binary"

	"github.com/MrWong99/vocalign/pkg/audio"
)

// encodeWAV wraps float32 mono samples in a minimal 16-bit PCM WAV container.
// The transcription API identifies the format from this header; no compression
// is applied.
func encodeWAV(samples []float32, sampleRate int) []byte {
	pcm := audio.Float32ToPCM16(samples)

	const (
		numChannels   = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, 0, 44+dataSize)
	le := binary.LittleEndian

	u32 := func(v uint32) []byte {
		b := make([]byte, 4)
		le.PutUint32(b, v)
		return b
	}
	u16 := func(v uint16) []byte {
		b := make([]byte, 2)
		le.PutUint16(b, v)
		return b
	}

	buf = append(buf, "RIFF"...)
	buf = append(buf, u32(uint32(36+dataSize))...)
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = append(buf, u32(16)...)                   // fmt chunk size
	buf = append(buf, u16(1)...)                    // PCM
	buf = append(buf, u16(numChannels)...)          // channels
	buf = append(buf, u32(uint32(sampleRate))...)   // sample rate
	buf = append(buf, u32(uint32(byteRate))...)     // byte rate
	buf = append(buf, u16(uint16(blockAlign))...)   // block align
	buf = append(buf, u16(bitsPerSample)...)        // bits per sample
	buf = append(buf, "data"...)
	buf = append(buf, u32(uint32(dataSize))...)
	buf = append(buf, pcm...)
	return buf
}
