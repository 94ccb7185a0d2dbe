package audio

import "encoding/binary"

// PCM16ToFloat32 converts 16-bit signed little-endian PCM audio to float32
// samples normalised to the range [-1.0, 1.0]. The input length must be even
// (two bytes per sample); any trailing odd byte is silently ignored.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

// PCM16MonoToFloat32 down-mixes multi-channel 16-bit PCM to mono float32 by
// averaging all channels per frame. If channels is 1 this is equivalent to
// PCM16ToFloat32.
func PCM16MonoToFloat32(pcm []byte, channels int) []float32 {
	if channels <= 1 {
		return PCM16ToFloat32(pcm)
	}
	samplesPerChannel := len(pcm) / (2 * channels)
	mono := make([]float32, samplesPerChannel)
	for i := 0; i < samplesPerChannel; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			idx := (i*channels + ch) * 2
			sample := int16(binary.LittleEndian.Uint16(pcm[idx : idx+2]))
			sum += float32(sample) / 32768.0
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// Float32ToPCM16 converts normalised float32 samples back to 16-bit signed
// little-endian PCM. Samples outside [-1.0, 1.0] are clipped.
func Float32ToPCM16(samples []float32) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		v := int16(s * 32767.0)
		binary.LittleEndian.PutUint16(pcm[i*2:i*2+2], uint16(v))
	}
	return pcm
}
