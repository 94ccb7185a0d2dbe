package openai

import (
	"encoding/binary"
	"testing"
)

func TestEncodeWAV_Header(t *testing.T) {
	t.Parallel()

	samples := make([]float32, 16000) // 1s of silence
	wav := encodeWAV(samples, 16000)

	if len(wav) != 44+32000 {
		t.Fatalf("len(wav) = %d, want %d", len(wav), 44+32000)
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE markers: %q %q", wav[0:4], wav[8:12])
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if bits := binary.LittleEndian.Uint16(wav[34:36]); bits != 16 {
		t.Errorf("bits per sample = %d, want 16", bits)
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); size != 32000 {
		t.Errorf("data chunk size = %d, want 32000", size)
	}
}
