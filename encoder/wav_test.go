package encoder

import (
	"encoding/binary"
	"testing"
)

func TestWavEncoder(t *testing.T) {
	enc, err := NewWav()
	if err != nil {
		t.Fatalf("NewWav: %v", err)
	}

	samples := sineSamples(BlockSize * 2)
	if err := enc.EncodeBlock(samples[:BlockSize]); err != nil {
		t.Fatal(err)
	}
	if err := enc.EncodeBlock(samples[BlockSize:]); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	out := enc.Bytes()
	if len(out) != wavHeaderSize+len(samples)*2 {
		t.Fatalf("output size = %d, want %d", len(out), wavHeaderSize+len(samples)*2)
	}
	if string(out[:4]) != "RIFF" || string(out[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE magic")
	}
	if rate := binary.LittleEndian.Uint32(out[24:]); rate != SampleRate {
		t.Errorf("sample rate = %d", rate)
	}
	if dataLen := binary.LittleEndian.Uint32(out[40:]); dataLen != uint32(len(samples)*2) {
		t.Errorf("data chunk length = %d", dataLen)
	}
	if enc.TotalFrames() != uint64(len(samples)) {
		t.Errorf("TotalFrames = %d", enc.TotalFrames())
	}
}

func TestWavEncoderEmpty(t *testing.T) {
	enc, _ := NewWav()
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	out := enc.Bytes()
	if len(out) != wavHeaderSize {
		t.Errorf("empty encoder output = %d bytes, want bare header", len(out))
	}
}

func TestNewFactory(t *testing.T) {
	for _, format := range []string{"wav", "flac"} {
		t.Run(format, func(t *testing.T) {
			enc, err := New(format)
			if err != nil {
				t.Fatalf("New(%q): %v", format, err)
			}
			if enc == nil {
				t.Fatalf("New(%q) returned nil", format)
			}
		})
	}
	t.Run("unknown", func(t *testing.T) {
		if _, err := New("ogg"); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}
