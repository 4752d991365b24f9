package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"sidecar/encoder"
)

// stubCapture feeds whatever its test pushes through the registered callback.
type stubCapture struct {
	cb      DataCallback
	started bool
}

func (s *stubCapture) Start() error              { s.started = true; return nil }
func (s *stubCapture) Stop()                     { s.started = false }
func (s *stubCapture) Close()                    {}
func (s *stubCapture) SetCallback(cb DataCallback) { s.cb = cb }
func (s *stubCapture) ClearCallback()            { s.cb = nil }
func (s *stubCapture) DeviceName() string        { return "stub" }

func (s *stubCapture) feed(samples []int16) {
	data := make([]byte, len(samples)*2)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
	}
	if s.cb != nil {
		s.cb(data, uint32(len(samples)))
	}
}

func TestSensorStartStop(t *testing.T) {
	cd := &stubCapture{}
	s := NewSensor(zerolog.Nop(), cd, "wav")

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	samples := make([]int16, 5000)
	for i := range samples {
		samples[i] = int16(i % 512)
	}
	cd.feed(samples)

	out := s.Stop()
	if len(out) == 0 {
		t.Fatal("expected encoded buffer")
	}
	if string(out[:4]) != "RIFF" {
		t.Errorf("expected WAV output, got %q", out[:4])
	}
	wantData := len(samples) * 2
	if got := binary.LittleEndian.Uint32(out[40:]); got != uint32(wantData) {
		t.Errorf("data length = %d, want %d", got, wantData)
	}
}

func TestSensorStopWithoutStart(t *testing.T) {
	s := NewSensor(zerolog.Nop(), &stubCapture{}, "wav")
	if out := s.Stop(); len(out) != 0 {
		t.Errorf("Stop without Start = %d bytes, want empty", len(out))
	}
}

func TestSensorStopNothingCaptured(t *testing.T) {
	cd := &stubCapture{}
	s := NewSensor(zerolog.Nop(), cd, "wav")
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if out := s.Stop(); len(out) != 0 {
		t.Errorf("empty capture = %d bytes, want empty buffer", len(out))
	}
}

func TestSensorStartIdempotent(t *testing.T) {
	cd := &stubCapture{}
	s := NewSensor(zerolog.Nop(), cd, "wav")
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	cd.feed([]int16{1, 2, 3, 4})
	s.Stop()
}

func TestSensorOverFakeContext(t *testing.T) {
	samples := make([]int16, 8000)
	for i := range samples {
		samples[i] = int16((i % 200) * 50)
	}
	enc, err := encoder.NewWav()
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.EncodeBlock(samples); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "in.wav")
	if err := os.WriteFile(path, enc.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, err := NewFakeContext(path, false)
	if err != nil {
		t.Fatal(err)
	}
	defer ctx.Close()
	dev, err := ctx.NewCapture(nil, CaptureConfig{SampleRate: encoder.SampleRate, Channels: encoder.Channels})
	if err != nil {
		t.Fatal(err)
	}

	s := NewSensor(zerolog.Nop(), dev, "wav")
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	out := s.Stop()
	if len(out) < WAVHeaderSize {
		t.Fatalf("got %d bytes", len(out))
	}
	// The fake feeds the whole file synchronously on Start, plus some
	// trailing silence frames before Stop lands.
	if got := len(out) - WAVHeaderSize; got < len(samples)*2 {
		t.Errorf("captured %d PCM bytes, want at least %d", got, len(samples)*2)
	}
}

func TestSensorBadFormat(t *testing.T) {
	s := NewSensor(zerolog.Nop(), &stubCapture{}, "ogg")
	if err := s.Start(); err == nil {
		t.Error("expected error for unknown format")
	}
}
