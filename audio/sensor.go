package audio

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sidecar/encoder"
)

// Sensor turns a capture device into a start/stop buffer recorder: Start
// begins collecting PCM frames, Stop finalizes them through the configured
// encoder and returns the encoded buffer. Stop without a prior Start, or
// with nothing captured, returns an empty buffer.
type Sensor struct {
	log     zerolog.Logger
	capture CaptureDevice
	format  string

	mu        sync.Mutex
	recording bool
	enc       encoder.Encoder
	sampleBuf []int16
}

func NewSensor(log zerolog.Logger, capture CaptureDevice, format string) *Sensor {
	return &Sensor{log: log, capture: capture, format: format}
}

func (s *Sensor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recording {
		return nil
	}

	enc, err := encoder.New(s.format)
	if err != nil {
		return err
	}
	s.enc = enc
	s.sampleBuf = nil

	s.capture.SetCallback(s.onFrames)
	if err := s.capture.Start(); err != nil {
		s.capture.ClearCallback()
		s.enc = nil
		return err
	}
	s.recording = true
	s.log.Info().Str("device", s.capture.DeviceName()).Str("format", s.format).Msg("recording started")
	return nil
}

func (s *Sensor) onFrames(data []byte, _ uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording {
		return
	}
	for i := 0; i+1 < len(data); i += 2 {
		s.sampleBuf = append(s.sampleBuf, int16(binary.LittleEndian.Uint16(data[i:])))
	}
	for len(s.sampleBuf) >= encoder.BlockSize {
		block := s.sampleBuf[:encoder.BlockSize]
		start := time.Now()
		if err := s.enc.EncodeBlock(block); err != nil {
			s.log.Error().Err(err).Msg("encoding block")
		}
		s.enc.AddEncodeTime(time.Since(start))
		s.sampleBuf = s.sampleBuf[encoder.BlockSize:]
	}
}

func (s *Sensor) Stop() []byte {
	s.mu.Lock()
	if !s.recording {
		s.mu.Unlock()
		return nil
	}
	s.recording = false
	s.mu.Unlock()

	s.capture.Stop()
	s.capture.ClearCallback()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sampleBuf) > 0 {
		if err := s.enc.EncodeBlock(s.sampleBuf); err != nil {
			s.log.Error().Err(err).Msg("encoding final block")
		}
		s.sampleBuf = nil
	}
	if s.enc.TotalFrames() == 0 {
		s.enc = nil
		return nil
	}
	if err := s.enc.Close(); err != nil {
		s.log.Error().Err(err).Msg("finalizing recording")
		s.enc = nil
		return nil
	}
	out := s.enc.Bytes()
	s.log.Debug().
		Uint64("frames", s.enc.TotalFrames()).
		Dur("encode", s.enc.EncodeTime()).
		Int("bytes", len(out)).
		Msg("recording finalized")
	s.enc = nil
	return out
}
