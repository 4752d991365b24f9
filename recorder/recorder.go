// Package recorder coordinates an audio source and a transcriber into one
// toggle-driven recording cycle.
package recorder

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sidecar/log"
	"sidecar/transcriber"
)

type State int

const (
	Idle State = iota
	Recording
	// Processing exists only for telemetry of the synchronous transcription
	// step; Toggle never returns it.
	Processing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Recording:
		return "RECORDING"
	case Processing:
		return "PROCESSING"
	}
	return "UNKNOWN"
}

// Source is the audio collaborator. Stop returns the finished encoded
// buffer for everything captured since Start, or an empty buffer when
// nothing was captured.
type Source interface {
	Start() error
	Stop() []byte
}

// Orchestrator is the 3-state recording cycle. Toggle is the sole state
// mutator and is safe for concurrent use: the stop-toggle transcribes
// synchronously, and any Toggle landing during that window is a no-op
// reporting Processing instead of starting a second cycle.
type Orchestrator struct {
	log    zerolog.Logger
	source Source
	stt    transcriber.Transcriber
	format string

	mu    sync.Mutex
	state State
}

func New(log zerolog.Logger, source Source, stt transcriber.Transcriber, format string) *Orchestrator {
	return &Orchestrator{log: log, source: source, stt: stt, format: format}
}

// Toggle flips the recording cycle. From Idle it starts capture and returns
// (Recording, ""). From Recording it stops capture, transcribes
// synchronously and returns (Idle, text); text is empty for silence,
// transcription failure or an empty capture. From Processing (a press
// arriving while the previous stop-toggle is still transcribing) it does
// nothing and returns (Processing, ""); callers drop that press.
func (o *Orchestrator) Toggle(ctx context.Context) (State, string) {
	o.mu.Lock()
	switch o.state {
	case Idle:
		if err := o.source.Start(); err != nil {
			o.mu.Unlock()
			o.log.Error().Err(err).Msg("audio source start failed")
			return Idle, ""
		}
		o.state = Recording
		o.mu.Unlock()
		return Recording, ""

	case Recording:
		o.state = Processing
		o.mu.Unlock()

		start := time.Now()
		buf := o.source.Stop()

		text := ""
		if len(buf) > 0 {
			sttStart := time.Now()
			var err error
			text, err = o.stt.Transcribe(ctx, buf, o.format)
			if err != nil {
				o.log.Error().Err(err).Msg("transcription failed")
				text = ""
			}
			log.RecordingMetrics(log.Metrics{
				RawSizeKB:   float64(len(buf)) / 1024,
				STTTimeMs:   float64(time.Since(sttStart).Milliseconds()),
				TotalTimeMs: float64(time.Since(start).Milliseconds()),
			}, o.format, o.stt.Name())
		}

		o.mu.Lock()
		o.state = Idle
		o.mu.Unlock()
		return Idle, text
	}
	o.mu.Unlock()
	return Processing, ""
}

func (o *Orchestrator) IsIdle() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == Idle
}

func (o *Orchestrator) IsRecording() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == Recording
}
