package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"sidecar/brain"
	"sidecar/capture"
	"sidecar/event"
	"sidecar/log"
	"sidecar/recorder"
	"sidecar/skill"
)

// Worker serializes every hotkey-triggered turn. One turn runs at a time;
// triggers arriving while busy are dropped, with one exception: a talk
// trigger while the recorder is actively recording always passes through,
// because it is the stop signal for the capture in progress.
type Worker struct {
	log    zerolog.Logger
	brain  *brain.Brain
	frames capture.FrameSource
	rec    *recorder.Orchestrator
	skills *skill.Manager
	sink   EventSink

	mu           sync.Mutex
	busy         bool
	skillName    string
	pendingVoice string
	lastResponse string
	turns        int
}

func NewWorker(logger zerolog.Logger, b *brain.Brain, frames capture.FrameSource, rec *recorder.Orchestrator, skills *skill.Manager, sink EventSink) *Worker {
	return &Worker{
		log:    logger,
		brain:  b,
		frames: frames,
		rec:    rec,
		skills: skills,
		sink:   sink,
	}
}

func (w *Worker) tryAcquire() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return false
	}
	w.busy = true
	return true
}

func (w *Worker) release() {
	w.mu.Lock()
	w.busy = false
	w.mu.Unlock()
	w.sink.Ready()
}

// SetSkillName records the active skill for the mode line without
// triggering a pivot. Used during bootstrap.
func (w *Worker) SetSkillName(name string) {
	w.mu.Lock()
	w.skillName = name
	w.mu.Unlock()
}

func (w *Worker) LastResponse() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastResponse
}

// Turns reports how many turns completed this session.
func (w *Worker) Turns() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.turns
}

func (w *Worker) modeLine() string {
	w.mu.Lock()
	name := w.skillName
	w.mu.Unlock()
	return fmt.Sprintf("[%s | %s | %s]", w.brain.ActiveName(), w.brain.ModelName(), name)
}

func (w *Worker) publishModeLine() {
	w.sink.ModeLine(w.modeLine())
}

// consumePendingVoice returns the most recent unconsumed transcript, if
// any, and clears it. A pixel turn attaches it as supplementary text.
func (w *Worker) consumePendingVoice() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	text := w.pendingVoice
	w.pendingVoice = ""
	return text
}

// HandlePixel runs the visual vector: capture the configured monitor and
// stream the analysis.
func (w *Worker) HandlePixel(ctx context.Context) {
	if !w.tryAcquire() {
		return
	}
	defer w.release()

	png := w.frames.Capture()
	if len(png) == 0 {
		w.sink.TurnError("screen capture failed")
		return
	}

	extra := w.consumePendingVoice()
	w.sink.TurnStart("pixel", w.brain.ModelName())
	if extra != "" {
		log.Turn("user", "[screen] "+extra)
	} else {
		log.Turn("user", "[screen]")
	}
	w.drain(w.brain.AnalyzeImageStream(png, extra))
}

// HandleTalk runs the verbal vector. First press starts the recorder,
// second press stops it, transcribes, and streams the follow-up.
func (w *Worker) HandleTalk(ctx context.Context) {
	w.mu.Lock()
	if w.busy && !w.rec.IsRecording() {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	state, text := w.rec.Toggle(ctx)
	switch state {
	case recorder.Recording:
		w.sink.RecordingStart()
		return
	case recorder.Processing:
		// Press landed while the previous stop-toggle was still
		// transcribing; it is not a new cycle, drop it.
		return
	}
	w.sink.RecordingStop()

	if text == "" {
		w.sink.Status("No verbal input detected.")
		w.sink.Ready()
		return
	}

	if !w.tryAcquire() {
		// A turn is already streaming; keep the transcript for the next
		// pixel turn instead of dropping it.
		w.mu.Lock()
		w.pendingVoice = text
		w.mu.Unlock()
		w.sink.Status("Turn in progress; transcript will ride the next capture.")
		return
	}
	defer w.release()

	w.mu.Lock()
	w.pendingVoice = text
	w.mu.Unlock()

	w.sink.TurnStart("talk", w.brain.ModelName())
	log.Turn("user", text)
	w.drain(w.brain.AnalyzeVerbalStream(text))
}

// HandleToggleModel flips the active engine's tier and resets the chat.
func (w *Worker) HandleToggleModel() {
	if !w.tryAcquire() {
		return
	}
	defer w.release()

	w.brain.ToggleModel()
	w.brain.InitChat()
	w.sink.Status(fmt.Sprintf("Switched model to %s (chat reset).", w.brain.ModelName()))
	w.publishModeLine()
}

// HandleSwitchEngine swaps between the configured engines.
func (w *Worker) HandleSwitchEngine() {
	if !w.tryAcquire() {
		return
	}
	defer w.release()

	msg := w.brain.SwitchEngine()
	w.sink.Status(fmt.Sprintf("%s (%s)", msg, w.brain.ModelName()))
	w.publishModeLine()
}

// HandleSkillSwap loads the named skill, applies placeholder values and
// optional extra context, and pivots the live session onto it.
func (w *Worker) HandleSkillSwap(name string, values map[string]string, extraContext string) {
	if !w.tryAcquire() {
		return
	}
	defer w.release()

	data, _, err := w.skills.Load(name)
	if err != nil {
		w.sink.TurnError(fmt.Sprintf("loading skill %q: %v", name, err))
		return
	}
	data = skill.Resolve(data, values)
	if extraContext != "" {
		data = skill.AppendContext(data, extraContext)
	}
	prompt := skill.Assemble(data)

	w.mu.Lock()
	w.skillName = name
	w.mu.Unlock()

	w.sink.TurnStart("pivot", w.brain.ModelName())
	log.Turn("system", "pivot to skill "+name)
	w.drain(w.brain.PivotSkill(data, prompt))
	w.publishModeLine()
}

// drain republishes one turn's stream to the sink and returns the
// concatenated answer text. A stream closing without a terminal event is
// reported as a failure.
func (w *Worker) drain(stream <-chan event.Event) string {
	var answer strings.Builder
	terminal := false
	for ev := range stream {
		switch ev.Kind {
		case event.TextChunk:
			if ev.IsThought() {
				w.sink.Chunk(ev.Content, true)
			} else {
				answer.WriteString(ev.Content)
				w.sink.Chunk(ev.Content, false)
			}
		case event.Status:
			w.sink.Status(ev.Content)
		case event.Error:
			w.log.Error().Str("detail", ev.Content).Msg("turn failed")
			w.sink.TurnError(ev.Content)
			terminal = true
		case event.Finish:
			terminal = true
		}
	}
	if !terminal {
		w.sink.TurnError("stream ended unexpectedly")
	}
	w.sink.TurnEnd()

	text := answer.String()
	w.mu.Lock()
	w.turns++
	if text != "" {
		w.lastResponse = text
	}
	w.mu.Unlock()
	if text != "" {
		log.Turn("assistant", text)
	}
	return text
}
