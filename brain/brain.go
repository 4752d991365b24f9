// Package brain routes turns to the active chat engine. It owns the
// engine table, the active pointer and the current skill bookkeeping; the
// dispatch layer serializes every mutation behind its turn gate, so Brain
// itself carries no locking.
package brain

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"sidecar/engine"
	"sidecar/event"
	"sidecar/skill"
)

// The two known engine slots. A slot is absent from the table when its
// credential is missing, never a half-constructed engine.
const (
	NameGemini = "gemini"
	NameGroq   = "groq"
)

type Brain struct {
	log     zerolog.Logger
	engines map[string]engine.Engine
	active  string

	skillData    skill.Data
	systemPrompt string
}

// New builds a Brain over the constructed engines, preferring the named one.
// An unavailable preference silently falls back to whichever engine exists.
func New(log zerolog.Logger, engines map[string]engine.Engine, preferred string) (*Brain, error) {
	if len(engines) == 0 {
		return nil, fmt.Errorf("no chat engine available (check API keys)")
	}
	if _, ok := engines[preferred]; !ok {
		for name := range engines {
			preferred = name
			break
		}
	}
	return &Brain{log: log, engines: engines, active: preferred}, nil
}

func (b *Brain) ActiveEngine() engine.Engine { return b.engines[b.active] }

func (b *Brain) ActiveName() string { return b.active }

// SetActiveEngine switches the pointer only when the target exists; an
// unknown or unavailable name is a warning, never a lost active engine.
func (b *Brain) SetActiveEngine(name string) {
	if _, ok := b.engines[name]; !ok {
		b.log.Warn().Str("engine", name).Str("active", b.active).Msg("engine not available, staying put")
		return
	}
	b.active = name
}

// SwitchEngine toggles between the two known engines. The new engine's
// session is re-seeded with the current prompt so the persona carries over
// even though turn history does not.
func (b *Brain) SwitchEngine() string {
	other := NameGroq
	if b.active == NameGroq {
		other = NameGemini
	}
	eng, ok := b.engines[other]
	if !ok {
		return fmt.Sprintf("%s key missing - cannot switch.", strings.ToUpper(other))
	}
	b.active = other
	eng.InitSession(b.systemPrompt)
	return fmt.Sprintf("Switched engine to %s", strings.ToUpper(other))
}

// SetSkill applies the assembled prompt to every constructed engine, not
// just the active one, so a later switch lands on an already-primed session.
func (b *Brain) SetSkill(data skill.Data, assembledPrompt string) {
	b.skillData = data
	b.systemPrompt = assembledPrompt
	for _, eng := range b.engines {
		eng.InitSession(assembledPrompt)
	}
}

// InitChat re-initializes the active engine's session with the current prompt.
func (b *Brain) InitChat() {
	b.engines[b.active].InitSession(b.systemPrompt)
}

func (b *Brain) AnalyzeImageStream(image []byte, additionalText string) <-chan event.Event {
	return b.engines[b.active].StreamAnalysis(image, additionalText)
}

// AnalyzeVerbalStream runs a text-only follow-up turn. Manual-history
// engines get the transcript appended then a completion triggered; session
// native engines receive it through StreamAnalysis directly, so the text is
// never appended twice.
func (b *Brain) AnalyzeVerbalStream(text string) <-chan event.Event {
	text = strings.TrimSpace(text)
	if text == "" {
		return singleError("no verbal input to analyze")
	}
	active := b.engines[b.active]
	if completer, ok := active.(engine.Completer); ok {
		active.AddUserMessage(text)
		return completer.TriggerCompletion()
	}
	return active.StreamAnalysis(nil, text)
}

// PivotSkill updates Brain's own skill bookkeeping regardless of which
// engine acknowledges the pivot.
func (b *Brain) PivotSkill(data skill.Data, assembledPrompt string) <-chan event.Event {
	b.skillData = data
	b.systemPrompt = assembledPrompt
	return b.engines[b.active].StreamPivot(data, assembledPrompt)
}

func (b *Brain) ModelName() string {
	return b.engines[b.active].ModelName()
}

func (b *Brain) ToggleModel() bool {
	return b.engines[b.active].ToggleModel()
}

func (b *Brain) SystemPrompt() string { return b.systemPrompt }

func (b *Brain) SkillData() skill.Data { return b.skillData }

func singleError(format string, args ...any) <-chan event.Event {
	ch := make(chan event.Event, 1)
	ch <- event.Errorf(format, args...)
	close(ch)
	return ch
}
