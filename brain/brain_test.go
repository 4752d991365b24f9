package brain

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"sidecar/engine"
	"sidecar/event"
	"sidecar/skill"
)

func drain(ch <-chan event.Event) []event.Event {
	var events []event.Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func newBrain(t *testing.T, engines map[string]engine.Engine, preferred string) *Brain {
	t.Helper()
	b, err := New(zerolog.Nop(), engines, preferred)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestNewRequiresAnEngine(t *testing.T) {
	if _, err := New(zerolog.Nop(), nil, NameGemini); err == nil {
		t.Fatal("expected error with no engines")
	}
}

func TestNewFallsBackWhenPreferredMissing(t *testing.T) {
	gem := engine.NewFake("gemini")
	b := newBrain(t, map[string]engine.Engine{NameGemini: gem}, NameGroq)
	if b.ActiveName() != NameGemini {
		t.Errorf("active = %q, want fallback to gemini", b.ActiveName())
	}
}

func TestSetActiveEngineUnknownIsNoOp(t *testing.T) {
	gem := engine.NewFake("gemini")
	b := newBrain(t, map[string]engine.Engine{NameGemini: gem}, NameGemini)
	b.SetActiveEngine("mystery")
	if b.ActiveName() != NameGemini {
		t.Errorf("active = %q, want unchanged", b.ActiveName())
	}
}

func TestSwitchEngineMissingAlternateIsIdempotent(t *testing.T) {
	gem := engine.NewFake("gemini")
	b := newBrain(t, map[string]engine.Engine{NameGemini: gem}, NameGemini)

	for range 3 {
		msg := b.SwitchEngine()
		if !strings.Contains(msg, "missing") {
			t.Errorf("msg = %q, want failure message", msg)
		}
		if b.ActiveName() != NameGemini {
			t.Fatalf("active = %q, want unchanged", b.ActiveName())
		}
	}
}

func TestSwitchEngineReInitsWithCurrentPrompt(t *testing.T) {
	gem := engine.NewFake("gemini")
	grq := engine.NewFakeCompleter("groq")
	b := newBrain(t, map[string]engine.Engine{NameGemini: gem, NameGroq: grq}, NameGemini)

	b.SetSkill(skill.Data{Identity: "i"}, "the prompt")
	grq.InitCalls = 0 // reset after SetSkill priming

	msg := b.SwitchEngine()
	if !strings.Contains(msg, "GROQ") {
		t.Errorf("msg = %q", msg)
	}
	if b.ActiveName() != NameGroq {
		t.Errorf("active = %q", b.ActiveName())
	}
	if grq.InitCalls != 1 || grq.Prompt != "the prompt" {
		t.Errorf("new engine not primed: calls=%d prompt=%q", grq.InitCalls, grq.Prompt)
	}
}

func TestSetSkillPrimesAllEngines(t *testing.T) {
	gem := engine.NewFake("gemini")
	grq := engine.NewFakeCompleter("groq")
	b := newBrain(t, map[string]engine.Engine{NameGemini: gem, NameGroq: grq}, NameGemini)

	b.SetSkill(skill.Data{Identity: "id"}, "prompt-x")

	if gem.Prompt != "prompt-x" || grq.Prompt != "prompt-x" {
		t.Errorf("prompts = %q / %q, want both primed", gem.Prompt, grq.Prompt)
	}
}

func TestAnalyzeVerbalStreamEmptyText(t *testing.T) {
	gem := engine.NewFake("gemini")
	b := newBrain(t, map[string]engine.Engine{NameGemini: gem}, NameGemini)

	events := drain(b.AnalyzeVerbalStream("  "))
	if len(events) != 1 || events[0].Kind != event.Error {
		t.Fatalf("events = %+v, want single Error", events)
	}
	if len(gem.TextCalls) != 0 {
		t.Error("engine must not be called for empty text")
	}
}

func TestAnalyzeVerbalStreamCompleterPath(t *testing.T) {
	grq := engine.NewFakeCompleter("groq")
	b := newBrain(t, map[string]engine.Engine{NameGroq: grq}, NameGroq)

	drain(b.AnalyzeVerbalStream("hello there"))

	if len(grq.UserMessages) != 1 || grq.UserMessages[0] != "hello there" {
		t.Errorf("UserMessages = %v", grq.UserMessages)
	}
	if grq.CompletionCalls != 1 {
		t.Errorf("CompletionCalls = %d", grq.CompletionCalls)
	}
	if len(grq.TextCalls) != 0 {
		t.Error("completer path must not route through StreamAnalysis")
	}
}

func TestAnalyzeVerbalStreamFallbackDoesNotDoubleAppend(t *testing.T) {
	gem := engine.NewFake("gemini")
	b := newBrain(t, map[string]engine.Engine{NameGemini: gem}, NameGemini)

	drain(b.AnalyzeVerbalStream("hello there"))

	if len(gem.UserMessages) != 0 {
		t.Errorf("fallback path appended standalone user message: %v", gem.UserMessages)
	}
	if len(gem.TextCalls) != 1 || gem.TextCalls[0] != "hello there" {
		t.Errorf("TextCalls = %v", gem.TextCalls)
	}
	if gem.ImageCalls[0] != nil {
		t.Error("verbal fallback must not carry an image")
	}
}

func TestPivotSkillUpdatesBookkeeping(t *testing.T) {
	gem := engine.NewFake("gemini")
	b := newBrain(t, map[string]engine.Engine{NameGemini: gem}, NameGemini)

	data := skill.Data{Identity: "new persona"}
	drain(b.PivotSkill(data, "new prompt"))

	if b.SystemPrompt() != "new prompt" {
		t.Errorf("SystemPrompt = %q", b.SystemPrompt())
	}
	if b.SkillData().Identity != "new persona" {
		t.Errorf("SkillData = %+v", b.SkillData())
	}
	if len(gem.PivotPrompts) != 1 {
		t.Errorf("PivotPrompts = %v", gem.PivotPrompts)
	}
}
