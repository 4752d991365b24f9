package engine

import (
	"sync"

	"sidecar/event"
	"sidecar/skill"
)

// Fake is a scriptable in-memory engine for tests. Each streaming call
// replays Script and records what it was asked.
type Fake struct {
	Name   string
	Script []event.Event

	mu            sync.Mutex
	Prompt        string
	InitCalls     int
	UserMessages  []string
	ImageCalls    [][]byte
	TextCalls     []string
	PivotPrompts  []string
	ToggleCalls   int
	DeepFlag      bool
}

func NewFake(name string) *Fake {
	return &Fake{
		Name:   name,
		Script: []event.Event{event.Text("ok"), event.Done()},
	}
}

func (f *Fake) InitSession(systemPrompt string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Prompt = systemPrompt
	f.InitCalls++
}

func (f *Fake) AddUserMessage(content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UserMessages = append(f.UserMessages, content)
}

func (f *Fake) StreamAnalysis(image []byte, additionalText string) <-chan event.Event {
	f.mu.Lock()
	f.ImageCalls = append(f.ImageCalls, image)
	f.TextCalls = append(f.TextCalls, additionalText)
	f.mu.Unlock()
	return f.replay()
}

func (f *Fake) StreamPivot(_ skill.Data, assembledPrompt string) <-chan event.Event {
	f.mu.Lock()
	f.PivotPrompts = append(f.PivotPrompts, assembledPrompt)
	f.mu.Unlock()
	return f.replay()
}

func (f *Fake) ModelName() string { return f.Name }

func (f *Fake) ToggleModel() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ToggleCalls++
	f.DeepFlag = !f.DeepFlag
	return f.DeepFlag
}

func (f *Fake) replay() <-chan event.Event {
	script := make([]event.Event, len(f.Script))
	copy(script, f.Script)
	return stream(func(emit func(event.Event)) {
		for _, ev := range script {
			emit(ev)
		}
	})
}

// FakeCompleter is a Fake that also satisfies Completer, standing in for the
// manual-history variant.
type FakeCompleter struct {
	Fake
	CompletionCalls int
}

func NewFakeCompleter(name string) *FakeCompleter {
	fc := &FakeCompleter{}
	fc.Fake.Name = name
	fc.Fake.Script = []event.Event{event.Text("ok"), event.Done()}
	return fc
}

func (f *FakeCompleter) TriggerCompletion() <-chan event.Event {
	f.mu.Lock()
	f.CompletionCalls++
	f.mu.Unlock()
	return f.replay()
}
