package engine

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sidecar/event"
	"sidecar/skill"
)

func collect(t *testing.T, ch <-chan event.Event) []event.Event {
	t.Helper()
	var events []event.Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func sseChunk(parts ...string) string {
	return fmt.Sprintf(`data: {"candidates":[{"content":{"role":"model","parts":[%s]}}]}`+"\n\n",
		strings.Join(parts, ","))
}

func newGeminiServer(t *testing.T, body string, status int) (*httptest.Server, *Gemini) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	g := NewGemini("test-key", "high")
	g.baseURL = srv.URL
	return srv, g
}

func TestGeminiEmptyInput(t *testing.T) {
	g := NewGemini("test-key", "")
	events := collect(t, g.StreamAnalysis(nil, "   "))
	if len(events) != 1 || events[0].Kind != event.Error {
		t.Fatalf("events = %+v, want single Error", events)
	}
}

func TestGeminiStreamAnalysis(t *testing.T) {
	body := sseChunk(`{"text":"pondering","thought":true}`) +
		sseChunk(`{"text":"Hello"}`) +
		sseChunk(`{"text":" world"}`)
	_, g := newGeminiServer(t, body, http.StatusOK)
	g.InitSession("You are terse.")

	events := collect(t, g.StreamAnalysis([]byte{0x89, 0x50}, "what is this?"))

	want := []struct {
		kind    event.Kind
		content string
		thought bool
	}{
		{event.TextChunk, "pondering", true},
		{event.TextChunk, "Hello", false},
		{event.TextChunk, " world", false},
		{event.Finish, "", false},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events %+v, want %d", len(events), events, len(want))
	}
	for i, w := range want {
		if events[i].Kind != w.kind || events[i].Content != w.content || events[i].IsThought() != w.thought {
			t.Errorf("event[%d] = %+v, want %+v", i, events[i], w)
		}
	}

	// One user + one model turn committed; thought text excluded.
	if got := g.historyLen(); got != 2 {
		t.Fatalf("historyLen = %d, want 2", got)
	}
	if got := g.history[1].Parts[0].Text; got != "Hello world" {
		t.Errorf("persisted assistant turn = %q, want %q", got, "Hello world")
	}
}

func TestGeminiTransportErrorLeavesSessionUntouched(t *testing.T) {
	_, g := newGeminiServer(t, `{"error":{"message":"quota"}}`, http.StatusTooManyRequests)
	g.InitSession("prompt")

	events := collect(t, g.StreamAnalysis([]byte{1}, ""))
	if len(events) != 1 || events[0].Kind != event.Error {
		t.Fatalf("events = %+v, want single Error", events)
	}
	if !strings.Contains(events[0].Content, "429") {
		t.Errorf("error should carry status: %q", events[0].Content)
	}
	if g.historyLen() != 0 {
		t.Errorf("failed turn must not be committed, history = %d", g.historyLen())
	}
}

func TestGeminiLazySelfInit(t *testing.T) {
	_, g := newGeminiServer(t, sseChunk(`{"text":"hi"}`), http.StatusOK)
	// No InitSession call before streaming.
	events := collect(t, g.StreamAnalysis(nil, "hello"))
	last := events[len(events)-1]
	if last.Kind != event.Finish {
		t.Fatalf("expected Finish after lazy init, got %+v", events)
	}
}

func TestGeminiPivotPreservesHistory(t *testing.T) {
	_, g := newGeminiServer(t, sseChunk(`{"text":"ack"}`), http.StatusOK)
	g.InitSession("old prompt")

	collect(t, g.StreamAnalysis(nil, "first turn"))
	if g.historyLen() != 2 {
		t.Fatalf("setup: historyLen = %d", g.historyLen())
	}

	data := skill.Data{Identity: "Navigator", Instructions: "Guide.", Context: "Maps."}
	events := collect(t, g.StreamPivot(data, "new prompt"))
	if events[len(events)-1].Kind != event.Finish {
		t.Fatalf("pivot events = %+v", events)
	}

	// Override turn appended, prior turns intact.
	if g.historyLen() != 4 {
		t.Errorf("historyLen after pivot = %d, want 4", g.historyLen())
	}
	override := g.history[2].Parts[0].Text
	if !strings.Contains(override, "[SYSTEM OVERRIDE]") || !strings.Contains(override, "Navigator") {
		t.Errorf("override turn = %q", override)
	}
}

func TestGeminiToggleModel(t *testing.T) {
	g := NewGemini("k", "high")
	g.InitSession("p")
	g.history = append(g.history, geminiContent{Role: "user"})

	if !g.ToggleModel() {
		t.Error("first toggle should report deep")
	}
	if g.historyLen() != 0 {
		t.Error("toggle must reinitialize the session")
	}
	if got := g.ModelName(); got != "GEMINI PRO (high)" {
		t.Errorf("ModelName = %q", got)
	}
	if g.ToggleModel() {
		t.Error("second toggle should report fast")
	}
	if got := g.ModelName(); got != "GEMINI FLASH" {
		t.Errorf("ModelName = %q", got)
	}
}
