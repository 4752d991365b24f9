package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"sidecar/event"
	"sidecar/skill"
)

func groqDelta(text string) string {
	b, _ := json.Marshal(text)
	return fmt.Sprintf(`data: {"choices":[{"delta":{"content":%s}}]}`+"\n\n", b)
}

// rawRequest mirrors the wire shape so tests can inspect what was sent.
type rawRequest struct {
	Messages []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

func newGroqServer(t *testing.T, deltas []string, status int) (*Groq, func() []rawRequest) {
	t.Helper()
	var mu sync.Mutex
	var requests []rawRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req rawRequest
		json.Unmarshal(body, &req)
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(status)
		if status != http.StatusOK {
			fmt.Fprint(w, `{"error":{"message":"denied"}}`)
			return
		}
		for _, d := range deltas {
			fmt.Fprint(w, groqDelta(d))
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)

	q := NewGroq("test-key")
	q.apiURL = srv.URL
	return q, func() []rawRequest {
		mu.Lock()
		defer mu.Unlock()
		return requests
	}
}

func TestGroqEmptyInput(t *testing.T) {
	q := NewGroq("test-key")
	events := collect(t, q.StreamAnalysis(nil, ""))
	if len(events) != 1 || events[0].Kind != event.Error {
		t.Fatalf("events = %+v, want single Error", events)
	}
}

func TestGroqStreamAnalysisEndToEnd(t *testing.T) {
	q, _ := newGroqServer(t, []string{"Hello", " world"}, http.StatusOK)
	q.InitSession("You are terse.")

	events := collect(t, q.StreamAnalysis([]byte("png"), "what is this?"))

	if len(events) != 3 {
		t.Fatalf("got %d events %+v, want 3", len(events), events)
	}
	if events[0].Content != "Hello" || events[1].Content != " world" {
		t.Errorf("chunks = %q, %q", events[0].Content, events[1].Content)
	}
	if events[2].Kind != event.Finish {
		t.Errorf("last event = %+v, want Finish", events[2])
	}

	msgs := q.historySnapshot()
	// system, user, assistant
	if len(msgs) != 3 {
		t.Fatalf("history = %d messages, want 3", len(msgs))
	}
	if msgs[2].Role != "assistant" || msgs[2].Content != "Hello world" {
		t.Errorf("assistant turn = %+v", msgs[2])
	}
}

func TestGroqAuthFailureRollsBack(t *testing.T) {
	q, _ := newGroqServer(t, nil, http.StatusUnauthorized)
	q.InitSession("prompt")

	events := collect(t, q.StreamAnalysis(nil, "hello"))
	if len(events) != 1 || events[0].Kind != event.Error {
		t.Fatalf("events = %+v, want single Error", events)
	}
	if !strings.Contains(events[0].Content, "401") {
		t.Errorf("error content = %q", events[0].Content)
	}
	// Only the system seed remains; the failed user turn is not retained.
	if msgs := q.historySnapshot(); len(msgs) != 1 || msgs[0].Role != "system" {
		t.Errorf("history after failure = %+v", msgs)
	}
}

func TestGroqStripsStaleImages(t *testing.T) {
	q, requests := newGroqServer(t, []string{"ok"}, http.StatusOK)
	q.InitSession("p")

	collect(t, q.StreamAnalysis([]byte("first-shot"), ""))
	collect(t, q.StreamAnalysis([]byte("second-shot"), ""))

	reqs := requests()
	if len(reqs) != 2 {
		t.Fatalf("got %d requests", len(reqs))
	}
	second := reqs[1]
	// messages: system, user1, assistant, user2
	if len(second.Messages) != 4 {
		t.Fatalf("second request carries %d messages", len(second.Messages))
	}
	if strings.Contains(string(second.Messages[1].Content), "image_url") {
		t.Error("older user turn still carries an image payload")
	}
	if !strings.Contains(string(second.Messages[3].Content), "image_url") {
		t.Error("most recent user turn lost its image payload")
	}
}

func TestGroqVerbalPath(t *testing.T) {
	q, requests := newGroqServer(t, []string{"sure"}, http.StatusOK)
	q.InitSession("p")

	q.AddUserMessage("follow up question")
	events := collect(t, q.TriggerCompletion())
	if events[len(events)-1].Kind != event.Finish {
		t.Fatalf("events = %+v", events)
	}

	reqs := requests()
	if len(reqs) != 1 {
		t.Fatalf("got %d requests", len(reqs))
	}
	// The transcript is sent once, not duplicated.
	var count int
	for _, m := range reqs[0].Messages {
		if strings.Contains(string(m.Content), "follow up question") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("transcript appears %d times in request, want 1", count)
	}
}

func TestGroqPivotResetsHistory(t *testing.T) {
	q, _ := newGroqServer(t, []string{"hi"}, http.StatusOK)
	q.InitSession("old")
	collect(t, q.StreamAnalysis(nil, "turn one"))

	data := skill.Data{Identity: "Fresh analyst persona", Instructions: "x", Context: "y"}
	events := collect(t, q.StreamPivot(data, "new prompt"))

	if len(events) != 2 || events[0].Kind != event.TextChunk || events[1].Kind != event.Finish {
		t.Fatalf("pivot events = %+v", events)
	}
	if !strings.Contains(events[0].Content, "Pivot acknowledged") {
		t.Errorf("ack = %q", events[0].Content)
	}
	msgs := q.historySnapshot()
	if len(msgs) != 1 || msgs[0].Content != "new prompt" {
		t.Errorf("history after pivot = %+v, want fresh system seed", msgs)
	}
}

func TestGroqToggleModelNoOp(t *testing.T) {
	q := NewGroq("k")
	if q.ToggleModel() {
		t.Error("single-tier engine must report false")
	}
	if got := q.ModelName(); !strings.HasPrefix(got, "GROQ (") {
		t.Errorf("ModelName = %q", got)
	}
}
