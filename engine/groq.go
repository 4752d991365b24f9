package engine

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"sidecar/event"
	"sidecar/skill"
)

const (
	groqChatURL      = "https://api.groq.com/openai/v1/chat/completions"
	groqDefaultModel = "meta-llama/llama-4-maverick-17b-128e-instruct"
	groqMaxTokens    = 1024
)

// Groq is the manual-history engine variant: an explicit ordered message
// list against a chat-completions endpoint, history bookkeeping done here.
//
// Pivot policy: history-reset. The message list is re-seeded with the new
// system prompt, so the new persona never sees the old conversation. The
// acknowledgement turn is synthesized locally; no request is made.
//
// Persisted history policy: the stream carries no thought distinction, so
// every emitted chunk lands in the stored assistant turn.
type Groq struct {
	apiKey string
	apiURL string
	client *http.Client
	model  string

	mu           sync.Mutex
	systemPrompt string
	initialized  bool
	messages     []groqMessage
}

func NewGroq(apiKey string) *Groq {
	return &Groq{
		apiKey: apiKey,
		apiURL: groqChatURL,
		client: &http.Client{Timeout: 120 * time.Second},
		model:  groqDefaultModel,
	}
}

type groqImageURL struct {
	URL string `json:"url"`
}

type groqPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *groqImageURL `json:"image_url,omitempty"`
}

// groqMessage content is a plain string for system/assistant turns and a
// []groqPart for user turns (which may mix text and image parts).
type groqMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type groqChatRequest struct {
	Model               string        `json:"model"`
	Messages            []groqMessage `json:"messages"`
	Stream              bool          `json:"stream"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`
}

type groqChatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (q *Groq) InitSession(systemPrompt string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.resetLocked(systemPrompt)
}

func (q *Groq) resetLocked(systemPrompt string) {
	q.systemPrompt = systemPrompt
	q.messages = []groqMessage{{Role: "system", Content: systemPrompt}}
	q.initialized = true
}

// AddUserMessage appends a user turn to local history without triggering a
// completion; pair it with TriggerCompletion for a text-only turn.
func (q *Groq) AddUserMessage(content string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.initialized {
		q.resetLocked(q.systemPrompt)
	}
	q.messages = append(q.messages, groqMessage{
		Role:    "user",
		Content: []groqPart{{Type: "text", Text: content}},
	})
}

func (q *Groq) StreamAnalysis(image []byte, additionalText string) <-chan event.Event {
	text := strings.TrimSpace(additionalText)
	if len(image) == 0 && text == "" {
		return errStream("groq: nothing to analyze (no image, no text)")
	}

	var parts []groqPart
	if len(image) > 0 {
		parts = append(parts, groqPart{Type: "text", Text: analyzeInstruction})
		parts = append(parts, groqPart{Type: "image_url", ImageURL: &groqImageURL{
			URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(image),
		}})
		if text != "" {
			parts = append(parts, groqPart{Type: "text", Text: additionalInput(text)})
		}
	} else {
		parts = append(parts, groqPart{Type: "text", Text: text})
	}

	q.mu.Lock()
	if !q.initialized {
		q.resetLocked(q.systemPrompt)
	}
	q.messages = append(q.messages, groqMessage{Role: "user", Content: parts})
	q.mu.Unlock()

	return q.TriggerCompletion()
}

// TriggerCompletion requests a streamed completion over the accumulated
// history. On transport failure the pending user turn is removed so a retry
// does not double-send it.
func (q *Groq) TriggerCompletion() <-chan event.Event {
	return stream(func(emit func(event.Event)) {
		q.streamCompletion(emit)
	})
}

func (q *Groq) StreamPivot(data skill.Data, assembledPrompt string) <-chan event.Event {
	q.InitSession(assembledPrompt)
	return stream(func(emit func(event.Event)) {
		emit(event.Text("Pivot acknowledged. System re-tasked to " + identitySnippet(data.Identity)))
		emit(event.Done())
	})
}

func (q *Groq) streamCompletion(emit func(event.Event)) {
	q.mu.Lock()
	if !q.initialized {
		q.resetLocked(q.systemPrompt)
	}
	q.stripStaleImagesLocked()
	msgs := slices.Clone(q.messages)
	q.mu.Unlock()

	payload, err := json.Marshal(groqChatRequest{
		Model:               q.model,
		Messages:            msgs,
		Stream:              true,
		MaxCompletionTokens: groqMaxTokens,
	})
	if err != nil {
		q.rollbackUserTurn()
		emit(event.Errorf("groq: encoding request: %v", err))
		return
	}

	req, err := http.NewRequest(http.MethodPost, q.apiURL, bytes.NewReader(payload))
	if err != nil {
		q.rollbackUserTurn()
		emit(event.Errorf("groq: %v", err))
		return
	}
	req.Header.Set("Authorization", "Bearer "+q.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.client.Do(req)
	if err != nil {
		q.rollbackUserTurn()
		emit(event.Errorf("groq: %v", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		q.rollbackUserTurn()
		emit(event.Errorf("groq: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
		return
	}

	var answer strings.Builder
	err = readSSE(resp.Body, func(data []byte) error {
		var chunk groqChatChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			return fmt.Errorf("parsing chunk: %w", err)
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				emit(event.Text(choice.Delta.Content))
				answer.WriteString(choice.Delta.Content)
			}
		}
		return nil
	})
	if err != nil {
		q.rollbackUserTurn()
		emit(event.Errorf("groq: %v", err))
		return
	}

	q.mu.Lock()
	q.messages = append(q.messages, groqMessage{Role: "assistant", Content: answer.String()})
	q.mu.Unlock()

	emit(event.Done())
}

// stripStaleImagesLocked drops image parts from every user turn except the
// most recent one. Without this, each vision turn permanently re-sends its
// screenshot and a long session eventually exceeds the request-size limit.
func (q *Groq) stripStaleImagesLocked() {
	lastUser := -1
	for i := len(q.messages) - 1; i >= 0; i-- {
		if q.messages[i].Role == "user" {
			lastUser = i
			break
		}
	}
	for i := range q.messages {
		if i == lastUser || q.messages[i].Role != "user" {
			continue
		}
		parts, ok := q.messages[i].Content.([]groqPart)
		if !ok {
			continue
		}
		kept := parts[:0:0]
		for _, p := range parts {
			if p.Type == "text" {
				kept = append(kept, p)
			}
		}
		q.messages[i].Content = kept
	}
}

func (q *Groq) rollbackUserTurn() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n := len(q.messages); n > 0 && q.messages[n-1].Role == "user" {
		q.messages = q.messages[:n-1]
	}
}

func (q *Groq) ModelName() string {
	short := q.model
	if i := strings.LastIndex(short, "/"); i >= 0 {
		short = short[i+1:]
	}
	return fmt.Sprintf("GROQ (%s)", short)
}

// ToggleModel is a documented no-op: this backend runs a single fixed tier.
func (q *Groq) ToggleModel() bool {
	return false
}

// historySnapshot copies the message list; used by tests.
func (q *Groq) historySnapshot() []groqMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.messages)
}
