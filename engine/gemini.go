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
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	modelFlash    = "gemini-2.5-flash"
	modelPro      = "gemini-2.5-pro"
)

// Gemini is the session-native engine variant. The conversation lives in an
// opaque chat session handle (never exposed to callers); AddUserMessage is a
// no-op because the session appends and responds in one round-trip; a
// standalone append would be double-counted by the next streaming call.
//
// Pivot policy: history-preserving. The persona override travels as an
// in-band turn and accumulated turns survive.
//
// Persisted history policy: thought-flagged chunks are EXCLUDED. The
// assistant turn is rebuilt from answer parts only, matching the upstream
// separation of thought and answer content.
type Gemini struct {
	apiKey        string
	baseURL       string
	client        *http.Client
	thinkingLevel string

	mu           sync.Mutex
	useDeep      bool
	systemPrompt string
	initialized  bool
	history      []geminiContent
}

func NewGemini(apiKey, thinkingLevel string) *Gemini {
	if thinkingLevel == "" {
		thinkingLevel = "high"
	}
	return &Gemini{
		apiKey:        apiKey,
		baseURL:       geminiBaseURL,
		client:        &http.Client{Timeout: 120 * time.Second},
		thinkingLevel: thinkingLevel,
	}
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	Thought    bool              `json:"thought,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiThinkingConfig struct {
	IncludeThoughts bool   `json:"includeThoughts"`
	ThinkingLevel   string `json:"thinkingLevel,omitempty"`
}

type geminiGenConfig struct {
	Temperature    float64               `json:"temperature"`
	ThinkingConfig *geminiThinkingConfig `json:"thinkingConfig,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiChunk struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *Gemini) InitSession(systemPrompt string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.systemPrompt = systemPrompt
	g.resetSessionLocked()
}

func (g *Gemini) resetSessionLocked() {
	g.history = nil
	g.initialized = true
}

// AddUserMessage is a documented no-op: the remote session abstraction
// appends the user turn inside the next streaming call.
func (g *Gemini) AddUserMessage(string) {}

func (g *Gemini) StreamAnalysis(image []byte, additionalText string) <-chan event.Event {
	text := strings.TrimSpace(additionalText)
	if len(image) == 0 && text == "" {
		return errStream("gemini: nothing to analyze (no image, no text)")
	}

	var parts []geminiPart
	if len(image) > 0 {
		parts = append(parts, geminiPart{Text: analyzeInstruction})
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: "image/png",
			Data:     base64.StdEncoding.EncodeToString(image),
		}})
		if text != "" {
			parts = append(parts, geminiPart{Text: additionalInput(text)})
		}
	} else {
		parts = append(parts, geminiPart{Text: text})
	}

	user := geminiContent{Role: "user", Parts: parts}
	return stream(func(emit func(event.Event)) {
		g.streamTurn(user, emit)
	})
}

func (g *Gemini) StreamPivot(data skill.Data, assembledPrompt string) <-chan event.Event {
	g.mu.Lock()
	g.systemPrompt = assembledPrompt
	g.mu.Unlock()

	user := geminiContent{Role: "user", Parts: []geminiPart{{Text: overrideMessage(data)}}}
	return stream(func(emit func(event.Event)) {
		g.streamTurn(user, emit)
	})
}

// streamTurn performs one round-trip. The user turn and the reconstructed
// assistant turn are committed to the session only after the stream finishes
// cleanly, so a failed turn leaves the session untouched.
func (g *Gemini) streamTurn(user geminiContent, emit func(event.Event)) {
	g.mu.Lock()
	if !g.initialized {
		g.resetSessionLocked()
	}
	model := modelFlash
	if g.useDeep {
		model = modelPro
	}
	contents := append(slices.Clone(g.history), user)
	reqBody := geminiRequest{
		Contents: contents,
		GenerationConfig: geminiGenConfig{
			Temperature: 1.0,
			ThinkingConfig: &geminiThinkingConfig{
				IncludeThoughts: true,
				ThinkingLevel:   g.thinkingLevel,
			},
		},
	}
	if g.systemPrompt != "" {
		reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: g.systemPrompt}}}
	}
	g.mu.Unlock()

	payload, err := json.Marshal(reqBody)
	if err != nil {
		emit(event.Errorf("gemini: encoding request: %v", err))
		return
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", g.baseURL, model)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		emit(event.Errorf("gemini: %v", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		emit(event.Errorf("gemini: %v", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		emit(event.Errorf("gemini: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
		return
	}

	var answer strings.Builder
	err = readSSE(resp.Body, func(data []byte) error {
		var chunk geminiChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			return fmt.Errorf("parsing chunk: %w", err)
		}
		if chunk.Error != nil {
			return fmt.Errorf("upstream %d: %s", chunk.Error.Code, chunk.Error.Message)
		}
		for _, cand := range chunk.Candidates {
			for _, part := range cand.Content.Parts {
				if part.Text == "" {
					continue
				}
				if part.Thought {
					emit(event.Thought(part.Text))
				} else {
					emit(event.Text(part.Text))
					answer.WriteString(part.Text)
				}
			}
		}
		return nil
	})
	if err != nil {
		emit(event.Errorf("gemini: %v", err))
		return
	}

	g.mu.Lock()
	g.history = append(g.history, user, geminiContent{
		Role:  "model",
		Parts: []geminiPart{{Text: answer.String()}},
	})
	g.mu.Unlock()

	emit(event.Done())
}

func (g *Gemini) ModelName() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.useDeep {
		return fmt.Sprintf("GEMINI PRO (%s)", g.thinkingLevel)
	}
	return "GEMINI FLASH"
}

// ToggleModel flips between the flash and pro tiers and re-initializes the
// session so the new tier takes effect on the existing prompt.
func (g *Gemini) ToggleModel() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.useDeep = !g.useDeep
	g.resetSessionLocked()
	return g.useDeep
}

// historyLen reports committed turns; used by tests.
func (g *Gemini) historyLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.history)
}
