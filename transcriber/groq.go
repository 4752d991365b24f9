package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	groqSTTURL   = "https://api.groq.com/openai/v1/audio/transcriptions"
	groqSTTModel = "whisper-large-v3-turbo"
)

type Groq struct {
	apiKey string
	apiURL string
	model  string
	client *http.Client
}

func NewGroq(apiKey string) *Groq {
	return &Groq{
		apiKey: apiKey,
		apiURL: groqSTTURL,
		model:  groqSTTModel,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *Groq) Name() string { return "groq" }

type groqSTTResponse struct {
	Text string `json:"text"`
}

func (g *Groq) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("groq stt: API key missing")
	}
	if format == "" {
		format = "wav"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "speech."+format)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	writer.WriteField("model", g.model)
	writer.WriteField("response_format", "json")
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("groq stt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("groq stt: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed groqSTTResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("groq stt: parsing response: %w", err)
	}

	return filterSpeech(parsed.Text), nil
}
