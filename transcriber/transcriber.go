// Package transcriber converts finished audio buffers to text through a
// remote speech-to-text endpoint. An empty result with a nil error means
// "no speech": the caller stays idle and must not forward it to a chat
// engine.
package transcriber

import (
	"context"
	"strings"
)

type Transcriber interface {
	Name() string
	// Transcribe sends an encoded audio buffer (format "wav" or "flac") and
	// returns the trimmed transcript. "" with nil error means silence or
	// noise; errors cover transport and credential failures.
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
}

// noiseMarkers are strings the upstream model emits for pure silence or
// background noise. Matching is case-insensitive on the trimmed text.
var noiseMarkers = map[string]bool{
	".":         true,
	"...":       true,
	"[silence]": true,
	"[noise]":   true,
	"(silence)": true,
}

// filterSpeech trims the raw transcript and suppresses trivial or marker-only
// results. This gate is load-bearing: downstream treats "" as "no intent".
func filterSpeech(raw string) string {
	text := strings.TrimSpace(raw)
	if len(text) < 2 || noiseMarkers[strings.ToLower(text)] {
		return ""
	}
	return text
}
