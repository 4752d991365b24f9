// Package engine wraps the upstream chat backends behind one interface.
// Each variant owns its conversation state and reports streamed turns as a
// channel of events. Transport failures never escape past the channel; they
// arrive as a single terminal Error event.
package engine

import (
	"strings"

	"sidecar/event"
	"sidecar/skill"
)

// Engine is one chat backend. Streaming methods return a finite,
// non-restartable channel: consume it exactly once, in order.
type Engine interface {
	// InitSession (re)creates the session seeded with the system prompt.
	// Idempotent; streaming calls lazily self-init when it was never called.
	InitSession(systemPrompt string)

	// AddUserMessage appends a user turn without requesting a response.
	// Engines backed by an opaque remote session document this as a no-op.
	AddUserMessage(content string)

	// StreamAnalysis runs one model turn over an optional image and optional
	// text. Both empty yields exactly one Error event.
	StreamAnalysis(image []byte, additionalText string) <-chan event.Event

	// StreamPivot injects a persona change mid-conversation and streams the
	// model's acknowledgement. Whether history survives is a per-engine
	// policy; see each implementation.
	StreamPivot(data skill.Data, assembledPrompt string) <-chan event.Event

	// ModelName identifies the engine, active tier and reasoning depth.
	ModelName() string

	// ToggleModel flips between the fast and deep tiers where supported and
	// re-initializes the session. Returns the new deep flag; engines with a
	// single tier return false unchanged.
	ToggleModel() bool
}

// Completer is implemented by engines that keep history client-side and can
// request a completion for turns appended via AddUserMessage. The verbal
// path uses it to avoid re-sending the transcript as analysis input.
type Completer interface {
	TriggerCompletion() <-chan event.Event
}

// analyzeInstruction is the primary instruction for a vision turn; user text
// rides behind it so the most specific intent lands last.
const analyzeInstruction = "Analyze this view."

func additionalInput(text string) string {
	return "\n[Additional User Input]: " + text
}

// overrideMessage phrases a persona swap as an in-band instruction block.
// The remote session abstraction cannot replace the system field of an open
// session, so the new layers travel as an explicit override turn.
func overrideMessage(data skill.Data) string {
	var b strings.Builder
	b.WriteString("[SYSTEM OVERRIDE]: Re-tasking sequence initiated.\n")
	b.WriteString("# NEW IDENTITY\n")
	b.WriteString(data.Identity)
	b.WriteString("\n# NEW OPERATIONAL INSTRUCTIONS\n")
	b.WriteString(data.Instructions)
	b.WriteString("\n# NEW SESSION DATA (CONTEXT)\n")
	b.WriteString(data.Context)
	b.WriteString("\nPlease acknowledge you have absorbed these new instructions.")
	return b.String()
}

// stream runs one turn in its own goroutine. The channel is buffered so slow
// consumers don't stall the network read, and closed once fn returns.
func stream(fn func(emit func(event.Event))) <-chan event.Event {
	ch := make(chan event.Event, 16)
	go func() {
		defer close(ch)
		fn(func(ev event.Event) { ch <- ev })
	}()
	return ch
}

// errStream yields exactly one Error event and terminates.
func errStream(format string, args ...any) <-chan event.Event {
	return stream(func(emit func(event.Event)) {
		emit(event.Errorf(format, args...))
	})
}

func identitySnippet(identity string) string {
	identity = strings.TrimSpace(identity)
	if len(identity) > 20 {
		return identity[:20] + "..."
	}
	return identity
}
