// Package event defines the closed set of events a chat engine emits while
// streaming one model turn. Every engine, regardless of backend, reports
// progress through this one type so the dispatch and render layers never see
// provider-specific response shapes.
package event

import "fmt"

type Kind int

const (
	TextChunk Kind = iota
	Status
	Error
	Finish
)

func (k Kind) String() string {
	switch k {
	case TextChunk:
		return "text_chunk"
	case Status:
		return "status"
	case Error:
		return "error"
	case Finish:
		return "finish"
	}
	return "unknown"
}

// Event is one element of a streamed turn. Streams are finite and ordered:
// zero or more TextChunk/Status events followed by at most one terminal
// Error or Finish, then channel close. Metadata carries rendering hints only
// (e.g. "is_thought"); correctness never depends on it.
type Event struct {
	Kind     Kind
	Content  string
	Metadata map[string]any
}

// IsThought reports whether this chunk belongs to a chain-of-thought segment
// that should be rendered apart from the final answer.
func (e Event) IsThought() bool {
	v, ok := e.Metadata["is_thought"].(bool)
	return ok && v
}

// Terminal reports whether no further events may follow for this turn.
func (e Event) Terminal() bool {
	return e.Kind == Error || e.Kind == Finish
}

func Text(content string) Event {
	return Event{Kind: TextChunk, Content: content}
}

func Thought(content string) Event {
	return Event{Kind: TextChunk, Content: content, Metadata: map[string]any{"is_thought": true}}
}

func StatusMsg(content string) Event {
	return Event{Kind: Status, Content: content}
}

func Errorf(format string, args ...any) Event {
	return Event{Kind: Error, Content: fmt.Sprintf(format, args...)}
}

func Done() Event {
	return Event{Kind: Finish}
}
