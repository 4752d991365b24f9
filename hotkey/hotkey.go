package hotkey

// Action identifies one of the global chords. All chords share the
// Ctrl+Shift modifier pair and differ only in the trailing letter.
type Action string

const (
	ActionPixel  Action = "pixel"  // Ctrl+Shift+P
	ActionTalk   Action = "talk"   // Ctrl+Shift+T
	ActionModel  Action = "model"  // Ctrl+Shift+M
	ActionEngine Action = "engine" // Ctrl+Shift+E
	ActionSkill  Action = "skill"  // Ctrl+Shift+S
)

// Actions lists every chord in registration order.
var Actions = []Action{ActionPixel, ActionTalk, ActionModel, ActionEngine, ActionSkill}

// Set registers all chords at once and delivers presses on a single
// channel. Presses arriving while the consumer is busy are dropped,
// not queued.
type Set interface {
	Register() error
	Unregister()
	Events() <-chan Action
}
