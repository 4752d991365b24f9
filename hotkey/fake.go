package hotkey

type FakeSet struct {
	events     chan Action
	Registered bool
}

func NewFake() *FakeSet {
	return &FakeSet{events: make(chan Action, 8)}
}

func (f *FakeSet) Register() error { f.Registered = true; return nil }
func (f *FakeSet) Unregister()     { f.Registered = false }

func (f *FakeSet) Events() <-chan Action { return f.events }

func (f *FakeSet) SimPress(a Action) { f.events <- a }
