package capture

// Fake returns a canned frame; nil simulates a failed grab.
type Fake struct {
	Frame []byte
	Calls int
}

func (f *Fake) Capture() []byte {
	f.Calls++
	return f.Frame
}
