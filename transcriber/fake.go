package transcriber

import "context"

// Fake returns a scripted transcript (or error) and records the buffers it
// was handed.
type Fake struct {
	Text    string
	Err     error
	Buffers [][]byte
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Transcribe(_ context.Context, audio []byte, _ string) (string, error) {
	f.Buffers = append(f.Buffers, audio)
	if f.Err != nil {
		return "", f.Err
	}
	return f.Text, nil
}
