package hotkey

import "testing"

func TestFakeSetDelivers(t *testing.T) {
	f := NewFake()
	if err := f.Register(); err != nil {
		t.Fatal(err)
	}
	f.SimPress(ActionTalk)
	f.SimPress(ActionPixel)

	if got := <-f.Events(); got != ActionTalk {
		t.Errorf("first event = %q, want talk", got)
	}
	if got := <-f.Events(); got != ActionPixel {
		t.Errorf("second event = %q, want pixel", got)
	}
}

func TestActionsCoverAllChords(t *testing.T) {
	seen := map[Action]bool{}
	for _, a := range Actions {
		if seen[a] {
			t.Errorf("duplicate action %q", a)
		}
		seen[a] = true
	}
	if len(seen) != 5 {
		t.Errorf("expected 5 actions, got %d", len(seen))
	}
}
