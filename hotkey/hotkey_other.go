//go:build !linux

package hotkey

import (
	"sync"

	"golang.design/x/hotkey"
)

var actionKeys = map[Action]hotkey.Key{
	ActionPixel:  hotkey.KeyP,
	ActionTalk:   hotkey.KeyT,
	ActionModel:  hotkey.KeyM,
	ActionEngine: hotkey.KeyE,
	ActionSkill:  hotkey.KeyS,
}

type xSet struct {
	hks    map[Action]*hotkey.Hotkey
	events chan Action
	stop   chan struct{}
	once   sync.Once
}

func New() Set {
	hks := make(map[Action]*hotkey.Hotkey, len(actionKeys))
	for action, key := range actionKeys {
		hks[action] = hotkey.New([]hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, key)
	}
	return &xSet{
		hks:    hks,
		events: make(chan Action, 1),
	}
}

func (h *xSet) Register() error {
	var registered []*hotkey.Hotkey
	for _, action := range Actions {
		hk := h.hks[action]
		if err := hk.Register(); err != nil {
			for _, r := range registered {
				r.Unregister()
			}
			return err
		}
		registered = append(registered, hk)
	}

	h.stop = make(chan struct{})
	for _, action := range Actions {
		go h.forward(action)
	}
	return nil
}

func (h *xSet) forward(action Action) {
	hk := h.hks[action]
	for {
		select {
		case <-h.stop:
			return
		case <-hk.Keydown():
			select {
			case h.events <- action:
			default:
			}
		}
	}
}

func (h *xSet) Unregister() {
	h.once.Do(func() {
		if h.stop != nil {
			close(h.stop)
		}
		for _, hk := range h.hks {
			hk.Unregister()
		}
	})
}

func (h *xSet) Events() <-chan Action {
	return h.events
}

func Diagnose() (string, error) {
	return "hotkey support available (Ctrl+Shift+P/T/M/E/S)", nil
}
