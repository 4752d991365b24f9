// Package cache persists the last session's configuration so the next
// launch can skip the interactive setup.
package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

const fileName = ".session_cache.json"

// Session is the snapshot written after a successful bootstrap.
type Session struct {
	EngineName     string            `json:"engine_name"`
	SkillName      string            `json:"skill_name"`
	Placeholders   map[string]string `json:"skill_placeholders,omitempty"`
	MonitorIndex   int               `json:"monitor_index"`
	AudioDevice    string            `json:"audio_device,omitempty"`
	SessionContext string            `json:"session_context,omitempty"`
}

type Store struct {
	path string
}

func New(dir string) *Store {
	return &Store{path: filepath.Join(dir, fileName)}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the cached session. A missing file returns (nil, nil);
// a corrupt one returns an error so the caller can fall back to the
// wizard.
func (s *Store) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	if sess.EngineName == "" || sess.SkillName == "" {
		return nil, errors.New("incomplete session cache")
	}
	return &sess, nil
}

func (s *Store) Save(sess Session) error {
	data, err := json.MarshalIndent(sess, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

func (s *Store) Clear() {
	os.Remove(s.path)
}
