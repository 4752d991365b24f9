// Package skill loads persona bundles and assembles them into system prompts.
// A skill is a directory holding identity.md, instructions.md and context.md;
// the context layer may carry {{VAR}} placeholders that the caller resolves
// before assembly.
package skill

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Data is the 3-layer persona bundle. Fields are never mutated after the
// assembled prompt has been handed to an engine.
type Data struct {
	Identity     string
	Instructions string
	Context      string
}

var placeholderRe = regexp.MustCompile(`\{\{(.*?)\}\}`)

// globalProtocol is a fixed boilerplate section included in every assembled
// prompt. It is part of the template, not configurable per call.
const globalProtocol = `You are running inside a screen-aware desktop sidecar.
Responses stream into a small overlay terminal: be concise, lead with the
answer, and use short paragraphs over long lists.`

type Manager struct {
	dir string
}

func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

func (m *Manager) Dir() string { return m.dir }

// List returns available skill names, skipping template dirs prefixed with
// an underscore.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("listing skills: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), "_") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether a named skill directory is present.
func (m *Manager) Exists(name string) bool {
	info, err := os.Stat(filepath.Join(m.dir, name))
	return err == nil && info.IsDir()
}

// Load reads the three layers of a skill and returns them with the distinct
// {{VAR}} placeholder names found in the context layer. Resolution is the
// caller's responsibility (interactive prompt or cached values).
func (m *Manager) Load(name string) (Data, []string, error) {
	path := filepath.Join(m.dir, name)
	if _, err := os.Stat(path); err != nil {
		return Data{}, nil, fmt.Errorf("skill %q: %w", name, err)
	}
	data := Data{
		Identity:     readLayer(filepath.Join(path, "identity.md")),
		Instructions: readLayer(filepath.Join(path, "instructions.md")),
		Context:      readLayer(filepath.Join(path, "context.md")),
	}
	return data, Placeholders(data.Context), nil
}

// readLayer returns the file contents, or "" when the layer file is absent.
// A skill with a missing layer is still usable.
func readLayer(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(b)
}

// Placeholders returns the distinct {{VAR}} names in text, in first-seen order.
func Placeholders(text string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Resolve substitutes every occurrence of each {{VAR}} in the context layer
// and returns the updated bundle.
func Resolve(data Data, values map[string]string) Data {
	for name, val := range values {
		data.Context = strings.ReplaceAll(data.Context, "{{"+name+"}}", val)
	}
	return data
}

// AppendContext adds free-text interactive session context after the skill's
// own context layer.
func AppendContext(data Data, extra string) Data {
	extra = strings.TrimSpace(extra)
	if extra == "" {
		return data
	}
	if data.Context != "" {
		data.Context += "\n\n"
	}
	data.Context += extra
	return data
}

// Assemble concatenates the layers into the system prompt. Section order and
// the global protocol boilerplate are fixed.
func Assemble(data Data) string {
	return fmt.Sprintf(`# CORE IDENTITY
%s

# OPERATIONAL INSTRUCTIONS
%s

# GLOBAL PROTOCOL
%s

# SESSION CONTEXT
%s
`, data.Identity, data.Instructions, globalProtocol, data.Context)
}
