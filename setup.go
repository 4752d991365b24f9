package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"sidecar/capture"
	"sidecar/skill"
)

// selectMenu presents a raw-mode arrow menu and returns the chosen index.
func selectMenu(title string, items []string) (int, error) {
	if len(items) == 0 {
		return 0, fmt.Errorf("nothing to select")
	}
	if len(items) == 1 {
		return 0, nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return 0, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := 0
	renderList := func() {
		fmt.Print("\r\x1b[J")
		fmt.Printf("%s (↑/↓, Enter to confirm):\r\n\r\n", title)
		for i, item := range items {
			if i == cursor {
				fmt.Printf("  \x1b[1;36m▶ %s\x1b[0m\r\n", item)
			} else {
				fmt.Printf("    %s\r\n", item)
			}
		}
	}

	renderList()

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return 0, fmt.Errorf("reading input: %w", err)
		}

		if n == 1 {
			switch buf[0] {
			case 13: // Enter
				fmt.Print("\r\n")
				term.Restore(fd, oldState)
				return cursor, nil
			case 3: // Ctrl+C
				fmt.Print("\r\n")
				term.Restore(fd, oldState)
				os.Exit(130)
			case 'j':
				if cursor < len(items)-1 {
					cursor++
				}
			case 'k':
				if cursor > 0 {
					cursor--
				}
			}
		} else if n == 3 && buf[0] == 0x1b && buf[1] == '[' {
			switch buf[2] {
			case 'A':
				if cursor > 0 {
					cursor--
				}
			case 'B':
				if cursor < len(items)-1 {
					cursor++
				}
			}
		}

		lines := len(items) + 2
		fmt.Printf("\x1b[%dA", lines)
		renderList()
	}
}

func selectSkill(skills *skill.Manager) (string, error) {
	names, err := skills.List()
	if err != nil {
		return "", fmt.Errorf("listing skills in %s: %w", skills.Dir(), err)
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no skills found in %s", skills.Dir())
	}
	idx, err := selectMenu("Select skill", names)
	if err != nil {
		return "", err
	}
	return names[idx], nil
}

func selectMonitor() (int, error) {
	n := capture.Monitors()
	if n == 0 {
		return 0, fmt.Errorf("no active displays found")
	}
	items := make([]string, n)
	for i := 0; i < n; i++ {
		label := fmt.Sprintf("Monitor %d", i)
		if i == 0 {
			label += " (primary)"
		}
		items[i] = label
	}
	return selectMenu("Select monitor to watch", items)
}

func selectEngine(available []string) (string, error) {
	if len(available) == 1 {
		return available[0], nil
	}
	idx, err := selectMenu("Select chat engine", available)
	if err != nil {
		return "", err
	}
	return available[idx], nil
}

// promptPlaceholders asks for a value per {{VAR}} found in the skill's
// context layer. Empty answers leave the placeholder in place.
func promptPlaceholders(skillName string, placeholders []string) map[string]string {
	if len(placeholders) == 0 {
		return nil
	}
	fmt.Printf("\nSkill %q has session variables:\n", skillName)
	values := make(map[string]string, len(placeholders))
	reader := bufio.NewReader(os.Stdin)
	for _, name := range placeholders {
		fmt.Printf("  %s: ", name)
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		if v := strings.TrimSpace(line); v != "" {
			values[name] = v
		}
	}
	return values
}

func promptSessionContext() string {
	fmt.Print("\nExtra session context (Enter to skip): ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}
