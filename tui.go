package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUI message types
type TurnStartMsg struct {
	Vector string
	Model  string
}
type ChunkMsg struct {
	Text    string
	Thought bool
}
type StatusLineMsg struct{ Text string }
type TurnErrorMsg struct{ Text string }
type TurnEndMsg struct{}
type RecordingStartMsg struct{}
type RecordingStopMsg struct{}
type ModeLineMsg struct{ Text string }
type ReadyMsg struct{}
type tickMsg time.Time

type tuiState int

const (
	tuiStateIdle tuiState = iota
	tuiStateRecording
	tuiStateStreaming
)

type tuiModel struct {
	state          tuiState
	frame          int
	recordingStart time.Time
	width, height  int

	modeLine   string // "[gemini | GEMINI FLASH | interview]"
	statusLine string
	turnHeader string // "PIXEL · GEMINI FLASH"
	turnCount  int

	answer  string
	thought string
	lastErr string
}

var (
	tuiProgram   *tea.Program
	tuiMu        sync.Mutex
	tuiReady     = make(chan struct{})
	tuiReadyOnce sync.Once

	// onCopyLast is installed by main once the worker exists.
	onCopyLast func()
)

var (
	styleHeader  = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	styleMode    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleStatus  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleRec     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleIdle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleAnswer  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	styleThought = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	styleErr     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	styleHelp    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
)

func NewTUIProgram() *tea.Program {
	m := tuiModel{}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	tuiReadyOnce.Do(func() { close(tuiReady) })
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "c":
			if onCopyLast != nil {
				onCopyLast()
				m.statusLine = "Copied last response."
			}
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case TurnStartMsg:
		m.state = tuiStateStreaming
		m.turnCount++
		m.turnHeader = fmt.Sprintf("%s · %s", strings.ToUpper(msg.Vector), msg.Model)
		m.answer = ""
		m.thought = ""
		m.lastErr = ""
		m.statusLine = ""

	case ChunkMsg:
		if msg.Thought {
			m.thought += msg.Text
		} else {
			m.answer += msg.Text
		}

	case StatusLineMsg:
		m.statusLine = msg.Text

	case TurnErrorMsg:
		m.lastErr = msg.Text

	case TurnEndMsg:
		m.state = tuiStateIdle

	case RecordingStartMsg:
		m.state = tuiStateRecording
		m.recordingStart = time.Now()

	case RecordingStopMsg:
		if m.state == tuiStateRecording {
			m.state = tuiStateIdle
		}

	case ModeLineMsg:
		m.modeLine = msg.Text

	case ReadyMsg:
		if m.state != tuiStateRecording {
			m.state = tuiStateIdle
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	wrapWidth := m.width - 2
	if wrapWidth < 20 {
		wrapWidth = 20
	}

	var b strings.Builder
	b.WriteString(styleHeader.Render("SIDECAR") + "  " + styleMode.Render(m.modeLine) + "\n")

	switch m.state {
	case tuiStateRecording:
		elapsed := time.Since(m.recordingStart).Seconds()
		b.WriteString(styleRec.Render(fmt.Sprintf("● REC %.1fs", elapsed)) +
			styleIdle.Render("  press talk again to stop") + "\n")
	case tuiStateStreaming:
		dots := strings.Repeat(".", m.frame%4)
		b.WriteString(styleStatus.Render("analyzing"+dots) + "\n")
	default:
		b.WriteString(styleIdle.Render("○ READY") + "\n")
	}

	if m.statusLine != "" {
		b.WriteString(styleStatus.Render(m.statusLine) + "\n")
	}
	b.WriteString("\n")

	if m.turnHeader != "" {
		b.WriteString(styleMode.Render(fmt.Sprintf("[ %s #%d ]", m.turnHeader, m.turnCount)) + "\n")
	}

	if m.thought != "" {
		for _, line := range wrapText(m.thought, wrapWidth) {
			b.WriteString(styleThought.Render(line) + "\n")
		}
		b.WriteString("\n")
	}

	if m.answer != "" {
		for _, para := range strings.Split(m.answer, "\n") {
			for _, line := range wrapText(para, wrapWidth) {
				b.WriteString(styleAnswer.Render(line) + "\n")
			}
		}
	}

	if m.lastErr != "" {
		b.WriteString(styleErr.Render("[!] "+m.lastErr) + "\n")
	}

	// Pin help to the bottom when there is room.
	body := b.String()
	lines := strings.Count(body, "\n")
	help := styleHelp.Render("Ctrl+Shift+ P pixel · T talk · M model · E engine · S skill · C copy last") +
		"\n" + styleHelp.Render("sidecar "+version)
	pad := m.height - lines - 3
	if pad > 0 {
		body += strings.Repeat("\n", pad)
	}
	return body + help
}

// tuiSink adapts the Bubble Tea program to the worker's EventSink.
type tuiSink struct{}

func (tuiSink) TurnStart(vector, model string) { tuiSend(TurnStartMsg{Vector: vector, Model: model}) }
func (tuiSink) Chunk(text string, thought bool) {
	tuiSend(ChunkMsg{Text: text, Thought: thought})
}
func (tuiSink) Status(text string)    { tuiSend(StatusLineMsg{Text: text}) }
func (tuiSink) TurnError(text string) { tuiSend(TurnErrorMsg{Text: text}) }
func (tuiSink) TurnEnd()              { tuiSend(TurnEndMsg{}) }
func (tuiSink) RecordingStart()       { tuiSend(RecordingStartMsg{}) }
func (tuiSink) RecordingStop()        { tuiSend(RecordingStopMsg{}) }
func (tuiSink) ModeLine(text string)  { tuiSend(ModeLineMsg{Text: text}) }
func (tuiSink) Ready()                { tuiSend(ReadyMsg{}) }

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// wrapText splits on rune boundaries so multibyte output never gets cut
// mid-character.
func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	runes := []rune(text)
	var lines []string
	for len(runes) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if runes[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(runes[:splitAt]))
		runes = runes[splitAt:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return lines
}
