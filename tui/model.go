package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-midivel/theme"
)

// how many processed files stay on screen
const recentLines = 8

// StageMsg starts a new stage (one per split, or the statistics pass)
type StageMsg struct {
	Name  string
	Total int
}

// FileMsg reports one processed file
type FileMsg struct {
	Path   string
	Tokens int
	Err    error // non-nil when the file was skipped
}

// DoneMsg ends the run with a rendered summary
type DoneMsg struct {
	Summary string
	Err     error
}

type Model struct {
	Theme    *theme.Theme
	Title    string
	stage    string
	total    int
	done     int
	skipped  int
	recent   []string
	finished []string // one line per completed stage
	summary  string
	err      error
	quitting bool
	width    int
	onQuit   func()
}

// NewModel creates a progress view; onQuit runs when the user quits early
func NewModel(th *theme.Theme, title string, onQuit func()) Model {
	if th == nil {
		th = theme.New(nil)
	}
	return Model{Theme: th, Title: title, width: 60, onQuit: onQuit}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case StageMsg:
		if m.stage != "" {
			m.finished = append(m.finished, m.stageLine())
		}
		m.stage = msg.Name
		m.total = msg.Total
		m.done, m.skipped = 0, 0
		m.recent = nil

	case FileMsg:
		m.done++
		name := filepath.Base(msg.Path)
		var line string
		if msg.Err != nil {
			m.skipped++
			line = m.Theme.Warn(fmt.Sprintf("%c %s: %v", m.Theme.Symbols.Skipped, name, msg.Err))
		} else {
			line = fmt.Sprintf("%c %s %s", m.Theme.Symbols.Done, name, m.Theme.Dim(fmt.Sprintf("%d tokens", msg.Tokens)))
		}
		m.recent = append(m.recent, line)
		if len(m.recent) > recentLines {
			m.recent = m.recent[len(m.recent)-recentLines:]
		}

	case DoneMsg:
		if m.stage != "" {
			m.finished = append(m.finished, m.stageLine())
			m.stage = ""
		}
		m.summary = msg.Summary
		m.err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) stageLine() string {
	return fmt.Sprintf("%s: %d/%d files, %d skipped", m.stage, m.done, m.total, m.skipped)
}

// Err returns the error the run finished with
func (m Model) Err() error {
	return m.err
}

func (m Model) bar() string {
	width := max(10, min(m.width-20, 40))
	filled := 0
	if m.total > 0 {
		filled = m.done * width / m.total
	}
	return strings.Repeat(string(m.Theme.Symbols.Bar), filled) +
		m.Theme.Dim(strings.Repeat(string(m.Theme.Symbols.Pending), width-filled))
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(m.Theme.Title(m.Title))
	out.WriteString("\n\n")

	for _, line := range m.finished {
		out.WriteString(m.Theme.Good(string(m.Theme.Symbols.Done) + " " + line))
		out.WriteString("\n")
	}

	if m.stage != "" {
		out.WriteString(fmt.Sprintf("%s %s %d/%d\n", m.stage, m.bar(), m.done, m.total))
		for _, line := range m.recent {
			out.WriteString("  " + line + "\n")
		}
	}

	if m.summary != "" {
		out.WriteString("\n")
		out.WriteString(m.Theme.Box(m.summary))
		out.WriteString("\n")
	}
	if m.err != nil {
		out.WriteString("\n")
		out.WriteString(m.Theme.Warn("error: " + m.err.Error()))
		out.WriteString("\n")
	}

	if m.summary == "" && m.err == nil {
		out.WriteString("\n")
		out.WriteString(lipgloss.NewStyle().Foreground(m.Theme.Muted()).Render("q:quit"))
	}
	return out.String()
}
