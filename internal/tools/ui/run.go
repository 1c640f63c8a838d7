package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const actionTimeout = 2 * time.Minute

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	frames      = []string{"|", "/", "-", "\\"}
)

type actionMsg struct {
	details []string
	err     error
}

type tickMsg struct{}

type model struct {
	title   string
	action  func(context.Context) ([]string, error)
	frame   int
	done    bool
	details []string
	err     error
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.runAction, tick())
}

func (m model) runAction() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()
	details, err := m.action(ctx)
	return actionMsg{details: details, err: err}
}

func tick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case actionMsg:
		m.done = true
		m.details = msg.details
		m.err = msg.err
		return m, tea.Quit
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(frames)
		return m, tick()
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			m.err = context.Canceled
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	switch {
	case !m.done:
		fmt.Fprintf(&b, "%s %s Running...\n", frames[m.frame], titleStyle.Render(m.title))
	case m.err != nil:
		fmt.Fprintf(&b, "%s %s\n", failStyle.Render("FAILED"), titleStyle.Render(m.title))
		fmt.Fprintf(&b, "  %s\n", m.err)
	default:
		fmt.Fprintf(&b, "%s %s\n", okStyle.Render("OK"), titleStyle.Render(m.title))
	}
	for _, d := range m.details {
		fmt.Fprintf(&b, "  %s\n", detailStyle.Render(d))
	}
	return b.String()
}

// Run shows a progress line while fn executes and returns its result.
func Run(title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	final, err := tea.NewProgram(model{title: title, action: fn}).Run()
	if err != nil {
		return nil, fmt.Errorf("run ui: %w", err)
	}
	m := final.(model)
	return m.details, m.err
}
