// Package tui renders the --watch view: a live, single-build status display
// that replaces the scrolling console log while a build runs.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ucb-agent/src/orchestrator"
	"ucb-agent/src/unitycloud"
)

// ProgressMsg carries a fresh orchestrator progress snapshot into the model.
// The pipeline goroutine delivers these via Program.Send.
type ProgressMsg orchestrator.Progress

// DoneMsg ends the watch. Err carries the pipeline outcome so the final frame
// can say why the run stopped.
type DoneMsg struct {
	Err error
}

type WatchModel struct {
	styles  *StyleConfig
	spinner spinner.Model

	projectID string
	targetID  string

	progress orchestrator.Progress
	seen     bool
	done     bool
	err      error
	quitting bool
}

func NewWatchModel(projectID, targetID string) WatchModel {
	styles := DefaultStyles()
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.SpinnerGold)
	return WatchModel{
		styles:    styles,
		spinner:   sp,
		projectID: projectID,
		targetID:  targetID,
	}
}

// Err returns the error delivered by DoneMsg, if any.
func (m WatchModel) Err() error {
	return m.err
}

func (m WatchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressMsg:
		m.progress = orchestrator.Progress(msg)
		m.seen = true
		return m, nil

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(m.styles.TitleStyle().Render("Unity Cloud Build"))
	b.WriteString("\n")
	b.WriteString(m.styles.HelpStyle().Render(fmt.Sprintf("%s / %s", m.projectID, m.targetID)))
	b.WriteString("\n\n")
	b.WriteString(" ")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")
	b.WriteString(m.styles.HelpStyle().Render("q: quit"))
	b.WriteString("\n")
	return b.String()
}

func (m WatchModel) statusLine() string {
	if m.done {
		if m.err != nil {
			return m.styles.StatusStyle(unitycloud.StatusFailure).Render("✗ " + m.err.Error())
		}
		line := "✓ succeeded"
		if m.seen {
			line = fmt.Sprintf("✓ build #%d succeeded in %s", m.progress.BuildNumber, formatElapsed(m.progress.Elapsed))
		}
		return m.styles.StatusStyle(unitycloud.StatusSuccess).Render(line)
	}

	if !m.seen {
		return fmt.Sprintf("%s waiting for build...", m.spinner.View())
	}

	status := m.styles.StatusStyle(m.progress.Status).Render(m.progress.Status)
	return fmt.Sprintf("%s build #%d %s  polls=%d elapsed=%s",
		m.spinner.View(), m.progress.BuildNumber, status, m.progress.Polls, formatElapsed(m.progress.Elapsed))
}

// formatElapsed drops sub-second noise so the display does not jitter.
func formatElapsed(d time.Duration) string {
	return d.Truncate(time.Second).String()
}
