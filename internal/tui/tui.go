// Package tui shows recipe progress and the final summary in the terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/hebillas/hebillas"
	"github.com/sokinpui/hebillas/model"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
	spinStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
)

type progressMsg struct {
	current, total int
}

type summaryMsg struct {
	model.Summary
}

type errorMsg struct {
	summary model.Summary
	err     error
}

func (e errorMsg) Error() string { return e.err.Error() }

type phase int

const (
	phaseRunning phase = iota
	phaseDone
	phaseFailed
)

// Model is the bubbletea model driving a single App.Execute call.
type Model struct {
	ctx      context.Context
	cancel   context.CancelFunc
	stopping bool
	app      *hebillas.App
	program  *tea.Program
	spinner  spinner.Model
	phase    phase
	current  int
	total    int
	summary  model.Summary
	err      error
	animated bool
}

// New creates the progress view for app. With animated false the spinner
// and progress counter are not shown. Quitting while the run is in progress
// cancels it and the view stays up until the run has stopped.
func New(ctx context.Context, app *hebillas.App, animated bool) *Model {
	ctx, cancel := context.WithCancel(ctx)
	return &Model{
		ctx:      ctx,
		cancel:   cancel,
		app:      app,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinStyle)),
		animated: animated,
	}
}

// SetProgram connects the app's progress callback to p.
func (m *Model) SetProgram(p *tea.Program) {
	m.program = p
	m.app.SetProgressCallback(func(current, total int) {
		p.Send(progressMsg{current: current, total: total})
	})
}

// Err returns the error the run ended with, if any.
func (m *Model) Err() error {
	return m.err
}

func (m *Model) Init() tea.Cmd {
	if m.animated {
		return tea.Batch(m.spinner.Tick, m.execute)
	}
	return m.execute
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if k := msg.String(); k != "q" && k != "ctrl+c" {
			return m, nil
		}
		if m.phase != phaseRunning {
			return m, tea.Quit
		}
		// The runner stops between steps and records what it wrote.
		m.stopping = true
		m.cancel()
		return m, nil
	case progressMsg:
		m.current, m.total = msg.current, msg.total
		return m, nil
	case summaryMsg:
		m.cancel()
		m.phase, m.summary = phaseDone, msg.Summary
		return m, tea.Quit
	case errorMsg:
		m.cancel()
		m.phase, m.summary, m.err = phaseFailed, msg.summary, msg.err
		return m, tea.Quit
	}

	if m.phase != phaseRunning || !m.animated {
		return m, nil
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	switch m.phase {
	case phaseDone:
		return m.renderSummary()
	case phaseFailed:
		return m.renderSummary() + failStyle.Render("Error: ", m.err.Error()) + "\n"
	}
	if m.stopping {
		return m.spinner.View() + " Stopping after the current step..."
	}
	if !m.animated {
		return ""
	}
	if m.total == 0 {
		return m.spinner.View() + " Processing..."
	}
	return fmt.Sprintf("%s Applying steps... (%d/%d)", m.spinner.View(), m.current, m.total)
}

func (m *Model) renderSummary() string {
	var out strings.Builder
	if m.summary.Message != "" {
		fmt.Fprintf(&out, "%s\n\n", titleStyle.Render(m.summary.Message))
	}

	section := func(title string, style lipgloss.Style, items []string) bool {
		if len(items) == 0 {
			return false
		}
		fmt.Fprintln(&out, style.Render(title))
		for _, item := range items {
			fmt.Fprintf(&out, "  %s\n", item)
		}
		return true
	}
	wrote := section("Created:", okStyle, m.summary.Created)
	wrote = section("Modified:", okStyle, m.summary.Modified) || wrote
	wrote = section("Removed:", okStyle, m.summary.Removed) || wrote
	wrote = section("Commands:", dimStyle, m.summary.Commands) || wrote
	wrote = section("Skipped:", warnStyle, m.summary.Skipped) || wrote
	wrote = section("Failed:", failStyle, m.summary.Failed) || wrote

	for _, note := range m.summary.Notes {
		wrote = true
		fmt.Fprintln(&out, titleStyle.Render(note))
	}

	if !wrote && m.summary.Message == "" && m.phase == phaseDone {
		fmt.Fprintln(&out, dimStyle.Render("Nothing to do."))
	}
	return out.String()
}

func (m *Model) execute() tea.Msg {
	summary, err := m.app.Execute(m.ctx)
	if err == nil {
		return summaryMsg{summary}
	}
	var detailed *hebillas.DetailedError
	if errors.As(err, &detailed) {
		// stderr survives the program exit; the view does not.
		fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", detailed.Stack)
	}
	return errorMsg{summary: summary, err: err}
}
