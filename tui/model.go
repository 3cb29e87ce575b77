// Package tui provides the Bubble Tea terminal UI for sitescrape,
// displaying live crawl progress and a styled summary of the run result.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/corvid-labs/sitescrape/supervisor"
)

// Runner is the subset of *supervisor.Supervisor the TUI drives.
type Runner interface {
	Run(ctx context.Context) (supervisor.Result, error)
}

// Model is the Bubble Tea model for the crawl TUI.
type Model struct {
	ctx        context.Context
	cancel     context.CancelFunc
	runner     Runner
	spinner    spinner.Model
	progressCh <-chan supervisor.ProgressEvent

	in, out    int64
	walkerDone bool
	quitting   bool
	done       bool
	result     supervisor.Result
	err        error
	width      int
}

// NewModel creates a TUI model wired to the given Supervisor and progress
// channel. progressCh must be the same channel passed to the Supervisor
// via supervisor.WithProgress.
func NewModel(ctx context.Context, cancel context.CancelFunc, runner Runner, progressCh <-chan supervisor.ProgressEvent) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		ctx:        ctx,
		cancel:     cancel,
		runner:     runner,
		spinner:    spin,
		progressCh: progressCh,
	}
}

// Init starts the spinner, the run, and the progress listener concurrently.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startRun(), waitForProgress(m.progressCh))
}

// startRun returns a tea.Cmd that runs the Supervisor and reports RunDoneMsg.
func (m Model) startRun() tea.Cmd {
	return func() tea.Msg {
		res, err := m.runner.Run(m.ctx)
		return RunDoneMsg{Result: res, Err: err}
	}
}

// Update handles messages from the Bubble Tea runtime.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case RunProgressMsg:
		m.in = msg.In
		m.out = msg.Out
		m.walkerDone = msg.WalkerDone
		return m, waitForProgress(m.progressCh)

	case progressClosedMsg:
		return m, nil

	case RunDoneMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the current TUI state.
func (m Model) View() string {
	if m.done && m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n" + RenderSummary(m.result)
	}
	if m.done {
		return RenderSummary(m.result)
	}
	status := "walking sitemaps"
	if m.walkerDone {
		status = "draining"
	}
	return fmt.Sprintf("%s %s... in %d, out %d\n",
		m.spinner.View(), status, m.in, m.out)
}

// Failed reports whether the run ended with an error (a Fail-policy error
// or an interrupt).
func (m Model) Failed() bool {
	return m.err != nil
}

// Result returns the terminal run result.
func (m Model) Result() supervisor.Result {
	return m.result
}
