package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/corvid-labs/sitescrape/supervisor"
)

// RunProgressMsg reports one ProgressEvent from the Supervisor.
type RunProgressMsg struct {
	In         int64
	Out        int64
	WalkerDone bool
}

// RunDoneMsg signals the run has completed (successfully, with a Fail
// error, or interrupted).
type RunDoneMsg struct {
	Result supervisor.Result
	Err    error
}

// progressClosedMsg marks the progress channel as exhausted; Update stops
// re-issuing waitForProgress on receipt. The authoritative terminal
// outcome always comes from startRun's RunDoneMsg, never from here.
type progressClosedMsg struct{}

// waitForProgress returns a tea.Cmd that reads one event from the
// Supervisor's progress channel.
func waitForProgress(ch <-chan supervisor.ProgressEvent) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return progressClosedMsg{}
		}
		return RunProgressMsg{In: evt.In, Out: evt.Out, WalkerDone: evt.WalkerDone}
	}
}
