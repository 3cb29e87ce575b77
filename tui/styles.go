package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/corvid-labs/sitescrape/supervisor"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// RenderSummary produces a Lip Gloss styled summary of a completed run.
func RenderSummary(res supervisor.Result) string {
	if res.SinkFailures > 0 {
		return titleStyle.Render(fmt.Sprintf(
			"Finished: %d pages scraped, %d sink write failures", res.OutCount, res.SinkFailures)) + "\n" +
			dimStyle.Render(fmt.Sprintf("in %d, out %d, walker_done=%v", res.InCount, res.OutCount, res.WalkerDone)) + "\n"
	}
	return successStyle.Render(fmt.Sprintf("Finished: %d pages scraped", res.OutCount)) + "\n" +
		dimStyle.Render(fmt.Sprintf("in %d, out %d, walker_done=%v", res.InCount, res.OutCount, res.WalkerDone)) + "\n"
}
