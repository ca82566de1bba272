package tracker

import "github.com/charmbracelet/lipgloss"

var (
	passStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
)

// SummaryLine renders the single coloured PASS/FAIL status line a
// non-headless run prints to the console once the evaluation is final.
func SummaryLine(testProcedureID string, eval Evaluation) string {
	style := failStyle
	verdict := "FAIL"
	if eval.Passed {
		style = passStyle
		verdict = "PASS"
	}
	return style.Render(verdict) + " " + testProcedureID
}
