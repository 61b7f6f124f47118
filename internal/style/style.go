// Package style defines the shared lipgloss styles for CLI output.
package style

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	// Bold for headings and emphasized values.
	Bold = lipgloss.NewStyle().Bold(true)

	// Dim for secondary detail.
	Dim = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))

	// Success for good news.
	Success = lipgloss.NewStyle().Foreground(lipgloss.Color("76"))

	// Warning for degraded-but-working states.
	Warning = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	// Error for failures.
	Error = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	// Info for neutral status.
	Info = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

// Pre-rendered prefixes for one-line status output.
var (
	SuccessPrefix = Success.Render("✓")
	ErrorPrefix   = Error.Render("✗")
	WarningPrefix = Warning.Render("!")
)

// NoColor drops all styling, for output that is piped or redirected.
func NoColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
	SuccessPrefix = "✓"
	ErrorPrefix = "✗"
	WarningPrefix = "!"
}
