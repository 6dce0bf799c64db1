package cmd

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette - lime green accent, matching the scan progress gradient.
const (
	colorLime   = "154" // highlights: ranked-first match, scan summary
	colorGray   = "245" // secondary text, score columns
	colorRed    = "196" // errors
	colorYellow = "220" // current-file marker
)

// cliStyles holds the handful of styles the CLI output uses.
type cliStyles struct {
	Success lipgloss.Style
	Match   lipgloss.Style
	Dim     lipgloss.Style
	Error   lipgloss.Style
	Current lipgloss.Style
}

// stylesFor returns colored styles when w is a terminal, unstyled
// passthroughs otherwise (pipes, redirects, CI logs).
func stylesFor(fd uintptr) cliStyles {
	if !isatty.IsTerminal(fd) {
		return cliStyles{
			Success: lipgloss.NewStyle(),
			Match:   lipgloss.NewStyle(),
			Dim:     lipgloss.NewStyle(),
			Error:   lipgloss.NewStyle(),
			Current: lipgloss.NewStyle(),
		}
	}
	return cliStyles{
		Success: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorLime)),
		Match:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorLime)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
		Current: lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
	}
}
