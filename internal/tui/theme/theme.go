package theme

import (
	catppuccin "github.com/catppuccin/go"
	"github.com/charmbracelet/lipgloss"
)

// Theme bundles the lipgloss styles the chat TUI uses, built from a
// catppuccin flavor.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Muted     lipgloss.Color
	ErrorCol  lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color

	Header       lipgloss.Style
	StatusBar    lipgloss.Style
	Border       lipgloss.Style
	BorderActive lipgloss.Style
	UserLabel    lipgloss.Style
	BotLabel     lipgloss.Style
	MutedText    lipgloss.Style
	ErrorText    lipgloss.Style
	SuccessText  lipgloss.Style
	HashBadge    lipgloss.Style
	Citation     lipgloss.Style
}

// New returns the theme for the named catppuccin flavor, defaulting to
// mocha for unknown names.
func New(name string) Theme {
	flavor := catppuccin.Mocha
	switch name {
	case "latte":
		flavor = catppuccin.Latte
	case "frappe":
		flavor = catppuccin.Frappe
	case "macchiato":
		flavor = catppuccin.Macchiato
	}

	primary := lipgloss.Color(flavor.Green().Hex)
	secondary := lipgloss.Color(flavor.Blue().Hex)
	muted := lipgloss.Color(flavor.Overlay1().Hex)
	errorCol := lipgloss.Color(flavor.Red().Hex)
	success := lipgloss.Color(flavor.Green().Hex)
	warning := lipgloss.Color(flavor.Yellow().Hex)

	return Theme{
		Primary:   primary,
		Secondary: secondary,
		Muted:     muted,
		ErrorCol:  errorCol,
		Success:   success,
		Warning:   warning,

		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(primary).
			Padding(0, 1),
		StatusBar: lipgloss.NewStyle().
			Foreground(muted).
			Padding(0, 1),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted),
		BorderActive: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primary),
		UserLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(secondary),
		BotLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(primary),
		MutedText: lipgloss.NewStyle().
			Foreground(muted),
		ErrorText: lipgloss.NewStyle().
			Foreground(errorCol),
		SuccessText: lipgloss.NewStyle().
			Foreground(success),
		HashBadge: lipgloss.NewStyle().
			Foreground(success).
			Bold(true),
		Citation: lipgloss.NewStyle().
			Foreground(muted).
			Italic(true),
	}
}
