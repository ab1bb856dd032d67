package styles

import "github.com/charmbracelet/lipgloss"

// Shared Lip Gloss styles for the select program and dialogs.
// All colors are specified using hex codes.

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff5fd2")).
			MarginBottom(1).
			PaddingLeft(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			PaddingLeft(1)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff005f")).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffaf00")).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ff5f")).
			Bold(true)

	// Progress output from a running clone
	ProgressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a8a8a8")).
			PaddingLeft(2)

	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5fd7ff")).
			Width(12)

	HelpStyle = lipgloss.NewStyle().
			Faint(true).
			Foreground(lipgloss.Color("#a8a8a8")).
			MarginTop(1).
			Padding(0, 1)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5fd7ff"))

	// Modal prompt shown inside the select program.
	DialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#ff5faf")).
			Padding(0, 1).
			MarginTop(1)

	ButtonStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(lipgloss.Color("#a8a8a8"))

	ButtonActiveStyle = ButtonStyle.
				Foreground(lipgloss.Color("#ffffff")).
				Background(lipgloss.Color("#5f5fff")).
				Bold(true)

	MainContainerStyle = lipgloss.NewStyle().
				MarginLeft(1)
)
