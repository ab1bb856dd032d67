package tui

import (
	"strings"

	"array/internal/tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"
)

// Layout frames a view with a title, subtitle, and help line and wraps
// everything to the terminal width.
type Layout struct {
	Title    string
	Subtitle string
	HelpText string
	MarginX  int
	MaxWidth int

	width int
}

func NewLayout(title string) Layout {
	return Layout{Title: title, MarginX: 1, MaxWidth: 100}
}

func (l Layout) Update(msg tea.Msg) Layout {
	if ws, ok := msg.(tea.WindowSizeMsg); ok {
		l.width = ws.Width
	}
	return l
}

// Render joins the framed sections with blank lines. Sections are rendered
// already styled by the caller; only title, subtitle and help are styled here.
func (l Layout) Render(sections ...string) string {
	width := l.ContentWidth()
	out := []string{styles.TitleStyle.Render(wrap(l.Title, width))}
	if l.Subtitle != "" {
		out = append(out, styles.SubtitleStyle.Render(wrap(l.Subtitle, width)))
	}
	for _, s := range sections {
		if s != "" {
			out = append(out, s)
		}
	}
	if l.HelpText != "" {
		out = append(out, styles.HelpStyle.Render(wrap(l.HelpText, width)))
	}
	return styles.MainContainerStyle.Render(strings.Join(out, "\n"))
}

// ContentWidth is the usable width inside the margins, clamped to
// [40, MaxWidth]. Before the first resize it is MaxWidth.
func (l Layout) ContentWidth() int {
	if l.width == 0 {
		return l.MaxWidth
	}
	available := l.width - l.MarginX*2
	if available > l.MaxWidth {
		return l.MaxWidth
	}
	if available < 40 {
		return 40
	}
	return available
}

// wrap word-wraps each line of text on its own so existing line breaks
// survive.
func wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = wordwrap.String(line, width)
	}
	return strings.Join(lines, "\n")
}
