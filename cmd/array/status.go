package main

import (
	"fmt"
	"strings"
	"time"

	"array/internal/clone"
	"array/internal/config"
	"array/internal/store"
	"array/internal/workspace"

	"github.com/charmbracelet/glamour"
)

const statusWidth = 80

// statusMarkdown describes the workspace as a markdown document.
func statusMarkdown(cfg *config.Config, st workspace.State, active []clone.Operation, history []store.CloneRecord) string {
	var b strings.Builder

	b.WriteString("# Workspace\n\n")
	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Workspace root | %s |\n", codeOrDash(cfg.WorkspaceRoot))
	fmt.Fprintf(&b, "| Clone backend | %s |\n", cfg.Clone.Backend)
	if id, ok := st.Selected(); ok {
		fmt.Fprintf(&b, "| Selected | %s |\n", codeOrDash(id.String()))
	} else {
		b.WriteString("| Selected | - |\n")
	}
	fmt.Fprintf(&b, "| Path | %s |\n", codeOrDash(st.DerivedPath))
	fmt.Fprintf(&b, "| Present | %s |\n", yesNo(st.PathExists))
	fmt.Fprintf(&b, "| Syncing | %s |\n", yesNo(st.IsSyncing))

	if len(active) > 0 {
		b.WriteString("\n## Running clones\n\n")
		for _, op := range active {
			fmt.Fprintf(&b, "- `%s` into `%s`: %s\n", op.Repository, op.TargetPath, op.Message)
		}
	}

	if len(history) > 0 {
		b.WriteString("\n## Recent clones\n\n")
		for _, r := range history {
			fmt.Fprintf(&b, "- %s `%s` **%s**: %s\n",
				r.FinishedAt.Local().Format(time.DateTime), r.Repository, r.Status, r.Message)
		}
	}

	return b.String()
}

func codeOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return "`" + s + "`"
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// renderMarkdown renders text for the terminal with Glamour.
func renderMarkdown(text string, width int) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}

	rendered, err := renderer.Render(text)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(rendered, "\n") + "\n", nil
}
