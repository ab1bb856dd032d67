// Package dialog is the modal user-interaction capability: blocking confirm
// and error prompts that return the index of the chosen button.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"array/internal/tui/styles"

	"github.com/charmbracelet/huh"
)

// Kind selects how a message is presented.
type Kind int

const (
	KindConfirm Kind = iota
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindConfirm:
		return "confirm"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Message is one modal prompt. Buttons are listed left to right; Show
// returns the index of the one chosen.
type Message struct {
	Kind    Kind
	Title   string
	Detail  string
	Buttons []string
}

// Labels returns the button labels, defaulting to a single "OK".
func (m Message) Labels() []string {
	if len(m.Buttons) == 0 {
		return []string{"OK"}
	}
	return m.Buttons
}

// Dialog shows a message and blocks until the user picks a button.
type Dialog interface {
	Show(ctx context.Context, msg Message) (int, error)
}

// Func adapts a function to Dialog.
type Func func(ctx context.Context, msg Message) (int, error)

func (f Func) Show(ctx context.Context, msg Message) (int, error) { return f(ctx, msg) }

// HuhDialog prompts on a terminal with huh forms.
type HuhDialog struct {
	In         io.Reader
	Out        io.Writer
	Accessible bool
}

// Show renders confirms as a select over the buttons and errors as a note.
// Aborting the form (ctrl+c, esc) chooses button 0.
func (d HuhDialog) Show(ctx context.Context, msg Message) (int, error) {
	buttons := msg.Labels()

	var form *huh.Form
	choice := 0

	switch msg.Kind {
	case KindError:
		form = huh.NewForm(huh.NewGroup(
			huh.NewNote().
				Title(styles.ErrorStyle.Render(msg.Title)).
				Description(msg.Detail).
				Next(true).
				NextLabel(buttons[0]),
		))
	default:
		options := make([]huh.Option[int], len(buttons))
		for i, label := range buttons {
			options[i] = huh.NewOption(label, i)
		}
		form = huh.NewForm(huh.NewGroup(
			huh.NewSelect[int]().
				Title(msg.Title).
				Description(msg.Detail).
				Options(options...).
				Value(&choice),
		))
	}

	if d.In != nil {
		form = form.WithInput(d.In)
	}
	if d.Out != nil {
		form = form.WithOutput(d.Out)
	}
	form = form.WithAccessible(d.Accessible)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return 0, nil
		}
		return 0, fmt.Errorf("dialog %q: %w", msg.Title, err)
	}
	return choice, nil
}

// Static answers every confirm with a fixed button index and records what
// it was shown. Error messages always resolve to 0.
type Static struct {
	Answer int

	mu    sync.Mutex
	shown []Message
}

// NewStatic creates a Static dialog that answers confirms with answer.
func NewStatic(answer int) *Static {
	return &Static{Answer: answer}
}

func (s *Static) Show(_ context.Context, msg Message) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shown = append(s.shown, msg)
	if msg.Kind == KindError {
		return 0, nil
	}
	if s.Answer < 0 || s.Answer >= len(msg.Labels()) {
		return 0, nil
	}
	return s.Answer, nil
}

// Shown returns a copy of every message displayed so far.
func (s *Static) Shown() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.shown...)
}

// Count returns how many messages of kind were shown.
func (s *Static) Count(kind Kind) int {
	n := 0
	for _, m := range s.Shown() {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

// Writer prints messages to Out and answers confirms like Static.
type Writer struct {
	Out    io.Writer
	Answer int
}

func (w Writer) Show(ctx context.Context, msg Message) (int, error) {
	fmt.Fprintln(w.Out, Render(msg))

	if msg.Kind == KindError {
		return 0, nil
	}
	answer := 0
	if w.Answer >= 0 && w.Answer < len(msg.Labels()) {
		answer = w.Answer
	}
	fmt.Fprintf(w.Out, "→ %s\n", msg.Labels()[answer])
	return answer, nil
}

// Render formats a message as styled text for non-interactive output.
func Render(msg Message) string {
	var b strings.Builder

	switch msg.Kind {
	case KindError:
		b.WriteString(styles.ErrorStyle.Render("✗ " + msg.Title))
	default:
		b.WriteString(styles.WarningStyle.Render("? " + msg.Title))
	}
	if msg.Detail != "" {
		b.WriteString("\n")
		b.WriteString(msg.Detail)
	}
	if msg.Kind == KindConfirm && len(msg.Buttons) > 1 {
		labels := make([]string, len(msg.Buttons))
		for i, label := range msg.Buttons {
			labels[i] = fmt.Sprintf("[%d] %s", i, label)
		}
		b.WriteString("\n")
		b.WriteString(styles.SubtitleStyle.Render(strings.Join(labels, "  ")))
	}
	return b.String()
}
