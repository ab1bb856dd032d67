package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"array/internal/clone"
	"array/internal/dialog"
	"array/internal/logging"
	"array/internal/repository"
	"array/internal/tui/styles"
	"array/internal/workspace"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxProgressLines = 5

// Selector is the part of workspace.Store the select program drives.
type Selector interface {
	SelectRepository(ctx context.Context, id repository.Identifier) error
}

type (
	// StateMsg carries a committed workspace state into the program.
	StateMsg struct {
		State workspace.State
	}

	// ProgressMsg carries a clone progress event into the program.
	ProgressMsg struct {
		Event clone.ProgressEvent
	}

	selectDoneMsg struct {
		err error
	}
)

// SelectModel runs one repository selection and follows it until the
// reconciliation poller has settled.
//
// State arrives only as StateMsg; the model never reads the store from
// Update, so store subscribers can forward into the program without
// deadlocking.
type SelectModel struct {
	ctx      context.Context
	selector Selector
	id       repository.Identifier
	logger   *logging.AppLogger

	layout   Layout
	spinner  spinner.Model
	state    workspace.State
	progress []string

	prompt *promptMsg
	cursor int

	done     bool
	err      error
	quitting bool
}

// NewSelectModel creates the program model. initial is the store state at
// start-up.
func NewSelectModel(ctx context.Context, selector Selector, id repository.Identifier, initial workspace.State, logger *logging.AppLogger) *SelectModel {
	if logger == nil {
		logger = logging.GetDefault()
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SpinnerStyle

	layout := NewLayout("Array · " + id.String())
	layout.HelpText = "q: quit"

	return &SelectModel{
		ctx:      ctx,
		selector: selector,
		id:       id,
		logger:   logger,
		layout:   layout,
		spinner:  s,
		state:    initial,
	}
}

func (m *SelectModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runSelect())
}

func (m *SelectModel) runSelect() tea.Cmd {
	ctx, selector, id := m.ctx, m.selector, m.id
	return func() tea.Msg {
		return selectDoneMsg{err: selector.SelectRepository(ctx, id)}
	}
}

func (m *SelectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.logger.LogMessage(msg)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = m.layout.Update(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case promptMsg:
		m.prompt = &msg
		m.cursor = 0
		m.updateHelp()
		return m, nil

	case StateMsg:
		m.state = msg.State
		return m, m.maybeQuit()

	case ProgressMsg:
		if msg.Event.Repository.Equal(m.id) {
			for _, line := range msg.Event.Lines() {
				m.addProgress(line)
			}
		}
		return m, nil

	case selectDoneMsg:
		m.done = true
		m.err = msg.err
		if msg.err != nil {
			m.logger.Info("Selection ended with error", "repository", m.id, "error", msg.err)
		}
		return m, m.maybeQuit()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *SelectModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	if m.prompt == nil {
		if msg.String() == "q" || msg.String() == "esc" {
			return m.quit()
		}
		return m, nil
	}

	labels := m.prompt.msg.Labels()
	switch msg.String() {
	case "left", "h", "shift+tab":
		if m.cursor > 0 {
			m.cursor--
		}
	case "right", "l", "tab":
		if m.cursor < len(labels)-1 {
			m.cursor++
		}
	case "enter", " ":
		m.answer(m.cursor)
	case "esc", "q":
		m.answer(0)
	}
	return m, nil
}

func (m *SelectModel) answer(choice int) {
	if m.prompt == nil {
		return
	}
	m.logger.LogUserAction("select_prompt", fmt.Sprintf("%s: %d", m.prompt.msg.Title, choice))
	m.prompt.reply <- choice
	m.prompt = nil
	m.updateHelp()
}

func (m *SelectModel) quit() (tea.Model, tea.Cmd) {
	// a pending prompt resolves to its first button
	m.answer(0)
	m.quitting = true
	return m, tea.Quit
}

func (m *SelectModel) maybeQuit() tea.Cmd {
	if m.done && !m.state.IsSyncing && m.prompt == nil {
		return tea.Quit
	}
	return nil
}

func (m *SelectModel) updateHelp() {
	if m.prompt != nil {
		m.layout.HelpText = "←/→: choose • enter: confirm • esc: cancel"
		return
	}
	m.layout.HelpText = "q: quit"
}

func (m *SelectModel) addProgress(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	if n := len(m.progress); n > 0 && m.progress[n-1] == message {
		return
	}
	m.progress = append(m.progress, message)
	if len(m.progress) > maxProgressLines {
		m.progress = m.progress[len(m.progress)-maxProgressLines:]
	}
}

// Err returns the error the selection finished with, if any.
func (m *SelectModel) Err() error {
	return m.err
}

// Done reports whether the selection call has returned.
func (m *SelectModel) Done() bool {
	return m.done
}

// State returns the last state the program received.
func (m *SelectModel) State() workspace.State {
	return m.state
}

func (m *SelectModel) View() string {
	width := m.layout.ContentWidth()
	if m.state.DerivedPath != "" {
		m.layout.Subtitle = m.state.DerivedPath
	}

	sections := []string{m.statusView()}

	if len(m.progress) > 0 && !m.state.PathExists {
		lines := make([]string, len(m.progress))
		for i, line := range m.progress {
			lines[i] = styles.ProgressStyle.Render(wrap(line, width-2))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if m.prompt != nil {
		sections = append(sections, m.promptView(width))
	}

	if m.done && m.err != nil && !errors.Is(m.err, workspace.ErrMismatchCancelled) {
		sections = append(sections, styles.ErrorStyle.Render(wrap("Error: "+m.err.Error(), width)))
	}

	return m.layout.Render(sections...)
}

func (m *SelectModel) statusView() string {
	label := styles.LabelStyle.Render("Status")
	switch {
	case errors.Is(m.err, workspace.ErrMismatchCancelled):
		return label + styles.WarningStyle.Render("cancelled, selection unchanged")
	case m.state.IsValidating:
		return label + m.spinner.View() + " validating"
	case m.state.PathExists:
		return label + styles.SuccessStyle.Render("✓ ready")
	case m.state.IsSyncing:
		return label + m.spinner.View() + " cloning"
	case m.done && m.quitting:
		return label + "stopped"
	case m.done:
		return label + styles.ErrorStyle.Render("not present")
	default:
		return label + m.spinner.View() + " selecting"
	}
}

func (m *SelectModel) promptView(width int) string {
	msg := m.prompt.msg
	title := styles.WarningStyle.Render(msg.Title)
	if msg.Kind == dialog.KindError {
		title = styles.ErrorStyle.Render(msg.Title)
	}

	labels := msg.Labels()
	buttons := make([]string, len(labels))
	for i, label := range labels {
		if i == m.cursor {
			buttons[i] = styles.ButtonActiveStyle.Render(label)
		} else {
			buttons[i] = styles.ButtonStyle.Render(label)
		}
	}

	body := title
	if msg.Detail != "" {
		body += "\n" + wrap(msg.Detail, width-4)
	}
	body += "\n\n" + lipgloss.JoinHorizontal(lipgloss.Top, buttons...)
	return styles.DialogStyle.Render(body)
}
