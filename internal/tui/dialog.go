package tui

import (
	"context"

	"array/internal/dialog"

	tea "github.com/charmbracelet/bubbletea"
)

// promptMsg asks the running program to show msg and answer on reply.
type promptMsg struct {
	msg   dialog.Message
	reply chan int
}

// ProgramDialog implements dialog.Dialog by showing the prompt inside a
// running select program. Show blocks until the user picks a button or ctx
// ends, so it must not be called from the program's Update.
type ProgramDialog struct {
	send func(tea.Msg)
}

// NewDialog returns a dialog that delivers prompts with send, usually
// (*tea.Program).Send.
func NewDialog(send func(tea.Msg)) *ProgramDialog {
	return &ProgramDialog{send: send}
}

func (d *ProgramDialog) Show(ctx context.Context, msg dialog.Message) (int, error) {
	reply := make(chan int, 1)
	d.send(promptMsg{msg: msg, reply: reply})

	select {
	case choice := <-reply:
		return choice, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
