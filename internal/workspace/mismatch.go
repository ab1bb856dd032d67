package workspace

import (
	"context"
	"errors"
	"fmt"

	"array/internal/dialog"
	"array/internal/logging"
	"array/internal/repository"
	"array/pkg/fileops"
)

// ErrMismatchCancelled is returned by SelectRepository when the user keeps
// the repository that already occupies the derived path.
var ErrMismatchCancelled = errors.New("selection cancelled: a different repository occupies the target path")

const (
	buttonCancel         = "Cancel"
	buttonDeleteAndClone = "Delete and Clone"
)

// MismatchResolver asks whether to replace a different repository found at
// the derived path.
type MismatchResolver struct {
	dialog dialog.Dialog
	remove func(path string) error
	logger *logging.AppLogger
}

// NewMismatchResolver creates a resolver that deletes with fileops.RemoveTree.
func NewMismatchResolver(d dialog.Dialog, logger *logging.AppLogger) *MismatchResolver {
	if logger == nil {
		logger = logging.GetDefault()
	}
	return &MismatchResolver{dialog: d, remove: fileops.RemoveTree, logger: logger}
}

// Resolve shows the Cancel / Delete and Clone prompt and reports whether the
// user chose to replace the directory. It never touches the disk; the caller
// removes the directory with Remove once a clone is known to be possible.
func (m *MismatchResolver) Resolve(ctx context.Context, target string, detected, expected repository.Identifier) (bool, error) {
	choice, err := m.dialog.Show(ctx, dialog.Message{
		Kind:  dialog.KindConfirm,
		Title: "Repository mismatch",
		Detail: fmt.Sprintf("%s contains %s, but %s is selected.\n\nDelete this directory and clone %s in its place?",
			target, detected, expected, expected),
		Buttons: []string{buttonCancel, buttonDeleteAndClone},
	})
	if err != nil {
		return false, fmt.Errorf("mismatch prompt failed: %w", err)
	}

	if choice != 1 {
		m.logger.LogUserAction("mismatch_dialog", "cancel")
		return false, nil
	}
	m.logger.LogUserAction("mismatch_dialog", "delete_and_clone")
	return true, nil
}

// Remove deletes the mismatched repository at target.
func (m *MismatchResolver) Remove(target string, detected repository.Identifier) error {
	if err := m.remove(target); err != nil {
		return fmt.Errorf("could not delete %s: %w", target, err)
	}
	m.logger.Info("Removed mismatched repository", "path", target, "detected", detected)
	return nil
}
