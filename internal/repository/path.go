package repository

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"array/pkg/fileops"
)

// ErrWorkspaceNotConfigured is returned when no workspace root is set.
// Callers should prompt for configuration and not touch the filesystem.
var ErrWorkspaceNotConfigured = errors.New("workspace not configured")

// ExpandWorkspaceRoot turns a configured workspace root into a clean,
// absolute path. "~" shorthand is expanded against the user's home directory.
func ExpandWorkspaceRoot(root string) (string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return "", ErrWorkspaceNotConfigured
	}
	if err := fileops.ValidatePathSecurity(root); err != nil {
		return "", fmt.Errorf("invalid workspace root: %w", err)
	}

	abs, err := filepath.Abs(filepath.Clean(fileops.ExpandPath(root)))
	if err != nil {
		return "", fmt.Errorf("cannot resolve workspace root %q: %w", root, err)
	}
	if err := fileops.ValidatePathSecurity(abs); err != nil {
		return "", fmt.Errorf("invalid workspace root: %w", err)
	}
	return abs, nil
}

// ResolvePath derives the local path for a repository:
//
//	<expanded workspace root>/<repository>
//
// The organization is not part of the path, so acme/widgets and
// other/widgets resolve to the same directory. Validation detects the
// collision as a mismatch.
//
// Examples (HOME=/home/dev):
//   - ("~/work", acme/widgets) → /home/dev/work/widgets
//   - ("/srv/code", acme/gizmos) → /srv/code/gizmos
//   - ("", acme/widgets) → ErrWorkspaceNotConfigured
func ResolvePath(workspaceRoot string, id Identifier) (string, error) {
	root, err := ExpandWorkspaceRoot(workspaceRoot)
	if err != nil {
		return "", err
	}
	if err := id.Validate(); err != nil {
		return "", fmt.Errorf("invalid repository identifier: %w", err)
	}
	return filepath.Join(root, id.Repository), nil
}
