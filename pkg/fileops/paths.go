package fileops

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PathExists reports whether anything (file, directory, or symlink target)
// exists at path. Permission errors are treated as "exists" because the
// entry is there even if it cannot be inspected.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	if err == nil {
		return true
	}
	return !errors.Is(err, os.ErrNotExist)
}

// IsDirEmpty reports whether the directory at path has no entries.
func IsDirEmpty(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

// EnsureDirectoryExists creates path and any missing parents with 0755
// permissions after validating it.
//
// Usage example:
//
//	if err := fileops.EnsureDirectoryExists("/home/user/work"); err != nil {
//	    return err
//	}
func EnsureDirectoryExists(path string) error {
	if err := ValidatePathSecurity(path); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// RemoveTree deletes path and everything below it.
//
// The path must be absolute, pass ValidatePathSecurity, and must not be the
// filesystem root or the user's home directory. A missing path is not an
// error.
func RemoveTree(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("refusing to remove relative path %q", path)
	}
	if err := ValidatePathSecurity(path); err != nil {
		return fmt.Errorf("refusing to remove %s: %w", path, err)
	}

	clean := filepath.Clean(path)
	if clean == filepath.VolumeName(clean)+string(os.PathSeparator) {
		return fmt.Errorf("refusing to remove filesystem root")
	}
	if home, err := os.UserHomeDir(); err == nil && filepath.Clean(home) == clean {
		return fmt.Errorf("refusing to remove home directory %s", clean)
	}

	if err := os.RemoveAll(clean); err != nil {
		return fmt.Errorf("failed to remove %s: %w", clean, err)
	}
	return nil
}
