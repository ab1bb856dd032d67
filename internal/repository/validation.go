package repository

import (
	"errors"
	"fmt"

	"array/pkg/fileops"

	"github.com/go-git/go-git/v6"
)

// ErrNotRepository is returned by Filesystem.RemoteURL for a path that is not
// a git working tree.
var ErrNotRepository = errors.New("not a git repository")

// Filesystem is the read-only view of the disk the validator needs.
type Filesystem interface {
	// Exists reports whether anything exists at path.
	Exists(path string) bool
	// IsWorkingTree reports whether path is the root of a git repository.
	IsWorkingTree(path string) bool
	// RemoteURL returns the raw URL of the "origin" remote.
	RemoteURL(path string) (string, error)
}

// GitFilesystem implements Filesystem with the OS and go-git.
type GitFilesystem struct{}

// Exists reports whether anything exists at path.
func (GitFilesystem) Exists(path string) bool {
	return fileops.PathExists(path)
}

// IsWorkingTree uses git.PlainOpen, which only accepts a repository rooted
// exactly at path (a subdirectory of another checkout is not a working tree).
func (GitFilesystem) IsWorkingTree(path string) bool {
	_, err := git.PlainOpen(path)
	return err == nil
}

// RemoteURL returns the first URL configured for the origin remote.
func (GitFilesystem) RemoteURL(path string) (string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return "", fmt.Errorf("%s: %w", path, ErrNotRepository)
		}
		return "", fmt.Errorf("cannot open git repository: %w", err)
	}

	remote, err := repo.Remote("origin")
	if err != nil {
		return "", fmt.Errorf("cannot get origin remote: %w", err)
	}

	cfg := remote.Config()
	if cfg == nil || len(cfg.URLs) == 0 {
		return "", fmt.Errorf("no URLs configured for origin remote")
	}
	return cfg.URLs[0], nil
}

// DirectoryStatus classifies what validation found at a derived path.
type DirectoryStatus int

const (
	// DirectoryStatusMissing means nothing exists at the path - clone straight away
	DirectoryStatusMissing DirectoryStatus = iota
	// DirectoryStatusMatch means the expected repository is already there
	DirectoryStatusMatch
	// DirectoryStatusMismatch means a different repository occupies the path - the user decides
	DirectoryStatusMismatch
	// DirectoryStatusNotRepository means the path exists but is not a git working tree
	DirectoryStatusNotRepository
	// DirectoryStatusUnparseableRemote means the working tree's origin could not be read or parsed
	DirectoryStatusUnparseableRemote
)

// String returns a human-readable description of the directory status
func (ds DirectoryStatus) String() string {
	switch ds {
	case DirectoryStatusMissing:
		return "does not exist"
	case DirectoryStatusMatch:
		return "expected repository"
	case DirectoryStatusMismatch:
		return "different repository"
	case DirectoryStatusNotRepository:
		return "not a repository"
	case DirectoryStatusUnparseableRemote:
		return "could not parse remote"
	default:
		return "unknown status"
	}
}

// ValidationResult is the transient outcome of a single Validate call.
type ValidationResult struct {
	Valid    bool
	Exists   bool
	Detected *Identifier
	// Reason explains an invalid result and is suitable for display.
	Reason string
}

// Status maps the result onto a DirectoryStatus.
func (r ValidationResult) Status() DirectoryStatus {
	switch {
	case !r.Exists:
		return DirectoryStatusMissing
	case r.Valid:
		return DirectoryStatusMatch
	case r.Detected != nil:
		return DirectoryStatusMismatch
	case r.Reason == reasonNotRepository:
		return DirectoryStatusNotRepository
	default:
		return DirectoryStatusUnparseableRemote
	}
}

// IsMismatch reports whether a different, identifiable repository occupies
// the path. Only this case goes through the mismatch dialog.
func (r ValidationResult) IsMismatch() bool {
	return r.Exists && !r.Valid && r.Detected != nil
}

const (
	reasonNotRepository  = "not a repository"
	reasonUnparseable    = "could not parse remote"
	reasonMissingMessage = "path does not exist"
)

// Validator decides whether a path holds the expected repository.
type Validator struct {
	fs Filesystem
}

// NewValidator creates a Validator. A nil fs uses GitFilesystem.
func NewValidator(fs Filesystem) *Validator {
	if fs == nil {
		fs = GitFilesystem{}
	}
	return &Validator{fs: fs}
}

// Validate checks path against expected:
//
//  1. nothing at path → {Valid: false, Exists: false}
//  2. not a working tree → {Exists: true}, reason "not a repository"
//  3. origin missing or unparseable → {Exists: true}, reason "could not parse remote"
//  4. otherwise {Valid: detected == expected, Exists: true, Detected: detected}
//
// Validate only reads; calling it twice on an unchanged disk yields the same result.
func (v *Validator) Validate(path string, expected Identifier) ValidationResult {
	if !v.fs.Exists(path) {
		return ValidationResult{Reason: reasonMissingMessage}
	}

	if !v.fs.IsWorkingTree(path) {
		return ValidationResult{Exists: true, Reason: reasonNotRepository}
	}

	raw, err := v.fs.RemoteURL(path)
	if err != nil {
		return ValidationResult{Exists: true, Reason: reasonUnparseable}
	}
	detected, err := ParseRemoteURL(raw)
	if err != nil {
		return ValidationResult{Exists: true, Reason: reasonUnparseable}
	}

	if !detected.Equal(expected) {
		return ValidationResult{
			Exists:   true,
			Detected: &detected,
			Reason:   fmt.Sprintf("directory contains %s, expected %s", detected, expected),
		}
	}

	return ValidationResult{Valid: true, Exists: true, Detected: &detected}
}
