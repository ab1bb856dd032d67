package clone

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"array/internal/logging"
	"array/pkg/fileops"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/transport"
	"github.com/go-git/go-git/v6/plumbing/transport/http"
)

// DefaultMaxOutputBytes bounds how much clone output is retained per operation.
const DefaultMaxOutputBytes = 10 << 20

// Cloner spawns a clone of url into target.
//
// onOutput receives every chunk of diagnostic output in emission order and is
// never called concurrently for one Clone call. exitCode is 0 on success.
// err is reserved for failures to start the clone at all (spawn errors); a
// clone that ran and failed reports a nonzero exitCode with a nil err.
type Cloner interface {
	Clone(ctx context.Context, url, target string, onOutput func([]byte)) (exitCode int, err error)
}

// chunkWriter forwards writes to a callback. It is used through a pointer so
// exec.Cmd can detect that stdout and stderr share one writer.
type chunkWriter struct {
	fn func([]byte)
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	if w.fn != nil && len(p) > 0 {
		chunk := make([]byte, len(p))
		copy(chunk, p)
		w.fn(chunk)
	}
	return len(p), nil
}

// ExecCloner runs the git executable.
type ExecCloner struct {
	// GitPath defaults to "git" on PATH.
	GitPath string
}

func (c ExecCloner) Clone(ctx context.Context, url, target string, onOutput func([]byte)) (int, error) {
	if err := ensureParent(target); err != nil {
		return -1, err
	}

	gitPath := c.GitPath
	if gitPath == "" {
		gitPath = "git"
	}

	cmd := exec.CommandContext(ctx, gitPath, "clone", "--progress", url, target)
	cmd.Env = append(os.Environ(),
		"GIT_TERMINAL_PROMPT=0",
		"GIT_SSH_COMMAND=ssh -o BatchMode=yes",
	)
	w := &chunkWriter{fn: onOutput}
	cmd.Stdout = w
	cmd.Stderr = w

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("failed to start git: %w", err)
}

// GoGitCloner clones over HTTPS in-process with go-git. Public repositories
// are tried anonymously first; on an authentication error the stored token is
// used as basic auth.
type GoGitCloner struct {
	Tokens TokenSource
	Logger *logging.AppLogger
}

// goGitFailureCode mirrors git's exit code for fatal errors.
const goGitFailureCode = 128

func (c GoGitCloner) Clone(ctx context.Context, url, target string, onOutput func([]byte)) (int, error) {
	if err := ensureParent(target); err != nil {
		return -1, err
	}
	logger := c.Logger
	if logger == nil {
		logger = logging.GetDefault()
	}

	// go-git leaves its partial init behind on failure; only a target that
	// was missing or empty beforehand is ours to reset.
	existed := fileops.PathExists(target)
	resettable := !existed
	if existed {
		resettable, _ = fileops.IsDirEmpty(target)
	}
	reset := func() {
		if !resettable {
			return
		}
		if err := resetTarget(target, existed); err != nil {
			logger.Warn("Failed to reset clone target", "target", target, "error", err)
		}
	}

	w := &chunkWriter{fn: onOutput}

	err := c.clone(ctx, url, target, nil, w)
	if err != nil && isAuthenticationError(err) && c.Tokens != nil {
		token, tokenErr := c.Tokens.Token()
		if tokenErr != nil {
			err = fmt.Errorf("authentication required: %w", tokenErr)
		} else {
			logger.Debug("Anonymous clone refused, retrying with token", "url", url)
			reset()
			err = c.clone(ctx, url, target, &http.BasicAuth{Username: "token", Password: token}, w)
		}
	}
	if err != nil {
		reset()
		w.Write([]byte(translateCloneError(err).Error() + "\n"))
		return goGitFailureCode, nil
	}
	return 0, nil
}

func (c GoGitCloner) clone(ctx context.Context, url, target string, auth *http.BasicAuth, w *chunkWriter) error {
	opts := &git.CloneOptions{
		URL:      url,
		Progress: w,
	}
	if auth != nil {
		opts.Auth = auth
	}
	_, err := git.PlainCloneContext(ctx, target, opts)
	return err
}

// resetTarget removes target, recreating it empty when it existed before
// the clone.
func resetTarget(target string, existed bool) error {
	if err := fileops.RemoveTree(target); err != nil {
		return err
	}
	if !existed {
		return nil
	}
	return fileops.EnsureDirectoryExists(target)
}

func isAuthenticationError(err error) bool {
	if errors.Is(err, transport.ErrAuthenticationRequired) || errors.Is(err, transport.ErrAuthorizationFailed) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"authentication required", "401", "unauthorized", "403", "forbidden"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

func isForbidden(err error) bool {
	errStr := strings.ToLower(err.Error())
	return errors.Is(err, transport.ErrAuthorizationFailed) || strings.Contains(errStr, "403") || strings.Contains(errStr, "forbidden")
}

func translateCloneError(err error) error {
	errStr := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, git.ErrTargetDirNotEmpty):
		return fmt.Errorf("fatal: destination path already exists and is not an empty directory")
	case isAuthenticationError(err):
		if isForbidden(err) {
			return fmt.Errorf("fatal: token lacks required permissions - ensure 'repo' scope is enabled")
		}
		return fmt.Errorf("fatal: authentication failed - run `array auth set-token`")
	case errors.Is(err, transport.ErrRepositoryNotFound) || strings.Contains(errStr, "404") || strings.Contains(errStr, "not found"):
		return fmt.Errorf("fatal: repository not found: %w", err)
	case strings.Contains(errStr, "network") || strings.Contains(errStr, "connection") || strings.Contains(errStr, "timeout"):
		return fmt.Errorf("fatal: network error during clone: %w", err)
	default:
		return fmt.Errorf("fatal: %w", err)
	}
}

func ensureParent(target string) error {
	if err := fileops.EnsureDirectoryExists(filepath.Dir(target)); err != nil {
		return fmt.Errorf("cannot prepare clone target: %w", err)
	}
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
	// dropped counts bytes discarded from the front.
	dropped int64
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = DefaultMaxOutputBytes
	}
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(p) >= b.max {
		b.dropped += int64(len(b.buf) + len(p) - b.max)
		b.buf = append(b.buf[:0], p[len(p)-b.max:]...)
		return
	}
	if over := len(b.buf) + len(p) - b.max; over > 0 {
		b.dropped += int64(over)
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	b.buf = append(b.buf, p...)
}

func (b *tailBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// LastLine returns the last non-empty line, treating carriage returns from
// progress meters as line breaks.
func (b *tailBuffer) LastLine() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return lastLine(string(b.buf))
}

func lastLine(s string) string {
	lines := strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == '\r' })
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
