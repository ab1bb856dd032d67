package clone

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"array/internal/repository"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing/transport"
	"github.com/go-git/go-git/v6/plumbing/transport/http"
	"github.com/go-git/go-git/v6/storage/memory"
)

// DefaultProbeTimeout bounds a single reachability probe.
const DefaultProbeTimeout = 5 * time.Second

// maxDiagnosticLen is how much probe output an unknown failure carries.
const maxDiagnosticLen = 200

// ProbeKind classifies a failed credential/reachability probe.
type ProbeKind int

const (
	ProbeKindUnknown ProbeKind = iota
	ProbeKindCredentials
	ProbeKindDNS
	ProbeKindTimeout
)

func (k ProbeKind) String() string {
	switch k {
	case ProbeKindCredentials:
		return "credentials"
	case ProbeKindDNS:
		return "dns"
	case ProbeKindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ProbeError is returned when the remote cannot be reached or refuses our
// credentials. No clone is started after a ProbeError.
type ProbeError struct {
	Kind    ProbeKind
	Message string
	// Output is the raw probe output, untruncated.
	Output string
}

func (e *ProbeError) Error() string {
	return e.Message
}

// Prober checks that a clone of url can succeed before one is spawned.
// Probe returns nil or a *ProbeError.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, url string) error

func (f ProberFunc) Probe(ctx context.Context, url string) error { return f(ctx, url) }

// probeRule pairs a predicate over probe output with the outcome it selects.
// A nil kind means success.
type probeRule struct {
	match func(output string, runErr error) bool
	kind  *ProbeKind
}

func kindPtr(k ProbeKind) *ProbeKind { return &k }

func contains(needles ...string) func(string, error) bool {
	return func(output string, _ error) bool {
		lower := strings.ToLower(output)
		for _, n := range needles {
			if strings.Contains(lower, n) {
				return true
			}
		}
		return false
	}
}

// probeRules are evaluated in order; the first match wins.
var probeRules = []probeRule{
	{match: contains("permission denied"), kind: kindPtr(ProbeKindCredentials)},
	{match: contains("could not resolve hostname", "name or service not known", "temporary failure in name resolution", "no such host"), kind: kindPtr(ProbeKindDNS)},
	{
		match: func(output string, runErr error) bool {
			return errors.Is(runErr, context.DeadlineExceeded) ||
				contains("connection timed out", "operation timed out")(output, runErr)
		},
		kind: kindPtr(ProbeKindTimeout),
	},
	{match: contains("successfully authenticated"), kind: nil},
}

// Classify turns probe output and the probe process error into nil (success)
// or a *ProbeError. Output that matches no rule is a success when the process
// exited cleanly and an unknown failure otherwise.
func Classify(host, output string, runErr error) error {
	for _, rule := range probeRules {
		if !rule.match(output, runErr) {
			continue
		}
		if rule.kind == nil {
			return nil
		}
		return newProbeError(*rule.kind, host, output)
	}

	if runErr == nil {
		return nil
	}
	return newProbeError(ProbeKindUnknown, host, output)
}

func newProbeError(kind ProbeKind, host, output string) *ProbeError {
	if host == "" {
		host = repository.DefaultHost
	}

	var msg string
	switch kind {
	case ProbeKindCredentials:
		msg = fmt.Sprintf("SSH credentials not configured for %s. %s", host, KeySetupGuidance(host))
	case ProbeKindDNS:
		msg = fmt.Sprintf("network unreachable: cannot resolve %s", host)
	case ProbeKindTimeout:
		msg = fmt.Sprintf("network unreachable (timeout) connecting to %s", host)
	default:
		msg = fmt.Sprintf("cannot reach %s: %s", host, truncate(strings.TrimSpace(output), maxDiagnosticLen))
	}
	return &ProbeError{Kind: kind, Message: msg, Output: output}
}

// KeySetupGuidance is the advice shown when the remote rejects our SSH key.
func KeySetupGuidance(host string) string {
	if host == "" {
		host = repository.DefaultHost
	}
	return fmt.Sprintf("Create a key with `ssh-keygen -t ed25519`, load it with `ssh-add`, then add your public key at https://%s/settings/keys", host)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// CommandRunner runs a command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// SSHProber performs a non-interactive SSH handshake against the remote host.
type SSHProber struct {
	Host    string
	User    string
	Timeout time.Duration
	// Run defaults to os/exec.
	Run CommandRunner
}

// Probe runs `ssh -T git@host` in batch mode under Timeout and classifies
// the result. The handshake covers every repository on the host, so url is
// not used.
func (p SSHProber) Probe(ctx context.Context, _ string) error {
	host := p.Host
	if host == "" {
		host = repository.DefaultHost
	}
	user := p.User
	if user == "" {
		user = "git"
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	run := p.Run
	if run == nil {
		run = execRunner
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := run(ctx, "ssh",
		"-T",
		"-o", "BatchMode=yes",
		"-o", fmt.Sprintf("ConnectTimeout=%d", max(1, int(timeout.Seconds()))),
		"-o", "StrictHostKeyChecking=accept-new",
		user+"@"+host,
	)
	if ctx.Err() != nil && err != nil {
		err = fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	return Classify(host, string(out), err)
}

// TokenSource returns the HTTPS clone token.
type TokenSource interface {
	Token() (string, error)
}

// HTTPSProber lists the remote's refs over HTTPS, anonymously first and
// then with the stored token when the remote asks for credentials. With an
// empty url it only checks that a token is stored.
type HTTPSProber struct {
	Host    string
	Tokens  TokenSource
	Timeout time.Duration
}

func (p HTTPSProber) Probe(ctx context.Context, url string) error {
	host := p.Host
	if host == "" {
		host = repository.DefaultHost
	}
	if url == "" {
		_, err := p.token(host)
		return err
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := listRefs(ctx, url, nil)
	if err != nil && isAuthenticationError(err) {
		token, tokenErr := p.token(host)
		if tokenErr != nil {
			return tokenErr
		}
		err = listRefs(ctx, url, &http.BasicAuth{Username: "token", Password: token})
		if err != nil && isAuthenticationError(err) {
			return &ProbeError{
				Kind:    ProbeKindCredentials,
				Message: fmt.Sprintf("%s rejected the stored token. Run `array auth set-token` with a token that can read the repository", host),
				Output:  err.Error(),
			}
		}
	}
	if err == nil || errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return nil
	}
	if ctx.Err() != nil {
		err = fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	return Classify(host, err.Error(), err)
}

func (p HTTPSProber) token(host string) (string, error) {
	if p.Tokens == nil {
		return "", &ProbeError{
			Kind:    ProbeKindCredentials,
			Message: fmt.Sprintf("HTTPS credentials not configured for %s", host),
		}
	}
	token, err := p.Tokens.Token()
	if err != nil {
		return "", &ProbeError{
			Kind:    ProbeKindCredentials,
			Message: fmt.Sprintf("HTTPS credentials not configured for %s: %v", host, err),
			Output:  err.Error(),
		}
	}
	return token, nil
}

// listRefs is `git ls-remote` against url without touching the disk.
func listRefs(ctx context.Context, url string, auth *http.BasicAuth) error {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})
	opts := &git.ListOptions{}
	if auth != nil {
		opts.Auth = auth
	}
	_, err := remote.ListContext(ctx, opts)
	return err
}
