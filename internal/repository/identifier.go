package repository

import (
	"fmt"
	"strings"
)

// DefaultHost is the remote host used when the configuration does not name one.
const DefaultHost = "github.com"

// Identifier addresses a remote repository by organization and repository
// name. It is a value type; two identifiers are the same repository exactly
// when both fields are equal (case-sensitive).
type Identifier struct {
	Organization string `yaml:"organization" json:"organization"`
	Repository   string `yaml:"repository" json:"repository"`
}

// NewIdentifier validates and builds an Identifier.
func NewIdentifier(organization, repo string) (Identifier, error) {
	id := Identifier{
		Organization: strings.TrimSpace(organization),
		Repository:   strings.TrimSpace(repo),
	}
	if err := id.Validate(); err != nil {
		return Identifier{}, err
	}
	return id, nil
}

// ParseIdentifier parses the "organization/repository" form used on the
// command line and in the persisted selection.
func ParseIdentifier(s string) (Identifier, error) {
	org, repo, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Identifier{}, fmt.Errorf("invalid repository %q (expected organization/repository)", s)
	}
	return NewIdentifier(org, strings.TrimSuffix(repo, ".git"))
}

// Validate checks that both parts are present and usable as a single path
// segment.
func (id Identifier) Validate() error {
	if id.Organization == "" {
		return fmt.Errorf("organization cannot be empty")
	}
	if id.Repository == "" {
		return fmt.Errorf("repository name cannot be empty")
	}
	for _, part := range []string{id.Organization, id.Repository} {
		if strings.ContainsAny(part, `/\:`) || strings.ContainsRune(part, 0) {
			return fmt.Errorf("invalid character in %q", part)
		}
		if part == "." || part == ".." {
			return fmt.Errorf("invalid name %q", part)
		}
	}
	return nil
}

// IsZero reports whether the identifier is unset.
func (id Identifier) IsZero() bool {
	return id.Organization == "" && id.Repository == ""
}

// Equal compares both fields exactly.
func (id Identifier) Equal(other Identifier) bool {
	return id.Organization == other.Organization && id.Repository == other.Repository
}

// String returns "organization/repository".
func (id Identifier) String() string {
	return id.Organization + "/" + id.Repository
}

// RemoteURL returns the SSH clone URL, e.g. git@github.com:acme/widgets.git.
func (id Identifier) RemoteURL(host string) string {
	if host == "" {
		host = DefaultHost
	}
	return fmt.Sprintf("git@%s:%s/%s.git", host, id.Organization, id.Repository)
}

// HTTPSURL returns the HTTPS clone URL, e.g. https://github.com/acme/widgets.git.
func (id Identifier) HTTPSURL(host string) string {
	if host == "" {
		host = DefaultHost
	}
	return fmt.Sprintf("https://%s/%s/%s.git", host, id.Organization, id.Repository)
}
