package repository

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// scpLikePattern matches git@host:owner/repo[.git]
var scpLikePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+@([^:/]+):/?([^/]+)/([^/]+?)/?$`)

// ParseRemoteURL extracts the organization/repository pair from a remote URL.
//
// Accepted forms (trailing ".git" and "/" are optional):
//   - git@github.com:acme/widgets.git
//   - https://github.com/acme/widgets.git
//   - http://git.example.com/acme/widgets
//   - ssh://git@github.com/acme/widgets.git
//
// The host is ignored; identity is organization + repository.
// Anything else returns an error; the validator reports that as
// "could not parse remote".
func ParseRemoteURL(remote string) (Identifier, error) {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return Identifier{}, fmt.Errorf("remote URL is empty")
	}

	if matches := scpLikePattern.FindStringSubmatch(remote); matches != nil {
		return identifierFromParts(matches[2], matches[3], remote)
	}

	parsed, err := url.Parse(remote)
	if err != nil {
		return Identifier{}, fmt.Errorf("invalid remote URL %q: %w", remote, err)
	}
	switch parsed.Scheme {
	case "https", "http", "ssh", "git":
	default:
		return Identifier{}, fmt.Errorf("unsupported remote URL scheme in %q", remote)
	}
	if parsed.Host == "" {
		return Identifier{}, fmt.Errorf("remote URL %q is missing a host", remote)
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) != 2 {
		return Identifier{}, fmt.Errorf("remote URL path should be organization/repository: %q", parsed.Path)
	}
	return identifierFromParts(parts[0], parts[1], remote)
}

func identifierFromParts(org, repo, remote string) (Identifier, error) {
	repo = strings.TrimSuffix(repo, ".git")
	id, err := NewIdentifier(org, repo)
	if err != nil {
		return Identifier{}, fmt.Errorf("could not extract organization/repository from %q: %w", remote, err)
	}
	return id, nil
}
