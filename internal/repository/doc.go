// Package repository knows how a remote repository is named, where it lives
// on disk, and whether the directory at that location actually holds it.
//
// # Identity
//
// An Identifier is an organization/repository pair. Remote URLs are reduced to
// an Identifier by ParseRemoteURL, which accepts the scp-like SSH form
// (git@github.com:acme/widgets.git) and https/http/ssh/git URLs. The host is
// ignored.
//
// # Paths
//
// ResolvePath maps an Identifier onto <workspace root>/<repository>. The
// workspace root may use "~" and must pass fileops.ValidatePathSecurity. An
// empty root yields ErrWorkspaceNotConfigured.
//
// # Validation
//
// Validator.Validate classifies a path as missing, the expected repository, a
// different repository, a non-repository directory, or a working tree whose
// origin cannot be parsed. It never writes to disk. The Filesystem interface
// is satisfied by GitFilesystem (go-git) and by fakes in tests.
//
// # Credentials
//
// CredentialManager keeps the HTTPS token for the go-git clone backend in the
// OS keyring. SSH clones use the user's existing SSH setup and need no token.
package repository
