package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// Service name for OS credential store
	credentialService = "array"
	// Key for the HTTPS clone token
	cloneTokenKey = "github_token"
	// Probe key written and removed by Status
	probeKey = "array_probe"
)

// ErrNoToken is returned when no HTTPS clone token is stored.
var ErrNoToken = errors.New("no clone token stored - run `array auth set-token`")

// CredentialManager stores the token used by the go-git HTTPS clone backend
// in the OS keyring.
type CredentialManager struct {
	service string
}

// NewCredentialManager creates a new credential manager instance
func NewCredentialManager() *CredentialManager {
	return &CredentialManager{
		service: credentialService,
	}
}

// StoreToken validates and stores a personal access token.
func (cm *CredentialManager) StoreToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	if err := validateTokenFormat(token); err != nil {
		return fmt.Errorf("invalid token format: %w", err)
	}

	if err := keyring.Set(cm.service, cloneTokenKey, token); err != nil {
		return fmt.Errorf("failed to store token in credential store: %w", err)
	}
	return nil
}

// Token returns the stored token, or ErrNoToken.
func (cm *CredentialManager) Token() (string, error) {
	token, err := keyring.Get(cm.service, cloneTokenKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("failed to retrieve token from credential store: %w", err)
	}

	if strings.TrimSpace(token) == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// DeleteToken removes the stored token. Deleting a missing token is not an error.
func (cm *CredentialManager) DeleteToken() error {
	err := keyring.Delete(cm.service, cloneTokenKey)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete token from credential store: %w", err)
	}
	return nil
}

// HasToken checks if a token is stored without returning it.
func (cm *CredentialManager) HasToken() bool {
	_, err := cm.Token()
	return err == nil
}

// validateTokenFormat checks the token against the GitHub token prefixes:
//   - Classic PATs: ghp_*
//   - Fine-grained PATs: github_pat_*
//   - OAuth tokens: gho_*
//   - User-to-server tokens: ghu_*
//   - Server-to-server tokens: ghs_*
func validateTokenFormat(token string) error {
	if len(token) < 20 {
		return fmt.Errorf("token too short (minimum 20 characters)")
	}

	for _, prefix := range []string{"ghp_", "github_pat_", "gho_", "ghu_", "ghs_"} {
		if strings.HasPrefix(token, prefix) {
			return nil
		}
	}
	return fmt.Errorf("token does not match expected GitHub token format (should start with ghp_ or github_pat_)")
}

// StoreStatus describes whether the OS keyring is usable.
type StoreStatus struct {
	Available bool
	Error     string
	Warning   string
}

// Status round-trips a probe value through the keyring.
func (cm *CredentialManager) Status() StoreStatus {
	const probeValue = "probe"

	if err := keyring.Set(cm.service, probeKey, probeValue); err != nil {
		return StoreStatus{Error: err.Error()}
	}

	got, err := keyring.Get(cm.service, probeKey)
	if err != nil {
		_ = keyring.Delete(cm.service, probeKey)
		return StoreStatus{Error: err.Error()}
	}
	if got != probeValue {
		_ = keyring.Delete(cm.service, probeKey)
		return StoreStatus{Error: "credential store corrupted - values don't match"}
	}

	if err := keyring.Delete(cm.service, probeKey); err != nil {
		return StoreStatus{Available: true, Warning: "credential store works but cleanup failed: " + err.Error()}
	}
	return StoreStatus{Available: true}
}
