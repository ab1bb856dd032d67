package repository

import (
	"fmt"
	"testing"

	"github.com/zalando/go-keyring"
)

// TestCredentialManager wraps CredentialManager with a per-test keyring
// service name so tests never touch the real "array" entry.
type TestCredentialManager struct {
	*CredentialManager
	testService string
}

// NewTestCredentialManager creates an isolated credential manager whose
// entries are removed when the test finishes.
//
//	testCM := repository.NewTestCredentialManager(t)
//	err := testCM.StoreToken(repository.CreateTestToken(""))
func NewTestCredentialManager(t *testing.T) *TestCredentialManager {
	t.Helper()

	testService := fmt.Sprintf("array-test-%s", t.Name())

	cm := &TestCredentialManager{
		CredentialManager: &CredentialManager{service: testService},
		testService:       testService,
	}

	t.Cleanup(func() {
		_ = keyring.Delete(testService, cloneTokenKey)
		_ = keyring.Delete(testService, probeKey)
	})

	return cm
}

// SetupTestKeyring skips the test when no keyring is available (CI
// containers without a secret service, for example).
func SetupTestKeyring(t *testing.T) {
	t.Helper()

	testService := fmt.Sprintf("array-keyring-test-%s", t.Name())
	if err := keyring.Set(testService, "test_availability", "test_value"); err != nil {
		t.Skipf("Keyring not available, skipping test: %v", err)
	}
	t.Cleanup(func() {
		_ = keyring.Delete(testService, "test_availability")
	})
}

// UseMockKeyring swaps the OS keyring for go-keyring's in-memory provider.
func UseMockKeyring(t *testing.T) {
	t.Helper()
	keyring.MockInit()
}

// CreateTestToken returns a token that passes format validation.
func CreateTestToken(prefix string) string {
	if prefix == "" {
		prefix = "ghp_"
	}
	return prefix + "1234567890abcdefghijklmnopqrstuvwxyzABCD"
}
