// Package auth stores flagport credentials in the OS keyring.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/JoobyPM/flagport/internal/config"
)

// Keyring service name for flagport credentials.
const (
	ServiceName = "flagport"
)

// Errors for keyring operations.
var (
	ErrNoCredential    = errors.New("no credential found")
	ErrKeyringNotAvail = errors.New("keyring not available")
)

// SourceKey is the keyring key of the Source access token for a base URL.
func SourceKey(baseURL string) string {
	return "source:" + baseURL
}

// TargetKey is the keyring key of the Target client secret for a client id.
func TargetKey(clientID string) string {
	return "target:" + clientID
}

// StoreSecret stores a secret in the OS keyring.
func StoreSecret(key, secret string) error {
	if err := keyring.Set(ServiceName, key, secret); err != nil {
		// Check if keyring is not available (e.g., headless environment)
		if isKeyringUnavailable(err) {
			return fmt.Errorf("%w: %w", ErrKeyringNotAvail, err)
		}
		return fmt.Errorf("store secret: %w", err)
	}
	return nil
}

// LoadSecret retrieves a secret from the OS keyring.
// Returns ErrNoCredential if nothing is stored under key.
func LoadSecret(key string) (string, error) {
	secret, err := keyring.Get(ServiceName, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNoCredential
		}
		if isKeyringUnavailable(err) {
			return "", fmt.Errorf("%w: %w", ErrKeyringNotAvail, err)
		}
		return "", fmt.Errorf("load secret: %w", err)
	}
	return secret, nil
}

// DeleteSecret removes a secret from the OS keyring.
// Returns nil if nothing was stored (idempotent).
func DeleteSecret(key string) error {
	err := keyring.Delete(ServiceName, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		if isKeyringUnavailable(err) {
			return fmt.Errorf("%w: %w", ErrKeyringNotAvail, err)
		}
		return fmt.Errorf("delete secret: %w", err)
	}
	return nil
}

// ResolveSecrets fills secrets that env and flags left empty from the
// keyring. It returns the config fields that were filled. A missing entry
// or an unavailable keyring leaves the field empty; Validate reports it.
func ResolveSecrets(cfg *config.Config) []string {
	var filled []string
	if cfg.Source.APIToken == "" {
		if v, err := LoadSecret(SourceKey(cfg.Source.BaseURL)); err == nil {
			cfg.Source.APIToken = v
			filled = append(filled, "source.api_token")
		}
	}
	if cfg.Target.APIToken == "" && cfg.Target.ClientSecret == "" && cfg.Target.ClientID != "" {
		if v, err := LoadSecret(TargetKey(cfg.Target.ClientID)); err == nil {
			cfg.Target.ClientSecret = v
			filled = append(filled, "target.client_secret")
		}
	}
	return filled
}

// Status reports which secrets for cfg are present in the keyring.
type Status struct {
	Source bool
	Target bool
}

// CheckStatus looks up the keyring entries that cfg would use.
func CheckStatus(cfg *config.Config) (Status, error) {
	var st Status
	_, err := LoadSecret(SourceKey(cfg.Source.BaseURL))
	switch {
	case err == nil:
		st.Source = true
	case !errors.Is(err, ErrNoCredential):
		return st, err
	}
	if cfg.Target.ClientID != "" {
		_, err = LoadSecret(TargetKey(cfg.Target.ClientID))
		switch {
		case err == nil:
			st.Target = true
		case !errors.Is(err, ErrNoCredential):
			return st, err
		}
	}
	return st, nil
}

// isKeyringUnavailable checks if the error indicates the keyring is not available.
// This happens in headless environments (CI, containers, SSH sessions).
func isKeyringUnavailable(err error) bool {
	if err == nil {
		return false
	}
	// If it's ErrNotFound, the keyring IS available - just no data stored
	if errors.Is(err, keyring.ErrNotFound) {
		return false
	}
	// Linux: dbus errors
	// macOS: keychain unavailable
	// Windows: credential manager errors
	errStr := err.Error()
	return strings.Contains(errStr, "dbus") ||
		strings.Contains(errStr, "keychain") ||
		strings.Contains(errStr, "credential") ||
		strings.Contains(errStr, "secret service")
}

// IsKeyringAvailable checks if the OS keyring is available.
func IsKeyringAvailable() bool {
	_, err := keyring.Get(ServiceName, "__probe__")
	if err == nil {
		return true
	}
	// ErrNotFound means keyring is available but key doesn't exist
	return errors.Is(err, keyring.ErrNotFound)
}

// IsHeadless detects if we're running in a headless environment.
// Returns true if running in CI, container, or SSH session without display.
func IsHeadless() bool {
	ciEnvVars := []string{
		"CI",
		"GITLAB_CI",
		"GITHUB_ACTIONS",
		"JENKINS_URL",
		"BUILDKITE",
		"CIRCLECI",
		"TRAVIS",
	}
	for _, env := range ciEnvVars {
		if os.Getenv(env) != "" {
			return true
		}
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	if os.Getenv("SSH_TTY") != "" && os.Getenv("DISPLAY") == "" {
		return true
	}

	return false
}
