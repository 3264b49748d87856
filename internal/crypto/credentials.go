// Package crypto provides encrypted file-based storage for sync credentials.
// Credentials are encrypted with a machine-derived key before touching disk,
// so a copied config directory cannot be read on another machine.
package crypto

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// CredentialStore stores sync credentials as encrypted files under the
// application config directory.
type CredentialStore struct {
	configDir string
}

// NewCredentialStore creates a new CredentialStore rooted at configDir.
func NewCredentialStore(configDir string) *CredentialStore {
	return &CredentialStore{
		configDir: configDir,
	}
}

// Store encrypts and stores a credential (for example the sync API token or
// the blob store secret key) under the given account name.
func (s *CredentialStore) Store(account, value string) error {
	if s.configDir == "" {
		return fmt.Errorf("config directory not set for credential store")
	}

	// Create secure directory
	secureDir := filepath.Join(s.configDir, "secure")
	if err := os.MkdirAll(secureDir, 0700); err != nil {
		return fmt.Errorf("failed to create secure directory: %w", err)
	}

	credFile := filepath.Join(secureDir, sanitizeAccount(account)+".cred")

	// Encrypt the value before storing
	machineKey := GetMachineKey(MachineIdentifier())
	encrypted, err := EncryptString(value, string(machineKey))
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}

	// Write with restrictive permissions
	if err := os.WriteFile(credFile, []byte(encrypted), 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}

	return nil
}

// Get retrieves and decrypts a stored credential.
func (s *CredentialStore) Get(account string) (string, error) {
	if s.configDir == "" {
		return "", fmt.Errorf("config directory not set for credential store")
	}

	credFile := filepath.Join(s.configDir, "secure", sanitizeAccount(account)+".cred")

	data, err := os.ReadFile(credFile)
	if err != nil {
		return "", fmt.Errorf("credential not found")
	}

	encrypted := string(data)
	machineKey := GetMachineKey(MachineIdentifier())
	value, err := DecryptString(encrypted, string(machineKey))
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential: %w", err)
	}

	return value, nil
}

// Delete removes a stored credential. Deleting a credential that does not
// exist is not an error.
func (s *CredentialStore) Delete(account string) error {
	if s.configDir == "" {
		return fmt.Errorf("config directory not set for credential store")
	}

	credFile := filepath.Join(s.configDir, "secure", sanitizeAccount(account)+".cred")

	if err := os.Remove(credFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete credential file: %w", err)
	}

	return nil
}

// sanitizeAccount makes an account name safe to use as a filename.
func sanitizeAccount(account string) string {
	safe := strings.ReplaceAll(account, "/", "_")
	safe = strings.ReplaceAll(safe, "\\", "_")
	safe = strings.ReplaceAll(safe, "..", "_")
	return safe
}

// MachineIdentifier returns a platform-specific machine identifier.
// Used as part of the encryption key for file-based credential storage.
func MachineIdentifier() string {
	switch runtime.GOOS {
	case "darwin":
		return darwinMachineID()
	case "windows":
		return windowsMachineID()
	default:
		return linuxMachineID()
	}
}

// darwinMachineID returns a macOS machine identifier.
func darwinMachineID() string {
	hostname, _ := os.Hostname()
	return "macos:" + hostname
}

// windowsMachineID returns a Windows machine identifier.
func windowsMachineID() string {
	hostname, _ := os.Hostname()
	return "windows:" + hostname
}

// linuxMachineID returns a Linux machine identifier.
func linuxMachineID() string {
	// Prefer the systemd machine-id, then the dbus machine-id,
	// then fall back to the hostname.
	if data, err := os.ReadFile("/etc/machine-id"); err == nil {
		return "linux:" + strings.TrimSpace(string(data))
	}
	if data, err := os.ReadFile("/var/lib/dbus/machine-id"); err == nil {
		return "linux:" + strings.TrimSpace(string(data))
	}
	hostname, _ := os.Hostname()
	return "linux:" + hostname
}
