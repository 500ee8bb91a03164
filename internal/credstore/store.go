// Package credstore persists the operator's credential and selection
// across console runs. It is a small file-backed key-value cache under
// the user's home directory, the desktop analogue of the dashboard's
// local storage.
package credstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	credentialFile  = "admin_key"
	appIDFile       = "app_id"
	allowedAppsFile = "allowed_apps.json"

	// DefaultAppID is used before any app has ever been selected.
	DefaultAppID = "default"
)

// Store reads and writes session cache files under a base directory.
type Store struct {
	dir string
}

// DefaultDir returns the cache directory, ~/.variant.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		home = "."
	}
	return filepath.Join(home, ".variant")
}

// New creates a store rooted at dir, or at DefaultDir when dir is empty.
func New(dir string) *Store {
	if strings.TrimSpace(dir) == "" {
		dir = DefaultDir()
	}
	return &Store{dir: dir}
}

// Dir returns the store's base directory.
func (s *Store) Dir() string { return s.dir }

// Credential returns the cached admin key, or "" when none is cached.
func (s *Store) Credential() (string, error) {
	return s.readString(credentialFile)
}

// SaveCredential caches the admin key. The file is operator-readable
// only.
func (s *Store) SaveCredential(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("credential is required")
	}
	return s.writeFile(credentialFile, []byte(key), 0o600)
}

// AppID returns the cached application id, or DefaultAppID when none
// has been selected yet.
func (s *Store) AppID() (string, error) {
	id, err := s.readString(appIDFile)
	if err != nil {
		return "", err
	}
	if id == "" {
		return DefaultAppID, nil
	}
	return id, nil
}

// SaveAppID caches the selected application id.
func (s *Store) SaveAppID(appID string) error {
	if strings.TrimSpace(appID) == "" {
		return fmt.Errorf("app id is required")
	}
	return s.writeFile(appIDFile, []byte(appID), 0o644)
}

// AllowedApps returns the cached permitted-application list. The list
// is only trustworthy immediately after a successful login; callers
// that need certainty must re-validate with the backend.
func (s *Store) AllowedApps() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, allowedAppsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var apps []string
	if err := json.Unmarshal(data, &apps); err != nil {
		return nil, fmt.Errorf("parse %s: %w", allowedAppsFile, err)
	}
	return apps, nil
}

// SaveAllowedApps caches the permitted-application list.
func (s *Store) SaveAllowedApps(apps []string) error {
	if apps == nil {
		apps = []string{}
	}
	data, err := json.Marshal(apps)
	if err != nil {
		return err
	}
	return s.writeFile(allowedAppsFile, data, 0o644)
}

// ClearSession removes the credential and allowed-apps cache. The
// selected app id survives logout so the next login lands where the
// operator left off.
func (s *Store) ClearSession() error {
	var firstErr error
	for _, name := range []string{credentialFile, allowedAppsFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Store) readString(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *Store) writeFile(name string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, perm); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
