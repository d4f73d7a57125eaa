package secrets

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no credential is stored for the lookup key.
var ErrNotFound = errors.New("no stored credential")

// TokenStore persists the opaque session credential for a server URL.
// Implementations are keyed by (application id, server URL) so several
// configured servers can hold credentials side by side.
type TokenStore interface {
	Get(serverURL string) (string, error)
	Set(serverURL, tokenID string) error
	Delete(serverURL string) error
}

// FileStore keeps credentials as mode-0600 files inside the application's
// writable configuration directory.
type FileStore struct {
	dir   string
	appID string
}

// NewFileStore creates a FileStore rooted at dir for the given application
// identifier.
func NewFileStore(dir, appID string) *FileStore {
	return &FileStore{dir: dir, appID: appID}
}

func (s *FileStore) path(serverURL string) string {
	sum := sha256.Sum256([]byte(s.appID + "\x00" + serverURL))
	return filepath.Join(s.dir, fmt.Sprintf("token-%x", sum[:8]))
}

// Get returns the stored credential for serverURL, or ErrNotFound.
func (s *FileStore) Get(serverURL string) (string, error) {
	data, err := os.ReadFile(s.path(serverURL))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read stored credential: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNotFound
	}
	return token, nil
}

// Set stores the credential for serverURL, replacing any previous one.
func (s *FileStore) Set(serverURL, tokenID string) error {
	if err := os.WriteFile(s.path(serverURL), []byte(tokenID), 0600); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// Delete removes the credential for serverURL. Deleting an absent
// credential is not an error.
func (s *FileStore) Delete(serverURL string) error {
	err := os.Remove(s.path(serverURL))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete stored credential: %w", err)
	}
	return nil
}

// MemStore is an in-memory TokenStore for tests.
type MemStore struct {
	tokens map[string]string
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{tokens: make(map[string]string)}
}

// Get returns the stored credential for serverURL, or ErrNotFound.
func (s *MemStore) Get(serverURL string) (string, error) {
	token, ok := s.tokens[serverURL]
	if !ok {
		return "", ErrNotFound
	}
	return token, nil
}

// Set stores the credential for serverURL.
func (s *MemStore) Set(serverURL, tokenID string) error {
	s.tokens[serverURL] = tokenID
	return nil
}

// Delete removes the credential for serverURL.
func (s *MemStore) Delete(serverURL string) error {
	delete(s.tokens, serverURL)
	return nil
}
