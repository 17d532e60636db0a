package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNoSession is returned when no session has been stored.
var ErrNoSession = errors.New("not logged in")

// Store holds the session of a single-user process (the CLI). Servers thread
// sessions through request contexts instead.
type Store interface {
	Current() (*Session, error)
	Set(s *Session) error
	Clear() error
}

// FileStore persists the session as JSON readable only by the owner.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns $HOME/.wutboard/session.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".wutboard", "session.json")
	}
	return filepath.Join(home, ".wutboard", "session.json")
}

// Current loads the session from disk.
func (f *FileStore) Current() (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &s, nil
}

// Set writes the session to disk with 0600 permissions.
func (f *FileStore) Set(s *Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Clear deletes the session file. A missing file is not an error.
func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}
