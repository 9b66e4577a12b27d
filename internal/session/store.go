// ABOUTME: Durable credential storage for access/refresh tokens
// ABOUTME: Persists to a JSON file so a restart restores the session

package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Credential holds the tokens issued by the backend. An empty RefreshToken
// means refresh is impossible. Token contents are opaque; the backend owns
// their format and expiry.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Store is the single owner of the current credential. Mutations go through
// Set and Clear only; both persist to disk so a later run resumes the session
// without re-authentication.
type Store struct {
	path string

	mu   sync.Mutex
	cred *Credential
}

// NewStore creates a credential store backed by the file at path. An existing
// credential file is loaded; a missing or unreadable file just means the
// session starts unauthenticated.
func NewStore(path string) *Store {
	s := &Store{path: path}
	_ = s.load()
	return s
}

// Set replaces the current credential and persists it.
func (s *Store) Set(cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cred
	s.cred = &c

	data, err := json.MarshalIndent(&c, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0600)
}

// Clear drops the credential and removes the persisted file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred = nil

	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Current returns a copy of the current credential, or nil when
// unauthenticated.
func (s *Store) Current() *Credential {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cred == nil {
		return nil
	}
	c := *s.cred
	return &c
}

// load reads a previously persisted credential from disk.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return err
	}

	s.mu.Lock()
	s.cred = &cred
	s.mu.Unlock()
	return nil
}
