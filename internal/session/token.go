package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const tokenFile = "token"

// TokenStore persists the broker's restore token in a single file under a
// state directory.
type TokenStore struct {
	dir string
}

// NewTokenStore returns a store keeping its token in dir.
func NewTokenStore(dir string) *TokenStore {
	return &TokenStore{dir: dir}
}

// Path returns the token file location.
func (s *TokenStore) Path() string {
	return filepath.Join(s.dir, tokenFile)
}

// Load returns the stored token. A missing file yields an empty token.
func (s *TokenStore) Load() (string, error) {
	b, err := os.ReadFile(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading restore token %s: %w", s.Path(), err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Save replaces the stored token.
func (s *TokenStore) Save(token string) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating state directory %s: %w", s.dir, err)
	}
	if err := os.WriteFile(s.Path(), []byte(token), 0o600); err != nil {
		return fmt.Errorf("writing restore token %s: %w", s.Path(), err)
	}
	return nil
}
