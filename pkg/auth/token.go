package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"

	"github.com/harrisonrobin/timebox/pkg/logger"
)

const (
	keyringService = "timebox"
	keyringUser    = "google-oauth-token"
	dsnUser        = "database"
)

// ErrNoToken is returned when no credential has been stored yet.
var ErrNoToken = errors.New("no stored calendar token, run 'timebox auth'")

// TokenStore keeps the OAuth token in the OS keyring, falling back to a
// 0600 file in the configuration directory when no keyring is available.
type TokenStore struct {
	dir string
}

func NewTokenStore(dir string) *TokenStore {
	return &TokenStore{dir: dir}
}

func (s *TokenStore) path() string {
	return filepath.Join(s.dir, TokenFile)
}

func (s *TokenStore) Load() (*oauth2.Token, error) {
	raw, err := keyring.Get(keyringService, keyringUser)
	if err == nil {
		tok := &oauth2.Token{}
		if err := json.Unmarshal([]byte(raw), tok); err != nil {
			return nil, fmt.Errorf("failed to decode token from keyring: %w", err)
		}
		return tok, nil
	}
	if err != keyring.ErrNotFound {
		logger.Debug("Keyring unavailable, using token file", "error", err)
	}

	tok, err := tokenFromFile(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	return tok, err
}

func (s *TokenStore) Save(tok *oauth2.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	err = keyring.Set(keyringService, keyringUser, string(b))
	if err == nil {
		os.Remove(s.path())
		return nil
	}
	logger.Debug("Keyring unavailable, writing token file", "error", err)
	return saveToken(s.path(), tok)
}

// Clear removes the token from both locations.
func (s *TokenStore) Clear() error {
	if err := keyring.Delete(keyringService, keyringUser); err != nil && err != keyring.ErrNotFound {
		logger.Debug("Could not delete keyring token", "error", err)
	}
	if err := os.Remove(s.path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not delete token file '%s': %w", s.path(), err)
	}
	return nil
}

// GetConnectionString returns the database URL stored in the keyring, or ""
// when there is none.
func GetConnectionString() string {
	dsn, err := keyring.Get(keyringService, dsnUser)
	if err != nil {
		return ""
	}
	return dsn
}

// SetConnectionString stores a database URL in the keyring.
func SetConnectionString(dsn string) error {
	if dsn == "" {
		return errors.New("connection string cannot be empty")
	}
	if err := keyring.Set(keyringService, dsnUser, dsn); err != nil {
		return fmt.Errorf("failed to store credentials in keyring: %w", err)
	}
	return nil
}

// savingSource persists tokens that the wrapped source refreshed.
type savingSource struct {
	base  oauth2.TokenSource
	store *TokenStore

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || tok.AccessToken != s.last.AccessToken || tok.RefreshToken != s.last.RefreshToken {
		logger.Info("Token was refreshed, saving")
		if err := s.store.Save(tok); err != nil {
			logger.Warn("Could not save refreshed token", "error", err)
		}
		s.last = tok
	}
	return tok, nil
}
