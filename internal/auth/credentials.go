package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotLoggedIn is returned when no credential is stored.
var ErrNotLoggedIn = errors.New("auth: not logged in")

const credentialsFile = "credentials.json"

// Credentials is the persisted result of a wallet login.
type Credentials struct {
	AccessToken   string `json:"access_token"`
	TokenType     string `json:"token_type"`
	UserID        int64  `json:"user_id"`
	WalletAddress string `json:"wallet_address"`
}

// Store persists one credential under the data directory and hands the
// bearer token to the API client. It satisfies api.CredentialSource, so a
// 401 anywhere clears the stored credential.
type Store struct {
	mu    sync.Mutex
	path  string
	creds *Credentials
}

// NewStore hydrates the store from dataDir, ignoring a missing file.
func NewStore(dataDir string) (*Store, error) {
	s := &Store{path: filepath.Join(dataDir, credentialsFile)}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	s.creds = &creds
	return s, nil
}

// Save persists the credential and makes it the active one.
func (s *Store) Save(creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	s.creds = &creds
	return nil
}

// Current returns the stored credential.
func (s *Store) Current() (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds == nil {
		return nil, ErrNotLoggedIn
	}
	creds := *s.creds
	return &creds, nil
}

// Token implements api.CredentialSource. An expired token reads as empty so
// the caller fails fast instead of collecting a guaranteed 401.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds == nil {
		return ""
	}
	if expired(s.creds.AccessToken, time.Now()) {
		return ""
	}
	return s.creds.AccessToken
}

// Invalidate implements api.CredentialSource: drop the credential in memory
// and on disk.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = nil
	os.Remove(s.path)
}

// Clear is the explicit logout path.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = nil
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

// ExpiresAt reports the access token's expiry claim, or the zero time when
// the token carries none.
func (s *Store) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds == nil {
		return time.Time{}
	}
	return tokenExpiry(s.creds.AccessToken)
}

// tokenExpiry reads the exp claim without verifying the signature. The
// backend is the authority on validity; the client only uses this to avoid
// sending requests it knows will bounce.
func tokenExpiry(token string) time.Time {
	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func expired(token string, now time.Time) bool {
	exp := tokenExpiry(token)
	if exp.IsZero() {
		// Opaque or claim-less tokens are left for the backend to judge.
		return false
	}
	return now.After(exp)
}
