package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeJWT builds an unsigned token with the given exp claim. Claims are read
// without signature verification, so a fake signature is enough.
func makeJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	claims, err := json.Marshal(map[string]any{"sub": "1", "exp": exp.Unix()})
	require.NoError(t, err)
	payload := base64.RawURLEncoding.EncodeToString(claims)
	return fmt.Sprintf("%s.%s.%s", header, payload, base64.RawURLEncoding.EncodeToString([]byte("sig")))
}

func TestStoreSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	_, err = store.Current()
	require.ErrorIs(t, err, ErrNotLoggedIn)

	creds := Credentials{
		AccessToken:   "opaque-token",
		TokenType:     "bearer",
		UserID:        7,
		WalletAddress: "0xabcdef1234567890abcdef1234567890abcdef12",
	}
	require.NoError(t, store.Save(creds))

	reloaded, err := NewStore(dir)
	require.NoError(t, err)
	current, err := reloaded.Current()
	require.NoError(t, err)
	assert.Equal(t, creds, *current)

	info, err := os.Stat(filepath.Join(dir, "credentials.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStoreTokenOpaquePassesThrough(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save(Credentials{AccessToken: "not-a-jwt"}))

	assert.Equal(t, "not-a-jwt", store.Token())
}

func TestStoreTokenExpiredReadsEmpty(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	expired := makeJWT(t, time.Now().Add(-time.Hour))
	require.NoError(t, store.Save(Credentials{AccessToken: expired}))

	assert.Empty(t, store.Token())
}

func TestStoreTokenValidJWT(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	exp := time.Now().Add(time.Hour)
	token := makeJWT(t, exp)
	require.NoError(t, store.Save(Credentials{AccessToken: token}))

	assert.Equal(t, token, store.Token())
	assert.WithinDuration(t, exp, store.ExpiresAt(), time.Second)
}

func TestStoreInvalidateDropsDiskAndMemory(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(Credentials{AccessToken: "tok"}))

	store.Invalidate()

	assert.Empty(t, store.Token())
	_, err = store.Current()
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	_, err = os.Stat(filepath.Join(dir, "credentials.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestStoreClearIsIdempotent(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
}

func TestValidateWalletAddress(t *testing.T) {
	valid := "0xabcdef1234567890abcdef1234567890abcdef12"
	require.NoError(t, ValidateWalletAddress(valid))

	for _, bad := range []string{
		"",
		"abcdef1234567890abcdef1234567890abcdef12",
		"0xabcdef1234567890abcdef1234567890abcdef1",
		"0xabcdef1234567890abcdef1234567890abcdef123",
		"0xZZcdef1234567890abcdef1234567890abcdef12",
	} {
		assert.Error(t, ValidateWalletAddress(bad), "address %q should be rejected", bad)
	}
}

func TestStaticSignerRequiresSignature(t *testing.T) {
	ctx := context.Background()
	_, err := StaticSigner("").Sign(ctx, "nonce")
	assert.Error(t, err)

	sig, err := StaticSigner("0xsig").Sign(ctx, "nonce")
	require.NoError(t, err)
	assert.Equal(t, "0xsig", sig)
}
