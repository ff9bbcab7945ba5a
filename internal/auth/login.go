package auth

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/trustflow-labs/trustflow/internal/api"
)

var walletAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidateWalletAddress rejects malformed addresses before any network call.
func ValidateWalletAddress(address string) error {
	if !walletAddressPattern.MatchString(address) {
		return fmt.Errorf("auth: %q is not a valid wallet address", address)
	}
	return nil
}

// Signer produces a signature over the login nonce. The signing cryptography
// itself lives in the wallet; the client only transports the result.
type Signer interface {
	Sign(ctx context.Context, nonce string) (string, error)
}

// StaticSigner returns a signature obtained out of band, e.g. from a
// --signature flag.
type StaticSigner string

func (s StaticSigner) Sign(ctx context.Context, nonce string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("auth: no signature provided")
	}
	return string(s), nil
}

// CommandSigner runs an external signer command with the nonce on stdin and
// reads the signature from stdout. This is how a wallet CLI or hardware
// signer plugs in without the client touching key material.
type CommandSigner struct {
	Command string
}

func (s CommandSigner) Sign(ctx context.Context, nonce string) (string, error) {
	if s.Command == "" {
		return "", fmt.Errorf("auth: no signer command configured")
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", s.Command)
	cmd.Stdin = strings.NewReader(nonce)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("auth: signer command failed: %w", err)
	}
	signature := strings.TrimSpace(out.String())
	if signature == "" {
		return "", fmt.Errorf("auth: signer command produced no signature")
	}
	return signature, nil
}

// Login runs the wallet login flow: nonce challenge, external signature,
// token exchange, persist. The resulting credential becomes active for every
// subsequent API call.
func Login(ctx context.Context, client *api.Client, store *Store, logger *log.Logger, address string, signer Signer) (*Credentials, error) {
	if err := ValidateWalletAddress(address); err != nil {
		return nil, err
	}

	nonce, err := client.RequestNonce(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("request nonce: %w", err)
	}
	logger.Debug("received login nonce", "wallet", address)

	signature, err := signer.Sign(ctx, nonce.Nonce)
	if err != nil {
		return nil, err
	}

	resp, err := client.Login(ctx, address, signature)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	creds := Credentials{
		AccessToken:   resp.AccessToken,
		TokenType:     resp.TokenType,
		UserID:        resp.UserInfo.UserID,
		WalletAddress: resp.UserInfo.WalletAddress,
	}
	if err := store.Save(creds); err != nil {
		return nil, err
	}
	logger.Info("logged in", "wallet", creds.WalletAddress, "user_id", creds.UserID)
	return &creds, nil
}
