package api

import (
	"context"
	"net/http"
)

type nonceRequest struct {
	WalletAddress string `json:"wallet_address"`
}

type loginRequest struct {
	WalletAddress string `json:"wallet_address"`
	Signature     string `json:"signature"`
}

// RequestNonce fetches the one-time challenge the wallet must sign.
func (c *Client) RequestNonce(ctx context.Context, walletAddress string) (*NonceResponse, error) {
	var resp NonceResponse
	req := nonceRequest{WalletAddress: walletAddress}
	if err := c.doJSON(ctx, c.crud, http.MethodPost, "/auth/nonce", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login exchanges a signed nonce for an access token.
func (c *Client) Login(ctx context.Context, walletAddress, signature string) (*LoginResponse, error) {
	var resp LoginResponse
	req := loginRequest{WalletAddress: walletAddress, Signature: signature}
	if err := c.doJSON(ctx, c.crud, http.MethodPost, "/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
