package api

import (
	"context"
	"fmt"
	"net/http"
)

// ListSessions fetches all sessions for the authenticated identity. The
// returned order is whatever the backend produced; the client imposes none.
func (c *Client) ListSessions(ctx context.Context) ([]SessionItem, error) {
	var sessions []SessionItem
	if err := c.doJSON(ctx, c.crud, http.MethodGet, "/sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CreateSession registers a new session. An empty title lets the backend
// pick its default.
func (c *Client) CreateSession(ctx context.Context, title string) (*CreateSessionResponse, error) {
	var resp CreateSessionResponse
	req := CreateSessionRequest{Title: title}
	if err := c.doJSON(ctx, c.crud, http.MethodPost, "/sessions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetHistory fetches the full message history for one session. The backend
// does not guarantee chronological order.
func (c *Client) GetHistory(ctx context.Context, sessionID int64) ([]ChatMessage, error) {
	var messages []ChatMessage
	path := fmt.Sprintf("/sessions/%d/history", sessionID)
	if err := c.doJSON(ctx, c.crud, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// Complete runs a generation request. This uses the long-timeout client:
// backend generation routinely takes minutes.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var resp CompletionResponse
	if err := c.doJSON(ctx, c.generate, http.MethodPost, "/chat/completions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
