package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultBaseURL matches the backend's local development address.
	DefaultBaseURL = "http://localhost:8000/api/v1"

	// DefaultRequestTimeout bounds ordinary CRUD calls.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultGenerateTimeout bounds the completion call. Generation latency
	// runs to minutes, so this must stay materially longer than the CRUD
	// timeout or the client will mistake slowness for failure.
	DefaultGenerateTimeout = 5 * time.Minute
)

// ErrUnauthorized is returned when the backend rejects the bearer credential.
// The credential source is invalidated before this is returned.
var ErrUnauthorized = errors.New("api: unauthorized")

// Error is a normalized backend failure: the HTTP status plus whatever
// message the backend attached.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: backend returned status %d", e.Status)
	}
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.Status)
}

// CredentialSource supplies the bearer token for outbound requests.
// Invalidate is called once when the backend answers 401, so a persisted
// credential can be cleared and the user forced back through login.
type CredentialSource interface {
	Token() string
	Invalidate()
}

// Options configures a Client.
type Options struct {
	BaseURL         string
	RequestTimeout  time.Duration
	GenerateTimeout time.Duration
	Credentials     CredentialSource
	Logger          *log.Logger
}

// Client is a typed HTTP client for the TrustFlow backend. All methods
// normalize failures into *Error or ErrUnauthorized; callers never see raw
// HTTP status handling.
type Client struct {
	baseURL  string
	crud     *http.Client
	generate *http.Client
	creds    CredentialSource
	logger   *log.Logger
}

// NewClient builds a client from options, applying defaults for anything
// left zero.
func NewClient(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	requestTimeout := opts.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	generateTimeout := opts.GenerateTimeout
	if generateTimeout <= 0 {
		generateTimeout = DefaultGenerateTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		crud:     &http.Client{Timeout: requestTimeout},
		generate: &http.Client{Timeout: generateTimeout},
		creds:    opts.Credentials,
		logger:   logger,
	}
}

// BaseURL reports the configured backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) token() string {
	if c.creds == nil {
		return ""
	}
	return c.creds.Token()
}

// doJSON issues a JSON request and decodes the response body into out when
// out is non-nil.
func (c *Client) doJSON(ctx context.Context, hc *http.Client, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(hc, req, out)
}

// doMultipart issues a multipart/form-data request built by fill.
func (c *Client) doMultipart(ctx context.Context, path string, fill func(w *multipart.Writer) error, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := fill(w); err != nil {
		return fmt.Errorf("build form: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.send(c.crud, req, out)
}

func (c *Client) send(hc *http.Client, req *http.Request, out any) error {
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Warn("credential rejected, forcing re-authentication", "path", req.URL.Path)
		if c.creds != nil {
			c.creds.Invalidate()
		}
		return ErrUnauthorized
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Status: resp.StatusCode, Message: backendMessage(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// backendMessage pulls a human-readable message out of an error body. The
// backend uses "detail" for validation errors and "message" elsewhere.
func backendMessage(data []byte) string {
	var body struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Detail != "" {
		return body.Detail
	}
	return body.Message
}
