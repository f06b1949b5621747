// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the inference server client.
type ClientError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Cause      error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeServerError
	ErrTypeInvalidResponse
)

// Sentinel errors for easy checking.
var (
	ErrNotRunning = &ClientError{Type: ErrTypeNotRunning, Message: "inference server is not running"}
	ErrTimeout    = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
)

// IsNotRunning reports whether an error indicates the server is unreachable.
func IsNotRunning(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeNotRunning
	}
	return false
}

// IsServerError reports whether an error is a non-2xx server response.
func IsServerError(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeServerError
	}
	return false
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the client.
type ClientConfig struct {
	// BaseURL is the inference server base URL (default: http://localhost:11434).
	BaseURL string

	// ProbeTimeout bounds connectivity probes. Kept short so a dead
	// server is reported quickly (default: 2s).
	ProbeTimeout time.Duration

	// RequestTimeout bounds connection establishment and response
	// headers for chat and vision calls (default: 60s).
	RequestTimeout time.Duration

	// ResourceTimeout bounds an entire non-streaming call. Local-model
	// generation can legitimately run for tens of seconds, so this is
	// generous (default: 300s).
	ResourceTimeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:         "http://localhost:11434",
		ProbeTimeout:    2 * time.Second,
		RequestTimeout:  60 * time.Second,
		ResourceTimeout: 300 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the inference server API.
// It is safe for concurrent use.
type Client struct {
	config *ClientConfig
	logger *zap.Logger

	// probeClient carries the short probe timeout.
	probeClient *http.Client

	// bodyClient carries the long resource timeout for non-streaming calls.
	bodyClient *http.Client

	// streamClient has no overall deadline; streams are bounded by the
	// caller's context and by the response-header timeout.
	streamClient *http.Client
}

// NewClient creates a client with the given configuration. A nil config
// selects defaults; a nil logger selects a no-op logger.
func NewClient(config *ClientConfig, logger *zap.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.ProbeTimeout == 0 {
		config.ProbeTimeout = 2 * time.Second
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 60 * time.Second
	}
	if config.ResourceTimeout == 0 {
		config.ResourceTimeout = 300 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   config.RequestTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: config.RequestTimeout,
	}

	return &Client{
		config:       config,
		logger:       logger,
		probeClient:  &http.Client{Timeout: config.ProbeTimeout},
		bodyClient:   &http.Client{Transport: transport, Timeout: config.ResourceTimeout},
		streamClient: &http.Client{Transport: transport},
	}
}

// BaseURL returns the configured server base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies the server is reachable. Any transport error or
// non-2xx status is reported as an error; callers treating connectivity as
// advisory should map it to a boolean.
func (c *Client) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return &ClientError{Type: ErrTypeNotRunning, Message: "failed to create request", Cause: err}
	}

	resp, err := c.probeClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ErrNotRunning
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ClientError{
			Type:       ErrTypeServerError,
			Message:    "unexpected status from server: " + resp.Status,
			StatusCode: resp.StatusCode,
		}
	}

	return nil
}

// EnsureRunning checks whether the server is reachable and attempts a
// best-effort local start when it is not.
func (c *Client) EnsureRunning(ctx context.Context) error {
	if err := c.CheckRunning(ctx); err == nil {
		return nil
	}
	return c.startServerProcess(ctx)
}

// waitUntilRunning polls the health check until the server responds or the
// deadline passes.
func (c *Client) waitUntilRunning(ctx context.Context, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if err := c.CheckRunning(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
	return ErrNotRunning
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// ListModels retrieves all locally available models.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeNotRunning, Message: "failed to create request", Cause: err}
	}

	resp, err := c.bodyClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError("failed to list models", resp)
	}

	var result ListModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode model list", Cause: err}
	}

	return result.Models, nil
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// Chat sends a non-streaming chat request and returns the full response.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	req.Stream = false

	resp, err := c.postJSON(ctx, "/api/chat", req, c.bodyClient)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError("chat request failed", resp)
	}

	var result ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode chat response", Cause: err}
	}

	return &result, nil
}

// ChatStream sends a streaming chat request and invokes the callback for
// each parsed line, in arrival order. Returns when the stream completes,
// errors, or the context is cancelled. Malformed lines are skipped.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest, callback StreamCallback) error {
	req.Stream = true

	resp, err := c.postJSON(ctx, "/api/chat", req, c.streamClient)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError("stream request failed", resp)
	}

	reader := NewStreamReader(resp.Body, c.logger)
	return reader.Process(ctx, callback)
}

// =============================================================================
// GENERATE (VISION)
// =============================================================================

// Generate sends a single-shot generate request. Used for vision calls
// with base64-encoded images; streaming is forced off.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	req.Stream = false

	resp, err := c.postJSON(ctx, "/api/generate", req, c.bodyClient)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError("generate request failed", resp)
	}

	var result GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode generate response", Cause: err}
	}

	return &result, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// postJSON marshals body and issues a POST with the given HTTP client.
func (c *Client) postJSON(ctx context.Context, path string, body any, httpClient *http.Client) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeNotRunning, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ErrNotRunning
	}
	return resp, nil
}

// statusError builds a ClientError from a non-2xx response, preferring the
// server's error envelope when it decodes.
func (c *Client) statusError(msg string, resp *http.Response) error {
	var envelope apiError
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error != "" {
		msg = msg + ": " + envelope.Error
	} else {
		msg = fmt.Sprintf("%s: %s", msg, resp.Status)
	}
	return &ClientError{
		Type:       ErrTypeServerError,
		Message:    msg,
		StatusCode: resp.StatusCode,
	}
}

func drainAndClose(body io.ReadCloser) {
	io.Copy(io.Discard, body)
	body.Close()
}
