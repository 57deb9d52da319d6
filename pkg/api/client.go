// Package api is the HTTP client for the brainstorm platform REST API. All
// endpoints wrap their payloads in a common envelope; list endpoints add a
// pagination block. Methods return coded errors from pkg/errors so callers
// can branch on failure class without string matching.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-logr/logr"

	apperrors "github.com/stormloop-dev/stormloop/pkg/errors"
)

const defaultTimeout = 30 * time.Second

// Client talks to the brainstorm platform REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokenFunc  func() string // Function to get current token
	log        logr.Logger
}

// NewClient creates a Client for the given base URL, e.g.
// "http://localhost:8080/api". tokenFunc may be nil for unauthenticated use.
func NewClient(baseURL string, tokenFunc func() string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		tokenFunc:  tokenFunc,
		log:        logr.Discard(),
	}
}

// WithLogger returns the client logging request failures through log.
func (c *Client) WithLogger(log logr.Logger) *Client {
	c.log = log.WithName("api")
	return c
}

// WithHTTPClient replaces the underlying HTTP client, mainly for tests and
// custom transport settings.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

func (c *Client) addAuthHeaders(req *http.Request) {
	if c.tokenFunc != nil {
		if token := c.tokenFunc(); token != "" {
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		}
	}
}

// envelope is the common response wrapper of the platform API.
type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	Timestamp string          `json:"timestamp"`
	Error     *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Pagination is the cursorless page metadata of list endpoints.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// Paginated is one page of a list endpoint.
type Paginated[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// do sends one request and decodes the enveloped response into out. body is
// marshaled as JSON when non-nil; out may be nil for endpoints returning no
// data. Failures are wrapped with the given error code.
func (c *Client) do(ctx context.Context, method, path string, body, out any, code string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperrors.New(code, "failed to marshal request", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.New(code, "failed to create request", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	c.addAuthHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return apperrors.New(code, "failed to send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		if msg := decodeErrorBody(body); msg != "" {
			return apperrors.New(code,
				fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, msg), nil)
		}
		return apperrors.New(code,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), nil)
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return apperrors.New(code, "failed to decode response", err)
	}
	if !env.Success {
		msg := env.Message
		if env.Error != nil && env.Error.Message != "" {
			msg = env.Error.Message
		}
		return apperrors.New(code, "request rejected: "+msg, nil)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperrors.New(code, "failed to decode response data", err)
	}
	return nil
}

func decodeErrorBody(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	if env.Error != nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return env.Message
}
