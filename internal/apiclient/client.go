// Package apiclient provides the JSON-over-HTTPS client shared by the Source and
// Target API clients.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a single request when the caller does not supply an http.Client.
const DefaultTimeout = 30 * time.Second

// ErrNotFound is matched by errors.Is for 404 responses.
var ErrNotFound = errors.New("not found")

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Authorizer decorates outgoing requests with credentials.
type Authorizer func(req *http.Request)

// Client issues JSON requests against a single base URL.
type Client struct {
	BaseURL   string
	HTTP      *http.Client
	Authorize Authorizer
	UserAgent string
}

// New creates a client. A nil httpClient gets a default client with DefaultTimeout.
func New(baseURL string, httpClient *http.Client, authorize Authorizer) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		HTTP:      httpClient,
		Authorize: authorize,
		UserAgent: "flagport",
	}
}

// StaticToken returns an Authorizer that sets header to value on every request.
func StaticToken(header, value string) Authorizer {
	return func(req *http.Request) {
		req.Header.Set(header, value)
	}
}

// Get decodes the JSON response of GET path into out.
// path may carry a pre-encoded query string.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Post sends body as JSON and decodes the response into out (if non-nil).
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

// Patch sends body as JSON and decodes the response into out (if non-nil).
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, body, out)
}

// Do performs a request. Non-2xx responses are returned as *APIError.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.ContentLength = int64(len(payload))
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if c.Authorize != nil {
		c.Authorize(req)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Message:    errorMessage(resp),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts the body's "message" field, which may be a string or a
// list of strings. Falls back to the HTTP status text.
func errorMessage(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil && len(data) > 0 {
		var body struct {
			Message json.RawMessage `json:"message"`
		}
		if json.Unmarshal(data, &body) == nil && len(body.Message) > 0 {
			var s string
			if json.Unmarshal(body.Message, &s) == nil && s != "" {
				return s
			}
			var list []string
			if json.Unmarshal(body.Message, &list) == nil && len(list) > 0 {
				return strings.Join(list, "; ")
			}
		}
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return resp.Status
}
