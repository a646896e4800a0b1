package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a request when no timeout is configured
const DefaultTimeout = 15 * time.Second

// Client represents an HTTP client for the Adrenalink REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithTimeout overrides the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithCookieJar attaches the jar that carries the backend session cookie
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) {
		c.httpClient.Jar = jar
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a new API client for the given base URL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetHTTPClient sets a custom HTTP client. The current cookie jar is kept
// when the new client has none.
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	if httpClient.Jar == nil {
		httpClient.Jar = c.httpClient.Jar
	}
	c.httpClient = httpClient
}

// BaseURL returns the normalized base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get issues a GET request and decodes a JSON response into out
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Send issues a request with an optional JSON body and decodes a JSON
// response into out. A nil body sends no body at all.
func (c *Client) Send(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, path, body, out)
}

func (c *Client) buildURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := c.buildURL(path)

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("url", url).Msg("Request failed")
		return &NetworkError{Method: method, URL: url, Err: err}
	}
	defer resp.Body.Close()

	payload, err := readBody(resp)
	if err != nil {
		return &NetworkError{Method: method, URL: url, Err: err}
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", url).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    payload.errorMessage(resp.StatusCode),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	// A caller expecting a result gets one or an error, never a zero value
	if payload.json == nil {
		return fmt.Errorf("%w: expected a JSON body from %s %s", ErrMalformedResponse, method, path)
	}
	if err := json.Unmarshal(payload.json, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// respBody is a response read once: JSON when the server said so and it parsed,
// otherwise raw text
type respBody struct {
	json json.RawMessage
	text string
}

func readBody(resp *http.Response) (respBody, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return respBody{}, fmt.Errorf("failed to read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return respBody{}, nil
	}

	if isJSON(resp.Header.Get("Content-Type")) {
		// Unparseable JSON carries no error message; on success it is malformed
		if !json.Valid(data) {
			return respBody{}, nil
		}
		return respBody{json: data}, nil
	}
	return respBody{text: string(data)}, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "application/json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// errorMessage prefers JSON error fields, then raw text, then the status
func (b respBody) errorMessage(status int) string {
	if b.json != nil {
		var fields struct {
			Error   any `json:"error"`
			Message any `json:"message"`
		}
		if err := json.Unmarshal(b.json, &fields); err == nil {
			if msg := stringField(fields.Error); msg != "" {
				return msg
			}
			if msg := stringField(fields.Message); msg != "" {
				return msg
			}
		}
		var text string
		if err := json.Unmarshal(b.json, &text); err == nil && text != "" {
			return text
		}
	}
	if text := strings.TrimSpace(b.text); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", status)
}

func stringField(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
