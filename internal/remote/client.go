package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/five82/tickbox/internal/todo"
)

// ErrStatus is wrapped by every non-2xx response error.
var ErrStatus = errors.New("unexpected status")

// StatusError reports a response with status >= 400.
type StatusError struct {
	Path string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api %s returned status %d", e.Path, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// Client talks to the todo service HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	limiter   *rate.Limiter
}

// Options tune a Client. The zero value is usable.
type Options struct {
	Timeout time.Duration
	// RequestsPerSecond limits outgoing requests; zero or less is unlimited.
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
}

const (
	defaultAPIBind   = "127.0.0.1:7480"
	defaultUserAgent = "tickbox/0.1"
	requestTimeout   = 5 * time.Second
)

// NewClient builds a Client using the provided apiBind host:port value.
func NewClient(apiBind string, opts Options) (*Client, error) {
	base, err := parseBaseURL(apiBind)
	if err != nil {
		return nil, err
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = requestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return &Client{
		baseURL:   base,
		http:      httpClient,
		userAgent: defaultUserAgent,
		limiter:   limiter,
	}, nil
}

// FetchAll retrieves every todo in display order.
func (c *Client) FetchAll(ctx context.Context) ([]todo.Entity, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload ListResponse
	if err := c.do(ctx, http.MethodGet, "/api/todos", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// Toggle asks the service to set e to !e.Checked. The request carries the
// target value, so repeating it is harmless.
func (c *Client) Toggle(ctx context.Context, e todo.Entity) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("item id required")
	}
	body := UpdateRequest{Checked: !e.Checked}
	return c.do(ctx, http.MethodPatch, "/api/todos/"+url.PathEscape(e.ID), body, nil)
}

// Create adds a new unchecked todo and returns it.
func (c *Client) Create(ctx context.Context, name string) (todo.Entity, error) {
	if c == nil {
		return todo.Entity{}, fmt.Errorf("client is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return todo.Entity{}, fmt.Errorf("name required")
	}
	var created todo.Entity
	if err := c.do(ctx, http.MethodPost, "/api/todos", CreateRequest{Name: name}, &created); err != nil {
		return todo.Entity{}, err
	}
	return created, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return &StatusError{Path: path, Code: resp.StatusCode}
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(apiBind string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiBind)
	if trimmed == "" {
		trimmed = defaultAPIBind
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_bind %q: %w", apiBind, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// Delete removes a todo.
func (c *Client) Delete(ctx context.Context, id string) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("item id required")
	}
	return c.do(ctx, http.MethodDelete, "/api/todos/"+url.PathEscape(id), nil, nil)
}
