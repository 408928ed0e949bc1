// Package client is the HTTP layer every AREA resource accessor goes through.
// It attaches the bearer token, refreshes it once on 401 and turns error
// answers into *APIError values.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukex/area/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultTimeout = 30 * time.Second

// Session provides and renews the bearer token.
type Session interface {
	AccessToken() string
	Refresh(ctx context.Context) error
	Clear() error
}

type Client struct {
	baseURL        string
	http           *http.Client
	session        Session
	onUnauthorized func(ctx context.Context)
	tracer         trace.Tracer
	logger         *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.http = httpClient
	}
}

// WithUnauthorizedHandler sets the hook run once the session has been cleared
// after a failed refresh. The CLI uses it to point the user at `area login`.
func WithUnauthorizedHandler(handler func(ctx context.Context)) Option {
	return func(c *Client) {
		c.onUnauthorized = handler
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(baseURL string, session Session, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", baseURL)
	}

	c := &Client{
		baseURL:        strings.TrimRight(parsed.String(), "/"),
		http:           &http.Client{Timeout: defaultTimeout},
		session:        session,
		onUnauthorized: func(context.Context) {},
		tracer:         otelhelper.Tracer("github.com/dukex/area/pkg/client"),
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With("module", "client")

	return c, nil
}

// Request describes one backend call. Path is relative to the base URL.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any
	Headers map[string]string
}

// Do sends req and decodes a JSON answer into out when out is not nil.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "HTTP "+req.Method,
		attribute.String(otelhelper.HTTPMethodKey, req.Method),
		attribute.String(otelhelper.HTTPPathKey, req.Path),
	)
	defer span.End()

	err := c.do(ctx, span, req, out)
	otelhelper.SetError(span, err)

	return err
}

func (c *Client) do(ctx context.Context, span trace.Span, req Request, out any) error {
	authEndpoint := isAuthEndpoint(req.Path)
	retried := false

	for {
		resp, err := c.send(ctx, req, authEndpoint)
		if err != nil {
			return err
		}

		body, err := io.ReadAll(resp.Body)
		closeErr := resp.Body.Close()

		if err != nil {
			return fmt.Errorf("%w: failed to read response: %w", ErrTransport, err)
		}

		if closeErr != nil {
			c.logger.WarnContext(ctx, "Failed to close response body", "error", closeErr)
		}

		span.SetAttributes(attribute.Int(otelhelper.HTTPStatusKey, resp.StatusCode))

		if resp.StatusCode == http.StatusUnauthorized && !authEndpoint {
			apiErr := &APIError{Method: req.Method, Path: req.Path, Status: resp.StatusCode, Body: body}

			if retried {
				c.signOut(ctx)

				return fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
			}

			retried = true

			if err := c.session.Refresh(ctx); err != nil {
				c.logger.InfoContext(ctx, "Token refresh failed", "error", err)
				c.signOut(ctx)

				return fmt.Errorf("%w: %w", ErrUnauthorized, err)
			}

			c.logger.DebugContext(ctx, "Retrying request with refreshed token", "method", req.Method, "path", req.Path)

			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &APIError{Method: req.Method, Path: req.Path, Status: resp.StatusCode, Body: body}
		}

		if out == nil || len(bytes.TrimSpace(body)) == 0 {
			return nil
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode %s %s response: %w", req.Method, req.Path, err)
		}

		return nil
	}
}

func (c *Client) send(ctx context.Context, req Request, authEndpoint bool) (*http.Response, error) {
	var body io.Reader

	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}

		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.URL(req.Path, req.Query), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")

	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if token := c.session.AccessToken(); token != "" && !authEndpoint {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	c.logger.DebugContext(ctx, "Sending request", "method", req.Method, "path", req.Path)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	return resp, nil
}

func (c *Client) signOut(ctx context.Context) {
	if err := c.session.Clear(); err != nil {
		c.logger.ErrorContext(ctx, "Failed to clear session", "error", err)
	}

	c.onUnauthorized(ctx)
}

// URL resolves path against the base URL.
func (c *Client) URL(path string, query url.Values) string {
	full := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		full += "?" + query.Encode()
	}

	return full
}

// Endpoints reached without a token. They never trigger a refresh.
var authEndpoints = []string{"auth/login", "auth/register", "auth/token"}

func isAuthEndpoint(path string) bool {
	path = strings.TrimLeft(path, "/")

	for _, prefix := range authEndpoints {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	return false
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) Post(ctx context.Context, path string, body any, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (c *Client) Put(ctx context.Context, path string, body any, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

func (c *Client) Patch(ctx context.Context, path string, body any, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path}, nil)
}
