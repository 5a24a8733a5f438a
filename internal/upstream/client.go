// Package upstream is the typed client for the content-pipeline API that owns
// all durable state: posts, classifications, profiles and the scrape queue.
package upstream

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

	"reviewdeck/internal/middleware"
	"reviewdeck/internal/models"
	"reviewdeck/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// getRetries is the fixed retry count for idempotent reads on transport
// failure. Mutations are never retried here; the autosave scheduler owns
// save retry policy.
const getRetries = 2

// Client calls the upstream pipeline API under its /api/v1 base path.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for the given base URL (including the /api/v1 prefix).
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// NewWithHTTPClient creates a Client with a caller-provided http.Client.
// Used by tests with httptest servers.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// Ping checks upstream reachability for readiness probes. Any HTTP-level
// answer counts as reachable; only transport failures are fatal.
func (c *Client) Ping(ctx context.Context) error {
	err := c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return nil
		}
	}
	return err
}

// upstreamErrorBody is the machine-readable error shape the API returns on non-2xx.
type upstreamErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dest any) error {
	var lastErr error
	for attempt := 0; attempt <= getRetries; attempt++ {
		err := c.do(ctx, http.MethodGet, path, query, nil, dest)
		if err == nil {
			return nil
		}
		lastErr = err
		// Only transport-level failures are worth retrying; API errors are final.
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, dest any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	ctx, span := observability.Tracer.Start(ctx, fmt.Sprintf("upstream %s %s", method, path),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", endpoint),
		),
	)
	defer span.End()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return models.NewInternalError(err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return models.NewInternalError(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	outcome := "ok"
	if err != nil {
		outcome = "transport_error"
	}
	middleware.UpstreamRequestLatency.WithLabelValues(path, outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		return fmt.Errorf("upstream request %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode == http.StatusNotFound {
		return &models.AppError{Code: "NOT_FOUND", Message: fmt.Sprintf("upstream resource %s not found", path)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody upstreamErrorBody
		msg := fmt.Sprintf("upstream returned %d for %s %s", resp.StatusCode, method, path)
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errBody); decodeErr == nil && errBody.Error != "" {
			msg = errBody.Error
		}
		span.SetStatus(codes.Error, msg)
		return models.NewUpstreamError(msg, nil)
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return models.NewUpstreamError("invalid upstream response body", err)
	}
	return nil
}
