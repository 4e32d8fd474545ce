package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/TheMichaelB/echoseal/internal/events"
	"github.com/TheMichaelB/echoseal/internal/models"
)

// Client talks to a remote seal server.
type Client struct {
	client    *http.Client
	baseURL   string
	userAgent string
	logger    *events.Logger

	// Retry configuration
	maxRetries int
	retryDelay time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithRetries sets the retry count and initial backoff.
func WithRetries(maxRetries int, delay time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, logger *events.Logger, opts ...ClientOption) *Client {
	transport := &http.Transport{
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			NextProtos: []string{"h2", "http/1.1"},
		},
	}

	if err := http2.ConfigureTransport(transport); err != nil {
		logger.WithError(err).Warn("Failed to configure HTTP/2")
	}

	c := &Client{
		client: &http.Client{
			Timeout:   60 * time.Second,
			Transport: transport,
		},
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  "echoseal/" + Version,
		maxRetries: 3,
		retryDelay: time.Second,
		logger:     logger.WithField("component", "http_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Upload is a named file part of a request.
type Upload struct {
	Name   string
	Reader io.Reader
}

// CreateOptions describes a seal to create remotely.
type CreateOptions struct {
	Message    string
	Password   string
	Audio      *Upload
	Background *Upload
}

// RemoteSeal is a seal issued by the server.
type RemoteSeal struct {
	ID        string
	Protected bool
	PNG       []byte
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) (*models.HealthResponse, error) {
	body, _, err := c.do(ctx, http.MethodGet, "/health", "", nil)
	if err != nil {
		return nil, err
	}

	var resp models.HealthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &resp, nil
}

// Unseal uploads a seal image and returns the recovered message. Failures
// are *models.APIError and match the seal sentinels with errors.Is.
func (c *Client) Unseal(ctx context.Context, image Upload, password string) (*models.UnsealResponse, error) {
	payload, contentType, err := multipartBody(
		map[string]string{"password": password},
		map[string]*Upload{"image": &image},
	)
	if err != nil {
		return nil, err
	}

	body, _, err := c.do(ctx, http.MethodPost, "/unseal", contentType, payload)
	if err != nil {
		return nil, err
	}

	var resp models.UnsealResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &resp, nil
}

// CreateSeal asks the server to issue a seal and returns its PNG.
func (c *Client) CreateSeal(ctx context.Context, opts CreateOptions) (*RemoteSeal, error) {
	fields := map[string]string{"password": opts.Password}
	if opts.Message != "" {
		fields["message"] = opts.Message
	}

	payload, contentType, err := multipartBody(fields, map[string]*Upload{
		"audio":      opts.Audio,
		"background": opts.Background,
	})
	if err != nil {
		return nil, err
	}

	body, header, err := c.do(ctx, http.MethodPost, "/create-seal", contentType, payload)
	if err != nil {
		return nil, err
	}

	protected, _ := strconv.ParseBool(header.Get("X-Seal-Protected"))
	return &RemoteSeal{
		ID:        header.Get("X-Seal-ID"),
		Protected: protected,
		PNG:       body,
	}, nil
}

// FetchSeal downloads a seal image the server saved earlier.
func (c *Client) FetchSeal(ctx context.Context, name string) ([]byte, error) {
	body, _, err := c.do(ctx, http.MethodGet, "/seals/"+url.PathEscape(name), "", nil)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// do sends a request with retry and returns the body of a 200 response.
// The payload is replayed on every attempt.
func (c *Client) do(ctx context.Context, method, path, contentType string, payload []byte) ([]byte, http.Header, error) {
	target := c.baseURL + path

	c.logger.WithFields(map[string]interface{}{
		"method": method,
		"url":    target,
		"size":   len(payload),
	}).Debug("Sending request")

	var resp *http.Response
	err := c.retry(ctx, func() error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("User-Agent", c.userAgent)
		if id := events.GetRequestID(ctx); id != "" {
			req.Header.Set("X-Request-ID", id)
		}

		resp, err = c.client.Do(req)
		if err != nil {
			return fmt.Errorf("execute request: %w", err)
		}

		if c.isRetryable(resp.StatusCode) {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("server error %d: %s", resp.StatusCode, respBody)
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"status": resp.StatusCode,
		"size":   len(respBody),
	}).Debug("Received response")

	if resp.StatusCode != http.StatusOK {
		var apiErr models.APIError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Code != "" {
			apiErr.StatusCode = resp.StatusCode
			return nil, nil, &apiErr
		}
		return nil, nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, respBody)
	}

	return respBody, resp.Header, nil
}

// retry executes a function with exponential backoff.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := c.retryDelay

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(map[string]interface{}{
				"attempt": attempt,
				"delay":   delay,
			}).Debug("Retrying request")

			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !c.isRetryableError(ctx, err) {
			return err
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRetryable checks if an HTTP status code is retryable.
func (c *Client) isRetryable(status int) bool {
	return status == http.StatusTooManyRequests ||
		(status >= 500 && status < 600)
}

// isRetryableError checks if an error is retryable. Everything but a
// finished context is.
func (c *Client) isRetryableError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func multipartBody(fields map[string]string, files map[string]*Upload) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", name, err)
		}
	}

	for field, up := range files {
		if up == nil || up.Reader == nil {
			continue
		}
		part, err := w.CreateFormFile(field, up.Name)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", field, err)
		}
		if _, err := io.Copy(part, up.Reader); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}
