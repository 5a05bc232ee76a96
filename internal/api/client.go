package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
)

// Config fixes where and how the client talks to the backend.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client is the HTTP adapter every screen shares. It is safe for concurrent use and
// immutable after New; the cookie jar forwards credentials on every request.
type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
	log       logrus.FieldLogger
}

// New builds a client. A zero Timeout disables the per-request deadline.
func New(cfg Config, logger logrus.FieldLogger) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("api: base url required")
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api: base url %q must be absolute", cfg.BaseURL)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("api: cookie jar: %w", err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "calificaciones-tui"
	}
	return &Client{
		base:      base,
		http:      &http.Client{Jar: jar, Timeout: cfg.Timeout},
		userAgent: ua,
		log:       logger,
	}, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// URL resolves a path relative to the base URL. Leading slashes are ignored so
// "/calificaciones/" and "calificaciones/" address the same resource.
func (c *Client) URL(path string) string {
	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return c.base.String() + strings.TrimLeft(path, "/")
	}
	return c.base.ResolveReference(ref).String()
}

// Get decodes the JSON response of GET path into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// Post sends body as JSON and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out)
}

// Put sends body as JSON and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPut, path, body, out)
}

// Delete issues DELETE path and discards the response body.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// PostFile uploads content as multipart form data under the "file" field. An out of
// type *[]byte receives the response body undecoded.
func (c *Client) PostFile(ctx context.Context, path, field, filename string, content []byte, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("multipart: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("multipart: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, mw.FormDataContentType(), &buf, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, contentType, reader, out)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	target := c.URL(path)
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	entry := c.log.WithFields(logrus.Fields{
		"method":     method,
		"url":        target,
		"request_id": requestID,
	})
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		entry.WithError(err).Error("request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		entry.WithError(err).Error("read response failed")
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	entry = entry.WithFields(logrus.Fields{
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newError(method, path, resp.StatusCode, data)
		apiErr.RequestID = requestID
		entry.WithField("body", string(data)).Warn("backend rejected request")
		return apiErr
	}
	entry.Debug("request ok")

	if out == nil {
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw = data
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
