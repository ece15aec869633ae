// Package http is the outbound HTTP adapter: the authenticated JSON API
// client and the redirect-following media fetcher.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cwygoda/feedgrab/internal/domain"
)

const (
	DefaultTimeout             = 30 * time.Second
	DefaultMaxIdleConns        = 100
	DefaultMaxIdleConnsPerHost = 10
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultTLSHandshakeTimeout = 10 * time.Second

	// DefaultResponseHeaderTimeout bounds the wait for response headers on
	// media downloads. It does not cover reading the body.
	DefaultResponseHeaderTimeout = 30 * time.Second

	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/88.0.4324.190 Safari/537.36"
)

// Header names understood by the feed API.
const (
	HeaderAppToken    = "app-token"
	HeaderAccessToken = "access-token"
	HeaderUserID      = "user-id"
)

// NewHTTPClient creates an *http.Client with a pooled transport.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        DefaultMaxIdleConns,
			MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
			IdleConnTimeout:     DefaultIdleConnTimeout,
			TLSHandshakeTimeout: DefaultTLSHandshakeTimeout,
		},
	}
}

// NewDownloadClient creates an *http.Client for large media transfers. It
// has no overall Client.Timeout, so a slow but progressing body is never cut
// off; a server that never answers is bounded by responseHeaderTimeout and
// cancellation comes from the request context.
func NewDownloadClient(responseHeaderTimeout time.Duration) *http.Client {
	if responseHeaderTimeout <= 0 {
		responseHeaderTimeout = DefaultResponseHeaderTimeout
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          DefaultMaxIdleConns,
			MaxIdleConnsPerHost:   DefaultMaxIdleConnsPerHost,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
			ResponseHeaderTimeout: responseHeaderTimeout,
		},
	}
}

// ClientConfig is the immutable configuration of a Client.
type ClientConfig struct {
	BaseURL string
	Headers map[string]string
	// HTTPClient is used for all requests; nil means NewHTTPClient(Timeout).
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client issues authenticated JSON requests against the API base URL.
// A Client is never modified after construction; With derives a new one.
type Client struct {
	base    *url.URL
	headers http.Header
	hc      *http.Client
}

// NewClient creates a Client from cfg.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = NewHTTPClient(cfg.Timeout)
	}

	headers := http.Header{}
	headers.Set("Accept", "application/json, text/plain, */*")
	headers.Set("User-Agent", DefaultUserAgent)
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}

	return &Client{base: base, headers: headers, hc: hc}, nil
}

// With returns a copy of c that additionally sends headers.
func (c *Client) With(headers map[string]string) *Client {
	h := c.headers.Clone()
	for k, v := range headers {
		h.Set(k, v)
	}
	return &Client{base: c.base, headers: h, hc: c.hc}
}

// Header returns the value of a default header.
func (c *Client) Header(key string) string {
	return c.headers.Get(key)
}

// Get sends a GET for path with query params and decodes the JSON body into out.
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, params, nil, out)
}

// Post sends body as JSON to path and decodes the JSON response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, bytes.NewReader(data), out)
}

func (c *Client) resolve(path string, params url.Values) string {
	u := *c.base
	u.Path = c.base.Path + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body io.Reader, out any) error {
	target := c.resolve(path, params)

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &domain.TransportError{Op: method, URL: target, Err: err}
	}
	req.Header = c.headers.Clone()
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return &domain.TransportError{Op: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &domain.TransportError{Op: method, URL: target, StatusCode: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.TransportError{Op: method, URL: target, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
