package http

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// DefaultUserAgent is sent when neither the client nor the route sets one.
const DefaultUserAgent = "Mozilla/5.0"

// Client wraps HTTP operations with quicksong-specific configuration.
//
// Client provides:
//   - Session headers (the login cookie) on every request
//   - Per-request proxy and User-Agent selection via Route
//   - Streaming archive downloads with the server-provided file name
//   - Redirect resolution via HEAD requests
//
// Example usage:
//
//	client := NewClient(WithHeader("Cookie", "osu_session=..."))
//
//	ctx = WithRoute(ctx, Route{Address: "10.0.0.1:8080", UserAgent: ua})
//	dl, err := client.DownloadFile(ctx, archiveURL, "/tmp/beatmap_1.osz", nil)
type Client struct {
	httpClient *http.Client
	transport  *routingTransport
	userAgent  string
	header     http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the overall timeout of a single request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithUserAgent sets the default User-Agent.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.header.Add(key, value)
	}
}

// WithHeaders adds every header in h to every request.
func WithHeaders(h http.Header) Option {
	return func(c *Client) {
		for k, vs := range h {
			for _, v := range vs {
				c.header.Add(k, v)
			}
		}
	}
}

// NewClient creates a new HTTP client.
//
// The client is configured with:
//   - 60 second timeout
//   - "Mozilla/5.0" User-Agent header
func NewClient(opts ...Option) *Client {
	const timeout = 60 * time.Second

	transport := newRoutingTransport(timeout)
	c := &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		transport: transport,
		userAgent: DefaultUserAgent,
		header:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is returned when the server answers with an unexpected status.
type StatusError struct {
	Code   int
	Status string
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s (%s)", e.Code, e.Status, e.URL)
}

// ProgressWriter wraps a writer to track download progress.
//
// Use this to monitor large downloads by providing an OnUpdate callback
// that receives the current bytes written and total expected bytes.
type ProgressWriter struct {
	// Writer is the underlying writer to write data to.
	Writer io.Writer

	// Total is the expected total bytes (from Content-Length header).
	Total int64

	// Written is the current number of bytes written.
	Written int64

	// OnUpdate is called after each Write with current progress.
	// Parameters are (bytesWritten, totalExpected).
	OnUpdate func(written, total int64)
}

// Write implements io.Writer, tracking progress and calling OnUpdate.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}

// Download describes the response to an archive request.
type Download struct {
	// StatusCode is the status of the final response.
	StatusCode int

	// FinalURL is the URL of the final response, after redirects.
	FinalURL string

	// Filename is the name suggested by Content-Disposition, or "".
	Filename string

	// Path is where the body was written. Empty when nothing was written.
	Path string

	// Written is the number of body bytes written to Path.
	Written int64
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	ua := c.userAgent
	if r, ok := RouteFrom(ctx); ok && r.UserAgent != "" {
		ua = r.UserAgent
	}
	req.Header.Set("User-Agent", ua)
	return req, nil
}

// Get performs a GET request and returns the response body as bytes.
//
// Returns a *StatusError if the response status is not 200 OK.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status, URL: rawURL}
	}

	return io.ReadAll(resp.Body)
}

// GetString performs a GET request and returns the response body as a string.
func (c *Client) GetString(ctx context.Context, rawURL string) (string, error) {
	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ResolveURL follows the redirects of rawURL with a HEAD request and
// returns the final URL.
//
// The status of the final response is not checked: a redirect to a page
// that answers HEAD with an error still yields its URL.
func (c *Client) ResolveURL(ctx context.Context, rawURL string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	resp.Body.Close()

	return resp.Request.URL.String(), nil
}

// Probe sends a HEAD request to rawURL through route and reports whether
// a response came back at all. Any status counts as success.
func (c *Client) Probe(ctx context.Context, rawURL string, route Route) error {
	req, err := c.newRequest(WithRoute(ctx, route), http.MethodHead, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// PostForm posts a URL-encoded form and returns the cookies set by the
// final response.
//
// Returns a *StatusError for any status outside 2xx.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) ([]*http.Cookie, error) {
	req, err := c.newRequest(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status, URL: rawURL}
	}
	return resp.Cookies(), nil
}

// DownloadFile downloads rawURL to destPath with an optional progress callback.
//
// The body is written only for a 200 OK response; for any other status a
// *StatusError is returned together with the Download describing the
// response and no file is created. The file is created (or truncated if
// it exists) and the content is streamed directly to disk.
//
// A partially written file is left in place when the transfer fails
// midway; Download.Path is set whenever the file was created.
func (c *Client) DownloadFile(ctx context.Context, rawURL, destPath string, onProgress func(written, total int64)) (*Download, error) {
	req, err := c.newRequest(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	dl := &Download{
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		Filename:   ContentDispositionFilename(resp.Header),
	}

	if resp.StatusCode != http.StatusOK {
		return dl, &StatusError{Code: resp.StatusCode, Status: resp.Status, URL: rawURL}
	}

	file, err := os.Create(destPath)
	if err != nil {
		return dl, err
	}
	defer file.Close()
	dl.Path = destPath

	var writer io.Writer = file
	if onProgress != nil {
		writer = &ProgressWriter{
			Writer:   file,
			Total:    resp.ContentLength,
			OnUpdate: onProgress,
		}
	}

	dl.Written, err = io.Copy(writer, resp.Body)
	if err != nil {
		return dl, err
	}
	return dl, file.Close()
}

// CloseIdleConnections closes idle connections of every proxy route.
func (c *Client) CloseIdleConnections() {
	c.transport.CloseIdleConnections()
}

// ContentDispositionFilename returns the file name suggested by the
// Content-Disposition header, or "" when there is none.
//
// Headers that do not parse as a media type fall back to the first
// double-quoted string.
func ContentDispositionFilename(h http.Header) string {
	cd := h.Get("Content-Disposition")
	if cd == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(cd); err == nil {
		if name := params["filename"]; name != "" {
			return name
		}
	}
	parts := strings.Split(cd, `"`)
	if len(parts) >= 3 {
		return parts[1]
	}
	return ""
}
