// Package understat scrapes the JSON datasets embedded in understat.com pages.
//
// Every page carries its data as `var name = JSON.parse('...')` statements in
// inline <script> blocks, with the JSON text hex-escaped. The client fetches a
// page, locates the statement for a variable and returns the decoded JSON.
// Requests are rate limited with a token bucket.
package understat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public understat site.
const DefaultBaseURL = "https://understat.com"

// ErrVariableNotFound is returned when a page has no script assigning the
// requested variable.
var ErrVariableNotFound = errors.New("understat: variable not found")

// StatusError is returned when understat answers with a non-200 status.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("understat %s returned %d: %s", e.Path, e.StatusCode, e.Body)
}

// NotFound reports whether the page does not exist.
func (e *StatusError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// Client is the rate-limited HTTP client for understat pages.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates an understat client. requestsPerMinute <= 0 disables the
// limiter.
func NewClient(baseURL string, requestsPerMinute int, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Limit(float64(requestsPerMinute) / 60.0)
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

// Page is a fetched understat page.
type Page struct {
	Path    string
	scripts []string
}

// Fetch downloads a page and collects its inline scripts.
func (c *Client) Fetch(ctx context.Context, path string) (*Page, error) {
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	return ParsePage(path, body)
}

// ParsePage collects the inline scripts of an HTML document.
func ParsePage(path string, body []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	p := &Page{Path: path}
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		if text := s.Text(); strings.Contains(text, "JSON.parse") {
			p.scripts = append(p.scripts, text)
		}
	})
	return p, nil
}

var assignment = regexp.MustCompile(`(?s)var\s+([A-Za-z_$][\w$]*)\s*=\s*JSON\.parse\(\s*'((?:[^'\\]|\\.)*)'\s*\)`)

// Var returns the JSON assigned to name.
func (p *Page) Var(name string) ([]byte, error) {
	for _, script := range p.scripts {
		for _, m := range assignment.FindAllStringSubmatch(script, -1) {
			if m[1] != name {
				continue
			}
			out, err := unescapeJS(m[2])
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", p.Path, name, err)
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("%s %s (page has %s): %w",
		p.Path, name, strings.Join(p.Variables(), ", "), ErrVariableNotFound)
}

// Variables lists the names assigned with JSON.parse on the page.
func (p *Page) Variables() []string {
	var names []string
	for _, script := range p.scripts {
		for _, m := range assignment.FindAllStringSubmatch(script, -1) {
			names = append(names, m[1])
		}
	}
	return names
}

// variable fetches path and returns one variable from it.
func (c *Client) variable(ctx context.Context, path, name string) ([]byte, error) {
	page, err := c.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	return page.Var(name)
}

// get performs a rate-limited GET request for a page.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", "understat-wrangler/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Path: path, StatusCode: resp.StatusCode, Body: truncate(body, 200)}
	}

	c.logger.Debug("fetched page", "path", path, "bytes", len(body), "duration_ms", time.Since(start).Milliseconds())
	return body, nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
