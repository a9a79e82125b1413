// Package flakehub is a small client for the FlakeHub registry API.
package flakehub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tliron/commonlog"
)

const (
	DefaultAPIAddr      = "https://api.flakehub.com"
	DefaultFrontendAddr = "https://flakehub.com"
	DefaultUserAgent    = "flakeedit"
)

var log = commonlog.GetLogger("flakeedit.flakehub")

// Project is the canonical identity of a flake release.
type Project struct {
	Name string `json:"project"`
	URL  string `json:"pretty_download_url"`
}

// SearchResult is one hit returned by Search.
type SearchResult struct {
	Org         string   `json:"org"`
	Project     string   `json:"project"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Name returns org/project.
func (r SearchResult) Name() string { return r.Org + "/" + r.Project }

// URL returns the page for the flake on the given frontend.
func (r SearchResult) URL(frontend string) string {
	return strings.TrimRight(frontend, "/") + "/flake/" + r.Org + "/" + r.Project
}

// StatusError is a non-2xx response. Body is the response body as sent by the server.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("flakehub: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("flakehub: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), body)
}

// Client talks to the registry API. The zero value is not usable; use NewClient.
type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient returns a client for the API rooted at apiAddr.
func NewClient(apiAddr string, opts ...Option) (*Client, error) {
	if apiAddr == "" {
		apiAddr = DefaultAPIAddr
	}
	base, err := url.Parse(apiAddr)
	if err != nil {
		return nil, fmt.Errorf("flakehub: invalid api address %q: %w", apiAddr, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("flakehub: invalid api address %q: missing scheme or host", apiAddr)
	}

	c := &Client{
		base:      base,
		http:      &http.Client{Timeout: 30 * time.Second},
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Resolve returns the canonical project name and download URL of org/repo. An empty
// version selects the latest release.
func (c *Client) Resolve(ctx context.Context, org, repo, version string) (*Project, error) {
	segs := []string{"f", org, repo}
	if version != "" {
		segs = []string{"version", org, repo, version}
	}

	var p Project
	if err := c.get(ctx, c.endpoint(segs, nil), &p); err != nil {
		return nil, err
	}
	if p.URL == "" {
		return nil, fmt.Errorf("flakehub: response for %s/%s has no download url", org, repo)
	}
	log.Debug("resolved flake", "org", org, "repo", repo, "version", version, "url", p.URL)
	return &p, nil
}

// Search queries the registry for flakes matching query.
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	var results []SearchResult
	if err := c.get(ctx, c.endpoint([]string{"search"}, url.Values{"q": {query}}), &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) endpoint(segs []string, query url.Values) string {
	u := *c.base
	path := strings.TrimRight(c.base.Path, "/")
	raw := strings.TrimRight(c.base.EscapedPath(), "/")
	for _, s := range segs {
		path += "/" + s
		raw += "/" + url.PathEscape(s)
	}
	u.Path, u.RawPath = path, raw
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("flakehub: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	log.Debug("request", "method", req.Method, "url", endpoint)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("flakehub: GET %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("flakehub: decoding response from %s: %w", endpoint, err)
	}
	return nil
}
