// Package websearch provides the web-search collaborator, backed by a
// Jina-style search API that returns JSON results for a query path.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the search operations used by the ranking engine.
type Client interface {
	// Search runs one query and returns up to maxResults result URLs,
	// deduplicated by (domain, path) and with blocked root domains removed.
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Result is a single search hit.
type Result struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// searchResponse is the provider's wire format.
type searchResponse struct {
	Code int      `json:"code"`
	Data []Result `json:"data"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithBlockedRootDomains removes results whose root domain is listed.
func WithBlockedRootDomains(domains []string) Option {
	return func(c *httpClient) {
		c.blocked = make(map[string]bool, len(domains))
		for _, d := range domains {
			c.blocked[strings.ToLower(d)] = true
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	blocked map[string]bool
}

// NewClient creates a search client.
func NewClient(apiKey string, timeout time.Duration, opts ...Option) Client {
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://s.jina.ai",
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatusCode returns true if the HTTP status should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes a request with exponential backoff on transient failures.
func (c *httpClient) retryDo(ctx context.Context, req *http.Request) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.http.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if readErr != nil {
				return nil, resp.StatusCode, eris.Wrap(readErr, "websearch: read response body")
			}
			if !retryableStatusCode(resp.StatusCode) {
				return body, resp.StatusCode, nil
			}
			lastErr = eris.Errorf("websearch: status %d: %s", resp.StatusCode, string(body))
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return nil, 0, lastErr
}

func (c *httpClient) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	reqURL := fmt.Sprintf("%s/%s", c.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "websearch: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	body, statusCode, err := c.retryDo(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "websearch: request failed")
	}

	// The provider returns 422 when no results exist for the query.
	if statusCode == http.StatusUnprocessableEntity {
		return nil, nil
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("websearch: unexpected status %d: %s", statusCode, string(body))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "websearch: unmarshal response")
	}

	return c.filter(parsed.Data, maxResults), nil
}

// filter deduplicates by (domain, path) ignoring fragments and drops
// blocked root domains, preserving result order.
func (c *httpClient) filter(results []Result, maxResults int) []Result {
	var out []Result
	seen := make(map[string]bool)

	for _, r := range results {
		u, err := url.Parse(r.URL)
		if err != nil || u.Host == "" {
			continue
		}
		if c.blocked[rootDomain(u.Host)] {
			continue
		}
		key := strings.ToLower(u.Host) + strings.TrimRight(u.Path, "/")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
		if maxResults > 0 && len(out) >= maxResults {
			break
		}
	}
	return out
}

// rootDomain returns the last two DNS labels of a hostname.
func rootDomain(host string) string {
	host = strings.ToLower(host)
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
