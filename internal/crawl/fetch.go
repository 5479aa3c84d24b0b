package crawl

import (
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/lodgescout/resolver-cli/internal/model"
)

// Fetcher retrieves single pages with a shared timeout, user agent, and
// rate limit.
type Fetcher struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewFetcher creates a Fetcher. ratePerSec <= 0 disables rate limiting.
func NewFetcher(timeout time.Duration, userAgent string, ratePerSec float64) *Fetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	var limiter *rate.Limiter
	if ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}
	return &Fetcher{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		limiter:   limiter,
		userAgent: userAgent,
	}
}

// Fetch downloads one page and returns its decoded HTML, extracted title,
// and visible text.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*model.FetchedPage, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "crawl: rate limit wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "crawl: create request")
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "crawl: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("crawl: status %d for %s", resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, eris.Wrap(err, "crawl: read body")
	}

	html := decodeBody(body, resp.Header.Get("Content-Type"))
	title, text := parsePage(html)

	return &model.FetchedPage{
		URL:        pageURL,
		Title:      title,
		Text:       text,
		HTML:       html,
		StatusCode: resp.StatusCode,
	}, nil
}

// decodeBody converts a response body to UTF-8 using the charset declared in
// the Content-Type header. Russian hotel sites still serve windows-1251.
func decodeBody(body []byte, contentType string) string {
	if contentType != "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil {
			if cs := params["charset"]; cs != "" && !strings.EqualFold(cs, "utf-8") {
				if enc, err := htmlindex.Get(cs); err == nil {
					if decoded, err := enc.NewDecoder().Bytes(body); err == nil {
						return string(decoded)
					}
				}
			}
		}
	}
	return string(body)
}

var spaceRe = regexp.MustCompile(`[ \t]+`)
var blankRe = regexp.MustCompile(`\n{3,}`)

// parsePage extracts the title and the visible text of an HTML document,
// dropping script, style, and noscript subtrees. Nav and footer text is
// kept: contact blocks usually live there.
func parsePage(html string) (title, text string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ""
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, noscript").Remove()
	raw := doc.Find("body").Text()
	if raw == "" {
		raw = doc.Text()
	}

	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = spaceRe.ReplaceAllString(strings.TrimSpace(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	text = blankRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return title, text
}

// ExtractLinks returns the absolute, fragment-stripped URLs of all anchors
// in the document that resolve against pageURL.
func ExtractLinks(html, pageURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, err := parseURL(pageURL)
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") {
			return
		}
		ref, err := parseURL(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		link := abs.String()
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	})
	return links
}
