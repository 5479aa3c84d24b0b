// Package crawl implements the domain-scoped breadth-first crawler.
package crawl

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/lodgescout/resolver-cli/internal/model"
)

// contactPathGuesses are canonical contact/about paths probed off the root
// so contact pages are reachable even when nothing links to them.
var contactPathGuesses = []string{
	"/contacts", "/contact", "/kontakty", "/contact-us", "/about", "/o-nas", "/about-us",
}

// contactKeywords mark link paths that likely lead to contact details.
var contactKeywords = []string{
	"contact", "kontakt", "контакт", "about", "o-nas", "o_nas", "onas",
	"svyaz", "связ", "feedback", "rekvizit",
}

// visitKey identifies one processed node in the BFS.
type visitKey struct {
	url   string
	depth int
}

// queueItem is one pending node.
type queueItem struct {
	url   string
	depth int
}

// State is the explicit BFS bookkeeping for a single crawl call.
type State struct {
	Visited map[visitKey]bool
	Queue   []queueItem
}

// NewState seeds a crawl state with the root URL and the contact path
// guesses, all at depth zero.
func NewState(rootURL string) *State {
	s := &State{Visited: make(map[visitKey]bool)}
	s.push(rootURL, 0)

	if u, err := parseURL(rootURL); err == nil {
		base := u.Scheme + "://" + u.Host
		for _, p := range contactPathGuesses {
			s.push(base+p, 0)
		}
	}
	return s
}

func (s *State) push(rawURL string, depth int) {
	key := visitKey{url: rawURL, depth: depth}
	if s.Visited[key] {
		return
	}
	s.Visited[key] = true
	s.Queue = append(s.Queue, queueItem{url: rawURL, depth: depth})
}

func (s *State) pop() (queueItem, bool) {
	if len(s.Queue) == 0 {
		return queueItem{}, false
	}
	item := s.Queue[0]
	s.Queue = s.Queue[1:]
	return item, true
}

// Crawler walks one logical site breadth-first within page and depth
// budgets, preferring contact-looking links.
type Crawler struct {
	fetcher  *Fetcher
	maxPages int
	maxDepth int
}

// NewCrawler creates a Crawler.
func NewCrawler(fetcher *Fetcher, maxPages, maxDepth int) *Crawler {
	if maxPages <= 0 {
		maxPages = 10
	}
	if maxDepth < 0 {
		maxDepth = 0
	}
	return &Crawler{fetcher: fetcher, maxPages: maxPages, maxDepth: maxDepth}
}

// Crawl fetches up to maxPages pages reachable within maxDepth hops of
// seedURL, constrained to the seed's root domain. It returns the fetched
// pages in visitation order; a failed fetch logs and continues.
func (c *Crawler) Crawl(ctx context.Context, seedURL string) []model.FetchedPage {
	seedURL = ensureScheme(seedURL)
	seed, err := parseURL(seedURL)
	if err != nil {
		zap.L().Warn("crawl: bad seed url", zap.String("url", seedURL), zap.Error(err))
		return nil
	}
	scope := RootDomain(seed.Host)

	state := NewState(seedURL)
	var pages []model.FetchedPage

	// fetches counts attempts, not successes: the page budget is a budget
	// on network work.
	for fetches := 0; fetches < c.maxPages; {
		item, ok := state.pop()
		if !ok {
			break
		}
		fetches++

		page, err := c.fetcher.Fetch(ctx, item.url)
		if err != nil {
			zap.L().Debug("crawl: fetch failed", zap.String("url", item.url), zap.Error(err))
			continue
		}
		pages = append(pages, *page)

		// Nodes at the depth limit are fetched but not expanded.
		if item.depth >= c.maxDepth {
			continue
		}

		links := ExtractLinks(page.HTML, item.url)
		links = filterScope(links, scope)
		sortContactFirst(links)
		for _, link := range links {
			state.push(link, item.depth+1)
		}
	}

	zap.L().Info("crawl: done",
		zap.String("seed", seedURL),
		zap.Int("pages", len(pages)),
	)
	return pages
}

// Text joins the cleaned text of crawled pages with newlines, in
// visitation order.
func Text(pages []model.FetchedPage) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// filterScope keeps only links whose root domain matches the seed's.
func filterScope(links []string, scope string) []string {
	var out []string
	for _, link := range links {
		u, err := parseURL(link)
		if err != nil {
			continue
		}
		if RootDomain(u.Host) == scope {
			out = append(out, link)
		}
	}
	return out
}

// sortContactFirst orders links so contact-keyword paths come first, then
// shorter URLs, biasing the page budget toward high-value pages. The sort
// is stable so document order breaks remaining ties.
func sortContactFirst(links []string) {
	sort.SliceStable(links, func(i, j int) bool {
		ci, cj := isContactLink(links[i]), isContactLink(links[j])
		if ci != cj {
			return ci
		}
		return len(links[i]) < len(links[j])
	})
}

func isContactLink(link string) bool {
	lower := strings.ToLower(link)
	for _, kw := range contactKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// RootDomain returns the last two DNS labels of a hostname, the unit used
// for same-site and blocklist comparisons.
func RootDomain(host string) string {
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

func ensureScheme(raw string) string {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "https://" + raw
	}
	return raw
}

func parseURL(raw string) (*url.URL, error) {
	return url.Parse(raw)
}
