package crawl

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgescout/resolver-cli/internal/model"
)

// recordingServer serves canned HTML per path and records every request.
type recordingServer struct {
	mu       sync.Mutex
	requests []string
	pages    map[string]string
	srv      *httptest.Server
}

func newRecordingServer(pages map[string]string) *recordingServer {
	rs := &recordingServer{pages: pages}
	rs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		rs.requests = append(rs.requests, r.URL.Path)
		rs.mu.Unlock()

		body, ok := rs.pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	return rs
}

func (rs *recordingServer) requestCount() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.requests)
}

func (rs *recordingServer) requested(path string) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, p := range rs.requests {
		if p == path {
			return true
		}
	}
	return false
}

func testCrawler(maxPages, maxDepth int) *Crawler {
	fetcher := NewFetcher(5*time.Second, "test-agent", 0)
	return NewCrawler(fetcher, maxPages, maxDepth)
}

// localhostURL rewrites an httptest 127.0.0.1 URL to localhost so it has
// a different root domain from a second httptest server.
func localhostURL(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	return "http://localhost:" + port
}

func TestCrawl_NeverLeavesRootDomain(t *testing.T) {
	external := newRecordingServer(map[string]string{
		"/x": "<html><body>external</body></html>",
	})
	defer external.srv.Close()

	site := newRecordingServer(map[string]string{
		"/": fmt.Sprintf(`<html><body>
			<a href="/rooms">rooms</a>
			<a href="%s/x">partner</a>
		</body></html>`, external.srv.URL),
		"/rooms": "<html><body>rooms</body></html>",
	})
	defer site.srv.Close()

	c := testCrawler(20, 2)
	c.Crawl(context.Background(), localhostURL(t, site.srv.URL))

	assert.True(t, site.requested("/rooms"))
	assert.Zero(t, external.requestCount(), "crawler must stay on the seed's root domain")
}

func TestCrawl_PageBudgetIsFetchAttempts(t *testing.T) {
	site := newRecordingServer(map[string]string{
		"/": `<html><body><a href="/a">a</a><a href="/b">b</a></body></html>`,
	})
	defer site.srv.Close()

	c := testCrawler(3, 2)
	c.Crawl(context.Background(), site.srv.URL)

	// Contact path guesses 404 but still consume budget.
	assert.Equal(t, 3, site.requestCount())
}

func TestCrawl_DepthLimitNotExpanded(t *testing.T) {
	site := newRecordingServer(map[string]string{
		"/":     `<html><body><a href="/level1">next</a></body></html>`,
		"/deep": "<html><body>too far</body></html>",
		"/level1": `<html><body><a href="/deep">deeper</a></body></html>`,
	})
	defer site.srv.Close()

	c := testCrawler(30, 1)
	c.Crawl(context.Background(), site.srv.URL)

	// Depth-1 pages are fetched but their links are not followed.
	assert.True(t, site.requested("/level1"))
	assert.False(t, site.requested("/deep"))
}

func TestCrawl_SeedsContactGuesses(t *testing.T) {
	site := newRecordingServer(map[string]string{
		"/":         "<html><body>home, no links</body></html>",
		"/contacts": "<html><body>info@hotel.ru</body></html>",
	})
	defer site.srv.Close()

	c := testCrawler(20, 1)
	pages := c.Crawl(context.Background(), site.srv.URL)

	// The contacts page has no inbound link yet is still fetched.
	assert.True(t, site.requested("/contacts"))
	require.Len(t, pages, 2)
}

func TestCrawl_FetchFailureContinues(t *testing.T) {
	site := newRecordingServer(map[string]string{
		"/":     `<html><body><a href="/gone"></a><a href="/ok"></a></body></html>`,
		"/ok":   "<html><body>fine</body></html>",
	})
	defer site.srv.Close()

	c := testCrawler(20, 1)
	pages := c.Crawl(context.Background(), site.srv.URL)

	assert.True(t, site.requested("/gone"))
	var urls []string
	for _, p := range pages {
		urls = append(urls, p.URL)
	}
	assert.Contains(t, urls, site.srv.URL+"/ok")
}

func TestSortContactFirst(t *testing.T) {
	links := []string{
		"https://hotel.ru/very/long/path/to/rooms",
		"https://hotel.ru/news",
		"https://hotel.ru/kontakty",
	}
	sortContactFirst(links)
	assert.Equal(t, "https://hotel.ru/kontakty", links[0])
	// Non-contact links order by length.
	assert.Equal(t, "https://hotel.ru/news", links[1])
}

func TestRootDomain(t *testing.T) {
	assert.Equal(t, "hotel.ru", RootDomain("www.hotel.ru"))
	assert.Equal(t, "hotel.ru", RootDomain("booking.hotel.ru"))
	assert.Equal(t, "hotel.ru", RootDomain("hotel.ru"))
	assert.Equal(t, "hotel.ru", RootDomain("HOTEL.RU:8080"))
	assert.Equal(t, "localhost", RootDomain("localhost:3000"))
}

func TestFilterScope(t *testing.T) {
	links := []string{
		"https://www.hotel.ru/a",
		"https://other.ru/b",
		"https://booking.hotel.ru/c",
	}
	out := filterScope(links, "hotel.ru")
	assert.Equal(t, []string{"https://www.hotel.ru/a", "https://booking.hotel.ru/c"}, out)
}

func TestExtractLinks(t *testing.T) {
	html := `<html><body>
		<a href="/rooms">rooms</a>
		<a href="#top">top</a>
		<a href="mailto:info@hotel.ru">mail</a>
		<a href="javascript:void(0)">js</a>
		<a href="https://hotel.ru/spa#prices">spa</a>
		<a href="/rooms">dup</a>
	</body></html>`

	links := ExtractLinks(html, "https://hotel.ru/")
	assert.Equal(t, []string{
		"https://hotel.ru/rooms",
		"https://hotel.ru/spa",
	}, links)
}

func TestText_JoinsInVisitationOrder(t *testing.T) {
	pages := []model.FetchedPage{
		{Text: "first"},
		{Text: ""},
		{Text: "second"},
	}
	assert.Equal(t, "first\nsecond", Text(pages))
}
