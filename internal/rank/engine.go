// Package rank implements the candidate ranking engine: given an
// organization name and a locality, it selects at most one website URL
// believed to be the organization's official site.
package rank

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/lodgescout/resolver-cli/internal/config"
	"github.com/lodgescout/resolver-cli/internal/crawl"
	"github.com/lodgescout/resolver-cli/internal/extract"
	"github.com/lodgescout/resolver-cli/internal/model"
	"github.com/lodgescout/resolver-cli/internal/normalize"
	"github.com/lodgescout/resolver-cli/pkg/anthropic"
	"github.com/lodgescout/resolver-cli/pkg/directory"
	"github.com/lodgescout/resolver-cli/pkg/websearch"
)

// Engine scores and selects website candidates.
type Engine struct {
	search    websearch.Client
	directory directory.Client
	fetcher   *crawl.Fetcher
	llm       anthropic.Client
	lists     WordLists
	blocked   map[string]bool
	cfg       config.RankConfig
}

// NewEngine creates an Engine. directory and llm may be nil; the engine
// then skips the structured lookup and the tie-break respectively.
func NewEngine(search websearch.Client, dir directory.Client, fetcher *crawl.Fetcher, llm anthropic.Client, lists WordLists, cfg config.RankConfig) *Engine {
	if cfg.MaxCheckedPages == 0 {
		cfg.MaxCheckedPages = 10
	}
	if cfg.ScoreThreshold == 0 {
		cfg.ScoreThreshold = 3
	}
	return &Engine{
		search:    search,
		directory: dir,
		fetcher:   fetcher,
		llm:       llm,
		lists:     lists,
		blocked:   lists.blockedSet(),
		cfg:       cfg,
	}
}

// Resolve returns the most likely official website URL for the
// organization, or "" when no candidate qualifies. Only hard
// collaborator failures surface as errors; a mere lack of candidates
// is a "" result.
func (e *Engine) Resolve(ctx context.Context, name, location string) (string, error) {
	// Structured data is trusted over heuristic search.
	if e.directory != nil && e.directory.Enabled() {
		info, err := e.directory.Lookup(ctx, name, location)
		if err != nil {
			zap.L().Warn("rank: directory lookup failed",
				zap.String("org", name), zap.Error(err))
		} else if info != nil && info.Website != "" && !e.isBlocked(info.Website) {
			return info.Website, nil
		}
	}

	urls, err := e.gatherResults(ctx, name, location)
	if err != nil {
		return "", err
	}
	if len(urls) == 0 {
		return "", nil
	}

	candidates := e.scoreCandidates(ctx, urls, name, location)
	if len(candidates) == 0 {
		return "", nil
	}

	// Highest score wins; ties break by first-seen order, which the
	// stable query sequence makes deterministic.
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	if best.Score >= e.cfg.ScoreThreshold {
		zap.L().Info("rank: candidate selected",
			zap.String("org", name),
			zap.String("url", best.URL),
			zap.Int("score", best.Score))
		return best.URL, nil
	}

	return e.tieBreak(ctx, name, location, candidates)
}

// gatherResults runs the query permutations and returns candidate URLs,
// deduplicated by root domain with aggregators removed, in first-seen
// order.
func (e *Engine) gatherResults(ctx context.Context, name, location string) ([]model.Candidate, error) {
	var out []model.Candidate
	seenDomains := make(map[string]bool)

	for _, query := range e.buildQueries(name, location) {
		results, err := e.search.Search(ctx, query, e.cfg.MaxCheckedPages)
		if err != nil {
			zap.L().Warn("rank: search query failed",
				zap.String("query", query), zap.Error(err))
			continue
		}
		for _, r := range results {
			u, err := url.Parse(r.URL)
			if err != nil || u.Host == "" {
				continue
			}
			root := crawl.RootDomain(u.Host)
			if e.blocked[root] || seenDomains[root] {
				continue
			}
			seenDomains[root] = true
			out = append(out, model.Candidate{URL: r.URL, Title: r.Title})
		}
		if len(out) >= e.cfg.MaxCheckedPages {
			break
		}
	}

	if len(out) > e.cfg.MaxCheckedPages {
		out = out[:e.cfg.MaxCheckedPages]
	}
	return out, nil
}

// buildQueries produces the fixed query sequence from name/location
// permutations combined with the "official site" phrases.
func (e *Engine) buildQueries(name, location string) []string {
	translitName := normalize.Transliterate(name)
	translitLoc := normalize.Transliterate(location)

	var queries []string
	seen := make(map[string]bool)
	add := func(q string) {
		q = strings.TrimSpace(spaceCollapse(q))
		if q == "" || seen[q] {
			return
		}
		seen[q] = true
		queries = append(queries, q)
	}

	for _, phrase := range e.lists.OfficialPhrases {
		add(name + " " + location + " " + phrase)
	}
	add(name + " " + location)
	if translitName != name {
		add(translitName + " " + translitLoc)
	}
	for _, phrase := range e.lists.OfficialPhrases {
		add(name + " " + phrase)
	}
	return queries
}

// scoreCandidates fetches and scores each candidate. A fetch failure
// skips that candidate; the loop always advances.
func (e *Engine) scoreCandidates(ctx context.Context, candidates []model.Candidate, name, location string) []model.Candidate {
	tokens := normalize.Tokens(name)

	scored := make([]model.Candidate, 0, len(candidates))
	for i := range candidates {
		c := candidates[i]

		page, err := e.fetcher.Fetch(ctx, c.URL)
		if err != nil {
			zap.L().Debug("rank: candidate fetch failed",
				zap.String("url", c.URL), zap.Error(err))
			// Unfetchable candidates still participate with whatever
			// the search result itself gives us.
			c.Score = e.scoreStatic(&c, tokens, location)
			scored = append(scored, c)
			continue
		}
		if page.Title != "" {
			c.Title = page.Title
		}
		c.PageText = page.Text

		c.Score = e.scoreStatic(&c, tokens, location)
		c.Score += e.scorePage(&c, location, page.HTML)

		if probeOK := e.probe(ctx, c.URL, location); probeOK {
			c.ContactPageFound = true
			c.Score += 6
		}
		scored = append(scored, c)
	}
	return scored
}

// scoreStatic scores the signals available without page content beyond
// the title: name tokens, location transliteration, "official" marker.
func (e *Engine) scoreStatic(c *model.Candidate, tokens []string, location string) int {
	score := 0
	title := normalize.Text(c.Title)
	lowURL := strings.ToLower(c.URL)
	lastSegment := lastPathSegment(lowURL)

	for _, tok := range tokens {
		if strings.Contains(title, tok) {
			score += 2
		}
		translit := normalize.Transliterate(tok)
		if strings.Contains(lastSegment, translit) || pathContains(lowURL, translit) {
			score++
		}
	}

	translitLoc := strings.ToLower(normalize.Transliterate(normalize.Locality(location)))
	if translitLoc != "" && strings.Contains(lowURL, translitLoc) {
		score += 3
	}

	for _, word := range e.lists.OfficialWords {
		if strings.Contains(title, word) {
			score += 2
			break
		}
	}
	return score
}

// scorePage scores content signals: location mention, contact markers,
// contact links.
func (e *Engine) scorePage(c *model.Candidate, location string, html string) int {
	score := 0
	text := normalize.Text(c.PageText)

	if loc := normalize.Locality(location); loc != "" && strings.Contains(text, loc) {
		score++
	}
	if extract.HasContactMarker(c.PageText) {
		score += 2
	}
	if e.hasContactLink(html, c.URL) {
		score += 2
	}
	return score
}

// hasContactLink reports whether the page exposes any link whose URL
// matches a contact-page keyword.
func (e *Engine) hasContactLink(html, pageURL string) bool {
	for _, link := range crawl.ExtractLinks(html, pageURL) {
		low := strings.ToLower(link)
		for _, kw := range e.lists.ContactKeywords {
			if strings.Contains(low, kw) {
				return true
			}
		}
	}
	return false
}

func (e *Engine) isBlocked(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	return e.blocked[crawl.RootDomain(u.Host)]
}

func lastPathSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	path := strings.TrimRight(u.Path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func pathContains(rawURL, token string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || token == "" {
		return false
	}
	for _, seg := range strings.Split(strings.Trim(u.Path, "/"), "/") {
		if strings.Contains(seg, token) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(u.Host), token)
}

var collapseRe = strings.NewReplacer("\t", " ", "\n", " ")

func spaceCollapse(s string) string {
	s = collapseRe.Replace(s)
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return s
}
