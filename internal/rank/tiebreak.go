package rank

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/lodgescout/resolver-cli/internal/crawl"
	"github.com/lodgescout/resolver-cli/internal/model"
)

const tieBreakPrompt = `You are selecting the official website of the organization "%s" located in "%s".

Candidates (url | title | score | contact page found):
%s
Rules:
- Prefer a second-level domain that matches the organization's brand name.
- Prefer a site whose contact page mentions the target city.
- Never pick booking platforms, map portals, social networks, or classifieds.
- If no candidate is plausibly the official site, answer NONE.

Answer with exactly one candidate URL from the list above, or the word NONE. No explanation.`

const tieBreakCandidates = 10

// tieBreak asks the model to pick among the top candidates when no score
// reaches the threshold. Anything but a well-formed URL from the
// presented list yields no selection.
func (e *Engine) tieBreak(ctx context.Context, name, location string, candidates []model.Candidate) (string, error) {
	if e.llm == nil || len(candidates) == 0 {
		return "", nil
	}

	top := make([]model.Candidate, len(candidates))
	copy(top, candidates)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Score > top[j].Score })
	if len(top) > tieBreakCandidates {
		top = top[:tieBreakCandidates]
	}

	allowed := make(map[string]string, len(top))
	var sb strings.Builder
	for _, c := range top {
		title := c.Title
		if r := []rune(title); len(r) > 80 {
			title = string(r[:80])
		}
		fmt.Fprintf(&sb, "- %s | %s | %d | %t\n", c.URL, title, c.Score, c.ContactPageFound)
		if u, err := url.Parse(c.URL); err == nil && u.Host != "" {
			allowed[crawl.RootDomain(u.Host)] = c.URL
		}
	}

	prompt := fmt.Sprintf(tieBreakPrompt, name, location, sb.String())
	resp, err := e.llm.Complete(ctx, prompt, 128, 0)
	if err != nil {
		zap.L().Warn("rank: tie-break call failed",
			zap.String("org", name), zap.Error(err))
		return "", nil
	}

	answer := strings.TrimSpace(resp)
	if answer == "" || strings.EqualFold(answer, "NONE") {
		return "", nil
	}
	// Tolerate surrounding prose by taking the first URL-looking token.
	for _, field := range strings.Fields(answer) {
		field = strings.Trim(field, `"'<>.,`)
		u, err := url.Parse(field)
		if err != nil || u.Scheme == "" || u.Host == "" {
			continue
		}
		if picked, ok := allowed[crawl.RootDomain(u.Host)]; ok {
			zap.L().Info("rank: tie-break selected",
				zap.String("org", name), zap.String("url", picked))
			return picked, nil
		}
	}
	return "", nil
}
