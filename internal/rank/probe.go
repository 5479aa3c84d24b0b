package rank

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/lodgescout/resolver-cli/internal/extract"
	"github.com/lodgescout/resolver-cli/internal/normalize"
)

// probePaths are likely contact-page locations tried off the site root.
var probePaths = []string{
	"/contacts", "/contact", "/kontakty", "/контакты", "/about", "/o-nas",
}

// probe checks whether the candidate site exposes a real contact page.
// A probe succeeds only when a probed page yields at least one contact
// datum via the deterministic extractors, and — unless disabled by
// configuration — also mentions the target location. The double
// condition guards against generic "About" pages of sites in other
// cities.
func (e *Engine) probe(ctx context.Context, candidateURL, location string) bool {
	u, err := url.Parse(candidateURL)
	if err != nil || u.Host == "" {
		return false
	}
	base := u.Scheme + "://" + u.Host

	loc := normalize.Locality(location)
	for _, path := range probePaths {
		if ctx.Err() != nil {
			return false
		}
		page, err := e.fetcher.Fetch(ctx, base+path)
		if err != nil {
			continue
		}

		hasContact := len(extract.Emails(page.HTML+"\n"+page.Text)) > 0 ||
			len(extract.Phones(page.Text)) > 0 ||
			len(extract.Addresses(page.Text)) > 0
		if !hasContact {
			continue
		}

		if e.cfg.ProbeRequireLocation && loc != "" &&
			!strings.Contains(normalize.Text(page.Text), loc) {
			// Contact data without the target city: keep trying the
			// remaining paths rather than rejecting outright.
			continue
		}

		zap.L().Debug("rank: contact probe succeeded",
			zap.String("url", base+path))
		return true
	}
	return false
}
