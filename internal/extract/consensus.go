package extract

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/lodgescout/resolver-cli/internal/model"
)

// Consensus merges contact fields from the three source layers with fixed
// precedence: structured directory data, then regex/structured markup over
// crawled pages, then LLM extraction. A later layer never clears a field an
// earlier layer set, and the LLM runs only while email is still missing.
type Consensus struct {
	llm *LLMExtractor
}

// NewConsensus creates a Consensus. llm may be nil to disable the model layer.
func NewConsensus(llm *LLMExtractor) *Consensus {
	return &Consensus{llm: llm}
}

// Resolve produces the best-available contact fields for one site.
// directory is the structured lookup result, possibly nil; pages are the
// crawled pages in visitation order.
func (c *Consensus) Resolve(ctx context.Context, directory *model.ContactInfo, pages []model.FetchedPage) model.ContactInfo {
	var result model.ContactInfo

	// Layer 1: structured directory data is trusted as-is.
	if directory != nil {
		result.Address = strings.TrimSpace(directory.Address)
		result.Phone = strings.TrimSpace(directory.Phone)
		if ValidEmail(directory.Email) {
			result.Email = strings.ToLower(strings.TrimSpace(directory.Email))
			result.Source = model.SourceDirectory
			// Both fields resolved from the directory: nothing left to do.
			if result.Address != "" {
				return result
			}
		}
		if result.Address != "" && result.Source == "" {
			result.Source = model.SourceDirectory
		}
	}

	// Layer 2: structured markup first, then regexes, per page in order.
	for _, page := range pages {
		structured := JSONLD(page.HTML)
		if result.Email == "" && len(structured.Emails) > 0 {
			result.Email = structured.Emails[0]
			result.Source = model.SourceStructured
		}
		if result.Address == "" && len(structured.Addresses) > 0 {
			result.Address = structured.Addresses[0]
		}

		if result.Email == "" {
			if es := Emails(page.HTML + "\n" + page.Text); len(es) > 0 {
				result.Email = es[0]
				result.Source = model.SourceRegex
			}
		}
		if result.Address == "" {
			if as := Addresses(page.Text); len(as) > 0 {
				result.Address = as[0]
			}
		}
		if result.Phone == "" {
			if ps := Phones(page.Text); len(ps) > 0 {
				result.Phone = ps[0]
			}
		}
		if result.Email != "" && result.Address != "" {
			return result
		}
	}

	// Layer 3: LLM, only while email is still missing.
	if result.Email == "" && c.llm != nil {
		var b strings.Builder
		for _, page := range pages {
			b.WriteString(page.Text)
			b.WriteString("\n")
		}
		email, address := c.llm.Extract(ctx, b.String())
		if email != "" {
			result.Email = email
			result.Source = model.SourceLLM
		}
		if result.Address == "" && address != "" {
			result.Address = address
		}
		if email != "" || address != "" {
			zap.L().Debug("extract: llm layer contributed",
				zap.Bool("email", email != ""),
				zap.Bool("address", address != ""),
			)
		}
	}

	return result
}
