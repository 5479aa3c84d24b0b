// Package extract pulls contact fields out of crawled pages, layering
// structured-markup parsing, deterministic regexes, and LLM extraction
// behind a single consensus merge.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	emailRe  = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	mailtoRe = regexp.MustCompile(`(?i)mailto:([^"'?\s<>]+)`)
	jsonLDRe = regexp.MustCompile(`(?is)<script[^>]+application/ld\+json[^>]*>(.*?)</script>`)

	phoneRes = []*regexp.Regexp{
		regexp.MustCompile(`\+7\s?\(?\d{3}\)?\s?\d{3}[- ]?\d{2}[- ]?\d{2}`),
		regexp.MustCompile(`8\s?\(?\d{3}\)?\s?\d{3}[- ]?\d{2}[- ]?\d{2}`),
	}

	// Comma-separated Cyrillic address shapes, most specific first, the way
	// Russian sites print postal addresses.
	addressRes = []*regexp.Regexp{
		regexp.MustCompile(`(?:г\.|город)\s*[А-Яа-яЁё\- ]+,\s*(?:ул\.|улица|пер\.|пр-т|проспект|ш\.|шоссе)\s*[А-Яа-яЁё\- ]+,?\s*(?:д\.)?\s*\d+[А-Яа-я]?`),
		regexp.MustCompile(`(?:ул\.|улица|пер\.|пр-т|проспект|ш\.|шоссе)\s*[А-Яа-яЁё\- ]+,?\s*(?:д\.)?\s*\d+[А-Яа-я]?`),
		regexp.MustCompile(`[А-Яа-яЁё\- ]{3,},\s*[А-Яа-яЁё\- ]{3,},\s*\d{1,4}`),
	}

	// Words that precede a printed address. The snippet following a label is
	// taken as a near-label address candidate.
	addressLabelRe = regexp.MustCompile(`(?i)(?:адрес|address)[:\s]+([^\n<]{10,120})`)

	leadingDigitsRe = regexp.MustCompile(`^\d{5,}`)
)

// labelPrefixes are words that sites glue directly onto an email when the
// markup collapses, e.g. "Emailinfo@hotel.ru" or "Почтаinfo@hotel.ru".
var labelPrefixes = []string{"e-mail", "email", "mail", "почта"}

// Emails extracts deduplicated, cleaned email addresses from text or HTML.
// Handles concatenated contact strings where a phone number or a label runs
// straight into the address without a separator.
func Emails(text string) []string {
	var out []string
	seen := make(map[string]bool)

	add := func(raw string) {
		e := cleanEmail(raw)
		if e == "" || seen[e] {
			return
		}
		seen[e] = true
		out = append(out, e)
	}

	for _, m := range mailtoRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range emailRe.FindAllString(text, -1) {
		add(m)
	}
	return out
}

// cleanEmail strips phone digits and label words glued onto the local part
// and validates the remainder against the email regex.
func cleanEmail(raw string) string {
	raw = strings.TrimSpace(strings.Trim(raw, ".,;:"))
	at := strings.LastIndex(raw, "@")
	if at <= 0 {
		return ""
	}
	local, domain := raw[:at], raw[at+1:]

	local = leadingDigitsRe.ReplaceAllString(local, "")
	lower := strings.ToLower(local)
	for _, p := range labelPrefixes {
		if strings.HasPrefix(lower, p) && len(local) > len(p) {
			local = local[len(p):]
			break
		}
	}

	candidate := local + "@" + domain
	if emailRe.FindString(candidate) != candidate {
		return ""
	}
	return strings.ToLower(candidate)
}

// ValidEmail reports whether s round-trips through the email extractor.
func ValidEmail(s string) bool {
	return s != "" && cleanEmail(s) == strings.ToLower(strings.TrimSpace(s))
}

// Phones extracts deduplicated phone numbers.
func Phones(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, re := range phoneRes {
		for _, m := range re.FindAllString(text, -1) {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// Addresses extracts postal address candidates: pattern matches first, then
// near-label snippets. Deduplicated, order preserved.
func Addresses(text string) []string {
	var out []string
	seen := make(map[string]bool)

	add := func(raw string) {
		a := strings.TrimSpace(strings.Trim(raw, ".,; "))
		if len([]rune(a)) < 8 || seen[a] {
			return
		}
		seen[a] = true
		out = append(out, a)
	}

	for _, re := range addressRes {
		for _, m := range re.FindAllString(text, -1) {
			add(m)
		}
	}
	for _, m := range addressLabelRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	return out
}

// ValidAddress reports whether s re-parses via the address patterns.
func ValidAddress(s string) bool {
	for _, re := range addressRes {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// HasContactMarker reports whether the text carries any phone/email/tax-ID/
// copyright indicator, used as a registry signal during ranking.
func HasContactMarker(text string) bool {
	if len(Emails(text)) > 0 || len(Phones(text)) > 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, marker := range []string{"инн", "огрн", "©", "тел.", "телефон", "e-mail", "email"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// StructuredContacts holds what the JSON-LD walk found.
type StructuredContacts struct {
	Emails    []string
	Addresses []string
}

// JSONLD parses application/ld+json script blocks and collects email fields
// and PostalAddress objects (assembled street, locality, region, postal
// code, country — joined with commas). Malformed blocks are skipped.
func JSONLD(html string) StructuredContacts {
	var found StructuredContacts
	for _, m := range jsonLDRe.FindAllStringSubmatch(html, -1) {
		var doc any
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &doc); err != nil {
			continue
		}
		walkJSONLD(doc, &found)
	}
	return found
}

func walkJSONLD(node any, found *StructuredContacts) {
	switch v := node.(type) {
	case map[string]any:
		if email, ok := v["email"].(string); ok {
			if e := cleanEmail(email); e != "" {
				found.Emails = append(found.Emails, e)
			}
		}
		if addr, ok := v["address"].(map[string]any); ok {
			if s := assemblePostalAddress(addr); s != "" {
				found.Addresses = append(found.Addresses, s)
			}
		}
		for k, child := range v {
			if k == "address" {
				continue
			}
			walkJSONLD(child, found)
		}
	case []any:
		for _, child := range v {
			walkJSONLD(child, found)
		}
	}
}

func assemblePostalAddress(addr map[string]any) string {
	var parts []string
	for _, key := range []string{"streetAddress", "addressLocality", "addressRegion", "postalCode", "addressCountry"} {
		if s, ok := addr[key].(string); ok && strings.TrimSpace(s) != "" {
			parts = append(parts, strings.TrimSpace(s))
		}
	}
	return strings.Join(parts, ", ")
}
