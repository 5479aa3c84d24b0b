package model

import "time"

// Candidate is an ephemeral scoring record for one website guess. It lives
// only for the duration of a single resolution call.
type Candidate struct {
	URL              string `json:"url"`
	Title            string `json:"title"`
	PageText         string `json:"page_text"`
	Score            int    `json:"score"`
	ContactPageFound bool   `json:"contact_page_found"`
}

// FetchedPage is one successfully fetched page from a crawl.
type FetchedPage struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Text       string `json:"text"`
	HTML       string `json:"html,omitempty"`
	StatusCode int    `json:"status_code"`
}

// PageCache is a TTL'd cached crawl result keyed by the seed URL.
type PageCache struct {
	ID        string        `json:"id"`
	SeedURL   string        `json:"seed_url"`
	Pages     []FetchedPage `json:"pages"`
	CrawledAt time.Time     `json:"crawled_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Contact source labels, in decreasing order of trust.
const (
	SourceDirectory  = "directory"
	SourceStructured = "structured"
	SourceRegex      = "regex"
	SourceLLM        = "llm"
)

// ContactInfo is the output of the extraction consensus for one site.
type ContactInfo struct {
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address"`
	Website string `json:"website,omitempty"`
	Source  string `json:"source,omitempty"`
}
