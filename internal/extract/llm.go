package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lodgescout/resolver-cli/pkg/anthropic"
)

// chunkSize bounds how much crawled text goes into one extraction prompt.
const chunkSize = 4000

const llmPrompt = `Find the contact email address and postal address of the accommodation business in the text below.

The text is scraped from a website and may be messy: contact strings can be obfuscated or concatenated without separators (for example a phone number running straight into an email, "79281234567info@hotel.ru" — the email there is "info@hotel.ru"). Ignore phone numbers. The text may be in Russian or English.

Return a single JSON object and nothing else:
{"email": "<email or empty string>", "address": "<postal address or empty string>"}

Text:
%s`

// llmContacts is the JSON shape the model is asked to return.
type llmContacts struct {
	Email   string `json:"email"`
	Address string `json:"address"`
}

// LLMExtractor asks the model for contacts chunk by chunk, validating every
// answer against the deterministic regex layer before accepting it.
type LLMExtractor struct {
	client      anthropic.Client
	maxTokens   int64
	temperature float64
}

// NewLLMExtractor creates an LLMExtractor. A nil client disables the layer.
func NewLLMExtractor(client anthropic.Client, maxTokens int64, temperature float64) *LLMExtractor {
	if maxTokens == 0 {
		maxTokens = 800
	}
	return &LLMExtractor{client: client, maxTokens: maxTokens, temperature: temperature}
}

// Extract submits chunks of text until one yields a non-empty validated
// field. Footers and contact blocks usually trail the page, so for long
// texts the last chunk goes first, then the first. Malformed model output
// counts as a non-match for that chunk, never an error.
func (e *LLMExtractor) Extract(ctx context.Context, text string) (email, address string) {
	if e.client == nil || strings.TrimSpace(text) == "" {
		return "", ""
	}

	for _, chunk := range Chunks(text) {
		raw, err := e.client.Complete(ctx, fmt.Sprintf(llmPrompt, chunk), e.maxTokens, e.temperature)
		if err != nil {
			zap.L().Warn("extract: llm call failed", zap.Error(err))
			continue
		}

		var parsed llmContacts
		if err := json.Unmarshal([]byte(cleanJSON(raw)), &parsed); err != nil {
			zap.L().Debug("extract: llm returned malformed json", zap.Error(err))
			continue
		}

		email, address = validateLLMContacts(parsed)
		if email != "" || address != "" {
			return email, address
		}
	}
	return "", ""
}

// validateLLMContacts re-runs the model's answers through the regex layer.
// An email must round-trip the email extractor; an address must re-parse
// via the address patterns or at least be a plausibly long free-text string.
func validateLLMContacts(parsed llmContacts) (email, address string) {
	if es := Emails(parsed.Email); len(es) > 0 {
		email = es[0]
	}
	addr := strings.TrimSpace(parsed.Address)
	if addr != "" && (ValidAddress(addr) || len([]rune(addr)) >= 10) {
		address = addr
	}
	return email, address
}

// Chunks splits text for prompting: the whole text if it fits, otherwise
// the trailing chunk first, then the leading one.
func Chunks(text string) []string {
	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}
	return []string{
		string(runes[len(runes)-chunkSize:]),
		string(runes[:chunkSize]),
	}
}

// cleanJSON extracts a JSON object from text that may contain markdown code
// fences or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
