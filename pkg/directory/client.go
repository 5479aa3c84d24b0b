// Package directory wraps the 2GIS catalog API as an optional first-pass
// source of contact data. A client constructed without an API key is
// disabled and returns nothing rather than failing.
package directory

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lodgescout/resolver-cli/internal/model"
)

// Client looks up an organization in a business directory.
type Client interface {
	// Lookup searches the directory for the organization in the locality.
	// A nil result with nil error means no match (or a disabled client).
	Lookup(ctx context.Context, orgName, locality string) (*model.ContactInfo, error)
	// Enabled reports whether the client is configured with an API key.
	Enabled() bool
}

// Option configures the client.
type Option func(*gisClient)

// WithBaseURL overrides the API endpoint (for testing).
func WithBaseURL(u string) Option {
	return func(c *gisClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *gisClient) { c.http = hc }
}

type gisClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a directory client. An empty apiKey yields a
// disabled client whose Lookup always returns nil.
func NewClient(apiKey string, timeout time.Duration, opts ...Option) Client {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	c := &gisClient{
		apiKey:  apiKey,
		baseURL: "https://catalog.api.2gis.com/3.0",
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *gisClient) Enabled() bool { return c.apiKey != "" }

type gisResponse struct {
	Result struct {
		Items []gisItem `json:"items"`
	} `json:"result"`
}

type gisItem struct {
	Name        string `json:"name"`
	AddressName string `json:"address_name"`
	AdmDiv      []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"adm_div"`
	ContactGroups []struct {
		Contacts []struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"contacts"`
	} `json:"contact_groups"`
}

func (c *gisClient) Lookup(ctx context.Context, orgName, locality string) (*model.ContactInfo, error) {
	if !c.Enabled() {
		return nil, nil
	}

	q := url.Values{}
	q.Set("q", orgName+" "+locality)
	q.Set("fields", "items.contact_groups,items.address,items.adm_div")
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/items?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "directory: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "directory: request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "directory: read response")
	}
	// The catalog returns 404 when nothing matches the query.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("directory: status %d: %s", resp.StatusCode, string(body))
	}

	var parsed gisResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "directory: unmarshal response")
	}
	if len(parsed.Result.Items) == 0 {
		return nil, nil
	}

	info := itemToContact(parsed.Result.Items[0])
	if info.Email == "" && info.Phone == "" && info.Address == "" {
		return nil, nil
	}
	zap.L().Debug("directory: match found",
		zap.String("org", orgName),
		zap.Bool("has_email", info.Email != ""),
		zap.Bool("has_address", info.Address != ""))
	return info, nil
}

func itemToContact(item gisItem) *model.ContactInfo {
	info := &model.ContactInfo{Source: model.SourceDirectory}

	for _, group := range item.ContactGroups {
		for _, contact := range group.Contacts {
			switch contact.Type {
			case "email":
				if info.Email == "" {
					info.Email = strings.TrimSpace(contact.Value)
				}
			case "phone":
				if info.Phone == "" {
					info.Phone = strings.TrimSpace(contact.Value)
				}
			case "website":
				if info.Website == "" {
					info.Website = strings.TrimSpace(contact.Value)
				}
			}
		}
	}

	if item.AddressName != "" {
		parts := []string{}
		for _, div := range item.AdmDiv {
			if div.Type == "city" || div.Type == "settlement" {
				parts = append(parts, div.Name)
			}
		}
		parts = append(parts, item.AddressName)
		info.Address = strings.Join(parts, ", ")
	}
	return info
}
