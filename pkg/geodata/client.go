// Package geodata discovers accommodation organizations around a locality
// using OpenStreetMap services: Nominatim for geocoding and Overpass for
// the tourism-object query itself.
package geodata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// Client looks up organization names around a locality.
type Client interface {
	// OrganizationNames geocodes the locality and queries accommodation
	// objects around it, growing the search radius until results appear
	// or the budget runs out.
	OrganizationNames(ctx context.Context, locality string) ([]string, error)
}

// Option configures the client.
type Option func(*osmClient)

// WithNominatimURL overrides the geocoder endpoint (for testing).
func WithNominatimURL(u string) Option {
	return func(c *osmClient) { c.nominatimURL = u }
}

// WithOverpassURL overrides the Overpass endpoint (for testing).
func WithOverpassURL(u string) Option {
	return func(c *osmClient) { c.overpassURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *osmClient) { c.http = hc }
}

// WithRadius sets the initial radius, growth factor, and maximum radius
// in meters for the widening search.
func WithRadius(initial, max float64, growth float64) Option {
	return func(c *osmClient) {
		c.initialRadius = initial
		c.maxRadius = max
		c.growth = growth
	}
}

type osmClient struct {
	nominatimURL  string
	overpassURL   string
	http          *http.Client
	userAgent     string
	initialRadius float64
	maxRadius     float64
	growth        float64
}

// NewClient creates a geodata client.
func NewClient(userAgent string, timeout time.Duration, opts ...Option) Client {
	if timeout == 0 {
		timeout = 45 * time.Second
	}
	c := &osmClient{
		nominatimURL:  "https://nominatim.openstreetmap.org",
		overpassURL:   "https://overpass-api.de/api/interpreter",
		http:          &http.Client{Timeout: timeout},
		userAgent:     userAgent,
		initialRadius: 5000,
		maxRadius:     40000,
		growth:        2,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// geocode resolves a locality name to a point.
func (c *osmClient) geocode(ctx context.Context, locality string) (*geom.Point, error) {
	q := url.Values{}
	q.Set("q", locality)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.nominatimURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geodata: create geocode request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geodata: geocode request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geodata: geocode status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, eris.Wrap(err, "geodata: decode geocode response")
	}
	if len(results) == 0 {
		return nil, eris.Errorf("geodata: locality %q not found", locality)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, eris.Wrap(err, "geodata: parse latitude")
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, eris.Wrap(err, "geodata: parse longitude")
	}
	return geom.NewPointFlat(geom.XY, []float64{lon, lat}), nil
}

type overpassResponse struct {
	Elements []struct {
		Tags map[string]string `json:"tags"`
	} `json:"elements"`
}

// accommodationTypes are the OSM tourism values treated as accommodation.
var accommodationTypes = []string{
	"hotel", "hostel", "guest_house", "motel", "apartment", "chalet", "camp_site",
}

// bbox computes a square bounding box of the given half-size in meters
// around a point, clamped to valid coordinates.
func bbox(center *geom.Point, radiusMeters float64) *geom.Bounds {
	const metersPerDegLat = 111320.0
	lat := center.Y()
	lon := center.X()

	dLat := radiusMeters / metersPerDegLat
	// Longitude degrees shrink with latitude.
	dLon := radiusMeters / (metersPerDegLat * cosDeg(lat))

	b := geom.NewBounds(geom.XY)
	b.Set(clamp(lon-dLon, -180, 180), clamp(lat-dLat, -90, 90),
		clamp(lon+dLon, -180, 180), clamp(lat+dLat, -90, 90))
	return b
}

func cosDeg(deg float64) float64 {
	c := math.Cos(deg * math.Pi / 180)
	// Guard against the poles.
	if c < 0.01 {
		c = 0.01
	}
	return c
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// overpassQuery builds an Overpass QL query for named accommodation
// objects inside the bounding box.
func overpassQuery(b *geom.Bounds) string {
	box := fmt.Sprintf("%f,%f,%f,%f", b.Min(1), b.Min(0), b.Max(1), b.Max(0))
	var sb strings.Builder
	sb.WriteString("[out:json][timeout:60];(")
	for _, t := range accommodationTypes {
		fmt.Fprintf(&sb, `nwr["tourism"="%s"]["name"](%s);`, t, box)
	}
	sb.WriteString(");out tags;")
	return sb.String()
}

func (c *osmClient) queryNames(ctx context.Context, b *geom.Bounds) ([]string, error) {
	form := url.Values{}
	form.Set("data", overpassQuery(b))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.overpassURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "geodata: create overpass request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geodata: overpass request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geodata: read overpass response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geodata: overpass status %d: %s", resp.StatusCode, string(body))
	}

	var parsed overpassResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "geodata: unmarshal overpass response")
	}

	var names []string
	seen := make(map[string]bool)
	for _, el := range parsed.Elements {
		name := strings.TrimSpace(el.Tags["name"])
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		names = append(names, name)
	}
	return names, nil
}

func (c *osmClient) OrganizationNames(ctx context.Context, locality string) ([]string, error) {
	center, err := c.geocode(ctx, locality)
	if err != nil {
		return nil, err
	}

	for radius := c.initialRadius; radius <= c.maxRadius; radius *= c.growth {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		names, err := c.queryNames(ctx, bbox(center, radius))
		if err != nil {
			return nil, err
		}
		if len(names) > 0 {
			zap.L().Info("geodata: organizations found",
				zap.String("locality", locality),
				zap.Float64("radius_m", radius),
				zap.Int("count", len(names)))
			return names, nil
		}
		zap.L().Debug("geodata: empty result, growing radius",
			zap.String("locality", locality),
			zap.Float64("radius_m", radius))
	}
	return nil, eris.Errorf("geodata: no organizations found near %q", locality)
}
