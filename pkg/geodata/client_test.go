package geodata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestOrganizationNames_GrowsRadiusUntilResults(t *testing.T) {
	nominatim := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Сочи", r.URL.Query().Get("q"))
		fmt.Fprint(w, `[{"lat":"43.5855","lon":"39.7231"}]`)
	}))
	defer nominatim.Close()

	var overpassCalls atomic.Int32
	overpass := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if overpassCalls.Add(1) < 3 {
			fmt.Fprint(w, `{"elements":[]}`)
			return
		}
		fmt.Fprint(w, `{"elements":[
			{"tags":{"name":"Приморская","tourism":"hotel"}},
			{"tags":{"name":"Лагуна","tourism":"guest_house"}},
			{"tags":{"name":"приморская","tourism":"hotel"}},
			{"tags":{"tourism":"hotel"}}
		]}`)
	}))
	defer overpass.Close()

	c := NewClient("test-agent", 5*time.Second,
		WithNominatimURL(nominatim.URL),
		WithOverpassURL(overpass.URL),
		WithRadius(1000, 10000, 2))

	names, err := c.OrganizationNames(context.Background(), "Сочи")
	require.NoError(t, err)
	// Case-insensitive dedupe, unnamed objects dropped.
	assert.Equal(t, []string{"Приморская", "Лагуна"}, names)
	assert.Equal(t, int32(3), overpassCalls.Load())
}

func TestOrganizationNames_LocalityNotFound(t *testing.T) {
	nominatim := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer nominatim.Close()

	c := NewClient("test-agent", 5*time.Second, WithNominatimURL(nominatim.URL))

	_, err := c.OrganizationNames(context.Background(), "Нигде")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestOrganizationNames_ExhaustedRadiusFails(t *testing.T) {
	nominatim := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"lat":"43.5855","lon":"39.7231"}]`)
	}))
	defer nominatim.Close()

	overpass := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"elements":[]}`)
	}))
	defer overpass.Close()

	c := NewClient("test-agent", 5*time.Second,
		WithNominatimURL(nominatim.URL),
		WithOverpassURL(overpass.URL),
		WithRadius(1000, 4000, 2))

	_, err := c.OrganizationNames(context.Background(), "Сочи")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no organizations")
}

func TestBBox_SizeAndClamping(t *testing.T) {
	center := geom.NewPointFlat(geom.XY, []float64{39.7231, 43.5855})
	b := bbox(center, 5000)

	// Roughly 0.045 degrees of latitude for 5km.
	assert.InDelta(t, 43.5855-0.0449, b.Min(1), 0.001)
	assert.InDelta(t, 43.5855+0.0449, b.Max(1), 0.001)
	assert.Less(t, b.Min(0), 39.7231)
	assert.Greater(t, b.Max(0), 39.7231)

	polar := geom.NewPointFlat(geom.XY, []float64{0, 89.9})
	pb := bbox(polar, 100000)
	assert.LessOrEqual(t, pb.Max(1), 90.0)
}

func TestOverpassQuery_CoversAccommodationTypes(t *testing.T) {
	b := geom.NewBounds(geom.XY)
	b.Set(39.0, 43.0, 40.0, 44.0)

	q := overpassQuery(b)
	assert.Contains(t, q, `"tourism"="hotel"`)
	assert.Contains(t, q, `"tourism"="guest_house"`)
	assert.Contains(t, q, "43.000000,39.000000,44.000000,40.000000")
	assert.Contains(t, q, "out tags")
}
