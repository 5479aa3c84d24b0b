package rank

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lodgescout/resolver-cli/internal/config"
)

func probeServer(contactsBody string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/contacts" {
			fmt.Fprintf(w, "<html><body>%s</body></html>", contactsBody)
			return
		}
		http.NotFound(w, r)
	}))
}

func TestProbe_ContactAndLocation(t *testing.T) {
	srv := probeServer("Мы находимся в Сочи. Пишите: info@hotel.ru")
	defer srv.Close()

	e := newTestEngine(&fakeSearch{}, nil, config.RankConfig{ProbeRequireLocation: true})
	assert.True(t, e.probe(context.Background(), srv.URL+"/", "Сочи"))
}

func TestProbe_ContactWithoutLocationRejected(t *testing.T) {
	srv := probeServer("Пишите: info@hotel.ru")
	defer srv.Close()

	e := newTestEngine(&fakeSearch{}, nil, config.RankConfig{ProbeRequireLocation: true})
	assert.False(t, e.probe(context.Background(), srv.URL+"/", "Сочи"))
}

func TestProbe_LocationCheckTunable(t *testing.T) {
	srv := probeServer("Пишите: info@hotel.ru")
	defer srv.Close()

	e := newTestEngine(&fakeSearch{}, nil, config.RankConfig{ProbeRequireLocation: false})
	assert.True(t, e.probe(context.Background(), srv.URL+"/", "Сочи"))
}

func TestProbe_NoContactData(t *testing.T) {
	srv := probeServer("Добро пожаловать в Сочи")
	defer srv.Close()

	e := newTestEngine(&fakeSearch{}, nil, config.RankConfig{ProbeRequireLocation: true})
	assert.False(t, e.probe(context.Background(), srv.URL+"/", "Сочи"))
}

func TestProbe_AllPathsMissing(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	e := newTestEngine(&fakeSearch{}, nil, config.RankConfig{})
	assert.False(t, e.probe(context.Background(), srv.URL+"/", "Сочи"))
}
