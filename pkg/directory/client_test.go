package directory

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_DisabledClientIsNoOp(t *testing.T) {
	c := NewClient("", 0)
	assert.False(t, c.Enabled())

	info, err := c.Lookup(context.Background(), "Приморская", "Сочи")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestLookup_ParsesContacts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Приморская Сочи", r.URL.Query().Get("q"))
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		fmt.Fprint(w, `{"result":{"items":[{
			"name":"Приморская",
			"address_name":"ул. Морская, 5",
			"adm_div":[{"name":"Сочи","type":"city"}],
			"contact_groups":[{"contacts":[
				{"type":"email","value":"info@hotel.ru"},
				{"type":"phone","value":"+7 (862) 264-55-55"},
				{"type":"website","value":"https://hotel.ru"}
			]}]
		}]}}`)
	}))
	defer srv.Close()

	c := NewClient("secret", 5*time.Second, WithBaseURL(srv.URL))

	info, err := c.Lookup(context.Background(), "Приморская", "Сочи")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "info@hotel.ru", info.Email)
	assert.Equal(t, "+7 (862) 264-55-55", info.Phone)
	assert.Equal(t, "https://hotel.ru", info.Website)
	assert.Equal(t, "Сочи, ул. Морская, 5", info.Address)
}

func TestLookup_NotFoundIsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"meta":{"code":404}}`)
	}))
	defer srv.Close()

	c := NewClient("secret", 5*time.Second, WithBaseURL(srv.URL))

	info, err := c.Lookup(context.Background(), "Нет Такого", "Сочи")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestLookup_EmptyContactsIsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"items":[{"name":"Приморская"}]}}`)
	}))
	defer srv.Close()

	c := NewClient("secret", 5*time.Second, WithBaseURL(srv.URL))

	info, err := c.Lookup(context.Background(), "Приморская", "Сочи")
	require.NoError(t, err)
	assert.Nil(t, info)
}
