package crawl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgescout/resolver-cli/internal/extract"
)

func TestParsePage_KeepsFooterContacts(t *testing.T) {
	html := `<html><head><title>Отель Приморская</title></head><body>
<h1>Отель Приморская</h1>
<script>var x = 1;</script>
<style>.hidden { display: none; }</style>
<footer>г. Сочи, ул. Морская, д. 5. тел. +7 (862) 264-55-55</footer>
</body></html>`

	title, text := parsePage(html)
	assert.Equal(t, "Отель Приморская", title)
	assert.Contains(t, text, "ул. Морская")
	assert.Contains(t, text, "+7 (862) 264-55-55")
	assert.NotContains(t, text, "var x")
	assert.NotContains(t, text, "display: none")

	addrs := extract.Addresses(text)
	require.NotEmpty(t, addrs)
	assert.Contains(t, addrs[0], "Морская")
	require.NotEmpty(t, extract.Phones(text))
}

func TestParsePage_KeepsNavText(t *testing.T) {
	html := `<html><body><nav><a href="/contacts">Контакты</a></nav><p>Главная</p></body></html>`

	_, text := parsePage(html)
	assert.Contains(t, text, "Контакты")
	assert.Contains(t, text, "Главная")
}
