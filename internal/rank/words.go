package rank

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// WordLists holds the language-dependent phrase tables driving the
// ranking heuristics. The defaults cover Russian and English; a YAML
// file can extend or replace any list.
type WordLists struct {
	// OfficialWords are title markers for an official site.
	OfficialWords []string `yaml:"official_words"`
	// OfficialPhrases are appended to search queries.
	OfficialPhrases []string `yaml:"official_phrases"`
	// ContactKeywords mark contact-page links and paths.
	ContactKeywords []string `yaml:"contact_keywords"`
	// Aggregators are root domains never accepted as an official site.
	Aggregators []string `yaml:"aggregators"`
}

// DefaultWordLists returns the built-in tables.
func DefaultWordLists() WordLists {
	return WordLists{
		OfficialWords: []string{
			"официальный", "официальная", "official",
		},
		OfficialPhrases: []string{
			"официальный сайт", "official site",
		},
		ContactKeywords: []string{
			"contact", "contacts", "kontakt", "kontakty",
			"контакт", "контакты", "about", "o-nas", "о нас",
		},
		Aggregators: []string{
			"booking.com", "ostrovok.ru", "tripadvisor.com", "tripadvisor.ru",
			"101hotels.com", "101hotels.ru", "bronevik.com", "sutochno.ru",
			"tvil.ru", "hotellook.ru", "yandex.ru", "yandex.com", "google.com",
			"google.ru", "2gis.ru", "2gis.com", "avito.ru", "cian.ru",
			"vk.com", "ok.ru", "facebook.com", "instagram.com", "t.me",
			"telegram.org", "wikipedia.org", "youtube.com", "twitter.com",
			"airbnb.com", "airbnb.ru", "hotels.com", "trivago.ru", "trivago.com",
			"zoon.ru", "yell.ru", "flamp.ru", "otzovik.com", "irecommend.ru",
		},
	}
}

// LoadWordLists reads overrides from a YAML file and merges them over
// the defaults. Lists present in the file replace the default list
// wholesale; absent lists keep their defaults. An empty path returns
// the defaults unchanged.
func LoadWordLists(path string) (WordLists, error) {
	lists := DefaultWordLists()
	if path == "" {
		return lists, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return lists, eris.Wrapf(err, "rank: read word lists %s", path)
	}

	var override WordLists
	if err := yaml.Unmarshal(data, &override); err != nil {
		return lists, eris.Wrapf(err, "rank: parse word lists %s", path)
	}

	if len(override.OfficialWords) > 0 {
		lists.OfficialWords = override.OfficialWords
	}
	if len(override.OfficialPhrases) > 0 {
		lists.OfficialPhrases = override.OfficialPhrases
	}
	if len(override.ContactKeywords) > 0 {
		lists.ContactKeywords = override.ContactKeywords
	}
	if len(override.Aggregators) > 0 {
		lists.Aggregators = override.Aggregators
	}
	return lists, nil
}

// blockedSet builds a lookup of aggregator root domains.
func (w WordLists) blockedSet() map[string]bool {
	set := make(map[string]bool, len(w.Aggregators))
	for _, d := range w.Aggregators {
		set[strings.ToLower(strings.TrimSpace(d))] = true
	}
	return set
}
