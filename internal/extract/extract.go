// Package extract turns raw scraped text into structured contact and
// travel-intent facts.
//
// The package is pure and stateless: identical input text always yields
// identical output, and nothing here touches the network or storage. The
// scrape adapters feed it page text; the scoring engine consumes its
// output via the lead model.
package extract

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/qosqo/leadscout/internal/lead"
)

// Contact is one extracted contact channel.
type Contact struct {
	Type       string  `json:"type"` // phone | email | handle
	Value      string  `json:"value"`
	Normalized string  `json:"normalized"`
	Country    string  `json:"country,omitempty"`
	WhatsApp   bool    `json:"whatsapp"`
	Confidence float64 `json:"confidence"`
}

// Contacts groups extracted channels by type.
type Contacts struct {
	Phones  []Contact `json:"phones"`
	Emails  []Contact `json:"emails"`
	Handles []Contact `json:"handles"`
}

// Empty reports whether no phone and no email was found. Handles alone do
// not count as a reachable channel.
func (c Contacts) Empty() bool {
	return len(c.Phones) == 0 && len(c.Emails) == 0
}

// Result is everything extracted from one text artifact.
type Result struct {
	Contacts     Contacts   `json:"contacts"`
	Phase        lead.Phase `json:"phase"`
	IntentScore  float64    `json:"intent_score"`
	Destinations []string   `json:"destinations"`
	Keywords     []string   `json:"keywords"`
	Language     string     `json:"language"`
	SeedScore    int        `json:"seed_score"`
	SourceURL    string     `json:"source_url,omitempty"`
	Snippet      string     `json:"snippet,omitempty"`
}

const snippetLen = 500

var snippetPolicy = bluemonday.StrictPolicy()

// Snippet strips any markup from raw text and bounds it for storage.
func Snippet(text string) string {
	clean := html.UnescapeString(snippetPolicy.Sanitize(text))
	clean = strings.TrimSpace(clean)
	if len(clean) > snippetLen {
		// Cut on a rune boundary so accented text stays valid UTF-8.
		cut := snippetLen
		for cut > 0 && !utf8.RuneStart(clean[cut]) {
			cut--
		}
		clean = clean[:cut]
	}
	return clean
}

// Analyze runs the full extraction pass over one text artifact.
func Analyze(text, sourceURL string) Result {
	res := Result{
		Contacts:  ExtractContacts(text),
		SourceURL: sourceURL,
		Snippet:   Snippet(text),
	}
	lower := strings.ToLower(text)
	res.Phase, res.IntentScore = ClassifyPhase(lower)
	res.Destinations = Destinations(lower)
	res.Keywords = Keywords(lower)
	res.Language = Language(text)
	res.SeedScore = SeedScore(res)
	return res
}
