package extract

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// cuscoDestinations is the fixed gazetteer of sellable Cusco-region
// destinations, lowercased. Spelling variants are separate entries.
var cuscoDestinations = []string{
	"machu picchu", "machupicchu",
	"montaña de colores", "rainbow mountain", "vinicunca",
	"valle sagrado", "sacred valley",
	"ollantaytambo", "pisac", "chinchero",
	"sacsayhuaman", "qenqo", "tambomachay",
	"moray", "maras", "salineras",
	"salkantay", "choquequirao",
	"humantay", "laguna humantay",
	"cusco", "cuzco", "plaza de armas",
}

// Destinations reports which gazetteer destinations the (lowercased) text
// mentions, title-cased and deduplicated, in gazetteer order.
func Destinations(lower string) []string {
	caser := cases.Title(language.Spanish)
	var found []string
	seen := map[string]bool{}
	for _, dest := range cuscoDestinations {
		if !strings.Contains(lower, dest) {
			continue
		}
		name := caser.String(dest)
		if seen[name] {
			continue
		}
		seen[name] = true
		found = append(found, name)
	}
	return found
}
