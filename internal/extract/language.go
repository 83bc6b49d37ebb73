package extract

import "strings"

// Short function words bounded by spaces. Crude, but the corpus is forum
// chatter where either list hits many times; real language ID would be
// wasted here.
var (
	spanishWords = []string{"el", "la", "de", "que", "en", "para", "con", "por"}
	englishWords = []string{"the", "is", "to", "in", "for", "with", "on", "at"}
)

// Language guesses "es" or "en" by counting function-word occurrences.
// Defaults to Spanish on a tie: the target audience writes in Spanish.
func Language(text string) string {
	lower := strings.ToLower(text)
	es := countWords(lower, spanishWords)
	en := countWords(lower, englishWords)
	if es >= en {
		return "es"
	}
	return "en"
}

func countWords(lower string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(lower, " "+w+" ") {
			n++
		}
	}
	return n
}
