package extract

import (
	"strings"

	"github.com/qosqo/leadscout/internal/lead"
)

// Intent keyword sets, Spanish + English. Booking terms include
// high-season month names: someone naming a month is picking dates.
var bookingKeywords = []string{
	"precio", "price", "costo", "cost",
	"reservar", "book", "booking", "reserva",
	"disponibilidad", "availability", "available",
	"cuánto cuesta", "how much",
	"entradas", "tickets", "boletos",
	"agosto", "septiembre", "julio",
	"próximo mes", "next month",
	"este año", "this year",
}

var planningKeywords = []string{
	"itinerario", "itinerary",
	"cuántos días", "how many days",
	"mejor época", "best time",
	"clima", "weather",
	"salkantay", "camino inca", "inca trail",
	"vs", "o mejor", "or better",
	"recomendaciones", "recommendations",
	"qué llevar", "what to bring",
}

var dreamingKeywords = []string{
	"fotos", "photos", "pictures",
	"hermoso", "beautiful", "amazing",
	"increíble", "incredible",
	"algún día", "someday", "one day",
	"sueño con", "dream of",
	"bucket list",
}

// ClassifyPhase counts intent-keyword hits in the (lowercased) text and
// picks the phase with the most. Ties break toward the stronger intent:
// booking > planning > dreaming. The intent score is count*weight capped
// at 1.0, with weights 0.2 / 0.15 / 0.1.
func ClassifyPhase(lower string) (lead.Phase, float64) {
	booking := countHits(lower, bookingKeywords)
	planning := countHits(lower, planningKeywords)
	dreaming := countHits(lower, dreamingKeywords)

	if booking+planning+dreaming == 0 {
		return lead.PhaseUnknown, 0
	}

	switch {
	case booking >= planning && booking >= dreaming:
		return lead.PhaseBooking, min(1.0, float64(booking)*0.2)
	case planning >= dreaming:
		return lead.PhasePlanning, min(1.0, float64(planning)*0.15)
	default:
		return lead.PhaseDreaming, min(1.0, float64(dreaming)*0.1)
	}
}

// Keywords returns every intent keyword present in the (lowercased) text,
// in set order, deduplicated.
func Keywords(lower string) []string {
	var found []string
	seen := map[string]bool{}
	for _, set := range [][]string{bookingKeywords, planningKeywords, dreamingKeywords} {
		for _, kw := range set {
			if !seen[kw] && strings.Contains(lower, kw) {
				seen[kw] = true
				found = append(found, kw)
			}
		}
	}
	return found
}

func countHits(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

func isBookingKeyword(kw string) bool {
	for _, b := range bookingKeywords {
		if kw == b {
			return true
		}
	}
	return false
}
