package extract

import "github.com/qosqo/leadscout/internal/lead"

// SeedScore computes a coarse 0-100 estimate from extraction output alone.
// It gates which scraped posts are worth keeping before the full scoring
// engine runs on a persisted lead; it is never stored as the final score.
func SeedScore(res Result) int {
	score := 0

	if len(res.Contacts.Phones) > 0 {
		score += 30
		for _, p := range res.Contacts.Phones {
			if p.WhatsApp {
				score += 10
				break
			}
		}
	}

	if len(res.Contacts.Emails) > 0 {
		score += 15
		for _, e := range res.Contacts.Emails {
			if e.Confidence < 1.0 {
				score -= 10
				break
			}
		}
	}

	switch res.Phase {
	case lead.PhaseBooking:
		score += 30
	case lead.PhasePlanning:
		score += 20
	case lead.PhaseDreaming:
		score += 10
	case lead.PhaseUnknown:
		score += 5
	}

	score += min(15, len(res.Destinations)*5)

	highIntent := 0
	for _, kw := range res.Keywords {
		if isBookingKeyword(kw) {
			highIntent++
		}
	}
	score += min(15, highIntent*5)

	return lead.ClampScore(score)
}
