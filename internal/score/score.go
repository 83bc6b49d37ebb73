// Package score turns a lead's accumulated facts into a 0-100 priority
// score with an explainable breakdown.
//
// Scoring is deterministic over the lead's current field values: rescoring
// an unchanged lead yields an identical score and breakdown. Rules are
// evaluated in a fixed order (contact, phase, keywords, destinations,
// engagement, penalties), summed, then clamped.
package score

import (
	"fmt"
	"strings"
	"time"

	"github.com/qosqo/leadscout/internal/lead"
)

// Rule point values.
const (
	pointsPhoneWhatsApp   = 35
	pointsPhoneRegular    = 25
	pointsEmailValid      = 15
	pointsEmailDisposable = -15
	pointsNoContact       = -10

	pointsPhaseBooking  = 30
	pointsPhasePlanning = 20
	pointsPhaseDreaming = 10

	pointsDestinationPremium = 10
	pointsDestinationNiche   = 8
	pointsDestinationOther   = 5

	pointsMultipleInteractions = 10
	pointsRecentActivity       = 5

	pointsSuspectedBot = -50
)

// recentActivityWindow is how far back an interaction still counts as
// "recent".
const recentActivityWindow = 7 * 24 * time.Hour

// highIntentKeywords maps detected keywords to their contribution.
// Spanish/English pairs share a rule name so the breakdown reads the same
// either way.
var highIntentKeywords = map[string]struct {
	name   string
	points int
	reason string
}{
	"precio":         {"keyword_price", 10, "price inquiry"},
	"price":          {"keyword_price", 10, "price inquiry"},
	"reservar":       {"keyword_book", 10, "booking intent"},
	"book":           {"keyword_book", 10, "booking intent"},
	"disponibilidad": {"keyword_availability", 8, "availability check"},
	"availability":   {"keyword_availability", 8, "availability check"},
}

// Conversion tiers for destinations. Premium destinations convert best;
// niche treks convert well with smaller volume.
var premiumDestinations = []string{
	"machu picchu", "vinicunca", "salkantay",
	"rainbow mountain", "camino inca", "inca trail",
}

var nicheDestinations = []string{
	"choquequirao", "ausangate", "lares trek",
	"humantay", "palccoyo",
}

// disposableDomains mirrors the extraction engine's list for leads whose
// email arrived without a confidence annotation.
var disposableDomains = map[string]bool{
	"mailinator.com":    true,
	"tempmail.com":      true,
	"throwaway.email":   true,
	"guerrillamail.com": true,
	"10minutemail.com":  true,
	"yopmail.com":       true,
	"trashmail.com":     true,
	"fakeinbox.com":     true,
}

// Config carries the externally-supplied thresholds. The engine never
// hardcodes them in its decision paths.
type Config struct {
	HotThreshold  int // default 80
	WarmThreshold int // default 50
}

func (c *Config) defaults() {
	if c.HotThreshold <= 0 {
		c.HotThreshold = 80
	}
	if c.WarmThreshold <= 0 {
		c.WarmThreshold = 50
	}
}

// Scorer evaluates leads. Stateless; safe for concurrent use.
type Scorer struct {
	cfg Config
}

// New creates a Scorer with defaults applied.
func New(cfg Config) *Scorer {
	cfg.defaults()
	return &Scorer{cfg: cfg}
}

// Config returns the thresholds the scorer was built with.
func (s *Scorer) Config() Config {
	return s.cfg
}

// Score evaluates the lead and returns the clamped total plus the ordered
// breakdown. now is injected so engagement rules are testable.
func (s *Scorer) Score(l lead.Lead) (int, []lead.ScoreComponent) {
	return s.scoreAt(l, time.Now().UTC())
}

func (s *Scorer) scoreAt(l lead.Lead, now time.Time) (int, []lead.ScoreComponent) {
	var components []lead.ScoreComponent
	add := func(name string, points int, reason string) {
		components = append(components, lead.ScoreComponent{Name: name, Points: points, Reason: reason})
	}

	// 1. Contact signal.
	if l.Contact.Phone != "" {
		if l.Contact.WhatsApp {
			add("whatsapp_available", pointsPhoneWhatsApp, "WhatsApp number on file - highest contact probability")
		} else {
			add("phone_available", pointsPhoneRegular, "phone number on file")
		}
	}
	if l.Contact.Email != "" {
		if isDisposableEmail(l.Contact.Email) {
			add("disposable_email", pointsEmailDisposable, "disposable email domain - low quality signal")
		} else {
			add("valid_email", pointsEmailValid, "valid email on file")
		}
	}
	if l.Contact.Empty() {
		add("no_contact", pointsNoContact, "no direct contact channel")
	}

	// 2. Travel phase.
	switch l.Phase {
	case lead.PhaseBooking:
		add("phase_booking", pointsPhaseBooking, "booking phase - immediate purchase intent")
	case lead.PhasePlanning:
		add("phase_planning", pointsPhasePlanning, "planning phase - active research")
	case lead.PhaseDreaming:
		add("phase_dreaming", pointsPhaseDreaming, "dreaming phase - early interest")
	default:
		add("phase_unknown", 0, "no phase signal")
	}

	// 3. High-intent keywords, one component per matched keyword.
	for _, kw := range l.Keywords {
		lower := strings.ToLower(kw)
		rule, ok := highIntentKeywords[lower]
		if !ok {
			continue
		}
		add(rule.name+"_"+lower, rule.points, rule.reason)
	}

	// 4. Destinations, one component each, tiered.
	for _, dest := range l.Destinations {
		lower := strings.ToLower(dest)
		key := "destination_" + strings.ReplaceAll(lower, " ", "_")
		switch {
		case matchesAny(lower, premiumDestinations):
			add(key, pointsDestinationPremium, fmt.Sprintf("premium destination interest: %s", dest))
		case matchesAny(lower, nicheDestinations):
			add("destination_niche_"+strings.ReplaceAll(lower, " ", "_"), pointsDestinationNiche, fmt.Sprintf("niche destination interest: %s", dest))
		default:
			add(key, pointsDestinationOther, fmt.Sprintf("destination interest: %s", dest))
		}
	}

	// 5. Engagement.
	if len(l.Interactions) > 3 {
		add("multiple_interactions", pointsMultipleInteractions, fmt.Sprintf("%d interactions recorded", len(l.Interactions)))
	}
	if l.LastInteractionAt != nil && now.Sub(*l.LastInteractionAt) <= recentActivityWindow {
		add("recent_activity", pointsRecentActivity, "active within the last 7 days")
	}

	// 6. Penalties.
	if l.IsBot || l.BotProbability > 0.7 {
		add("suspected_bot", pointsSuspectedBot, "suspected bot activity")
	}

	total := 0
	for _, c := range components {
		total += c.Points
	}
	return lead.ClampScore(total), components
}

// Priority labels a score using the configured thresholds.
func (s *Scorer) Priority(score int) string {
	switch {
	case score >= s.cfg.HotThreshold:
		return lead.PriorityHot
	case score >= s.cfg.WarmThreshold:
		return lead.PriorityWarm
	default:
		return lead.PriorityCold
	}
}

// ShouldAlertSales reports whether the lead warrants an immediate sales
// ping: hot score, booking phase, and WhatsApp-reachable.
func (s *Scorer) ShouldAlertSales(l lead.Lead) bool {
	return l.Score >= s.cfg.HotThreshold &&
		l.Phase == lead.PhaseBooking &&
		l.Contact.WhatsApp
}

func isDisposableEmail(email string) bool {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return false
	}
	return disposableDomains[strings.ToLower(email[at+1:])]
}

func matchesAny(dest string, list []string) bool {
	for _, entry := range list {
		if strings.Contains(dest, entry) {
			return true
		}
	}
	return false
}
