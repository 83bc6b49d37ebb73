// Package lead defines the lead aggregate, its sales pipeline states, and
// the scraping job record with its lifecycle state machine.
//
// Everything here is plain data plus pure transforms. Scoring and
// extraction produce new values; persistence lives in internal/store.
package lead

import "time"

// Phase is the travel-intent stage of a prospect.
type Phase string

const (
	PhaseDreaming Phase = "dreaming" // early interest
	PhasePlanning Phase = "planning" // active research
	PhaseBooking  Phase = "booking"  // ready to purchase
	PhaseUnknown  Phase = "unknown"  // no intent signal detected yet
)

// Status is the sales-workflow state, independent of Phase.
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusConverted Status = "converted"
	StatusLost      Status = "lost"
)

// ContactInfo bundles the reachable channels of a lead. New extraction
// passes extend or overwrite individual fields rather than replacing the
// whole bundle.
type ContactInfo struct {
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone,omitempty"` // E.164
	PhoneCountry     string `json:"phone_country,omitempty"`
	WhatsApp         bool   `json:"whatsapp"`
	PreferredChannel string `json:"preferred_channel,omitempty"`
}

// Empty reports whether no direct channel (phone or email) is known.
func (c ContactInfo) Empty() bool {
	return c.Phone == "" && c.Email == ""
}

// Interaction is one observed text artifact tied to a lead. Append-only;
// DetectedAt ordering drives the recent-activity scoring rule.
type Interaction struct {
	Platform       string    `json:"platform"`
	Content        string    `json:"content"`
	URL            string    `json:"url"`
	DetectedAt     time.Time `json:"detected_at"`
	Sentiment      float64   `json:"sentiment,omitempty"`
	IntentKeywords []string  `json:"intent_keywords,omitempty"`
}

// ScoreComponent is one signed contribution in a score breakdown.
type ScoreComponent struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

// Lead is a prospective customer built from extracted signals.
type Lead struct {
	ID string `json:"id"`

	// Identity, when the source exposes it.
	Name       string `json:"name,omitempty"`
	Username   string `json:"username,omitempty"`
	ProfileURL string `json:"profile_url,omitempty"`
	Location   string `json:"location,omitempty"`

	Contact ContactInfo `json:"contact"`

	Phase  Phase  `json:"phase"`
	Status Status `json:"status"`

	// Score is always in [0,100]. Breakdown preserves evaluation order.
	Score     int              `json:"score"`
	Breakdown []ScoreComponent `json:"breakdown,omitempty"`

	SourcePlatform string `json:"source_platform"`
	SourceURL      string `json:"source_url,omitempty"`

	Interactions []Interaction `json:"interactions,omitempty"`

	Keywords     []string `json:"keywords,omitempty"`
	Interests    []string `json:"interests,omitempty"`
	Destinations []string `json:"destinations,omitempty"`

	IsBot          bool    `json:"is_bot"`
	BotProbability float64 `json:"bot_probability"`
	Language       string  `json:"language,omitempty"`

	Notes []string `json:"notes,omitempty"`

	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	LastInteractionAt *time.Time `json:"last_interaction_at,omitempty"`
}

// ClampScore bounds a score to [0,100].
func ClampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// PhaseForScore maps a score to its phase. Phase is a deterministic
// function of score once a score exists: >=70 booking, >=40 planning,
// else dreaming.
func PhaseForScore(score int) Phase {
	switch {
	case score >= 70:
		return PhaseBooking
	case score >= 40:
		return PhasePlanning
	default:
		return PhaseDreaming
	}
}

// ApplyScore returns a copy of the lead with the score, breakdown, and the
// phase derived from the score. The extraction-time phase classification is
// overwritten here; phase never changes without a score change after that.
func (l Lead) ApplyScore(score int, breakdown []ScoreComponent) Lead {
	l.Score = ClampScore(score)
	l.Breakdown = breakdown
	l.Phase = PhaseForScore(l.Score)
	l.UpdatedAt = time.Now().UTC()
	return l
}

// WithInteraction returns a copy of the lead with the interaction appended
// and the interaction timestamps advanced.
func (l Lead) WithInteraction(in Interaction) Lead {
	if in.DetectedAt.IsZero() {
		in.DetectedAt = time.Now().UTC()
	}
	out := l
	out.Interactions = append(append([]Interaction(nil), l.Interactions...), in)
	t := in.DetectedAt
	out.LastInteractionAt = &t
	out.UpdatedAt = time.Now().UTC()
	return out
}

// Priority labels for sales triage.
const (
	PriorityHot  = "HOT"
	PriorityWarm = "WARM"
	PriorityCold = "COLD"
)
