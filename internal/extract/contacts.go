package extract

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Contact extraction patterns. The Peru mobile pattern runs before the
// generic international one so locally-formatted numbers win the dedup.
var (
	emailRe = regexp.MustCompile(`[\w._%+-]+@[\w.-]+\.[a-zA-Z]{2,}`)

	// Peruvian mobiles: optional +51, then 9XX XXX XXX.
	phonePeruRe = regexp.MustCompile(`(?:\+51\s?)?9\d{2}[-.\s]?\d{3}[-.\s]?\d{3}`)

	// Generic international format.
	phoneIntlRe = regexp.MustCompile(`\+?\d{1,3}[-.\s]?\(?\d{1,4}\)?[-.\s]?\d{3,4}[-.\s]?\d{4}`)

	// WhatsApp deep-links carry the number directly.
	waLinkRe = regexp.MustCompile(`wa\.me/(\d+)|api\.whatsapp\.com/send\?phone=(\d+)`)

	handleRe = regexp.MustCompile(`@([a-zA-Z0-9._]{1,30})`)

	nonPhoneRe = regexp.MustCompile(`[^\d+]`)
)

// disposableDomains are kept but flagged with reduced confidence; a lead
// with only a throwaway inbox is still a lead, just a worse one.
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

// ExtractContacts pulls phones, emails, and social handles out of free
// text. Phones and emails are deduplicated by normalized form within the
// pass; a malformed candidate is dropped, never an error.
func ExtractContacts(text string) Contacts {
	return Contacts{
		Phones:  extractPhones(text),
		Emails:  extractEmails(text),
		Handles: extractHandles(text),
	}
}

func extractEmails(text string) []Contact {
	var out []Contact
	seen := map[string]bool{}
	for _, match := range emailRe.FindAllString(text, -1) {
		if _, err := mail.ParseAddress(match); err != nil {
			continue
		}
		normalized := strings.ToLower(match)
		if seen[normalized] {
			continue
		}
		seen[normalized] = true

		confidence := 1.0
		if at := strings.LastIndexByte(normalized, '@'); at >= 0 && disposableDomains[normalized[at+1:]] {
			confidence = 0.3
		}
		out = append(out, Contact{
			Type:       "email",
			Value:      match,
			Normalized: normalized,
			Confidence: confidence,
		})
	}
	return out
}

func extractPhones(text string) []Contact {
	var out []Contact
	seen := map[string]bool{}

	// Peru mobiles first: they take precedence in the dedup and are
	// WhatsApp-reachable by policy.
	for _, match := range phonePeruRe.FindAllString(text, -1) {
		normalized := NormalizePhone(match, "PE")
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, Contact{
			Type:       "phone",
			Value:      match,
			Normalized: normalized,
			Country:    "PE",
			WhatsApp:   true,
			Confidence: 1.0,
		})
	}

	for _, match := range phoneIntlRe.FindAllString(text, -1) {
		normalized := NormalizePhone(match, "")
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, Contact{
			Type:       "phone",
			Value:      match,
			Normalized: normalized,
			Country:    phoneRegion(normalized),
			WhatsApp:   true,
			Confidence: 0.9,
		})
	}

	for _, groups := range waLinkRe.FindAllStringSubmatch(text, -1) {
		number := groups[1]
		if number == "" {
			number = groups[2]
		}
		if number == "" {
			continue
		}
		normalized := "+" + number
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, Contact{
			Type:       "phone",
			Value:      "wa.me/" + number,
			Normalized: normalized,
			Country:    phoneRegion(normalized),
			WhatsApp:   true,
			Confidence: 1.0,
		})
	}

	return out
}

func extractHandles(text string) []Contact {
	var out []Contact
	seen := map[string]bool{}
	for _, groups := range handleRe.FindAllStringSubmatch(text, -1) {
		name := groups[1]
		if len(name) <= 2 {
			continue
		}
		normalized := strings.ToLower(name)
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, Contact{
			Type:       "handle",
			Value:      "@" + name,
			Normalized: normalized,
			Confidence: 0.8,
		})
	}
	return out
}

// NormalizePhone parses a raw candidate and returns its E.164 form, or ""
// if the number is invalid. Idempotent: an already-canonical number maps
// to itself.
func NormalizePhone(raw, defaultRegion string) string {
	cleaned := nonPhoneRe.ReplaceAllString(raw, "")
	parsed, err := phonenumbers.Parse(cleaned, defaultRegion)
	if err != nil {
		return ""
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return ""
	}
	return phonenumbers.Format(parsed, phonenumbers.E164)
}

// phoneRegion returns the ISO region for an E.164 number, or "".
func phoneRegion(e164 string) string {
	parsed, err := phonenumbers.Parse(e164, "")
	if err != nil {
		return ""
	}
	region := phonenumbers.GetRegionCodeForNumber(parsed)
	if region == "ZZ" {
		return ""
	}
	return region
}
