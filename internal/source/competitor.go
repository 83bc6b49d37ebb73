package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/qosqo/leadscout/internal/browser"
	"github.com/qosqo/leadscout/internal/extract"
)

const (
	selCTA      = `button, a.btn, .cta, [class*="button"]`
	selWhatsApp = `a[href*="wa.me"], a[href*="whatsapp"]`

	maxCTAs = 20
)

// chatWidgetSelectors cover the common embedded support widgets.
var chatWidgetSelectors = []string{
	`[class*="chat"]`, `[id*="chat"]`,
	`[class*="intercom"]`, `[class*="zendesk"]`,
	`[class*="tawk"]`, `[class*="crisp"]`,
}

// pricingMarkers signal that the page quotes prices somewhere.
var pricingMarkers = []string{"price", "precio", "$", "usd", "desde", "from"}

// competitorAdapter profiles how a competing tour operator converts
// visitors: call-to-action inventory, WhatsApp integration, chat widget
// presence, and whether pricing is published.
type competitorAdapter struct {
	engine *browser.Engine
	log    *slog.Logger
}

func (a *competitorAdapter) Type() Type { return TypeCompetitor }

func (a *competitorAdapter) Scrape(ctx context.Context, target string, cfg Config) ([]Candidate, error) {
	sess, err := a.engine.NewSession()
	if err != nil {
		return nil, fmt.Errorf("source: competitor: %w", err)
	}
	defer sess.Close()

	page, err := sess.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("source: competitor: %w", err)
	}

	if !page.Navigate(ctx, target) {
		a.log.Warn("competitor site unreachable", "url", target)
		return nil, nil
	}
	page.WaitNetworkIdle(ctx)
	page.Scroll(ctx, 5, 500*time.Millisecond)

	body := page.BodyText(ctx)
	res := extract.Analyze(body, target)

	analysis := &CompetitorAnalysis{
		ConversionElements: a.ctaTexts(ctx, page),
		Services:           res.Destinations,
		PricingFound:       containsAnyMarker(strings.ToLower(body)),
		WhatsAppFound:      len(page.Elements(ctx, selWhatsApp)) > 0,
		ChatWidget:         a.hasChatWidget(ctx, page),
	}

	return []Candidate{{
		Platform:   "competitor",
		SourceURL:  target,
		PageTitle:  strings.TrimSpace(page.Title(ctx)),
		Content:    truncate(body, maxContentLen),
		Extraction: res,
		Analysis:   analysis,
	}}, nil
}

// ctaTexts gathers the visible labels of conversion elements, deduped
// and capped. Labels outside 1..49 characters are navigation chrome or
// walls of text, not CTAs.
func (a *competitorAdapter) ctaTexts(ctx context.Context, page *browser.Page) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, el := range page.Elements(ctx, selCTA) {
		if len(out) >= maxCTAs {
			break
		}
		text, err := el.Text()
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if len(text) == 0 || len(text) >= 50 {
			continue
		}
		if _, ok := seen[text]; ok {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, text)
	}
	return out
}

func (a *competitorAdapter) hasChatWidget(ctx context.Context, page *browser.Page) bool {
	for _, sel := range chatWidgetSelectors {
		if len(page.Elements(ctx, sel)) > 0 {
			return true
		}
	}
	return false
}

func containsAnyMarker(lower string) bool {
	for _, m := range pricingMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
