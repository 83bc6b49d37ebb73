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

// genericAdapter reads one arbitrary page: the visible text goes through
// extraction, the markup contributes link/form counts and WhatsApp
// deep-links. It yields at most one candidate.
type genericAdapter struct {
	engine *browser.Engine
	log    *slog.Logger
}

func (a *genericAdapter) Type() Type { return TypeGeneric }

func (a *genericAdapter) Scrape(ctx context.Context, target string, cfg Config) ([]Candidate, error) {
	sess, err := a.engine.NewSession()
	if err != nil {
		return nil, fmt.Errorf("source: generic: %w", err)
	}
	defer sess.Close()

	page, err := sess.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("source: generic: %w", err)
	}

	if !page.Navigate(ctx, target) {
		a.log.Warn("page unreachable", "url", target)
		return nil, nil
	}
	page.WaitNetworkIdle(ctx)
	page.Scroll(ctx, 5, 500*time.Millisecond)

	body := page.BodyText(ctx)
	facts := parsePageFacts(page.HTML(ctx))

	return []Candidate{{
		Platform:    "web",
		SourceURL:   target,
		PageTitle:   strings.TrimSpace(page.Title(ctx)),
		Content:     truncate(body, maxContentLen),
		LinkCount:   facts.Links,
		FormCount:   facts.Forms,
		WhatsAppURL: facts.WhatsApp,
		Extraction:  extract.Analyze(body, target),
	}}, nil
}
