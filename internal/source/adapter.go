// Package source holds the per-platform scrape adapters. An adapter
// turns one target URL into lead candidates: raw page facts plus the
// analysis produced by the extract package. Adapters own no state across
// calls; each Scrape acquires a fresh browser session and releases it
// before returning.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/qosqo/leadscout/internal/browser"
	"github.com/qosqo/leadscout/internal/extract"
)

// Type tags a scrape target with the adapter that knows how to read it.
type Type string

const (
	// TypeForum walks a travel-forum listing and its threads.
	TypeForum Type = "forum"
	// TypeGeneric reads a single arbitrary page.
	TypeGeneric Type = "generic"
	// TypeCompetitor profiles a competitor site's conversion surface.
	TypeCompetitor Type = "competitor"
)

// ParseType validates a source type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeForum, TypeGeneric, TypeCompetitor:
		return Type(s), nil
	}
	return "", fmt.Errorf("source: unknown type %q", s)
}

// Config bounds how much of a target an adapter reads.
type Config struct {
	// MaxThreads caps forum threads visited per listing. Default: 20.
	MaxThreads int
	// MaxPosts caps posts read per thread. Default: 50.
	MaxPosts int
}

func (c *Config) defaults() {
	if c.MaxThreads <= 0 {
		c.MaxThreads = 20
	}
	if c.MaxPosts <= 0 {
		c.MaxPosts = 50
	}
}

// maxContentLen bounds the raw content carried on a candidate.
const maxContentLen = 1000

// CompetitorAnalysis describes a competitor site's conversion surface.
type CompetitorAnalysis struct {
	ConversionElements []string `json:"conversion_elements"`
	Services           []string `json:"services"`
	PricingFound       bool     `json:"pricing_found"`
	WhatsAppFound      bool     `json:"whatsapp_integration"`
	ChatWidget         bool     `json:"chat_widget"`
}

// Candidate is one potential lead produced by an adapter. Analysis is
// non-nil only for competitor candidates.
type Candidate struct {
	Platform    string
	SourceURL   string
	ThreadTitle string
	Author      string
	AuthorURL   string
	PageTitle   string
	Content     string
	LinkCount   int
	FormCount   int
	WhatsAppURL []string
	Extraction  extract.Result
	Analysis    *CompetitorAnalysis
}

// Adapter scrapes one kind of source.
type Adapter interface {
	Type() Type
	// Scrape reads the target and returns candidates worth scoring.
	// An unreachable target yields an empty slice, not an error; errors
	// are reserved for the browser session itself failing.
	Scrape(ctx context.Context, url string, cfg Config) ([]Candidate, error)
}

// New returns the adapter for t backed by the given engine.
func New(t Type, engine *browser.Engine, logger *slog.Logger) (Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch t {
	case TypeForum:
		return &forumAdapter{engine: engine, log: logger}, nil
	case TypeGeneric:
		return &genericAdapter{engine: engine, log: logger}, nil
	case TypeCompetitor:
		return &competitorAdapter{engine: engine, log: logger}, nil
	}
	return nil, fmt.Errorf("source: unknown type %q", t)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back off to a rune boundary so the cut never splits a code point.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
