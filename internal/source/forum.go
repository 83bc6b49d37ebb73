package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/qosqo/leadscout/internal/browser"
	"github.com/qosqo/leadscout/internal/extract"
)

// Forum selectors follow the TripAdvisor forum markup, which most
// phpBB-style travel boards approximate closely enough.
const (
	selThreadList  = "div.forum-list a.title"
	selThreadTitle = "h1.title"
	selPosts       = "div.post"
	selPostContent = "div.postBody"
	selPostAuthor  = "a.username"
)

const scrollSteps = 3

// forumAdapter walks a forum listing, visits each thread, and keeps the
// posts that look like real purchase intent: seed score above 20 or a
// phone number present.
type forumAdapter struct {
	engine *browser.Engine
	log    *slog.Logger
}

func (a *forumAdapter) Type() Type { return TypeForum }

func (a *forumAdapter) Scrape(ctx context.Context, target string, cfg Config) ([]Candidate, error) {
	cfg.defaults()

	sess, err := a.engine.NewSession()
	if err != nil {
		return nil, fmt.Errorf("source: forum: %w", err)
	}
	defer sess.Close()

	page, err := sess.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("source: forum: %w", err)
	}

	if !page.Navigate(ctx, target) {
		a.log.Warn("forum listing unreachable", "url", target)
		return nil, nil
	}
	page.WaitNetworkIdle(ctx)
	page.HumanDelay(ctx)

	threads := a.threadURLs(ctx, page, target, cfg.MaxThreads)
	a.log.Info("forum listing read", "url", target, "threads", len(threads))

	var out []Candidate
	for i, threadURL := range threads {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		a.log.Info("reading thread", "index", i+1, "total", len(threads), "url", threadURL)
		out = append(out, a.scrapeThread(ctx, page, threadURL, cfg.MaxPosts)...)
		page.HumanDelay(ctx)
	}
	return out, nil
}

// threadURLs collects up to max thread links from the listing page,
// resolving relative hrefs against the listing URL.
func (a *forumAdapter) threadURLs(ctx context.Context, page *browser.Page, listing string, max int) []string {
	base, err := url.Parse(listing)
	if err != nil {
		return nil
	}

	var urls []string
	for _, el := range page.Elements(ctx, selThreadList) {
		if len(urls) >= max {
			break
		}
		href, err := el.Attribute("href")
		if err != nil || href == nil || *href == "" {
			continue
		}
		ref, err := url.Parse(*href)
		if err != nil {
			continue
		}
		urls = append(urls, base.ResolveReference(ref).String())
	}
	return urls
}

func (a *forumAdapter) scrapeThread(ctx context.Context, page *browser.Page, threadURL string, maxPosts int) []Candidate {
	if !page.Navigate(ctx, threadURL) {
		return nil
	}
	page.WaitNetworkIdle(ctx)

	title := strings.TrimSpace(page.Text(ctx, selThreadTitle))
	page.Scroll(ctx, scrollSteps, 500*time.Millisecond)

	posts := page.Elements(ctx, selPosts)
	if len(posts) > maxPosts {
		posts = posts[:maxPosts]
	}

	var out []Candidate
	for _, post := range posts {
		content := ""
		if el, err := post.Element(selPostContent); err == nil {
			if text, err := el.Text(); err == nil {
				content = strings.TrimSpace(text)
			}
		}
		if content == "" {
			continue
		}

		author := "Unknown"
		authorURL := ""
		if el, err := post.Element(selPostAuthor); err == nil {
			if text, err := el.Text(); err == nil && strings.TrimSpace(text) != "" {
				author = strings.TrimSpace(text)
			}
			if href, err := el.Attribute("href"); err == nil && href != nil {
				authorURL = resolveURL(threadURL, *href)
			}
		}

		res := extract.Analyze(content, threadURL)
		if res.SeedScore <= 20 && len(res.Contacts.Phones) == 0 {
			continue
		}
		out = append(out, Candidate{
			Platform:    "forum",
			SourceURL:   threadURL,
			ThreadTitle: title,
			Author:      author,
			AuthorURL:   authorURL,
			Content:     truncate(content, maxContentLen),
			Extraction:  res,
		})
	}
	return out
}

func resolveURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}
