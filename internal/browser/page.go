package browser

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// elementWait is the short per-element wait applied by the extraction
// helpers. Extraction failures degrade to "no data", so this stays small.
const elementWait = 5 * time.Second

// Page wraps a Rod page with bounded navigation and forgiving extraction
// helpers. All text/attribute reads return empty results on failure
// instead of propagating errors; only navigation reports success at all.
type Page struct {
	p      *rod.Page
	engine *Engine
}

// Navigate drives the page to url, retrying up to the configured attempt
// count with exponential backoff (2^attempt seconds). A non-2xx document
// response, a navigation error, and a load timeout all count as failures.
// Returns whether the final attempt succeeded; never panics or errors.
func (p *Page) Navigate(ctx context.Context, url string) bool {
	log := p.engine.cfg.Logger
	for attempt := 0; attempt < p.engine.cfg.NavRetries; attempt++ {
		if err := p.engine.limiter.Wait(ctx); err != nil {
			return false
		}

		log.Info("browser: navigating", "url", url, "attempt", attempt+1)
		err := p.navigateOnce(ctx, url)
		if err == nil {
			return true
		}
		log.Warn("browser: navigation failed", "url", url, "attempt", attempt+1, "error", err)

		if attempt < p.engine.cfg.NavRetries-1 {
			if !sleepCtx(ctx, time.Duration(1<<attempt)*time.Second) {
				return false
			}
		}
	}
	return false
}

func (p *Page) navigateOnce(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, p.engine.cfg.NavTimeout)
	defer cancel()
	pg := p.p.Context(navCtx)

	status := 0
	waitResp := pg.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type == proto.NetworkResourceTypeDocument {
			status = int(e.Response.Status)
			return true
		}
		return false
	})

	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	waitResp()

	if status != 0 && (status < 200 || status >= 300) {
		return fmt.Errorf("status %d", status)
	}

	loadCtx, cancelLoad := context.WithTimeout(ctx, p.engine.cfg.PageTimeout)
	defer cancelLoad()
	if err := p.p.Context(loadCtx).WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	return nil
}

// WaitNetworkIdle waits for in-flight requests to settle, bounded by the
// page-ready timeout. Best effort: a timeout here is not a failure,
// lazy-loading sites never go fully idle.
func (p *Page) WaitNetworkIdle(ctx context.Context) {
	idleCtx, cancel := context.WithTimeout(ctx, p.engine.cfg.PageTimeout)
	defer cancel()
	if err := p.p.Context(idleCtx).WaitIdle(p.engine.cfg.PageTimeout); err != nil {
		p.engine.cfg.Logger.Debug("browser: network idle wait ended", "error", err)
	}
}

// Text returns the element's text, or "" if the element does not appear
// within the short element wait.
func (p *Page) Text(ctx context.Context, selector string) string {
	el, err := p.waitElement(ctx, selector)
	if err != nil {
		return ""
	}
	text, err := el.Text()
	if err != nil {
		return ""
	}
	return text
}

// TextAll returns the text of every matching element, waiting briefly
// for the first match. Missing elements yield an empty slice.
func (p *Page) TextAll(ctx context.Context, selector string) []string {
	if _, err := p.waitElement(ctx, selector); err != nil {
		return nil
	}
	var out []string
	for _, el := range p.Elements(ctx, selector) {
		text, err := el.Text()
		if err != nil {
			continue
		}
		out = append(out, text)
	}
	return out
}

// Attribute returns an element attribute, or "" when the element or the
// attribute is absent.
func (p *Page) Attribute(ctx context.Context, selector, name string) string {
	el, err := p.waitElement(ctx, selector)
	if err != nil {
		return ""
	}
	val, err := el.Attribute(name)
	if err != nil || val == nil {
		return ""
	}
	return *val
}

// Elements returns the currently-matching elements without waiting. An
// error degrades to an empty slice.
func (p *Page) Elements(ctx context.Context, selector string) rod.Elements {
	els, err := p.p.Context(ctx).Elements(selector)
	if err != nil {
		return nil
	}
	return els
}

// BodyText evaluates the page's visible text.
func (p *Page) BodyText(ctx context.Context) string {
	res, err := p.p.Context(ctx).Eval(`() => document.body.innerText`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// Title returns the document title, or "".
func (p *Page) Title(ctx context.Context) string {
	res, err := p.p.Context(ctx).Eval(`() => document.title`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// HTML returns the full serialized document, or "".
func (p *Page) HTML(ctx context.Context) string {
	html, err := p.p.Context(ctx).HTML()
	if err != nil {
		return ""
	}
	return html
}

// Eval runs a JS function on the page and returns its stringified value,
// or "" on failure.
func (p *Page) Eval(ctx context.Context, js string) string {
	res, err := p.p.Context(ctx).Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.String()
}

// Scroll performs n scroll-to-bottom steps with a fixed delay between
// them to trigger lazy-loaded content.
func (p *Page) Scroll(ctx context.Context, n int, delay time.Duration) {
	for i := 0; i < n; i++ {
		if _, err := p.p.Context(ctx).Eval(`() => window.scrollBy(0, window.innerHeight)`); err != nil {
			return
		}
		if !sleepCtx(ctx, delay) {
			return
		}
	}
}

// HumanDelay sleeps a random duration inside the configured human-pacing
// window.
func (p *Page) HumanDelay(ctx context.Context) {
	d := p.engine.cfg.DelayMin
	if span := p.engine.cfg.DelayMax - p.engine.cfg.DelayMin; span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	sleepCtx(ctx, d)
}

func (p *Page) waitElement(ctx context.Context, selector string) (*rod.Element, error) {
	elCtx, cancel := context.WithTimeout(ctx, elementWait)
	defer cancel()
	return p.p.Context(elCtx).Element(selector)
}

// sleepCtx sleeps for d unless ctx ends first. Reports whether the full
// sleep completed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
