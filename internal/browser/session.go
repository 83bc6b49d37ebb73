package browser

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// userAgents is the rotation pool. Plausible current desktop browsers;
// one is picked at random per session.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// Identity profile applied to every session: a visitor browsing from
// Cusco. Consistent locale/timezone/geolocation beats a random mix:
// mismatched values are themselves a bot fingerprint.
const (
	sessionLocale   = "es-PE"
	sessionTimezone = "America/Lima"
	cuscoLatitude   = -13.5319
	cuscoLongitude  = -71.9675
)

// fingerprintShim papers over the common automation probes: the webdriver
// flag, the empty plugin list, and the permissions-query interception
// trick used by detection scripts.
const fingerprintShim = `
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
	window.chrome = window.chrome || { runtime: {} };
	const originalQuery = window.navigator.permissions.query;
	window.navigator.permissions.query = (parameters) => (
		parameters.name === 'notifications'
			? Promise.resolve({ state: Notification.permission })
			: originalQuery(parameters)
	);
`

// Session is one isolated browsing context: its own cookies and storage,
// its own spoofed identity. Sessions must not be shared across adapter
// invocations; create one per scrape and Close it when done.
type Session struct {
	engine    *Engine
	incognito *rod.Browser
	ua        string
	pages     []*Page
	closed    bool
}

// NewSession opens an isolated incognito context with a random user-agent.
func (e *Engine) NewSession() (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started || e.browser == nil {
		return nil, fmt.Errorf("browser: engine not started")
	}

	inc, err := e.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("browser: incognito context: %w", err)
	}

	s := &Session{
		engine:    e,
		incognito: inc,
		ua:        userAgents[rand.Intn(len(userAgents))],
	}
	e.sessions[s] = struct{}{}
	e.cfg.Logger.Debug("browser: session created", "sessions", len(e.sessions))
	return s, nil
}

// NewPage opens a page in this session with the identity profile applied
// and default timeouts set.
func (s *Session) NewPage(ctx context.Context) (*Page, error) {
	if s.closed {
		return nil, fmt.Errorf("browser: session closed")
	}

	var page *rod.Page
	var err error
	if s.engine.cfg.Stealth {
		page, err = stealth.Page(s.incognito)
	} else {
		page, err = s.incognito.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	if err := s.applyIdentity(page); err != nil {
		page.Close()
		return nil, err
	}

	p := &Page{p: page, engine: s.engine}
	s.pages = append(s.pages, p)
	return p, nil
}

func (s *Session) applyIdentity(page *rod.Page) error {
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      s.ua,
		AcceptLanguage: sessionLocale,
	}); err != nil {
		return fmt.Errorf("browser: user agent: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("browser: viewport: %w", err)
	}

	if err := (proto.EmulationSetTimezoneOverride{TimezoneID: sessionTimezone}).Call(page); err != nil {
		return fmt.Errorf("browser: timezone: %w", err)
	}
	if err := (proto.EmulationSetLocaleOverride{Locale: sessionLocale}).Call(page); err != nil {
		return fmt.Errorf("browser: locale: %w", err)
	}

	lat, lon, acc := cuscoLatitude, cuscoLongitude, 1.0
	if err := (proto.EmulationSetGeolocationOverride{
		Latitude:  &lat,
		Longitude: &lon,
		Accuracy:  &acc,
	}).Call(page); err != nil {
		return fmt.Errorf("browser: geolocation: %w", err)
	}

	if s.engine.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(fingerprintShim); err != nil {
			return fmt.Errorf("browser: fingerprint shim: %w", err)
		}
	}
	return nil
}

// UserAgent returns the user-agent chosen for this session.
func (s *Session) UserAgent() string { return s.ua }

// Close tears down the session's pages and incognito context. Safe to
// call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.engine.dropSession(s)
	return s.closeLocked()
}

// closeLocked does the teardown without touching the engine's session
// registry; Shutdown calls it while holding the engine lock.
func (s *Session) closeLocked() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	for _, p := range s.pages {
		if err := p.p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.pages = nil

	if err := s.incognito.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
