// Package browser owns the single Chrome process and hands out isolated
// stealth browsing sessions to the scrape adapters.
//
// One Engine wraps one Chrome launched via Rod. Sessions are incognito
// contexts with a randomized user-agent and a fixed Cusco-visitor identity
// profile (viewport, locale, timezone, geolocation), plus anti-detection
// shims when stealth is enabled. The engine never hangs: every wait
// carries an explicit timeout, and navigation retries locally instead of
// surfacing transient failures to callers.
package browser

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"golang.org/x/time/rate"
)

// Config configures the browser engine.
type Config struct {
	// Headless controls Chrome's headless mode. Default: true.
	Headless bool

	// Stealth enables the stealth page profile and fingerprint shims.
	// Default: true.
	Stealth bool

	// PageTimeout is the default page-ready timeout. Default: 30s.
	PageTimeout time.Duration

	// NavTimeout bounds a single navigation attempt. Default: 60s.
	NavTimeout time.Duration

	// NavRetries is the number of navigation attempts. Default: 3.
	NavRetries int

	// RequestsPerMinute paces navigations across the whole engine to stay
	// under target-site rate limits. Default: 30.
	RequestsPerMinute int

	// DelayMin/DelayMax bound the randomized human-like pause between
	// page actions. Defaults: 500ms / 2s.
	DelayMin time.Duration
	DelayMax time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.PageTimeout <= 0 {
		c.PageTimeout = 30 * time.Second
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 60 * time.Second
	}
	if c.NavRetries <= 0 {
		c.NavRetries = 3
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = 30
	}
	if c.DelayMin <= 0 {
		c.DelayMin = 500 * time.Millisecond
	}
	if c.DelayMax <= c.DelayMin {
		c.DelayMax = c.DelayMin + time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// DefaultConfig returns a Config with headless stealth defaults.
func DefaultConfig() Config {
	c := Config{Headless: true, Stealth: true}
	c.defaults()
	return c
}

// Engine owns one Chrome process. Construct with New, launch with Start,
// release with Shutdown. The zero value is not usable.
type Engine struct {
	cfg     Config
	limiter *rate.Limiter

	mu       sync.Mutex
	browser  *rod.Browser
	lnch     *launcher.Launcher
	sessions map[*Session]struct{}
	started  bool
	closed   bool
}

// New creates an Engine. Chrome is not launched until Start.
func New(cfg Config) *Engine {
	cfg.defaults()
	return &Engine{
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		sessions: map[*Session]struct{}{},
	}
}

// Start launches Chrome and connects. Idempotent: a second call on a
// started engine is a no-op.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("browser: engine is shut down")
	}
	if e.started {
		return nil
	}

	l := launcher.New().
		Headless(e.cfg.Headless).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage")

	wsURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("browser: launch: %w", err)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return fmt.Errorf("browser: connect: %w", err)
	}

	e.lnch = l
	e.browser = b
	e.started = true
	e.cfg.Logger.Info("browser: chrome launched", "headless", e.cfg.Headless, "stealth", e.cfg.Stealth)
	return nil
}

// Started reports whether Chrome is up.
func (e *Engine) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// Shutdown closes all open sessions and the browser. Individual session
// close failures are swallowed so teardown always completes fully.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	for s := range e.sessions {
		if err := s.closeLocked(); err != nil {
			e.cfg.Logger.Warn("browser: session close during shutdown", "error", err)
		}
	}
	e.sessions = map[*Session]struct{}{}

	if e.browser != nil {
		if err := e.browser.Close(); err != nil {
			e.cfg.Logger.Warn("browser: close", "error", err)
		}
		e.browser = nil
	}
	if e.lnch != nil {
		e.lnch.Cleanup()
		e.lnch = nil
	}
	e.started = false
	e.cfg.Logger.Info("browser: shut down")
	return nil
}

func (e *Engine) dropSession(s *Session) {
	e.mu.Lock()
	delete(e.sessions, s)
	e.mu.Unlock()
}
