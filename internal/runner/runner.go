// Package runner orchestrates scrape runs. At most one run is active at
// a time: the browser engine and the target sites both punish
// concurrent hammering, so a second start while a run is active is
// rejected outright rather than queued.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/qosqo/leadscout/internal/browser"
	"github.com/qosqo/leadscout/internal/lead"
	"github.com/qosqo/leadscout/internal/score"
	"github.com/qosqo/leadscout/internal/source"
	"github.com/qosqo/leadscout/internal/store"
)

// ErrRunActive is returned by Start while another run holds the gate.
var ErrRunActive = errors.New("runner: a scrape run is already active")

// qualifiedThreshold is the score at or above which a discovered lead
// counts as qualified in the job counters.
const qualifiedThreshold = 50

// adapterFactory builds the adapter for a source type. Swappable in
// tests to run without a browser.
type adapterFactory func(t source.Type, e *browser.Engine, l *slog.Logger) (source.Adapter, error)

// Runner executes scrape jobs against the browser engine and persists
// discovered leads. Single-flight per process: the gate assumes one
// leadscout process per database.
type Runner struct {
	store  *store.Store
	engine *browser.Engine
	scorer *score.Scorer
	log    *slog.Logger

	newAdapter adapterFactory

	active atomic.Bool
	wg     sync.WaitGroup

	mu      sync.Mutex
	current *activeRun
}

type activeRun struct {
	jobID  string
	cancel context.CancelFunc
}

// New creates a Runner.
func New(st *store.Store, engine *browser.Engine, scorer *score.Scorer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:      st,
		engine:     engine,
		scorer:     scorer,
		log:        logger,
		newAdapter: source.New,
	}
}

// SetAdapterFactory overrides how adapters are built. Tests use this to
// feed canned candidates without a browser.
func (r *Runner) SetAdapterFactory(f adapterFactory) {
	r.newAdapter = f
}

// Start begins a scrape run in the background and returns the pending
// job record. Returns ErrRunActive if another run is in flight. The run
// itself is detached from ctx; use Cancel to stop it.
func (r *Runner) Start(ctx context.Context, typ source.Type, targetURL string, cfg source.Config) (*lead.Job, error) {
	if !r.active.CompareAndSwap(false, true) {
		return nil, ErrRunActive
	}

	job := lead.NewJob(uuid.Must(uuid.NewV7()).String(), string(typ), targetURL, map[string]any{
		"max_threads": cfg.MaxThreads,
		"max_posts":   cfg.MaxPosts,
	})
	if err := r.store.InsertJob(ctx, job); err != nil {
		r.active.Store(false)
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.current = &activeRun{jobID: job.ID, cancel: cancel}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		r.run(runCtx, job, typ, targetURL, cfg)
	}()

	return job, nil
}

// Cancel stops the active run if its job ID matches. Reports whether a
// cancellation was issued; the job reaches the cancelled state
// asynchronously.
func (r *Runner) Cancel(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil || r.current.jobID != jobID {
		return false
	}
	r.current.cancel()
	return true
}

// ActiveJob returns the in-flight job ID, if any.
func (r *Runner) ActiveJob() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil || !r.active.Load() {
		return "", false
	}
	return r.current.jobID, true
}

// Wait blocks until the active run, if any, has finished. Used during
// shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// run executes one scrape job to a terminal state. The gate is released
// on every exit path, including panics.
func (r *Runner) run(ctx context.Context, job *lead.Job, typ source.Type, targetURL string, cfg source.Config) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("scrape run panicked", "job", job.ID, "panic", rec)
			job.Fail(fmt.Sprintf("internal error: %v", rec))
			r.persist(job)
		}
		r.mu.Lock()
		r.current = nil
		r.mu.Unlock()
		r.active.Store(false)
	}()

	log := r.log.With("job", job.ID, "source", typ, "url", targetURL)
	started := time.Now()

	job.Start()
	job.AddLog(fmt.Sprintf("scrape started: %s %s", typ, targetURL))
	r.persist(job)
	log.Info("scrape run started")

	adapter, err := r.newAdapter(typ, r.engine, r.log)
	if err != nil {
		job.Fail(err.Error())
		r.persist(job)
		return
	}

	candidates, err := adapter.Scrape(ctx, targetURL, cfg)
	if ctx.Err() != nil {
		job.Cancel("stopped by operator")
		r.persist(job)
		log.Info("scrape run cancelled", "during", "fetch")
		return
	}
	if err != nil {
		job.Fail(fmt.Sprintf("scrape failed: %v", err))
		r.persist(job)
		log.Error("scrape run failed", "error", err)
		return
	}

	job.SetProgress(50)
	job.AddLog(fmt.Sprintf("fetch complete: %d candidates", len(candidates)))
	r.persist(job)

	found, qualified := 0, 0
	for i, cand := range candidates {
		if ctx.Err() != nil {
			job.Cancel("stopped by operator")
			r.persist(job)
			log.Info("scrape run cancelled", "during", "processing", "processed", i)
			return
		}

		l, ok, err := r.processCandidate(ctx, cand)
		if err != nil {
			msg := fmt.Sprintf("candidate %d: %v", i+1, err)
			job.Errors = append(job.Errors, msg)
			job.AddLog(msg)
			log.Warn("candidate skipped", "index", i+1, "error", err)
		} else if ok {
			found++
			if l.Score >= qualifiedThreshold {
				qualified++
			}
		}

		// Per-result progress tops out at 95; Complete alone moves it to 100.
		job.SetProgress(50 + (i+1)*45/len(candidates))
		job.Found = found
		job.Qualified = qualified
		r.persist(job)
	}

	job.AddLog(fmt.Sprintf("done: %d leads, %d qualified", found, qualified))
	job.Complete(found, qualified)
	r.persist(job)
	log.Info("scrape run completed",
		"found", found, "qualified", qualified, "elapsed", time.Since(started).Round(time.Millisecond))
}

// processCandidate turns one candidate into a scored, persisted lead.
// Candidates without a direct contact channel are skipped (ok=false):
// a lead nobody can reach is not a lead.
func (r *Runner) processCandidate(ctx context.Context, cand source.Candidate) (*lead.Lead, bool, error) {
	contact := buildContact(cand)
	if contact.Empty() {
		return nil, false, nil
	}

	res := cand.Extraction
	l := lead.Lead{
		ID:             uuid.Must(uuid.NewV7()).String(),
		Name:           cand.Author,
		ProfileURL:     cand.AuthorURL,
		Contact:        contact,
		Phase:          res.Phase,
		Status:         lead.StatusNew,
		SourcePlatform: cand.Platform,
		SourceURL:      cand.SourceURL,
		Keywords:       res.Keywords,
		Destinations:   res.Destinations,
		Language:       res.Language,
	}
	if cand.Analysis != nil {
		l.Notes = append(l.Notes, competitorNote(cand.Analysis))
	}

	l = l.WithInteraction(lead.Interaction{
		Platform:       cand.Platform,
		Content:        res.Snippet,
		URL:            cand.SourceURL,
		DetectedAt:     time.Now().UTC(),
		IntentKeywords: res.Keywords,
	})

	total, breakdown := r.scorer.Score(l)
	l = l.ApplyScore(total, breakdown)

	if err := r.store.InsertLead(ctx, &l); err != nil {
		return nil, false, err
	}
	return &l, true, nil
}

// buildContact picks the best channel per kind: phones and emails come
// ordered by extraction confidence, so the first of each wins.
func buildContact(cand source.Candidate) lead.ContactInfo {
	var c lead.ContactInfo
	res := cand.Extraction

	if len(res.Contacts.Phones) > 0 {
		p := res.Contacts.Phones[0]
		c.Phone = p.Normalized
		if c.Phone == "" {
			c.Phone = p.Value
		}
		c.PhoneCountry = p.Country
		c.WhatsApp = p.WhatsApp
	}
	if len(res.Contacts.Emails) > 0 {
		c.Email = res.Contacts.Emails[0].Normalized
	}

	switch {
	case c.WhatsApp:
		c.PreferredChannel = "whatsapp"
	case c.Phone != "":
		c.PreferredChannel = "phone"
	case c.Email != "":
		c.PreferredChannel = "email"
	}
	return c
}

func competitorNote(a *source.CompetitorAnalysis) string {
	return fmt.Sprintf("competitor: whatsapp=%t chat_widget=%t pricing=%t ctas=%d",
		a.WhatsAppFound, a.ChatWidget, a.PricingFound, len(a.ConversionElements))
}

// persist writes the job row, logging instead of failing the run:
// losing one progress update is harmless, losing the run is not.
func (r *Runner) persist(job *lead.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.UpdateJob(ctx, job); err != nil {
		r.log.Warn("job update failed", "job", job.ID, "error", err)
	}
}
