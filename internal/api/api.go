// Package api exposes the REST surface: lead management and scrape run
// control. JSON in, JSON out; errors are {"error": "..."} bodies.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/qosqo/leadscout/internal/browser"
	"github.com/qosqo/leadscout/internal/extract"
	"github.com/qosqo/leadscout/internal/lead"
	"github.com/qosqo/leadscout/internal/runner"
	"github.com/qosqo/leadscout/internal/score"
	"github.com/qosqo/leadscout/internal/source"
	"github.com/qosqo/leadscout/internal/store"
)

// Handler serves the leadscout API.
type Handler struct {
	store  *store.Store
	runner *runner.Runner
	scorer *score.Scorer
	engine *browser.Engine
	log    *slog.Logger

	// scrapeDefaults fills run limits the start request omits.
	scrapeDefaults source.Config
}

// New creates the handler. engine may be nil when no browser is
// configured; scraper status then reports it as stopped.
func New(st *store.Store, rn *runner.Runner, sc *score.Scorer, engine *browser.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: st, runner: rn, scorer: sc, engine: engine, log: logger}
}

// SetScrapeDefaults sets the run limits used when a start request leaves
// them unset.
func (h *Handler) SetScrapeDefaults(cfg source.Config) {
	h.scrapeDefaults = cfg
}

// Router builds the chi router for the API.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Route("/api/leads", func(r chi.Router) {
		r.Get("/", h.listLeads)
		r.Post("/", h.createLead)
		r.Get("/hot", h.hotLeads)
		r.Get("/stats/summary", h.leadStats)
		r.Get("/{id}", h.getLead)
		r.Put("/{id}", h.updateLead)
		r.Delete("/{id}", h.deleteLead)
		r.Post("/{id}/rescore", h.rescoreLead)
	})

	r.Route("/api/scraper", func(r chi.Router) {
		r.Post("/start", h.startScrape)
		r.Get("/status", h.scraperStatus)
		r.Get("/jobs", h.listJobs)
		r.Get("/jobs/{id}", h.getJob)
		r.Post("/jobs/{id}/cancel", h.cancelJob)
		r.Post("/extract", h.extractText)
	})

	return r
}

func (h *Handler) listLeads(w http.ResponseWriter, r *http.Request) {
	f := store.ListFilter{
		Status:   lead.Status(r.URL.Query().Get("status")),
		Phase:    lead.Phase(r.URL.Query().Get("phase")),
		Platform: r.URL.Query().Get("platform"),
		MinScore: queryInt(r, "min_score", 0),
		MaxScore: queryInt(r, "max_score", 0),
		SortBy:   r.URL.Query().Get("sort_by"),
		Limit:    queryInt(r, "limit", 20),
		Offset:   queryInt(r, "offset", 0),
	}

	leads, err := h.store.ListLeads(r.Context(), f)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	if leads == nil {
		leads = []*lead.Lead{}
	}
	writeJSON(w, 200, leads)
}

func (h *Handler) getLead(w http.ResponseWriter, r *http.Request) {
	l, err := h.store.GetLead(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, 404, errors.New("lead not found"))
		return
	}
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, l)
}

func (h *Handler) createLead(w http.ResponseWriter, r *http.Request) {
	var l lead.Lead
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		writeError(w, 400, err)
		return
	}
	if l.SourcePlatform == "" {
		writeError(w, 400, errors.New("source_platform is required"))
		return
	}
	if l.ID == "" {
		l.ID = uuid.Must(uuid.NewV7()).String()
	}

	total, breakdown := h.scorer.Score(l)
	l = l.ApplyScore(total, breakdown)

	if err := h.store.InsertLead(r.Context(), &l); err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 201, l)
}

func (h *Handler) updateLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := h.store.GetLead(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, 404, errors.New("lead not found"))
		return
	}
	if err != nil {
		writeError(w, 500, err)
		return
	}

	updated := *existing
	if err := json.NewDecoder(r.Body).Decode(&updated); err != nil {
		writeError(w, 400, err)
		return
	}
	updated.ID = id
	updated.CreatedAt = existing.CreatedAt

	if err := h.store.UpdateLead(r.Context(), &updated); err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, updated)
}

func (h *Handler) deleteLead(w http.ResponseWriter, r *http.Request) {
	err := h.store.DeleteLead(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, 404, errors.New("lead not found"))
		return
	}
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "deleted"})
}

func (h *Handler) rescoreLead(w http.ResponseWriter, r *http.Request) {
	l, err := h.store.GetLead(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, 404, errors.New("lead not found"))
		return
	}
	if err != nil {
		writeError(w, 500, err)
		return
	}

	total, breakdown := h.scorer.Score(*l)
	rescored := l.ApplyScore(total, breakdown)
	if err := h.store.UpdateLead(r.Context(), &rescored); err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, rescored)
}

func (h *Handler) hotLeads(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	if limit < 1 || limit > 50 {
		limit = 10
	}
	leads, err := h.store.ListLeads(r.Context(), store.ListFilter{
		MinScore: h.scorer.Config().HotThreshold,
		SortBy:   "score",
		Limit:    limit,
	})
	if err != nil {
		writeError(w, 500, err)
		return
	}
	if leads == nil {
		leads = []*lead.Lead{}
	}
	writeJSON(w, 200, leads)
}

func (h *Handler) leadStats(w http.ResponseWriter, r *http.Request) {
	cfg := h.scorer.Config()
	stats, err := h.store.LeadStats(r.Context(), cfg.HotThreshold, cfg.WarmThreshold)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, stats)
}

type startRequest struct {
	SourceType string `json:"source_type"`
	TargetURL  string `json:"target_url"`
	Config     struct {
		MaxThreads int `json:"max_threads"`
		MaxPosts   int `json:"max_posts"`
	} `json:"config"`
}

func (h *Handler) startScrape(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	typ, err := source.ParseType(req.SourceType)
	if err != nil {
		writeError(w, 400, err)
		return
	}
	if req.TargetURL == "" {
		writeError(w, 400, errors.New("target_url is required"))
		return
	}

	runCfg := source.Config{
		MaxThreads: req.Config.MaxThreads,
		MaxPosts:   req.Config.MaxPosts,
	}
	if runCfg.MaxThreads <= 0 {
		runCfg.MaxThreads = h.scrapeDefaults.MaxThreads
	}
	if runCfg.MaxPosts <= 0 {
		runCfg.MaxPosts = h.scrapeDefaults.MaxPosts
	}

	job, err := h.runner.Start(r.Context(), typ, req.TargetURL, runCfg)
	if errors.Is(err, runner.ErrRunActive) {
		writeError(w, 409, err)
		return
	}
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 202, job)
}

func (h *Handler) scraperStatus(w http.ResponseWriter, r *http.Request) {
	jobID, active := h.runner.ActiveJob()
	status := map[string]any{
		"active":          active,
		"browser_started": h.engine != nil && h.engine.Started(),
	}
	if active {
		status["job_id"] = jobID
	}
	writeJSON(w, 200, status)
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.ListJobs(r.Context(),
		lead.JobStatus(r.URL.Query().Get("status")), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, 500, err)
		return
	}
	if jobs == nil {
		jobs = []*lead.Job{}
	}
	writeJSON(w, 200, jobs)
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.store.GetJob(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, 404, errors.New("job not found"))
		return
	}
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, j)
}

func (h *Handler) cancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.runner.Cancel(id) {
		writeJSON(w, 202, map[string]string{"id": id, "status": "cancelling"})
		return
	}

	// Not the active run: distinguish an already-finished job from an
	// unknown one.
	j, err := h.store.GetJob(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, 404, errors.New("job not found"))
		return
	}
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeError(w, 409, errors.New("job is not running: "+string(j.Status)))
}

type extractRequest struct {
	Text      string `json:"text"`
	SourceURL string `json:"source_url"`
}

func (h *Handler) extractText(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	if req.Text == "" {
		writeError(w, 400, errors.New("text is required"))
		return
	}
	writeJSON(w, 200, extract.Analyze(req.Text, req.SourceURL))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
