package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/qosqo/leadscout/internal/browser"
	"github.com/qosqo/leadscout/internal/extract"
	"github.com/qosqo/leadscout/internal/lead"
	"github.com/qosqo/leadscout/internal/score"
	"github.com/qosqo/leadscout/internal/source"
	"github.com/qosqo/leadscout/internal/store"

	_ "modernc.org/sqlite"
)

// stubAdapter feeds canned candidates (or an error) without a browser.
type stubAdapter struct {
	candidates []source.Candidate
	err        error
	block      chan struct{} // when set, Scrape waits for close or ctx
}

func (a *stubAdapter) Type() source.Type { return source.TypeForum }

func (a *stubAdapter) Scrape(ctx context.Context, url string, cfg source.Config) ([]source.Candidate, error) {
	if a.block != nil {
		select {
		case <-a.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return a.candidates, a.err
}

func newTestRunner(t *testing.T, adapter source.Adapter) (*Runner, *store.Store) {
	t.Helper()
	st := store.OpenMemory(t)
	r := New(st, nil, score.New(score.Config{}), slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.newAdapter = func(typ source.Type, e *browser.Engine, l *slog.Logger) (source.Adapter, error) {
		return adapter, nil
	}
	return r, st
}

func phoneCandidate(url string) source.Candidate {
	return source.Candidate{
		Platform:  "forum",
		SourceURL: url,
		Author:    "Ana",
		Extraction: extract.Result{
			Contacts: extract.Contacts{Phones: []extract.Contact{{
				Type: "phone", Value: "+51 987 654 321", Normalized: "+51987654321",
				Country: "PE", WhatsApp: true, Confidence: 1,
			}}},
			Phase:     lead.PhaseBooking,
			Keywords:  []string{"reservar"},
			Language:  "es",
			SeedScore: 70,
			Snippet:   "quiero reservar un tour",
		},
	}
}

func waitTerminal(t *testing.T, r *Runner, st *store.Store, jobID string) *lead.Job {
	t.Helper()
	r.Wait()
	j, err := st.GetJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if !j.Terminal() {
		t.Fatalf("job not terminal after Wait: %s", j.Status)
	}
	return j
}

func TestRunCompletesAndPersistsLeads(t *testing.T) {
	// WHAT: A successful run stores the discovered leads, counts
	// qualified ones, and completes the job at 100% progress.
	// WHY: This is the whole pipeline end to end minus the browser.
	adapter := &stubAdapter{candidates: []source.Candidate{
		phoneCandidate("https://forum.example.com/t/1"),
		phoneCandidate("https://forum.example.com/t/2"),
	}}
	r, st := newTestRunner(t, adapter)

	job, err := r.Start(context.Background(), source.TypeForum, "https://forum.example.com", source.Config{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	j := waitTerminal(t, r, st, job.ID)
	if j.Status != lead.JobCompleted {
		t.Fatalf("status = %s, want completed (errors: %v)", j.Status, j.Errors)
	}
	if j.Found != 2 || j.Progress != 100 {
		t.Errorf("found/progress = %d/%d, want 2/100", j.Found, j.Progress)
	}
	// WhatsApp phone + booking phase scores well above the qualified bar.
	if j.Qualified != 2 {
		t.Errorf("qualified = %d, want 2", j.Qualified)
	}

	leads, err := st.ListLeads(context.Background(), store.ListFilter{})
	if err != nil {
		t.Fatalf("list leads: %v", err)
	}
	if len(leads) != 2 {
		t.Fatalf("stored leads = %d, want 2", len(leads))
	}
	l := leads[0]
	if l.Contact.Phone != "+51987654321" || l.Contact.PreferredChannel != "whatsapp" {
		t.Errorf("contact = %+v", l.Contact)
	}
	if l.Score <= 0 || len(l.Breakdown) == 0 {
		t.Errorf("lead not scored: score=%d breakdown=%v", l.Score, l.Breakdown)
	}
	if len(l.Interactions) != 1 {
		t.Errorf("interactions = %d, want 1", len(l.Interactions))
	}
}

func TestSecondStartRejectedWhileActive(t *testing.T) {
	// WHAT: Start returns ErrRunActive while a run is in flight, and the
	// gate reopens once the run finishes.
	// WHY: Two concurrent runs would share one Chrome and double-hit the
	// target site.
	block := make(chan struct{})
	adapter := &stubAdapter{block: block}
	r, st := newTestRunner(t, adapter)

	job, err := r.Start(context.Background(), source.TypeForum, "https://a.example.com", source.Config{})
	if err != nil {
		t.Fatalf("first start: %v", err)
	}

	if _, err := r.Start(context.Background(), source.TypeForum, "https://b.example.com", source.Config{}); !errors.Is(err, ErrRunActive) {
		t.Errorf("second start: err = %v, want ErrRunActive", err)
	}
	if id, ok := r.ActiveJob(); !ok || id != job.ID {
		t.Errorf("ActiveJob = %q/%t, want %q/true", id, ok, job.ID)
	}

	close(block)
	waitTerminal(t, r, st, job.ID)

	if _, ok := r.ActiveJob(); ok {
		t.Error("gate still held after run finished")
	}
	if _, err := r.Start(context.Background(), source.TypeForum, "https://c.example.com", source.Config{}); err != nil {
		t.Errorf("start after release: %v", err)
	}
	r.Wait()
}

func TestRunFailureReleasesGate(t *testing.T) {
	// WHAT: An adapter error fails the job with a recorded error and
	// releases the single-flight gate.
	adapter := &stubAdapter{err: errors.New("session lost")}
	r, st := newTestRunner(t, adapter)

	job, err := r.Start(context.Background(), source.TypeForum, "https://forum.example.com", source.Config{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	j := waitTerminal(t, r, st, job.ID)
	if j.Status != lead.JobFailed {
		t.Fatalf("status = %s, want failed", j.Status)
	}
	if len(j.Errors) == 0 {
		t.Error("failed job carries no errors")
	}
	if _, ok := r.ActiveJob(); ok {
		t.Error("gate still held after failure")
	}
}

func TestNoContactCandidateSkipped(t *testing.T) {
	// WHAT: Candidates without phone or email produce no lead but still
	// advance progress; the run completes normally.
	// WHY: Unreachable prospects only pollute the database.
	noContact := source.Candidate{
		Platform:  "forum",
		SourceURL: "https://forum.example.com/t/3",
		Extraction: extract.Result{
			Phase:   lead.PhaseDreaming,
			Snippet: "algun dia me gustaria conocer cusco",
		},
	}
	adapter := &stubAdapter{candidates: []source.Candidate{
		noContact,
		phoneCandidate("https://forum.example.com/t/4"),
	}}
	r, st := newTestRunner(t, adapter)

	job, err := r.Start(context.Background(), source.TypeForum, "https://forum.example.com", source.Config{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	j := waitTerminal(t, r, st, job.ID)
	if j.Status != lead.JobCompleted {
		t.Fatalf("status = %s, want completed", j.Status)
	}
	if j.Found != 1 {
		t.Errorf("found = %d, want 1", j.Found)
	}
	leads, _ := st.ListLeads(context.Background(), store.ListFilter{})
	if len(leads) != 1 {
		t.Errorf("stored leads = %d, want 1", len(leads))
	}
}

func TestCancelActiveRun(t *testing.T) {
	// WHAT: Cancel stops the in-flight run and the job lands in
	// cancelled, not failed.
	block := make(chan struct{})
	adapter := &stubAdapter{block: block}
	r, st := newTestRunner(t, adapter)
	defer close(block)

	job, err := r.Start(context.Background(), source.TypeForum, "https://forum.example.com", source.Config{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if !r.Cancel(job.ID) {
		t.Fatal("Cancel reported no active run")
	}
	j := waitTerminal(t, r, st, job.ID)
	if j.Status != lead.JobCancelled {
		t.Errorf("status = %s, want cancelled", j.Status)
	}
	if j.CompletedAt == nil {
		t.Error("cancelled job missing completion timestamp")
	}
}

func TestCancelWrongJobID(t *testing.T) {
	// WHAT: Cancel with an unknown or stale job ID is a no-op.
	r, _ := newTestRunner(t, &stubAdapter{})
	if r.Cancel("job-unknown") {
		t.Error("Cancel matched a job that was never started")
	}
}

func TestProgressNeverDecreases(t *testing.T) {
	// WHAT: Per-candidate progress updates are monotonic, and 100 is only
	// ever observed once the job is completed.
	// WHY: The UI polls progress; a backwards jump looks like a restart,
	// and 100% on a still-running job reads as finished.
	var cands []source.Candidate
	for i := 0; i < 5; i++ {
		cands = append(cands, phoneCandidate("https://forum.example.com/t/p"))
	}
	adapter := &stubAdapter{candidates: cands}
	r, st := newTestRunner(t, adapter)

	job, err := r.Start(context.Background(), source.TypeForum, "https://forum.example.com", source.Config{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// Poll until terminal, recording every observed progress value.
	var observed []int
	deadline := time.After(5 * time.Second)
	for {
		j, err := st.GetJob(context.Background(), job.ID)
		if err == nil {
			observed = append(observed, j.Progress)
			if j.Progress == 100 && j.Status != lead.JobCompleted {
				t.Fatalf("progress 100 observed with status %s", j.Status)
			}
			if j.Terminal() {
				break
			}
		}
		select {
		case <-deadline:
			t.Fatal("run did not finish in time")
		case <-time.After(time.Millisecond):
		}
	}
	for i := 1; i < len(observed); i++ {
		if observed[i] < observed[i-1] {
			t.Fatalf("progress decreased: %v", observed)
		}
	}
	if last := observed[len(observed)-1]; last != 100 {
		t.Errorf("final progress = %d, want 100", last)
	}
	r.Wait()
}
