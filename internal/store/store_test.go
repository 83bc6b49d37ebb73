package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/qosqo/leadscout/internal/lead"

	_ "modernc.org/sqlite"
)

func sampleLead(id string, score int) *lead.Lead {
	return &lead.Lead{
		ID:             id,
		Name:           "Ana",
		Username:       "ana.viajes",
		SourcePlatform: "forum",
		SourceURL:      "https://forum.example.com/cusco/topic-1",
		Contact: lead.ContactInfo{
			Phone:        "+51987654321",
			PhoneCountry: "PE",
			WhatsApp:     true,
		},
		Phase:        lead.PhaseBooking,
		Status:       lead.StatusNew,
		Score:        score,
		Breakdown:    []lead.ScoreComponent{{Name: "phone_available", Points: 35, Reason: "phone number found"}},
		Keywords:     []string{"reservar"},
		Destinations: []string{"Machu Picchu"},
		Language:     "es",
	}
}

func TestSchemaTables(t *testing.T) {
	// WHAT: Verify Open applies the schema and both tables exist.
	// WHY: Everything else in the store assumes these tables.
	s := OpenMemory(t)
	for _, table := range []string{"leads", "scraping_jobs"} {
		var name string
		err := s.DB.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestInsertAndGetLead(t *testing.T) {
	// WHAT: Insert a lead and read it back intact, including the
	// JSON-encoded contact, breakdown and list fields.
	// WHY: A lossy round trip would silently corrupt scoring history.
	s := OpenMemory(t)
	ctx := context.Background()

	l := sampleLead("lead-001", 65)
	if err := s.InsertLead(ctx, l); err != nil {
		t.Fatalf("insert lead: %v", err)
	}

	got, err := s.GetLead(ctx, "lead-001")
	if err != nil {
		t.Fatalf("get lead: %v", err)
	}
	if got.Contact.Phone != "+51987654321" || !got.Contact.WhatsApp {
		t.Errorf("contact lost in round trip: %+v", got.Contact)
	}
	if len(got.Breakdown) != 1 || got.Breakdown[0].Name != "phone_available" {
		t.Errorf("breakdown lost in round trip: %+v", got.Breakdown)
	}
	if got.Phase != lead.PhaseBooking || got.Score != 65 {
		t.Errorf("phase/score = %s/%d, want booking/65", got.Phase, got.Score)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not stamped on insert")
	}
}

func TestGetLeadMissing(t *testing.T) {
	// WHAT: GetLead on an unknown ID returns sql.ErrNoRows.
	// WHY: The API maps this error to 404.
	s := OpenMemory(t)
	if _, err := s.GetLead(context.Background(), "nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestUpdateLead(t *testing.T) {
	// WHAT: UpdateLead persists new field values and bumps updated_at.
	// WHY: Rescoring and status changes go through this path.
	s := OpenMemory(t)
	ctx := context.Background()

	l := sampleLead("lead-002", 40)
	if err := s.InsertLead(ctx, l); err != nil {
		t.Fatalf("insert: %v", err)
	}

	l.Score = 85
	l.Status = lead.StatusQualified
	if err := s.UpdateLead(ctx, l); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.GetLead(ctx, "lead-002")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Score != 85 || got.Status != lead.StatusQualified {
		t.Errorf("update not persisted: score=%d status=%s", got.Score, got.Status)
	}

	missing := sampleLead("lead-missing", 1)
	if err := s.UpdateLead(ctx, missing); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("update of missing lead: err = %v, want sql.ErrNoRows", err)
	}
}

func TestDeleteLead(t *testing.T) {
	// WHAT: DeleteLead removes the row; deleting again reports no rows.
	s := OpenMemory(t)
	ctx := context.Background()

	if err := s.InsertLead(ctx, sampleLead("lead-003", 10)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.DeleteLead(ctx, "lead-003"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteLead(ctx, "lead-003"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("second delete: err = %v, want sql.ErrNoRows", err)
	}
}

func TestListLeadsFiltersAndSort(t *testing.T) {
	// WHAT: ListLeads honors status/phase/platform/score filters and
	// sorts by score descending by default.
	// WHY: The API's listing surface is entirely this one query.
	s := OpenMemory(t)
	ctx := context.Background()

	a := sampleLead("a", 90)
	b := sampleLead("b", 55)
	b.Phase = lead.PhasePlanning
	b.Status = lead.StatusContacted
	c := sampleLead("c", 30)
	c.SourcePlatform = "web"
	for _, l := range []*lead.Lead{a, b, c} {
		if err := s.InsertLead(ctx, l); err != nil {
			t.Fatalf("insert %s: %v", l.ID, err)
		}
	}

	all, err := s.ListLeads(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "a" || all[2].ID != "c" {
		t.Errorf("default sort wrong: %v", idsOf(all))
	}

	hot, err := s.ListLeads(ctx, ListFilter{MinScore: 80})
	if err != nil {
		t.Fatalf("list hot: %v", err)
	}
	if len(hot) != 1 || hot[0].ID != "a" {
		t.Errorf("MinScore filter: %v", idsOf(hot))
	}

	planning, err := s.ListLeads(ctx, ListFilter{Phase: lead.PhasePlanning})
	if err != nil {
		t.Fatalf("list planning: %v", err)
	}
	if len(planning) != 1 || planning[0].ID != "b" {
		t.Errorf("Phase filter: %v", idsOf(planning))
	}

	web, err := s.ListLeads(ctx, ListFilter{Platform: "web"})
	if err != nil {
		t.Fatalf("list web: %v", err)
	}
	if len(web) != 1 || web[0].ID != "c" {
		t.Errorf("Platform filter: %v", idsOf(web))
	}

	paged, err := s.ListLeads(ctx, ListFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list paged: %v", err)
	}
	if len(paged) != 1 || paged[0].ID != "b" {
		t.Errorf("pagination: %v", idsOf(paged))
	}
}

func TestLeadStats(t *testing.T) {
	// WHAT: LeadStats buckets leads into hot/warm/cold by the given
	// thresholds and groups by phase, status and platform.
	s := OpenMemory(t)
	ctx := context.Background()

	hot := sampleLead("hot", 85)
	warm := sampleLead("warm", 60)
	warm.Phase = lead.PhasePlanning
	cold := sampleLead("cold", 20)
	cold.Phase = lead.PhaseDreaming
	cold.SourcePlatform = "web"
	for _, l := range []*lead.Lead{hot, warm, cold} {
		if err := s.InsertLead(ctx, l); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	st, err := s.LeadStats(ctx, 80, 50)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 3 || st.Hot != 1 || st.Warm != 1 || st.Cold != 1 {
		t.Errorf("buckets = %d/%d/%d/%d, want 3/1/1/1", st.Total, st.Hot, st.Warm, st.Cold)
	}
	if st.ByPhase["booking"] != 1 || st.ByPhase["planning"] != 1 || st.ByPhase["dreaming"] != 1 {
		t.Errorf("ByPhase = %v", st.ByPhase)
	}
	if st.ByPlatform["forum"] != 2 || st.ByPlatform["web"] != 1 {
		t.Errorf("ByPlatform = %v", st.ByPlatform)
	}
	if st.ByStatus["new"] != 3 {
		t.Errorf("ByStatus = %v", st.ByStatus)
	}
}

func TestJobRoundTrip(t *testing.T) {
	// WHAT: Insert a job, advance it through its run, and read back the
	// final state including logs and timestamps.
	// WHY: The API serves job status straight from these rows.
	s := OpenMemory(t)
	ctx := context.Background()

	j := lead.NewJob("job-001", "forum", "https://forum.example.com/cusco", map[string]any{"max_threads": float64(5)})
	if err := s.InsertJob(ctx, j); err != nil {
		t.Fatalf("insert job: %v", err)
	}

	j.Start()
	j.AddLog("listing read")
	j.SetProgress(50)
	if err := s.UpdateJob(ctx, j); err != nil {
		t.Fatalf("update running: %v", err)
	}

	j.Complete(12, 4)
	if err := s.UpdateJob(ctx, j); err != nil {
		t.Fatalf("update completed: %v", err)
	}

	got, err := s.GetJob(ctx, "job-001")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != lead.JobCompleted || got.Progress != 100 {
		t.Errorf("status/progress = %s/%d, want completed/100", got.Status, got.Progress)
	}
	if got.Found != 12 || got.Qualified != 4 {
		t.Errorf("counters = %d/%d, want 12/4", got.Found, got.Qualified)
	}
	if len(got.Logs) != 1 {
		t.Errorf("logs = %v", got.Logs)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Error("run timestamps missing after round trip")
	}
}

func TestListJobs(t *testing.T) {
	// WHAT: ListJobs returns newest first and filters by status.
	s := OpenMemory(t)
	ctx := context.Background()

	old := lead.NewJob("job-old", "forum", "https://a.example.com", nil)
	old.CreatedAt = time.Now().Add(-time.Hour)
	old.Start()
	old.Complete(0, 0)
	recent := lead.NewJob("job-new", "generic", "https://b.example.com", nil)
	for _, j := range []*lead.Job{old, recent} {
		if err := s.InsertJob(ctx, j); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	jobs, err := s.ListJobs(ctx, "", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "job-new" {
		t.Errorf("order wrong: %v", jobIDs(jobs))
	}

	pending, err := s.ListJobs(ctx, lead.JobPending, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "job-new" {
		t.Errorf("status filter: %v", jobIDs(pending))
	}
}

func idsOf(leads []*lead.Lead) []string {
	out := make([]string, len(leads))
	for i, l := range leads {
		out[i] = l.ID
	}
	return out
}

func jobIDs(jobs []*lead.Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID
	}
	return out
}
