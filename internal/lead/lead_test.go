package lead

import (
	"testing"
	"time"
)

func TestApplyScore_PhaseFollowsScore(t *testing.T) {
	// WHAT: Phase is recomputed from the score on every ApplyScore.
	// WHY: Phase must be a deterministic function of score (70/40 cutoffs);
	// the extraction-time classification is only a placeholder.
	cases := []struct {
		score int
		want  Phase
	}{
		{0, PhaseDreaming},
		{39, PhaseDreaming},
		{40, PhasePlanning},
		{69, PhasePlanning},
		{70, PhaseBooking},
		{100, PhaseBooking},
	}
	for _, tc := range cases {
		l := Lead{Phase: PhaseUnknown}.ApplyScore(tc.score, nil)
		if l.Phase != tc.want {
			t.Errorf("ApplyScore(%d): phase = %q, want %q", tc.score, l.Phase, tc.want)
		}
	}
}

func TestApplyScore_Clamps(t *testing.T) {
	// WHAT: Scores outside [0,100] are clamped.
	// WHY: The aggregate invariant is 0 <= score <= 100, regardless of what
	// the rule sum produced.
	if got := (Lead{}).ApplyScore(140, nil).Score; got != 100 {
		t.Errorf("score = %d, want 100", got)
	}
	if got := (Lead{}).ApplyScore(-30, nil).Score; got != 0 {
		t.Errorf("score = %d, want 0", got)
	}
}

func TestApplyScore_DoesNotMutateReceiver(t *testing.T) {
	// WHAT: ApplyScore returns a new value and leaves the original untouched.
	// WHY: Pure transforms keep scoring testable in isolation from storage.
	orig := Lead{Score: 10, Phase: PhaseDreaming}
	_ = orig.ApplyScore(90, []ScoreComponent{{Name: "x", Points: 90}})
	if orig.Score != 10 || orig.Phase != PhaseDreaming || orig.Breakdown != nil {
		t.Errorf("receiver mutated: %+v", orig)
	}
}

func TestWithInteraction_AppendsAndStamps(t *testing.T) {
	// WHAT: WithInteraction appends and advances LastInteractionAt.
	// WHY: Interactions are append-only and ordering by detection time
	// feeds the recent-activity scoring rule.
	l := Lead{}
	l = l.WithInteraction(Interaction{Platform: "forum", Content: "hola"})
	l = l.WithInteraction(Interaction{Platform: "forum", Content: "quiero reservar"})
	if len(l.Interactions) != 2 {
		t.Fatalf("interactions = %d, want 2", len(l.Interactions))
	}
	if l.LastInteractionAt == nil {
		t.Fatal("LastInteractionAt not set")
	}
	if !l.LastInteractionAt.Equal(l.Interactions[1].DetectedAt) {
		t.Errorf("LastInteractionAt = %v, want %v", l.LastInteractionAt, l.Interactions[1].DetectedAt)
	}
}

func TestContactInfoEmpty(t *testing.T) {
	// WHAT: Empty is true only when both phone and email are missing.
	// WHY: The runner skips candidates with no direct contact channel.
	if !(ContactInfo{}).Empty() {
		t.Error("empty contact reported as non-empty")
	}
	if (ContactInfo{Phone: "+51987654321"}).Empty() {
		t.Error("contact with phone reported as empty")
	}
	if (ContactInfo{Email: "a@b.pe"}).Empty() {
		t.Error("contact with email reported as empty")
	}
}

func TestJob_Transitions(t *testing.T) {
	// WHAT: pending -> running -> completed, with timestamps recorded.
	// WHY: The state machine is the sole failure/progress visibility channel.
	j := NewJob("j1", "forum", "https://example.com/forum", nil)
	if j.Status != JobPending {
		t.Fatalf("status = %q, want pending", j.Status)
	}
	j.Start()
	if j.Status != JobRunning || j.StartedAt == nil {
		t.Fatalf("after Start: status=%q startedAt=%v", j.Status, j.StartedAt)
	}
	j.Complete(5, 2)
	if j.Status != JobCompleted || j.CompletedAt == nil {
		t.Fatalf("after Complete: status=%q", j.Status)
	}
	if j.Progress != 100 || j.Found != 5 || j.Qualified != 2 {
		t.Errorf("progress=%d found=%d qualified=%d", j.Progress, j.Found, j.Qualified)
	}
}

func TestJob_TerminalIsSticky(t *testing.T) {
	// WHAT: No transition moves a terminal job back to running or flips it
	// to another terminal state.
	// WHY: Transitions are monotonic by contract.
	j := NewJob("j2", "generic", "https://example.com", nil)
	j.Start()
	j.Fail("boom")
	j.Start()
	if j.Status != JobFailed {
		t.Errorf("Start after Fail: status = %q, want failed", j.Status)
	}
	j.Complete(1, 1)
	if j.Status != JobFailed {
		t.Errorf("Complete after Fail: status = %q, want failed", j.Status)
	}
	j.Cancel("late")
	if j.Status != JobFailed {
		t.Errorf("Cancel after Fail: status = %q, want failed", j.Status)
	}
}

func TestJob_ProgressClampedAndMonotonic(t *testing.T) {
	// WHAT: SetProgress clamps to [0,100] and never decreases.
	// WHY: Spec property: progress is monotonically non-decreasing within
	// one run.
	j := NewJob("j3", "generic", "https://example.com", nil)
	j.SetProgress(150)
	if j.Progress != 100 {
		t.Errorf("progress = %d, want 100", j.Progress)
	}
	j.SetProgress(10)
	if j.Progress != 100 {
		t.Errorf("progress decreased to %d", j.Progress)
	}
	j2 := NewJob("j4", "generic", "https://example.com", nil)
	j2.SetProgress(-5)
	if j2.Progress != 0 {
		t.Errorf("progress = %d, want 0", j2.Progress)
	}
}

func TestJob_AddLogPrefixesTimestamp(t *testing.T) {
	// WHAT: Log lines are prefixed with a [HH:MM:SS] timestamp.
	// WHY: Run logs are replayed to operators; raw lines without time
	// context are useless for diagnosing slow scrapes.
	j := NewJob("j5", "forum", "https://example.com", nil)
	j.AddLog("starting")
	if len(j.Logs) != 1 {
		t.Fatalf("logs = %d, want 1", len(j.Logs))
	}
	if j.Logs[0][0] != '[' || len(j.Logs[0]) < len("[15:04:05] ") {
		t.Errorf("log line %q missing timestamp prefix", j.Logs[0])
	}
}

func TestJob_Duration(t *testing.T) {
	// WHAT: Duration is CompletedAt - StartedAt, zero when unfinished.
	j := NewJob("j6", "generic", "https://example.com", nil)
	if j.Duration() != 0 {
		t.Error("duration of unstarted job should be zero")
	}
	start := time.Now().UTC().Add(-3 * time.Second)
	end := time.Now().UTC()
	j.StartedAt = &start
	j.CompletedAt = &end
	if d := j.Duration(); d < 2*time.Second || d > 4*time.Second {
		t.Errorf("duration = %v, want ~3s", d)
	}
}
