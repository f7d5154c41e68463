// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/trophytrack/internal/clock"
	"github.com/tomtom215/trophytrack/internal/identity"
	"github.com/tomtom215/trophytrack/internal/models"
	"github.com/tomtom215/trophytrack/internal/psn"
	"github.com/tomtom215/trophytrack/internal/reconcile"
	"github.com/tomtom215/trophytrack/internal/store"
)

// fakeRemote is an in-process stand-in for the upstream adapter.
type fakeRemote struct {
	mu sync.Mutex

	titles      []psn.TitleSummary
	defs        map[string][]psn.TrophyRecord
	earned      map[string][]psn.EarnedRecord
	listErr     error
	defsErr     map[string]error
	validateErr error
	private     bool

	// gate, when set, blocks ListTrophyDefinitions until closed or the
	// request context ends.
	gate chan struct{}
}

func (f *fakeRemote) ValidateAccount(_ context.Context, _ psn.AccessCredential, accountID string) (psn.AccountSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.validateErr != nil {
		return psn.AccountSummary{}, f.validateErr
	}
	return psn.AccountSummary{AccountID: accountID, Public: !f.private, DisplayName: "hunter"}, nil
}

func (f *fakeRemote) ListTitles(_ context.Context, _ psn.AccessCredential, _ string, offset int) (psn.TitlesPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return psn.TitlesPage{}, f.listErr
	}
	if offset > 0 {
		return psn.TitlesPage{Done: true}, nil
	}
	return psn.TitlesPage{Titles: f.titles, Done: true}, nil
}

func (f *fakeRemote) ListTrophyDefinitions(ctx context.Context, _ psn.AccessCredential, title psn.TitleSummary) ([]psn.TrophyRecord, int, error) {
	f.mu.Lock()
	gate := f.gate
	err := f.defsErr[title.ExternalID]
	defs := f.defs[title.ExternalID]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
	if err != nil {
		return nil, 0, err
	}
	return defs, 0, nil
}

func (f *fakeRemote) ListEarnedTrophies(_ context.Context, _ psn.AccessCredential, _ string, title psn.TitleSummary) ([]psn.EarnedRecord, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.earned[title.ExternalID], 0, nil
}

type testRig struct {
	engine *Engine
	store  *store.BadgerStore
	remote *fakeRemote
	clk    *clock.Mock
}

func newRig(t *testing.T, remote *fakeRemote) *testRig {
	t.Helper()
	s, err := store.Open("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	clk := clock.NewMock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	idc := identity.NewCache(s, remote, 24*time.Hour, clk)
	rec := reconcile.New(s, clk)
	eng := New(s, remote, idc, rec, nil, clk, Config{
		MaxTitles:   2000,
		MinInterval: 5 * time.Minute,
	})
	t.Cleanup(eng.Stop)

	err = s.PutCredential(&models.Credential{
		UserID:               "u1",
		ExternalID:           "12345",
		EncryptedAccessToken: []byte("plain-token"),
		Active:               true,
	})
	if err != nil {
		t.Fatal(err)
	}
	return &testRig{engine: eng, store: s, remote: remote, clk: clk}
}

func (r *testRig) waitTerminal(t *testing.T, jobID string) *models.SyncJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := r.engine.GetJobStatus(jobID)
		if err != nil {
			t.Fatal(err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal state")
	return nil
}

func twoTitleRemote() *fakeRemote {
	return &fakeRemote{
		titles: []psn.TitleSummary{
			{ExternalID: "NPWR_A", Name: "Alpha", DefinedBronze: 2},
			{ExternalID: "NPWR_B", Name: "Beta", DefinedBronze: 1},
		},
		defs: map[string][]psn.TrophyRecord{
			"NPWR_A": {
				{TrophyID: 0, Tier: models.TierBronze, Name: "A0"},
				{TrophyID: 1, Tier: models.TierBronze, Name: "A1"},
			},
			"NPWR_B": {
				{TrophyID: 0, Tier: models.TierBronze, Name: "B0"},
			},
		},
		earned: map[string][]psn.EarnedRecord{
			"NPWR_A": {
				{TrophyID: 0, Earned: true},
				{TrophyID: 1, Earned: false},
			},
			"NPWR_B": {
				{TrophyID: 0, Earned: true},
			},
		},
	}
}

func TestSyncHappyPath(t *testing.T) {
	rig := newRig(t, twoTitleRemote())

	job, err := rig.engine.StartSync(context.Background(), "u1", models.JobTypeManual)
	if err != nil {
		t.Fatalf("StartSync() error = %v", err)
	}
	done := rig.waitTerminal(t, job.ID)

	if done.Status != models.JobCompleted {
		t.Fatalf("Status = %s, want completed (error: %s)", done.Status, done.ErrorMessage)
	}
	if done.TitlesFound != 2 || done.TitlesCreated != 2 {
		t.Errorf("TitlesFound = %d, TitlesCreated = %d", done.TitlesFound, done.TitlesCreated)
	}
	if done.NewlyEarned != 2 {
		t.Errorf("NewlyEarned = %d, want 2", done.NewlyEarned)
	}
	if done.ProgressPercent != 100 {
		t.Errorf("ProgressPercent = %d, want 100", done.ProgressPercent)
	}
	// 2 bronze at default weight 3.0
	if done.ScoreAfter != 6 {
		t.Errorf("ScoreAfter = %d, want 6", done.ScoreAfter)
	}
	if done.ScoreGained() != 6 {
		t.Errorf("ScoreGained() = %d, want 6", done.ScoreGained())
	}

	stats, err := rig.store.GetStats("u1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalScore != 6 || stats.Level != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSyncIdempotentRerun(t *testing.T) {
	rig := newRig(t, twoTitleRemote())

	job, err := rig.engine.StartSync(context.Background(), "u1", models.JobTypeManual)
	if err != nil {
		t.Fatal(err)
	}
	rig.waitTerminal(t, job.ID)

	rig.clk.Advance(10 * time.Minute)
	job2, err := rig.engine.StartSync(context.Background(), "u1", models.JobTypeManual)
	if err != nil {
		t.Fatal(err)
	}
	done := rig.waitTerminal(t, job2.ID)

	if done.Status != models.JobCompleted {
		t.Fatalf("second run status = %s", done.Status)
	}
	if done.NewlyEarned != 0 {
		t.Errorf("second run NewlyEarned = %d, want 0", done.NewlyEarned)
	}
	if done.TitlesCreated != 0 {
		t.Errorf("second run TitlesCreated = %d, want 0", done.TitlesCreated)
	}
	if done.ScoreAfter != done.ScoreBefore {
		t.Errorf("score moved on identical re-run: %d -> %d", done.ScoreBefore, done.ScoreAfter)
	}
}

func TestStartSyncAlreadyRunning(t *testing.T) {
	remote := twoTitleRemote()
	remote.gate = make(chan struct{})
	rig := newRig(t, remote)

	job, err := rig.engine.StartSync(context.Background(), "u1", models.JobTypeManual)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := rig.engine.StartSync(context.Background(), "u1", models.JobTypeManual); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second StartSync error = %v, want ErrAlreadyRunning", err)
	}

	close(remote.gate)
	rig.waitTerminal(t, job.ID)
}

func TestStartSyncThrottled(t *testing.T) {
	rig := newRig(t, twoTitleRemote())

	job, err := rig.engine.StartSync(context.Background(), "u1", models.JobTypeManual)
	if err != nil {
		t.Fatal(err)
	}
	rig.waitTerminal(t, job.ID)

	if _, err := rig.engine.StartSync(context.Background(), "u1", models.JobTypeManual); !errors.Is(err, ErrSyncedRecently) {
		t.Errorf("StartSync right after completion = %v, want ErrSyncedRecently", err)
	}

	rig.clk.Advance(6 * time.Minute)
	job2, err := rig.engine.StartSync(context.Background(), "u1", models.JobTypeManual)
	if err != nil {
		t.Fatalf("StartSync after interval = %v", err)
	}
	rig.waitTerminal(t, job2.ID)
}

func TestStartSyncNoCredential(t *testing.T) {
	rig := newRig(t, twoTitleRemote())

	if _, err := rig.engine.StartSync(context.Background(), "stranger", models.JobTypeManual); !errors.Is(err, psn.ErrNoCredential) {
		t.Errorf("StartSync without credential = %v, want ErrNoCredential", err)
	}
}

func TestSyncAuthExpiredFails(t *testing.T) {
	remote := twoTitleRemote()
	remote.listErr = psn.ErrAuthExpired
	rig := newRig(t, remote)

	job, err := rig.engine.StartSync(context.Background(), "u1", models.JobTypeManual)
	if err != nil {
		t.Fatal(err)
	}
	done := rig.waitTerminal(t, job.ID)

	if done.Status != models.JobFailed {
		t.Fatalf("Status = %s, want failed", done.Status)
	}
	if done.ErrorMessage == "" {
		t.Error("ErrorMessage empty on failed job")
	}
}

func TestSyncInvalidIdentityFails(t *testing.T) {
	remote := twoTitleRemote()
	remote.validateErr = psn.ErrNotFound
	rig := newRig(t, remote)

	job, err := rig.engine.StartSync(context.Background(), "u1", models.JobTypeManual)
	if err != nil {
		t.Fatal(err)
	}
	done := rig.waitTerminal(t, job.ID)
	if done.Status != models.JobFailed {
		t.Errorf("Status = %s, want failed for nonexistent account", done.Status)
	}
}

func TestSyncPrivateProfileCompletesEmpty(t *testing.T) {
	remote := twoTitleRemote()
	remote.private = true
	rig := newRig(t, remote)

	job, err := rig.engine.StartSync(context.Background(), "u1", models.JobTypeManual)
	if err != nil {
		t.Fatal(err)
	}
	done := rig.waitTerminal(t, job.ID)

	if done.Status != models.JobCompleted {
		t.Fatalf("Status = %s, want completed", done.Status)
	}
	if done.TitlesFound != 0 {
		t.Errorf("TitlesFound = %d, want 0", done.TitlesFound)
	}
	if done.WarningsCount == 0 {
		t.Error("WarningsCount = 0, want a private-profile warning")
	}
}

func TestSyncZeroTitlesCompletes(t *testing.T) {
	rig := newRig(t, &fakeRemote{})

	job, err := rig.engine.StartSync(context.Background(), "u1", models.JobTypeManual)
	if err != nil {
		t.Fatal(err)
	}
	done := rig.waitTerminal(t, job.ID)

	if done.Status != models.JobCompleted {
		t.Errorf("Status = %s, want completed for empty library", done.Status)
	}
	if done.ProgressPercent != 100 {
		t.Errorf("ProgressPercent = %d, want 100", done.ProgressPercent)
	}
}

func TestSyncPerTitleErrorDegrades(t *testing.T) {
	remote := twoTitleRemote()
	remote.defsErr = map[string]error{"NPWR_A": psn.ErrTransient}
	rig := newRig(t, remote)

	job, err := rig.engine.StartSync(context.Background(), "u1", models.JobTypeManual)
	if err != nil {
		t.Fatal(err)
	}
	done := rig.waitTerminal(t, job.ID)

	if done.Status != models.JobCompleted {
		t.Fatalf("Status = %s, want completed despite one bad title", done.Status)
	}
	if done.ErrorsCount != 1 {
		t.Errorf("ErrorsCount = %d, want 1", done.ErrorsCount)
	}
	// The healthy title still synced.
	if done.NewlyEarned != 1 {
		t.Errorf("NewlyEarned = %d, want 1 from the healthy title", done.NewlyEarned)
	}
}

func TestCancelJob(t *testing.T) {
	remote := twoTitleRemote()
	remote.gate = make(chan struct{})
	rig := newRig(t, remote)

	job, err := rig.engine.StartSync(context.Background(), "u1", models.JobTypeManual)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := rig.engine.CancelJob(job.ID); err != nil {
		t.Fatalf("CancelJob() error = %v", err)
	}
	done := rig.waitTerminal(t, job.ID)
	if done.Status != models.JobCancelled {
		t.Fatalf("Status = %s, want cancelled", done.Status)
	}

	// Cancelling a terminal job is a no-op.
	again, err := rig.engine.CancelJob(job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.Status != models.JobCancelled {
		t.Errorf("repeat cancel Status = %s", again.Status)
	}

	if _, err := rig.engine.CancelJob("no-such-job"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("CancelJob(unknown) = %v, want ErrJobNotFound", err)
	}
}

func TestValidateIdentity(t *testing.T) {
	rig := newRig(t, twoTitleRemote())

	ident, err := rig.engine.ValidateIdentity(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ValidateIdentity() error = %v", err)
	}
	if !ident.Valid || !ident.Public {
		t.Errorf("identity = %+v", ident)
	}
	if ident.DisplayName != "hunter" {
		t.Errorf("DisplayName = %q", ident.DisplayName)
	}
}

func TestGetJobStatusUnknown(t *testing.T) {
	rig := newRig(t, twoTitleRemote())
	if _, err := rig.engine.GetJobStatus("missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("GetJobStatus(missing) = %v, want ErrJobNotFound", err)
	}
}
