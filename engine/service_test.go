package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	mem "munchykit/adapters/memory"
	"munchykit/core"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T, store Storage) (*TrackerService, *fixedClock) {
	t.Helper()
	clock := &fixedClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc := NewTrackerService(store, NewEventBus(DispatchSync), DefaultRuleEngine(),
		WithClock(clock.Now),
		WithLocation(time.UTC),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	t.Cleanup(svc.Close)
	return svc, clock
}

func sodaDraft() core.WinDraft {
	return core.WinDraft{Item: "Soda", Category: "Sugary Drinks", Type: core.WinSkip}
}

func TestLogWinFirstWin(t *testing.T) {
	store := mem.New()
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	var badges []core.BadgeID
	svc.Subscribe(core.EventBadgeUnlocked, func(ctx context.Context, e core.Event) { badges = append(badges, e.Badge) })

	out, err := svc.LogWin(ctx, "Alice", sodaDraft())
	if err != nil {
		t.Fatal(err)
	}
	p := out.Snapshot.Profile
	if p.Streak != 1 || p.LastLogDate != "2026-03-10" || p.TotalMoneySaved != 5 || p.TotalCaloriesSaved != 300 {
		t.Fatalf("unexpected profile %+v", p)
	}
	if len(out.Snapshot.Wins) != 1 || out.Snapshot.Wins[0].Item != "Soda" {
		t.Fatalf("unexpected wins %+v", out.Snapshot.Wins)
	}
	if len(badges) != 1 || badges[0] != core.BadgeFirstStep {
		t.Fatalf("want first_step, got %v", badges)
	}
	if out.Events[0].Type != core.EventWinLogged || out.Events[0].UserID != "alice" {
		t.Fatalf("unexpected trigger %+v", out.Events[0])
	}

	if err := svc.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	stored, _ := store.Load(ctx, "alice")
	if stored.Profile.Streak != 1 || len(stored.Wins) != 1 || stored.Profile.CreatedAt == "" {
		t.Fatalf("not persisted: %+v", stored)
	}
}

func TestLogWinRejectsInvalidDraft(t *testing.T) {
	svc, _ := newTestService(t, mem.New())
	_, err := svc.LogWin(context.Background(), "alice", core.WinDraft{Type: core.WinSkip})
	if !errors.Is(err, core.ErrInvalidDraft) {
		t.Fatalf("want ErrInvalidDraft, got %v", err)
	}
	snap, _ := svc.Snapshot(context.Background(), "alice")
	if len(snap.Wins) != 0 {
		t.Fatal("invalid draft changed state")
	}
}

func TestStreakAcrossDays(t *testing.T) {
	svc, clock := newTestService(t, mem.New())
	ctx := context.Background()
	for day := 0; day < 7; day++ {
		if _, err := svc.LogWin(ctx, "bob", sodaDraft()); err != nil {
			t.Fatal(err)
		}
		clock.Advance(24 * time.Hour)
	}
	set, err := svc.Badges(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if !set.Has(core.BadgeStreakMaster) || !set.Has(core.BadgeSodaSlayer) {
		t.Fatalf("unexpected badges %v", set.Sorted())
	}

	clock.Advance(48 * time.Hour)
	out, _ := svc.LogWin(ctx, "bob", sodaDraft())
	if out.Snapshot.Profile.Streak != 1 {
		t.Fatalf("want reset, got %d", out.Snapshot.Profile.Streak)
	}
}

func TestChallengeLifecycle(t *testing.T) {
	svc, _ := newTestService(t, mem.New())
	ctx := context.Background()

	var completed []string
	svc.Subscribe(core.EventChallengeCompleted, func(ctx context.Context, e core.Event) {
		completed = append(completed, e.Challenge.ID)
	})

	out, err := svc.AddChallenge(ctx, "carol", core.ChallengeDraft{Title: "Walk", Target: 2, Unit: core.UnitDays})
	if err != nil {
		t.Fatal(err)
	}
	id := out.Snapshot.Profile.CustomChallenges[0].ID

	if _, err := svc.ProgressChallenge(ctx, "carol", id); err != nil {
		t.Fatal(err)
	}
	out, err = svc.ProgressChallenge(ctx, "carol", id)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Snapshot.Profile.CustomChallenges[0].Current; got != 2 {
		t.Fatalf("want 2, got %v", got)
	}
	if len(completed) != 1 || completed[0] != id {
		t.Fatalf("want one completion, got %v", completed)
	}

	if _, err := svc.ProgressChallenge(ctx, "carol", "nope"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("want ErrChallengeNotFound, got %v", err)
	}
}

func TestOnboardingAndProfile(t *testing.T) {
	svc, _ := newTestService(t, mem.New())
	ctx := context.Background()

	out, err := svc.CompleteOnboarding(ctx, "dana", core.OnboardingAnswers{
		core.QuestionName:          core.TextAnswer("Dana"),
		core.QuestionCurrentWeight: core.NumberAnswer(180),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Snapshot.Profile.OnboardingComplete || out.Snapshot.Profile.Name != "Dana" {
		t.Fatalf("unexpected %+v", out.Snapshot.Profile)
	}

	_, err = svc.CompleteOnboarding(ctx, "dana", core.OnboardingAnswers{core.QuestionName: core.NumberAnswer(1)})
	if !errors.Is(err, core.ErrInvalidAnswer) {
		t.Fatalf("want ErrInvalidAnswer, got %v", err)
	}

	name := "Dee"
	out, err = svc.UpdateProfile(ctx, "dana", core.ProfilePatch{Name: &name})
	if err != nil || out.Snapshot.Profile.Name != "Dee" {
		t.Fatalf("got %+v %v", out.Snapshot.Profile, err)
	}
}

func TestLogWeight(t *testing.T) {
	store := mem.New()
	svc, _ := newTestService(t, store)
	ctx := context.Background()
	out, err := svc.LogWeight(ctx, "erin", 172.4, "morning")
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Snapshot.Weights) != 1 || out.Snapshot.Weights[0].Date != "2026-03-10" || out.Snapshot.Weights[0].UserID != "erin" {
		t.Fatalf("unexpected %+v", out.Snapshot.Weights)
	}
	if _, err := svc.LogWeight(ctx, "erin", -1, ""); !errors.Is(err, core.ErrInvalidWeight) {
		t.Fatalf("want ErrInvalidWeight, got %v", err)
	}
	_ = svc.Flush(ctx)
	stored, _ := store.Load(ctx, "erin")
	if len(stored.Weights) != 1 {
		t.Fatalf("weights not persisted: %+v", stored.Weights)
	}
}

type flakyStore struct {
	*mem.Store
	mu      sync.Mutex
	loadErr error
	saveErr error
	loads   int
}

func (f *flakyStore) Load(ctx context.Context, user core.UserID) (core.Snapshot, error) {
	f.mu.Lock()
	f.loads++
	err := f.loadErr
	f.mu.Unlock()
	if err != nil {
		return core.Snapshot{}, err
	}
	return f.Store.Load(ctx, user)
}

func (f *flakyStore) SaveWins(ctx context.Context, user core.UserID, wins []core.Win) error {
	f.mu.Lock()
	err := f.saveErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.SaveWins(ctx, user, wins)
}

func TestWriteFailureKeepsSessionAndPublishes(t *testing.T) {
	store := &flakyStore{Store: mem.New(), saveErr: errors.New("disk full")}
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	failed := make(chan core.Event, 1)
	svc.Subscribe(core.EventPersistFailed, func(ctx context.Context, e core.Event) { failed <- e })

	out, err := svc.LogWin(ctx, "fay", sodaDraft())
	if err != nil {
		t.Fatalf("write failures must not surface: %v", err)
	}
	if out.Snapshot.Profile.Streak != 1 {
		t.Fatal("session not updated")
	}
	select {
	case ev := <-failed:
		if ev.Metadata["kind"] != KindWins {
			t.Fatalf("unexpected metadata %v", ev.Metadata)
		}
	case <-time.After(time.Second):
		t.Fatal("expected persist_failed")
	}
	snap, _ := svc.Snapshot(ctx, "fay")
	if len(snap.Wins) != 1 {
		t.Fatal("in-memory state lost after write failure")
	}
}

func TestLoadFailureIsNotCached(t *testing.T) {
	store := &flakyStore{Store: mem.New(), loadErr: errors.New("timeout")}
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	if _, err := svc.LogWin(ctx, "gus", sodaDraft()); err == nil {
		t.Fatal("expected load error")
	}
	store.mu.Lock()
	store.loadErr = nil
	store.mu.Unlock()
	if _, err := svc.LogWin(ctx, "gus", sodaDraft()); err != nil {
		t.Fatal(err)
	}
	if store.loads != 2 {
		t.Fatalf("want a fresh load after failure, got %d loads", store.loads)
	}
}

func TestSessionLoadsStoredState(t *testing.T) {
	store := mem.New()
	ctx := context.Background()
	_ = store.SaveProfile(ctx, "hal", core.UserProfile{Name: "Hal", Streak: 4, LastLogDate: "2026-03-09", TotalMoneySaved: 45})
	svc, _ := newTestService(t, store)

	var unlocked []core.BadgeID
	svc.Subscribe(core.EventBadgeUnlocked, func(ctx context.Context, e core.Event) { unlocked = append(unlocked, e.Badge) })

	out, err := svc.LogWin(ctx, "hal", sodaDraft())
	if err != nil {
		t.Fatal(err)
	}
	if out.Snapshot.Profile.Streak != 5 || out.Snapshot.Profile.TotalMoneySaved != 50 {
		t.Fatalf("unexpected %+v", out.Snapshot.Profile)
	}
	if len(unlocked) != 2 || unlocked[0] != core.BadgeFirstStep || unlocked[1] != core.BadgeMoneyBags {
		t.Fatalf("unexpected unlocks %v", unlocked)
	}
}

func TestConcurrentWinsSerializePerUser(t *testing.T) {
	store := mem.New()
	svc, _ := newTestService(t, store)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.LogWin(ctx, "ivy", sodaDraft()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if err := svc.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	snap, _ := svc.Snapshot(ctx, "ivy")
	if len(snap.Wins) != 50 || snap.Profile.TotalMoneySaved != 250 {
		t.Fatalf("lost updates: wins=%d money=%v", len(snap.Wins), snap.Profile.TotalMoneySaved)
	}
	stored, _ := store.Load(ctx, "ivy")
	if len(stored.Wins) != 50 {
		t.Fatalf("stale write won: stored %d wins", len(stored.Wins))
	}
}

func TestNormalizeUserIDRejected(t *testing.T) {
	svc, _ := newTestService(t, mem.New())
	if _, err := svc.Snapshot(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty user")
	}
}

func TestPingDoesNotCacheSession(t *testing.T) {
	svc, _ := newTestService(t, mem.New())
	if err := svc.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	svc.mu.Lock()
	n := len(svc.sessions)
	svc.mu.Unlock()
	if n != 0 {
		t.Fatalf("ping cached %d sessions", n)
	}
}
