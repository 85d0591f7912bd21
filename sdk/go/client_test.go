package sdk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"munchykit/analytics"
	"munchykit/api/httpapi"
	"munchykit/core"
	"munchykit/engine"
	"munchykit/leaderboard"
	"munchykit/munchy"
	"munchykit/realtime"
)

func newTestServer(t *testing.T, apiKeys ...string) *httptest.Server {
	t.Helper()
	hub := realtime.NewHub()
	svc := munchy.New(
		munchy.WithRealtime(hub),
		munchy.WithDispatchMode(engine.DispatchSync),
		munchy.WithLocation(time.UTC),
		munchy.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	standings := leaderboard.NewStandings(svc, nil)
	analytics.Attach(svc, standings)
	srv := httptest.NewServer(httpapi.NewMux(svc, hub, httpapi.Options{
		PathPrefix:  "/api",
		APIKeys:     apiKeys,
		Leaderboard: standings,
	}))
	t.Cleanup(func() {
		srv.Close()
		svc.Close()
	})
	return srv
}

func TestClient_TrackingFlow(t *testing.T) {
	srv := newTestServer(t, "k1")

	client, err := NewClient(srv.URL+"/api", WithAPIKey("k1"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx := context.Background()

	out, err := client.LogWin(ctx, "alice", core.WinDraft{Item: "Soda", Category: "Sugary Drinks", Type: core.WinSkip})
	if err != nil {
		t.Fatalf("log win: %v", err)
	}
	if out.Snapshot.Profile.Streak != 1 || out.Snapshot.Profile.TotalMoneySaved != 5 {
		t.Fatalf("unexpected profile: %+v", out.Snapshot.Profile)
	}

	if _, err := client.LogWeight(ctx, "alice", 181.2, "morning"); err != nil {
		t.Fatalf("log weight: %v", err)
	}

	added, err := client.AddChallenge(ctx, "alice", core.ChallengeDraft{Title: "No soda", Target: 1})
	if err != nil {
		t.Fatalf("add challenge: %v", err)
	}
	id := added.Snapshot.Profile.CustomChallenges[0].ID
	progressed, err := client.ProgressChallenge(ctx, "alice", id)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if !progressed.Snapshot.Profile.CustomChallenges[0].Completed() {
		t.Fatalf("expected completed challenge: %+v", progressed.Snapshot.Profile.CustomChallenges)
	}
	if _, err := client.ProgressChallenge(ctx, "alice", "missing"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err := client.CompleteOnboarding(ctx, "alice", core.OnboardingAnswers{
		core.QuestionName: core.TextAnswer("Alice"),
	}); err != nil {
		t.Fatalf("onboarding: %v", err)
	}
	name := "Al"
	if _, err := client.UpdateProfile(ctx, "alice", core.ProfilePatch{Name: &name}); err != nil {
		t.Fatalf("update profile: %v", err)
	}

	snap, err := client.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if snap.Profile.Name != "Al" || len(snap.Wins) != 1 || len(snap.Weights) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	badges, err := client.Badges(ctx, "alice")
	if err != nil || len(badges) != 4 || !badges[0].Unlocked {
		t.Fatalf("badges=%+v err=%v", badges, err)
	}

	stats, err := client.Stats(ctx, "alice")
	if err != nil || stats.Weight.Current != 181.2 {
		t.Fatalf("stats=%+v err=%v", stats, err)
	}

	questions, err := client.Questions(ctx)
	if err != nil || len(questions) == 0 {
		t.Fatalf("questions=%d err=%v", len(questions), err)
	}

	health, err := client.Health(ctx)
	if err != nil || health.Status != "healthy" {
		t.Fatalf("health: %+v err=%v", health, err)
	}
}

func TestClient_Errors(t *testing.T) {
	srv := newTestServer(t, "k1")
	ctx := context.Background()

	noKey, _ := NewClient(srv.URL + "/api")
	_, err := noKey.GetUser(ctx, "alice")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 401 || apiErr.Code != "unauthorized" {
		t.Fatalf("expected 401 APIError, got %v", err)
	}

	client, _ := NewClient(srv.URL+"/api", WithAuthToken("k1"))
	if _, err := client.LogWin(ctx, "alice", core.WinDraft{Item: "x", Category: "Nope", Type: core.WinSkip}); !errors.As(err, &apiErr) || apiErr.Code != "invalid_input" {
		t.Fatalf("expected invalid_input, got %v", err)
	}
	if _, err := client.GetUser(ctx, " "); !errors.Is(err, ErrEmptyUserID) {
		t.Fatalf("expected ErrEmptyUserID, got %v", err)
	}
	if _, err := NewClient(""); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}

func TestClient_SubscribeEvents(t *testing.T) {
	srv := newTestServer(t)

	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := client.SubscribeEvents(ctx, "alice")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// the hub registers the subscriber after the upgrade completes
	deadline := time.Now().Add(time.Second)
	for {
		if _, err := client.LogWin(ctx, "bob", core.WinDraft{Item: "Chips", Category: "Salty Snacks", Type: core.WinSkip}); err != nil {
			t.Fatalf("log win: %v", err)
		}
		if _, err := client.LogWin(ctx, "alice", core.WinDraft{Item: "Soda", Category: "Sugary Drinks", Type: core.WinSkip}); err != nil {
			t.Fatalf("log win: %v", err)
		}
		select {
		case evt := <-events:
			if evt.UserID != "alice" {
				t.Fatalf("filter leaked event for %s", evt.UserID)
			}
			if evt.Type != core.EventWinLogged && evt.Type != core.EventBadgeUnlocked {
				t.Fatalf("unexpected event type: %s", evt.Type)
			}
			return
		case <-time.After(50 * time.Millisecond):
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestDeriveWSURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080/api":  "ws://localhost:8080/api/ws",
		"https://munchy.example/api": "wss://munchy.example/api/ws",
		"http://localhost:8080":      "ws://localhost:8080/ws",
	}
	for in, want := range cases {
		if got := deriveWSURL(in); got != want {
			t.Fatalf("%s: want %s got %s", in, want, got)
		}
	}
}

func TestClient_Leaderboard(t *testing.T) {
	srv := newTestServer(t)
	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx := context.Background()

	for _, u := range []string{"amy", "bob", "bob"} {
		if _, err := client.LogWin(ctx, u, core.WinDraft{Item: "Candy", Category: "Sweets/Candy", Type: core.WinSkip}); err != nil {
			t.Fatalf("log win: %v", err)
		}
	}

	board, err := client.Leaderboard(ctx, "savings", 1)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 1 || board[0].User != "bob" || board[0].Value != 10 || board[0].Rank != 1 {
		t.Fatalf("unexpected board: %+v", board)
	}

	if _, err := client.Leaderboard(ctx, "calories", 0); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
