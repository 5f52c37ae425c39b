package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dailyboard/core"
	"dailyboard/daykey"
)

func fixedDays(t *testing.T, at time.Time) *daykey.Provider {
	t.Helper()
	p, err := daykey.Load(daykey.DefaultTimezone, daykey.WithClock(func() time.Time { return at }))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestStorePersistAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scores", "state.json")
	days := fixedDays(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	store, err := New(path, days)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	rec, err := store.IncrementScore(context.Background(), core.ScoreUpdate{PlayerID: "alice", PlayerName: "Alice", Region: "eu", Mode: "solo", Delta: 50})
	if err != nil || rec.Score != 50 {
		t.Fatalf("increment: score=%d err=%v", rec.Score, err)
	}

	// ensure file written
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file at %s", path)
	}

	// reload
	reloaded, err := New(path, days)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	top, err := reloaded.TopN(context.Background(), "solo", "eu", 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 1 || top[0].Score != 50 || top[0].PlayerName != "Alice" {
		t.Fatalf("unexpected top after reload: %+v", top)
	}
	if err := reloaded.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestStoreDropsPastDaysOnLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := New(path, fixedDays(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.IncrementScore(context.Background(), core.ScoreUpdate{PlayerID: "bob", PlayerName: "Bob", Region: "na", Mode: "solo", Delta: 3}); err != nil {
		t.Fatal(err)
	}

	later, err := New(path, fixedDays(t, time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatal(err)
	}
	st, err := later.Stats(context.Background(), "solo", "")
	if err != nil || st.TotalPlayers != 0 {
		t.Fatalf("expected no rows, got %+v %v", st, err)
	}
}

func TestStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path, nil); err == nil {
		t.Fatal("expected decode error")
	}
}
