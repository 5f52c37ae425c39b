package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"dailyboard/core"
)

func view() core.LeaderboardView {
	return core.LeaderboardView{
		Mode:    "solo",
		Region:  "eu",
		DateKey: "2024-05-01",
		Top:     []core.Standing{{PlayerID: "bob", PlayerName: "Bob", Score: 10}},
	}
}

func TestHubSubscribeBroadcastUnsubscribe(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(1)

	ev := core.NewLeaderboardChanged("", view())
	if err := h.Broadcast(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	received := <-ch
	if received.Leaderboard.Mode != "solo" || received.Type != core.EventLeaderboardChanged {
		t.Fatalf("unexpected event: %+v", received)
	}

	h.Unsubscribe(id)
	_, ok := <-ch
	if ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
	if h.Len() != 0 {
		t.Fatalf("expected no subscribers, got %d", h.Len())
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	h := NewHub()
	_, ch := h.Subscribe(1)
	ev := core.NewLeaderboardChanged("", view())
	_ = h.Broadcast(context.Background(), ev)
	_ = h.Broadcast(context.Background(), ev)

	if len(ch) != 1 {
		t.Fatalf("expected one buffered event, got %d", len(ch))
	}
	if h.Dropped() != 1 {
		t.Fatalf("expected one drop, got %d", h.Dropped())
	}
}

func TestMarshalJSON(t *testing.T) {
	b := MarshalJSON(core.NewLeaderboardChanged("conn-1", view()))
	var out struct {
		Event string               `json:"event"`
		Data  core.LeaderboardView `json:"data"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Event != "leaderboard:changed" {
		t.Fatalf("unexpected event: %s", out.Event)
	}
	if out.Data.DateKey != "2024-05-01" || len(out.Data.Top) != 1 {
		t.Fatalf("unexpected data: %+v", out.Data)
	}
}
