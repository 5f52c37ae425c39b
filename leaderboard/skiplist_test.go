package leaderboard

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"
	"time"

	"dailyboard/core"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func st(id string, region string, score int64, at time.Time) core.Standing {
	return core.Standing{PlayerID: core.PlayerID(id), Region: region, Score: score, UpdatedAt: at}
}

func ids(top []core.Standing) []core.PlayerID {
	out := make([]core.PlayerID, len(top))
	for i, s := range top {
		out[i] = s.PlayerID
	}
	return out
}

func TestSkipListBasic(t *testing.T) {
	l := NewSkipList()
	l.Upsert(st("a", "eu", 10, t0))
	l.Upsert(st("b", "eu", 20, t0))
	l.Upsert(st("c", "na", 15, t0))
	top := l.TopN(3, nil)
	if got := fmt.Sprint(ids(top)); got != "[b c a]" {
		t.Fatalf("unexpected order: %s", got)
	}
	l.Upsert(st("a", "eu", 25, t0.Add(time.Second)))
	top = l.TopN(1, nil)
	if top[0].PlayerID != "a" {
		t.Fatalf("top should be a, got %#v", top)
	}
	if l.Len() != 3 {
		t.Fatalf("expected 3 players, got %d", l.Len())
	}
}

func TestSkipListTieBreaksOnEarlierUpdate(t *testing.T) {
	l := NewSkipList()
	l.Upsert(st("p1", "eu", 200, t0.Add(time.Second)))
	l.Upsert(st("p2", "eu", 200, t0))
	top := l.TopN(2, nil)
	if top[0].PlayerID != "p2" || top[1].PlayerID != "p1" {
		t.Fatalf("earlier update should rank first: %v", ids(top))
	}
}

func TestSkipListRegionFilter(t *testing.T) {
	l := NewSkipList()
	l.Upsert(st("a", "eu", 50, t0))
	l.Upsert(st("b", "na", 40, t0))
	l.Upsert(st("c", "eu", 30, t0))
	l.Upsert(st("d", "eu", 20, t0))

	top := l.TopN(2, InRegion("eu"))
	if got := fmt.Sprint(ids(top)); got != "[a c]" {
		t.Fatalf("unexpected region view: %s", got)
	}
	if InRegion("") != nil || InRegion(core.RegionAll) != nil {
		t.Fatal("all-regions filter should be nil")
	}
}

func TestSkipListEmptyAndRemove(t *testing.T) {
	l := NewSkipList()
	if top := l.TopN(5, nil); top == nil || len(top) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", top)
	}
	l.Upsert(st("a", "eu", 1, t0))
	l.Remove("a")
	l.Remove("missing")
	if _, ok := l.Get("a"); ok {
		t.Fatal("a should be gone")
	}
	if l.Len() != 0 {
		t.Fatalf("expected empty list, got %d", l.Len())
	}
}

func TestSkipListMatchesSort(t *testing.T) {
	l := NewSkipList()
	want := map[core.PlayerID]core.Standing{}
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 2000; i++ {
		id := fmt.Sprintf("p%d", r.IntN(150))
		s := st(id, "eu", int64(r.IntN(50)), t0.Add(time.Duration(i)*time.Millisecond))
		l.Upsert(s)
		want[s.PlayerID] = s
	}
	expected := make([]core.Standing, 0, len(want))
	for _, s := range want {
		expected = append(expected, s)
	}
	sort.Slice(expected, func(i, j int) bool { return core.Less(expected[i], expected[j]) })

	got := l.TopN(len(expected), nil)
	if len(got) != len(expected) {
		t.Fatalf("expected %d, got %d", len(expected), len(got))
	}
	for i := range got {
		if got[i] != expected[i] {
			t.Fatalf("mismatch at %d: %#v vs %#v", i, got[i], expected[i])
		}
	}
}
