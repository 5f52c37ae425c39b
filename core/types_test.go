package core

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

func TestAddSafe(t *testing.T) {
	if v, err := AddSafe(10, 5); err != nil || v != 15 {
		t.Fatalf("got %v %v", v, err)
	}
	if v, err := AddSafe(10, -25); err != nil || v != -15 {
		t.Fatalf("got %v %v", v, err)
	}
	if _, err := AddSafe(math.MaxInt64, 1); err == nil {
		t.Fatalf("expected overflow")
	}
}

func TestLessOrdersByScoreThenEarlierUpdate(t *testing.T) {
	t1 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Second)

	high := Standing{PlayerID: "z", Score: 300, UpdatedAt: t2}
	early := Standing{PlayerID: "p2", Score: 200, UpdatedAt: t1}
	late := Standing{PlayerID: "p1", Score: 200, UpdatedAt: t2}

	if !Less(high, early) {
		t.Fatal("higher score should rank first")
	}
	if !Less(early, late) || Less(late, early) {
		t.Fatal("earlier update should win ties")
	}
	sameTime := Standing{PlayerID: "a", Score: 200, UpdatedAt: t2}
	if !Less(sameTime, late) {
		t.Fatal("player id should break exact ties")
	}
}

func TestRankOf(t *testing.T) {
	top := []Standing{{PlayerID: "a"}, {PlayerID: "b"}}
	if RankOf(top, "b") != 2 {
		t.Fatal("expected rank 2")
	}
	if RankOf(top, "c") != Unranked {
		t.Fatal("expected unranked")
	}
}

func TestValidateUpdate(t *testing.T) {
	u, err := ValidateUpdate(ScoreUpdate{PlayerID: " p1 ", PlayerName: "Alice", Region: "EU-West", Mode: "solo", Delta: 5})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if u.PlayerID != "p1" {
		t.Fatalf("expected trimmed id, got %q", u.PlayerID)
	}

	_, err = ValidateUpdate(ScoreUpdate{PlayerID: "p1", PlayerName: "Alice", Mode: "solo"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err.Error() != "region is required" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestValidateQuery(t *testing.T) {
	q, err := ValidateQuery(Query{Mode: "solo"}, 10, 100)
	if err != nil || q.Limit != 10 {
		t.Fatalf("default limit: %+v %v", q, err)
	}
	q, err = ValidateQuery(Query{Mode: "solo", Limit: 500}, 10, 100)
	if err != nil || q.Limit != 100 {
		t.Fatalf("clamped limit: %+v %v", q, err)
	}
	if _, err := ValidateQuery(Query{Mode: " "}, 10, 100); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected mode error, got %v", err)
	}
	if _, err := ValidateQuery(Query{Mode: "solo", Limit: -1}, 10, 100); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected limit error, got %v", err)
	}
}

func TestParseDelta(t *testing.T) {
	good := map[string]any{
		"int":          7,
		"negative":     int64(-3),
		"float":        float64(12),
		"json number":  json.Number("42"),
		"json integer": json.Number("1e2"),
	}
	for name, v := range good {
		if _, err := ParseDelta(v); err != nil {
			t.Fatalf("%s: unexpected err %v", name, err)
		}
	}

	bad := map[string]any{
		"missing":  nil,
		"string":   "abc",
		"numeric":  "10",
		"fraction": 1.5,
		"nan":      math.NaN(),
		"inf":      math.Inf(1),
		"bool":     true,
		"huge":     json.Number("1e30"),
	}
	for name, v := range bad {
		if _, err := ParseDelta(v); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestParseLimit(t *testing.T) {
	if n, err := ParseLimit(""); err != nil || n != 0 {
		t.Fatalf("empty: %d %v", n, err)
	}
	if n, err := ParseLimit("25"); err != nil || n != 25 {
		t.Fatalf("string: %d %v", n, err)
	}
	if n, err := ParseLimit(json.Number("5")); err != nil || n != 5 {
		t.Fatalf("number: %d %v", n, err)
	}
	for _, v := range []any{"0", "-2", "ten", 2.5, false} {
		if _, err := ParseLimit(v); !errors.Is(err, ErrValidation) {
			t.Fatalf("%v: expected validation error, got %v", v, err)
		}
	}
}

func TestStorageErrorWrapping(t *testing.T) {
	err := NewStorageError("top n", context.DeadlineExceeded)
	if !errors.Is(err, ErrStorage) {
		t.Fatal("expected ErrStorage")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("expected cause to unwrap")
	}
	if again := NewStorageError("other", err); again != err {
		t.Fatal("expected existing storage error to be reused")
	}
	if NewStorageError("noop", nil) != nil {
		t.Fatal("nil error should stay nil")
	}
}

func TestOriginContext(t *testing.T) {
	ctx := WithOrigin(context.Background(), "conn-1")
	if OriginFrom(ctx) != "conn-1" {
		t.Fatal("origin not propagated")
	}
	if OriginFrom(context.Background()) != "" {
		t.Fatal("expected empty origin")
	}
}
