package core

import (
	"context"
	"time"
)

// EventType enumerates domain events.
type EventType string

const (
	EventLeaderboardChanged EventType = "leaderboard:changed"
)

// Event represents an immutable domain event.
type Event struct {
	Type        EventType       `json:"type"`
	Time        time.Time       `json:"time"`
	Origin      string          `json:"origin,omitempty"`
	Leaderboard LeaderboardView `json:"leaderboard"`
}

// NewLeaderboardChanged announces a refreshed top-N after a successful write.
// Origin identifies the writer's connection, if any, so transports can skip it.
func NewLeaderboardChanged(origin string, view LeaderboardView) Event {
	return Event{Type: EventLeaderboardChanged, Time: time.Now().UTC(), Origin: origin, Leaderboard: view}
}

type originKey struct{}

// WithOrigin tags ctx with the id of the connection issuing a request.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFrom returns the connection id set by WithOrigin, or "".
func OriginFrom(ctx context.Context) string {
	origin, _ := ctx.Value(originKey{}).(string)
	return origin
}
