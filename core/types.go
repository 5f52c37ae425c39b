package core

import (
	"errors"
	"math"
	"time"
)

// PlayerID uniquely identifies a player across modes and days.
type PlayerID string

// RegionAll labels an unfiltered (every region) leaderboard view.
const RegionAll = "all"

// Unranked is reported when a player falls outside the computed top-N.
const Unranked = 0

// ScoreRecord is the persisted row for one (player, mode, day) triple.
type ScoreRecord struct {
	PlayerID   PlayerID  `json:"playerId"`
	PlayerName string    `json:"playerName"`
	Region     string    `json:"region"`
	Mode       string    `json:"mode"`
	Score      int64     `json:"score"`
	DayKey     string    `json:"dateKey"`
	ExpiresAt  time.Time `json:"expiresAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Expired reports whether the store may reclaim the record at now.
func (r ScoreRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Standing projects the record onto the fields exposed by top-N queries.
func (r ScoreRecord) Standing() Standing {
	return Standing{
		PlayerID:   r.PlayerID,
		PlayerName: r.PlayerName,
		Region:     r.Region,
		Mode:       r.Mode,
		Score:      r.Score,
		UpdatedAt:  r.UpdatedAt,
	}
}

// Standing is one row of a ranked leaderboard.
type Standing struct {
	PlayerID   PlayerID  `json:"playerId"`
	PlayerName string    `json:"playerName"`
	Region     string    `json:"region"`
	Mode       string    `json:"mode"`
	Score      int64     `json:"score"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Less orders standings by score descending, then by the earlier update,
// then by player id so that equal rows still have a total order.
func Less(a, b Standing) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.Before(b.UpdatedAt)
	}
	return a.PlayerID < b.PlayerID
}

// RankOf returns the 1-based position of player in top, or Unranked.
func RankOf(top []Standing, player PlayerID) int {
	for i, s := range top {
		if s.PlayerID == player {
			return i + 1
		}
	}
	return Unranked
}

// ScoreUpdate is a request to add Delta to a player's score for today.
type ScoreUpdate struct {
	PlayerID   PlayerID
	PlayerName string
	Region     string
	Mode       string
	Delta      int64
}

// Query selects a leaderboard view. An empty Region means every region and a
// zero Limit means the configured default.
type Query struct {
	Mode   string
	Region string
	Limit  int
}

// LeaderboardView is a computed top-N for one mode/region on one day.
type LeaderboardView struct {
	Mode    string     `json:"mode"`
	Region  string     `json:"region"`
	DateKey string     `json:"dateKey"`
	Top     []Standing `json:"top"`
}

// PlayerStanding describes the writer's position after an update.
type PlayerStanding struct {
	PlayerID   PlayerID `json:"playerId"`
	PlayerName string   `json:"playerName"`
	Score      int64    `json:"score"`
	Rank       int      `json:"rank"`
}

// UpdateResult is returned to the caller of a successful score update.
type UpdateResult struct {
	Player      PlayerStanding  `json:"current"`
	Leaderboard LeaderboardView `json:"leaderboard"`
}

// Stats summarises today's activity for a mode and optional region.
type Stats struct {
	TotalPlayers int64  `json:"totalPlayers"`
	TotalScore   int64  `json:"totalScore"`
	DateKey      string `json:"dateKey"`
	Mode         string `json:"mode"`
	Region       string `json:"region"`
}

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, errors.New("integer overflow in AddSafe")
	}
	return base + delta, nil
}
