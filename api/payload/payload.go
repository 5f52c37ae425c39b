// Package payload decodes leaderboard requests and shapes the response
// envelopes shared by the HTTP and socket transports.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"dailyboard/core"
)

const (
	MsgUpdateFailed      = "failed to update score"
	MsgLeaderboardFailed = "failed to get leaderboard"
	MsgStatsFailed       = "failed to get statistics"
)

// UpdateRequest is the wire form of a score update. Delta is decoded as a
// json.Number so that strings and fractions can be rejected.
type UpdateRequest struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Region     string `json:"region"`
	Mode       string `json:"mode"`
	Delta      any    `json:"delta"`
}

// QueryRequest is the wire form of a leaderboard read.
type QueryRequest struct {
	Mode   string `json:"mode"`
	Region string `json:"region"`
	N      any    `json:"n"`
}

// DecodeUpdate parses a score update body.
func DecodeUpdate(data []byte) (core.ScoreUpdate, error) {
	var req UpdateRequest
	if err := decode(data, &req); err != nil {
		return core.ScoreUpdate{}, err
	}
	delta, err := core.ParseDelta(req.Delta)
	if err != nil {
		return core.ScoreUpdate{}, err
	}
	return core.ValidateUpdate(core.ScoreUpdate{
		PlayerID:   core.PlayerID(req.PlayerID),
		PlayerName: req.PlayerName,
		Region:     req.Region,
		Mode:       req.Mode,
		Delta:      delta,
	})
}

// DecodeQuery parses a leaderboard read body. An empty body is an empty query.
func DecodeQuery(data []byte) (core.Query, error) {
	var req QueryRequest
	if len(bytes.TrimSpace(data)) > 0 {
		if err := decode(data, &req); err != nil {
			return core.Query{}, err
		}
	}
	return req.Query()
}

// Query converts the request, validating n.
func (r QueryRequest) Query() (core.Query, error) {
	n, err := core.ParseLimit(r.N)
	if err != nil {
		return core.Query{}, err
	}
	return core.Query{Mode: r.Mode, Region: r.Region, Limit: n}, nil
}

func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return core.Invalid("body", "must be a JSON object")
	}
	return nil
}

// UpdateResponse is returned after a successful score update.
type UpdateResponse struct {
	OK          bool                 `json:"ok"`
	Current     core.PlayerStanding  `json:"current"`
	Leaderboard core.LeaderboardView `json:"leaderboard"`
}

// TopResponse is returned by a leaderboard read.
type TopResponse struct {
	OK      bool            `json:"ok"`
	DateKey string          `json:"dateKey"`
	Top     []core.Standing `json:"top"`
}

// StatsResponse is returned by a stats read.
type StatsResponse struct {
	OK    bool       `json:"ok"`
	Stats core.Stats `json:"stats"`
}

// ErrorResponse reports a failed request.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func Updated(res core.UpdateResult) UpdateResponse {
	return UpdateResponse{OK: true, Current: res.Player, Leaderboard: res.Leaderboard}
}

func Top(view core.LeaderboardView) TopResponse {
	top := view.Top
	if top == nil {
		top = []core.Standing{}
	}
	return TopResponse{OK: true, DateKey: view.DateKey, Top: top}
}

func StatsOf(st core.Stats) StatsResponse { return StatsResponse{OK: true, Stats: st} }

// Failure maps err to a status and envelope. Validation messages reach the
// caller verbatim; anything else is reported as fallback.
func Failure(err error, fallback string) (int, ErrorResponse) {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, ErrorResponse{Error: verr.Error()}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: fallback}
}
