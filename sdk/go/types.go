package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"dailyboard/core"
)

// ScoreUpdate is the body of a score update request.
type ScoreUpdate struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Region     string `json:"region"`
	Mode       string `json:"mode"`
	Delta      int64  `json:"delta"`
}

// UpdateResult is returned by UpdateScore.
type UpdateResult struct {
	Current     core.PlayerStanding  `json:"current"`
	Leaderboard core.LeaderboardView `json:"leaderboard"`
}

// Top is returned by Client.Top.
type Top struct {
	DateKey string          `json:"dateKey"`
	Top     []core.Standing `json:"top"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string         `json:"status"`
	Checks map[string]any `json:"checks"`
}

// Filter narrows a subscription. Empty fields match everything.
type Filter struct {
	Mode   string
	Region string
}

// Match reports whether view passes the filter.
func (f Filter) Match(view core.LeaderboardView) bool {
	if f.Mode != "" && f.Mode != view.Mode {
		return false
	}
	if f.Region != "" && f.Region != view.Region {
		return false
	}
	return true
}

// APIError is returned for non-2xx responses.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed: status %d", e.Status)
	}
	return fmt.Sprintf("request failed: status %d: %s", e.Status, e.Message)
}

// IsValidation reports whether err is a 400 from the server.
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return &APIError{Status: resp.StatusCode, Message: body.Error}
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyMode is returned when a read is issued without a mode.
var ErrEmptyMode = errors.New("mode is required")
