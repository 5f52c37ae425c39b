package realtime

import (
	"encoding/json"

	"dailyboard/core"
)

// Socket event names.
const (
	EventScoreUpdate    = "score:update"
	EventLeaderboardGet = "leaderboard:get"
	EventAck            = "ack"
	EventError          = "error"
)

// Frame is the envelope exchanged over a socket. Requests carry an ID that the
// matching ack echoes back verbatim.
type Frame struct {
	Event string          `json:"event"`
	ID    json.RawMessage `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PushFrame converts a domain event into the frame sent to live viewers.
func PushFrame(ev core.Event) Frame {
	data, _ := json.Marshal(ev.Leaderboard)
	return Frame{Event: string(ev.Type), Data: data}
}

// MarshalJSON is a helper to convert events to push frame bytes for WebSocket/SSE.
func MarshalJSON(ev core.Event) []byte {
	b, _ := json.Marshal(PushFrame(ev))
	return b
}
