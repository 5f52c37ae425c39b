package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ValidateUpdate trims the textual fields of u and rejects empty ones.
func ValidateUpdate(u ScoreUpdate) (ScoreUpdate, error) {
	u.PlayerID = PlayerID(strings.TrimSpace(string(u.PlayerID)))
	u.PlayerName = strings.TrimSpace(u.PlayerName)
	u.Region = strings.TrimSpace(u.Region)
	u.Mode = strings.TrimSpace(u.Mode)
	switch {
	case u.PlayerID == "":
		return ScoreUpdate{}, Invalid("playerId", "is required")
	case u.PlayerName == "":
		return ScoreUpdate{}, Invalid("playerName", "is required")
	case u.Region == "":
		return ScoreUpdate{}, Invalid("region", "is required")
	case u.Mode == "":
		return ScoreUpdate{}, Invalid("mode", "is required")
	}
	return u, nil
}

// ValidateQuery normalises q: mode is required, a zero limit becomes
// defaultLimit and anything above maxLimit is clamped.
func ValidateQuery(q Query, defaultLimit, maxLimit int) (Query, error) {
	q.Mode = strings.TrimSpace(q.Mode)
	q.Region = strings.TrimSpace(q.Region)
	if q.Mode == "" {
		return Query{}, Invalid("mode", "is required")
	}
	switch {
	case q.Limit < 0:
		return Query{}, Invalid("n", "must be a positive integer")
	case q.Limit == 0:
		q.Limit = defaultLimit
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return q, nil
}

// ParseDelta converts a decoded JSON value into an integer delta. Strings,
// fractions and non-finite numbers are rejected even when numeric-looking.
func ParseDelta(v any) (int64, error) {
	switch d := v.(type) {
	case nil:
		return 0, Invalid("delta", "is required")
	case int:
		return int64(d), nil
	case int64:
		return d, nil
	case int32:
		return int64(d), nil
	case json.Number:
		if n, err := d.Int64(); err == nil {
			return n, nil
		}
		f, err := d.Float64()
		if err != nil {
			return 0, Invalid("delta", "must be an integer")
		}
		return floatToInt("delta", f)
	case float64:
		return floatToInt("delta", d)
	default:
		return 0, Invalid("delta", "must be an integer")
	}
}

// ParseLimit converts an optional "n" parameter. Absent values yield 0 so that
// the service default applies.
func ParseLimit(v any) (int, error) {
	var n int64
	switch d := v.(type) {
	case nil:
		return 0, nil
	case string:
		d = strings.TrimSpace(d)
		if d == "" {
			return 0, nil
		}
		parsed, err := strconv.ParseInt(d, 10, 32)
		if err != nil {
			return 0, Invalid("n", "must be a positive integer")
		}
		n = parsed
	case int:
		n = int64(d)
	case int64:
		n = d
	case json.Number:
		parsed, err := d.Int64()
		if err != nil {
			return 0, Invalid("n", "must be a positive integer")
		}
		n = parsed
	case float64:
		parsed, err := floatToInt("n", d)
		if err != nil {
			return 0, Invalid("n", "must be a positive integer")
		}
		n = parsed
	default:
		return 0, Invalid("n", "must be a positive integer")
	}
	if n <= 0 || n > math.MaxInt32 {
		return 0, Invalid("n", "must be a positive integer")
	}
	return int(n), nil
}

func floatToInt(field string, f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, Invalid(field, "must be an integer")
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, Invalid(field, "is out of range")
	}
	return int64(f), nil
}
