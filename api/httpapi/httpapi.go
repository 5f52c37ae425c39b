package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	wsadapter "dailyboard/adapters/websocket"
	"dailyboard/api/payload"
	"dailyboard/core"
	"dailyboard/engine"
	"dailyboard/metrics"
	"dailyboard/realtime"
)

const maxBodyBytes = 1 << 20

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// RateLimitCleanup is how long an idle client bucket is kept.
	RateLimitCleanup time.Duration
	// Metrics, if set, is served as JSON at {prefix}/metrics.
	Metrics *metrics.Registry
	// Socket tunes WebSocket connections.
	Socket wsadapter.Options
	Logger *slog.Logger
}

type api struct {
	svc *engine.LeaderboardService
	log *slog.Logger
}

// NewMux builds an http.Handler exposing the leaderboard REST API and WebSocket.
// Routes:
//   - POST {prefix}/leaderboard/score/update
//   - GET  {prefix}/leaderboard/top?mode=solo&region=EU&n=10
//   - GET  {prefix}/leaderboard/stats?mode=solo&region=EU
//   - GET  /health and {prefix}/healthz
//   - GET  {prefix}/metrics
//   - WS   {prefix}/ws
func NewMux(svc *engine.LeaderboardService, hub *realtime.Hub, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	a := &api{svc: svc, log: opts.Logger.With("component", "httpapi")}
	mux := http.NewServeMux()

	// health
	mux.HandleFunc("/health", a.health)
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/healthz"), a.health)

	// WebSocket
	if hub != nil {
		if opts.Socket.Logger == nil {
			opts.Socket.Logger = opts.Logger
		}
		mux.Handle(withPrefix(opts.PathPrefix, "/ws"), wsadapter.Handler(svc, hub, opts.Socket))
	}

	// Leaderboard API
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/leaderboard/score/update"), a.updateScore)
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/leaderboard/top"), a.top)
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/leaderboard/stats"), a.stats)

	if opts.Metrics != nil {
		mux.HandleFunc(withPrefix(opts.PathPrefix, "/metrics"), func(w http.ResponseWriter, r *http.Request) {
			if !allowMethod(w, r, http.MethodGet) {
				return
			}
			writeJSON(w, http.StatusOK, opts.Metrics.Snapshot())
		})
	}

	var handler http.Handler = mux
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, opts.RateLimitRPM, opts.RateLimitBurst, opts.RateLimitCleanup)
	}
	return handler
}

func (a *api) updateScore(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	u, err := payload.DecodeUpdate(body)
	if err != nil {
		a.fail(w, err, payload.MsgUpdateFailed)
		return
	}
	res, err := a.svc.UpdateScore(r.Context(), u)
	if err != nil {
		a.fail(w, err, payload.MsgUpdateFailed)
		return
	}
	writeJSON(w, http.StatusOK, payload.Updated(res))
}

func (a *api) top(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	params := r.URL.Query()
	q, err := payload.QueryRequest{Mode: params.Get("mode"), Region: params.Get("region"), N: params.Get("n")}.Query()
	if err != nil {
		a.fail(w, err, payload.MsgLeaderboardFailed)
		return
	}
	view, err := a.svc.GetLeaderboard(r.Context(), q)
	if err != nil {
		a.fail(w, err, payload.MsgLeaderboardFailed)
		return
	}
	writeJSON(w, http.StatusOK, payload.Top(view))
}

func (a *api) stats(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	params := r.URL.Query()
	st, err := a.svc.Stats(r.Context(), params.Get("mode"), params.Get("region"))
	if err != nil {
		a.fail(w, err, payload.MsgStatsFailed)
		return
	}
	writeJSON(w, http.StatusOK, payload.StatsOf(st))
}

// health verifies the ranking store answers a ping.
func (a *api) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": map[string]any{
			"storage": "ok",
		},
	}
	code := http.StatusOK
	if err := a.svc.Health(r.Context()); err != nil {
		a.log.Warn("health check failed", "error", err)
		code = http.StatusServiceUnavailable
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
	}
	writeJSON(w, code, status)
}

func (a *api) fail(w http.ResponseWriter, err error, fallback string) {
	if !errors.Is(err, core.ErrValidation) {
		a.log.Error("request failed", "error", err)
	}
	status, body := payload.Failure(err, fallback)
	writeJSON(w, status, body)
}

// Helpers

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1] + path
	}
	return prefix + path
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, payload.ErrorResponse{Error: msg})
}
