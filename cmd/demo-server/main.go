package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dailyboard/api/httpapi"
	"dailyboard/board"
	"dailyboard/core"
	"dailyboard/engine"
	"dailyboard/metrics"
	"dailyboard/realtime"
)

var (
	demoModes   = []string{"solo", "duo", "squad"}
	demoRegions = []string{"EU-West", "NA-East", "APAC"}
)

func main() {
	// Use readable text logging for development/demo
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	logger := slog.New(textHandler)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	hub := realtime.NewHub()
	svc := board.New(
		board.WithRealtime(hub),
		board.WithServiceOptions(engine.Options{Logger: logger, Metrics: reg}),
	)
	defer svc.Close()

	seed(ctx, svc, 20)
	go simulate(ctx, svc, 2*time.Second)

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           httpapi.NewMux(svc, hub, httpapi.Options{PathPrefix: "/api", AllowCORSOrigin: "*", Metrics: reg, Logger: logger}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("starting demo server on :8080", "ws", "ws://localhost:8080/api/ws")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}

// seed registers n players with a random opening score.
func seed(ctx context.Context, svc *engine.LeaderboardService, n int) {
	for i := 1; i <= n; i++ {
		if _, err := svc.UpdateScore(ctx, randomUpdate(i)); err != nil {
			slog.Warn("seeding failed", "error", err)
		}
	}
	slog.Info("seeded demo players", "count", n)
}

// simulate keeps scores moving so connected viewers receive pushes.
func simulate(ctx context.Context, svc *engine.LeaderboardService, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := svc.UpdateScore(ctx, randomUpdate(1+rand.IntN(20)))
			if err != nil {
				slog.Warn("simulated update failed", "error", err)
				continue
			}
			slog.Info("score updated",
				"player", res.Player.PlayerID,
				"score", res.Player.Score,
				"rank", res.Player.Rank,
				"mode", res.Leaderboard.Mode,
				"region", res.Leaderboard.Region)
		}
	}
}

func randomUpdate(i int) core.ScoreUpdate {
	// players keep a stable mode and region so their daily row accumulates
	return core.ScoreUpdate{
		PlayerID:   core.PlayerID(fmt.Sprintf("player-%02d", i)),
		PlayerName: fmt.Sprintf("Player %d", i),
		Region:     demoRegions[i%len(demoRegions)],
		Mode:       demoModes[i%len(demoModes)],
		Delta:      int64(10 + rand.IntN(90)),
	}
}
