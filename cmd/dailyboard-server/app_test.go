package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailyboard/config"
	"dailyboard/daykey"
	"dailyboard/engine"
	"dailyboard/metrics"
	"dailyboard/realtime"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Leaderboard.Timezone = "UTC"
	cfg.Storage.File.Path = filepath.Join(t.TempDir(), "scores.json")
	return cfg
}

func TestSetupStorageAdapters(t *testing.T) {
	cfg := testConfig(t)
	days := daykey.New(time.UTC)

	for _, adapter := range []string{"memory", "file"} {
		cfg.Storage.Adapter = adapter
		store, cleanup, err := setupStorage(context.Background(), cfg, days, slog.Default())
		require.NoError(t, err, adapter)
		require.NotNil(t, store)
		cleanup()

		_, isPruner := store.(engine.Pruner)
		assert.True(t, isPruner, "%s store should be pruned by the server", adapter)
	}

	cfg.Storage.Adapter = "mongo"
	_, _, err := setupStorage(context.Background(), cfg, days, slog.Default())
	assert.Error(t, err)
}

func TestProvidedHandlerServesAPI(t *testing.T) {
	cfg := testConfig(t)
	logger := slog.Default()
	reg := metrics.NewRegistry()
	days, err := provideDayKeys(cfg)
	require.NoError(t, err)
	hub := realtime.NewHub()

	store, cleanup, err := provideStorage(context.Background(), cfg, days, logger)
	require.NoError(t, err)
	defer cleanup()

	svc, closeSvc := provideService(cfg, logger, reg, days, hub, store, provideCache(cfg, reg))
	defer closeSvc()
	require.NotNil(t, providePruner(cfg, store, logger, reg))

	handler := provideHandler(svc, hub, cfg, reg, logger)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leaderboard/top?mode=solo", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCacheDisabledWithZeroTTL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Leaderboard.CacheTTL = 0
	assert.Nil(t, provideCache(cfg, nil))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("bogus"))
}
