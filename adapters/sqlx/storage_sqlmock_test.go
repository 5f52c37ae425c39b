package sqlx_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	libsqlx "github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	storage "dailyboard/adapters/sqlx"
	"dailyboard/core"
	"dailyboard/daykey"
)

var (
	testNow     = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	testExpires = time.Date(2024, 5, 1, 18, 30, 0, 0, time.UTC).UnixMilli()
)

func testDays(t *testing.T) *daykey.Provider {
	t.Helper()
	p, err := daykey.Load(daykey.DefaultTimezone, daykey.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return p
}

func newMockStore(t *testing.T, driver storage.Driver) (*storage.Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	xdb := storage.NewWithDB(libsqlx.NewDb(db, string(driver)), driver, testDays(t))
	cleanup := func() {
		_ = db.Close()
	}
	return xdb, mock, cleanup
}

var rowColumns = []string{"player_id", "mode", "day_key", "player_name", "region", "score", "updated_at", "expires_at"}

func alice() core.ScoreUpdate {
	return core.ScoreUpdate{PlayerID: "p1", PlayerName: "Alice", Region: "eu", Mode: "solo", Delta: 10}
}

func TestSQLMock_IncrementScore_Postgres(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectQuery(`INSERT INTO leaderboard_scores .* ON CONFLICT \(player_id, mode, day_key\) DO UPDATE SET score = leaderboard_scores.score \+ excluded.score.* RETURNING`).
		WithArgs("p1", "solo", "2024-05-01", "Alice", "eu", int64(10), testNow.UnixMilli(), testExpires).
		WillReturnRows(sqlmock.NewRows(rowColumns).
			AddRow("p1", "solo", "2024-05-01", "Alice", "eu", 35, testNow.UnixMilli(), testExpires))

	rec, err := store.IncrementScore(context.Background(), alice())
	require.NoError(t, err)
	require.Equal(t, int64(35), rec.Score)
	require.Equal(t, "2024-05-01", rec.DayKey)
	require.Equal(t, testNow, rec.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_IncrementScore_PostgresUsesDollarPlaceholders(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)).
		WillReturnRows(sqlmock.NewRows(rowColumns).
			AddRow("p1", "solo", "2024-05-01", "Alice", "eu", 10, testNow.UnixMilli(), testExpires))

	_, err := store.IncrementScore(context.Background(), alice())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_IncrementScore_MySQL(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverMySQL)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO leaderboard_scores .* ON DUPLICATE KEY UPDATE score = score \+ VALUES\(score\)`).
		WithArgs("p1", "solo", "2024-05-01", "Alice", "eu", int64(10), sqlmock.AnyArg(), testExpires).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT player_id, mode, day_key, .* FROM leaderboard_scores WHERE player_id = \? AND mode = \? AND day_key = \?`).
		WithArgs("p1", "solo", "2024-05-01").
		WillReturnRows(sqlmock.NewRows(rowColumns).
			AddRow("p1", "solo", "2024-05-01", "Alice", "eu", 10, testNow.UnixMilli(), testExpires))
	mock.ExpectCommit()

	rec, err := store.IncrementScore(context.Background(), alice())
	require.NoError(t, err)
	require.Equal(t, int64(10), rec.Score)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_IncrementScore_MySQLRollsBack(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverMySQL)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO leaderboard_scores`).WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	_, err := store.IncrementScore(context.Background(), alice())
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to increment score")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_TopN_Region(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT player_id, player_name, region, mode, score, updated_at FROM leaderboard_scores WHERE mode = $1 AND day_key = $2 AND expires_at > $3 AND region = $4 ORDER BY score DESC, updated_at ASC, player_id ASC LIMIT $5`)).
		WithArgs("solo", "2024-05-01", testNow.UnixMilli(), "eu", 2).
		WillReturnRows(sqlmock.NewRows([]string{"player_id", "player_name", "region", "mode", "score", "updated_at"}).
			AddRow("p2", "Bob", "eu", "solo", 200, testNow.Add(-time.Minute).UnixMilli()).
			AddRow("p1", "Alice", "eu", "solo", 200, testNow.UnixMilli()))

	top, err := store.TopN(context.Background(), "solo", "eu", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, core.PlayerID("p2"), top[0].PlayerID)
	require.Equal(t, "Alice", top[1].PlayerName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_TopN_AllRegionsEmpty(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE mode = $1 AND day_key = $2 AND expires_at > $3 ORDER BY`)).
		WithArgs("solo", "2024-05-01", testNow.UnixMilli(), 10).
		WillReturnRows(sqlmock.NewRows([]string{"player_id", "player_name", "region", "mode", "score", "updated_at"}))

	top, err := store.TopN(context.Background(), "solo", "", 10)
	require.NoError(t, err)
	require.NotNil(t, top)
	require.Empty(t, top)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Stats(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectQuery(`SELECT COUNT\(\*\) AS total_players, COALESCE\(SUM\(score\), 0\) AS total_score FROM leaderboard_scores`).
		WithArgs("solo", "2024-05-01", testNow.UnixMilli()).
		WillReturnRows(sqlmock.NewRows([]string{"total_players", "total_score"}).AddRow(3, 120))

	st, err := store.Stats(context.Background(), "solo", "")
	require.NoError(t, err)
	require.Equal(t, int64(3), st.TotalPlayers)
	require.Equal(t, int64(120), st.TotalScore)
	require.Equal(t, "2024-05-01", st.DateKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_RemoveExpired(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM leaderboard_scores WHERE expires_at <= $1`)).
		WithArgs(testNow.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := store.RemoveExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_RemoveExpiredRowsAffectedError(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM leaderboard_scores WHERE expires_at <= $1`)).
		WithArgs(testNow.UnixMilli()).
		WillReturnResult(sqlmock.NewErrorResult(errors.New("driver cannot count rows")))

	n, err := store.RemoveExpired(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "rows affected")
	require.Equal(t, 0, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_QueryError(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectQuery(`SELECT player_id`).WillReturnError(errors.New("connection reset"))

	_, err := store.TopN(context.Background(), "solo", "", 10)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to query leaderboard")
}

func TestConfig(t *testing.T) {
	require.NoError(t, storage.DefaultConfig(storage.DriverPostgres).Validate())
	require.NoError(t, storage.DefaultConfig(storage.DriverMySQL).Validate())
	require.Equal(t, 1, storage.DefaultConfig(storage.DriverSQLite).MaxOpenConns)

	require.Error(t, storage.Config{Driver: "oracle", DSN: "x"}.Validate())
	require.Error(t, storage.Config{Driver: storage.DriverPostgres}.Validate())
}
