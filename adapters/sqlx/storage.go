package sqlx

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"dailyboard/core"
	"dailyboard/daykey"
)

// Driver names a supported SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

// Config holds SQL connection configuration
type Config struct {
	Driver          Driver        `json:"driver" env:"DRIVER"`
	DSN             string        `json:"dsn" env:"DSN"`
	MaxOpenConns    int           `json:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `json:"auto_migrate" env:"AUTO_MIGRATE"`
}

// DefaultConfig returns development defaults for driver.
func DefaultConfig(driver Driver) Config {
	cfg := Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		AutoMigrate:     true,
	}
	switch driver {
	case DriverMySQL:
		cfg.DSN = "root@tcp(localhost:3306)/dailyboard"
	case DriverSQLite:
		cfg.DSN = "file:dailyboard.db?_pragma=busy_timeout(5000)"
		cfg.MaxOpenConns = 1
	default:
		cfg.DSN = "postgres://localhost:5432/dailyboard?sslmode=disable"
	}
	return cfg
}

// Validate checks the driver and DSN.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.DSN == "" {
		return errors.New("dsn cannot be empty")
	}
	return nil
}

// Store implements engine.RankingStore on a relational database.
// Timestamps are stored as unix milliseconds.
type Store struct {
	db     *sqlx.DB
	driver Driver
	days   *daykey.Provider
}

// New opens a connection pool and, when configured, creates the schema.
func New(cfg Config, days *daykey.Provider) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sqlx.Open(string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := NewWithDB(db, cfg.Driver, days)
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing handle (useful for testing).
func NewWithDB(db *sqlx.DB, driver Driver, days *daykey.Provider) *Store {
	if days == nil {
		days = daykey.Default()
	}
	return &Store{db: db, driver: driver, days: days}
}

// Close closes the pool.
func (s *Store) Close() error { return s.db.Close() }

type scoreRow struct {
	PlayerID   string `db:"player_id"`
	Mode       string `db:"mode"`
	DayKey     string `db:"day_key"`
	PlayerName string `db:"player_name"`
	Region     string `db:"region"`
	Score      int64  `db:"score"`
	UpdatedAt  int64  `db:"updated_at"`
	ExpiresAt  int64  `db:"expires_at"`
}

func (r scoreRow) record() core.ScoreRecord {
	return core.ScoreRecord{
		PlayerID:   core.PlayerID(r.PlayerID),
		PlayerName: r.PlayerName,
		Region:     r.Region,
		Mode:       r.Mode,
		Score:      r.Score,
		DayKey:     r.DayKey,
		UpdatedAt:  time.UnixMilli(r.UpdatedAt).UTC(),
		ExpiresAt:  time.UnixMilli(r.ExpiresAt).UTC(),
	}
}

type standingRow struct {
	PlayerID   string `db:"player_id"`
	PlayerName string `db:"player_name"`
	Region     string `db:"region"`
	Mode       string `db:"mode"`
	Score      int64  `db:"score"`
	UpdatedAt  int64  `db:"updated_at"`
}

const rowColumns = `player_id, mode, day_key, player_name, region, score, updated_at, expires_at`

const upsertReturning = `INSERT INTO leaderboard_scores (` + rowColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (player_id, mode, day_key) DO UPDATE SET
	score = leaderboard_scores.score + excluded.score,
	player_name = excluded.player_name,
	region = excluded.region,
	updated_at = excluded.updated_at,
	expires_at = excluded.expires_at
RETURNING ` + rowColumns

const upsertMySQL = `INSERT INTO leaderboard_scores (` + rowColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
	score = score + VALUES(score),
	player_name = VALUES(player_name),
	region = VALUES(region),
	updated_at = VALUES(updated_at),
	expires_at = VALUES(expires_at)`

const selectRow = `SELECT ` + rowColumns + ` FROM leaderboard_scores
WHERE player_id = ? AND mode = ? AND day_key = ?`

// IncrementScore adds u.Delta to today's row in a single upsert, so
// concurrent writers never lose an increment.
func (s *Store) IncrementScore(ctx context.Context, u core.ScoreUpdate) (core.ScoreRecord, error) {
	now := s.days.Now()
	day := s.days.KeyAt(now)
	expires := s.days.BoundaryAfter(now)
	args := []any{string(u.PlayerID), u.Mode, day, u.PlayerName, u.Region, u.Delta, now.UnixMilli(), expires.UnixMilli()}

	var row scoreRow
	if s.driver == DriverMySQL {
		err := s.inTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, upsertMySQL, args...); err != nil {
				return err
			}
			return tx.GetContext(ctx, &row, selectRow, string(u.PlayerID), u.Mode, day)
		})
		if err != nil {
			return core.ScoreRecord{}, fmt.Errorf("failed to increment score: %w", err)
		}
		return row.record(), nil
	}

	if err := s.db.GetContext(ctx, &row, s.db.Rebind(upsertReturning), args...); err != nil {
		return core.ScoreRecord{}, fmt.Errorf("failed to increment score: %w", err)
	}
	return row.record(), nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// where builds the shared filter for today's live rows of mode and region.
func (s *Store) where(mode, region string) (string, []any) {
	now := s.days.Now()
	clause := ` WHERE mode = ? AND day_key = ? AND expires_at > ?`
	args := []any{mode, s.days.KeyAt(now), now.UnixMilli()}
	if region != "" && region != core.RegionAll {
		clause += ` AND region = ?`
		args = append(args, region)
	}
	return clause, args
}

// TopN orders by score, then earlier update, then player id.
func (s *Store) TopN(ctx context.Context, mode, region string, limit int) ([]core.Standing, error) {
	if limit <= 0 {
		return []core.Standing{}, nil
	}
	clause, args := s.where(mode, region)
	query := `SELECT player_id, player_name, region, mode, score, updated_at FROM leaderboard_scores` +
		clause + ` ORDER BY score DESC, updated_at ASC, player_id ASC LIMIT ?`
	args = append(args, limit)

	var rows []standingRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	top := make([]core.Standing, 0, len(rows))
	for _, r := range rows {
		top = append(top, core.Standing{
			PlayerID:   core.PlayerID(r.PlayerID),
			PlayerName: r.PlayerName,
			Region:     r.Region,
			Mode:       r.Mode,
			Score:      r.Score,
			UpdatedAt:  time.UnixMilli(r.UpdatedAt).UTC(),
		})
	}
	return top, nil
}

func (s *Store) Stats(ctx context.Context, mode, region string) (core.Stats, error) {
	clause, args := s.where(mode, region)
	query := `SELECT COUNT(*) AS total_players, COALESCE(SUM(score), 0) AS total_score FROM leaderboard_scores` + clause

	var out struct {
		TotalPlayers int64 `db:"total_players"`
		TotalScore   int64 `db:"total_score"`
	}
	if err := s.db.GetContext(ctx, &out, s.db.Rebind(query), args...); err != nil {
		return core.Stats{}, fmt.Errorf("failed to query stats: %w", err)
	}
	return core.Stats{
		TotalPlayers: out.TotalPlayers,
		TotalScore:   out.TotalScore,
		DateKey:      s.days.CurrentDayKey(),
		Mode:         mode,
		Region:       region,
	}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// RemoveExpired deletes rows from days that have ended.
func (s *Store) RemoveExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM leaderboard_scores WHERE expires_at <= ?`), s.days.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to remove expired scores: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

var _ interface {
	IncrementScore(context.Context, core.ScoreUpdate) (core.ScoreRecord, error)
	TopN(context.Context, string, string, int) ([]core.Standing, error)
	Stats(context.Context, string, string) (core.Stats, error)
	Ping(context.Context) error
	RemoveExpired(context.Context) (int, error)
} = (*Store)(nil)
