package sqlx

import (
	"context"
	"fmt"
)

var portableSchema = []string{
	`CREATE TABLE IF NOT EXISTS leaderboard_scores (
	player_id VARCHAR(128) NOT NULL,
	mode VARCHAR(64) NOT NULL,
	day_key CHAR(10) NOT NULL,
	player_name VARCHAR(255) NOT NULL,
	region VARCHAR(64) NOT NULL,
	score BIGINT NOT NULL DEFAULT 0,
	updated_at BIGINT NOT NULL,
	expires_at BIGINT NOT NULL,
	PRIMARY KEY (player_id, mode, day_key)
)`,
	`CREATE INDEX IF NOT EXISTS idx_leaderboard_scores_board ON leaderboard_scores (mode, day_key, score DESC, updated_at)`,
	`CREATE INDEX IF NOT EXISTS idx_leaderboard_scores_region ON leaderboard_scores (mode, day_key, region, score DESC, updated_at)`,
	`CREATE INDEX IF NOT EXISTS idx_leaderboard_scores_expiry ON leaderboard_scores (expires_at)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS leaderboard_scores (
	player_id VARCHAR(128) NOT NULL,
	mode VARCHAR(64) NOT NULL,
	day_key CHAR(10) NOT NULL,
	player_name VARCHAR(255) NOT NULL,
	region VARCHAR(64) NOT NULL,
	score BIGINT NOT NULL DEFAULT 0,
	updated_at BIGINT NOT NULL,
	expires_at BIGINT NOT NULL,
	PRIMARY KEY (player_id, mode, day_key),
	INDEX idx_leaderboard_scores_board (mode, day_key, score DESC, updated_at),
	INDEX idx_leaderboard_scores_region (mode, day_key, region, score DESC, updated_at),
	INDEX idx_leaderboard_scores_expiry (expires_at)
)`,
}

// Migrate creates the scores table and its indexes when missing.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := portableSchema
	if s.driver == DriverMySQL {
		stmts = mysqlSchema
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}
