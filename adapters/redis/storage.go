package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"dailyboard/core"
	"dailyboard/daykey"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" env:"ADDR"`
	Password     string        `json:"password" env:"PASSWORD"`
	DB           int           `json:"db" env:"DB"`
	PoolSize     int           `json:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `json:"dial_timeout" env:"DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" env:"WRITE_TIMEOUT"`
	KeyPrefix    string        `json:"key_prefix" env:"KEY_PREFIX"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		KeyPrefix:    "dailyboard",
	}
}

// Store implements engine.RankingStore on Redis.
// Data structure, all keys of one (day, mode) sharing a hash slot:
// - {prefix}:{day:mode}:player:{id} -> hash of name, region, score, updated_at, expires_at, member
// - {prefix}:{day:mode}:board -> sorted set of every player of the mode
// - {prefix}:{day:mode}:region:{region} -> sorted set of the region's players
//
// Every key expires at the day boundary so past days are reclaimed by Redis.
// Scores are stored as sorted-set doubles and are exact up to 2^53.
type Store struct {
	client *redis.Client
	days   *daykey.Provider
	prefix string
}

// New creates a new Redis-backed store with the provided configuration
func New(config Config, days *daykey.Provider) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client, days, config.KeyPrefix), nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client, days *daykey.Provider, prefix string) *Store {
	if days == nil {
		days = daykey.Default()
	}
	if prefix == "" {
		prefix = DefaultConfig().KeyPrefix
	}
	return &Store{client: client, days: days, prefix: prefix}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) slot(day, mode string) string {
	return fmt.Sprintf("%s:{%s:%s}", s.prefix, day, mode)
}

func (s *Store) playerKey(day, mode string, id core.PlayerID) string {
	return s.slot(day, mode) + ":player:" + string(id)
}

func (s *Store) boardKey(day, mode string) string {
	return s.slot(day, mode) + ":board"
}

func (s *Store) regionPrefix(day, mode string) string {
	return s.slot(day, mode) + ":region:"
}

// boardFor returns the sorted set holding mode's players, or region's players
// when region is set.
func (s *Store) boardFor(day, mode, region string) string {
	if region == "" || region == core.RegionAll {
		return s.boardKey(day, mode)
	}
	return s.regionPrefix(day, mode) + region
}

const maxMemberStamp = 9999999999999

// member encodes the sorted-set member so that, among equal scores, a
// reverse range lists the earlier update first.
func member(updatedAt time.Time, id core.PlayerID) string {
	return fmt.Sprintf("%013d:%s", maxMemberStamp-updatedAt.UnixMilli(), id)
}

func memberPlayer(m string) (core.PlayerID, bool) {
	_, id, ok := strings.Cut(m, ":")
	return core.PlayerID(id), ok
}

// incrementScript atomically adds a delta to today's row and moves the
// player's sorted-set member to its new position.
//
// KEYS: record hash, mode board, region board
// ARGV: delta, name, region, updated_at ms, expires_at ms, member, region key prefix
var incrementScript = redis.NewScript(`
	local rec = KEYS[1]
	local board = KEYS[2]
	local regionBoard = KEYS[3]
	local delta = tonumber(ARGV[1])

	local old = redis.call('HMGET', rec, 'score', 'region', 'member')
	local current = tonumber(old[1] or '0')
	local next_val = current + delta

	if next_val > 9007199254740991 or next_val < -9007199254740991 then
		return redis.error_reply('score out of range')
	end

	local score = string.format('%d', next_val)

	if old[3] then
		redis.call('ZREM', board, old[3])
		if old[2] then
			redis.call('ZREM', ARGV[7] .. old[2], old[3])
		end
	end

	redis.call('HSET', rec,
		'name', ARGV[2],
		'region', ARGV[3],
		'score', score,
		'updated_at', ARGV[4],
		'expires_at', ARGV[5],
		'member', ARGV[6])
	redis.call('ZADD', board, score, ARGV[6])
	redis.call('ZADD', regionBoard, score, ARGV[6])

	redis.call('PEXPIREAT', rec, ARGV[5])
	redis.call('PEXPIREAT', board, ARGV[5])
	redis.call('PEXPIREAT', regionBoard, ARGV[5])
	return next_val
`)

// IncrementScore atomically adds u.Delta to today's row for (player, mode).
func (s *Store) IncrementScore(ctx context.Context, u core.ScoreUpdate) (core.ScoreRecord, error) {
	now := s.days.Now()
	day := s.days.KeyAt(now)
	expires := s.days.BoundaryAfter(now)
	m := member(now, u.PlayerID)

	keys := []string{
		s.playerKey(day, u.Mode, u.PlayerID),
		s.boardKey(day, u.Mode),
		s.regionPrefix(day, u.Mode) + u.Region,
	}
	args := []any{u.Delta, u.PlayerName, u.Region, now.UnixMilli(), expires.UnixMilli(), m, s.regionPrefix(day, u.Mode)}

	result, err := incrementScript.Run(ctx, s.client, keys, args...).Result()
	if err != nil {
		return core.ScoreRecord{}, fmt.Errorf("failed to increment score: %w", err)
	}
	total, ok := result.(int64)
	if !ok {
		return core.ScoreRecord{}, errors.New("unexpected result type from Redis script")
	}

	return core.ScoreRecord{
		PlayerID:   u.PlayerID,
		PlayerName: u.PlayerName,
		Region:     u.Region,
		Mode:       u.Mode,
		Score:      total,
		DayKey:     day,
		UpdatedAt:  time.UnixMilli(now.UnixMilli()).UTC(),
		ExpiresAt:  expires.UTC(),
	}, nil
}

// TopN reads the head of today's board and loads the matching rows in one pipeline.
func (s *Store) TopN(ctx context.Context, mode, region string, limit int) ([]core.Standing, error) {
	if limit <= 0 {
		return []core.Standing{}, nil
	}
	day := s.days.CurrentDayKey()
	members, err := s.client.ZRevRange(ctx, s.boardFor(day, mode, region), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read board: %w", err)
	}
	if len(members) == 0 {
		return []core.Standing{}, nil
	}

	ids := make([]core.PlayerID, 0, len(members))
	for _, m := range members {
		if id, ok := memberPlayer(m); ok {
			ids = append(ids, id)
		}
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.playerKey(day, mode, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}

	top := make([]core.Standing, 0, len(ids))
	for i, id := range ids {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			// expired between the range read and the pipeline
			continue
		}
		st, err := decodeStanding(id, mode, fields)
		if err != nil {
			return nil, err
		}
		top = append(top, st)
	}
	return top, nil
}

func decodeStanding(id core.PlayerID, mode string, fields map[string]string) (core.Standing, error) {
	score, err := strconv.ParseInt(fields["score"], 10, 64)
	if err != nil {
		return core.Standing{}, fmt.Errorf("corrupt score for %s: %w", id, err)
	}
	updated, err := strconv.ParseInt(fields["updated_at"], 10, 64)
	if err != nil {
		return core.Standing{}, fmt.Errorf("corrupt updated_at for %s: %w", id, err)
	}
	return core.Standing{
		PlayerID:   id,
		PlayerName: fields["name"],
		Region:     fields["region"],
		Mode:       mode,
		Score:      score,
		UpdatedAt:  time.UnixMilli(updated).UTC(),
	}, nil
}

// Stats counts today's players and sums their scores.
func (s *Store) Stats(ctx context.Context, mode, region string) (core.Stats, error) {
	day := s.days.CurrentDayKey()
	entries, err := s.client.ZRangeWithScores(ctx, s.boardFor(day, mode, region), 0, -1).Result()
	if err != nil {
		return core.Stats{}, fmt.Errorf("failed to read board: %w", err)
	}
	st := core.Stats{DateKey: day, Mode: mode, Region: region, TotalPlayers: int64(len(entries))}
	for _, z := range entries {
		st.TotalScore += int64(z.Score)
	}
	return st, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
