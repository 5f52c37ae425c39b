package memory

import (
	"context"
	"sort"
	"sync"

	"dailyboard/core"
	"dailyboard/daykey"
	"dailyboard/leaderboard"
)

type recordKey struct {
	day    string
	mode   string
	player core.PlayerID
}

type boardKey struct {
	day  string
	mode string
}

// Store is a concurrent in-memory RankingStore. Each (day, mode) pair keeps a
// skip list so top-N reads walk standings already in rank order.
type Store struct {
	mu      sync.RWMutex
	days    *daykey.Provider
	records map[recordKey]core.ScoreRecord
	boards  map[boardKey]*leaderboard.SkipList
}

// New builds an empty store. A nil provider uses daykey.Default().
func New(days *daykey.Provider) *Store {
	if days == nil {
		days = daykey.Default()
	}
	return &Store{
		days:    days,
		records: map[recordKey]core.ScoreRecord{},
		boards:  map[boardKey]*leaderboard.SkipList{},
	}
}

func (s *Store) IncrementScore(_ context.Context, u core.ScoreUpdate) (core.ScoreRecord, error) {
	now := s.days.Now()
	day := s.days.KeyAt(now)
	key := recordKey{day: day, mode: u.Mode, player: u.PlayerID}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || rec.Expired(now) {
		rec = core.ScoreRecord{PlayerID: u.PlayerID, Mode: u.Mode, DayKey: day}
	}
	next, err := core.AddSafe(rec.Score, u.Delta)
	if err != nil {
		return core.ScoreRecord{}, err
	}
	rec.Score = next
	rec.PlayerName = u.PlayerName
	rec.Region = u.Region
	rec.UpdatedAt = now.UTC()
	rec.ExpiresAt = s.days.BoundaryAfter(now).UTC()
	s.records[key] = rec

	s.boardLocked(boardKey{day: day, mode: u.Mode}).Upsert(rec.Standing())
	return rec, nil
}

func (s *Store) boardLocked(k boardKey) *leaderboard.SkipList {
	b, ok := s.boards[k]
	if !ok {
		b = leaderboard.NewSkipList()
		s.boards[k] = b
	}
	return b
}

// TopN reads today's board. Rows of the current day expire at the next
// boundary, so they are never expired while the day is current.
func (s *Store) TopN(_ context.Context, mode, region string, limit int) ([]core.Standing, error) {
	s.mu.RLock()
	b := s.boards[boardKey{day: s.days.CurrentDayKey(), mode: mode}]
	s.mu.RUnlock()
	if b == nil {
		return []core.Standing{}, nil
	}
	return b.TopN(limit, leaderboard.InRegion(region)), nil
}

func (s *Store) Stats(_ context.Context, mode, region string) (core.Stats, error) {
	day := s.days.CurrentDayKey()
	st := core.Stats{DateKey: day, Mode: mode, Region: region}

	s.mu.RLock()
	b := s.boards[boardKey{day: day, mode: mode}]
	s.mu.RUnlock()
	if b == nil {
		return st, nil
	}
	keep := leaderboard.InRegion(region)
	var sumErr error
	b.Walk(func(p core.Standing) bool {
		if keep != nil && !keep(p) {
			return true
		}
		st.TotalPlayers++
		st.TotalScore, sumErr = core.AddSafe(st.TotalScore, p.Score)
		return sumErr == nil
	})
	return st, sumErr
}

func (s *Store) Ping(context.Context) error { return nil }

// RemoveExpired drops rows whose day has ended and returns how many went.
func (s *Store) RemoveExpired(_ context.Context) (int, error) {
	now := s.days.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, rec := range s.records {
		if !rec.Expired(now) {
			continue
		}
		delete(s.records, k)
		bk := boardKey{day: k.day, mode: k.mode}
		if b, ok := s.boards[bk]; ok {
			b.Remove(k.player)
			if b.Len() == 0 {
				delete(s.boards, bk)
			}
		}
		removed++
	}
	return removed, nil
}

// Snapshot returns every stored row in a stable order.
func (s *Store) Snapshot() []core.ScoreRecord {
	s.mu.RLock()
	out := make([]core.ScoreRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DayKey != b.DayKey {
			return a.DayKey < b.DayKey
		}
		if a.Mode != b.Mode {
			return a.Mode < b.Mode
		}
		return a.PlayerID < b.PlayerID
	})
	return out
}

// Restore replaces the store contents with recs, skipping expired rows.
func (s *Store) Restore(recs []core.ScoreRecord) {
	now := s.days.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[recordKey]core.ScoreRecord, len(recs))
	s.boards = map[boardKey]*leaderboard.SkipList{}
	for _, rec := range recs {
		if rec.Expired(now) {
			continue
		}
		s.records[recordKey{day: rec.DayKey, mode: rec.Mode, player: rec.PlayerID}] = rec
		s.boardLocked(boardKey{day: rec.DayKey, mode: rec.Mode}).Upsert(rec.Standing())
	}
}

var _ interface {
	IncrementScore(context.Context, core.ScoreUpdate) (core.ScoreRecord, error)
	TopN(context.Context, string, string, int) ([]core.Standing, error)
	Stats(context.Context, string, string) (core.Stats, error)
	Ping(context.Context) error
	RemoveExpired(context.Context) (int, error)
} = (*Store)(nil)
