package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"dailyboard/adapters/memory"
	"dailyboard/core"
	"dailyboard/daykey"
)

// Store persists every score row to a single JSON file after each write.
// Suitable for demos and small deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory index for reads
	mem *memory.Store
}

type fileFormat struct {
	Scores []core.ScoreRecord `json:"scores"`
}

func New(path string, days *daykey.Provider) (*Store, error) {
	s := &Store{path: path, mem: memory.New(days)}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw fileFormat
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}
	s.mem.Restore(raw.Scores)
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	b, err := json.MarshalIndent(fileFormat{Scores: s.mem.Snapshot()}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) IncrementScore(ctx context.Context, u core.ScoreUpdate) (core.ScoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.mem.IncrementScore(ctx, u)
	if err != nil {
		return core.ScoreRecord{}, err
	}
	if err := s.persist(); err != nil {
		return core.ScoreRecord{}, fmt.Errorf("failed to persist score: %w", err)
	}
	return rec, nil
}

func (s *Store) TopN(ctx context.Context, mode, region string, limit int) ([]core.Standing, error) {
	return s.mem.TopN(ctx, mode, region, limit)
}

func (s *Store) Stats(ctx context.Context, mode, region string) (core.Stats, error) {
	return s.mem.Stats(ctx, mode, region)
}

// Ping checks that the state file's directory is reachable.
func (s *Store) Ping(context.Context) error {
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}

// RemoveExpired prunes past days and rewrites the file when anything changed.
func (s *Store) RemoveExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.mem.RemoveExpired(ctx)
	if err != nil || n == 0 {
		return n, err
	}
	return n, s.persist()
}
