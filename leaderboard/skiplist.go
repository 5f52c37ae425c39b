package leaderboard

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"dailyboard/core"
)

// A skip list ordered by core.Less gives O(log n) upserts and O(n) ordered walks.

const maxLevel = 16
const pFactor = 0.25

type node struct {
	s    core.Standing
	next [maxLevel]*node
}

type SkipList struct {
	mu       sync.RWMutex
	head     *node
	lvl      int
	byPlayer map[core.PlayerID]*node
	rng      *rand.Rand
}

func NewSkipList() *SkipList {
	var seed [16]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		seed = [16]byte{}
	}
	seed1 := binary.BigEndian.Uint64(seed[:8])
	seed2 := binary.BigEndian.Uint64(seed[8:])

	return &SkipList{
		head:     &node{},
		lvl:      1,
		byPlayer: map[core.PlayerID]*node{},
		rng:      rand.New(rand.NewPCG(seed1, seed2)),
	}
}

func (l *SkipList) randomLevel() int {
	lvl := 1
	for lvl < maxLevel && l.rng.Float64() < pFactor {
		lvl++
	}
	return lvl
}

// Upsert inserts s or moves the player's existing node to its new position.
func (l *SkipList) Upsert(s core.Standing) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if old, ok := l.byPlayer[s.PlayerID]; ok {
		l.removeLocked(old.s)
	}
	update := [maxLevel]*node{}
	cur := l.head
	for i := l.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && core.Less(cur.next[i].s, s) {
			cur = cur.next[i]
		}
		update[i] = cur
	}
	lvl := l.randomLevel()
	if lvl > l.lvl {
		for i := l.lvl; i < lvl; i++ {
			update[i] = l.head
		}
		l.lvl = lvl
	}
	n := &node{s: s}
	for i := 0; i < lvl; i++ {
		n.next[i] = update[i].next[i]
		update[i].next[i] = n
	}
	l.byPlayer[s.PlayerID] = n
}

func (l *SkipList) removeLocked(s core.Standing) {
	update := [maxLevel]*node{}
	cur := l.head
	for i := l.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && core.Less(cur.next[i].s, s) {
			cur = cur.next[i]
		}
		update[i] = cur
	}
	target := update[0].next[0]
	if target == nil || target.s.PlayerID != s.PlayerID {
		return
	}
	for i := 0; i < l.lvl; i++ {
		if update[i].next[i] == target {
			update[i].next[i] = target.next[i]
		}
	}
	delete(l.byPlayer, s.PlayerID)
	for l.lvl > 1 && l.head.next[l.lvl-1] == nil {
		l.lvl--
	}
}

func (l *SkipList) Remove(player core.PlayerID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n, ok := l.byPlayer[player]; ok {
		l.removeLocked(n.s)
	}
}

// Walk visits standings in rank order until fn returns false.
func (l *SkipList) Walk(fn func(core.Standing) bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for cur := l.head.next[0]; cur != nil; cur = cur.next[0] {
		if !fn(cur.s) {
			return
		}
	}
}

// TopN returns up to n standings in rank order, skipping those keep rejects.
// A nil keep accepts everything. The result is never nil.
func (l *SkipList) TopN(n int, keep func(core.Standing) bool) []core.Standing {
	if n <= 0 {
		return []core.Standing{}
	}
	out := make([]core.Standing, 0, min(n, l.Len()))
	l.Walk(func(s core.Standing) bool {
		if keep == nil || keep(s) {
			out = append(out, s)
		}
		return len(out) < n
	})
	return out
}

func (l *SkipList) Get(player core.PlayerID) (core.Standing, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n, ok := l.byPlayer[player]; ok {
		return n.s, true
	}
	return core.Standing{}, false
}

func (l *SkipList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byPlayer)
}

var _ Board = (*SkipList)(nil)
