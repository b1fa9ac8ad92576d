package session

import (
	"sync"

	"signal-bot/internal/domain"
)

const shardCount = 32

// Store keeps every user's session in memory for the life of the process.
// Sessions are created lazily; work on one user is serialized by that user's
// own lock, so different users never wait on each other.
type Store struct {
	shards [shardCount]shard
}

type shard struct {
	mu      sync.RWMutex
	entries map[domain.UserID]*entry
}

type entry struct {
	mu      sync.Mutex
	session Session
}

func NewStore() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i].entries = make(map[domain.UserID]*entry)
	}
	return s
}

func (s *Store) shardFor(user domain.UserID) *shard {
	idx := uint64(user) % shardCount
	return &s.shards[idx]
}

func (s *Store) entryFor(user domain.UserID) *entry {
	sh := s.shardFor(user)

	sh.mu.RLock()
	e, ok := sh.entries[user]
	sh.mu.RUnlock()
	if ok {
		return e
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e, ok = sh.entries[user]; ok {
		return e
	}
	e = &entry{}
	sh.entries[user] = e
	return e
}

// With runs fn with exclusive access to the user's session; it sees the effects
// of every earlier With call for the same user. fn may do slow work such as a
// transport send: only later calls for the same user wait on it.
func (s *Store) With(user domain.UserID, fn func(*Session) error) error {
	e := s.entryFor(user)
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(&e.session)
}

// Get returns a copy of the user's session without creating one.
func (s *Store) Get(user domain.UserID) (Session, bool) {
	sh := s.shardFor(user)
	sh.mu.RLock()
	e, ok := sh.entries[user]
	sh.mu.RUnlock()
	if !ok {
		return Session{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session, true
}

func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// CountByState groups all sessions by their current state.
func (s *Store) CountByState() map[State]int {
	counts := make(map[State]int, 4)
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		entries := make([]*entry, 0, len(sh.entries))
		for _, e := range sh.entries {
			entries = append(entries, e)
		}
		sh.mu.RUnlock()

		for _, e := range entries {
			e.mu.Lock()
			counts[e.session.State()]++
			e.mu.Unlock()
		}
	}
	return counts
}
