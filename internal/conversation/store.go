package conversation

import (
	"sync"
	"time"
)

// Store is the single source of truth for per-user conversation history and
// usage state. All state is process-resident; nothing is persisted.
type Store struct {
	mu        sync.RWMutex
	persona   string
	window    int
	histories map[int64][]Turn
	usage     map[int64]*Usage

	lockMu    sync.Mutex
	userLocks map[int64]*sync.Mutex
}

// NewStore builds an empty store. Every lazily created history is seeded with
// personaPrompt as its pinned system turn; window caps history length.
func NewStore(personaPrompt string, window int) *Store {
	return &Store{
		persona:   personaPrompt,
		window:    window,
		histories: make(map[int64][]Turn),
		usage:     make(map[int64]*Usage),
		userLocks: make(map[int64]*sync.Mutex),
	}
}

// Lock serializes access to one user's state and returns the unlock func.
// The orchestrator holds it across its whole check/mutate/generate sequence so
// two concurrent messages from the same user cannot both pass the quota check.
func (s *Store) Lock(userID int64) func() {
	s.lockMu.Lock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	s.lockMu.Unlock()

	l.Lock()
	return l.Unlock
}

// History returns a copy of the user's conversation, creating it seeded with
// the persona system turn on first contact.
func (s *Store) History(userID int64) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.ensureHistory(userID)
	out := make([]Turn, len(h))
	copy(out, h)
	return out
}

// AppendTurn appends a turn and enforces the history window: the system turn
// stays pinned at index 0, the oldest user/assistant turns drop on overflow.
func (s *Store) AppendTurn(userID int64, turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := append(s.ensureHistory(userID), turn)
	if overflow := len(h) - s.window; overflow > 0 {
		h = append(h[:1], h[1+overflow:]...)
	}
	s.histories[userID] = h
}

// Usage returns the user's usage snapshot, zero-initialized if absent.
func (s *Store) Usage(userID int64) Usage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.usage[userID]; ok {
		return *u
	}
	return Usage{}
}

// IncrementMessageCount counts one accepted message. Paid users are not
// metered, so this is a no-op for them.
func (s *Store) IncrementMessageCount(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.ensureUsage(userID)
	if u.Paid {
		return
	}
	u.MessageCount++
}

// RecordMessageTime stores the arrival time of the user's latest accepted message.
func (s *Store) RecordMessageTime(userID int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureUsage(userID).LastMessageAt = at
}

// MarkPaid flags the user as paid. Idempotent; there is no downgrade path.
func (s *Store) MarkPaid(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureUsage(userID).Paid = true
}

// Clear removes all state for a user. Explicit cleanup only; nothing expires
// on its own.
func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.histories, userID)
	delete(s.usage, userID)
}

// KnownUsers reports how many users currently hold any state.
func (s *Store) KnownUsers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.usage)
	for id := range s.histories {
		if _, ok := s.usage[id]; !ok {
			n++
		}
	}
	return n
}

func (s *Store) ensureHistory(userID int64) []Turn {
	h, ok := s.histories[userID]
	if !ok {
		h = []Turn{systemTurn(s.persona)}
		s.histories[userID] = h
	}
	return h
}

func (s *Store) ensureUsage(userID int64) *Usage {
	u, ok := s.usage[userID]
	if !ok {
		u = &Usage{}
		s.usage[userID] = u
	}
	return u
}
