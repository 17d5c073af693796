package session

import (
	"sync"
	"time"

	"scene-studio/internal/studio"
)

// Store keeps one studio session per chat. Nothing is persisted.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*studio.Session
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]*studio.Session),
		now:      time.Now,
	}
}

// Get returns the chat's session, creating it on first use.
func (s *Store) Get(chatID int64) *studio.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[chatID]
	if !ok {
		sess = studio.NewSession()
		s.sessions[chatID] = sess
	}
	return sess
}

// Reset clears the chat's session, history included.
func (s *Store) Reset(chatID int64) {
	s.mu.Lock()
	sess, ok := s.sessions[chatID]
	s.mu.Unlock()

	if ok {
		sess.Reset()
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Prune drops sessions idle for longer than ttl, skipping ones with an edit
// in flight, and returns how many were removed.
func (s *Store) Prune(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for chatID, sess := range s.sessions {
		if sess.State() == studio.Submitting {
			continue
		}
		if sess.UpdatedAt().Before(cutoff) {
			delete(s.sessions, chatID)
			removed++
		}
	}
	return removed
}
