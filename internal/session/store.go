package session

import (
	"time"

	"github.com/google/uuid"

	"fixedspend/internal/cache"
	"fixedspend/internal/remote"
)

// Store keeps sessions server-side under opaque random IDs. Sessions live
// for ttl from sign-in and are lost on restart.
type Store struct {
	sessions *cache.LRUCache[remote.Session]
	ttl      time.Duration
}

// NewStore creates a store holding at most capacity sessions.
func NewStore(capacity int, ttl time.Duration, opts ...cache.Option[remote.Session]) *Store {
	return &Store{
		sessions: cache.NewLRUCache(capacity, ttl, opts...),
		ttl:      ttl,
	}
}

// Create stores sess and returns its new ID.
func (s *Store) Create(sess remote.Session) string {
	id := uuid.NewString()
	s.sessions.Set(id, sess)
	return id
}

func (s *Store) Get(id string) (remote.Session, bool) {
	if id == "" {
		return remote.Session{}, false
	}
	return s.sessions.Get(id)
}

// Replace swaps the credential of a live session, keeping its expiry.
func (s *Store) Replace(id string, sess remote.Session) bool {
	return s.sessions.Replace(id, sess)
}

func (s *Store) Delete(id string) {
	s.sessions.Delete(id)
}

func (s *Store) Size() int {
	return s.sessions.Size()
}

// CleanExpired lets a cache.Manager sweep the store.
func (s *Store) CleanExpired() int {
	return s.sessions.CleanExpired()
}

// TTL is the lifetime of a stored session.
func (s *Store) TTL() time.Duration {
	return s.ttl
}
