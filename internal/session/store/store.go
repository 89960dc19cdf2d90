// Package store keeps HTTP session state server-side, keyed by the id carried in the session cookie.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/YudyTkm/itlingo-itoi-sub001/internal/session/domain"
)

// Store holds sessions by id. Sessions expire ttl after their last write.
type Store interface {
	// Create starts a new unbound session and returns it.
	Create(ctx context.Context) domain.Session
	// Get returns a copy of the session if present and not expired.
	Get(ctx context.Context, id string) (domain.Session, bool)
	// Update applies fn to the stored session under the store lock and returns the result.
	// ok is false if the session is missing or expired; fn is not called then.
	Update(ctx context.Context, id string, fn func(*domain.Session)) (domain.Session, bool)
}

type entry struct {
	sess      domain.Session
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]*entry
	ttl  time.Duration
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory session store whose entries live for ttl after each write.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]*entry),
		ttl:  ttl,
		nowF: time.Now,
	}
}

// Create starts a new unbound session.
func (s *MemoryStore) Create(ctx context.Context) domain.Session {
	now := s.nowF().UTC()
	sess := domain.Session{ID: uuid.NewString(), CreatedAt: now, LastTouch: now}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[sess.ID] = &entry{sess: sess, expiresAt: now.Add(s.ttl)}
	return sess
}

// Get returns the session for id if present and not expired.
func (s *MemoryStore) Get(ctx context.Context, id string) (domain.Session, bool) {
	s.mu.RLock()
	e, ok := s.m[id]
	var sess domain.Session
	var expiresAt time.Time
	if ok {
		sess, expiresAt = e.sess, e.expiresAt
	}
	s.mu.RUnlock()
	if !ok {
		return domain.Session{}, false
	}
	if !expiresAt.After(s.nowF()) {
		s.mu.Lock()
		// An Update may have refreshed the entry since the read lock was released.
		if cur, ok := s.m[id]; ok {
			if cur.expiresAt.After(s.nowF()) {
				sess = cur.sess
				s.mu.Unlock()
				return sess, true
			}
			delete(s.m, id)
		}
		s.mu.Unlock()
		return domain.Session{}, false
	}
	return sess, true
}

// Update applies fn to the session and extends its lifetime.
func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*domain.Session)) (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[id]
	if !ok {
		return domain.Session{}, false
	}
	now := s.nowF()
	if !e.expiresAt.After(now) {
		delete(s.m, id)
		return domain.Session{}, false
	}
	fn(&e.sess)
	e.expiresAt = now.Add(s.ttl)
	return e.sess, true
}
