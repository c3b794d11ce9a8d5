package store

import (
	"context"
	"sync"
	"time"

	"github.com/pep299/news-chat/internal/model"
)

type memoryEntry struct {
	session   *model.Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	entries map[string]*memoryEntry
	mutex   sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory session store
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get retrieves a session
func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Session, error) {
	s.mutex.RLock()
	entry, exists := s.entries[id]
	s.mutex.RUnlock()

	if !exists {
		return nil, ErrNotFound
	}

	if s.now().After(entry.expiresAt) {
		s.mutex.Lock()
		// Double-check after acquiring write lock
		if current, ok := s.entries[id]; ok && s.now().After(current.expiresAt) {
			delete(s.entries, id)
		}
		s.mutex.Unlock()
		return nil, ErrNotFound
	}

	return entry.session.Clone(), nil
}

// Save stores a session and restarts its TTL
func (s *MemoryStore) Save(ctx context.Context, session *model.Session) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entries[session.ID] = &memoryEntry{
		session:   session.Clone(),
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

// Delete removes a session
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.entries, id)
	return nil
}

// List returns live sessions, newest first
func (s *MemoryStore) List(ctx context.Context, limit int) ([]*model.Session, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	now := s.now()
	sessions := make([]*model.Session, 0, len(s.entries))
	for _, entry := range s.entries {
		if now.After(entry.expiresAt) {
			continue
		}
		sessions = append(sessions, entry.session.Clone())
	}

	sortNewestFirst(sessions)
	if limit = clampLimit(limit); len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// Prune removes expired sessions and the oldest sessions beyond the list cap
func (s *MemoryStore) Prune(ctx context.Context) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	now := s.now()
	live := make([]*model.Session, 0, len(s.entries))
	for id, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, id)
			removed++
			continue
		}
		live = append(live, entry.session)
	}

	sortNewestFirst(live)
	for _, session := range live[min(len(live), model.MaxListSessions):] {
		delete(s.entries, session.ID)
		removed++
	}
	return removed, nil
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error {
	return nil
}
