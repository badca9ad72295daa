package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore 进程内会话存储
// Redis 不可用时降级使用；进程重启后会话全部失效。过期记录在访问时惰性清理
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	now      func() time.Time
}

type memoryEntry struct {
	session  Session
	deadline time.Time
}

// NewMemoryStore 创建进程内会话存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Save(_ context.Context, sess *Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.purgeLocked(now)
	s.sessions[sess.ID] = memoryEntry{session: *sess, deadline: now.Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil, ErrNoSession
	}
	if !s.now().Before(e.deadline) {
		delete(s.sessions, id)
		return nil, ErrNoSession
	}
	sess := e.session
	return &sess, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Len 当前存活的会话数
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked(s.now())
	return len(s.sessions)
}

func (s *MemoryStore) purgeLocked(now time.Time) {
	for id, e := range s.sessions {
		if !now.Before(e.deadline) {
			delete(s.sessions, id)
		}
	}
}
