package store

import (
	"context"
	"slices"
	"sync"

	"github.com/MrEthical07/tokengate"
)

// MemoryStore keeps users and posts in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]tokengate.CredentialRecord
	posts []Post
}

var _ Backend = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]tokengate.CredentialRecord)}
}

func (s *MemoryStore) FindByUsername(_ context.Context, username string) (tokengate.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[username]
	if !ok {
		return tokengate.CredentialRecord{}, tokengate.ErrUserNotFound
	}
	rec.Authorities = slices.Clone(rec.Authorities)
	return rec, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, rec tokengate.CredentialRecord) error {
	rec, err := validateRecord(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[rec.Username]; ok {
		return tokengate.ErrUserExists
	}
	rec.Authorities = slices.Clone(rec.Authorities)
	s.users[rec.Username] = rec
	return nil
}

func (s *MemoryStore) PutUser(_ context.Context, rec tokengate.CredentialRecord) error {
	rec, err := validateRecord(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Authorities = slices.Clone(rec.Authorities)
	s.users[rec.Username] = rec
	return nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, username)
	return nil
}

func (s *MemoryStore) CreatePost(_ context.Context, p Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, p)
	return nil
}

func (s *MemoryStore) ListPosts(_ context.Context, limit int) ([]Post, error) {
	limit = listLimit(limit)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Post, 0, min(limit, len(s.posts)))
	for i := len(s.posts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.posts[i])
	}
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
