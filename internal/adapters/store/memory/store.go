package memory

import (
	"context"
	"sync"

	"github.com/billaspace/anonxmusic/internal/ports"
)

// ServedStore keeps served-chat bookkeeping in process memory. It is the
// fallback when no Redis URI is configured; the data does not survive a
// restart, which only shrinks broadcast audiences until chats are seen again.
type ServedStore struct {
	mu    sync.Mutex
	chats map[int64]struct{}
	users map[int64]struct{}
}

var _ ports.ServedStore = (*ServedStore)(nil)

func NewServedStore() *ServedStore {
	return &ServedStore{
		chats: make(map[int64]struct{}),
		users: make(map[int64]struct{}),
	}
}

func (s *ServedStore) ServedChats(context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return keys(s.chats), nil
}

func (s *ServedStore) ServedUsers(context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return keys(s.users), nil
}

func (s *ServedStore) AddServedChat(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[chatID] = struct{}{}
	return nil
}

func (s *ServedStore) AddServedUser(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = struct{}{}
	return nil
}

func keys(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
