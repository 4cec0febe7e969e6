package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/billaspace/anonxmusic/internal/ports"
)

const (
	keyGlobalBans  = "anonx:gbanned"
	keyLocalBans   = "anonx:banned"
	keyServedChats = "anonx:served:chats"
	keyServedUsers = "anonx:served:users"
)

// Store keeps bans and served entities in Redis sets. It covers both the
// BanStore and ServedStore ports.
type Store struct {
	client *redis.Client
}

var (
	_ ports.BanStore    = (*Store)(nil)
	_ ports.ServedStore = (*Store)(nil)
)

func NewStore(uri string) (*Store, error) {
	options, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse redis uri: %w", err)
	}
	return &Store{client: redis.NewClient(options)}, nil
}

func NewStoreWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) LoadGlobalBans(ctx context.Context) ([]int64, error) {
	return s.loadIDs(ctx, keyGlobalBans)
}

func (s *Store) LoadLocalBans(ctx context.Context) ([]int64, error) {
	return s.loadIDs(ctx, keyLocalBans)
}

func (s *Store) PersistBan(ctx context.Context, userID int64) error {
	if err := s.client.SAdd(ctx, keyGlobalBans, userID).Err(); err != nil {
		return fmt.Errorf("persist ban: %w", err)
	}
	return nil
}

// PersistUnban clears the user from both sources so a restart cannot
// resurrect the ban through the other set.
func (s *Store) PersistUnban(ctx context.Context, userID int64) error {
	if err := s.client.SRem(ctx, keyGlobalBans, userID).Err(); err != nil {
		return fmt.Errorf("persist unban: %w", err)
	}
	if err := s.client.SRem(ctx, keyLocalBans, userID).Err(); err != nil {
		return fmt.Errorf("persist unban: %w", err)
	}
	return nil
}

func (s *Store) ServedChats(ctx context.Context) ([]int64, error) {
	return s.loadIDs(ctx, keyServedChats)
}

func (s *Store) ServedUsers(ctx context.Context) ([]int64, error) {
	return s.loadIDs(ctx, keyServedUsers)
}

func (s *Store) AddServedChat(ctx context.Context, chatID int64) error {
	if err := s.client.SAdd(ctx, keyServedChats, chatID).Err(); err != nil {
		return fmt.Errorf("add served chat: %w", err)
	}
	return nil
}

func (s *Store) AddServedUser(ctx context.Context, userID int64) error {
	if err := s.client.SAdd(ctx, keyServedUsers, userID).Err(); err != nil {
		return fmt.Errorf("add served user: %w", err)
	}
	return nil
}

func (s *Store) loadIDs(ctx context.Context, key string) ([]int64, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}

	ids := make([]int64, 0, len(members))
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
