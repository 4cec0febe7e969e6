package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/billaspace/anonxmusic/internal/ports"
)

// Store chains two ban stores: Redis first, the TOML file as fallback. Reads
// fall through when the primary is unreachable; writes that fail on the
// primary still land in the fallback so a restart rehydrates them.
type Store struct {
	primary  ports.BanStore
	fallback ports.BanStore
}

var _ ports.BanStore = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary ban store is nil")
	errNilFallbackStore = errors.New("fallback ban store is nil")
)

func NewStore(primary, fallback ports.BanStore) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &Store{primary: primary, fallback: fallback}, nil
}

func (s *Store) LoadGlobalBans(ctx context.Context) ([]int64, error) {
	return s.load(ctx, ports.BanStore.LoadGlobalBans)
}

func (s *Store) LoadLocalBans(ctx context.Context) ([]int64, error) {
	return s.load(ctx, ports.BanStore.LoadLocalBans)
}

func (s *Store) PersistBan(ctx context.Context, userID int64) error {
	return s.persist(ctx, userID, ports.BanStore.PersistBan)
}

func (s *Store) PersistUnban(ctx context.Context, userID int64) error {
	return s.persist(ctx, userID, ports.BanStore.PersistUnban)
}

func (s *Store) load(ctx context.Context, op func(ports.BanStore, context.Context) ([]int64, error)) ([]int64, error) {
	ids, err := op(s.primary, ctx)
	if err == nil {
		return ids, nil
	}
	if shouldSkipFallback(err) {
		return nil, err
	}

	fallbackIDs, fallbackErr := op(s.fallback, ctx)
	if fallbackErr == nil {
		return fallbackIDs, nil
	}

	return nil, fmt.Errorf("primary backend load failed: %w; fallback backend load failed: %w", err, fallbackErr)
}

func (s *Store) persist(ctx context.Context, userID int64, op func(ports.BanStore, context.Context, int64) error) error {
	err := op(s.primary, ctx, userID)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := op(s.fallback, ctx, userID)
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary backend persist failed: %w; fallback backend persist failed: %w", err, fallbackErr)
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
