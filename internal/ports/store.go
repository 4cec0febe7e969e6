package ports

import "context"

// BanStore persists globally banned user ids across two independent sources
// that are unioned at hydration time. Writes go to the global source.
type BanStore interface {
	LoadGlobalBans(ctx context.Context) ([]int64, error)
	LoadLocalBans(ctx context.Context) ([]int64, error)
	PersistBan(ctx context.Context, userID int64) error
	PersistUnban(ctx context.Context, userID int64) error
}

// ServedStore tracks every chat and user the bot has served.
type ServedStore interface {
	ServedChats(ctx context.Context) ([]int64, error)
	ServedUsers(ctx context.Context) ([]int64, error)
	AddServedChat(ctx context.Context, chatID int64) error
	AddServedUser(ctx context.Context, userID int64) error
}
