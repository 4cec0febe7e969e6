package application

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/billaspace/anonxmusic/internal/domain"
	"github.com/billaspace/anonxmusic/internal/ports"
)

// SweepReport summarizes one best-effort pass of per-chat cleanup after a
// ban or unban. Global ban state is authoritative regardless of how many
// chats the sweep reached.
type SweepReport struct {
	Chats int
	Swept int
}

// GlobalBanRegistry is the synchronous moderation gate consulted on every
// inbound message. The in-memory set is hydrated once at startup from two
// persisted sources and mutated in place for the rest of the process.
type GlobalBanRegistry struct {
	store   ports.BanStore
	served  ports.ServedStore
	bot     ports.Conn
	sleeper ports.Sleeper
	log     *logrus.Logger

	mu     sync.RWMutex
	banned map[int64]struct{}
}

func NewGlobalBanRegistry(store ports.BanStore, served ports.ServedStore, bot ports.Conn, sleeper ports.Sleeper, logger *logrus.Logger) *GlobalBanRegistry {
	if sleeper == nil {
		sleeper = ports.SystemSleeper{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &GlobalBanRegistry{
		store:   store,
		served:  served,
		bot:     bot,
		sleeper: sleeper,
		log:     logger,
		banned:  make(map[int64]struct{}),
	}
}

// Hydrate unions both persisted sources into the in-memory set. Load
// failures are logged and leave the set empty; they are never fatal.
func (r *GlobalBanRegistry) Hydrate(ctx context.Context) {
	for name, load := range map[string]func(context.Context) ([]int64, error){
		"global": r.store.LoadGlobalBans,
		"local":  r.store.LoadLocalBans,
	} {
		users, err := load(ctx)
		if err != nil {
			r.log.WithError(err).WithField("source", name).Warn("could not load banned users")
			continue
		}

		r.mu.Lock()
		for _, user := range users {
			r.banned[user] = struct{}{}
		}
		r.mu.Unlock()
	}
}

func (r *GlobalBanRegistry) IsBanned(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.banned[userID]
	return ok
}

func (r *GlobalBanRegistry) BannedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.banned)
}

// BannedUsers returns the current in-memory set in ascending order.
func (r *GlobalBanRegistry) BannedUsers() []int64 {
	r.mu.RLock()
	users := make([]int64, 0, len(r.banned))
	for user := range r.banned {
		users = append(users, user)
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}

// Ban marks the user banned, persists the change, then sweeps every served
// chat best-effort: remove the member and delete their recent messages.
// The sweep is not transactional; a partial sweep leaves the ban in force.
func (r *GlobalBanRegistry) Ban(ctx context.Context, userID int64) (SweepReport, error) {
	r.mu.Lock()
	r.banned[userID] = struct{}{}
	r.mu.Unlock()

	if err := r.store.PersistBan(ctx, userID); err != nil {
		r.log.WithError(err).WithField("user", userID).Error("could not persist ban")
	}

	chats, err := r.served.ServedChats(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("load served chats: %w", err)
	}

	report := SweepReport{Chats: len(chats)}
	for _, chat := range chats {
		if err := r.bot.BanMember(ctx, chat, userID); err != nil {
			if wait, ok := domain.FloodWait(err); ok {
				r.sleeper.Sleep(ctx, wait)
			}
			continue
		}

		if err := r.bot.DeleteMemberHistory(ctx, chat, userID); err != nil {
			r.log.WithError(err).WithFields(logrus.Fields{"chat": chat, "user": userID}).Debug("could not delete member history")
		}

		report.Swept++
	}

	return report, nil
}

// Unban clears the user, persists the change, and best-effort lifts the ban
// in every served chat.
func (r *GlobalBanRegistry) Unban(ctx context.Context, userID int64) (SweepReport, error) {
	r.mu.Lock()
	delete(r.banned, userID)
	r.mu.Unlock()

	if err := r.store.PersistUnban(ctx, userID); err != nil {
		r.log.WithError(err).WithField("user", userID).Error("could not persist unban")
	}

	chats, err := r.served.ServedChats(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("load served chats: %w", err)
	}

	report := SweepReport{Chats: len(chats)}
	for _, chat := range chats {
		if err := r.bot.UnbanMember(ctx, chat, userID); err != nil {
			if wait, ok := domain.FloodWait(err); ok {
				r.sleeper.Sleep(ctx, wait)
			}
			continue
		}
		report.Swept++
	}

	return report, nil
}

// Enforce runs before any command dispatch: a banned sender's message is
// deleted. Errors here, rate limits included, are swallowed so message
// processing is never blocked; on a rate limit the message stays undeleted.
func (r *GlobalBanRegistry) Enforce(ctx context.Context, senderID int64, message domain.MessageRef) bool {
	if !r.IsBanned(senderID) {
		return false
	}

	if err := r.bot.DeleteMessage(ctx, message); err != nil {
		r.log.WithError(err).WithField("user", senderID).Debug("could not delete banned user's message")
	}
	return true
}
