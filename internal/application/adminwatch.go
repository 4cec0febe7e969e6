package application

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/billaspace/anonxmusic/internal/ports"
)

const DefaultAdminRefreshInterval = 10 * time.Second

// AdminWatch periodically refreshes the cache of which users may manage the
// voice chat in each served chat. It is owned by the process supervisor:
// Run blocks until the context is cancelled.
type AdminWatch struct {
	bot      ports.Conn
	served   ports.ServedStore
	interval time.Duration
	log      *logrus.Logger

	mu     sync.RWMutex
	admins map[int64][]int64
}

func NewAdminWatch(bot ports.Conn, served ports.ServedStore, interval time.Duration, logger *logrus.Logger) *AdminWatch {
	if interval <= 0 {
		interval = DefaultAdminRefreshInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &AdminWatch{
		bot:      bot,
		served:   served,
		interval: interval,
		log:      logger,
		admins:   make(map[int64][]int64),
	}
}

func (w *AdminWatch) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

// refresh fills the cache for chats not seen yet. Per-chat failures are
// logged and skipped; the pass always covers the remaining chats.
func (w *AdminWatch) refresh(ctx context.Context) {
	chats, err := w.served.ServedChats(ctx)
	if err != nil {
		w.log.WithError(err).Warn("could not load served chats for admin refresh")
		return
	}

	for _, chat := range chats {
		w.mu.RLock()
		_, cached := w.admins[chat]
		w.mu.RUnlock()
		if cached {
			continue
		}

		admins, err := w.bot.VideoChatAdmins(ctx, chat)
		if err != nil {
			w.log.WithError(err).WithField("chat", chat).Debug("could not list video chat admins")
			continue
		}

		w.mu.Lock()
		w.admins[chat] = admins
		w.mu.Unlock()
	}
}

// Admins returns the cached video-chat admins for a chat, if known.
func (w *AdminWatch) Admins(chat int64) ([]int64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	admins, ok := w.admins[chat]
	if !ok {
		return nil, false
	}
	return append([]int64(nil), admins...), true
}

// Invalidate drops a chat's cache entry so the next pass refetches it, for
// example after an admin promotion.
func (w *AdminWatch) Invalidate(chat int64) {
	w.mu.Lock()
	delete(w.admins, chat)
	w.mu.Unlock()
}
