package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	youtuberesolver "github.com/billaspace/anonxmusic/internal/adapters/resolver/youtube"
	chainstore "github.com/billaspace/anonxmusic/internal/adapters/store/chain"
	filestore "github.com/billaspace/anonxmusic/internal/adapters/store/file"
	memorystore "github.com/billaspace/anonxmusic/internal/adapters/store/memory"
	redisstore "github.com/billaspace/anonxmusic/internal/adapters/store/redis"
	"github.com/billaspace/anonxmusic/internal/adapters/telegram"
	"github.com/billaspace/anonxmusic/internal/application"
	"github.com/billaspace/anonxmusic/internal/ports"
	"github.com/billaspace/anonxmusic/internal/version"
)

func newRunCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot and its assistant sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runBot(ctx, app)
		},
	}
}

func runBot(ctx context.Context, app *app) error {
	cfg := app.cfg
	log := app.logger

	banStore, served, closeStores, err := wireStores(ctx, app)
	if err != nil {
		return err
	}
	defer closeStores()

	botConn, client, err := telegram.ConnectBot(cfg.APIID, cfg.APIHash, cfg.BotToken)
	if err != nil {
		return fmt.Errorf("connect bot: %w", err)
	}
	defer func() {
		if err := botConn.Disconnect(); err != nil {
			log.WithError(err).Warn("disconnect bot")
		}
	}()

	pool := application.NewAssistantPool(application.PoolConfig{
		Credentials:    app.credentials,
		Transport:      telegram.NewTransport(cfg.APIID, cfg.APIHash),
		Logger:         log,
		LogChat:        cfg.LogChat,
		SupportVenues:  supportVenues(cfg.SupportChannel, cfg.SupportChat),
		StartAttempts:  cfg.StartAttempts,
		InterSlotPause: cfg.InterSlotPause,
	})

	dispatcher := application.NewBroadcastDispatcher(botConn, pool, served, nil, log, application.BroadcastLimits{
		BotConcurrency:        cfg.BotBroadcastCap,
		AssistantConcurrency:  cfg.AssistantBroadcastCap,
		BotAbandonAfter:       cfg.BotAbandonAfter,
		AssistantAbandonAfter: cfg.AssistantAbandonAfter,
		BotPace:               cfg.BotPace,
		AssistantPace:         cfg.AssistantPace,
	})

	bans := application.NewGlobalBanRegistry(banStore, served, botConn, nil, log)
	bans.Hydrate(ctx)
	log.WithField("banned", bans.BannedCount()).Info("ban registry hydrated")

	afk := application.NewAFKTracker(ports.SystemClock{})

	handlers := telegram.NewHandlers(telegram.HandlerConfig{
		Pool:       pool,
		Dispatcher: dispatcher,
		Bans:       bans,
		AFK:        afk,
		Resolver:   youtuberesolver.NewResolver(),
		Served:     served,
		LogChat:    cfg.LogChat,
		Sudoers:    cfg.Sudoers,
		Logger:     log,
	})
	handlers.Register(client)

	adminWatch := application.NewAdminWatch(botConn, served, cfg.AdminRefreshInterval, log)
	go adminWatch.Run(ctx)

	report := pool.StartAll(ctx)
	log.WithFields(logrus.Fields{
		"attempted": report.Attempted,
		"live":      len(report.Live),
	}).Info("assistant pool started")
	for slot, reason := range report.Failed {
		log.WithField("slot", slot).Warn("assistant failed to start: " + reason)
	}

	if _, err := botConn.SendMessage(ctx, cfg.LogChat, startupSummary(report)); err != nil {
		log.WithError(err).Warn("send startup summary")
	}

	<-ctx.Done()
	log.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	pool.StopAll(stopCtx)

	return nil
}

// wireStores picks the ban and served-chat backends. Redis is primary when a
// URI is configured and reachable; the TOML file always backs bans so a
// Redis outage cannot lose the global ban list.
func wireStores(ctx context.Context, app *app) (ports.BanStore, ports.ServedStore, func(), error) {
	cfg := app.cfg
	log := app.logger

	fileStore, err := filestore.NewStore(cfg.BansPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("wire file ban store: %w", err)
	}

	if cfg.RedisURI != "" {
		redisStore, err := redisstore.NewStore(cfg.RedisURI)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("wire redis store: %w", err)
		}
		if err := redisStore.Ping(ctx); err != nil {
			log.WithError(err).Warn("redis unreachable, falling back to file store")
			_ = redisStore.Close()
		} else {
			chained, err := chainstore.NewStore(redisStore, fileStore)
			if err != nil {
				_ = redisStore.Close()
				return nil, nil, nil, fmt.Errorf("wire ban store chain: %w", err)
			}
			closer := func() {
				if err := redisStore.Close(); err != nil {
					log.WithError(err).Warn("close redis store")
				}
			}
			return chained, redisStore, closer, nil
		}
	}

	return fileStore, memorystore.NewServedStore(), func() {}, nil
}

func supportVenues(venues ...string) []string {
	out := make([]string, 0, len(venues))
	for _, venue := range venues {
		if trimmed := strings.TrimSpace(venue); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func startupSummary(report application.StartReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "anonx %s is up.\n", version.Version)
	fmt.Fprintf(&b, "Assistants: %d attempted, %d live.", report.Attempted, len(report.Live))
	for slot, reason := range report.Failed {
		fmt.Fprintf(&b, "\nAssistant %d failed: %s", slot, reason)
	}
	return b.String()
}
