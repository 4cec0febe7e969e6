package application

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/billaspace/anonxmusic/internal/domain"
	"github.com/billaspace/anonxmusic/internal/ports"
)

// Defaults come from the configuration layer; assistant accounts get the far
// more conservative values because they are more rate-limit sensitive.
const (
	DefaultBotConcurrency        = 20
	DefaultAssistantConcurrency  = 5
	DefaultBotAbandonAfter       = 200 * time.Second
	DefaultAssistantAbandonAfter = 10 * time.Second
	DefaultBotPace               = 200 * time.Millisecond
	DefaultAssistantPace         = 3 * time.Second
)

type BroadcastLimits struct {
	BotConcurrency        int64
	AssistantConcurrency  int64
	BotAbandonAfter       time.Duration
	AssistantAbandonAfter time.Duration
	BotPace               time.Duration
	AssistantPace         time.Duration
}

func (l BroadcastLimits) withDefaults() BroadcastLimits {
	if l.BotConcurrency <= 0 {
		l.BotConcurrency = DefaultBotConcurrency
	}
	if l.AssistantConcurrency <= 0 {
		l.AssistantConcurrency = DefaultAssistantConcurrency
	}
	if l.BotAbandonAfter <= 0 {
		l.BotAbandonAfter = DefaultBotAbandonAfter
	}
	if l.AssistantAbandonAfter <= 0 {
		l.AssistantAbandonAfter = DefaultAssistantAbandonAfter
	}
	if l.BotPace < 0 {
		l.BotPace = DefaultBotPace
	}
	if l.AssistantPace < 0 {
		l.AssistantPace = DefaultAssistantPace
	}
	return l
}

// BroadcastDispatcher fans one message out to a large, heterogeneous target
// set with bounded in-flight deliveries. Only one job may be in flight
// process-wide; concurrent requests are rejected with ErrBroadcastBusy, not
// queued.
type BroadcastDispatcher struct {
	bot     ports.Conn
	pool    *AssistantPool
	served  ports.ServedStore
	sleeper ports.Sleeper
	log     *logrus.Logger
	limits  BroadcastLimits

	busy atomic.Bool
}

func NewBroadcastDispatcher(bot ports.Conn, pool *AssistantPool, served ports.ServedStore, sleeper ports.Sleeper, logger *logrus.Logger, limits BroadcastLimits) *BroadcastDispatcher {
	if sleeper == nil {
		sleeper = ports.SystemSleeper{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &BroadcastDispatcher{
		bot:     bot,
		pool:    pool,
		served:  served,
		sleeper: sleeper,
		log:     logger,
		limits:  limits.withDefaults(),
	}
}

// Broadcast resolves the job's targets once, delivers to each with at most
// the configured number of deliveries in flight, then runs the independent
// assistant fan-out when requested. A single target's failure never aborts
// the batch; the report's counts are the only authoritative outcome.
func (d *BroadcastDispatcher) Broadcast(ctx context.Context, job domain.BroadcastJob) (domain.BroadcastReport, error) {
	if !d.busy.CompareAndSwap(false, true) {
		return domain.BroadcastReport{}, domain.ErrBroadcastBusy
	}
	defer d.busy.Store(false)

	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	report := domain.BroadcastReport{
		JobID:     job.ID,
		Failures:  make(map[int64]string),
		Assistant: make(map[domain.SlotIndex]domain.AssistantFanout),
	}

	targets, err := d.resolveTargets(ctx, job)
	if err != nil {
		return report, fmt.Errorf("resolve targets: %w", err)
	}

	log := d.log.WithFields(logrus.Fields{"job": job.ID, "targets": len(targets)})
	log.Info("broadcast started")

	d.fanOut(ctx, job, targets, &report)

	if job.Audience.Assistants {
		d.assistantFanOut(ctx, job, &report)
	}

	log.WithFields(logrus.Fields{
		"delivered": report.Delivered,
		"pinned":    report.Pinned,
		"abandoned": report.Abandoned,
	}).Info("broadcast finished")

	return report, nil
}

// resolveTargets snapshots the destination list at call time; it is never
// re-queried mid-flight.
func (d *BroadcastDispatcher) resolveTargets(ctx context.Context, job domain.BroadcastJob) ([]int64, error) {
	if len(job.Targets) > 0 {
		return append([]int64(nil), job.Targets...), nil
	}

	var targets []int64
	if job.Audience.ServedChats {
		chats, err := d.served.ServedChats(ctx)
		if err != nil {
			return nil, fmt.Errorf("load served chats: %w", err)
		}
		targets = append(targets, chats...)
	}
	if job.Audience.ServedUsers {
		users, err := d.served.ServedUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("load served users: %w", err)
		}
		targets = append(targets, users...)
	}
	return targets, nil
}

func (d *BroadcastDispatcher) fanOut(ctx context.Context, job domain.BroadcastJob, targets []int64, report *domain.BroadcastReport) {
	report.Attempted = len(targets)

	sem := semaphore.NewWeighted(d.limits.BotConcurrency)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, target := range targets {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			report.Failures[target] = err.Error()
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(target int64) {
			defer wg.Done()
			defer sem.Release(1)

			outcome := d.deliver(ctx, d.bot, target, job.Payload, d.limits.BotAbandonAfter)
			pinned := false
			if outcome.delivered && job.Pin != domain.PinNone {
				pinned = d.pin(ctx, outcome.ref, job.Pin)
			}
			d.sleeper.Sleep(ctx, d.limits.BotPace)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case outcome.delivered:
				report.Delivered++
				if pinned {
					report.Pinned++
				}
			case outcome.abandoned:
				report.Abandoned++
			default:
				report.Failures[target] = outcome.reason
			}
		}(target)
	}

	wg.Wait()
}

// assistantFanOut is the second, independent delivery layer: each live
// assistant enumerates its own visible dialogs and delivers to every one,
// under the lower assistant concurrency cap and abandon threshold.
func (d *BroadcastDispatcher) assistantFanOut(ctx context.Context, job domain.BroadcastJob, report *domain.BroadcastReport) {
	for _, slot := range d.pool.LiveAssistants() {
		session, err := d.pool.BySlot(slot)
		if err != nil {
			continue
		}

		dialogs, err := session.Dialogs(ctx)
		if err != nil {
			d.log.WithError(err).WithField("slot", slot).Warn("could not list assistant dialogs")
			report.Assistant[slot] = domain.AssistantFanout{}
			continue
		}

		fanout := domain.AssistantFanout{Attempted: len(dialogs)}

		sem := semaphore.NewWeighted(d.limits.AssistantConcurrency)
		var (
			wg sync.WaitGroup
			mu sync.Mutex
		)
		for _, dialog := range dialogs {
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}

			wg.Add(1)
			go func(chat int64) {
				defer wg.Done()
				defer sem.Release(1)

				outcome := d.deliver(ctx, assistantConn{session}, chat, job.Payload, d.limits.AssistantAbandonAfter)
				d.sleeper.Sleep(ctx, d.limits.AssistantPace)
				if outcome.delivered {
					mu.Lock()
					fanout.Delivered++
					mu.Unlock()
				}
			}(dialog.ChatID)
		}
		wg.Wait()

		report.Assistant[slot] = fanout
	}
}

type deliveryOutcome struct {
	delivered bool
	abandoned bool
	reason    string
	ref       domain.MessageRef
}

type sender interface {
	SendMessage(ctx context.Context, chat int64, text string) (domain.MessageRef, error)
	ForwardMessage(ctx context.Context, to int64, ref domain.ForwardRef) (domain.MessageRef, error)
}

// assistantConn adapts an AssistantSession to the sender shape used by the
// shared delivery path.
type assistantConn struct {
	session *AssistantSession
}

func (c assistantConn) SendMessage(ctx context.Context, chat int64, text string) (domain.MessageRef, error) {
	return c.session.Send(ctx, chat, text)
}

func (c assistantConn) ForwardMessage(ctx context.Context, to int64, ref domain.ForwardRef) (domain.MessageRef, error) {
	return c.session.Forward(ctx, to, ref)
}

// deliver sends the payload to one target. A rate-limit wait at or below the
// abandon threshold is slept exactly once and the target retried a single
// time; a longer wait abandons the target silently.
func (d *BroadcastDispatcher) deliver(ctx context.Context, conn sender, target int64, payload domain.BroadcastPayload, abandonAfter time.Duration) deliveryOutcome {
	ref, err := d.sendOnce(ctx, conn, target, payload)
	if err == nil {
		return deliveryOutcome{delivered: true, ref: ref}
	}

	wait, ok := domain.FloodWait(err)
	if !ok {
		return deliveryOutcome{reason: err.Error()}
	}
	if wait > abandonAfter {
		d.log.WithFields(logrus.Fields{"target": target, "wait": wait}).Warn("abandoning rate-limited target")
		return deliveryOutcome{abandoned: true}
	}

	d.sleeper.Sleep(ctx, wait)
	ref, err = d.sendOnce(ctx, conn, target, payload)
	if err != nil {
		return deliveryOutcome{reason: err.Error()}
	}
	return deliveryOutcome{delivered: true, ref: ref}
}

func (d *BroadcastDispatcher) sendOnce(ctx context.Context, conn sender, target int64, payload domain.BroadcastPayload) (domain.MessageRef, error) {
	if payload.Forward != nil {
		return conn.ForwardMessage(ctx, target, *payload.Forward)
	}
	return conn.SendMessage(ctx, target, payload.Text)
}

// pin failures never count against delivery.
func (d *BroadcastDispatcher) pin(ctx context.Context, ref domain.MessageRef, mode domain.PinMode) bool {
	if err := d.bot.Pin(ctx, ref, mode == domain.PinSilent); err != nil {
		d.log.WithError(err).WithField("chat", ref.Chat).Warn("pin failed")
		return false
	}
	return true
}
