package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billaspace/anonxmusic/internal/domain"
	"github.com/billaspace/anonxmusic/internal/ports"
)

func newTestDispatcher(bot ports.Conn, pool *AssistantPool, served ports.ServedStore, sleeper ports.Sleeper) *BroadcastDispatcher {
	if pool == nil {
		pool = newEmptyPool()
	}
	if served == nil {
		served = &fakeServedStore{}
	}
	return NewBroadcastDispatcher(bot, pool, served, sleeper, testLogger(), BroadcastLimits{
		BotConcurrency:        20,
		AssistantConcurrency:  5,
		BotAbandonAfter:       200 * time.Second,
		AssistantAbandonAfter: 10 * time.Second,
	})
}

func newEmptyPool() *AssistantPool {
	credentials, _ := domain.NewCredentialStore()
	return NewAssistantPool(PoolConfig{Credentials: credentials, Transport: &fakeTransport{}, Logger: testLogger()})
}

func TestBroadcastEmptyTargets(t *testing.T) {
	t.Parallel()

	dispatcher := newTestDispatcher(&fakeConn{}, nil, nil, &recordingSleeper{})

	report, err := dispatcher.Broadcast(context.Background(), domain.BroadcastJob{})
	require.NoError(t, err)

	assert.Equal(t, 0, report.Attempted)
	assert.Equal(t, 0, report.Delivered)
}

func TestBroadcastDeliversAndPins(t *testing.T) {
	t.Parallel()

	bot := &fakeConn{}
	dispatcher := newTestDispatcher(bot, nil, nil, &recordingSleeper{})

	report, err := dispatcher.Broadcast(context.Background(), domain.BroadcastJob{
		Payload: domain.BroadcastPayload{Text: "hello"},
		Targets: []int64{-1, -2, -3},
		Pin:     domain.PinSilent,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 3, report.Delivered)
	assert.Equal(t, 3, report.Pinned)
	assert.LessOrEqual(t, report.Delivered, report.Attempted)
	assert.LessOrEqual(t, report.Pinned, report.Delivered)
	assert.ElementsMatch(t, []int64{-1, -2, -3}, bot.sentTo())
	assert.Len(t, bot.pinnedRefs(), 3)
}

func TestBroadcastPinFailureDoesNotCountAgainstDelivery(t *testing.T) {
	t.Parallel()

	bot := &fakeConn{pinErr: errors.New("not admin")}
	dispatcher := newTestDispatcher(bot, nil, nil, &recordingSleeper{})

	report, err := dispatcher.Broadcast(context.Background(), domain.BroadcastJob{
		Payload: domain.BroadcastPayload{Text: "hello"},
		Targets: []int64{-1, -2},
		Pin:     domain.PinLoud,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Delivered)
	assert.Equal(t, 0, report.Pinned)
	assert.Empty(t, report.Failures)
}

func TestBroadcastRetriesShortFloodWaitOnce(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		attempts = map[int64]int{}
	)
	bot := &fakeConn{}
	bot.sendFn = func(chat int64, _ string) (domain.MessageRef, error) {
		mu.Lock()
		attempts[chat]++
		n := attempts[chat]
		mu.Unlock()
		if chat == -47 && n == 1 {
			return domain.MessageRef{}, &domain.FloodWaitError{Wait: 5 * time.Second}
		}
		return domain.MessageRef{Chat: chat, ID: 1}, nil
	}

	sleeper := &recordingSleeper{}
	dispatcher := newTestDispatcher(bot, nil, nil, sleeper)

	targets := make([]int64, 0, 100)
	for i := 1; i <= 100; i++ {
		targets = append(targets, int64(-i))
	}

	report, err := dispatcher.Broadcast(context.Background(), domain.BroadcastJob{
		Payload: domain.BroadcastPayload{Text: "hi"},
		Targets: targets,
	})
	require.NoError(t, err)

	assert.Equal(t, 100, report.Attempted)
	assert.Equal(t, 100, report.Delivered, "the rate-limited target succeeds on its single retry")
	assert.Equal(t, 0, report.Abandoned)
	assert.Equal(t, 2, attempts[-47], "exactly one retry for the rate-limited target")
	assert.Contains(t, sleeper.recorded(), 5*time.Second)
}

func TestBroadcastAbandonsLongFloodWaitWithoutRetry(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		attempts = map[int64]int{}
	)
	bot := &fakeConn{}
	bot.sendFn = func(chat int64, _ string) (domain.MessageRef, error) {
		mu.Lock()
		attempts[chat]++
		mu.Unlock()
		if chat == -2 {
			return domain.MessageRef{}, &domain.FloodWaitError{Wait: 400 * time.Second}
		}
		return domain.MessageRef{Chat: chat, ID: 1}, nil
	}

	dispatcher := newTestDispatcher(bot, nil, nil, &recordingSleeper{})

	report, err := dispatcher.Broadcast(context.Background(), domain.BroadcastJob{
		Payload: domain.BroadcastPayload{Text: "hi"},
		Targets: []int64{-1, -2, -3},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 2, report.Delivered)
	assert.Equal(t, 1, report.Abandoned)
	assert.Equal(t, 1, attempts[-2], "abandoned targets get zero retries")
	assert.Empty(t, report.Failures, "abandonment is silent")
}

func TestBroadcastOtherErrorsNeverAbortTheBatch(t *testing.T) {
	t.Parallel()

	bot := &fakeConn{}
	bot.sendFn = func(chat int64, _ string) (domain.MessageRef, error) {
		if chat == -2 {
			return domain.MessageRef{}, errors.New("channel private")
		}
		return domain.MessageRef{Chat: chat, ID: 1}, nil
	}

	dispatcher := newTestDispatcher(bot, nil, nil, &recordingSleeper{})

	report, err := dispatcher.Broadcast(context.Background(), domain.BroadcastJob{
		Payload: domain.BroadcastPayload{Text: "hi"},
		Targets: []int64{-1, -2, -3},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Delivered)
	assert.Equal(t, "channel private", report.Failures[-2])
}

func TestBroadcastSecondJobRejectedWhileFirstInFlight(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	bot := &fakeConn{}
	var once sync.Once
	bot.sendFn = func(chat int64, _ string) (domain.MessageRef, error) {
		once.Do(func() { close(started) })
		<-release
		return domain.MessageRef{Chat: chat, ID: 1}, nil
	}

	dispatcher := newTestDispatcher(bot, nil, nil, &recordingSleeper{})

	var (
		firstReport domain.BroadcastReport
		firstErr    error
		done        = make(chan struct{})
	)
	go func() {
		firstReport, firstErr = dispatcher.Broadcast(context.Background(), domain.BroadcastJob{
			Payload: domain.BroadcastPayload{Text: "hi"},
			Targets: []int64{-1},
		})
		close(done)
	}()

	<-started
	_, err := dispatcher.Broadcast(context.Background(), domain.BroadcastJob{Targets: []int64{-9}})
	assert.ErrorIs(t, err, domain.ErrBroadcastBusy)

	close(release)
	<-done
	require.NoError(t, firstErr)
	assert.Equal(t, 1, firstReport.Delivered, "the first job's report is unaffected")
}

func TestBroadcastResolvesAudienceFromServedStore(t *testing.T) {
	t.Parallel()

	bot := &fakeConn{}
	served := &fakeServedStore{chats: []int64{-10, -20}, users: []int64{30}}
	dispatcher := newTestDispatcher(bot, nil, served, &recordingSleeper{})

	report, err := dispatcher.Broadcast(context.Background(), domain.BroadcastJob{
		Payload:  domain.BroadcastPayload{Text: "hi"},
		Audience: domain.BroadcastAudience{ServedChats: true, ServedUsers: true},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Attempted)
	assert.ElementsMatch(t, []int64{-10, -20, 30}, bot.sentTo())
}

func TestBroadcastForwardsWhenPayloadIsForwardRef(t *testing.T) {
	t.Parallel()

	bot := &fakeConn{}
	dispatcher := newTestDispatcher(bot, nil, nil, &recordingSleeper{})

	report, err := dispatcher.Broadcast(context.Background(), domain.BroadcastJob{
		Payload: domain.BroadcastPayload{Forward: &domain.ForwardRef{FromChat: -5, MessageID: 99}},
		Targets: []int64{-1, -2},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Delivered)
	assert.ElementsMatch(t, []int64{-1, -2}, bot.forwarded)
	assert.Empty(t, bot.sentTo())
}

func TestBroadcastAssistantFanOutUsesDialogSnapshots(t *testing.T) {
	t.Parallel()

	assistantConns := map[domain.SlotIndex]*fakeConn{
		1: {identity: domain.Identity{ID: 1001}, dialogList: []domain.Dialog{{ChatID: -100}, {ChatID: -101}}},
		2: {identity: domain.Identity{ID: 1002}, dialogList: []domain.Dialog{{ChatID: -200}}},
	}
	transport := &fakeTransport{connectFn: func(cred domain.SessionCredential, _ int) (ports.Conn, error) {
		return assistantConns[cred.Slot], nil
	}}

	credentials, err := domain.NewCredentialStore("s1", "s2")
	require.NoError(t, err)
	pool := NewAssistantPool(PoolConfig{
		Credentials: credentials,
		Transport:   transport,
		Sleeper:     &recordingSleeper{},
		Logger:      testLogger(),
		LogChat:     -100200,
	})
	pool.StartAll(context.Background())
	require.Len(t, pool.LiveAssistants(), 2)

	bot := &fakeConn{}
	dispatcher := newTestDispatcher(bot, pool, nil, &recordingSleeper{})

	report, err := dispatcher.Broadcast(context.Background(), domain.BroadcastJob{
		Payload:  domain.BroadcastPayload{Text: "hi"},
		Targets:  []int64{-1},
		Audience: domain.BroadcastAudience{Assistants: true},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.AssistantFanout{Attempted: 2, Delivered: 2}, report.Assistant[1])
	assert.Equal(t, domain.AssistantFanout{Attempted: 1, Delivered: 1}, report.Assistant[2])
	assert.ElementsMatch(t, []int64{-100200, -100, -101}, assistantConns[1].sentTo())
}
