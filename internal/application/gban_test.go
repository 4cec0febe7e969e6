package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billaspace/anonxmusic/internal/domain"
)

func TestGlobalBanRegistryHydrateUnionsBothSources(t *testing.T) {
	t.Parallel()

	store := &fakeBanStore{global: []int64{1, 2}, local: []int64{2, 3}}
	registry := NewGlobalBanRegistry(store, &fakeServedStore{}, &fakeConn{}, &recordingSleeper{}, testLogger())

	registry.Hydrate(context.Background())

	assert.Equal(t, []int64{1, 2, 3}, registry.BannedUsers())
	assert.Equal(t, 3, registry.BannedCount())
}

func TestGlobalBanRegistryHydrateFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	store := &fakeBanStore{globalErr: errors.New("db down"), local: []int64{5}}
	registry := NewGlobalBanRegistry(store, &fakeServedStore{}, &fakeConn{}, &recordingSleeper{}, testLogger())

	registry.Hydrate(context.Background())

	assert.True(t, registry.IsBanned(5), "the healthy source still hydrates")
	assert.False(t, registry.IsBanned(1))
}

func TestGlobalBanSurvivesPartialSweepFailure(t *testing.T) {
	t.Parallel()

	store := &fakeBanStore{}
	bot := &fakeConn{banFn: func(chat, _ int64) error {
		if chat == -2 {
			return errors.New("not admin here")
		}
		return nil
	}}
	registry := NewGlobalBanRegistry(store, &fakeServedStore{chats: []int64{-1, -2, -3}}, bot, &recordingSleeper{}, testLogger())

	report, err := registry.Ban(context.Background(), 777)
	require.NoError(t, err)

	assert.True(t, registry.IsBanned(777), "global ban state is authoritative even when the sweep partially fails")
	assert.Equal(t, SweepReport{Chats: 3, Swept: 2}, report)
	assert.Equal(t, []int64{777}, store.persisted)
}

func TestGlobalBanSweepSleepsOnFloodWaitAndContinues(t *testing.T) {
	t.Parallel()

	bot := &fakeConn{banFn: func(chat, _ int64) error {
		if chat == -1 {
			return &domain.FloodWaitError{Wait: 4 * time.Second}
		}
		return nil
	}}
	sleeper := &recordingSleeper{}
	registry := NewGlobalBanRegistry(&fakeBanStore{}, &fakeServedStore{chats: []int64{-1, -2}}, bot, sleeper, testLogger())

	report, err := registry.Ban(context.Background(), 777)
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{4 * time.Second}, sleeper.recorded())
	assert.Equal(t, 1, report.Swept)
}

func TestGlobalUnban(t *testing.T) {
	t.Parallel()

	store := &fakeBanStore{}
	registry := NewGlobalBanRegistry(store, &fakeServedStore{chats: []int64{-1}}, &fakeConn{}, &recordingSleeper{}, testLogger())

	_, err := registry.Ban(context.Background(), 777)
	require.NoError(t, err)
	require.True(t, registry.IsBanned(777))

	report, err := registry.Unban(context.Background(), 777)
	require.NoError(t, err)

	assert.False(t, registry.IsBanned(777))
	assert.Equal(t, 1, report.Swept)
	assert.Equal(t, []int64{777}, store.unpersisted)
}

func TestEnforceDeletesBannedSendersMessage(t *testing.T) {
	t.Parallel()

	bot := &fakeConn{}
	registry := NewGlobalBanRegistry(&fakeBanStore{}, &fakeServedStore{}, bot, &recordingSleeper{}, testLogger())
	_, err := registry.Ban(context.Background(), 777)
	require.NoError(t, err)

	ref := domain.MessageRef{Chat: -1, ID: 15}
	assert.True(t, registry.Enforce(context.Background(), 777, ref))
	assert.Equal(t, []domain.MessageRef{ref}, bot.deleted)

	assert.False(t, registry.Enforce(context.Background(), 888, ref))
}

func TestEnforceSwallowsRateLimitErrors(t *testing.T) {
	t.Parallel()

	bot := &fakeConn{deleteErr: &domain.FloodWaitError{Wait: time.Minute}}
	registry := NewGlobalBanRegistry(&fakeBanStore{}, &fakeServedStore{}, bot, &recordingSleeper{}, testLogger())
	_, err := registry.Ban(context.Background(), 777)
	require.NoError(t, err)

	// The hook must never block message processing; the message is simply
	// left undeleted.
	assert.True(t, registry.Enforce(context.Background(), 777, domain.MessageRef{Chat: -1, ID: 15}))
	assert.Empty(t, bot.deleted)
}
