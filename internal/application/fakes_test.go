package application

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/billaspace/anonxmusic/internal/domain"
	"github.com/billaspace/anonxmusic/internal/ports"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type recordingSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) {
	s.mu.Lock()
	s.sleeps = append(s.sleeps, d)
	s.mu.Unlock()
}

func (s *recordingSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.sleeps...)
}

type fakeTransport struct {
	mu        sync.Mutex
	attempts  map[domain.SlotIndex]int
	connectFn func(cred domain.SessionCredential, attempt int) (ports.Conn, error)
}

func (t *fakeTransport) Connect(_ context.Context, cred domain.SessionCredential) (ports.Conn, error) {
	t.mu.Lock()
	if t.attempts == nil {
		t.attempts = make(map[domain.SlotIndex]int)
	}
	t.attempts[cred.Slot]++
	attempt := t.attempts[cred.Slot]
	t.mu.Unlock()

	if t.connectFn == nil {
		return &fakeConn{identity: domain.Identity{ID: int64(1000 + cred.Slot), Name: "Assistant", Username: "assistant"}}, nil
	}
	return t.connectFn(cred, attempt)
}

func (t *fakeTransport) attemptCount(slot domain.SlotIndex) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts[slot]
}

// fakeConn defaults every operation to success; individual behaviors are
// overridden per test through the function fields.
type fakeConn struct {
	mu          sync.Mutex
	sent        []int64
	forwarded   []int64
	pinned      []domain.MessageRef
	deleted     []domain.MessageRef
	joined      []string
	disconnects int

	identity domain.Identity

	sendFn        func(chat int64, text string) (domain.MessageRef, error)
	forwardFn     func(to int64, ref domain.ForwardRef) (domain.MessageRef, error)
	joinFn        func(venue string) error
	identityFn    func() (domain.Identity, error)
	pinErr        error
	deleteErr     error
	banFn         func(chat, user int64) error
	unbanFn       func(chat, user int64) error
	historyFn     func(chat, user int64) error
	dialogList    []domain.Dialog
	dialogsErr    error
	adminsFn      func(chat int64) ([]int64, error)
	disconnectErr error
}

func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	c.disconnects++
	c.mu.Unlock()
	return c.disconnectErr
}

func (c *fakeConn) SendMessage(_ context.Context, chat int64, text string) (domain.MessageRef, error) {
	if c.sendFn != nil {
		ref, err := c.sendFn(chat, text)
		if err != nil {
			return ref, err
		}
		c.mu.Lock()
		c.sent = append(c.sent, chat)
		c.mu.Unlock()
		return ref, nil
	}

	c.mu.Lock()
	c.sent = append(c.sent, chat)
	c.mu.Unlock()
	return domain.MessageRef{Chat: chat, ID: int32(len(c.sent))}, nil
}

func (c *fakeConn) ForwardMessage(_ context.Context, to int64, ref domain.ForwardRef) (domain.MessageRef, error) {
	if c.forwardFn != nil {
		return c.forwardFn(to, ref)
	}

	c.mu.Lock()
	c.forwarded = append(c.forwarded, to)
	c.mu.Unlock()
	return domain.MessageRef{Chat: to, ID: ref.MessageID}, nil
}

func (c *fakeConn) Pin(_ context.Context, ref domain.MessageRef, _ bool) error {
	if c.pinErr != nil {
		return c.pinErr
	}
	c.mu.Lock()
	c.pinned = append(c.pinned, ref)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) DeleteMessage(_ context.Context, ref domain.MessageRef) error {
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.mu.Lock()
	c.deleted = append(c.deleted, ref)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) JoinVenue(_ context.Context, venue string) error {
	if c.joinFn != nil {
		return c.joinFn(venue)
	}
	c.mu.Lock()
	c.joined = append(c.joined, venue)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) SelfIdentity(context.Context) (domain.Identity, error) {
	if c.identityFn != nil {
		return c.identityFn()
	}
	return c.identity, nil
}

func (c *fakeConn) Dialogs(context.Context) ([]domain.Dialog, error) {
	if c.dialogsErr != nil {
		return nil, c.dialogsErr
	}
	return append([]domain.Dialog(nil), c.dialogList...), nil
}

func (c *fakeConn) BanMember(_ context.Context, chat, user int64) error {
	if c.banFn != nil {
		return c.banFn(chat, user)
	}
	return nil
}

func (c *fakeConn) UnbanMember(_ context.Context, chat, user int64) error {
	if c.unbanFn != nil {
		return c.unbanFn(chat, user)
	}
	return nil
}

func (c *fakeConn) DeleteMemberHistory(_ context.Context, chat, user int64) error {
	if c.historyFn != nil {
		return c.historyFn(chat, user)
	}
	return nil
}

func (c *fakeConn) VideoChatAdmins(_ context.Context, chat int64) ([]int64, error) {
	if c.adminsFn != nil {
		return c.adminsFn(chat)
	}
	return nil, nil
}

func (c *fakeConn) sentTo() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.sent...)
}

func (c *fakeConn) pinnedRefs() []domain.MessageRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.MessageRef(nil), c.pinned...)
}

type fakeBanStore struct {
	mu        sync.Mutex
	global    []int64
	local     []int64
	globalErr error
	localErr  error

	persisted   []int64
	unpersisted []int64
	persistErr  error
}

func (s *fakeBanStore) LoadGlobalBans(context.Context) ([]int64, error) {
	if s.globalErr != nil {
		return nil, s.globalErr
	}
	return s.global, nil
}

func (s *fakeBanStore) LoadLocalBans(context.Context) ([]int64, error) {
	if s.localErr != nil {
		return nil, s.localErr
	}
	return s.local, nil
}

func (s *fakeBanStore) PersistBan(_ context.Context, userID int64) error {
	if s.persistErr != nil {
		return s.persistErr
	}
	s.mu.Lock()
	s.persisted = append(s.persisted, userID)
	s.mu.Unlock()
	return nil
}

func (s *fakeBanStore) PersistUnban(_ context.Context, userID int64) error {
	if s.persistErr != nil {
		return s.persistErr
	}
	s.mu.Lock()
	s.unpersisted = append(s.unpersisted, userID)
	s.mu.Unlock()
	return nil
}

type fakeServedStore struct {
	chats    []int64
	users    []int64
	chatsErr error
	usersErr error
}

func (s *fakeServedStore) ServedChats(context.Context) ([]int64, error) {
	if s.chatsErr != nil {
		return nil, s.chatsErr
	}
	return s.chats, nil
}

func (s *fakeServedStore) ServedUsers(context.Context) ([]int64, error) {
	if s.usersErr != nil {
		return nil, s.usersErr
	}
	return s.users, nil
}

func (s *fakeServedStore) AddServedChat(_ context.Context, chatID int64) error {
	s.chats = append(s.chats, chatID)
	return nil
}

func (s *fakeServedStore) AddServedUser(_ context.Context, userID int64) error {
	s.users = append(s.users, userID)
	return nil
}
