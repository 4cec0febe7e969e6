package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/billaspace/anonxmusic/internal/domain"
	"github.com/billaspace/anonxmusic/internal/ports"
)

const DefaultStartAttempts = 3

// SessionConfig carries the per-slot wiring for one assistant session.
type SessionConfig struct {
	Credential    domain.SessionCredential
	Transport     ports.Transport
	Sleeper       ports.Sleeper
	Logger        *logrus.Logger
	LogChat       int64
	SupportVenues []string
	StartAttempts int
}

// AssistantSession manages the lifecycle of one authenticated secondary
// account. A session that fails to start stays failed for the process
// lifetime; there is no reconnect loop.
type AssistantSession struct {
	slot          domain.SlotIndex
	credential    domain.SessionCredential
	transport     ports.Transport
	sleeper       ports.Sleeper
	log           *logrus.Entry
	logChat       int64
	supportVenues []string
	startAttempts int

	mu       sync.Mutex
	state    domain.ConnectionState
	conn     ports.Conn
	identity domain.Identity
}

func NewAssistantSession(cfg SessionConfig) *AssistantSession {
	if cfg.Sleeper == nil {
		cfg.Sleeper = ports.SystemSleeper{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.StartAttempts <= 0 {
		cfg.StartAttempts = DefaultStartAttempts
	}

	return &AssistantSession{
		slot:          cfg.Credential.Slot,
		credential:    cfg.Credential,
		transport:     cfg.Transport,
		sleeper:       cfg.Sleeper,
		log:           cfg.Logger.WithField("slot", cfg.Credential.Slot),
		logChat:       cfg.LogChat,
		supportVenues: cfg.SupportVenues,
		startAttempts: cfg.StartAttempts,
	}
}

func (s *AssistantSession) Slot() domain.SlotIndex { return s.slot }

func (s *AssistantSession) State() domain.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == "" {
		return domain.StateUnstarted
	}
	return s.state
}

// Identity returns the resolved account identity. It is zero unless the
// session is Live.
func (s *AssistantSession) Identity() domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Start connects the credential, joins the support venues best-effort, probes
// operating privileges by announcing at the log destination, and resolves the
// account's own identity. Any failure is terminal for this slot.
func (s *AssistantSession) Start(ctx context.Context) error {
	s.setState(domain.StateStarting)

	conn, err := s.connect(ctx)
	if err != nil {
		if isUnauthorized(err) {
			s.fail(domain.StateFailedAuth)
		} else {
			s.fail(domain.StateFailedUnreachable)
		}
		return fmt.Errorf("connect slot %d: %w", s.slot, err)
	}

	// Joining the support venues is cosmetic and never blocks startup.
	for _, venue := range s.supportVenues {
		if err := conn.JoinVenue(ctx, venue); err != nil {
			s.log.WithError(err).WithField("venue", venue).Warn("could not join support venue")
		}
	}

	// Delivery to the log destination is the liveness probe: a session that
	// cannot post there lacks real operating privileges and is not usable.
	announcement := fmt.Sprintf("Assistant %d started.", s.slot)
	if _, err := conn.SendMessage(ctx, s.logChat, announcement); err != nil {
		s.log.WithError(err).Error("log destination unreachable, add the assistant and promote it")
		s.disconnect(conn)
		s.fail(domain.StateFailedAuth)
		return fmt.Errorf("privilege probe for slot %d: %w", s.slot, err)
	}

	identity, err := conn.SelfIdentity(ctx)
	if err != nil {
		if wait, ok := domain.FloodWait(err); ok {
			s.log.WithField("wait", wait).Warn("flood wait during identity resolution")
			s.sleeper.Sleep(ctx, wait)
		}
		s.disconnect(conn)
		s.fail(domain.StateFailedUnreachable)
		return fmt.Errorf("resolve identity for slot %d: %w", s.slot, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.identity = identity
	s.state = domain.StateLive
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"id": identity.ID, "username": identity.Username}).Info("assistant started")
	return nil
}

// connect retries only on rate-limit signals, sleeping exactly the indicated
// wait each time; any other error aborts immediately.
func (s *AssistantSession) connect(ctx context.Context) (ports.Conn, error) {
	for attempt := 1; attempt <= s.startAttempts; attempt++ {
		conn, err := s.transport.Connect(ctx, s.credential)
		if err == nil {
			return conn, nil
		}

		wait, ok := domain.FloodWait(err)
		if !ok {
			return nil, err
		}

		s.log.WithFields(logrus.Fields{"wait": wait, "attempt": attempt}).Warn("flood wait while starting assistant")
		s.sleeper.Sleep(ctx, wait)
	}

	return nil, fmt.Errorf("flood wait persisted after %d attempts", s.startAttempts)
}

// Stop disconnects best-effort. The state always ends Stopped, because the
// slot is being torn down either way.
func (s *AssistantSession) Stop(ctx context.Context) {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.identity = domain.Identity{}
	s.state = domain.StateStopped
	s.mu.Unlock()

	if conn != nil {
		s.disconnect(conn)
	}
}

// Send is a thin pass-through for the broadcast and moderation collaborators.
// Rate limits surface through the returned error; this method never waits.
func (s *AssistantSession) Send(ctx context.Context, chat int64, text string) (domain.MessageRef, error) {
	conn, err := s.liveConn()
	if err != nil {
		return domain.MessageRef{}, err
	}
	return conn.SendMessage(ctx, chat, text)
}

func (s *AssistantSession) Forward(ctx context.Context, to int64, ref domain.ForwardRef) (domain.MessageRef, error) {
	conn, err := s.liveConn()
	if err != nil {
		return domain.MessageRef{}, err
	}
	return conn.ForwardMessage(ctx, to, ref)
}

// Dialogs snapshots the account's visible dialog list.
func (s *AssistantSession) Dialogs(ctx context.Context) ([]domain.Dialog, error) {
	conn, err := s.liveConn()
	if err != nil {
		return nil, err
	}
	return conn.Dialogs(ctx)
}

func (s *AssistantSession) liveConn() (ports.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateLive || s.conn == nil {
		return nil, domain.ErrSessionNotLive
	}
	return s.conn, nil
}

func (s *AssistantSession) setState(state domain.ConnectionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *AssistantSession) fail(state domain.ConnectionState) {
	s.mu.Lock()
	s.identity = domain.Identity{}
	s.state = state
	s.mu.Unlock()
}

func (s *AssistantSession) disconnect(conn ports.Conn) {
	if err := conn.Disconnect(); err != nil {
		s.log.WithError(err).Warn("disconnect failed")
	}
}

func isUnauthorized(err error) bool {
	return errors.Is(err, domain.ErrUnauthorized)
}
