package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/billaspace/anonxmusic/internal/domain"
	"github.com/billaspace/anonxmusic/internal/ports"
)

const DefaultInterSlotPause = 2 * time.Second

type PoolState string

const (
	PoolUninitialized PoolState = "uninitialized"
	PoolStarting      PoolState = "starting"
	PoolReady         PoolState = "ready"
	PoolStopping      PoolState = "stopping"
	PoolStopped       PoolState = "stopped"
)

// PoolConfig wires the assistant pool. Session-level settings are shared by
// every slot.
type PoolConfig struct {
	Credentials    domain.CredentialStore
	Transport      ports.Transport
	Sleeper        ports.Sleeper
	Logger         *logrus.Logger
	LogChat        int64
	SupportVenues  []string
	StartAttempts  int
	InterSlotPause time.Duration
}

// StartReport aggregates one StartAll pass. Every configured slot is
// attempted exactly once regardless of earlier outcomes.
type StartReport struct {
	Attempted int
	Live      []domain.SlotIndex
	Failed    map[domain.SlotIndex]string
}

// AssistantPool exclusively owns the configured assistant sessions and
// answers which assistants are usable right now.
type AssistantPool struct {
	sessions []*AssistantSession
	sleeper  ports.Sleeper
	log      *logrus.Logger
	pause    time.Duration

	mu       sync.Mutex
	state    PoolState
	idToSlot map[int64]domain.SlotIndex
}

func NewAssistantPool(cfg PoolConfig) *AssistantPool {
	if cfg.Sleeper == nil {
		cfg.Sleeper = ports.SystemSleeper{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.InterSlotPause <= 0 {
		cfg.InterSlotPause = DefaultInterSlotPause
	}

	pool := &AssistantPool{
		sleeper:  cfg.Sleeper,
		log:      cfg.Logger,
		pause:    cfg.InterSlotPause,
		state:    PoolUninitialized,
		idToSlot: make(map[int64]domain.SlotIndex),
	}

	for _, credential := range cfg.Credentials.Configured() {
		pool.sessions = append(pool.sessions, NewAssistantSession(SessionConfig{
			Credential:    credential,
			Transport:     cfg.Transport,
			Sleeper:       cfg.Sleeper,
			Logger:        cfg.Logger,
			LogChat:       cfg.LogChat,
			SupportVenues: cfg.SupportVenues,
			StartAttempts: cfg.StartAttempts,
		}))
	}

	return pool
}

func (p *AssistantPool) State() PoolState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// ConfiguredSlots returns every slot the pool owns, in ascending order.
func (p *AssistantPool) ConfiguredSlots() []domain.SlotIndex {
	slots := make([]domain.SlotIndex, 0, len(p.sessions))
	for _, session := range p.sessions {
		slots = append(slots, session.Slot())
	}
	return slots
}

// StartAll brings up every configured slot sequentially with a fixed pause
// between slots. One slot's failure never prevents the next slot from
// attempting startup. Ready does not imply every slot succeeded.
func (p *AssistantPool) StartAll(ctx context.Context) StartReport {
	p.setState(PoolStarting)
	p.log.Info("starting assistants")

	report := StartReport{Failed: make(map[domain.SlotIndex]string)}
	for i, session := range p.sessions {
		if i > 0 {
			p.sleeper.Sleep(ctx, p.pause)
		}

		report.Attempted++
		if err := session.Start(ctx); err != nil {
			report.Failed[session.Slot()] = err.Error()
			continue
		}

		report.Live = append(report.Live, session.Slot())
		p.register(session.Identity().ID, session.Slot())
	}

	p.setState(PoolReady)
	return report
}

// StopAll stops every session regardless of its current state. Individual
// stop failures are logged inside the sessions and never propagate.
func (p *AssistantPool) StopAll(ctx context.Context) {
	p.setState(PoolStopping)
	p.log.Info("stopping assistants")

	for _, session := range p.sessions {
		session.Stop(ctx)
	}

	p.setState(PoolStopped)
}

// LiveAssistants returns the slots currently Live, in ascending slot order.
// The list can shrink over time and must not be assumed stable.
func (p *AssistantPool) LiveAssistants() []domain.SlotIndex {
	var live []domain.SlotIndex
	for _, session := range p.sessions {
		if session.State() == domain.StateLive {
			live = append(live, session.Slot())
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i] < live[j] })
	return live
}

func (p *AssistantPool) BySlot(slot domain.SlotIndex) (*AssistantSession, error) {
	for _, session := range p.sessions {
		if session.Slot() == slot {
			return session, nil
		}
	}
	return nil, domain.ErrSlotNotConfigured
}

// ByNumericID resolves the session that authenticated as the given account
// id. It fails if the id was never live.
func (p *AssistantPool) ByNumericID(id int64) (*AssistantSession, error) {
	p.mu.Lock()
	slot, ok := p.idToSlot[id]
	p.mu.Unlock()
	if !ok {
		return nil, domain.ErrAssistantNotFound
	}
	return p.BySlot(slot)
}

// LiveIDs returns the numeric ids of sessions that are Live right now.
func (p *AssistantPool) LiveIDs() []int64 {
	var ids []int64
	for _, session := range p.sessions {
		if session.State() != domain.StateLive {
			continue
		}
		if identity := session.Identity(); !identity.IsZero() {
			ids = append(ids, identity.ID)
		}
	}
	return ids
}

func (p *AssistantPool) register(id int64, slot domain.SlotIndex) {
	p.mu.Lock()
	p.idToSlot[id] = slot
	p.mu.Unlock()
}

func (p *AssistantPool) setState(state PoolState) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}
