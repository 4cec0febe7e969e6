package domain

import "fmt"

type SlotIndex int

// MaxSlots is the number of configurable assistant slots.
const MaxSlots = 5

// SessionCredential binds one opaque session string to its slot. Credentials
// are read once from configuration at startup and never mutated.
type SessionCredential struct {
	Slot    SlotIndex
	Session string
}

// CredentialStore holds the configured session strings, indexed by slot.
// Absent slots are simply skipped.
type CredentialStore struct {
	slots [MaxSlots]string
}

// NewCredentialStore builds a store from up to MaxSlots session strings in
// slot order. Blank entries leave their slot unconfigured; surplus entries
// are rejected.
func NewCredentialStore(sessions ...string) (CredentialStore, error) {
	if len(sessions) > MaxSlots {
		return CredentialStore{}, fmt.Errorf("at most %d session slots are supported, got %d", MaxSlots, len(sessions))
	}

	var store CredentialStore
	copy(store.slots[:], sessions)
	return store, nil
}

func (s CredentialStore) IsConfigured(slot SlotIndex) bool {
	if slot < 1 || slot > MaxSlots {
		return false
	}
	return s.slots[slot-1] != ""
}

func (s CredentialStore) Get(slot SlotIndex) (SessionCredential, error) {
	if !s.IsConfigured(slot) {
		return SessionCredential{}, ErrSlotNotConfigured
	}
	return SessionCredential{Slot: slot, Session: s.slots[slot-1]}, nil
}

// Configured returns the populated slots in ascending slot order.
func (s CredentialStore) Configured() []SessionCredential {
	credentials := make([]SessionCredential, 0, MaxSlots)
	for i, session := range s.slots {
		if session == "" {
			continue
		}
		credentials = append(credentials, SessionCredential{Slot: SlotIndex(i + 1), Session: session})
	}
	return credentials
}
