package domain

import "time"

type PinMode string

const (
	PinNone   PinMode = "none"
	PinSilent PinMode = "silent"
	PinLoud   PinMode = "loud"
)

// ForwardRef points at an existing message to forward instead of sending
// literal text.
type ForwardRef struct {
	FromChat  int64
	MessageID int32
}

// BroadcastPayload is either literal text or a forwarded-message reference.
// Forward takes precedence when set.
type BroadcastPayload struct {
	Text    string
	Forward *ForwardRef
}

// BroadcastAudience selects which destination classes the dispatcher fans
// out to when the job carries no explicit target list.
type BroadcastAudience struct {
	ServedChats bool
	ServedUsers bool
	Assistants  bool
}

// BroadcastJob is one fan-out delivery request. Targets, when non-empty, are
// an explicit destination list; otherwise the audience flags drive target
// resolution. The resolved list is a snapshot taken once at dispatch time.
type BroadcastJob struct {
	ID       string
	Payload  BroadcastPayload
	Targets  []int64
	Audience BroadcastAudience
	Pin      PinMode
}

// AssistantFanout is the per-assistant slice of a broadcast report.
type AssistantFanout struct {
	Attempted int
	Delivered int
}

// BroadcastReport aggregates the outcome of one job. Only the counts are
// authoritative; completion order across targets is unspecified.
type BroadcastReport struct {
	JobID     string
	Attempted int
	Delivered int
	Pinned    int
	Abandoned int
	Failures  map[int64]string
	Assistant map[SlotIndex]AssistantFanout
}

// Track is resolved track metadata plus a retrievable media locator.
type Track struct {
	ID       string
	Title    string
	Duration time.Duration
	MediaURL string
}
