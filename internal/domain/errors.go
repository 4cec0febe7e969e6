package domain

import "errors"

var (
	ErrSlotNotConfigured = errors.New("slot not configured")
	ErrAssistantNotFound = errors.New("assistant not found")
	ErrSessionNotLive    = errors.New("session is not live")
	ErrBroadcastBusy     = errors.New("a broadcast is already in flight")
	ErrUnauthorized      = errors.New("unauthorized")

	ErrTrackNotFound    = errors.New("track not found")
	ErrTrackUnsupported = errors.New("unsupported track source")
)
