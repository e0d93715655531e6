package network

import (
	"context"

	"fightarena/server/logging"
)

const (
	// EventSessionOpened is emitted when a websocket session attaches to a player.
	EventSessionOpened logging.EventType = "network.session_opened"
	// EventSessionClosed is emitted when a websocket session ends.
	EventSessionClosed logging.EventType = "network.session_closed"
	// EventCommandRejected is emitted when a client message cannot be staged.
	EventCommandRejected logging.EventType = "network.command_rejected"
)

// SessionPayload describes a session transition.
type SessionPayload struct {
	Codec  string `json:"codec,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// CommandRejectedPayload explains why a message was not staged.
type CommandRejectedPayload struct {
	MessageType string `json:"messageType,omitempty"`
	Reason      string `json:"reason"`
}

// SessionOpened publishes a session attach.
func SessionOpened(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SessionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionOpened,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// SessionClosed publishes a session detach.
func SessionClosed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SessionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionClosed,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// CommandRejected publishes a message that never reached the command queue.
func CommandRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CommandRejectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCommandRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}
