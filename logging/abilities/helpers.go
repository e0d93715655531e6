package abilities

import (
	"context"

	"fightarena/server/logging"
)

const (
	// EventActivated is emitted when an ability passes its gates and fires.
	EventActivated logging.EventType = "abilities.activated"
	// EventRejected is emitted when an activation is refused.
	EventRejected logging.EventType = "abilities.rejected"
	// EventReady is emitted when a cooldown completes.
	EventReady logging.EventType = "abilities.ready"
)

// ActivatedPayload describes an accepted activation.
type ActivatedPayload struct {
	Ability        string  `json:"ability"`
	CooldownSecond float64 `json:"cooldownSeconds"`
	ChargeConsumed bool    `json:"chargeConsumed,omitempty"`
	Entity         string  `json:"entity,omitempty"`
}

// RejectedPayload describes a refused activation.
type RejectedPayload struct {
	Ability  string  `json:"ability"`
	Reason   string  `json:"reason"`
	Progress float64 `json:"progress,omitempty"`
}

// ReadyPayload describes a finished cooldown.
type ReadyPayload struct {
	Ability string `json:"ability"`
}

// Activated publishes an accepted activation.
func Activated(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ActivatedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventActivated,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}

// Rejected publishes a refused activation. Rejections are expected control
// flow and stay at debug.
func Rejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RejectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}

// Ready publishes the end of a cooldown.
func Ready(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ReadyPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventReady,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}
