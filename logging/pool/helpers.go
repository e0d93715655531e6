package pool

import (
	"context"

	"fightarena/server/logging"
)

const (
	// EventConfigured is emitted once per kind when the pool warms up.
	EventConfigured logging.EventType = "pool.configured"
	// EventAcquired is emitted when an idle slot becomes active.
	EventAcquired logging.EventType = "pool.acquired"
	// EventReleased is emitted when an active slot returns to the idle queue.
	EventReleased logging.EventType = "pool.released"
	// EventExhausted is emitted when an acquire finds no idle slot and cannot grow.
	EventExhausted logging.EventType = "pool.exhausted"
	// EventNotPooled is emitted when a release names an unknown or idle handle.
	EventNotPooled logging.EventType = "pool.not_pooled"
)

// ConfiguredPayload describes the warm-up of one kind.
type ConfiguredPayload struct {
	Kind        string `json:"kind"`
	InitialSize int    `json:"initialSize"`
	MaxSize     int    `json:"maxSize"`
	AutoExpand  bool   `json:"autoExpand"`
}

// SlotPayload describes a slot transition.
type SlotPayload struct {
	Kind   string `json:"kind"`
	Active int    `json:"active"`
	Idle   int    `json:"idle"`
	// Cancelled counts timers cancelled during release.
	Cancelled int `json:"cancelled,omitempty"`
}

// NotPooledPayload describes a rejected release.
type NotPooledPayload struct {
	Handle string `json:"handle"`
	Reason string `json:"reason"`
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, tick uint64, actor logging.EntityRef, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryPool,
		Payload:  payload,
	})
}

// Configured publishes a warm-up event.
func Configured(ctx context.Context, pub logging.Publisher, tick uint64, payload ConfiguredPayload) {
	publish(ctx, pub, EventConfigured, logging.SeverityInfo, tick, logging.EntityRef{Kind: logging.EntityKindPool, ID: payload.Kind}, payload)
}

// Acquired publishes a slot activation.
func Acquired(ctx context.Context, pub logging.Publisher, tick uint64, slot logging.EntityRef, payload SlotPayload) {
	publish(ctx, pub, EventAcquired, logging.SeverityDebug, tick, slot, payload)
}

// Released publishes a slot deactivation.
func Released(ctx context.Context, pub logging.Publisher, tick uint64, slot logging.EntityRef, payload SlotPayload) {
	publish(ctx, pub, EventReleased, logging.SeverityDebug, tick, slot, payload)
}

// Exhausted publishes a failed acquire.
func Exhausted(ctx context.Context, pub logging.Publisher, tick uint64, payload SlotPayload) {
	publish(ctx, pub, EventExhausted, logging.SeverityWarn, tick, logging.EntityRef{Kind: logging.EntityKindPool, ID: payload.Kind}, payload)
}

// NotPooled publishes a rejected release.
func NotPooled(ctx context.Context, pub logging.Publisher, tick uint64, payload NotPooledPayload) {
	publish(ctx, pub, EventNotPooled, logging.SeverityWarn, tick, logging.EntityRef{Kind: logging.EntityKindPool, ID: payload.Handle}, payload)
}
