package lifecycle

import (
	"context"

	"fightarena/server/logging"
)

const (
	// EventPlayerJoined is emitted when a player joins the world.
	EventPlayerJoined logging.EventType = "lifecycle.player_joined"
	// EventPlayerDisconnected is emitted when a player leaves the world.
	EventPlayerDisconnected logging.EventType = "lifecycle.player_disconnected"
	// EventPickupCollected is emitted when a player collects a pickup.
	EventPickupCollected logging.EventType = "lifecycle.pickup_collected"
	// EventPickupUnavailable is emitted when a pickup request names a stale handle.
	EventPickupUnavailable logging.EventType = "lifecycle.pickup_unavailable"
	// EventSpawnSkipped is emitted when the spawner cannot place an entity.
	EventSpawnSkipped logging.EventType = "lifecycle.spawn_skipped"
)

// PlayerJoinedPayload captures spawn metadata for a new player.
type PlayerJoinedPayload struct {
	SpawnX float64 `json:"spawnX"`
	SpawnY float64 `json:"spawnY"`
	SpawnZ float64 `json:"spawnZ"`
}

// PlayerDisconnectedPayload captures the reason a player left.
type PlayerDisconnectedPayload struct {
	Reason          string `json:"reason"`
	CancelledTimers int    `json:"cancelledTimers,omitempty"`
}

// PickupPayload describes a pickup interaction.
type PickupPayload struct {
	Handle         string `json:"handle"`
	Type           string `json:"type,omitempty"`
	InventoryCount uint32 `json:"inventoryCount,omitempty"`
}

// SpawnSkippedPayload explains a skipped spawn.
type SpawnSkippedPayload struct {
	Kind   string `json:"kind"`
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
		Category: "lifecycle",
		Payload:  payload,
	})
}

// PlayerJoined publishes a player join event.
func PlayerJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerJoinedPayload) {
	publish(ctx, pub, EventPlayerJoined, logging.SeverityInfo, tick, actor, payload)
}

// PlayerDisconnected publishes a player disconnect event.
func PlayerDisconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerDisconnectedPayload) {
	publish(ctx, pub, EventPlayerDisconnected, logging.SeverityInfo, tick, actor, payload)
}

// PickupCollected publishes a successful pickup.
func PickupCollected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PickupPayload) {
	publish(ctx, pub, EventPickupCollected, logging.SeverityInfo, tick, actor, payload)
}

// PickupUnavailable publishes a duplicate or stale pickup request.
func PickupUnavailable(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PickupPayload) {
	publish(ctx, pub, EventPickupUnavailable, logging.SeverityDebug, tick, actor, payload)
}

// SpawnSkipped publishes a spawn the spawner could not perform.
func SpawnSkipped(ctx context.Context, pub logging.Publisher, tick uint64, payload SpawnSkippedPayload) {
	publish(ctx, pub, EventSpawnSkipped, logging.SeverityWarn, tick, logging.EntityRef{Kind: logging.EntityKindWorld}, payload)
}
