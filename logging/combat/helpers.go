package combat

import (
	"context"

	"fightarena/server/logging"
)

const (
	// EventProjectileFired is emitted when a projectile leaves the muzzle.
	EventProjectileFired logging.EventType = "combat.projectile_fired"
	// EventProjectileHit is emitted on the single confirmed hit of a projectile.
	EventProjectileHit logging.EventType = "combat.projectile_hit"
	// EventProjectileMiss is emitted when a projectile lands without a hit.
	EventProjectileMiss logging.EventType = "combat.projectile_miss"
	// EventDamage is emitted when damage is applied to a target.
	EventDamage logging.EventType = "combat.damage"
	// EventDefeat is emitted once when a player's health reaches zero.
	EventDefeat logging.EventType = "combat.defeat"
	// EventShieldDown is emitted when a shield despawns.
	EventShieldDown logging.EventType = "combat.shield_down"
	// EventAuraOrphaned is emitted when a pull-aura never resolves its owner.
	EventAuraOrphaned logging.EventType = "combat.aura_orphaned"
	// EventAuraTargetSkipped is emitted when a collectable lacks a rigid body.
	EventAuraTargetSkipped logging.EventType = "combat.aura_target_skipped"
)

// ProjectilePayload describes a projectile's flight.
type ProjectilePayload struct {
	Origin   [3]float64 `json:"origin"`
	Target   [3]float64 `json:"target"`
	Distance float64    `json:"distance"`
	Clamped  bool       `json:"clamped,omitempty"`
}

// HitPayload describes a confirmed projectile hit.
type HitPayload struct {
	Point   [3]float64 `json:"point"`
	Damage  float64    `json:"damage"`
	Damaged bool       `json:"damaged"`
}

// DamagePayload captures the amount dealt to a single target.
type DamagePayload struct {
	Source       string  `json:"source,omitempty"`
	Amount       float64 `json:"amount"`
	TargetHealth float64 `json:"targetHealth"`
}

// ShieldDownPayload explains why a shield despawned.
type ShieldDownPayload struct {
	Reason string  `json:"reason"`
	Health float64 `json:"health"`
}

// AuraPayload describes a pull-aura binding problem.
type AuraPayload struct {
	Owner  string `json:"owner"`
	Reason string `json:"reason"`
	Waited string `json:"waited,omitempty"`
}

func event(eventType logging.EventType, severity logging.Severity, tick uint64, actor logging.EntityRef, targets []logging.EntityRef, payload any) logging.Event {
	return logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Targets:  targets,
		Severity: severity,
		Category: logging.CategoryCombat,
		Payload:  payload,
	}
}

// ProjectileFired publishes a projectile launch.
func ProjectileFired(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, projectile logging.EntityRef, payload ProjectilePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, event(EventProjectileFired, logging.SeverityDebug, tick, actor, []logging.EntityRef{projectile}, payload))
}

// ProjectileHit publishes a confirmed hit.
func ProjectileHit(ctx context.Context, pub logging.Publisher, tick uint64, projectile logging.EntityRef, target logging.EntityRef, payload HitPayload) {
	if pub == nil {
		return
	}
	var targets []logging.EntityRef
	if target.ID != "" || target.Kind != "" {
		targets = []logging.EntityRef{target}
	}
	pub.Publish(ctx, event(EventProjectileHit, logging.SeverityInfo, tick, projectile, targets, payload))
}

// ProjectileMiss publishes a projectile that completed its path.
func ProjectileMiss(ctx context.Context, pub logging.Publisher, tick uint64, projectile logging.EntityRef, payload ProjectilePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, event(EventProjectileMiss, logging.SeverityDebug, tick, projectile, nil, payload))
}

// Damage publishes a combat damage event for a single target.
func Damage(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload DamagePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, event(EventDamage, logging.SeverityInfo, tick, actor, []logging.EntityRef{target}, payload))
}

// Defeat publishes a combat defeat event for the eliminated actor.
func Defeat(ctx context.Context, pub logging.Publisher, tick uint64, target logging.EntityRef, payload DamagePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, event(EventDefeat, logging.SeverityInfo, tick, target, nil, payload))
}

// ShieldDown publishes a shield despawn.
func ShieldDown(ctx context.Context, pub logging.Publisher, tick uint64, shield logging.EntityRef, payload ShieldDownPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, event(EventShieldDown, logging.SeverityDebug, tick, shield, nil, payload))
}

// AuraOrphaned publishes a pull-aura that gave up waiting for its owner.
func AuraOrphaned(ctx context.Context, pub logging.Publisher, tick uint64, aura logging.EntityRef, payload AuraPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, event(EventAuraOrphaned, logging.SeverityError, tick, aura, nil, payload))
}

// AuraTargetSkipped publishes an ineligible pull target.
func AuraTargetSkipped(ctx context.Context, pub logging.Publisher, tick uint64, aura logging.EntityRef, target logging.EntityRef, payload AuraPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, event(EventAuraTargetSkipped, logging.SeverityWarn, tick, aura, []logging.EntityRef{target}, payload))
}
