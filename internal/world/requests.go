package world

import (
	"context"
	"fmt"

	"fightarena/server/internal/combat"
	"fightarena/server/internal/cooldown"
	"fightarena/server/internal/items"
	"fightarena/server/internal/pool"
	"fightarena/server/internal/state"
	"fightarena/server/internal/vmath"
	abilitylog "fightarena/server/logging/abilities"
	"fightarena/server/logging/lifecycle"
	"fightarena/server/logging/network"
)

// RequestFire launches a projectile from the player's muzzle toward
// targetHint. originHint is only compared against the authoritative muzzle;
// a hint beyond the spoof tolerance is reported and otherwise ignored. Shots
// are gated by the fire-rate cooldown.
func (p *Player) RequestFire(sender string, originHint, targetHint vmath.Vec3) (pool.Handle, error) {
	const op = "player.request_fire"
	if err := p.world.gate.CheckSender(op, sender, p.key); err != nil {
		return 0, err
	}
	if !p.alive.Get() {
		return 0, ErrPlayerDead
	}
	if !targetHint.IsFinite() {
		return 0, ErrInvalidTarget
	}
	origin := p.Muzzle()
	if originHint.IsFinite() && originHint.Distance(origin) > p.world.cfg.Player.SpoofTolerance {
		network.CommandRejected(context.Background(), p.world.publisher(), p.world.Tick(), p.Ref(), network.CommandRejectedPayload{
			MessageType: "fire",
			Reason:      fmt.Sprintf("origin hint %.2f from muzzle", originHint.Distance(origin)),
		})
	}
	if !p.world.cooldowns.Ready(p.key, state.AbilityFire) {
		return 0, ErrNotReady
	}

	aim := targetHint.Sub(origin)
	facing := vmath.LookRotation(aim)
	handle, err := p.world.pool.Acquire(pool.KindProjectile, pool.Transform{Position: origin, Rotation: facing})
	if err != nil {
		return 0, fmt.Errorf("fire: %w", err)
	}
	if err := p.world.cooldowns.Trigger(p.key, state.AbilityFire); err != nil {
		_ = p.world.pool.Release(handle)
		return 0, err
	}
	p.facing = facing

	behavior, _ := p.world.pool.Behavior(handle)
	projectile, ok := behavior.(*combat.Projectile)
	if !ok {
		_ = p.world.pool.Release(handle)
		return 0, fmt.Errorf("fire: slot %s is not a projectile", handle)
	}
	ignore := []string{p.key}
	if s, ok := p.ActiveShield(); ok {
		ignore = append(ignore, s.Handle().String())
	}
	cfg := p.world.cfg.Projectile
	projectile.Initialize(origin, targetHint, cfg.Damage, cfg.Range, ignore...)
	return handle, nil
}

// RequestActivateAbility spawns the ability's entity bound to the player. The
// ability must be Ready and its charge collected; activation starts the
// cooldown and consumes the charge. Activation while cooling is ignored and
// reported as ErrNotReady.
func (p *Player) RequestActivateAbility(sender string, ability state.AbilityID) (pool.Handle, error) {
	const op = "player.request_activate_ability"
	if err := p.world.gate.CheckSender(op, sender, p.key); err != nil {
		return 0, err
	}
	if !p.alive.Get() {
		return 0, ErrPlayerDead
	}

	var (
		kind   pool.EntityKind
		charge = p.shieldCharge
	)
	switch ability {
	case state.AbilityShield:
		kind = pool.KindShield
	case state.AbilityPullAura:
		kind = pool.KindPullAura
		charge = p.pullCharge
	default:
		return 0, cooldown.ErrUnknownAbility
	}

	st, ok := p.world.cooldowns.State(p.key, ability)
	if !ok {
		return 0, cooldown.ErrUnknownAbility
	}
	if !st.Available {
		p.reject(ability, "cooling")
		return 0, ErrNotReady
	}
	if !charge.Get() {
		p.reject(ability, "no_charge")
		return 0, ErrNoCharge
	}

	handle, err := p.world.pool.Acquire(kind, pool.Transform{Position: p.position, Rotation: vmath.Identity})
	if err != nil {
		p.reject(ability, "pool_exhausted")
		return 0, fmt.Errorf("activate %s: %w", ability, err)
	}
	if err := p.world.cooldowns.Trigger(p.key, ability); err != nil {
		_ = p.world.pool.Release(handle)
		return 0, err
	}
	if err := charge.Set(false); err != nil {
		return 0, err
	}

	behavior, _ := p.world.pool.Behavior(handle)
	switch entity := behavior.(type) {
	case *combat.Shield:
		entity.Bind(p.id)
		p.shieldRef = entity
	case *combat.PullAura:
		entity.Bind(p.id)
	}

	abilitylog.Activated(context.Background(), p.world.publisher(), p.world.Tick(), p.Ref(), abilitylog.ActivatedPayload{
		Ability:        string(ability),
		CooldownSecond: st.Total.Seconds(),
		ChargeConsumed: true,
		Entity:         handle.String(),
	})
	return handle, nil
}

// RequestPickup collects the pickup in handle. A handle that is no longer an
// active pickup, including one this player already collected, is a logged
// no-op reported as ErrPickupUnavailable.
func (p *Player) RequestPickup(sender string, handle pool.Handle) error {
	const op = "player.request_pickup"
	if err := p.world.gate.CheckSender(op, sender, p.key); err != nil {
		return err
	}
	if !p.alive.Get() {
		return ErrPlayerDead
	}

	pickup, ok := p.world.activePickup(handle)
	if !ok {
		p.pickupUnavailable(handle)
		return ErrPickupUnavailable
	}
	kind := pickup.CollectableType()
	if !pickup.Collect() {
		p.pickupUnavailable(handle)
		return ErrPickupUnavailable
	}

	switch kind {
	case state.CollectableShieldCharge:
		_ = p.shieldCharge.Set(true)
	case state.CollectablePullCharge:
		_ = p.pullCharge.Set(true)
	default:
		_ = p.inventory.Set(p.inventory.Get() + 1)
	}
	lifecycle.PickupCollected(context.Background(), p.world.publisher(), p.world.Tick(), p.Ref(), lifecycle.PickupPayload{
		Handle:         handle.String(),
		Type:           string(kind),
		InventoryCount: p.inventory.Get(),
	})
	return nil
}

// RequestMove sets the point the player walks toward.
func (p *Player) RequestMove(sender string, target vmath.Vec3) error {
	if err := p.world.gate.CheckSender("player.request_move", sender, p.key); err != nil {
		return err
	}
	if !p.alive.Get() {
		return ErrPlayerDead
	}
	if !target.IsFinite() {
		return ErrInvalidTarget
	}
	target.Y = p.position.Y
	p.target = target
	p.moving = true
	return nil
}

func (p *Player) reject(ability state.AbilityID, reason string) {
	abilitylog.Rejected(context.Background(), p.world.publisher(), p.world.Tick(), p.Ref(), abilitylog.RejectedPayload{
		Ability:  string(ability),
		Reason:   reason,
		Progress: p.world.cooldowns.Progress(p.key, ability),
	})
}

func (p *Player) pickupUnavailable(handle pool.Handle) {
	lifecycle.PickupUnavailable(context.Background(), p.world.publisher(), p.world.Tick(), p.Ref(), lifecycle.PickupPayload{
		Handle: handle.String(),
	})
}

// activePickup resolves handle to a live pickup.
func (w *World) activePickup(handle pool.Handle) (*items.Pickup, bool) {
	kind, ok := w.pool.KindOf(handle)
	if !ok || kind != pool.KindPickup || !w.pool.IsActive(handle) {
		return nil, false
	}
	behavior, ok := w.pool.Behavior(handle)
	if !ok {
		return nil, false
	}
	pickup, ok := behavior.(*items.Pickup)
	return pickup, ok && pickup.Active()
}
