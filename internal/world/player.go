package world

import (
	"context"
	"time"

	"fightarena/server/internal/combat"
	"fightarena/server/internal/physics"
	"fightarena/server/internal/replication"
	"fightarena/server/internal/state"
	"fightarena/server/internal/vmath"
	"fightarena/server/logging"
	combatlog "fightarena/server/logging/combat"
)

// Player is the authoritative agent behind one connected client. Its
// replicated fields are written only here; observers read them through a
// replication.Mirror. Every method runs on the simulation timeline, under the
// world's lock.
type Player struct {
	world *World
	id    state.PlayerID
	key   string

	position vmath.Vec3
	facing   vmath.Quat
	target   vmath.Vec3
	moving   bool
	body     *physics.Body
	accepts  map[state.CollectableType]bool

	// shieldRef is the shield currently protecting the player, if any. The
	// slot may since have been recycled, so it is checked on every use.
	shieldRef *combat.Shield
	defeated  bool

	lastHeartbeat time.Time
	rtt           time.Duration

	pos          *replication.Field[vmath.Vec3]
	health       *replication.Field[float64]
	alive        *replication.Field[bool]
	inventory    *replication.Field[uint32]
	shieldCharge *replication.Field[bool]
	pullCharge   *replication.Field[bool]
	ready        map[state.AbilityID]*replication.Field[bool]
}

func newPlayer(w *World, id state.PlayerID, spawn vmath.Vec3) *Player {
	key := id.String()
	sink := w.journal
	gate := w.gate
	charges := w.cfg.Player.StartWithCharges
	p := &Player{
		world:        w,
		id:           id,
		key:          key,
		position:     spawn,
		facing:       vmath.Identity,
		accepts:      make(map[state.CollectableType]bool),
		pos:          replication.NewField(key, "position", spawn, sink, gate),
		health:       replication.NewField(key, "health", state.MaxHealth, sink, gate),
		alive:        replication.NewField(key, "alive", true, sink, gate),
		inventory:    replication.NewField(key, "inventoryCount", uint32(0), sink, gate),
		shieldCharge: replication.NewField(key, "hasShieldCharge", charges, sink, gate),
		pullCharge:   replication.NewField(key, "hasPullCharge", charges, sink, gate),
		ready:        make(map[state.AbilityID]*replication.Field[bool]),
	}
	for _, t := range w.cfg.Player.CollectableTypes {
		p.accepts[t] = true
	}
	for _, ability := range []state.AbilityID{state.AbilityShield, state.AbilityPullAura} {
		p.ready[ability] = replication.NewField(key, "ready."+string(ability), true, sink, gate)
	}
	p.body = &physics.Body{ID: key, Center: spawn, Size: w.cfg.Player.Radius, Damage: p}
	return p
}

// publishInitial records every field so the join reaches observers with a
// complete state.
func (p *Player) publishInitial() {
	_ = p.pos.Reset(p.position)
	_ = p.health.Reset(p.health.Get())
	_ = p.alive.Reset(p.alive.Get())
	_ = p.inventory.Reset(p.inventory.Get())
	_ = p.shieldCharge.Reset(p.shieldCharge.Get())
	_ = p.pullCharge.Reset(p.pullCharge.Get())
	for _, field := range p.ready {
		_ = field.Reset(field.Get())
	}
}

// PlayerID satisfies combat.Owner.
func (p *Player) PlayerID() state.PlayerID { return p.id }

// Position satisfies combat.Owner and is the authoritative transform.
func (p *Player) Position() vmath.Vec3 { return p.position }

// Facing returns the direction of the last shot.
func (p *Player) Facing() vmath.Quat { return p.facing }

// Accepts satisfies combat.Owner.
func (p *Player) Accepts(t state.CollectableType) bool { return p.accepts[t] }

// Muzzle is the authoritative origin of the player's shots.
func (p *Player) Muzzle() vmath.Vec3 {
	return p.position.Add(vmath.V(0, p.world.cfg.Player.MuzzleHeight, 0))
}

// Stats returns the replicated statistics.
func (p *Player) Stats() state.PlayerStats {
	return state.PlayerStats{
		Health:          p.health.Get(),
		Alive:           p.alive.Get(),
		InventoryCount:  p.inventory.Get(),
		HasShieldCharge: p.shieldCharge.Get(),
		HasPullCharge:   p.pullCharge.Get(),
	}
}

// LastHeartbeat reports connectivity metadata.
func (p *Player) LastHeartbeat() (time.Time, time.Duration) {
	return p.lastHeartbeat, p.rtt
}

// ActiveShield returns the shield protecting the player.
func (p *Player) ActiveShield() (*combat.Shield, bool) {
	s := p.shieldRef
	if s == nil || !s.Active() || s.Owner() != p.id {
		p.shieldRef = nil
		return nil, false
	}
	return s, true
}

// TakeDamage satisfies physics.Damageable. An active shield absorbs the hit.
func (p *Player) TakeDamage(amount float64) error {
	if s, ok := p.ActiveShield(); ok {
		return s.TakeDamage(amount)
	}
	return p.ApplyDamage(amount)
}

// ApplyDamage lowers health, clamped to [0, MaxHealth]. The death transition
// runs once, on the hit that reaches zero; later damage is ignored.
func (p *Player) ApplyDamage(amount float64) error {
	if err := p.world.gate.Check("player.apply_damage"); err != nil {
		return err
	}
	if p.defeated || !p.alive.Get() {
		return nil
	}
	remaining := vmath.Clamp(p.health.Get()-amount, 0, state.MaxHealth)
	if err := p.health.Set(remaining); err != nil {
		return err
	}
	ctx := context.Background()
	pub := p.world.publisher()
	combatlog.Damage(ctx, pub, p.world.Tick(), p.Ref(), p.Ref(), combatlog.DamagePayload{
		Source:       "player",
		Amount:       amount,
		TargetHealth: remaining,
	})
	if remaining > 0 {
		return nil
	}
	p.defeated = true
	if err := p.alive.Set(false); err != nil {
		return err
	}
	p.moving = false
	combatlog.Defeat(ctx, pub, p.world.Tick(), p.Ref(), combatlog.DamagePayload{Amount: amount})
	p.world.journal.Notify(replication.Notification{Type: replication.NotifyDefeat, Entity: p.key})
	return nil
}

// step walks toward the last move target.
func (p *Player) step(dt time.Duration) {
	if !p.moving || !p.alive.Get() {
		return
	}
	delta := p.target.Sub(p.position)
	dist := delta.Len()
	reach := p.world.cfg.Player.MoveSpeed * dt.Seconds()
	if dist <= reach || dist < vmath.Epsilon {
		p.moveTo(p.target)
		p.moving = false
		return
	}
	p.moveTo(p.position.Add(delta.Scale(reach / dist)))
}

func (p *Player) moveTo(position vmath.Vec3) {
	p.position = position
	p.body.Center = position
	p.world.space.Move(p.key, position)
	_ = p.pos.Set(position)
}

func (p *Player) setReady(ability state.AbilityID, ready bool) {
	if field, ok := p.ready[ability]; ok {
		_ = field.Set(ready)
	}
}

// Ref is the log reference for the player.
func (p *Player) Ref() logging.EntityRef {
	return logging.EntityRef{ID: p.key, Kind: logging.EntityKindPlayer}
}
