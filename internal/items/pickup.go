package items

import (
	"time"

	"fightarena/server/internal/authority"
	"fightarena/server/internal/combat"
	"fightarena/server/internal/physics"
	"fightarena/server/internal/pool"
	"fightarena/server/internal/replication"
	"fightarena/server/internal/state"
	"fightarena/server/internal/vmath"
	"fightarena/server/logging"
)

// PickupConfig tunes dropped collectables.
type PickupConfig struct {
	// GroundStay is how long a pickup rests on the ground before it is
	// returned to the pool.
	GroundStay time.Duration `json:"groundStay" yaml:"ground_stay" toml:"ground_stay"`
	Radius     float64       `json:"radius" yaml:"radius" toml:"radius"`
}

// DefaultPickupConfig returns the stock drop settings.
func DefaultPickupConfig() PickupConfig {
	return PickupConfig{GroundStay: 3 * time.Second, Radius: 0.5}
}

// Pickup is a pooled collectable. It falls under gravity, can be pulled by an
// aura, and disappears a while after it lands unless collected first.
type Pickup struct {
	env    *combat.Env
	cfg    PickupConfig
	handle pool.Handle

	kind     state.CollectableType
	active   bool
	grounded bool
	body     *physics.Body

	typ      *replication.Field[string]
	position *replication.Field[vmath.Vec3]
}

// NewPickup is the pool factory body for KindPickup.
func NewPickup(env *combat.Env, cfg PickupConfig, handle pool.Handle) *Pickup {
	var sink replication.PatchSink
	if env != nil && env.Journal != nil {
		sink = env.Journal
	}
	gate := gateOf(env)
	return &Pickup{
		env:      env,
		cfg:      cfg,
		handle:   handle,
		kind:     state.CollectableCoin,
		typ:      replication.NewField(handle.String(), "type", string(state.CollectableCoin), sink, gate),
		position: replication.NewField(handle.String(), "position", vmath.Vec3{}, sink, gate),
	}
}

// OnAcquire satisfies pool.Behavior.
func (p *Pickup) OnAcquire(handle pool.Handle, transform pool.Transform) {
	p.active = true
	p.grounded = false
	p.body = &physics.Body{
		ID:         handle.String(),
		Center:     transform.Position,
		Size:       p.cfg.Radius,
		Dynamic:    true,
		Collect:    p,
		OnGrounded: p.onGrounded,
	}
	_ = p.position.Reset(transform.Position)
	_ = p.typ.Reset(string(p.kind))
	if p.env != nil && p.env.Bodies != nil {
		p.env.Bodies.Add(p.body)
	}
}

// OnRelease satisfies pool.Behavior. Pending ground timers are cancelled by
// the pool through its canceller.
func (p *Pickup) OnRelease(pool.Handle) {
	p.active = false
	p.grounded = false
	if p.env != nil && p.env.Bodies != nil && p.body != nil {
		p.env.Bodies.Remove(p.body.ID)
	}
}

// SetType changes what the pickup grants.
func (p *Pickup) SetType(t state.CollectableType) {
	p.kind = t
	_ = p.typ.Set(string(t))
}

// CollectableType satisfies physics.Collectable.
func (p *Pickup) CollectableType() state.CollectableType { return p.kind }

// EntityID satisfies physics.Collectable.
func (p *Pickup) EntityID() string { return p.handle.String() }

// Handle returns the pickup's slot.
func (p *Pickup) Handle() pool.Handle { return p.handle }

// Active reports whether the pickup is in the world.
func (p *Pickup) Active() bool { return p.active }

// Grounded reports whether the pickup has landed.
func (p *Pickup) Grounded() bool { return p.grounded }

// Position returns the simulated position.
func (p *Pickup) Position() vmath.Vec3 {
	if p.body == nil {
		return vmath.Vec3{}
	}
	return p.body.Center
}

// Collect removes the pickup on behalf of a player. It reports false when the
// pickup is already gone, so only the first collector gets the item.
func (p *Pickup) Collect() bool {
	if !p.active {
		return false
	}
	if p.env == nil || p.env.Pool == nil {
		p.active = false
		return true
	}
	return p.env.Pool.Release(p.handle) == nil
}

// Tick publishes the position the physics step produced.
func (p *Pickup) Tick(time.Duration) {
	if !p.active || p.body == nil {
		return
	}
	center := p.body.Center
	if err := p.position.Set(center); err != nil {
		return
	}
	if p.env != nil && p.env.Pool != nil {
		_ = p.env.Pool.SetTransform(p.handle, pool.Transform{Position: center, Rotation: vmath.Identity})
	}
}

func (p *Pickup) onGrounded(string) {
	if !p.active || p.grounded {
		return
	}
	p.grounded = true
	if p.env == nil || p.env.Timers == nil || p.cfg.GroundStay <= 0 {
		return
	}
	p.env.Timers.After(p.handle.String(), p.cfg.GroundStay, func() {
		if p.active && p.env.Pool != nil {
			_ = p.env.Pool.Release(p.handle)
		}
	})
}

// Ref is the log reference for the pickup.
func (p *Pickup) Ref() logging.EntityRef {
	return pool.Ref(pool.KindPickup, p.handle)
}

func gateOf(env *combat.Env) *authority.Gate {
	if env == nil {
		return nil
	}
	return env.Gate
}
