package combat

import (
	"context"
	"time"

	"fightarena/server/internal/cooldown"
	"fightarena/server/internal/physics"
	"fightarena/server/internal/pool"
	"fightarena/server/internal/replication"
	"fightarena/server/internal/state"
	"fightarena/server/internal/vmath"
	"fightarena/server/logging"
	combatlog "fightarena/server/logging/combat"
)

// PullAuraConfig tunes the magnet.
type PullAuraConfig struct {
	Radius           float64       `json:"radius" yaml:"radius" toml:"radius"`
	Force            float64       `json:"force" yaml:"force" toml:"force"`
	Interval         time.Duration `json:"interval" yaml:"interval" toml:"interval"`
	Lifetime         time.Duration `json:"lifetime" yaml:"lifetime" toml:"lifetime"`
	MaxColliders     int           `json:"maxColliders" yaml:"max_colliders" toml:"max_colliders"`
	BindPollInterval time.Duration `json:"bindPollInterval" yaml:"bind_poll_interval" toml:"bind_poll_interval"`
	BindTimeout      time.Duration `json:"bindTimeout" yaml:"bind_timeout" toml:"bind_timeout"`
}

// DefaultPullAuraConfig returns the stock magnet.
func DefaultPullAuraConfig() PullAuraConfig {
	return PullAuraConfig{
		Radius:           30,
		Force:            15,
		Interval:         100 * time.Millisecond,
		Lifetime:         10 * time.Second,
		MaxColliders:     20,
		BindPollInterval: 50 * time.Millisecond,
		BindTimeout:      time.Second,
	}
}

// PullStrength is force scaled linearly from full at the centre to zero at
// the radius. The result is clamped to [0, force].
func PullStrength(distance, radius, force float64) float64 {
	if radius <= 0 || force <= 0 {
		return 0
	}
	return force * vmath.Clamp01(1-distance/radius)
}

// PullAura periodically draws accepted collectables toward its owner.
type PullAura struct {
	env    *Env
	cfg    PullAuraConfig
	handle pool.Handle

	ownerID      state.PlayerID
	bound        bool
	active       bool
	isDestroying bool
	waited       time.Duration
	pollTimer    cooldown.TimerID

	center *replication.Field[vmath.Vec3]
}

// NewPullAura is the pool factory body for KindPullAura.
func NewPullAura(env *Env, cfg PullAuraConfig, handle pool.Handle) *PullAura {
	return &PullAura{
		env:    env,
		cfg:    cfg,
		handle: handle,
		center: replication.NewField(handle.String(), "center", vmath.Zero, env.patchSink(), env.gate()),
	}
}

// OnAcquire satisfies pool.Behavior.
func (a *PullAura) OnAcquire(handle pool.Handle, transform pool.Transform) {
	a.active = true
	a.isDestroying = false
	a.bound = false
	a.ownerID = 0
	a.waited = 0
	a.pollTimer = 0
	_ = a.center.Reset(transform.Position)

	if a.env != nil && a.env.Timers != nil && a.cfg.Lifetime > 0 {
		a.env.Timers.After(handle.String(), a.cfg.Lifetime, func() {
			a.despawn()
		})
	}
}

// OnRelease satisfies pool.Behavior.
func (a *PullAura) OnRelease(pool.Handle) {
	a.active = false
	a.bound = false
}

// Handle returns the aura's slot.
func (a *PullAura) Handle() pool.Handle { return a.handle }

// Bound reports whether the owner has been resolved.
func (a *PullAura) Bound() bool { return a.bound }

// Owner returns the owner id the aura was bound to.
func (a *PullAura) Owner() state.PlayerID { return a.ownerID }

// Bind records the owner by stable id. When the owner cannot be resolved
// yet the aura polls every BindPollInterval and gives up after BindTimeout,
// releasing itself.
func (a *PullAura) Bind(owner state.PlayerID) {
	if !a.active || a.isDestroying {
		return
	}
	a.ownerID = owner
	if a.tryBind() {
		return
	}
	if a.env == nil || a.env.Timers == nil {
		a.orphan()
		return
	}
	interval := a.cfg.BindPollInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	a.pollTimer = a.env.Timers.Every(a.handle.String(), interval, func() {
		a.waited += interval
		if a.tryBind() {
			a.env.Timers.Cancel(a.pollTimer)
			a.pollTimer = 0
			return
		}
		if a.waited >= a.cfg.BindTimeout {
			a.env.Timers.Cancel(a.pollTimer)
			a.pollTimer = 0
			a.orphan()
		}
	})
}

func (a *PullAura) tryBind() bool {
	if a.bound {
		return true
	}
	owner, ok := a.env.resolve(a.ownerID)
	if !ok {
		return false
	}
	a.bound = true
	a.moveTo(owner.Position())
	if a.env.Timers != nil && a.cfg.Interval > 0 {
		a.env.Timers.Every(a.handle.String(), a.cfg.Interval, func() { a.Pulse() })
	}
	return true
}

func (a *PullAura) orphan() {
	combatlog.AuraOrphaned(context.Background(), a.env.publisher(), a.env.currentTick(), a.ref(), combatlog.AuraPayload{
		Owner:  a.ownerID.String(),
		Reason: "owner not resolvable",
		Waited: a.waited.String(),
	})
	a.despawn()
}

// Pulse runs one pull pass. It is scheduled every Interval once bound and
// returns how many colliders received an impulse.
func (a *PullAura) Pulse() int {
	if !a.active || a.isDestroying || !a.bound {
		return 0
	}
	owner, ok := a.env.resolve(a.ownerID)
	if !ok {
		a.despawn()
		return 0
	}
	center := owner.Position()
	a.moveTo(center)
	if a.env.Query == nil {
		return 0
	}

	scale := a.cfg.Interval.Seconds()
	if scale <= 0 {
		scale = 1
	}
	pulled := 0
	for _, collider := range a.env.Query.OverlapSphere(center, a.cfg.Radius, a.cfg.MaxColliders) {
		collectable, ok := physics.CollectableOf(collider)
		if !ok || !owner.Accepts(collectable.CollectableType()) {
			continue
		}
		body, ok := physics.RigidBodyOf(collider)
		if !ok {
			combatlog.AuraTargetSkipped(context.Background(), a.env.publisher(), a.env.currentTick(), a.ref(), colliderRef(collectable.EntityID()), combatlog.AuraPayload{
				Owner:  a.ownerID.String(),
				Reason: "collectable has no rigid body",
			})
			continue
		}
		impulse := a.ImpulseFor(collider.Position(), center).Scale(scale)
		if impulse.IsZero() {
			continue
		}
		body.AddImpulse(impulse)
		a.env.notify(replication.Notification{
			Type:    replication.NotifyPullImpulse,
			Entity:  a.handle.String(),
			Payload: replication.PullImpulsePayload{Target: collectable.EntityID(), Impulse: impulse},
		})
		pulled++
	}
	return pulled
}

// ImpulseFor is the per-interval pull on a target at position toward
// center, before integration over the interval. A target within
// vmath.Epsilon of the centre has no direction to be pulled in and gets a
// zero impulse, although PullStrength is at its maximum there.
func (a *PullAura) ImpulseFor(position, center vmath.Vec3) vmath.Vec3 {
	toCenter := center.Sub(position)
	strength := PullStrength(toCenter.Len(), a.cfg.Radius, a.cfg.Force)
	return toCenter.Normalize().Scale(strength)
}

func (a *PullAura) moveTo(center vmath.Vec3) {
	_ = a.center.Set(center)
	if a.env.Pool != nil {
		_ = a.env.Pool.SetTransform(a.handle, pool.Transform{Position: center, Rotation: vmath.Identity})
	}
}

// despawn is the single exit for expiry, orphaning and a vanished owner.
func (a *PullAura) despawn() {
	if !a.active || a.isDestroying {
		return
	}
	a.isDestroying = true
	if a.env == nil || a.env.Pool == nil {
		a.active = false
		return
	}
	_ = a.env.Pool.Release(a.handle)
}

func (a *PullAura) ref() logging.EntityRef {
	return pool.Ref(pool.KindPullAura, a.handle)
}
