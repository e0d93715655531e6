package combat

import (
	"context"
	"time"

	"fightarena/server/internal/physics"
	"fightarena/server/internal/pool"
	"fightarena/server/internal/replication"
	"fightarena/server/internal/vmath"
	"fightarena/server/logging"
	combatlog "fightarena/server/logging/combat"
)

// ProjectileConfig holds the flight tuning shared by every projectile.
type ProjectileConfig struct {
	Speed     float64 `json:"speed" yaml:"speed" toml:"speed"`
	ArcHeight float64 `json:"arcHeight" yaml:"arc_height" toml:"arc_height"`
	Damage    float64 `json:"damage" yaml:"damage" toml:"damage"`
	Range     float64 `json:"range" yaml:"range" toml:"range"`
}

// DefaultProjectileConfig returns the stock gun's projectile.
func DefaultProjectileConfig() ProjectileConfig {
	return ProjectileConfig{Speed: 20, ArcHeight: 5, Damage: 10, Range: 50}
}

// ProjectileState is the flight description of a live projectile.
type ProjectileState struct {
	Origin          vmath.Vec3 `json:"origin"`
	Target          vmath.Vec3 `json:"target"`
	Speed           float64    `json:"speed"`
	ArcHeight       float64    `json:"arcHeight"`
	Damage          float64    `json:"damage"`
	Range           float64    `json:"range"`
	ElapsedFraction float64    `json:"elapsedFraction"`
}

// Projectile flies a quadratic Bézier arc from origin to target and resolves
// at most one hit.
type Projectile struct {
	env    *Env
	cfg    ProjectileConfig
	handle pool.Handle

	st       ProjectileState
	control  vmath.Vec3
	position vmath.Vec3
	travel   float64
	ignore   []string

	active      bool
	initialized bool
	hitOccurred bool

	transform *replication.Field[pool.Transform]
}

// NewProjectile is the pool factory body for KindProjectile.
func NewProjectile(env *Env, cfg ProjectileConfig, handle pool.Handle) *Projectile {
	return &Projectile{
		env:       env,
		cfg:       cfg,
		handle:    handle,
		transform: replication.NewField(handle.String(), "transform", pool.Transform{Rotation: vmath.Identity}, env.patchSink(), env.gate()),
	}
}

// OnAcquire satisfies pool.Behavior.
func (p *Projectile) OnAcquire(_ pool.Handle, transform pool.Transform) {
	p.active = true
	p.initialized = false
	p.hitOccurred = false
	p.ignore = p.ignore[:0]
	p.st = ProjectileState{}
	p.position = transform.Position
	_ = p.transform.Reset(transform)
}

// OnRelease satisfies pool.Behavior.
func (p *Projectile) OnRelease(pool.Handle) {
	p.active = false
	p.initialized = false
}

// Handle returns the projectile's slot.
func (p *Projectile) Handle() pool.Handle { return p.handle }

// State returns a copy of the flight description.
func (p *Projectile) State() ProjectileState { return p.st }

// Position returns the current point on the arc.
func (p *Projectile) Position() vmath.Vec3 { return p.position }

// Active reports whether the projectile is in flight.
func (p *Projectile) Active() bool { return p.active }

// TravelDistance is the straight-line distance the projectile covers.
func (p *Projectile) TravelDistance() float64 { return p.travel }

// Initialize launches the projectile. A target beyond rangeLimit is pulled
// back along the origin→target ray. A degenerate shot whose origin equals
// its target is an immediate miss; Initialize then releases the slot and
// returns false. ignore lists collider ids the projectile passes through.
func (p *Projectile) Initialize(origin, target vmath.Vec3, damage, rangeLimit float64, ignore ...string) bool {
	if !p.active {
		return false
	}
	p.ignore = append(p.ignore[:0], ignore...)

	requested := origin.Distance(target)
	clamped := false
	if rangeLimit > 0 && requested > rangeLimit {
		target = origin.Add(target.Sub(origin).Scale(rangeLimit / requested))
		clamped = true
	}
	p.st = ProjectileState{
		Origin:    origin,
		Target:    target,
		Speed:     p.cfg.Speed,
		ArcHeight: p.cfg.ArcHeight,
		Damage:    damage,
		Range:     rangeLimit,
	}
	p.travel = origin.Distance(target)
	p.position = origin
	p.initialized = true

	payload := combatlog.ProjectilePayload{
		Origin:   origin.Array(),
		Target:   target.Array(),
		Distance: p.travel,
		Clamped:  clamped,
	}
	shooter := p.ref()
	if len(ignore) > 0 {
		shooter = colliderRef(ignore[0])
	}
	combatlog.ProjectileFired(context.Background(), p.env.publisher(), p.env.currentTick(), shooter, p.ref(), payload)

	if p.travel < vmath.Epsilon || p.cfg.Speed <= 0 {
		p.miss()
		return false
	}
	p.control = vmath.ArcControlPoint(origin, target, p.cfg.ArcHeight)
	p.publishTransform(vmath.QuadraticBezierTangent(origin, p.control, target, 0))
	return true
}

// Tick advances the projectile along its arc and tests the path covered
// this tick for a collider.
func (p *Projectile) Tick(dt time.Duration) {
	if !p.active || !p.initialized || p.hitOccurred {
		return
	}
	seconds := dt.Seconds()
	if seconds <= 0 {
		return
	}
	previous := p.position
	p.st.ElapsedFraction = vmath.Clamp01(p.st.ElapsedFraction + seconds*p.st.Speed/p.travel)
	p.position = vmath.QuadraticBezier(p.st.Origin, p.control, p.st.Target, p.st.ElapsedFraction)
	p.publishTransform(vmath.QuadraticBezierTangent(p.st.Origin, p.control, p.st.Target, p.st.ElapsedFraction))

	if p.env != nil && p.env.Query != nil {
		if hit, ok := p.env.Query.Segment(previous, p.position, p.ignore...); ok {
			p.ResolveHit(hit)
			return
		}
	}
	if p.st.ElapsedFraction >= 1 {
		p.miss()
	}
}

// ResolveHit applies the first confirmed hit: damage when the collider is
// damageable, an impact notification, then release. Later calls, including
// ones from a second collision source in the same frame, do nothing.
func (p *Projectile) ResolveHit(hit physics.Hit) bool {
	if !p.active || p.hitOccurred {
		return false
	}
	p.hitOccurred = true
	p.position = hit.Point

	damaged := false
	if target, ok := physics.DamageableOf(hit.Collider); ok && p.st.Damage > 0 {
		if err := target.TakeDamage(p.st.Damage); err == nil {
			damaged = true
		}
	}

	targetID := ""
	if hit.Collider != nil {
		targetID = hit.Collider.ColliderID()
	}
	combatlog.ProjectileHit(context.Background(), p.env.publisher(), p.env.currentTick(), p.ref(), colliderRef(targetID), combatlog.HitPayload{
		Point:   hit.Point.Array(),
		Damage:  p.st.Damage,
		Damaged: damaged,
	})
	p.env.notify(replication.Notification{
		Type:    replication.NotifyImpact,
		Entity:  p.handle.String(),
		Payload: replication.ImpactPayload{Point: hit.Point, Normal: hit.Normal},
	})
	p.release()
	return true
}

func (p *Projectile) miss() {
	if p.hitOccurred {
		return
	}
	p.hitOccurred = true
	combatlog.ProjectileMiss(context.Background(), p.env.publisher(), p.env.currentTick(), p.ref(), combatlog.ProjectilePayload{
		Origin:   p.st.Origin.Array(),
		Target:   p.st.Target.Array(),
		Distance: p.travel,
	})
	p.release()
}

func (p *Projectile) release() {
	if p.env == nil || p.env.Pool == nil {
		p.active = false
		return
	}
	_ = p.env.Pool.Release(p.handle)
}

func (p *Projectile) publishTransform(tangent vmath.Vec3) {
	t := pool.Transform{Position: p.position, Rotation: vmath.LookRotation(tangent)}
	_ = p.transform.Set(t)
	if p.env != nil && p.env.Pool != nil {
		_ = p.env.Pool.SetTransform(p.handle, t)
	}
}

func (p *Projectile) ref() logging.EntityRef {
	return pool.Ref(pool.KindProjectile, p.handle)
}
