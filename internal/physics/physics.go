// Package physics defines the collision queries and capability lookups the
// simulation consumes, plus Space, a brute-force reference implementation
// over spheres and a ground plane.
package physics

import (
	"fightarena/server/internal/state"
	"fightarena/server/internal/vmath"
)

// Collider is anything a query can return.
type Collider interface {
	ColliderID() string
	Position() vmath.Vec3
	Radius() float64
}

// Hit is the nearest entry of a segment into a collider.
type Hit struct {
	Collider Collider
	Point    vmath.Vec3
	Normal   vmath.Vec3
	// Fraction is the position of Point along the queried segment in [0,1].
	Fraction float64
}

// Query is the collision surface entities use.
type Query interface {
	// Segment returns the first collider the segment enters. Colliders whose
	// id is listed in ignore, or that contain from, are skipped.
	Segment(from, to vmath.Vec3, ignore ...string) (Hit, bool)
	// OverlapSphere returns up to limit colliders whose centre lies within
	// radius of center, nearest first.
	OverlapSphere(center vmath.Vec3, radius float64, limit int) []Collider
}

// Damageable takes damage.
type Damageable interface {
	TakeDamage(amount float64) error
}

// RigidBody accepts impulses.
type RigidBody interface {
	AddImpulse(impulse vmath.Vec3)
	Velocity() vmath.Vec3
}

// Collectable is a collider a player can pick up or an aura can pull.
type Collectable interface {
	CollectableType() state.CollectableType
	EntityID() string
}

type damageableProvider interface {
	Damageable() (Damageable, bool)
}

type rigidBodyProvider interface {
	RigidBody() (RigidBody, bool)
}

type collectableProvider interface {
	Collectable() (Collectable, bool)
}

// DamageableOf looks up the damageable capability of c.
func DamageableOf(c Collider) (Damageable, bool) {
	if c == nil {
		return nil, false
	}
	if p, ok := c.(damageableProvider); ok {
		return p.Damageable()
	}
	d, ok := c.(Damageable)
	return d, ok
}

// RigidBodyOf looks up the rigid-body capability of c.
func RigidBodyOf(c Collider) (RigidBody, bool) {
	if c == nil {
		return nil, false
	}
	if p, ok := c.(rigidBodyProvider); ok {
		return p.RigidBody()
	}
	rb, ok := c.(RigidBody)
	return rb, ok
}

// CollectableOf looks up the collectable capability of c.
func CollectableOf(c Collider) (Collectable, bool) {
	if c == nil {
		return nil, false
	}
	if p, ok := c.(collectableProvider); ok {
		return p.Collectable()
	}
	col, ok := c.(Collectable)
	return col, ok
}
