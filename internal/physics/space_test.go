package physics

import (
	"math"
	"testing"

	"fightarena/server/internal/state"
	"fightarena/server/internal/vmath"
)

type damageRecorder struct{ total float64 }

func (d *damageRecorder) TakeDamage(amount float64) error {
	d.total += amount
	return nil
}

type coin struct{ id string }

func (c coin) CollectableType() state.CollectableType { return state.CollectableCoin }

func (c coin) EntityID() string { return c.id }

func TestSegmentReturnsNearestEntry(t *testing.T) {
	space := NewSpace(DefaultSpaceConfig())
	near := &Body{ID: "near", Center: vmath.V(5, 0, 0), Size: 1}
	far := &Body{ID: "far", Center: vmath.V(8, 0, 0), Size: 1}
	space.Add(near)
	space.Add(far)

	hit, ok := space.Segment(vmath.V(0, 0, 0), vmath.V(10, 0, 0))
	if !ok {
		t.Fatalf("expected a hit")
	}
	if hit.Collider.ColliderID() != "near" {
		t.Fatalf("expected nearest collider, got %s", hit.Collider.ColliderID())
	}
	if !hit.Point.ApproxEqual(vmath.V(4, 0, 0), 1e-9) {
		t.Fatalf("unexpected hit point %+v", hit.Point)
	}
	if !hit.Normal.ApproxEqual(vmath.V(-1, 0, 0), 1e-9) {
		t.Fatalf("unexpected normal %+v", hit.Normal)
	}
	if math.Abs(hit.Fraction-0.4) > 1e-9 {
		t.Fatalf("unexpected fraction %v", hit.Fraction)
	}

	hit, ok = space.Segment(vmath.V(0, 0, 0), vmath.V(10, 0, 0), "near")
	if !ok || hit.Collider.ColliderID() != "far" {
		t.Fatalf("expected ignore list to skip near collider")
	}
	if _, ok := space.Segment(vmath.V(0, 0, 0), vmath.V(3, 0, 0)); ok {
		t.Fatalf("segment ending before the collider must not hit")
	}
}

func TestSegmentSkipsCollidersContainingStart(t *testing.T) {
	space := NewSpace(DefaultSpaceConfig())
	space.Add(&Body{ID: "bubble", Center: vmath.Zero, Size: 2})
	if _, ok := space.Segment(vmath.V(0.5, 0, 0), vmath.V(10, 0, 0)); ok {
		t.Fatalf("segment starting inside a sphere must pass through it")
	}
}

func TestOverlapSphereOrdersAndLimits(t *testing.T) {
	space := NewSpace(DefaultSpaceConfig())
	for i, x := range []float64{3, 1, 2, 9} {
		space.Add(&Body{ID: string(rune('a' + i)), Center: vmath.V(x, 0, 0), Size: 0.1})
	}
	found := space.OverlapSphere(vmath.Zero, 3, 2)
	if len(found) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(found))
	}
	if found[0].ColliderID() != "b" || found[1].ColliderID() != "c" {
		t.Fatalf("expected nearest first, got %s %s", found[0].ColliderID(), found[1].ColliderID())
	}
	if all := space.OverlapSphere(vmath.Zero, 3, 0); len(all) != 3 {
		t.Fatalf("expected boundary collider to be included, got %d", len(all))
	}
}

func TestCapabilityLookups(t *testing.T) {
	recorder := &damageRecorder{}
	static := &Body{ID: "wall", Damage: recorder}
	dynamic := &Body{ID: "coin", Dynamic: true, Collect: coin{id: "slot-4"}}

	if d, ok := DamageableOf(static); !ok || d != recorder {
		t.Fatalf("expected damageable capability")
	}
	if _, ok := RigidBodyOf(static); ok {
		t.Fatalf("static bodies have no rigid body")
	}
	if _, ok := CollectableOf(static); ok {
		t.Fatalf("static wall is not collectable")
	}
	if _, ok := DamageableOf(dynamic); ok {
		t.Fatalf("coin is not damageable")
	}
	rb, ok := RigidBodyOf(dynamic)
	if !ok {
		t.Fatalf("expected rigid body on dynamic body")
	}
	rb.AddImpulse(vmath.V(1, 0, 0))
	if rb.Velocity().X != 1 {
		t.Fatalf("impulse not applied")
	}
	if c, ok := CollectableOf(dynamic); !ok || c.CollectableType() != state.CollectableCoin {
		t.Fatalf("expected collectable capability")
	}
	if _, ok := DamageableOf(nil); ok {
		t.Fatalf("nil collider has no capabilities")
	}
}

func TestStepGroundsFallingBodiesOnce(t *testing.T) {
	space := NewSpace(SpaceConfig{Gravity: 10, Damping: 1})
	var landed []string
	body := &Body{ID: "pickup", Center: vmath.V(0, 2, 0), Size: 0.5, Dynamic: true, OnGrounded: func(id string) {
		landed = append(landed, id)
	}}
	space.Add(body)

	for i := 0; i < 100; i++ {
		space.Step(0.05)
	}
	if len(landed) != 1 || landed[0] != "pickup" {
		t.Fatalf("expected exactly one grounding callback, got %v", landed)
	}
	if !body.Grounded() || math.Abs(body.Center.Y-0.5) > 1e-9 {
		t.Fatalf("expected body resting on the ground, got y=%v grounded=%v", body.Center.Y, body.Grounded())
	}

	body.AddImpulse(vmath.V(0, 5, 0))
	for i := 0; i < 100; i++ {
		space.Step(0.05)
	}
	if len(landed) != 2 {
		t.Fatalf("expected a second landing after a hop, got %d", len(landed))
	}
}
