package combat

import (
	"math"
	"testing"
	"time"

	"fightarena/server/internal/physics"
	"fightarena/server/internal/pool"
	"fightarena/server/internal/replication"
	"fightarena/server/internal/vmath"
	combatlog "fightarena/server/logging/combat"
)

type damageTarget struct {
	taken []float64
}

func (d *damageTarget) TakeDamage(amount float64) error {
	d.taken = append(d.taken, amount)
	return nil
}

func TestProjectileDegenerateShotIsInstantMiss(t *testing.T) {
	h := newHarness(t)
	target := &damageTarget{}
	h.space.Add(&physics.Body{ID: "player-2", Center: vmath.V(0, 0, 0), Size: 1, Damage: target})

	handle, behavior := h.acquire(t, pool.KindProjectile, vmath.V(3, 1, 3))
	projectile := behavior.(*Projectile)
	if projectile.Initialize(vmath.V(3, 1, 3), vmath.V(3, 1, 3), 10, 50) {
		t.Fatalf("expected degenerate shot to report no flight")
	}
	if h.pool.IsActive(handle) {
		t.Fatalf("expected degenerate projectile to be released immediately")
	}
	if len(target.taken) != 0 {
		t.Fatalf("expected no damage, got %v", target.taken)
	}
	if got := h.released[handle]; got != 1 {
		t.Fatalf("expected one release, got %d", got)
	}
	if got := len(h.events.OfType(combatlog.EventProjectileMiss)); got != 1 {
		t.Fatalf("expected one miss event, got %d", got)
	}
}

func TestProjectileRangeClamp(t *testing.T) {
	h := newHarness(t)
	_, behavior := h.acquire(t, pool.KindProjectile, vmath.Zero)
	projectile := behavior.(*Projectile)

	origin := vmath.V(1, 0, 1)
	requested := vmath.V(1, 0, 201)
	if !projectile.Initialize(origin, requested, 10, 50) {
		t.Fatalf("expected projectile to fly")
	}
	st := projectile.State()
	if math.Abs(projectile.TravelDistance()-50) > 1e-9 {
		t.Fatalf("expected travel distance 50, got %v", projectile.TravelDistance())
	}
	if !st.Target.ApproxEqual(vmath.V(1, 0, 51), 1e-9) {
		t.Fatalf("expected target clamped along the ray, got %+v", st.Target)
	}
	if dir := st.Target.Sub(origin).Normalize(); !dir.ApproxEqual(vmath.V(0, 0, 1), 1e-9) {
		t.Fatalf("clamp changed the direction: %+v", dir)
	}
}

func TestProjectileFollowsArcAndMissesAtEnd(t *testing.T) {
	h := newHarness(t)
	handle, behavior := h.acquire(t, pool.KindProjectile, vmath.Zero)
	projectile := behavior.(*Projectile)
	// 20 units at speed 20: one second of flight.
	projectile.Initialize(vmath.Zero, vmath.V(20, 0, 0), 10, 50)

	h.step(500 * time.Millisecond)
	if !h.pool.IsActive(handle) {
		t.Fatalf("projectile released mid-flight")
	}
	if got := projectile.State().ElapsedFraction; math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected elapsed fraction 0.5, got %v", got)
	}
	apex := projectile.Position()
	if !apex.ApproxEqual(vmath.V(10, 2.5, 0), 1e-9) {
		t.Fatalf("expected arc apex at half the arc height, got %+v", apex)
	}
	transform, _ := h.pool.Transform(handle)
	if !transform.Rotation.Forward().ApproxEqual(vmath.V(1, 0, 0), 1e-6) {
		t.Fatalf("expected facing along the tangent, got %+v", transform.Rotation.Forward())
	}

	h.step(500 * time.Millisecond)
	if h.pool.IsActive(handle) {
		t.Fatalf("expected projectile to be released on landing")
	}
	if got := len(h.events.OfType(combatlog.EventProjectileHit)); got != 0 {
		t.Fatalf("expected no hits, got %d", got)
	}
}

func TestProjectileHitDamagesOnceAndNotifies(t *testing.T) {
	h := newHarness(t)
	target := &damageTarget{}
	h.space.Add(&physics.Body{ID: "player-2", Center: vmath.V(10, 2.5, 0), Size: 1, Damage: target})
	h.space.Add(&physics.Body{ID: "player-1", Center: vmath.Zero, Size: 1, Damage: &damageTarget{}})

	handle, behavior := h.acquire(t, pool.KindProjectile, vmath.Zero)
	projectile := behavior.(*Projectile)
	projectile.Initialize(vmath.Zero, vmath.V(20, 0, 0), 25, 50, "player-1")
	h.journal.Drain(0)

	for i := 0; i < 20 && h.pool.IsActive(handle); i++ {
		h.step(50 * time.Millisecond)
	}
	if h.pool.IsActive(handle) {
		t.Fatalf("expected projectile to resolve")
	}
	if len(target.taken) != 1 || target.taken[0] != 25 {
		t.Fatalf("expected a single 25 damage hit, got %v", target.taken)
	}

	// A late event-based collision must not double release.
	if projectile.ResolveHit(physics.Hit{Collider: h.space.OverlapSphere(vmath.V(10, 2.5, 0), 1, 1)[0]}) {
		t.Fatalf("second ResolveHit must be ignored")
	}
	if h.released[handle] != 1 || len(target.taken) != 1 {
		t.Fatalf("expected exactly one release and one damage, got %d and %v", h.released[handle], target.taken)
	}

	batch := h.journal.Drain(1)
	impacts := 0
	for _, n := range batch.Notifications {
		if n.Type == replication.NotifyImpact {
			impacts++
			payload := n.Payload.(replication.ImpactPayload)
			if payload.Normal.IsZero() {
				t.Fatalf("expected impact normal")
			}
		}
	}
	if impacts != 1 {
		t.Fatalf("expected one impact notification, got %d", impacts)
	}
}

func TestProjectileSameFrameHitSources(t *testing.T) {
	h := newHarness(t)
	target := &damageTarget{}
	body := &physics.Body{ID: "player-2", Center: vmath.V(5, 0, 0), Size: 1, Damage: target}
	h.space.Add(body)

	handle, behavior := h.acquire(t, pool.KindProjectile, vmath.Zero)
	projectile := behavior.(*Projectile)
	projectile.Initialize(vmath.Zero, vmath.V(20, 0, 0), 10, 50)

	hit := physics.Hit{Collider: body, Point: vmath.V(4, 0, 0), Normal: vmath.V(-1, 0, 0)}
	if !projectile.ResolveHit(hit) {
		t.Fatalf("expected first hit to resolve")
	}
	if projectile.ResolveHit(hit) {
		t.Fatalf("expected second hit to be ignored")
	}
	h.step(time.Second)
	if h.released[handle] != 1 || len(target.taken) != 1 {
		t.Fatalf("expected one release and one damage, got %d and %v", h.released[handle], target.taken)
	}
}
