package combat

import (
	"testing"
	"time"

	"fightarena/server/internal/physics"
	"fightarena/server/internal/pool"
	"fightarena/server/internal/vmath"
	combatlog "fightarena/server/logging/combat"
)

func TestShieldDamageAndLifetimeReleaseOnce(t *testing.T) {
	t.Run("damage then timer", func(t *testing.T) {
		h := newHarness(t)
		handle, behavior := h.acquire(t, pool.KindShield, vmath.Zero)
		shield := behavior.(*Shield)
		if shield.Health() != DefaultShieldConfig().MaxHealth {
			t.Fatalf("expected full health on acquire, got %v", shield.Health())
		}

		h.timers.Advance(DefaultShieldConfig().Lifetime - time.Millisecond)
		if err := shield.TakeDamage(100); err != nil {
			t.Fatalf("take damage failed: %v", err)
		}
		h.timers.Advance(time.Millisecond)
		if err := shield.TakeDamage(5); err != nil {
			t.Fatalf("take damage on a released shield should be a no-op, got %v", err)
		}

		if h.released[handle] != 1 {
			t.Fatalf("expected exactly one release, got %d", h.released[handle])
		}
		if got := len(h.events.OfType(combatlog.EventShieldDown)); got != 1 {
			t.Fatalf("expected one shield_down event, got %d", got)
		}
	})

	t.Run("timer then damage", func(t *testing.T) {
		h := newHarness(t)
		handle, behavior := h.acquire(t, pool.KindShield, vmath.Zero)
		shield := behavior.(*Shield)

		h.timers.Advance(DefaultShieldConfig().Lifetime)
		_ = shield.TakeDamage(100)

		if h.released[handle] != 1 {
			t.Fatalf("expected exactly one release, got %d", h.released[handle])
		}
		if h.pool.IsActive(handle) {
			t.Fatalf("expected expired shield to be idle")
		}
	})
}

func TestShieldLifetimeTimerDoesNotLeakIntoRecycledSlot(t *testing.T) {
	h := newHarness(t)
	first, behavior := h.acquire(t, pool.KindShield, vmath.Zero)
	h.timers.Advance(4 * time.Second)
	_ = behavior.(*Shield).TakeDamage(1000)
	if h.timers.Pending(first.String()) != 0 {
		t.Fatalf("expected release to cancel the lifetime timer")
	}

	// The idle queue is now [other, first]; the second acquire recycles first.
	h.acquire(t, pool.KindShield, vmath.Zero)
	recycled, _ := h.acquire(t, pool.KindShield, vmath.Zero)
	if recycled != first {
		t.Fatalf("expected FIFO reuse of %v, got %v", first, recycled)
	}

	h.timers.Advance(7 * time.Second)
	if !h.pool.IsActive(recycled) {
		t.Fatalf("stale lifetime timer released the recycled shield")
	}
	h.timers.Advance(4 * time.Second)
	if h.pool.IsActive(recycled) {
		t.Fatalf("expected the new lifetime to expire")
	}
}

func TestShieldInterceptsProjectilesAimedAtOwner(t *testing.T) {
	h := newHarness(t)
	ownerHits := &damageTarget{}
	h.owners[1] = &testOwner{id: 1, position: vmath.V(10, 0, 0)}
	h.space.Add(&physics.Body{ID: "player-1", Center: vmath.V(10, 0, 0), Size: 0.5, Damage: ownerHits})

	_, behavior := h.acquire(t, pool.KindShield, vmath.Zero)
	shield := behavior.(*Shield)
	shield.Bind(1)

	projectileHandle, projectileBehavior := h.acquire(t, pool.KindProjectile, vmath.Zero)
	projectileBehavior.(*Projectile).Initialize(vmath.Zero, vmath.V(10, 0, 0), 10, 50, "player-2")
	for i := 0; i < 40 && h.pool.IsActive(projectileHandle); i++ {
		h.step(25 * time.Millisecond)
	}

	if len(ownerHits.taken) != 0 {
		t.Fatalf("expected the shield to absorb the hit, owner took %v", ownerHits.taken)
	}
	if shield.Health() != DefaultShieldConfig().MaxHealth-10 {
		t.Fatalf("expected shield health %v, got %v", DefaultShieldConfig().MaxHealth-10, shield.Health())
	}
}

func TestShieldDespawnsWhenOwnerLeaves(t *testing.T) {
	h := newHarness(t)
	h.owners[3] = &testOwner{id: 3}
	handle, behavior := h.acquire(t, pool.KindShield, vmath.Zero)
	behavior.(*Shield).Bind(3)

	delete(h.owners, 3)
	h.step(50 * time.Millisecond)
	if h.pool.IsActive(handle) {
		t.Fatalf("expected shield without owner to despawn")
	}
}
