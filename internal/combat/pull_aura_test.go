package combat

import (
	"math"
	"testing"
	"time"

	"fightarena/server/internal/physics"
	"fightarena/server/internal/pool"
	"fightarena/server/internal/replication"
	"fightarena/server/internal/state"
	"fightarena/server/internal/vmath"
	"fightarena/server/logging"
	combatlog "fightarena/server/logging/combat"
)

type testCollectable struct {
	kind state.CollectableType
	id   string
}

func (c testCollectable) CollectableType() state.CollectableType { return c.kind }

func (c testCollectable) EntityID() string { return c.id }

func TestPullStrengthFalloff(t *testing.T) {
	cases := []struct {
		name     string
		distance float64
		want     float64
	}{
		{name: "centre", distance: 0, want: 15},
		{name: "half", distance: 15, want: 7.5},
		{name: "boundary", distance: 30, want: 0},
		{name: "outside", distance: 45, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PullStrength(tc.distance, 30, 15); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
	if got := PullStrength(1, 0, 15); got != 0 {
		t.Fatalf("expected zero radius to disable the pull, got %v", got)
	}
}

func TestPullAuraImpulseAtBoundaryAndCentre(t *testing.T) {
	aura := NewPullAura(nil, DefaultPullAuraConfig(), 1)
	if got := aura.ImpulseFor(vmath.V(30, 0, 0), vmath.Zero); !got.IsZero() {
		t.Fatalf("expected zero impulse at the radius, got %+v", got)
	}
	near := aura.ImpulseFor(vmath.V(1e-6, 0, 0), vmath.Zero)
	if math.Abs(near.Len()-15) > 1e-4 {
		t.Fatalf("expected maximal impulse next to the centre, got %v", near.Len())
	}

	t.Run("exactly at the centre", func(t *testing.T) {
		center := vmath.V(4, 0, -2)
		if got := aura.ImpulseFor(center, center); got != vmath.Zero {
			t.Fatalf("expected no impulse for a target on the centre, got %+v", got)
		}
		if got := PullStrength(0, 30, 15); got != 15 {
			t.Fatalf("expected full strength at distance 0, got %v", got)
		}
	})
}

func TestPullAuraPullsAcceptedCollectables(t *testing.T) {
	h := newHarness(t)
	h.owners[1] = &testOwner{id: 1, position: vmath.Zero, accepts: map[state.CollectableType]bool{state.CollectableCoin: true}}

	coin := &physics.Body{ID: "slot-90", Center: vmath.V(10, 0, 0), Size: 0.2, Dynamic: true, Collect: testCollectable{kind: state.CollectableCoin, id: "slot-90"}}
	refused := &physics.Body{ID: "slot-91", Center: vmath.V(5, 0, 0), Size: 0.2, Dynamic: true, Collect: testCollectable{kind: state.CollectableShieldCharge, id: "slot-91"}}
	anchored := &physics.Body{ID: "slot-92", Center: vmath.V(-5, 0, 0), Size: 0.2, Collect: testCollectable{kind: state.CollectableCoin, id: "slot-92"}}
	for _, body := range []*physics.Body{coin, refused, anchored} {
		h.space.Add(body)
	}

	handle, behavior := h.acquire(t, pool.KindPullAura, vmath.Zero)
	aura := behavior.(*PullAura)
	aura.Bind(1)
	if !aura.Bound() {
		t.Fatalf("expected immediate bind when owner is known")
	}
	h.journal.Drain(0)

	h.timers.Advance(DefaultPullAuraConfig().Interval)

	// 15 * (1 - 10/30) over a 0.1s interval.
	if !coin.Velocity().ApproxEqual(vmath.V(-1, 0, 0), 1e-9) {
		t.Fatalf("unexpected coin velocity %+v", coin.Velocity())
	}
	if !refused.Velocity().IsZero() {
		t.Fatalf("type outside the owner's set must not be pulled")
	}
	skipped := h.events.OfType(combatlog.EventAuraTargetSkipped)
	if len(skipped) != 1 || skipped[0].Severity != logging.SeverityWarn {
		t.Fatalf("expected one warning for the body without a rigid body, got %+v", skipped)
	}

	impulses := 0
	for _, n := range h.journal.Drain(1).Notifications {
		if n.Type == replication.NotifyPullImpulse {
			impulses++
			if n.Entity != handle.String() {
				t.Fatalf("unexpected impulse source %s", n.Entity)
			}
		}
	}
	if impulses != 1 {
		t.Fatalf("expected one impulse notification, got %d", impulses)
	}
}

func TestPullAuraOrphanedAfterBindTimeout(t *testing.T) {
	h := newHarness(t)
	handle, behavior := h.acquire(t, pool.KindPullAura, vmath.Zero)
	aura := behavior.(*PullAura)
	aura.Bind(42)
	if aura.Bound() {
		t.Fatalf("unknown owner must not bind")
	}

	h.timers.Advance(DefaultPullAuraConfig().BindTimeout - DefaultPullAuraConfig().BindPollInterval)
	if !h.pool.IsActive(handle) {
		t.Fatalf("aura gave up before the timeout")
	}
	h.timers.Advance(DefaultPullAuraConfig().BindPollInterval)
	if h.pool.IsActive(handle) {
		t.Fatalf("expected orphaned aura to release itself")
	}
	orphaned := h.events.OfType(combatlog.EventAuraOrphaned)
	if len(orphaned) != 1 || orphaned[0].Severity != logging.SeverityError {
		t.Fatalf("expected one error-level orphan event, got %+v", orphaned)
	}
	if h.timers.Pending(handle.String()) != 0 {
		t.Fatalf("expected no timers left for the released aura")
	}
}

func TestPullAuraBindsLateOwner(t *testing.T) {
	h := newHarness(t)
	handle, behavior := h.acquire(t, pool.KindPullAura, vmath.Zero)
	aura := behavior.(*PullAura)
	aura.Bind(7)

	h.timers.Advance(200 * time.Millisecond)
	h.owners[7] = &testOwner{id: 7, position: vmath.V(1, 0, 1)}
	h.timers.Advance(DefaultPullAuraConfig().BindPollInterval)

	if !aura.Bound() || !h.pool.IsActive(handle) {
		t.Fatalf("expected late owner to bind")
	}
	transform, _ := h.pool.Transform(handle)
	if !transform.Position.ApproxEqual(vmath.V(1, 0, 1), 1e-9) {
		t.Fatalf("expected aura to move to its owner, got %+v", transform.Position)
	}

	h.timers.Advance(DefaultPullAuraConfig().Lifetime)
	if h.pool.IsActive(handle) {
		t.Fatalf("expected lifetime to release the aura")
	}
	if h.released[handle] != 1 {
		t.Fatalf("expected exactly one release, got %d", h.released[handle])
	}
}
