package combat

import (
	"testing"
	"time"

	"fightarena/server/internal/cooldown"
	"fightarena/server/internal/physics"
	"fightarena/server/internal/pool"
	"fightarena/server/internal/replication"
	"fightarena/server/internal/state"
	"fightarena/server/internal/vmath"
	"fightarena/server/logging/sinks"
)

type testOwner struct {
	id       state.PlayerID
	position vmath.Vec3
	accepts  map[state.CollectableType]bool
}

func (o *testOwner) PlayerID() state.PlayerID { return o.id }

func (o *testOwner) Position() vmath.Vec3 { return o.position }

func (o *testOwner) Accepts(t state.CollectableType) bool { return o.accepts[t] }

type testOwners map[state.PlayerID]*testOwner

func (o testOwners) ResolveOwner(id state.PlayerID) (Owner, bool) {
	owner, ok := o[id]
	if !ok {
		return nil, false
	}
	return owner, true
}

type harness struct {
	env      *Env
	pool     *pool.Pool
	timers   *cooldown.Timers
	space    *physics.Space
	journal  *replication.Journal
	events   *sinks.MemorySink
	owners   testOwners
	released map[pool.Handle]int
}

type countingReplicator struct {
	*replication.Journal
	released map[pool.Handle]int
}

func (r countingReplicator) Despawned(kind pool.EntityKind, handle pool.Handle) {
	r.released[handle]++
	r.Journal.Despawned(kind, handle)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		timers:   cooldown.NewTimers(),
		space:    physics.NewSpace(physics.SpaceConfig{Gravity: 0, Damping: 1}),
		journal:  replication.NewJournal(),
		events:   sinks.NewMemorySink(),
		owners:   testOwners{},
		released: make(map[pool.Handle]int),
	}
	h.pool = pool.New(pool.Options{
		Replicator: countingReplicator{Journal: h.journal, released: h.released},
		Canceller:  h.timers,
		Publisher:  h.events,
	})
	h.env = &Env{
		Pool:      h.pool,
		Timers:    h.timers,
		Query:     h.space,
		Bodies:    h.space,
		Journal:   h.journal,
		Owners:    h.owners,
		Publisher: h.events,
	}
	configure := func(kind pool.EntityKind, factory pool.Factory) {
		if err := h.pool.Configure(kind, pool.Config{InitialSize: 2, MaxSize: 4, AutoExpand: true}, factory); err != nil {
			t.Fatalf("configure %s failed: %v", kind, err)
		}
	}
	configure(pool.KindProjectile, func(handle pool.Handle) pool.Behavior {
		return NewProjectile(h.env, DefaultProjectileConfig(), handle)
	})
	configure(pool.KindShield, func(handle pool.Handle) pool.Behavior {
		return NewShield(h.env, DefaultShieldConfig(), handle)
	})
	configure(pool.KindPullAura, func(handle pool.Handle) pool.Behavior {
		return NewPullAura(h.env, DefaultPullAuraConfig(), handle)
	})
	return h
}

func (h *harness) acquire(t *testing.T, kind pool.EntityKind, at vmath.Vec3) (pool.Handle, pool.Behavior) {
	t.Helper()
	handle, err := h.pool.Acquire(kind, pool.Transform{Position: at, Rotation: vmath.Identity})
	if err != nil {
		t.Fatalf("acquire %s failed: %v", kind, err)
	}
	behavior, _ := h.pool.Behavior(handle)
	return handle, behavior
}

// step mirrors the world's tick order: timers, then entity ticks.
func (h *harness) step(dt time.Duration) {
	h.timers.Advance(dt)
	for _, kind := range []pool.EntityKind{pool.KindProjectile, pool.KindShield, pool.KindPullAura} {
		for _, handle := range h.pool.Active(kind) {
			if behavior, ok := h.pool.Behavior(handle); ok {
				if ticker, ok := behavior.(Ticker); ok {
					ticker.Tick(dt)
				}
			}
		}
	}
}
