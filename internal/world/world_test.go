package world

import (
	"errors"
	"testing"
	"time"

	"fightarena/server/internal/authority"
	"fightarena/server/internal/combat"
	"fightarena/server/internal/items"
	"fightarena/server/internal/pool"
	"fightarena/server/internal/replication"
	"fightarena/server/internal/sim"
	"fightarena/server/internal/state"
	"fightarena/server/internal/vmath"
	"fightarena/server/logging"
	abilitylog "fightarena/server/logging/abilities"
	combatlog "fightarena/server/logging/combat"
	"fightarena/server/logging/lifecycle"
	"fightarena/server/logging/network"
	"fightarena/server/logging/sinks"
)

const frame = time.Second / 30

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Spawner.AutoStart = false
	cfg.Spawner.Points = nil
	return cfg
}

func newTestWorld(t *testing.T, cfg Config) (*World, *sinks.MemorySink) {
	t.Helper()
	events := sinks.NewMemorySink()
	w, err := New(cfg, Options{Publisher: events})
	if err != nil {
		t.Fatalf("new world failed: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w, events
}

func addPlayer(t *testing.T, w *World) *Player {
	t.Helper()
	p, err := w.AddPlayer()
	if err != nil {
		t.Fatalf("add player failed: %v", err)
	}
	return p
}

func spawnPickup(t *testing.T, w *World, kind state.CollectableType) pool.Handle {
	t.Helper()
	handle, err := w.pool.Acquire(pool.KindPickup, pool.Transform{Position: vmath.V(0, 0.5, 0), Rotation: vmath.Identity})
	if err != nil {
		t.Fatalf("acquire pickup failed: %v", err)
	}
	behavior, _ := w.pool.Behavior(handle)
	behavior.(*items.Pickup).SetType(kind)
	return handle
}

func TestApplyDamageClampsAndDefeatsOnce(t *testing.T) {
	w, events := newTestWorld(t, testConfig())
	p := addPlayer(t, w)

	if err := p.ApplyDamage(60); err != nil {
		t.Fatalf("apply damage failed: %v", err)
	}
	if got := p.Stats().Health; got != 40 {
		t.Fatalf("expected health 40, got %v", got)
	}

	if err := p.ApplyDamage(150); err != nil {
		t.Fatalf("apply damage failed: %v", err)
	}
	stats := p.Stats()
	if stats.Health != 0 || stats.Alive {
		t.Fatalf("expected health 0 and dead, got %+v", stats)
	}

	if err := p.ApplyDamage(10); err != nil {
		t.Fatalf("apply damage on a dead player failed: %v", err)
	}
	if got := p.Stats().Health; got != 0 {
		t.Fatalf("expected health to stay 0, got %v", got)
	}
	if got := len(events.OfType(combatlog.EventDefeat)); got != 1 {
		t.Fatalf("expected one defeat event, got %d", got)
	}

	batch := w.Drain()
	defeats := 0
	for _, n := range batch.Notifications {
		if n.Type == replication.NotifyDefeat && n.Entity == p.key {
			defeats++
		}
	}
	if defeats != 1 {
		t.Fatalf("expected one defeat notification, got %d", defeats)
	}
}

func TestRequestPickupIsIdempotent(t *testing.T) {
	w, events := newTestWorld(t, testConfig())
	p := addPlayer(t, w)
	handle := spawnPickup(t, w, state.CollectableCoin)

	if err := p.RequestPickup(p.key, handle); err != nil {
		t.Fatalf("pickup failed: %v", err)
	}
	if got := p.Stats().InventoryCount; got != 1 {
		t.Fatalf("expected inventory 1, got %d", got)
	}

	err := p.RequestPickup(p.key, handle)
	if !errors.Is(err, ErrPickupUnavailable) {
		t.Fatalf("expected ErrPickupUnavailable, got %v", err)
	}
	if got := p.Stats().InventoryCount; got != 1 {
		t.Fatalf("expected inventory to stay 1, got %d", got)
	}
	if got := len(events.OfType(lifecycle.EventPickupUnavailable)); got != 1 {
		t.Fatalf("expected one pickup_unavailable event, got %d", got)
	}
	if w.pool.IsActive(handle) {
		t.Fatalf("expected pickup slot to be released")
	}
}

func TestRequestPickupSetsChargeFlags(t *testing.T) {
	cfg := testConfig()
	cfg.Player.StartWithCharges = false
	w, _ := newTestWorld(t, cfg)
	p := addPlayer(t, w)

	if err := p.RequestPickup(p.key, spawnPickup(t, w, state.CollectablePullCharge)); err != nil {
		t.Fatalf("pickup failed: %v", err)
	}
	stats := p.Stats()
	if !stats.HasPullCharge || stats.HasShieldCharge || stats.InventoryCount != 0 {
		t.Fatalf("expected only the pull charge, got %+v", stats)
	}
}

func TestRequestPickupRejectsNonPickupHandle(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	p := addPlayer(t, w)
	handle, err := w.pool.Acquire(pool.KindProjectile, pool.Transform{Rotation: vmath.Identity})
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if err := p.RequestPickup(p.key, handle); !errors.Is(err, ErrPickupUnavailable) {
		t.Fatalf("expected ErrPickupUnavailable, got %v", err)
	}
	if !w.pool.IsActive(handle) {
		t.Fatalf("expected projectile to be left alone")
	}
}

func TestRequestsRejectForeignSender(t *testing.T) {
	w, events := newTestWorld(t, testConfig())
	victim := addPlayer(t, w)
	intruder := addPlayer(t, w)

	if _, err := victim.RequestFire(intruder.key, victim.Muzzle(), vmath.V(0, 0, 0)); !errors.Is(err, ErrAuthorityViolation) {
		t.Fatalf("expected authority violation for fire, got %v", err)
	}
	if _, err := victim.RequestActivateAbility(intruder.key, state.AbilityShield); !errors.Is(err, ErrAuthorityViolation) {
		t.Fatalf("expected authority violation for ability, got %v", err)
	}
	if err := victim.RequestPickup(intruder.key, 1); !errors.Is(err, ErrAuthorityViolation) {
		t.Fatalf("expected authority violation for pickup, got %v", err)
	}

	violations := events.OfType(authority.EventViolation)
	if len(violations) != 3 {
		t.Fatalf("expected 3 violation events, got %d", len(violations))
	}
	for _, event := range violations {
		if event.Severity != logging.SeverityError {
			t.Fatalf("expected error severity, got %s", event.Severity)
		}
	}
	if victim.Stats().HasShieldCharge != true {
		t.Fatalf("expected the victim's charge to be untouched")
	}
}

func TestAbilityNeedsChargeAndReadyCooldown(t *testing.T) {
	cfg := testConfig()
	cfg.Player.StartWithCharges = false
	w, events := newTestWorld(t, cfg)
	p := addPlayer(t, w)

	if _, err := p.RequestActivateAbility(p.key, state.AbilityShield); !errors.Is(err, ErrNoCharge) {
		t.Fatalf("expected ErrNoCharge, got %v", err)
	}

	if err := p.RequestPickup(p.key, spawnPickup(t, w, state.CollectableShieldCharge)); err != nil {
		t.Fatalf("pickup failed: %v", err)
	}
	handle, err := p.RequestActivateAbility(p.key, state.AbilityShield)
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	shield, ok := p.ActiveShield()
	if !ok || shield.Handle() != handle || shield.Owner() != p.id {
		t.Fatalf("expected an active shield bound to the player")
	}
	if p.Stats().HasShieldCharge {
		t.Fatalf("expected the charge to be consumed")
	}
	before, _ := w.cooldowns.State(p.key, state.AbilityShield)

	if err := p.RequestPickup(p.key, spawnPickup(t, w, state.CollectableShieldCharge)); err != nil {
		t.Fatalf("pickup failed: %v", err)
	}
	w.Step(time.Second)
	if _, err := p.RequestActivateAbility(p.key, state.AbilityShield); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady while cooling, got %v", err)
	}
	after, _ := w.cooldowns.State(p.key, state.AbilityShield)
	if after.Total != before.Total || after.Elapsed != time.Second {
		t.Fatalf("expected the rejected trigger to leave the cooldown alone, got %+v", after)
	}
	if !p.Stats().HasShieldCharge {
		t.Fatalf("expected the charge to survive a rejected activation")
	}

	for i := 0; i < 11; i++ {
		w.Step(time.Second)
	}
	if _, err := p.RequestActivateAbility(p.key, state.AbilityShield); err != nil {
		t.Fatalf("expected activation after the cooldown, got %v", err)
	}
	if got := len(events.OfType(abilitylog.EventReady)); got != 1 {
		t.Fatalf("expected one ready event, got %d", got)
	}
}

func TestFireHitsOtherPlayerAndIsRateLimited(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	shooter := addPlayer(t, w)
	target := addPlayer(t, w)

	if _, err := shooter.RequestFire(shooter.key, shooter.Muzzle(), target.Position()); err != nil {
		t.Fatalf("fire failed: %v", err)
	}
	if _, err := shooter.RequestFire(shooter.key, shooter.Muzzle(), target.Position()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected the fire rate to gate a second shot, got %v", err)
	}

	for i := 0; i < 60 && target.Stats().Health == state.MaxHealth; i++ {
		w.Step(frame)
	}
	want := state.MaxHealth - w.cfg.Projectile.Damage
	if got := target.Stats().Health; got != want {
		t.Fatalf("expected health %v after one hit, got %v", want, got)
	}
	if got := len(w.pool.Active(pool.KindProjectile)); got != 0 {
		t.Fatalf("expected the projectile to be released, %d still active", got)
	}
	if _, err := shooter.RequestFire(shooter.key, shooter.Muzzle(), target.Position()); err != nil {
		t.Fatalf("expected fire to be ready again, got %v", err)
	}
}

func TestShieldAbsorbsIncomingFire(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	shooter := addPlayer(t, w)
	target := addPlayer(t, w)

	if _, err := target.RequestActivateAbility(target.key, state.AbilityShield); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if _, err := shooter.RequestFire(shooter.key, shooter.Muzzle(), target.Position()); err != nil {
		t.Fatalf("fire failed: %v", err)
	}
	shield, _ := target.ActiveShield()
	for i := 0; i < 60 && shield.Health() == w.cfg.Shield.MaxHealth; i++ {
		w.Step(frame)
	}
	if got := shield.Health(); got != w.cfg.Shield.MaxHealth-w.cfg.Projectile.Damage {
		t.Fatalf("expected the shield to absorb the hit, shield health %v", got)
	}
	if got := target.Stats().Health; got != state.MaxHealth {
		t.Fatalf("expected the player to be untouched, got %v", got)
	}

	if err := target.TakeDamage(5); err != nil {
		t.Fatalf("take damage failed: %v", err)
	}
	if target.Stats().Health != state.MaxHealth {
		t.Fatalf("expected direct damage to route to the shield")
	}
}

func TestSpoofedOriginIsIgnored(t *testing.T) {
	w, events := newTestWorld(t, testConfig())
	p := addPlayer(t, w)

	handle, err := p.RequestFire(p.key, vmath.V(100, 100, 100), vmath.V(0, 0.5, 0))
	if err != nil {
		t.Fatalf("fire failed: %v", err)
	}
	behavior, _ := w.pool.Behavior(handle)
	projectile := behavior.(*combat.Projectile)
	if projectile.State().Origin != p.Muzzle() {
		t.Fatalf("expected the authoritative muzzle as origin, got %v", projectile.State().Origin)
	}
	if got := len(events.OfType(network.EventCommandRejected)); got != 1 {
		t.Fatalf("expected the spoofed hint to be reported once, got %d", got)
	}
}

func TestRemovePlayerCancelsCooldownsAndBoundEntities(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	p := addPlayer(t, w)
	shieldHandle, err := p.RequestActivateAbility(p.key, state.AbilityShield)
	if err != nil {
		t.Fatalf("activate shield failed: %v", err)
	}
	if _, err := p.RequestActivateAbility(p.key, state.AbilityPullAura); err != nil {
		t.Fatalf("activate aura failed: %v", err)
	}

	if !w.RemovePlayer(p.id, "test") {
		t.Fatalf("expected removal to succeed")
	}
	if w.RemovePlayer(p.id, "test") {
		t.Fatalf("expected second removal to report false")
	}
	if _, ok := w.cooldowns.State(p.key, state.AbilityShield); ok {
		t.Fatalf("expected cooldown state to be discarded")
	}

	w.Step(frame)
	if w.pool.IsActive(shieldHandle) {
		t.Fatalf("expected the orphaned shield to despawn")
	}
	if w.timers.Pending(shieldHandle.String()) != 0 {
		t.Fatalf("expected the shield's timers to be cancelled")
	}
	if got := len(w.pool.Active(pool.KindPullAura)); got != 0 {
		t.Fatalf("expected the orphaned aura to despawn, %d active", got)
	}
	if removed := w.RemovedPlayers(); len(removed) != 1 || removed[0] != p.key {
		t.Fatalf("unexpected removed players: %v", removed)
	}
}

func TestApplyRoutesCommandsAndReportsFaults(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	a := addPlayer(t, w)
	b := addPlayer(t, w)
	handle := spawnPickup(t, w, state.CollectableCoin)

	err := w.Apply([]sim.Command{
		{ActorID: a.key, Type: sim.CommandPickup, Pickup: &sim.PickupCommand{Handle: handle}},
		{ActorID: b.key, Type: sim.CommandPickup, Pickup: &sim.PickupCommand{Handle: handle}},
		{ActorID: a.key, Type: sim.CommandMove, Move: &sim.MoveCommand{Target: vmath.V(0, 0, 0)}},
		{ActorID: a.key, PlayerID: b.key, Type: sim.CommandAbility, Ability: &sim.AbilityCommand{Ability: "shield"}},
		{ActorID: "player-99", Type: sim.CommandHeartbeat},
	})
	if !errors.Is(err, ErrAuthorityViolation) {
		t.Fatalf("expected the joined error to carry the violation, got %v", err)
	}
	if !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("expected the joined error to carry the unknown player, got %v", err)
	}
	if errors.Is(err, ErrPickupUnavailable) {
		t.Fatalf("expected the losing pickup race to be a silent no-op")
	}
	if a.Stats().InventoryCount != 1 || b.Stats().InventoryCount != 0 {
		t.Fatalf("expected only the first collector to get the coin")
	}
	if _, ok := b.ActiveShield(); ok {
		t.Fatalf("expected the forged ability request to be dropped")
	}

	start := a.Position()
	w.Step(frame)
	moved := a.Position().Distance(start)
	if want := w.cfg.Player.MoveSpeed * frame.Seconds(); moved < want-1e-9 || moved > want+1e-9 {
		t.Fatalf("expected to move %v in one frame, moved %v", want, moved)
	}
}

func TestMirrorFollowsWorld(t *testing.T) {
	w, _ := newTestWorld(t, testConfig())
	p := addPlayer(t, w)
	mirror := replication.NewMirror(nil)
	mirror.Apply(w.Drain())

	if kind, ok := mirror.Visible(p.key); !ok || kind != "player" {
		t.Fatalf("expected the player to be visible, got %q %v", kind, ok)
	}
	handle := spawnPickup(t, w, state.CollectableCoin)
	if err := p.RequestPickup(p.key, handle); err != nil {
		t.Fatalf("pickup failed: %v", err)
	}
	w.Step(frame)
	mirror.Apply(w.Drain())

	value, _, ok := mirror.Get(p.key, "inventoryCount")
	if !ok || value != uint32(1) {
		t.Fatalf("expected mirrored inventory 1, got %v", value)
	}
	if _, ok := mirror.Visible(handle.String()); ok {
		t.Fatalf("expected the collected pickup to be hidden")
	}

	late := replication.NewMirror(nil)
	late.Apply(w.Snapshot())
	if value, _, ok := late.Get(p.key, "inventoryCount"); !ok || value != uint32(1) {
		t.Fatalf("expected the snapshot to carry inventory 1, got %v", value)
	}
}

func TestObserverCannotBuildWorld(t *testing.T) {
	events := sinks.NewMemorySink()
	_, err := New(testConfig(), Options{Publisher: events, Role: authority.RoleObserver})
	if !errors.Is(err, ErrAuthorityViolation) {
		t.Fatalf("expected an authority violation, got %v", err)
	}
	if len(events.OfType(authority.EventViolation)) == 0 {
		t.Fatalf("expected the violation to be logged")
	}
}
