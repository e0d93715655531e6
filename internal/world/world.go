// Package world owns the authoritative arena: the entity pool, the cooldown
// engine, the physics space and the connected players. All mutation happens
// under one lock, on the simulation timeline driven by sim.Loop.
package world

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"fightarena/server/internal/authority"
	"fightarena/server/internal/combat"
	"fightarena/server/internal/cooldown"
	"fightarena/server/internal/items"
	"fightarena/server/internal/physics"
	"fightarena/server/internal/pool"
	"fightarena/server/internal/replication"
	"fightarena/server/internal/sim"
	"fightarena/server/internal/state"
	"fightarena/server/internal/telemetry"
	"fightarena/server/internal/vmath"
	"fightarena/server/logging"
	abilitylog "fightarena/server/logging/abilities"
	"fightarena/server/logging/lifecycle"
	"fightarena/server/logging/network"
)

const (
	playersMetricKey        = "arena_players"
	commandErrorsMetricKey  = "arena_command_errors_total"
	commandAppliedMetricKey = "arena_commands_applied_total"
)

// Options carries the world's collaborators.
type Options struct {
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Role      authority.Role
}

// World is the single source of truth for the arena.
type World struct {
	mu     sync.Mutex
	cfg    Config
	tick   atomic.Uint64
	closed bool

	pub     logging.Publisher
	metrics telemetry.Metrics
	gate    *authority.Gate

	timers    *cooldown.Timers
	cooldowns *cooldown.Engine
	space     *physics.Space
	journal   *replication.Journal
	pool      *pool.Pool
	env       *combat.Env
	spawner   *items.Spawner

	players    map[state.PlayerID]*Player
	nextPlayer state.PlayerID
	nextSpawn  int
	removed    []string
}

// New builds a world. Invalid pool configuration aborts construction.
func New(cfg Config, opts Options) (*World, error) {
	w := &World{
		cfg:     cfg.Normalized(),
		pub:     logging.OrNop(opts.Publisher),
		metrics: opts.Metrics,
		timers:  cooldown.NewTimers(),
		journal: replication.NewJournal(),
		players: make(map[state.PlayerID]*Player),
	}
	w.gate = authority.NewGate(opts.Role, w.pub, w.Tick)
	w.cooldowns = cooldown.NewEngine(w.onCooldown)
	w.space = physics.NewSpace(w.cfg.Space)
	w.pool = pool.New(pool.Options{
		Gate:       w.gate,
		Replicator: w.journal,
		Canceller:  w.timers,
		Publisher:  w.pub,
		Tick:       w.Tick,
	})
	w.env = &combat.Env{
		Pool:      w.pool,
		Timers:    w.timers,
		Query:     w.space,
		Bodies:    w.space,
		Journal:   w.journal,
		Owners:    combat.OwnerResolverFunc(w.resolveOwner),
		Gate:      w.gate,
		Publisher: w.pub,
		Tick:      w.Tick,
	}

	factories := map[pool.EntityKind]pool.Factory{
		pool.KindProjectile: func(handle pool.Handle) pool.Behavior {
			return combat.NewProjectile(w.env, w.cfg.Projectile, handle)
		},
		pool.KindShield: func(handle pool.Handle) pool.Behavior {
			return combat.NewShield(w.env, w.cfg.Shield, handle)
		},
		pool.KindPullAura: func(handle pool.Handle) pool.Behavior {
			return combat.NewPullAura(w.env, w.cfg.PullAura, handle)
		},
		pool.KindPickup: func(handle pool.Handle) pool.Behavior {
			return items.NewPickup(w.env, w.cfg.Pickup, handle)
		},
	}
	for _, kind := range pool.Kinds {
		if err := w.pool.Configure(kind, w.cfg.Pools.For(kind), factories[kind]); err != nil {
			return nil, fmt.Errorf("configure %s pool: %w", kind, err)
		}
	}

	w.spawner = items.NewSpawner(w.env, w.cfg.Spawner)
	if w.cfg.Spawner.AutoStart && w.gate.Authoritative() {
		w.spawner.Start()
	}
	return w, nil
}

// Tick reports the number of completed steps.
func (w *World) Tick() uint64 {
	return w.tick.Load()
}

// Config returns the normalized configuration.
func (w *World) Config() Config {
	return w.cfg
}

func (w *World) publisher() logging.Publisher {
	return w.pub
}

// AddPlayer joins a new player at the next spawn point.
func (w *World) AddPlayer() (*Player, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}
	if err := w.gate.Check("world.add_player"); err != nil {
		return nil, err
	}

	w.nextPlayer++
	id := w.nextPlayer
	spawns := w.cfg.Player.SpawnPoints
	spawn := spawns[w.nextSpawn%len(spawns)]
	w.nextSpawn++

	p := newPlayer(w, id, spawn)
	w.players[id] = p
	w.space.Add(p.body)
	w.cooldowns.Register(p.key, state.AbilityFire, w.cfg.Player.FireCooldown())
	w.cooldowns.Register(p.key, state.AbilityShield, w.cfg.Player.ShieldCooldown)
	w.cooldowns.Register(p.key, state.AbilityPullAura, w.cfg.Player.PullCooldown)
	w.journal.SpawnEntity(p.key, replication.SpawnPayload{
		Kind:     "player",
		Position: spawn,
		Rotation: vmath.Identity,
	})
	p.publishInitial()

	lifecycle.PlayerJoined(context.Background(), w.pub, w.Tick(), p.Ref(), lifecycle.PlayerJoinedPayload{
		SpawnX: spawn.X,
		SpawnY: spawn.Y,
		SpawnZ: spawn.Z,
	})
	w.storePlayerCount()
	return p, nil
}

// RemovePlayer takes a player out of the world. Its cooldowns and timers are
// cancelled before its state is discarded. Entities bound to the player
// notice on their next tick and despawn.
func (w *World) RemovePlayer(id state.PlayerID, reason string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	if !ok {
		return false
	}
	cancelled := w.cooldowns.Remove(p.key) + w.timers.CancelAllFor(p.key)
	delete(w.players, id)
	w.space.Remove(p.key)
	w.journal.DespawnEntity(p.key, "player")
	w.removed = append(w.removed, p.key)

	lifecycle.PlayerDisconnected(context.Background(), w.pub, w.Tick(), p.Ref(), lifecycle.PlayerDisconnectedPayload{
		Reason:          reason,
		CancelledTimers: cancelled,
	})
	w.storePlayerCount()
	return true
}

// Player returns a connected player.
func (w *World) Player(id state.PlayerID) (*Player, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	return p, ok
}

// PlayerCount reports how many players are connected.
func (w *World) PlayerCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.players)
}

// RemovedPlayers returns and clears the players removed since the last call.
func (w *World) RemovedPlayers() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	removed := w.removed
	w.removed = nil
	return removed
}

// resolveOwner runs with the world lock held.
func (w *World) resolveOwner(id state.PlayerID) (combat.Owner, bool) {
	p, ok := w.players[id]
	if !ok {
		return nil, false
	}
	return p, true
}

// Apply executes one tick's commands in order. Each command fails on its own;
// expected refusals such as a cooling ability are not reported, everything
// else is joined into the returned error.
func (w *World) Apply(cmds []sim.Command) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	var errs []error
	for _, cmd := range cmds {
		err := w.applyLocked(cmd)
		if w.metrics != nil {
			w.metrics.Add(commandAppliedMetricKey, 1)
		}
		if err == nil || controlFlow(err) {
			continue
		}
		if w.metrics != nil {
			w.metrics.Add(commandErrorsMetricKey, 1)
		}
		if !errors.Is(err, authority.ErrViolation) {
			network.CommandRejected(context.Background(), w.pub, w.Tick(), logging.EntityRef{ID: cmd.ActorID, Kind: logging.EntityKindPlayer}, network.CommandRejectedPayload{
				MessageType: string(cmd.Type),
				Reason:      err.Error(),
			})
		}
		errs = append(errs, fmt.Errorf("%s from %s: %w", cmd.Type, cmd.ActorID, err))
	}
	return errors.Join(errs...)
}

func (w *World) applyLocked(cmd sim.Command) error {
	id, err := state.ParsePlayerID(cmd.Target())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownPlayer, err)
	}
	p, ok := w.players[id]
	if !ok {
		return ErrUnknownPlayer
	}
	switch cmd.Type {
	case sim.CommandFire:
		if cmd.Fire == nil {
			return ErrInvalidTarget
		}
		_, err := p.RequestFire(cmd.ActorID, cmd.Fire.Origin, cmd.Fire.Target)
		return err
	case sim.CommandAbility:
		if cmd.Ability == nil {
			return cooldown.ErrUnknownAbility
		}
		ability, ok := state.ParseAbilityID(cmd.Ability.Ability)
		if !ok {
			return cooldown.ErrUnknownAbility
		}
		_, err := p.RequestActivateAbility(cmd.ActorID, ability)
		return err
	case sim.CommandPickup:
		if cmd.Pickup == nil {
			return ErrPickupUnavailable
		}
		return p.RequestPickup(cmd.ActorID, cmd.Pickup.Handle)
	case sim.CommandMove:
		if cmd.Move == nil {
			return ErrInvalidTarget
		}
		return p.RequestMove(cmd.ActorID, cmd.Move.Target)
	case sim.CommandHeartbeat:
		if err := w.gate.CheckSender("player.heartbeat", cmd.ActorID, p.key); err != nil {
			return err
		}
		if cmd.Heartbeat != nil {
			p.lastHeartbeat = cmd.Heartbeat.ReceivedAt
			p.rtt = cmd.Heartbeat.RTT
		}
		return nil
	default:
		return ErrUnknownCommand
	}
}

// Step advances the simulation by dt: timers, cooldowns, physics, then every
// entity and player.
func (w *World) Step(dt time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || !w.gate.Authoritative() {
		return
	}
	w.tick.Add(1)
	w.timers.Advance(dt)
	w.cooldowns.Tick(dt)
	w.space.Step(dt.Seconds())

	ids := make([]state.PlayerID, 0, len(w.players))
	for id := range w.players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		w.players[id].step(dt)
	}

	for _, kind := range pool.Kinds {
		for _, handle := range w.pool.Active(kind) {
			behavior, ok := w.pool.Behavior(handle)
			if !ok {
				continue
			}
			if ticker, ok := behavior.(combat.Ticker); ok {
				ticker.Tick(dt)
			}
		}
	}
}

// Drain returns the replication batch produced since the last call.
func (w *World) Drain() replication.Batch {
	return w.journal.Drain(w.Tick())
}

// Snapshot returns the full replicated state for a late joiner.
func (w *World) Snapshot() replication.Batch {
	return w.journal.Snapshot(w.Tick())
}

// PoolStats reports occupancy of every pooled kind.
func (w *World) PoolStats() []pool.Stats {
	return w.pool.AllStats()
}

// Close stops spawning and tears the pool down.
func (w *World) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.spawner.Stop()
	return w.pool.Close()
}

func (w *World) onCooldown(owner string, ability state.AbilityID, st cooldown.State) {
	id, err := state.ParsePlayerID(owner)
	if err != nil {
		return
	}
	p, ok := w.players[id]
	if !ok {
		return
	}
	p.setReady(ability, st.Available)
	if st.Available && ability != state.AbilityFire {
		abilitylog.Ready(context.Background(), w.pub, w.Tick(), p.Ref(), abilitylog.ReadyPayload{Ability: string(ability)})
	}
}

func (w *World) storePlayerCount() {
	if w.metrics != nil {
		w.metrics.Store(playersMetricKey, uint64(len(w.players)))
	}
}

var _ sim.Engine = (*World)(nil)
