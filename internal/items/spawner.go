package items

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"fightarena/server/internal/combat"
	"fightarena/server/internal/cooldown"
	"fightarena/server/internal/pool"
	"fightarena/server/internal/state"
	"fightarena/server/internal/vmath"
	"fightarena/server/logging"
	"fightarena/server/logging/lifecycle"
)

// spawnerOwner keys the spawner's timer so it can be cancelled as a group.
const spawnerOwner = "spawner"

// Spawnable is one weighted entry of a spawn point.
type Spawnable struct {
	Type           state.CollectableType `json:"type" yaml:"type" toml:"type"`
	Chance         float64               `json:"chance" yaml:"chance" toml:"chance"`
	RandomRotation bool                  `json:"randomRotation,omitempty" yaml:"random_rotation" toml:"random_rotation"`
}

// SpawnPoint is a disc on the ground that pickups drop onto.
type SpawnPoint struct {
	Name     string     `json:"name" yaml:"name" toml:"name"`
	Position vmath.Vec3 `json:"position" yaml:"position" toml:"position"`
	Radius   float64    `json:"radius" yaml:"radius" toml:"radius"`
	// ActiveChance is the probability the point takes part in a round.
	ActiveChance float64 `json:"activeChance" yaml:"active_chance" toml:"active_chance"`
	// Continuous points always take part and never come up empty.
	Continuous bool        `json:"continuous,omitempty" yaml:"continuous" toml:"continuous"`
	Spawnables []Spawnable `json:"spawnables" yaml:"spawnables" toml:"spawnables"`
}

// SpawnerConfig drives the pickup spawner.
type SpawnerConfig struct {
	Interval  time.Duration `json:"interval" yaml:"interval" toml:"interval"`
	PerSpawn  int           `json:"perSpawn" yaml:"per_spawn" toml:"per_spawn"`
	Height    float64       `json:"height" yaml:"height" toml:"height"`
	AutoStart bool          `json:"autoStart" yaml:"auto_start" toml:"auto_start"`
	Seed      uint64        `json:"seed,omitempty" yaml:"seed" toml:"seed"`
	Points    []SpawnPoint  `json:"points" yaml:"points" toml:"points"`
}

// DefaultSpawnerConfig returns a single central point dropping every kind of
// pickup.
func DefaultSpawnerConfig() SpawnerConfig {
	return SpawnerConfig{
		Interval:  2 * time.Second,
		PerSpawn:  1,
		Height:    10,
		AutoStart: true,
		Points: []SpawnPoint{{
			Name:         "center",
			Radius:       5,
			ActiveChance: 1,
			Spawnables: []Spawnable{
				{Type: state.CollectableCoin, Chance: 0.6},
				{Type: state.CollectableShieldCharge, Chance: 0.2},
				{Type: state.CollectablePullCharge, Chance: 0.2},
			},
		}},
	}
}

// Spawner drops pickups from the pool at weighted spawn points on a fixed
// interval.
type Spawner struct {
	env     *combat.Env
	cfg     SpawnerConfig
	rng     *rand.Rand
	timer   cooldown.TimerID
	running bool
}

// NewSpawner builds a stopped spawner. A zero seed draws a random one.
func NewSpawner(env *combat.Env, cfg SpawnerConfig) *Spawner {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Spawner{env: env, cfg: cfg, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Running reports whether the spawn timer is armed.
func (s *Spawner) Running() bool { return s.running }

// Start spawns a first round immediately and then one every interval. It
// reports false when already running or when there is nothing to spawn.
func (s *Spawner) Start() bool {
	if s.running || !s.hasSpawnables() || s.env == nil || s.env.Timers == nil {
		return false
	}
	if err := s.env.Gate.Check("spawner.start"); err != nil {
		return false
	}
	s.running = true
	s.SpawnOnce()
	if s.cfg.Interval > 0 {
		s.timer = s.env.Timers.Every(spawnerOwner, s.cfg.Interval, func() {
			s.SpawnOnce()
		})
	}
	return true
}

// Stop disarms the spawn timer.
func (s *Spawner) Stop() {
	if !s.running {
		return
	}
	s.running = false
	if s.env != nil && s.env.Timers != nil {
		s.env.Timers.Cancel(s.timer)
	}
}

// SpawnOnce runs a single spawn round and returns the handles it placed.
func (s *Spawner) SpawnOnce() []pool.Handle {
	perSpawn := s.cfg.PerSpawn
	if perSpawn < 1 {
		perSpawn = 1
	}
	var placed []pool.Handle
	for i := 0; i < perSpawn; i++ {
		point := s.pickPoint()
		if point == nil {
			continue
		}
		var entry *Spawnable
		if point.Continuous {
			entry = s.pickContinuous(point)
		} else {
			entry = s.pickByChance(point)
		}
		if entry == nil {
			continue
		}
		if handle, ok := s.place(point, *entry); ok {
			placed = append(placed, handle)
		}
	}
	return placed
}

func (s *Spawner) hasSpawnables() bool {
	for _, p := range s.cfg.Points {
		if len(p.Spawnables) > 0 {
			return true
		}
	}
	return false
}

func (s *Spawner) pickPoint() *SpawnPoint {
	var valid, stocked []*SpawnPoint
	for i := range s.cfg.Points {
		p := &s.cfg.Points[i]
		if len(p.Spawnables) == 0 {
			continue
		}
		stocked = append(stocked, p)
		if p.Continuous || s.rng.Float64() <= p.ActiveChance {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		valid = stocked
	}
	if len(valid) == 0 {
		return nil
	}
	return valid[s.rng.IntN(len(valid))]
}

// pickByChance returns nil when every weight is zero.
func (s *Spawner) pickByChance(point *SpawnPoint) *Spawnable {
	total := totalChance(point)
	if total <= 0 {
		return nil
	}
	return s.roll(point, total)
}

// pickContinuous falls back to the first entry instead of skipping a round.
func (s *Spawner) pickContinuous(point *SpawnPoint) *Spawnable {
	if len(point.Spawnables) == 0 {
		return nil
	}
	total := totalChance(point)
	if total <= 0 {
		return &point.Spawnables[0]
	}
	return s.roll(point, total)
}

func (s *Spawner) roll(point *SpawnPoint, total float64) *Spawnable {
	value := s.rng.Float64() * total
	sum := 0.0
	for i := range point.Spawnables {
		sum += point.Spawnables[i].Chance
		if value <= sum {
			return &point.Spawnables[i]
		}
	}
	return &point.Spawnables[0]
}

func totalChance(point *SpawnPoint) float64 {
	total := 0.0
	for _, entry := range point.Spawnables {
		if entry.Chance > 0 {
			total += entry.Chance
		}
	}
	return total
}

func (s *Spawner) place(point *SpawnPoint, entry Spawnable) (pool.Handle, bool) {
	if s.env == nil || s.env.Pool == nil {
		return 0, false
	}
	angle := s.rng.Float64() * 2 * math.Pi
	dist := point.Radius * math.Sqrt(s.rng.Float64())
	position := point.Position.Add(vmath.V(math.Cos(angle)*dist, s.cfg.Height, math.Sin(angle)*dist))
	rotation := vmath.Identity
	if entry.RandomRotation {
		yaw := s.rng.Float64() * 2 * math.Pi
		rotation = vmath.LookRotation(vmath.V(math.Sin(yaw), 0, math.Cos(yaw)))
	}

	handle, err := s.env.Pool.Acquire(pool.KindPickup, pool.Transform{Position: position, Rotation: rotation})
	if err != nil {
		reason := err.Error()
		if errors.Is(err, pool.ErrExhausted) {
			reason = "pool_exhausted"
		}
		lifecycle.SpawnSkipped(context.Background(), logging.OrNop(s.env.Publisher), s.tick(), lifecycle.SpawnSkippedPayload{
			Kind:   pool.KindPickup.String(),
			Reason: reason,
		})
		return 0, false
	}
	if behavior, ok := s.env.Pool.Behavior(handle); ok {
		if pickup, ok := behavior.(*Pickup); ok {
			pickup.SetType(entry.Type)
		}
	}
	return handle, true
}

func (s *Spawner) tick() uint64 {
	if s.env.Tick == nil {
		return 0
	}
	return s.env.Tick()
}
