package world

import (
	"time"

	"fightarena/server/internal/combat"
	"fightarena/server/internal/items"
	"fightarena/server/internal/physics"
	"fightarena/server/internal/pool"
	"fightarena/server/internal/state"
	"fightarena/server/internal/vmath"
)

// PoolsConfig sizes every pooled entity kind.
type PoolsConfig struct {
	Projectile pool.Config `json:"projectile" yaml:"projectile" toml:"projectile"`
	Shield     pool.Config `json:"shield" yaml:"shield" toml:"shield"`
	PullAura   pool.Config `json:"pullAura" yaml:"pull_aura" toml:"pull_aura"`
	Pickup     pool.Config `json:"pickup" yaml:"pickup" toml:"pickup"`
}

// For returns the configuration of kind.
func (p PoolsConfig) For(kind pool.EntityKind) pool.Config {
	switch kind {
	case pool.KindProjectile:
		return p.Projectile
	case pool.KindShield:
		return p.Shield
	case pool.KindPullAura:
		return p.PullAura
	case pool.KindPickup:
		return p.Pickup
	default:
		return pool.Config{}
	}
}

// PlayerConfig tunes the player agent.
type PlayerConfig struct {
	Radius float64 `json:"radius" yaml:"radius" toml:"radius"`
	// MuzzleHeight offsets the authoritative fire origin above the player's
	// centre.
	MuzzleHeight float64 `json:"muzzleHeight" yaml:"muzzle_height" toml:"muzzle_height"`
	// SpoofTolerance is how far a client's origin hint may stray from the
	// authoritative muzzle before it is reported.
	SpoofTolerance float64 `json:"spoofTolerance" yaml:"spoof_tolerance" toml:"spoof_tolerance"`
	MoveSpeed      float64 `json:"moveSpeed" yaml:"move_speed" toml:"move_speed"`
	// FireRate is shots per second.
	FireRate         float64                 `json:"fireRate" yaml:"fire_rate" toml:"fire_rate"`
	ShieldCooldown   time.Duration           `json:"shieldCooldown" yaml:"shield_cooldown" toml:"shield_cooldown"`
	PullCooldown     time.Duration           `json:"pullCooldown" yaml:"pull_cooldown" toml:"pull_cooldown"`
	StartWithCharges bool                    `json:"startWithCharges" yaml:"start_with_charges" toml:"start_with_charges"`
	CollectableTypes []state.CollectableType `json:"collectableTypes" yaml:"collectable_types" toml:"collectable_types"`
	SpawnPoints      []vmath.Vec3            `json:"spawnPoints" yaml:"spawn_points" toml:"spawn_points"`
}

// FireCooldown converts the fire rate into the gap between shots.
func (p PlayerConfig) FireCooldown() time.Duration {
	if p.FireRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / p.FireRate)
}

// Config captures everything the world builds from.
type Config struct {
	Pools      PoolsConfig             `json:"pools" yaml:"pools" toml:"pools"`
	Projectile combat.ProjectileConfig `json:"projectile" yaml:"projectile" toml:"projectile"`
	Shield     combat.ShieldConfig     `json:"shield" yaml:"shield" toml:"shield"`
	PullAura   combat.PullAuraConfig   `json:"pullAura" yaml:"pull_aura" toml:"pull_aura"`
	Pickup     items.PickupConfig      `json:"pickup" yaml:"pickup" toml:"pickup"`
	Spawner    items.SpawnerConfig     `json:"spawner" yaml:"spawner" toml:"spawner"`
	Space      physics.SpaceConfig     `json:"space" yaml:"space" toml:"space"`
	Player     PlayerConfig            `json:"player" yaml:"player" toml:"player"`
}

// DefaultConfig returns the stock arena.
func DefaultConfig() Config {
	return Config{
		Pools: PoolsConfig{
			Projectile: pool.Config{InitialSize: 32, MaxSize: 256, AutoExpand: true},
			Shield:     pool.Config{InitialSize: 4, MaxSize: 32, AutoExpand: true},
			PullAura:   pool.Config{InitialSize: 4, MaxSize: 32, AutoExpand: true},
			Pickup:     pool.Config{InitialSize: 16, MaxSize: 64, AutoExpand: true},
		},
		Projectile: combat.DefaultProjectileConfig(),
		Shield:     combat.DefaultShieldConfig(),
		PullAura:   combat.DefaultPullAuraConfig(),
		Pickup:     items.DefaultPickupConfig(),
		Spawner:    items.DefaultSpawnerConfig(),
		Space:      physics.DefaultSpaceConfig(),
		Player: PlayerConfig{
			Radius:           0.5,
			MuzzleHeight:     0.5,
			SpoofTolerance:   2,
			MoveSpeed:        6,
			FireRate:         2,
			ShieldCooldown:   12 * time.Second,
			PullCooldown:     12 * time.Second,
			StartWithCharges: true,
			CollectableTypes: []state.CollectableType{
				state.CollectableCoin,
				state.CollectableShieldCharge,
				state.CollectablePullCharge,
			},
			SpawnPoints: []vmath.Vec3{
				vmath.V(-10, 0.5, 0),
				vmath.V(10, 0.5, 0),
				vmath.V(0, 0.5, -10),
				vmath.V(0, 0.5, 10),
			},
		},
	}
}

// Normalized fills unset values with defaults.
func (cfg Config) Normalized() Config {
	def := DefaultConfig()
	n := cfg
	for _, kind := range pool.Kinds {
		if n.Pools.For(kind) == (pool.Config{}) {
			n.Pools = n.Pools.with(kind, def.Pools.For(kind))
		}
	}
	if n.Player.Radius <= 0 {
		n.Player.Radius = def.Player.Radius
	}
	if n.Player.MoveSpeed <= 0 {
		n.Player.MoveSpeed = def.Player.MoveSpeed
	}
	if n.Player.SpoofTolerance <= 0 {
		n.Player.SpoofTolerance = def.Player.SpoofTolerance
	}
	if len(n.Player.SpawnPoints) == 0 {
		n.Player.SpawnPoints = def.Player.SpawnPoints
	}
	if n.Player.CollectableTypes == nil {
		n.Player.CollectableTypes = def.Player.CollectableTypes
	}
	return n
}

func (p PoolsConfig) with(kind pool.EntityKind, cfg pool.Config) PoolsConfig {
	switch kind {
	case pool.KindProjectile:
		p.Projectile = cfg
	case pool.KindShield:
		p.Shield = cfg
	case pool.KindPullAura:
		p.PullAura = cfg
	case pool.KindPickup:
		p.Pickup = cfg
	}
	return p
}
