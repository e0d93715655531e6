package combat

import (
	"context"
	"time"

	"fightarena/server/internal/physics"
	"fightarena/server/internal/pool"
	"fightarena/server/internal/replication"
	"fightarena/server/internal/state"
	"fightarena/server/internal/vmath"
	"fightarena/server/logging"
	combatlog "fightarena/server/logging/combat"
)

// ShieldConfig tunes the armor bubble.
type ShieldConfig struct {
	MaxHealth float64       `json:"maxHealth" yaml:"max_health" toml:"max_health"`
	Lifetime  time.Duration `json:"lifetime" yaml:"lifetime" toml:"lifetime"`
	Radius    float64       `json:"radius" yaml:"radius" toml:"radius"`
}

// DefaultShieldConfig returns the stock armor.
func DefaultShieldConfig() ShieldConfig {
	return ShieldConfig{MaxHealth: 40, Lifetime: 10 * time.Second, Radius: 1.5}
}

const (
	shieldReasonDepleted  = "depleted"
	shieldReasonExpired   = "expired"
	shieldReasonOwnerGone = "owner_gone"
)

// Shield absorbs damage around its owner until its health runs out or its
// lifetime ends, whichever happens first.
type Shield struct {
	env    *Env
	cfg    ShieldConfig
	handle pool.Handle

	owner        state.PlayerID
	active       bool
	isDestroying bool
	health       *replication.Field[float64]
	body         *physics.Body
}

// NewShield is the pool factory body for KindShield.
func NewShield(env *Env, cfg ShieldConfig, handle pool.Handle) *Shield {
	s := &Shield{
		env:    env,
		cfg:    cfg,
		handle: handle,
		health: replication.NewField(handle.String(), "health", 0.0, env.patchSink(), env.gate()),
	}
	s.body = &physics.Body{ID: handle.String(), Size: cfg.Radius, Damage: s}
	return s
}

// OnAcquire satisfies pool.Behavior.
func (s *Shield) OnAcquire(handle pool.Handle, transform pool.Transform) {
	s.active = true
	s.isDestroying = false
	s.owner = 0
	_ = s.health.Reset(s.cfg.MaxHealth)

	s.body.Center = transform.Position
	if s.env != nil && s.env.Bodies != nil {
		s.env.Bodies.Add(s.body)
	}
	if s.env != nil && s.env.Timers != nil && s.cfg.Lifetime > 0 {
		s.env.Timers.After(handle.String(), s.cfg.Lifetime, func() {
			s.despawn(shieldReasonExpired)
		})
	}
}

// OnRelease satisfies pool.Behavior.
func (s *Shield) OnRelease(pool.Handle) {
	s.active = false
	if s.env != nil && s.env.Bodies != nil {
		s.env.Bodies.Remove(s.body.ID)
	}
}

// Bind attaches the shield to the player it protects.
func (s *Shield) Bind(owner state.PlayerID) {
	s.owner = owner
	s.follow()
}

// Owner returns the protected player.
func (s *Shield) Owner() state.PlayerID { return s.owner }

// Health returns the remaining health.
func (s *Shield) Health() float64 { return s.health.Get() }

// Active reports whether the shield is up.
func (s *Shield) Active() bool { return s.active && !s.isDestroying }

// Handle returns the shield's slot.
func (s *Shield) Handle() pool.Handle { return s.handle }

// TakeDamage satisfies physics.Damageable. It is authority-only.
func (s *Shield) TakeDamage(amount float64) error {
	if err := s.env.gate().Check("shield.take_damage"); err != nil {
		return err
	}
	if !s.active || s.isDestroying || amount <= 0 {
		return nil
	}
	remaining := s.health.Get() - amount
	if remaining < 0 {
		remaining = 0
	}
	_ = s.health.Set(remaining)
	combatlog.Damage(context.Background(), s.env.publisher(), s.env.currentTick(), s.ref(), s.ref(), combatlog.DamagePayload{
		Source:       "shield",
		Amount:       amount,
		TargetHealth: remaining,
	})
	if remaining <= 0 {
		s.despawn(shieldReasonDepleted)
	}
	return nil
}

// Tick keeps the shield centred on its owner.
func (s *Shield) Tick(time.Duration) {
	if !s.active || s.isDestroying {
		return
	}
	s.follow()
}

func (s *Shield) follow() {
	if s.owner == 0 {
		return
	}
	owner, ok := s.env.resolve(s.owner)
	if !ok {
		s.despawn(shieldReasonOwnerGone)
		return
	}
	center := owner.Position()
	s.body.Center = center
	if s.env.Bodies != nil {
		s.env.Bodies.Move(s.body.ID, center)
	}
	if s.env.Pool != nil {
		_ = s.env.Pool.SetTransform(s.handle, pool.Transform{Position: center, Rotation: vmath.Identity})
	}
}

// despawn is the single exit for damage, expiry and a vanished owner.
func (s *Shield) despawn(reason string) {
	if !s.active || s.isDestroying {
		return
	}
	s.isDestroying = true
	combatlog.ShieldDown(context.Background(), s.env.publisher(), s.env.currentTick(), s.ref(), combatlog.ShieldDownPayload{
		Reason: reason,
		Health: s.health.Get(),
	})
	if s.env == nil || s.env.Pool == nil {
		s.active = false
		return
	}
	_ = s.env.Pool.Release(s.handle)
}

func (s *Shield) ref() logging.EntityRef {
	return pool.Ref(pool.KindShield, s.handle)
}
