package physics

import (
	"math"
	"sort"
	"sync"

	"fightarena/server/internal/vmath"
)

// Body is a sphere registered with a Space. Capabilities are attached by the
// owner of the entity the body stands for.
type Body struct {
	ID         string
	Center     vmath.Vec3
	Size       float64
	Dynamic    bool
	Vel        vmath.Vec3
	Damage     Damageable
	Collect    Collectable
	OnGrounded func(id string)
	grounded   bool
}

func (b *Body) ColliderID() string { return b.ID }

func (b *Body) Position() vmath.Vec3 { return b.Center }

func (b *Body) Radius() float64 { return b.Size }

// Damageable exposes the attached damage handler.
func (b *Body) Damageable() (Damageable, bool) {
	return b.Damage, b.Damage != nil
}

// Collectable exposes the attached collectable.
func (b *Body) Collectable() (Collectable, bool) {
	return b.Collect, b.Collect != nil
}

// RigidBody exposes the body itself when it is dynamic.
func (b *Body) RigidBody() (RigidBody, bool) {
	if !b.Dynamic {
		return nil, false
	}
	return b, true
}

// AddImpulse changes velocity directly; bodies have unit mass.
func (b *Body) AddImpulse(impulse vmath.Vec3) {
	b.Vel = b.Vel.Add(impulse)
	if impulse.Y > 0 {
		b.grounded = false
	}
}

// Velocity satisfies RigidBody.
func (b *Body) Velocity() vmath.Vec3 {
	return b.Vel
}

// Grounded reports whether the body rests on the ground plane.
func (b *Body) Grounded() bool {
	return b.grounded
}

// SpaceConfig tunes the reference integrator.
type SpaceConfig struct {
	Gravity float64 `json:"gravity" yaml:"gravity" toml:"gravity"`
	GroundY float64 `json:"groundY" yaml:"ground_y" toml:"ground_y"`
	// Damping is the fraction of horizontal speed kept per second while
	// grounded.
	Damping float64 `json:"damping" yaml:"damping" toml:"damping"`
}

// DefaultSpaceConfig matches Earth gravity on a ground plane at y=0.
func DefaultSpaceConfig() SpaceConfig {
	return SpaceConfig{Gravity: 9.81, GroundY: 0, Damping: 0.2}
}

// Space is a brute-force Query over spheres. Grounding callbacks run after
// the space's lock is released, so they may add or remove bodies.
type Space struct {
	mu     sync.RWMutex
	cfg    SpaceConfig
	bodies map[string]*Body
}

// NewSpace constructs an empty space.
func NewSpace(cfg SpaceConfig) *Space {
	return &Space{cfg: cfg, bodies: make(map[string]*Body)}
}

// Add registers or replaces a body.
func (s *Space) Add(body *Body) {
	if body == nil || body.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies[body.ID] = body
}

// Remove unregisters a body.
func (s *Space) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bodies, id)
}

// Get returns the body registered under id.
func (s *Space) Get(id string) (*Body, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bodies[id]
	return b, ok
}

// Move teleports a body.
func (s *Space) Move(id string, center vmath.Vec3) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bodies[id]
	if !ok {
		return false
	}
	b.Center = center
	return true
}

// Len counts registered bodies.
func (s *Space) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bodies)
}

// Step integrates dynamic bodies by dt seconds and fires grounding callbacks
// for bodies that touched the ground during the step.
func (s *Space) Step(dt float64) {
	if dt <= 0 {
		return
	}
	type landing struct {
		id string
		fn func(string)
	}
	var landed []landing

	s.mu.Lock()
	keep := math.Pow(s.cfg.Damping, dt)
	for _, b := range s.bodies {
		if !b.Dynamic {
			continue
		}
		if !b.grounded {
			b.Vel.Y -= s.cfg.Gravity * dt
		}
		b.Center = b.Center.Add(b.Vel.Scale(dt))
		floor := s.cfg.GroundY + b.Size
		if b.Center.Y <= floor {
			b.Center.Y = floor
			if b.Vel.Y < 0 {
				b.Vel.Y = 0
			}
			b.Vel.X *= keep
			b.Vel.Z *= keep
			if !b.grounded {
				b.grounded = true
				if b.OnGrounded != nil {
					landed = append(landed, landing{id: b.ID, fn: b.OnGrounded})
				}
			}
		} else {
			b.grounded = false
		}
	}
	s.mu.Unlock()

	sort.Slice(landed, func(i, j int) bool { return landed[i].id < landed[j].id })
	for _, l := range landed {
		l.fn(l.id)
	}
}

// Segment satisfies Query.
func (s *Space) Segment(from, to vmath.Vec3, ignore ...string) (Hit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := to.Sub(from)
	length := d.Len()
	if length < vmath.Epsilon {
		return Hit{}, false
	}
	dir := d.Scale(1 / length)

	var best Hit
	found := false
	for _, b := range s.bodies {
		if contains(ignore, b.ID) {
			continue
		}
		oc := from.Sub(b.Center)
		c := oc.Dot(oc) - b.Size*b.Size
		if c <= 0 {
			// Starting inside: only entries count.
			continue
		}
		half := oc.Dot(dir)
		disc := half*half - c
		if disc < 0 {
			continue
		}
		t := -half - math.Sqrt(disc)
		if t < 0 || t > length {
			continue
		}
		fraction := t / length
		if found && (fraction > best.Fraction || (fraction == best.Fraction && b.ID > best.Collider.ColliderID())) {
			continue
		}
		point := from.Add(dir.Scale(t))
		best = Hit{Collider: b, Point: point, Normal: point.Sub(b.Center).Normalize(), Fraction: fraction}
		found = true
	}
	return best, found
}

// OverlapSphere satisfies Query.
func (s *Space) OverlapSphere(center vmath.Vec3, radius float64, limit int) []Collider {
	s.mu.RLock()
	type candidate struct {
		body *Body
		dist float64
	}
	var found []candidate
	for _, b := range s.bodies {
		dist := b.Center.Distance(center)
		if dist <= radius {
			found = append(found, candidate{body: b, dist: dist})
		}
	}
	s.mu.RUnlock()

	sort.Slice(found, func(i, j int) bool {
		if found[i].dist != found[j].dist {
			return found[i].dist < found[j].dist
		}
		return found[i].body.ID < found[j].body.ID
	})
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	out := make([]Collider, 0, len(found))
	for _, c := range found {
		out = append(out, c.body)
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
