// Package pool owns the registry of reusable entity slots. Slots are created
// at warm-up (or on overflow when a kind may grow), cycle between Idle and
// Active, and are only destroyed by Close.
package pool

import (
	"context"
	"sort"
	"sync"

	"fightarena/server/internal/authority"
	"fightarena/server/internal/vmath"
	"fightarena/server/logging"
	poollog "fightarena/server/logging/pool"
)

type slot struct {
	handle    Handle
	kind      EntityKind
	state     SlotState
	behavior  Behavior
	transform Transform
}

type kindRegistry struct {
	cfg     Config
	factory Factory
	idle    []Handle
	active  map[Handle]struct{}
	created int
}

// Options wires the pool's collaborators. Every field is optional.
type Options struct {
	Gate       *authority.Gate
	Replicator Replicator
	Canceller  Canceller
	Publisher  logging.Publisher
	Tick       func() uint64
}

// Pool is the process-wide entity pool. The mutex guards registry
// bookkeeping only; behavior hooks and collaborators run outside it so they
// may call back into the pool.
type Pool struct {
	mu     sync.Mutex
	kinds  map[EntityKind]*kindRegistry
	slots  map[Handle]*slot
	nextID Handle
	closed bool

	gate       *authority.Gate
	replicator Replicator
	canceller  Canceller
	publisher  logging.Publisher
	tick       func() uint64
}

// New constructs an empty pool.
func New(opts Options) *Pool {
	return &Pool{
		kinds:      make(map[EntityKind]*kindRegistry),
		slots:      make(map[Handle]*slot),
		gate:       opts.Gate,
		replicator: opts.Replicator,
		canceller:  opts.Canceller,
		publisher:  logging.OrNop(opts.Publisher),
		tick:       opts.Tick,
	}
}

func (p *Pool) currentTick() uint64 {
	if p.tick == nil {
		return 0
	}
	return p.tick()
}

// Configure registers a kind and warms up cfg.InitialSize idle slots. It may
// be called once per kind.
func (p *Pool) Configure(kind EntityKind, cfg Config, factory Factory) error {
	if err := p.gate.Check("pool.configure"); err != nil {
		return err
	}
	switch {
	case factory == nil:
		return &ConfigError{Kind: kind, Reason: "nil factory"}
	case cfg.MaxSize < 1:
		return &ConfigError{Kind: kind, Reason: "max size must be at least 1"}
	case cfg.InitialSize < 0:
		return &ConfigError{Kind: kind, Reason: "initial size must not be negative"}
	case cfg.InitialSize > cfg.MaxSize:
		return &ConfigError{Kind: kind, Reason: "initial size exceeds max size"}
	}

	p.mu.Lock()
	_, exists := p.kinds[kind]
	p.mu.Unlock()
	if exists {
		return &ConfigError{Kind: kind, Reason: "already configured"}
	}

	// The kind is published only after every warm-up slot was built, so a
	// failing factory leaves nothing behind.
	reg := &kindRegistry{
		cfg:     cfg,
		factory: factory,
		idle:    make([]Handle, 0, cfg.InitialSize),
		active:  make(map[Handle]struct{}, cfg.InitialSize),
	}
	built := make([]*slot, 0, cfg.InitialSize)
	for i := 0; i < cfg.InitialSize; i++ {
		p.mu.Lock()
		handle := p.reserveLocked(reg)
		p.mu.Unlock()
		behavior := factory(handle)
		if behavior == nil {
			return &ConfigError{Kind: kind, Reason: "factory returned nil behavior"}
		}
		built = append(built, newSlot(kind, handle, behavior))
	}

	p.mu.Lock()
	if _, exists := p.kinds[kind]; exists {
		p.mu.Unlock()
		return &ConfigError{Kind: kind, Reason: "already configured"}
	}
	for _, s := range built {
		p.slots[s.handle] = s
		reg.idle = append(reg.idle, s.handle)
	}
	p.kinds[kind] = reg
	p.mu.Unlock()

	poollog.Configured(context.Background(), p.publisher, p.currentTick(), poollog.ConfiguredPayload{
		Kind:        kind.String(),
		InitialSize: cfg.InitialSize,
		MaxSize:     cfg.MaxSize,
		AutoExpand:  cfg.AutoExpand,
	})
	return nil
}

// reserveLocked claims the next id for reg. The caller holds p.mu.
func (p *Pool) reserveLocked(reg *kindRegistry) Handle {
	p.nextID++
	reg.created++
	return p.nextID
}

// buildSlot runs the factory for a reserved id and records the slot. The
// caller decides which collection the new handle joins.
func (p *Pool) buildSlot(kind EntityKind, reg *kindRegistry, handle Handle) (*slot, error) {
	behavior := reg.factory(handle)
	p.mu.Lock()
	defer p.mu.Unlock()
	if behavior == nil {
		reg.created--
		return nil, &ConfigError{Kind: kind, Reason: "factory returned nil behavior"}
	}
	s := newSlot(kind, handle, behavior)
	p.slots[handle] = s
	return s, nil
}

func newSlot(kind EntityKind, handle Handle, behavior Behavior) *slot {
	return &slot{handle: handle, kind: kind, state: SlotIdle, behavior: behavior, transform: Transform{Rotation: vmath.Identity}}
}

// Acquire activates a slot of the given kind at the given placement and
// returns its handle. The entity is visible to observers and its OnAcquire
// hook has run by the time Acquire returns.
func (p *Pool) Acquire(kind EntityKind, transform Transform) (Handle, error) {
	if err := p.gate.Check("pool.acquire"); err != nil {
		return 0, &AcquireError{Kind: kind, Err: err}
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, &AcquireError{Kind: kind, Err: ErrExhausted}
	}
	reg, ok := p.kinds[kind]
	if !ok {
		p.mu.Unlock()
		return 0, &AcquireError{Kind: kind, Err: ErrUnknownKind}
	}

	var s *slot
	if len(reg.idle) > 0 {
		handle := reg.idle[0]
		reg.idle[0] = 0
		reg.idle = reg.idle[1:]
		s = p.slots[handle]
	}
	var reserved Handle
	if s == nil && reg.cfg.AutoExpand && reg.created < reg.cfg.MaxSize {
		reserved = p.reserveLocked(reg)
	}
	if s == nil && reserved == 0 {
		stats := p.statsLocked(kind, reg)
		p.mu.Unlock()
		poollog.Exhausted(context.Background(), p.publisher, p.currentTick(), poollog.SlotPayload{
			Kind:   kind.String(),
			Active: stats.Active,
			Idle:   stats.Idle,
		})
		return 0, &AcquireError{Kind: kind, Err: ErrExhausted}
	}
	p.mu.Unlock()

	if reserved != 0 {
		created, err := p.buildSlot(kind, reg, reserved)
		if err != nil {
			return 0, &AcquireError{Kind: kind, Err: err}
		}
		s = created
	}

	p.mu.Lock()
	s.state = SlotActive
	s.transform = transform
	reg.active[s.handle] = struct{}{}
	stats := p.statsLocked(kind, reg)
	p.mu.Unlock()

	if p.replicator != nil {
		p.replicator.Spawned(kind, s.handle, transform)
	}
	s.behavior.OnAcquire(s.handle, transform)

	poollog.Acquired(context.Background(), p.publisher, p.currentTick(), Ref(kind, s.handle), poollog.SlotPayload{
		Kind:   kind.String(),
		Active: stats.Active,
		Idle:   stats.Idle,
	})
	return s.handle, nil
}

// Release returns an active slot to the tail of its kind's idle queue. The
// OnRelease hook runs first, then every timer keyed by the slot is cancelled
// and observers are told the entity is gone. Unknown or idle handles are
// logged and reported as ErrNotPooled without touching the registry.
func (p *Pool) Release(handle Handle) error {
	if err := p.gate.Check("pool.release"); err != nil {
		return err
	}

	p.mu.Lock()
	s, ok := p.slots[handle]
	if !ok {
		p.mu.Unlock()
		p.reportNotPooled(handle, "unknown handle")
		return ErrNotPooled
	}
	reg := p.kinds[s.kind]
	if _, active := reg.active[handle]; !active || s.state != SlotActive {
		p.mu.Unlock()
		p.reportNotPooled(handle, "handle is idle")
		return ErrNotPooled
	}
	// Leaving the active set first turns a re-entrant Release from the
	// hooks below into a NotPooled no-op.
	delete(reg.active, handle)
	p.mu.Unlock()

	s.behavior.OnRelease(handle)
	cancelled := 0
	if p.canceller != nil {
		cancelled = p.canceller.CancelAllFor(handle.String())
	}
	if p.replicator != nil {
		p.replicator.Despawned(s.kind, handle)
	}

	p.mu.Lock()
	s.state = SlotIdle
	reg.idle = append(reg.idle, handle)
	stats := p.statsLocked(s.kind, reg)
	p.mu.Unlock()

	poollog.Released(context.Background(), p.publisher, p.currentTick(), Ref(s.kind, handle), poollog.SlotPayload{
		Kind:      s.kind.String(),
		Active:    stats.Active,
		Idle:      stats.Idle,
		Cancelled: cancelled,
	})
	return nil
}

func (p *Pool) reportNotPooled(handle Handle, reason string) {
	poollog.NotPooled(context.Background(), p.publisher, p.currentTick(), poollog.NotPooledPayload{
		Handle: handle.String(),
		Reason: reason,
	})
}

// Stats reports the registry of one kind.
func (p *Pool) Stats(kind EntityKind) (Stats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	reg, ok := p.kinds[kind]
	if !ok {
		return Stats{Kind: kind}, ErrUnknownKind
	}
	return p.statsLocked(kind, reg), nil
}

func (p *Pool) statsLocked(kind EntityKind, reg *kindRegistry) Stats {
	return Stats{
		Kind:    kind,
		Created: reg.created,
		Active:  len(reg.active),
		Idle:    len(reg.idle),
		MaxSize: reg.cfg.MaxSize,
	}
}

// AllStats reports every configured kind in Kinds order.
func (p *Pool) AllStats() []Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Stats, 0, len(p.kinds))
	for _, kind := range Kinds {
		if reg, ok := p.kinds[kind]; ok {
			out = append(out, p.statsLocked(kind, reg))
		}
	}
	return out
}

// IsActive reports whether handle currently owns a live entity.
func (p *Pool) IsActive(handle Handle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.slots[handle]
	if !ok {
		return false
	}
	_, active := p.kinds[s.kind].active[handle]
	return active
}

// KindOf returns the kind of a known handle.
func (p *Pool) KindOf(handle Handle) (EntityKind, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.slots[handle]
	if !ok {
		return 0, false
	}
	return s.kind, true
}

// Behavior returns the behavior object behind a known handle.
func (p *Pool) Behavior(handle Handle) (Behavior, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.slots[handle]
	if !ok {
		return nil, false
	}
	return s.behavior, true
}

// Transform returns the authoritative placement of an active slot.
func (p *Pool) Transform(handle Handle) (Transform, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.slots[handle]
	if !ok || s.state != SlotActive {
		return Transform{}, false
	}
	return s.transform, true
}

// SetTransform moves an active slot's entity.
func (p *Pool) SetTransform(handle Handle, transform Transform) error {
	if err := p.gate.Check("pool.set_transform"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.slots[handle]
	if !ok || s.state != SlotActive {
		return ErrNotPooled
	}
	s.transform = transform
	return nil
}

// Active lists the active handles of a kind in ascending order.
func (p *Pool) Active(kind EntityKind) []Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	reg, ok := p.kinds[kind]
	if !ok {
		return nil
	}
	out := make([]Handle, 0, len(reg.active))
	for handle := range reg.active {
		out = append(out, handle)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IdleQueue returns the idle handles of a kind, head first.
func (p *Pool) IdleQueue(kind EntityKind) []Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	reg, ok := p.kinds[kind]
	if !ok {
		return nil
	}
	return append([]Handle(nil), reg.idle...)
}

// Close releases every active slot and refuses further acquires.
func (p *Pool) Close() error {
	if err := p.gate.Check("pool.close"); err != nil {
		return err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	for _, kind := range Kinds {
		for _, handle := range p.Active(kind) {
			_ = p.Release(handle)
		}
	}
	return nil
}

func entityKindFor(kind EntityKind) logging.EntityKind {
	switch kind {
	case KindProjectile:
		return logging.EntityKindProjectile
	case KindShield:
		return logging.EntityKindShield
	case KindPullAura:
		return logging.EntityKindPullAura
	case KindPickup:
		return logging.EntityKindPickup
	default:
		return logging.EntityKindUnknown
	}
}

// Ref builds the logging reference of a slot.
func Ref(kind EntityKind, handle Handle) logging.EntityRef {
	return logging.EntityRef{ID: handle.String(), Kind: entityKindFor(kind)}
}
