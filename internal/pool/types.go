package pool

import (
	"errors"
	"strconv"
	"strings"

	"fightarena/server/internal/vmath"
)

// EntityKind identifies a pooled object category.
type EntityKind uint8

const (
	KindProjectile EntityKind = iota + 1
	KindShield
	KindPullAura
	KindPickup
)

// Kinds lists every pooled kind in warm-up order.
var Kinds = []EntityKind{KindProjectile, KindShield, KindPullAura, KindPickup}

func (k EntityKind) String() string {
	switch k {
	case KindProjectile:
		return "projectile"
	case KindShield:
		return "shield"
	case KindPullAura:
		return "pull_aura"
	case KindPickup:
		return "pickup"
	default:
		return "kind-" + strconv.Itoa(int(k))
	}
}

// ParseKind maps a config key onto a kind.
func ParseKind(value string) (EntityKind, bool) {
	for _, kind := range Kinds {
		if kind.String() == value {
			return kind, true
		}
	}
	return 0, false
}

// Handle is the stable id of a pool slot. It survives recycling; the zero
// value never names a slot.
type Handle uint64

// String is also the owner key under which a slot's timers are scheduled.
func (h Handle) String() string {
	return "slot-" + strconv.FormatUint(uint64(h), 10)
}

// ErrInvalidHandle is returned by ParseHandle for text that names no slot.
var ErrInvalidHandle = errors.New("invalid handle")

// ParseHandle accepts both the String form ("slot-7") and the bare number.
func ParseHandle(raw string) (Handle, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(raw), "slot-"), 10, 64)
	if err != nil || n == 0 {
		return 0, ErrInvalidHandle
	}
	return Handle(n), nil
}

// SlotState is Idle or Active.
type SlotState uint8

const (
	SlotIdle SlotState = iota
	SlotActive
)

func (s SlotState) String() string {
	if s == SlotActive {
		return "active"
	}
	return "idle"
}

// Transform is the authoritative placement of a slot's entity.
type Transform struct {
	Position vmath.Vec3 `json:"position" msgpack:"position"`
	Rotation vmath.Quat `json:"rotation" msgpack:"rotation"`
}

// Config bounds one kind's slots.
type Config struct {
	InitialSize int  `json:"initialSize" yaml:"initial_size" toml:"initial_size"`
	MaxSize     int  `json:"maxSize" yaml:"max_size" toml:"max_size"`
	AutoExpand  bool `json:"autoExpand" yaml:"auto_expand" toml:"auto_expand"`
}

// Behavior is the per-slot entity logic. The pool invokes the hooks
// synchronously on acquire and release.
type Behavior interface {
	OnAcquire(handle Handle, transform Transform)
	OnRelease(handle Handle)
}

// Factory builds the behavior object for a new slot.
type Factory func(handle Handle) Behavior

// Replicator makes entities visible or invisible to observers.
type Replicator interface {
	Spawned(kind EntityKind, handle Handle, transform Transform)
	Despawned(kind EntityKind, handle Handle)
}

// Canceller drops every pending timer registered under an owner key.
type Canceller interface {
	CancelAllFor(owner string) int
}

// Stats summarises one kind's registry.
type Stats struct {
	Kind    EntityKind `json:"kind"`
	Created int        `json:"created"`
	Active  int        `json:"active"`
	Idle    int        `json:"idle"`
	MaxSize int        `json:"maxSize"`
}
