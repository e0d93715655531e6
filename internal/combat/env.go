package combat

import (
	"strings"
	"time"

	"fightarena/server/internal/authority"
	"fightarena/server/internal/cooldown"
	"fightarena/server/internal/physics"
	"fightarena/server/internal/pool"
	"fightarena/server/internal/replication"
	"fightarena/server/internal/state"
	"fightarena/server/internal/vmath"
	"fightarena/server/logging"
)

// Owner is the view of a player that bound entities need.
type Owner interface {
	PlayerID() state.PlayerID
	Position() vmath.Vec3
	Accepts(t state.CollectableType) bool
}

// OwnerResolver looks a player up by its stable id. A missing player is
// reported with ok=false, never with a stale value.
type OwnerResolver interface {
	ResolveOwner(id state.PlayerID) (Owner, bool)
}

// OwnerResolverFunc adapts a function to OwnerResolver.
type OwnerResolverFunc func(id state.PlayerID) (Owner, bool)

func (f OwnerResolverFunc) ResolveOwner(id state.PlayerID) (Owner, bool) {
	return f(id)
}

// Bodies is the part of physics.Space that entities with their own
// collider use.
type Bodies interface {
	Add(body *physics.Body)
	Remove(id string)
	Move(id string, center vmath.Vec3) bool
}

// Env holds the collaborators shared by every combat entity. One Env is
// built by the world and handed to each pool factory.
type Env struct {
	Pool      *pool.Pool
	Timers    *cooldown.Timers
	Query     physics.Query
	Bodies    Bodies
	Journal   *replication.Journal
	Owners    OwnerResolver
	Gate      *authority.Gate
	Publisher logging.Publisher
	Tick      func() uint64
}

func (e *Env) currentTick() uint64 {
	if e == nil || e.Tick == nil {
		return 0
	}
	return e.Tick()
}

func (e *Env) publisher() logging.Publisher {
	if e == nil {
		return logging.NopPublisher()
	}
	return logging.OrNop(e.Publisher)
}

func (e *Env) notify(n replication.Notification) {
	if e != nil && e.Journal != nil {
		e.Journal.Notify(n)
	}
}

func (e *Env) patchSink() replication.PatchSink {
	if e == nil || e.Journal == nil {
		return nil
	}
	return e.Journal
}

func (e *Env) gate() *authority.Gate {
	if e == nil {
		return nil
	}
	return e.Gate
}

func (e *Env) resolve(id state.PlayerID) (Owner, bool) {
	if e == nil || e.Owners == nil || id == 0 {
		return nil, false
	}
	return e.Owners.ResolveOwner(id)
}

// Ticker is implemented by behaviors that advance on the simulation tick.
type Ticker interface {
	Tick(dt time.Duration)
}

func colliderRef(id string) logging.EntityRef {
	switch {
	case id == "":
		return logging.EntityRef{}
	case strings.HasPrefix(id, "player-"):
		return logging.EntityRef{ID: id, Kind: logging.EntityKindPlayer}
	default:
		return logging.EntityRef{ID: id, Kind: logging.EntityKindUnknown}
	}
}
