// Package cooldown runs the per-owner ability state machine and the
// owner-keyed timer primitive that entity lifetimes and intervals use.
package cooldown

import (
	"errors"
	"sort"
	"time"

	"fightarena/server/internal/state"
)

var (
	// ErrNotReady is returned by Trigger while the ability is cooling.
	ErrNotReady = errors.New("ability not ready")
	// ErrUnknownAbility is returned for an owner/ability pair that was never
	// registered.
	ErrUnknownAbility = errors.New("unknown ability")
)

// State is the observable condition of one ability. Available implies
// Elapsed == 0.
type State struct {
	Available bool          `json:"available"`
	Elapsed   time.Duration `json:"elapsed"`
	Total     time.Duration `json:"total"`
}

// Listener is told about every Ready/Cooling transition.
type Listener func(owner string, ability state.AbilityID, st State)

type key struct {
	owner   string
	ability state.AbilityID
}

type entry struct {
	available bool
	elapsed   time.Duration
	total     time.Duration
}

func (e *entry) snapshot() State {
	return State{Available: e.available, Elapsed: e.elapsed, Total: e.total}
}

// Engine owns every (owner, ability) state machine. Each pair has at most one
// countdown, advanced only by Tick.
type Engine struct {
	entries  map[key]*entry
	listener Listener
}

// NewEngine constructs an engine. listener may be nil.
func NewEngine(listener Listener) *Engine {
	return &Engine{entries: make(map[key]*entry), listener: listener}
}

// Register creates a Ready entry with the given cooldown. Registering an
// existing pair changes its total and leaves its state alone.
func (e *Engine) Register(owner string, ability state.AbilityID, total time.Duration) {
	k := key{owner: owner, ability: ability}
	if existing, ok := e.entries[k]; ok {
		existing.total = max(total, 0)
		return
	}
	e.entries[k] = &entry{available: true, total: max(total, 0)}
}

// Trigger moves a Ready ability to Cooling(0). While cooling it returns
// ErrNotReady and leaves elapsed and total untouched.
func (e *Engine) Trigger(owner string, ability state.AbilityID) error {
	en, ok := e.entries[key{owner: owner, ability: ability}]
	if !ok {
		return ErrUnknownAbility
	}
	if !en.available {
		return ErrNotReady
	}
	en.available = false
	en.elapsed = 0
	e.notify(owner, ability, en)
	return nil
}

// Ready reports whether the pair is registered and available.
func (e *Engine) Ready(owner string, ability state.AbilityID) bool {
	en, ok := e.entries[key{owner: owner, ability: ability}]
	return ok && en.available
}

// State returns a copy of the pair's state.
func (e *Engine) State(owner string, ability state.AbilityID) (State, bool) {
	en, ok := e.entries[key{owner: owner, ability: ability}]
	if !ok {
		return State{}, false
	}
	return en.snapshot(), true
}

// Progress is elapsed/total while cooling and 1 when Ready. Unregistered
// pairs report 0.
func (e *Engine) Progress(owner string, ability state.AbilityID) float64 {
	en, ok := e.entries[key{owner: owner, ability: ability}]
	if !ok {
		return 0
	}
	if en.available || en.total <= 0 {
		return 1
	}
	p := float64(en.elapsed) / float64(en.total)
	if p > 1 {
		return 1
	}
	return p
}

// Tick advances every cooling entry by dt and returns the pairs that became
// Ready. Listeners run in owner then ability order.
func (e *Engine) Tick(dt time.Duration) int {
	if dt < 0 {
		dt = 0
	}
	var finished []key
	for k, en := range e.entries {
		if en.available {
			continue
		}
		if en.elapsed+dt < en.total {
			en.elapsed += dt
			continue
		}
		en.available = true
		en.elapsed = 0
		finished = append(finished, k)
	}
	sort.Slice(finished, func(i, j int) bool {
		if finished[i].owner != finished[j].owner {
			return finished[i].owner < finished[j].owner
		}
		return finished[i].ability < finished[j].ability
	})
	for _, k := range finished {
		if en, ok := e.entries[k]; ok {
			e.notify(k.owner, k.ability, en)
		}
	}
	return len(finished)
}

// Remove discards every entry of owner, cancelling any countdown in
// flight, and returns how many were removed.
func (e *Engine) Remove(owner string) int {
	removed := 0
	for k := range e.entries {
		if k.owner == owner {
			delete(e.entries, k)
			removed++
		}
	}
	return removed
}

// Len counts registered pairs.
func (e *Engine) Len() int {
	return len(e.entries)
}

func (e *Engine) notify(owner string, ability state.AbilityID, en *entry) {
	if e.listener != nil {
		e.listener(owner, ability, en.snapshot())
	}
}
