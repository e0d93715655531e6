package world

import (
	"errors"

	"fightarena/server/internal/authority"
	"fightarena/server/internal/cooldown"
)

var (
	// ErrUnknownPlayer is returned when a command addresses a player that is
	// not in the world.
	ErrUnknownPlayer = errors.New("unknown player")
	// ErrPlayerDead is returned for requests from a defeated player.
	ErrPlayerDead = errors.New("player is dead")
	// ErrNoCharge is returned when an ability is ready but its charge has not
	// been collected.
	ErrNoCharge = errors.New("ability charge missing")
	// ErrPickupUnavailable is returned for a pickup handle that is stale,
	// already collected, or not a pickup.
	ErrPickupUnavailable = errors.New("pickup unavailable")
	// ErrInvalidTarget is returned for a fire request with a non-finite aim.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrUnknownCommand is returned for a command type the world does not
	// handle.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("world closed")

	// ErrAuthorityViolation is authority.ErrViolation.
	ErrAuthorityViolation = authority.ErrViolation
	// ErrNotReady is cooldown.ErrNotReady.
	ErrNotReady = cooldown.ErrNotReady
)

// controlFlow reports errors that are expected outcomes of a request rather
// than faults worth surfacing from Apply.
func controlFlow(err error) bool {
	return errors.Is(err, ErrNotReady) ||
		errors.Is(err, ErrNoCharge) ||
		errors.Is(err, ErrPickupUnavailable) ||
		errors.Is(err, ErrPlayerDead)
}
