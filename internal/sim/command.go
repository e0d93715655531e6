package sim

import (
	"time"

	"fightarena/server/internal/pool"
	"fightarena/server/internal/vmath"
)

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandFire      CommandType = "Fire"
	CommandAbility   CommandType = "Ability"
	CommandPickup    CommandType = "Pickup"
	CommandMove      CommandType = "Move"
	CommandHeartbeat CommandType = "Heartbeat"
)

// FireCommand carries the client's muzzle and aim points. Both are hints; the
// world re-derives the origin from the player's transform.
type FireCommand struct {
	Origin vmath.Vec3 `json:"origin"`
	Target vmath.Vec3 `json:"target"`
}

// AbilityCommand identifies the ability to activate.
type AbilityCommand struct {
	Ability string `json:"ability"`
}

// PickupCommand names the pickup slot the client touched.
type PickupCommand struct {
	Handle pool.Handle `json:"handle"`
}

// MoveCommand carries the position the client wants to walk to.
type MoveCommand struct {
	Target vmath.Vec3 `json:"target"`
}

// HeartbeatCommand updates connectivity metadata for an actor.
type HeartbeatCommand struct {
	ReceivedAt time.Time     `json:"receivedAt"`
	ClientSent int64         `json:"clientSent"`
	RTT        time.Duration `json:"rtt"`
}

// Command represents an intent captured for processing on the next tick.
// ActorID is the sender, stamped by the session that received the message.
// PlayerID is the player the client addressed; empty means the sender's own.
type Command struct {
	OriginTick uint64            `json:"originTick"`
	ActorID    string            `json:"actorId"`
	PlayerID   string            `json:"playerId,omitempty"`
	Type       CommandType       `json:"type"`
	IssuedAt   time.Time         `json:"issuedAt"`
	Fire       *FireCommand      `json:"fire,omitempty"`
	Ability    *AbilityCommand   `json:"ability,omitempty"`
	Pickup     *PickupCommand    `json:"pickup,omitempty"`
	Move       *MoveCommand      `json:"move,omitempty"`
	Heartbeat  *HeartbeatCommand `json:"heartbeat,omitempty"`
	// Arrival counts the sender's accepted commands from 1, stamped by the
	// command buffer.
	Arrival uint64 `json:"arrival,omitempty"`
}

// Target returns the player the command addresses.
func (c Command) Target() string {
	if c.PlayerID != "" {
		return c.PlayerID
	}
	return c.ActorID
}
