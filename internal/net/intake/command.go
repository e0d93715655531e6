package intake

import (
	"time"

	"fightarena/server/internal/net/proto"
	"fightarena/server/internal/sim"
	"fightarena/server/internal/state"
)

const (
	// CommandRejectInvalidAction marks a message that maps to no command.
	CommandRejectInvalidAction = "invalid_action"
	// CommandRejectUnknownActor marks a sender without a live player.
	CommandRejectUnknownActor = "unknown_actor"
)

// Enqueuer accepts staged commands for the next tick.
type Enqueuer interface {
	Enqueue(sim.Command) (bool, string)
}

// CommandContext carries what staging needs from the running server.
type CommandContext struct {
	Engine    Enqueuer
	HasPlayer func(string) bool
	Tick      func() uint64
	Now       func() time.Time
}

// StageClientCommand turns a decoded message into a command from playerID
// and queues it. The sender is always the session's player, whatever the
// message claims. The returned reason is empty on success.
func StageClientCommand(ctx CommandContext, playerID string, msg proto.ClientMessage) (sim.Command, bool, string) {
	var zero sim.Command

	command, ok := proto.ClientCommand(msg)
	if !ok {
		return zero, false, CommandRejectInvalidAction
	}
	if command.Type == sim.CommandAbility {
		if _, ok := state.ParseAbilityID(command.Ability.Ability); !ok {
			return zero, false, CommandRejectInvalidAction
		}
	}

	if ctx.HasPlayer != nil && !ctx.HasPlayer(playerID) {
		return zero, false, CommandRejectUnknownActor
	}

	command.ActorID = playerID
	if ctx.Tick != nil {
		command.OriginTick = ctx.Tick()
	}
	if ctx.Now != nil {
		command.IssuedAt = ctx.Now()
	} else {
		command.IssuedAt = time.Now()
	}
	if command.Heartbeat != nil {
		_, rtt := proto.NewHeartbeat(command.IssuedAt, command.Heartbeat.ClientSent)
		command.Heartbeat.ReceivedAt = command.IssuedAt
		command.Heartbeat.RTT = rtt
	}

	if ctx.Engine == nil {
		return zero, false, sim.CommandRejectQueueFull
	}
	if ok, reason := ctx.Engine.Enqueue(command); !ok {
		return zero, false, reason
	}

	return command, true, ""
}
