package proto

import (
	"fmt"
	"math"
	"strings"
	"time"

	"fightarena/server/internal/pool"
	"fightarena/server/internal/replication"
	"fightarena/server/internal/sim"
	"fightarena/server/internal/vmath"
)

const (
	// Version tracks the wire-protocol revision expected by clients.
	Version = 1

	// Type identifiers for outbound payloads.
	typeCommandAck    = "commandAck"
	typeCommandReject = "commandReject"
	typeHeartbeat     = "heartbeat"
	typeBatch         = "batch"
	typeSnapshot      = "snapshot"
)

// Client message type identifiers.
const (
	TypeFire      = "fire"
	TypeAbility   = "ability"
	TypePickup    = "pickup"
	TypeMove      = "move"
	TypeHeartbeat = "heartbeat"
)

// Exported aliases for outbound message type identifiers.
const (
	TypeBatch         = typeBatch
	TypeSnapshot      = typeSnapshot
	TypeCommandAck    = typeCommandAck
	TypeCommandReject = typeCommandReject
)

// ClientMessage captures an inbound websocket message from the client.
// Player optionally names the player the request is for; the session decides
// who sent it.
type ClientMessage struct {
	Ver        int         `json:"ver,omitempty" msgpack:"ver,omitempty"`
	Type       string      `json:"type" msgpack:"type"`
	Player     string      `json:"player,omitempty" msgpack:"player,omitempty"`
	Origin     *vmath.Vec3 `json:"origin,omitempty" msgpack:"origin,omitempty"`
	Target     *vmath.Vec3 `json:"target,omitempty" msgpack:"target,omitempty"`
	Ability    string      `json:"ability,omitempty" msgpack:"ability,omitempty"`
	Handle     string      `json:"handle,omitempty" msgpack:"handle,omitempty"`
	SentAt     int64       `json:"sentAt,omitempty" msgpack:"sentAt,omitempty"`
	CommandSeq *uint64     `json:"seq,omitempty" msgpack:"seq,omitempty"`
}

// DecodeClientMessage converts a raw payload into a structured message.
func DecodeClientMessage(codec Codec, payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := codec.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("unsupported client protocol version %d", msg.Ver)
	}
	return msg, nil
}

// ClientCommand captures the simulation command carried by a message. Origin
// metadata and the sender are stamped by the session that accepts it.
func ClientCommand(msg ClientMessage) (sim.Command, bool) {
	cmd := sim.Command{PlayerID: strings.TrimSpace(msg.Player)}
	switch msg.Type {
	case TypeFire:
		if msg.Target == nil {
			return sim.Command{}, false
		}
		fire := &sim.FireCommand{Target: *msg.Target, Origin: vmath.V(math.NaN(), math.NaN(), math.NaN())}
		if msg.Origin != nil {
			fire.Origin = *msg.Origin
		}
		cmd.Type = sim.CommandFire
		cmd.Fire = fire
	case TypeAbility:
		if msg.Ability == "" {
			return sim.Command{}, false
		}
		cmd.Type = sim.CommandAbility
		cmd.Ability = &sim.AbilityCommand{Ability: msg.Ability}
	case TypePickup:
		handle, err := pool.ParseHandle(msg.Handle)
		if err != nil {
			return sim.Command{}, false
		}
		cmd.Type = sim.CommandPickup
		cmd.Pickup = &sim.PickupCommand{Handle: handle}
	case TypeMove:
		if msg.Target == nil {
			return sim.Command{}, false
		}
		cmd.Type = sim.CommandMove
		cmd.Move = &sim.MoveCommand{Target: *msg.Target}
	case TypeHeartbeat:
		cmd.Type = sim.CommandHeartbeat
		cmd.Heartbeat = &sim.HeartbeatCommand{ClientSent: msg.SentAt}
	default:
		return sim.Command{}, false
	}
	return cmd, true
}

// CommandAck describes an acknowledgement of a queued command.
type CommandAck struct {
	Ver  int    `json:"ver" msgpack:"ver"`
	Type string `json:"type" msgpack:"type"`
	Seq  uint64 `json:"seq" msgpack:"seq"`
	Tick uint64 `json:"tick,omitempty" msgpack:"tick,omitempty"`
}

// NewCommandAck stamps the protocol fields.
func NewCommandAck(seq, tick uint64) CommandAck {
	return CommandAck{Ver: Version, Type: typeCommandAck, Seq: seq, Tick: tick}
}

// CommandReject reports a command that never reached the simulation.
type CommandReject struct {
	Ver    int    `json:"ver" msgpack:"ver"`
	Type   string `json:"type" msgpack:"type"`
	Seq    uint64 `json:"seq" msgpack:"seq"`
	Reason string `json:"reason" msgpack:"reason"`
	Retry  bool   `json:"retry,omitempty" msgpack:"retry,omitempty"`
}

// NewCommandReject stamps the protocol fields. Queue throttling is the only
// retryable reason.
func NewCommandReject(seq uint64, reason string) CommandReject {
	return CommandReject{
		Ver:    Version,
		Type:   typeCommandReject,
		Seq:    seq,
		Reason: reason,
		Retry:  reason == sim.CommandRejectQueueLimit,
	}
}

// Heartbeat answers a client heartbeat.
type Heartbeat struct {
	Ver        int    `json:"ver" msgpack:"ver"`
	Type       string `json:"type" msgpack:"type"`
	ServerTime int64  `json:"serverTime" msgpack:"serverTime"`
	ClientTime int64  `json:"clientTime" msgpack:"clientTime"`
	RTTMillis  int64  `json:"rtt" msgpack:"rtt"`
}

// NewHeartbeat computes the round trip from the client's send time.
func NewHeartbeat(now time.Time, clientSent int64) (Heartbeat, time.Duration) {
	var rtt time.Duration
	if clientSent > 0 {
		rtt = now.Sub(time.UnixMilli(clientSent))
		if rtt < 0 {
			rtt = 0
		}
	}
	return Heartbeat{
		Ver:        Version,
		Type:       typeHeartbeat,
		ServerTime: now.UnixMilli(),
		ClientTime: clientSent,
		RTTMillis:  rtt.Milliseconds(),
	}, rtt
}

// BatchMessage carries one tick of replication. Snapshots use the same shape
// with Type set to TypeSnapshot.
type BatchMessage struct {
	Ver   int               `json:"ver" msgpack:"ver"`
	Type  string            `json:"type" msgpack:"type"`
	Batch replication.Batch `json:"batch" msgpack:"batch"`
}

// NewBatchMessage wraps a per-tick batch.
func NewBatchMessage(batch replication.Batch) BatchMessage {
	return BatchMessage{Ver: Version, Type: typeBatch, Batch: batch}
}

// NewSnapshotMessage wraps the full state sent to a new subscriber.
func NewSnapshotMessage(batch replication.Batch) BatchMessage {
	return BatchMessage{Ver: Version, Type: typeSnapshot, Batch: batch}
}

// JoinResponse is returned by /join.
type JoinResponse struct {
	Ver      int    `json:"ver"`
	ID       string `json:"id"`
	Token    string `json:"token"`
	Codec    string `json:"codec"`
	TickRate int    `json:"tickRate"`
}

// ServerMessage is the generic outbound envelope decoded by clients and
// tests. Only the fields of Type are populated.
type ServerMessage struct {
	Ver        int               `json:"ver" msgpack:"ver"`
	Type       string            `json:"type" msgpack:"type"`
	Seq        uint64            `json:"seq,omitempty" msgpack:"seq,omitempty"`
	Tick       uint64            `json:"tick,omitempty" msgpack:"tick,omitempty"`
	Reason     string            `json:"reason,omitempty" msgpack:"reason,omitempty"`
	Retry      bool              `json:"retry,omitempty" msgpack:"retry,omitempty"`
	ServerTime int64             `json:"serverTime,omitempty" msgpack:"serverTime,omitempty"`
	ClientTime int64             `json:"clientTime,omitempty" msgpack:"clientTime,omitempty"`
	RTTMillis  int64             `json:"rtt,omitempty" msgpack:"rtt,omitempty"`
	Batch      replication.Batch `json:"batch,omitempty" msgpack:"batch,omitempty"`
}

// DecodeServerMessage parses an outbound payload.
func DecodeServerMessage(codec Codec, payload []byte) (ServerMessage, error) {
	var msg ServerMessage
	err := codec.Unmarshal(payload, &msg)
	return msg, err
}
