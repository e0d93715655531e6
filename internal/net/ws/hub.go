package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fightarena/server/internal/net/intake"
	"fightarena/server/internal/net/proto"
	"fightarena/server/internal/replication"
	"fightarena/server/internal/sim"
	"fightarena/server/internal/state"
	"fightarena/server/internal/telemetry"
	"fightarena/server/internal/world"
	"fightarena/server/logging"
	"fightarena/server/logging/network"
)

const (
	sessionsMetricKey       = "arena_ws_sessions"
	broadcastBytesMetricKey = "arena_ws_broadcast_bytes_total"
	broadcastFailMetricKey  = "arena_ws_write_failures_total"
)

// HubConfig wires the hub into the process.
type HubConfig struct {
	Codec        proto.Codec
	Logger       telemetry.Logger
	Publisher    logging.Publisher
	Metrics      telemetry.Metrics
	Now          func() time.Time
	TickRate     int
	WriteTimeout time.Duration
}

// Hub owns the websocket sessions attached to the world's players. It fans
// each tick's replication batch out to every session and turns a dropped
// connection into a player removal.
type Hub struct {
	world   *world.World
	loop    *sim.Loop
	codec   proto.Codec
	logger  telemetry.Logger
	pub     logging.Publisher
	metrics telemetry.Metrics
	now     func() time.Time
	cfg     HubConfig

	mu       sync.Mutex
	tokens   map[string]string
	sessions map[string]*session
}

// NewHub builds a hub for w. Commands are dropped until AttachLoop is called.
func NewHub(w *world.World, cfg HubConfig) *Hub {
	codec := cfg.Codec
	if codec == nil {
		codec, _ = proto.CodecFor(proto.CodecJSON)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Hub{
		world:    w,
		codec:    codec,
		logger:   cfg.Logger,
		pub:      logging.OrNop(cfg.Publisher),
		metrics:  cfg.Metrics,
		now:      now,
		cfg:      cfg,
		tokens:   make(map[string]string),
		sessions: make(map[string]*session),
	}
}

// AttachLoop sets the loop that receives staged commands and serves
// snapshots to new subscribers.
func (h *Hub) AttachLoop(loop *sim.Loop) {
	h.mu.Lock()
	h.loop = loop
	h.mu.Unlock()
}

// Codec returns the wire encoding of every session.
func (h *Hub) Codec() proto.Codec { return h.codec }

// Join adds a player and returns the token its websocket must present.
func (h *Hub) Join() (proto.JoinResponse, error) {
	player, err := h.world.AddPlayer()
	if err != nil {
		return proto.JoinResponse{}, fmt.Errorf("join: %w", err)
	}
	id := player.PlayerID().String()
	token := uuid.NewString()

	h.mu.Lock()
	h.tokens[token] = id
	h.mu.Unlock()

	return proto.JoinResponse{
		Ver:      proto.Version,
		ID:       id,
		Token:    token,
		Codec:    h.codec.Name(),
		TickRate: h.cfg.TickRate,
	}, nil
}

// Subscribe attaches conn to the player the token was issued for. A second
// subscription for the same player replaces the first.
//
// The session receives no batches until its snapshot has been written. With
// a loop attached the snapshot is taken in AfterStep, between ticks, so
// every batch the session sees is newer than its snapshot.
func (h *Hub) Subscribe(token string, conn *websocket.Conn) (*session, bool) {
	h.mu.Lock()
	playerID, ok := h.tokens[token]
	if !ok || !h.hasPlayer(playerID) {
		h.mu.Unlock()
		return nil, false
	}
	sub := newSession(playerID, conn, h.codec, h.cfg.WriteTimeout)
	previous := h.sessions[playerID]
	h.sessions[playerID] = sub
	count := len(h.sessions)
	loop := h.loop
	h.mu.Unlock()

	if previous != nil {
		previous.close()
	}
	h.storeSessions(count)
	network.SessionOpened(context.Background(), h.pub, h.world.Tick(), playerRef(playerID), network.SessionPayload{Codec: h.codec.Name()})
	if loop == nil {
		h.attach(sub, h.world.Snapshot())
	}
	return sub, true
}

// attach writes the snapshot and then lets broadcasts reach sub.
func (h *Hub) attach(sub *session, snapshot replication.Batch) {
	if err := sub.write(proto.NewSnapshotMessage(snapshot)); err != nil {
		if h.logger != nil {
			h.logger.Printf("failed to send initial state to %s: %v", sub.playerID, err)
		}
		h.drop(sub, "write_failed")
		return
	}
	h.mu.Lock()
	if h.sessions[sub.playerID] == sub {
		sub.ready = true
	}
	h.mu.Unlock()
}

// flushPending attaches every session still waiting for its snapshot. It
// runs on the loop goroutine after the tick's batch went out.
func (h *Hub) flushPending() {
	h.mu.Lock()
	var pending []*session
	for _, sub := range h.sessions {
		if !sub.ready {
			pending = append(pending, sub)
		}
	}
	h.mu.Unlock()
	if len(pending) == 0 {
		return
	}
	snapshot := h.world.Snapshot()
	for _, sub := range pending {
		h.attach(sub, snapshot)
	}
}

// Stage queues a decoded message as a command from playerID.
func (h *Hub) Stage(playerID string, msg proto.ClientMessage) (sim.Command, bool, string) {
	h.mu.Lock()
	loop := h.loop
	h.mu.Unlock()
	ctx := intake.CommandContext{
		HasPlayer: h.hasPlayer,
		Tick:      h.world.Tick,
		Now:       h.now,
	}
	if loop != nil {
		ctx.Engine = loop
	}
	return intake.StageClientCommand(ctx, playerID, msg)
}

// AfterStep is the loop hook that broadcasts each tick and then hands
// waiting sessions their snapshot.
func (h *Hub) AfterStep(result sim.LoopStepResult) {
	h.Broadcast(result.Batch)
	h.flushPending()
}

// Broadcast sends batch to every session that has its snapshot. Sessions
// whose write fails are disconnected and their players removed.
func (h *Hub) Broadcast(batch replication.Batch) {
	if batch.Empty() {
		return
	}
	data, err := h.codec.Marshal(proto.NewBatchMessage(batch))
	if err != nil {
		if h.logger != nil {
			h.logger.Printf("failed to encode batch for tick %d: %v", batch.Tick, err)
		}
		return
	}

	h.mu.Lock()
	subs := make([]*session, 0, len(h.sessions))
	for _, sub := range h.sessions {
		if sub.ready {
			subs = append(subs, sub)
		}
	}
	h.mu.Unlock()

	var failed []*session
	for _, sub := range subs {
		if err := sub.writeRaw(data); err != nil {
			failed = append(failed, sub)
			continue
		}
		if h.metrics != nil {
			h.metrics.Add(broadcastBytesMetricKey, uint64(len(data)))
		}
	}
	for _, sub := range failed {
		if h.metrics != nil {
			h.metrics.Add(broadcastFailMetricKey, 1)
		}
		h.drop(sub, "write_failed")
	}
}

// Disconnect closes the player's session and removes the player.
func (h *Hub) Disconnect(playerID, reason string) bool {
	h.mu.Lock()
	sub := h.sessions[playerID]
	h.mu.Unlock()
	if sub == nil {
		return h.removePlayer(playerID, reason)
	}
	return h.drop(sub, reason)
}

// SessionCount reports attached sessions.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close ends every session without removing players.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.sessions
	h.sessions = make(map[string]*session)
	h.mu.Unlock()
	for _, sub := range subs {
		sub.close()
	}
	h.storeSessions(0)
}

func (h *Hub) drop(sub *session, reason string) bool {
	h.mu.Lock()
	current, ok := h.sessions[sub.playerID]
	if ok && current == sub {
		delete(h.sessions, sub.playerID)
	}
	count := len(h.sessions)
	h.mu.Unlock()
	if !ok || current != sub {
		sub.close()
		return false
	}

	sub.close()
	h.storeSessions(count)
	network.SessionClosed(context.Background(), h.pub, h.world.Tick(), playerRef(sub.playerID), network.SessionPayload{
		Codec:  h.codec.Name(),
		Reason: reason,
	})
	return h.removePlayer(sub.playerID, reason)
}

func (h *Hub) removePlayer(playerID, reason string) bool {
	h.mu.Lock()
	for token, id := range h.tokens {
		if id == playerID {
			delete(h.tokens, token)
		}
	}
	loop := h.loop
	h.mu.Unlock()
	loop.Forget(playerID)
	id, err := state.ParsePlayerID(playerID)
	if err != nil {
		return false
	}
	return h.world.RemovePlayer(id, reason)
}

func (h *Hub) hasPlayer(playerID string) bool {
	id, err := state.ParsePlayerID(playerID)
	if err != nil {
		return false
	}
	_, ok := h.world.Player(id)
	return ok
}

func (h *Hub) storeSessions(count int) {
	if h.metrics != nil {
		h.metrics.Store(sessionsMetricKey, uint64(count))
	}
}

func playerRef(id string) logging.EntityRef {
	return logging.EntityRef{ID: id, Kind: logging.EntityKindPlayer}
}
