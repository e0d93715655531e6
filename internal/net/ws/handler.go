package ws

import (
	"context"
	nethttp "net/http"

	"github.com/gorilla/websocket"

	"fightarena/server/internal/net/proto"
	"fightarena/server/internal/telemetry"
	"fightarena/server/logging/network"
)

type HandlerConfig struct {
	Logger telemetry.Logger
}

// Handler upgrades /ws requests and pumps client messages into the hub.
type Handler struct {
	hub      *Hub
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = hub.logger
	}
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      hub,
		logger:   logger,
		upgrader: upgrader,
	}
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		nethttp.Error(w, "missing token", nethttp.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed: %v", err)
		return
	}

	sub, ok := h.hub.Subscribe(token, conn)
	if !ok {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown player")
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}
	playerID := sub.playerID

	codec := h.hub.Codec()
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.hub.drop(sub, "connection_closed")
			return
		}

		msg, err := proto.DecodeClientMessage(codec, payload)
		if err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", playerID, err)
			continue
		}

		seq := uint64(0)
		if msg.CommandSeq != nil {
			seq = *msg.CommandSeq
		}
		if seq > 0 {
			if last := sub.LastCommandSeq(); last > 0 && seq <= last {
				if err := sub.write(proto.NewCommandAck(seq, 0)); err != nil {
					h.hub.drop(sub, "write_failed")
					return
				}
				continue
			}
		}

		cmd, staged, reason := h.hub.Stage(playerID, msg)
		if !staged {
			network.CommandRejected(context.Background(), h.hub.pub, h.hub.world.Tick(), playerRef(playerID), network.CommandRejectedPayload{
				MessageType: msg.Type,
				Reason:      reason,
			})
		}

		var reply any
		switch {
		case msg.Type == proto.TypeHeartbeat && staged:
			ack, _ := proto.NewHeartbeat(cmd.IssuedAt, msg.SentAt)
			reply = ack
		case seq == 0:
		case staged:
			reply = proto.NewCommandAck(seq, cmd.OriginTick)
			sub.StoreLastCommandSeq(seq)
		default:
			reply = proto.NewCommandReject(seq, reason)
		}
		if reply == nil {
			continue
		}
		if err := sub.write(reply); err != nil {
			h.hub.drop(sub, "write_failed")
			return
		}
	}
}
