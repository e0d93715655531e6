package net

import (
	"encoding/json"
	nethttp "net/http"
	"net/http/pprof"
	"time"

	"fightarena/server/internal/net/ws"
	"fightarena/server/internal/observability"
	"fightarena/server/internal/pool"
	"fightarena/server/internal/telemetry"
	"fightarena/server/internal/world"
	"fightarena/server/logging"
)

type HTTPHandlerConfig struct {
	Logger        telemetry.Logger
	Observability observability.Config
	// Counters is surfaced on /diagnostics when set.
	Counters *telemetry.Counters
	// RouterStats reports event router throughput on /diagnostics.
	RouterStats func() logging.RouterStats
	TickRate    int
}

// NewHTTPHandler serves the join, websocket and diagnostics endpoints.
func NewHTTPHandler(w *world.World, hub *ws.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(rw nethttp.ResponseWriter, r *nethttp.Request) {
		rw.Header().Set("Content-Type", "text/plain")
		rw.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(rw nethttp.ResponseWriter, r *nethttp.Request) {
		pools := make(map[string]pool.Stats)
		for _, stats := range w.PoolStats() {
			pools[stats.Kind.String()] = stats
		}
		payload := struct {
			Status     string                `json:"status"`
			ServerTime int64                 `json:"serverTime"`
			Tick       uint64                `json:"tick"`
			TickRate   int                   `json:"tickRate"`
			Players    int                   `json:"players"`
			Sessions   int                   `json:"sessions"`
			Pools      map[string]pool.Stats `json:"pools"`
			Metrics    map[string]uint64     `json:"metrics,omitempty"`
			Events     *logging.RouterStats  `json:"events,omitempty"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Tick:       w.Tick(),
			TickRate:   cfg.TickRate,
			Players:    w.PlayerCount(),
			Sessions:   hub.SessionCount(),
			Pools:      pools,
			Metrics:    cfg.Counters.Snapshot(),
		}
		if cfg.RouterStats != nil {
			stats := cfg.RouterStats()
			payload.Events = &stats
		}

		data, err := json.Marshal(payload)
		if err != nil {
			httpError(rw, "failed to encode", nethttp.StatusInternalServerError)
			return
		}

		rw.Header().Set("Content-Type", "application/json")
		rw.Write(data)
	})

	mux.HandleFunc("/join", func(rw nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(rw, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		join, err := hub.Join()
		if err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Printf("join failed: %v", err)
			}
			httpError(rw, "join failed", nethttp.StatusServiceUnavailable)
			return
		}
		data, err := json.Marshal(join)
		if err != nil {
			httpError(rw, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		rw.Write(data)
	})

	mux.HandleFunc("/ws", ws.NewHandler(hub, ws.HandlerConfig{Logger: cfg.Logger}).Handle)

	if cfg.Observability.EnablePprofTrace {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return mux
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
