package net

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fightarena/server/internal/net/proto"
	"fightarena/server/internal/net/ws"
	"fightarena/server/internal/observability"
	"fightarena/server/internal/telemetry"
	"fightarena/server/internal/world"
	"fightarena/server/logging"
)

func newTestHandler(t *testing.T, cfg HTTPHandlerConfig) (http.Handler, *world.World) {
	t.Helper()
	wcfg := world.DefaultConfig()
	wcfg.Spawner.AutoStart = false
	wcfg.Spawner.Points = nil
	if cfg.Counters == nil {
		cfg.Counters = telemetry.NewCounters()
	}
	w, err := world.New(wcfg, world.Options{Metrics: cfg.Counters})
	if err != nil {
		t.Fatalf("new world failed: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	hub := ws.NewHub(w, ws.HubConfig{Metrics: cfg.Counters, TickRate: 30})
	return NewHTTPHandler(w, hub, cfg), w
}

func TestHTTPJoinReturnsToken(t *testing.T) {
	handler, w := newTestHandler(t, HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/join", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}
	if contentType := resp.Header().Get("Content-Type"); contentType != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", contentType)
	}
	var join proto.JoinResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &join); err != nil {
		t.Fatalf("failed to decode join payload: %v", err)
	}
	if join.ID != "player-1" || join.Token == "" || join.Codec != proto.CodecJSON || join.TickRate != 30 {
		t.Fatalf("unexpected join payload: %+v", join)
	}
	if w.PlayerCount() != 1 {
		t.Fatalf("expected join to add a player")
	}
}

func TestHTTPJoinRejectsGet(t *testing.T) {
	handler, w := newTestHandler(t, HTTPHandlerConfig{})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/join", nil))
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
	if w.PlayerCount() != 0 {
		t.Fatalf("expected no player to be added")
	}
}

func TestHTTPDiagnostics(t *testing.T) {
	counters := telemetry.NewCounters()
	handler, _ := newTestHandler(t, HTTPHandlerConfig{
		Counters:    counters,
		TickRate:    30,
		RouterStats: func() logging.RouterStats { return logging.RouterStats{EventsTotal: 9} },
	})
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/join", nil))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/diagnostics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}

	var payload struct {
		Status  string `json:"status"`
		Players int    `json:"players"`
		Pools   map[string]struct {
			Created int `json:"created"`
			MaxSize int `json:"maxSize"`
		} `json:"pools"`
		Metrics map[string]uint64 `json:"metrics"`
		Events  struct {
			EventsTotal uint64
		} `json:"events"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode diagnostics: %v", err)
	}
	if payload.Status != "ok" || payload.Players != 1 {
		t.Fatalf("unexpected diagnostics: %s", resp.Body.String())
	}
	projectiles, ok := payload.Pools["projectile"]
	if !ok || projectiles.Created != 32 || projectiles.MaxSize != 256 {
		t.Fatalf("expected warmed projectile pool, got %+v", payload.Pools)
	}
	if payload.Events.EventsTotal != 9 {
		t.Fatalf("expected router stats to be surfaced, got %+v", payload.Events)
	}
	if len(payload.Metrics) == 0 {
		t.Fatalf("expected counters to be surfaced")
	}
}

func TestHTTPHealthAndPprofToggle(t *testing.T) {
	handler, _ := newTestHandler(t, HTTPHandlerConfig{})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.Code != http.StatusOK || resp.Body.String() != "ok" {
		t.Fatalf("unexpected health response: %d %q", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected pprof to be disabled by default, got %d", resp.Code)
	}

	enabled, _ := newTestHandler(t, HTTPHandlerConfig{Observability: observability.Config{EnablePprofTrace: true}})
	resp = httptest.NewRecorder()
	enabled.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected pprof index when enabled, got %d", resp.Code)
	}
}
