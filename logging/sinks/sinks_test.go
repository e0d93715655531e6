package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"fightarena/server/logging"
)

func sampleEvent() logging.Event {
	return logging.Event{
		Type:     "combat.damage",
		Tick:     42,
		Time:     time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
		Actor:    logging.EntityRef{ID: "slot-3", Kind: logging.EntityKindProjectile},
		Targets:  []logging.EntityRef{{ID: "player-1", Kind: logging.EntityKindPlayer}},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryCombat,
		Payload:  map[string]any{"amount": 25.0},
	}
}

func TestZapSinkMapsSeverityAndFields(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	sink := NewZap(zap.New(core))

	if err := sink.Write(sampleEvent()); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level, got %v", entry.Level)
	}
	if entry.Message != "combat.damage" {
		t.Fatalf("unexpected message %q", entry.Message)
	}
	fields := entry.ContextMap()
	if fields["actor"] != "projectile:slot-3" {
		t.Fatalf("unexpected actor field %v", fields["actor"])
	}
	if fields["tick"] != uint64(42) {
		t.Fatalf("unexpected tick field %v", fields["tick"])
	}
}

func TestZapSinkRespectsLevel(t *testing.T) {
	core, recorded := observer.New(zapcore.ErrorLevel)
	sink := NewZap(zap.New(core))
	if err := sink.Write(sampleEvent()); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if recorded.Len() != 0 {
		t.Fatalf("expected warn event to be filtered by error core")
	}
}

func TestZstdJSONLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sink := NewZstdJSONL(logging.JSONLConfig{Dir: dir, Prefix: "replay"})
	fixed := time.Date(2024, 5, 6, 7, 30, 0, 0, time.UTC)
	sink.now = func() time.Time { return fixed }

	first := sampleEvent()
	second := sampleEvent()
	second.Tick = 43
	if err := sink.Write(first); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := sink.Write(second); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	path := sink.Path(fixed)
	if filepath.Base(path) != "replay-2024-05-06-07.jsonl.zst" {
		t.Fatalf("unexpected file name %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader failed: %v", err)
	}
	defer dec.Close()

	var ticks []uint64
	scanner := bufio.NewScanner(dec)
	for scanner.Scan() {
		var record struct {
			Type     string `json:"type"`
			Tick     uint64 `json:"tick"`
			Severity string `json:"severity"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("decode line failed: %v", err)
		}
		if record.Type != "combat.damage" || record.Severity != "warn" {
			t.Fatalf("unexpected record %+v", record)
		}
		ticks = append(ticks, record.Tick)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(ticks) != 2 || ticks[0] != 42 || ticks[1] != 43 {
		t.Fatalf("unexpected ticks %v", ticks)
	}
}

func TestSQLiteIndexesEvents(t *testing.T) {
	sink, err := OpenSQLite(logging.SQLiteConfig{Path: filepath.Join(t.TempDir(), "audit.db")})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	ctx := context.Background()
	defer sink.Close(ctx)

	for i := 0; i < 3; i++ {
		event := sampleEvent()
		event.Tick = uint64(i)
		if err := sink.Write(event); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	if err := sink.Write(logging.Event{Type: "pool.exhausted", Time: time.Now()}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	n, err := sink.CountByType(ctx, "combat.damage")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 damage rows, got %d", n)
	}
}

func TestSQLiteRejectsEmptyPath(t *testing.T) {
	if _, err := OpenSQLite(logging.SQLiteConfig{}); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
