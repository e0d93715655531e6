package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"fightarena/server/logging"
)

// ZstdJSONL appends one JSON line per event to hourly zstd-compressed files
// under a base directory.
type ZstdJSONL struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// NewZstdJSONL constructs a journal sink. Files are opened lazily on the
// first write.
func NewZstdJSONL(cfg logging.JSONLConfig) *ZstdJSONL {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "events"
	}
	return &ZstdJSONL{baseDir: cfg.Dir, prefix: prefix, now: time.Now}
}

type jsonlRecord struct {
	Type      logging.EventType   `json:"type"`
	Tick      uint64              `json:"tick"`
	Time      string              `json:"time"`
	Severity  string              `json:"severity"`
	Category  string              `json:"category,omitempty"`
	Actor     logging.EntityRef   `json:"actor"`
	Targets   []logging.EntityRef `json:"targets,omitempty"`
	Payload   any                 `json:"payload,omitempty"`
	Extra     map[string]any      `json:"extra,omitempty"`
	TraceID   string              `json:"traceId,omitempty"`
	CommandID string              `json:"commandId,omitempty"`
}

// Write satisfies logging.Sink.
func (s *ZstdJSONL) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hour := s.now().UTC().Format("2006-01-02-15")
	if hour != s.curHour || s.w == nil {
		if err := s.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(jsonlRecord{
		Type:      event.Type,
		Tick:      event.Tick,
		Time:      event.Time.UTC().Format(time.RFC3339Nano),
		Severity:  event.Severity.String(),
		Category:  event.Category,
		Actor:     event.Actor,
		Targets:   event.Targets,
		Payload:   event.Payload,
		Extra:     event.Extra,
		TraceID:   event.TraceID,
		CommandID: event.CommandID,
	})
	if err != nil {
		return err
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	return s.w.WriteByte('\n')
}

// Close flushes the current file and finishes its zstd frame.
func (s *ZstdJSONL) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

// Path reports the file the sink writes to for the given time.
func (s *ZstdJSONL) Path(at time.Time) string {
	return s.pathForHour(at.UTC().Format("2006-01-02-15"))
}

func (s *ZstdJSONL) rotateLocked(hour string) error {
	if err := s.closeLocked(); err != nil {
		return err
	}
	path := s.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	s.f = f
	s.enc = enc
	s.w = bufio.NewWriterSize(enc, 64*1024)
	s.curHour = hour
	return nil
}

func (s *ZstdJSONL) closeLocked() error {
	var firstErr error
	if s.w != nil {
		firstErr = s.w.Flush()
	}
	if s.enc != nil {
		if err := s.enc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.enc = nil
	}
	if s.f != nil {
		if err := s.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.f = nil
	}
	s.w = nil
	return firstErr
}

func (s *ZstdJSONL) pathForHour(hour string) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", s.prefix, hour))
}
