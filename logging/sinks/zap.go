package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"fightarena/server/logging"
)

// Zap renders events as structured zap entries.
type Zap struct {
	logger *zap.Logger
}

// NewZap wraps logger. A nil logger discards everything.
func NewZap(logger *zap.Logger) *Zap {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Zap{logger: logger.Named("events")}
}

// Write satisfies logging.Sink.
func (s *Zap) Write(event logging.Event) error {
	level := levelFor(event.Severity)
	ce := s.logger.Check(level, string(event.Type))
	if ce == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 8)
	fields = append(fields,
		zap.Uint64("tick", event.Tick),
		zap.String("actor", formatEntity(event.Actor)),
	)
	if event.Category != "" {
		fields = append(fields, zap.String("category", event.Category))
	}
	if len(event.Targets) > 0 {
		targets := make([]string, 0, len(event.Targets))
		for _, target := range event.Targets {
			targets = append(targets, formatEntity(target))
		}
		fields = append(fields, zap.Strings("targets", targets))
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}
	if len(event.Extra) > 0 {
		fields = append(fields, zap.Any("extra", event.Extra))
	}
	if event.TraceID != "" {
		fields = append(fields, zap.String("trace_id", event.TraceID))
	}
	if event.CommandID != "" {
		fields = append(fields, zap.String("command_id", event.CommandID))
	}
	ce.Write(fields...)
	return nil
}

// Close flushes buffered entries.
func (s *Zap) Close(context.Context) error {
	// Sync on a terminal returns EINVAL on some platforms.
	_ = s.logger.Sync()
	return nil
}

func levelFor(sev logging.Severity) zapcore.Level {
	switch sev {
	case logging.SeverityDebug:
		return zapcore.DebugLevel
	case logging.SeverityWarn:
		return zapcore.WarnLevel
	case logging.SeverityError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func formatEntity(ref logging.EntityRef) string {
	if ref.ID == "" {
		return string(ref.Kind)
	}
	if ref.Kind == "" {
		return ref.ID
	}
	return string(ref.Kind) + ":" + ref.ID
}
