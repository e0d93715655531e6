package telemetry

import (
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Logger exposes the logging capabilities required by server components.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

// Printf implements Logger for LoggerFunc.
func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapZap adapts a zap logger to the Logger interface. Messages are logged at
// warn level since callers only use Printf for operator-facing conditions.
func WrapZap(logger *zap.Logger) Logger {
	if logger == nil {
		return &zapAdapter{}
	}
	return &zapAdapter{sugar: logger.Sugar()}
}

type zapAdapter struct {
	sugar *zap.SugaredLogger
}

func (l *zapAdapter) Printf(format string, args ...any) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Warnf(format, args...)
}

// Metrics exposes the telemetry methods required by server components.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// Counters is a concurrency-safe Metrics implementation surfaced on the
// diagnostics endpoint.
type Counters struct {
	mu     sync.RWMutex
	values map[string]*atomic.Uint64
}

// NewCounters constructs an empty counter set.
func NewCounters() *Counters {
	return &Counters{values: make(map[string]*atomic.Uint64)}
}

func (c *Counters) counter(key string) *atomic.Uint64 {
	c.mu.RLock()
	v, ok := c.values[key]
	c.mu.RUnlock()
	if ok {
		return v
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok = c.values[key]; ok {
		return v
	}
	if c.values == nil {
		c.values = make(map[string]*atomic.Uint64)
	}
	v = new(atomic.Uint64)
	c.values[key] = v
	return v
}

// Add implements Metrics.
func (c *Counters) Add(key string, delta uint64) {
	if c == nil || key == "" {
		return
	}
	c.counter(key).Add(delta)
}

// Store implements Metrics.
func (c *Counters) Store(key string, value uint64) {
	if c == nil || key == "" {
		return
	}
	c.counter(key).Store(value)
}

// Get returns the current value of key.
func (c *Counters) Get(key string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.values[key]; ok {
		return v.Load()
	}
	return 0
}

// Snapshot copies every counter.
func (c *Counters) Snapshot() map[string]uint64 {
	out := make(map[string]uint64)
	if c == nil {
		return out
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.values {
		out[k] = v.Load()
	}
	return out
}

// Keys lists the known counters in order.
func (c *Counters) Keys() []string {
	snapshot := c.Snapshot()
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
